package service

import (
	"fmt"
	"time"

	"github.com/mediconnect/telemed-api/internal/models"
)

const (
	clockLayout = "15:04"
	dateLayout  = "2006-01-02"
)

// parseClock converts an HH:MM wall-clock string to minutes since midnight.
func parseClock(raw string) (int, error) {
	t, err := time.Parse(clockLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", raw, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// formatClock renders minutes since midnight as an HH:MM string.
func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// parseDate validates a YYYY-MM-DD calendar date.
func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

// addDays returns the calendar date n days after the given YYYY-MM-DD date.
func addDays(date string, n int) (string, error) {
	t, err := parseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(dateLayout), nil
}

// slotsOverlap reports whether two appointments of the given duration collide.
// A shared boundary counts as overlap: an appointment ending exactly when the
// next one starts leaves no room for the mandatory break.
func slotsOverlap(aStart, bStart, duration int) bool {
	if aStart <= bStart {
		return aStart+duration >= bStart
	}
	return bStart+duration >= aStart
}

// sortKey orders appointments chronologically across dates.
func sortKey(a models.Appointment) string {
	return a.Date + "T" + a.Time
}
