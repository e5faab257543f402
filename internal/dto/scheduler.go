package dto

import "github.com/mediconnect/telemed-api/internal/models"

// OptimizeScheduleResponse summarizes one optimization pass over a calendar.
type OptimizeScheduleResponse struct {
	DoctorID     string                  `json:"doctor_id"`
	Date         string                  `json:"date"`
	TotalChanges int                     `json:"total_changes"`
	Changes      []models.ScheduleChange `json:"changes"`
}
