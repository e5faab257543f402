package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/mediconnect/telemed-api/internal/models"
	"github.com/mediconnect/telemed-api/pkg/config"
	appErrors "github.com/mediconnect/telemed-api/pkg/errors"
	"github.com/mediconnect/telemed-api/pkg/lock"
)

type schedulerAppointmentStore interface {
	ListByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error)
	ListFuture(ctx context.Context, doctorID, fromDate, fromTime string) ([]models.Appointment, error)
	CountByDoctorAndDate(ctx context.Context, doctorID, date string) (int, error)
	UpdateSlot(ctx context.Context, id, newDate, newTime string) error
}

type changeNotifier interface {
	NotifyChanges(ctx context.Context, changes []models.ScheduleChange)
}

// SchedulerService optimizes a doctor's daily calendar: it resolves slot
// overlaps, enforces minimum breaks between consecutive appointments and
// relieves overbooked days by pushing part of the load to future dates.
type SchedulerService struct {
	store    schedulerAppointmentStore
	notifier changeNotifier
	locker   lock.CalendarLocker
	metrics  *MetricsService
	logger   *zap.Logger

	apptMinutes   int
	breakMinutes  int
	dayStart      int
	dayEnd        int
	maxPerDay     int
	maxSearchDays int
}

// NewSchedulerService wires the engine with its collaborators and resolves the
// scheduling window configuration.
func NewSchedulerService(store schedulerAppointmentStore, notifier changeNotifier, locker lock.CalendarLocker, metrics *MetricsService, logger *zap.Logger, cfg config.SchedulerConfig) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.Noop()
	}

	s := &SchedulerService{
		store:         store,
		notifier:      notifier,
		locker:        locker,
		metrics:       metrics,
		logger:        logger,
		apptMinutes:   cfg.AppointmentMinutes,
		breakMinutes:  cfg.BreakMinutes,
		maxPerDay:     cfg.MaxPerDay,
		maxSearchDays: cfg.MaxSearchDays,
	}
	if s.apptMinutes <= 0 {
		s.apptMinutes = 30
	}
	if s.breakMinutes <= 0 {
		s.breakMinutes = 15
	}
	if s.maxPerDay <= 0 {
		s.maxPerDay = 8
	}
	if s.maxSearchDays <= 0 {
		s.maxSearchDays = 30
	}

	s.dayStart = 9 * 60
	if start, err := parseClock(cfg.DayStart); err == nil {
		s.dayStart = start
	}
	s.dayEnd = 17 * 60
	if end, err := parseClock(cfg.DayEnd); err == nil {
		s.dayEnd = end
	}

	return s
}

// OptimizeSchedule runs the full pipeline over one (doctor, date) calendar:
// fetch, sort, conflict detection, break enforcement, overload redistribution,
// persist, notify. The returned list holds every applied change in generation
// order. The whole read-modify-write pass runs under a per-calendar lock.
func (s *SchedulerService) OptimizeSchedule(ctx context.Context, doctorID, date string) ([]models.ScheduleChange, error) {
	if err := validateCalendarInput(doctorID, date); err != nil {
		return nil, err
	}

	var changes []models.ScheduleChange
	err := s.locker.WithCalendarLock(ctx, doctorID, date, func(ctx context.Context) error {
		var innerErr error
		changes, innerErr = s.optimizeLocked(ctx, doctorID, date)
		return innerErr
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, appErrors.Clone(appErrors.ErrScheduleLocked, "")
	}
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// EnforceBreaks runs only the break-enforcement half of the pipeline: fetch,
// sort, gap scan, persist, notify. Conflict detection and redistribution are
// skipped.
func (s *SchedulerService) EnforceBreaks(ctx context.Context, doctorID, date string) ([]models.ScheduleChange, error) {
	if err := validateCalendarInput(doctorID, date); err != nil {
		return nil, err
	}

	var changes []models.ScheduleChange
	err := s.locker.WithCalendarLock(ctx, doctorID, date, func(ctx context.Context) error {
		sorted, innerErr := s.fetchSortedDay(ctx, doctorID, date)
		if innerErr != nil {
			return innerErr
		}

		flags := s.identifyMissingBreaks(sorted)
		planned := make([]models.ScheduleChange, 0, len(flags))
		for _, flag := range flags {
			change, slotErr := s.planMove(ctx, doctorID, flag.Appointment, models.ReasonBreak, planned)
			if slotErr != nil {
				return slotErr
			}
			planned = append(planned, change)
		}

		planned = dedupeChanges(planned)
		if innerErr = s.applyChanges(ctx, planned); innerErr != nil {
			return innerErr
		}
		s.notifyChanges(ctx, planned)
		changes = planned
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, appErrors.Clone(appErrors.ErrScheduleLocked, "")
	}
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (s *SchedulerService) optimizeLocked(ctx context.Context, doctorID, date string) ([]models.ScheduleChange, error) {
	sorted, err := s.fetchSortedDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	changes := make([]models.ScheduleChange, 0)

	for _, flag := range s.detectConflicts(sorted) {
		change, slotErr := s.planMove(ctx, doctorID, flag.Appointment, models.ReasonConflict, changes)
		if slotErr != nil {
			return nil, slotErr
		}
		changes = append(changes, change)
	}

	for _, flag := range s.identifyMissingBreaks(sorted) {
		change, slotErr := s.planMove(ctx, doctorID, flag.Appointment, models.ReasonBreak, changes)
		if slotErr != nil {
			return nil, slotErr
		}
		changes = append(changes, change)
	}

	if len(sorted) > s.maxPerDay {
		moved, redistErr := s.redistributeOverloadedDay(ctx, doctorID, sorted, changes)
		if redistErr != nil {
			return nil, redistErr
		}
		changes = append(changes, moved...)
	}

	// Conflict and break scans run independently over the same adjacencies, so
	// one bad pair can flag the same appointment twice. The first generated
	// change wins; the duplicate is dropped before apply.
	changes = dedupeChanges(changes)

	if err := s.applyChanges(ctx, changes); err != nil {
		return nil, err
	}

	s.notifyChanges(ctx, changes)

	if s.metrics != nil {
		s.metrics.RecordOptimizationRun(len(changes))
		for _, change := range changes {
			s.metrics.RecordScheduleChange(string(change.Reason))
		}
	}

	s.logger.Info("schedule optimized",
		zap.String("doctor_id", doctorID),
		zap.String("date", date),
		zap.Int("changes", len(changes)),
	)

	return changes, nil
}

func (s *SchedulerService) fetchSortedDay(ctx context.Context, doctorID, date string) ([]models.Appointment, error) {
	appts, err := s.store.ListByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load day schedule")
	}
	sortAppointments(appts)
	return appts, nil
}

// detectConflicts scans chronologically adjacent pairs and flags the later
// appointment of every overlapping pair. The earlier appointment always keeps
// its slot. Chains of 3+ overlaps produce one flag per adjacency.
func (s *SchedulerService) detectConflicts(sorted []models.Appointment) []models.ConflictFlag {
	var flags []models.ConflictFlag
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].Date != sorted[i+1].Date {
			continue
		}
		start, err := parseClock(sorted[i].Time)
		if err != nil {
			continue
		}
		next, err := parseClock(sorted[i+1].Time)
		if err != nil {
			continue
		}
		if start+s.apptMinutes >= next {
			flags = append(flags, models.ConflictFlag{Appointment: sorted[i+1], Type: "time_overlap"})
		}
	}
	return flags
}

// identifyMissingBreaks flags every appointment that starts less than the
// minimum break after its predecessor's end. The gap may be negative for true
// overlaps; the flag carries the missing minutes.
func (s *SchedulerService) identifyMissingBreaks(sorted []models.Appointment) []models.BreakFlag {
	var flags []models.BreakFlag
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].Date != sorted[i+1].Date {
			continue
		}
		start, err := parseClock(sorted[i].Time)
		if err != nil {
			continue
		}
		next, err := parseClock(sorted[i+1].Time)
		if err != nil {
			continue
		}
		gap := next - (start + s.apptMinutes)
		if gap < s.breakMinutes {
			flags = append(flags, models.BreakFlag{Appointment: sorted[i+1], RequiredBreak: s.breakMinutes - gap})
		}
	}
	return flags
}

func (s *SchedulerService) planMove(ctx context.Context, doctorID string, appt models.Appointment, reason models.ChangeReason, planned []models.ScheduleChange) (models.ScheduleChange, error) {
	newDate, newTime, err := s.findNextAvailableSlot(ctx, doctorID, appt, planned)
	if err != nil {
		return models.ScheduleChange{}, err
	}
	return models.ScheduleChange{
		AppointmentID: appt.ID,
		OldDate:       appt.Date,
		OldTime:       appt.Time,
		NewDate:       newDate,
		NewTime:       newTime,
		Reason:        reason,
	}, nil
}

// findNextAvailableSlot walks the slot grid forward from the appointment's own
// date at the start of the working day, stepping by appointment duration plus
// break, rolling over to the next day when the window is exhausted. Candidates
// are checked against the doctor's future bookings fetched fresh from the
// store, overlaid with the moves already planned in this pass and ignoring the
// appointment being moved. The scan is bounded: once maxSearchDays days are
// exhausted a NO_SLOT_AVAILABLE error is returned instead of looping forever.
func (s *SchedulerService) findNextAvailableSlot(ctx context.Context, doctorID string, appt models.Appointment, planned []models.ScheduleChange) (string, string, error) {
	future, err := s.store.ListFuture(ctx, doctorID, appt.Date, formatClock(s.dayStart))
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load future bookings")
	}
	future = plannedView(future, planned)

	day := appt.Date
	for scanned := 0; scanned < s.maxSearchDays; scanned++ {
		for cand := s.dayStart; cand+s.apptMinutes <= s.dayEnd; cand += s.apptMinutes + s.breakMinutes {
			if s.slotFree(future, appt.ID, day, cand) {
				return day, formatClock(cand), nil
			}
		}
		next, dayErr := addDays(day, 1)
		if dayErr != nil {
			return "", "", appErrors.Wrap(dayErr, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment date")
		}
		day = next
	}

	return "", "", appErrors.Clone(appErrors.ErrNoSlotAvailable, "")
}

// slotFree reports whether a candidate slot on the given date collides with
// any booking in the list, ignoring the appointment identified by excludeID.
func (s *SchedulerService) slotFree(bookings []models.Appointment, excludeID, date string, startMin int) bool {
	for _, booking := range bookings {
		if booking.ID == excludeID || booking.Date != date {
			continue
		}
		bookedStart, err := parseClock(booking.Time)
		if err != nil {
			continue
		}
		if slotsOverlap(bookedStart, startMin, s.apptMinutes) {
			return false
		}
	}
	return true
}

// redistributeOverloadedDay moves every even-indexed appointment of the sorted
// day to the next future date with spare capacity, keeping the original
// time-of-day when that slot is free. Odd-indexed appointments stay put
// regardless of load; this is a crude halving strategy, not a least-disruption
// optimization.
func (s *SchedulerService) redistributeOverloadedDay(ctx context.Context, doctorID string, sorted []models.Appointment, prior []models.ScheduleChange) ([]models.ScheduleChange, error) {
	planned := append([]models.ScheduleChange(nil), prior...)
	var changes []models.ScheduleChange
	for i := 0; i < len(sorted); i += 2 {
		appt := sorted[i]
		newDate, newTime, err := s.findRelocationDay(ctx, doctorID, appt, planned)
		if err != nil {
			return nil, err
		}
		change := models.ScheduleChange{
			AppointmentID: appt.ID,
			OldDate:       appt.Date,
			OldTime:       appt.Time,
			NewDate:       newDate,
			NewTime:       newTime,
			Reason:        models.ReasonRedistribution,
		}
		changes = append(changes, change)
		planned = append(planned, change)
	}
	return changes, nil
}

func (s *SchedulerService) findRelocationDay(ctx context.Context, doctorID string, appt models.Appointment, planned []models.ScheduleChange) (string, string, error) {
	for d := 1; d <= s.maxSearchDays; d++ {
		day, err := addDays(appt.Date, d)
		if err != nil {
			return "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment date")
		}

		count, err := s.store.CountByDoctorAndDate(ctx, doctorID, day)
		if err != nil {
			return "", "", appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to count day load")
		}
		if count+plannedDayDelta(planned, day) >= s.maxPerDay {
			continue
		}

		dayAppts, err := s.store.ListByDoctorAndDate(ctx, doctorID, day)
		if err != nil {
			return "", "", appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load relocation day")
		}
		dayAppts = plannedView(dayAppts, planned)

		if want, parseErr := parseClock(appt.Time); parseErr == nil {
			if want >= s.dayStart && want+s.apptMinutes <= s.dayEnd && s.slotFree(dayAppts, appt.ID, day, want) {
				return day, appt.Time, nil
			}
		}

		for cand := s.dayStart; cand+s.apptMinutes <= s.dayEnd; cand += s.apptMinutes + s.breakMinutes {
			if s.slotFree(dayAppts, appt.ID, day, cand) {
				return day, formatClock(cand), nil
			}
		}
	}

	return "", "", appErrors.Clone(appErrors.ErrNoSlotAvailable, "")
}

// applyChanges persists every change in order. A write failure surfaces
// immediately; changes already written stay committed, there is no
// compensating rollback.
func (s *SchedulerService) applyChanges(ctx context.Context, changes []models.ScheduleChange) error {
	for _, change := range changes {
		if err := s.store.UpdateSlot(ctx, change.AppointmentID, change.NewDate, change.NewTime); err != nil {
			return appErrors.Wrap(err, appErrors.ErrStoreWrite.Code, appErrors.ErrStoreWrite.Status, "failed to apply schedule change")
		}
	}
	return nil
}

func (s *SchedulerService) notifyChanges(ctx context.Context, changes []models.ScheduleChange) {
	if s.notifier == nil || len(changes) == 0 {
		return
	}
	s.notifier.NotifyChanges(ctx, changes)
}

func validateCalendarInput(doctorID, date string) error {
	if doctorID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "doctorId is required")
	}
	if _, err := parseDate(date); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	return nil
}

func sortAppointments(appts []models.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		return sortKey(appts[i]) < sortKey(appts[j])
	})
}

// plannedView overlays planned but unapplied moves onto a booking list: moved
// appointments occupy their planned slots and vacate their current ones, and
// moves targeting a date outside the list show up as occupied slots there.
// Only the first planned change per appointment counts, matching what
// applyChanges will persist after dedupe.
func plannedView(bookings []models.Appointment, planned []models.ScheduleChange) []models.Appointment {
	if len(planned) == 0 {
		return bookings
	}
	moved := make(map[string]models.ScheduleChange, len(planned))
	for _, change := range planned {
		if _, ok := moved[change.AppointmentID]; !ok {
			moved[change.AppointmentID] = change
		}
	}
	view := make([]models.Appointment, 0, len(bookings)+len(moved))
	present := make(map[string]struct{}, len(bookings))
	for _, booking := range bookings {
		if change, ok := moved[booking.ID]; ok {
			booking.Date = change.NewDate
			booking.Time = change.NewTime
		}
		present[booking.ID] = struct{}{}
		view = append(view, booking)
	}
	for id, change := range moved {
		if _, ok := present[id]; ok {
			continue
		}
		view = append(view, models.Appointment{ID: id, Date: change.NewDate, Time: change.NewTime})
	}
	return view
}

// plannedDayDelta is the net change in a day's booking count once the planned
// moves are applied.
func plannedDayDelta(planned []models.ScheduleChange, day string) int {
	seen := make(map[string]struct{}, len(planned))
	delta := 0
	for _, change := range planned {
		if _, ok := seen[change.AppointmentID]; ok {
			continue
		}
		seen[change.AppointmentID] = struct{}{}
		if change.NewDate == day && change.OldDate != day {
			delta++
		}
		if change.OldDate == day && change.NewDate != day {
			delta--
		}
	}
	return delta
}

func dedupeChanges(changes []models.ScheduleChange) []models.ScheduleChange {
	if len(changes) < 2 {
		return changes
	}
	seen := make(map[string]struct{}, len(changes))
	deduped := make([]models.ScheduleChange, 0, len(changes))
	for _, change := range changes {
		if _, ok := seen[change.AppointmentID]; ok {
			continue
		}
		seen[change.AppointmentID] = struct{}{}
		deduped = append(deduped, change)
	}
	return deduped
}
