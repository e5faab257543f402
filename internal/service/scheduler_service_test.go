package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mediconnect/telemed-api/internal/models"
	"github.com/mediconnect/telemed-api/pkg/config"
	appErrors "github.com/mediconnect/telemed-api/pkg/errors"
	"github.com/mediconnect/telemed-api/pkg/lock"
)

func TestSchedulerOptimizeEmptyDay(t *testing.T) {
	store := &schedulerStoreStub{}
	service := newSchedulerFixture(t, store, nil, nil)

	changes, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Empty(t, store.updates)
}

func TestSchedulerOptimizeWellFormedDayUntouched(t *testing.T) {
	store := &schedulerStoreStub{appts: []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "10:00"),
		appt("a3", "2026-09-01", "11:00"),
	}}
	service := newSchedulerFixture(t, store, nil, nil)

	changes, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Empty(t, store.updates)
}

func TestSchedulerOptimizeOverlapMovesLaterAppointment(t *testing.T) {
	store := &schedulerStoreStub{appts: []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "09:15"),
	}}
	notifier := &notifierStub{}
	service := newSchedulerFixture(t, store, notifier, nil)

	changes, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	require.Len(t, changes, 1)

	change := changes[0]
	assert.Equal(t, "a2", change.AppointmentID)
	assert.Equal(t, models.ReasonConflict, change.Reason)
	assert.Equal(t, "2026-09-01", change.NewDate)
	assert.Equal(t, "09:45", change.NewTime)

	require.Len(t, store.updates, 1)
	assert.Equal(t, slotUpdate{id: "a2", date: "2026-09-01", time: "09:45"}, store.updates[0])
	assert.Equal(t, changes, notifier.received)
}

func TestSchedulerOptimizeParallelConflictsGetDistinctSlots(t *testing.T) {
	store := &schedulerStoreStub{appts: []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "09:00"),
		appt("a3", "2026-09-01", "12:00"),
		appt("a4", "2026-09-01", "12:00"),
	}}
	service := newSchedulerFixture(t, store, nil, nil)

	changes, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	require.Len(t, changes, 2)

	// The second move must see the first one and pick the next free slot.
	assert.Equal(t, "a2", changes[0].AppointmentID)
	assert.Equal(t, "09:45", changes[0].NewTime)
	assert.Equal(t, "a4", changes[1].AppointmentID)
	assert.Equal(t, "10:30", changes[1].NewTime)

	for i := range store.appts {
		for j := i + 1; j < len(store.appts); j++ {
			a, b := store.appts[i], store.appts[j]
			if a.Date != b.Date {
				continue
			}
			aStart, err := parseClock(a.Time)
			require.NoError(t, err)
			bStart, err := parseClock(b.Time)
			require.NoError(t, err)
			assert.Falsef(t, slotsOverlap(aStart, bStart, 30),
				"%s and %s overlap on %s (%s / %s)", a.ID, b.ID, a.Date, a.Time, b.Time)
		}
	}
}

func TestSchedulerOptimizeSecondPassFindsNothing(t *testing.T) {
	store := &schedulerStoreStub{appts: []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "09:15"),
	}}
	service := newSchedulerFixture(t, store, nil, nil)

	first, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, store.updates, 1)
}

func TestSchedulerOptimizeBoundaryCountsAsOverlap(t *testing.T) {
	store := &schedulerStoreStub{appts: []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "09:30"),
	}}
	service := newSchedulerFixture(t, store, nil, nil)

	changes, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)

	// The pair trips both the overlap scan and the break scan. After
	// de-duplication a single change survives with the conflict reason.
	require.Len(t, changes, 1)
	assert.Equal(t, "a2", changes[0].AppointmentID)
	assert.Equal(t, models.ReasonConflict, changes[0].Reason)
}

func TestSchedulerOptimizeShortGapEnforcesBreak(t *testing.T) {
	store := &schedulerStoreStub{appts: []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "09:35"),
	}}
	service := newSchedulerFixture(t, store, nil, nil)

	changes, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "a2", changes[0].AppointmentID)
	assert.Equal(t, models.ReasonBreak, changes[0].Reason)
	assert.Equal(t, "09:45", changes[0].NewTime)
}

func TestSchedulerOptimizeExactBreakGapIsValid(t *testing.T) {
	store := &schedulerStoreStub{appts: []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "09:45"),
	}}
	service := newSchedulerFixture(t, store, nil, nil)

	changes, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestSchedulerOptimizeRedistributesEvenIndices(t *testing.T) {
	appts := make([]models.Appointment, 0, 9)
	times := []string{"09:00", "09:45", "10:30", "11:15", "12:00", "12:45", "13:30", "14:15", "15:00"}
	for i, ts := range times {
		appts = append(appts, appt(fmt.Sprintf("a%d", i), "2026-09-01", ts))
	}
	store := &schedulerStoreStub{appts: appts}
	service := newSchedulerFixture(t, store, nil, nil)

	changes, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	require.Len(t, changes, 5)

	for i, change := range changes {
		assert.Equal(t, fmt.Sprintf("a%d", i*2), change.AppointmentID)
		assert.Equal(t, models.ReasonRedistribution, change.Reason)
		assert.Equal(t, "2026-09-02", change.NewDate)
		// Next day is empty so the original time-of-day is kept.
		assert.Equal(t, change.OldTime, change.NewTime)
	}
}

func TestSchedulerRedistributionSkipsFullDays(t *testing.T) {
	appts := make([]models.Appointment, 0, 9)
	times := []string{"09:00", "09:45", "10:30", "11:15", "12:00", "12:45", "13:30", "14:15", "15:00"}
	for i, ts := range times {
		appts = append(appts, appt(fmt.Sprintf("a%d", i), "2026-09-01", ts))
	}
	store := &schedulerStoreStub{
		appts:  appts,
		counts: map[string]int{"2026-09-02": 8},
	}
	service := newSchedulerFixture(t, store, nil, nil)

	changes, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	require.Len(t, changes, 5)
	for _, change := range changes {
		assert.Equal(t, "2026-09-03", change.NewDate)
	}
}

func TestSchedulerOptimizeNoSlotWithinHorizon(t *testing.T) {
	// One bookable slot per day and every day in the horizon already taken.
	store := &schedulerStoreStub{appts: []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "09:00"),
		appt("b1", "2026-09-02", "09:00"),
		appt("b2", "2026-09-03", "09:00"),
	}}
	service := newSchedulerFixtureConfig(t, store, nil, nil, config.SchedulerConfig{
		AppointmentMinutes: 30,
		BreakMinutes:       15,
		DayStart:           "09:00",
		DayEnd:             "09:30",
		MaxPerDay:          8,
		MaxSearchDays:      3,
	})

	_, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoSlotAvailable.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.updates)
}

func TestSchedulerOptimizeStoreReadError(t *testing.T) {
	store := &schedulerStoreStub{listErr: errors.New("connection refused")}
	service := newSchedulerFixture(t, store, nil, nil)

	_, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStoreRead.Code, appErrors.FromError(err).Code)
}

func TestSchedulerOptimizeWriteFailureKeepsEarlierChanges(t *testing.T) {
	store := &schedulerStoreStub{
		appts: []models.Appointment{
			appt("a1", "2026-09-01", "09:00"),
			appt("a2", "2026-09-01", "09:00"),
			appt("a3", "2026-09-01", "12:00"),
			appt("a4", "2026-09-01", "12:00"),
		},
		failOnUpdate: 2,
	}
	notifier := &notifierStub{}
	service := newSchedulerFixture(t, store, notifier, nil)

	_, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStoreWrite.Code, appErrors.FromError(err).Code)

	// The first change was already persisted and stays that way.
	require.Len(t, store.updates, 1)
	assert.Equal(t, "a2", store.updates[0].id)
	assert.Empty(t, notifier.received)
}

func TestSchedulerOptimizeLockedCalendar(t *testing.T) {
	store := &schedulerStoreStub{}
	service := newSchedulerFixtureLocker(t, store, &lockerStub{err: lock.ErrNotAcquired})

	_, err := service.OptimizeSchedule(context.Background(), "doc-1", "2026-09-01")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleLocked.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.updates)
}

func TestSchedulerOptimizeValidatesInput(t *testing.T) {
	store := &schedulerStoreStub{}
	service := newSchedulerFixture(t, store, nil, nil)

	_, err := service.OptimizeSchedule(context.Background(), "", "2026-09-01")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = service.OptimizeSchedule(context.Background(), "doc-1", "01-09-2026")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	assert.Zero(t, store.listCalls)
}

func TestSchedulerEnforceBreaksOnly(t *testing.T) {
	store := &schedulerStoreStub{appts: []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "09:40"),
	}}
	notifier := &notifierStub{}
	service := newSchedulerFixture(t, store, notifier, nil)

	changes, err := service.EnforceBreaks(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.ReasonBreak, changes[0].Reason)
	assert.Equal(t, "09:45", changes[0].NewTime)
	assert.Equal(t, changes, notifier.received)
}

func TestSchedulerEnforceBreaksCleanDay(t *testing.T) {
	store := &schedulerStoreStub{appts: []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "10:00"),
	}}
	notifier := &notifierStub{}
	service := newSchedulerFixture(t, store, notifier, nil)

	changes, err := service.EnforceBreaks(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Empty(t, notifier.received)
}

func TestSchedulerConflictChainFlagsEachLaterAppointment(t *testing.T) {
	service := newSchedulerFixture(t, &schedulerStoreStub{}, nil, nil)

	sorted := []models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "09:10"),
		appt("a3", "2026-09-01", "09:20"),
	}
	flags := service.detectConflicts(sorted)
	require.Len(t, flags, 2)
	assert.Equal(t, "a2", flags[0].Appointment.ID)
	assert.Equal(t, "a3", flags[1].Appointment.ID)
}

func TestSchedulerMissingBreakCarriesShortfall(t *testing.T) {
	service := newSchedulerFixture(t, &schedulerStoreStub{}, nil, nil)

	flags := service.identifyMissingBreaks([]models.Appointment{
		appt("a1", "2026-09-01", "09:00"),
		appt("a2", "2026-09-01", "09:40"),
	})
	require.Len(t, flags, 1)
	assert.Equal(t, "a2", flags[0].Appointment.ID)
	assert.Equal(t, 5, flags[0].RequiredBreak)
}

// --- Fixtures ---

func appt(id, date, timeStr string) models.Appointment {
	return models.Appointment{
		ID:           id,
		DoctorID:     "doc-1",
		Date:         date,
		Time:         timeStr,
		PatientName:  "Patient " + id,
		PatientEmail: id + "@example.com",
	}
}

func defaultSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		AppointmentMinutes: 30,
		BreakMinutes:       15,
		DayStart:           "09:00",
		DayEnd:             "17:00",
		MaxPerDay:          8,
		MaxSearchDays:      30,
	}
}

func newSchedulerFixture(t *testing.T, store *schedulerStoreStub, notifier *notifierStub, metrics *MetricsService) *SchedulerService {
	t.Helper()
	var n changeNotifier
	if notifier != nil {
		n = notifier
	}
	return NewSchedulerService(store, n, lock.Noop(), metrics, zap.NewNop(), defaultSchedulerConfig())
}

func newSchedulerFixtureConfig(t *testing.T, store *schedulerStoreStub, notifier *notifierStub, metrics *MetricsService, cfg config.SchedulerConfig) *SchedulerService {
	t.Helper()
	var n changeNotifier
	if notifier != nil {
		n = notifier
	}
	return NewSchedulerService(store, n, lock.Noop(), metrics, zap.NewNop(), cfg)
}

func newSchedulerFixtureLocker(t *testing.T, store *schedulerStoreStub, locker lock.CalendarLocker) *SchedulerService {
	t.Helper()
	return NewSchedulerService(store, nil, locker, nil, zap.NewNop(), defaultSchedulerConfig())
}

type slotUpdate struct {
	id   string
	date string
	time string
}

type schedulerStoreStub struct {
	appts  []models.Appointment
	counts map[string]int

	listErr   error
	futureErr error
	countErr  error

	// failOnUpdate makes the Nth UpdateSlot call fail (1-based, 0 disables).
	failOnUpdate int

	listCalls int
	updates   []slotUpdate
}

func (s *schedulerStoreStub) ListByDoctorAndDate(_ context.Context, doctorID, date string) ([]models.Appointment, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Appointment
	for _, a := range s.appts {
		if a.DoctorID == doctorID && a.Date == date {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *schedulerStoreStub) ListFuture(_ context.Context, doctorID, fromDate, fromTime string) ([]models.Appointment, error) {
	if s.futureErr != nil {
		return nil, s.futureErr
	}
	var out []models.Appointment
	for _, a := range s.appts {
		if a.DoctorID != doctorID {
			continue
		}
		if a.Date > fromDate || (a.Date == fromDate && a.Time >= fromTime) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *schedulerStoreStub) CountByDoctorAndDate(_ context.Context, doctorID, date string) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	if n, ok := s.counts[date]; ok {
		return n, nil
	}
	n := 0
	for _, a := range s.appts {
		if a.DoctorID == doctorID && a.Date == date {
			n++
		}
	}
	return n, nil
}

func (s *schedulerStoreStub) UpdateSlot(_ context.Context, id, newDate, newTime string) error {
	if s.failOnUpdate > 0 && len(s.updates)+1 == s.failOnUpdate {
		return errors.New("write refused")
	}
	s.updates = append(s.updates, slotUpdate{id: id, date: newDate, time: newTime})
	for i := range s.appts {
		if s.appts[i].ID == id {
			s.appts[i].Date = newDate
			s.appts[i].Time = newTime
		}
	}
	return nil
}

type notifierStub struct {
	received []models.ScheduleChange
}

func (n *notifierStub) NotifyChanges(_ context.Context, changes []models.ScheduleChange) {
	n.received = append(n.received, changes...)
}

type lockerStub struct {
	err error
}

func (l *lockerStub) WithCalendarLock(ctx context.Context, _, _ string, fn func(context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}
