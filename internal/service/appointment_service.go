package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mediconnect/telemed-api/internal/models"
	"github.com/mediconnect/telemed-api/pkg/config"
	appErrors "github.com/mediconnect/telemed-api/pkg/errors"
)

type appointmentRepository interface {
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
	ListByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error)
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	Create(ctx context.Context, appt *models.Appointment) error
	Delete(ctx context.Context, id string) error
}

type doctorLookup interface {
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
}

// CreateAppointmentRequest holds payload for booking an appointment.
type CreateAppointmentRequest struct {
	DoctorID     string `json:"doctor_id" validate:"required"`
	Date         string `json:"date" validate:"required"`
	Time         string `json:"time" validate:"required"`
	PatientName  string `json:"patient_name" validate:"required"`
	PatientEmail string `json:"patient_email" validate:"required,email"`
}

// AppointmentService handles booking use-cases outside the optimization engine.
type AppointmentService struct {
	repo        appointmentRepository
	doctors     doctorLookup
	validator   *validator.Validate
	logger      *zap.Logger
	apptMinutes int
}

// NewAppointmentService constructs the appointment service.
func NewAppointmentService(repo appointmentRepository, doctors doctorLookup, validate *validator.Validate, logger *zap.Logger, cfg config.SchedulerConfig) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	minutes := cfg.AppointmentMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return &AppointmentService{repo: repo, doctors: doctors, validator: validate, logger: logger, apptMinutes: minutes}
}

// List returns appointments matching the filter plus pagination metadata.
func (s *AppointmentService) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, *models.Pagination, error) {
	appts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to list appointments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return appts, pagination, nil
}

// DaySchedule returns one doctor's appointments for a date in chronological order.
func (s *AppointmentService) DaySchedule(ctx context.Context, doctorID, date string) ([]models.Appointment, error) {
	if err := validateCalendarInput(doctorID, date); err != nil {
		return nil, err
	}
	appts, err := s.repo.ListByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load day schedule")
	}
	sortAppointments(appts)
	return appts, nil
}

// Get returns a single appointment by id.
func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load appointment")
	}
	return appt, nil
}

// Create books a new appointment for an existing doctor. The returned advisory
// is non-empty when the requested slot overlaps an existing booking; the
// appointment is still created and left for the optimizer to untangle.
func (s *AppointmentService) Create(ctx context.Context, req CreateAppointmentRequest) (*models.Appointment, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	if _, err := parseDate(req.Date); err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	start, err := parseClock(req.Time)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "time must be formatted as HH:MM")
	}

	if _, err := s.doctors.FindByID(ctx, req.DoctorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load doctor")
	}

	advisory := s.conflictAdvisory(ctx, req.DoctorID, req.Date, start)

	appt := &models.Appointment{
		DoctorID:     req.DoctorID,
		Date:         req.Date,
		Time:         req.Time,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrStoreWrite.Code, appErrors.ErrStoreWrite.Status, "failed to create appointment")
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("doctor_id", appt.DoctorID),
		zap.String("date", appt.Date),
		zap.String("time", appt.Time),
	)
	return appt, advisory, nil
}

// conflictAdvisory is best effort; a store failure here only costs the warning.
func (s *AppointmentService) conflictAdvisory(ctx context.Context, doctorID, date string, start int) string {
	existing, err := s.repo.ListByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		s.logger.Warn("conflict advisory skipped", zap.String("doctor_id", doctorID), zap.String("date", date), zap.Error(err))
		return ""
	}
	for _, other := range existing {
		otherStart, err := parseClock(other.Time)
		if err != nil {
			continue
		}
		if slotsOverlap(start, otherStart, s.apptMinutes) {
			return fmt.Sprintf("requested slot overlaps an existing appointment at %s", other.Time)
		}
	}
	return ""
}

// Cancel removes an appointment.
func (s *AppointmentService) Cancel(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load appointment")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStoreWrite.Code, appErrors.ErrStoreWrite.Status, "failed to cancel appointment")
	}
	return nil
}
