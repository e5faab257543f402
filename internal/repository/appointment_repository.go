package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mediconnect/telemed-api/internal/models"
)

// AppointmentRepository provides persistence for appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = "id, doctor_id, date, time, patient_name, patient_email, created_at, updated_at"

// ListByDoctorAndDate returns a doctor's appointments for one calendar date in
// chronological order.
func (r *AppointmentRepository) ListByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE doctor_id = $1 AND date = $2 ORDER BY date ASC, time ASC", appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("list appointments by doctor and date: %w", err)
	}
	return appts, nil
}

// ListFuture returns a doctor's appointments at or after the given date/time,
// ordered chronologically. Used by the slot search to test candidate slots.
func (r *AppointmentRepository) ListFuture(ctx context.Context, doctorID, fromDate, fromTime string) ([]models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE doctor_id = $1 AND (date > $2 OR (date = $2 AND time >= $3)) ORDER BY date ASC, time ASC", appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, doctorID, fromDate, fromTime); err != nil {
		return nil, fmt.Errorf("list future appointments: %w", err)
	}
	return appts, nil
}

// CountByDoctorAndDate returns the number of appointments on a doctor's day.
func (r *AppointmentRepository) CountByDoctorAndDate(ctx context.Context, doctorID, date string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND date = $2", doctorID, date); err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return total, nil
}

// UpdateSlot moves an appointment to a new date/time. Only date and time are
// ever mutated by the engine.
func (r *AppointmentRepository) UpdateSlot(ctx context.Context, id, newDate, newTime string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE appointments SET date = $1, time = $2, updated_at = $3 WHERE id = $4", newDate, newTime, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update appointment slot: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update appointment slot: appointment %s not found", id)
	}
	return nil
}

// GetContact loads the patient contact for a single appointment.
func (r *AppointmentRepository) GetContact(ctx context.Context, id string) (*models.PatientContact, error) {
	var contact models.PatientContact
	if err := r.db.GetContext(ctx, &contact, "SELECT patient_name, patient_email FROM appointments WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &contact, nil
}

// FindByID loads an appointment by id.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1", appointmentColumns)
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, err
	}
	return &appt, nil
}

// List returns appointments with optional filtering and pagination.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	base := "FROM appointments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.DoctorID != "" {
		conditions = append(conditions, fmt.Sprintf("doctor_id = $%d", len(args)+1))
		args = append(args, filter.DoctorID)
	}
	if filter.Date != "" {
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, filter.Date)
	}
	if filter.FromDate != "" {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, filter.FromDate)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"date":       true,
		"time":       true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, time ASC LIMIT %d OFFSET %d", appointmentColumns, base, sortBy, order, size, offset)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	return appts, total, nil
}

// Create stores a new appointment record.
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	const query = `INSERT INTO appointments (id, doctor_id, date, time, patient_name, patient_email, created_at, updated_at) VALUES (:id, :doctor_id, :date, :time, :patient_name, :patient_email, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, appt); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// Delete removes an appointment by id.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}
