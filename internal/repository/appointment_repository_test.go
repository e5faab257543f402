package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediconnect/telemed-api/internal/models"
)

func newAppointmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func appointmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "doctor_id", "date", "time", "patient_name", "patient_email", "created_at", "updated_at"})
}

func TestAppointmentRepositoryListByDoctorAndDate(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	rows := appointmentRows().
		AddRow("a1", "doc-1", "2026-09-01", "09:00", "Ana Silva", "ana@example.com", time.Now(), time.Now()).
		AddRow("a2", "doc-1", "2026-09-01", "10:00", "Ben Osei", "ben@example.com", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, doctor_id, date, time, patient_name, patient_email, created_at, updated_at FROM appointments WHERE doctor_id = $1 AND date = $2 ORDER BY date ASC, time ASC")).
		WithArgs("doc-1", "2026-09-01").
		WillReturnRows(rows)

	appts, err := repo.ListByDoctorAndDate(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "a1", appts[0].ID)
	assert.Equal(t, "09:00", appts[0].Time)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListFuture(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	rows := appointmentRows().
		AddRow("a3", "doc-1", "2026-09-02", "09:00", "Ana Silva", "ana@example.com", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, doctor_id, date, time, patient_name, patient_email, created_at, updated_at FROM appointments WHERE doctor_id = $1 AND (date > $2 OR (date = $2 AND time >= $3)) ORDER BY date ASC, time ASC")).
		WithArgs("doc-1", "2026-09-01", "09:00").
		WillReturnRows(rows)

	appts, err := repo.ListFuture(context.Background(), "doc-1", "2026-09-01", "09:00")
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "a3", appts[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCountByDoctorAndDate(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND date = $2")).
		WithArgs("doc-1", "2026-09-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	total, err := repo.CountByDoctorAndDate(context.Background(), "doc-1", "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateSlot(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET date = $1, time = $2, updated_at = $3 WHERE id = $4")).
		WithArgs("2026-09-02", "09:45", sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateSlot(context.Background(), "a1", "2026-09-02", "09:45"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateSlotMissingRow(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET date = $1, time = $2, updated_at = $3 WHERE id = $4")).
		WithArgs("2026-09-02", "09:45", sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSlot(context.Background(), "ghost", "2026-09-02", "09:45")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryGetContact(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT patient_name, patient_email FROM appointments WHERE id = $1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"patient_name", "patient_email"}).AddRow("Ana Silva", "ana@example.com"))

	contact, err := repo.GetContact(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Silva", contact.Name)
	assert.Equal(t, "ana@example.com", contact.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListWithFilter(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	rows := appointmentRows().
		AddRow("a1", "doc-1", "2026-09-01", "09:00", "Ana Silva", "ana@example.com", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, doctor_id, date, time, patient_name, patient_email, created_at, updated_at FROM appointments WHERE 1=1 AND doctor_id = $1 ORDER BY date ASC, time ASC LIMIT 20 OFFSET 0")).
		WithArgs("doc-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments WHERE 1=1 AND doctor_id = $1")).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	appts, total, err := repo.List(context.Background(), models.AppointmentFilter{DoctorID: "doc-1"})
	require.NoError(t, err)
	assert.Len(t, appts, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(sqlmock.AnyArg(), "doc-1", "2026-09-01", "10:00", "Ana Silva", "ana@example.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	appt := &models.Appointment{
		DoctorID:     "doc-1",
		Date:         "2026-09-01",
		Time:         "10:00",
		PatientName:  "Ana Silva",
		PatientEmail: "ana@example.com",
	}
	require.NoError(t, repo.Create(context.Background(), appt))
	assert.NotEmpty(t, appt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
