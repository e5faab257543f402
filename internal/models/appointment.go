package models

import "time"

// Appointment represents a booked consultation slot for a doctor.
// Dates are stored as YYYY-MM-DD and times as HH:MM wall-clock strings in the
// doctor's local time; the engine performs no timezone conversion. Duration is
// not stored per row, it comes from the scheduler configuration.
type Appointment struct {
	ID           string    `db:"id" json:"id"`
	DoctorID     string    `db:"doctor_id" json:"doctor_id"`
	Date         string    `db:"date" json:"date"`
	Time         string    `db:"time" json:"time"`
	PatientName  string    `db:"patient_name" json:"patient_name"`
	PatientEmail string    `db:"patient_email" json:"patient_email"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AppointmentFilter captures query parameters for listing appointments.
type AppointmentFilter struct {
	DoctorID  string
	Date      string
	FromDate  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// PatientContact is the contact projection used for reschedule notifications.
type PatientContact struct {
	Name  string `db:"patient_name" json:"name"`
	Email string `db:"patient_email" json:"email"`
}
