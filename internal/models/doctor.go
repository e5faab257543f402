package models

import "time"

// Doctor represents a practitioner whose calendar the engine manages.
type Doctor struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Specialty string    `db:"specialty" json:"specialty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DoctorFilter captures filtering criteria for listing doctors.
type DoctorFilter struct {
	Specialty string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
}
