package models

// ChangeReason classifies why the scheduling engine moved an appointment.
type ChangeReason string

const (
	ReasonConflict       ChangeReason = "conflict"
	ReasonBreak          ChangeReason = "break"
	ReasonRedistribution ChangeReason = "redistribution"
)

// HumanReason returns the phrase used in patient-facing notifications.
func (r ChangeReason) HumanReason() string {
	switch r {
	case ReasonConflict:
		return "scheduling conflict"
	case ReasonBreak:
		return "required break time"
	case ReasonRedistribution:
		return "optimizing daily schedule"
	default:
		return string(r)
	}
}

// ScheduleChange records a single slot move computed by the engine. It is
// transient: applied as a date/time update on the appointment row, never
// persisted as its own entity.
type ScheduleChange struct {
	AppointmentID string       `json:"appointment_id"`
	OldDate       string       `json:"old_date"`
	OldTime       string       `json:"old_time"`
	NewDate       string       `json:"new_date"`
	NewTime       string       `json:"new_time"`
	Reason        ChangeReason `json:"reason"`
}

// ConflictFlag marks an appointment that overlaps its predecessor in a
// chronologically sorted day. Only the later member of a pair is flagged.
type ConflictFlag struct {
	Appointment Appointment `json:"appointment"`
	Type        string      `json:"type"`
}

// BreakFlag marks an appointment that starts too soon after its predecessor,
// carrying the number of additional minutes required.
type BreakFlag struct {
	Appointment   Appointment `json:"appointment"`
	RequiredBreak int         `json:"required_break"`
}
