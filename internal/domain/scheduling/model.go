package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// transitions is the full set of allowed status changes. Cancelled and
// completed are terminal.
var transitions = map[Status]map[Status]bool{
	StatusScheduled: {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusCancelled: true, StatusCompleted: true},
}

// CanTransitionTo reports whether the status change s -> next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	return transitions[s][next]
}

// Type categorizes an appointment.
type Type string

const (
	TypeConsultation Type = "consultation"
	TypeFollowUp     Type = "follow_up"
	TypeEmergency    Type = "emergency"
)

func (t Type) Valid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeEmergency:
		return true
	}
	return false
}

// Booking rules.
const (
	DefaultDurationMinutes = 30
	SlotIntervalMinutes    = 30
	WorkdayStartHour       = 8
	WorkdayEndHour         = 18
	MaxHorizonDays         = 90
	MinCancelNotice        = 2 * time.Hour
)

// Appointment maps to the appointments table. Appointments are never
// physically deleted; cancellation is a status transition.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	ScheduledAt     time.Time `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Status          Status    `db:"status" json:"status"`
	Type            Type      `db:"type" json:"type"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// EndTime returns when the appointment finishes.
func (a *Appointment) EndTime() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
