package prescription

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a prescription may move from s to next.
// Only active prescriptions change state; completed and cancelled are
// terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusActive && (next == StatusCompleted || next == StatusCancelled)
}

type Prescription struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	DoctorID         uuid.UUID  `json:"doctor_id"`
	EHRID            *uuid.UUID `json:"ehr_id,omitempty"`
	MedicationName   string     `json:"medication_name"`
	Dosage           string     `json:"dosage"`
	Frequency        string     `json:"frequency"`
	DurationDays     int        `json:"duration_days"`
	Instructions     *string    `json:"instructions,omitempty"`
	PrescribedDate   time.Time  `json:"prescribed_date"`
	Status           Status     `json:"status"`
	RefillsRemaining int        `json:"refills_remaining"`
	CreatedAt        time.Time  `json:"created_at"`
}
