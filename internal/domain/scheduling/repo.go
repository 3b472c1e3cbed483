package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists appointments. The store-level uniqueness on
// (doctor_id, scheduled_at) over non-cancelled rows is authoritative:
// Create and Update must surface a constraint violation as
// apperr.ErrSlotConflict so races collapse into the same error the
// pre-check produces.
type Repository interface {
	// InTx runs fn with the conflict check and the write it guards in a
	// single transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error

	// FindDoctorAt returns the non-cancelled appointment of the doctor
	// starting exactly at the given time, or nil when the slot is free.
	FindDoctorAt(ctx context.Context, doctorID uuid.UUID, at time.Time) (*Appointment, error)
	// FindPatientAt is the patient-side equivalent.
	FindPatientAt(ctx context.Context, patientID uuid.UUID, at time.Time) (*Appointment, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// ListByDoctorBetween returns non-cancelled appointments in [from, to).
	ListByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error)

	CountByStatus(ctx context.Context) (map[Status]int, error)
	// CountPerDay returns appointment counts per calendar day since the
	// given time, keyed by ISO date (YYYY-MM-DD).
	CountPerDay(ctx context.Context, since time.Time) (map[string]int, error)
}
