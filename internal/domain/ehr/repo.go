package ehr

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SearchFilter narrows a record search. Zero values mean "no constraint".
type SearchFilter struct {
	PatientID uuid.UUID
	Diagnosis string
	From      time.Time
	To        time.Time
}

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error)
	Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Record, int, error)
	PatientStats(ctx context.Context, patientID uuid.UUID) (*PatientStats, error)
}
