package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
