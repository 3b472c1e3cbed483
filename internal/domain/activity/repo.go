package activity

import (
	"context"

	"github.com/google/uuid"
)

// Recorder is the write side of the audit trail. Domain services record
// entries best-effort: a failed write is logged, never surfaced to callers.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

type Repository interface {
	Recorder
	ListBySubject(ctx context.Context, kind string, subjectID uuid.UUID, limit, offset int) ([]*Entry, int, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*Entry, int, error)
}
