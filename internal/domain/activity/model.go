package activity

import (
	"time"

	"github.com/google/uuid"
)

// Subject kinds an activity entry can refer to.
const (
	SubjectUser        = "user"
	SubjectAppointment = "appointment"
)

// Entry is a single audit-trail record. Entries are append-only.
type Entry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	SubjectKind string    `db:"subject_kind" json:"subject_kind"`
	SubjectID   uuid.UUID `db:"subject_id" json:"subject_id"`
	Action      string    `db:"action" json:"action"`
	Details     string    `db:"details" json:"details"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
