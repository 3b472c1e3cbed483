package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediconnect/api/internal/domain/activity"
	"github.com/mediconnect/api/internal/domain/prescription"
	"github.com/mediconnect/api/internal/domain/scheduling"
)

// UserCounter is the slice of the identity service the reporter needs.
type UserCounter interface {
	CountByRole(ctx context.Context) (map[string]int, error)
}

// AppointmentCounter is the slice of the scheduling service the reporter needs.
type AppointmentCounter interface {
	CountByStatus(ctx context.Context) (map[scheduling.Status]int, error)
	DailyCounts(ctx context.Context, days int) (map[string]int, error)
}

// PrescriptionCounter is the slice of the prescription service the reporter needs.
type PrescriptionCounter interface {
	CountByStatus(ctx context.Context) (map[prescription.Status]int, error)
}

// Pinger reports reachability of a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Service struct {
	users         UserCounter
	appointments  AppointmentCounter
	prescriptions PrescriptionCounter
	activity      activity.Repository
	dbPing        Pinger
	busPing       Pinger
	logger        zerolog.Logger
}

func NewService(users UserCounter, appointments AppointmentCounter, prescriptions PrescriptionCounter,
	act activity.Repository, dbPing, busPing Pinger, logger zerolog.Logger) *Service {
	return &Service{
		users:         users,
		appointments:  appointments,
		prescriptions: prescriptions,
		activity:      act,
		dbPing:        dbPing,
		busPing:       busPing,
		logger:        logger,
	}
}

// SystemStats aggregates counts across the domains.
type SystemStats struct {
	UsersByRole           map[string]int              `json:"users_by_role"`
	AppointmentsByStatus  map[scheduling.Status]int   `json:"appointments_by_status"`
	PrescriptionsByStatus map[prescription.Status]int `json:"prescriptions_by_status"`
}

func (s *Service) SystemStats(ctx context.Context) (*SystemStats, error) {
	users, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	rx, err := s.prescriptions.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &SystemStats{
		UsersByRole:           users,
		AppointmentsByStatus:  appts,
		PrescriptionsByStatus: rx,
	}, nil
}

// DailyMetrics returns appointments per day over the past days (default 7).
func (s *Service) DailyMetrics(ctx context.Context, days int) (map[string]int, error) {
	return s.appointments.DailyCounts(ctx, days)
}

// ActivityFeed returns the most recent audit-trail entries.
func (s *Service) ActivityFeed(ctx context.Context, limit, offset int) ([]*activity.Entry, int, error) {
	return s.activity.ListRecent(ctx, limit, offset)
}

// SubjectActivity returns the audit trail of one user or appointment.
func (s *Service) SubjectActivity(ctx context.Context, kind string, subjectID uuid.UUID, limit, offset int) ([]*activity.Entry, int, error) {
	return s.activity.ListBySubject(ctx, kind, subjectID, limit, offset)
}

// ComponentHealth is the availability of one backing service.
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Health pings the database and the event bus. Degraded components are
// reported, not fatal.
func (s *Service) Health(ctx context.Context) map[string]ComponentHealth {
	out := make(map[string]ComponentHealth, 2)
	out["database"] = s.ping(ctx, s.dbPing)
	out["event_bus"] = s.ping(ctx, s.busPing)
	return out
}

func (s *Service) ping(ctx context.Context, p Pinger) ComponentHealth {
	if p == nil {
		return ComponentHealth{Status: "disabled"}
	}
	if err := p.Ping(ctx); err != nil {
		return ComponentHealth{Status: "down", Error: err.Error()}
	}
	return ComponentHealth{Status: "up"}
}
