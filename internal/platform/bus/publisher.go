package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event channels for domain events.
const (
	ChannelAppointmentCreated       = "appointment.created"
	ChannelAppointmentStatusChanged = "appointment.status_changed"
	ChannelAppointmentRescheduled   = "appointment.rescheduled"
	ChannelPrescriptionCreated      = "prescription.created"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID         string                 `json:"id"`
	Channel    string                 `json:"channel"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// NewEvent builds an event envelope for the given channel.
func NewEvent(channel string, payload map[string]interface{}) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Channel:    channel,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher publishes domain events. Publishing is best-effort from the
// caller's point of view: services log failures but do not roll back the
// state change that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NopPublisher discards events. Used in tests and when no Redis is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event *Event) error { return nil }
func (NopPublisher) Close() error                                    { return nil }
