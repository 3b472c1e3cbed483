package bus

import (
	"context"
	"testing"
)

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"appointment_id": "appt-1",
		"doctor_id":      "doc-1",
	}
	evt := NewEvent(ChannelAppointmentCreated, payload)

	if evt.ID == "" {
		t.Error("expected generated event ID")
	}
	if evt.Channel != ChannelAppointmentCreated {
		t.Errorf("expected channel %s, got %s", ChannelAppointmentCreated, evt.Channel)
	}
	if evt.OccurredAt.IsZero() {
		t.Error("expected occurred_at to be set")
	}
	if evt.Payload["appointment_id"] != "appt-1" {
		t.Error("payload not carried through")
	}
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	a := NewEvent(ChannelAppointmentCreated, nil)
	b := NewEvent(ChannelAppointmentCreated, nil)
	if a.ID == b.ID {
		t.Error("expected unique event IDs")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), NewEvent(ChannelPrescriptionCreated, nil)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
