package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, true},

		{StatusScheduled, StatusCompleted, false},
		{StatusConfirmed, StatusScheduled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusCompleted, StatusScheduled, false},
		{StatusCompleted, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusScheduled, StatusScheduled, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("pending").Valid() {
		t.Error("pending is not a known status")
	}
	if Status("").Valid() {
		t.Error("empty status is not valid")
	}
}

func TestTypeValid(t *testing.T) {
	for _, ty := range []Type{TypeConsultation, TypeFollowUp, TypeEmergency} {
		if !ty.Valid() {
			t.Errorf("%s should be valid", ty)
		}
	}
	if Type("surgery").Valid() {
		t.Error("surgery is not a known type")
	}
}

func TestAppointmentEndTime(t *testing.T) {
	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	a := &Appointment{
		ID:              uuid.New(),
		ScheduledAt:     start,
		DurationMinutes: 45,
	}
	want := start.Add(45 * time.Minute)
	if !a.EndTime().Equal(want) {
		t.Errorf("EndTime() = %v, want %v", a.EndTime(), want)
	}
}
