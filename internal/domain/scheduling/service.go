package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediconnect/api/internal/apperr"
	"github.com/mediconnect/api/internal/domain/activity"
	"github.com/mediconnect/api/internal/platform/auth"
	"github.com/mediconnect/api/internal/platform/bus"
)

// Directory is the slice of the identity service the scheduler needs.
type Directory interface {
	IsActiveDoctor(ctx context.Context, id uuid.UUID) (bool, error)
	IsActivePatient(ctx context.Context, id uuid.UUID) (bool, error)
}

// Actor identifies the authenticated caller of a scheduling operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

type Service struct {
	repo     Repository
	users    Directory
	events   bus.Publisher
	activity activity.Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, users Directory, events bus.Publisher, rec activity.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		events:   events,
		activity: rec,
		logger:   logger,
		now:      time.Now,
	}
}

type CreateInput struct {
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Type            Type      `json:"type"`
	Notes           *string   `json:"notes"`
}

// Create books a new appointment. The doctor-side conflict pre-check and the
// insert run in one transaction; the partial unique index on
// (doctor_id, scheduled_at) remains the authority under races, and its
// violation surfaces as the same slot conflict the pre-check produces.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*Appointment, error) {
	if !auth.Authorize(actor.Role, actor.ID.String(), auth.ActionCreate, in.PatientID.String()) {
		return nil, fmt.Errorf("%w: cannot create appointments for this patient", apperr.ErrPermissionDenied)
	}

	if in.PatientID == uuid.Nil {
		return nil, apperr.Validationf("patient_id is required")
	}
	if in.DoctorID == uuid.Nil {
		return nil, apperr.Validationf("doctor_id is required")
	}
	if err := s.validateSlot(in.ScheduledAt); err != nil {
		return nil, err
	}

	duration := in.DurationMinutes
	if duration == 0 {
		duration = DefaultDurationMinutes
	}
	if duration < 0 {
		return nil, apperr.Validationf("duration_minutes must be positive, got %d", duration)
	}

	apptType := in.Type
	if apptType == "" {
		apptType = TypeConsultation
	}
	if !apptType.Valid() {
		return nil, apperr.Validationf("unknown appointment type %q", apptType)
	}

	if ok, err := s.users.IsActiveDoctor(ctx, in.DoctorID); err != nil {
		return nil, apperr.Validationf("doctor not found")
	} else if !ok {
		return nil, apperr.Validationf("doctor must be an active doctor")
	}
	if ok, err := s.users.IsActivePatient(ctx, in.PatientID); err != nil {
		return nil, apperr.Validationf("patient not found")
	} else if !ok {
		return nil, apperr.Validationf("patient must be an active patient")
	}

	a := &Appointment{
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		ScheduledAt:     in.ScheduledAt,
		DurationMinutes: duration,
		Status:          StatusScheduled,
		Type:            apptType,
		Notes:           in.Notes,
	}

	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.checkSlotFree(ctx, in.DoctorID, in.PatientID, in.ScheduledAt, uuid.Nil); err != nil {
			return err
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, a.ID, "appointment.created",
		fmt.Sprintf("doctor=%s patient=%s at=%s", a.DoctorID, a.PatientID, a.ScheduledAt.Format(time.RFC3339)))
	s.publish(ctx, bus.ChannelAppointmentCreated, a, nil)

	return a, nil
}

// Get returns an appointment visible to the actor: the patient it belongs
// to, the doctor it is assigned to, or an admin.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canRead(actor, a) {
		return nil, fmt.Errorf("%w: cannot view this appointment", apperr.ErrPermissionDenied)
	}
	return a, nil
}

// UpdateStatus applies a lifecycle transition. Only the assigned doctor or
// an admin may change status directly; patients cancel or reschedule through
// their own operations.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, next Status) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.Authorize(actor.Role, actor.ID.String(), auth.ActionUpdateStatus, a.DoctorID.String()) {
		return nil, fmt.Errorf("%w: cannot update this appointment's status", apperr.ErrPermissionDenied)
	}
	if !next.Valid() {
		return nil, apperr.Validationf("unknown status %q", next)
	}
	if !a.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, a.Status, next)
	}

	prev := a.Status
	a.Status = next
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.record(ctx, a.ID, "appointment.status_changed", fmt.Sprintf("%s -> %s", prev, next))
	s.publish(ctx, bus.ChannelAppointmentStatusChanged, a, map[string]interface{}{
		"previous_status": string(prev),
	})
	return a, nil
}

// Cancel is the patient-facing cancellation: a transition to cancelled that
// additionally requires two hours of notice (admins are exempt).
func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.Authorize(actor.Role, actor.ID.String(), auth.ActionCancel, a.PatientID.String()) {
		return nil, fmt.Errorf("%w: cannot cancel this appointment", apperr.ErrPermissionDenied)
	}
	if !a.Status.CanTransitionTo(StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, a.Status, StatusCancelled)
	}
	if actor.Role != auth.RoleAdmin && a.ScheduledAt.Sub(s.now()) < MinCancelNotice {
		return nil, apperr.Validationf("cancellation requires at least %s notice", MinCancelNotice)
	}

	prev := a.Status
	a.Status = StatusCancelled
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.record(ctx, a.ID, "appointment.cancelled", fmt.Sprintf("from %s", prev))
	s.publish(ctx, bus.ChannelAppointmentStatusChanged, a, map[string]interface{}{
		"previous_status": string(prev),
	})
	return a, nil
}

// Reschedule moves an appointment to a new time. Only allowed while the
// appointment is still scheduled; the slot checks re-run for the new time.
func (s *Service) Reschedule(ctx context.Context, actor Actor, id uuid.UUID, newTime time.Time) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.Authorize(actor.Role, actor.ID.String(), auth.ActionReschedule, a.PatientID.String()) {
		return nil, fmt.Errorf("%w: cannot reschedule this appointment", apperr.ErrPermissionDenied)
	}
	if a.Status != StatusScheduled {
		return nil, fmt.Errorf("%w: only scheduled appointments can be rescheduled, status is %s", apperr.ErrInvalidState, a.Status)
	}
	if err := s.validateSlot(newTime); err != nil {
		return nil, err
	}

	prev := a.ScheduledAt
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.checkSlotFree(ctx, a.DoctorID, a.PatientID, newTime, a.ID); err != nil {
			return err
		}
		a.ScheduledAt = newTime
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		a.ScheduledAt = prev
		return nil, err
	}

	s.record(ctx, a.ID, "appointment.rescheduled",
		fmt.Sprintf("%s -> %s", prev.Format(time.RFC3339), newTime.Format(time.RFC3339)))
	s.publish(ctx, bus.ChannelAppointmentRescheduled, a, map[string]interface{}{
		"previous_time": prev.Format(time.RFC3339),
	})
	return a, nil
}

// ListForUser returns a user's appointments ordered by time ascending:
// a patient's own bookings or a doctor's assigned ones.
func (s *Service) ListForUser(ctx context.Context, actor Actor, userID uuid.UUID, role string, limit, offset int) ([]*Appointment, int, error) {
	if !auth.Authorize(actor.Role, actor.ID.String(), auth.ActionRead, userID.String()) {
		return nil, 0, fmt.Errorf("%w: cannot list this user's appointments", apperr.ErrPermissionDenied)
	}
	switch role {
	case auth.RolePatient:
		return s.repo.ListByPatient(ctx, userID, limit, offset)
	case auth.RoleDoctor:
		return s.repo.ListByDoctor(ctx, userID, limit, offset)
	default:
		return nil, 0, apperr.Validationf("cannot list appointments for role %q", role)
	}
}

// DoctorAvailability returns the free 30-minute slots of a doctor's workday,
// excluding slots already booked and slots in the past.
func (s *Service) DoctorAvailability(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]time.Time, error) {
	if ok, err := s.users.IsActiveDoctor(ctx, doctorID); err != nil {
		return nil, apperr.Validationf("doctor not found")
	} else if !ok {
		return nil, apperr.Validationf("doctor must be an active doctor")
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	booked, err := s.repo.ListByDoctorBetween(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	taken := make(map[int64]bool, len(booked))
	for _, a := range booked {
		taken[a.ScheduledAt.Unix()] = true
	}

	now := s.now()
	free := []time.Time{}
	start := dayStart.Add(WorkdayStartHour * time.Hour)
	end := dayStart.Add(WorkdayEndHour * time.Hour)
	for slot := start; slot.Before(end); slot = slot.Add(SlotIntervalMinutes * time.Minute) {
		if !slot.After(now) {
			continue
		}
		if taken[slot.Unix()] {
			continue
		}
		free = append(free, slot)
	}
	return free, nil
}

// CountByStatus returns appointment totals per lifecycle state.
func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

// DailyCounts returns appointments per day over the past days.
func (s *Service) DailyCounts(ctx context.Context, days int) (map[string]int, error) {
	if days <= 0 {
		days = 7
	}
	since := s.now().AddDate(0, 0, -days)
	return s.repo.CountPerDay(ctx, since)
}

// validateSlot enforces the booking window: strictly future, within the
// scheduling horizon, on a 30-minute boundary inside working hours.
func (s *Service) validateSlot(t time.Time) error {
	now := s.now()
	if t.IsZero() {
		return apperr.Validationf("scheduled_at is required")
	}
	if !t.After(now) {
		return apperr.Validationf("scheduled_at must be in the future")
	}
	if t.After(now.AddDate(0, 0, MaxHorizonDays)) {
		return apperr.Validationf("appointments can be booked at most %d days ahead", MaxHorizonDays)
	}
	if t.Minute()%SlotIntervalMinutes != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return apperr.Validationf("scheduled_at must align to %d-minute slots", SlotIntervalMinutes)
	}
	if t.Hour() < WorkdayStartHour || t.Hour() >= WorkdayEndHour {
		return apperr.Validationf("appointments must start between %02d:00 and %02d:00", WorkdayStartHour, WorkdayEndHour)
	}
	return nil
}

// checkSlotFree is the pre-check on both sides of the booking. exclude
// skips the appointment being rescheduled.
func (s *Service) checkSlotFree(ctx context.Context, doctorID, patientID uuid.UUID, at time.Time, exclude uuid.UUID) error {
	if existing, err := s.repo.FindDoctorAt(ctx, doctorID, at); err != nil {
		return err
	} else if existing != nil && existing.ID != exclude {
		return fmt.Errorf("%w: doctor already booked at this time", apperr.ErrSlotConflict)
	}
	if existing, err := s.repo.FindPatientAt(ctx, patientID, at); err != nil {
		return err
	} else if existing != nil && existing.ID != exclude {
		return fmt.Errorf("%w: patient already has an appointment at this time", apperr.ErrSlotConflict)
	}
	return nil
}

func (s *Service) canRead(actor Actor, a *Appointment) bool {
	return auth.Authorize(actor.Role, actor.ID.String(), auth.ActionRead, a.PatientID.String()) ||
		auth.Authorize(actor.Role, actor.ID.String(), auth.ActionRead, a.DoctorID.String())
}

func (s *Service) record(ctx context.Context, apptID uuid.UUID, action, details string) {
	if s.activity == nil {
		return
	}
	e := &activity.Entry{SubjectKind: activity.SubjectAppointment, SubjectID: apptID, Action: action, Details: details}
	if err := s.activity.Record(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}

func (s *Service) publish(ctx context.Context, channel string, a *Appointment, extra map[string]interface{}) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"appointment_id": a.ID.String(),
		"patient_id":     a.PatientID.String(),
		"doctor_id":      a.DoctorID.String(),
		"scheduled_at":   a.ScheduledAt.Format(time.RFC3339),
		"status":         string(a.Status),
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.events.Publish(ctx, bus.NewEvent(channel, payload)); err != nil {
		s.logger.Warn().Err(err).Str("channel", channel).Msg("failed to publish event")
	}
}
