package prescription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediconnect/api/internal/apperr"
	"github.com/mediconnect/api/internal/platform/auth"
	"github.com/mediconnect/api/internal/platform/bus"
)

// Directory is the slice of the identity service the prescriber needs.
type Directory interface {
	IsActiveDoctor(ctx context.Context, id uuid.UUID) (bool, error)
	IsActivePatient(ctx context.Context, id uuid.UUID) (bool, error)
}

// Actor identifies the authenticated caller of a prescription operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

type Service struct {
	repo   Repository
	users  Directory
	events bus.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, users Directory, events bus.Publisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, users: users, events: events, logger: logger, now: time.Now}
}

type CreateInput struct {
	PatientID      uuid.UUID  `json:"patient_id"`
	EHRID          *uuid.UUID `json:"ehr_id"`
	MedicationName string     `json:"medication_name"`
	Dosage         string     `json:"dosage"`
	Frequency      string     `json:"frequency"`
	DurationDays   int        `json:"duration_days"`
	Instructions   *string    `json:"instructions"`
	Refills        int        `json:"refills"`
}

// Create issues a new prescription, authored by the acting doctor.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*Prescription, error) {
	if actor.Role != auth.RoleDoctor {
		return nil, fmt.Errorf("%w: only doctors issue prescriptions", apperr.ErrPermissionDenied)
	}
	if ok, err := s.users.IsActiveDoctor(ctx, actor.ID); err != nil || !ok {
		return nil, fmt.Errorf("%w: prescriber must be an active doctor", apperr.ErrPermissionDenied)
	}

	if in.PatientID == uuid.Nil {
		return nil, apperr.Validationf("patient_id is required")
	}
	if ok, err := s.users.IsActivePatient(ctx, in.PatientID); err != nil {
		return nil, apperr.Validationf("patient not found")
	} else if !ok {
		return nil, apperr.Validationf("patient must be an active patient")
	}
	if strings.TrimSpace(in.MedicationName) == "" {
		return nil, apperr.Validationf("medication_name is required")
	}
	if strings.TrimSpace(in.Dosage) == "" {
		return nil, apperr.Validationf("dosage is required")
	}
	if strings.TrimSpace(in.Frequency) == "" {
		return nil, apperr.Validationf("frequency is required")
	}
	if in.DurationDays <= 0 {
		return nil, apperr.Validationf("duration_days must be positive, got %d", in.DurationDays)
	}
	if in.Refills < 0 {
		return nil, apperr.Validationf("refills cannot be negative")
	}

	p := &Prescription{
		PatientID:        in.PatientID,
		DoctorID:         actor.ID,
		EHRID:            in.EHRID,
		MedicationName:   strings.TrimSpace(in.MedicationName),
		Dosage:           strings.TrimSpace(in.Dosage),
		Frequency:        strings.TrimSpace(in.Frequency),
		DurationDays:     in.DurationDays,
		Instructions:     in.Instructions,
		PrescribedDate:   s.now(),
		Status:           StatusActive,
		RefillsRemaining: in.Refills,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.publish(ctx, p)
	return p, nil
}

// Get returns a prescription visible to the actor: the patient it belongs
// to, the prescribing doctor, or an admin.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canRead(actor, p) {
		return nil, fmt.Errorf("%w: cannot view this prescription", apperr.ErrPermissionDenied)
	}
	return p, nil
}

// PatientPrescriptions lists a patient's prescriptions, optionally filtered
// by status.
func (s *Service) PatientPrescriptions(ctx context.Context, actor Actor, patientID uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error) {
	if actor.Role == auth.RolePatient && actor.ID != patientID {
		return nil, 0, fmt.Errorf("%w: cannot view another patient's prescriptions", apperr.ErrPermissionDenied)
	}
	if status != "" && !status.Valid() {
		return nil, 0, apperr.Validationf("unknown status %q", status)
	}
	return s.repo.ListByPatient(ctx, patientID, status, limit, offset)
}

// DoctorPrescriptions lists the prescriptions a doctor has issued.
func (s *Service) DoctorPrescriptions(ctx context.Context, actor Actor, doctorID uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error) {
	if actor.Role != auth.RoleAdmin && actor.ID != doctorID {
		return nil, 0, fmt.Errorf("%w: cannot view another doctor's prescriptions", apperr.ErrPermissionDenied)
	}
	if status != "" && !status.Valid() {
		return nil, 0, apperr.Validationf("unknown status %q", status)
	}
	return s.repo.ListByDoctor(ctx, doctorID, status, limit, offset)
}

// ActivePrescriptions is the patient-facing shortcut for current medication.
func (s *Service) ActivePrescriptions(ctx context.Context, actor Actor, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.PatientPrescriptions(ctx, actor, patientID, StatusActive, limit, offset)
}

// UpdateStatus moves a prescription out of the active state. Only the
// prescribing doctor or an admin.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, next Status) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleAdmin && actor.ID != p.DoctorID {
		return nil, fmt.Errorf("%w: only the prescribing doctor may change this prescription", apperr.ErrPermissionDenied)
	}
	if !next.Valid() {
		return nil, apperr.Validationf("unknown status %q", next)
	}
	if !p.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, p.Status, next)
	}

	p.Status = next
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Refill consumes one remaining refill. Allowed to the patient, the
// prescribing doctor, or an admin, while the prescription is active.
func (s *Service) Refill(ctx context.Context, actor Actor, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canRead(actor, p) {
		return nil, fmt.Errorf("%w: cannot refill this prescription", apperr.ErrPermissionDenied)
	}
	if p.Status != StatusActive {
		return nil, fmt.Errorf("%w: only active prescriptions can be refilled, status is %s", apperr.ErrInvalidState, p.Status)
	}
	if p.RefillsRemaining <= 0 {
		return nil, apperr.Validationf("no refills remaining")
	}

	p.RefillsRemaining--
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CountByStatus returns prescription totals per state.
func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *Service) canRead(actor Actor, p *Prescription) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleDoctor:
		return actor.ID == p.DoctorID
	case auth.RolePatient:
		return actor.ID == p.PatientID
	default:
		return false
	}
}

func (s *Service) publish(ctx context.Context, p *Prescription) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"prescription_id": p.ID.String(),
		"patient_id":      p.PatientID.String(),
		"doctor_id":       p.DoctorID.String(),
		"medication_name": p.MedicationName,
		"duration_days":   p.DurationDays,
	}
	if err := s.events.Publish(ctx, bus.NewEvent(bus.ChannelPrescriptionCreated, payload)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish prescription event")
	}
}
