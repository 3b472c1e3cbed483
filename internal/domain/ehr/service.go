package ehr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediconnect/api/internal/apperr"
	"github.com/mediconnect/api/internal/platform/auth"
)

// Directory is the slice of the identity service the record keeper needs.
type Directory interface {
	IsActiveDoctor(ctx context.Context, id uuid.UUID) (bool, error)
	IsActivePatient(ctx context.Context, id uuid.UUID) (bool, error)
}

// Actor identifies the authenticated caller of a record operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

type Service struct {
	repo   Repository
	users  Directory
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, users Directory, logger zerolog.Logger) *Service {
	return &Service{repo: repo, users: users, logger: logger, now: time.Now}
}

type CreateInput struct {
	PatientID        uuid.UUID  `json:"patient_id"`
	AppointmentID    *uuid.UUID `json:"appointment_id"`
	ConsultationDate time.Time  `json:"consultation_date"`
	Symptoms         string     `json:"symptoms"`
	Diagnosis        string     `json:"diagnosis"`
	TreatmentPlan    string     `json:"treatment_plan"`
	PrescriptionID   *uuid.UUID `json:"prescription_id"`
	Notes            *string    `json:"notes"`
	FollowUpDate     *time.Time `json:"follow_up_date"`
}

// Create writes a new clinical record. Only doctors write records, always
// under their own name; the treating doctor is the author.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*Record, error) {
	if actor.Role != auth.RoleDoctor {
		return nil, fmt.Errorf("%w: only doctors create clinical records", apperr.ErrPermissionDenied)
	}
	if ok, err := s.users.IsActiveDoctor(ctx, actor.ID); err != nil || !ok {
		return nil, fmt.Errorf("%w: author must be an active doctor", apperr.ErrPermissionDenied)
	}

	if in.PatientID == uuid.Nil {
		return nil, apperr.Validationf("patient_id is required")
	}
	if ok, err := s.users.IsActivePatient(ctx, in.PatientID); err != nil {
		return nil, apperr.Validationf("patient not found")
	} else if !ok {
		return nil, apperr.Validationf("patient must be an active patient")
	}
	if in.ConsultationDate.IsZero() {
		return nil, apperr.Validationf("consultation_date is required")
	}
	if in.ConsultationDate.After(s.now()) {
		return nil, apperr.Validationf("consultation_date cannot be in the future")
	}
	if strings.TrimSpace(in.Symptoms) == "" {
		return nil, apperr.Validationf("symptoms are required")
	}
	if strings.TrimSpace(in.Diagnosis) == "" {
		return nil, apperr.Validationf("diagnosis is required")
	}

	rec := &Record{
		PatientID:        in.PatientID,
		DoctorID:         actor.ID,
		AppointmentID:    in.AppointmentID,
		ConsultationDate: in.ConsultationDate,
		Symptoms:         strings.TrimSpace(in.Symptoms),
		Diagnosis:        strings.TrimSpace(in.Diagnosis),
		TreatmentPlan:    strings.TrimSpace(in.TreatmentPlan),
		PrescriptionID:   in.PrescriptionID,
		Notes:            in.Notes,
		FollowUpDate:     in.FollowUpDate,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns a record visible to the actor: the patient it belongs to,
// the doctor who wrote it, any doctor treating the patient, or an admin.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canRead(actor, rec) {
		return nil, fmt.Errorf("%w: cannot view this record", apperr.ErrPermissionDenied)
	}
	return rec, nil
}

// PatientHistory lists a patient's records, most recent consultation first.
func (s *Service) PatientHistory(ctx context.Context, actor Actor, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	if actor.Role == auth.RolePatient && actor.ID != patientID {
		return nil, 0, fmt.Errorf("%w: cannot view another patient's history", apperr.ErrPermissionDenied)
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// DoctorRecords lists the records a doctor has written.
func (s *Service) DoctorRecords(ctx context.Context, actor Actor, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	if actor.Role != auth.RoleAdmin && actor.ID != doctorID {
		return nil, 0, fmt.Errorf("%w: cannot view another doctor's records", apperr.ErrPermissionDenied)
	}
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

type UpdateInput struct {
	Symptoms       *string    `json:"symptoms"`
	Diagnosis      *string    `json:"diagnosis"`
	TreatmentPlan  *string    `json:"treatment_plan"`
	PrescriptionID *uuid.UUID `json:"prescription_id"`
	Notes          *string    `json:"notes"`
	FollowUpDate   *time.Time `json:"follow_up_date"`
}

// Update amends a record. Only the authoring doctor or an admin.
func (s *Service) Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateInput) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleAdmin && actor.ID != rec.DoctorID {
		return nil, fmt.Errorf("%w: only the authoring doctor may amend a record", apperr.ErrPermissionDenied)
	}

	if in.Symptoms != nil {
		if strings.TrimSpace(*in.Symptoms) == "" {
			return nil, apperr.Validationf("symptoms cannot be empty")
		}
		rec.Symptoms = strings.TrimSpace(*in.Symptoms)
	}
	if in.Diagnosis != nil {
		if strings.TrimSpace(*in.Diagnosis) == "" {
			return nil, apperr.Validationf("diagnosis cannot be empty")
		}
		rec.Diagnosis = strings.TrimSpace(*in.Diagnosis)
	}
	if in.TreatmentPlan != nil {
		rec.TreatmentPlan = strings.TrimSpace(*in.TreatmentPlan)
	}
	if in.PrescriptionID != nil {
		rec.PrescriptionID = in.PrescriptionID
	}
	if in.Notes != nil {
		rec.Notes = in.Notes
	}
	if in.FollowUpDate != nil {
		rec.FollowUpDate = in.FollowUpDate
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Search finds records by diagnosis text and date range. Patients may only
// search within their own history; the patient filter is forced to the
// actor for them.
func (s *Service) Search(ctx context.Context, actor Actor, f SearchFilter, limit, offset int) ([]*Record, int, error) {
	if actor.Role == auth.RolePatient {
		f.PatientID = actor.ID
	}
	if f.Diagnosis == "" && f.From.IsZero() && f.To.IsZero() && f.PatientID == uuid.Nil {
		return nil, 0, apperr.Validationf("at least one search filter is required")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, apperr.Validationf("date range is inverted")
	}
	return s.repo.Search(ctx, f, limit, offset)
}

// PatientStatistics summarizes a patient's history. Owner or admin; any
// doctor may consult the statistics of patients they treat.
func (s *Service) PatientStatistics(ctx context.Context, actor Actor, patientID uuid.UUID) (*PatientStats, error) {
	if actor.Role == auth.RolePatient && actor.ID != patientID {
		return nil, fmt.Errorf("%w: cannot view another patient's statistics", apperr.ErrPermissionDenied)
	}
	return s.repo.PatientStats(ctx, patientID)
}

func (s *Service) canRead(actor Actor, rec *Record) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleDoctor:
		return actor.ID == rec.DoctorID
	case auth.RolePatient:
		return actor.ID == rec.PatientID
	default:
		return false
	}
}
