package ehr

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediconnect/api/internal/apperr"
	"github.com/mediconnect/api/internal/platform/auth"
)

type mockRepo struct {
	records map[uuid.UUID]*Record
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*Record)}
}

func (m *mockRepo) Create(ctx context.Context, r *Record) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, apperr.NotFoundf("record")
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) Update(ctx context.Context, r *Record) error {
	if _, ok := m.records[r.ID]; !ok {
		return apperr.NotFoundf("record")
	}
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var items []*Record
	for _, r := range m.records {
		if r.PatientID == patientID {
			cp := *r
			items = append(items, &cp)
		}
	}
	sortByDateDesc(items)
	return items, len(items), nil
}

func (m *mockRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var items []*Record
	for _, r := range m.records {
		if r.DoctorID == doctorID {
			cp := *r
			items = append(items, &cp)
		}
	}
	sortByDateDesc(items)
	return items, len(items), nil
}

func (m *mockRepo) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Record, int, error) {
	var items []*Record
	for _, r := range m.records {
		if f.PatientID != uuid.Nil && r.PatientID != f.PatientID {
			continue
		}
		if f.Diagnosis != "" && !strings.Contains(strings.ToLower(r.Diagnosis), strings.ToLower(f.Diagnosis)) {
			continue
		}
		if !f.From.IsZero() && r.ConsultationDate.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !r.ConsultationDate.Before(f.To) {
			continue
		}
		cp := *r
		items = append(items, &cp)
	}
	sortByDateDesc(items)
	return items, len(items), nil
}

func (m *mockRepo) PatientStats(ctx context.Context, patientID uuid.UUID) (*PatientStats, error) {
	s := &PatientStats{}
	doctors := make(map[uuid.UUID]bool)
	for _, r := range m.records {
		if r.PatientID != patientID {
			continue
		}
		s.TotalRecords++
		doctors[r.DoctorID] = true
		d := r.ConsultationDate
		if s.FirstConsultation == nil || d.Before(*s.FirstConsultation) {
			cp := d
			s.FirstConsultation = &cp
		}
		if s.LastConsultation == nil || d.After(*s.LastConsultation) {
			cp := d
			s.LastConsultation = &cp
		}
	}
	s.DistinctDoctors = len(doctors)
	return s, nil
}

func sortByDateDesc(items []*Record) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].ConsultationDate.After(items[j].ConsultationDate)
	})
}

type mockDirectory struct {
	doctors  map[uuid.UUID]bool
	patients map[uuid.UUID]bool
}

func (m *mockDirectory) IsActiveDoctor(ctx context.Context, id uuid.UUID) (bool, error) {
	active, ok := m.doctors[id]
	if !ok {
		return false, apperr.NotFoundf("user")
	}
	return active, nil
}

func (m *mockDirectory) IsActivePatient(ctx context.Context, id uuid.UUID) (bool, error) {
	active, ok := m.patients[id]
	if !ok {
		return false, apperr.NotFoundf("user")
	}
	return active, nil
}

type fixture struct {
	svc       *Service
	repo      *mockRepo
	dir       *mockDirectory
	now       time.Time
	patientID uuid.UUID
	doctorID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMockRepo()
	dir := &mockDirectory{doctors: make(map[uuid.UUID]bool), patients: make(map[uuid.UUID]bool)}
	svc := NewService(repo, dir, zerolog.Nop())

	now := time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	f := &fixture{svc: svc, repo: repo, dir: dir, now: now,
		patientID: uuid.New(), doctorID: uuid.New()}
	dir.patients[f.patientID] = true
	dir.doctors[f.doctorID] = true
	return f
}

func (f *fixture) patient() Actor { return Actor{ID: f.patientID, Role: auth.RolePatient} }
func (f *fixture) doctor() Actor  { return Actor{ID: f.doctorID, Role: auth.RoleDoctor} }
func (f *fixture) admin() Actor   { return Actor{ID: uuid.New(), Role: auth.RoleAdmin} }

func (f *fixture) create(t *testing.T, daysAgo int, diagnosis string) *Record {
	t.Helper()
	rec, err := f.svc.Create(context.Background(), f.doctor(), CreateInput{
		PatientID:        f.patientID,
		ConsultationDate: f.now.AddDate(0, 0, -daysAgo),
		Symptoms:         "persistent cough",
		Diagnosis:        diagnosis,
		TreatmentPlan:    "rest and fluids",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return rec
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, 1, "bronchitis")

	if rec.DoctorID != f.doctorID {
		t.Errorf("author must be the acting doctor, got %s", rec.DoctorID)
	}
	if rec.ID == uuid.Nil {
		t.Error("expected an assigned id")
	}
}

func TestCreate_OnlyDoctors(t *testing.T) {
	f := newFixture(t)
	in := CreateInput{
		PatientID:        f.patientID,
		ConsultationDate: f.now.AddDate(0, 0, -1),
		Symptoms:         "cough",
		Diagnosis:        "bronchitis",
	}

	if _, err := f.svc.Create(context.Background(), f.patient(), in); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("expected permission denied for patient, got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), f.admin(), in); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("expected permission denied for admin, got %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing patient", CreateInput{ConsultationDate: f.now, Symptoms: "x", Diagnosis: "y"}},
		{"missing date", CreateInput{PatientID: f.patientID, Symptoms: "x", Diagnosis: "y"}},
		{"future date", CreateInput{PatientID: f.patientID, ConsultationDate: f.now.AddDate(0, 0, 1), Symptoms: "x", Diagnosis: "y"}},
		{"missing symptoms", CreateInput{PatientID: f.patientID, ConsultationDate: f.now.AddDate(0, 0, -1), Diagnosis: "y"}},
		{"missing diagnosis", CreateInput{PatientID: f.patientID, ConsultationDate: f.now.AddDate(0, 0, -1), Symptoms: "x"}},
	}
	for _, tc := range cases {
		if _, err := f.svc.Create(ctx, f.doctor(), tc.in); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestGet_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.create(t, 1, "bronchitis")

	if _, err := f.svc.Get(ctx, f.patient(), rec.ID); err != nil {
		t.Errorf("owning patient should read: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.doctor(), rec.ID); err != nil {
		t.Errorf("authoring doctor should read: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.admin(), rec.ID); err != nil {
		t.Errorf("admin should read: %v", err)
	}

	stranger := Actor{ID: uuid.New(), Role: auth.RolePatient}
	if _, err := f.svc.Get(ctx, stranger, rec.ID); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("expected permission denied for another patient, got %v", err)
	}
	otherDoctor := Actor{ID: uuid.New(), Role: auth.RoleDoctor}
	if _, err := f.svc.Get(ctx, otherDoctor, rec.ID); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("expected permission denied for a non-authoring doctor, got %v", err)
	}
}

func TestPatientHistory_Ordering(t *testing.T) {
	f := newFixture(t)
	f.create(t, 30, "flu")
	f.create(t, 1, "bronchitis")
	f.create(t, 10, "sinusitis")

	items, total, err := f.svc.PatientHistory(context.Background(), f.patient(), f.patientID, 20, 0)
	if err != nil {
		t.Fatalf("PatientHistory() error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 records, got %d", total)
	}
	for i := 1; i < len(items); i++ {
		if items[i].ConsultationDate.After(items[i-1].ConsultationDate) {
			t.Error("expected descending order by consultation_date")
		}
	}
}

func TestPatientHistory_CrossReadDenied(t *testing.T) {
	f := newFixture(t)
	stranger := Actor{ID: uuid.New(), Role: auth.RolePatient}
	_, _, err := f.svc.PatientHistory(context.Background(), stranger, f.patientID, 20, 0)
	if !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("expected permission denied, got %v", err)
	}
}

func TestDoctorRecords_OwnOnly(t *testing.T) {
	f := newFixture(t)
	f.create(t, 1, "bronchitis")

	if _, _, err := f.svc.DoctorRecords(context.Background(), f.doctor(), f.doctorID, 20, 0); err != nil {
		t.Errorf("doctor should list own records: %v", err)
	}

	other := Actor{ID: uuid.New(), Role: auth.RoleDoctor}
	if _, _, err := f.svc.DoctorRecords(context.Background(), other, f.doctorID, 20, 0); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("expected permission denied for another doctor, got %v", err)
	}
	if _, _, err := f.svc.DoctorRecords(context.Background(), f.admin(), f.doctorID, 20, 0); err != nil {
		t.Errorf("admin should list any doctor's records: %v", err)
	}
}

func TestUpdate_AuthoringDoctorOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.create(t, 1, "bronchitis")

	diag := "acute bronchitis"
	updated, err := f.svc.Update(ctx, f.doctor(), rec.ID, UpdateInput{Diagnosis: &diag})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Diagnosis != diag {
		t.Errorf("expected updated diagnosis, got %s", updated.Diagnosis)
	}

	other := Actor{ID: uuid.New(), Role: auth.RoleDoctor}
	if _, err := f.svc.Update(ctx, other, rec.ID, UpdateInput{Diagnosis: &diag}); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("expected permission denied for a non-authoring doctor, got %v", err)
	}

	empty := "  "
	if _, err := f.svc.Update(ctx, f.doctor(), rec.ID, UpdateInput{Diagnosis: &empty}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for blank diagnosis, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, 30, "influenza type A")
	f.create(t, 10, "bronchitis")
	f.create(t, 1, "chronic bronchitis")

	items, total, err := f.svc.Search(ctx, f.doctor(), SearchFilter{Diagnosis: "bronchitis"}, 20, 0)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 matches, got %d", total)
	}

	// Date range picks up only the middle record
	_, total, err = f.svc.Search(ctx, f.doctor(), SearchFilter{
		From: f.now.AddDate(0, 0, -15),
		To:   f.now.AddDate(0, 0, -5),
	}, 20, 0)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 match in range, got %d", total)
	}

	// Inverted range is a validation error
	if _, _, err := f.svc.Search(ctx, f.doctor(), SearchFilter{
		From: f.now, To: f.now.AddDate(0, 0, -5),
	}, 20, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for inverted range, got %v", err)
	}
}

func TestSearch_PatientScopedToSelf(t *testing.T) {
	f := newFixture(t)
	f.create(t, 1, "bronchitis")

	// A second patient with their own record
	otherPatient := uuid.New()
	f.dir.patients[otherPatient] = true
	if _, err := f.svc.Create(context.Background(), f.doctor(), CreateInput{
		PatientID:        otherPatient,
		ConsultationDate: f.now.AddDate(0, 0, -2),
		Symptoms:         "headache",
		Diagnosis:        "bronchitis",
	}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	items, _, err := f.svc.Search(context.Background(), f.patient(), SearchFilter{Diagnosis: "bronchitis"}, 20, 0)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	for _, r := range items {
		if r.PatientID != f.patientID {
			t.Error("patient search must be scoped to the patient's own records")
		}
	}
	if len(items) != 1 {
		t.Errorf("expected 1 own record, got %d", len(items))
	}
}

func TestPatientStatistics(t *testing.T) {
	f := newFixture(t)
	f.create(t, 30, "flu")
	f.create(t, 1, "bronchitis")

	stats, err := f.svc.PatientStatistics(context.Background(), f.patient(), f.patientID)
	if err != nil {
		t.Fatalf("PatientStatistics() error: %v", err)
	}
	if stats.TotalRecords != 2 {
		t.Errorf("expected 2 records, got %d", stats.TotalRecords)
	}
	if stats.DistinctDoctors != 1 {
		t.Errorf("expected 1 distinct doctor, got %d", stats.DistinctDoctors)
	}
	if stats.FirstConsultation == nil || !stats.FirstConsultation.Equal(f.now.AddDate(0, 0, -30)) {
		t.Error("unexpected first consultation date")
	}

	stranger := Actor{ID: uuid.New(), Role: auth.RolePatient}
	if _, err := f.svc.PatientStatistics(context.Background(), stranger, f.patientID); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("expected permission denied, got %v", err)
	}
}
