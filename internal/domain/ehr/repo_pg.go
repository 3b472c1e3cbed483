package ehr

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnect/api/internal/apperr"
	"github.com/mediconnect/api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, patient_id, doctor_id, appointment_id, consultation_date, symptoms, diagnosis, treatment_plan, prescription_id, notes, follow_up_date, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.AppointmentID,
		&rec.ConsultationDate, &rec.Symptoms, &rec.Diagnosis, &rec.TreatmentPlan,
		&rec.PrescriptionID, &rec.Notes, &rec.FollowUpDate, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("record")
	}
	return &rec, err
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO ehr_records (id, patient_id, doctor_id, appointment_id, consultation_date,
			symptoms, diagnosis, treatment_plan, prescription_id, notes, follow_up_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.AppointmentID, rec.ConsultationDate,
		rec.Symptoms, rec.Diagnosis, rec.TreatmentPlan, rec.PrescriptionID, rec.Notes, rec.FollowUpDate)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM ehr_records WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE ehr_records
		SET symptoms=$2, diagnosis=$3, treatment_plan=$4, prescription_id=$5, notes=$6, follow_up_date=$7
		WHERE id = $1`,
		rec.ID, rec.Symptoms, rec.Diagnosis, rec.TreatmentPlan, rec.PrescriptionID, rec.Notes, rec.FollowUpDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("record")
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return r.list(ctx, `patient_id`, patientID, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return r.list(ctx, `doctor_id`, doctorID, limit, offset)
}

func (r *repoPG) list(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM ehr_records WHERE `+column+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM ehr_records WHERE `+column+` = $1
		 ORDER BY consultation_date DESC LIMIT $2 OFFSET $3`,
		id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectRecords(rows)
	return items, total, err
}

func (r *repoPG) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Record, int, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	n := 0
	next := func(v interface{}) string {
		args = append(args, v)
		n++
		return fmt.Sprintf("$%d", n)
	}

	if f.PatientID != uuid.Nil {
		where += ` AND patient_id = ` + next(f.PatientID)
	}
	if f.Diagnosis != "" {
		where += ` AND diagnosis ILIKE ` + next("%"+f.Diagnosis+"%")
	}
	if !f.From.IsZero() {
		where += ` AND consultation_date >= ` + next(f.From)
	}
	if !f.To.IsZero() {
		where += ` AND consultation_date < ` + next(f.To)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM ehr_records `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordCols + ` FROM ehr_records ` + where +
		` ORDER BY consultation_date DESC LIMIT ` + next(limit) + ` OFFSET ` + next(offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectRecords(rows)
	return items, total, err
}

func (r *repoPG) PatientStats(ctx context.Context, patientID uuid.UUID) (*PatientStats, error) {
	var s PatientStats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT doctor_id), MIN(consultation_date), MAX(consultation_date)
		FROM ehr_records WHERE patient_id = $1`, patientID).
		Scan(&s.TotalRecords, &s.DistinctDoctors, &s.FirstConsultation, &s.LastConsultation)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectRecords(rows pgx.Rows) ([]*Record, error) {
	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
