package prescription

import (
	"context"
	"errors"
	"strconv"

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

const rxCols = `id, patient_id, doctor_id, ehr_id, medication_name, dosage, frequency, duration_days, instructions, prescribed_date, status, refills_remaining, created_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.EHRID, &p.MedicationName,
		&p.Dosage, &p.Frequency, &p.DurationDays, &p.Instructions, &p.PrescribedDate,
		&p.Status, &p.RefillsRemaining, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("prescription")
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescriptions (id, patient_id, doctor_id, ehr_id, medication_name, dosage,
			frequency, duration_days, instructions, prescribed_date, status, refills_remaining)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.PatientID, p.DoctorID, p.EHRID, p.MedicationName, p.Dosage,
		p.Frequency, p.DurationDays, p.Instructions, p.PrescribedDate, p.Status, p.RefillsRemaining)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET status=$2, refills_remaining=$3, instructions=$4
		WHERE id = $1`,
		p.ID, p.Status, p.RefillsRemaining, p.Instructions)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("prescription")
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error) {
	return r.list(ctx, `patient_id`, patientID, status, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error) {
	return r.list(ctx, `doctor_id`, doctorID, status, limit, offset)
}

func (r *repoPG) list(ctx context.Context, column string, id uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error) {
	where := `WHERE ` + column + ` = $1`
	args := []interface{}{id}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM prescriptions `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limArgs := append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+rxCols+` FROM prescriptions `+where+
			` ORDER BY prescribed_date DESC LIMIT $`+strconv.Itoa(len(args)+1)+` OFFSET $`+strconv.Itoa(len(args)+2),
		limArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT status, COUNT(*) FROM prescriptions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}
