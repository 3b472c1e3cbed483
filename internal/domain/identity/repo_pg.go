package identity

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

const userCols = `id, email, password_hash, first_name, last_name, role,
	date_of_birth, phone, address, specialty, license_number, active, created_at, updated_at`

func (r *repoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role,
		&u.DateOfBirth, &u.Phone, &u.Address, &u.Specialty, &u.LicenseNumber, &u.Active,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("user")
	}
	return &u, err
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role,
			date_of_birth, phone, address, specialty, license_number, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role,
		u.DateOfBirth, u.Phone, u.Address, u.Specialty, u.LicenseNumber, u.Active)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: email %s", apperr.ErrDuplicate, u.Email)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET password_hash=$2, first_name=$3, last_name=$4,
			date_of_birth=$5, phone=$6, address=$7, specialty=$8, license_number=$9,
			active=$10, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.PasswordHash, u.FirstName, u.LastName,
		u.DateOfBirth, u.Phone, u.Address, u.Specialty, u.LicenseNumber, u.Active)
	return err
}

func (r *repoPG) ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users WHERE role = $1 ORDER BY last_name, first_name LIMIT $2 OFFSET $3`,
		role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *repoPG) ListDoctors(ctx context.Context, specialty string, limit, offset int) ([]*User, int, error) {
	query := `SELECT ` + userCols + ` FROM users WHERE role = 'doctor' AND active`
	countQuery := `SELECT COUNT(*) FROM users WHERE role = 'doctor' AND active`
	var args []interface{}
	idx := 1

	if specialty != "" {
		query += fmt.Sprintf(` AND specialty = $%d`, idx)
		countQuery += fmt.Sprintf(` AND specialty = $%d`, idx)
		args = append(args, specialty)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*User, int, error) {
	pattern := "%" + query + "%"
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM users
		 WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1`,
		pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users
		 WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1
		 ORDER BY last_name, first_name LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *repoPG) CountByRole(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) collect(rows pgx.Rows, total int) ([]*User, int, error) {
	var items []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}
