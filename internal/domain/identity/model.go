package identity

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the users table. One table covers patients, doctors and
// admins; the doctor-only columns stay NULL for other roles.
type User struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	Role          string     `db:"role" json:"role"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	Address       *string    `db:"address" json:"address,omitempty"`
	Specialty     *string    `db:"specialty" json:"specialty,omitempty"`
	LicenseNumber *string    `db:"license_number" json:"license_number,omitempty"`
	Active        bool       `db:"active" json:"active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// TokenPair is the access/refresh pair returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
