package identity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
	ListDoctors(ctx context.Context, specialty string, limit, offset int) ([]*User, int, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*User, int, error)
	CountByRole(ctx context.Context) (map[string]int, error)
}
