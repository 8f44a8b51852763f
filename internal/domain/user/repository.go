package user

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository persists the local user projection.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// Upsert inserts the user or overwrites role, name and email.
	Upsert(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
}
