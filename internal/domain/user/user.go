package user

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
)

// User is the local projection of an identity-service account. Publications
// and applications are not stored here; they are computed from the pet and
// adoption collections when a profile is read.
type User struct {
	id          uuid.UUID
	role        auth.Role
	displayName string
	email       string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewUser validates and creates a User.
func NewUser(id uuid.UUID, role auth.Role, displayName, email string) (*User, error) {
	if id == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	if !role.IsValid() {
		return nil, domain.NewValidationError("invalid role: " + string(role))
	}
	now := time.Now().UTC()
	return &User{
		id:          id,
		role:        role,
		displayName: strings.TrimSpace(displayName),
		email:       strings.ToLower(strings.TrimSpace(email)),
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct rebuilds a User from persistence data (no validation).
func Reconstruct(id uuid.UUID, role auth.Role, displayName, email string, createdAt, updatedAt time.Time) *User {
	return &User{
		id:          id,
		role:        role,
		displayName: displayName,
		email:       email,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (u *User) ID() uuid.UUID        { return u.id }
func (u *User) Role() auth.Role      { return u.role }
func (u *User) DisplayName() string  { return u.displayName }
func (u *User) Email() string        { return u.email }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }
