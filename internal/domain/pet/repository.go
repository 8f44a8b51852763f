package pet

import (
	"context"

	"github.com/google/uuid"
)

// PetRepository defines persistence operations for pet listings.
type PetRepository interface {
	// FindByID returns the pet or a NotFound error.
	FindByID(ctx context.Context, id uuid.UUID) (*Pet, error)

	// FindByOwnerID returns the owner's pets, optionally filtered by status.
	FindByOwnerID(ctx context.Context, ownerID uuid.UUID, statuses ...PetStatus) ([]*Pet, error)

	// ListAvailable returns a page of listed pets without an approved
	// application, newest first.
	ListAvailable(ctx context.Context, page, limit int) ([]*Pet, int64, error)

	// ListIDs returns every pet id.
	ListIDs(ctx context.Context) ([]uuid.UUID, error)

	// CountByStatus returns pet counts grouped by status.
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new pet.
	Save(ctx context.Context, pet *Pet) error

	// Update persists changes if the stored version equals pet.Version()-1,
	// otherwise it returns a Conflict error.
	Update(ctx context.Context, pet *Pet) error

	// Delete removes the pet.
	Delete(ctx context.Context, id uuid.UUID) error
}
