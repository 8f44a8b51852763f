package adoption

import (
	"context"

	"github.com/google/uuid"
)

// AdoptionRepository defines the persistence contract for adoption applications.
type AdoptionRepository interface {
	// FindByID retrieves an application by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Adoption, error)

	// FindByPetID retrieves a pet's applications, optionally filtered by status.
	FindByPetID(ctx context.Context, petID uuid.UUID, statuses ...AdoptionStatus) ([]*Adoption, error)

	// FindByApplicantID retrieves a user's applications, optionally filtered by status.
	FindByApplicantID(ctx context.Context, applicantID uuid.UUID, statuses ...AdoptionStatus) ([]*Adoption, error)

	// FindActive returns the applicant's active application for the pet, or nil.
	FindActive(ctx context.Context, petID, applicantID uuid.UUID) (*Adoption, error)

	// CountByPetID counts a pet's applications in the given status.
	CountByPetID(ctx context.Context, petID uuid.UUID, status AdoptionStatus) (int, error)

	// CountByStatus returns application counts grouped by status.
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new application.
	Save(ctx context.Context, adoption *Adoption) error

	// Update persists changes with optimistic locking.
	Update(ctx context.Context, adoption *Adoption) error

	// Delete removes an application.
	Delete(ctx context.Context, id uuid.UUID) error
}
