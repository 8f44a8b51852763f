package pet

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
)

// Pet is the aggregate root for an adoption listing.
type Pet struct {
	id                 uuid.UUID
	ownerID            uuid.UUID
	profile            Profile
	status             PetStatus
	applicantCount     int
	approvedAdoptionID *uuid.UUID
	lease              *Lease
	version            int64
	createdAt          time.Time
	updatedAt          time.Time
	withdrawnAt        *time.Time
}

// NewPet creates a new listed pet with validated fields.
func NewPet(ownerID uuid.UUID, profile Profile) (*Pet, error) {
	if ownerID == uuid.Nil {
		return nil, domain.NewValidationError("owner ID is required")
	}
	profile = profile.normalized()
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Pet{
		id:             uuid.New(),
		ownerID:        ownerID,
		profile:        profile,
		status:         StatusListed,
		applicantCount: 0,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// Reconstruct rebuilds a Pet from persistence data (no validation).
func Reconstruct(
	id, ownerID uuid.UUID,
	profile Profile,
	status PetStatus,
	applicantCount int,
	approvedAdoptionID *uuid.UUID,
	lease *Lease,
	version int64,
	createdAt, updatedAt time.Time,
	withdrawnAt *time.Time,
) *Pet {
	return &Pet{
		id:                 id,
		ownerID:            ownerID,
		profile:            profile,
		status:             status,
		applicantCount:     applicantCount,
		approvedAdoptionID: approvedAdoptionID,
		lease:              lease,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
		withdrawnAt:        withdrawnAt,
	}
}

// --- Getters ---

func (p *Pet) ID() uuid.UUID           { return p.id }
func (p *Pet) OwnerID() uuid.UUID      { return p.ownerID }
func (p *Pet) Status() PetStatus       { return p.status }
func (p *Pet) ApplicantCount() int     { return p.applicantCount }
func (p *Pet) Version() int64          { return p.version }
func (p *Pet) CreatedAt() time.Time    { return p.createdAt }
func (p *Pet) UpdatedAt() time.Time    { return p.updatedAt }
func (p *Pet) WithdrawnAt() *time.Time { return p.withdrawnAt }

// Profile returns a copy of the descriptive fields.
func (p *Pet) Profile() Profile {
	out := p.profile
	out.Photos = append([]string(nil), p.profile.Photos...)
	return out
}

// ApprovedAdoptionID returns the id of the approved application, if any.
func (p *Pet) ApprovedAdoptionID() *uuid.UUID {
	if p.approvedAdoptionID == nil {
		return nil
	}
	id := *p.approvedAdoptionID
	return &id
}

// --- Behavior ---

// IsOwnedBy checks if the pet belongs to the given user.
func (p *Pet) IsOwnedBy(userID uuid.UUID) bool {
	return p.ownerID == userID
}

// IsListed reports whether the pet is visible for adoption.
func (p *Pet) IsListed() bool {
	return p.status == StatusListed
}

// IsAdopted reports whether one application has already been approved.
func (p *Pet) IsAdopted() bool {
	return p.approvedAdoptionID != nil
}

// EnsureAcceptsApplications returns a conflict unless new applications may be filed.
func (p *Pet) EnsureAcceptsApplications() error {
	if !p.IsListed() {
		return domain.NewConflictError(fmt.Sprintf("pet is %s and does not accept applications", p.status))
	}
	if p.IsAdopted() {
		return domain.NewConflictError("pet already has an approved application")
	}
	return nil
}

// ApplyPatch edits descriptive fields. Workflow-owned fields cannot be patched.
func (p *Pet) ApplyPatch(patch ProfilePatch) error {
	if patch.TouchesManagedFields() {
		return domain.NewValidationError("status and applicant_count are managed by the adoption workflow")
	}
	if p.status == StatusWithdrawn {
		return domain.NewConflictError("withdrawn pets cannot be edited")
	}
	next := patch.applyTo(p.profile).normalized()
	if err := next.Validate(); err != nil {
		return err
	}
	p.profile = next
	p.updatedAt = time.Now().UTC()
	return nil
}

// SetApplicantCount stores the recomputed number of active applications.
func (p *Pet) SetApplicantCount(n int) {
	if n < 0 {
		n = 0
	}
	p.applicantCount = n
	p.updatedAt = time.Now().UTC()
}

// RecordApproval remembers the winning application.
func (p *Pet) RecordApproval(adoptionID uuid.UUID) error {
	if p.approvedAdoptionID != nil && *p.approvedAdoptionID != adoptionID {
		return domain.NewConflictError("pet already has an approved application")
	}
	p.approvedAdoptionID = &adoptionID
	p.updatedAt = time.Now().UTC()
	return nil
}

// Withdraw takes the listing down.
func (p *Pet) Withdraw() error {
	if !p.status.CanTransitionTo(StatusWithdrawn) {
		return domain.NewInvalidStateError(string(p.status), string(StatusWithdrawn))
	}
	now := time.Now().UTC()
	p.status = StatusWithdrawn
	p.withdrawnAt = &now
	p.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (p *Pet) IncrementVersion() {
	p.version++
}
