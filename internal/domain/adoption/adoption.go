package adoption

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
)

// Cancellation reasons recorded on cancelled applications.
const (
	ReasonCancelledByApplicant = "cancelled by applicant"
	ReasonSiblingApproved      = "another application was approved"
	ReasonPetWithdrawn         = "pet withdrawn"
	ReasonApplicantRemoved     = "applicant account removed"
	ReasonReconciled           = "closed by reconciliation"
)

// Details is what the applicant tells the owner.
type Details struct {
	Reason          string `json:"reason"`
	Experience      string `json:"experience"`
	LivingCondition string `json:"living_condition"`
}

// Validate checks that every field is present.
func (d Details) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Reason) == "" {
		missing = append(missing, "reason")
	}
	if strings.TrimSpace(d.Experience) == "" {
		missing = append(missing, "experience")
	}
	if strings.TrimSpace(d.LivingCondition) == "" {
		missing = append(missing, "living_condition")
	}
	if len(missing) > 0 {
		return domain.NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// Adoption is the aggregate root for one applicant's request for one pet.
type Adoption struct {
	id           uuid.UUID
	petID        uuid.UUID
	petOwnerID   uuid.UUID
	applicantID  uuid.UUID
	details      Details
	status       AdoptionStatus
	reviewerID   *uuid.UUID
	reviewedAt   *time.Time
	cancelReason string
	version      int64
	createdAt    time.Time
	updatedAt    time.Time
}

// NewAdoption creates an active application.
func NewAdoption(petID, petOwnerID, applicantID uuid.UUID, details Details) (*Adoption, error) {
	if petID == uuid.Nil {
		return nil, domain.NewValidationError("pet ID is required")
	}
	if applicantID == uuid.Nil {
		return nil, domain.NewValidationError("applicant ID is required")
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Adoption{
		id:          uuid.New(),
		petID:       petID,
		petOwnerID:  petOwnerID,
		applicantID: applicantID,
		details: Details{
			Reason:          strings.TrimSpace(details.Reason),
			Experience:      strings.TrimSpace(details.Experience),
			LivingCondition: strings.TrimSpace(details.LivingCondition),
		},
		status:    StatusActive,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds an Adoption from persistence data (no validation).
func Reconstruct(
	id, petID, petOwnerID, applicantID uuid.UUID,
	details Details,
	status AdoptionStatus,
	reviewerID *uuid.UUID,
	reviewedAt *time.Time,
	cancelReason string,
	version int64,
	createdAt, updatedAt time.Time,
) *Adoption {
	return &Adoption{
		id:           id,
		petID:        petID,
		petOwnerID:   petOwnerID,
		applicantID:  applicantID,
		details:      details,
		status:       status,
		reviewerID:   reviewerID,
		reviewedAt:   reviewedAt,
		cancelReason: cancelReason,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// --- Getters ---

// ID returns the application's unique identifier.
func (a *Adoption) ID() uuid.UUID { return a.id }

// PetID returns the pet applied for.
func (a *Adoption) PetID() uuid.UUID { return a.petID }

// PetOwnerID returns the owner of the pet at the time of applying.
func (a *Adoption) PetOwnerID() uuid.UUID { return a.petOwnerID }

// ApplicantID returns the applicant's user ID.
func (a *Adoption) ApplicantID() uuid.UUID { return a.applicantID }

// Details returns the applicant's answers.
func (a *Adoption) Details() Details { return a.details }

// Status returns the current status.
func (a *Adoption) Status() AdoptionStatus { return a.status }

// ReviewerID returns who resolved the application, or nil while active.
func (a *Adoption) ReviewerID() *uuid.UUID { return a.reviewerID }

// ReviewedAt returns when the application was resolved, or nil while active.
func (a *Adoption) ReviewedAt() *time.Time { return a.reviewedAt }

// CancelReason returns why the application was cancelled.
func (a *Adoption) CancelReason() string { return a.cancelReason }

// Version returns the entity version for optimistic locking.
func (a *Adoption) Version() int64 { return a.version }

// CreatedAt returns the creation timestamp.
func (a *Adoption) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (a *Adoption) UpdatedAt() time.Time { return a.updatedAt }

// --- Behavior ---

// IsActive reports whether the application is still pending.
func (a *Adoption) IsActive() bool { return a.status == StatusActive }

// Approve finalizes the application.
func (a *Adoption) Approve(reviewerID uuid.UUID, at time.Time) error {
	if !a.status.CanTransitionTo(StatusApproved) {
		return domain.NewInvalidStateError(string(a.status), string(StatusApproved))
	}
	a.resolve(StatusApproved, reviewerID, at)
	return nil
}

// Cancel closes the application without adoption.
func (a *Adoption) Cancel(reviewerID uuid.UUID, reason string, at time.Time) error {
	if !a.status.CanTransitionTo(StatusCancelled) {
		return domain.NewInvalidStateError(string(a.status), string(StatusCancelled))
	}
	a.resolve(StatusCancelled, reviewerID, at)
	a.cancelReason = reason
	return nil
}

func (a *Adoption) resolve(status AdoptionStatus, reviewerID uuid.UUID, at time.Time) {
	at = at.UTC()
	a.status = status
	a.reviewerID = &reviewerID
	a.reviewedAt = &at
	a.updatedAt = at
}

// IncrementVersion bumps the version for optimistic locking.
func (a *Adoption) IncrementVersion() {
	a.version++
}
