package application

import (
	"time"

	"github.com/google/uuid"

	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
)

// CreatePetRequest is the request DTO for listing a pet.
type CreatePetRequest struct {
	Name         string   `json:"name" validate:"required,max=100"`
	Species      string   `json:"species" validate:"required,max=50"`
	Breed        string   `json:"breed" validate:"required,max=100"`
	Age          string   `json:"age" validate:"required,max=50"`
	Gender       string   `json:"gender" validate:"required,max=20"`
	Description  string   `json:"description" validate:"max=5000"`
	Requirements string   `json:"requirements" validate:"max=5000"`
	Photos       []string `json:"photos" validate:"max=20,dive,required"`
	Vaccinated   bool     `json:"vaccinated"`
	Sterilized   bool     `json:"sterilized"`
	HealthStatus string   `json:"health_status" validate:"max=100"`
}

func (r CreatePetRequest) profile() petDomain.Profile {
	return petDomain.Profile{
		Name:         r.Name,
		Species:      r.Species,
		Breed:        r.Breed,
		Age:          r.Age,
		Gender:       r.Gender,
		Description:  r.Description,
		Requirements: r.Requirements,
		Photos:       r.Photos,
		Vaccinated:   r.Vaccinated,
		Sterilized:   r.Sterilized,
		HealthStatus: r.HealthStatus,
	}
}

// ApplyRequest is the request DTO for applying to adopt a pet.
type ApplyRequest struct {
	Reason          string `json:"reason" validate:"required,max=2000"`
	Experience      string `json:"experience" validate:"required,max=2000"`
	LivingCondition string `json:"living_condition" validate:"required,max=2000"`
}

// PetDTO is the API response representation of a pet.
type PetDTO struct {
	ID                 uuid.UUID  `json:"id"`
	OwnerID            uuid.UUID  `json:"owner_id"`
	Name               string     `json:"name"`
	Species            string     `json:"species"`
	Breed              string     `json:"breed"`
	Age                string     `json:"age"`
	Gender             string     `json:"gender"`
	Description        string     `json:"description,omitempty"`
	Requirements       string     `json:"requirements,omitempty"`
	Photos             []string   `json:"photos"`
	Vaccinated         bool       `json:"vaccinated"`
	Sterilized         bool       `json:"sterilized"`
	HealthStatus       string     `json:"health_status,omitempty"`
	Status             string     `json:"status"`
	ApplicantCount     int        `json:"applicant_count"`
	ApprovedAdoptionID *uuid.UUID `json:"approved_adoption_id,omitempty"`
	Version            int64      `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	WithdrawnAt        *time.Time `json:"withdrawn_at,omitempty"`
}

// AdoptionDTO is the API response representation of an application.
type AdoptionDTO struct {
	ID              uuid.UUID  `json:"id"`
	PetID           uuid.UUID  `json:"pet_id"`
	PetOwnerID      uuid.UUID  `json:"pet_owner_id"`
	ApplicantID     uuid.UUID  `json:"applicant_id"`
	Reason          string     `json:"reason"`
	Experience      string     `json:"experience"`
	LivingCondition string     `json:"living_condition"`
	Status          string     `json:"status"`
	ReviewerID      *uuid.UUID `json:"reviewer_id,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ApprovalResult reports an approval and the applications it closed.
type ApprovalResult struct {
	Approved  AdoptionDTO   `json:"approved"`
	Cancelled []AdoptionDTO `json:"cancelled"`
	// SiblingsPending is set when some siblings could not be cancelled. The
	// next operation that takes the pet's lease closes them.
	SiblingsPending bool `json:"siblings_pending,omitempty"`
}

// WithdrawResult reports a withdrawal and the applications it closed.
type WithdrawResult struct {
	Pet       PetDTO        `json:"pet"`
	Cancelled []AdoptionDTO `json:"cancelled"`
}

func toPetDTO(p *petDomain.Pet) PetDTO {
	profile := p.Profile()
	photos := profile.Photos
	if photos == nil {
		photos = []string{}
	}
	return PetDTO{
		ID:                 p.ID(),
		OwnerID:            p.OwnerID(),
		Name:               profile.Name,
		Species:            profile.Species,
		Breed:              profile.Breed,
		Age:                profile.Age,
		Gender:             profile.Gender,
		Description:        profile.Description,
		Requirements:       profile.Requirements,
		Photos:             photos,
		Vaccinated:         profile.Vaccinated,
		Sterilized:         profile.Sterilized,
		HealthStatus:       profile.HealthStatus,
		Status:             string(p.Status()),
		ApplicantCount:     p.ApplicantCount(),
		ApprovedAdoptionID: p.ApprovedAdoptionID(),
		Version:            p.Version(),
		CreatedAt:          p.CreatedAt(),
		UpdatedAt:          p.UpdatedAt(),
		WithdrawnAt:        p.WithdrawnAt(),
	}
}

func toPetDTOs(pets []*petDomain.Pet) []PetDTO {
	dtos := make([]PetDTO, len(pets))
	for i, p := range pets {
		dtos[i] = toPetDTO(p)
	}
	return dtos
}

func toAdoptionDTO(a *adoptionDomain.Adoption) AdoptionDTO {
	details := a.Details()
	return AdoptionDTO{
		ID:              a.ID(),
		PetID:           a.PetID(),
		PetOwnerID:      a.PetOwnerID(),
		ApplicantID:     a.ApplicantID(),
		Reason:          details.Reason,
		Experience:      details.Experience,
		LivingCondition: details.LivingCondition,
		Status:          string(a.Status()),
		ReviewerID:      a.ReviewerID(),
		ReviewedAt:      a.ReviewedAt(),
		CancelReason:    a.CancelReason(),
		Version:         a.Version(),
		CreatedAt:       a.CreatedAt(),
		UpdatedAt:       a.UpdatedAt(),
	}
}

func toAdoptionDTOs(adoptions []*adoptionDomain.Adoption) []AdoptionDTO {
	dtos := make([]AdoptionDTO, len(adoptions))
	for i, a := range adoptions {
		dtos[i] = toAdoptionDTO(a)
	}
	return dtos
}
