package pet

import (
	"strings"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
)

// Profile is the descriptive part of a listing. It is a value object: edits
// replace it wholesale through ApplyPatch.
type Profile struct {
	Name         string   `json:"name"`
	Species      string   `json:"species"`
	Breed        string   `json:"breed"`
	Age          string   `json:"age"`
	Gender       string   `json:"gender"`
	Description  string   `json:"description"`
	Requirements string   `json:"requirements"`
	Photos       []string `json:"photos"`
	Vaccinated   bool     `json:"vaccinated"`
	Sterilized   bool     `json:"sterilized"`
	HealthStatus string   `json:"health_status"`
}

// Validate checks that every required descriptive field is present.
func (p Profile) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"name", p.Name},
		{"species", p.Species},
		{"breed", p.Breed},
		{"age", p.Age},
		{"gender", p.Gender},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.field)
		}
	}
	if len(missing) > 0 {
		return domain.NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}
	for _, photo := range p.Photos {
		if strings.TrimSpace(photo) == "" {
			return domain.NewValidationError("photo references must not be empty")
		}
	}
	return nil
}

func (p Profile) normalized() Profile {
	p.Name = strings.TrimSpace(p.Name)
	p.Species = strings.TrimSpace(p.Species)
	p.Breed = strings.TrimSpace(p.Breed)
	p.Age = strings.TrimSpace(p.Age)
	p.Gender = strings.TrimSpace(p.Gender)
	p.Photos = append([]string(nil), p.Photos...)
	return p
}

// ProfilePatch is a partial edit. Nil fields are left untouched.
//
// Status and ApplicantCount exist only so a patch that tries to set them can be
// rejected; they are owned by the adoption workflow.
type ProfilePatch struct {
	Name           *string   `json:"name"`
	Species        *string   `json:"species"`
	Breed          *string   `json:"breed"`
	Age            *string   `json:"age"`
	Gender         *string   `json:"gender"`
	Description    *string   `json:"description"`
	Requirements   *string   `json:"requirements"`
	Photos         *[]string `json:"photos"`
	Vaccinated     *bool     `json:"vaccinated"`
	Sterilized     *bool     `json:"sterilized"`
	HealthStatus   *string   `json:"health_status"`
	Status         *string   `json:"status"`
	ApplicantCount *int      `json:"applicant_count"`
}

// TouchesManagedFields reports whether the patch tries to set workflow-owned fields.
func (pp ProfilePatch) TouchesManagedFields() bool {
	return pp.Status != nil || pp.ApplicantCount != nil
}

// IsEmpty reports whether the patch changes nothing.
func (pp ProfilePatch) IsEmpty() bool {
	return pp == (ProfilePatch{})
}

func (pp ProfilePatch) applyTo(p Profile) Profile {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Species != nil {
		p.Species = *pp.Species
	}
	if pp.Breed != nil {
		p.Breed = *pp.Breed
	}
	if pp.Age != nil {
		p.Age = *pp.Age
	}
	if pp.Gender != nil {
		p.Gender = *pp.Gender
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Requirements != nil {
		p.Requirements = *pp.Requirements
	}
	if pp.Photos != nil {
		p.Photos = append([]string(nil), (*pp.Photos)...)
	}
	if pp.Vaccinated != nil {
		p.Vaccinated = *pp.Vaccinated
	}
	if pp.Sterilized != nil {
		p.Sterilized = *pp.Sterilized
	}
	if pp.HealthStatus != nil {
		p.HealthStatus = *pp.HealthStatus
	}
	return p
}
