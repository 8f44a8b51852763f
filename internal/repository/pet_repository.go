package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
)

// PetModel is the GORM model for the pets table.
type PetModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OwnerID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name               string          `gorm:"type:varchar(100);not null"`
	Species            string          `gorm:"type:varchar(50);not null"`
	Breed              string          `gorm:"type:varchar(100);not null"`
	Age                string          `gorm:"type:varchar(50);not null"`
	Gender             string          `gorm:"type:varchar(20);not null"`
	Description        string          `gorm:"type:text"`
	Requirements       string          `gorm:"type:text"`
	Photos             json.RawMessage `gorm:"type:jsonb;not null"`
	Vaccinated         bool            `gorm:"not null;default:false"`
	Sterilized         bool            `gorm:"not null;default:false"`
	HealthStatus       string          `gorm:"type:varchar(100)"`
	Status             string          `gorm:"type:varchar(20);not null;index"`
	ApplicantCount     int             `gorm:"not null;default:0"`
	ApprovedAdoptionID *uuid.UUID      `gorm:"type:uuid"`
	LeaseHolder        *uuid.UUID      `gorm:"type:uuid"`
	LeasePurpose       *string         `gorm:"type:varchar(20)"`
	LeaseAcquiredAt    *time.Time      `gorm:"type:timestamptz"`
	LeaseExpiresAt     *time.Time      `gorm:"type:timestamptz"`
	Version            int64           `gorm:"not null;default:1"`
	CreatedAt          time.Time       `gorm:"type:timestamptz;not null"`
	UpdatedAt          time.Time       `gorm:"type:timestamptz;not null"`
	WithdrawnAt        *time.Time      `gorm:"type:timestamptz"`
}

func (PetModel) TableName() string { return "pets" }

// GormPetRepository implements PetRepository using GORM.
type GormPetRepository struct {
	db *gorm.DB
}

var _ petDomain.PetRepository = (*GormPetRepository)(nil)

func NewGormPetRepository(db *gorm.DB) *GormPetRepository {
	return &GormPetRepository{db: db}
}

func (r *GormPetRepository) FindByID(ctx context.Context, id uuid.UUID) (*petDomain.Pet, error) {
	var model PetModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Pet", id.String())
		}
		return nil, translate("failed to find pet", err)
	}
	return toPetDomain(&model)
}

func (r *GormPetRepository) FindByOwnerID(ctx context.Context, ownerID uuid.UUID, statuses ...petDomain.PetStatus) ([]*petDomain.Pet, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", petStatusStrings(statuses))
	}

	var models []PetModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, translate("failed to find owner pets", err)
	}
	return toPetDomains(models)
}

func (r *GormPetRepository) ListAvailable(ctx context.Context, page, limit int) ([]*petDomain.Pet, int64, error) {
	available := r.db.WithContext(ctx).
		Model(&PetModel{}).
		Where("status = ? AND approved_adoption_id IS NULL", string(petDomain.StatusListed))

	var total int64
	if err := available.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate("failed to count pets", err)
	}

	var models []PetModel
	offset := (page - 1) * limit
	if err := available.Session(&gorm.Session{}).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, translate("failed to list pets", err)
	}

	pets, err := toPetDomains(models)
	if err != nil {
		return nil, 0, err
	}
	return pets, total, nil
}

func (r *GormPetRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&PetModel{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, translate("failed to list pet ids", err)
	}
	return ids, nil
}

// CountByStatus returns pet counts grouped by status.
func (r *GormPetRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&PetModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, translate("failed to count pets by status", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

func (r *GormPetRepository) Save(ctx context.Context, pet *petDomain.Pet) error {
	model, err := toPetModel(pet)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translate("failed to save pet", err)
	}
	return nil
}

// Update writes every mutable column, including nil lease columns, if the
// stored version is pet.Version()-1.
func (r *GormPetRepository) Update(ctx context.Context, pet *petDomain.Pet) error {
	model, err := toPetModel(pet)
	if err != nil {
		return err
	}
	previousVersion := pet.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&PetModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Updates(map[string]interface{}{
			"name":                 model.Name,
			"species":              model.Species,
			"breed":                model.Breed,
			"age":                  model.Age,
			"gender":               model.Gender,
			"description":          model.Description,
			"requirements":         model.Requirements,
			"photos":               model.Photos,
			"vaccinated":           model.Vaccinated,
			"sterilized":           model.Sterilized,
			"health_status":        model.HealthStatus,
			"status":               model.Status,
			"applicant_count":      model.ApplicantCount,
			"approved_adoption_id": model.ApprovedAdoptionID,
			"lease_holder":         model.LeaseHolder,
			"lease_purpose":        model.LeasePurpose,
			"lease_acquired_at":    model.LeaseAcquiredAt,
			"lease_expires_at":     model.LeaseExpiresAt,
			"version":              model.Version,
			"updated_at":           model.UpdatedAt,
			"withdrawn_at":         model.WithdrawnAt,
		})

	if result.Error != nil {
		return translate("failed to update pet", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&PetModel{}).Where("id = ?", model.ID).Count(&count).Error; err != nil {
			return translate("failed to check pet", err)
		}
		if count == 0 {
			return domain.NewNotFoundError("Pet", model.ID.String())
		}
		return domain.NewConflictError("pet was modified by another transaction")
	}
	return nil
}

func (r *GormPetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&PetModel{})
	if result.Error != nil {
		return translate("failed to delete pet", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Pet", id.String())
	}
	return nil
}

// --- Conversions ---

func toPetModel(p *petDomain.Pet) (*PetModel, error) {
	profile := p.Profile()
	photos := profile.Photos
	if photos == nil {
		photos = []string{}
	}
	photosJSON, err := json.Marshal(photos)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal photos: %w", err)
	}

	m := &PetModel{
		ID:                 p.ID(),
		OwnerID:            p.OwnerID(),
		Name:               profile.Name,
		Species:            profile.Species,
		Breed:              profile.Breed,
		Age:                profile.Age,
		Gender:             profile.Gender,
		Description:        profile.Description,
		Requirements:       profile.Requirements,
		Photos:             photosJSON,
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
	if lease := p.Lease(); lease != nil {
		purpose := string(lease.Purpose)
		m.LeaseHolder = &lease.Holder
		m.LeasePurpose = &purpose
		m.LeaseAcquiredAt = &lease.AcquiredAt
		m.LeaseExpiresAt = &lease.ExpiresAt
	}
	return m, nil
}

func toPetDomain(m *PetModel) (*petDomain.Pet, error) {
	var photos []string
	if len(m.Photos) > 0 {
		if err := json.Unmarshal(m.Photos, &photos); err != nil {
			return nil, fmt.Errorf("failed to unmarshal photos: %w", err)
		}
	}

	status, err := petDomain.ParsePetStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var lease *petDomain.Lease
	if m.LeaseHolder != nil && m.LeaseExpiresAt != nil {
		lease = &petDomain.Lease{
			Holder:    *m.LeaseHolder,
			ExpiresAt: *m.LeaseExpiresAt,
		}
		if m.LeasePurpose != nil {
			lease.Purpose = petDomain.LeasePurpose(*m.LeasePurpose)
		}
		if m.LeaseAcquiredAt != nil {
			lease.AcquiredAt = *m.LeaseAcquiredAt
		}
	}

	return petDomain.Reconstruct(
		m.ID, m.OwnerID,
		petDomain.Profile{
			Name:         m.Name,
			Species:      m.Species,
			Breed:        m.Breed,
			Age:          m.Age,
			Gender:       m.Gender,
			Description:  m.Description,
			Requirements: m.Requirements,
			Photos:       photos,
			Vaccinated:   m.Vaccinated,
			Sterilized:   m.Sterilized,
			HealthStatus: m.HealthStatus,
		},
		status,
		m.ApplicantCount,
		m.ApprovedAdoptionID,
		lease,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
		m.WithdrawnAt,
	), nil
}

func toPetDomains(models []PetModel) ([]*petDomain.Pet, error) {
	pets := make([]*petDomain.Pet, len(models))
	for i := range models {
		p, err := toPetDomain(&models[i])
		if err != nil {
			return nil, err
		}
		pets[i] = p
	}
	return pets, nil
}

func petStatusStrings(statuses []petDomain.PetStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
