package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
)

// AdoptionModel is the GORM model for the adoptions table.
type AdoptionModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PetID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	PetOwnerID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	ApplicantID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	Reason          string     `gorm:"type:text;not null"`
	Experience      string     `gorm:"type:text;not null"`
	LivingCondition string     `gorm:"type:text;not null"`
	Status          string     `gorm:"type:varchar(20);not null;index"`
	ReviewerID      *uuid.UUID `gorm:"type:uuid"`
	ReviewedAt      *time.Time `gorm:"type:timestamptz"`
	CancelReason    string     `gorm:"type:varchar(200)"`
	Version         int64      `gorm:"not null;default:1"`
	CreatedAt       time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt       time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName returns the table name for the GORM model.
func (AdoptionModel) TableName() string {
	return "adoptions"
}

// GormAdoptionRepository is the GORM-based implementation of AdoptionRepository.
type GormAdoptionRepository struct {
	db *gorm.DB
}

var _ adoptionDomain.AdoptionRepository = (*GormAdoptionRepository)(nil)

// NewGormAdoptionRepository creates a new GormAdoptionRepository.
func NewGormAdoptionRepository(db *gorm.DB) *GormAdoptionRepository {
	return &GormAdoptionRepository{db: db}
}

// FindByID retrieves an application by its unique identifier.
func (r *GormAdoptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*adoptionDomain.Adoption, error) {
	var model AdoptionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Adoption", id.String())
		}
		return nil, translate("failed to find adoption by ID", err)
	}
	return toDomainAdoption(&model)
}

// FindByPetID retrieves a pet's applications, oldest first.
func (r *GormAdoptionRepository) FindByPetID(ctx context.Context, petID uuid.UUID, statuses ...adoptionDomain.AdoptionStatus) ([]*adoptionDomain.Adoption, error) {
	return r.find(ctx, "failed to find pet adoptions", "pet_id = ?", petID, statuses)
}

// FindByApplicantID retrieves a user's applications, oldest first.
func (r *GormAdoptionRepository) FindByApplicantID(ctx context.Context, applicantID uuid.UUID, statuses ...adoptionDomain.AdoptionStatus) ([]*adoptionDomain.Adoption, error) {
	return r.find(ctx, "failed to find applicant adoptions", "applicant_id = ?", applicantID, statuses)
}

// FindActive returns the applicant's active application for the pet, or nil.
func (r *GormAdoptionRepository) FindActive(ctx context.Context, petID, applicantID uuid.UUID) (*adoptionDomain.Adoption, error) {
	var model AdoptionModel
	err := r.db.WithContext(ctx).
		Where("pet_id = ? AND applicant_id = ? AND status = ?", petID, applicantID, string(adoptionDomain.StatusActive)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translate("failed to find active adoption", err)
	}
	return toDomainAdoption(&model)
}

// CountByPetID counts a pet's applications in the given status.
func (r *GormAdoptionRepository) CountByPetID(ctx context.Context, petID uuid.UUID, status adoptionDomain.AdoptionStatus) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&AdoptionModel{}).
		Where("pet_id = ? AND status = ?", petID, string(status)).
		Count(&count).Error; err != nil {
		return 0, translate("failed to count pet adoptions", err)
	}
	return int(count), nil
}

// CountByStatus returns application counts grouped by status (admin).
func (r *GormAdoptionRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&AdoptionModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, translate("failed to count by status", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new application. The partial unique index on active
// (pet_id, applicant_id) surfaces a duplicate as a Conflict error.
func (r *GormAdoptionRepository) Save(ctx context.Context, a *adoptionDomain.Adoption) error {
	if err := r.db.WithContext(ctx).Create(toAdoptionModel(a)).Error; err != nil {
		return translate("failed to save adoption", err)
	}
	return nil
}

// Update persists changes to an existing application with optimistic locking.
func (r *GormAdoptionRepository) Update(ctx context.Context, a *adoptionDomain.Adoption) error {
	model := toAdoptionModel(a)

	// IncrementVersion was called before Update, so the stored row is one behind.
	expectedVersion := a.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&AdoptionModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":        model.Status,
			"reviewer_id":   model.ReviewerID,
			"reviewed_at":   model.ReviewedAt,
			"cancel_reason": model.CancelReason,
			"version":       model.Version,
			"updated_at":    model.UpdatedAt,
		})

	if result.Error != nil {
		return translate("failed to update adoption", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("adoption was modified by another transaction")
	}

	return nil
}

// Delete removes an application.
func (r *GormAdoptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&AdoptionModel{})
	if result.Error != nil {
		return translate("failed to delete adoption", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Adoption", id.String())
	}
	return nil
}

func (r *GormAdoptionRepository) find(ctx context.Context, op, where string, arg uuid.UUID, statuses []adoptionDomain.AdoptionStatus) ([]*adoptionDomain.Adoption, error) {
	q := r.db.WithContext(ctx).Where(where, arg)
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		q = q.Where("status IN ?", names)
	}

	var models []AdoptionModel
	if err := q.Order("created_at ASC").Order("id").Find(&models).Error; err != nil {
		return nil, translate(op, err)
	}

	adoptions := make([]*adoptionDomain.Adoption, len(models))
	for i := range models {
		a, err := toDomainAdoption(&models[i])
		if err != nil {
			return nil, err
		}
		adoptions[i] = a
	}
	return adoptions, nil
}

// --- Conversion Helpers ---

func toAdoptionModel(a *adoptionDomain.Adoption) *AdoptionModel {
	details := a.Details()
	return &AdoptionModel{
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

func toDomainAdoption(m *AdoptionModel) (*adoptionDomain.Adoption, error) {
	status, err := adoptionDomain.ParseAdoptionStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return adoptionDomain.Reconstruct(
		m.ID,
		m.PetID,
		m.PetOwnerID,
		m.ApplicantID,
		adoptionDomain.Details{
			Reason:          m.Reason,
			Experience:      m.Experience,
			LivingCondition: m.LivingCondition,
		},
		status,
		m.ReviewerID,
		m.ReviewedAt,
		m.CancelReason,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
