package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role        string    `gorm:"type:varchar(20);not null"`
	DisplayName string    `gorm:"type:varchar(100)"`
	Email       string    `gorm:"type:varchar(255)"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null"`
}

func (UserModel) TableName() string { return "users" }

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

var _ userDomain.UserRepository = (*GormUserRepository)(nil)

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", id.String())
		}
		return nil, translate("failed to find user", err)
	}
	return userDomain.Reconstruct(m.ID, auth.Role(m.Role), m.DisplayName, m.Email, m.CreatedAt, m.UpdatedAt), nil
}

// Upsert inserts the user or refreshes role, name and email, keeping created_at.
func (r *GormUserRepository) Upsert(ctx context.Context, u *userDomain.User) error {
	m := UserModel{
		ID:          u.ID(),
		Role:        string(u.Role()),
		DisplayName: u.DisplayName(),
		Email:       u.Email(),
		CreatedAt:   u.CreatedAt(),
		UpdatedAt:   u.UpdatedAt(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "display_name", "email", "updated_at"}),
	}).Create(&m).Error
	return translate("failed to upsert user", err)
}

func (r *GormUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return translate("failed to delete user", r.db.WithContext(ctx).Where("id = ?", id).Delete(&UserModel{}).Error)
}

// DBPinger checks the database connection for the readiness check.
type DBPinger struct {
	db *gorm.DB
}

func NewDBPinger(db *gorm.DB) *DBPinger {
	return &DBPinger{db: db}
}

func (p *DBPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return translate("failed to ping database", sqlDB.PingContext(ctx))
}
