package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/policy"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
)

// UserProfileDTO is a user with the ids of their publications and
// applications, computed when the profile is read.
type UserProfileDTO struct {
	ID           uuid.UUID   `json:"id"`
	Role         string      `json:"role"`
	DisplayName  string      `json:"display_name,omitempty"`
	Email        string      `json:"email,omitempty"`
	Publications []uuid.UUID `json:"publications"`
	Applications []uuid.UUID `json:"applications"`
	CreatedAt    *time.Time  `json:"created_at,omitempty"`
}

// UserService maintains the local user projection.
type UserService struct {
	users     userDomain.UserRepository
	pets      petDomain.PetRepository
	adoptions adoptionDomain.AdoptionRepository
	petSvc    *PetService
	adoptSvc  *AdoptionService
	logger    *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	users userDomain.UserRepository,
	pets petDomain.PetRepository,
	adoptions adoptionDomain.AdoptionRepository,
	petSvc *PetService,
	adoptSvc *AdoptionService,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:     users,
		pets:      pets,
		adoptions: adoptions,
		petSvc:    petSvc,
		adoptSvc:  adoptSvc,
		logger:    logger,
	}
}

// GetProfile returns the actor's profile. Users not yet projected from the
// identity service are described from their token.
func (s *UserService) GetProfile(ctx context.Context, actor *auth.Actor) (*UserProfileDTO, error) {
	if err := policy.Authorize(actor, policy.ActionViewOwnRecords, policy.Resource{}); err != nil {
		return nil, err
	}

	profile := &UserProfileDTO{ID: actor.ID, Role: string(actor.Role)}
	u, err := s.users.FindByID(ctx, actor.ID)
	switch {
	case err == nil:
		created := u.CreatedAt()
		profile.Role = string(u.Role())
		profile.DisplayName = u.DisplayName()
		profile.Email = u.Email()
		profile.CreatedAt = &created
	case domain.IsNotFound(err):
	default:
		return nil, err
	}

	pets, err := s.pets.FindByOwnerID(ctx, actor.ID, petDomain.StatusListed)
	if err != nil {
		return nil, err
	}
	profile.Publications = make([]uuid.UUID, len(pets))
	for i, p := range pets {
		profile.Publications[i] = p.ID()
	}

	adoptions, err := s.adoptions.FindByApplicantID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	profile.Applications = make([]uuid.UUID, len(adoptions))
	for i, a := range adoptions {
		profile.Applications[i] = a.ID()
	}
	return profile, nil
}

// RegisterUser creates or refreshes a user from an identity-service event.
func (s *UserService) RegisterUser(ctx context.Context, id uuid.UUID, role auth.Role, displayName, email string) error {
	u, err := userDomain.NewUser(id, role, displayName, email)
	if err != nil {
		return err
	}
	if err := s.users.Upsert(ctx, u); err != nil {
		return err
	}
	s.logger.Info("user registered", zap.String("user_id", id.String()), zap.String("role", string(role)))
	return nil
}

// RemoveUser handles an account deletion: the user's active applications are
// cancelled, their listed pets withdrawn with cascade, and the projection
// dropped.
func (s *UserService) RemoveUser(ctx context.Context, id uuid.UUID) error {
	closed, err := s.adoptSvc.CancelApplicantAdoptions(ctx, id, adoptionDomain.ReasonApplicantRemoved)
	if err != nil {
		return err
	}

	pets, err := s.pets.FindByOwnerID(ctx, id, petDomain.StatusListed)
	if err != nil {
		return err
	}
	for _, p := range pets {
		if _, err := s.petSvc.withdrawAsSystem(ctx, p.ID()); err != nil {
			s.logger.Warn("could not withdraw pet of removed user",
				zap.String("pet_id", p.ID().String()),
				zap.Error(err),
			)
			return err
		}
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user removed",
		zap.String("user_id", id.String()),
		zap.Int("applications_closed", closed),
		zap.Int("pets_withdrawn", len(pets)),
	)
	return nil
}
