package application

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/policy"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/notification"
)

// WithdrawPolicy decides what happens to active applications when a pet is
// withdrawn.
type WithdrawPolicy string

const (
	// WithdrawReject refuses to withdraw a pet that has active applications.
	WithdrawReject WithdrawPolicy = "reject"
	// WithdrawCascade cancels active applications as part of the withdrawal.
	WithdrawCascade WithdrawPolicy = "cascade"
)

// PetService implements the pet lifecycle: listing, editing and withdrawing.
type PetService struct {
	pets       petDomain.PetRepository
	adoptions  adoptionDomain.AdoptionRepository
	guard      *PetGuard
	dispatcher *notification.Dispatcher
	policy     WithdrawPolicy
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewPetService creates a new PetService.
func NewPetService(
	pets petDomain.PetRepository,
	adoptions adoptionDomain.AdoptionRepository,
	guard *PetGuard,
	dispatcher *notification.Dispatcher,
	withdrawPolicy WithdrawPolicy,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PetService {
	if withdrawPolicy == "" {
		withdrawPolicy = WithdrawReject
	}
	return &PetService{
		pets:       pets,
		adoptions:  adoptions,
		guard:      guard,
		dispatcher: dispatcher,
		policy:     withdrawPolicy,
		metrics:    m,
		logger:     logger,
	}
}

// CreatePet lists a new pet owned by the actor.
func (s *PetService) CreatePet(ctx context.Context, actor *auth.Actor, req CreatePetRequest) (*PetDTO, error) {
	if err := policy.Authorize(actor, policy.ActionCreatePet, policy.Resource{}); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	pet, err := petDomain.NewPet(actor.ID, req.profile())
	if err != nil {
		return nil, err
	}

	if err := s.pets.Save(ctx, pet); err != nil {
		s.logger.Error("failed to create pet", zap.Error(err))
		return nil, err
	}

	s.logger.Info("pet listed",
		zap.String("pet_id", pet.ID().String()),
		zap.String("owner_id", actor.ID.String()),
	)
	s.countTransition("create_pet")
	result := toPetDTO(pet)
	return &result, nil
}

// GetPet returns one pet.
func (s *PetService) GetPet(ctx context.Context, petID uuid.UUID) (*PetDTO, error) {
	pet, err := s.pets.FindByID(ctx, petID)
	if err != nil {
		return nil, err
	}
	result := toPetDTO(pet)
	return &result, nil
}

// ListListedPets returns a page of pets open for adoption, newest first.
// Listed pets that already have an approved application are left out.
func (s *PetService) ListListedPets(ctx context.Context, page, limit int) ([]PetDTO, int64, error) {
	pets, total, err := s.pets.ListAvailable(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toPetDTOs(pets), total, nil
}

// ListOwnerPets returns every pet the actor has listed, withdrawn ones included.
func (s *PetService) ListOwnerPets(ctx context.Context, actor *auth.Actor) ([]PetDTO, error) {
	if err := policy.Authorize(actor, policy.ActionViewOwnRecords, policy.Resource{}); err != nil {
		return nil, err
	}
	pets, err := s.pets.FindByOwnerID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return toPetDTOs(pets), nil
}

// EditPet applies a descriptive patch. Edits do not take the pet lease; a
// concurrent write is absorbed by re-reading and reapplying the patch.
func (s *PetService) EditPet(ctx context.Context, actor *auth.Actor, petID uuid.UUID, patch petDomain.ProfilePatch) (*PetDTO, error) {
	var updated *petDomain.Pet
	op := func() error {
		pet, err := s.pets.FindByID(ctx, petID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := policy.Authorize(actor, policy.ActionEditPet, policy.Resource{PetOwnerID: pet.OwnerID()}); err != nil {
			return backoff.Permanent(err)
		}
		if err := pet.ApplyPatch(patch); err != nil {
			return backoff.Permanent(err)
		}

		pet.IncrementVersion()
		if err := s.pets.Update(ctx, pet); err != nil {
			if domain.IsConflict(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		updated = pet
		return nil
	}

	if err := backoff.Retry(op, s.guard.policy(ctx, s.guard.cfg.MaxAttempts)); err != nil {
		return nil, err
	}

	s.logger.Info("pet edited",
		zap.String("pet_id", petID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	s.countTransition("edit_pet")
	result := toPetDTO(updated)
	return &result, nil
}

// WithdrawPet takes a listing down. Under the reject policy a pet with active
// applications cannot be withdrawn; under cascade those applications are
// cancelled and their applicants notified.
func (s *PetService) WithdrawPet(ctx context.Context, actor *auth.Actor, petID uuid.UUID) (*WithdrawResult, error) {
	pet, err := s.pets.FindByID(ctx, petID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionWithdrawPet, policy.Resource{PetOwnerID: pet.OwnerID()}); err != nil {
		return nil, err
	}
	return s.withdraw(ctx, actor.ID, petID, s.policy)
}

// withdrawAsSystem withdraws on behalf of the platform, always cascading.
func (s *PetService) withdrawAsSystem(ctx context.Context, petID uuid.UUID) (*WithdrawResult, error) {
	return s.withdraw(ctx, systemActorID, petID, WithdrawCascade)
}

func (s *PetService) withdraw(ctx context.Context, reviewerID, petID uuid.UUID, withdrawPolicy WithdrawPolicy) (*WithdrawResult, error) {
	var cancelled []*adoptionDomain.Adoption

	held, err := s.guard.WithLease(ctx, petID, petDomain.PurposeWithdraw, func(ctx context.Context, l *HeldLease) error {
		if l.Pet().Status() == petDomain.StatusWithdrawn {
			return domain.NewInvalidStateError(string(petDomain.StatusWithdrawn), string(petDomain.StatusWithdrawn))
		}

		active, err := s.adoptions.FindByPetID(ctx, petID, adoptionDomain.StatusActive)
		if err != nil {
			return err
		}
		if len(active) > 0 && withdrawPolicy == WithdrawReject {
			return domain.NewConflictError(fmt.Sprintf("pet has %d active applications", len(active)))
		}

		cancelled, err = s.guard.cancelActive(ctx, petID, reviewerID, adoptionDomain.ReasonPetWithdrawn, uuid.Nil)
		if err != nil {
			return err
		}
		return l.MutatePet(func(p *petDomain.Pet) error { return p.Withdraw() })
	})
	if held != nil {
		s.dispatchRepaired(ctx, held)
	}
	if err != nil {
		if len(cancelled) > 0 {
			s.dispatcher.Dispatch(ctx, rejectionEvents(held.Pet().Profile().Name, cancelled, uuid.Nil)...)
		}
		return nil, err
	}

	pet := held.Pet()
	s.dispatcher.Dispatch(ctx, rejectionEvents(pet.Profile().Name, cancelled, uuid.Nil)...)

	s.logger.Info("pet withdrawn",
		zap.String("pet_id", petID.String()),
		zap.String("actor_id", reviewerID.String()),
		zap.Int("cancelled", len(cancelled)),
	)
	s.countTransition("withdraw_pet")

	fresh, err := s.pets.FindByID(ctx, petID)
	if err != nil {
		// The withdrawal is committed; fall back to the snapshot.
		fresh = pet
	}
	return &WithdrawResult{Pet: toPetDTO(fresh), Cancelled: toAdoptionDTOs(cancelled)}, nil
}

// dispatchRepaired notifies applicants whose applications were closed while
// an abandoned lease was healed.
func (s *PetService) dispatchRepaired(ctx context.Context, held *HeldLease) {
	if len(held.Repaired) == 0 {
		return
	}
	s.dispatcher.Dispatch(ctx, rejectionEvents(held.Pet().Profile().Name, held.Repaired, uuid.Nil)...)
}

func (s *PetService) countTransition(op string) {
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(op).Inc()
	}
}
