package application

import (
	"context"

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

// AdoptionStats holds record counts grouped by status.
type AdoptionStats struct {
	Adoptions map[string]int64 `json:"adoptions"`
	Pets      map[string]int64 `json:"pets"`
}

// AdoptionService orchestrates applications: apply, cancel and approve.
type AdoptionService struct {
	pets       petDomain.PetRepository
	adoptions  adoptionDomain.AdoptionRepository
	guard      *PetGuard
	dispatcher *notification.Dispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewAdoptionService creates a new AdoptionService.
func NewAdoptionService(
	pets petDomain.PetRepository,
	adoptions adoptionDomain.AdoptionRepository,
	guard *PetGuard,
	dispatcher *notification.Dispatcher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AdoptionService {
	return &AdoptionService{
		pets:       pets,
		adoptions:  adoptions,
		guard:      guard,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
	}
}

// Apply files an application by the actor for a listed pet and notifies the
// owner.
func (s *AdoptionService) Apply(ctx context.Context, actor *auth.Actor, petID uuid.UUID, req ApplyRequest) (*AdoptionDTO, error) {
	pet, err := s.pets.FindByID(ctx, petID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionApplyForAdoption, policy.Resource{PetOwnerID: pet.OwnerID()}); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var created *adoptionDomain.Adoption
	held, err := s.guard.WithLease(ctx, petID, petDomain.PurposeApply, func(ctx context.Context, l *HeldLease) error {
		current := l.Pet()
		if err := current.EnsureAcceptsApplications(); err != nil {
			return err
		}

		existing, err := s.adoptions.FindActive(ctx, petID, actor.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.NewConflictError("an active application for this pet already exists")
		}

		a, err := adoptionDomain.NewAdoption(petID, current.OwnerID(), actor.ID, adoptionDomain.Details{
			Reason:          req.Reason,
			Experience:      req.Experience,
			LivingCondition: req.LivingCondition,
		})
		if err != nil {
			return err
		}
		if err := s.adoptions.Save(ctx, a); err != nil {
			return err
		}
		created = a
		return nil
	})
	s.dispatchRepaired(ctx, held)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, adoptionEvent(notification.NewApplication, created.PetOwnerID(), pet.Profile().Name, created))

	s.logger.Info("adoption application filed",
		zap.String("adoption_id", created.ID().String()),
		zap.String("pet_id", petID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	s.countTransition("apply")
	result := toAdoptionDTO(created)
	return &result, nil
}

// Cancel withdraws the actor's own active application. No event is emitted.
func (s *AdoptionService) Cancel(ctx context.Context, actor *auth.Actor, adoptionID uuid.UUID) (*AdoptionDTO, error) {
	a, err := s.adoptions.FindByID(ctx, adoptionID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionCancelApplication, policy.Resource{
		PetOwnerID:  a.PetOwnerID(),
		ApplicantID: a.ApplicantID(),
	}); err != nil {
		return nil, err
	}
	if !a.IsActive() {
		return nil, domain.NewInvalidStateError(string(a.Status()), string(adoptionDomain.StatusCancelled))
	}

	cancelled, err := s.cancelGuarded(ctx, a.PetID(), adoptionID, actor.ID, adoptionDomain.ReasonCancelledByApplicant)
	if err != nil {
		return nil, err
	}

	s.logger.Info("adoption application cancelled",
		zap.String("adoption_id", adoptionID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	s.countTransition("cancel")
	result := toAdoptionDTO(cancelled)
	return &result, nil
}

// CancelApplicantAdoptions closes every active application filed by
// applicantID. It runs on behalf of the platform, so no authorization applies.
func (s *AdoptionService) CancelApplicantAdoptions(ctx context.Context, applicantID uuid.UUID, reason string) (int, error) {
	active, err := s.adoptions.FindByApplicantID(ctx, applicantID, adoptionDomain.StatusActive)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, a := range active {
		if _, err := s.cancelGuarded(ctx, a.PetID(), a.ID(), systemActorID, reason); err != nil {
			if domain.IsConflict(err) {
				// Already resolved by a concurrent approval or withdrawal.
				s.logger.Debug("skipping application", zap.String("adoption_id", a.ID().String()), zap.Error(err))
				continue
			}
			return n, err
		}
		n++
	}
	if n > 0 {
		s.logger.Info("closed applicant's applications",
			zap.String("applicant_id", applicantID.String()),
			zap.Int("count", n),
		)
	}
	return n, nil
}

func (s *AdoptionService) cancelGuarded(ctx context.Context, petID, adoptionID, reviewerID uuid.UUID, reason string) (*adoptionDomain.Adoption, error) {
	var cancelled *adoptionDomain.Adoption
	held, err := s.guard.WithLease(ctx, petID, petDomain.PurposeCancel, func(ctx context.Context, _ *HeldLease) error {
		a, err := s.adoptions.FindByID(ctx, adoptionID)
		if err != nil {
			return err
		}
		if err := a.Cancel(reviewerID, reason, s.guard.now()); err != nil {
			return err
		}
		a.IncrementVersion()
		if err := s.adoptions.Update(ctx, a); err != nil {
			return err
		}
		cancelled = a
		return nil
	})
	s.dispatchRepaired(ctx, held)
	return cancelled, err
}

// Approve accepts one application and cancels every other active application
// for the same pet, all under the pet's lease. The winner receives
// application_approved and every cancelled applicant application_rejected.
func (s *AdoptionService) Approve(ctx context.Context, actor *auth.Actor, adoptionID uuid.UUID) (*ApprovalResult, error) {
	a, err := s.adoptions.FindByID(ctx, adoptionID)
	if err != nil {
		return nil, err
	}
	pet, err := s.pets.FindByID(ctx, a.PetID())
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionApproveApplication, policy.Resource{
		PetOwnerID:  pet.OwnerID(),
		ApplicantID: a.ApplicantID(),
	}); err != nil {
		return nil, err
	}
	if !a.IsActive() {
		return nil, domain.NewInvalidStateError(string(a.Status()), string(adoptionDomain.StatusApproved))
	}

	var (
		winner    *adoptionDomain.Adoption
		cancelled []*adoptionDomain.Adoption
		sweepErr  error
	)
	held, err := s.guard.WithLease(ctx, a.PetID(), petDomain.PurposeApproval, func(ctx context.Context, l *HeldLease) error {
		target, err := s.adoptions.FindByID(ctx, adoptionID)
		if err != nil {
			return err
		}
		if err := l.Pet().EnsureAcceptsApplications(); err != nil {
			return err
		}
		if err := target.Approve(actor.ID, s.guard.now()); err != nil {
			return err
		}
		target.IncrementVersion()
		if err := s.adoptions.Update(ctx, target); err != nil {
			return err
		}
		winner = target

		if err := l.MutatePet(func(p *petDomain.Pet) error { return p.RecordApproval(target.ID()) }); err != nil {
			return err
		}

		// The approval is committed from here on. Siblings the sweep cannot
		// close stay active on an adopted pet, which Acquire repairs.
		cancelled, sweepErr = s.guard.sweepActive(ctx, target.PetID(), actor.ID, adoptionDomain.ReasonSiblingApproved, target.ID())
		return nil
	})
	s.dispatchRepaired(ctx, held)
	if err != nil {
		return nil, err
	}
	if sweepErr != nil {
		s.logger.Error("approval left siblings open",
			zap.String("adoption_id", adoptionID.String()),
			zap.Int("cancelled", len(cancelled)),
			zap.Error(sweepErr),
		)
	}

	petName := pet.Profile().Name
	events := []notification.Event{adoptionEvent(notification.ApplicationApproved, winner.ApplicantID(), petName, winner)}
	events = append(events, rejectionEvents(petName, cancelled, uuid.Nil)...)
	s.dispatcher.Dispatch(ctx, events...)

	s.logger.Info("adoption application approved",
		zap.String("adoption_id", adoptionID.String()),
		zap.String("pet_id", winner.PetID().String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Int("siblings_cancelled", len(cancelled)),
	)
	s.countTransition("approve")
	return &ApprovalResult{
		Approved:        toAdoptionDTO(winner),
		Cancelled:       toAdoptionDTOs(cancelled),
		SiblingsPending: sweepErr != nil,
	}, nil
}

// GetAdoption returns one application to its applicant, the pet owner or an
// admin.
func (s *AdoptionService) GetAdoption(ctx context.Context, actor *auth.Actor, adoptionID uuid.UUID) (*AdoptionDTO, error) {
	a, err := s.adoptions.FindByID(ctx, adoptionID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionViewApplication, policy.Resource{
		PetOwnerID:  a.PetOwnerID(),
		ApplicantID: a.ApplicantID(),
	}); err != nil {
		return nil, err
	}
	result := toAdoptionDTO(a)
	return &result, nil
}

// ListPetAdoptions returns every application for a pet to its owner or an admin.
func (s *AdoptionService) ListPetAdoptions(ctx context.Context, actor *auth.Actor, petID uuid.UUID) ([]AdoptionDTO, error) {
	pet, err := s.pets.FindByID(ctx, petID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionListApplications, policy.Resource{PetOwnerID: pet.OwnerID()}); err != nil {
		return nil, err
	}
	adoptions, err := s.adoptions.FindByPetID(ctx, petID)
	if err != nil {
		return nil, err
	}
	return toAdoptionDTOs(adoptions), nil
}

// ListMyAdoptions returns the actor's applications.
func (s *AdoptionService) ListMyAdoptions(ctx context.Context, actor *auth.Actor) ([]AdoptionDTO, error) {
	if err := policy.Authorize(actor, policy.ActionViewOwnRecords, policy.Resource{}); err != nil {
		return nil, err
	}
	adoptions, err := s.adoptions.FindByApplicantID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return toAdoptionDTOs(adoptions), nil
}

// GetStats returns adoption and pet counts by status (admin).
func (s *AdoptionService) GetStats(ctx context.Context) (*AdoptionStats, error) {
	adoptions, err := s.adoptions.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	pets, err := s.pets.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &AdoptionStats{Adoptions: adoptions, Pets: pets}, nil
}

func (s *AdoptionService) dispatchRepaired(ctx context.Context, held *HeldLease) {
	if held == nil || len(held.Repaired) == 0 {
		return
	}
	s.dispatcher.Dispatch(ctx, rejectionEvents(held.Pet().Profile().Name, held.Repaired, uuid.Nil)...)
}

func (s *AdoptionService) countTransition(op string) {
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(op).Inc()
	}
}
