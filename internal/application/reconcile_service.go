package application

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/notification"
)

// ReconcileReport describes what reconciliation changed on one pet.
type ReconcileReport struct {
	PetID          uuid.UUID `json:"pet_id"`
	PreviousCount  int       `json:"previous_count"`
	Count          int       `json:"count"`
	Cancelled      int       `json:"cancelled"`
	LeaseTakenOver bool      `json:"lease_taken_over"`
}

// Changed reports whether anything was repaired.
func (r ReconcileReport) Changed() bool {
	return r.PreviousCount != r.Count || r.Cancelled > 0 || r.LeaseTakenOver
}

// ReconcileService re-derives each pet's applicant count and approval from its
// applications and closes applications left open by an interrupted operation.
type ReconcileService struct {
	pets       petDomain.PetRepository
	guard      *PetGuard
	dispatcher *notification.Dispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(
	pets petDomain.PetRepository,
	guard *PetGuard,
	dispatcher *notification.Dispatcher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReconcileService {
	return &ReconcileService{pets: pets, guard: guard, dispatcher: dispatcher, metrics: m, logger: logger}
}

// ReconcilePet repairs one pet under its lease.
func (s *ReconcileService) ReconcilePet(ctx context.Context, petID uuid.UUID) (*ReconcileReport, error) {
	report := &ReconcileReport{PetID: petID}

	held, err := s.guard.WithLease(ctx, petID, petDomain.PurposeReconcile, func(ctx context.Context, l *HeldLease) error {
		report.PreviousCount = l.Pet().ApplicantCount()
		report.LeaseTakenOver = l.TookOver()
		if l.healed {
			// Acquire already repaired the pet.
			return nil
		}
		return s.guard.repair(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	report.Count = held.FinalCount
	report.Cancelled = len(held.Repaired)
	if len(held.Repaired) > 0 {
		s.dispatcher.Dispatch(ctx, rejectionEvents(held.Pet().Profile().Name, held.Repaired, uuid.Nil)...)
	}
	if report.Changed() {
		if s.metrics != nil {
			s.metrics.ReconcileRepairs.Inc()
		}
		s.logger.Info("pet reconciled",
			zap.String("pet_id", petID.String()),
			zap.Int("previous_count", report.PreviousCount),
			zap.Int("count", report.Count),
			zap.Int("cancelled", report.Cancelled),
		)
	}
	return report, nil
}

// ReconcileAll repairs every pet. A pet that is busy or fails is skipped and
// its error included in the joined result.
func (s *ReconcileService) ReconcileAll(ctx context.Context) ([]ReconcileReport, error) {
	ids, err := s.pets.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	var (
		reports []ReconcileReport
		errs    []error
	)
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report, err := s.ReconcilePet(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			s.logger.Warn("failed to reconcile pet", zap.String("pet_id", id.String()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		reports = append(reports, *report)
	}
	return reports, errors.Join(errs...)
}
