package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/metrics"
)

// systemActorID is recorded as reviewer on cancellations nobody asked for.
var systemActorID = uuid.Nil

// releaseAttempts is the minimum number of tries for writing a release.
const releaseAttempts = 5

var errPetBusy = errors.New("pet lease is held by another operation")

// GuardConfig tunes lease acquisition.
type GuardConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	LeaseTTL    time.Duration
}

// PetGuard serializes the operations that touch a pet's application set. The
// lease lives on the pet record and is taken with a version-checked write, so
// it holds across processes sharing the store.
type PetGuard struct {
	pets      petDomain.PetRepository
	adoptions adoptionDomain.AdoptionRepository
	cfg       GuardConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewPetGuard creates a PetGuard. m may be nil.
func NewPetGuard(
	pets petDomain.PetRepository,
	adoptions adoptionDomain.AdoptionRepository,
	cfg GuardConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PetGuard {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	return &PetGuard{
		pets:      pets,
		adoptions: adoptions,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HeldLease is a lease acquired by one operation. Its Pet is the snapshot read
// at acquisition.
type HeldLease struct {
	guard     *PetGuard
	holder    uuid.UUID
	purpose   petDomain.LeasePurpose
	pet       *petDomain.Pet
	tookOver  bool
	healed    bool
	mutations []func(*petDomain.Pet) error
	released  bool

	// Repaired lists applications closed while healing an abandoned lease.
	Repaired []*adoptionDomain.Adoption
	// FinalCount is the applicant count written on release.
	FinalCount int
}

// Pet returns the pet as read when the lease was taken.
func (l *HeldLease) Pet() *petDomain.Pet { return l.pet }

// TookOver reports whether an expired lease was overridden.
func (l *HeldLease) TookOver() bool { return l.tookOver }

// MutatePet applies fn to the snapshot now and again to the fresh record on
// release.
func (l *HeldLease) MutatePet(fn func(*petDomain.Pet) error) error {
	if err := fn(l.pet); err != nil {
		return err
	}
	l.mutations = append(l.mutations, fn)
	return nil
}

// Acquire takes the lease on petID. A busy pet is retried with exponential
// backoff; once attempts run out a Conflict error is returned. An adopted or
// withdrawn pet, or one whose lease was taken over, is repaired before the
// lease is handed out.
func (g *PetGuard) Acquire(ctx context.Context, petID uuid.UUID, purpose petDomain.LeasePurpose) (*HeldLease, error) {
	holder := uuid.New()
	var held *HeldLease

	attempt := 0
	op := func() error {
		attempt++
		p, err := g.pets.FindByID(ctx, petID)
		if err != nil {
			return backoff.Permanent(err)
		}

		acquired, tookOver := p.TryAcquireLease(holder, purpose, g.now(), g.cfg.LeaseTTL)
		if !acquired {
			g.countRetry(purpose)
			g.logger.Debug("pet is busy",
				zap.String("pet_id", petID.String()),
				zap.String("purpose", string(purpose)),
				zap.Int("attempt", attempt),
			)
			return errPetBusy
		}

		p.IncrementVersion()
		if err := g.pets.Update(ctx, p); err != nil {
			if domain.IsConflict(err) {
				g.countRetry(purpose)
				return err
			}
			return backoff.Permanent(err)
		}

		held = &HeldLease{guard: g, holder: holder, purpose: purpose, pet: p, tookOver: tookOver}
		return nil
	}

	if err := backoff.Retry(op, g.policy(ctx, g.cfg.MaxAttempts)); err != nil {
		if errors.Is(err, errPetBusy) || domain.IsConflict(err) {
			if g.metrics != nil {
				g.metrics.GuardConflicts.WithLabelValues(string(purpose)).Inc()
			}
			return nil, domain.NewConflictError(fmt.Sprintf("pet %s is busy, try again", petID))
		}
		return nil, err
	}

	if held.tookOver {
		if g.metrics != nil {
			g.metrics.GuardTakeovers.WithLabelValues(string(purpose)).Inc()
		}
		g.logger.Warn("took over expired pet lease",
			zap.String("pet_id", petID.String()),
			zap.String("purpose", string(purpose)),
		)
	}
	if held.tookOver || held.pet.IsAdopted() || !held.pet.IsListed() {
		if err := g.repair(ctx, held); err != nil {
			held.Release(ctx)
			return nil, err
		}
		held.healed = true
	}
	return held, nil
}

// Release writes pending pet mutations, the recomputed applicant count and
// clears the lease. A concurrent unguarded edit is absorbed by re-reading and
// retrying. Failures are logged: an unreleased lease expires and the next
// holder recounts.
func (l *HeldLease) Release(ctx context.Context) {
	if l.released {
		return
	}
	l.released = true

	g := l.guard
	petID := l.pet.ID()
	current := l.pet
	first := true

	// Release must complete even when the caller's context is already done.
	ctx = context.WithoutCancel(ctx)

	op := func() error {
		if !first {
			fresh, err := g.pets.FindByID(ctx, petID)
			if err != nil {
				return backoff.Permanent(err)
			}
			current = fresh
			for _, fn := range l.mutations {
				if err := fn(current); err != nil {
					return backoff.Permanent(err)
				}
			}
		}
		first = false

		if !current.HoldsLease(l.holder) {
			return backoff.Permanent(domain.NewConflictError("lease was taken over before release"))
		}

		count, err := g.syncCounters(ctx, current)
		if err != nil {
			return backoff.Permanent(err)
		}
		current.ReleaseLease(l.holder)
		current.IncrementVersion()
		if err := g.pets.Update(ctx, current); err != nil {
			if domain.IsConflict(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		l.FinalCount = count
		return nil
	}

	if err := backoff.Retry(op, g.policy(ctx, max(g.cfg.MaxAttempts, releaseAttempts))); err != nil {
		g.logger.Error("failed to release pet lease",
			zap.String("pet_id", petID.String()),
			zap.String("purpose", string(l.purpose)),
			zap.Error(err),
		)
	}
}

// WithLease runs fn while holding the lease on petID and always releases it.
func (g *PetGuard) WithLease(ctx context.Context, petID uuid.UUID, purpose petDomain.LeasePurpose, fn func(ctx context.Context, l *HeldLease) error) (*HeldLease, error) {
	held, err := g.Acquire(ctx, petID, purpose)
	if err != nil {
		return nil, err
	}
	fnErr := fn(ctx, held)
	held.Release(ctx)
	if fnErr != nil {
		return held, fnErr
	}
	return held, nil
}

// syncCounters recomputes the derived fields of p from the application set.
func (g *PetGuard) syncCounters(ctx context.Context, p *petDomain.Pet) (int, error) {
	count, err := g.adoptions.CountByPetID(ctx, p.ID(), adoptionDomain.StatusActive)
	if err != nil {
		return 0, err
	}
	p.SetApplicantCount(count)

	if !p.IsAdopted() {
		approved, err := g.adoptions.FindByPetID(ctx, p.ID(), adoptionDomain.StatusApproved)
		if err != nil {
			return 0, err
		}
		if len(approved) > 0 {
			if err := p.RecordApproval(approved[0].ID()); err != nil {
				return 0, err
			}
		}
	}
	return count, nil
}

// repair closes applications that must not be active: those left on a pet
// that already has an approved application or has been withdrawn. It runs
// under the lease.
func (g *PetGuard) repair(ctx context.Context, l *HeldLease) error {
	p := l.pet

	if !p.IsAdopted() {
		approved, err := g.adoptions.FindByPetID(ctx, p.ID(), adoptionDomain.StatusApproved)
		if err != nil {
			return err
		}
		if len(approved) > 0 {
			winner := approved[0].ID()
			if err := l.MutatePet(func(pet *petDomain.Pet) error { return pet.RecordApproval(winner) }); err != nil {
				return err
			}
		}
	}

	var reason string
	switch {
	case p.IsAdopted():
		reason = adoptionDomain.ReasonSiblingApproved
	case !p.IsListed():
		reason = adoptionDomain.ReasonPetWithdrawn
	default:
		return nil
	}

	cancelled, err := g.cancelActive(ctx, p.ID(), systemActorID, reason, uuid.Nil)
	if err != nil {
		return err
	}
	if len(cancelled) > 0 {
		g.logger.Info("closed stray applications",
			zap.String("pet_id", p.ID().String()),
			zap.String("reason", reason),
			zap.Int("count", len(cancelled)),
		)
	}
	l.Repaired = append(l.Repaired, cancelled...)
	return nil
}

// sweepActive runs cancelActive, retrying with backoff when a write fails.
// It returns every application it cancelled, including those from failed
// rounds.
func (g *PetGuard) sweepActive(ctx context.Context, petID, reviewerID uuid.UUID, reason string, keep uuid.UUID) ([]*adoptionDomain.Adoption, error) {
	var cancelled []*adoptionDomain.Adoption
	op := func() error {
		done, err := g.cancelActive(ctx, petID, reviewerID, reason, keep)
		cancelled = append(cancelled, done...)
		if err != nil {
			g.logger.Warn("sibling sweep interrupted",
				zap.String("pet_id", petID.String()),
				zap.Int("cancelled", len(cancelled)),
				zap.Error(err),
			)
		}
		return err
	}
	err := backoff.Retry(op, g.policy(ctx, max(g.cfg.MaxAttempts, releaseAttempts)))
	return cancelled, err
}

// cancelActive cancels every active application on the pet except keep, and
// re-enumerates until none remain. Callers hold the lease.
func (g *PetGuard) cancelActive(ctx context.Context, petID, reviewerID uuid.UUID, reason string, keep uuid.UUID) ([]*adoptionDomain.Adoption, error) {
	var cancelled []*adoptionDomain.Adoption
	for {
		active, err := g.adoptions.FindByPetID(ctx, petID, adoptionDomain.StatusActive)
		if err != nil {
			return cancelled, err
		}

		progressed := false
		for _, a := range active {
			if a.ID() == keep {
				continue
			}
			if err := a.Cancel(reviewerID, reason, g.now()); err != nil {
				return cancelled, err
			}
			a.IncrementVersion()
			if err := g.adoptions.Update(ctx, a); err != nil {
				return cancelled, err
			}
			cancelled = append(cancelled, a)
			progressed = true
		}
		if !progressed {
			return cancelled, nil
		}
	}
}

func (g *PetGuard) policy(ctx context.Context, attempts int) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.cfg.BaseBackoff
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = time.Millisecond
	}
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.5
	exp.MaxInterval = time.Second
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

func (g *PetGuard) countRetry(purpose petDomain.LeasePurpose) {
	if g.metrics != nil {
		g.metrics.GuardRetries.WithLabelValues(string(purpose)).Inc()
	}
}
