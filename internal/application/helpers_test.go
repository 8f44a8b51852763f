package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/notification"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/repository/memory"
)

type fixture struct {
	store     *memory.Store
	recorder  *notification.Recorder
	metrics   *metrics.Metrics
	guard     *PetGuard
	pets      *PetService
	adoptions *AdoptionService
	users     *UserService
	reconcile *ReconcileService
}

type fixtureSettings struct {
	guard     GuardConfig
	withdraw  WithdrawPolicy
	adoptions func(adoptionDomain.AdoptionRepository) adoptionDomain.AdoptionRepository
}

type fixtureOption func(*fixtureSettings)

func withAttempts(n int) fixtureOption {
	return func(s *fixtureSettings) { s.guard.MaxAttempts = n }
}

func withCascade() fixtureOption {
	return func(s *fixtureSettings) { s.withdraw = WithdrawCascade }
}

// withAdoptions wraps the adoption repository seen by the services.
func withAdoptions(wrap func(adoptionDomain.AdoptionRepository) adoptionDomain.AdoptionRepository) fixtureOption {
	return func(s *fixtureSettings) { s.adoptions = wrap }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	settings := fixtureSettings{
		guard:    GuardConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond, LeaseTTL: 30 * time.Second},
		withdraw: WithdrawReject,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	log := zap.NewNop()
	store := memory.NewStore()
	rec := notification.NewRecorder()
	m := metrics.New(false)
	dispatcher := notification.NewDispatcher(rec, m, log)

	var adoptions adoptionDomain.AdoptionRepository = store.Adoptions()
	if settings.adoptions != nil {
		adoptions = settings.adoptions(adoptions)
	}

	guard := NewPetGuard(store.Pets(), adoptions, settings.guard, m, log)
	petSvc := NewPetService(store.Pets(), adoptions, guard, dispatcher, settings.withdraw, m, log)
	adoptSvc := NewAdoptionService(store.Pets(), adoptions, guard, dispatcher, m, log)

	return &fixture{
		store:     store,
		recorder:  rec,
		metrics:   m,
		guard:     guard,
		pets:      petSvc,
		adoptions: adoptSvc,
		users:     NewUserService(store.Users(), store.Pets(), adoptions, petSvc, adoptSvc, log),
		reconcile: NewReconcileService(store.Pets(), guard, dispatcher, m, log),
	}
}

func newActor(role auth.Role) *auth.Actor {
	return &auth.Actor{ID: uuid.New(), Role: role}
}

func petRequest(name string) CreatePetRequest {
	return CreatePetRequest{
		Name:    name,
		Species: "dog",
		Breed:   "labrador",
		Age:     "2 years",
		Gender:  "female",
		Photos:  []string{"photos/" + name + ".jpg"},
	}
}

func applyRequest() ApplyRequest {
	return ApplyRequest{
		Reason:          "we have a big garden",
		Experience:      "two dogs before",
		LivingCondition: "house",
	}
}

func (f *fixture) createPet(t *testing.T, owner *auth.Actor) *PetDTO {
	t.Helper()
	p, err := f.pets.CreatePet(context.Background(), owner, petRequest("Luna"))
	require.NoError(t, err)
	return p
}

func (f *fixture) apply(t *testing.T, applicant *auth.Actor, petID uuid.UUID) *AdoptionDTO {
	t.Helper()
	a, err := f.adoptions.Apply(context.Background(), applicant, petID, applyRequest())
	require.NoError(t, err)
	return a
}

func (f *fixture) applicantCount(t *testing.T, petID uuid.UUID) int {
	t.Helper()
	p, err := f.store.Pets().FindByID(context.Background(), petID)
	require.NoError(t, err)
	return p.ApplicantCount()
}

// flakyAdoptions fails the Update calls selected by fail with a store outage.
// Calls are numbered from 1 since the last failWhen.
type flakyAdoptions struct {
	adoptionDomain.AdoptionRepository

	mu      sync.Mutex
	updates int
	fail    func(n int) bool
}

func (r *flakyAdoptions) failWhen(fail func(n int) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = 0
	r.fail = fail
}

func (r *flakyAdoptions) Update(ctx context.Context, a *adoptionDomain.Adoption) error {
	r.mu.Lock()
	r.updates++
	n, fail := r.updates, r.fail
	r.mu.Unlock()

	if fail != nil && fail(n) {
		return domain.NewStoreUnavailableError(errors.New("connection reset by peer"))
	}
	return r.AdoptionRepository.Update(ctx, a)
}
