// Package memory is an in-process Record Store. Every read returns a copy, so
// callers can mutate aggregates freely until they call Update.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
)

var errOffline = errors.New("memory store is offline")

// Store holds all three collections behind one lock.
type Store struct {
	mu        sync.RWMutex
	pets      map[uuid.UUID]*petDomain.Pet
	adoptions map[uuid.UUID]*adoptionDomain.Adoption
	users     map[uuid.UUID]*userDomain.User
	offline   bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		pets:      make(map[uuid.UUID]*petDomain.Pet),
		adoptions: make(map[uuid.UUID]*adoptionDomain.Adoption),
		users:     make(map[uuid.UUID]*userDomain.User),
	}
}

// SetOffline makes every call fail with a StoreUnavailable error until it is
// switched back.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// Ping reports whether the store accepts calls.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check()
}

func (s *Store) check() error {
	if s.offline {
		return domain.NewStoreUnavailableError(errOffline)
	}
	return nil
}

// Pets returns the pet repository view of the store.
func (s *Store) Pets() *PetRepository { return &PetRepository{s: s} }

// Adoptions returns the adoption repository view of the store.
func (s *Store) Adoptions() *AdoptionRepository { return &AdoptionRepository{s: s} }

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// --- Pets ---

// PetRepository implements pet.PetRepository in memory.
type PetRepository struct{ s *Store }

var _ petDomain.PetRepository = (*PetRepository)(nil)

func (r *PetRepository) FindByID(_ context.Context, id uuid.UUID) (*petDomain.Pet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(); err != nil {
		return nil, err
	}
	p, ok := r.s.pets[id]
	if !ok {
		return nil, domain.NewNotFoundError("Pet", id.String())
	}
	return clonePet(p), nil
}

func (r *PetRepository) FindByOwnerID(_ context.Context, ownerID uuid.UUID, statuses ...petDomain.PetStatus) ([]*petDomain.Pet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(); err != nil {
		return nil, err
	}
	var out []*petDomain.Pet
	for _, p := range r.s.pets {
		if p.OwnerID() == ownerID && petStatusIn(p.Status(), statuses) {
			out = append(out, clonePet(p))
		}
	}
	sortPets(out)
	return out, nil
}

func (r *PetRepository) ListAvailable(_ context.Context, page, limit int) ([]*petDomain.Pet, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(); err != nil {
		return nil, 0, err
	}
	var all []*petDomain.Pet
	for _, p := range r.s.pets {
		if p.IsListed() && !p.IsAdopted() {
			all = append(all, p)
		}
	}
	sortPets(all)

	total := int64(len(all))
	start, end := pageBounds(len(all), page, limit)
	out := make([]*petDomain.Pet, 0, end-start)
	for _, p := range all[start:end] {
		out = append(out, clonePet(p))
	}
	return out, total, nil
}

func (r *PetRepository) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(r.s.pets))
	for id := range r.s.pets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *PetRepository) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, p := range r.s.pets {
		counts[string(p.Status())]++
	}
	return counts, nil
}

func (r *PetRepository) Save(_ context.Context, p *petDomain.Pet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(); err != nil {
		return err
	}
	if _, exists := r.s.pets[p.ID()]; exists {
		return domain.NewConflictError("pet already exists")
	}
	r.s.pets[p.ID()] = clonePet(p)
	return nil
}

func (r *PetRepository) Update(_ context.Context, p *petDomain.Pet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(); err != nil {
		return err
	}
	stored, ok := r.s.pets[p.ID()]
	if !ok {
		return domain.NewNotFoundError("Pet", p.ID().String())
	}
	if stored.Version() != p.Version()-1 {
		return domain.NewConflictError("pet was modified by another transaction")
	}
	r.s.pets[p.ID()] = clonePet(p)
	return nil
}

func (r *PetRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(); err != nil {
		return err
	}
	if _, ok := r.s.pets[id]; !ok {
		return domain.NewNotFoundError("Pet", id.String())
	}
	delete(r.s.pets, id)
	return nil
}

// --- Adoptions ---

// AdoptionRepository implements adoption.AdoptionRepository in memory.
type AdoptionRepository struct{ s *Store }

var _ adoptionDomain.AdoptionRepository = (*AdoptionRepository)(nil)

func (r *AdoptionRepository) FindByID(_ context.Context, id uuid.UUID) (*adoptionDomain.Adoption, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(); err != nil {
		return nil, err
	}
	a, ok := r.s.adoptions[id]
	if !ok {
		return nil, domain.NewNotFoundError("Adoption", id.String())
	}
	return cloneAdoption(a), nil
}

func (r *AdoptionRepository) FindByPetID(_ context.Context, petID uuid.UUID, statuses ...adoptionDomain.AdoptionStatus) ([]*adoptionDomain.Adoption, error) {
	return r.filter(func(a *adoptionDomain.Adoption) bool {
		return a.PetID() == petID && adoptionStatusIn(a.Status(), statuses)
	})
}

func (r *AdoptionRepository) FindByApplicantID(_ context.Context, applicantID uuid.UUID, statuses ...adoptionDomain.AdoptionStatus) ([]*adoptionDomain.Adoption, error) {
	return r.filter(func(a *adoptionDomain.Adoption) bool {
		return a.ApplicantID() == applicantID && adoptionStatusIn(a.Status(), statuses)
	})
}

func (r *AdoptionRepository) FindActive(_ context.Context, petID, applicantID uuid.UUID) (*adoptionDomain.Adoption, error) {
	found, err := r.filter(func(a *adoptionDomain.Adoption) bool {
		return a.PetID() == petID && a.ApplicantID() == applicantID && a.IsActive()
	})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (r *AdoptionRepository) CountByPetID(_ context.Context, petID uuid.UUID, status adoptionDomain.AdoptionStatus) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(); err != nil {
		return 0, err
	}
	n := 0
	for _, a := range r.s.adoptions {
		if a.PetID() == petID && a.Status() == status {
			n++
		}
	}
	return n, nil
}

func (r *AdoptionRepository) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, a := range r.s.adoptions {
		counts[string(a.Status())]++
	}
	return counts, nil
}

func (r *AdoptionRepository) Save(_ context.Context, a *adoptionDomain.Adoption) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(); err != nil {
		return err
	}
	if _, exists := r.s.adoptions[a.ID()]; exists {
		return domain.NewConflictError("adoption already exists")
	}
	r.s.adoptions[a.ID()] = cloneAdoption(a)
	return nil
}

func (r *AdoptionRepository) Update(_ context.Context, a *adoptionDomain.Adoption) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(); err != nil {
		return err
	}
	stored, ok := r.s.adoptions[a.ID()]
	if !ok {
		return domain.NewNotFoundError("Adoption", a.ID().String())
	}
	if stored.Version() != a.Version()-1 {
		return domain.NewConflictError("adoption was modified by another transaction")
	}
	r.s.adoptions[a.ID()] = cloneAdoption(a)
	return nil
}

func (r *AdoptionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(); err != nil {
		return err
	}
	if _, ok := r.s.adoptions[id]; !ok {
		return domain.NewNotFoundError("Adoption", id.String())
	}
	delete(r.s.adoptions, id)
	return nil
}

func (r *AdoptionRepository) filter(keep func(*adoptionDomain.Adoption) bool) ([]*adoptionDomain.Adoption, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(); err != nil {
		return nil, err
	}
	var out []*adoptionDomain.Adoption
	for _, a := range r.s.adoptions {
		if keep(a) {
			out = append(out, cloneAdoption(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID().String() < out[j].ID().String()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out, nil
}

// --- Users ---

// UserRepository implements user.UserRepository in memory.
type UserRepository struct{ s *Store }

var _ userDomain.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) FindByID(_ context.Context, id uuid.UUID) (*userDomain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("User", id.String())
	}
	return cloneUser(u), nil
}

func (r *UserRepository) Upsert(_ context.Context, u *userDomain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(); err != nil {
		return err
	}
	createdAt := u.CreatedAt()
	if existing, ok := r.s.users[u.ID()]; ok {
		createdAt = existing.CreatedAt()
	}
	r.s.users[u.ID()] = userDomain.Reconstruct(u.ID(), u.Role(), u.DisplayName(), u.Email(), createdAt, u.UpdatedAt())
	return nil
}

func (r *UserRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(); err != nil {
		return err
	}
	delete(r.s.users, id)
	return nil
}

// --- helpers ---

func clonePet(p *petDomain.Pet) *petDomain.Pet {
	return petDomain.Reconstruct(
		p.ID(), p.OwnerID(),
		p.Profile(),
		p.Status(),
		p.ApplicantCount(),
		p.ApprovedAdoptionID(),
		p.Lease(),
		p.Version(),
		p.CreatedAt(), p.UpdatedAt(),
		copyTime(p.WithdrawnAt()),
	)
}

func cloneAdoption(a *adoptionDomain.Adoption) *adoptionDomain.Adoption {
	var reviewerID *uuid.UUID
	if a.ReviewerID() != nil {
		id := *a.ReviewerID()
		reviewerID = &id
	}
	return adoptionDomain.Reconstruct(
		a.ID(), a.PetID(), a.PetOwnerID(), a.ApplicantID(),
		a.Details(),
		a.Status(),
		reviewerID,
		copyTime(a.ReviewedAt()),
		a.CancelReason(),
		a.Version(),
		a.CreatedAt(), a.UpdatedAt(),
	)
}

func cloneUser(u *userDomain.User) *userDomain.User {
	return userDomain.Reconstruct(u.ID(), u.Role(), u.DisplayName(), u.Email(), u.CreatedAt(), u.UpdatedAt())
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func sortPets(pets []*petDomain.Pet) {
	sort.Slice(pets, func(i, j int) bool {
		if pets[i].CreatedAt().Equal(pets[j].CreatedAt()) {
			return pets[i].ID().String() < pets[j].ID().String()
		}
		return pets[i].CreatedAt().After(pets[j].CreatedAt())
	})
}

func pageBounds(n, page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return 0, n
	}
	start := (page - 1) * limit
	if start > n {
		start = n
	}
	end := start + limit
	if end > n {
		end = n
	}
	return start, end
}

func petStatusIn(s petDomain.PetStatus, statuses []petDomain.PetStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

func adoptionStatusIn(s adoptionDomain.AdoptionStatus, statuses []adoptionDomain.AdoptionStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
