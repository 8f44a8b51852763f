package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
)

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := newActor(auth.RoleOwner)
	require.NoError(t, f.users.RegisterUser(ctx, owner.ID, auth.RoleOwner, "Dana", "dana@example.com"))

	listed := f.createPet(t, owner)
	gone := f.createPet(t, owner)
	_, err := f.pets.WithdrawPet(ctx, owner, gone.ID)
	require.NoError(t, err)

	other := f.createPet(t, newActor(auth.RoleOwner))
	app := f.apply(t, owner, other.ID)

	profile, err := f.users.GetProfile(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "Dana", profile.DisplayName)
	assert.Equal(t, string(auth.RoleOwner), profile.Role)
	assert.NotNil(t, profile.CreatedAt)
	assert.Equal(t, []uuid.UUID{listed.ID}, profile.Publications)
	assert.Equal(t, []uuid.UUID{app.ID}, profile.Applications)
}

func TestGetProfile_UnknownUserFallsBackToToken(t *testing.T) {
	f := newFixture(t)
	actor := newActor(auth.RoleApplicant)

	profile, err := f.users.GetProfile(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, profile.ID)
	assert.Equal(t, string(auth.RoleApplicant), profile.Role)
	assert.Empty(t, profile.Publications)
	assert.Empty(t, profile.Applications)

	_, err = f.users.GetProfile(context.Background(), nil)
	assert.True(t, domain.IsForbidden(err))
}

func TestRegisterUser_Validation(t *testing.T) {
	f := newFixture(t)
	err := f.users.RegisterUser(context.Background(), uuid.Nil, auth.RoleOwner, "x", "")
	assert.True(t, domain.IsValidation(err))
}

func TestRemoveUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	leaving := newActor(auth.RoleOwner)
	require.NoError(t, f.users.RegisterUser(ctx, leaving.ID, auth.RoleOwner, "Sam", ""))

	// A pet the leaving user listed, with an application from someone else.
	own := f.createPet(t, leaving)
	other := newActor(auth.RoleApplicant)
	onOwn := f.apply(t, other, own.ID)

	// An application the leaving user filed on another pet.
	foreign := f.createPet(t, newActor(auth.RoleOwner))
	filed := f.apply(t, leaving, foreign.ID)

	require.NoError(t, f.users.RemoveUser(ctx, leaving.ID))

	a, err := f.store.Adoptions().FindByID(ctx, filed.ID)
	require.NoError(t, err)
	assert.Equal(t, adoptionDomain.StatusCancelled, a.Status())
	assert.Equal(t, adoptionDomain.ReasonApplicantRemoved, a.CancelReason())
	assert.Equal(t, 0, f.applicantCount(t, foreign.ID))

	p, err := f.store.Pets().FindByID(ctx, own.ID)
	require.NoError(t, err)
	assert.Equal(t, petDomain.StatusWithdrawn, p.Status())
	assert.Equal(t, 0, p.ApplicantCount())

	b, err := f.store.Adoptions().FindByID(ctx, onOwn.ID)
	require.NoError(t, err)
	assert.Equal(t, adoptionDomain.ReasonPetWithdrawn, b.CancelReason())

	_, err = f.store.Users().FindByID(ctx, leaving.ID)
	assert.True(t, domain.IsNotFound(err))
}
