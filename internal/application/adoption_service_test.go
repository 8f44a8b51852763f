package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/notification"
)

func TestApproveCancelsSiblingsAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := newActor(auth.RoleOwner)
	alice := newActor(auth.RoleApplicant)
	bob := newActor(auth.RoleApplicant)

	pet := f.createPet(t, owner)
	a1 := f.apply(t, alice, pet.ID)
	a2 := f.apply(t, bob, pet.ID)
	assert.Equal(t, 2, f.applicantCount(t, pet.ID))

	newApps := f.recorder.OfType(notification.NewApplication)
	require.Len(t, newApps, 2)
	assert.Equal(t, owner.ID, newApps[0].RecipientID)

	result, err := f.adoptions.Approve(ctx, owner, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, string(adoptionDomain.StatusApproved), result.Approved.Status)
	require.Len(t, result.Cancelled, 1)
	assert.Equal(t, a2.ID, result.Cancelled[0].ID)

	stored2, err := f.store.Adoptions().FindByID(ctx, a2.ID)
	require.NoError(t, err)
	assert.Equal(t, adoptionDomain.StatusCancelled, stored2.Status())
	assert.Equal(t, adoptionDomain.ReasonSiblingApproved, stored2.CancelReason())

	assert.Equal(t, 0, f.applicantCount(t, pet.ID))

	approved := f.recorder.OfType(notification.ApplicationApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, alice.ID, approved[0].RecipientID)

	rejected := f.recorder.OfType(notification.ApplicationRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, bob.ID, rejected[0].RecipientID)

	storedPet, err := f.store.Pets().FindByID(ctx, pet.ID)
	require.NoError(t, err)
	require.NotNil(t, storedPet.ApprovedAdoptionID())
	assert.Equal(t, a1.ID, *storedPet.ApprovedAdoptionID())
	assert.Nil(t, storedPet.Lease())
}

func TestApply_Rules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := newActor(auth.RoleOwner)
	applicant := newActor(auth.RoleApplicant)
	pet := f.createPet(t, owner)

	t.Run("owner cannot apply", func(t *testing.T) {
		_, err := f.adoptions.Apply(ctx, owner, pet.ID, applyRequest())
		assert.True(t, domain.IsForbidden(err))
	})

	t.Run("anonymous cannot apply", func(t *testing.T) {
		_, err := f.adoptions.Apply(ctx, nil, pet.ID, applyRequest())
		assert.True(t, domain.IsForbidden(err))
	})

	t.Run("unknown pet", func(t *testing.T) {
		_, err := f.adoptions.Apply(ctx, applicant, uuid.New(), applyRequest())
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("missing details", func(t *testing.T) {
		_, err := f.adoptions.Apply(ctx, applicant, pet.ID, ApplyRequest{Reason: "x"})
		require.True(t, domain.IsValidation(err))
		assert.Contains(t, err.Error(), "experience")
		assert.Contains(t, err.Error(), "living_condition")
	})

	t.Run("one active application per applicant", func(t *testing.T) {
		first := f.apply(t, applicant, pet.ID)
		_, err := f.adoptions.Apply(ctx, applicant, pet.ID, applyRequest())
		assert.True(t, domain.IsConflict(err))
		assert.Equal(t, 1, f.applicantCount(t, pet.ID))

		_, err = f.adoptions.Cancel(ctx, applicant, first.ID)
		require.NoError(t, err)

		f.apply(t, applicant, pet.ID)
		assert.Equal(t, 1, f.applicantCount(t, pet.ID))
	})
}

func TestApply_RejectedOnAdoptedOrWithdrawnPet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := newActor(auth.RoleOwner)

	adopted := f.createPet(t, owner)
	a := f.apply(t, newActor(auth.RoleApplicant), adopted.ID)
	_, err := f.adoptions.Approve(ctx, owner, a.ID)
	require.NoError(t, err)

	_, err = f.adoptions.Apply(ctx, newActor(auth.RoleApplicant), adopted.ID, applyRequest())
	assert.True(t, domain.IsConflict(err))

	withdrawn := f.createPet(t, owner)
	_, err = f.pets.WithdrawPet(ctx, owner, withdrawn.ID)
	require.NoError(t, err)

	_, err = f.adoptions.Apply(ctx, newActor(auth.RoleApplicant), withdrawn.ID, applyRequest())
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, 0, f.applicantCount(t, withdrawn.ID))
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := newActor(auth.RoleOwner)
	applicant := newActor(auth.RoleApplicant)
	pet := f.createPet(t, owner)
	a := f.apply(t, applicant, pet.ID)
	f.recorder.Reset()

	_, err := f.adoptions.Cancel(ctx, owner, a.ID)
	assert.True(t, domain.IsForbidden(err))

	cancelled, err := f.adoptions.Cancel(ctx, applicant, a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(adoptionDomain.StatusCancelled), cancelled.Status)
	assert.Equal(t, adoptionDomain.ReasonCancelledByApplicant, cancelled.CancelReason)
	assert.Equal(t, 0, f.applicantCount(t, pet.ID))
	assert.Empty(t, f.recorder.Events())

	_, err = f.adoptions.Cancel(ctx, applicant, a.ID)
	assert.True(t, domain.IsConflict(err))

	_, err = f.adoptions.Cancel(ctx, applicant, uuid.New())
	assert.True(t, domain.IsNotFound(err))
}

func TestApprove_TerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := newActor(auth.RoleOwner)
	applicant := newActor(auth.RoleApplicant)
	other := newActor(auth.RoleApplicant)
	pet := f.createPet(t, owner)
	a1 := f.apply(t, applicant, pet.ID)
	a2 := f.apply(t, other, pet.ID)

	_, err := f.adoptions.Approve(ctx, applicant, a1.ID)
	assert.True(t, domain.IsForbidden(err))

	_, err = f.adoptions.Approve(ctx, owner, a1.ID)
	require.NoError(t, err)

	_, err = f.adoptions.Approve(ctx, owner, a1.ID)
	assert.True(t, domain.IsConflict(err))

	_, err = f.adoptions.Approve(ctx, owner, a2.ID)
	assert.True(t, domain.IsConflict(err))

	_, err = f.adoptions.Cancel(ctx, applicant, a1.ID)
	assert.True(t, domain.IsConflict(err))

	stored, err := f.store.Adoptions().FindByID(ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, adoptionDomain.StatusApproved, stored.Status())
}

func TestApprove_AdminMayApprove(t *testing.T) {
	f := newFixture(t)
	pet := f.createPet(t, newActor(auth.RoleOwner))
	a := f.apply(t, newActor(auth.RoleApplicant), pet.ID)

	result, err := f.adoptions.Approve(context.Background(), newActor(auth.RoleAdmin), a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(adoptionDomain.StatusApproved), result.Approved.Status)
}

func TestConcurrentApplyKeepsCounterExact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withAttempts(200))
	owner := newActor(auth.RoleOwner)
	pet := f.createPet(t, owner)

	const n = 20
	applicants := make([]*auth.Actor, n)
	for i := range applicants {
		applicants[i] = newActor(auth.RoleApplicant)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(actor *auth.Actor) {
			defer wg.Done()
			a, err := f.adoptions.Apply(ctx, actor, pet.ID, applyRequest())
			if err != nil {
				return
			}
			if actor.ID[0]%2 == 0 {
				_, _ = f.adoptions.Cancel(ctx, actor, a.ID)
			}
		}(applicants[i])
	}
	wg.Wait()

	active, err := f.store.Adoptions().CountByPetID(ctx, pet.ID, adoptionDomain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, active, f.applicantCount(t, pet.ID))
}

func TestConcurrentApprovalsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withAttempts(200))
	owner := newActor(auth.RoleOwner)
	admin := newActor(auth.RoleAdmin)
	pet := f.createPet(t, owner)

	var ids []uuid.UUID
	for i := 0; i < 6; i++ {
		ids = append(ids, f.apply(t, newActor(auth.RoleApplicant), pet.ID).ID)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i, id := range ids {
		wg.Add(1)
		approver := owner
		if i%2 == 1 {
			approver = admin
		}
		go func(id uuid.UUID, approver *auth.Actor) {
			defer wg.Done()
			if _, err := f.adoptions.Approve(ctx, approver, id); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			} else {
				assert.True(t, domain.IsConflict(err), "unexpected error: %v", err)
			}
		}(id, approver)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)

	approved, err := f.store.Adoptions().FindByPetID(ctx, pet.ID, adoptionDomain.StatusApproved)
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	active, err := f.store.Adoptions().FindByPetID(ctx, pet.ID, adoptionDomain.StatusActive)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, 0, f.applicantCount(t, pet.ID))
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.recorder.FailWith(errors.New("broker unavailable"))
	owner := newActor(auth.RoleOwner)
	pet := f.createPet(t, owner)

	a := f.apply(t, newActor(auth.RoleApplicant), pet.ID)

	stored, err := f.store.Adoptions().FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive())
	assert.Equal(t, 1, f.applicantCount(t, pet.ID))

	_, err = f.adoptions.Approve(ctx, owner, a.ID)
	require.NoError(t, err)
}

func TestBusyPetSurfacesConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withAttempts(2))
	owner := newActor(auth.RoleOwner)
	pet := f.createPet(t, owner)

	held, err := f.guard.Acquire(ctx, pet.ID, petDomain.PurposeApproval)
	require.NoError(t, err)

	_, err = f.adoptions.Apply(ctx, newActor(auth.RoleApplicant), pet.ID, applyRequest())
	assert.True(t, domain.IsConflict(err))

	held.Release(ctx)
	f.apply(t, newActor(auth.RoleApplicant), pet.ID)
	assert.Equal(t, 1, f.applicantCount(t, pet.ID))
}

func TestExpiredLeaseIsTakenOverAndRepaired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := newActor(auth.RoleOwner)
	pet := f.createPet(t, owner)
	winner := f.apply(t, newActor(auth.RoleApplicant), pet.ID)
	loser := f.apply(t, newActor(auth.RoleApplicant), pet.ID)

	// An approval that crashed after approving the winner, holding the lease.
	_, err := f.guard.Acquire(ctx, pet.ID, petDomain.PurposeApproval)
	require.NoError(t, err)
	a, err := f.store.Adoptions().FindByID(ctx, winner.ID)
	require.NoError(t, err)
	require.NoError(t, a.Approve(owner.ID, time.Now()))
	a.IncrementVersion()
	require.NoError(t, f.store.Adoptions().Update(ctx, a))

	f.guard.now = func() time.Time { return time.Now().UTC().Add(time.Minute) }
	f.recorder.Reset()

	report, err := f.reconcile.ReconcilePet(ctx, pet.ID)
	require.NoError(t, err)
	assert.True(t, report.LeaseTakenOver)
	assert.Equal(t, 1, report.Cancelled)
	assert.Equal(t, 0, report.Count)

	stored, err := f.store.Adoptions().FindByID(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, adoptionDomain.StatusCancelled, stored.Status())

	storedPet, err := f.store.Pets().FindByID(ctx, pet.ID)
	require.NoError(t, err)
	require.NotNil(t, storedPet.ApprovedAdoptionID())
	assert.Equal(t, winner.ID, *storedPet.ApprovedAdoptionID())
	assert.Nil(t, storedPet.Lease())

	rejected := f.recorder.OfType(notification.ApplicationRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, loser.ApplicantID, rejected[0].RecipientID)
}

func TestStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	pet := f.createPet(t, newActor(auth.RoleOwner))
	f.store.SetOffline(true)

	_, err := f.adoptions.Apply(context.Background(), newActor(auth.RoleApplicant), pet.ID, applyRequest())
	assert.True(t, domain.IsStoreUnavailable(err))
}

func TestListAndGetAdoptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := newActor(auth.RoleOwner)
	applicant := newActor(auth.RoleApplicant)
	pet := f.createPet(t, owner)
	a := f.apply(t, applicant, pet.ID)

	list, err := f.adoptions.ListPetAdoptions(ctx, owner, pet.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.adoptions.ListPetAdoptions(ctx, applicant, pet.ID)
	assert.True(t, domain.IsForbidden(err))

	mine, err := f.adoptions.ListMyAdoptions(ctx, applicant)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	_, err = f.adoptions.GetAdoption(ctx, newActor(auth.RoleApplicant), a.ID)
	assert.True(t, domain.IsForbidden(err))

	got, err := f.adoptions.GetAdoption(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	stats, err := f.adoptions.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Adoptions["active"])
	assert.Equal(t, int64(1), stats.Pets["listed"])
}

func TestApproveRetriesInterruptedSiblingSweep(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyAdoptions{}
	f := newFixture(t, withAdoptions(func(r adoptionDomain.AdoptionRepository) adoptionDomain.AdoptionRepository {
		flaky.AdoptionRepository = r
		return flaky
	}))
	owner := newActor(auth.RoleOwner)
	pet := f.createPet(t, owner)
	winner := f.apply(t, newActor(auth.RoleApplicant), pet.ID)
	second := f.apply(t, newActor(auth.RoleApplicant), pet.ID)
	third := f.apply(t, newActor(auth.RoleApplicant), pet.ID)

	// The first write after the winner's fails once.
	flaky.failWhen(func(n int) bool { return n == 2 })

	result, err := f.adoptions.Approve(ctx, owner, winner.ID)
	require.NoError(t, err)
	assert.False(t, result.SiblingsPending)
	assert.Len(t, result.Cancelled, 2)

	for _, id := range []uuid.UUID{second.ID, third.ID} {
		stored, err := f.store.Adoptions().FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, adoptionDomain.StatusCancelled, stored.Status())
		assert.Equal(t, adoptionDomain.ReasonSiblingApproved, stored.CancelReason())
	}
	assert.Equal(t, 0, f.applicantCount(t, pet.ID))
	assert.Len(t, f.recorder.OfType(notification.ApplicationRejected), 2)
}

func TestApproveStraySiblingsClosedByNextLeaseHolder(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyAdoptions{}
	f := newFixture(t, withAdoptions(func(r adoptionDomain.AdoptionRepository) adoptionDomain.AdoptionRepository {
		flaky.AdoptionRepository = r
		return flaky
	}))
	owner := newActor(auth.RoleOwner)
	pet := f.createPet(t, owner)
	winner := f.apply(t, newActor(auth.RoleApplicant), pet.ID)
	second := f.apply(t, newActor(auth.RoleApplicant), pet.ID)
	thirdApplicant := newActor(auth.RoleApplicant)
	third := f.apply(t, thirdApplicant, pet.ID)

	// Only the winner's write goes through.
	flaky.failWhen(func(n int) bool { return n >= 2 })

	result, err := f.adoptions.Approve(ctx, owner, winner.ID)
	require.NoError(t, err, "a committed approval is reported as such")
	assert.True(t, result.SiblingsPending)
	assert.Empty(t, result.Cancelled)
	assert.Equal(t, string(adoptionDomain.StatusApproved), result.Approved.Status)

	stored, err := f.store.Adoptions().FindByID(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, stored.IsActive())

	flaky.failWhen(nil)
	f.recorder.Reset()

	// The applicant's own cancel takes the lease, which closes the strays
	// first, so the application is no longer theirs to cancel.
	_, err = f.adoptions.Cancel(ctx, thirdApplicant, third.ID)
	assert.True(t, domain.IsConflict(err), "unexpected error: %v", err)

	for _, id := range []uuid.UUID{second.ID, third.ID} {
		stored, err := f.store.Adoptions().FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, adoptionDomain.StatusCancelled, stored.Status())
		assert.Equal(t, adoptionDomain.ReasonSiblingApproved, stored.CancelReason())
	}
	assert.Equal(t, 0, f.applicantCount(t, pet.ID))
	assert.Len(t, f.recorder.OfType(notification.ApplicationRejected), 2)

	storedPet, err := f.store.Pets().FindByID(ctx, pet.ID)
	require.NoError(t, err)
	require.NotNil(t, storedPet.ApprovedAdoptionID())
	assert.Equal(t, winner.ID, *storedPet.ApprovedAdoptionID())
	assert.Nil(t, storedPet.Lease())
}

func TestApplyToAdoptedPetClosesStraySiblings(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyAdoptions{}
	f := newFixture(t, withAdoptions(func(r adoptionDomain.AdoptionRepository) adoptionDomain.AdoptionRepository {
		flaky.AdoptionRepository = r
		return flaky
	}))
	owner := newActor(auth.RoleOwner)
	pet := f.createPet(t, owner)
	winner := f.apply(t, newActor(auth.RoleApplicant), pet.ID)
	stray := f.apply(t, newActor(auth.RoleApplicant), pet.ID)

	flaky.failWhen(func(n int) bool { return n >= 2 })
	result, err := f.adoptions.Approve(ctx, owner, winner.ID)
	require.NoError(t, err)
	require.True(t, result.SiblingsPending)
	flaky.failWhen(nil)

	_, err = f.adoptions.Apply(ctx, newActor(auth.RoleApplicant), pet.ID, applyRequest())
	assert.True(t, domain.IsConflict(err), "unexpected error: %v", err)

	stored, err := f.store.Adoptions().FindByID(ctx, stray.ID)
	require.NoError(t, err)
	assert.Equal(t, adoptionDomain.StatusCancelled, stored.Status())
	assert.Equal(t, 0, f.applicantCount(t, pet.ID))
}
