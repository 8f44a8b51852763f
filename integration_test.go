//go:build integration

package main_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	adoptionEvents "github.com/Kilat-Pet-Delivery/service-adoption/internal/events"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/notification"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/repository"
)

// TestApprove_PublishesDecisions applies to one pet from many applicants at
// once, approves one application and checks both the stored counters and the
// notifications that reach adoption.events.
func TestApprove_PublishesDecisions(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupAdoptionStack(t, infra)
	defer stack.Cleanup()

	ctx := context.Background()
	owner := &auth.Actor{ID: uuid.New(), Role: auth.RoleOwner}
	pet, err := stack.Services.Pets.CreatePet(ctx, owner, application.CreatePetRequest{
		Name: "Mochi", Species: "cat", Breed: "siamese", Age: "2 years", Gender: "female",
	})
	require.NoError(t, err)

	const applicants = 8
	ids := make([]uuid.UUID, applicants)
	var wg sync.WaitGroup
	for i := range applicants {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := &auth.Actor{ID: uuid.New(), Role: auth.RoleApplicant}
			dto, err := stack.Services.Adoptions.Apply(ctx, actor, pet.ID, application.ApplyRequest{
				Reason:          fmt.Sprintf("applicant %d", i),
				Experience:      "raised cats before",
				LivingCondition: "house with garden",
			})
			if assert.NoError(t, err) {
				ids[i] = dto.ID
			}
		}(i)
	}
	wg.Wait()

	var model repository.PetModel
	require.NoError(t, infra.DB.Where("id = ?", pet.ID).First(&model).Error)
	assert.Equal(t, applicants, model.ApplicantCount)
	assert.Nil(t, model.LeaseHolder, "lease must be released")

	result, err := stack.Services.Adoptions.Approve(ctx, owner, ids[0])
	require.NoError(t, err)
	assert.Len(t, result.Cancelled, applicants-1)

	require.NoError(t, infra.DB.Where("id = ?", pet.ID).First(&model).Error)
	assert.Equal(t, 0, model.ApplicantCount)
	require.NotNil(t, model.ApprovedAdoptionID)
	assert.Equal(t, ids[0], *model.ApprovedAdoptionID)

	approved := consumeEvents(t, infra.KafkaBrokers, notification.TopicAdoptionEvents,
		notification.ApplicationApproved.CloudEventType(), 1, 20*time.Second)
	assert.Equal(t, ids[0], approved[0].Payload.AdoptionID)

	rejected := consumeEvents(t, infra.KafkaBrokers, notification.TopicAdoptionEvents,
		notification.ApplicationRejected.CloudEventType(), applicants-1, 20*time.Second)
	for _, evt := range rejected {
		assert.Equal(t, pet.ID, evt.Payload.PetID)
		assert.NotEqual(t, ids[0], evt.Payload.AdoptionID)
	}

	// An adopted pet takes no further applications.
	other := &auth.Actor{ID: uuid.New(), Role: auth.RoleApplicant}
	_, err = stack.Services.Adoptions.Apply(ctx, other, pet.ID, application.ApplyRequest{
		Reason: "late", Experience: "some", LivingCondition: "flat",
	})
	assert.Error(t, err)
}

// TestUserDeleted_WithdrawsListings verifies that user.deleted removes the
// user's listings and applications.
func TestUserDeleted_WithdrawsListings(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupAdoptionStack(t, infra)
	defer stack.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	ownerID := uuid.New()
	publishTestEvent(t, infra.KafkaBrokers, adoptionEvents.TopicUserEvents,
		"service-identity", adoptionEvents.UserRegistered, adoptionEvents.UserRegisteredEvent{
			UserID:      ownerID,
			Role:        string(auth.RoleOwner),
			DisplayName: "Sam",
			Email:       "sam@example.com",
		})

	require.Eventually(t, func() bool {
		var user repository.UserModel
		return infra.DB.Where("id = ?", ownerID).First(&user).Error == nil
	}, 15*time.Second, 200*time.Millisecond, "user was not registered")

	owner := &auth.Actor{ID: ownerID, Role: auth.RoleOwner}
	pet, err := stack.Services.Pets.CreatePet(ctx, owner, application.CreatePetRequest{
		Name: "Biscuit", Species: "dog", Breed: "corgi", Age: "1 year", Gender: "male",
	})
	require.NoError(t, err)

	applicant := &auth.Actor{ID: uuid.New(), Role: auth.RoleApplicant}
	app, err := stack.Services.Adoptions.Apply(ctx, applicant, pet.ID, application.ApplyRequest{
		Reason: "companion", Experience: "grew up with dogs", LivingCondition: "house",
	})
	require.NoError(t, err)

	publishTestEvent(t, infra.KafkaBrokers, adoptionEvents.TopicUserEvents,
		"service-identity", adoptionEvents.UserDeleted, adoptionEvents.UserDeletedEvent{UserID: ownerID})

	require.Eventually(t, func() bool {
		var model repository.PetModel
		if err := infra.DB.Where("id = ?", pet.ID).First(&model).Error; err != nil {
			return false
		}
		return model.Status == "withdrawn" && model.ApplicantCount == 0
	}, 15*time.Second, 200*time.Millisecond, "pet was not withdrawn")

	var adoption repository.AdoptionModel
	require.NoError(t, infra.DB.Where("id = ?", app.ID).First(&adoption).Error)
	assert.Equal(t, "cancelled", adoption.Status)

	var count int64
	require.NoError(t, infra.DB.Model(&repository.UserModel{}).Where("id = ?", ownerID).Count(&count).Error)
	assert.Zero(t, count)
}

// TestMigrations_RollbackAndReapply checks that the down migration leaves a
// clean schema the up migration can be applied to again.
func TestMigrations_RollbackAndReapply(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	url := infra.DBConfig.DatabaseURL()
	version, dirty, err := database.MigrationVersion(url, "migrations")
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, database.RollbackMigrations(url, "migrations", 1, zap.NewNop()))
	assert.False(t, infra.DB.Migrator().HasTable("pets"))

	require.NoError(t, database.RunMigrations(url, "migrations", zap.NewNop()))
	assert.True(t, infra.DB.Migrator().HasTable("pets"))
	assert.True(t, infra.DB.Migrator().HasTable("adoptions"))
}
