package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
)

type fakeUsers struct {
	registered []uuid.UUID
	roles      []auth.Role
	removed    []uuid.UUID
	err        error
}

func (f *fakeUsers) RegisterUser(_ context.Context, id uuid.UUID, role auth.Role, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.registered = append(f.registered, id)
	f.roles = append(f.roles, role)
	return nil
}

func (f *fakeUsers) RemoveUser(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, id)
	return nil
}

func message(t *testing.T, eventType string, data any) kafkago.Message {
	t.Helper()
	ce, err := kafka.NewCloudEvent("service-identity", eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)
	return kafkago.Message{Topic: TopicUserEvents, Value: raw}
}

func newTestConsumer(users UserLifecycle) *UserEventConsumer {
	return &UserEventConsumer{users: users, logger: zap.NewNop()}
}

func TestHandleMessage_Registered(t *testing.T) {
	users := &fakeUsers{}
	c := newTestConsumer(users)
	id := uuid.New()

	err := c.handleMessage(context.Background(), message(t, UserRegistered, UserRegisteredEvent{
		UserID: id, Role: "applicant", DisplayName: "Kim",
	}))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, users.registered)
	assert.Equal(t, []auth.Role{auth.RoleApplicant}, users.roles)
}

func TestHandleMessage_Deleted(t *testing.T) {
	users := &fakeUsers{}
	c := newTestConsumer(users)
	id := uuid.New()

	require.NoError(t, c.handleMessage(context.Background(), message(t, UserDeleted, UserDeletedEvent{UserID: id})))
	assert.Equal(t, []uuid.UUID{id}, users.removed)
}

func TestHandleMessage_StoreErrorIsRetried(t *testing.T) {
	users := &fakeUsers{err: domain.NewStoreUnavailableError(errors.New("connection refused"))}
	c := newTestConsumer(users)

	err := c.handleMessage(context.Background(), message(t, UserDeleted, UserDeletedEvent{UserID: uuid.New()}))
	assert.True(t, domain.IsStoreUnavailable(err))
}

func TestHandleMessage_DropsBadInput(t *testing.T) {
	users := &fakeUsers{err: domain.NewValidationError("invalid role: runner")}
	c := newTestConsumer(users)
	ctx := context.Background()

	assert.NoError(t, c.handleMessage(ctx, kafkago.Message{Value: []byte("not json")}))
	assert.NoError(t, c.handleMessage(ctx, message(t, "user.renamed", map[string]string{"x": "y"})))
	assert.NoError(t, c.handleMessage(ctx, message(t, UserRegistered, UserRegisteredEvent{UserID: uuid.New(), Role: "runner"})))
}
