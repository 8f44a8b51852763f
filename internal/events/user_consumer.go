package events

import (
	"context"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
)

// Identity-service topic and event types consumed by this service.
const (
	TopicUserEvents = "user.events"

	UserRegistered = "user.registered"
	UserDeleted    = "user.deleted"
)

// UserRegisteredEvent is the payload of user.registered.
type UserRegisteredEvent struct {
	UserID      uuid.UUID `json:"user_id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
}

// UserDeletedEvent is the payload of user.deleted.
type UserDeletedEvent struct {
	UserID uuid.UUID `json:"user_id"`
}

// UserLifecycle is the part of the user service driven by identity events.
type UserLifecycle interface {
	RegisterUser(ctx context.Context, id uuid.UUID, role auth.Role, displayName, email string) error
	RemoveUser(ctx context.Context, id uuid.UUID) error
}

// UserEventConsumer keeps the local user projection in step with the
// identity service.
type UserEventConsumer struct {
	consumer *kafka.Consumer
	users    UserLifecycle
	logger   *zap.Logger
}

// NewUserEventConsumer creates a new UserEventConsumer.
func NewUserEventConsumer(
	brokers []string,
	groupID string,
	users UserLifecycle,
	logger *zap.Logger,
) *UserEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicUserEvents, logger)
	return &UserEventConsumer{
		consumer: consumer,
		users:    users,
		logger:   logger,
	}
}

// Start begins consuming user events. This blocks until the context is cancelled.
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *UserEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *UserEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from user topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case UserRegistered:
		return c.handleRegistered(ctx, cloudEvent)
	case UserDeleted:
		return c.handleDeleted(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled user event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *UserEventConsumer) handleRegistered(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt UserRegisteredEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse UserRegisteredEvent data", zap.Error(err))
		return nil
	}

	err := c.users.RegisterUser(ctx, evt.UserID, auth.Role(evt.Role), evt.DisplayName, evt.Email)
	if domain.IsValidation(err) {
		c.logger.Warn("discarding invalid user registration",
			zap.String("user_id", evt.UserID.String()),
			zap.Error(err),
		)
		return nil
	}
	return err
}

func (c *UserEventConsumer) handleDeleted(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt UserDeletedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse UserDeletedEvent data", zap.Error(err))
		return nil
	}

	c.logger.Info("processing user deleted event", zap.String("user_id", evt.UserID.String()))

	if err := c.users.RemoveUser(ctx, evt.UserID); err != nil {
		c.logger.Error("failed to remove user",
			zap.String("user_id", evt.UserID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
