//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/bootstrap"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/config"
	adoptionEvents "github.com/Kilat-Pet-Delivery/service-adoption/internal/events"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/notification"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	DBConfig     database.PostgresConfig
	KafkaBrokers []string
	Cleanup      func()
}

// adoptionStack holds wired-up adoption service components.
type adoptionStack struct {
	Stores   *bootstrap.Stores
	Services *bootstrap.Services
	Consumer *adoptionEvents.UserEventConsumer
	Cleanup  func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers, applies the
// migrations and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := pgmodule.Run(ctx, "postgres:16-alpine",
		pgmodule.WithDatabase("test_adoption"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		pgmodule.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dbCfg := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_adoption",
		SSLMode:  "disable",
	}

	logger := zap.NewNop()
	require.NoError(t, database.RunMigrations(dbCfg.DatabaseURL(), "migrations", logger))

	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(dbCfg, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, notification.TopicAdoptionEvents, adoptionEvents.TopicUserEvents)

	cleanup := func() {
		if err := testcontainers.TerminateContainer(kafkaContainer); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		DBConfig:     dbCfg,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupAdoptionStack wires the postgres stores, the Kafka sink and the user
// event consumer the same way the server does.
func setupAdoptionStack(t *testing.T, infra *testInfra) *adoptionStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	cfg := &config.ServiceConfig{
		StoreDriver:    config.StoreDriverPostgres,
		MigrationsDir:  "migrations",
		WithdrawPolicy: config.WithdrawPolicyCascade,
		DBConfig:       infra.DBConfig,
		KafkaConfig: config.KafkaConfig{
			Enabled: true,
			Brokers: infra.KafkaBrokers,
		},
		LockConfig: config.LockConfig{
			MaxAttempts: 50,
			BaseBackoff: 5 * time.Millisecond,
			LeaseTTL:    30 * time.Second,
		},
	}

	stores, err := bootstrap.OpenStores(cfg, false, logger)
	require.NoError(t, err)

	sink, closeSink := bootstrap.NewSink(cfg, "service-adoption", logger)
	svcs := bootstrap.NewServices(cfg, stores, sink, metrics.New(false), logger)

	groupID := fmt.Sprintf("test-adoption-%s", uuid.New().String()[:8])
	consumer := adoptionEvents.NewUserEventConsumer(infra.KafkaBrokers, groupID, svcs.Users, logger)

	return &adoptionStack{
		Stores:   stores,
		Services: svcs,
		Consumer: consumer,
		Cleanup: func() {
			_ = consumer.Close()
			_ = closeSink()
			_ = stores.Close()
		},
	}
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data any) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// consumeEvents reads from a Kafka topic until it has collected n events of
// the expected type.
func consumeEvents(t *testing.T, brokers []string, topic, expectedType string, n int, timeout time.Duration) []notification.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	var found []notification.Event
	for len(found) < n {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for %d events of type %q on topic %q (got %d)", n, expectedType, topic, len(found))
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil || ce.Type != expectedType {
			continue
		}
		var evt notification.Event
		require.NoError(t, ce.ParseData(&evt))
		found = append(found, evt)
	}
	return found
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
