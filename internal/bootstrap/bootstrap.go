// Package bootstrap assembles stores and services from configuration. It is
// shared by the HTTP server and the maintenance CLI.
package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/health"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/config"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/notification"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/repository/memory"
)

// Stores holds the repositories for the configured driver.
type Stores struct {
	Pets      petDomain.PetRepository
	Adoptions adoptionDomain.AdoptionRepository
	Users     userDomain.UserRepository
	Pinger    health.Pinger
	close     func() error
}

// Close releases the underlying connection, if any.
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores connects the configured store. For postgres, pending migrations
// are applied first when migrate is true.
func OpenStores(cfg *config.ServiceConfig, migrate bool, log *zap.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		return &Stores{
			Pets:      store.Pets(),
			Adoptions: store.Adoptions(),
			Users:     store.Users(),
			Pinger:    store,
		}, nil

	case config.StoreDriverPostgres:
		if migrate {
			if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir, log); err != nil {
				return nil, err
			}
		}
		db, err := database.Connect(cfg.DBConfig, log)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		return &Stores{
			Pets:      repository.NewGormPetRepository(db),
			Adoptions: repository.NewGormAdoptionRepository(db),
			Users:     repository.NewGormUserRepository(db),
			Pinger:    repository.NewDBPinger(db),
			close:     sqlDB.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewSink returns the notification sink for cfg: Kafka when enabled,
// otherwise the log. The returned close func releases the producer.
func NewSink(cfg *config.ServiceConfig, source string, log *zap.Logger) (notification.Sink, func() error) {
	if !cfg.KafkaConfig.Enabled {
		log.Warn("kafka disabled; notifications are logged only")
		return notification.NewLogSink(log), func() error { return nil }
	}
	producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	return notification.NewKafkaSink(producer, source), producer.Close
}

// Services holds the wired application services.
type Services struct {
	Guard     *application.PetGuard
	Pets      *application.PetService
	Adoptions *application.AdoptionService
	Users     *application.UserService
	Reconcile *application.ReconcileService
}

// NewServices wires every application service over stores, delivering
// notifications to sink.
func NewServices(cfg *config.ServiceConfig, stores *Stores, sink notification.Sink, m *metrics.Metrics, log *zap.Logger) *Services {
	dispatcher := notification.NewDispatcher(sink, m, log)
	guard := application.NewPetGuard(stores.Pets, stores.Adoptions, application.GuardConfig{
		MaxAttempts: cfg.LockConfig.MaxAttempts,
		BaseBackoff: cfg.LockConfig.BaseBackoff,
		LeaseTTL:    cfg.LockConfig.LeaseTTL,
	}, m, log)

	petSvc := application.NewPetService(
		stores.Pets,
		stores.Adoptions,
		guard,
		dispatcher,
		application.WithdrawPolicy(cfg.WithdrawPolicy),
		m,
		log,
	)
	adoptSvc := application.NewAdoptionService(stores.Pets, stores.Adoptions, guard, dispatcher, m, log)

	return &Services{
		Guard:     guard,
		Pets:      petSvc,
		Adoptions: adoptSvc,
		Users:     application.NewUserService(stores.Users, stores.Pets, stores.Adoptions, petSvc, adoptSvc, log),
		Reconcile: application.NewReconcileService(stores.Pets, guard, dispatcher, m, log),
	}
}
