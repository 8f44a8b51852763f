package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/bootstrap"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/health"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/logger"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/config"
	adoptionEvents "github.com/Kilat-Pet-Delivery/service-adoption/internal/events"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/metrics"
)

const serviceName = "service-adoption"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreDriver),
		zap.String("withdraw_policy", cfg.WithdrawPolicy),
	)

	// Open the record store and apply migrations
	stores, err := bootstrap.OpenStores(cfg, true, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer func() { _ = stores.Close() }()

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	m := metrics.New(true)

	// Notifications go to Kafka when enabled, otherwise to the log
	sink, closeSink := bootstrap.NewSink(cfg, serviceName, log)
	defer func() { _ = closeSink() }()

	// Initialize application services
	svcs := bootstrap.NewServices(cfg, stores, sink, m, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the user event consumer in a goroutine
	if cfg.KafkaConfig.Enabled {
		groupID := cfg.KafkaConfig.GroupPrefix + "adoption-service"
		userConsumer := adoptionEvents.NewUserEventConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			svcs.Users,
			log,
		)
		defer func() { _ = userConsumer.Close() }()

		go func() {
			log.Info("starting user event consumer")
			if err := userConsumer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("user event consumer error", zap.Error(err))
			}
		}()
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check and metrics routes
	healthHandler := health.NewHandler(stores.Pinger, serviceName)
	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Register routes
	handler.NewPetHandler(svcs.Pets, svcs.Adoptions).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdoptionHandler(svcs.Adoptions).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewUserHandler(svcs.Users).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminHandler(svcs.Adoptions, svcs.Reconcile).RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
