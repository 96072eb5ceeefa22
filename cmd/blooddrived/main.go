package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"blooddrive-queue-backend/config"
	"blooddrive-queue-backend/internal/api"
	"blooddrive-queue-backend/internal/db"
	"blooddrive-queue-backend/internal/engine"
	"blooddrive-queue-backend/internal/notification"
	"blooddrive-queue-backend/internal/realtime"
	"blooddrive-queue-backend/internal/store"
	"blooddrive-queue-backend/internal/sweeper"
	"blooddrive-queue-backend/internal/telemetry"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.String("path", configPath), zap.Error(err))
	}
	logger.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	hub := realtime.NewHub()
	emitter := telemetry.NewEmitter(logger)

	opts := []engine.Option{
		engine.WithHub(hub),
		engine.WithTelemetry(emitter),
	}

	// Donor pushes only run when VAPID keys are configured; without them the
	// realtime hub still serves kiosk and dashboard subscribers.
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions := webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions, logger)
		pool.Start(ctx)
		opts = append(opts, engine.WithNotifier(pool))
	} else {
		logger.Warn("VAPID keys not configured, donor web push disabled")
	}

	queueEngine := engine.New(appStore, opts...)

	grace := time.Duration(cfg.Sweeper.GraceMinutes) * time.Minute
	if cfg.Sweeper.Enabled {
		noShowSweeper := sweeper.New(queueEngine, cfg.Sweeper.Interval, grace, logger)
		go noShowSweeper.Run(ctx)
	} else {
		logger.Info("no-show sweeper disabled")
	}

	router := api.NewRouter(&cfg.Server, queueEngine, appStore, hub, grace)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}
