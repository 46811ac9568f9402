package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/config"
	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/errors/noop"
	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/errors/sentry"
	"github.com/AliyanOranje/sweepalgo-backend/internal/bootstrap"
	"github.com/AliyanOranje/sweepalgo-backend/internal/metrics"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Register Prometheus collectors
	metrics.Init()

	// Wire the service container
	container := bootstrap.New(cfg, log, errorTracker)

	// Run until SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := container.Run(ctx); err != nil {
		log.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}
