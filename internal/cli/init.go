// Package cli provides common CLI initialization utilities shared by
// cmd/perks, cmd/perks-worker, cmd/reminder-worker and cmd/perksctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"perks/internal/cache"
	"perks/internal/catalog"
	"perks/internal/config"
	"perks/internal/core"
	"perks/internal/log"
	"perks/internal/services"
)

// SetupLogger builds the logger from LOG_LEVEL and LOG_FORMAT and installs it
// as the slog default.
func SetupLogger() *log.Logger {
	logger := log.New(log.ConfigFromEnv())
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err,
			"error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// NewTracker loads the catalog and builds the expander and tracker on top of
// store. The expansion cache is registered with manager when one is given.
func NewTracker(cfg *config.Config, store services.StateStore, manager *cache.Manager, logger *log.Logger) (*services.TrackerService, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	policy, err := services.ParseInclusionPolicy(cfg.ExpansionInclusion)
	if err != nil {
		return nil, err
	}

	opts := []services.TrackerOption{services.WithTrackerLogger(logger)}
	if cfg.ExpansionCacheSize > 0 {
		instances := cache.NewLRUCache[[]core.CreditInstance](cfg.ExpansionCacheSize, cfg.ExpansionCacheTTL)
		if manager != nil {
			manager.Register(instances)
		}
		opts = append(opts, services.WithInstanceCache(instances))
	}

	expander := services.NewExpander(cat.Cards, services.WithInclusionPolicy(policy))
	logger.Info("Catalog loaded",
		"cards", len(cat.CardOrder),
		"users", len(cat.UserOrder),
		"inclusion", string(policy))
	return services.NewTrackerService(cat, expander, store, opts...), nil
}

// MustNewTracker is NewTracker that exits the process on failure.
func MustNewTracker(cfg *config.Config, store services.StateStore, manager *cache.Manager, logger *log.Logger) *services.TrackerService {
	tracker, err := NewTracker(cfg, store, manager, logger)
	if err != nil {
		logger.Error("Failed to load catalog", log.FieldError, err, "path", cfg.CatalogPath)
		os.Exit(1)
	}
	return tracker
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached", "timeout", fmt.Sprint(timeout))
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
