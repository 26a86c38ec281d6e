package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"perks/internal/backend"
	"perks/internal/cache"
	"perks/internal/cli"
	apphttp "perks/internal/http"
	"perks/internal/log"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = 10 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	caches := cache.NewManager(logger)
	tracker := cli.MustNewTracker(cfg, result.Backend, caches, logger)
	caches.StartCleanup(cacheCleanupInterval)

	srv := apphttp.NewServer(":"+cfg.Port, tracker,
		apphttp.WithLogger(logger),
		apphttp.WithReadiness(result.Ready),
		apphttp.WithMetrics(cfg.MetricsEnabled),
		apphttp.WithRateLimit(cfg.RateLimitRPM),
		apphttp.WithReminderDays(cfg.ReminderWindowDays),
		apphttp.WithTrustedProxies(cfg.TrustedProxies...),
	)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting perks server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
