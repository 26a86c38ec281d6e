package main

import (
	"context"
	"os"
	"time"

	"perks/internal/amqp"
	"perks/internal/backend"
	"perks/internal/cli"
	"perks/internal/log"
	"perks/internal/services"
	gsheet "perks/internal/sheets/google"
	"perks/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting perks-worker", log.FieldOperation, log.OpStartup)
	cfg := cli.LoadAndValidateConfig(logger)

	// The worker reads SQLite only; events come from the broker, not from
	// its own writes.
	backendCfg := backend.Config{
		Type:         backend.SQLiteBackend,
		SQLiteDBPath: cfg.SQLiteDBPath,
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize SQLite backend", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer result.Close()

	tracker := cli.MustNewTracker(cfg, result.Backend, nil, logger)

	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, nothing to sync")
		ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)
		cli.WaitForShutdown(ctx, done)
		return
	}

	sheetsClient, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	processor := services.NewSyncProcessor(result.Repository, tracker, sheetsClient, services.SyncProcessorConfig{
		PollInterval:   cfg.SyncInterval,
		BatchSize:      cfg.SyncBatchSize,
		ExportInterval: cfg.ExportInterval,
	})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on polling only", log.FieldError, err)
			amqpClient = nil
		}
	} else {
		logger.Info("AMQP disabled - entries are picked up by polling only")
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor stop error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
	})

	// Bring the sheet up to date before handling individual changes.
	if err := processor.ExportYear(ctx, tracker.Today().Year()); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		syncWorker := worker.NewSyncWorker(processor, logger)
		go func() {
			if err := syncWorker.Run(ctx, amqpClient); err != nil {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
		logger.Info("Consuming credit state messages",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
