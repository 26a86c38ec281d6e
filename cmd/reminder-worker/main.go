package main

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"perks/internal/backend"
	"perks/internal/cli"
	"perks/internal/config"
	"perks/internal/log"
	"perks/internal/notify"
	"perks/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
	runTimeout      = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting reminder-worker", log.FieldOperation, log.OpStartup)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// Reminders never write credit entries.
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg.WithoutEvents())
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	tracker := cli.MustNewTracker(cfg, result.Backend, nil, logger)
	processor := services.NewReminderProcessor(tracker, result.Backend, newNotifier(cfg, logger), cfg.ReminderWindowDays)

	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		reminded, err := processor.ProcessDueReminders(ctx, time.Now())
		if err != nil {
			logger.Error("Reminder run failed", log.FieldError, err, "reminded", reminded)
			return
		}
		logger.Info("Reminder run complete", "reminded", reminded)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReminderSchedule, run); err != nil {
		logger.Error("Invalid reminder schedule", log.FieldError, err, "schedule", cfg.ReminderSchedule)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		stopped := scheduler.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			logger.Warn("Reminder run still in progress at shutdown")
		}
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	// Catch up on anything that became due while the worker was down.
	run()

	scheduler.Start()
	logger.Info("Reminder scheduler started",
		"schedule", cfg.ReminderSchedule,
		"window_days", cfg.ReminderWindowDays)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Reminder worker stopped gracefully")
}

// newNotifier sends email when SMTP is configured and logs digests otherwise.
func newNotifier(cfg *config.Config, logger *log.Logger) services.Notifier {
	if cfg.SMTPHost == "" {
		logger.Info("SMTP disabled - reminders are written to the log")
		return notify.NewLogNotifier(logger)
	}

	recipients, err := config.ParseRecipients(cfg.ReminderRecipients)
	if err != nil {
		logger.Error("Invalid reminder recipients", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Email reminders enabled", "smtp_host", cfg.SMTPHost, "recipients", len(recipients))
	return notify.NewEmailNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, recipients, logger)
}
