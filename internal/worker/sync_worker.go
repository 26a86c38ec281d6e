// Package worker turns credit state change events into spreadsheet updates.
package worker

import (
	"context"
	"errors"
	"fmt"

	"perks/internal/amqp"
	"perks/internal/log"
	"perks/internal/storage"
)

// EntrySyncer exports one credit entry.
type EntrySyncer interface {
	SyncEntry(ctx context.Context, userID, instanceID string, version int64) error
}

// Consumer delivers credit state messages until ctx is done.
type Consumer interface {
	ConsumeCreditState(ctx context.Context, handler func(context.Context, *amqp.CreditStateMessage) error) error
}

// SyncWorker handles synchronization of credit entries from SQLite to Google Sheets
type SyncWorker struct {
	syncer EntrySyncer
	logger *log.Logger
}

func NewSyncWorker(syncer EntrySyncer, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		syncer: syncer,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleCreditStateMessage processes a single change message from AMQP. A
// message for an entry that no longer exists is acknowledged and dropped.
func (w *SyncWorker) HandleCreditStateMessage(ctx context.Context, msg *amqp.CreditStateMessage) error {
	w.logger.InfoContext(ctx, "Processing credit state message",
		log.FieldUserID, msg.UserID,
		log.FieldInstanceID, msg.InstanceID,
		"version", msg.Version)

	err := w.syncer.SyncEntry(ctx, msg.UserID, msg.InstanceID, msg.Version)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Dropping message for missing entry",
			log.FieldUserID, msg.UserID,
			log.FieldInstanceID, msg.InstanceID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync credit entry: %w", err)
	}
	return nil
}

// Run consumes messages until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer) error {
	err := consumer.ConsumeCreditState(ctx, w.HandleCreditStateMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
