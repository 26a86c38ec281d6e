package services

import (
	"context"
	"errors"
	"fmt"

	"perks/internal/core"
	"perks/internal/log"
	"perks/internal/metrics"
)

// CreditStateRepository is the durable side of a credit entry write.
type CreditStateRepository interface {
	SaveCreditEntry(ctx context.Context, userID, instanceID string, entry core.CreditEntry) (int64, error)
	Close() error
}

// EventPublisher announces that an entry changed.
type EventPublisher interface {
	PublishCreditStateChanged(ctx context.Context, userID, instanceID string, version int64) error
	Close() error
}

// CreditStateService orchestrates credit entry writes across SQLite and AMQP.
type CreditStateService struct {
	storage   CreditStateRepository
	publisher EventPublisher
	logger    *log.Logger
}

// NewCreditStateService creates the service. publisher may be nil, in which
// case writes stay local.
func NewCreditStateService(storage CreditStateRepository, publisher EventPublisher) *CreditStateService {
	return &CreditStateService{
		storage:   storage,
		publisher: publisher,
		logger:    log.New(log.DefaultConfig()).WithComponent(log.ComponentState),
	}
}

// UpdateCreditState saves the entry locally, then publishes a change event.
// A publish failure is logged and does not fail the write.
func (s *CreditStateService) UpdateCreditState(ctx context.Context, userID, instanceID string, entry core.CreditEntry) error {
	if s.storage == nil {
		return errors.New("credit state service has no storage")
	}

	version, err := s.storage.SaveCreditEntry(ctx, userID, instanceID, entry)
	metrics.CreditStateWrites.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("save credit entry: %w", err)
	}

	if err := s.publish(ctx, userID, instanceID, version); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish credit state change",
			log.FieldUserID, userID,
			log.FieldInstanceID, instanceID,
			"version", version,
			log.FieldError, err)
	}
	return nil
}

func (s *CreditStateService) publish(ctx context.Context, userID, instanceID string, version int64) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping change event")
		return nil
	}
	err := s.publisher.PublishCreditStateChanged(ctx, userID, instanceID, version)
	metrics.EventsPublished.WithLabelValues(metrics.Result(err)).Inc()
	return err
}

// Close closes both storage and AMQP connections.
func (s *CreditStateService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close credit state service: %w", err)
	}
	return nil
}
