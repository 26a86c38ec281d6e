package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"perks/internal/core"
	"perks/internal/log"
	"perks/internal/metrics"
	"perks/internal/sheets"
	"perks/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often pending entries are picked up (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of entries exported per poll (default: 25)
	BatchSize int

	// ExportInterval is how often the whole current year is re-exported
	// (default: 1h, 0 disables)
	ExportInterval time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:   10 * time.Second,
		BatchSize:      25,
		ExportInterval: time.Hour,
	}
}

// PendingStore is the sync bookkeeping of the SQLite repository.
type PendingStore interface {
	ListPendingSync(ctx context.Context, limit int) ([]storage.PendingSync, error)
	GetCreditEntry(ctx context.Context, userID, instanceID string) (core.CreditEntry, int64, error)
	MarkSynced(ctx context.Context, userID, instanceID string, version int64) (bool, error)
	MarkSyncError(ctx context.Context, userID, instanceID string, version int64) error
}

// SyncProcessor mirrors credit entries to the spreadsheet.
type SyncProcessor struct {
	store    PendingStore
	tracker  *TrackerService
	exporter sheets.UsageExporter
	config   SyncProcessorConfig
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(store PendingStore, tracker *TrackerService, exporter sheets.UsageExporter, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		store:    store,
		tracker:  tracker,
		exporter: exporter,
		config:   config,
		logger:   log.New(log.DefaultConfig()).WithComponent(log.ComponentSheets),
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx, p.stopCh, p.doneCh)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"export_interval", p.config.ExportInterval)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	var exportC <-chan time.Time
	if p.config.ExportInterval > 0 {
		exportTicker := time.NewTicker(p.config.ExportInterval)
		defer exportTicker.Stop()
		exportC = exportTicker.C
	}

	p.processBatch(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processBatch(ctx)
		case <-exportC:
			if err := p.ExportYear(ctx, p.tracker.Today().Year()); err != nil {
				p.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
			}
		}
	}
}

// processBatch exports the pending entries of one poll cycle.
func (p *SyncProcessor) processBatch(ctx context.Context) {
	items, err := p.store.ListPendingSync(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list pending entries", log.FieldError, err)
		return
	}
	if len(items) == 0 {
		return
	}

	p.logger.DebugContext(ctx, "Processing sync batch", log.FieldCount, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			return
		}
		// failures are recorded on the row; the batch goes on
		_ = p.SyncEntry(ctx, item.UserID, item.InstanceID, item.Version)
	}
}

// SyncEntry exports the current entry of one instance. Stale versions, whose
// entry has been rewritten since, are skipped.
func (p *SyncProcessor) SyncEntry(ctx context.Context, userID, instanceID string, version int64) error {
	entry, current, err := p.store.GetCreditEntry(ctx, userID, instanceID)
	if err != nil {
		return fmt.Errorf("get entry %s/%s: %w", userID, instanceID, err)
	}
	if version > 0 && current > version {
		p.logger.DebugContext(ctx, "Skipping stale sync message",
			log.FieldUserID, userID,
			log.FieldInstanceID, instanceID,
			"version", version,
			"current_version", current)
		return nil
	}

	err = p.export(ctx, userID, instanceID, entry)
	metrics.SheetExports.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		p.logger.WarnContext(ctx, "Sync failed",
			log.FieldUserID, userID,
			log.FieldInstanceID, instanceID,
			log.FieldError, err)
		if markErr := p.store.MarkSyncError(ctx, userID, instanceID, current); markErr != nil {
			p.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldError, markErr)
		}
		return err
	}

	if ok, err := p.store.MarkSynced(ctx, userID, instanceID, current); err != nil {
		p.logger.WarnContext(ctx, "Failed to mark entry as synced",
			log.FieldInstanceID, instanceID,
			log.FieldError, err)
	} else if !ok {
		p.logger.DebugContext(ctx, "Entry changed during sync",
			log.FieldInstanceID, instanceID)
	}

	p.logger.InfoContext(ctx, "Synced credit entry to Google Sheets",
		log.FieldUserID, userID,
		log.FieldInstanceID, instanceID,
		"version", current)
	return nil
}

func (p *SyncProcessor) export(ctx context.Context, userID, instanceID string, entry core.CreditEntry) error {
	inst, err := p.tracker.FindInstance(ctx, userID, instanceID)
	if err != nil {
		return err
	}
	return p.exporter.UpsertUsage(ctx, []sheets.UsageRow{p.tracker.UsageRow(userID, inst, entry)})
}

// ExportYear writes every instance of year for every configured user.
func (p *SyncProcessor) ExportYear(ctx context.Context, year int) error {
	users := p.tracker.Catalog().UserOrder
	rows := make([][]sheets.UsageRow, len(users))

	g, gctx := errgroup.WithContext(ctx)
	for i, userID := range users {
		g.Go(func() error {
			r, err := p.tracker.UsageRows(gctx, userID, year)
			if err != nil {
				return fmt.Errorf("rows of %s: %w", userID, err)
			}
			rows[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var all []sheets.UsageRow
	for _, r := range rows {
		all = append(all, r...)
	}

	err := p.exporter.UpsertUsage(ctx, all)
	metrics.SheetExports.WithLabelValues(metrics.Result(err)).Add(float64(len(all)))
	if err != nil {
		return fmt.Errorf("export %d: %w", year, err)
	}

	p.logger.InfoContext(ctx, "Year exported",
		log.FieldYear, year,
		log.FieldCount, len(all))
	return nil
}
