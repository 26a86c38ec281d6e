// Package storage persists credit usage state in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"perks/internal/calendar"
	"perks/internal/core"
	"perks/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no entry exists for a user and instance.
var ErrNotFound = errors.New("credit state not found")

// PendingSync identifies an entry version that has not reached the sheet yet.
type PendingSync struct {
	UserID     string
	InstanceID string
	Version    int64
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

// NewSQLiteRepository opens dbPath, creating its directory, and migrates it.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentStorage)
	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if schema.Applied {
		logger.Info("Credit state schema migrated", "schema_version", schema.Version, "path", dbPath)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FetchUserState returns every persisted entry of userID.
func (r *SQLiteRepository) FetchUserState(ctx context.Context, userID string) (core.UserState, error) {
	rows, err := r.queries.ListCreditStates(ctx, userID)
	if err != nil {
		return core.UserState{}, fmt.Errorf("list credit states: %w", err)
	}

	state := core.UserState{CreditState: make(core.CreditState, len(rows))}
	for _, row := range rows {
		entry, err := toEntry(row)
		if err != nil {
			return core.UserState{}, fmt.Errorf("credit state %s: %w", row.InstanceID, err)
		}
		state.CreditState[row.InstanceID] = entry
	}
	return state, nil
}

// GetCreditEntry returns one entry and its version.
func (r *SQLiteRepository) GetCreditEntry(ctx context.Context, userID, instanceID string) (core.CreditEntry, int64, error) {
	row, err := r.queries.GetCreditState(ctx, userID, instanceID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CreditEntry{}, 0, ErrNotFound
	}
	if err != nil {
		return core.CreditEntry{}, 0, fmt.Errorf("get credit state: %w", err)
	}
	entry, err := toEntry(row)
	if err != nil {
		return core.CreditEntry{}, 0, err
	}
	return entry, row.Version, nil
}

// SaveCreditEntry upserts the entry and returns its new version.
func (r *SQLiteRepository) SaveCreditEntry(ctx context.Context, userID, instanceID string, entry core.CreditEntry) (int64, error) {
	params := UpsertCreditStateParams{
		UserID:     userID,
		InstanceID: instanceID,
		Checked:    entry.Checked,
		Note:       entry.Note,
	}
	if !entry.DateUsed.IsZero() {
		params.DateUsed = sql.NullString{String: entry.DateUsed.String(), Valid: true}
	}

	version, err := r.queries.UpsertCreditState(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("upsert credit state: %w", err)
	}

	r.logger.InfoContext(ctx, "Credit state saved",
		log.NewFields().
			WithUser(userID, 0).
			WithInstance(instanceID, entry.Checked).
			ToSlice()...)
	return version, nil
}

// ListPendingSync returns up to limit entries awaiting a sheet sync, oldest first.
func (r *SQLiteRepository) ListPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.queries.ListPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	out := make([]PendingSync, len(rows))
	for i, row := range rows {
		out[i] = PendingSync(row)
	}
	return out, nil
}

// MarkSynced flags version as synced. It reports false when the entry has
// moved on to a newer version in the meantime.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, userID, instanceID string, version int64) (bool, error) {
	n, err := r.queries.MarkCreditStateSynced(ctx, userID, instanceID, version)
	if err != nil {
		return false, fmt.Errorf("mark synced: %w", err)
	}
	return n > 0, nil
}

// MarkSyncError flags version as failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, userID, instanceID string, version int64) error {
	if err := r.queries.MarkCreditStateSyncError(ctx, userID, instanceID, version); err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	r.logger.WarnContext(ctx, "Credit state marked with sync error",
		log.FieldUserID, userID,
		log.FieldInstanceID, instanceID,
		"version", version)
	return nil
}

// WasReminded reports whether a reminder for the instance was already sent.
func (r *SQLiteRepository) WasReminded(ctx context.Context, userID, instanceID string) (bool, error) {
	n, err := r.queries.CountReminderSent(ctx, userID, instanceID)
	if err != nil {
		return false, fmt.Errorf("count reminders: %w", err)
	}
	return n > 0, nil
}

// MarkReminded records that a reminder was sent.
func (r *SQLiteRepository) MarkReminded(ctx context.Context, userID, instanceID string) error {
	if err := r.queries.InsertReminderSent(ctx, userID, instanceID); err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func toEntry(row CreditState) (core.CreditEntry, error) {
	entry := core.CreditEntry{Checked: row.Checked, Note: row.Note}
	if row.DateUsed.Valid && row.DateUsed.String != "" {
		d, err := calendar.Parse(row.DateUsed.String)
		if err != nil {
			return core.CreditEntry{}, err
		}
		entry.DateUsed = d
	}
	return entry, nil
}
