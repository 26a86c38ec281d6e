// Package backend builds the persistence boundary of the tracker: the store
// that loads and saves credit entries and remembers sent reminders.
package backend

import (
	"context"
	"sync"

	"perks/internal/sheets"
	"perks/internal/storage"
)

// Backend is everything the tracker, the state store and the reminder worker
// need from persistence.
type Backend interface {
	sheets.StateFetcher
	sheets.StateWriter
	sheets.ReminderLog
}

// Result is a ready backend plus the hooks to probe and release it.
type Result struct {
	Backend Backend

	// Repository is the SQLite repository behind Backend, nil for memory. The
	// sync worker uses it to drain pending rows.
	Repository *storage.SQLiteRepository

	cleanup   func() error
	ping      func(ctx context.Context) error
	closeOnce sync.Once
	closeErr  error
}

// Close releases the backend. Later calls return the first result.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	r.closeOnce.Do(func() {
		if r.cleanup != nil {
			r.closeErr = r.cleanup()
		}
	})
	return r.closeErr
}

// Ready reports whether the backend can serve requests. Backends without a
// probe are always ready.
func (r *Result) Ready(ctx context.Context) error {
	if r == nil || r.ping == nil {
		return nil
	}
	return r.ping(ctx)
}

// Factory creates backends from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, cfg Config) (*Result, error)
}
