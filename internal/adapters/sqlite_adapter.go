package adapters

import (
	"context"

	"perks/internal/core"
	"perks/internal/sheets"
	"perks/internal/storage"
)

// SQLiteAdapter serves reads from the SQLite repository and routes writes
// through the credit state service so that every saved entry is also
// announced on the message bus.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	writer  sheets.StateWriter
}

var (
	_ sheets.StateFetcher = (*SQLiteAdapter)(nil)
	_ sheets.StateWriter  = (*SQLiteAdapter)(nil)
	_ sheets.ReminderLog  = (*SQLiteAdapter)(nil)
)

func NewSQLiteAdapter(storage *storage.SQLiteRepository, writer sheets.StateWriter) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		writer:  writer,
	}
}

// FetchUserState implements sheets.StateFetcher
func (a *SQLiteAdapter) FetchUserState(ctx context.Context, userID string) (core.UserState, error) {
	return a.storage.FetchUserState(ctx, userID)
}

// UpdateCreditState implements sheets.StateWriter
func (a *SQLiteAdapter) UpdateCreditState(ctx context.Context, userID, instanceID string, entry core.CreditEntry) error {
	return a.writer.UpdateCreditState(ctx, userID, instanceID, entry)
}

// WasReminded implements sheets.ReminderLog
func (a *SQLiteAdapter) WasReminded(ctx context.Context, userID, instanceID string) (bool, error) {
	return a.storage.WasReminded(ctx, userID, instanceID)
}

// MarkReminded implements sheets.ReminderLog
func (a *SQLiteAdapter) MarkReminded(ctx context.Context, userID, instanceID string) error {
	return a.storage.MarkReminded(ctx, userID, instanceID)
}

// Ping checks the database connection.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}
