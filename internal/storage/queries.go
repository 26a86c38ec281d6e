package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL statements of the repository.
type Queries struct {
	db DBTX
}

// New binds the queries to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx binds the queries to a transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// CreditState is a row of the credit_state table.
type CreditState struct {
	UserID     string
	InstanceID string
	Checked    bool
	Note       string
	DateUsed   sql.NullString
	Version    int64
	SyncStatus string
	SyncedAt   sql.NullTime
	UpdatedAt  time.Time
}

const creditStateColumns = `user_id, instance_id, checked, note, date_used, version, sync_status, synced_at, updated_at`

func scanCreditState(row interface{ Scan(...any) error }) (CreditState, error) {
	var cs CreditState
	err := row.Scan(
		&cs.UserID,
		&cs.InstanceID,
		&cs.Checked,
		&cs.Note,
		&cs.DateUsed,
		&cs.Version,
		&cs.SyncStatus,
		&cs.SyncedAt,
		&cs.UpdatedAt,
	)
	return cs, err
}

const listCreditStates = `
SELECT ` + creditStateColumns + `
FROM credit_state
WHERE user_id = ?
ORDER BY instance_id
`

func (q *Queries) ListCreditStates(ctx context.Context, userID string) ([]CreditState, error) {
	rows, err := q.db.QueryContext(ctx, listCreditStates, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CreditState
	for rows.Next() {
		cs, err := scanCreditState(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cs)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCreditState = `
SELECT ` + creditStateColumns + `
FROM credit_state
WHERE user_id = ? AND instance_id = ?
`

func (q *Queries) GetCreditState(ctx context.Context, userID, instanceID string) (CreditState, error) {
	return scanCreditState(q.db.QueryRowContext(ctx, getCreditState, userID, instanceID))
}

const upsertCreditState = `
INSERT INTO credit_state (user_id, instance_id, checked, note, date_used)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, instance_id) DO UPDATE SET
    checked     = excluded.checked,
    note        = excluded.note,
    date_used   = excluded.date_used,
    version     = credit_state.version + 1,
    sync_status = 'pending',
    updated_at  = CURRENT_TIMESTAMP
RETURNING version
`

type UpsertCreditStateParams struct {
	UserID     string
	InstanceID string
	Checked    bool
	Note       string
	DateUsed   sql.NullString
}

func (q *Queries) UpsertCreditState(ctx context.Context, arg UpsertCreditStateParams) (int64, error) {
	var version int64
	err := q.db.QueryRowContext(ctx, upsertCreditState,
		arg.UserID,
		arg.InstanceID,
		arg.Checked,
		arg.Note,
		arg.DateUsed,
	).Scan(&version)
	return version, err
}

const markCreditStateSynced = `
UPDATE credit_state
SET sync_status = 'synced', synced_at = CURRENT_TIMESTAMP
WHERE user_id = ? AND instance_id = ? AND version = ?
`

// MarkCreditStateSynced only affects the row when version is still current.
func (q *Queries) MarkCreditStateSynced(ctx context.Context, userID, instanceID string, version int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markCreditStateSynced, userID, instanceID, version)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markCreditStateSyncError = `
UPDATE credit_state
SET sync_status = 'error'
WHERE user_id = ? AND instance_id = ? AND version = ?
`

func (q *Queries) MarkCreditStateSyncError(ctx context.Context, userID, instanceID string, version int64) error {
	_, err := q.db.ExecContext(ctx, markCreditStateSyncError, userID, instanceID, version)
	return err
}

const listPendingSync = `
SELECT user_id, instance_id, version
FROM credit_state
WHERE sync_status = 'pending'
ORDER BY updated_at
LIMIT ?
`

type ListPendingSyncRow struct {
	UserID     string
	InstanceID string
	Version    int64
}

func (q *Queries) ListPendingSync(ctx context.Context, limit int64) ([]ListPendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingSync, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListPendingSyncRow
	for rows.Next() {
		var i ListPendingSyncRow
		if err := rows.Scan(&i.UserID, &i.InstanceID, &i.Version); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countReminderSent = `
SELECT COUNT(*) FROM reminders_sent WHERE user_id = ? AND instance_id = ?
`

func (q *Queries) CountReminderSent(ctx context.Context, userID, instanceID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countReminderSent, userID, instanceID).Scan(&n)
	return n, err
}

const insertReminderSent = `
INSERT OR IGNORE INTO reminders_sent (user_id, instance_id) VALUES (?, ?)
`

func (q *Queries) InsertReminderSent(ctx context.Context, userID, instanceID string) error {
	_, err := q.db.ExecContext(ctx, insertReminderSent, userID, instanceID)
	return err
}
