package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"perks/internal/calendar"
	"perks/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	janUber = "amex_gold_uber_2025-01-01_2025-01-31"
	febUber = "amex_gold_uber_2025-02-01_2025-02-28"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "perks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_SaveAndFetch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	v1, err := repo.SaveCreditEntry(ctx, "alex", janUber, core.CreditEntry{
		Checked:  true,
		Note:     "ride to airport",
		DateUsed: calendar.MustParse("2025-01-12"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)

	_, err = repo.SaveCreditEntry(ctx, "alex", febUber, core.CreditEntry{Note: "remember"})
	require.NoError(t, err)
	_, err = repo.SaveCreditEntry(ctx, "sam", janUber, core.CreditEntry{Checked: true})
	require.NoError(t, err)

	state, err := repo.FetchUserState(ctx, "alex")
	require.NoError(t, err)
	require.Len(t, state.CreditState, 2)

	jan := state.CreditState[janUber]
	assert.True(t, jan.Checked)
	assert.Equal(t, "ride to airport", jan.Note)
	assert.Equal(t, "2025-01-12", jan.DateUsed.String())

	feb := state.CreditState[febUber]
	assert.False(t, feb.Checked)
	assert.True(t, feb.DateUsed.IsZero())
}

func TestSQLiteRepository_FetchUnknownUserIsEmpty(t *testing.T) {
	state, err := newTestRepo(t).FetchUserState(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, state.CreditState)
}

func TestSQLiteRepository_VersionAndSync(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	v1, err := repo.SaveCreditEntry(ctx, "alex", janUber, core.CreditEntry{Checked: true})
	require.NoError(t, err)
	v2, err := repo.SaveCreditEntry(ctx, "alex", janUber, core.CreditEntry{Checked: false})
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2)

	pending, err := repo.ListPendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, PendingSync{UserID: "alex", InstanceID: janUber, Version: v2}, pending[0])

	// a stale version does not mark the row
	ok, err := repo.MarkSynced(ctx, "alex", janUber, v1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkSynced(ctx, "alex", janUber, v2)
	require.NoError(t, err)
	assert.True(t, ok)

	pending, err = repo.ListPendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	entry, version, err := repo.GetCreditEntry(ctx, "alex", janUber)
	require.NoError(t, err)
	assert.False(t, entry.Checked)
	assert.Equal(t, v2, version)

	_, _, err = repo.GetCreditEntry(ctx, "alex", febUber)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRepository_Reminders(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	sent, err := repo.WasReminded(ctx, "alex", janUber)
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, repo.MarkReminded(ctx, "alex", janUber))
	require.NoError(t, repo.MarkReminded(ctx, "alex", janUber))

	sent, err = repo.WasReminded(ctx, "alex", janUber)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = repo.WasReminded(ctx, "sam", janUber)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perks.db")

	first, err := RunMigrations(path)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, uint(2), first.Version)

	second, err := RunMigrations(path)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, first.Version, second.Version)
}

func TestRunMigrationsRefusesDirtySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perks.db")
	_, err := RunMigrations(path)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = RunMigrations(path)
	assert.ErrorIs(t, err, ErrDirtySchema)
}
