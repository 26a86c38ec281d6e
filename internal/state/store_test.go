package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perks/internal/calendar"
	"perks/internal/catalog"
	"perks/internal/core"
	"perks/internal/services"
	"perks/internal/sheets/memory"
)

const storeTOML = `
[[cards]]
key = "amex_gold"
name = "Amex Gold"

  [[cards.credits]]
  credit_id = "uber"
  cadence = "monthly"
  amount = 10
  period_type = "calendar"

[[users]]
id = "alex"

  [[users.cards]]
  id = "amex_gold"

[[users]]
id = "sam"
`

const marchUber = "amex_gold_uber_2025-03-01_2025-03-31"

// flakyBackend wraps the memory store with failure injection and an
// optional gate that holds writes until it is closed.
type flakyBackend struct {
	*memory.Store
	fetchErr error
	gate     chan struct{}

	mu     sync.Mutex
	fail   func(core.CreditEntry) bool
	writes []string
}

func (f *flakyBackend) FetchUserState(ctx context.Context, userID string) (core.UserState, error) {
	if f.fetchErr != nil {
		return core.UserState{}, f.fetchErr
	}
	return f.Store.FetchUserState(ctx, userID)
}

func (f *flakyBackend) UpdateCreditState(ctx context.Context, userID, instanceID string, entry core.CreditEntry) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.writes = append(f.writes, entry.Note)
	fail := f.fail != nil && f.fail(entry)
	f.mu.Unlock()
	if fail {
		return errors.New("backend unavailable")
	}
	return f.Store.UpdateCreditState(ctx, userID, instanceID, entry)
}

func newTestStore(t *testing.T, backend *flakyBackend) *Store {
	t.Helper()
	cat, err := catalog.Parse(storeTOML)
	require.NoError(t, err)

	clock := calendar.FixedClock{CurrentTime: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	tracker := services.NewTrackerService(cat, services.NewExpander(cat.Cards), backend, services.WithClock(clock))
	return NewStore(tracker, backend)
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

func TestStore_Init(t *testing.T) {
	backend := &flakyBackend{Store: memory.New()}
	require.NoError(t, backend.Store.UpdateCreditState(context.Background(), "alex", marchUber, core.CreditEntry{Checked: true}))
	s := newTestStore(t, backend)

	var got []Snapshot
	s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	require.NoError(t, s.Init(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, "alex", snap.UserID)
	assert.Equal(t, 2025, snap.Year)
	assert.Len(t, snap.Instances, 12)
	assert.True(t, snap.CreditState[marchUber].Checked)
	require.Len(t, got, 1)
	assert.Equal(t, snap.UserID, got[0].UserID)

	tracked := snap.Tracked(calendar.MustParse("2025-03-14"))
	assert.Equal(t, core.StatusUsed, tracked[2].Status)
	assert.Equal(t, core.StatusInactive, tracked[3].Status)
}

func TestStore_LoadFailureFallsBackToEmptyState(t *testing.T) {
	backend := &flakyBackend{Store: memory.New(), fetchErr: errors.New("disk gone")}
	s := newTestStore(t, backend)

	require.NoError(t, s.Init(context.Background()))

	snap := s.Snapshot()
	assert.Empty(t, snap.CreditState)
	assert.Len(t, snap.Instances, 12)
}

func TestStore_SetUserAndYear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, &flakyBackend{Store: memory.New()})

	assert.Error(t, s.SetYear(ctx, 2024), "year before init")
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.SetYear(ctx, 2024))
	snap := s.Snapshot()
	assert.Equal(t, 2024, snap.Year)
	assert.Equal(t, "2024-01-01", snap.Instances[0].StartDate.String())

	require.NoError(t, s.SetUser(ctx, "sam"))
	snap = s.Snapshot()
	assert.Equal(t, "sam", snap.UserID)
	assert.Equal(t, 2024, snap.Year)
	assert.Empty(t, snap.Instances)

	err := s.SetUser(ctx, "nobody")
	assert.ErrorIs(t, err, core.ErrUnknownUser)
	assert.Equal(t, "sam", s.Snapshot().UserID)
}

func TestStore_SaveCreditEntry(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Store: memory.New(), gate: make(chan struct{})}
	s := newTestStore(t, backend)
	require.NoError(t, s.Init(ctx))

	entry := core.CreditEntry{Checked: true, DateUsed: calendar.MustParse("2025-03-10")}
	require.NoError(t, s.SaveCreditEntry(ctx, marchUber, entry))

	// applied before the write completes
	assert.Equal(t, entry, s.Snapshot().CreditState[marchUber])

	close(backend.gate)
	flush(t, s)

	state, err := backend.Store.FetchUserState(ctx, "alex")
	require.NoError(t, err)
	assert.True(t, state.Entry(marchUber).Checked)
	assert.NoError(t, s.Err())
}

func TestStore_SaveCreditEntryRollsBack(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Store: memory.New()}
	require.NoError(t, backend.Store.UpdateCreditState(ctx, "alex", marchUber, core.CreditEntry{Note: "before"}))
	backend.fail = func(core.CreditEntry) bool { return true }

	s := newTestStore(t, backend)
	require.NoError(t, s.Init(ctx))

	var mu sync.Mutex
	var seen []string
	s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap.CreditState[marchUber].Note)
		mu.Unlock()
	})

	require.NoError(t, s.SaveCreditEntry(ctx, marchUber, core.CreditEntry{Checked: true, Note: "after"}))
	flush(t, s)

	assert.Equal(t, core.CreditEntry{Note: "before"}, s.Snapshot().CreditState[marchUber])
	assert.Error(t, s.Err())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"after", "before"}, seen)
}

func TestStore_RollbackKeepsNewerMutation(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{
		Store: memory.New(),
		gate:  make(chan struct{}),
		fail:  func(e core.CreditEntry) bool { return e.Note == "first" },
	}
	s := newTestStore(t, backend)
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.SaveCreditEntry(ctx, marchUber, core.CreditEntry{Checked: true, Note: "first"}))
	require.NoError(t, s.SaveCreditEntry(ctx, marchUber, core.CreditEntry{Checked: true, Note: "second"}))
	close(backend.gate)
	flush(t, s)

	assert.Equal(t, "second", s.Snapshot().CreditState[marchUber].Note)
	assert.Equal(t, []string{"first", "second"}, backend.writes)

	state, err := backend.Store.FetchUserState(ctx, "alex")
	require.NoError(t, err)
	assert.Equal(t, "second", state.Entry(marchUber).Note)
}

func TestStore_SaveCreditEntryRejectsInvalidEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, &flakyBackend{Store: memory.New()})

	assert.Error(t, s.SaveCreditEntry(ctx, marchUber, core.CreditEntry{Checked: true}), "before init")

	require.NoError(t, s.Init(ctx))
	err := s.SaveCreditEntry(ctx, marchUber, core.CreditEntry{Note: strings.Repeat("x", 501)})
	assert.ErrorIs(t, err, core.ErrNoteTooLong)
	assert.Empty(t, s.Snapshot().CreditState)
}

func TestStore_EmptyEntryClearsState(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Store: memory.New()}
	require.NoError(t, backend.Store.UpdateCreditState(ctx, "alex", marchUber, core.CreditEntry{Checked: true}))
	s := newTestStore(t, backend)
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.SaveCreditEntry(ctx, marchUber, core.CreditEntry{}))
	flush(t, s)

	_, ok := s.Snapshot().CreditState[marchUber]
	assert.False(t, ok)
}

func TestStore_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, &flakyBackend{Store: memory.New()})

	calls := 0
	unsubscribe := s.Subscribe(func(Snapshot) { calls++ })
	require.NoError(t, s.Init(ctx))
	unsubscribe()
	unsubscribe()
	require.NoError(t, s.SetYear(ctx, 2026))

	assert.Equal(t, 1, calls)
}

func TestStore_FlushHonorsContext(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Store: memory.New(), gate: make(chan struct{})}
	s := newTestStore(t, backend)
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.SaveCreditEntry(ctx, marchUber, core.CreditEntry{Checked: true}))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Flush(short), context.DeadlineExceeded)

	close(backend.gate)
	flush(t, s)
}
