package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"perks/internal/calendar"
	"perks/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string][]ExpiringCredit
	err  error
}

func (n *recordingNotifier) NotifyExpiring(_ context.Context, userID string, credits []ExpiringCredit) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	if n.sent == nil {
		n.sent = map[string][]ExpiringCredit{}
	}
	n.sent[userID] = append(n.sent[userID], credits...)
	return nil
}

func TestReminderProcessor_DueCredits(t *testing.T) {
	tracker, store := newTestTracker(t, "2025-03-25")
	p := NewReminderProcessor(tracker, store, &recordingNotifier{}, 7)

	due, err := p.DueCredits(context.Background(), "alex", calendar.MustParse("2025-03-25"))
	require.NoError(t, err)
	require.Len(t, due, 1)

	assert.Equal(t, marchUber, due[0].InstanceID)
	assert.Equal(t, "Amex Gold", due[0].Card)
	assert.Equal(t, "Uber Credit", due[0].Credit)
	assert.Equal(t, 6, due[0].DaysLeft)
}

func TestReminderProcessor_AnniversaryFromLastYear(t *testing.T) {
	tracker, store := newTestTracker(t, "2025-07-10")
	p := NewReminderProcessor(tracker, store, &recordingNotifier{}, 7)

	due, err := p.DueCredits(context.Background(), "alex", calendar.MustParse("2025-07-10"))
	require.NoError(t, err)

	var ids []string
	for _, d := range due {
		ids = append(ids, d.InstanceID)
	}
	assert.Contains(t, ids, openingYear)
}

func TestReminderProcessor_ProcessDueReminders(t *testing.T) {
	ctx := context.Background()
	tracker, store := newTestTracker(t, "2025-03-25")
	require.NoError(t, tracker.SaveEntry(ctx, "sam", marchUber, core.CreditEntry{Checked: true}))

	notifier := &recordingNotifier{}
	p := NewReminderProcessor(tracker, store, notifier, 7)
	now := time.Date(2025, 3, 25, 8, 0, 0, 0, time.UTC)

	n, err := p.ProcessDueReminders(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, notifier.sent["alex"], 1)
	assert.Empty(t, notifier.sent["sam"], "checked credits are not reminded")

	// each instance is reminded once
	n, err = p.ProcessDueReminders(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, notifier.sent["alex"], 1)
}

func TestReminderProcessor_NotifierFailure(t *testing.T) {
	ctx := context.Background()
	tracker, store := newTestTracker(t, "2025-03-25")
	p := NewReminderProcessor(tracker, store, &recordingNotifier{err: errors.New("smtp down")}, 7)

	n, err := p.ProcessDueReminders(ctx, time.Date(2025, 3, 25, 8, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, 0, n)

	reminded, err := store.WasReminded(ctx, "alex", marchUber)
	require.NoError(t, err)
	assert.False(t, reminded)
}

func TestReminderProcessor_NotInitialized(t *testing.T) {
	p := NewReminderProcessor(nil, nil, nil, 7)
	_, err := p.ProcessDueReminders(context.Background(), time.Now())
	assert.Error(t, err)
}
