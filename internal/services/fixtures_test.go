package services

import (
	"testing"
	"time"

	"perks/internal/calendar"
	"perks/internal/catalog"
	"perks/internal/sheets/memory"

	"github.com/stretchr/testify/require"
)

const trackerTOML = `
[[cards]]
key = "amex_gold"
name = "Amex Gold"

  [[cards.credits]]
  credit_id = "uber"
  cadence = "monthly"
  amount = 10
  period_type = "calendar"

  [[cards.credits]]
  credit_id = "resy"
  cadence = "biannual"
  amount = 50
  period_type = "calendar"

[[cards]]
key = "venture_x"
name = "Capital One Venture X"

  [[cards.credits]]
  credit_id = "travel"
  cadence = "annual"
  amount = 300
  period_type = "anniversary"

[credit_names]
uber = "Uber Credit"
resy = "Resy Credit"
travel = "Travel Credit"

[[users]]
id = "alex"

  [[users.cards]]
  id = "amex_gold"

  [[users.cards]]
  id = "venture_x"
  opened = "2024-07-15"

[[users]]
id = "sam"

  [[users.cards]]
  id = "amex_gold"
`

func fixedClock(iso string) calendar.FixedClock {
	d := calendar.MustParse(iso)
	return calendar.FixedClock{CurrentTime: d.Time.Add(9 * time.Hour)}
}

func newTestTracker(t *testing.T, today string, opts ...TrackerOption) (*TrackerService, *memory.Store) {
	t.Helper()

	cat, err := catalog.Parse(trackerTOML)
	require.NoError(t, err)

	store := memory.New()
	opts = append([]TrackerOption{WithClock(fixedClock(today))}, opts...)
	return NewTrackerService(cat, NewExpander(cat.Cards), store, opts...), store
}
