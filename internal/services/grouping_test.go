package services

import (
	"context"
	"testing"

	"perks/internal/calendar"
	"perks/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByCard(t *testing.T) {
	tracker, _ := newTestTracker(t, "2025-03-10")

	tracked, err := tracker.Track(context.Background(), "alex", 2025)
	require.NoError(t, err)

	groups := GroupByCard(tracked, tracker.Catalog())
	require.Len(t, groups, 2)

	assert.Equal(t, "amex_gold", groups[0].CardID)
	assert.Equal(t, "Amex Gold", groups[0].Name)
	require.Len(t, groups[0].Credits, 2)
	assert.Equal(t, "Uber Credit", groups[0].Credits[0].Name)
	assert.Len(t, groups[0].Credits[0].Instances, 12)
	assert.Len(t, groups[0].Credits[1].Instances, 2)

	assert.Equal(t, "venture_x", groups[1].CardID)
	require.Len(t, groups[1].Credits, 1)
	travel := groups[1].Credits[0].Instances
	require.Len(t, travel, 2)
	assert.True(t, travel[0].StartDate.Before(travel[1].StartDate))
}

func TestSummarizeActive_CardWithoutActiveCredits(t *testing.T) {
	tracker, _ := newTestTracker(t, "2025-03-10")
	inst := core.CreditInstance{
		ID:        "amex_gold_resy_2025-07-01_2025-12-31",
		CardID:    "amex_gold",
		CreditID:  "resy",
		Amount:    core.Dollars(50),
		StartDate: calendar.MustParse("2025-07-01"),
		EndDate:   calendar.MustParse("2025-12-31"),
	}

	tiles := SummarizeActive([]core.TrackedCredit{{CreditInstance: inst}}, tracker.Catalog(), calendar.MustParse("2025-03-10"))

	require.Len(t, tiles, 1)
	assert.Equal(t, 0, tiles[0].Active)
	assert.Equal(t, core.Money{}, tiles[0].Total)
}
