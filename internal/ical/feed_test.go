package ical

import (
	"bytes"
	"strings"
	"testing"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perks/internal/calendar"
	"perks/internal/core"
)

type names struct{}

func (names) CardName(key string) string {
	return map[string]string{"amex_gold": "Amex Gold"}[key]
}

func (names) CreditName(id string) string {
	return map[string]string{"uber": "Uber Credit"}[id]
}

func tracked(start, end string, entry core.CreditEntry) core.TrackedCredit {
	s, e := calendar.MustParse(start), calendar.MustParse(end)
	return core.TrackedCredit{
		CreditInstance: core.CreditInstance{
			ID:          core.InstanceID("amex_gold", "uber", s, e),
			CardID:      "amex_gold",
			CreditID:    "uber",
			Amount:      core.Dollars(10),
			Description: "Uber Cash",
			StartDate:   s,
			EndDate:     e,
		},
		Entry: entry,
	}
}

func TestEncode(t *testing.T) {
	credits := []core.TrackedCredit{
		tracked("2025-02-01", "2025-02-28", core.CreditEntry{Checked: true, DateUsed: calendar.MustParse("2025-02-11"), Note: "airport"}),
		tracked("2025-03-01", "2025-03-31", core.CreditEntry{}),
	}

	out, err := Encode(credits, names{}, Options{
		Name:         "Perks alex 2025",
		ReminderDays: 3,
		Now:          time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	doc := string(out)

	assert.Equal(t, 2, strings.Count(doc, "BEGIN:VEVENT"))
	assert.Contains(t, doc, "UID:amex_gold_uber_2025-03-01_2025-03-31@perks")
	assert.Contains(t, doc, "DTSTART;VALUE=DATE:20250301")
	assert.Contains(t, doc, "DTEND;VALUE=DATE:20250401")
	assert.Contains(t, doc, "X-WR-CALNAME:Perks alex 2025")

	// only the unused credit gets an alarm
	assert.Equal(t, 1, strings.Count(doc, "BEGIN:VALARM"))
	assert.Contains(t, doc, "TRIGGER;RELATED=END:-P3D")

	cal, err := goical.NewDecoder(bytes.NewReader(out)).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	summary, err := events[0].Props.Text(propSummary)
	require.NoError(t, err)
	assert.Equal(t, "✓ Uber Credit $10.00 (Amex Gold)", summary)

	desc, err := events[0].Props.Text(propDescription)
	require.NoError(t, err)
	assert.Equal(t, "Uber Cash\nUsed on 2025-02-11\nNote: airport", desc)
}

func TestEncodeWithoutAlarms(t *testing.T) {
	out, err := Encode([]core.TrackedCredit{tracked("2025-03-01", "2025-03-31", core.CreditEntry{})}, names{}, Options{})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "VALARM")
}

func TestEncodeEmpty(t *testing.T) {
	out, err := Encode(nil, names{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, stubCalendar, string(out))
}
