// Package ical renders tracked credits as an iCalendar feed. Every credit
// instance becomes an all-day event spanning its period; unused credits carry
// an alarm some days before the period ends.
package ical

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"

	"perks/internal/core"
)

const (
	propUID         = "UID"
	propSummary     = "SUMMARY"
	propDescription = "DESCRIPTION"
	propCategories  = "CATEGORIES"
	propDTStart     = "DTSTART"
	propDTEnd       = "DTEND"
	propDTStamp     = "DTSTAMP"
	propVersion     = "VERSION"
	propProdID      = "PRODID"
	propCalName     = "X-WR-CALNAME"
	propCalScale    = "CALSCALE"
	propMethod      = "METHOD"
	propRefresh     = "REFRESH-INTERVAL"
	propAction      = "ACTION"
	propTrigger     = "TRIGGER"

	componentAlarm = "VALARM"

	version  = "2.0"
	prodID   = "-//perks//Credit Tracker//EN"
	calScale = "GREGORIAN"
	method   = "PUBLISH"
	domain   = "perks"

	refreshInterval = 6 * time.Hour

	// emitted when there is nothing to encode; the encoder rejects a
	// calendar without children
	stubCalendar = "BEGIN:VCALENDAR\r\nVERSION:" + version + "\r\nPRODID:" + prodID + "\r\nEND:VCALENDAR\r\n"
)

// Namer resolves display names of cards and credits.
type Namer interface {
	CardName(cardKey string) string
	CreditName(creditID string) string
}

// Options controls feed generation.
type Options struct {
	// Name is the calendar name shown by clients.
	Name string
	// ReminderDays places an alarm this many days before the end of every
	// unused credit. Zero disables alarms.
	ReminderDays int
	// Now stamps the events.
	Now time.Time
}

// Encode renders tracked as an iCalendar document.
func Encode(tracked []core.TrackedCredit, names Namer, opts Options) ([]byte, error) {
	if len(tracked) == 0 {
		return []byte(stubCalendar), nil
	}

	cal := goical.NewCalendar()
	cal.Props.SetText(propVersion, version)
	cal.Props.SetText(propProdID, prodID)
	cal.Props.SetText(propCalScale, calScale)
	cal.Props.SetText(propMethod, method)
	if opts.Name != "" {
		cal.Props.SetText(propCalName, opts.Name)
	}

	refresh := goical.NewProp(propRefresh)
	refresh.SetDuration(refreshInterval)
	cal.Props.Set(refresh)

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	stamp := goical.NewProp(propDTStamp)
	stamp.SetDateTime(now.UTC())

	for _, tc := range tracked {
		event := newEvent(tc, names, opts.ReminderDays)
		event.Props.Set(stamp)
		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := goical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

func newEvent(tc core.TrackedCredit, names Namer, reminderDays int) *goical.Event {
	event := goical.NewEvent()
	event.Props.SetText(propUID, tc.ID+"@"+domain)

	summary := Summary(tc, names)
	event.Props.SetText(propSummary, summary)
	event.Props.SetText(propCategories, string(tc.Status))
	if desc := description(tc); desc != "" {
		event.Props.SetText(propDescription, desc)
	}

	start := goical.NewProp(propDTStart)
	start.SetDate(tc.StartDate.Time)
	event.Props.Set(start)

	// DTEND of an all-day event is exclusive
	end := goical.NewProp(propDTEnd)
	end.SetDate(tc.EndDate.AddDays(1).Time)
	event.Props.Set(end)

	if reminderDays > 0 && !tc.Entry.Checked {
		addAlarm(event, reminderDays, summary+" expires soon")
	}
	return event
}

// Summary is the event title: "Uber Credit $10.00 (Amex Gold)", prefixed
// with a check mark once used.
func Summary(tc core.TrackedCredit, names Namer) string {
	s := fmt.Sprintf("%s %s (%s)", names.CreditName(tc.CreditID), tc.Amount, names.CardName(tc.CardID))
	if tc.Entry.Checked {
		s = "✓ " + s
	}
	return s
}

func description(tc core.TrackedCredit) string {
	var lines []string
	if tc.Description != "" {
		lines = append(lines, tc.Description)
	}
	if tc.Entry.Checked && !tc.Entry.DateUsed.IsZero() {
		lines = append(lines, "Used on "+tc.Entry.DateUsed.String())
	}
	if tc.Entry.HasNote() {
		lines = append(lines, "Note: "+strings.TrimSpace(tc.Entry.Note))
	}
	return strings.Join(lines, "\n")
}

// addAlarm appends a DISPLAY alarm relative to the end of the event.
func addAlarm(event *goical.Event, days int, text string) {
	alarm := goical.NewComponent(componentAlarm)
	alarm.Props.SetText(propAction, "DISPLAY")
	alarm.Props.SetText(propDescription, text)

	// set manually to avoid a VALUE=TEXT param
	trigger := goical.NewProp(propTrigger)
	trigger.Value = fmt.Sprintf("-P%dD", days)
	trigger.Params.Set("RELATED", "END")
	alarm.Props.Set(trigger)

	event.Children = append(event.Children, alarm)
}
