package core

import "perks/internal/calendar"

// Status is the display state of an instance on a given day.
type Status string

const (
	StatusUsed     Status = "used"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// StatusOf classifies an instance: used when checked, active when today falls
// in its period, inactive otherwise.
func StatusOf(ci CreditInstance, entry CreditEntry, today calendar.Date) Status {
	switch {
	case entry.Checked:
		return StatusUsed
	case ci.Contains(today):
		return StatusActive
	default:
		return StatusInactive
	}
}

// TrackedCredit is an instance joined with its usage entry.
type TrackedCredit struct {
	CreditInstance
	Entry  CreditEntry
	Status Status
}

// CardSummary aggregates the credits of one card that are active on a day.
type CardSummary struct {
	CardID    string
	CardName  string
	Active    int
	Used      int
	Total     Money
	UsedValue Money
	Remaining Money
}
