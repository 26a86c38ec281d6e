// Package core holds the domain types shared by every layer: the card catalog,
// user portfolios, derived credit instances and persisted usage state.
package core

import (
	"strings"

	"perks/internal/calendar"
)

const (
	Monthly   Cadence = "monthly"
	Quarterly Cadence = "quarterly"
	Biannual  Cadence = "biannual"
	Annual    Cadence = "annual"
)

const (
	CalendarPeriod    PeriodType = "calendar"
	AnniversaryPeriod PeriodType = "anniversary"
)

type (
	// Cadence is how often a credit resets.
	Cadence string

	// PeriodType selects the anchor of a credit's periods.
	PeriodType string

	CreditDefinition struct {
		CreditID    string
		Cadence     Cadence
		Amount      Money
		PeriodType  PeriodType
		Description string
	}

	// CardDefinition is one catalog entry. ID is the definition's own
	// identifier and may differ from the key it is stored under.
	CardDefinition struct {
		ID      string
		Name    string
		Credits []CreditDefinition
	}

	// CardCatalog maps card lookup keys to definitions.
	CardCatalog map[string]CardDefinition

	// UserCard is a user's ownership record. OpenedDate is zero when unknown.
	UserCard struct {
		ID         string
		OpenedDate calendar.Date
	}

	UserConfig struct {
		Cards []UserCard
	}

	// CreditInstance is one dated occurrence of a credit. Start and end are
	// inclusive and are never clipped to the selected year.
	CreditInstance struct {
		ID          string
		CardID      string
		CreditID    string
		Amount      Money
		Description string
		Cadence     Cadence
		PeriodType  PeriodType
		StartDate   calendar.Date
		EndDate     calendar.Date
	}

	// CreditEntry is the persisted usage record of one instance.
	CreditEntry struct {
		Checked  bool          `json:"checked"`
		Note     string        `json:"note,omitempty"`
		DateUsed calendar.Date `json:"dateUsed"`
	}

	// CreditState maps instance IDs to their usage entries.
	CreditState map[string]CreditEntry

	UserState struct {
		CreditState CreditState `json:"creditState"`
	}
)

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	switch c {
	case Monthly, Quarterly, Biannual, Annual:
		return true
	}
	return false
}

// Valid reports whether p is a known period type.
func (p PeriodType) Valid() bool {
	return p == CalendarPeriod || p == AnniversaryPeriod
}

// InstanceID builds the join key of an instance:
// {cardKey}_{creditId}_{isoStart}_{isoEnd}.
func InstanceID(cardKey, creditID string, start, end calendar.Date) string {
	var b strings.Builder
	b.Grow(len(cardKey) + len(creditID) + 23)
	b.WriteString(cardKey)
	b.WriteByte('_')
	b.WriteString(creditID)
	b.WriteByte('_')
	b.WriteString(start.String())
	b.WriteByte('_')
	b.WriteString(end.String())
	return b.String()
}

// ParseInstanceID splits an instance ID back into its parts. Card keys and
// credit IDs may themselves contain underscores, so the dates are taken from
// the tail and the card key is resolved against known keys by the caller.
func ParseInstanceID(id string) (prefix string, start, end calendar.Date, err error) {
	const tail = len("_2006-01-02_2006-01-02")
	if len(id) <= tail {
		return "", calendar.Date{}, calendar.Date{}, ErrInvalidInstanceID
	}
	prefix, dates := id[:len(id)-tail], id[len(id)-tail:]
	if dates[0] != '_' || dates[11] != '_' {
		return "", calendar.Date{}, calendar.Date{}, ErrInvalidInstanceID
	}
	if start, err = calendar.Parse(dates[1:11]); err != nil {
		return "", calendar.Date{}, calendar.Date{}, ErrInvalidInstanceID
	}
	if end, err = calendar.Parse(dates[12:]); err != nil {
		return "", calendar.Date{}, calendar.Date{}, ErrInvalidInstanceID
	}
	return prefix, start, end, nil
}

// Contains reports whether day falls inside the instance's period.
func (ci CreditInstance) Contains(day calendar.Date) bool {
	return day.Between(ci.StartDate, ci.EndDate)
}

// VisibleWindow clips the period to year for display. Stored dates are not
// changed.
func (ci CreditInstance) VisibleWindow(year int) (calendar.Date, calendar.Date) {
	lo, hi := calendar.YearStart(year), calendar.YearEnd(year)
	return calendar.Clamp(ci.StartDate, lo, hi), calendar.Clamp(ci.EndDate, lo, hi)
}

// Card returns the user's record for cardKey.
func (u UserConfig) Card(cardKey string) (UserCard, bool) {
	for _, c := range u.Cards {
		if c.ID == cardKey {
			return c, true
		}
	}
	return UserCard{}, false
}

// Entry returns the entry for id, or the zero entry.
func (s UserState) Entry(id string) CreditEntry {
	if s.CreditState == nil {
		return CreditEntry{}
	}
	return s.CreditState[id]
}

// Clone returns a deep copy of the state map.
func (s CreditState) Clone() CreditState {
	out := make(CreditState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether the entry carries no information.
func (e CreditEntry) IsEmpty() bool {
	return !e.Checked && strings.TrimSpace(e.Note) == "" && e.DateUsed.IsZero()
}

// HasNote reports whether the entry carries a non-blank note.
func (e CreditEntry) HasNote() bool {
	return strings.TrimSpace(e.Note) != ""
}

// Validate checks the entry fields that come from user input.
func (e CreditEntry) Validate() error {
	if len(e.Note) > 500 {
		return ErrNoteTooLong
	}
	return nil
}
