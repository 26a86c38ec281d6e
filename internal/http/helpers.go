package http

import (
	"strings"

	"perks/internal/calendar"
	"perks/internal/catalog"
	"perks/internal/core"
	"perks/internal/services"
)

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

type moneyView struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func newMoneyView(m core.Money) moneyView {
	return moneyView{Cents: m.Cents, Formatted: m.String()}
}

type entryView struct {
	Checked  bool          `json:"checked"`
	Note     string        `json:"note,omitempty"`
	DateUsed calendar.Date `json:"dateUsed"`
}

type instanceView struct {
	ID           string          `json:"id"`
	CardID       string          `json:"cardId"`
	CreditID     string          `json:"creditId"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Cadence      core.Cadence    `json:"cadence"`
	PeriodType   core.PeriodType `json:"periodType"`
	Amount       moneyView       `json:"amount"`
	StartDate    calendar.Date   `json:"startDate"`
	EndDate      calendar.Date   `json:"endDate"`
	VisibleStart calendar.Date   `json:"visibleStart"`
	VisibleEnd   calendar.Date   `json:"visibleEnd"`
	Status       core.Status     `json:"status"`
	Entry        entryView       `json:"entry"`
}

type creditGroupView struct {
	CreditID  string         `json:"creditId"`
	Name      string         `json:"name"`
	Instances []instanceView `json:"instances"`
}

type cardGroupView struct {
	CardID  string            `json:"cardId"`
	Name    string            `json:"name"`
	Credits []creditGroupView `json:"credits"`
}

type creditsResponse struct {
	User  string          `json:"user"`
	Year  int             `json:"year"`
	Today calendar.Date   `json:"today"`
	Cards []cardGroupView `json:"cards"`
}

type summaryView struct {
	CardID    string    `json:"cardId"`
	CardName  string    `json:"cardName"`
	Active    int       `json:"active"`
	Used      int       `json:"used"`
	Total     moneyView `json:"total"`
	UsedValue moneyView `json:"usedValue"`
	Remaining moneyView `json:"remaining"`
}

type summaryResponse struct {
	User  string        `json:"user"`
	Year  int           `json:"year"`
	Today calendar.Date `json:"today"`
	Cards []summaryView `json:"cards"`
}

type usersResponse struct {
	Users       []string `json:"users"`
	DefaultUser string   `json:"defaultUser"`
}

type catalogCreditView struct {
	CreditID    string          `json:"creditId"`
	Name        string          `json:"name"`
	Cadence     core.Cadence    `json:"cadence"`
	PeriodType  core.PeriodType `json:"periodType"`
	Amount      moneyView       `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type catalogCardView struct {
	Key     string              `json:"key"`
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Credits []catalogCreditView `json:"credits"`
}

type catalogResponse struct {
	Cards []catalogCardView `json:"cards"`
}

type saveResponse struct {
	User     string       `json:"user"`
	Instance instanceView `json:"instance"`
}

func newInstanceView(tc core.TrackedCredit, cat *catalog.Catalog, year int) instanceView {
	visibleStart, visibleEnd := tc.VisibleWindow(year)
	return instanceView{
		ID:           tc.ID,
		CardID:       tc.CardID,
		CreditID:     tc.CreditID,
		Name:         cat.CreditName(tc.CreditID),
		Description:  tc.Description,
		Cadence:      tc.Cadence,
		PeriodType:   tc.PeriodType,
		Amount:       newMoneyView(tc.Amount),
		StartDate:    tc.StartDate,
		EndDate:      tc.EndDate,
		VisibleStart: visibleStart,
		VisibleEnd:   visibleEnd,
		Status:       tc.Status,
		Entry: entryView{
			Checked:  tc.Entry.Checked,
			Note:     tc.Entry.Note,
			DateUsed: tc.Entry.DateUsed,
		},
	}
}

// newCardGroupViews renders the year timeline: cards in portfolio order,
// credits in order of first appearance.
func newCardGroupViews(tracked []core.TrackedCredit, cat *catalog.Catalog, year int) []cardGroupView {
	groups := services.GroupByCard(tracked, cat)
	out := make([]cardGroupView, 0, len(groups))
	for _, g := range groups {
		card := cardGroupView{CardID: g.CardID, Name: g.Name, Credits: make([]creditGroupView, 0, len(g.Credits))}
		for _, cg := range g.Credits {
			credit := creditGroupView{CreditID: cg.CreditID, Name: cg.Name, Instances: make([]instanceView, 0, len(cg.Instances))}
			for _, tc := range cg.Instances {
				credit.Instances = append(credit.Instances, newInstanceView(tc, cat, year))
			}
			card.Credits = append(card.Credits, credit)
		}
		out = append(out, card)
	}
	return out
}

func newSummaryViews(summaries []core.CardSummary) []summaryView {
	out := make([]summaryView, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, summaryView{
			CardID:    s.CardID,
			CardName:  s.CardName,
			Active:    s.Active,
			Used:      s.Used,
			Total:     newMoneyView(s.Total),
			UsedValue: newMoneyView(s.UsedValue),
			Remaining: newMoneyView(s.Remaining),
		})
	}
	return out
}

func newCatalogResponse(cat *catalog.Catalog) catalogResponse {
	resp := catalogResponse{Cards: make([]catalogCardView, 0, len(cat.CardOrder))}
	for _, key := range cat.CardOrder {
		def := cat.Cards[key]
		card := catalogCardView{Key: key, ID: def.ID, Name: def.Name, Credits: make([]catalogCreditView, 0, len(def.Credits))}
		for _, c := range def.Credits {
			card.Credits = append(card.Credits, catalogCreditView{
				CreditID:    c.CreditID,
				Name:        cat.CreditName(c.CreditID),
				Cadence:     c.Cadence,
				PeriodType:  c.PeriodType,
				Amount:      newMoneyView(c.Amount),
				Description: c.Description,
			})
		}
		resp.Cards = append(resp.Cards, card)
	}
	return resp
}
