package services

import (
	"perks/internal/calendar"
	"perks/internal/catalog"
	"perks/internal/core"
)

// CreditGroup is one row of the year timeline.
type CreditGroup struct {
	CreditID  string
	Name      string
	Instances []core.TrackedCredit
}

// CardGroup holds the timeline rows of one card.
type CardGroup struct {
	CardID  string
	Name    string
	Credits []CreditGroup
}

// GroupByCredit groups tracked credits by credit ID in order of first
// appearance. Instances keep their relative order.
func GroupByCredit(tracked []core.TrackedCredit, cat *catalog.Catalog) []CreditGroup {
	var groups []CreditGroup
	index := map[string]int{}
	for _, tc := range tracked {
		i, ok := index[tc.CreditID]
		if !ok {
			i = len(groups)
			index[tc.CreditID] = i
			groups = append(groups, CreditGroup{CreditID: tc.CreditID, Name: cat.CreditName(tc.CreditID)})
		}
		groups[i].Instances = append(groups[i].Instances, tc)
	}
	return groups
}

// GroupByCard groups tracked credits by card, then by credit, both in order
// of first appearance.
func GroupByCard(tracked []core.TrackedCredit, cat *catalog.Catalog) []CardGroup {
	var (
		order  []string
		byCard = map[string][]core.TrackedCredit{}
	)
	for _, tc := range tracked {
		if _, ok := byCard[tc.CardID]; !ok {
			order = append(order, tc.CardID)
		}
		byCard[tc.CardID] = append(byCard[tc.CardID], tc)
	}

	groups := make([]CardGroup, len(order))
	for i, id := range order {
		groups[i] = CardGroup{
			CardID:  id,
			Name:    cat.CardName(id),
			Credits: GroupByCredit(byCard[id], cat),
		}
	}
	return groups
}

// SummarizeActive builds one tile per card from the credits active on today.
// A credit counts as active when today falls inside its period, used or not.
func SummarizeActive(tracked []core.TrackedCredit, cat *catalog.Catalog, today calendar.Date) []core.CardSummary {
	var (
		out   []core.CardSummary
		index = map[string]int{}
	)
	for _, tc := range tracked {
		i, ok := index[tc.CardID]
		if !ok {
			i = len(out)
			index[tc.CardID] = i
			out = append(out, core.CardSummary{CardID: tc.CardID, CardName: cat.CardName(tc.CardID)})
		}
		if !tc.Contains(today) {
			continue
		}

		s := &out[i]
		s.Active++
		s.Total = s.Total.Add(tc.Amount)
		if tc.Entry.Checked {
			s.Used++
			s.UsedValue = s.UsedValue.Add(tc.Amount)
		}
		s.Remaining = s.Total.Sub(s.UsedValue)
	}
	return out
}
