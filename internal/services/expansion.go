package services

import (
	"errors"
	"fmt"

	"perks/internal/core"
)

// InclusionPolicy decides which generated periods belong to a year.
type InclusionPolicy string

const (
	// IncludeIntersecting keeps every period that overlaps the year. An
	// anniversary period that began last year shows up in both years under
	// the same instance ID.
	IncludeIntersecting InclusionPolicy = "intersect"
	// IncludeStartingInYear keeps only periods that begin inside the year,
	// so every anniversary period belongs to exactly one year.
	IncludeStartingInYear InclusionPolicy = "start"
)

// ParseInclusionPolicy maps a configuration value to a policy.
func ParseInclusionPolicy(s string) (InclusionPolicy, error) {
	switch InclusionPolicy(s) {
	case "", IncludeIntersecting:
		return IncludeIntersecting, nil
	case IncludeStartingInYear:
		return IncludeStartingInYear, nil
	}
	return "", fmt.Errorf("unknown inclusion policy %q", s)
}

// Expander turns a user's card portfolio into the dated credit instances of
// one year. It holds only the immutable catalog and is safe for concurrent
// use.
type Expander struct {
	catalog   core.CardCatalog
	inclusion InclusionPolicy
}

// ExpanderOption configures an Expander.
type ExpanderOption func(*Expander)

// WithInclusionPolicy overrides the default IncludeIntersecting policy.
func WithInclusionPolicy(p InclusionPolicy) ExpanderOption {
	return func(e *Expander) {
		e.inclusion = p
	}
}

// NewExpander creates an expander over catalog. The catalog must not be
// mutated afterwards.
func NewExpander(catalog core.CardCatalog, opts ...ExpanderOption) *Expander {
	e := &Expander{catalog: catalog, inclusion: IncludeIntersecting}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the card catalog the expander reads from.
func (e *Expander) Catalog() core.CardCatalog {
	return e.catalog
}

// Expand returns every credit instance of user's cards whose period
// intersects year. Instances are ordered by card (config order), then credit
// (catalog order), then start date. Any configuration problem aborts the
// whole expansion and no instances are returned.
func (e *Expander) Expand(user core.UserConfig, year int) ([]core.CreditInstance, error) {
	var out []core.CreditInstance

	for _, card := range user.Cards {
		def, ok := e.catalog[card.ID]
		if !ok {
			return nil, &core.ConfigurationError{Err: core.ErrUnknownCard, Value: card.ID}
		}

		for _, credit := range def.Credits {
			periods, err := creditPeriods(card, credit, year)
			if err != nil {
				var ce *core.ConfigurationError
				if errors.As(err, &ce) {
					ce.Card, ce.Credit = card.ID, credit.CreditID
				}
				return nil, err
			}

			for _, p := range periods {
				if e.inclusion == IncludeStartingInYear && p.Start.Year() != year {
					continue
				}
				out = append(out, core.CreditInstance{
					ID:          core.InstanceID(card.ID, credit.CreditID, p.Start, p.End),
					CardID:      card.ID,
					CreditID:    credit.CreditID,
					Amount:      credit.Amount,
					Description: credit.Description,
					Cadence:     credit.Cadence,
					PeriodType:  credit.PeriodType,
					StartDate:   p.Start,
					EndDate:     p.End,
				})
			}
		}
	}
	return out, nil
}

func creditPeriods(card core.UserCard, credit core.CreditDefinition, year int) ([]Period, error) {
	gen, err := GetPeriodGenerator(credit.Cadence)
	if err != nil {
		return nil, err
	}

	switch credit.PeriodType {
	case core.AnniversaryPeriod:
		if card.OpenedDate.IsZero() {
			return nil, &core.ConfigurationError{Err: core.ErrMissingAnchor}
		}
		return gen.Periods(card.OpenedDate, true, year), nil
	case core.CalendarPeriod:
		return gen.Periods(card.OpenedDate, false, year), nil
	default:
		return nil, &core.ConfigurationError{Err: core.ErrUnknownPeriodType, Value: string(credit.PeriodType)}
	}
}
