// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for credit period generation.
// Each cadence (monthly, quarterly, biannual, annual) maps to a generator
// that lays out the periods of a credit around a target year.

package services

import (
	"perks/internal/calendar"
	"perks/internal/core"
)

// Period is an inclusive [Start, End] window.
type Period struct {
	Start calendar.Date
	End   calendar.Date
}

// PeriodGenerator is the strategy interface for laying out credit periods.
type PeriodGenerator interface {
	// Periods returns, in chronological order, every period that intersects
	// year. When anchored is false the grid starts on January 1 of year.
	Periods(anchor calendar.Date, anchored bool, year int) []Period
}

// RollingGenerator produces back-to-back periods of a fixed number of months.
//
// Period k starts at origin+k*Months and ends the day before period k+1
// starts. Offsets are always taken from the origin, so month-end clamping
// never accumulates: an anchor on the 31st yields Jan 31, Feb 28, Mar 31.
type RollingGenerator struct {
	Months int
}

// Periods implements PeriodGenerator.
func (g RollingGenerator) Periods(anchor calendar.Date, anchored bool, year int) []Period {
	yearStart, yearEnd := calendar.YearStart(year), calendar.YearEnd(year)

	origin := yearStart
	if anchored {
		origin = anchor
	}
	start := func(k int) calendar.Date {
		return origin.AddMonths(k * g.Months)
	}

	// Jump close to the year, then settle k on the period covering Jan 1.
	k := 0
	if anchored {
		months := (year-origin.Year())*12 + int(yearStart.Month()-origin.Month())
		k = months / g.Months
	}
	for start(k).After(yearStart) {
		k--
	}
	for !start(k + 1).After(yearStart) {
		k++
	}

	var periods []Period
	for ; !start(k).After(yearEnd); k++ {
		p := Period{Start: start(k), End: start(k + 1).AddDays(-1)}
		if calendar.RangesIntersectYear(p.Start, p.End, year) {
			periods = append(periods, p)
		}
	}
	return periods
}

// AnnualGenerator yields the calendar year itself when unanchored and a
// twelve-month anniversary grid otherwise.
type AnnualGenerator struct{}

// Periods implements PeriodGenerator.
func (AnnualGenerator) Periods(anchor calendar.Date, anchored bool, year int) []Period {
	if !anchored {
		return []Period{{Start: calendar.YearStart(year), End: calendar.YearEnd(year)}}
	}
	return RollingGenerator{Months: 12}.Periods(anchor, true, year)
}

// periodStrategies maps cadences to their generators.
var periodStrategies = map[core.Cadence]PeriodGenerator{
	core.Monthly:   RollingGenerator{Months: 1},
	core.Quarterly: RollingGenerator{Months: 3},
	core.Biannual:  RollingGenerator{Months: 6},
	core.Annual:    AnnualGenerator{},
}

// GetPeriodGenerator returns the generator for cadence, or a
// ConfigurationError wrapping ErrUnsupportedCadence.
func GetPeriodGenerator(cadence core.Cadence) (PeriodGenerator, error) {
	gen, ok := periodStrategies[cadence]
	if !ok {
		return nil, &core.ConfigurationError{Err: core.ErrUnsupportedCadence, Value: string(cadence)}
	}
	return gen, nil
}
