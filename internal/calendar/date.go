// Package calendar provides calendar-date arithmetic on UTC midnight dates.
//
// Every Date produced by this package has no time-of-day component and lives
// in UTC. Month and year arithmetic clamps the day of month to the last valid
// day of the target month, so Jan 31 + 1 month is Feb 28 (or Feb 29) and
// Feb 29 + 1 year is Feb 28.
package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// ISOLayout is the only accepted textual form of a Date.
const ISOLayout = "2006-01-02"

// Date is a calendar day normalized to midnight UTC.
type Date struct {
	time.Time
}

// New returns the date for year, month and day. Out-of-range values normalize
// the way time.Date does.
func New(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day, read in UTC.
func FromTime(t time.Time) Date {
	u := t.UTC()
	return New(u.Year(), u.Month(), u.Day())
}

// Parse parses a strict YYYY-MM-DD string.
func Parse(iso string) (Date, error) {
	if len(iso) != len(ISOLayout) {
		return Date{}, fmt.Errorf("invalid calendar date %q: expected YYYY-MM-DD", iso)
	}
	t, err := time.ParseInLocation(ISOLayout, iso, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid calendar date %q: %w", iso, err)
	}
	return Date{Time: t}, nil
}

// MustParse is like Parse but panics on malformed input. Intended for
// constants and tests.
func MustParse(iso string) Date {
	d, err := Parse(iso)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders d as YYYY-MM-DD.
func Format(d Date) string {
	return d.Time.Format(ISOLayout)
}

// String renders d as YYYY-MM-DD.
func (d Date) String() string {
	return Format(d)
}

// YearStart returns January 1 of year.
func YearStart(year int) Date {
	return New(year, time.January, 1)
}

// YearEnd returns December 31 of year.
func YearEnd(year int) Date {
	return New(year, time.December, 31)
}

// daysIn returns the number of days in month of year.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths adds n months, clamping the day to the end of the target month.
func (d Date) AddMonths(n int) Date {
	total := int(d.Month()) - 1 + n
	year := d.Year() + floorDiv(total, 12)
	month := time.Month(floorMod(total, 12) + 1)

	day := d.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return New(year, month, day)
}

// AddYears adds n years with the same clamping rule as AddMonths.
func (d Date) AddYears(n int) Date {
	return d.AddMonths(12 * n)
}

// AddDays adds n days.
func (d Date) AddDays(n int) Date {
	return New(d.Year(), d.Month(), d.Day()+n)
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int { return d.Time.Compare(o.Time) }

// Between reports whether d lies in [start, end], inclusive.
func (d Date) Between(start, end Date) bool {
	return !d.Before(start) && !d.After(end)
}

// RangesIntersectYear reports whether [start, end] overlaps the whole of year,
// inclusive on both ends.
func RangesIntersectYear(start, end Date, year int) bool {
	return !end.Before(YearStart(year)) && !start.After(YearEnd(year))
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi Date) Date {
	if d.Before(lo) {
		return lo
	}
	if d.After(hi) {
		return hi
	}
	return d
}

// DaysBetween returns the number of days from a to b (negative when b < a).
func DaysBetween(a, b Date) int {
	return int(b.Time.Sub(a.Time).Hours() / 24)
}

// MarshalText implements encoding.TextMarshaler. The zero Date marshals to an
// empty string.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(Format(d)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty string yields
// the zero Date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding so JSON carries the
// same YYYY-MM-DD form as MarshalText.
func (d Date) MarshalJSON() ([]byte, error) {
	text, _ := d.MarshalText()
	return json.Marshal(string(text))
}

// UnmarshalJSON accepts a YYYY-MM-DD string, an empty string or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid calendar date %s: %w", b, err)
	}
	return d.UnmarshalText([]byte(s))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
