package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money is an amount in US cents. Amounts are never negative; zero is valid
// for credits that carry no cash value (free nights).
type Money struct {
	Cents int64
}

var usd = message.NewPrinter(language.AmericanEnglish)

// Dollars builds Money from a whole-dollar amount.
func Dollars(d int64) Money {
	return Money{Cents: d * 100}
}

// ParseDecimalToCents converts a decimal string to cents with half-up rounding
// on the third decimal place.
//
// A leading "$" and thousands separators are accepted. Negative values and
// malformed input are rejected; zero is allowed.
//
//	ParseDecimalToCents("12.34")  -> 1234
//	ParseDecimalToCents("$1,200") -> 120000
//	ParseDecimalToCents("12.345") -> 1235
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}

	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

// Validate rejects negative amounts.
func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o, floored at zero.
func (m Money) Sub(o Money) Money {
	if o.Cents >= m.Cents {
		return Money{}
	}
	return Money{Cents: m.Cents - o.Cents}
}

// Dollars returns the value in dollars for display.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}

// String renders m as US currency, e.g. "$1,250.00".
func (m Money) String() string {
	return usd.Sprintf("$%d", m.Cents/100) + fmt.Sprintf(".%02d", m.Cents%100)
}

// UnmarshalTOML accepts integers (dollars), floats and decimal strings.
func (m *Money) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case int64:
		if val < 0 {
			return ErrInvalidAmount
		}
		*m = Dollars(val)
	case float64:
		return m.UnmarshalText([]byte(strconv.FormatFloat(val, 'f', -1, 64)))
	case string:
		return m.UnmarshalText([]byte(val))
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
	return nil
}

// UnmarshalText parses a decimal string.
func (m *Money) UnmarshalText(b []byte) error {
	cents, err := ParseDecimalToCents(string(b))
	if err != nil {
		return fmt.Errorf("%w: %q", err, string(b))
	}
	m.Cents = cents
	return nil
}
