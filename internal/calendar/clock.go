package calendar

import "time"

// Clock supplies the current instant. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	CurrentTime time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.CurrentTime }

// Today returns the current calendar day according to clock.
func Today(clock Clock) Date {
	if clock == nil {
		clock = SystemClock{}
	}
	return FromTime(clock.Now())
}
