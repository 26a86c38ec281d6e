package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCard        = errors.New("unknown card")
	ErrUnsupportedCadence = errors.New("unsupported cadence")
	ErrUnknownPeriodType  = errors.New("unknown period type")
	ErrMissingAnchor      = errors.New("missing opened date for anniversary credit")
	ErrUnknownUser        = errors.New("unknown user")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidInstanceID  = errors.New("invalid credit instance id")
	ErrUnknownInstance    = errors.New("unknown credit instance")
	ErrNoteTooLong        = errors.New("note too long (max 500 characters)")
)

// ConfigurationError reports a catalog or user configuration that cannot be
// expanded. It unwraps to one of the sentinel errors above.
type ConfigurationError struct {
	Err    error
	Card   string
	Credit string
	Value  string
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error: " + e.Err.Error()
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Card != "" {
		msg += " (card " + e.Card
		if e.Credit != "" {
			msg += ", credit " + e.Credit
		}
		msg += ")"
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
