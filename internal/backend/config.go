package backend

import (
	"errors"
	"fmt"
	"strings"

	"perks/internal/config"
)

// Type selects where credit state lives.
type Type string

const (
	// MemoryBackend keeps state in process, optionally seeded from
	// DataDirectory/state.json. Nothing survives a restart.
	MemoryBackend Type = "memory"
	// SQLiteBackend persists state and the reminder log in SQLite and can
	// publish change events to AMQP.
	SQLiteBackend Type = "sqlite"
)

// Types lists the supported backends in documentation order.
func Types() []Type { return []Type{MemoryBackend, SQLiteBackend} }

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType accepts a backend name case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown backend %q (want one of %v)", s, Types())
	}
	return t, nil
}

// Config is the subset of application configuration a backend needs.
type Config struct {
	Type Type

	SQLiteDBPath string

	// AMQP publishing is enabled when AMQPURL is set.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	DataDirectory string
}

// FromAppConfig extracts the backend settings from the application config.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errors.New("app config is nil")
	}
	t, err := ParseType(app.DataBackend)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Type:          t,
		SQLiteDBPath:  app.SQLiteDBPath,
		AMQPURL:       app.AMQPURL,
		AMQPExchange:  app.AMQPExchange,
		AMQPQueue:     app.AMQPQueue,
		DataDirectory: app.DataDirectory,
	}, nil
}

// WithoutEvents returns a copy that never publishes change events. Processes
// that only read state, or whose writes the sync worker picks up by polling,
// use it to avoid holding a broker connection.
func (c Config) WithoutEvents() Config {
	c.AMQPURL = ""
	return c
}

// EventsEnabled reports whether writes will be announced on AMQP.
func (c Config) EventsEnabled() bool {
	return c.Type == SQLiteBackend && c.AMQPURL != ""
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if !c.Type.IsValid() {
		errs = append(errs, fmt.Errorf("invalid backend type: %q", c.Type))
	}
	if c.Type == SQLiteBackend {
		if c.SQLiteDBPath == "" {
			errs = append(errs, errors.New("sqlite backend needs a database path"))
		}
		if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
			errs = append(errs, errors.New("AMQP exchange and queue are required when AMQP URL is set"))
		}
	}
	return errors.Join(errs...)
}
