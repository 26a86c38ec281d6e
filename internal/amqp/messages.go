package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"perks/internal/core"
)

// EventCreditStateChanged is the only event type on the credit state queue.
const EventCreditStateChanged = "credit_state.changed"

// CreditStateMessage announces that a user's entry for one credit instance
// changed. It carries only the key and version; the worker reads the entry
// from the database.
type CreditStateMessage struct {
	Event      string    `json:"event"`
	UserID     string    `json:"user_id"`
	InstanceID string    `json:"instance_id"`
	Version    int64     `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewCreditStateMessage(userID, instanceID string, version int64) *CreditStateMessage {
	return &CreditStateMessage{
		Event:      EventCreditStateChanged,
		UserID:     userID,
		InstanceID: instanceID,
		Version:    version,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *CreditStateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate rejects messages the worker could never act on. A missing event
// name is accepted for messages published before it existed.
func (m *CreditStateMessage) Validate() error {
	if m.Event != "" && m.Event != EventCreditStateChanged {
		return fmt.Errorf("unexpected event %q", m.Event)
	}
	if m.UserID == "" {
		return fmt.Errorf("credit state message missing user id")
	}
	if _, _, _, err := core.ParseInstanceID(m.InstanceID); err != nil {
		return fmt.Errorf("credit state message instance %q: %w", m.InstanceID, err)
	}
	if m.Version < 1 {
		return fmt.Errorf("credit state message version %d: must be positive", m.Version)
	}
	return nil
}

// CreditStateMessageFromJSON decodes and validates a message.
func CreditStateMessageFromJSON(data []byte) (*CreditStateMessage, error) {
	var msg CreditStateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode credit state message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
