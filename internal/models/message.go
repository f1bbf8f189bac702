package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is one SMS as received from the gateway. ID is the gateway GUID
// and is globally unique.
type Message struct {
	ID              string           `json:"id" yaml:"id"`
	Address         string           `json:"address" yaml:"address"`
	Body            string           `json:"body" yaml:"body"`
	OccurredAt      time.Time        `json:"occurred_at" yaml:"occurred_at"`
	Direction       MessageDirection `json:"direction" yaml:"direction"`
	Status          MessageStatus    `json:"status" yaml:"status"`
	RawSource       json.RawMessage  `json:"raw_source,omitempty" yaml:"-"`
	DeviceID        string           `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty" yaml:"processed_at,omitempty"`
	ProcessingNotes string           `json:"processing_notes,omitempty" yaml:"processing_notes,omitempty"`
	CreatedAt       time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" yaml:"updated_at"`
}

// IsTerminal reports whether the message has left the received state.
func (s MessageStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Transition moves a received message to a terminal status and records the
// processing note. Terminal messages cannot change status again.
func (m *Message) Transition(to MessageStatus, notes string, at time.Time) error {
	if !to.IsTerminal() {
		return fmt.Errorf("invalid target status %q", to)
	}
	if m.Status != StatusReceived {
		return fmt.Errorf("message %s: cannot move from %q to %q", m.ID, m.Status, to)
	}
	m.Status = to
	m.ProcessingNotes = notes
	m.ProcessedAt = &at
	m.UpdatedAt = at
	return nil
}
