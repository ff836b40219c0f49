package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finmate/internal/core"
)

// EventType names what happened to a ledger.
type EventType string

const (
	// EventLedgerSaved is published after a successful snapshot save.
	EventLedgerSaved EventType = "ledger.saved"
	// EventRolledOver is published after a rollover committed new entries.
	EventRolledOver EventType = "ledger.rolled_over"
)

// LedgerEvent is a lightweight notification. It carries no entries: consumers
// load the snapshot themselves and use Version to skip stale events.
type LedgerEvent struct {
	Type      EventType      `json:"type"`
	OwnerID   string         `json:"ownerId"`
	Period    core.PeriodKey `json:"period"`
	Version   int64          `json:"version"`
	Created   int            `json:"created,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewLedgerEvent stamps an event with the current time.
func NewLedgerEvent(t EventType, ownerID string, period core.PeriodKey, version int64) LedgerEvent {
	return LedgerEvent{
		Type:      t,
		OwnerID:   ownerID,
		Period:    period,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	switch e.Type {
	case EventLedgerSaved, EventRolledOver:
	default:
		return LedgerEvent{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.OwnerID == "" {
		return LedgerEvent{}, fmt.Errorf("event without owner")
	}
	if _, err := core.ParsePeriodKey(string(e.Period)); err != nil {
		return LedgerEvent{}, fmt.Errorf("event period: %w", err)
	}
	return e, nil
}
