package audit

import "time"

// Event is an immutable, append-only trail record for the call lifecycle.
//
// Invariants:
// - Events are never updated or deleted.
// - call_sid is required; every trail entry belongs to one call.
// - Capture is best-effort; never block a live call on audit failures.
//
// Storage recommendation (Postgres):
// - Table call_events with an INSERT-only policy.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the lifecycle moment the record captures.
	Type EventType `json:"type" db:"type"`

	CallSid string `json:"call_sid" db:"call_sid"`
	OrderID int64  `json:"order_id,omitempty" db:"order_id"`

	// Digits carries the DTMF entry for digit events.
	Digits string `json:"digits,omitempty" db:"digits"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallInitiated EventType = "call_initiated"
	EventTypeCallback      EventType = "callback_received"
	EventTypeDigits        EventType = "digits_received"
	EventTypeTerminalStep  EventType = "terminal_step"
	EventTypeStatus        EventType = "status_received"
)
