package calls

import (
	"strings"
	"time"

	"voice-nerve/internal/dialog"
)

// Call is the persistent record of one outbound confirmation call.
//
// NOTE: This is a domain model only. Provider-specific payloads stay at the
// telephony boundary; only the call SID crosses over, as provider_call_sid.

type Call struct {
	CallID string `json:"call_id" db:"call_id"`

	// CallSid is the provider identifier, the join key for every callback.
	CallSid string `json:"call_sid" db:"provider_call_sid"`

	Kind    dialog.CallKind `json:"kind" db:"kind"`
	OrderID int64           `json:"order_id" db:"order_id"`

	To string `json:"to" db:"to_number"`

	Status CallStatus `json:"status" db:"status"`

	// Outcome is filled when the dialog reaches a terminal step.
	Outcome         dialog.OutcomeKind `json:"outcome,omitempty" db:"outcome"`
	PrepTimeMinutes int                `json:"prep_time_minutes,omitempty" db:"prep_time_minutes"`

	DurationSeconds int    `json:"duration,omitempty" db:"duration"`
	RecordingURL    string `json:"recording_url,omitempty" db:"recording_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusBusy       CallStatus = "busy"
)

// Active reports whether the call still occupies a live channel.
func (s CallStatus) Active() bool {
	return s == CallStatusQueued || s == CallStatusInProgress
}

// StatusFromProvider maps the provider's end-of-call status strings onto the
// domain statuses. Unrecognized values count as failed.
func StatusFromProvider(s string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return CallStatusCompleted
	case "busy":
		return CallStatusBusy
	case "no-answer", "no_answer":
		return CallStatusNoAnswer
	case "in-progress", "in_progress", "ringing", "queued":
		return CallStatusInProgress
	default:
		return CallStatusFailed
	}
}
