package dialog

import "strings"

// State identifies where a call currently is in its conversation graph.
type State string

const (
	StateGreeting         State = "greeting"
	StateAwaitingDuration State = "awaiting-duration"
	StateClosed           State = "closed"
)

// CallKind selects which conversation graph a call runs.
type CallKind string

const (
	KindVendorConfirmation CallKind = "vendor_order_confirmation"
	KindRiderAssignment    CallKind = "rider_assignment"
)

// OrderItem is one line of the order read out in the greeting.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// BusinessContext is the immutable payload attached at call initiation and
// round-tripped through the provider on every callback. JSON tags match the
// provider CustomField wire names.
type BusinessContext struct {
	CallKind    CallKind    `json:"call_type"`
	OrderID     int64       `json:"order_id"`
	VendorID    string      `json:"vendor_id,omitempty"`
	VendorName  string      `json:"vendor_name,omitempty"`
	RiderID     string      `json:"rider_id,omitempty"`
	RiderName   string      `json:"rider_name,omitempty"`
	OrderAmount float64     `json:"order_amount,omitempty"`
	OrderItems  []OrderItem `json:"order_items,omitempty"`
	Language    string      `json:"language,omitempty"`

	// GreetingAudioRef points at pre-synthesized greeting audio when the
	// initiator managed to resolve it before the first callback.
	GreetingAudioRef string `json:"greeting_audio_ref,omitempty"`
}

func (bc BusinessContext) Lang() string {
	if bc.Language == "en" {
		return "en"
	}
	return "hi"
}

// StepState is the engine's view of a session: the current state plus how
// many consecutive missed/invalid inputs have been seen at that state.
type StepState struct {
	State   State
	Retries int
}

// OutcomeKind classifies how a call resolved. OutcomeNone means the call is
// still in progress.
type OutcomeKind string

const (
	OutcomeNone       OutcomeKind = ""
	OutcomeAccepted   OutcomeKind = "accepted"
	OutcomeRejected   OutcomeKind = "rejected"
	OutcomeNoResponse OutcomeKind = "no_response"
)

type Outcome struct {
	Kind            OutcomeKind
	PrepTimeMinutes int
}

// Step is the engine's decision for one callback: what to say, what input to
// expect, and what state to persist. ExpectedDigits == 0 marks a terminal
// step; the formatter turns that into an explicit hangup.
type Step struct {
	PromptText     string
	PromptAudioRef string

	ExpectedDigits int
	TimeoutSeconds int
	FinishOnKey    string

	// NextState is persisted when the step is not terminal.
	NextState State

	// Repeated is set when the step re-presents the current prompt because
	// input was missing or unrecognized; the controller counts it against
	// the retry budget.
	Repeated bool

	Outcome Outcome
}

func (s Step) Terminal() bool { return s.ExpectedDigits == 0 }

// NormalizeDigits strips the stray quoting and whitespace some provider
// applets wrap around the DTMF value.
func NormalizeDigits(digits string) string {
	digits = strings.TrimSpace(digits)
	digits = strings.Trim(digits, `"`)
	return strings.TrimSpace(digits)
}
