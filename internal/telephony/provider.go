package telephony

import (
	"context"

	"voice-nerve/internal/dialog"
)

// Provider is the outbound-call boundary used by business logic.
//
// Rules:
// - No provider REST calls outside telephony adapters.
// - Request/response types stay provider-agnostic; the business context is
//   round-tripped opaquely and comes back on every flow callback.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// Connect places an outbound call that lands in the flow applet. It
	// returns the provider call SID used to key the session.
	Connect(ctx context.Context, req ConnectRequest) (ConnectResult, error)
}

type ConnectRequest struct {
	// To is the callee in national or E.164 form.
	To string `json:"to"`

	Context dialog.BusinessContext `json:"context"`

	// TimeLimitSeconds caps total call duration; zero uses the provider
	// default.
	TimeLimitSeconds int `json:"time_limit_seconds,omitempty"`

	// RingTimeoutSeconds caps how long the callee's phone rings.
	RingTimeoutSeconds int `json:"ring_timeout_seconds,omitempty"`

	Record bool `json:"record,omitempty"`
}

type ConnectResult struct {
	CallSid string `json:"call_sid"`
	Status  string `json:"status,omitempty"`
}
