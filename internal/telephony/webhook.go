package telephony

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"voice-nerve/internal/dialog"
)

// FlowCallback captures the fields the provider passes to the connected-applet
// URL. The flow callback arrives as a GET (or HEAD preflight) with everything
// in the query string.
//
// Keep it provider-adapter-only; no call-flow decisions are made here.

type FlowCallback struct {
	CallSid    string
	CallFrom   string
	CallTo     string
	CallStatus string

	// Digits is the DTMF entry, already unquoted. Empty on the first
	// callback and on input timeout.
	Digits string

	// Context is decoded from the CustomField JSON attached at initiation.
	Context dialog.BusinessContext

	// HasContext is false when CustomField was absent or unparseable.
	HasContext bool
}

var ErrMissingCallSid = errors.New("telephony: CallSid is required")

// ParseFlowCallback decodes a flow webhook request. Digits may arrive under
// either casing depending on the applet, sometimes wrapped in double quotes.
func ParseFlowCallback(r *http.Request) (FlowCallback, error) {
	q := r.URL.Query()

	cb := FlowCallback{
		CallSid:    strings.TrimSpace(q.Get("CallSid")),
		CallFrom:   strings.TrimSpace(q.Get("CallFrom")),
		CallTo:     strings.TrimSpace(q.Get("CallTo")),
		CallStatus: strings.TrimSpace(q.Get("CallStatus")),
	}
	if cb.CallSid == "" {
		return FlowCallback{}, ErrMissingCallSid
	}

	digits := q.Get("digits")
	if digits == "" {
		digits = q.Get("Digits")
	}
	cb.Digits = dialog.NormalizeDigits(digits)

	if raw := q.Get("CustomField"); raw != "" {
		var bc dialog.BusinessContext
		if err := json.Unmarshal([]byte(raw), &bc); err == nil && bc.CallKind != "" {
			cb.Context = bc
			cb.HasContext = true
		}
	}
	return cb, nil
}

// StatusCallback is the end-of-call report the provider POSTs as a form.
type StatusCallback struct {
	CallSid         string
	CallStatus      string
	CallFrom        string
	CallTo          string
	DurationSeconds int
	RecordingURL    string
}

// Completed reports whether the provider considers the call answered and
// finished rather than failed, busy, or unanswered.
func (s StatusCallback) Completed() bool {
	return strings.EqualFold(s.CallStatus, "completed")
}

func ParseStatusCallback(r *http.Request) (StatusCallback, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallback{}, err
	}

	cb := StatusCallback{
		CallSid:      strings.TrimSpace(r.PostFormValue("CallSid")),
		CallStatus:   strings.TrimSpace(r.PostFormValue("CallStatus")),
		CallFrom:     strings.TrimSpace(r.PostFormValue("From")),
		CallTo:       strings.TrimSpace(r.PostFormValue("To")),
		RecordingURL: strings.TrimSpace(r.PostFormValue("RecordingUrl")),
	}
	if cb.CallStatus == "" {
		cb.CallStatus = strings.TrimSpace(r.PostFormValue("Status"))
	}
	if cb.CallSid == "" {
		return StatusCallback{}, ErrMissingCallSid
	}

	dur := r.PostFormValue("Duration")
	if dur == "" {
		dur = r.PostFormValue("CallDuration")
	}
	if dur != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(dur)); err == nil && n >= 0 {
			cb.DurationSeconds = n
		}
	}
	return cb, nil
}
