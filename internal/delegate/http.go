package delegate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-nerve/internal/dialog"
)

// HTTPSource delegates step decisions to an external dialog service. Every
// request carries a hard deadline; a slow upstream is indistinguishable from
// a dead one as far as a live call is concerned.
type HTTPSource struct {
	URL     string
	Timeout time.Duration

	// InputTimeoutSeconds is stamped onto collecting steps the upstream
	// returns, matching what the static engine would use.
	InputTimeoutSeconds int

	Client *http.Client
}

const defaultDecisionTimeout = 2 * time.Second

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultDecisionTimeout
	}
	return &HTTPSource{
		URL:     url,
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Name() string { return "dialog-service" }

type decisionRequest struct {
	SessionID       string                 `json:"session_id"`
	BusinessContext dialog.BusinessContext `json:"business_context"`
	State           string                 `json:"state"`
	CollectedInputs []string               `json:"collected_inputs"`
	Message         string                 `json:"message"`
}

type decisionResponse struct {
	Text     string `json:"text"`
	Continue bool   `json:"continue"`
	Language string `json:"language,omitempty"`

	// Outcome and PrepTimeMinutes are honored only when Continue is false.
	Outcome         string `json:"outcome,omitempty"`
	PrepTimeMinutes int    `json:"prep_time_minutes,omitempty"`
}

func (s *HTTPSource) Decide(ctx context.Context, req Request) (dialog.Step, error) {
	if s.URL == "" {
		return dialog.Step{}, errors.New("delegate: dialog service url not configured")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultDecisionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(decisionRequest{
		SessionID:       req.SessionID,
		BusinessContext: req.Context,
		State:           string(req.State.State),
		CollectedInputs: req.CollectedInputs,
		Message:         req.Digits,
	})
	if err != nil {
		return dialog.Step{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return dialog.Step{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return dialog.Step{}, fmt.Errorf("delegate: dialog service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dialog.Step{}, fmt.Errorf("delegate: dialog service returned %d", resp.StatusCode)
	}

	var out decisionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return dialog.Step{}, fmt.Errorf("delegate: decode response: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return dialog.Step{}, errors.New("delegate: dialog service returned empty text")
	}
	return s.toStep(req, out), nil
}

func (s *HTTPSource) toStep(req Request, out decisionResponse) dialog.Step {
	if out.Continue {
		timeout := s.InputTimeoutSeconds
		if timeout <= 0 {
			timeout = 15
		}
		state := req.State.State
		if state == "" || state == dialog.StateClosed {
			state = dialog.StateGreeting
		}
		return dialog.Step{
			PromptText:     out.Text,
			ExpectedDigits: 1,
			TimeoutSeconds: timeout,
			FinishOnKey:    "#",
			NextState:      state,
		}
	}

	outcome := dialog.Outcome{Kind: dialog.OutcomeNoResponse}
	switch dialog.OutcomeKind(out.Outcome) {
	case dialog.OutcomeAccepted:
		outcome = dialog.Outcome{Kind: dialog.OutcomeAccepted, PrepTimeMinutes: out.PrepTimeMinutes}
	case dialog.OutcomeRejected:
		outcome = dialog.Outcome{Kind: dialog.OutcomeRejected}
	}
	return dialog.Step{
		PromptText: out.Text,
		NextState:  dialog.StateClosed,
		Outcome:    outcome,
	}
}
