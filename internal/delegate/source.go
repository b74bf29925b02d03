package delegate

import (
	"context"
	"errors"
	"fmt"

	"voice-nerve/internal/dialog"
	"voice-nerve/pkg/logger"
)

// Request is everything a decision source may consider for one callback.
type Request struct {
	SessionID       string
	Context         dialog.BusinessContext
	State           dialog.StepState
	CollectedInputs []string

	// Digits is the normalized DTMF entry for this callback; empty on the
	// opening callback and on input timeout.
	Digits string

	// Fresh marks the first callback of a call, before any step was served.
	Fresh bool
}

// DecisionSource decides the next dialog step for a callback. Sources must be
// side-effect free; session persistence happens in the webhook controller.
type DecisionSource interface {
	Name() string
	Decide(ctx context.Context, req Request) (dialog.Step, error)
}

// EngineSource is the deterministic source backed by the static conversation
// graphs. It never fails, which makes it the mandatory last link of a Chain.
type EngineSource struct {
	Engine dialog.Engine
}

func (s EngineSource) Name() string { return "engine" }

func (s EngineSource) Decide(_ context.Context, req Request) (dialog.Step, error) {
	if req.Fresh {
		return s.Engine.Open(req.Context), nil
	}
	return s.Engine.Transition(req.Context, req.State, req.Digits), nil
}

// Chain tries each source in order and falls through on error. A slow or
// failing upstream never decides a live call's fate; the engine at the end of
// the chain always produces a step.
type Chain struct {
	Sources []DecisionSource
}

var errNoSources = errors.New("delegate: no decision sources configured")

func (c Chain) Name() string { return "chain" }

func (c Chain) Decide(ctx context.Context, req Request) (dialog.Step, error) {
	if len(c.Sources) == 0 {
		return dialog.Step{}, errNoSources
	}
	var lastErr error
	for _, src := range c.Sources {
		step, err := src.Decide(ctx, req)
		if err == nil {
			return step, nil
		}
		lastErr = err
		logger.From(ctx).Warn("decision source failed, falling through",
			"source", src.Name(), "call_sid", req.SessionID, "err", err)
	}
	return dialog.Step{}, fmt.Errorf("delegate: all sources failed: %w", lastErr)
}
