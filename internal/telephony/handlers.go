package telephony

import (
	"context"
	"net/http"
	"time"

	"voice-nerve/internal/audio"
	"voice-nerve/internal/delegate"
	"voice-nerve/internal/dialog"
	"voice-nerve/internal/session"
	"voice-nerve/pkg/logger"

	"github.com/gin-gonic/gin"
)

// FlowHandler drives one dialog step per provider callback: parse, decide
// under the session lock, persist, render.
//
// Error doctrine: a non-2xx response would leave the callee on a silent open
// line, so every failure path renders a valid terminal apology document with
// status 200. The provider only ever sees well-formed responses.
type FlowHandler struct {
	Sessions session.Store
	Decider  delegate.DecisionSource
	Format   Formatter

	// Audio resolves prompt text to cached audio; nil disables Play and the
	// applet falls back to provider TTS on the prompt text.
	Audio *audio.Cache

	// AudioURL maps a cache id to the public URL the provider fetches.
	AudioURL func(id string) string

	// OnCallback fires for every accepted flow callback, for the call trail.
	OnCallback func(ctx context.Context, sess session.Session, digits string)

	// OnDigits fires for every DTMF entry, for the call trail.
	OnDigits func(ctx context.Context, sess session.Session, digits string)

	// OnTerminal fires after a closing step is persisted: result reporting
	// and call-record bookkeeping hang off it.
	OnTerminal func(ctx context.Context, sess session.Session, step dialog.Step)

	// ResolveTimeout bounds on-demand synthesis during a live callback.
	ResolveTimeout time.Duration
}

func (h FlowHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	// Providers probe the callback URL with HEAD before the applet goes
	// live; answer cheaply without touching state.
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}

	cb, err := ParseFlowCallback(c.Request)
	if err != nil {
		log.Warn("flow callback rejected", "err", err)
		h.renderApology(c, dialog.BusinessContext{})
		return
	}

	var (
		step   dialog.Step
		closed bool
	)
	ctx := c.Request.Context()
	sess, err := h.Sessions.Update(ctx, cb.CallSid, func(s *session.Session) error {
		fresh := s.State == ""
		if cb.HasContext {
			s.Context = cb.Context
		}
		if !fresh && cb.Digits != "" {
			s.CollectedInputs = append(s.CollectedInputs, cb.Digits)
		}

		decided, derr := h.Decider.Decide(ctx, delegate.Request{
			SessionID:       cb.CallSid,
			Context:         s.Context,
			State:           s.StepState(),
			CollectedInputs: s.CollectedInputs,
			Digits:          cb.Digits,
			Fresh:           fresh,
		})
		if derr != nil {
			return derr
		}
		step = decided

		if step.Terminal() {
			s.State = dialog.StateClosed
			closed = true
			return nil
		}
		s.State = step.NextState
		if step.Repeated {
			s.Retries++
		} else {
			s.Retries = 0
		}
		return nil
	})
	if err != nil {
		log.Error("dialog step failed", "call_sid", cb.CallSid, "err", err)
		h.renderApology(c, cb.Context)
		return
	}

	if h.OnCallback != nil {
		h.OnCallback(ctx, sess, cb.Digits)
	}
	if cb.Digits != "" && h.OnDigits != nil {
		h.OnDigits(ctx, sess, cb.Digits)
	}

	if closed {
		if h.OnTerminal != nil {
			h.OnTerminal(ctx, sess, step)
		}
		if err := h.Sessions.Evict(ctx, cb.CallSid); err != nil {
			log.Warn("session evict failed", "call_sid", cb.CallSid, "err", err)
		}
		log.Info("call closed",
			"call_sid", cb.CallSid,
			"outcome", string(step.Outcome.Kind),
			"prep_minutes", step.Outcome.PrepTimeMinutes)
	}

	h.render(c, step, sess.Context)
}

func (h FlowHandler) render(c *gin.Context, step dialog.Step, bc dialog.BusinessContext) {
	log := logger.FromGin(c)

	body, err := h.Format.Render(step, h.resolveAudio(c.Request.Context(), step, bc))
	if err != nil {
		log.Error("render failed", "err", err)
		h.renderApology(c, bc)
		return
	}
	c.Data(http.StatusOK, h.Format.ContentType(), body)
}

// resolveAudio prefers pre-synthesized greeting audio, then the cache. A
// synthesis failure degrades to text; it never fails the callback.
func (h FlowHandler) resolveAudio(ctx context.Context, step dialog.Step, bc dialog.BusinessContext) string {
	if h.Audio == nil || h.AudioURL == nil {
		return ""
	}
	if step.PromptAudioRef != "" {
		if _, ok := h.Audio.Lookup(step.PromptAudioRef); ok {
			return h.AudioURL(step.PromptAudioRef)
		}
	}

	timeout := h.ResolveTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := h.Audio.Resolve(rctx, step.PromptText, bc.Lang())
	if err != nil {
		return ""
	}
	return h.AudioURL(id)
}

func (h FlowHandler) renderApology(c *gin.Context, bc dialog.BusinessContext) {
	step := dialog.Step{
		PromptText: dialog.ApologyScript(bc),
		NextState:  dialog.StateClosed,
		Outcome:    dialog.Outcome{Kind: dialog.OutcomeNoResponse},
	}
	body, err := h.Format.Render(step, "")
	if err != nil {
		// Rendering a static apology cannot realistically fail; answer
		// with an empty 200 rather than an error status.
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, h.Format.ContentType(), body)
}

// StatusHandler consumes the end-of-call report. A session still present here
// means the call ended without reaching a terminal step (callee hung up or
// never answered), which closes it as no-response.
type StatusHandler struct {
	Sessions session.Store

	// OnStatus receives every status callback with the session if one was
	// still live. The session pointer is nil for already-closed calls.
	OnStatus func(ctx context.Context, cb StatusCallback, sess *session.Session)
}

func (h StatusHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	cb, err := ParseStatusCallback(c.Request)
	if err != nil {
		log.Warn("status callback rejected", "err", err)
		c.Status(http.StatusOK)
		return
	}

	ctx := c.Request.Context()
	var live *session.Session
	if sess, err := h.Sessions.Get(ctx, cb.CallSid); err == nil {
		live = &sess
		if err := h.Sessions.Evict(ctx, cb.CallSid); err != nil {
			log.Warn("session evict failed", "call_sid", cb.CallSid, "err", err)
		}
	}

	if h.OnStatus != nil {
		h.OnStatus(ctx, cb, live)
	}

	log.Info("status received",
		"call_sid", cb.CallSid,
		"call_status", cb.CallStatus,
		"duration_s", cb.DurationSeconds,
		"session_live", live != nil)
	c.Status(http.StatusOK)
}
