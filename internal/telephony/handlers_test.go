package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"voice-nerve/internal/delegate"
	"voice-nerve/internal/dialog"
	"voice-nerve/internal/session"

	"github.com/gin-gonic/gin"
)

func newFlowRouter(t *testing.T, store session.Store, onTerminal func(context.Context, session.Session, dialog.Step)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := FlowHandler{
		Sessions:   store,
		Decider:    delegate.Chain{Sources: []delegate.DecisionSource{delegate.EngineSource{}}},
		Format:     &ExoMLFormatter{ActionURL: "https://ivr.example.com/flow"},
		OnTerminal: onTerminal,
	}
	r := gin.New()
	r.GET("/flow", h.Handle)
	r.HEAD("/flow", h.Handle)
	return r
}

func flowGet(r *gin.Engine, query string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/flow?"+query, nil))
	return rec
}

func TestFlowHandler_VendorConfirmationEndToEnd(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	defer store.Close()

	var closedWith dialog.Step
	r := newFlowRouter(t, store, func(_ context.Context, _ session.Session, step dialog.Step) {
		closedWith = step
	})

	custom := url.QueryEscape(`{"call_type":"vendor_order_confirmation","order_id":88,"vendor_name":"Sharma Foods","order_amount":420,"language":"en"}`)

	// First callback: greeting with a gather.
	rec := flowGet(r, "CallSid=CA1&CustomField="+custom)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Gather") || !strings.Contains(rec.Body.String(), "88") {
		t.Fatalf("expected greeting gather:\n%s", rec.Body.String())
	}

	// Vendor accepts: duration menu.
	rec = flowGet(r, "CallSid=CA1&digits=%221%22")
	if !strings.Contains(rec.Body.String(), "<Gather") {
		t.Fatalf("expected duration gather:\n%s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "<Hangup") {
		t.Fatalf("duration menu must not hang up")
	}

	// 30 minutes: terminal goodbye with hangup, session evicted.
	rec = flowGet(r, "CallSid=CA1&digits=2")
	if !strings.Contains(rec.Body.String(), "<Hangup") {
		t.Fatalf("expected terminal hangup:\n%s", rec.Body.String())
	}
	if closedWith.Outcome.Kind != dialog.OutcomeAccepted || closedWith.Outcome.PrepTimeMinutes != 30 {
		t.Fatalf("unexpected close outcome: %+v", closedWith.Outcome)
	}
	if _, err := store.Get(context.Background(), "CA1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("session should be evicted after close, got %v", err)
	}
}

func TestFlowHandler_RetriesExhaustedCloseAsNoResponse(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	defer store.Close()

	var closedWith dialog.Step
	r := newFlowRouter(t, store, func(_ context.Context, _ session.Session, step dialog.Step) {
		closedWith = step
	})

	custom := url.QueryEscape(`{"call_type":"vendor_order_confirmation","order_id":5,"language":"en"}`)
	flowGet(r, "CallSid=CA2&CustomField="+custom)

	// Two invalid entries repeat, the third closes with the apology.
	rec := flowGet(r, "CallSid=CA2&digits=8")
	if strings.Contains(rec.Body.String(), "<Hangup") {
		t.Fatalf("first miss should repeat")
	}
	rec = flowGet(r, "CallSid=CA2&digits=8")
	if strings.Contains(rec.Body.String(), "<Hangup") {
		t.Fatalf("second miss should repeat")
	}
	rec = flowGet(r, "CallSid=CA2&digits=8")
	if !strings.Contains(rec.Body.String(), "<Hangup") {
		t.Fatalf("third miss should close:\n%s", rec.Body.String())
	}
	if closedWith.Outcome.Kind != dialog.OutcomeNoResponse {
		t.Fatalf("expected no_response close, got %+v", closedWith.Outcome)
	}
}

func TestFlowHandler_CallbackHookFiresOnEveryCallback(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	defer store.Close()
	gin.SetMode(gin.TestMode)

	type seen struct {
		orderID int64
		digits  string
	}
	var events []seen
	h := FlowHandler{
		Sessions: store,
		Decider:  delegate.Chain{Sources: []delegate.DecisionSource{delegate.EngineSource{}}},
		Format:   &ExoMLFormatter{ActionURL: "https://x/flow"},
		OnCallback: func(_ context.Context, sess session.Session, digits string) {
			events = append(events, seen{orderID: sess.Context.OrderID, digits: digits})
		},
	}
	r := gin.New()
	r.GET("/flow", h.Handle)

	custom := url.QueryEscape(`{"call_type":"vendor_order_confirmation","order_id":7,"language":"en"}`)
	flowGet(r, "CallSid=CA9&CustomField="+custom)
	flowGet(r, "CallSid=CA9&digits=1")

	if len(events) != 2 {
		t.Fatalf("expected a hook call per callback, got %d", len(events))
	}
	if events[0].digits != "" || events[1].digits != "1" || events[1].orderID != 7 {
		t.Fatalf("unexpected hook payloads: %+v", events)
	}
}

func TestFlowHandler_HeadProbeReturnsEmpty200(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	defer store.Close()
	r := newFlowRouter(t, store, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/flow?CallSid=CA1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if n, _ := store.Len(context.Background()); n != 0 {
		t.Fatalf("HEAD must not create a session")
	}
}

func TestFlowHandler_MissingSidStillRendersValidDocument(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	defer store.Close()
	r := newFlowRouter(t, store, nil)

	rec := flowGet(r, "digits=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook must never return non-2xx, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Hangup") {
		t.Fatalf("expected apology hangup:\n%s", rec.Body.String())
	}
}

type failingDecider struct{}

func (failingDecider) Name() string { return "failing" }
func (failingDecider) Decide(context.Context, delegate.Request) (dialog.Step, error) {
	return dialog.Step{}, errors.New("decider down")
}

func TestFlowHandler_DeciderFailureRendersApology(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	defer store.Close()
	gin.SetMode(gin.TestMode)

	h := FlowHandler{
		Sessions: store,
		Decider:  failingDecider{},
		Format:   &ExoMLFormatter{ActionURL: "https://x/flow"},
	}
	r := gin.New()
	r.GET("/flow", h.Handle)

	rec := flowGet(r, "CallSid=CA3")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Hangup") {
		t.Fatalf("expected apology document:\n%s", rec.Body.String())
	}
}

func TestStatusHandler_LiveSessionClosesAsNoResponse(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	defer store.Close()
	gin.SetMode(gin.TestMode)

	_, _ = store.Update(context.Background(), "CA4", func(s *session.Session) error {
		s.State = dialog.StateGreeting
		return nil
	})

	var got *session.Session
	var status StatusCallback
	h := StatusHandler{
		Sessions: store,
		OnStatus: func(_ context.Context, cb StatusCallback, sess *session.Session) {
			status = cb
			got = sess
		},
	}
	r := gin.New()
	r.POST("/status", h.Handle)

	form := url.Values{"CallSid": {"CA4"}, "CallStatus": {"completed"}, "Duration": {"12"}}
	req := httptest.NewRequest(http.MethodPost, "/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || status.DurationSeconds != 12 {
		t.Fatalf("expected live session handed to OnStatus: %+v %v", status, got)
	}
	if _, err := store.Get(context.Background(), "CA4"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("session should be evicted, got %v", err)
	}
}

func TestStatusHandler_UnknownCallStillAccepted(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	defer store.Close()
	gin.SetMode(gin.TestMode)

	called := false
	h := StatusHandler{
		Sessions: store,
		OnStatus: func(_ context.Context, _ StatusCallback, sess *session.Session) {
			called = true
			if sess != nil {
				t.Fatalf("expected nil session for unknown call")
			}
		},
	}
	r := gin.New()
	r.POST("/status", h.Handle)

	form := url.Values{"CallSid": {"CA5"}, "CallStatus": {"no-answer"}}
	req := httptest.NewRequest(http.MethodPost, "/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !called {
		t.Fatalf("status must be accepted for unknown calls (code %d)", rec.Code)
	}
}
