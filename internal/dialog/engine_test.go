package dialog

import (
	"strings"
	"testing"
)

func vendorCtx() BusinessContext {
	return BusinessContext{
		CallKind:    KindVendorConfirmation,
		OrderID:     1042,
		VendorName:  "Sharma Foods",
		OrderAmount: 380,
		OrderItems:  []OrderItem{{Name: "Paneer Roll", Quantity: 2}},
		Language:    "en",
	}
}

func TestOpen_PresentsGreetingExpectingOneDigit(t *testing.T) {
	e := Engine{}
	step := e.Open(vendorCtx())

	if step.Terminal() {
		t.Fatalf("opening step must not be terminal")
	}
	if step.ExpectedDigits != 1 {
		t.Fatalf("expected 1 digit, got %d", step.ExpectedDigits)
	}
	if step.NextState != StateGreeting {
		t.Fatalf("expected next state greeting, got %q", step.NextState)
	}
	if !strings.Contains(step.PromptText, "1042") {
		t.Fatalf("greeting should mention the order id: %q", step.PromptText)
	}
}

func TestTransition_AcceptMovesToDurationMenu(t *testing.T) {
	e := Engine{}
	step := e.Transition(vendorCtx(), StepState{State: StateGreeting}, "1")

	if step.Terminal() {
		t.Fatalf("duration menu must collect input")
	}
	if step.NextState != StateAwaitingDuration {
		t.Fatalf("expected awaiting-duration, got %q", step.NextState)
	}
}

func TestTransition_RejectClosesCall(t *testing.T) {
	e := Engine{}
	step := e.Transition(vendorCtx(), StepState{State: StateGreeting}, "0")

	if !step.Terminal() {
		t.Fatalf("rejection must be terminal")
	}
	if step.Outcome.Kind != OutcomeRejected {
		t.Fatalf("expected rejected outcome, got %q", step.Outcome.Kind)
	}
}

func TestTransition_DurationDigitsMapToMinutes(t *testing.T) {
	e := Engine{}
	for digits, want := range map[string]int{"1": 15, "2": 30, "3": 45} {
		step := e.Transition(vendorCtx(), StepState{State: StateAwaitingDuration}, digits)
		if !step.Terminal() {
			t.Fatalf("digit %q: expected terminal step", digits)
		}
		if step.Outcome.Kind != OutcomeAccepted {
			t.Fatalf("digit %q: expected accepted outcome", digits)
		}
		if step.Outcome.PrepTimeMinutes != want {
			t.Fatalf("digit %q: expected %d minutes, got %d", digits, want, step.Outcome.PrepTimeMinutes)
		}
	}
}

func TestTransition_CustomPrepTimeRequiresHashAndClamps(t *testing.T) {
	e := Engine{}

	step := e.Transition(vendorCtx(), StepState{State: StateAwaitingDuration}, "20#")
	if !step.Terminal() || step.Outcome.PrepTimeMinutes != 20 {
		t.Fatalf("expected 20 minute prep, got %+v", step.Outcome)
	}

	step = e.Transition(vendorCtx(), StepState{State: StateAwaitingDuration}, "200#")
	if step.Outcome.PrepTimeMinutes != 90 {
		t.Fatalf("expected clamp to 90, got %d", step.Outcome.PrepTimeMinutes)
	}

	// Without the terminator a stray digit is invalid, not a custom time.
	step = e.Transition(vendorCtx(), StepState{State: StateAwaitingDuration}, "9")
	if step.Terminal() {
		t.Fatalf("lone unknown digit must repeat the prompt, not close")
	}
	if !step.Repeated {
		t.Fatalf("expected repeated step")
	}
	if step.NextState != StateAwaitingDuration {
		t.Fatalf("repeat must keep the same state, got %q", step.NextState)
	}
}

func TestTransition_UnknownDigitRepeatsSamePrompt(t *testing.T) {
	e := Engine{MaxRetries: 2}

	for retries := 0; retries < 2; retries++ {
		step := e.Transition(vendorCtx(), StepState{State: StateGreeting, Retries: retries}, "7")
		if step.Terminal() {
			t.Fatalf("retry %d: expected repeat, got terminal", retries)
		}
		if step.NextState != StateGreeting {
			t.Fatalf("retry %d: expected greeting, got %q", retries, step.NextState)
		}
		if !step.Repeated {
			t.Fatalf("retry %d: expected Repeated", retries)
		}
	}

	step := e.Transition(vendorCtx(), StepState{State: StateGreeting, Retries: 2}, "7")
	if !step.Terminal() {
		t.Fatalf("exhausted retries must close the call")
	}
	if step.Outcome.Kind != OutcomeNoResponse {
		t.Fatalf("expected no_response outcome, got %q", step.Outcome.Kind)
	}
}

func TestTransition_EmptyDigitsCountAsMiss(t *testing.T) {
	e := Engine{MaxRetries: 1}

	step := e.Transition(vendorCtx(), StepState{State: StateAwaitingDuration}, "")
	if step.Terminal() || !step.Repeated {
		t.Fatalf("empty digits should repeat the prompt: %+v", step)
	}

	step = e.Transition(vendorCtx(), StepState{State: StateAwaitingDuration, Retries: 1}, "")
	if !step.Terminal() {
		t.Fatalf("second miss with MaxRetries=1 must close")
	}
}

func TestTransition_IsDeterministic(t *testing.T) {
	e := Engine{}
	st := StepState{State: StateGreeting}

	a := e.Transition(vendorCtx(), st, "1")
	b := e.Transition(vendorCtx(), st, "1")
	if a != b {
		t.Fatalf("transition not deterministic: %+v vs %+v", a, b)
	}
}

func TestTransition_StripsQuotedDigits(t *testing.T) {
	e := Engine{}
	step := e.Transition(vendorCtx(), StepState{State: StateGreeting}, `"1"`)
	if step.NextState != StateAwaitingDuration {
		t.Fatalf("quoted digits should be normalized, got state %q", step.NextState)
	}
}

func TestTransition_RiderFlowAcceptsOnOne(t *testing.T) {
	e := Engine{}
	bc := BusinessContext{CallKind: KindRiderAssignment, OrderID: 7, RiderName: "Ravi", Language: "en"}

	step := e.Transition(bc, StepState{State: StateGreeting}, "1")
	if !step.Terminal() || step.Outcome.Kind != OutcomeAccepted {
		t.Fatalf("rider accept should close accepted, got %+v", step)
	}

	step = e.Transition(bc, StepState{State: StateGreeting}, "5")
	if step.Terminal() {
		t.Fatalf("unknown rider digit should repeat")
	}
}

func TestGreetingScript_HindiDefault(t *testing.T) {
	bc := vendorCtx()
	bc.Language = ""
	s := GreetingScript(bc)
	if !strings.Contains(s, "नमस्ते") {
		t.Fatalf("expected Hindi greeting by default, got %q", s)
	}
}
