package dialog

import (
	"strconv"
	"strings"
)

// Engine encodes the conversation graphs as a pure transition function.
// It performs no I/O; identical inputs always produce identical steps, so a
// provider retry replaying the same digit against the same state renders the
// same response.
type Engine struct {
	// MaxRetries bounds consecutive missed or unrecognized inputs at one
	// state before the call is closed with an apology.
	MaxRetries int

	// InputTimeoutSeconds is stamped onto every collecting step.
	InputTimeoutSeconds int
}

const (
	defaultMaxRetries   = 2
	defaultInputTimeout = 15

	minPrepMinutes = 5
	maxPrepMinutes = 90

	// customMinutesDigits bounds the digits accepted before the # terminator
	// on the custom prep-time path.
	customMinutesDigits = 3
)

func (e Engine) maxRetries() int {
	if e.MaxRetries > 0 {
		return e.MaxRetries
	}
	return defaultMaxRetries
}

func (e Engine) inputTimeout() int {
	if e.InputTimeoutSeconds > 0 {
		return e.InputTimeoutSeconds
	}
	return defaultInputTimeout
}

// Open produces the opening step for a fresh session. The initial
// presentation does not count against the retry budget.
func (e Engine) Open(bc BusinessContext) Step {
	step := e.collecting(GreetingScript(bc), StateGreeting, 1)
	step.PromptAudioRef = bc.GreetingAudioRef
	return step
}

// Transition decides the next step from the current state and the digits
// entered. Empty or unrecognized digits re-present the current prompt until
// the retry budget runs out, after which the call is closed; a call is never
// left hanging on an open line.
func (e Engine) Transition(bc BusinessContext, st StepState, digits string) Step {
	digits = NormalizeDigits(digits)

	switch st.State {
	case StateGreeting:
		return e.fromGreeting(bc, st, digits)
	case StateAwaitingDuration:
		return e.fromAwaitingDuration(bc, st, digits)
	case StateClosed:
		// Late or duplicate callback after a terminal step: close again.
		return e.terminal(ClosedScript(bc), Outcome{Kind: OutcomeNoResponse})
	default:
		// Unknown state is treated as a fresh greeting rather than an error.
		return e.Open(bc)
	}
}

func (e Engine) fromGreeting(bc BusinessContext, st StepState, digits string) Step {
	if bc.CallKind == KindRiderAssignment {
		if digits == "1" {
			return e.terminal(RiderGoodbyeScript(bc), Outcome{Kind: OutcomeAccepted})
		}
		return e.repeat(bc, st, GreetingScript(bc), StateGreeting)
	}

	switch digits {
	case "1":
		return e.collecting(DurationMenuScript(bc), StateAwaitingDuration, customMinutesDigits+1)
	case "0":
		return e.terminal(RejectedGoodbyeScript(bc), Outcome{Kind: OutcomeRejected})
	default:
		return e.repeat(bc, st, GreetingScript(bc), StateGreeting)
	}
}

func (e Engine) fromAwaitingDuration(bc BusinessContext, st StepState, digits string) Step {
	switch digits {
	case "1":
		return e.acceptWithPrep(bc, 15)
	case "2":
		return e.acceptWithPrep(bc, 30)
	case "3":
		return e.acceptWithPrep(bc, 45)
	}

	// Multi-digit entry terminated by # is taken as minutes, clamped to a
	// kitchen-plausible range.
	if minutes, ok := parseCustomMinutes(digits); ok {
		return e.acceptWithPrep(bc, minutes)
	}

	return e.repeat(bc, st, DurationMenuScript(bc), StateAwaitingDuration)
}

func (e Engine) acceptWithPrep(bc BusinessContext, minutes int) Step {
	return e.terminal(AcceptedGoodbyeScript(bc, minutes), Outcome{
		Kind:            OutcomeAccepted,
		PrepTimeMinutes: minutes,
	})
}

func (e Engine) collecting(prompt string, next State, maxDigits int) Step {
	return Step{
		PromptText:     prompt,
		ExpectedDigits: maxDigits,
		TimeoutSeconds: e.inputTimeout(),
		FinishOnKey:    "#",
		NextState:      next,
	}
}

func (e Engine) repeat(bc BusinessContext, st StepState, prompt string, state State) Step {
	if st.Retries >= e.maxRetries() {
		return e.terminal(ApologyScript(bc), Outcome{Kind: OutcomeNoResponse})
	}
	maxDigits := 1
	if state == StateAwaitingDuration {
		maxDigits = customMinutesDigits + 1
	}
	step := e.collecting(RepeatPrefix(bc, prompt), state, maxDigits)
	step.Repeated = true
	return step
}

func (e Engine) terminal(prompt string, outcome Outcome) Step {
	return Step{
		PromptText: prompt,
		NextState:  StateClosed,
		Outcome:    outcome,
	}
}

func parseCustomMinutes(digits string) (int, bool) {
	// The custom-time path requires the # terminator; a lone stray digit is
	// treated as invalid input, not as a one-minute prep time.
	if !strings.HasSuffix(digits, "#") {
		return 0, false
	}
	digits = strings.TrimSuffix(digits, "#")
	if digits == "" || len(digits) > customMinutesDigits {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if n < minPrepMinutes {
		n = minPrepMinutes
	}
	if n > maxPrepMinutes {
		n = maxPrepMinutes
	}
	return n, true
}
