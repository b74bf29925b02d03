package telephony

import (
	"encoding/json"

	"voice-nerve/internal/dialog"
)

// Programmable-gather JSON dialect. The applet reads one JSON document per
// callback; max_input_digits == 0 is the hangup sentinel.

type gatherPrompt struct {
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

type gatherDocument struct {
	GatherPrompt gatherPrompt `json:"gather_prompt"`

	MaxInputDigits int    `json:"max_input_digits"`
	FinishOnKey    string `json:"finish_on_key,omitempty"`
	InputTimeout   int    `json:"input_timeout,omitempty"`

	// RepeatMenu replays the prompt this many times on silence before the
	// applet calls back with empty digits.
	RepeatMenu         int           `json:"repeat_menu,omitempty"`
	RepeatGatherPrompt *gatherPrompt `json:"repeat_gather_prompt,omitempty"`
}

type GatherFormatter struct{}

func (f *GatherFormatter) ContentType() string { return "application/json" }

func (f *GatherFormatter) Render(step dialog.Step, audioURL string) ([]byte, error) {
	prompt := gatherPrompt{Text: step.PromptText}
	if audioURL != "" {
		prompt = gatherPrompt{AudioURL: audioURL}
	}

	doc := gatherDocument{
		GatherPrompt:   prompt,
		MaxInputDigits: step.ExpectedDigits,
		FinishOnKey:    step.FinishOnKey,
		InputTimeout:   step.TimeoutSeconds,
	}
	if !step.Terminal() {
		doc.RepeatMenu = 1
		doc.RepeatGatherPrompt = &prompt
	}
	return json.Marshal(doc)
}
