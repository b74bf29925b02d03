package telephony

import (
	"bytes"
	"encoding/xml"

	"voice-nerve/internal/dialog"
)

// ExoML response builder. Only the verbs the call flows need are modeled;
// no provider SDK dependency.

type exomlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type exomlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type exomlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type exomlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type exomlGather struct {
	XMLName     xml.Name `xml:"Gather"`
	Action      string   `xml:"action,attr,omitempty"`
	Timeout     int      `xml:"timeout,attr,omitempty"`
	FinishOnKey string   `xml:"finishOnKey,attr,omitempty"`
	NumDigits   int      `xml:"numDigits,attr,omitempty"`
	Verbs       []any    `xml:",any"`
}

// ExoMLFormatter renders markup-dialect responses. Collecting steps wrap the
// prompt in a Gather pointing back at the flow callback; terminal steps say
// the goodbye and hang up explicitly so the line is never left open.
type ExoMLFormatter struct {
	// ActionURL is where the provider submits gathered digits.
	ActionURL string
}

func (f *ExoMLFormatter) ContentType() string { return "application/xml" }

func (f *ExoMLFormatter) Render(step dialog.Step, audioURL string) ([]byte, error) {
	var r exomlResponse

	prompt := any(exomlSay{Text: step.PromptText})
	if audioURL != "" {
		prompt = exomlPlay{URL: audioURL}
	}

	if step.Terminal() {
		r.Verbs = append(r.Verbs, prompt, exomlHangup{})
	} else {
		g := exomlGather{
			Action:      f.ActionURL,
			Timeout:     step.TimeoutSeconds,
			FinishOnKey: step.FinishOnKey,
			NumDigits:   step.ExpectedDigits,
			Verbs:       []any{prompt},
		}
		// Trailer re-reads the prompt when the gather lapses without a
		// redirect, so the caller is never met with silence.
		r.Verbs = append(r.Verbs, g, exomlSay{Text: step.PromptText})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
