package telephony

import (
	"fmt"

	"voice-nerve/internal/config"
	"voice-nerve/internal/dialog"
)

// Formatter turns a dialog step into the wire document a deployment's applet
// expects. The dialect is fixed per deployment by configuration; nothing about
// an individual call changes it.
type Formatter interface {
	ContentType() string
	Render(step dialog.Step, audioURL string) ([]byte, error)
}

func NewFormatter(dialect config.Dialect, actionURL string) (Formatter, error) {
	switch dialect {
	case config.DialectExoML:
		return &ExoMLFormatter{ActionURL: actionURL}, nil
	case config.DialectGather:
		return &GatherFormatter{}, nil
	default:
		return nil, fmt.Errorf("telephony: unknown dialect %q", dialect)
	}
}
