package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"voice-nerve/internal/dialog"
	"voice-nerve/pkg/logger"
)

// Result is the call outcome pushed to the order backend once a call closes.
type Result struct {
	CallSid string          `json:"call_sid"`
	Kind    dialog.CallKind `json:"call_type"`
	OrderID int64           `json:"order_id"`

	Outcome         dialog.OutcomeKind `json:"outcome"`
	PrepTimeMinutes int                `json:"prep_time_minutes,omitempty"`

	CollectedInputs []string `json:"collected_inputs,omitempty"`

	DurationSeconds int    `json:"duration_seconds,omitempty"`
	RecordingURL    string `json:"recording_url,omitempty"`

	ReportedAt time.Time `json:"reported_at"`
}

// Client delivers results to the order backend. Delivery is best-effort: a
// result that cannot be pushed is logged and dropped, never blocking the
// webhook path that produced it.
type Client struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewClient(url, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool { return c != nil && c.URL != "" }

func (c *Client) Push(ctx context.Context, res Result) error {
	if !c.Enabled() {
		return errors.New("report: not configured")
	}
	if res.ReportedAt.IsZero() {
		res.ReportedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("report: push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("report: backend returned %d", resp.StatusCode)
	}
	return nil
}

// PushAsync fires the push on its own goroutine with a fresh deadline, so the
// caller's request context cancelling does not abort the delivery.
func (c *Client) PushAsync(res Result) {
	if !c.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Push(ctx, res); err != nil {
			logger.From(ctx).Warn("result push failed",
				"call_sid", res.CallSid, "order_id", res.OrderID, "err", err)
		}
	}()
}
