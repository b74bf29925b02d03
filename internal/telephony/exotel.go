package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ExotelConfig holds the account coordinates for the REST API and the URLs
// the provider calls back into.
type ExotelConfig struct {
	// BaseURL is the account API root, e.g.
	// https://api.exotel.com/v1/Accounts/{sid}
	BaseURL  string
	APIKey   string
	APIToken string

	// CallerID is the exophone shown to the callee.
	CallerID string

	// FlowAppURL points the answered call at the connected applet.
	FlowAppURL string

	// StatusCallbackURL receives the end-of-call report.
	StatusCallbackURL string

	HTTPTimeout time.Duration
}

// Exotel implements Provider against the Calls/connect endpoint.
type Exotel struct {
	cfg    ExotelConfig
	client *http.Client
}

func NewExotel(cfg ExotelConfig) *Exotel {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Exotel{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (e *Exotel) Name() string { return "exotel" }

func (e *Exotel) HealthCheck(ctx context.Context) error {
	if e.cfg.BaseURL == "" || e.cfg.APIKey == "" || e.cfg.APIToken == "" {
		return errors.New("exotel: incomplete credentials")
	}
	return nil
}

type exotelCallEnvelope struct {
	Call struct {
		Sid    string `json:"Sid"`
		Status string `json:"Status"`
	} `json:"Call"`
}

func (e *Exotel) Connect(ctx context.Context, req ConnectRequest) (ConnectResult, error) {
	if strings.TrimSpace(req.To) == "" {
		return ConnectResult{}, errors.New("exotel: destination number is required")
	}

	custom, err := json.Marshal(req.Context)
	if err != nil {
		return ConnectResult{}, fmt.Errorf("exotel: encode custom field: %w", err)
	}

	form := url.Values{}
	form.Set("From", req.To)
	form.Set("CallerId", e.cfg.CallerID)
	form.Set("Url", e.cfg.FlowAppURL)
	form.Set("CallType", "trans")
	form.Set("CustomField", string(custom))
	if e.cfg.StatusCallbackURL != "" {
		form.Set("StatusCallback", e.cfg.StatusCallbackURL)
		form.Set("StatusCallbackEvents[0]", "terminal")
	}
	if req.TimeLimitSeconds > 0 {
		form.Set("TimeLimit", strconv.Itoa(req.TimeLimitSeconds))
	}
	if req.RingTimeoutSeconds > 0 {
		form.Set("TimeOut", strconv.Itoa(req.RingTimeoutSeconds))
	}
	if req.Record {
		form.Set("Record", "true")
	}

	endpoint := strings.TrimRight(e.cfg.BaseURL, "/") + "/Calls/connect.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ConnectResult{}, err
	}
	httpReq.SetBasicAuth(e.cfg.APIKey, e.cfg.APIToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return ConnectResult{}, fmt.Errorf("exotel: connect: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ConnectResult{}, fmt.Errorf("exotel: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ConnectResult{}, fmt.Errorf("exotel: connect returned %d: %s", resp.StatusCode, truncate(body, 300))
	}

	var env exotelCallEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ConnectResult{}, fmt.Errorf("exotel: decode response: %w", err)
	}
	if env.Call.Sid == "" {
		return ConnectResult{}, errors.New("exotel: response missing call sid")
	}
	return ConnectResult{CallSid: env.Call.Sid, Status: env.Call.Status}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
