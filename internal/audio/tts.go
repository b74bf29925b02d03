package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSynthesizer calls an external text-to-speech service. The service takes
// a JSON request and streams back encoded audio.
type HTTPSynthesizer struct {
	URL    string
	Client *http.Client
}

func NewHTTPSynthesizer(url string, timeout time.Duration) *HTTPSynthesizer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSynthesizer{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

type synthRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, language, voice string) ([]byte, string, error) {
	if s.URL == "" {
		return nil, "", errors.New("audio: tts url not configured")
	}

	payload, err := json.Marshal(synthRequest{Text: text, Language: language, Voice: voice})
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("audio: tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("audio: tts returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, "", fmt.Errorf("audio: read tts response: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("audio: tts returned empty body")
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return data, mime, nil
}
