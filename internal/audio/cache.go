package audio

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Synthesizer produces spoken audio for a prompt. Implementations must be
// safe for concurrent use.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language, voice string) (data []byte, mime string, err error)
}

// Entry is one synthesized prompt held in memory.
type Entry struct {
	ID       string
	Data     []byte
	MIME     string
	Text     string
	Language string
	Voice    string

	CreatedAt time.Time
}

// Key derives the cache id for a prompt. The same text in the same language
// and voice always maps to the same id, so repeated calls for an order replay
// cached audio instead of re-synthesizing.
func Key(text, language, voice string) string {
	sum := md5.Sum([]byte(text + ":" + language + ":" + voice))
	return hex.EncodeToString(sum[:])
}

// Cache memoizes synthesized prompts. Concurrent resolves of the same prompt
// share one synthesis; different prompts never block each other.
type Cache struct {
	synth Synthesizer
	voice string

	mu      sync.RWMutex
	entries map[string]Entry

	flightMu sync.Mutex
	flight   map[string]chan struct{}
}

func NewCache(synth Synthesizer, voice string) *Cache {
	return &Cache{
		synth:   synth,
		voice:   voice,
		entries: make(map[string]Entry),
		flight:  make(map[string]chan struct{}),
	}
}

// Lookup fetches an entry by cache id, for the serving endpoint.
func (c *Cache) Lookup(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// Cached reports whether a prompt is already resolved, without synthesizing.
func (c *Cache) Cached(text, language string) (string, bool) {
	id := Key(text, language, c.voice)
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return id, ok
}

// Resolve returns the cache id for a prompt, synthesizing on first use.
func (c *Cache) Resolve(ctx context.Context, text, language string) (string, error) {
	id := Key(text, language, c.voice)

	c.mu.RLock()
	_, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	done, leader := c.join(id)
	if !leader {
		select {
		case <-done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		c.mu.RLock()
		_, ok := c.entries[id]
		c.mu.RUnlock()
		if !ok {
			return "", fmt.Errorf("audio: synthesis failed for prompt %s", id)
		}
		return id, nil
	}
	defer c.leave(id, done)

	if c.synth == nil {
		return "", fmt.Errorf("audio: no synthesizer configured")
	}
	data, mime, err := c.synth.Synthesize(ctx, text, language, c.voice)
	if err != nil {
		return "", fmt.Errorf("audio: synthesize: %w", err)
	}
	if mime == "" {
		mime = "audio/mpeg"
	}

	c.mu.Lock()
	c.entries[id] = Entry{
		ID:        id,
		Data:      data,
		MIME:      mime,
		Text:      text,
		Language:  language,
		Voice:     c.voice,
		CreatedAt: time.Now().UTC(),
	}
	c.mu.Unlock()
	return id, nil
}

func (c *Cache) join(id string) (chan struct{}, bool) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	if ch, ok := c.flight[id]; ok {
		return ch, false
	}
	ch := make(chan struct{})
	c.flight[id] = ch
	return ch, true
}

func (c *Cache) leave(id string, ch chan struct{}) {
	c.flightMu.Lock()
	delete(c.flight, id)
	c.flightMu.Unlock()
	close(ch)
}

// Preload synthesizes a phrase library up front so the first live call never
// pays synthesis latency. Failures skip the phrase; the text fallback covers
// it at call time.
func (c *Cache) Preload(ctx context.Context, language string, phrases []string) (loaded int, err error) {
	for _, p := range phrases {
		if ctx.Err() != nil {
			return loaded, ctx.Err()
		}
		if _, err := c.Resolve(ctx, p, language); err != nil {
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Stat summarizes one cached entry for the operator API.
type Stat struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Cache) Stats() []Stat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Stat, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, Stat{
			ID:        e.ID,
			Text:      e.Text,
			Language:  e.Language,
			Bytes:     len(e.Data),
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
