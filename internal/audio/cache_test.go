package audio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type countingSynth struct {
	calls int64
	fail  bool
}

func (s *countingSynth) Synthesize(_ context.Context, text, language, voice string) ([]byte, string, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.fail {
		return nil, "", errors.New("tts down")
	}
	return []byte("AUDIO:" + text), "audio/mpeg", nil
}

func TestCache_ResolveSynthesizesOnce(t *testing.T) {
	synth := &countingSynth{}
	c := NewCache(synth, "hindi_female")

	ctx := context.Background()
	id1, err := c.Resolve(ctx, "hello", "en")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	id2, err := c.Resolve(ctx, "hello", "en")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("same prompt must map to same id: %s vs %s", id1, id2)
	}
	if n := atomic.LoadInt64(&synth.calls); n != 1 {
		t.Fatalf("expected 1 synthesis, got %d", n)
	}
}

func TestCache_ConcurrentResolveSharesOneSynthesis(t *testing.T) {
	synth := &countingSynth{}
	c := NewCache(synth, "hindi_female")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Resolve(context.Background(), "shared prompt", "hi")
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt64(&synth.calls); n != 1 {
		t.Fatalf("expected 1 synthesis across goroutines, got %d", n)
	}
}

func TestCache_DifferentLanguageDifferentEntry(t *testing.T) {
	synth := &countingSynth{}
	c := NewCache(synth, "hindi_female")

	id1, _ := c.Resolve(context.Background(), "hello", "en")
	id2, _ := c.Resolve(context.Background(), "hello", "hi")
	if id1 == id2 {
		t.Fatalf("language must participate in the key")
	}
}

func TestCache_SynthesisFailureIsNotCached(t *testing.T) {
	synth := &countingSynth{fail: true}
	c := NewCache(synth, "v")

	if _, err := c.Resolve(context.Background(), "x", "en"); err == nil {
		t.Fatalf("expected synthesis error")
	}
	if c.Len() != 0 {
		t.Fatalf("failed synthesis must not populate the cache")
	}

	synth.fail = false
	if _, err := c.Resolve(context.Background(), "x", "en"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestCache_PreloadSkipsFailures(t *testing.T) {
	synth := &countingSynth{}
	c := NewCache(synth, "v")

	n, err := c.Preload(context.Background(), "en", []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("preload: %v", err)
	}
	if n != 3 || c.Len() != 3 {
		t.Fatalf("expected 3 loaded, got %d (cache %d)", n, c.Len())
	}
}

func TestHandler_ServeSetsHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	synth := &countingSynth{}
	cache := NewCache(synth, "v")
	id, _ := cache.Resolve(context.Background(), "hello", "en")

	r := gin.New()
	r.GET("/audio/:id", Handler{Cache: cache}.Serve)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/audio/"+id, nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc == "" {
		t.Fatalf("expected cache-control header")
	}
	if rec.Body.String() != "AUDIO:hello" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestHandler_ServeUnknownIDReturns404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cache := NewCache(&countingSynth{}, "v")

	r := gin.New()
	r.GET("/audio/:id", Handler{Cache: cache}.Serve)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/deadbeef", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHTTPSynthesizer_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFFdata"))
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(srv.URL, time.Second)
	data, mime, err := s.Synthesize(context.Background(), "hi", "en", "v")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if mime != "audio/wav" || string(data) != "RIFFdata" {
		t.Fatalf("unexpected result: %q %q", mime, data)
	}
}
