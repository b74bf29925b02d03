package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"voice-nerve/internal/dialog"
)

// Session is the mutable per-call conversation record. It is keyed by the
// provider call SID and carries everything the dialog engine needs to decide
// the next step.
type Session struct {
	CallID  string                 `json:"call_id"`
	Context dialog.BusinessContext `json:"context"`

	State   dialog.State `json:"state"`
	Retries int          `json:"retries"`

	// CollectedInputs records every DTMF entry in arrival order, for the
	// result report and for AI delegation context.
	CollectedInputs []string `json:"collected_inputs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) StepState() dialog.StepState {
	return dialog.StepState{State: s.State, Retries: s.Retries}
}

// Mutator is applied to a session while its per-call lock is held. It sees a
// fresh session (State empty) when the call id is unknown.
type Mutator func(s *Session) error

var ErrNotFound = errors.New("session: not found")

// Store serializes all access per call id: two callbacks for the same call
// never interleave their read-modify-write cycles.
type Store interface {
	// Get returns a copy of the session, or ErrNotFound.
	Get(ctx context.Context, callID string) (Session, error)

	// Update runs fn under the call's lock and persists the result. A
	// missing call id yields a fresh session with CreatedAt set.
	Update(ctx context.Context, callID string, fn Mutator) (Session, error)

	// Evict removes the session once the call has closed.
	Evict(ctx context.Context, callID string) error

	Len(ctx context.Context) (int, error)
}

type memoryEntry struct {
	mu      sync.Mutex
	sess    Session
	expires time.Time
}

// MemoryStore is the single-instance store. Each entry carries its own mutex
// so concurrent callbacks for different calls never contend, while callbacks
// for the same call are strictly serialized.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration

	stop chan struct{}
	once sync.Once
}

const defaultTTL = 10 * time.Minute

// NewMemoryStore starts a janitor goroutine that evicts sessions idle past
// the TTL, covering calls whose terminal callback never arrived.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-t.C:
			s.sweep(now)
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
		}
	}
}

// Close stops the janitor. Sessions already stored remain readable.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) entry(callID string, create bool) *memoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[callID]
	if !ok {
		if !create {
			return nil
		}
		e = &memoryEntry{}
		s.entries[callID] = e
	}
	return e
}

func (s *MemoryStore) Get(_ context.Context, callID string) (Session, error) {
	e := s.entry(callID, false)
	if e == nil {
		return Session{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.CallID == "" {
		return Session{}, ErrNotFound
	}
	return e.sess, nil
}

func (s *MemoryStore) Update(_ context.Context, callID string, fn Mutator) (Session, error) {
	e := s.entry(callID, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	// Mutate a copy and commit only on success, so a failed mutator never
	// leaves a half-written session behind.
	now := time.Now().UTC()
	sess := e.sess
	if sess.CallID == "" {
		sess = Session{CallID: callID, CreatedAt: now}
	}
	if err := fn(&sess); err != nil {
		return Session{}, err
	}
	sess.CallID = callID
	sess.UpdatedAt = now
	e.sess = sess
	e.expires = now.Add(s.ttl)
	return e.sess, nil
}

func (s *MemoryStore) Evict(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, callID)
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}
