package calls

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNotFound = errors.New("calls: not found")

// Repository is the persistence contract for call records.
type Repository interface {
	Create(ctx context.Context, c Call) error
	GetBySid(ctx context.Context, callSid string) (Call, error)

	// UpdateStatus applies the end-of-call report.
	UpdateStatus(ctx context.Context, callSid string, status CallStatus, durationSeconds int, recordingURL string) error

	// Close records the dialog outcome when a terminal step is served.
	Close(ctx context.Context, callSid string, outcome Call) error

	ListActive(ctx context.Context) ([]Call, error)

	// FindLatestByOrder returns the most recent call for an order and flow,
	// regardless of status, so a duplicate initiation can surface the call
	// already placed inside the dedup window.
	FindLatestByOrder(ctx context.Context, kind string, orderID int64) (Call, bool, error)
}

// MemoryRepo is the non-persistent repository used for single-instance
// deployments and tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	bySid map[string]Call
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{bySid: make(map[string]Call)}
}

func (r *MemoryRepo) Create(_ context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.bySid[c.CallSid] = c
	return nil
}

func (r *MemoryRepo) GetBySid(_ context.Context, callSid string) (Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.bySid[callSid]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) UpdateStatus(_ context.Context, callSid string, status CallStatus, durationSeconds int, recordingURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.bySid[callSid]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	if durationSeconds > 0 {
		c.DurationSeconds = durationSeconds
	}
	if recordingURL != "" {
		c.RecordingURL = recordingURL
	}
	c.UpdatedAt = time.Now().UTC()
	r.bySid[callSid] = c
	return nil
}

func (r *MemoryRepo) Close(_ context.Context, callSid string, outcome Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.bySid[callSid]
	if !ok {
		return ErrNotFound
	}
	// First recorded outcome wins; a duplicate terminal callback keeps it.
	if c.Outcome != "" {
		return nil
	}
	c.Outcome = outcome.Outcome
	c.PrepTimeMinutes = outcome.PrepTimeMinutes
	c.UpdatedAt = time.Now().UTC()
	r.bySid[callSid] = c
	return nil
}

func (r *MemoryRepo) ListActive(_ context.Context) ([]Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Call
	for _, c := range r.bySid {
		if c.Status.Active() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) FindLatestByOrder(_ context.Context, kind string, orderID int64) (Call, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest Call
	found := false
	for _, c := range r.bySid {
		if string(c.Kind) != kind || c.OrderID != orderID {
			continue
		}
		if !found || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
			found = true
		}
	}
	return latest, found, nil
}
