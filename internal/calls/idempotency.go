package calls

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore fences duplicate initiation requests: the first claim of a
// key within the window wins, later claims are rejected. Release frees the
// key early when initiation fails, so the caller may retry immediately.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryIdempotency is the single-instance store.
type MemoryIdempotency struct {
	mu      sync.Mutex
	claimed map[string]time.Time
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{claimed: make(map[string]time.Time)}
}

func (s *MemoryIdempotency) Claim(_ context.Context, key string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if until, ok := s.claimed[key]; ok && now.Before(until) {
		return false, nil
	}
	s.claimed[key] = now.Add(window)
	return true, nil
}

func (s *MemoryIdempotency) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, key)
	return nil
}

// RedisIdempotency shares the fence across gateway instances with SET NX.
type RedisIdempotency struct {
	rdb *redis.Client
}

func NewRedisIdempotency(rdb *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{rdb: rdb}
}

const idemKeyPrefix = "ivr:initiate:"

func (s *RedisIdempotency) Claim(ctx context.Context, key string, window time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, idemKeyPrefix+key, 1, window).Result()
}

func (s *RedisIdempotency) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, idemKeyPrefix+key).Err()
}
