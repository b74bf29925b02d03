package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON values with a TTL, so multiple gateway
// instances behind one callback URL see the same state. Per-call
// serialization uses a short-lived SET NX lock key.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

const (
	sessionKeyPrefix = "ivr:session:"
	lockKeyPrefix    = "ivr:session-lock:"

	lockTTL       = 10 * time.Second
	lockRetryWait = 25 * time.Millisecond
)

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(callID string) string { return sessionKeyPrefix + callID }

func (s *RedisStore) Get(ctx context.Context, callID string) (Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(callID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("session get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("session decode: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Update(ctx context.Context, callID string, fn Mutator) (Session, error) {
	unlock, err := s.lock(ctx, callID)
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	sess, err := s.Get(ctx, callID)
	if errors.Is(err, ErrNotFound) {
		sess = Session{CallID: callID, CreatedAt: time.Now().UTC()}
	} else if err != nil {
		return Session{}, err
	}

	if err := fn(&sess); err != nil {
		return Session{}, err
	}
	sess.CallID = callID
	sess.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("session encode: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(callID), raw, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("session set: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Evict(ctx context.Context, callID string) error {
	return s.rdb.Del(ctx, sessionKey(callID)).Err()
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	var total int
	iter := s.rdb.Scan(ctx, 0, sessionKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		total++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return total, nil
}

// lock acquires the per-call lock, waiting briefly if another callback for
// the same call is mid-flight. The lock TTL bounds the hold on crash.
func (s *RedisStore) lock(ctx context.Context, callID string) (func(), error) {
	key := lockKeyPrefix + callID
	for {
		ok, err := s.rdb.SetNX(ctx, key, 1, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("session lock: %w", err)
		}
		if ok {
			return func() { _ = s.rdb.Del(context.Background(), key).Err() }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}
}
