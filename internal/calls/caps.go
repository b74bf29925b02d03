package calls

import (
	"context"
	"time"

	"voice-nerve/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisCapGuard enforces a global live-call ceiling shared across instances.
// The TTL keeps a crashed instance from pinning slots forever; a slot held
// longer than the longest allowed call is considered leaked.
type RedisCapGuard struct {
	rdb   *redis.Client
	key   string
	limit int
	ttl   time.Duration
}

func NewRedisCapGuard(rdb *redis.Client, limit int, maxCallDuration time.Duration) *RedisCapGuard {
	if maxCallDuration <= 0 {
		maxCallDuration = 10 * time.Minute
	}
	return &RedisCapGuard{
		rdb:   rdb,
		key:   "ivr:live-calls",
		limit: limit,
		ttl:   maxCallDuration,
	}
}

func (g *RedisCapGuard) Acquire(ctx context.Context) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, g.rdb, g.key, g.limit, g.ttl)
}

func (g *RedisCapGuard) Release(ctx context.Context) error {
	return utils.ReleaseConcurrencyCap(ctx, g.rdb, g.key)
}
