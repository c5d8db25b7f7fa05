package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every instance that
// points at the same Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, max: max, window: window}
}

// Allow increments the counter for key in one MULTI/EXEC. EXPIRE NX
// starts the window on the first hit and restores an expiry the key lost,
// without extending a running window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.prefix + ":" + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("incr rate limit key: %w", err)
	}

	count := incr.Val()
	if count <= int64(l.max) {
		return Decision{Allowed: true, Remaining: l.max - int(count)}, nil
	}

	retry := ttl.Val()
	if retry <= 0 {
		retry = l.window
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}
