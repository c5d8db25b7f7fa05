package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T, max int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, "ratelimit:auth", max, window), mr
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	l, mr := newTestRedisLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	assert.True(t, mr.Exists("ratelimit:auth:1.2.3.4"))

	mr.FastForward(time.Minute + time.Second)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "new window after expiry")
}

func TestRedisLimiter_KeysIndependent(t *testing.T) {
	l, _ := newTestRedisLimiter(t, 1, time.Minute)
	ctx := context.Background()

	d, _ := l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a")
	assert.False(t, d.Allowed)
	d, _ = l.Allow(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_RestoresMissingExpiry(t *testing.T) {
	l, mr := newTestRedisLimiter(t, 1, time.Minute)
	require.NoError(t, mr.Set("ratelimit:auth:ip", "5"))

	d, err := l.Allow(context.Background(), "ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Greater(t, mr.TTL("ratelimit:auth:ip"), time.Duration(0))
}

func TestRedisLimiter_LaterHitsKeepWindow(t *testing.T) {
	l, mr := newTestRedisLimiter(t, 5, time.Minute)
	ctx := context.Background()

	_, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	mr.FastForward(30 * time.Second)
	_, err = l.Allow(ctx, "ip")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, mr.TTL("ratelimit:auth:ip"))
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	l, mr := newTestRedisLimiter(t, 1, time.Minute)
	mr.Close()

	_, err := l.Allow(context.Background(), "ip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incr rate limit key")
}
