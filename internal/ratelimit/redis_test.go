package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Integration tests against a live Redis. Set REDIS_ADDR (e.g. localhost:6379)
// to run them; they are skipped otherwise.

func newRedisTestCounter(t *testing.T) *RedisCounter {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	counter, err := NewRedisCounter(context.Background(), client)
	require.NoError(t, err)
	t.Cleanup(func() { _ = counter.Close() })

	return counter
}

func redisTestKey(t *testing.T) string {
	return fmt.Sprintf("postlens:test:%s:%d", t.Name(), time.Now().UnixNano())
}

func TestRedisCounterHit(t *testing.T) {
	counter := newRedisTestCounter(t)
	ctx := context.Background()
	key := redisTestKey(t)

	for want := int64(1); want <= 3; want++ {
		count, remaining, err := counter.Hit(ctx, key, 10*time.Second)
		require.NoError(t, err)
		require.Equal(t, want, count)
		require.Greater(t, remaining, time.Duration(0))
		require.LessOrEqual(t, remaining, 10*time.Second)
	}
}

func TestRedisCounterWindowExpiry(t *testing.T) {
	counter := newRedisTestCounter(t)
	ctx := context.Background()
	key := redisTestKey(t)

	count, _, err := counter.Hit(ctx, key, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	time.Sleep(300 * time.Millisecond)

	count, _, err = counter.Hit(ctx, key, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), count, "count should reset after the window expires")
}

func TestRedisCounterSeparateKeys(t *testing.T) {
	counter := newRedisTestCounter(t)
	ctx := context.Background()

	keyA := redisTestKey(t) + ":a"
	keyB := redisTestKey(t) + ":b"

	count, _, err := counter.Hit(ctx, keyA, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, _, err = counter.Hit(ctx, keyB, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestRedisCounterPing(t *testing.T) {
	counter := newRedisTestCounter(t)
	require.NoError(t, counter.Ping(context.Background()))
}

func TestParseHitResult(t *testing.T) {
	count, ttl, err := parseHitResult([]interface{}{int64(3), int64(4500)})
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
	require.Equal(t, int64(4500), ttl)

	count, ttl, err = parseHitResult([]interface{}{"7", "250"})
	require.NoError(t, err)
	require.Equal(t, int64(7), count)
	require.Equal(t, int64(250), ttl)

	_, _, err = parseHitResult("not an array")
	require.Error(t, err)

	_, _, err = parseHitResult([]interface{}{int64(1)})
	require.Error(t, err)
}
