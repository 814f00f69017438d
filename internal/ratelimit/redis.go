package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter implements CounterStore on top of a shared Redis instance so a
// route budget holds across every server process pointing at the same Redis.
type RedisCounter struct {
	client *redis.Client
	script *redis.Script
}

// NewRedisCounter wraps an existing client. The connection is verified with a
// ping; a failure here is a startup error, not a per-request condition.
func NewRedisCounter(ctx context.Context, client *redis.Client) (*RedisCounter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil: %w", ErrInvalidConfig)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping rate limit store: %w", err)
	}

	return &RedisCounter{
		client: client,
		script: redis.NewScript(fixedWindowLua),
	}, nil
}

// Hit runs the fixed-window script for key.
func (c *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if key == "" {
		return 0, 0, ErrEmptyKey
	}
	if ctx == nil {
		ctx = context.Background()
	}

	values, err := c.script.Run(ctx, c.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit script: %w", err)
	}

	count, ttlMillis, err := parseHitResult(values)
	if err != nil {
		return 0, 0, err
	}

	return count, time.Duration(ttlMillis) * time.Millisecond, nil
}

// Ping verifies the Redis connection.
func (c *RedisCounter) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}

func parseHitResult(values interface{}) (count int64, ttlMillis int64, err error) {
	arr, ok := values.([]interface{})
	if !ok || len(arr) < 2 {
		return 0, 0, fmt.Errorf("unexpected lua result: %v", values)
	}

	count, err = toInt64(arr[0])
	if err != nil {
		return 0, 0, err
	}
	ttlMillis, err = toInt64(arr[1])
	if err != nil {
		return 0, 0, err
	}

	return count, ttlMillis, nil
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return parsed, nil
	case []byte:
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unexpected value type %T", value)
	}
}
