// Package ratelimit caps how often an operation may run across all replicas.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit"

// WindowLimiter allows at most limit calls per key in each fixed window,
// counted in Redis
type WindowLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewWindowLimiter creates a limiter. A limit below 1 disables it.
func NewWindowLimiter(client *redis.Client, limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

// Allow consumes one call for key and reports whether it is within the limit
func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit < 1 {
		return true, nil
	}

	k := l.key(key)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to increment counter: %w", err)
	}
	n := incr.Val()

	// A counter without a TTL opens the window, including one left behind
	// by an earlier failed Expire.
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set window expiry: %w", err)
		}
	}

	return n <= l.limit, nil
}

// Remaining returns how many calls key has left in the current window
func (l *WindowLimiter) Remaining(ctx context.Context, key string) (int64, error) {
	used, err := l.client.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if err == redis.Nil {
			return l.limit, nil
		}
		return 0, fmt.Errorf("failed to get counter: %w", err)
	}

	if used >= l.limit {
		return 0, nil
	}
	return l.limit - used, nil
}

// Reset clears the counter for key
func (l *WindowLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

func (l *WindowLimiter) key(key string) string {
	return keyPrefix + ":" + key
}
