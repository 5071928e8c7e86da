package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liberta/backend/internal/domain/shared"
)

// timestampTTL is the retention of per-key request timestamps
const timestampTTL = time.Hour

// RedisRateLimiter paces upstream requests using a shared timestamp per key.
// It is a token bucket of one: before each request the elapsed time since
// the key's last recorded timestamp is computed, the remainder of the
// minimum delay is slept, and the new timestamp is recorded.
type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
	minDelay  time.Duration
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRedisRateLimiter creates a Redis-backed rate limiter
func NewRedisRateLimiter(client *redis.Client, minDelay time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: "sync:ratelimit:",
		minDelay:  minDelay,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Wait blocks until the key has been idle for the minimum delay, then
// records the new request timestamp. A cache failure never blocks the
// request: the limiter degrades to pass-through.
func (l *RedisRateLimiter) Wait(ctx context.Context, key string) error {
	fullKey := l.keyPrefix + key

	raw, err := l.client.Get(ctx, fullKey).Result()
	if err == nil {
		if lastMilli, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			elapsed := l.now().Sub(time.UnixMilli(lastMilli))
			if remaining := l.minDelay - elapsed; remaining > 0 {
				if sleepErr := l.sleep(ctx, remaining); sleepErr != nil {
					return sleepErr
				}
			}
		}
	} else if !errors.Is(err, redis.Nil) {
		// Cache down: proceed without pacing rather than failing the run
		return nil
	}

	return l.client.Set(ctx, fullKey, strconv.FormatInt(l.now().UnixMilli(), 10), timestampTTL).Err()
}

// sleepCtx sleeps for d or until the context is cancelled
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ensure RedisRateLimiter implements Limiter
var _ shared.Limiter = (*RedisRateLimiter)(nil)

// ---------------------------------------------------------------------------
// Throttle flags
// ---------------------------------------------------------------------------

// RedisThrottleFlags records stores under sustained 429 responses. The flag
// expires on its own; the scheduler only reads it.
type RedisThrottleFlags struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisThrottleFlags creates a Redis-backed throttle flag store
func NewRedisThrottleFlags(client *redis.Client, ttl time.Duration) *RedisThrottleFlags {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisThrottleFlags{
		client:    client,
		keyPrefix: "sync:throttled:",
		ttl:       ttl,
	}
}

// Flag marks a key as throttled for the configured TTL
func (f *RedisThrottleFlags) Flag(ctx context.Context, key string) error {
	return f.client.Set(ctx, f.keyPrefix+key, "1", f.ttl).Err()
}

// IsFlagged reports whether the key is currently throttled. Cache failures
// read as not flagged so a Redis outage cannot wedge the scheduler.
func (f *RedisThrottleFlags) IsFlagged(ctx context.Context, key string) (bool, error) {
	n, err := f.client.Exists(ctx, f.keyPrefix+key).Result()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}

// AnyFlagged reports whether any of the keys is currently throttled
func (f *RedisThrottleFlags) AnyFlagged(ctx context.Context, keys []string) (bool, error) {
	for _, key := range keys {
		flagged, err := f.IsFlagged(ctx, key)
		if err != nil {
			return false, err
		}
		if flagged {
			return true, nil
		}
	}
	return false, nil
}

// Ensure RedisThrottleFlags implements ThrottleFlags
var _ shared.ThrottleFlags = (*RedisThrottleFlags)(nil)
