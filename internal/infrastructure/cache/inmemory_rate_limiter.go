package cache

import (
	"context"
	"sync"
	"time"

	"github.com/liberta/backend/internal/domain/shared"
)

// InMemoryRateLimiter is a process-local limiter for tests and single-node
// deployments without Redis
type InMemoryRateLimiter struct {
	mu       sync.Mutex
	last     map[string]time.Time
	minDelay time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewInMemoryRateLimiter creates an in-memory rate limiter
func NewInMemoryRateLimiter(minDelay time.Duration) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		last:     make(map[string]time.Time),
		minDelay: minDelay,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until the key has been idle for the minimum delay, then
// records the new request timestamp
func (l *InMemoryRateLimiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	last, ok := l.last[key]
	l.mu.Unlock()

	if ok {
		if remaining := l.minDelay - l.now().Sub(last); remaining > 0 {
			if err := l.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}

	l.mu.Lock()
	l.last[key] = l.now()
	l.mu.Unlock()
	return nil
}

// Ensure InMemoryRateLimiter implements Limiter
var _ shared.Limiter = (*InMemoryRateLimiter)(nil)

// InMemoryThrottleFlags is a process-local throttle flag store
type InMemoryThrottleFlags struct {
	mu      sync.RWMutex
	flagged map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryThrottleFlags creates an in-memory throttle flag store
func NewInMemoryThrottleFlags(ttl time.Duration) *InMemoryThrottleFlags {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &InMemoryThrottleFlags{
		flagged: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Flag marks a key as throttled for the configured TTL
func (f *InMemoryThrottleFlags) Flag(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagged[key] = f.now().Add(f.ttl)
	return nil
}

// IsFlagged reports whether the key is currently throttled
func (f *InMemoryThrottleFlags) IsFlagged(_ context.Context, key string) (bool, error) {
	f.mu.RLock()
	expiry, ok := f.flagged[key]
	f.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if f.now().After(expiry) {
		f.mu.Lock()
		delete(f.flagged, key)
		f.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// AnyFlagged reports whether any of the keys is currently throttled
func (f *InMemoryThrottleFlags) AnyFlagged(ctx context.Context, keys []string) (bool, error) {
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

// Ensure InMemoryThrottleFlags implements ThrottleFlags
var _ shared.ThrottleFlags = (*InMemoryThrottleFlags)(nil)
