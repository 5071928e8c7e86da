package shared

import "context"

// Limiter enforces a minimum spacing between upstream requests sharing one
// key. Wait blocks until the key's last recorded request is at least the
// configured minimum delay in the past, then records the new timestamp.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// ThrottleFlags tracks stores currently under sustained upstream rate
// limiting. The scheduler skips an entire ingestion run while any configured
// store is flagged.
type ThrottleFlags interface {
	// Flag marks a key as throttled for the configured TTL
	Flag(ctx context.Context, key string) error

	// IsFlagged reports whether the key is currently throttled
	IsFlagged(ctx context.Context, key string) (bool, error)

	// AnyFlagged reports whether any of the keys is currently throttled
	AnyFlagged(ctx context.Context, keys []string) (bool, error)
}
