package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liberta/backend/internal/domain/storefront"
)

// RedisCursorStore persists sync cursors in Redis. Entries carry a TTL of
// about a week; an expired or lost entry degrades the next ingestion run to
// a full rescan.
type RedisCursorStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisCursorStore creates a Redis-backed cursor store
func NewRedisCursorStore(client *redis.Client, ttl time.Duration) *RedisCursorStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisCursorStore{
		client:    client,
		keyPrefix: "sync:cursor:",
		ttl:       ttl,
	}
}

// Get returns the cursor for a store, or nil when none is stored. Any cache
// failure is reported as a nil cursor so callers fall back to a full rescan.
func (s *RedisCursorStore) Get(ctx context.Context, storeID string) (*storefront.Cursor, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+storeID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, nil
	}

	var cursor storefront.Cursor
	if err := json.Unmarshal([]byte(raw), &cursor); err != nil {
		// A corrupt entry is treated like a missing one
		return nil, nil
	}
	return &cursor, nil
}

// Put overwrites the cursor for a store
func (s *RedisCursorStore) Put(ctx context.Context, cursor *storefront.Cursor) error {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to encode cursor: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+cursor.StoreID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cursor: %w", err)
	}
	return nil
}

// Delete removes the cursor for a store
func (s *RedisCursorStore) Delete(ctx context.Context, storeID string) error {
	return s.client.Del(ctx, s.keyPrefix+storeID).Err()
}

// Ensure RedisCursorStore implements CursorStore
var _ storefront.CursorStore = (*RedisCursorStore)(nil)
