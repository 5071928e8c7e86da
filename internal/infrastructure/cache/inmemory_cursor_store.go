package cache

import (
	"context"
	"sync"

	"github.com/liberta/backend/internal/domain/storefront"
)

// InMemoryCursorStore is a process-local cursor store for tests and
// single-node deployments without Redis
type InMemoryCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]storefront.Cursor
}

// NewInMemoryCursorStore creates an in-memory cursor store
func NewInMemoryCursorStore() *InMemoryCursorStore {
	return &InMemoryCursorStore{
		cursors: make(map[string]storefront.Cursor),
	}
}

// Get returns the cursor for a store, or nil when none is stored
func (s *InMemoryCursorStore) Get(_ context.Context, storeID string) (*storefront.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cursor, ok := s.cursors[storeID]; ok {
		c := cursor
		return &c, nil
	}
	return nil, nil
}

// Put overwrites the cursor for a store
func (s *InMemoryCursorStore) Put(_ context.Context, cursor *storefront.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursor.StoreID] = *cursor
	return nil
}

// Delete removes the cursor for a store
func (s *InMemoryCursorStore) Delete(_ context.Context, storeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, storeID)
	return nil
}

// Ensure InMemoryCursorStore implements CursorStore
var _ storefront.CursorStore = (*InMemoryCursorStore)(nil)
