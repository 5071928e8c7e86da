package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/storefront"
)

// LocatePage finds the page holding a target native id in O(log pages)
// round-trips. Pages are sorted newest-first, so per-page minimum ids
// strictly decrease with the page number: probe exponentially growing page
// numbers until the target is bracketed, then binary-search the bracket.
// Used to seed a cursor on first run without paying for a full scan.
func (s *Service) LocatePage(ctx context.Context, store storefront.Store, target int64) (int, error) {
	first, err := s.client.FetchPage(ctx, store, 1)
	if err != nil {
		return 0, err
	}
	if len(first.Orders) == 0 || first.MinNativeID() <= target {
		return 1, nil
	}

	// Exponential probe: grow hi until its minimum id drops to the target
	// or the source runs out of pages.
	lo := 1
	hi := 2
	for {
		p, err := s.client.FetchPage(ctx, store, hi)
		if err != nil {
			return 0, err
		}
		if len(p.Orders) == 0 || p.MinNativeID() <= target {
			break
		}
		if !p.HasMore {
			// The target is older than everything the source still has
			return hi, nil
		}
		lo = hi
		hi *= 2
	}

	// Binary search: fetch(lo).min > target, fetch(hi).min <= target (or
	// hi is past the end). Find the first page whose minimum reaches the
	// target.
	for lo+1 < hi {
		mid := (lo + hi) / 2
		p, err := s.client.FetchPage(ctx, store, mid)
		if err != nil {
			return 0, err
		}
		if len(p.Orders) == 0 || p.MinNativeID() <= target {
			hi = mid
		} else {
			lo = mid
		}
	}

	s.logger.Debug("Located page for native id",
		zap.String("store_id", store.ID),
		zap.Int64("native_id", target),
		zap.Int("page", hi),
	)
	return hi, nil
}

// SeedCursor positions the cursor of a store at the page holding its highest
// already-ingested order, so the next incremental run starts from a sane
// window instead of a full scan.
func (s *Service) SeedCursor(ctx context.Context, store storefront.Store) error {
	lastKnown, err := s.orders.HighestNativeID(ctx, store.ID)
	if err != nil {
		return err
	}
	if lastKnown == 0 {
		return nil
	}

	page, err := s.LocatePage(ctx, store, lastKnown)
	if err != nil {
		return err
	}

	p, err := s.client.FetchPage(ctx, store, page)
	if err != nil {
		return err
	}
	s.advanceCursor(ctx, store.ID, page, p)
	return nil
}
