package ingest

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/storefront"
)

// Config holds the scan knobs of the ingestion service
type Config struct {
	// PageSize is the page size requested from the storefront
	PageSize int
	// RescanWindow is the +/- page window re-scanned around the cursor.
	// Upstream re-sorts can move an order's page between runs, so the
	// window is re-read instead of trusting the cursor position.
	RescanWindow int
	// MaxEmptyPages stops a scan after this many consecutive empty pages
	MaxEmptyPages int
	// FullScanMaxPages bounds full scans against runaway pagination
	FullScanMaxPages int
}

// Stats aggregates the counters of one ingestion pass
type Stats struct {
	Created int
	Skipped int
	Errors  int
	Pages   int
}

func (s *Stats) add(other Stats) {
	s.Created += other.Created
	s.Skipped += other.Skipped
	s.Errors += other.Errors
	s.Pages += other.Pages
}

// Service drives cursor-based order ingestion across the configured stores
type Service struct {
	client       storefront.Client
	cursors      storefront.CursorStore
	orders       orderLookup
	materializer *Materializer
	stores       []storefront.Store
	config       Config
	logger       *zap.Logger
}

// orderLookup is the slice of the order repository ingestion needs
type orderLookup interface {
	HighestNativeID(ctx context.Context, storeID string) (int64, error)
}

// NewService creates a new ingestion Service. Stores are processed in
// ascending StoreID order so runs are reproducible.
func NewService(
	client storefront.Client,
	cursors storefront.CursorStore,
	orders orderLookup,
	materializer *Materializer,
	stores []storefront.Store,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.RescanWindow < 1 {
		config.RescanWindow = 1
	}
	sorted := make([]storefront.Store, len(stores))
	copy(sorted, stores)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return &Service{
		client:       client,
		cursors:      cursors,
		orders:       orders,
		materializer: materializer,
		stores:       sorted,
		config:       config,
		logger:       logger,
	}
}

// SyncAll ingests every active store sequentially. A failing store is
// counted and logged, the remaining stores still run.
func (s *Service) SyncAll(ctx context.Context) (Stats, error) {
	var total Stats
	for _, store := range s.stores {
		if !store.Active {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}

		stats, err := s.SyncStore(ctx, store)
		total.add(stats)
		if err != nil {
			total.Errors++
			s.logger.Error("Store ingestion failed",
				zap.String("store_id", store.ID),
				zap.Error(err),
			)
		}
	}
	return total, nil
}

// SyncStore ingests one store. A nil or lost cursor degrades to a full scan.
func (s *Service) SyncStore(ctx context.Context, store storefront.Store) (Stats, error) {
	cursor, err := s.cursors.Get(ctx, store.ID)
	if err != nil {
		s.logger.Warn("Cursor read failed, degrading to full scan",
			zap.String("store_id", store.ID),
			zap.Error(err),
		)
		cursor = nil
	}

	lastKnown, err := s.orders.HighestNativeID(ctx, store.ID)
	if err != nil {
		return Stats{}, err
	}

	// A lost cursor over a non-empty store is re-seeded by locating the
	// page of the highest known order instead of rescanning everything.
	if cursor == nil && lastKnown > 0 {
		if err := s.SeedCursor(ctx, store); err != nil {
			s.logger.Warn("Cursor seeding failed, degrading to full scan",
				zap.String("store_id", store.ID),
				zap.Error(err),
			)
		} else if cursor, err = s.cursors.Get(ctx, store.ID); err != nil {
			cursor = nil
		}
	}

	if cursor == nil {
		s.logger.Info("No cursor, running full scan", zap.String("store_id", store.ID))
		return s.fullScan(ctx, store)
	}
	return s.incrementalScan(ctx, store, cursor, lastKnown)
}

// fullScan pages forward from the start until the source is exhausted.
// Every lifecycle state is admitted.
func (s *Service) fullScan(ctx context.Context, store storefront.Store) (Stats, error) {
	var stats Stats
	emptyStreak := 0

	for page := 1; s.config.FullScanMaxPages <= 0 || page <= s.config.FullScanMaxPages; page++ {
		p, err := s.client.FetchPage(ctx, store, page)
		if err != nil {
			return stats, err
		}
		stats.Pages++

		if len(p.Orders) == 0 {
			emptyStreak++
			if emptyStreak >= s.config.MaxEmptyPages {
				break
			}
			if !p.HasMore {
				break
			}
			continue
		}
		emptyStreak = 0

		s.materializePage(ctx, store, p, 0, false, &stats)
		s.advanceCursor(ctx, store.ID, page, p)

		if !p.HasMore || len(p.Orders) < s.config.PageSize {
			break
		}
	}

	return stats, nil
}

// incrementalScan re-reads the +/- window around the cursor page. Only
// orders above the last-known native id and in the ready-to-ship state are
// materialized.
func (s *Service) incrementalScan(ctx context.Context, store storefront.Store, cursor *storefront.Cursor, lastKnown int64) (Stats, error) {
	var stats Stats

	w := s.config.RescanWindow
	startPage := cursor.Page - w
	if startPage < 1 {
		startPage = 1
	}
	endPage := cursor.Page + w

	emptyStreak := 0
	belowStreak := 0

	for page := startPage; page <= endPage; page++ {
		p, err := s.client.FetchPage(ctx, store, page)
		if err != nil {
			return stats, err
		}
		stats.Pages++

		if len(p.Orders) == 0 {
			emptyStreak++
			if emptyStreak >= s.config.MaxEmptyPages {
				break
			}
			if !p.HasMore {
				break
			}
			continue
		}
		emptyStreak = 0

		// A page entirely at or below the last-known id brings nothing new.
		// W such pages in a row mean the window is exhausted.
		if p.MaxNativeID() <= lastKnown {
			belowStreak++
			if belowStreak >= w {
				break
			}
		} else {
			belowStreak = 0
		}

		s.materializePage(ctx, store, p, lastKnown, true, &stats)
		s.advanceCursor(ctx, store.ID, page, p)

		if !p.HasMore {
			break
		}
	}

	return stats, nil
}

// materializePage runs the materializer over one page with per-item error
// isolation
func (s *Service) materializePage(ctx context.Context, store storefront.Store, p *storefront.Page, lastKnown int64, incremental bool, stats *Stats) {
	for i := range p.Orders {
		src := &p.Orders[i]
		if incremental {
			if src.NativeID <= lastKnown {
				continue
			}
			if !storefront.EligibleForIncremental(src) {
				stats.Skipped++
				continue
			}
		}

		outcome, err := s.materializer.Materialize(ctx, src, store)
		switch {
		case err != nil:
			stats.Errors++
			s.logger.Error("Order materialization failed",
				zap.String("store_id", store.ID),
				zap.Int64("native_id", src.NativeID),
				zap.Error(err),
			)
		case outcome == OutcomeCreated:
			stats.Created++
		default:
			stats.Skipped++
		}
	}
}

// advanceCursor overwrites the store cursor after a successful page fetch
func (s *Service) advanceCursor(ctx context.Context, storeID string, page int, p *storefront.Page) {
	cursor := &storefront.Cursor{
		StoreID:       storeID,
		Page:          page,
		FirstNativeID: p.MaxNativeID(),
		LastNativeID:  p.MinNativeID(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.cursors.Put(ctx, cursor); err != nil {
		// A stale cursor only costs a wider rescan on the next run
		s.logger.Warn("Cursor write failed",
			zap.String("store_id", storeID),
			zap.Int("page", page),
			zap.Error(err),
		)
	}
}
