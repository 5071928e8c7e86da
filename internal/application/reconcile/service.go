package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/carrier"
	"github.com/liberta/backend/internal/domain/order"
)

// Config holds the reconciliation knobs
type Config struct {
	// BulkMaxResults bounds the bulk carrier fetch per credential
	BulkMaxResults int
	// BatchSize groups shipping-status writes
	BatchSize int
	// FallbackBudget caps per-reference fallback queries per run. Misses
	// beyond the budget wait for the next run instead of fanning out
	// unbounded.
	FallbackBudget int
}

// Detail is a non-error observation recorded during a run
type Detail struct {
	Reference string
	Note      string
}

// Result aggregates the outcome of one reconciliation pass
type Result struct {
	Updated  int
	Skipped  int
	NotFound int
	Errors   int
	Details  []Detail
}

// Service joins canonical orders against carrier shipment data and persists
// status changes
type Service struct {
	orders  order.Repository
	router  *Router
	clients carrier.Factory
	config  Config
	logger  *zap.Logger
}

// NewService creates a new reconciliation Service
func NewService(
	orders order.Repository,
	router *Router,
	clients carrier.Factory,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Service{
		orders:  orders,
		router:  router,
		clients: clients,
		config:  config,
		logger:  logger,
	}
}

// bulkEntry tags a shipment with the credential index it came from
type bulkEntry struct {
	shipment  carrier.Shipment
	credIndex int
}

// Reconcile refreshes shipping statuses. With references it works that
// explicit list; without, every order whose shipping status is not yet
// terminal. Transport errors are counted per item and never abort the run.
func (s *Service) Reconcile(ctx context.Context, references []string) (Result, error) {
	var result Result

	orders, err := s.selectOrders(ctx, references)
	if err != nil {
		return result, err
	}
	if len(orders) == 0 {
		return result, nil
	}

	bulk := s.bulkFetch(ctx, &result)

	updates := make([]order.ShippingUpdate, 0, len(orders))
	fallbacksLeft := s.config.FallbackBudget

	for i := range orders {
		o := &orders[i]

		entry, found := bulk[o.Reference]
		if !found {
			shipment, ok := s.fallbackLookup(ctx, o, &fallbacksLeft, &result)
			if !ok {
				continue
			}
			entry = shipment
		}

		update, changed := s.decide(o, entry)
		if !changed {
			result.Skipped++
			continue
		}
		updates = append(updates, update)
	}

	s.applyInBatches(ctx, updates, &result)

	s.logger.Info("Reconciliation pass finished",
		zap.Int("orders", len(orders)),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("not_found", result.NotFound),
		zap.Int("errors", result.Errors),
	)

	return result, nil
}

// selectOrders picks the orders due for a refresh
func (s *Service) selectOrders(ctx context.Context, references []string) ([]order.Order, error) {
	if len(references) > 0 {
		return s.orders.FindByReferences(ctx, references)
	}
	return s.orders.FindNeedingRefresh(ctx, carrier.TerminalStatuses(), 0)
}

// bulkFetch pulls shipments from every active credential and merges them
// into a reference-keyed map. On conflicting data for the same reference the
// credential with the lower index wins.
func (s *Service) bulkFetch(ctx context.Context, result *Result) map[string]bulkEntry {
	merged := make(map[string]bulkEntry)

	for _, cred := range s.router.Active() {
		client, err := s.clients(carrier.CodeSendit)
		if err != nil {
			result.Errors++
			s.logger.Error("No carrier client for bulk fetch", zap.Error(err))
			continue
		}

		shipments, err := client.FetchShipments(ctx, cred, s.config.BulkMaxResults)
		if err != nil {
			result.Errors++
			s.logger.Error("Bulk shipment fetch failed",
				zap.Int("credential_index", cred.Index),
				zap.Error(err),
			)
			continue
		}

		for _, shipment := range shipments {
			existing, ok := merged[shipment.Reference]
			if ok && existing.credIndex <= cred.Index {
				continue
			}
			merged[shipment.Reference] = bulkEntry{shipment: shipment, credIndex: cred.Index}
		}
	}

	return merged
}

// fallbackLookup runs one per-reference query through the router for a bulk
// miss. Misses stay misses once the budget is spent.
func (s *Service) fallbackLookup(ctx context.Context, o *order.Order, budget *int, result *Result) (bulkEntry, bool) {
	if s.config.FallbackBudget > 0 {
		if *budget <= 0 {
			result.Skipped++
			return bulkEntry{}, false
		}
		*budget--
	}

	client, err := s.clients(carrier.CodeSendit)
	if err != nil {
		result.Errors++
		return bulkEntry{}, false
	}

	for _, cred := range s.credentialsFor(o.StoreID) {
		shipment, err := client.FetchByReference(ctx, cred, o.Reference)
		if err == nil {
			return bulkEntry{shipment: *shipment, credIndex: cred.Index}, true
		}
		if errors.Is(err, carrier.ErrNotFound) {
			continue
		}
		result.Errors++
		s.logger.Warn("Fallback shipment lookup failed",
			zap.String("reference", o.Reference),
			zap.Int("credential_index", cred.Index),
			zap.Error(err),
		)
		return bulkEntry{}, false
	}

	result.NotFound++
	result.Details = append(result.Details, Detail{
		Reference: o.Reference,
		Note:      "not found in carrier",
	})
	return bulkEntry{}, false
}

// credentialsFor returns the lookup order for a store: its routed credential
// first, then the remaining active credentials by index
func (s *Service) credentialsFor(storeID string) []carrier.Credential {
	routed, hasRoute := s.router.ForStore(storeID)

	out := make([]carrier.Credential, 0, len(s.router.Active())+1)
	if hasRoute {
		out = append(out, routed)
	}
	for _, cred := range s.router.Active() {
		if hasRoute && cred.Index == routed.Index {
			continue
		}
		out = append(out, cred)
	}
	return out
}

// decide computes the pending write for one order, honoring the write-only-
// on-change and terminal no-regress rules
func (s *Service) decide(o *order.Order, entry bulkEntry) (order.ShippingUpdate, bool) {
	client, err := s.clients(carrier.CodeSendit)
	if err != nil {
		return order.ShippingUpdate{}, false
	}
	label := client.MapStatus(entry.shipment.StatusCode)
	return decideUpdate(o, label, entry.shipment.ShipmentID, entry.shipment.TrackingNumber)
}

// decideUpdate applies the shared write rules of polling and webhook paths.
// Returns false when no write is needed.
func decideUpdate(o *order.Order, label, shipmentID, trackingNumber string) (order.ShippingUpdate, bool) {
	current := ""
	if o.ShippingStatus != nil {
		current = *o.ShippingStatus
	}

	if label == current {
		return order.ShippingUpdate{}, false
	}

	// A terminal shipping status never regresses, even when a stale poll or
	// out-of-order webhook claims otherwise
	if carrier.IsTerminalStatus(current) {
		return order.ShippingUpdate{}, false
	}

	update := order.ShippingUpdate{
		OrderID:        o.ID,
		ShippingStatus: label,
		ForceDelivered: label == carrier.StatusDelivered,
	}
	if shipmentID != "" {
		update.ShipmentID = &shipmentID
	}
	if trackingNumber != "" {
		update.TrackingNumber = &trackingNumber
	}
	return update, true
}

// applyInBatches persists updates in fixed-size groups with per-item error
// isolation
func (s *Service) applyInBatches(ctx context.Context, updates []order.ShippingUpdate, result *Result) {
	for start := 0; start < len(updates); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(updates) {
			end = len(updates)
		}

		batch := updates[start:end]
		failures := s.orders.ApplyShippingUpdates(ctx, batch)
		result.Errors += len(failures)
		result.Updated += len(batch) - len(failures)

		for _, err := range failures {
			result.Details = append(result.Details, Detail{
				Note: fmt.Sprintf("update failed: %v", err),
			})
		}
	}
}
