package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/order"
	"github.com/liberta/backend/internal/domain/storefront"
)

// Outcome is the result of materializing one source order
type Outcome string

const (
	// OutcomeCreated means a new canonical order was inserted
	OutcomeCreated Outcome = "CREATED"
	// OutcomeSkipped means the order was already ingested
	OutcomeSkipped Outcome = "SKIPPED"
)

// Materializer converts raw source orders into persisted canonical orders.
// The dedup key is always (StoreID, NativeID): native ids recur across
// stores, so a lookup by native id alone would silently drop orders.
type Materializer struct {
	orders    order.Repository
	customers order.CustomerRepository
	logger    *zap.Logger
}

// NewMaterializer creates a new Materializer
func NewMaterializer(orders order.Repository, customers order.CustomerRepository, logger *zap.Logger) *Materializer {
	return &Materializer{
		orders:    orders,
		customers: customers,
		logger:    logger,
	}
}

// Materialize creates the canonical order for a source order, or skips it
// when the (store, native id) pair was already ingested. Existing orders are
// never overwritten here.
func (m *Materializer) Materialize(ctx context.Context, src *storefront.SourceOrder, store storefront.Store) (Outcome, error) {
	_, err := m.orders.FindByStoreAndNativeID(ctx, store.ID, src.NativeID)
	if err == nil {
		return OutcomeSkipped, nil
	}
	if !errors.Is(err, order.ErrOrderNotFound) {
		return "", err
	}

	customer, err := m.resolveCustomer(ctx, src)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	o := &order.Order{
		ID:         uuid.New(),
		Source:     "YOUCAN",
		StoreID:    store.ID,
		NativeID:   src.NativeID,
		Reference:  src.Reference,
		Status:     storefront.MapNativeStatus(src.NativeStatus),
		Total:      src.Total,
		CustomerID: customer.ID,
		OrderedAt:  src.OrderedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, item := range src.Items {
		o.Items = append(o.Items, order.OrderItem{
			ID:        uuid.New(),
			OrderID:   o.ID,
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	if err := m.orders.Create(ctx, o); err != nil {
		// A concurrent insert of the same natural key is a skip, not a failure
		if errors.Is(err, order.ErrDuplicateOrder) {
			return OutcomeSkipped, nil
		}
		return "", err
	}

	if err := m.customers.IncrementOrderCount(ctx, customer.ID); err != nil {
		m.logger.Warn("Failed to increment customer order count",
			zap.String("customer_id", customer.ID.String()),
			zap.Error(err),
		)
	}

	return OutcomeCreated, nil
}

// resolveCustomer finds the customer by phone or creates a new record
func (m *Materializer) resolveCustomer(ctx context.Context, src *storefront.SourceOrder) (*order.Customer, error) {
	customer, err := m.customers.FindByPhone(ctx, src.CustomerPhone)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, order.ErrCustomerNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	customer = &order.Customer{
		ID:        uuid.New(),
		Name:      src.CustomerName,
		Phone:     src.CustomerPhone,
		City:      src.CustomerCity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.customers.Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}
