package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liberta/backend/internal/domain/order"
	"github.com/liberta/backend/internal/domain/storefront"
)

// fakeClient serves a fixed newest-first order list in pages and records
// every page number it was asked for
type fakeClient struct {
	mu       sync.Mutex
	orders   []storefront.SourceOrder // newest-first by native id
	pageSize int
	fetched  []int
}

// newFakeClient builds a client holding orders with native ids n..1,
// newest-first, all in the given native status
func newFakeClient(highest int64, pageSize int, nativeStatus string) *fakeClient {
	orders := make([]storefront.SourceOrder, 0, highest)
	for id := highest; id >= 1; id-- {
		orders = append(orders, storefront.SourceOrder{
			NativeID:      id,
			Reference:     fmt.Sprintf("REF-%d", id),
			NativeStatus:  nativeStatus,
			CustomerName:  fmt.Sprintf("Customer %d", id),
			CustomerPhone: fmt.Sprintf("+2126%08d", id),
			Total:         decimal.NewFromInt(100),
			OrderedAt:     time.Now().UTC(),
		})
	}
	return &fakeClient{orders: orders, pageSize: pageSize}
}

func (f *fakeClient) FetchPage(_ context.Context, _ storefront.Store, page int) (*storefront.Page, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, page)
	f.mu.Unlock()

	start := (page - 1) * f.pageSize
	if start >= len(f.orders) {
		return &storefront.Page{NextPage: page + 1}, nil
	}
	end := start + f.pageSize
	if end > len(f.orders) {
		end = len(f.orders)
	}
	return &storefront.Page{
		Orders:   f.orders[start:end],
		HasMore:  end < len(f.orders),
		NextPage: page + 1,
	}, nil
}

func (f *fakeClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

func (f *fakeClient) fetchedPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.fetched))
	copy(out, f.fetched)
	return out
}

// fakeOrderRepo is an in-memory order.Repository
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*order.Order // keyed by storeID|nativeID
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*order.Order)}
}

func key(storeID string, nativeID int64) string {
	return fmt.Sprintf("%s|%d", storeID, nativeID)
}

func (r *fakeOrderRepo) FindByStoreAndNativeID(_ context.Context, storeID string, nativeID int64) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[key(storeID, nativeID)]; ok {
		copied := *o
		return &copied, nil
	}
	return nil, order.ErrOrderNotFound
}

func (r *fakeOrderRepo) FindByReference(_ context.Context, reference string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Reference == reference {
			copied := *o
			return &copied, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (r *fakeOrderRepo) FindNeedingRefresh(context.Context, []string, int) ([]order.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) FindByReferences(context.Context, []string) ([]order.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(o.StoreID, o.NativeID)
	if _, ok := r.orders[k]; ok {
		return order.ErrDuplicateOrder
	}
	copied := *o
	r.orders[k] = &copied
	return nil
}

func (r *fakeOrderRepo) ApplyShippingUpdates(context.Context, []order.ShippingUpdate) []error {
	return nil
}

func (r *fakeOrderRepo) HighestNativeID(_ context.Context, storeID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var highest int64
	for _, o := range r.orders {
		if o.StoreID == storeID && o.NativeID > highest {
			highest = o.NativeID
		}
	}
	return highest, nil
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// fakeCustomerRepo is an in-memory order.CustomerRepository
type fakeCustomerRepo struct {
	mu      sync.Mutex
	byPhone map[string]*order.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{byPhone: make(map[string]*order.Customer)}
}

func (r *fakeCustomerRepo) FindByPhone(_ context.Context, phone string) (*order.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byPhone[phone]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, order.ErrCustomerNotFound
}

func (r *fakeCustomerRepo) Create(_ context.Context, c *order.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *c
	r.byPhone[c.Phone] = &copied
	return nil
}

func (r *fakeCustomerRepo) IncrementOrderCount(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byPhone {
		if c.ID == id {
			c.OrderCount++
			return nil
		}
	}
	return order.ErrCustomerNotFound
}

// fakeCursorStore is an in-memory storefront.CursorStore
type fakeCursorStore struct {
	mu      sync.Mutex
	cursors map[string]*storefront.Cursor
}

func newFakeCursorStore() *fakeCursorStore {
	return &fakeCursorStore{cursors: make(map[string]*storefront.Cursor)}
}

func (s *fakeCursorStore) Get(_ context.Context, storeID string) (*storefront.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cursors[storeID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeCursorStore) Put(_ context.Context, cursor *storefront.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cursor
	s.cursors[cursor.StoreID] = &copied
	return nil
}

func (s *fakeCursorStore) Delete(_ context.Context, storeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, storeID)
	return nil
}
