package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/storefront"
)

func testConfig() Config {
	return Config{
		PageSize:         100,
		RescanWindow:     50,
		MaxEmptyPages:    3,
		FullScanMaxPages: 1000,
	}
}

func newTestService(client storefront.Client, cursors storefront.CursorStore, orders *fakeOrderRepo, stores []storefront.Store, cfg Config) (*Service, *fakeCustomerRepo) {
	customers := newFakeCustomerRepo()
	mat := NewMaterializer(orders, customers, zap.NewNop())
	return NewService(client, cursors, orders, mat, stores, cfg, zap.NewNop()), customers
}

func activeStore(id string) storefront.Store {
	return storefront.Store{ID: id, Name: id, BaseURL: "http://" + id, AccessToken: "tok", Active: true}
}

func TestMaterializer_SameNativeIDAcrossStores(t *testing.T) {
	orders := newFakeOrderRepo()
	customers := newFakeCustomerRepo()
	mat := NewMaterializer(orders, customers, zap.NewNop())
	ctx := context.Background()

	src := storefront.SourceOrder{
		NativeID:      7,
		Reference:     "REF-7",
		NativeStatus:  "ready",
		CustomerName:  "A",
		CustomerPhone: "+212600000001",
		Total:         decimal.NewFromInt(50),
		OrderedAt:     time.Now().UTC(),
	}

	outcome, err := mat.Materialize(ctx, &src, activeStore("store-a"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	// Same native id in a different store is a distinct order
	outcome, err = mat.Materialize(ctx, &src, activeStore("store-b"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	assert.Equal(t, 2, orders.count())
}

func TestMaterializer_RerunIsNoOp(t *testing.T) {
	orders := newFakeOrderRepo()
	customers := newFakeCustomerRepo()
	mat := NewMaterializer(orders, customers, zap.NewNop())
	ctx := context.Background()

	src := storefront.SourceOrder{
		NativeID:      9,
		Reference:     "REF-9",
		NativeStatus:  "ready",
		CustomerName:  "B",
		CustomerPhone: "+212600000002",
		Total:         decimal.NewFromInt(80),
		Items: []storefront.SourceOrderItem{
			{Name: "Widget", Quantity: 1, UnitPrice: decimal.NewFromInt(80)},
		},
		OrderedAt: time.Now().UTC(),
	}
	store := activeStore("store-a")

	outcome, err := mat.Materialize(ctx, &src, store)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	outcome, err = mat.Materialize(ctx, &src, store)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	assert.Equal(t, 1, orders.count())

	c, err := customers.FindByPhone(ctx, "+212600000002")
	require.NoError(t, err)
	assert.Equal(t, 1, c.OrderCount)
}

func TestService_FullScanIngestsEverything(t *testing.T) {
	client := newFakeClient(250, 100, "ready")
	orders := newFakeOrderRepo()
	cursors := newFakeCursorStore()
	store := activeStore("store-a")

	svc, _ := newTestService(client, cursors, orders, []storefront.Store{store}, testConfig())

	stats, err := svc.SyncStore(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 250, stats.Created)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 250, orders.count())

	// The cursor now points at the last fetched page
	cursor, err := cursors.Get(context.Background(), store.ID)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, 3, cursor.Page)

	// A rerun over the same fixture creates nothing new
	stats, err = svc.SyncStore(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 250, orders.count())
}

func TestService_IncrementalWindowScan(t *testing.T) {
	// Two pages of 100, newest-first: page 1 holds ids 200..101, page 2
	// holds 100..1. Cursor at page 1, highest ingested id 150, W=1: the
	// scan must fetch pages 1 and 2 (0 clamped away) and ingest only the
	// fifty ids above 150.
	client := newFakeClient(200, 100, "ready")
	orders := newFakeOrderRepo()
	cursors := newFakeCursorStore()
	store := activeStore("store-a")

	cfg := testConfig()
	cfg.RescanWindow = 1

	svc, _ := newTestService(client, cursors, orders, []storefront.Store{store}, cfg)

	// Seed state: ids up to 150 already ingested, cursor confirmed at page 1
	seed := newFakeClient(150, 100, "ready")
	seedSvc, _ := newTestService(seed, newFakeCursorStore(), orders, []storefront.Store{store}, testConfig())
	_, err := seedSvc.SyncStore(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, 150, orders.count())

	require.NoError(t, cursors.Put(context.Background(), &storefront.Cursor{
		StoreID: store.ID, Page: 1, FirstNativeID: 150, LastNativeID: 51, UpdatedAt: time.Now().UTC(),
	}))

	stats, err := svc.SyncStore(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, client.fetchedPages())
	assert.Equal(t, 50, stats.Created)
	assert.Equal(t, 200, orders.count())
}

func TestService_LostCursorReseedsFromHighestKnown(t *testing.T) {
	// Seven pages of 100, newest-first: ids 650..1. Ids up to 550 are
	// already ingested but the cursor store is empty. The run must locate
	// the page holding id 550 instead of rescanning all seven pages, then
	// ingest the hundred newer ids through the window.
	client := newFakeClient(650, 100, "ready")
	orders := newFakeOrderRepo()
	cursors := newFakeCursorStore()
	store := activeStore("store-a")

	seed := newFakeClient(550, 100, "ready")
	seedSvc, _ := newTestService(seed, newFakeCursorStore(), orders, []storefront.Store{store}, testConfig())
	_, err := seedSvc.SyncStore(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, 550, orders.count())

	cfg := testConfig()
	cfg.RescanWindow = 2

	svc, _ := newTestService(client, cursors, orders, []storefront.Store{store}, cfg)

	stats, err := svc.SyncStore(context.Background(), store)
	require.NoError(t, err)

	// Seeding probes pages 1 and 2, confirms page 2 (ids 550..451), then
	// the window covers pages 1..3 and stops on the second page at or
	// below the last-known id.
	assert.Equal(t, []int{1, 2, 2, 1, 2, 3}, client.fetchedPages())
	assert.Equal(t, 100, stats.Created)
	assert.Equal(t, 650, orders.count())

	cursor, err := cursors.Get(context.Background(), store.ID)
	require.NoError(t, err)
	require.NotNil(t, cursor)
}

func TestService_IncrementalSkipsNonReadyOrders(t *testing.T) {
	client := newFakeClient(120, 100, "pending")
	orders := newFakeOrderRepo()
	cursors := newFakeCursorStore()
	store := activeStore("store-a")

	require.NoError(t, cursors.Put(context.Background(), &storefront.Cursor{
		StoreID: store.ID, Page: 1, UpdatedAt: time.Now().UTC(),
	}))

	svc, _ := newTestService(client, cursors, orders, []storefront.Store{store}, testConfig())

	stats, err := svc.SyncStore(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 120, stats.Skipped)
	assert.Equal(t, 0, orders.count())
}

func TestService_SyncAllProcessesStoresInOrder(t *testing.T) {
	client := newFakeClient(10, 100, "ready")
	orders := newFakeOrderRepo()
	cursors := newFakeCursorStore()

	// Declared out of order, one inactive
	stores := []storefront.Store{
		activeStore("store-c"),
		activeStore("store-a"),
		{ID: "store-b", Active: false},
	}

	svc, _ := newTestService(client, cursors, orders, stores, testConfig())

	stats, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	// Both active stores ingest the same fixture independently
	assert.Equal(t, 20, stats.Created)
	assert.Equal(t, 20, orders.count())
	assert.Equal(t, "store-a", svc.stores[0].ID)
	assert.Equal(t, "store-b", svc.stores[1].ID)
	assert.Equal(t, "store-c", svc.stores[2].ID)
}

func TestLocatePage(t *testing.T) {
	// 1000 orders over 10 pages of 100 each
	client := newFakeClient(1000, 100, "ready")
	orders := newFakeOrderRepo()
	store := activeStore("store-a")

	svc, _ := newTestService(client, newFakeCursorStore(), orders, []storefront.Store{store}, testConfig())

	tests := []struct {
		name   string
		target int64
		page   int
	}{
		{"newest id is on page one", 1000, 1},
		{"id in the middle", 450, 6},
		{"oldest id is on the last page", 1, 10},
		{"page boundary high side", 901, 1},
		{"page boundary low side", 900, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.LocatePage(context.Background(), store, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.page, page)
		})
	}

	// Logarithmic round-trips: far fewer fetches than pages
	before := client.fetchCount()
	_, err := svc.LocatePage(context.Background(), store, 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, client.fetchCount()-before, 9)
}

func TestSeedCursor(t *testing.T) {
	client := newFakeClient(1000, 100, "ready")
	orders := newFakeOrderRepo()
	cursors := newFakeCursorStore()
	store := activeStore("store-a")

	svc, _ := newTestService(client, cursors, orders, []storefront.Store{store}, testConfig())

	// Nothing ingested yet: seeding is a no-op
	require.NoError(t, svc.SeedCursor(context.Background(), store))
	cursor, err := cursors.Get(context.Background(), store.ID)
	require.NoError(t, err)
	assert.Nil(t, cursor)

	// Ingest ids up to 450, then seed: the cursor lands on their page
	seed := newFakeClient(450, 100, "ready")
	seedSvc, _ := newTestService(seed, newFakeCursorStore(), orders, []storefront.Store{store}, testConfig())
	_, err = seedSvc.SyncStore(context.Background(), store)
	require.NoError(t, err)

	require.NoError(t, svc.SeedCursor(context.Background(), store))
	cursor, err = cursors.Get(context.Background(), store.ID)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, 6, cursor.Page)
}
