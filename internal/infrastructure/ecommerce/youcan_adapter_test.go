package ecommerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/storefront"
	"github.com/liberta/backend/internal/infrastructure/cache"
)

// noopLimiter satisfies shared.Limiter without pacing
type noopLimiter struct{}

func (noopLimiter) Wait(_ context.Context, _ string) error { return nil }

func testStore(baseURL string) storefront.Store {
	return storefront.Store{
		ID:          "store-1",
		Name:        "Test Store",
		BaseURL:     baseURL,
		AccessToken: "test-token",
		Active:      true,
	}
}

func newTestClient(pageSize int) *YouCanClient {
	return NewYouCanClient(noopLimiter{}, cache.NewInMemoryThrottleFlags(time.Minute), pageSize, zap.NewNop())
}

func TestYouCanClient_FetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "-id", r.URL.Query().Get("sort"))

		_ = json.NewEncoder(w).Encode(orderListResponse{
			Data: []orderPayload{
				{
					ID:        102,
					Ref:       "ORD-102",
					Status:    "ready",
					Total:     "249.50",
					CreatedAt: "2026-08-20T10:00:00Z",
					Customer:  customerInfo{Name: "Amina", Phone: "+212600000001", City: "Casablanca"},
					Items: []itemPayload{
						{SKU: "SKU-1", Name: "Widget", Quantity: 2, Price: "99.75"},
						{SKU: "SKU-2", Name: "Gadget", Quantity: 1, Price: "50.00"},
					},
				},
				{ID: 101, Ref: "ORD-101", Status: "pending", Total: "10.00"},
			},
			Meta: listMeta{CurrentPage: 1, LastPage: 3, Total: 250},
		})
	}))
	defer server.Close()

	client := newTestClient(100)
	page, err := client.FetchPage(context.Background(), testStore(server.URL), 1)
	require.NoError(t, err)

	require.Len(t, page.Orders, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, 2, page.NextPage)
	assert.Equal(t, int64(102), page.MaxNativeID())
	assert.Equal(t, int64(101), page.MinNativeID())

	first := page.Orders[0]
	assert.Equal(t, "ORD-102", first.Reference)
	assert.Equal(t, "ready", first.NativeStatus)
	assert.Equal(t, "249.5", first.Total.String())
	assert.Equal(t, "Amina", first.CustomerName)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "99.75", first.Items[0].UnitPrice.String())
}

func TestYouCanClient_FetchPage_LastPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(orderListResponse{
			Data: []orderPayload{{ID: 1, Ref: "ORD-1", Status: "ready", Total: "5.00"}},
			Meta: listMeta{CurrentPage: 3, LastPage: 3, Total: 201},
		})
	}))
	defer server.Close()

	client := newTestClient(100)
	page, err := client.FetchPage(context.Background(), testStore(server.URL), 3)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
}

func TestYouCanClient_SustainedRateLimitFlagsStore(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	throttle := cache.NewInMemoryThrottleFlags(time.Minute)
	client := NewYouCanClient(noopLimiter{}, throttle, 100, zap.NewNop())

	_, err := client.FetchPage(context.Background(), testStore(server.URL), 1)
	assert.ErrorIs(t, err, storefront.ErrRateLimited)
	assert.Equal(t, maxAttempts, requests)

	flagged, err := throttle.IsFlagged(context.Background(), "store-1")
	require.NoError(t, err)
	assert.True(t, flagged)
}

func TestYouCanClient_MissingCredentials(t *testing.T) {
	client := newTestClient(100)

	_, err := client.FetchPage(context.Background(), storefront.Store{ID: "store-x"}, 1)
	assert.ErrorIs(t, err, storefront.ErrStoreNotConfigured)
}

func TestYouCanClient_InvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newTestClient(100)
	_, err := client.FetchPage(context.Background(), testStore(server.URL), 1)
	assert.ErrorIs(t, err, storefront.ErrInvalidResponse)
}
