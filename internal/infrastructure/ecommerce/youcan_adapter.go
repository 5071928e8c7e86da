// Package ecommerce contains adapters for upstream storefront platforms.
package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/shared"
	"github.com/liberta/backend/internal/domain/storefront"
)

const (
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024
	// maxAttempts bounds the retry loop on 429 responses: one retry, then
	// the store is flagged as throttled
	maxAttempts = 2
	// retryBaseDelay is the base backoff before a 429 retry
	retryBaseDelay = 2 * time.Second
	// defaultTimeout is the per-request HTTP timeout
	defaultTimeout = 30 * time.Second
)

// YouCanClient fetches order pages from YouCan stores. One client serves every
// configured store; the store's endpoint and token travel with each call.
type YouCanClient struct {
	httpClient *http.Client
	limiter    shared.Limiter
	throttle   shared.ThrottleFlags
	pageSize   int
	logger     *zap.Logger
}

// NewYouCanClient creates a new YouCan storefront client
func NewYouCanClient(limiter shared.Limiter, throttle shared.ThrottleFlags, pageSize int, logger *zap.Logger) *YouCanClient {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &YouCanClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    limiter,
		throttle:   throttle,
		pageSize:   pageSize,
		logger:     logger.Named("youcan"),
	}
}

// StoreRateKey returns the rate-limiter key for a store
func StoreRateKey(storeID string) string {
	return "store:" + storeID
}

// FetchPage fetches a single page of orders, newest first. Page numbers
// start at 1. A 429 is retried once with backoff; a second 429 flags the
// store and surfaces ErrRateLimited.
func (c *YouCanClient) FetchPage(ctx context.Context, store storefront.Store, page int) (*storefront.Page, error) {
	if store.BaseURL == "" || store.AccessToken == "" {
		return nil, storefront.ErrStoreNotConfigured
	}
	if page < 1 {
		page = 1
	}

	body, err := c.doRequest(ctx, store, page)
	if err != nil {
		return nil, err
	}

	var resp orderListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", storefront.ErrInvalidResponse, err)
	}

	result := &storefront.Page{
		Orders:   make([]storefront.SourceOrder, 0, len(resp.Data)),
		HasMore:  resp.Meta.CurrentPage < resp.Meta.LastPage,
		NextPage: resp.Meta.CurrentPage + 1,
	}
	for i := range resp.Data {
		result.Orders = append(result.Orders, resp.Data[i].toSourceOrder())
	}
	return result, nil
}

// doRequest performs one paced request against the store's order endpoint,
// with a bounded retry loop on 429
func (c *YouCanClient) doRequest(ctx context.Context, store storefront.Store, page int) ([]byte, error) {
	url := fmt.Sprintf("%s/orders?page=%d&limit=%d&sort=-id", store.BaseURL, page, c.pageSize)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx, StoreRateKey(store.ID)); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("youcan: failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+store.AccessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storefront.ErrTransport, err)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", storefront.ErrTransport, readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt == maxAttempts {
				// Sustained rate limiting: flag the store so the scheduler
				// skips the next run instead of hammering the API
				if flagErr := c.throttle.Flag(ctx, store.ID); flagErr != nil {
					c.logger.Warn("Failed to flag throttled store",
						zap.String("store_id", store.ID), zap.Error(flagErr))
				}
				return nil, storefront.ErrRateLimited
			}
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			c.logger.Warn("Store rate limited, backing off",
				zap.String("store_id", store.ID),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		case resp.StatusCode == http.StatusNotFound:
			return nil, storefront.ErrNotFound
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("%w: HTTP %d", storefront.ErrTransport, resp.StatusCode)
		default:
			return body, nil
		}
	}

	return nil, storefront.ErrRateLimited
}

// sleepCtx sleeps for d or until the context is cancelled
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ensure Client implements the storefront client port
var _ storefront.Client = (*YouCanClient)(nil)
