// Package delivery contains adapters for carrier tracking providers.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/carrier"
	"github.com/liberta/backend/internal/domain/shared"
)

const (
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024
	// bulkPageSize is the page size used for bulk shipment fetches
	bulkPageSize = 200
	// defaultTimeout is the per-request HTTP timeout
	defaultTimeout = 30 * time.Second
)

// SenditAdapter implements the carrier Client interface for the Sendit
// delivery-tracking API
type SenditAdapter struct {
	httpClient *http.Client
	limiter    shared.Limiter
	// fanout bounds how many bulk pages are fetched concurrently
	fanout int
	logger *zap.Logger
}

// NewSenditAdapter creates a new Sendit adapter
func NewSenditAdapter(limiter shared.Limiter, fanout int, logger *zap.Logger) *SenditAdapter {
	if fanout <= 0 {
		fanout = 10
	}
	return &SenditAdapter{
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    limiter,
		fanout:     fanout,
		logger:     logger.Named("sendit"),
	}
}

// Code returns the carrier slug this adapter handles
func (a *SenditAdapter) Code() carrier.Code {
	return carrier.CodeSendit
}

// FetchShipments fetches up to maxResults shipments for the credential. The
// first page reveals the page count; remaining pages are fetched with a
// fixed fan-out while every request still passes through the credential's
// shared rate-limiter key.
func (a *SenditAdapter) FetchShipments(ctx context.Context, cred carrier.Credential, maxResults int) ([]carrier.Shipment, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = bulkPageSize
	}

	first, meta, err := a.fetchBulkPage(ctx, cred, 1)
	if err != nil {
		return nil, err
	}

	wantPages := (maxResults + bulkPageSize - 1) / bulkPageSize
	lastPage := meta.LastPage
	if lastPage > wantPages {
		lastPage = wantPages
	}

	shipments := first
	if lastPage > 1 {
		rest, err := a.fetchPagesConcurrently(ctx, cred, 2, lastPage)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, rest...)
	}

	if len(shipments) > maxResults {
		shipments = shipments[:maxResults]
	}
	return shipments, nil
}

// fetchPagesConcurrently fetches pages [from, to] with a bounded worker pool
// and returns the shipments ordered by page number
func (a *SenditAdapter) fetchPagesConcurrently(ctx context.Context, cred carrier.Credential, from, to int) ([]carrier.Shipment, error) {
	type pageResult struct {
		page      int
		shipments []carrier.Shipment
		err       error
	}

	pages := make(chan int)
	results := make(chan pageResult)

	workers := a.fanout
	if span := to - from + 1; workers > span {
		workers = span
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pages {
				shipments, _, err := a.fetchBulkPage(ctx, cred, page)
				results <- pageResult{page: page, shipments: shipments, err: err}
			}
		}()
	}

	go func() {
		defer close(pages)
		for page := from; page <= to; page++ {
			select {
			case pages <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]pageResult, 0, to-from+1)
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		collected = append(collected, res)
	}
	if firstErr != nil && len(collected) == 0 {
		return nil, firstErr
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].page < collected[j].page })
	out := make([]carrier.Shipment, 0, len(collected)*bulkPageSize)
	for _, res := range collected {
		out = append(out, res.shipments...)
	}
	return out, nil
}

// fetchBulkPage fetches one page of the bulk deliveries listing
func (a *SenditAdapter) fetchBulkPage(ctx context.Context, cred carrier.Credential, page int) ([]carrier.Shipment, *listMeta, error) {
	endpoint := fmt.Sprintf("%s/deliveries?page=%d&limit=%d", cred.BaseURL, page, bulkPageSize)
	body, err := a.doRequest(ctx, cred, endpoint)
	if err != nil {
		return nil, nil, err
	}

	var resp deliveryListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", carrier.ErrInvalidResponse, err)
	}

	shipments := make([]carrier.Shipment, 0, len(resp.Data))
	for i := range resp.Data {
		shipments = append(shipments, resp.Data[i].toShipment())
	}
	return shipments, &resp.Meta, nil
}

// FetchByReference fetches the shipment for a single order reference
func (a *SenditAdapter) FetchByReference(ctx context.Context, cred carrier.Credential, reference string) (*carrier.Shipment, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, carrier.ErrNotFound
	}

	endpoint := fmt.Sprintf("%s/deliveries/%s", cred.BaseURL, url.PathEscape(reference))
	body, err := a.doRequest(ctx, cred, endpoint)
	if err != nil {
		return nil, err
	}

	var resp deliveryDetailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrInvalidResponse, err)
	}
	if resp.Data == nil {
		return nil, carrier.ErrNotFound
	}

	shipment := resp.Data.toShipment()
	return &shipment, nil
}

// MapStatus maps a Sendit numeric status code to a canonical label
func (a *SenditAdapter) MapStatus(code int) string {
	return mapSenditStatus(code)
}

// TestConnection verifies the credential against the carrier API
func (a *SenditAdapter) TestConnection(ctx context.Context, cred carrier.Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	_, err := a.doRequest(ctx, cred, cred.BaseURL+"/deliveries?page=1&limit=1")
	return err
}

// SyncTrackingNumbers fetches tracking numbers for the given references.
// References the carrier does not know are simply absent from the result.
func (a *SenditAdapter) SyncTrackingNumbers(ctx context.Context, cred carrier.Credential, references []string) (map[string]string, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(references))
	for _, ref := range references {
		shipment, err := a.FetchByReference(ctx, cred, ref)
		if err != nil {
			if err == carrier.ErrNotFound {
				continue
			}
			return out, err
		}
		if shipment.TrackingNumber != "" {
			out[ref] = shipment.TrackingNumber
		}
	}
	return out, nil
}

// doRequest performs one paced, authenticated request against the carrier
func (a *SenditAdapter) doRequest(ctx context.Context, cred carrier.Credential, endpoint string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, cred.RateKey()); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("sendit: failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", cred.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, carrier.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, carrier.ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", carrier.ErrNotConfigured, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d", carrier.ErrTransport, resp.StatusCode)
	}

	return body, nil
}

// Ensure SenditAdapter implements the carrier Client interface
var _ carrier.Client = (*SenditAdapter)(nil)
