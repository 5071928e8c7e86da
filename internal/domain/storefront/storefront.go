package storefront

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liberta/backend/internal/domain/order"
)

var (
	// ErrTransport indicates a network or HTTP failure talking to the store
	ErrTransport = errors.New("storefront: request failed")
	// ErrRateLimited indicates the store answered 429
	ErrRateLimited = errors.New("storefront: rate limited")
	// ErrNotFound indicates a valid miss, not a failure
	ErrNotFound = errors.New("storefront: not found")
	// ErrStoreNotConfigured indicates the store has no usable credentials
	ErrStoreNotConfigured = errors.New("storefront: store not configured")
	// ErrInvalidResponse indicates the store answered with an unparseable body
	ErrInvalidResponse = errors.New("storefront: invalid response")
)

// Store is the configuration of one merchant storefront
type Store struct {
	// ID is the store identifier, unique across the platform
	ID string
	// Name is the merchant display name
	Name string
	// BaseURL is the store's API endpoint
	BaseURL string
	// AccessToken authenticates requests against the store API
	AccessToken string
	// Active stores are included in scheduled ingestion runs
	Active bool
}

// SourceOrder is a raw order as returned by a storefront, prior to
// materialization
type SourceOrder struct {
	// NativeID is the numeric order id in the store's own namespace
	NativeID int64
	Reference string
	// NativeStatus is the status string as the source reports it
	NativeStatus  string
	CustomerName  string
	CustomerPhone string
	CustomerCity  string
	Total         decimal.Decimal
	Items         []SourceOrderItem
	OrderedAt     time.Time
}

// SourceOrderItem is a raw line item
type SourceOrderItem struct {
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Page is one page of source orders, sorted newest-first by native id
type Page struct {
	Orders []SourceOrder
	// HasMore is true when at least one further page exists
	HasMore bool
	// NextPage is the page number to request next
	NextPage int
}

// MinNativeID returns the lowest native id on the page, or 0 for an empty
// page. Pages are sorted newest-first, so this is the last entry.
func (p *Page) MinNativeID() int64 {
	if len(p.Orders) == 0 {
		return 0
	}
	return p.Orders[len(p.Orders)-1].NativeID
}

// MaxNativeID returns the highest native id on the page, or 0 for an empty
// page
func (p *Page) MaxNativeID() int64 {
	if len(p.Orders) == 0 {
		return 0
	}
	return p.Orders[0].NativeID
}

// Client fetches order pages from one storefront platform
type Client interface {
	// FetchPage fetches a single page of orders for a store. Page numbers
	// start at 1.
	FetchPage(ctx context.Context, store Store, page int) (*Page, error)
}

// ---------------------------------------------------------------------------
// Native status mapping
// ---------------------------------------------------------------------------

// nativeStatusMap is the fixed lookup table from source-native order states
// to canonical lifecycle statuses
var nativeStatusMap = map[string]order.Status{
	"pending":       order.StatusPending,
	"confirmed":     order.StatusConfirmed,
	"ready":         order.StatusReadyToShip,
	"ready_to_ship": order.StatusReadyToShip,
	"shipped":       order.StatusShipped,
	"delivered":     order.StatusDelivered,
	"cancelled":     order.StatusCancelled,
	"returned":      order.StatusReturned,
}

// MapNativeStatus maps a source-native status string to the canonical
// lifecycle enum. Unknown natives map to PENDING so that full scans never
// drop orders over a vocabulary gap.
func MapNativeStatus(native string) order.Status {
	if s, ok := nativeStatusMap[native]; ok {
		return s
	}
	return order.StatusPending
}

// EligibleForIncremental reports whether a source order should be
// materialized during an incremental scan. Only orders the merchant marked
// ready to ship are picked up between full scans.
func EligibleForIncremental(o *SourceOrder) bool {
	return MapNativeStatus(o.NativeStatus) == order.StatusReadyToShip
}

// ---------------------------------------------------------------------------
// Cursor tracking
// ---------------------------------------------------------------------------

// Cursor marks ingestion progress for one store. It is overwritten on every
// successful page fetch and bounds the rescan window of the next incremental
// run.
type Cursor struct {
	StoreID string `json:"store_id"`
	// Page is the last confirmed page position
	Page int `json:"page"`
	// FirstNativeID is the highest native id observed on that page
	FirstNativeID int64 `json:"first_native_id"`
	// LastNativeID is the lowest native id observed on that page
	LastNativeID int64 `json:"last_native_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CursorStore persists cursors in a shared cache. Implementations must treat
// a lost entry as an empty cursor: total cache loss degrades ingestion to a
// full rescan, never to a failure.
type CursorStore interface {
	Get(ctx context.Context, storeID string) (*Cursor, error)
	Put(ctx context.Context, cursor *Cursor) error
	Delete(ctx context.Context, storeID string) error
}
