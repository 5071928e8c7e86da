package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrOrderNotFound is returned when no order matches the lookup key
	ErrOrderNotFound = errors.New("order: order not found")
	// ErrCustomerNotFound is returned when no customer matches the lookup key
	ErrCustomerNotFound = errors.New("order: customer not found")
	// ErrDuplicateOrder is returned when an insert collides with the
	// (store, native id) natural key
	ErrDuplicateOrder = errors.New("order: order already exists for store and native id")
)

// ShippingUpdate is a single pending shipping-status write
type ShippingUpdate struct {
	OrderID        uuid.UUID
	ShippingStatus string
	ShipmentID     *string
	TrackingNumber *string
	// ForceDelivered also transitions the lifecycle status to DELIVERED
	ForceDelivered bool
}

// Repository persists canonical orders
type Repository interface {
	// FindByStoreAndNativeID looks an order up by its natural key. The store
	// identifier is mandatory: native ids are only unique within one store.
	FindByStoreAndNativeID(ctx context.Context, storeID string, nativeID int64) (*Order, error)

	// FindByReference finds an order by its carrier-facing reference
	FindByReference(ctx context.Context, reference string) (*Order, error)

	// FindNeedingRefresh returns orders whose shipping status is absent or
	// outside the given terminal label set, bounded by limit
	FindNeedingRefresh(ctx context.Context, terminalStatuses []string, limit int) ([]Order, error)

	// FindByReferences returns the orders matching the given references
	FindByReferences(ctx context.Context, references []string) ([]Order, error)

	// Create inserts the order together with its line items in one
	// transaction
	Create(ctx context.Context, o *Order) error

	// ApplyShippingUpdates applies a batch of shipping-status writes. Each
	// item is committed independently; the returned slice holds the per-item
	// failures and never aborts the batch.
	ApplyShippingUpdates(ctx context.Context, updates []ShippingUpdate) []error

	// HighestNativeID returns the highest ingested native id for a store,
	// or 0 when the store has no orders yet
	HighestNativeID(ctx context.Context, storeID string) (int64, error)
}

// CustomerRepository persists customers
type CustomerRepository interface {
	// FindByPhone finds a customer by phone number
	FindByPhone(ctx context.Context, phone string) (*Customer, error)

	// Create inserts a new customer
	Create(ctx context.Context, c *Customer) error

	// IncrementOrderCount bumps the customer's order counter
	IncrementOrderCount(ctx context.Context, id uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Webhook events
// ---------------------------------------------------------------------------

// WebhookEvent is the audit record of an inbound carrier status event. It is
// recorded regardless of whether the event was applied.
type WebhookEvent struct {
	ID             uuid.UUID
	EventType      string
	OrderReference string
	StatusCode     int
	TrackingID     string
	Applied        bool
	Error          string
	ReceivedAt     time.Time
}

// WebhookEventRepository persists webhook audit records
type WebhookEventRepository interface {
	Record(ctx context.Context, event *WebhookEvent) error
}

// ---------------------------------------------------------------------------
// Sync runs
// ---------------------------------------------------------------------------

// RunResult represents the outcome of a finished sync run
type RunResult string

const (
	RunResultRunning RunResult = "RUNNING"
	RunResultSuccess RunResult = "SUCCESS"
	RunResultPartial RunResult = "PARTIAL"
	RunResultFailed  RunResult = "FAILED"
	RunResultSkipped RunResult = "SKIPPED"
)

// SyncRun is the persisted record of one scheduler run, kept for
// observability
type SyncRun struct {
	ID         uuid.UUID
	JobType    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Result     RunResult
	Created    int
	Updated    int
	Skipped    int
	Errors     int
	Error      string
}

// SyncRunRepository persists sync run records
type SyncRunRepository interface {
	Save(ctx context.Context, run *SyncRun) error
	FindRecent(ctx context.Context, jobType string, limit int) ([]SyncRun, error)
}
