package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Lifecycle Status
// ---------------------------------------------------------------------------

// Status represents the canonical lifecycle status of an order
type Status string

const (
	// StatusPending indicates the order was placed but not yet confirmed
	StatusPending Status = "PENDING"
	// StatusConfirmed indicates the order was confirmed by an agent
	StatusConfirmed Status = "CONFIRMED"
	// StatusReadyToShip indicates the order is packed and awaiting pickup
	StatusReadyToShip Status = "READY_TO_SHIP"
	// StatusShipped indicates the order was handed to a carrier
	StatusShipped Status = "SHIPPED"
	// StatusDelivered indicates the order reached the customer
	StatusDelivered Status = "DELIVERED"
	// StatusCancelled indicates the order was cancelled
	StatusCancelled Status = "CANCELLED"
	// StatusReturned indicates the order was returned to sender
	StatusReturned Status = "RETURNED"
)

// IsValid returns true if the status is a known lifecycle status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusReadyToShip,
		StatusShipped, StatusDelivered, StatusCancelled, StatusReturned:
		return true
	default:
		return false
	}
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true for statuses no later update may leave
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusReturned:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

// Order is the canonical order record. Its natural key is
// (Source, StoreID, NativeID): numeric native ids recur across stores, so the
// store identifier is always part of any lookup.
type Order struct {
	ID uuid.UUID
	// Source is the platform code of the storefront the order was ingested from
	Source string
	// StoreID identifies the merchant store within the source platform
	StoreID string
	// NativeID is the order id assigned by the source, unique per store only
	NativeID int64
	// Reference is the human-facing order reference used by carriers
	Reference string
	Status    Status
	// ShippingStatus is the mapped carrier status label, nil until first
	// reconciliation
	ShippingStatus *string
	// ShipmentID is the carrier-side shipment identifier
	ShipmentID *string
	// TrackingNumber is the carrier tracking code
	TrackingNumber *string
	Total          decimal.Decimal
	CustomerID     uuid.UUID
	Items          []OrderItem
	// OrderedAt is when the order was placed on the source platform
	OrderedAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is a line item belonging to an order
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Customer owns one or more orders and is matched by phone number
type Customer struct {
	ID    uuid.UUID
	Name  string
	Phone string
	City  string
	// OrderCount is incremented every time a new order is materialized for
	// this customer
	OrderCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
