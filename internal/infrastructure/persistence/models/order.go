package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liberta/backend/internal/domain/order"
)

// OrderModel is the persistence model for the canonical Order entity. The
// composite unique index on (store_id, native_id) enforces the natural key:
// native ids recur across stores, so neither column is unique on its own.
type OrderModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	Source         string          `gorm:"type:varchar(20);not null"`
	StoreID        string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_orders_store_native,priority:1"`
	NativeID       int64           `gorm:"not null;uniqueIndex:idx_orders_store_native,priority:2"`
	Reference      string          `gorm:"type:varchar(64);not null;index:idx_orders_reference"`
	Status         string          `gorm:"type:varchar(20);not null"`
	ShippingStatus *string         `gorm:"type:varchar(40);index:idx_orders_shipping_status"`
	ShipmentID     *string         `gorm:"type:varchar(64)"`
	TrackingNumber *string         `gorm:"type:varchar(64)"`
	Total          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CustomerID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderedAt      time.Time       `gorm:"not null"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`

	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		ID:             m.ID,
		Source:         m.Source,
		StoreID:        m.StoreID,
		NativeID:       m.NativeID,
		Reference:      m.Reference,
		Status:         order.Status(m.Status),
		ShippingStatus: m.ShippingStatus,
		ShipmentID:     m.ShipmentID,
		TrackingNumber: m.TrackingNumber,
		Total:          m.Total,
		CustomerID:     m.CustomerID,
		OrderedAt:      m.OrderedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Items:          make([]order.OrderItem, 0, len(m.Items)),
	}
	for i := range m.Items {
		o.Items = append(o.Items, *m.Items[i].ToDomain())
	}
	return o
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) {
	m.ID = o.ID
	m.Source = o.Source
	m.StoreID = o.StoreID
	m.NativeID = o.NativeID
	m.Reference = o.Reference
	m.Status = o.Status.String()
	m.ShippingStatus = o.ShippingStatus
	m.ShipmentID = o.ShipmentID
	m.TrackingNumber = o.TrackingNumber
	m.Total = o.Total
	m.CustomerID = o.CustomerID
	m.OrderedAt = o.OrderedAt
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
	m.Items = make([]OrderItemModel, 0, len(o.Items))
	for i := range o.Items {
		var item OrderItemModel
		item.FromDomain(&o.Items[i])
		m.Items = append(m.Items, item)
	}
}

// OrderItemModel is the persistence model for order line items
type OrderItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU       string          `gorm:"type:varchar(64)"`
	Name      string          `gorm:"type:varchar(255);not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain OrderItem
func (m *OrderItemModel) ToDomain() *order.OrderItem {
	return &order.OrderItem{
		ID:        m.ID,
		OrderID:   m.OrderID,
		SKU:       m.SKU,
		Name:      m.Name,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
	}
}

// FromDomain populates the persistence model from a domain OrderItem
func (m *OrderItemModel) FromDomain(item *order.OrderItem) {
	m.ID = item.ID
	m.OrderID = item.OrderID
	m.SKU = item.SKU
	m.Name = item.Name
	m.Quantity = item.Quantity
	m.UnitPrice = item.UnitPrice
}

// CustomerModel is the persistence model for customers
type CustomerModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	Name       string    `gorm:"type:varchar(128);not null"`
	Phone      string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_customers_phone"`
	City       string    `gorm:"type:varchar(64)"`
	OrderCount int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *order.Customer {
	return &order.Customer{
		ID:         m.ID,
		Name:       m.Name,
		Phone:      m.Phone,
		City:       m.City,
		OrderCount: m.OrderCount,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c *order.Customer) {
	m.ID = c.ID
	m.Name = c.Name
	m.Phone = c.Phone
	m.City = c.City
	m.OrderCount = c.OrderCount
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// WebhookEventModel is the audit record of an inbound carrier status event
type WebhookEventModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	EventType      string    `gorm:"type:varchar(64);not null"`
	OrderReference string    `gorm:"type:varchar(64);index"`
	StatusCode     int       `gorm:"not null"`
	TrackingID     string    `gorm:"type:varchar(64)"`
	Applied        bool      `gorm:"not null"`
	Error          string    `gorm:"type:text"`
	ReceivedAt     time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent
func (m *WebhookEventModel) ToDomain() *order.WebhookEvent {
	return &order.WebhookEvent{
		ID:             m.ID,
		EventType:      m.EventType,
		OrderReference: m.OrderReference,
		StatusCode:     m.StatusCode,
		TrackingID:     m.TrackingID,
		Applied:        m.Applied,
		Error:          m.Error,
		ReceivedAt:     m.ReceivedAt,
	}
}

// FromDomain populates the persistence model from a domain WebhookEvent
func (m *WebhookEventModel) FromDomain(e *order.WebhookEvent) {
	m.ID = e.ID
	m.EventType = e.EventType
	m.OrderReference = e.OrderReference
	m.StatusCode = e.StatusCode
	m.TrackingID = e.TrackingID
	m.Applied = e.Applied
	m.Error = e.Error
	m.ReceivedAt = e.ReceivedAt
}

// SyncRunModel is the persisted record of one scheduler run
type SyncRunModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key"`
	JobType    string     `gorm:"type:varchar(20);not null;index:idx_sync_runs_job_type"`
	StartedAt  time.Time  `gorm:"not null;index"`
	FinishedAt *time.Time
	Result     string `gorm:"type:varchar(20);not null"`
	Created    int    `gorm:"not null;default:0"`
	Updated    int    `gorm:"not null;default:0"`
	Skipped    int    `gorm:"not null;default:0"`
	Errors     int    `gorm:"not null;default:0"`
	Error      string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the persistence model to a domain SyncRun
func (m *SyncRunModel) ToDomain() *order.SyncRun {
	return &order.SyncRun{
		ID:         m.ID,
		JobType:    m.JobType,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Result:     order.RunResult(m.Result),
		Created:    m.Created,
		Updated:    m.Updated,
		Skipped:    m.Skipped,
		Errors:     m.Errors,
		Error:      m.Error,
	}
}

// FromDomain populates the persistence model from a domain SyncRun
func (m *SyncRunModel) FromDomain(r *order.SyncRun) {
	m.ID = r.ID
	m.JobType = r.JobType
	m.StartedAt = r.StartedAt
	m.FinishedAt = r.FinishedAt
	m.Result = string(r.Result)
	m.Created = r.Created
	m.Updated = r.Updated
	m.Skipped = r.Skipped
	m.Errors = r.Errors
	m.Error = r.Error
}
