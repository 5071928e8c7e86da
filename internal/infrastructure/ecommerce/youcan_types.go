package ecommerce

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/liberta/backend/internal/domain/storefront"
)

// orderListResponse is the YouCan order list envelope
type orderListResponse struct {
	Data []orderPayload `json:"data"`
	Meta listMeta       `json:"meta"`
}

type listMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	Total       int `json:"total"`
}

// orderPayload is one order as the store API returns it
type orderPayload struct {
	ID        int64          `json:"id"`
	Ref       string         `json:"ref"`
	Status    string         `json:"status"`
	Total     string         `json:"total"`
	CreatedAt string         `json:"created_at"`
	Customer  customerInfo   `json:"customer"`
	Items     []itemPayload  `json:"items"`
}

type customerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	City  string `json:"city"`
}

type itemPayload struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// toSourceOrder converts the API payload into the domain source order
func (p *orderPayload) toSourceOrder() storefront.SourceOrder {
	order := storefront.SourceOrder{
		NativeID:      p.ID,
		Reference:     p.Ref,
		NativeStatus:  p.Status,
		CustomerName:  p.Customer.Name,
		CustomerPhone: p.Customer.Phone,
		CustomerCity:  p.Customer.City,
		Items:         make([]storefront.SourceOrderItem, 0, len(p.Items)),
	}

	if total, err := decimal.NewFromString(p.Total); err == nil {
		order.Total = total
	}
	if ts, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
		order.OrderedAt = ts
	}

	for _, item := range p.Items {
		unitPrice, err := decimal.NewFromString(item.Price)
		if err != nil {
			unitPrice = decimal.Zero
		}
		order.Items = append(order.Items, storefront.SourceOrderItem{
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
		})
	}

	return order
}
