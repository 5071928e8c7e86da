package delivery

import (
	"time"

	"github.com/liberta/backend/internal/domain/carrier"
)

// Sendit numeric status codes, versioned with the carrier's API
// documentation
const (
	senditStatusCreated        = 30
	senditStatusPickedUp       = 32
	senditStatusInTransit      = 35
	senditStatusOutForDelivery = 38
	senditStatusDelivered      = 41
	senditStatusReturned       = 44
	senditStatusRefused        = 47
	senditStatusCancelled      = 50
)

// senditStatusMap is the fixed code-to-label table
var senditStatusMap = map[int]string{
	senditStatusCreated:        carrier.StatusCreated,
	senditStatusPickedUp:       carrier.StatusPickedUp,
	senditStatusInTransit:      carrier.StatusInTransit,
	senditStatusOutForDelivery: carrier.StatusOutForDelivery,
	senditStatusDelivered:      carrier.StatusDelivered,
	senditStatusReturned:       carrier.StatusReturned,
	senditStatusRefused:        carrier.StatusRefused,
	senditStatusCancelled:      carrier.StatusCancelled,
}

// mapSenditStatus maps a native code to a canonical label. Unmapped codes
// degrade to a tagged unknown label, never to an error.
func mapSenditStatus(code int) string {
	if label, ok := senditStatusMap[code]; ok {
		return label
	}
	return carrier.UnknownLabel(code)
}

// deliveryListResponse is the Sendit bulk deliveries envelope
type deliveryListResponse struct {
	Data []deliveryPayload `json:"data"`
	Meta listMeta          `json:"meta"`
}

type listMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	Total       int `json:"total"`
}

// deliveryDetailResponse is the Sendit single delivery envelope
type deliveryDetailResponse struct {
	Data *deliveryPayload `json:"data"`
}

// deliveryPayload is one delivery as the carrier API returns it
type deliveryPayload struct {
	ID          string `json:"id"`
	OrderRef    string `json:"order_ref"`
	TrackingNo  string `json:"tracking_no"`
	Status      int    `json:"status"`
	StatusDate  string `json:"status_date"`
}

// toShipment converts the API payload into the domain shipment
func (p *deliveryPayload) toShipment() carrier.Shipment {
	shipment := carrier.Shipment{
		Reference:      p.OrderRef,
		ShipmentID:     p.ID,
		TrackingNumber: p.TrackingNo,
		StatusCode:     p.Status,
	}
	if ts, err := time.Parse(time.RFC3339, p.StatusDate); err == nil {
		shipment.StatusAt = ts
	}
	return shipment
}
