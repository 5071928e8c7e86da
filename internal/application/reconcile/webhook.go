package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/carrier"
	"github.com/liberta/backend/internal/domain/order"
)

// EventTypeStatusChanged is the only carrier event type that carries a
// shipping-status update
const EventTypeStatusChanged = "OrderStatusChanged"

// Event is one inbound carrier push
type Event struct {
	EventType  string
	Reference  string
	StatusCode int
	TrackingID string
}

// WebhookApplier applies pushed status events immediately, outside the
// polling cycle, with the same write rules as the reconciler
type WebhookApplier struct {
	orders  order.Repository
	events  order.WebhookEventRepository
	clients carrier.Factory
	logger  *zap.Logger
}

// NewWebhookApplier creates a new WebhookApplier
func NewWebhookApplier(
	orders order.Repository,
	events order.WebhookEventRepository,
	clients carrier.Factory,
	logger *zap.Logger,
) *WebhookApplier {
	return &WebhookApplier{
		orders:  orders,
		events:  events,
		clients: clients,
		logger:  logger,
	}
}

// ApplyEvent maps and applies one pushed status event. The event is recorded
// for audit whatever the outcome. Unrecognized event types are accepted and
// ignored. Re-applying an identical event is a no-op write.
func (a *WebhookApplier) ApplyEvent(ctx context.Context, ev Event) (bool, error) {
	record := &order.WebhookEvent{
		ID:             uuid.New(),
		EventType:      ev.EventType,
		OrderReference: ev.Reference,
		StatusCode:     ev.StatusCode,
		TrackingID:     ev.TrackingID,
		ReceivedAt:     time.Now().UTC(),
	}
	defer a.record(ctx, record)

	if ev.EventType != EventTypeStatusChanged {
		a.logger.Debug("Ignoring unrecognized webhook event type",
			zap.String("event_type", ev.EventType),
		)
		return false, nil
	}

	o, err := a.orders.FindByReference(ctx, ev.Reference)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			record.Error = "order not found"
			return false, nil
		}
		record.Error = err.Error()
		return false, err
	}

	client, err := a.clients(carrier.CodeSendit)
	if err != nil {
		record.Error = err.Error()
		return false, err
	}
	label := client.MapStatus(ev.StatusCode)

	update, changed := decideUpdate(o, label, "", ev.TrackingID)
	if !changed {
		// Identical or regressing event: recorded, nothing written
		record.Applied = true
		return true, nil
	}

	failures := a.orders.ApplyShippingUpdates(ctx, []order.ShippingUpdate{update})
	if len(failures) > 0 {
		record.Error = failures[0].Error()
		return false, failures[0]
	}

	record.Applied = true
	a.logger.Info("Webhook status applied",
		zap.String("reference", ev.Reference),
		zap.String("label", label),
		zap.Bool("force_delivered", update.ForceDelivered),
	)
	return true, nil
}

func (a *WebhookApplier) record(ctx context.Context, record *order.WebhookEvent) {
	if err := a.events.Record(context.WithoutCancel(ctx), record); err != nil {
		a.logger.Error("Failed to record webhook event",
			zap.String("reference", record.OrderReference),
			zap.Error(err),
		)
	}
}
