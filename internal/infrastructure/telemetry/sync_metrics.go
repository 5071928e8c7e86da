package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics holds the counters the sync engine reports.
type SyncMetrics struct {
	OrdersIngested  *Counter
	OrdersSkipped   *Counter
	ShippingUpdates *Counter
	WebhookEvents   *Counter
	RunFailures     *Counter
}

// NewSyncMetrics registers the sync engine counters on the given meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	ingested, err := NewCounter(meter, "sync.orders.ingested", "Orders created from the storefront API", "{order}")
	if err != nil {
		return nil, err
	}
	skipped, err := NewCounter(meter, "sync.orders.skipped", "Orders skipped during ingestion", "{order}")
	if err != nil {
		return nil, err
	}
	updates, err := NewCounter(meter, "sync.shipping.updates", "Shipping status updates applied to orders", "{update}")
	if err != nil {
		return nil, err
	}
	webhooks, err := NewCounter(meter, "sync.webhook.events", "Carrier webhook events received", "{event}")
	if err != nil {
		return nil, err
	}
	failures, err := NewCounter(meter, "sync.run.failures", "Sync runs that finished with a failure result", "{run}")
	if err != nil {
		return nil, fmt.Errorf("failed to register sync metrics: %w", err)
	}

	return &SyncMetrics{
		OrdersIngested:  ingested,
		OrdersSkipped:   skipped,
		ShippingUpdates: updates,
		WebhookEvents:   webhooks,
		RunFailures:     failures,
	}, nil
}

// RecordIngest records the outcome counts of an ingest run.
func (m *SyncMetrics) RecordIngest(ctx context.Context, storeID string, created, skipped int64) {
	attrs := []attribute.KeyValue{attribute.String("store_id", storeID)}
	if created > 0 {
		m.OrdersIngested.Add(ctx, created, attrs...)
	}
	if skipped > 0 {
		m.OrdersSkipped.Add(ctx, skipped, attrs...)
	}
}

// RecordWebhook records one received webhook event.
func (m *SyncMetrics) RecordWebhook(ctx context.Context, eventType string, applied bool) {
	m.WebhookEvents.Inc(ctx,
		attribute.String("event_type", eventType),
		attribute.Bool("applied", applied),
	)
}
