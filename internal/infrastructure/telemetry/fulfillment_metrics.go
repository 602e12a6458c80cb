package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// FulfillmentMetrics records purchase order fulfillment activity.
// It also observes the outbox relay, so it can be installed with
// OutboxProcessor.SetObserver.
type FulfillmentMetrics struct {
	logger *zap.Logger

	deliveriesTotal  *Counter
	receivedQuantity *FloatCounter
	receivedValue    *FloatCounter
	ordersCompleted  *Counter
	ordersCancelled  *Counter
	overdueOrders    *Gauge
	receiptDuration  *Histogram
	receiptConflicts *Counter
	outboxRelayed    *Counter
	outboxFailed     *Counter
}

// NewFulfillmentMetrics creates all fulfillment instruments on the meter.
func NewFulfillmentMetrics(meter metric.Meter, logger *zap.Logger) (*FulfillmentMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &FulfillmentMetrics{logger: logger}
	var err error

	if m.deliveriesTotal, err = NewCounter(meter,
		"fulfillment_deliveries_total", "Total number of recorded deliveries", "{deliveries}"); err != nil {
		return nil, err
	}
	if m.receivedQuantity, err = NewFloatCounter(meter,
		"fulfillment_received_quantity_total", "Total quantity received across all deliveries", "{units}"); err != nil {
		return nil, err
	}
	if m.receivedValue, err = NewFloatCounter(meter,
		"fulfillment_received_value_total", "Total value of received goods at order prices", "{currency}"); err != nil {
		return nil, err
	}
	if m.ordersCompleted, err = NewCounter(meter,
		"fulfillment_orders_completed_total", "Total number of fully received purchase orders", "{orders}"); err != nil {
		return nil, err
	}
	if m.ordersCancelled, err = NewCounter(meter,
		"fulfillment_orders_cancelled_total", "Total number of cancelled purchase orders", "{orders}"); err != nil {
		return nil, err
	}
	if m.overdueOrders, err = NewGauge(meter,
		"fulfillment_overdue_orders", "Open purchase orders past their expected delivery date", "{orders}"); err != nil {
		return nil, err
	}
	if m.receiptDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "fulfillment_receipt_duration_seconds",
		Description: "Duration of delivery receipt transactions",
		Unit:        "s",
		Boundaries:  DeliveryLatencyBuckets,
	}); err != nil {
		return nil, err
	}
	if m.receiptConflicts, err = NewCounter(meter,
		"fulfillment_receipt_conflicts_total", "Optimistic lock conflicts while recording deliveries", "{conflicts}"); err != nil {
		return nil, err
	}
	if m.outboxRelayed, err = NewCounter(meter,
		"outbox_events_relayed_total", "Outbox events delivered to the event bus", "{events}"); err != nil {
		return nil, err
	}
	if m.outboxFailed, err = NewCounter(meter,
		"outbox_events_failed_total", "Outbox relay attempts that failed", "{events}"); err != nil {
		return nil, err
	}
	return m, nil
}

func tenantAttr(tenantID uuid.UUID) attribute.KeyValue {
	return AttrTenantID.String(tenantID.String())
}

// RecordDelivery counts one delivery with its total quantity and value.
func (m *FulfillmentMetrics) RecordDelivery(ctx context.Context, tenantID uuid.UUID, quantity, value decimal.Decimal) {
	attr := tenantAttr(tenantID)
	m.deliveriesTotal.Inc(ctx, attr)
	m.receivedQuantity.Add(ctx, quantity.InexactFloat64(), attr)
	m.receivedValue.Add(ctx, value.InexactFloat64(), attr)
}

func (m *FulfillmentMetrics) RecordOrderCompleted(ctx context.Context, tenantID uuid.UUID) {
	m.ordersCompleted.Inc(ctx, tenantAttr(tenantID))
}

func (m *FulfillmentMetrics) RecordOrderCancelled(ctx context.Context, tenantID uuid.UUID) {
	m.ordersCancelled.Inc(ctx, tenantAttr(tenantID))
}

// RecordOverdueOrders sets the overdue gauge. A nil tenant records the
// service-wide total.
func (m *FulfillmentMetrics) RecordOverdueOrders(ctx context.Context, tenantID uuid.UUID, count int64) {
	if tenantID == uuid.Nil {
		m.overdueOrders.Record(ctx, count)
		return
	}
	m.overdueOrders.Record(ctx, count, tenantAttr(tenantID))
}

// RecordReceipt records the duration of one receipt attempt. errCode is empty
// for a committed receipt.
func (m *FulfillmentMetrics) RecordReceipt(ctx context.Context, d time.Duration, errCode string) {
	outcome := "committed"
	if errCode != "" {
		outcome = "rejected"
	}
	attrs := []attribute.KeyValue{AttrOutcome.String(outcome)}
	if errCode != "" {
		attrs = append(attrs, AttrErrorCode.String(errCode))
	}
	m.receiptDuration.RecordDuration(ctx, d, attrs...)
}

func (m *FulfillmentMetrics) RecordReceiptConflict(ctx context.Context, attempt int) {
	m.receiptConflicts.Inc(ctx, AttrRetryAttempt.Int(attempt))
}

// EventRelayed implements the outbox relay observer.
func (m *FulfillmentMetrics) EventRelayed(ctx context.Context, eventType string) {
	m.outboxRelayed.Inc(ctx, AttrEventType.String(eventType))
}

// EventFailed implements the outbox relay observer.
func (m *FulfillmentMetrics) EventFailed(ctx context.Context, eventType string, dead bool) {
	outcome := "retry"
	if dead {
		outcome = "dead"
		m.logger.Warn("outbox event is dead", zap.String("event_type", eventType))
	}
	m.outboxFailed.Inc(ctx, AttrEventType.String(eventType), AttrOutcome.String(outcome))
}

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = &MetricsError{Op: "NewFulfillmentMetrics", Err: "meter cannot be nil"}

// MetricsError describes a failure to build instruments.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
