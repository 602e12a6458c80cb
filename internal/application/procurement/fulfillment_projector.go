package procurement

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/procurement"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FulfillmentRecorder receives fulfillment facts derived from events.
// telemetry.FulfillmentMetrics implements it.
type FulfillmentRecorder interface {
	RecordDelivery(ctx context.Context, tenantID uuid.UUID, quantity, value decimal.Decimal)
	RecordOrderCompleted(ctx context.Context, tenantID uuid.UUID)
	RecordOrderCancelled(ctx context.Context, tenantID uuid.UUID)
}

// FulfillmentProjector turns relayed purchase order events into fulfillment
// metrics. Wrap it in an idempotent handler so redelivered events count once.
type FulfillmentProjector struct {
	recorder FulfillmentRecorder
	logger   *zap.Logger
}

// NewFulfillmentProjector creates a new FulfillmentProjector
func NewFulfillmentProjector(recorder FulfillmentRecorder, logger *zap.Logger) *FulfillmentProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FulfillmentProjector{recorder: recorder, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (p *FulfillmentProjector) EventTypes() []string {
	return []string{
		procurement.EventTypeDeliveryReceived,
		procurement.EventTypePurchaseOrderCompleted,
		procurement.EventTypePurchaseOrderCancelled,
	}
}

// Handle records the event
func (p *FulfillmentProjector) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *procurement.DeliveryReceivedEvent:
		p.recorder.RecordDelivery(ctx, e.TenantID(), e.Quantity, e.Value)
		p.logger.Debug("delivery projected",
			zap.String("order_id", e.AggregateID().String()),
			zap.String("delivery_id", e.DeliveryID.String()),
			zap.Int("progress_percent", e.ProgressPercent),
		)
	case *procurement.PurchaseOrderCompletedEvent:
		p.recorder.RecordOrderCompleted(ctx, e.TenantID())
		p.logger.Info("purchase order fulfilled",
			zap.String("order_id", e.AggregateID().String()),
			zap.String("po_number", e.PONumber),
			zap.Int("delivery_count", e.DeliveryCount),
		)
	case *procurement.PurchaseOrderCancelledEvent:
		p.recorder.RecordOrderCancelled(ctx, e.TenantID())
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	return nil
}
