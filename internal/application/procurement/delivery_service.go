package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/fulfillment/internal/domain/procurement"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryServiceConfig holds receipt processing settings
type DeliveryServiceConfig struct {
	// MaxRetries is how many times a receipt is re-validated and retried
	// after losing an optimistic-lock race. 0 disables retries.
	MaxRetries int
	// IdempotencyTTL is how long an Idempotency-Key is remembered.
	IdempotencyTTL time.Duration
}

// DefaultDeliveryServiceConfig returns the default receipt settings
func DefaultDeliveryServiceConfig() DeliveryServiceConfig {
	return DeliveryServiceConfig{
		MaxRetries:     3,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// DeliveryService records deliveries against purchase orders.
//
// Receipts for one order are serialized inside the process by a per-order
// lock. Writers in other processes are detected by the repository's version
// check; the loser reloads the order and re-validates against the fresh
// pending quantities.
type DeliveryService struct {
	orderRepo    procurement.PurchaseOrderRepository
	deliveryRepo procurement.DeliveryRepository
	idempotency  shared.IdempotencyStore
	metrics      *telemetry.FulfillmentMetrics
	logger       *zap.Logger
	config       DeliveryServiceConfig
	locks        *orderLocks
}

// NewDeliveryService creates a new DeliveryService
func NewDeliveryService(
	orderRepo procurement.PurchaseOrderRepository,
	deliveryRepo procurement.DeliveryRepository,
	config DeliveryServiceConfig,
	logger *zap.Logger,
) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = DefaultDeliveryServiceConfig().IdempotencyTTL
	}
	return &DeliveryService{
		orderRepo:    orderRepo,
		deliveryRepo: deliveryRepo,
		logger:       logger,
		config:       config,
		locks:        newOrderLocks(),
	}
}

// SetIdempotencyStore enables Idempotency-Key handling
func (s *DeliveryService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetMetrics sets the fulfillment metrics collector
func (s *DeliveryService) SetMetrics(m *telemetry.FulfillmentMetrics) {
	s.metrics = m
}

// CreateDelivery validates and books one delivery. Either every line is
// applied together with the delivery record and its events, or nothing is.
func (s *DeliveryService) CreateDelivery(ctx context.Context, tenantID, orderID uuid.UUID, req CreateDeliveryRequest) (*CreateDeliveryResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "delivery", "create",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrOrderID, orderID.String(),
	)
	defer span.End()

	resp, err := s.createDelivery(ctx, tenantID, orderID, req)

	if s.metrics != nil {
		s.metrics.RecordReceipt(ctx, time.Since(start), receiptErrorCode(err))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDeliveryID, resp.Delivery.DeliveryID.String(),
		telemetry.SpanAttrSequence, resp.Delivery.Sequence,
		telemetry.SpanAttrOrderStatus, resp.Order.Status,
	)
	return resp, nil
}

func (s *DeliveryService) createDelivery(ctx context.Context, tenantID, orderID uuid.UUID, req CreateDeliveryRequest) (resp *CreateDeliveryResponse, err error) {
	log := logger.Enrich(ctx, s.logger).With(zap.String("order_id", orderID.String()))

	if req.IdempotencyKey != "" && s.idempotency != nil {
		key := deliveryIdempotencyKey(tenantID, orderID, req.IdempotencyKey)
		acquired, acqErr := s.idempotency.Acquire(ctx, key, s.config.IdempotencyTTL)
		switch {
		case acqErr != nil:
			// Receipts stay correct without the key; the ledger rejects over-receipt.
			log.Warn("Idempotency store unavailable, continuing without key", zap.Error(acqErr))
		case !acquired:
			return nil, shared.ErrDuplicateRequest
		default:
			defer func() {
				if err == nil {
					return
				}
				if relErr := s.idempotency.Release(context.WithoutCancel(ctx), key); relErr != nil {
					log.Warn("Failed to release idempotency key", zap.Error(relErr))
				}
			}()
		}
	}

	unlock, err := s.locks.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	input := req.toInput()
	for attempt := 1; ; attempt++ {
		order, delivery, saveErr := s.tryReceive(ctx, tenantID, orderID, input)
		if saveErr == nil {
			log.Info("Delivery recorded",
				zap.String("delivery_id", delivery.ID.String()),
				zap.Int("sequence", delivery.Sequence),
				zap.String("quantity", delivery.TotalQuantity().String()),
				zap.String("status", string(order.Status)),
				zap.Int("attempt", attempt),
			)
			return &CreateDeliveryResponse{
				Delivery: ToDeliveryResponse(delivery),
				Order:    ToOrderSummaryResponse(order, time.Now()),
			}, nil
		}
		if !errors.Is(saveErr, procurement.ErrConcurrentModification) {
			return nil, saveErr
		}

		if s.metrics != nil {
			s.metrics.RecordReceiptConflict(ctx, attempt)
		}
		if attempt > s.config.MaxRetries {
			log.Warn("Delivery gave up after concurrent modifications", zap.Int("attempts", attempt))
			return nil, saveErr
		}
		log.Debug("Delivery conflicted, retrying with fresh ledger", zap.Int("attempt", attempt))
	}
}

// tryReceive runs one load-validate-save round.
func (s *DeliveryService) tryReceive(ctx context.Context, tenantID, orderID uuid.UUID, input procurement.DeliveryInput) (*procurement.PurchaseOrder, *procurement.DeliveryRecord, error) {
	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return nil, nil, err
	}
	delivery, err := order.RecordDelivery(input)
	if err != nil {
		return nil, nil, err
	}
	events := order.GetDomainEvents()
	order.ClearDomainEvents()
	if err := s.orderRepo.SaveWithDelivery(ctx, order, delivery, events); err != nil {
		return nil, nil, err
	}
	return order, delivery, nil
}

// receiptErrorCode labels a failed receipt; infrastructure errors carry no
// domain code.
func receiptErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := shared.CodeOf(err); code != "" {
		return code
	}
	return "INTERNAL_ERROR"
}

func deliveryIdempotencyKey(tenantID, orderID uuid.UUID, key string) string {
	return fmt.Sprintf("delivery:%s:%s:%s", tenantID, orderID, key)
}

// ListDeliveries returns an order's deliveries in sequence with the
// cumulative progress after each one.
func (s *DeliveryService) ListDeliveries(ctx context.Context, tenantID, orderID uuid.UUID) (*DeliveryTimelineResponse, error) {
	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	deliveries, err := s.deliveryRepo.FindByOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	response := ToTimelineResponse(order, procurement.BuildTimeline(order.Items, deliveries))
	return &response, nil
}

// GetDelivery returns one delivery of an order
func (s *DeliveryService) GetDelivery(ctx context.Context, tenantID, orderID, deliveryID uuid.UUID) (*DeliveryResponse, error) {
	delivery, err := s.deliveryRepo.FindByIDForTenant(ctx, tenantID, deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.PurchaseOrderID != orderID {
		return nil, shared.ErrNotFound
	}
	response := ToDeliveryResponse(delivery)
	return &response, nil
}
