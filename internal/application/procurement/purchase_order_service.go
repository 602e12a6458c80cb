package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/procurement"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultOrderNumberPrefix is used when no prefix is configured.
const DefaultOrderNumberPrefix = "PO"

const maxOrderNumberAttempts = 5

// PurchaseOrderService handles purchase order lifecycle operations
type PurchaseOrderService struct {
	orderRepo procurement.PurchaseOrderRepository
	logger    *zap.Logger
	prefix    string
	now       func() time.Time
}

// NewPurchaseOrderService creates a new PurchaseOrderService
func NewPurchaseOrderService(orderRepo procurement.PurchaseOrderRepository, logger *zap.Logger) *PurchaseOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseOrderService{
		orderRepo: orderRepo,
		logger:    logger,
		prefix:    DefaultOrderNumberPrefix,
		now:       time.Now,
	}
}

// SetOrderNumberPrefix sets the prefix of generated PO numbers
func (s *PurchaseOrderService) SetOrderNumberPrefix(prefix string) {
	if prefix != "" {
		s.prefix = prefix
	}
}

// Create creates a draft purchase order. A PO number is generated when the
// request does not carry one.
func (s *PurchaseOrderService) Create(ctx context.Context, tenantID uuid.UUID, req CreatePurchaseOrderRequest) (*OrderSummaryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "purchase_order", "create",
		telemetry.SpanAttrTenantID, tenantID.String())
	defer span.End()

	now := s.now()
	requested := strings.TrimSpace(req.PONumber)

	var order *procurement.PurchaseOrder
	for attempt := 1; ; attempt++ {
		poNumber, err := s.resolveOrderNumber(ctx, tenantID, requested, now)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		order, err = s.buildOrder(tenantID, poNumber, req, now)
		if err != nil {
			return nil, err
		}

		events := order.GetDomainEvents()
		order.ClearDomainEvents()
		err = s.orderRepo.Create(ctx, order, events)
		if err == nil {
			break
		}
		// A generated number can be taken by a concurrent create between
		// generation and insert; draw a fresh one.
		if requested == "" && errors.Is(err, shared.ErrAlreadyExists) && attempt < maxOrderNumberAttempts {
			logger.Enrich(ctx, s.logger).Debug("Generated PO number taken, retrying",
				zap.String("po_number", poNumber),
				zap.Int("attempt", attempt),
			)
			continue
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, order.ID.String(),
		telemetry.SpanAttrOrderNumber, order.PONumber,
	)
	logger.Enrich(ctx, s.logger).Info("Purchase order created",
		zap.String("order_id", order.ID.String()),
		zap.String("po_number", order.PONumber),
		zap.Int("item_count", len(order.Items)),
	)

	response := ToOrderSummaryResponse(order, now)
	return &response, nil
}

func (s *PurchaseOrderService) resolveOrderNumber(ctx context.Context, tenantID uuid.UUID, requested string, now time.Time) (string, error) {
	if requested == "" {
		return s.orderRepo.GenerateOrderNumber(ctx, tenantID, s.prefix, now)
	}
	exists, err := s.orderRepo.ExistsByPONumber(ctx, tenantID, requested)
	if err != nil {
		return "", err
	}
	if exists {
		return "", shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Purchase order number %s already exists", requested))
	}
	return requested, nil
}

func (s *PurchaseOrderService) buildOrder(tenantID uuid.UUID, poNumber string, req CreatePurchaseOrderRequest, now time.Time) (*procurement.PurchaseOrder, error) {
	orderDate := now
	if req.OrderDate != nil {
		orderDate = *req.OrderDate
	}

	order, err := procurement.NewPurchaseOrder(tenantID, poNumber, req.VendorID, req.VendorName, orderDate)
	if err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		if _, err := order.AddItem(item.ItemName, item.SKU, item.Unit, item.Quantity, item.UnitPrice); err != nil {
			return nil, err
		}
	}
	if req.ExpectedDeliveryDate != nil {
		if err := order.SetExpectedDeliveryDate(req.ExpectedDeliveryDate); err != nil {
			return nil, err
		}
	}
	if req.Remark != "" {
		order.SetRemark(req.Remark)
	}
	order.AddDomainEvent(procurement.NewPurchaseOrderCreatedEvent(order))
	return order, nil
}

// GetSummary returns the fulfillment summary of an order
func (s *PurchaseOrderService) GetSummary(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderSummaryResponse, error) {
	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	response := ToOrderSummaryResponse(order, s.now())
	return &response, nil
}

// List retrieves purchase orders with filtering and pagination
func (s *PurchaseOrderService) List(ctx context.Context, tenantID uuid.UUID, filter PurchaseOrderListFilter) ([]OrderListItemResponse, int64, error) {
	now := s.now()
	domainFilter, err := s.toOrderFilter(filter, now)
	if err != nil {
		return nil, 0, err
	}

	orders, err := s.orderRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orderRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToOrderListItemResponses(orders, now), total, nil
}

func (s *PurchaseOrderService) toOrderFilter(filter PurchaseOrderListFilter, now time.Time) (procurement.OrderFilter, error) {
	base := shared.DefaultFilter()
	if filter.Page > 0 {
		base.Page = filter.Page
	}
	if filter.PageSize > 0 {
		base.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		base.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		base.OrderDir = filter.OrderDir
	}
	base.Search = filter.Search

	out := procurement.OrderFilter{
		Filter:       base.Normalize(),
		OrderDateGTE: filter.StartDate,
		OrderDateLTE: filter.EndDate,
	}

	statuses := filter.Statuses
	if filter.Status != "" {
		statuses = append(statuses, filter.Status)
	}
	for _, raw := range statuses {
		status := procurement.PurchaseOrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if !status.IsValid() {
			return out, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown purchase order status %q", raw))
		}
		out.Status = append(out.Status, status)
	}

	if filter.VendorID != "" {
		vendorID, err := uuid.Parse(filter.VendorID)
		if err != nil {
			return out, shared.NewDomainError("INVALID_INPUT", "Invalid vendor ID")
		}
		out.VendorID = &vendorID
	}
	if filter.Overdue {
		out.OverdueAt = &now
	}
	return out, nil
}

// Issue sends a draft order to the vendor
func (s *PurchaseOrderService) Issue(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderSummaryResponse, error) {
	return s.transition(ctx, tenantID, orderID, "issue", func(order *procurement.PurchaseOrder) error {
		return order.Issue()
	})
}

// Cancel cancels an order that has not received any goods
func (s *PurchaseOrderService) Cancel(ctx context.Context, tenantID, orderID uuid.UUID, req CancelPurchaseOrderRequest) (*OrderSummaryResponse, error) {
	return s.transition(ctx, tenantID, orderID, "cancel", func(order *procurement.PurchaseOrder) error {
		return order.Cancel(req.Reason)
	})
}

// transition loads an order, applies a state change and saves it with its
// events under the optimistic lock.
func (s *PurchaseOrderService) transition(ctx context.Context, tenantID, orderID uuid.UUID, action string, apply func(*procurement.PurchaseOrder) error) (*OrderSummaryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "purchase_order", action,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrOrderID, orderID.String(),
	)
	defer span.End()

	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if err := apply(order); err != nil {
		return nil, err
	}

	events := order.GetDomainEvents()
	order.ClearDomainEvents()
	if err := s.orderRepo.SaveWithLock(ctx, order, events); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrOrderStatus, string(order.Status))
	logger.Enrich(ctx, s.logger).Info("Purchase order updated",
		zap.String("action", action),
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
	)
	response := ToOrderSummaryResponse(order, s.now())
	return &response, nil
}

// Delete deletes a purchase order (only allowed in DRAFT status)
func (s *PurchaseOrderService) Delete(ctx context.Context, tenantID, orderID uuid.UUID) error {
	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return err
	}
	if !order.CanDelete() {
		return shared.NewDomainError("INVALID_STATE", "Only draft orders can be deleted")
	}
	return s.orderRepo.DeleteForTenant(ctx, tenantID, orderID)
}
