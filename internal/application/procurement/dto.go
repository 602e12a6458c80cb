package procurement

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/procurement"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Purchase Order DTOs ====================

// CreatePurchaseOrderRequest represents a request to create a draft purchase order
type CreatePurchaseOrderRequest struct {
	PONumber             string                         `json:"po_number" binding:"omitempty,max=50"`
	VendorID             uuid.UUID                      `json:"vendor_id" binding:"required"`
	VendorName           string                         `json:"vendor_name" binding:"required,min=1,max=200"`
	OrderDate            *time.Time                     `json:"order_date"`
	ExpectedDeliveryDate *time.Time                     `json:"expected_delivery_date"`
	Remark               string                         `json:"remark" binding:"max=500"`
	Items                []CreatePurchaseOrderItemInput `json:"items" binding:"required,min=1,dive"`
}

// CreatePurchaseOrderItemInput represents a line in the create order request
type CreatePurchaseOrderItemInput struct {
	ItemName  string          `json:"item_name" binding:"required,min=1,max=200"`
	SKU       string          `json:"sku" binding:"omitempty,max=64"`
	Unit      string          `json:"unit" binding:"required,min=1,max=20"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CancelPurchaseOrderRequest represents a request to cancel a purchase order
type CancelPurchaseOrderRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// PurchaseOrderListFilter carries list parameters for one request
type PurchaseOrderListFilter struct {
	Search    string     `form:"search"`
	VendorID  string     `form:"vendor_id" binding:"omitempty,uuid"`
	Status    string     `form:"status" binding:"omitempty,oneof=DRAFT ISSUED PARTIALLY_RECEIVED COMPLETED CANCELLED"`
	Statuses  []string   `form:"statuses"`
	StartDate *time.Time `form:"start_date" time_format:"2006-01-02"`
	EndDate   *time.Time `form:"end_date" time_format:"2006-01-02"`
	Overdue   bool       `form:"overdue"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// OrderItemResponse is the ledger state of one line
type OrderItemResponse struct {
	ItemID           uuid.UUID       `json:"item_id"`
	LineNo           int             `json:"line_no"`
	ItemName         string          `json:"item_name"`
	SKU              string          `json:"sku,omitempty"`
	Unit             string          `json:"unit"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	PendingQuantity  decimal.Decimal `json:"pending_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Amount           decimal.Decimal `json:"amount"`
}

// OrderSummaryResponse is the fulfillment view of a purchase order
type OrderSummaryResponse struct {
	ID                   uuid.UUID           `json:"id"`
	TenantID             uuid.UUID           `json:"tenant_id"`
	PONumber             string              `json:"po_number"`
	VendorID             uuid.UUID           `json:"vendor_id"`
	VendorName           string              `json:"vendor_name"`
	Status               string              `json:"status"`
	OrderDate            time.Time           `json:"order_date"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date,omitempty"`
	Items                []OrderItemResponse `json:"items"`
	TotalOrdered         decimal.Decimal     `json:"total_ordered"`
	TotalReceived        decimal.Decimal     `json:"total_received"`
	TotalPending         decimal.Decimal     `json:"total_pending"`
	ProgressPercent      int                 `json:"progress_percent"`
	OrderValue           decimal.Decimal     `json:"order_value"`
	ReceivedValue        decimal.Decimal     `json:"received_value"`
	Overdue              bool                `json:"overdue"`
	Deliveries           []uuid.UUID         `json:"deliveries"`
	Remark               string              `json:"remark,omitempty"`
	IssuedAt             *time.Time          `json:"issued_at,omitempty"`
	CompletedAt          *time.Time          `json:"completed_at,omitempty"`
	CancelledAt          *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason         string              `json:"cancel_reason,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	Version              int                 `json:"version"`
}

// OrderListItemResponse represents a purchase order in list responses (less detail)
type OrderListItemResponse struct {
	ID                   uuid.UUID       `json:"id"`
	PONumber             string          `json:"po_number"`
	VendorID             uuid.UUID       `json:"vendor_id"`
	VendorName           string          `json:"vendor_name"`
	Status               string          `json:"status"`
	OrderDate            time.Time       `json:"order_date"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date,omitempty"`
	ItemCount            int             `json:"item_count"`
	TotalOrdered         decimal.Decimal `json:"total_ordered"`
	TotalReceived        decimal.Decimal `json:"total_received"`
	ProgressPercent      int             `json:"progress_percent"`
	OrderValue           decimal.Decimal `json:"order_value"`
	Overdue              bool            `json:"overdue"`
	DeliveryCount        int             `json:"delivery_count"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ToOrderSummaryResponse converts a domain order to its summary view as of now
func ToOrderSummaryResponse(order *procurement.PurchaseOrder, now time.Time) OrderSummaryResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i := range order.Items {
		items[i] = ToOrderItemResponse(&order.Items[i])
	}
	deliveries := make([]uuid.UUID, len(order.DeliveryIDs))
	copy(deliveries, order.DeliveryIDs)

	return OrderSummaryResponse{
		ID:                   order.ID,
		TenantID:             order.TenantID,
		PONumber:             order.PONumber,
		VendorID:             order.VendorID,
		VendorName:           order.VendorName,
		Status:               string(order.Status),
		OrderDate:            order.OrderDate,
		ExpectedDeliveryDate: order.ExpectedDeliveryDate,
		Items:                items,
		TotalOrdered:         procurement.TotalOrdered(order.Items),
		TotalReceived:        order.TotalReceived(),
		TotalPending:         order.TotalPending(),
		ProgressPercent:      order.ProgressPercent(),
		OrderValue:           procurement.OrderValue(order.Items),
		ReceivedValue:        procurement.ReceivedValue(order.Items),
		Overdue:              order.IsOverdue(now),
		Deliveries:           deliveries,
		Remark:               order.Remark,
		IssuedAt:             order.IssuedAt,
		CompletedAt:          order.CompletedAt,
		CancelledAt:          order.CancelledAt,
		CancelReason:         order.CancelReason,
		CreatedAt:            order.CreatedAt,
		UpdatedAt:            order.UpdatedAt,
		Version:              order.Version,
	}
}

// ToOrderItemResponse converts a line item to its ledger view
func ToOrderItemResponse(item *procurement.LineItem) OrderItemResponse {
	return OrderItemResponse{
		ItemID:           item.ID,
		LineNo:           item.LineNo,
		ItemName:         item.ItemName,
		SKU:              item.SKU,
		Unit:             item.Unit,
		Quantity:         item.Quantity,
		ReceivedQuantity: item.ReceivedQuantity,
		PendingQuantity:  item.PendingQuantity(),
		UnitPrice:        item.UnitPrice,
		Amount:           item.Amount(),
	}
}

// ToOrderListItemResponses converts a page of orders for list output
func ToOrderListItemResponses(orders []procurement.PurchaseOrder, now time.Time) []OrderListItemResponse {
	responses := make([]OrderListItemResponse, len(orders))
	for i := range orders {
		o := &orders[i]
		responses[i] = OrderListItemResponse{
			ID:                   o.ID,
			PONumber:             o.PONumber,
			VendorID:             o.VendorID,
			VendorName:           o.VendorName,
			Status:               string(o.Status),
			OrderDate:            o.OrderDate,
			ExpectedDeliveryDate: o.ExpectedDeliveryDate,
			ItemCount:            len(o.Items),
			TotalOrdered:         procurement.TotalOrdered(o.Items),
			TotalReceived:        o.TotalReceived(),
			ProgressPercent:      o.ProgressPercent(),
			OrderValue:           procurement.OrderValue(o.Items),
			Overdue:              o.IsOverdue(now),
			DeliveryCount:        len(o.DeliveryIDs),
			CreatedAt:            o.CreatedAt,
			UpdatedAt:            o.UpdatedAt,
		}
	}
	return responses
}

// ==================== Delivery DTOs ====================

// DeliveryItemInput is one received line
type DeliveryItemInput struct {
	ItemID   uuid.UUID       `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

// CreateDeliveryRequest records goods arriving against an order
type CreateDeliveryRequest struct {
	DeliveryDate  time.Time           `json:"delivery_date" binding:"required"`
	Items         []DeliveryItemInput `json:"items" binding:"required,min=1,dive"`
	InvoiceNumber string              `json:"invoice_number" binding:"max=100"`
	Notes         string              `json:"notes" binding:"max=1000"`
	ReceivedBy    string              `json:"received_by" binding:"max=100"`

	// IdempotencyKey comes from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

func (r CreateDeliveryRequest) toInput() procurement.DeliveryInput {
	lines := make([]procurement.ReceiptLine, len(r.Items))
	for i, item := range r.Items {
		lines[i] = procurement.ReceiptLine{ItemID: item.ItemID, Quantity: item.Quantity}
	}
	return procurement.DeliveryInput{
		DeliveryDate:  r.DeliveryDate,
		Lines:         lines,
		InvoiceNumber: r.InvoiceNumber,
		Notes:         r.Notes,
		ReceivedBy:    r.ReceivedBy,
	}
}

// LineReceiptResponse is the exact quantity of one item in one delivery
type LineReceiptResponse struct {
	ItemID    uuid.UUID       `json:"item_id"`
	LineNo    int             `json:"line_no"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Value     decimal.Decimal `json:"value"`
}

// DeliveryResponse is the detail of one delivery
type DeliveryResponse struct {
	DeliveryID    uuid.UUID             `json:"delivery_id"`
	POID          uuid.UUID             `json:"po_id"`
	Sequence      int                   `json:"sequence"`
	DeliveryDate  time.Time             `json:"delivery_date"`
	LineReceipts  []LineReceiptResponse `json:"line_receipts"`
	TotalQuantity decimal.Decimal       `json:"total_quantity"`
	Value         decimal.Decimal       `json:"value"`
	InvoiceNumber string                `json:"invoice_number"`
	Notes         string                `json:"notes"`
	ReceivedBy    string                `json:"received_by,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// CreateDeliveryResponse is returned after a delivery is recorded
type CreateDeliveryResponse struct {
	Delivery DeliveryResponse     `json:"delivery"`
	Order    OrderSummaryResponse `json:"order"`
}

// TimelineEntryResponse is one delivery with the order progress right after it
type TimelineEntryResponse struct {
	DeliveryResponse
	CumulativeReceived decimal.Decimal `json:"cumulative_received"`
	ProgressPercent    int             `json:"progress_percent"`
}

// DeliveryTimelineResponse lists an order's deliveries in sequence order
type DeliveryTimelineResponse struct {
	OrderID    uuid.UUID               `json:"order_id"`
	PONumber   string                  `json:"po_number"`
	Deliveries []TimelineEntryResponse `json:"deliveries"`
}

// ToDeliveryResponse converts a domain delivery record to its detail view
func ToDeliveryResponse(d *procurement.DeliveryRecord) DeliveryResponse {
	lines := make([]LineReceiptResponse, len(d.LineReceipts))
	for i, lr := range d.LineReceipts {
		lines[i] = LineReceiptResponse{
			ItemID:    lr.ItemID,
			LineNo:    lr.LineNo,
			Quantity:  lr.Quantity,
			UnitPrice: lr.UnitPrice,
			Value:     lr.Quantity.Mul(lr.UnitPrice),
		}
	}
	return DeliveryResponse{
		DeliveryID:    d.ID,
		POID:          d.PurchaseOrderID,
		Sequence:      d.Sequence,
		DeliveryDate:  d.DeliveryDate,
		LineReceipts:  lines,
		TotalQuantity: d.TotalQuantity(),
		Value:         procurement.DeliveryValue(d),
		InvoiceNumber: d.InvoiceNumber,
		Notes:         d.Notes,
		ReceivedBy:    d.ReceivedBy,
		CreatedAt:     d.CreatedAt,
	}
}

// ToTimelineResponse converts a replayed timeline
func ToTimelineResponse(order *procurement.PurchaseOrder, entries []procurement.TimelineEntry) DeliveryTimelineResponse {
	out := make([]TimelineEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = TimelineEntryResponse{
			DeliveryResponse:   ToDeliveryResponse(e.Delivery),
			CumulativeReceived: e.CumulativeReceived,
			ProgressPercent:    e.ProgressPercent,
		}
	}
	return DeliveryTimelineResponse{
		OrderID:    order.ID,
		PONumber:   order.PONumber,
		Deliveries: out,
	}
}

// ==================== Overdue DTOs ====================

// OverdueScanResult summarizes one overdue scan
type OverdueScanResult struct {
	AsOf      time.Time               `json:"as_of"`
	Total     int                     `json:"total"`
	ByTenant  map[uuid.UUID]int       `json:"by_tenant"`
	Orders    []OrderListItemResponse `json:"orders"`
	Truncated bool                    `json:"truncated"`
}
