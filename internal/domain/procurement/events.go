package procurement

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateTypePurchaseOrder = "PurchaseOrder"

const (
	EventTypePurchaseOrderCreated   = "PurchaseOrderCreated"
	EventTypePurchaseOrderIssued    = "PurchaseOrderIssued"
	EventTypeDeliveryReceived       = "DeliveryReceived"
	EventTypePurchaseOrderCompleted = "PurchaseOrderCompleted"
	EventTypePurchaseOrderCancelled = "PurchaseOrderCancelled"
)

// PurchaseOrderCreatedEvent is raised when a draft order is created
type PurchaseOrderCreatedEvent struct {
	shared.BaseDomainEvent
	PONumber   string    `json:"po_number"`
	VendorID   uuid.UUID `json:"vendor_id"`
	VendorName string    `json:"vendor_name"`
	ItemCount  int       `json:"item_count"`
}

func NewPurchaseOrderCreatedEvent(o *PurchaseOrder) *PurchaseOrderCreatedEvent {
	return &PurchaseOrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderCreated, AggregateTypePurchaseOrder, o.ID, o.TenantID),
		PONumber:        o.PONumber,
		VendorID:        o.VendorID,
		VendorName:      o.VendorName,
		ItemCount:       len(o.Items),
	}
}

// PurchaseOrderIssuedEvent is raised when an order is sent to the vendor
type PurchaseOrderIssuedEvent struct {
	shared.BaseDomainEvent
	PONumber             string          `json:"po_number"`
	VendorID             uuid.UUID       `json:"vendor_id"`
	TotalOrdered         decimal.Decimal `json:"total_ordered"`
	OrderValue           decimal.Decimal `json:"order_value"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date,omitempty"`
}

func NewPurchaseOrderIssuedEvent(o *PurchaseOrder) *PurchaseOrderIssuedEvent {
	return &PurchaseOrderIssuedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypePurchaseOrderIssued, AggregateTypePurchaseOrder, o.ID, o.TenantID),
		PONumber:             o.PONumber,
		VendorID:             o.VendorID,
		TotalOrdered:         TotalOrdered(o.Items),
		OrderValue:           OrderValue(o.Items),
		ExpectedDeliveryDate: o.ExpectedDeliveryDate,
	}
}

// DeliveryLineInfo is a line receipt as carried in events
type DeliveryLineInfo struct {
	ItemID    uuid.UUID       `json:"item_id"`
	SKU       string          `json:"sku"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// DeliveryReceivedEvent is raised for every recorded delivery
type DeliveryReceivedEvent struct {
	shared.BaseDomainEvent
	DeliveryID      uuid.UUID           `json:"delivery_id"`
	PONumber        string              `json:"po_number"`
	Sequence        int                 `json:"sequence"`
	DeliveryDate    time.Time           `json:"delivery_date"`
	Lines           []DeliveryLineInfo  `json:"lines"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Value           decimal.Decimal     `json:"value"`
	Status          PurchaseOrderStatus `json:"status"`
	ProgressPercent int                 `json:"progress_percent"`
}

func NewDeliveryReceivedEvent(o *PurchaseOrder, d *DeliveryRecord) *DeliveryReceivedEvent {
	lines := make([]DeliveryLineInfo, len(d.LineReceipts))
	for i, lr := range d.LineReceipts {
		info := DeliveryLineInfo{ItemID: lr.ItemID, Quantity: lr.Quantity, UnitPrice: lr.UnitPrice}
		if item := o.Item(lr.ItemID); item != nil {
			info.SKU = item.SKU
		}
		lines[i] = info
	}
	return &DeliveryReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryReceived, AggregateTypePurchaseOrder, o.ID, o.TenantID),
		DeliveryID:      d.ID,
		PONumber:        o.PONumber,
		Sequence:        d.Sequence,
		DeliveryDate:    d.DeliveryDate,
		Lines:           lines,
		Quantity:        d.TotalQuantity(),
		Value:           DeliveryValue(d),
		Status:          o.Status,
		ProgressPercent: ProgressPercent(o.Items),
	}
}

// PurchaseOrderCompletedEvent is raised when the last pending quantity arrives
type PurchaseOrderCompletedEvent struct {
	shared.BaseDomainEvent
	PONumber      string          `json:"po_number"`
	DeliveryCount int             `json:"delivery_count"`
	TotalReceived decimal.Decimal `json:"total_received"`
	CompletedAt   time.Time       `json:"completed_at"`
}

func NewPurchaseOrderCompletedEvent(o *PurchaseOrder) *PurchaseOrderCompletedEvent {
	ev := &PurchaseOrderCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderCompleted, AggregateTypePurchaseOrder, o.ID, o.TenantID),
		PONumber:        o.PONumber,
		DeliveryCount:   len(o.DeliveryIDs),
		TotalReceived:   TotalReceived(o.Items),
	}
	if o.CompletedAt != nil {
		ev.CompletedAt = *o.CompletedAt
	}
	return ev
}

// PurchaseOrderCancelledEvent is raised when an order is cancelled
type PurchaseOrderCancelledEvent struct {
	shared.BaseDomainEvent
	PONumber       string              `json:"po_number"`
	PreviousStatus PurchaseOrderStatus `json:"previous_status"`
	Reason         string              `json:"reason"`
}

func NewPurchaseOrderCancelledEvent(o *PurchaseOrder, previous PurchaseOrderStatus) *PurchaseOrderCancelledEvent {
	return &PurchaseOrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderCancelled, AggregateTypePurchaseOrder, o.ID, o.TenantID),
		PONumber:        o.PONumber,
		PreviousStatus:  previous,
		Reason:          o.CancelReason,
	}
}
