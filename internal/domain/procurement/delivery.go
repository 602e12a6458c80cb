package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineReceipt is the exact quantity of one item received in one delivery.
// UnitPrice is copied from the order line when the delivery is recorded.
type LineReceipt struct {
	ItemID    uuid.UUID
	LineNo    int
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// DeliveryRecord is an immutable receiving event against one purchase order.
type DeliveryRecord struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	PurchaseOrderID uuid.UUID
	Sequence        int
	DeliveryDate    time.Time
	InvoiceNumber   string
	Notes           string
	ReceivedBy      string
	LineReceipts    []LineReceipt
	CreatedAt       time.Time
}

// ReceiptLine is one requested line of a delivery.
type ReceiptLine struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
}

// DeliveryInput is what a receiving clerk reports for one delivery.
type DeliveryInput struct {
	DeliveryDate  time.Time
	Lines         []ReceiptLine
	InvoiceNumber string
	Notes         string
	ReceivedBy    string
}

// TotalQuantity sums all line receipts.
func (d *DeliveryRecord) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, lr := range d.LineReceipts {
		total = total.Add(lr.Quantity)
	}
	return total
}

// AttributedQuantity is how much of itemID arrived with delivery d.
// Items not in the delivery contributed nothing.
func AttributedQuantity(d *DeliveryRecord, itemID uuid.UUID) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	for _, lr := range d.LineReceipts {
		if lr.ItemID == itemID {
			return lr.Quantity
		}
	}
	return decimal.Zero
}

// DeliveryValue prices every line receipt at its order-time unit price.
func DeliveryValue(d *DeliveryRecord) decimal.Decimal {
	total := decimal.Zero
	if d == nil {
		return total
	}
	for _, lr := range d.LineReceipts {
		total = total.Add(lr.Quantity.Mul(lr.UnitPrice))
	}
	return total
}

// TimelineEntry is the state of an order right after one delivery.
type TimelineEntry struct {
	Delivery           *DeliveryRecord
	Value              decimal.Decimal
	CumulativeReceived decimal.Decimal
	ProgressPercent    int
}

// BuildTimeline replays deliveries in sequence order and reports cumulative
// progress after each one. deliveries must already be sorted by Sequence.
func BuildTimeline(items []LineItem, deliveries []DeliveryRecord) []TimelineEntry {
	ordered := TotalOrdered(items)
	cumulative := decimal.Zero
	entries := make([]TimelineEntry, 0, len(deliveries))
	for i := range deliveries {
		d := &deliveries[i]
		cumulative = cumulative.Add(d.TotalQuantity())
		entries = append(entries, TimelineEntry{
			Delivery:           d,
			Value:              DeliveryValue(d),
			CumulativeReceived: cumulative,
			ProgressPercent:    percentOf(cumulative, ordered),
		})
	}
	return entries
}
