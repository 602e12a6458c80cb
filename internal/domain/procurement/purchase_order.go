package procurement

import (
	"errors"
	"fmt"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrder is a commitment to buy items from a vendor and the ledger of
// everything received against it.
//
// Status is DRAFT or CANCELLED when set by an explicit action, otherwise it
// is always ComputeStatus(Items) and is recomputed on every receipt.
type PurchaseOrder struct {
	shared.TenantAggregateRoot
	PONumber             string
	VendorID             uuid.UUID
	VendorName           string
	OrderDate            time.Time
	ExpectedDeliveryDate *time.Time
	Items                []LineItem
	Status               PurchaseOrderStatus
	DeliveryIDs          []uuid.UUID
	Remark               string
	IssuedAt             *time.Time
	CompletedAt          *time.Time
	CancelledAt          *time.Time
	CancelReason         string
}

// NewPurchaseOrder creates an empty DRAFT order.
func NewPurchaseOrder(tenantID uuid.UUID, poNumber string, vendorID uuid.UUID, vendorName string, orderDate time.Time) (*PurchaseOrder, error) {
	if poNumber == "" {
		return nil, shared.NewDomainError(CodeInvalidOrderNumber, "PO number cannot be empty")
	}
	if len(poNumber) > 50 {
		return nil, shared.NewDomainError(CodeInvalidOrderNumber, "PO number cannot exceed 50 characters")
	}
	if vendorID == uuid.Nil {
		return nil, shared.NewDomainError(CodeInvalidVendor, "Vendor ID cannot be empty")
	}
	if vendorName == "" {
		return nil, shared.NewDomainError(CodeInvalidVendor, "Vendor name cannot be empty")
	}
	if orderDate.IsZero() {
		orderDate = time.Now()
	}

	return &PurchaseOrder{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PONumber:            poNumber,
		VendorID:            vendorID,
		VendorName:          vendorName,
		OrderDate:           orderDate,
		Items:               make([]LineItem, 0),
		Status:              StatusDraft,
		DeliveryIDs:         make([]uuid.UUID, 0),
	}, nil
}

// AddItem appends a line. Only allowed while DRAFT.
func (o *PurchaseOrder) AddItem(itemName, sku, unit string, quantity, unitPrice decimal.Decimal) (*LineItem, error) {
	if o.Status != StatusDraft {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add items to a non-draft order")
	}
	if sku != "" {
		for i := range o.Items {
			if o.Items[i].SKU == sku {
				return nil, shared.NewDomainError(CodeDuplicateItem, fmt.Sprintf("SKU %s is already on this order", sku))
			}
		}
	}

	item, err := NewLineItem(o.ID, len(o.Items)+1, itemName, sku, unit, quantity, unitPrice)
	if err != nil {
		return nil, err
	}
	o.Items = append(o.Items, *item)
	o.Touch()
	return &o.Items[len(o.Items)-1], nil
}

// SetExpectedDeliveryDate sets or clears the date goods are due.
func (o *PurchaseOrder) SetExpectedDeliveryDate(date *time.Time) error {
	if o.Status == StatusCompleted || o.Status == StatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot change the expected date of a closed order")
	}
	if date != nil && dayOf(*date).Before(dayOf(o.OrderDate)) {
		return shared.NewDomainError(CodeInvalidDeliveryDate, "Expected delivery date cannot be before the order date")
	}
	o.ExpectedDeliveryDate = date
	o.Touch()
	return nil
}

func (o *PurchaseOrder) SetRemark(remark string) {
	o.Remark = remark
	o.Touch()
}

// Issue sends a draft to the vendor. From here on lines are frozen.
func (o *PurchaseOrder) Issue() error {
	if o.Status != StatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot issue an order in %s status", o.Status))
	}
	if len(o.Items) == 0 {
		return shared.NewDomainError(CodeEmptyOrder, "Cannot issue an order without items")
	}

	now := time.Now()
	o.Status = StatusIssued
	o.IssuedAt = &now
	o.Touch()
	o.AddDomainEvent(NewPurchaseOrderIssuedEvent(o))
	return nil
}

// Cancel closes an order that has not received anything.
func (o *PurchaseOrder) Cancel(reason string) error {
	if o.Status != StatusDraft && o.Status != StatusIssued {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel an order in %s status", o.Status))
	}
	if TotalReceived(o.Items).IsPositive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel an order that has received goods")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}
	if len(reason) > 500 {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason cannot exceed 500 characters")
	}

	previous := o.Status
	now := time.Now()
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.CancelReason = reason
	o.Touch()
	o.AddDomainEvent(NewPurchaseOrderCancelledEvent(o, previous))
	return nil
}

// CanDelete is true only for drafts, which never have deliveries.
func (o *PurchaseOrder) CanDelete() bool {
	return o.Status == StatusDraft && len(o.DeliveryIDs) == 0
}

// ReceiveItem books qty against a single line and recomputes status.
func (o *PurchaseOrder) ReceiveItem(itemID uuid.UUID, qty decimal.Decimal) error {
	if !o.Status.CanReceive() {
		return notReceivable(o.Status)
	}
	item := o.Item(itemID)
	if item == nil {
		return shared.NewDomainError(CodeItemNotFound, "Order item not found")
	}
	if err := item.Receive(qty); err != nil {
		return err
	}
	o.recomputeAfterReceipt()
	return nil
}

// RecordDelivery validates every line of in against current pending
// quantities and, only if all pass, applies them and returns the new
// delivery. On error the order is left untouched.
func (o *PurchaseOrder) RecordDelivery(in DeliveryInput) (*DeliveryRecord, error) {
	if !o.Status.CanReceive() {
		return nil, notReceivable(o.Status)
	}
	if in.DeliveryDate.IsZero() {
		return nil, shared.NewDomainError(CodeInvalidDeliveryDate, "Delivery date is required")
	}
	if len(in.InvoiceNumber) > 100 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invoice number cannot exceed 100 characters")
	}

	accepted, err := o.validateReceipt(in.Lines)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	delivery := &DeliveryRecord{
		ID:              uuid.New(),
		TenantID:        o.TenantID,
		PurchaseOrderID: o.ID,
		Sequence:        len(o.DeliveryIDs) + 1,
		DeliveryDate:    in.DeliveryDate,
		InvoiceNumber:   in.InvoiceNumber,
		Notes:           in.Notes,
		ReceivedBy:      in.ReceivedBy,
		LineReceipts:    make([]LineReceipt, 0, len(accepted)),
		CreatedAt:       now,
	}
	for _, line := range accepted {
		item := o.Item(line.ItemID)
		if err := item.Receive(line.Quantity); err != nil {
			// unreachable after validateReceipt
			return nil, err
		}
		delivery.LineReceipts = append(delivery.LineReceipts, LineReceipt{
			ItemID:    item.ID,
			LineNo:    item.LineNo,
			Quantity:  line.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	o.DeliveryIDs = append(o.DeliveryIDs, delivery.ID)
	completed := o.recomputeAfterReceipt()
	o.AddDomainEvent(NewDeliveryReceivedEvent(o, delivery))
	if completed {
		o.AddDomainEvent(NewPurchaseOrderCompletedEvent(o))
	}
	return delivery, nil
}

// validateReceipt returns the positive lines of a receipt or every problem
// found with it.
func (o *PurchaseOrder) validateReceipt(lines []ReceiptLine) ([]ReceiptLine, error) {
	var violations []LineViolation
	accepted := make([]ReceiptLine, 0, len(lines))
	seen := make(map[uuid.UUID]struct{}, len(lines))

	for _, line := range lines {
		if _, dup := seen[line.ItemID]; dup {
			violations = append(violations, LineViolation{
				ItemID:  line.ItemID.String(),
				Code:    CodeDuplicateItem,
				Message: "Item appears more than once in the delivery",
			})
			continue
		}
		seen[line.ItemID] = struct{}{}

		item := o.Item(line.ItemID)
		if item == nil {
			violations = append(violations, LineViolation{
				ItemID:  line.ItemID.String(),
				Code:    CodeItemNotFound,
				Message: "Item is not part of this purchase order",
			})
			continue
		}
		if line.Quantity.IsNegative() {
			violations = append(violations, LineViolation{
				ItemID:  item.ID.String(),
				SKU:     item.SKU,
				Code:    CodeInvalidQuantity,
				Message: fmt.Sprintf("Quantity for %s cannot be negative", item.label()),
			})
			continue
		}
		if line.Quantity.IsZero() {
			continue
		}
		if err := item.CheckReceivable(line.Quantity); err != nil {
			var de *shared.DomainError
			if !errors.As(err, &de) {
				return nil, err
			}
			violations = append(violations, LineViolation{
				ItemID:  item.ID.String(),
				SKU:     item.SKU,
				Code:    de.Code,
				Message: de.Message,
			})
			continue
		}
		accepted = append(accepted, line)
	}

	if len(violations) > 0 {
		return nil, newReceiptError(violations)
	}
	if len(accepted) == 0 {
		return nil, shared.NewDomainError(CodeNoQuantityProvided, "Please enter a quantity for at least one item")
	}
	return accepted, nil
}

// recomputeAfterReceipt derives status from the ledgers and reports whether
// this receipt completed the order.
func (o *PurchaseOrder) recomputeAfterReceipt() bool {
	before := o.Status
	o.RecomputeStatus()
	o.Touch()
	if o.Status == StatusCompleted && before != StatusCompleted {
		now := time.Now()
		o.CompletedAt = &now
		return true
	}
	return false
}

// RecomputeStatus refreshes a derived status from the item ledgers.
func (o *PurchaseOrder) RecomputeStatus() {
	if o.Status.IsExogenous() {
		return
	}
	o.Status = ComputeStatus(o.Items)
}

// Item returns the line with the given ID, or nil.
func (o *PurchaseOrder) Item(itemID uuid.UUID) *LineItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// IsOverdue reports whether goods are still expected after the expected
// delivery day has passed.
func (o *PurchaseOrder) IsOverdue(now time.Time) bool {
	if !o.Status.IsOpen() || o.ExpectedDeliveryDate == nil {
		return false
	}
	return dayOf(now).After(dayOf(*o.ExpectedDeliveryDate))
}

func (o *PurchaseOrder) ProgressPercent() int { return ProgressPercent(o.Items) }

func (o *PurchaseOrder) TotalReceived() decimal.Decimal { return TotalReceived(o.Items) }

func (o *PurchaseOrder) TotalPending() decimal.Decimal { return TotalPending(o.Items) }

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
