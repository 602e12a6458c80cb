package procurement

import (
	"fmt"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuantityScale is the number of decimal places stored for quantities and
// prices. Finer values would be rounded by the database and break the ledger.
const QuantityScale int32 = 4

func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(QuantityScale))
}

// LineItem is one ordered product of a purchase order and its receipt ledger.
// Quantity and UnitPrice are fixed once the order leaves DRAFT.
type LineItem struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	LineNo           int
	ItemName         string
	SKU              string
	Unit             string
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	ReceivedQuantity decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewLineItem validates and creates an order line.
func NewLineItem(orderID uuid.UUID, lineNo int, itemName, sku, unit string, quantity, unitPrice decimal.Decimal) (*LineItem, error) {
	if itemName == "" {
		return nil, shared.NewDomainError(CodeInvalidItem, "Item name cannot be empty")
	}
	if len(itemName) > 200 {
		return nil, shared.NewDomainError(CodeInvalidItem, "Item name cannot exceed 200 characters")
	}
	if len(sku) > 64 {
		return nil, shared.NewDomainError(CodeInvalidItem, "SKU cannot exceed 64 characters")
	}
	if unit == "" {
		return nil, shared.NewDomainError(CodeInvalidItem, "Unit cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidQuantity, "Ordered quantity must be positive")
	}
	if !fitsScale(quantity) {
		return nil, shared.NewDomainError(CodeInvalidQuantity, "Ordered quantity cannot have more than 4 decimal places")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError(CodeInvalidPrice, "Unit price cannot be negative")
	}
	if !fitsScale(unitPrice) {
		return nil, shared.NewDomainError(CodeInvalidPrice, "Unit price cannot have more than 4 decimal places")
	}

	now := time.Now()
	return &LineItem{
		ID:               uuid.New(),
		OrderID:          orderID,
		LineNo:           lineNo,
		ItemName:         itemName,
		SKU:              sku,
		Unit:             unit,
		Quantity:         quantity,
		UnitPrice:        unitPrice,
		ReceivedQuantity: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// PendingQuantity is the ordered quantity not yet received.
func (i *LineItem) PendingQuantity() decimal.Decimal {
	return i.Quantity.Sub(i.ReceivedQuantity)
}

// Amount is the order-time value of the line.
func (i *LineItem) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// ReceivedAmount is the value of what has arrived so far.
func (i *LineItem) ReceivedAmount() decimal.Decimal {
	return i.ReceivedQuantity.Mul(i.UnitPrice)
}

func (i *LineItem) IsFullyReceived() bool {
	return i.PendingQuantity().IsZero()
}

// CheckReceivable reports whether qty could be received right now without
// changing anything.
func (i *LineItem) CheckReceivable(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewDomainError(CodeInvalidQuantity, "Receive quantity must be positive")
	}
	if !fitsScale(qty) {
		return shared.NewDomainError(CodeInvalidQuantity,
			fmt.Sprintf("Quantity for %s cannot have more than 4 decimal places", i.label()))
	}
	if qty.GreaterThan(i.PendingQuantity()) {
		return exceedsPending(i, qty)
	}
	return nil
}

// Receive books qty against the line. Over-receipt is rejected, never clamped.
func (i *LineItem) Receive(qty decimal.Decimal) error {
	if err := i.CheckReceivable(qty); err != nil {
		return err
	}
	i.ReceivedQuantity = i.ReceivedQuantity.Add(qty)
	i.UpdatedAt = time.Now()
	return nil
}

func (i *LineItem) label() string {
	if i.SKU != "" {
		return i.SKU
	}
	return i.ItemName
}
