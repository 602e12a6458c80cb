package procurement

import (
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Error codes raised by the procurement context.
const (
	CodeExceedsPendingQuantity = "EXCEEDS_PENDING_QUANTITY"
	CodeNoQuantityProvided     = "NO_QUANTITY_PROVIDED"
	CodeOrderNotReceivable     = "ORDER_NOT_RECEIVABLE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeInvalidQuantity        = "INVALID_QUANTITY"
	CodeInvalidPrice           = "INVALID_PRICE"
	CodeItemNotFound           = "ITEM_NOT_FOUND"
	CodeDuplicateItem          = "DUPLICATE_ITEM"
	CodeInvalidDeliveryDate    = "INVALID_DELIVERY_DATE"
	CodeInvalidOrderNumber     = "INVALID_ORDER_NUMBER"
	CodeInvalidVendor          = "INVALID_VENDOR"
	CodeInvalidItem            = "INVALID_ITEM"
	CodeEmptyOrder             = "EMPTY_ORDER"
)

// ErrConcurrentModification is returned when the stored order version moved
// underneath a guarded write. Callers retry with fresh pending values.
var ErrConcurrentModification = shared.NewDomainError(CodeConcurrentModification,
	"The purchase order has been modified by another request")

// LineViolation describes why one line of a receipt was rejected.
type LineViolation struct {
	ItemID  string `json:"item_id"`
	SKU     string `json:"sku,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReceiptError reports every rejected line of a delivery. Its code is the
// code of the first violation.
type ReceiptError struct {
	*shared.DomainError
	Lines []LineViolation
}

func (e *ReceiptError) Unwrap() error { return e.DomainError }

func newReceiptError(lines []LineViolation) *ReceiptError {
	first := lines[0]
	msg := first.Message
	if len(lines) > 1 {
		msg = fmt.Sprintf("%s (and %d more line errors)", first.Message, len(lines)-1)
	}
	return &ReceiptError{
		DomainError: shared.NewDomainError(first.Code, msg),
		Lines:       lines,
	}
}

func exceedsPending(item *LineItem, qty decimal.Decimal) *shared.DomainError {
	return shared.NewDomainError(CodeExceedsPendingQuantity,
		fmt.Sprintf("Cannot receive %s of %s, only %s pending", qty.String(), item.label(), item.PendingQuantity().String()))
}

func notReceivable(status PurchaseOrderStatus) *shared.DomainError {
	return shared.NewDomainError(CodeOrderNotReceivable,
		fmt.Sprintf("Cannot receive deliveries for an order in %s status", status))
}
