package procurement

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// TotalOrdered sums ordered quantities.
func TotalOrdered(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Quantity)
	}
	return total
}

// TotalReceived sums received quantities.
func TotalReceived(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].ReceivedQuantity)
	}
	return total
}

// TotalPending sums pending quantities.
func TotalPending(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].PendingQuantity())
	}
	return total
}

// ComputeStatus derives the receiving status from the ledgers of an issued
// order. DRAFT and CANCELLED are never returned; they are set by explicit
// actions.
func ComputeStatus(items []LineItem) PurchaseOrderStatus {
	received := TotalReceived(items)
	switch {
	case received.IsZero():
		return StatusIssued
	case received.Equal(TotalOrdered(items)):
		return StatusCompleted
	default:
		return StatusPartiallyReceived
	}
}

// ProgressPercent is received/ordered as a whole percentage in [0, 100].
// An order with nothing ordered has zero progress.
func ProgressPercent(items []LineItem) int {
	return percentOf(TotalReceived(items), TotalOrdered(items))
}

func percentOf(part, whole decimal.Decimal) int {
	if !whole.IsPositive() {
		return 0
	}
	pct := part.Mul(hundred).Div(whole).Round(0)
	if pct.IsNegative() {
		return 0
	}
	if pct.GreaterThan(hundred) {
		return 100
	}
	return int(pct.IntPart())
}

// OrderValue is the order-time value of all lines.
func OrderValue(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Amount())
	}
	return total
}

// ReceivedValue is the value of everything received so far.
func ReceivedValue(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].ReceivedAmount())
	}
	return total
}
