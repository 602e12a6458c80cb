package procurement

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func createTestPurchaseOrder(t *testing.T) *PurchaseOrder {
	t.Helper()
	order, err := NewPurchaseOrder(uuid.New(), "PO-20240101-0001", uuid.New(), "Acme Textiles", time.Now())
	require.NoError(t, err)
	return order
}

func addTestItem(t *testing.T, order *PurchaseOrder, sku string, qty, price int64) *LineItem {
	t.Helper()
	item, err := order.AddItem("Cotton "+sku, sku, "m", dec(qty), dec(price))
	require.NoError(t, err)
	return item
}

// createIssuedOrder returns an issued order with one line per quantity, priced at 50.
func createIssuedOrder(t *testing.T, quantities ...int64) *PurchaseOrder {
	t.Helper()
	order := createTestPurchaseOrder(t)
	for i, q := range quantities {
		addTestItem(t, order, "SKU-"+string(rune('A'+i)), q, 50)
	}
	require.NoError(t, order.Issue())
	order.ClearDomainEvents()
	return order
}

func receive(order *PurchaseOrder, pairs ...any) (*DeliveryRecord, error) {
	lines := make([]ReceiptLine, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		lines = append(lines, ReceiptLine{ItemID: pairs[i].(uuid.UUID), Quantity: dec(int64(pairs[i+1].(int)))})
	}
	return order.RecordDelivery(DeliveryInput{DeliveryDate: time.Now(), Lines: lines})
}

func assertLedgerBalanced(t *testing.T, order *PurchaseOrder) {
	t.Helper()
	for _, item := range order.Items {
		assert.True(t, item.ReceivedQuantity.Add(item.PendingQuantity()).Equal(item.Quantity),
			"received + pending must equal ordered for %s", item.SKU)
		assert.False(t, item.PendingQuantity().IsNegative(), "pending must never be negative for %s", item.SKU)
	}
}

// ============================================
// Construction and lifecycle
// ============================================

func TestNewPurchaseOrder_Validation(t *testing.T) {
	tests := []struct {
		name       string
		poNumber   string
		vendorID   uuid.UUID
		vendorName string
		wantCode   string
	}{
		{"empty number", "", uuid.New(), "Acme", CodeInvalidOrderNumber},
		{"long number", string(make([]byte, 51)), uuid.New(), "Acme", CodeInvalidOrderNumber},
		{"nil vendor", "PO-1", uuid.Nil, "Acme", CodeInvalidVendor},
		{"empty vendor name", "PO-1", uuid.New(), "", CodeInvalidVendor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPurchaseOrder(uuid.New(), tt.poNumber, tt.vendorID, tt.vendorName, time.Now())
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, shared.CodeOf(err))
		})
	}
}

func TestNewPurchaseOrder_StartsAsDraft(t *testing.T) {
	order := createTestPurchaseOrder(t)
	assert.Equal(t, StatusDraft, order.Status)
	assert.Equal(t, 1, order.Version)
	assert.Empty(t, order.Items)
	assert.Empty(t, order.DeliveryIDs)
	assert.True(t, order.CanDelete())
}

func TestPurchaseOrder_AddItem(t *testing.T) {
	t.Run("assigns line numbers in order", func(t *testing.T) {
		order := createTestPurchaseOrder(t)
		a := addTestItem(t, order, "A", 10, 5)
		b := addTestItem(t, order, "B", 20, 5)
		assert.Equal(t, 1, a.LineNo)
		assert.Equal(t, 2, b.LineNo)
		assert.Equal(t, order.ID, b.OrderID)
	})

	t.Run("rejects duplicate sku", func(t *testing.T) {
		order := createTestPurchaseOrder(t)
		addTestItem(t, order, "A", 10, 5)
		_, err := order.AddItem("Other", "A", "m", dec(1), dec(1))
		assert.Equal(t, CodeDuplicateItem, shared.CodeOf(err))
	})

	t.Run("rejects non-positive quantity and negative price", func(t *testing.T) {
		order := createTestPurchaseOrder(t)
		_, err := order.AddItem("Zip", "Z", "pcs", dec(0), dec(1))
		assert.Equal(t, CodeInvalidQuantity, shared.CodeOf(err))
		_, err = order.AddItem("Zip", "Z", "pcs", dec(1), dec(-1))
		assert.Equal(t, CodeInvalidPrice, shared.CodeOf(err))
	})

	t.Run("rejected once issued", func(t *testing.T) {
		order := createIssuedOrder(t, 10)
		_, err := order.AddItem("Late", "L", "pcs", dec(1), dec(1))
		assert.Equal(t, "INVALID_STATE", shared.CodeOf(err))
	})
}

func TestPurchaseOrder_Issue(t *testing.T) {
	t.Run("requires items", func(t *testing.T) {
		order := createTestPurchaseOrder(t)
		err := order.Issue()
		assert.Equal(t, CodeEmptyOrder, shared.CodeOf(err))
		assert.Equal(t, StatusDraft, order.Status)
	})

	t.Run("moves draft to issued and raises event", func(t *testing.T) {
		order := createTestPurchaseOrder(t)
		addTestItem(t, order, "A", 10, 5)
		require.NoError(t, order.Issue())
		assert.Equal(t, StatusIssued, order.Status)
		assert.NotNil(t, order.IssuedAt)
		events := order.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypePurchaseOrderIssued, events[0].EventType())
	})

	t.Run("cannot issue twice", func(t *testing.T) {
		order := createIssuedOrder(t, 10)
		assert.Equal(t, "INVALID_STATE", shared.CodeOf(order.Issue()))
	})
}

func TestPurchaseOrder_Cancel(t *testing.T) {
	t.Run("cancels issued order without receipts", func(t *testing.T) {
		order := createIssuedOrder(t, 10)
		require.NoError(t, order.Cancel("vendor out of stock"))
		assert.Equal(t, StatusCancelled, order.Status)
		assert.Equal(t, "vendor out of stock", order.CancelReason)
		require.Len(t, order.GetDomainEvents(), 1)
		ev := order.GetDomainEvents()[0].(*PurchaseOrderCancelledEvent)
		assert.Equal(t, StatusIssued, ev.PreviousStatus)
	})

	t.Run("requires reason", func(t *testing.T) {
		order := createIssuedOrder(t, 10)
		assert.Error(t, order.Cancel(""))
	})

	t.Run("rejected after goods arrived", func(t *testing.T) {
		order := createIssuedOrder(t, 10)
		_, err := receive(order, order.Items[0].ID, 4)
		require.NoError(t, err)
		assert.Equal(t, "INVALID_STATE", shared.CodeOf(order.Cancel("changed mind")))
		assert.Equal(t, StatusPartiallyReceived, order.Status)
	})
}

func TestPurchaseOrder_SetExpectedDeliveryDate(t *testing.T) {
	order := createTestPurchaseOrder(t)
	before := order.OrderDate.AddDate(0, 0, -2)
	assert.Equal(t, CodeInvalidDeliveryDate, shared.CodeOf(order.SetExpectedDeliveryDate(&before)))

	due := order.OrderDate.AddDate(0, 0, 7)
	require.NoError(t, order.SetExpectedDeliveryDate(&due))
	assert.Equal(t, due, *order.ExpectedDeliveryDate)
}

// ============================================
// Receiving
// ============================================

func TestRecordDelivery_PartialThenComplete(t *testing.T) {
	order := createTestPurchaseOrder(t)
	item := addTestItem(t, order, "A", 100, 50)
	itemID := item.ID
	require.NoError(t, order.Issue())

	first, err := receive(order, itemID, 40)
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyReceived, order.Status)
	assert.True(t, order.Item(itemID).PendingQuantity().Equal(dec(60)))
	assert.Equal(t, 40, order.ProgressPercent())
	assert.Equal(t, 1, first.Sequence)
	assertLedgerBalanced(t, order)

	second, err := receive(order, itemID, 60)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, order.Status)
	assert.True(t, order.Item(itemID).PendingQuantity().IsZero())
	assert.Equal(t, 100, order.ProgressPercent())
	assert.NotNil(t, order.CompletedAt)
	assert.Equal(t, 2, second.Sequence)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, order.DeliveryIDs)
	assertLedgerBalanced(t, order)
}

func TestRecordDelivery_ExceedsPendingLeavesStateUnchanged(t *testing.T) {
	order := createIssuedOrder(t, 100)
	itemID := order.Items[0].ID
	_, err := receive(order, itemID, 40)
	require.NoError(t, err)
	versionBefore := order.Version
	deliveriesBefore := len(order.DeliveryIDs)

	_, err = receive(order, itemID, 70)
	require.Error(t, err)
	assert.Equal(t, CodeExceedsPendingQuantity, shared.CodeOf(err))
	assert.Contains(t, err.Error(), "only 60 pending")

	assert.True(t, order.Items[0].PendingQuantity().Equal(dec(60)))
	assert.Equal(t, StatusPartiallyReceived, order.Status)
	assert.Len(t, order.DeliveryIDs, deliveriesBefore)
	assert.Equal(t, versionBefore, order.Version)
}

func TestRecordDelivery_QuantityBeyondStoredScale(t *testing.T) {
	tests := []struct {
		name        string
		qty         string
		wantCode    string
		wantStatus  PurchaseOrderStatus
		wantPending string
	}{
		{"five decimals rejected", "9.99999", CodeInvalidQuantity, StatusIssued, "10"},
		{"rounds to zero rejected", "0.00001", CodeInvalidQuantity, StatusIssued, "10"},
		{"four decimals accepted", "9.9999", "", StatusPartiallyReceived, "0.0001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := createIssuedOrder(t, 10)
			itemID := order.Items[0].ID

			_, err := order.RecordDelivery(DeliveryInput{
				DeliveryDate: time.Now(),
				Lines:        []ReceiptLine{{ItemID: itemID, Quantity: decimal.RequireFromString(tt.qty)}},
			})
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, shared.CodeOf(err))
				assert.Empty(t, order.DeliveryIDs)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantStatus, order.Status)
			assert.True(t, order.Items[0].PendingQuantity().Equal(decimal.RequireFromString(tt.wantPending)))
			assertLedgerBalanced(t, order)
		})
	}
}

func TestRecordDelivery_DuplicatePayloadRejected(t *testing.T) {
	order := createIssuedOrder(t, 100)
	itemID := order.Items[0].ID

	_, err := receive(order, itemID, 60)
	require.NoError(t, err)
	_, err = receive(order, itemID, 60)
	assert.Equal(t, CodeExceedsPendingQuantity, shared.CodeOf(err))
	assert.True(t, order.Items[0].ReceivedQuantity.Equal(dec(60)))
}

func TestRecordDelivery_NoPartialApplication(t *testing.T) {
	order := createIssuedOrder(t, 10, 10)
	a, b := order.Items[0].ID, order.Items[1].ID

	_, err := receive(order, a, 5, b, 11)
	require.Error(t, err)

	var receiptErr *ReceiptError
	require.True(t, errors.As(err, &receiptErr))
	require.Len(t, receiptErr.Lines, 1)
	assert.Equal(t, "SKU-B", receiptErr.Lines[0].SKU)
	assert.Equal(t, CodeExceedsPendingQuantity, receiptErr.Lines[0].Code)

	assert.True(t, order.Items[0].ReceivedQuantity.IsZero(), "valid line must not be applied when another fails")
	assert.Equal(t, StatusIssued, order.Status)
	assert.Empty(t, order.GetDomainEvents())
}

func TestRecordDelivery_ReportsEveryBadLine(t *testing.T) {
	order := createIssuedOrder(t, 10, 10)
	a, b := order.Items[0].ID, order.Items[1].ID

	_, err := receive(order, a, 20, b, -1, uuid.New(), 1, a, 1)
	var receiptErr *ReceiptError
	require.True(t, errors.As(err, &receiptErr))
	codes := make([]string, len(receiptErr.Lines))
	for i, l := range receiptErr.Lines {
		codes[i] = l.Code
	}
	assert.Equal(t, []string{CodeExceedsPendingQuantity, CodeInvalidQuantity, CodeItemNotFound, CodeDuplicateItem}, codes)
	assert.Equal(t, CodeExceedsPendingQuantity, receiptErr.Code)
}

func TestRecordDelivery_NoQuantityProvided(t *testing.T) {
	order := createIssuedOrder(t, 10, 10)

	t.Run("all zero", func(t *testing.T) {
		_, err := receive(order, order.Items[0].ID, 0, order.Items[1].ID, 0)
		assert.Equal(t, CodeNoQuantityProvided, shared.CodeOf(err))
	})
	t.Run("no lines", func(t *testing.T) {
		_, err := receive(order)
		assert.Equal(t, CodeNoQuantityProvided, shared.CodeOf(err))
	})
	t.Run("zero lines are dropped", func(t *testing.T) {
		d, err := receive(order, order.Items[0].ID, 0, order.Items[1].ID, 3)
		require.NoError(t, err)
		require.Len(t, d.LineReceipts, 1)
		assert.Equal(t, order.Items[1].ID, d.LineReceipts[0].ItemID)
	})
}

func TestRecordDelivery_OrderNotReceivable(t *testing.T) {
	draft := createTestPurchaseOrder(t)
	addTestItem(t, draft, "A", 10, 1)

	cancelled := createIssuedOrder(t, 10)
	require.NoError(t, cancelled.Cancel("no longer needed"))

	completed := createIssuedOrder(t, 10)
	_, err := receive(completed, completed.Items[0].ID, 10)
	require.NoError(t, err)

	for name, order := range map[string]*PurchaseOrder{"draft": draft, "cancelled": cancelled, "completed": completed} {
		t.Run(name, func(t *testing.T) {
			_, err := receive(order, order.Items[0].ID, 1)
			assert.Equal(t, CodeOrderNotReceivable, shared.CodeOf(err))
		})
	}
}

func TestRecordDelivery_RequiresDeliveryDate(t *testing.T) {
	order := createIssuedOrder(t, 10)
	_, err := order.RecordDelivery(DeliveryInput{Lines: []ReceiptLine{{ItemID: order.Items[0].ID, Quantity: dec(1)}}})
	assert.Equal(t, CodeInvalidDeliveryDate, shared.CodeOf(err))
}

func TestRecordDelivery_StoresExactQuantitiesAndPrices(t *testing.T) {
	order := createIssuedOrder(t, 100, 30)
	a, b := order.Items[0].ID, order.Items[1].ID

	d, err := order.RecordDelivery(DeliveryInput{
		DeliveryDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Lines:         []ReceiptLine{{ItemID: a, Quantity: decimal.RequireFromString("12.5")}, {ItemID: b, Quantity: dec(7)}},
		InvoiceNumber: "INV-77",
		Notes:         "two boxes damaged",
		ReceivedBy:    "warehouse-1",
	})
	require.NoError(t, err)

	assert.Equal(t, order.ID, d.PurchaseOrderID)
	assert.Equal(t, order.TenantID, d.TenantID)
	assert.Equal(t, "INV-77", d.InvoiceNumber)
	assert.Equal(t, "two boxes damaged", d.Notes)
	assert.Equal(t, "warehouse-1", d.ReceivedBy)
	assert.True(t, AttributedQuantity(d, a).Equal(decimal.RequireFromString("12.5")))
	assert.True(t, AttributedQuantity(d, b).Equal(dec(7)))
	assert.True(t, d.LineReceipts[0].UnitPrice.Equal(dec(50)))
}

func TestRecordDelivery_Events(t *testing.T) {
	order := createIssuedOrder(t, 10)
	itemID := order.Items[0].ID

	_, err := receive(order, itemID, 4)
	require.NoError(t, err)
	events := order.GetDomainEvents()
	require.Len(t, events, 1)
	received := events[0].(*DeliveryReceivedEvent)
	assert.Equal(t, StatusPartiallyReceived, received.Status)
	assert.Equal(t, 40, received.ProgressPercent)
	assert.True(t, received.Value.Equal(dec(200)))
	order.ClearDomainEvents()

	_, err = receive(order, itemID, 6)
	require.NoError(t, err)
	events = order.GetDomainEvents()
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeDeliveryReceived, events[0].EventType())
	assert.Equal(t, EventTypePurchaseOrderCompleted, events[1].EventType())
	completed := events[1].(*PurchaseOrderCompletedEvent)
	assert.Equal(t, 2, completed.DeliveryCount)
}

func TestReceiveItem(t *testing.T) {
	order := createIssuedOrder(t, 5)
	itemID := order.Items[0].ID

	require.NoError(t, order.ReceiveItem(itemID, dec(5)))
	assert.Equal(t, StatusCompleted, order.Status)
	assert.Equal(t, CodeOrderNotReceivable, shared.CodeOf(order.ReceiveItem(itemID, dec(1))))

	open := createIssuedOrder(t, 5)
	assert.Equal(t, CodeItemNotFound, shared.CodeOf(open.ReceiveItem(uuid.New(), dec(1))))
}

// ============================================
// Properties
// ============================================

func TestProperty_CompletedIffNothingPending(t *testing.T) {
	order := createIssuedOrder(t, 10, 20, 30)
	steps := [][]int{{0, 10, 1, 5}, {2, 30}, {1, 15}}
	for _, step := range steps {
		pairs := make([]any, 0, len(step))
		for i := 0; i < len(step); i += 2 {
			pairs = append(pairs, order.Items[step[i]].ID, step[i+1])
		}
		_, err := receive(order, pairs...)
		require.NoError(t, err)
		assertLedgerBalanced(t, order)

		allZero := true
		for _, item := range order.Items {
			if !item.PendingQuantity().IsZero() {
				allZero = false
			}
		}
		assert.Equal(t, allZero, order.Status == StatusCompleted)
	}
	assert.Equal(t, StatusCompleted, order.Status)
}

func TestIsOverdue(t *testing.T) {
	order := createIssuedOrder(t, 10)
	due := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	order.OrderDate = due.AddDate(0, 0, -30)
	require.NoError(t, order.SetExpectedDeliveryDate(&due))

	assert.False(t, order.IsOverdue(time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC)))
	assert.True(t, order.IsOverdue(time.Date(2024, 5, 11, 0, 1, 0, 0, time.UTC)))

	_, err := receive(order, order.Items[0].ID, 10)
	require.NoError(t, err)
	assert.False(t, order.IsOverdue(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)), "completed orders are never overdue")

	noDate := createIssuedOrder(t, 10)
	assert.False(t, noDate.IsOverdue(time.Now().AddDate(1, 0, 0)))
}
