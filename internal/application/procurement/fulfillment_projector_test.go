package procurement

import (
	"context"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/procurement"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/event"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFulfillmentRecorder struct {
	mock.Mock
}

func (m *MockFulfillmentRecorder) RecordDelivery(ctx context.Context, tenantID uuid.UUID, quantity, value decimal.Decimal) {
	m.Called(ctx, tenantID, quantity.String(), value.String())
}

func (m *MockFulfillmentRecorder) RecordOrderCompleted(ctx context.Context, tenantID uuid.UUID) {
	m.Called(ctx, tenantID)
}

func (m *MockFulfillmentRecorder) RecordOrderCancelled(ctx context.Context, tenantID uuid.UUID) {
	m.Called(ctx, tenantID)
}

func receivedOrder(t *testing.T, receive int64) (*procurement.PurchaseOrder, []shared.DomainEvent) {
	t.Helper()
	order, err := procurement.NewPurchaseOrder(uuid.New(), "PO-1", uuid.New(), "Acme Supply", time.Now())
	require.NoError(t, err)
	item, err := order.AddItem("Widget", "W-1", "pcs", decimal.NewFromInt(10), decimal.NewFromInt(3))
	require.NoError(t, err)
	itemID := item.ID
	require.NoError(t, order.Issue())
	order.ClearDomainEvents()

	_, err = order.RecordDelivery(procurement.DeliveryInput{
		DeliveryDate: time.Now(),
		Lines:        []procurement.ReceiptLine{{ItemID: itemID, Quantity: decimal.NewFromInt(receive)}},
	})
	require.NoError(t, err)
	return order, order.GetDomainEvents()
}

func TestFulfillmentProjector_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("partial delivery", func(t *testing.T) {
		order, events := receivedOrder(t, 4)
		require.Len(t, events, 1)

		recorder := new(MockFulfillmentRecorder)
		recorder.On("RecordDelivery", ctx, order.TenantID, "4", "12").Once()

		p := NewFulfillmentProjector(recorder, nil)
		require.NoError(t, p.Handle(ctx, events[0]))
		recorder.AssertExpectations(t)
	})

	t.Run("completing delivery", func(t *testing.T) {
		order, events := receivedOrder(t, 10)
		require.Len(t, events, 2)

		recorder := new(MockFulfillmentRecorder)
		recorder.On("RecordDelivery", ctx, order.TenantID, "10", "30").Once()
		recorder.On("RecordOrderCompleted", ctx, order.TenantID).Once()

		p := NewFulfillmentProjector(recorder, nil)
		for _, e := range events {
			require.NoError(t, p.Handle(ctx, e))
		}
		recorder.AssertExpectations(t)
	})

	t.Run("cancellation", func(t *testing.T) {
		order, err := procurement.NewPurchaseOrder(uuid.New(), "PO-2", uuid.New(), "Acme Supply", time.Now())
		require.NoError(t, err)
		require.NoError(t, order.Cancel("duplicate order"))

		recorder := new(MockFulfillmentRecorder)
		recorder.On("RecordOrderCancelled", ctx, order.TenantID).Once()

		p := NewFulfillmentProjector(recorder, nil)
		require.NoError(t, p.Handle(ctx, order.GetDomainEvents()[0]))
		recorder.AssertExpectations(t)
	})

	t.Run("unexpected type", func(t *testing.T) {
		order, err := procurement.NewPurchaseOrder(uuid.New(), "PO-3", uuid.New(), "Acme Supply", time.Now())
		require.NoError(t, err)

		p := NewFulfillmentProjector(new(MockFulfillmentRecorder), nil)
		err = p.Handle(ctx, procurement.NewPurchaseOrderCreatedEvent(order))
		assert.ErrorContains(t, err, "unexpected event type")
	})
}

// Events relayed from the outbox are decoded from JSON; the projector must
// see the same values as for in-process events.
func TestFulfillmentProjector_HandlesDeserializedEvents(t *testing.T) {
	ctx := context.Background()
	order, events := receivedOrder(t, 10)

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)

	recorder := new(MockFulfillmentRecorder)
	recorder.On("RecordDelivery", ctx, order.TenantID, "10", "30").Once()
	recorder.On("RecordOrderCompleted", ctx, order.TenantID).Once()
	p := NewFulfillmentProjector(recorder, nil)

	for _, e := range events {
		payload, err := serializer.Serialize(e)
		require.NoError(t, err)
		decoded, err := serializer.Deserialize(e.EventType(), payload)
		require.NoError(t, err)
		require.NoError(t, p.Handle(ctx, decoded))
	}
	recorder.AssertExpectations(t)
}

func TestFulfillmentProjector_EventTypes(t *testing.T) {
	p := NewFulfillmentProjector(new(MockFulfillmentRecorder), nil)
	assert.ElementsMatch(t, []string{
		procurement.EventTypeDeliveryReceived,
		procurement.EventTypePurchaseOrderCompleted,
		procurement.EventTypePurchaseOrderCancelled,
	}, p.EventTypes())
}
