package procurement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockOverdueRecorder struct {
	mock.Mock
}

func (m *MockOverdueRecorder) RecordOverdueOrders(ctx context.Context, tenantID uuid.UUID, count int64) {
	m.Called(ctx, tenantID, count)
}

func TestOverdueService_Scan(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	orderDay := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f.orders.now = func() time.Time { return orderDay }

	issueDue := func(tenantID uuid.UUID, due time.Time) uuid.UUID {
		req := createRequest(10)
		req.ExpectedDeliveryDate = &due
		created, err := f.orders.Create(ctx, tenantID, req)
		require.NoError(t, err)
		_, err = f.orders.Issue(ctx, tenantID, created.ID)
		require.NoError(t, err)
		return created.ID
	}

	otherTenant := uuid.New()
	late := issueDue(f.tenantID, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	issueDue(f.tenantID, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	issueDue(otherTenant, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))

	// due today is not overdue yet
	issueDue(f.tenantID, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))

	// completed orders are never overdue
	done := issueDue(f.tenantID, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	summary, err := f.orders.GetSummary(ctx, f.tenantID, done)
	require.NoError(t, err)
	_, err = f.deliveries.CreateDelivery(ctx, f.tenantID, done, deliveryOf(line(summary.Items[0].ItemID, 10)))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewOverdueService(f.orderRepo, 100, zap.New(core))
	svc.now = func() time.Time { return time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC) }

	recorder := new(MockOverdueRecorder)
	recorder.On("RecordOverdueOrders", mock.Anything, uuid.Nil, int64(2)).Once()
	recorder.On("RecordOverdueOrders", mock.Anything, f.tenantID, int64(1)).Once()
	recorder.On("RecordOverdueOrders", mock.Anything, otherTenant, int64(1)).Once()
	svc.SetRecorder(recorder)

	result, err := svc.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, map[uuid.UUID]int{f.tenantID: 1, otherTenant: 1}, result.ByTenant)
	assert.False(t, result.Truncated)

	ids := make([]uuid.UUID, 0, len(result.Orders))
	for _, o := range result.Orders {
		assert.True(t, o.Overdue)
		ids = append(ids, o.ID)
	}
	assert.Contains(t, ids, late)
	recorder.AssertExpectations(t)

	assert.Equal(t, 2, logs.FilterMessage("purchase order overdue").Len())
	assert.Equal(t, 1, logs.FilterMessage("overdue scan finished").Len())

	t.Run("tenants that caught up are reset to zero", func(t *testing.T) {
		_, err := f.orders.Cancel(ctx, f.tenantID, late, CancelPurchaseOrderRequest{Reason: "vendor failed"})
		require.NoError(t, err)

		next := new(MockOverdueRecorder)
		next.On("RecordOverdueOrders", mock.Anything, uuid.Nil, int64(1)).Once()
		next.On("RecordOverdueOrders", mock.Anything, f.tenantID, int64(0)).Once()
		next.On("RecordOverdueOrders", mock.Anything, otherTenant, int64(1)).Once()
		svc.SetRecorder(next)

		result, err := svc.Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Total)
		next.AssertExpectations(t)
	})

	t.Run("batch limit marks result truncated", func(t *testing.T) {
		small := NewOverdueService(f.orderRepo, 1, nil)
		small.now = svc.now
		result, err := small.Scan(ctx)
		require.NoError(t, err)
		assert.True(t, result.Truncated)
		assert.Equal(t, 1, result.Total)
	})
}

func TestPurchaseOrderService_ListOverdue(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.orders.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	due := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	req := createRequest(1)
	req.ExpectedDeliveryDate = &due
	created, err := f.orders.Create(ctx, f.tenantID, req)
	require.NoError(t, err)
	_, err = f.orders.Issue(ctx, f.tenantID, created.ID)
	require.NoError(t, err)

	items, _, err := f.orders.List(ctx, f.tenantID, PurchaseOrderListFilter{Overdue: true})
	require.NoError(t, err)
	assert.Empty(t, items)

	f.orders.now = func() time.Time { return time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC) }
	items, _, err = f.orders.List(ctx, f.tenantID, PurchaseOrderListFilter{Overdue: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Overdue)
}
