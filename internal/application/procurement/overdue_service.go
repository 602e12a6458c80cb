package procurement

import (
	"context"
	"sync"
	"time"

	"github.com/erp/fulfillment/internal/domain/procurement"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultOverdueBatchSize bounds how many orders one scan loads.
const DefaultOverdueBatchSize = 500

// OverdueRecorder receives overdue counts. uuid.Nil means all tenants.
type OverdueRecorder interface {
	RecordOverdueOrders(ctx context.Context, tenantID uuid.UUID, count int64)
}

// OverdueService finds open orders whose expected delivery date has passed
type OverdueService struct {
	orderRepo procurement.PurchaseOrderRepository
	recorder  OverdueRecorder
	logger    *zap.Logger
	batchSize int
	now       func() time.Time

	mu       sync.Mutex
	reported map[uuid.UUID]struct{}
}

// NewOverdueService creates a new OverdueService
func NewOverdueService(orderRepo procurement.PurchaseOrderRepository, batchSize int, logger *zap.Logger) *OverdueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultOverdueBatchSize
	}
	return &OverdueService{
		orderRepo: orderRepo,
		logger:    logger,
		batchSize: batchSize,
		now:       time.Now,
		reported:  make(map[uuid.UUID]struct{}),
	}
}

// SetRecorder sets where overdue counts are reported
func (s *OverdueService) SetRecorder(r OverdueRecorder) {
	s.recorder = r
}

// Scan loads overdue orders of every tenant, logs them and reports the
// counts. Tenants that had overdue orders in the previous scan and have none
// now are reported as zero.
func (s *OverdueService) Scan(ctx context.Context) (*OverdueScanResult, error) {
	asOf := s.now()
	orders, err := s.orderRepo.FindOverdue(ctx, asOf, s.batchSize)
	if err != nil {
		return nil, err
	}

	overdue := make([]procurement.PurchaseOrder, 0, len(orders))
	byTenant := make(map[uuid.UUID]int)
	for i := range orders {
		o := &orders[i]
		if !o.IsOverdue(asOf) {
			continue
		}
		overdue = append(overdue, *o)
		byTenant[o.TenantID]++
		s.logger.Debug("purchase order overdue",
			zap.String("tenant_id", o.TenantID.String()),
			zap.String("order_id", o.ID.String()),
			zap.String("po_number", o.PONumber),
			zap.Timep("expected_delivery_date", o.ExpectedDeliveryDate),
			zap.String("pending", o.TotalPending().String()),
		)
	}

	s.report(ctx, byTenant, len(overdue))

	truncated := len(orders) >= s.batchSize
	s.logger.Info("overdue scan finished",
		zap.Time("as_of", asOf),
		zap.Int("overdue", len(overdue)),
		zap.Int("tenants", len(byTenant)),
		zap.Bool("truncated", truncated),
	)

	return &OverdueScanResult{
		AsOf:      asOf,
		Total:     len(overdue),
		ByTenant:  byTenant,
		Orders:    ToOrderListItemResponses(overdue, asOf),
		Truncated: truncated,
	}, nil
}

func (s *OverdueService) report(ctx context.Context, byTenant map[uuid.UUID]int, total int) {
	if s.recorder == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recorder.RecordOverdueOrders(ctx, uuid.Nil, int64(total))
	for tenantID := range s.reported {
		if _, still := byTenant[tenantID]; !still {
			s.recorder.RecordOverdueOrders(ctx, tenantID, 0)
			delete(s.reported, tenantID)
		}
	}
	for tenantID, n := range byTenant {
		s.recorder.RecordOverdueOrders(ctx, tenantID, int64(n))
		s.reported[tenantID] = struct{}{}
	}
}
