package procurement

import (
	"context"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderFilter narrows a purchase order listing. Every field is optional and
// scoped to a single request.
type OrderFilter struct {
	shared.Filter
	Status       []PurchaseOrderStatus
	VendorID     *uuid.UUID
	OrderDateGTE *time.Time
	OrderDateLTE *time.Time
	OverdueAt    *time.Time
}

// PurchaseOrderRepository persists purchase orders and their deliveries.
type PurchaseOrderRepository interface {
	// FindByIDForTenant loads an order with its lines and delivery IDs.
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PurchaseOrder, error)
	FindByPONumber(ctx context.Context, tenantID uuid.UUID, poNumber string) (*PurchaseOrder, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter OrderFilter) ([]PurchaseOrder, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter OrderFilter) (int64, error)
	// FindOverdue returns open orders of any tenant whose expected date is before asOf.
	FindOverdue(ctx context.Context, asOf time.Time, limit int) ([]PurchaseOrder, error)
	ExistsByPONumber(ctx context.Context, tenantID uuid.UUID, poNumber string) (bool, error)
	// GenerateOrderNumber returns the next free number for the tenant and day.
	GenerateOrderNumber(ctx context.Context, tenantID uuid.UUID, prefix string, day time.Time) (string, error)

	// Create inserts a new order with its lines and pending events.
	Create(ctx context.Context, order *PurchaseOrder, events []shared.DomainEvent) error
	// SaveWithLock updates the order header and lines if the stored version
	// still equals order.Version, and writes events in the same transaction.
	SaveWithLock(ctx context.Context, order *PurchaseOrder, events []shared.DomainEvent) error
	// SaveWithDelivery is SaveWithLock plus the insert of delivery, atomically.
	SaveWithDelivery(ctx context.Context, order *PurchaseOrder, delivery *DeliveryRecord, events []shared.DomainEvent) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// DeliveryRepository reads delivery records. Deliveries are only ever
// written through PurchaseOrderRepository.SaveWithDelivery.
type DeliveryRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*DeliveryRecord, error)
	// FindByOrder returns deliveries sorted by sequence.
	FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]DeliveryRecord, error)
}
