package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/procurement"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPurchaseOrderRepository implements PurchaseOrderRepository using GORM
type GormPurchaseOrderRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewGormPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormPurchaseOrderRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// withChildren preloads lines in line order and only the identity columns
// of deliveries, which is all the aggregate keeps of them.
func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_no ASC")
		}).
		Preload("Deliveries", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "purchase_order_id", "sequence").Order("sequence ASC")
		})
}

// FindByIDForTenant finds a purchase order by ID within a tenant
func (r *GormPurchaseOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*procurement.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := withChildren(r.db.WithContext(ctx)).
		Scopes(tenant.Owned(tenantID, id)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPONumber finds a purchase order by its number within a tenant
func (r *GormPurchaseOrderRepository) FindByPONumber(ctx context.Context, tenantID uuid.UUID, poNumber string) (*procurement.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := withChildren(r.db.WithContext(ctx)).
		Scopes(tenant.Scope(tenantID)).
		Where("po_number = ?", poNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all purchase orders for a tenant
func (r *GormPurchaseOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter procurement.OrderFilter) ([]procurement.PurchaseOrder, error) {
	var orderModels []models.PurchaseOrderModel
	query := r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}).
		Scopes(tenant.Scope(tenantID))
	query = r.applyConditions(query, filter)
	query = r.applyPaging(query, filter.Filter)

	if err := withChildren(query).Find(&orderModels).Error; err != nil {
		return nil, err
	}
	orders := make([]procurement.PurchaseOrder, len(orderModels))
	for i := range orderModels {
		orders[i] = *orderModels[i].ToDomain()
	}
	return orders, nil
}

// CountForTenant counts purchase orders for a tenant with the same filter
func (r *GormPurchaseOrderRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter procurement.OrderFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}).
		Scopes(tenant.Scope(tenantID))
	query = r.applyConditions(query, filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindOverdue finds open orders across tenants whose expected delivery day
// is before the day of asOf.
func (r *GormPurchaseOrderRepository) FindOverdue(ctx context.Context, asOf time.Time, limit int) ([]procurement.PurchaseOrder, error) {
	if limit <= 0 {
		limit = shared.MaxPageSize
	}
	var orderModels []models.PurchaseOrderModel
	err := withChildren(r.db.WithContext(ctx)).
		Where("status IN ?", openStatuses()).
		Where("expected_delivery_date IS NOT NULL AND expected_delivery_date < ?", startOfDay(asOf)).
		Order("expected_delivery_date ASC").
		Limit(limit).
		Find(&orderModels).Error
	if err != nil {
		return nil, err
	}
	orders := make([]procurement.PurchaseOrder, len(orderModels))
	for i := range orderModels {
		orders[i] = *orderModels[i].ToDomain()
	}
	return orders, nil
}

// ExistsByPONumber checks if an order number is taken within a tenant
func (r *GormPurchaseOrderRepository) ExistsByPONumber(ctx context.Context, tenantID uuid.UUID, poNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("po_number = ?", poNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GenerateOrderNumber generates a unique order number for a tenant and day.
// Format: PREFIX-YYYYMMDD-NNNN (e.g., PO-20260114-0001)
func (r *GormPurchaseOrderRepository) GenerateOrderNumber(ctx context.Context, tenantID uuid.UUID, prefix string, day time.Time) (string, error) {
	base := fmt.Sprintf("%s-%s-", prefix, day.UTC().Format("20060102"))

	var last models.PurchaseOrderModel
	err := r.db.WithContext(ctx).
		Model(&models.PurchaseOrderModel{}).
		Select("po_number").
		Scopes(tenant.Scope(tenantID)).
		Where(`po_number LIKE ? ESCAPE '\'`, escapeLike(base)+"%").
		Order("po_number DESC").
		Take(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	next := 1
	if err == nil {
		var n int
		if _, scanErr := fmt.Sscanf(strings.TrimPrefix(last.PONumber, base), "%d", &n); scanErr == nil {
			next = n + 1
		}
	}

	for range 100 {
		candidate := fmt.Sprintf("%s%04d", base, next)
		exists, err := r.ExistsByPONumber(ctx, tenantID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		next++
	}
	return "", shared.NewDomainError("ORDER_NUMBER_EXHAUSTED", "Unable to allocate an order number")
}

// Create inserts a new order with its lines and writes events to the outbox
func (r *GormPurchaseOrderRepository) Create(ctx context.Context, order *procurement.PurchaseOrder, events []shared.DomainEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.PurchaseOrderModelFromDomain(order)
		if err := tx.Omit("Deliveries").Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.NewDomainError("ALREADY_EXISTS", "Purchase order number already exists")
			}
			return err
		}
		return r.saveEvents(ctx, tx, events)
	})
}

// SaveWithLock saves header and lines with optimistic locking and persists
// domain events atomically.
func (r *GormPurchaseOrderRepository) SaveWithLock(ctx context.Context, order *procurement.PurchaseOrder, events []shared.DomainEvent) error {
	return r.SaveWithDelivery(ctx, order, nil, events)
}

// SaveWithDelivery is SaveWithLock that also inserts the delivery record
// in the same transaction. On conflict nothing is written and order.Version
// is left unchanged.
func (r *GormPurchaseOrderRepository) SaveWithDelivery(ctx context.Context, order *procurement.PurchaseOrder, delivery *procurement.DeliveryRecord, events []shared.DomainEvent) error {
	expected := order.Version
	updatedAt := order.UpdatedAt

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Get current version from database
		var versions []int
		if err := tx.Model(&models.PurchaseOrderModel{}).
			Scopes(tenant.Owned(order.TenantID, order.ID)).
			Pluck("version", &versions).Error; err != nil {
			return err
		}
		if len(versions) == 0 {
			return shared.ErrNotFound
		}
		if versions[0] != expected {
			return procurement.ErrConcurrentModification
		}

		order.Version = expected + 1
		order.UpdatedAt = time.Now()

		model := models.PurchaseOrderModelFromDomain(order)
		result := tx.Model(&models.PurchaseOrderModel{}).
			Where("id = ? AND version = ?", order.ID, expected).
			Updates(model.HeaderColumns())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return procurement.ErrConcurrentModification
		}

		if err := r.saveItems(tx, order.ID, model.Items); err != nil {
			return err
		}

		if delivery != nil {
			if err := tx.Create(models.DeliveryModelFromDomain(delivery)).Error; err != nil {
				// A unique (order, sequence) violation means another writer
				// appended the same delivery number first.
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return procurement.ErrConcurrentModification
				}
				return err
			}
		}

		return r.saveEvents(ctx, tx, events)
	})
	if err != nil {
		order.Version = expected
		order.UpdatedAt = updatedAt
	}
	return err
}

// saveItems writes line changes. Lines are fixed after creation except for
// their received ledger, so only that column is updated.
func (r *GormPurchaseOrderRepository) saveItems(tx *gorm.DB, orderID uuid.UUID, items []models.PurchaseOrderItemModel) error {
	for i := range items {
		item := &items[i]
		result := tx.Model(&models.PurchaseOrderItemModel{}).
			Where("id = ? AND order_id = ?", item.ID, orderID).
			Updates(map[string]any{
				"received_quantity": item.ReceivedQuantity,
				"updated_at":        item.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(item).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *GormPurchaseOrderRepository) saveEvents(ctx context.Context, tx *gorm.DB, events []shared.DomainEvent) error {
	if r.outboxSaver == nil || len(events) == 0 {
		return nil
	}
	if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to save events to outbox: %w", err)
	}
	return nil
}

// DeleteForTenant deletes a draft order and its lines
func (r *GormPurchaseOrderRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Scopes(tenant.Owned(tenantID, id)).
			Where("status = ?", procurement.StatusDraft).
			Delete(&models.PurchaseOrderModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return tx.Where("order_id = ?", id).Delete(&models.PurchaseOrderItemModel{}).Error
	})
}

// applyConditions applies the filter's WHERE clauses
func (r *GormPurchaseOrderRepository) applyConditions(query *gorm.DB, filter procurement.OrderFilter) *gorm.DB {
	if len(filter.Status) > 0 {
		query = query.Where("status IN ?", filter.Status)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.OrderDateGTE != nil {
		query = query.Where("order_date >= ?", *filter.OrderDateGTE)
	}
	if filter.OrderDateLTE != nil {
		query = query.Where("order_date <= ?", *filter.OrderDateLTE)
	}
	if filter.OverdueAt != nil {
		query = query.Where("status IN ?", openStatuses()).
			Where("expected_delivery_date IS NOT NULL AND expected_delivery_date < ?", startOfDay(*filter.OverdueAt))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		query = query.Where(`(LOWER(po_number) LIKE ? ESCAPE '\' OR LOWER(vendor_name) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return query
}

// applyPaging applies whitelisted ordering and pagination
func (r *GormPurchaseOrderRepository) applyPaging(query *gorm.DB, filter shared.Filter) *gorm.DB {
	filter = filter.Normalize()
	return query.
		Order(purchaseOrderSort.OrderBy(filter.OrderBy, filter.OrderDir, "created_at")).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
}

func openStatuses() []procurement.PurchaseOrderStatus {
	return []procurement.PurchaseOrderStatus{procurement.StatusIssued, procurement.StatusPartiallyReceived}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Ensure interface compliance
var _ procurement.PurchaseOrderRepository = (*GormPurchaseOrderRepository)(nil)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern with ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
