package persistence

import (
	"context"
	"errors"

	"github.com/erp/fulfillment/internal/domain/procurement"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDeliveryRepository reads delivery records using GORM
type GormDeliveryRepository struct {
	db *gorm.DB
}

// NewGormDeliveryRepository creates a new GormDeliveryRepository
func NewGormDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

func linesInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

// FindByIDForTenant finds a delivery with its lines
func (r *GormDeliveryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*procurement.DeliveryRecord, error) {
	var model models.DeliveryModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", linesInOrder).
		Scopes(tenant.Owned(tenantID, id)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	d := model.ToDomain()
	return &d, nil
}

// FindByOrder returns all deliveries of an order sorted by sequence
func (r *GormDeliveryRepository) FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]procurement.DeliveryRecord, error) {
	var deliveryModels []models.DeliveryModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", linesInOrder).
		Scopes(tenant.Child(tenantID, "purchase_order_id", orderID)).
		Order("sequence ASC").
		Find(&deliveryModels).Error; err != nil {
		return nil, err
	}
	deliveries := make([]procurement.DeliveryRecord, len(deliveryModels))
	for i := range deliveryModels {
		deliveries[i] = deliveryModels[i].ToDomain()
	}
	return deliveries, nil
}

// Ensure interface compliance
var _ procurement.DeliveryRepository = (*GormDeliveryRepository)(nil)
