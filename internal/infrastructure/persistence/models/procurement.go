package models

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/procurement"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderModel is the row of a purchase order header.
type PurchaseOrderModel struct {
	TenantAggregateModel
	PONumber             string                          `gorm:"column:po_number;type:varchar(50);not null;index"`
	VendorID             uuid.UUID                       `gorm:"type:uuid;not null;index"`
	VendorName           string                          `gorm:"type:varchar(200);not null"`
	OrderDate            time.Time                       `gorm:"not null;index"`
	ExpectedDeliveryDate *time.Time                      `gorm:"index"`
	Status               procurement.PurchaseOrderStatus `gorm:"type:varchar(30);not null;default:'DRAFT';index"`
	Remark               string                          `gorm:"type:text"`
	IssuedAt             *time.Time
	CompletedAt          *time.Time
	CancelledAt          *time.Time
	CancelReason         string                   `gorm:"type:varchar(500)"`
	Items                []PurchaseOrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
	Deliveries           []DeliveryModel          `gorm:"foreignKey:PurchaseOrderID;references:ID"`
}

func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// ToDomain maps the row and its preloaded children to the aggregate.
// Deliveries need only id and sequence to be loaded.
func (m *PurchaseOrderModel) ToDomain() *procurement.PurchaseOrder {
	order := &procurement.PurchaseOrder{
		TenantAggregateRoot:  m.ToDomainTenantAggregateRoot(),
		PONumber:             m.PONumber,
		VendorID:             m.VendorID,
		VendorName:           m.VendorName,
		OrderDate:            m.OrderDate,
		ExpectedDeliveryDate: m.ExpectedDeliveryDate,
		Status:               m.Status,
		Remark:               m.Remark,
		IssuedAt:             m.IssuedAt,
		CompletedAt:          m.CompletedAt,
		CancelledAt:          m.CancelledAt,
		CancelReason:         m.CancelReason,
		Items:                make([]procurement.LineItem, len(m.Items)),
		DeliveryIDs:          make([]uuid.UUID, len(m.Deliveries)),
	}
	for i := range m.Items {
		order.Items[i] = m.Items[i].ToDomain()
	}
	for i := range m.Deliveries {
		order.DeliveryIDs[i] = m.Deliveries[i].ID
	}
	return order
}

// PurchaseOrderModelFromDomain maps the header and lines. Deliveries are
// written separately and never cascaded from here.
func PurchaseOrderModelFromDomain(o *procurement.PurchaseOrder) *PurchaseOrderModel {
	m := &PurchaseOrderModel{
		PONumber:             o.PONumber,
		VendorID:             o.VendorID,
		VendorName:           o.VendorName,
		OrderDate:            o.OrderDate,
		ExpectedDeliveryDate: o.ExpectedDeliveryDate,
		Status:               o.Status,
		Remark:               o.Remark,
		IssuedAt:             o.IssuedAt,
		CompletedAt:          o.CompletedAt,
		CancelledAt:          o.CancelledAt,
		CancelReason:         o.CancelReason,
		Items:                make([]PurchaseOrderItemModel, len(o.Items)),
	}
	m.FromDomainTenantAggregateRoot(o.TenantAggregateRoot)
	for i := range o.Items {
		m.Items[i] = PurchaseOrderItemModelFromDomain(&o.Items[i])
	}
	return m
}

// HeaderColumns are the mutable header columns written by guarded updates.
func (m *PurchaseOrderModel) HeaderColumns() map[string]any {
	return map[string]any{
		"vendor_name":            m.VendorName,
		"expected_delivery_date": m.ExpectedDeliveryDate,
		"status":                 m.Status,
		"remark":                 m.Remark,
		"issued_at":              m.IssuedAt,
		"completed_at":           m.CompletedAt,
		"cancelled_at":           m.CancelledAt,
		"cancel_reason":          m.CancelReason,
		"version":                m.Version,
		"updated_at":             m.UpdatedAt,
	}
}

// PurchaseOrderItemModel is one order line with its received-to-date ledger.
type PurchaseOrderItemModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID          uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_po_item_line,priority:1"`
	LineNo           int             `gorm:"not null;uniqueIndex:idx_po_item_line,priority:2"`
	ItemName         string          `gorm:"type:varchar(200);not null"`
	SKU              string          `gorm:"column:sku;type:varchar(64)"`
	Unit             string          `gorm:"type:varchar(20);not null"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReceivedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

func (PurchaseOrderItemModel) TableName() string {
	return "purchase_order_items"
}

func (m *PurchaseOrderItemModel) ToDomain() procurement.LineItem {
	return procurement.LineItem{
		ID:               m.ID,
		OrderID:          m.OrderID,
		LineNo:           m.LineNo,
		ItemName:         m.ItemName,
		SKU:              m.SKU,
		Unit:             m.Unit,
		Quantity:         m.Quantity,
		UnitPrice:        m.UnitPrice,
		ReceivedQuantity: m.ReceivedQuantity,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func PurchaseOrderItemModelFromDomain(i *procurement.LineItem) PurchaseOrderItemModel {
	return PurchaseOrderItemModel{
		ID:               i.ID,
		OrderID:          i.OrderID,
		LineNo:           i.LineNo,
		ItemName:         i.ItemName,
		SKU:              i.SKU,
		Unit:             i.Unit,
		Quantity:         i.Quantity,
		UnitPrice:        i.UnitPrice,
		ReceivedQuantity: i.ReceivedQuantity,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}
}

// DeliveryModel is an immutable receiving event. (purchase_order_id,
// sequence) is unique so two writers can never both append delivery N.
type DeliveryModel struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID           `gorm:"type:uuid;not null;index"`
	PurchaseOrderID uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_delivery_order_seq,priority:1"`
	Sequence        int                 `gorm:"not null;uniqueIndex:idx_delivery_order_seq,priority:2"`
	DeliveryDate    time.Time           `gorm:"not null"`
	InvoiceNumber   string              `gorm:"type:varchar(100)"`
	Notes           string              `gorm:"type:text"`
	ReceivedBy      string              `gorm:"type:varchar(100)"`
	Lines           []DeliveryLineModel `gorm:"foreignKey:DeliveryID;references:ID"`
	CreatedAt       time.Time           `gorm:"not null"`
}

func (DeliveryModel) TableName() string {
	return "deliveries"
}

func (m *DeliveryModel) ToDomain() procurement.DeliveryRecord {
	d := procurement.DeliveryRecord{
		ID:              m.ID,
		TenantID:        m.TenantID,
		PurchaseOrderID: m.PurchaseOrderID,
		Sequence:        m.Sequence,
		DeliveryDate:    m.DeliveryDate,
		InvoiceNumber:   m.InvoiceNumber,
		Notes:           m.Notes,
		ReceivedBy:      m.ReceivedBy,
		LineReceipts:    make([]procurement.LineReceipt, len(m.Lines)),
		CreatedAt:       m.CreatedAt,
	}
	for i, l := range m.Lines {
		d.LineReceipts[i] = procurement.LineReceipt{
			ItemID:    l.ItemID,
			LineNo:    l.LineNo,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	return d
}

func DeliveryModelFromDomain(d *procurement.DeliveryRecord) *DeliveryModel {
	m := &DeliveryModel{
		ID:              d.ID,
		TenantID:        d.TenantID,
		PurchaseOrderID: d.PurchaseOrderID,
		Sequence:        d.Sequence,
		DeliveryDate:    d.DeliveryDate,
		InvoiceNumber:   d.InvoiceNumber,
		Notes:           d.Notes,
		ReceivedBy:      d.ReceivedBy,
		Lines:           make([]DeliveryLineModel, len(d.LineReceipts)),
		CreatedAt:       d.CreatedAt,
	}
	for i, lr := range d.LineReceipts {
		m.Lines[i] = DeliveryLineModel{
			ID:         uuid.New(),
			DeliveryID: d.ID,
			ItemID:     lr.ItemID,
			LineNo:     lr.LineNo,
			Quantity:   lr.Quantity,
			UnitPrice:  lr.UnitPrice,
		}
	}
	return m
}

// DeliveryLineModel is the exact quantity of one item in one delivery.
type DeliveryLineModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	DeliveryID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_delivery_line_item,priority:1"`
	ItemID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_delivery_line_item,priority:2;index"`
	LineNo     int             `gorm:"not null"`
	Quantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

func (DeliveryLineModel) TableName() string {
	return "delivery_lines"
}
