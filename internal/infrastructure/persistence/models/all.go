package models

// All returns every model in dependency order, for AutoMigrate in tests.
// Production schemas come from the SQL migrations.
func All() []any {
	return []any{
		&PurchaseOrderModel{},
		&PurchaseOrderItemModel{},
		&DeliveryModel{},
		&DeliveryLineModel{},
		&OutboxEntryModel{},
	}
}
