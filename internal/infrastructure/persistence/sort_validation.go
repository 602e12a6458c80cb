package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// SortColumns maps the sort keys a client may send to table columns. Keys
// outside the map never reach SQL.
type SortColumns map[string]string

// OrderBy resolves key and dir into an ORDER BY column. An unknown or empty
// key sorts by fallback; anything but "asc" sorts descending.
func (s SortColumns) OrderBy(key, dir, fallback string) clause.OrderByColumn {
	column, ok := s[strings.TrimSpace(key)]
	if !ok {
		column = fallback
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   !strings.EqualFold(strings.TrimSpace(dir), "asc"),
	}
}

// purchaseOrderSort lists the sortable purchase order columns, accepting both
// column names and the camelCase names used in responses.
var purchaseOrderSort = SortColumns{
	"created_at":             "created_at",
	"createdAt":              "created_at",
	"updated_at":             "updated_at",
	"updatedAt":              "updated_at",
	"po_number":              "po_number",
	"poNumber":               "po_number",
	"vendor_name":            "vendor_name",
	"vendorName":             "vendor_name",
	"order_date":             "order_date",
	"orderDate":              "order_date",
	"expected_delivery_date": "expected_delivery_date",
	"expectedDeliveryDate":   "expected_delivery_date",
	"status":                 "status",
}
