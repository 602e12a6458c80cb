// Package tenant provides multi-tenant scoping for GORM queries.
//
// Repositories attach the scopes to every tenant-owned query:
//
//	db.WithContext(ctx).Scopes(tenant.Owned(tenantID, id)).First(&order)
//
// The condition is qualified with the statement's table, so it stays
// unambiguous when a query joins other tables.
package tenant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Column is the tenant ID column of every tenant-owned table
const Column = "tenant_id"

// ErrTenantIDRequired is returned when a scoped query has no tenant
var ErrTenantIDRequired = errors.New("tenant_id is required")

// Scope restricts a query to rows of tenantID. A nil tenant fails the query
// rather than matching rows of every tenant.
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(eq(Column, tenantID))
	}
}

// Owned restricts a query to the row id of tenantID
func Owned(tenantID, id uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return Scope(tenantID)(db).Where(eq("id", id))
	}
}

// Child restricts a query to rows of tenantID that reference parentID
// through column, e.g. the deliveries of one order.
func Child(tenantID uuid.UUID, column string, parentID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return Scope(tenantID)(db).Where(eq(column, parentID))
	}
}

func eq(column string, value any) clause.Expression {
	return clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: column},
		Value:  value,
	}
}
