package tenant

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type scopedRow struct {
	ID       uuid.UUID `gorm:"primaryKey"`
	TenantID uuid.UUID
	OrderID  uuid.UUID
}

func newScopeDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&scopedRow{}))
	return db
}

func TestScope_QualifiesColumn(t *testing.T) {
	db := newScopeDB(t)
	tenantID := uuid.New()

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []scopedRow
		return tx.Model(&scopedRow{}).Scopes(Scope(tenantID)).Find(&rows)
	})

	assert.Contains(t, sql, "`scoped_rows`.`tenant_id` =")
	assert.Contains(t, sql, tenantID.String())
}

func TestScopes_FilterRows(t *testing.T) {
	db := newScopeDB(t)
	tenantA, tenantB := uuid.New(), uuid.New()
	orderA := uuid.New()

	rows := []scopedRow{
		{ID: uuid.New(), TenantID: tenantA, OrderID: orderA},
		{ID: uuid.New(), TenantID: tenantA, OrderID: orderA},
		{ID: uuid.New(), TenantID: tenantA, OrderID: uuid.New()},
		{ID: uuid.New(), TenantID: tenantB, OrderID: orderA},
	}
	require.NoError(t, db.Create(&rows).Error)

	t.Run("Scope", func(t *testing.T) {
		var count int64
		require.NoError(t, db.Model(&scopedRow{}).Scopes(Scope(tenantA)).Count(&count).Error)
		assert.Equal(t, int64(3), count)
	})

	t.Run("Owned", func(t *testing.T) {
		var got scopedRow
		require.NoError(t, db.Scopes(Owned(tenantA, rows[0].ID)).First(&got).Error)
		assert.Equal(t, rows[0].ID, got.ID)

		err := db.Scopes(Owned(tenantB, rows[0].ID)).First(&got).Error
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("Child", func(t *testing.T) {
		var got []scopedRow
		require.NoError(t, db.Scopes(Child(tenantA, "order_id", orderA)).Find(&got).Error)
		assert.Len(t, got, 2)
	})

	t.Run("nil tenant fails", func(t *testing.T) {
		var got []scopedRow
		err := db.Scopes(Scope(uuid.Nil)).Find(&got).Error
		assert.ErrorIs(t, err, ErrTenantIDRequired)
		assert.Empty(t, got)
	})

	t.Run("delete stays inside the tenant", func(t *testing.T) {
		result := db.Scopes(Owned(tenantB, rows[1].ID)).Delete(&scopedRow{})
		require.NoError(t, result.Error)
		assert.Zero(t, result.RowsAffected)
	})
}
