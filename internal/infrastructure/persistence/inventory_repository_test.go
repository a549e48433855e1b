package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/komono/backend/internal/domain/inventory"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormInventoryRepository_FindByProduct(t *testing.T) {
	t.Run("finds stock row without variant", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormInventoryRepository(gormDB)

		productID := uuid.New()
		rows := sqlmock.NewRows([]string{"id", "product_id", "variant_id", "sku", "quantity", "version"}).
			AddRow(uuid.New(), productID, nil, "KMN-001", 12, 1)

		mock.ExpectQuery(`SELECT \* FROM "inventory_items" WHERE product_id = \$1 AND variant_id IS NULL`).
			WithArgs(productID, 1).
			WillReturnRows(rows)

		item, err := repo.FindByProduct(context.Background(), productID, nil)

		require.NoError(t, err)
		assert.Equal(t, "KMN-001", item.SKU)
		assert.Equal(t, 12, item.Quantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing row to ErrNotFound", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormInventoryRepository(gormDB)

		productID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "inventory_items"`).
			WithArgs(productID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindByProduct(context.Background(), productID, nil)

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("locks the row when loading for update", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormInventoryRepository(gormDB)

		productID := uuid.New()
		variantID := uuid.New()
		rows := sqlmock.NewRows([]string{"id", "product_id", "variant_id", "sku", "quantity", "version"}).
			AddRow(uuid.New(), productID, variantID, "KMN-002-BL", 3, 4)

		mock.ExpectQuery(`SELECT \* FROM "inventory_items" WHERE product_id = \$1 AND variant_id = \$2 .* FOR UPDATE`).
			WithArgs(productID, variantID, 1).
			WillReturnRows(rows)

		item, err := repo.FindByProductForUpdate(context.Background(), productID, &variantID)

		require.NoError(t, err)
		assert.Equal(t, 3, item.Quantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormInventoryRepository_SaveWithLock(t *testing.T) {
	newItem := func(t *testing.T) *inventory.InventoryItem {
		item, err := inventory.NewInventoryItem(uuid.New(), nil, "KMN-003", 10)
		require.NoError(t, err)
		return item
	}

	t.Run("bumps version on success", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormInventoryRepository(gormDB)

		item := newItem(t)
		mock.ExpectExec(`UPDATE "inventory_items" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SaveWithLock(context.Background(), item))
		assert.Equal(t, 2, item.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns concurrency conflict when version moved on", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormInventoryRepository(gormDB)

		item := newItem(t)
		mock.ExpectExec(`UPDATE "inventory_items" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SaveWithLock(context.Background(), item)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 1, item.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
