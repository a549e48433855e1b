package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/komono/backend/internal/domain/inventory"
	"github.com/komono/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInventoryRepository implements inventory.Repository using GORM
type GormInventoryRepository struct {
	db *gorm.DB
}

// NewGormInventoryRepository creates a new GormInventoryRepository
func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// Save creates or updates an inventory item
func (r *GormInventoryRepository) Save(ctx context.Context, item *inventory.InventoryItem) error {
	return dbFrom(ctx, r.db).Save(item).Error
}

// SaveWithLock persists under an optimistic version check
func (r *GormInventoryRepository) SaveWithLock(ctx context.Context, item *inventory.InventoryItem) error {
	expected := item.Version

	result := dbFrom(ctx, r.db).Model(&inventory.InventoryItem{}).
		Where("id = ? AND version = ?", item.ID, expected).
		Updates(map[string]interface{}{
			"sku":        item.SKU,
			"quantity":   item.Quantity,
			"version":    expected + 1,
			"updated_at": item.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	item.Version = expected + 1
	return nil
}

// FindByID loads an inventory item by ID
func (r *GormInventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryItem, error) {
	return r.findOne(dbFrom(ctx, r.db), "id = ?", id)
}

// FindByProduct loads the stock row for a product/variant pair
func (r *GormInventoryRepository) FindByProduct(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*inventory.InventoryItem, error) {
	return r.findOne(dbFrom(ctx, r.db), productVariantClause(variantID), productVariantArgs(productID, variantID)...)
}

// FindByProductForUpdate loads the stock row under a FOR UPDATE lock.
// Must run inside a transaction; concurrent decrements for the same
// product serialize on this lock.
func (r *GormInventoryRepository) FindByProductForUpdate(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*inventory.InventoryItem, error) {
	db := dbFrom(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findOne(db, productVariantClause(variantID), productVariantArgs(productID, variantID)...)
}

func (r *GormInventoryRepository) findOne(db *gorm.DB, query string, args ...interface{}) (*inventory.InventoryItem, error) {
	var item inventory.InventoryItem
	if err := db.Where(query, args...).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func productVariantClause(variantID *uuid.UUID) string {
	if variantID == nil {
		return "product_id = ? AND variant_id IS NULL"
	}
	return "product_id = ? AND variant_id = ?"
}

func productVariantArgs(productID uuid.UUID, variantID *uuid.UUID) []interface{} {
	if variantID == nil {
		return []interface{}{productID}
	}
	return []interface{}{productID, *variantID}
}

var _ inventory.Repository = (*GormInventoryRepository)(nil)
