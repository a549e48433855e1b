package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/komono/backend/internal/domain/catalog"
	"github.com/komono/backend/internal/domain/inventory"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// ProductRecord is the read model this core keeps of the catalog.
// Catalog management lives in another service; this table is synced
// from it and consulted for live price and activity.
type ProductRecord struct {
	shared.BaseEntity
	ProductID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_products_product_variant" json:"product_id"`
	VariantID *uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_products_product_variant" json:"variant_id"`
	Name      string            `gorm:"size:200;not null" json:"name"`
	Price     valueobject.Money `gorm:"type:decimal(12,0);not null" json:"price"`
	IsActive  bool              `gorm:"not null;default:true" json:"is_active"`
}

// TableName returns the table name
func (ProductRecord) TableName() string {
	return "products"
}

// DBCatalogProvider implements catalog.Provider from the product read
// model and the inventory table
type DBCatalogProvider struct {
	db    *gorm.DB
	stock inventory.Repository
}

// NewDBCatalogProvider creates a catalog provider backed by the database
func NewDBCatalogProvider(db *gorm.DB, stock inventory.Repository) *DBCatalogProvider {
	return &DBCatalogProvider{db: db, stock: stock}
}

// GetLiveStockAndPrice returns the current price, stock level and
// active flag for the product/variant pair
func (p *DBCatalogProvider) GetLiveStockAndPrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*catalog.LiveProduct, error) {
	var record ProductRecord
	if err := dbFrom(ctx, p.db).
		Where(productVariantClause(variantID), productVariantArgs(productID, variantID)...).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	stock := 0
	item, err := p.stock.FindByProduct(ctx, productID, variantID)
	switch {
	case err == nil:
		stock = item.Quantity
	case errors.Is(err, shared.ErrNotFound):
		// no stock row means zero on hand
	default:
		return nil, err
	}

	return &catalog.LiveProduct{
		ProductID: record.ProductID,
		VariantID: record.VariantID,
		Name:      record.Name,
		Price:     record.Price,
		Stock:     stock,
		IsActive:  record.IsActive,
	}, nil
}

var _ catalog.Provider = (*DBCatalogProvider)(nil)
