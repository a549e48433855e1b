package inventory

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
)

// InventoryItem is the authoritative stock record for a product/variant
// pair. The cart reads it as a non-authoritative check; only order
// creation decrements it, under a row lock.
type InventoryItem struct {
	shared.BaseAggregateRoot
	ProductID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_product_variant" json:"product_id"`
	VariantID *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_inventory_product_variant" json:"variant_id"`
	SKU       string     `gorm:"size:64;not null;index" json:"sku"`
	Quantity  int        `gorm:"not null;default:0" json:"quantity"`
}

// TableName returns the table name
func (InventoryItem) TableName() string {
	return "inventory_items"
}

// NewInventoryItem creates a stock record for a product/variant pair
func NewInventoryItem(productID uuid.UUID, variantID *uuid.UUID, sku string, quantity int) (*InventoryItem, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "product id cannot be empty")
	}
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "sku cannot be empty")
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "quantity cannot be negative")
	}
	return &InventoryItem{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		VariantID:         variantID,
		SKU:               sku,
		Quantity:          quantity,
	}, nil
}

// HasStock reports whether at least qty units are available
func (i *InventoryItem) HasStock(qty int) bool {
	return qty > 0 && i.Quantity >= qty
}

// Decrement removes qty units. Returns ErrStockConflict when the
// remaining stock cannot cover the request.
func (i *InventoryItem) Decrement(qty int) error {
	if qty <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "decrement quantity must be positive")
	}
	if i.Quantity < qty {
		return fmt.Errorf("%w: sku %s has %d units, requested %d", shared.ErrStockConflict, i.SKU, i.Quantity, qty)
	}
	i.Quantity -= qty
	return nil
}

// Restock returns qty units to stock (order cancellation, return intake)
func (i *InventoryItem) Restock(qty int) error {
	if qty <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "restock quantity must be positive")
	}
	i.Quantity += qty
	return nil
}
