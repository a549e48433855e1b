// Package catalog defines the port to the product catalog collaborator.
// Catalog browsing itself lives outside this core; the fulfillment flow
// only needs live stock, price and activity for a product/variant pair.
package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// LiveProduct is the catalog's answer for a single product/variant pair
type LiveProduct struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Name      string
	Price     valueobject.Money
	Stock     int
	IsActive  bool
}

// Provider exposes live stock and pricing for cart validation and
// order creation. Implementations may be backed by the inventory
// repository, a catalog service client, or a fixture in tests.
type Provider interface {
	// GetLiveStockAndPrice returns the current price, stock level and
	// active flag for the product/variant pair. Returns
	// shared.ErrNotFound when the pair does not exist.
	GetLiveStockAndPrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*LiveProduct, error)
}
