package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists inventory items
type Repository interface {
	Save(ctx context.Context, item *InventoryItem) error
	SaveWithLock(ctx context.Context, item *InventoryItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error)
	FindByProduct(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*InventoryItem, error)

	// FindByProductForUpdate loads the stock row under a FOR UPDATE
	// lock. Must run inside a transaction; concurrent decrements for
	// the same product serialize on this lock.
	FindByProductForUpdate(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*InventoryItem, error)
}
