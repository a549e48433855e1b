package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
)

// Repository persists orders with their items and notes
type Repository interface {
	Save(ctx context.Context, order *Order) error

	// SaveWithLock persists under an optimistic version check.
	// Returns shared.ErrConcurrencyConflict when another writer got
	// there first.
	SaveWithLock(ctx context.Context, order *Order) error

	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)
	FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) (*shared.Paginated[Order], error)

	// GenerateOrderNumber produces the next formatted business number
	// (ORD-YYYY-NNNNN)
	GenerateOrderNumber(ctx context.Context) (string, error)
}
