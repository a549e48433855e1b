package cart

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists carts
type Repository interface {
	Save(ctx context.Context, cart *Cart) error
	SaveWithLock(ctx context.Context, cart *Cart) error
	FindByID(ctx context.Context, id uuid.UUID) (*Cart, error)
	FindByUser(ctx context.Context, userID uuid.UUID) (*Cart, error)
	FindBySession(ctx context.Context, sessionToken string) (*Cart, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
