package returns

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists return requests
type Repository interface {
	Save(ctx context.Context, request *ReturnRequest) error
	SaveWithLock(ctx context.Context, request *ReturnRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*ReturnRequest, error)
	FindByNumber(ctx context.Context, returnNumber string) (*ReturnRequest, error)

	// FindByOrder returns every return request ever filed against the
	// order, any status. Used to compute remaining returnable
	// quantities.
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*ReturnRequest, error)

	// GenerateReturnNumber produces the next formatted business
	// number (RET-YYYY-NNNNN)
	GenerateReturnNumber(ctx context.Context) (string, error)
}
