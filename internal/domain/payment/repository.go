package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists payment transactions and their logs
type Repository interface {
	Save(ctx context.Context, txn *Transaction) error
	SaveWithLock(ctx context.Context, txn *Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	FindByNumber(ctx context.Context, transactionNumber string) (*Transaction, error)
	FindByExternalID(ctx context.Context, externalTransactionID string) (*Transaction, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*Transaction, error)

	// FindOpenByOrder returns the non-terminal attempt for the order,
	// or shared.ErrNotFound when none is open
	FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*Transaction, error)

	// FindStale returns open attempts past their expiry
	FindStale(ctx context.Context, now time.Time, limit int) ([]*Transaction, error)

	// GenerateTransactionNumber produces the next formatted business
	// number (PAY-YYYY-NNNNN)
	GenerateTransactionNumber(ctx context.Context) (string, error)
}
