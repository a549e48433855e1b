package shared

import "context"

// TransactionManager runs a function inside one database transaction.
// Repository calls made with the callback's context join that
// transaction, so multi-aggregate operations (order creation touching
// stock, coupon and order rows) commit or roll back as a unit.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTransactionManager runs the callback without a transaction. Used
// by tests with in-memory repositories.
type NopTransactionManager struct{}

// WithinTransaction invokes fn directly
func (NopTransactionManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
