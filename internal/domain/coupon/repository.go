package coupon

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists coupons and their usage records
type Repository interface {
	Save(ctx context.Context, coupon *Coupon) error
	SaveWithLock(ctx context.Context, coupon *Coupon) error
	FindByID(ctx context.Context, id uuid.UUID) (*Coupon, error)
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// FindByCodeForUpdate loads the coupon row under a FOR UPDATE
	// lock. Must run inside a transaction; concurrent usage commits
	// for the same code serialize on this lock.
	FindByCodeForUpdate(ctx context.Context, code string) (*Coupon, error)

	// InsertUsage records one usage for one order. Returns
	// shared.ErrAlreadyExists when a usage for (coupon, order) is
	// already recorded, which callers treat as an idempotent no-op.
	InsertUsage(ctx context.Context, usage *CouponUsage) error

	DeleteUsage(ctx context.Context, couponID, orderID uuid.UUID) error
	FindUsage(ctx context.Context, couponID, orderID uuid.UUID) (*CouponUsage, error)
}
