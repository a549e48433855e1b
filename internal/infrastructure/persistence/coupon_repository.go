package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/komono/backend/internal/domain/coupon"
	"github.com/komono/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCouponRepository implements coupon.Repository using GORM
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository creates a new GormCouponRepository
func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// Save creates or updates a coupon
func (r *GormCouponRepository) Save(ctx context.Context, c *coupon.Coupon) error {
	return dbFrom(ctx, r.db).Save(c).Error
}

// SaveWithLock persists under an optimistic version check
func (r *GormCouponRepository) SaveWithLock(ctx context.Context, c *coupon.Coupon) error {
	expected := c.Version

	result := dbFrom(ctx, r.db).Model(&coupon.Coupon{}).
		Where("id = ? AND version = ?", c.ID, expected).
		Updates(map[string]interface{}{
			"value":               c.Value,
			"min_order_amount":    c.MinOrderAmount,
			"max_discount_amount": c.MaxDiscountAmount,
			"usage_limit":         c.UsageLimit,
			"used_count":          c.UsedCount,
			"start_date":          c.StartDate,
			"end_date":            c.EndDate,
			"is_public":           c.IsPublic,
			"is_active":           c.IsActive,
			"version":             expected + 1,
			"updated_at":          c.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	c.Version = expected + 1
	return nil
}

// FindByID loads a coupon by ID
func (r *GormCouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*coupon.Coupon, error) {
	return r.findOne(ctx, dbFrom(ctx, r.db), "id = ?", id)
}

// FindByCode loads a coupon by its code
func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.findOne(ctx, dbFrom(ctx, r.db), "code = ?", code)
}

// FindByCodeForUpdate loads the coupon row under a FOR UPDATE lock so
// concurrent usage commits for the same code serialize
func (r *GormCouponRepository) FindByCodeForUpdate(ctx context.Context, code string) (*coupon.Coupon, error) {
	db := dbFrom(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findOne(ctx, db, "code = ?", code)
}

// InsertUsage records one usage for one order. The unique index on
// (coupon_id, order_id) turns a replayed insert into
// shared.ErrAlreadyExists, which callers treat as an idempotent no-op.
func (r *GormCouponRepository) InsertUsage(ctx context.Context, usage *coupon.CouponUsage) error {
	result := dbFrom(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "coupon_id"}, {Name: "order_id"}},
		DoNothing: true,
	}).Create(usage)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyExists
	}
	return nil
}

// DeleteUsage removes the usage record for an order
func (r *GormCouponRepository) DeleteUsage(ctx context.Context, couponID, orderID uuid.UUID) error {
	return dbFrom(ctx, r.db).
		Delete(&coupon.CouponUsage{}, "coupon_id = ? AND order_id = ?", couponID, orderID).Error
}

// FindUsage returns the usage record for an order, or (nil, nil) when
// none exists
func (r *GormCouponRepository) FindUsage(ctx context.Context, couponID, orderID uuid.UUID) (*coupon.CouponUsage, error) {
	var usage coupon.CouponUsage
	if err := dbFrom(ctx, r.db).
		Where("coupon_id = ? AND order_id = ?", couponID, orderID).
		First(&usage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &usage, nil
}

func (r *GormCouponRepository) findOne(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*coupon.Coupon, error) {
	var c coupon.Coupon
	if err := db.Where(query, args...).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

var _ coupon.Repository = (*GormCouponRepository)(nil)
