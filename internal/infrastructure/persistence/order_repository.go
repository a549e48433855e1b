package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Save creates or updates an order with its items and notes
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	return dbFrom(ctx, r.db).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(o).Error
}

// SaveWithLock persists under an optimistic version check. The version
// column is compared against the value the aggregate was loaded with
// and bumped in the same statement; zero rows affected means another
// writer committed first.
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	db := dbFrom(ctx, r.db)
	expected := o.Version

	result := db.Model(&order.Order{}).
		Where("id = ? AND version = ?", o.ID, expected).
		Updates(map[string]interface{}{
			"status":             o.Status,
			"coupon_code":        o.CouponCode,
			"payment_method":     o.PaymentMethod,
			"subtotal":           o.Subtotal,
			"shipping_cost":      o.ShippingCost,
			"tax_amount":         o.TaxAmount,
			"tax_included":       o.TaxIncluded,
			"discount_amount":    o.DiscountAmount,
			"grand_total":        o.GrandTotal,
			"delivery_failed_at": o.DeliveryFailedAt,
			"confirmed_at":       o.ConfirmedAt,
			"delivered_at":       o.DeliveredAt,
			"cancelled_at":       o.CancelledAt,
			"version":            expected + 1,
			"updated_at":         o.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	o.Version = expected + 1

	if len(o.Items) > 0 {
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&o.Items).Error; err != nil {
			return err
		}
	}
	if len(o.Notes) > 0 {
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&o.Notes).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID loads an order with its items and notes
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var o order.Order
	if err := dbFrom(ctx, r.db).
		Preload("Items").
		Preload("Notes").
		First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// FindByNumber loads an order by its business number
func (r *GormOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	var o order.Order
	if err := dbFrom(ctx, r.db).
		Preload("Items").
		Preload("Notes").
		First(&o, "order_number = ?", orderNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// FindByUser returns the user's orders, newest first
func (r *GormOrderRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) (*shared.Paginated[order.Order], error) {
	db := dbFrom(ctx, r.db)

	var total int64
	if err := db.Model(&order.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, err
	}

	query := db.Preload("Items").Where("user_id = ?", userID).Order("created_at DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var orders []order.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(orders, total, filter.Page, filter.PageSize)
	return &page, nil
}

// GenerateOrderNumber produces the next ORD-YYYY-NNNNN number
func (r *GormOrderRepository) GenerateOrderNumber(ctx context.Context) (string, error) {
	return nextBusinessNumber(dbFrom(ctx, r.db), &order.Order{}, "order_number", "ORD")
}

var _ order.Repository = (*GormOrderRepository)(nil)
