package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/komono/backend/internal/domain/cart"
	"github.com/komono/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCartRepository implements cart.Repository using GORM
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GormCartRepository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// Save creates or updates a cart. Lines removed from the aggregate are
// deleted, so the stored cart always mirrors the in-memory one.
func (r *GormCartRepository) Save(ctx context.Context, c *cart.Cart) error {
	db := dbFrom(ctx, r.db)

	if err := db.Omit("Items").Save(c).Error; err != nil {
		return err
	}
	return r.reconcileItems(db, c)
}

// SaveWithLock persists under an optimistic version check
func (r *GormCartRepository) SaveWithLock(ctx context.Context, c *cart.Cart) error {
	db := dbFrom(ctx, r.db)
	expected := c.Version

	result := db.Model(&cart.Cart{}).
		Where("id = ? AND version = ?", c.ID, expected).
		Updates(map[string]interface{}{
			"user_id":       c.UserID,
			"session_token": c.SessionToken,
			"coupon_code":   c.CouponCode,
			"version":       expected + 1,
			"updated_at":    c.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	c.Version = expected + 1

	return r.reconcileItems(db, c)
}

func (r *GormCartRepository) reconcileItems(db *gorm.DB, c *cart.Cart) error {
	keep := make([]uuid.UUID, 0, len(c.Items))
	for _, item := range c.Items {
		keep = append(keep, item.ID)
	}

	stale := db.Where("cart_id = ?", c.ID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&cart.CartItem{}).Error; err != nil {
		return err
	}

	if len(c.Items) > 0 {
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&c.Items).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID loads a cart with its items
func (r *GormCartRepository) FindByID(ctx context.Context, id uuid.UUID) (*cart.Cart, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByUser loads the cart owned by a user
func (r *GormCartRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	return r.findOne(ctx, "user_id = ?", userID)
}

// FindBySession loads the guest cart for a session token
func (r *GormCartRepository) FindBySession(ctx context.Context, sessionToken string) (*cart.Cart, error) {
	return r.findOne(ctx, "session_token = ?", sessionToken)
}

// Delete removes a cart and its items
func (r *GormCartRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := dbFrom(ctx, r.db).Delete(&cart.Cart{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormCartRepository) findOne(ctx context.Context, query string, args ...interface{}) (*cart.Cart, error) {
	var c cart.Cart
	if err := dbFrom(ctx, r.db).
		Preload("Items").
		Where(query, args...).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

var _ cart.Repository = (*GormCartRepository)(nil)
