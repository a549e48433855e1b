package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/komono/backend/internal/domain/returns"
	"github.com/komono/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReturnsRepository implements returns.Repository using GORM
type GormReturnsRepository struct {
	db *gorm.DB
}

// NewGormReturnsRepository creates a new GormReturnsRepository
func NewGormReturnsRepository(db *gorm.DB) *GormReturnsRepository {
	return &GormReturnsRepository{db: db}
}

// Save creates or updates a return request with its claims
func (r *GormReturnsRepository) Save(ctx context.Context, request *returns.ReturnRequest) error {
	return dbFrom(ctx, r.db).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(request).Error
}

// SaveWithLock persists under an optimistic version check
func (r *GormReturnsRepository) SaveWithLock(ctx context.Context, request *returns.ReturnRequest) error {
	db := dbFrom(ctx, r.db)
	expected := request.Version

	result := db.Model(&returns.ReturnRequest{}).
		Where("id = ? AND version = ?", request.ID, expected).
		Updates(map[string]interface{}{
			"status":        request.Status,
			"description":   request.Description,
			"refund_amount": request.RefundAmount,
			"refund_method": request.RefundMethod,
			"decided_at":    request.DecidedAt,
			"completed_at":  request.CompletedAt,
			"version":       expected + 1,
			"updated_at":    request.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	request.Version = expected + 1

	if len(request.Claims) > 0 {
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&request.Claims).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID loads a return request with its claims
func (r *GormReturnsRepository) FindByID(ctx context.Context, id uuid.UUID) (*returns.ReturnRequest, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByNumber loads a return request by its business number
func (r *GormReturnsRepository) FindByNumber(ctx context.Context, returnNumber string) (*returns.ReturnRequest, error) {
	return r.findOne(ctx, "return_number = ?", returnNumber)
}

// FindByOrder returns every return request filed against the order
func (r *GormReturnsRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*returns.ReturnRequest, error) {
	var requests []*returns.ReturnRequest
	if err := dbFrom(ctx, r.db).
		Preload("Claims").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// GenerateReturnNumber produces the next RET-YYYY-NNNNN number
func (r *GormReturnsRepository) GenerateReturnNumber(ctx context.Context) (string, error) {
	return nextBusinessNumber(dbFrom(ctx, r.db), &returns.ReturnRequest{}, "return_number", "RET")
}

func (r *GormReturnsRepository) findOne(ctx context.Context, query string, args ...interface{}) (*returns.ReturnRequest, error) {
	var request returns.ReturnRequest
	if err := dbFrom(ctx, r.db).
		Preload("Claims").
		Where(query, args...).
		First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

var _ returns.Repository = (*GormReturnsRepository)(nil)
