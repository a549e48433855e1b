package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var openStatuses = []payment.Status{
	payment.StatusCreated,
	payment.StatusPending,
	payment.StatusProcessing,
}

// GormPaymentRepository implements payment.Repository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Save creates or updates a transaction with its logs
func (r *GormPaymentRepository) Save(ctx context.Context, txn *payment.Transaction) error {
	return dbFrom(ctx, r.db).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(txn).Error
}

// SaveWithLock persists under an optimistic version check
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, txn *payment.Transaction) error {
	db := dbFrom(ctx, r.db)
	expected := txn.Version

	result := db.Model(&payment.Transaction{}).
		Where("id = ? AND version = ?", txn.ID, expected).
		Updates(map[string]interface{}{
			"external_transaction_id": txn.ExternalTransactionID,
			"status":                  txn.Status,
			"fee":                     txn.Fee,
			"refunded_amount":         txn.RefundedAmount,
			"refund_count":            txn.RefundCount,
			"expires_at":              txn.ExpiresAt,
			"processed_at":            txn.ProcessedAt,
			"completed_at":            txn.CompletedAt,
			"refunded_at":             txn.RefundedAt,
			"version":                 expected + 1,
			"updated_at":              txn.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	txn.Version = expected + 1

	if len(txn.Logs) > 0 {
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&txn.Logs).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID loads a transaction with its logs
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByNumber loads a transaction by its business number
func (r *GormPaymentRepository) FindByNumber(ctx context.Context, transactionNumber string) (*payment.Transaction, error) {
	return r.findOne(ctx, "transaction_number = ?", transactionNumber)
}

// FindByExternalID loads a transaction by the gateway's identifier
func (r *GormPaymentRepository) FindByExternalID(ctx context.Context, externalTransactionID string) (*payment.Transaction, error) {
	return r.findOne(ctx, "external_transaction_id = ?", externalTransactionID)
}

// FindByOrder returns every payment attempt for the order, newest first
func (r *GormPaymentRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*payment.Transaction, error) {
	var txns []*payment.Transaction
	if err := dbFrom(ctx, r.db).
		Preload("Logs").
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// FindOpenByOrder returns the non-terminal attempt for the order
func (r *GormPaymentRepository) FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*payment.Transaction, error) {
	return r.findOne(ctx, "order_id = ? AND status IN ?", orderID, openStatuses)
}

// FindStale returns open attempts past their expiry, oldest first
func (r *GormPaymentRepository) FindStale(ctx context.Context, now time.Time, limit int) ([]*payment.Transaction, error) {
	var txns []*payment.Transaction
	if err := dbFrom(ctx, r.db).
		Preload("Logs").
		Where("status IN ? AND expires_at < ?", openStatuses, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// GenerateTransactionNumber produces the next PAY-YYYY-NNNNN number
func (r *GormPaymentRepository) GenerateTransactionNumber(ctx context.Context) (string, error) {
	return nextBusinessNumber(dbFrom(ctx, r.db), &payment.Transaction{}, "transaction_number", "PAY")
}

func (r *GormPaymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*payment.Transaction, error) {
	var txn payment.Transaction
	if err := dbFrom(ctx, r.db).
		Preload("Logs").
		Where(query, args...).
		First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

var _ payment.Repository = (*GormPaymentRepository)(nil)
