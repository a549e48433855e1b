package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormPaymentMetricsProvider implements PaymentMetricsProvider using GORM.
// It queries the payment_transactions table directly for aggregated metrics.
type GormPaymentMetricsProvider struct {
	db *gorm.DB
}

// NewGormPaymentMetricsProvider creates a new GormPaymentMetricsProvider.
func NewGormPaymentMetricsProvider(db *gorm.DB) *GormPaymentMetricsProvider {
	return &GormPaymentMetricsProvider{db: db}
}

// GetOpenTransactionCount returns the number of transactions still
// awaiting a gateway outcome.
func (p *GormPaymentMetricsProvider) GetOpenTransactionCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("payment_transactions").
		Where("status IN ?", []string{"CREATED", "PENDING", "PROCESSING"}).
		Count(&count).Error

	return count, err
}
