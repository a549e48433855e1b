package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shipping"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var terminalShipmentStatuses = []shipping.Status{
	shipping.StatusDelivered,
	shipping.StatusReturned,
}

// GormShippingRepository implements shipping.Repository using GORM
type GormShippingRepository struct {
	db *gorm.DB
}

// NewGormShippingRepository creates a new GormShippingRepository
func NewGormShippingRepository(db *gorm.DB) *GormShippingRepository {
	return &GormShippingRepository{db: db}
}

// Save creates or updates a shipment with its tracking events
func (r *GormShippingRepository) Save(ctx context.Context, shipment *shipping.ShippingOrder) error {
	return dbFrom(ctx, r.db).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(shipment).Error
}

// SaveWithLock persists under an optimistic version check. Tracking
// events are append-only; replayed carrier events collide on the
// carrier_event_id unique index and are skipped.
func (r *GormShippingRepository) SaveWithLock(ctx context.Context, shipment *shipping.ShippingOrder) error {
	db := dbFrom(ctx, r.db)
	expected := shipment.Version

	result := db.Model(&shipping.ShippingOrder{}).
		Where("id = ? AND version = ?", shipment.ID, expected).
		Updates(map[string]interface{}{
			"tracking_number": shipment.TrackingNumber,
			"status":          shipment.Status,
			"fee_base_fee":    shipment.Fees.BaseFee,
			"fee_surcharge":   shipment.Fees.Surcharge,
			"fee_cod_fee":     shipment.Fees.CODFee,
			"fee_total":       shipment.Fees.Total,
			"shipped_at":      shipment.ShippedAt,
			"delivered_at":    shipment.DeliveredAt,
			"version":         expected + 1,
			"updated_at":      shipment.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	shipment.Version = expected + 1

	if len(shipment.Events) > 0 {
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "carrier_event_id"}},
			DoNothing: true,
		}).Create(&shipment.Events).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID loads a shipment with its tracking events
func (r *GormShippingRepository) FindByID(ctx context.Context, id uuid.UUID) (*shipping.ShippingOrder, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByTrackingNumber loads a shipment by its carrier tracking number
func (r *GormShippingRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*shipping.ShippingOrder, error) {
	return r.findOne(ctx, "tracking_number = ?", trackingNumber)
}

// FindActiveByOrder returns the non-terminal shipment for the order
func (r *GormShippingRepository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*shipping.ShippingOrder, error) {
	return r.findOne(ctx, "order_id = ? AND status NOT IN ?", orderID, terminalShipmentStatuses)
}

// GenerateShipmentNumber produces the next SHP-YYYY-NNNNN number
func (r *GormShippingRepository) GenerateShipmentNumber(ctx context.Context) (string, error) {
	return nextBusinessNumber(dbFrom(ctx, r.db), &shipping.ShippingOrder{}, "shipment_number", "SHP")
}

func (r *GormShippingRepository) findOne(ctx context.Context, query string, args ...interface{}) (*shipping.ShippingOrder, error) {
	var shipment shipping.ShippingOrder
	if err := dbFrom(ctx, r.db).
		Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("occurred_at ASC")
		}).
		Where(query, args...).
		First(&shipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &shipment, nil
}

var _ shipping.Repository = (*GormShippingRepository)(nil)
