package shipping

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists shipping orders and their tracking events
type Repository interface {
	Save(ctx context.Context, shipment *ShippingOrder) error
	SaveWithLock(ctx context.Context, shipment *ShippingOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*ShippingOrder, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*ShippingOrder, error)

	// FindActiveByOrder returns the non-terminal shipment for the
	// order, or shared.ErrNotFound when none exists. An order owns at
	// most one active shipment.
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*ShippingOrder, error)

	// GenerateShipmentNumber produces the next formatted business
	// number (SHP-YYYY-NNNNN)
	GenerateShipmentNumber(ctx context.Context) (string, error)
}
