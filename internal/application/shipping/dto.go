package shipping

import (
	"time"

	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shipping"
)

// CreateShipmentRequest books a carrier shipment for a confirmed order
type CreateShipmentRequest struct {
	OrderID     uuid.UUID            `json:"order_id" validate:"required"`
	ServiceType shipping.ServiceType `json:"service_type" validate:"required"`
	Package     shipping.PackageSize `json:"package"`
	IsCOD       bool                 `json:"is_cod"`
}

// TrackingEventRequest ingests one carrier tracking event
type TrackingEventRequest struct {
	TrackingNumber string          `json:"tracking_number" validate:"required"`
	CarrierEventID string          `json:"carrier_event_id" validate:"required"`
	Status         shipping.Status `json:"status" validate:"required"`
	Description    string          `json:"description" validate:"max=500"`
	Location       string          `json:"location" validate:"max=200"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
