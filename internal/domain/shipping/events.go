package shipping

import (
	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
)

// Event types published by the shipment aggregate
const (
	EventShipmentRegistered = "shipment.registered"
)

const aggregateTypeShipment = "ShippingOrder"

// ShipmentRegisteredEvent fires when the carrier accepts a shipment
// and assigns a tracking number
type ShipmentRegisteredEvent struct {
	shared.BaseDomainEvent
	ShipmentNumber string      `json:"shipment_number"`
	OrderID        uuid.UUID   `json:"order_id"`
	TrackingNumber string      `json:"tracking_number"`
	CarrierName    string      `json:"carrier_name"`
	ServiceType    ServiceType `json:"service_type"`
	TotalFee       int64       `json:"total_fee"`
}

// NewShipmentRegisteredEvent creates the event
func NewShipmentRegisteredEvent(s *ShippingOrder) *ShipmentRegisteredEvent {
	return &ShipmentRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventShipmentRegistered, aggregateTypeShipment, s.ID),
		ShipmentNumber:  s.ShipmentNumber,
		OrderID:         s.OrderID,
		TrackingNumber:  s.TrackingNumber,
		CarrierName:     s.CarrierName,
		ServiceType:     s.ServiceType,
		TotalFee:        s.Fees.Total.IntPart(),
	}
}
