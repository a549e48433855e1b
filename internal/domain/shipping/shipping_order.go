package shipping

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// ServiceType selects the carrier service level
type ServiceType string

const (
	ServiceStandard ServiceType = "STANDARD"
	ServiceExpress  ServiceType = "EXPRESS"
	ServiceCool     ServiceType = "COOL"
)

// IsValid checks if the service type is a known value
func (s ServiceType) IsValid() bool {
	return s == ServiceStandard || s == ServiceExpress || s == ServiceCool
}

// PackageSize holds the physical package dimensions
type PackageSize struct {
	WeightGrams int `gorm:"not null;default:0" json:"weight_grams"`
	WidthCM     int `gorm:"not null;default:0" json:"width_cm"`
	HeightCM    int `gorm:"not null;default:0" json:"height_cm"`
	DepthCM     int `gorm:"not null;default:0" json:"depth_cm"`
}

// TotalCM returns the three-side sum carriers rate by
func (p PackageSize) TotalCM() int {
	return p.WidthCM + p.HeightCM + p.DepthCM
}

// FeeBreakdown is the carrier's quoted fee decomposition
type FeeBreakdown struct {
	BaseFee   valueobject.Money `gorm:"type:decimal(12,0)" json:"base_fee"`
	Surcharge valueobject.Money `gorm:"type:decimal(12,0)" json:"surcharge"`
	CODFee    valueobject.Money `gorm:"type:decimal(12,0)" json:"cod_fee"`
	Total     valueobject.Money `gorm:"type:decimal(12,0)" json:"total"`
}

// ShippingOrder is the shipment aggregate for one order. Sender and
// receiver are snapshots; the tracking list is append-only.
type ShippingOrder struct {
	shared.BaseAggregateRoot
	ShipmentNumber string              `gorm:"size:32;not null;uniqueIndex" json:"shipment_number"`
	OrderID        uuid.UUID           `gorm:"type:uuid;not null;index" json:"order_id"`
	CarrierName    string              `gorm:"size:30;not null" json:"carrier_name"`
	ServiceType    ServiceType         `gorm:"size:20;not null" json:"service_type"`
	TrackingNumber string              `gorm:"size:64;uniqueIndex" json:"tracking_number"`
	Status         Status              `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	Sender         valueobject.Address `gorm:"type:jsonb" json:"sender"`
	Receiver       valueobject.Address `gorm:"type:jsonb" json:"receiver"`
	Package        PackageSize         `gorm:"embedded;embeddedPrefix:package_" json:"package"`
	IsCOD          bool                `gorm:"default:false" json:"is_cod"`
	CODAmount      valueobject.Money   `gorm:"type:decimal(12,0)" json:"cod_amount"`
	Fees           FeeBreakdown        `gorm:"embedded;embeddedPrefix:fee_" json:"fees"`
	ShippedAt      *time.Time          `gorm:"" json:"shipped_at"`
	DeliveredAt    *time.Time          `gorm:"" json:"delivered_at"`
	Events         []TrackingEvent     `gorm:"foreignKey:ShippingOrderID" json:"events"`
}

// TrackingEvent is one append-only entry of the carrier audit trail.
// Events are never edited or deleted; duplicates are rejected by
// carrier event id.
type TrackingEvent struct {
	shared.BaseEntity
	ShippingOrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"shipping_order_id"`
	CarrierEventID  string    `gorm:"size:64;not null;uniqueIndex" json:"carrier_event_id"`
	Status          Status    `gorm:"size:20;not null" json:"status"`
	Description     string    `gorm:"size:500" json:"description"`
	Location        string    `gorm:"size:200" json:"location"`
	OccurredAt      time.Time `gorm:"not null" json:"occurred_at"`
}

// TableName returns the table name
func (ShippingOrder) TableName() string {
	return "shipping_orders"
}

// TableName returns the table name
func (TrackingEvent) TableName() string {
	return "shipping_tracking_events"
}

// NewShippingOrder creates a pending shipment for an order
func NewShippingOrder(shipmentNumber string, orderID uuid.UUID, carrierName string, serviceType ServiceType, sender, receiver valueobject.Address, pkg PackageSize) (*ShippingOrder, error) {
	if shipmentNumber == "" {
		return nil, shared.NewDomainError("INVALID_SHIPMENT_NUMBER", "shipment number cannot be empty")
	}
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "order id cannot be empty")
	}
	if !serviceType.IsValid() {
		return nil, shared.NewDomainError("INVALID_SERVICE_TYPE", "unknown service type: "+string(serviceType))
	}
	if sender.IsZero() || receiver.IsZero() {
		return nil, shared.NewDomainError("INVALID_ADDRESS", "sender and receiver addresses are required")
	}
	return &ShippingOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ShipmentNumber:    shipmentNumber,
		OrderID:           orderID,
		CarrierName:       carrierName,
		ServiceType:       serviceType,
		Status:            StatusPending,
		Sender:            sender,
		Receiver:          receiver,
		Package:           pkg,
		CODAmount:         valueobject.ZeroJPY(),
	}, nil
}

// AssignTracking attaches the carrier registration result
func (s *ShippingOrder) AssignTracking(trackingNumber string, fees FeeBreakdown) error {
	if trackingNumber == "" {
		return shared.NewDomainError("INVALID_TRACKING_NUMBER", "tracking number cannot be empty")
	}
	s.TrackingNumber = trackingNumber
	s.Fees = fees
	return nil
}

// EnableCOD marks the shipment cash-on-delivery for the given amount
func (s *ShippingOrder) EnableCOD(amount valueobject.Money) error {
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "COD amount must be positive")
	}
	s.IsCOD = true
	s.CODAmount = amount
	return nil
}

// Transition moves the shipment to the target status
func (s *ShippingOrder) Transition(target Status) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "unknown shipping status: "+target.String())
	}
	if !s.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: shipment cannot move from %s to %s", shared.ErrInvalidTransition, s.Status, target)
	}
	now := time.Now()
	switch target {
	case StatusPickedUp:
		s.ShippedAt = &now
	case StatusDelivered:
		s.DeliveredAt = &now
	}
	s.Status = target
	return nil
}

// HasEvent reports whether a carrier event id was already ingested
func (s *ShippingOrder) HasEvent(carrierEventID string) bool {
	for _, e := range s.Events {
		if e.CarrierEventID == carrierEventID {
			return true
		}
	}
	return false
}

// AppendTracking records a carrier tracking event and advances the
// shipment status when the event moves it forward, filling in any
// skipped scans. Duplicate carrier event ids are idempotent no-ops.
// Out-of-order events append to the trail without regressing the
// status.
func (s *ShippingOrder) AppendTracking(carrierEventID string, status Status, description, location string, occurredAt time.Time) (bool, error) {
	if carrierEventID == "" {
		return false, shared.NewDomainError("INVALID_EVENT_ID", "carrier event id cannot be empty")
	}
	if !status.IsValid() {
		return false, shared.NewDomainError("INVALID_STATUS", "unknown shipping status: "+status.String())
	}
	if s.HasEvent(carrierEventID) {
		return false, nil
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	s.Events = append(s.Events, TrackingEvent{
		BaseEntity:      shared.NewBaseEntity(),
		ShippingOrderID: s.ID,
		CarrierEventID:  carrierEventID,
		Status:          status,
		Description:     description,
		Location:        location,
		OccurredAt:      occurredAt,
	})
	if err := s.advanceTo(status); err != nil {
		return false, err
	}
	return true, nil
}

// advanceTo moves the shipment toward target, stepping through any
// scans the carrier skipped. Events that would move the status
// backward or sideways off the delivery path stay trail-only.
func (s *ShippingOrder) advanceTo(target Status) error {
	if target == s.Status {
		return nil
	}
	if s.Status.CanTransitionTo(target) {
		return s.Transition(target)
	}
	cur, onPath := s.Status.pathIndex()
	dst, targetOnPath := target.pathIndex()
	if !onPath || !targetOnPath || dst <= cur {
		return nil
	}
	for _, step := range deliveryPath[cur+1 : dst+1] {
		if err := s.Transition(step); err != nil {
			return err
		}
	}
	return nil
}
