package shipping

import (
	"context"
	"time"

	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// RateRequest asks a carrier for a shipping quote
type RateRequest struct {
	ServiceType    ServiceType
	Package        PackageSize
	FromPrefecture string
	ToPrefecture   string
	IsCOD          bool
	CODAmount      valueobject.Money
}

// RateQuote is the carrier's fee answer
type RateQuote struct {
	Fees          FeeBreakdown
	EstimatedDays int
	ServiceType   ServiceType
}

// ShipmentRequest registers a package with the carrier
type ShipmentRequest struct {
	ShipmentNumber string
	ServiceType    ServiceType
	Sender         valueobject.Address
	Receiver       valueobject.Address
	Package        PackageSize
	IsCOD          bool
	CODAmount      valueobject.Money
}

// ShipmentRegistration is the carrier's registration result
type ShipmentRegistration struct {
	TrackingNumber string
	Fees           FeeBreakdown
	LabelURL       string
}

// TrackingNotification is the normalized form of a carrier webhook
type TrackingNotification struct {
	TrackingNumber string
	CarrierEventID string
	Status         Status
	Description    string
	Location       string
	OccurredAt     time.Time
}

// Carrier is the port every shipping carrier adapter implements
type Carrier interface {
	// Name identifies the carrier in shipment records
	Name() string

	// GetRate quotes the fee for a package and route
	GetRate(ctx context.Context, req *RateRequest) (*RateQuote, error)

	// RegisterShipment books the package and returns the tracking number
	RegisterShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentRegistration, error)

	// VerifyWebhook checks the tracking webhook signature. Returns
	// shared.ErrInvalidSignature on mismatch.
	VerifyWebhook(payload []byte, signature string) error

	// ParseTrackingPayload normalizes a verified webhook payload
	ParseTrackingPayload(payload []byte) (*TrackingNotification, error)
}
