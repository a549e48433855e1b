package shipping

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
	"github.com/komono/backend/internal/domain/shipping"
)

// Service coordinates carrier shipments: creation from confirmed
// orders, tracking ingestion, and mirroring delivery progress onto
// the parent order
type Service struct {
	shipments shipping.Repository
	orders    order.Repository
	carrier   shipping.Carrier
	sender    valueobject.Address
	tx        shared.TransactionManager
	publisher shared.EventPublisher
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewService creates a shipping service. The sender address is the
// warehouse the platform ships from.
func NewService(shipments shipping.Repository, orders order.Repository, carrier shipping.Carrier, sender valueobject.Address, tx shared.TransactionManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		shipments: shipments,
		orders:    orders,
		carrier:   carrier,
		sender:    sender,
		tx:        tx,
		validate:  validator.New(),
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// CreateShipment books the package with the carrier and advances the
// order to Packed. Only confirmed or processing orders ship, and an
// order owns at most one active shipment.
func (s *Service) CreateShipment(ctx context.Context, req CreateShipmentRequest) (*shipping.ShippingOrder, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	o, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusConfirmed && o.Status != order.StatusProcessing {
		return nil, fmt.Errorf("%w: order in status %s cannot ship", shared.ErrInvalidTransition, o.Status)
	}

	if existing, err := s.shipments.FindActiveByOrder(ctx, req.OrderID); err == nil && existing != nil {
		return nil, shared.NewConflictError("SHIPMENT_EXISTS",
			"order already has active shipment "+existing.ShipmentNumber)
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	number, err := s.shipments.GenerateShipmentNumber(ctx)
	if err != nil {
		return nil, err
	}
	shipment, err := shipping.NewShippingOrder(number, o.ID, s.carrier.Name(), req.ServiceType,
		s.sender, o.ShippingAddress, req.Package)
	if err != nil {
		return nil, err
	}
	if req.IsCOD {
		if err := shipment.EnableCOD(o.GrandTotal); err != nil {
			return nil, err
		}
	}

	registration, err := s.carrier.RegisterShipment(ctx, &shipping.ShipmentRequest{
		ShipmentNumber: shipment.ShipmentNumber,
		ServiceType:    req.ServiceType,
		Sender:         s.sender,
		Receiver:       o.ShippingAddress,
		Package:        req.Package,
		IsCOD:          shipment.IsCOD,
		CODAmount:      shipment.CODAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCarrierUnavailable, err)
	}
	if err := shipment.AssignTracking(registration.TrackingNumber, registration.Fees); err != nil {
		return nil, err
	}

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.shipments.Save(txCtx, shipment); err != nil {
			return err
		}
		if o.Status == order.StatusConfirmed {
			if err := o.Transition(order.StatusProcessing); err != nil {
				return err
			}
		}
		if err := o.Transition(order.StatusPacked); err != nil {
			return err
		}
		return s.orders.SaveWithLock(txCtx, o)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, shipping.NewShipmentRegisteredEvent(shipment))
	s.logger.Info("shipment created",
		zap.String("shipment_number", shipment.ShipmentNumber),
		zap.String("order_number", o.OrderNumber),
		zap.String("tracking_number", shipment.TrackingNumber))
	return shipment, nil
}

// IngestTrackingEvent appends a carrier tracking event and mirrors
// delivery progress onto the parent order. Duplicate carrier event
// ids are idempotent no-ops.
func (s *Service) IngestTrackingEvent(ctx context.Context, req TrackingEventRequest) (*shipping.ShippingOrder, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	shipment, err := s.shipments.FindByTrackingNumber(ctx, req.TrackingNumber)
	if err != nil {
		return nil, err
	}

	applied, err := shipment.AppendTracking(req.CarrierEventID, req.Status, req.Description, req.Location, req.OccurredAt)
	if err != nil {
		return nil, err
	}
	if !applied {
		s.logger.Info("tracking event already ingested",
			zap.String("carrier_event_id", req.CarrierEventID))
		return shipment, nil
	}

	var events []shared.DomainEvent
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.shipments.SaveWithLock(txCtx, shipment); err != nil {
			return err
		}
		o, err := s.orders.FindByID(txCtx, shipment.OrderID)
		if err != nil {
			return err
		}
		events, err = s.mirrorToOrder(o, shipment, req.Status)
		if err != nil {
			return err
		}
		return s.orders.SaveWithLock(txCtx, o)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events...)
	return shipment, nil
}

// IngestCarrierWebhook verifies, parses and ingests a raw carrier
// webhook payload
func (s *Service) IngestCarrierWebhook(ctx context.Context, payload []byte, signature string) (*shipping.ShippingOrder, error) {
	if err := s.carrier.VerifyWebhook(payload, signature); err != nil {
		s.logger.Warn("carrier webhook signature verification failed")
		return nil, shared.ErrInvalidSignature
	}
	notification, err := s.carrier.ParseTrackingPayload(payload)
	if err != nil {
		return nil, err
	}
	return s.IngestTrackingEvent(ctx, TrackingEventRequest{
		TrackingNumber: notification.TrackingNumber,
		CarrierEventID: notification.CarrierEventID,
		Status:         notification.Status,
		Description:    notification.Description,
		Location:       notification.Location,
		OccurredAt:     notification.OccurredAt,
	})
}

// mirrorToOrder advances the order to match shipment progress. The
// order walks forward through any stages the carrier never scanned,
// so a terminal event still lands when intermediate scans were
// skipped. A mirror the order already passed is a no-op, keeping
// out-of-order and replayed events harmless.
func (s *Service) mirrorToOrder(o *order.Order, shipment *shipping.ShippingOrder, status shipping.Status) ([]shared.DomainEvent, error) {
	if status == shipping.StatusFailed {
		if o.Status == order.StatusOutForDelivery {
			if err := o.MarkDeliveryFailed("carrier reported delivery failure"); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	target, ok := orderMirrorTarget(status)
	if !ok {
		return nil, nil
	}

	var events []shared.DomainEvent
	for _, step := range []order.OrderStatus{order.StatusShipped, order.StatusOutForDelivery, order.StatusDelivered} {
		if o.Status.CanTransitionTo(step) {
			if err := o.Transition(step); err != nil {
				return nil, err
			}
			switch step {
			case order.StatusShipped:
				events = append(events, order.NewOrderShippedEvent(o, shipment.TrackingNumber))
			case order.StatusDelivered:
				events = append(events, order.NewOrderDeliveredEvent(o))
			}
		}
		if step == target {
			break
		}
	}
	return events, nil
}

func orderMirrorTarget(status shipping.Status) (order.OrderStatus, bool) {
	switch status {
	case shipping.StatusPickedUp, shipping.StatusInTransit:
		return order.StatusShipped, true
	case shipping.StatusOutForDelivery:
		return order.StatusOutForDelivery, true
	case shipping.StatusDelivered:
		return order.StatusDelivered, true
	}
	return "", false
}

func (s *Service) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("event publish failed", zap.Error(err))
	}
}
