package shipping

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
	"github.com/komono/backend/internal/domain/shipping"
)

type fakeShipmentRepo struct {
	shipments map[uuid.UUID]*shipping.ShippingOrder
	seq       int
}

func newFakeShipmentRepo() *fakeShipmentRepo {
	return &fakeShipmentRepo{shipments: make(map[uuid.UUID]*shipping.ShippingOrder)}
}

func (r *fakeShipmentRepo) Save(_ context.Context, s *shipping.ShippingOrder) error {
	r.shipments[s.ID] = s
	return nil
}

func (r *fakeShipmentRepo) SaveWithLock(ctx context.Context, s *shipping.ShippingOrder) error {
	return r.Save(ctx, s)
}

func (r *fakeShipmentRepo) FindByID(_ context.Context, id uuid.UUID) (*shipping.ShippingOrder, error) {
	s, ok := r.shipments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

func (r *fakeShipmentRepo) FindByTrackingNumber(_ context.Context, trackingNumber string) (*shipping.ShippingOrder, error) {
	for _, s := range r.shipments {
		if s.TrackingNumber == trackingNumber {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeShipmentRepo) FindActiveByOrder(_ context.Context, orderID uuid.UUID) (*shipping.ShippingOrder, error) {
	for _, s := range r.shipments {
		if s.OrderID == orderID && !s.Status.IsTerminal() {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeShipmentRepo) GenerateShipmentNumber(_ context.Context) (string, error) {
	r.seq++
	return fmt.Sprintf("SHP-2026-%05d", r.seq), nil
}

type fakeOrderRepo struct {
	orders map[uuid.UUID]*order.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*order.Order)}
}

func (r *fakeOrderRepo) Save(_ context.Context, o *order.Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) SaveWithLock(ctx context.Context, o *order.Order) error {
	return r.Save(ctx, o)
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) FindByNumber(_ context.Context, number string) (*order.Order, error) {
	for _, o := range r.orders {
		if o.OrderNumber == number {
			return o, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOrderRepo) FindByUser(_ context.Context, _ uuid.UUID, _ shared.Filter) (*shared.Paginated[order.Order], error) {
	return &shared.Paginated[order.Order]{}, nil
}

func (r *fakeOrderRepo) GenerateOrderNumber(_ context.Context) (string, error) {
	return "ORD-2026-00001", nil
}

type fakeCarrier struct {
	registerErr  error
	registered   []*shipping.ShipmentRequest
	notification *shipping.TrackingNotification
	trackingSeq  int
}

func (c *fakeCarrier) Name() string { return "yamato" }

func (c *fakeCarrier) GetRate(_ context.Context, _ *shipping.RateRequest) (*shipping.RateQuote, error) {
	return &shipping.RateQuote{EstimatedDays: 2}, nil
}

func (c *fakeCarrier) RegisterShipment(_ context.Context, req *shipping.ShipmentRequest) (*shipping.ShipmentRegistration, error) {
	if c.registerErr != nil {
		return nil, c.registerErr
	}
	c.registered = append(c.registered, req)
	c.trackingSeq++
	return &shipping.ShipmentRegistration{
		TrackingNumber: fmt.Sprintf("4%011d", c.trackingSeq),
		Fees:           shipping.FeeBreakdown{BaseFee: valueobject.NewMoneyJPYFromInt(880)},
	}, nil
}

func (c *fakeCarrier) VerifyWebhook(_ []byte, signature string) error {
	if signature != "valid" {
		return shared.ErrInvalidSignature
	}
	return nil
}

func (c *fakeCarrier) ParseTrackingPayload(_ []byte) (*shipping.TrackingNotification, error) {
	return c.notification, nil
}

type capturePublisher struct {
	events []shared.DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func confirmedOrder(t *testing.T) *order.Order {
	t.Helper()
	addr, err := valueobject.NewAddress("060-0001", "北海道", "札幌市中央区", "北1条西2丁目", "田中美咲")
	require.NoError(t, err)
	o, err := order.NewOrder("ORD-2026-00314", uuid.New(), addr, addr)
	require.NoError(t, err)
	unit := valueobject.NewMoneyJPYFromInt(4600)
	require.NoError(t, o.AddItem(uuid.New(), nil, "津軽びいどろのグラス", 1, unit, false, ""))
	require.NoError(t, o.SetTotals(order.Totals{
		Subtotal:       unit,
		ShippingCost:   valueobject.ZeroJPY(),
		TaxAmount:      valueobject.ZeroJPY(),
		TaxIncluded:    true,
		DiscountAmount: valueobject.ZeroJPY(),
		Total:          unit,
	}))
	require.NoError(t, o.Submit())
	require.NoError(t, o.Transition(order.StatusConfirmed))
	return o
}

func newShippingFixture(t *testing.T) (*Service, *fakeShipmentRepo, *fakeOrderRepo, *fakeCarrier) {
	t.Helper()
	shipments := newFakeShipmentRepo()
	orders := newFakeOrderRepo()
	carrier := &fakeCarrier{}
	sender, err := valueobject.NewAddress("110-0016", "東京都", "台東区", "台東4-5-6", "コモノ物流センター")
	require.NoError(t, err)
	svc := NewService(shipments, orders, carrier, sender, shared.NopTransactionManager{}, nil)
	return svc, shipments, orders, carrier
}

func TestCreateShipment(t *testing.T) {
	t.Run("books the package and advances the order to packed", func(t *testing.T) {
		svc, _, orders, carrier := newShippingFixture(t)
		o := confirmedOrder(t)
		require.NoError(t, orders.Save(context.Background(), o))

		shipment, err := svc.CreateShipment(context.Background(), CreateShipmentRequest{
			OrderID:     o.ID,
			ServiceType: shipping.ServiceStandard,
			Package:     shipping.PackageSize{WidthCM: 30, HeightCM: 20, DepthCM: 15, WeightGrams: 2000},
		})
		require.NoError(t, err)

		assert.Equal(t, shipping.StatusPending, shipment.Status)
		assert.NotEmpty(t, shipment.TrackingNumber)
		assert.Equal(t, "yamato", shipment.CarrierName)
		assert.Equal(t, order.StatusPacked, o.Status)
		require.Len(t, carrier.registered, 1)
		assert.Equal(t, o.ShippingAddress, carrier.registered[0].Receiver)
	})

	t.Run("cash on delivery carries the order total", func(t *testing.T) {
		svc, _, orders, carrier := newShippingFixture(t)
		o := confirmedOrder(t)
		require.NoError(t, orders.Save(context.Background(), o))

		shipment, err := svc.CreateShipment(context.Background(), CreateShipmentRequest{
			OrderID:     o.ID,
			ServiceType: shipping.ServiceStandard,
			IsCOD:       true,
		})
		require.NoError(t, err)
		assert.True(t, shipment.IsCOD)
		assert.Equal(t, int64(4600), shipment.CODAmount.IntPart())
		assert.True(t, carrier.registered[0].IsCOD)
	})

	t.Run("rejects a second active shipment for the same order", func(t *testing.T) {
		svc, _, orders, _ := newShippingFixture(t)
		o := confirmedOrder(t)
		require.NoError(t, orders.Save(context.Background(), o))

		_, err := svc.CreateShipment(context.Background(), CreateShipmentRequest{
			OrderID:     o.ID,
			ServiceType: shipping.ServiceStandard,
		})
		require.NoError(t, err)

		// force the order back into a shippable status to isolate the
		// active-shipment check
		o.Status = order.StatusProcessing
		_, err = svc.CreateShipment(context.Background(), CreateShipmentRequest{
			OrderID:     o.ID,
			ServiceType: shipping.ServiceStandard,
		})
		require.Error(t, err)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "SHIPMENT_EXISTS", derr.Code)
	})

	t.Run("carrier outage surfaces without mutating the order", func(t *testing.T) {
		svc, _, orders, carrier := newShippingFixture(t)
		o := confirmedOrder(t)
		require.NoError(t, orders.Save(context.Background(), o))
		carrier.registerErr = errors.New("carrier api down")

		_, err := svc.CreateShipment(context.Background(), CreateShipmentRequest{
			OrderID:     o.ID,
			ServiceType: shipping.ServiceStandard,
		})
		require.ErrorIs(t, err, shared.ErrCarrierUnavailable)
		assert.Equal(t, order.StatusConfirmed, o.Status)
	})

	t.Run("rejects orders that are not ready to ship", func(t *testing.T) {
		svc, _, orders, _ := newShippingFixture(t)
		o := confirmedOrder(t)
		require.NoError(t, o.Transition(order.StatusProcessing))
		require.NoError(t, o.Transition(order.StatusPacked))
		require.NoError(t, orders.Save(context.Background(), o))

		_, err := svc.CreateShipment(context.Background(), CreateShipmentRequest{
			OrderID:     o.ID,
			ServiceType: shipping.ServiceStandard,
		})
		require.ErrorIs(t, err, shared.ErrInvalidTransition)
	})
}

func TestIngestTrackingEvent(t *testing.T) {
	ship := func(t *testing.T, svc *Service, orders *fakeOrderRepo) (*shipping.ShippingOrder, *order.Order) {
		t.Helper()
		o := confirmedOrder(t)
		require.NoError(t, orders.Save(context.Background(), o))
		shipment, err := svc.CreateShipment(context.Background(), CreateShipmentRequest{
			OrderID:     o.ID,
			ServiceType: shipping.ServiceStandard,
		})
		require.NoError(t, err)
		return shipment, o
	}

	event := func(tracking, eventID string, status shipping.Status) TrackingEventRequest {
		return TrackingEventRequest{
			TrackingNumber: tracking,
			CarrierEventID: eventID,
			Status:         status,
			Location:       "羽田クロノゲートベース",
			OccurredAt:     time.Now(),
		}
	}

	t.Run("mirrors carrier progress onto the order", func(t *testing.T) {
		svc, _, orders, _ := newShippingFixture(t)
		shipment, o := ship(t, svc, orders)

		_, err := svc.IngestTrackingEvent(context.Background(), event(shipment.TrackingNumber, "ev-1", shipping.StatusPickedUp))
		require.NoError(t, err)
		assert.Equal(t, shipping.StatusPickedUp, shipment.Status)
		assert.Equal(t, order.StatusShipped, o.Status)

		for i, status := range []shipping.Status{
			shipping.StatusInTransit, shipping.StatusOutForDelivery, shipping.StatusDelivered,
		} {
			_, err := svc.IngestTrackingEvent(context.Background(),
				event(shipment.TrackingNumber, fmt.Sprintf("ev-%d", i+2), status))
			require.NoError(t, err)
		}
		assert.Equal(t, shipping.StatusDelivered, shipment.Status)
		assert.Equal(t, order.StatusDelivered, o.Status)
		assert.NotNil(t, shipment.DeliveredAt)
	})

	t.Run("terminal event lands when the carrier skips scans", func(t *testing.T) {
		svc, _, orders, _ := newShippingFixture(t)
		pub := &capturePublisher{}
		svc.SetEventPublisher(pub)
		shipment, o := ship(t, svc, orders)

		_, err := svc.IngestTrackingEvent(context.Background(), event(shipment.TrackingNumber, "ev-1", shipping.StatusPickedUp))
		require.NoError(t, err)

		// no out-for-delivery scan; the delivered event still settles
		// both the shipment and the order
		_, err = svc.IngestTrackingEvent(context.Background(), event(shipment.TrackingNumber, "ev-2", shipping.StatusDelivered))
		require.NoError(t, err)

		assert.Equal(t, shipping.StatusDelivered, shipment.Status)
		assert.Equal(t, order.StatusDelivered, o.Status)
		assert.NotNil(t, shipment.DeliveredAt)

		var types []string
		for _, e := range pub.events {
			types = append(types, e.EventType())
		}
		assert.Contains(t, types, order.EventOrderShipped)
		assert.Contains(t, types, order.EventOrderDelivered)
	})

	t.Run("duplicate carrier event ids are no-ops", func(t *testing.T) {
		svc, _, orders, _ := newShippingFixture(t)
		shipment, o := ship(t, svc, orders)

		_, err := svc.IngestTrackingEvent(context.Background(), event(shipment.TrackingNumber, "ev-1", shipping.StatusPickedUp))
		require.NoError(t, err)
		_, err = svc.IngestTrackingEvent(context.Background(), event(shipment.TrackingNumber, "ev-1", shipping.StatusPickedUp))
		require.NoError(t, err)

		assert.Len(t, shipment.Events, 1)
		assert.Equal(t, order.StatusShipped, o.Status)
	})

	t.Run("out of order events never regress the shipment", func(t *testing.T) {
		svc, _, orders, _ := newShippingFixture(t)
		shipment, o := ship(t, svc, orders)

		for i, status := range []shipping.Status{
			shipping.StatusPickedUp, shipping.StatusInTransit, shipping.StatusOutForDelivery,
		} {
			_, err := svc.IngestTrackingEvent(context.Background(),
				event(shipment.TrackingNumber, fmt.Sprintf("ev-%d", i+1), status))
			require.NoError(t, err)
		}

		// a delayed pickup notification arrives after out-for-delivery
		_, err := svc.IngestTrackingEvent(context.Background(), event(shipment.TrackingNumber, "ev-late", shipping.StatusPickedUp))
		require.NoError(t, err)
		assert.Equal(t, shipping.StatusOutForDelivery, shipment.Status)
		assert.Len(t, shipment.Events, 4, "the event is recorded even when the status stands")
		assert.Equal(t, order.StatusOutForDelivery, o.Status)
	})

	t.Run("delivery failure flags the order for staff follow-up", func(t *testing.T) {
		svc, _, orders, _ := newShippingFixture(t)
		shipment, o := ship(t, svc, orders)

		for i, status := range []shipping.Status{
			shipping.StatusPickedUp, shipping.StatusInTransit, shipping.StatusOutForDelivery,
		} {
			_, err := svc.IngestTrackingEvent(context.Background(),
				event(shipment.TrackingNumber, fmt.Sprintf("ev-%d", i+1), status))
			require.NoError(t, err)
		}
		_, err := svc.IngestTrackingEvent(context.Background(), event(shipment.TrackingNumber, "ev-fail", shipping.StatusFailed))
		require.NoError(t, err)

		assert.Equal(t, shipping.StatusFailed, shipment.Status)
		assert.Equal(t, order.StatusOutForDelivery, o.Status, "order awaits staff follow-up")
		assert.NotNil(t, o.DeliveryFailedAt)
	})
}

func TestIngestCarrierWebhook(t *testing.T) {
	t.Run("verifies the signature before touching state", func(t *testing.T) {
		svc, _, orders, carrier := newShippingFixture(t)
		o := confirmedOrder(t)
		require.NoError(t, orders.Save(context.Background(), o))
		shipment, err := svc.CreateShipment(context.Background(), CreateShipmentRequest{
			OrderID:     o.ID,
			ServiceType: shipping.ServiceStandard,
		})
		require.NoError(t, err)
		carrier.notification = &shipping.TrackingNotification{
			TrackingNumber: shipment.TrackingNumber,
			CarrierEventID: "ev-1",
			Status:         shipping.StatusPickedUp,
			OccurredAt:     time.Now(),
		}

		_, err = svc.IngestCarrierWebhook(context.Background(), []byte(`{}`), "forged")
		require.ErrorIs(t, err, shared.ErrInvalidSignature)
		assert.Equal(t, shipping.StatusPending, shipment.Status)

		got, err := svc.IngestCarrierWebhook(context.Background(), []byte(`{}`), "valid")
		require.NoError(t, err)
		assert.Equal(t, shipping.StatusPickedUp, got.Status)
	})
}
