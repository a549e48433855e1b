package telemetry_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/returns"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shipping"
	"github.com/komono/backend/internal/infrastructure/telemetry"
)

func newHandlerFixture(t *testing.T) (*telemetry.MetricsEventHandler, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})

	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  mp.Meter("test.events"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return telemetry.NewMetricsEventHandler(bm), reader
}

func sumByName(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsEventHandler_EventTypes(t *testing.T) {
	h, _ := newHandlerFixture(t)

	types := h.EventTypes()
	assert.Contains(t, types, order.EventOrderCreated)
	assert.Contains(t, types, order.EventOrderCancelled)
	assert.Contains(t, types, payment.EventPaymentCompleted)
	assert.Contains(t, types, payment.EventPaymentFailed)
	assert.Contains(t, types, payment.EventPaymentRefunded)
	assert.Contains(t, types, shipping.EventShipmentRegistered)
	assert.Contains(t, types, returns.EventReturnRequested)
	assert.NotContains(t, types, order.EventOrderDelivered)
}

func TestMetricsEventHandler_OrderEvents(t *testing.T) {
	h, reader := newHandlerFixture(t)
	ctx := context.Background()

	err := h.Handle(ctx, &order.OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(order.EventOrderCreated, "Order", uuid.New()),
		OrderNumber:     "ORD-20260831-000123",
		GrandTotal:      12800,
		PaymentMethod:   "CREDIT_CARD",
	})
	require.NoError(t, err)

	err = h.Handle(ctx, &order.OrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(order.EventOrderCancelled, "Order", uuid.New()),
		OrderNumber:     "ORD-20260831-000124",
		FromStatus:      order.StatusPending,
		Reason:          "customer request",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), sumByName(t, reader, "komono_order_placed_total"))
	assert.Equal(t, int64(12800), sumByName(t, reader, "komono_order_amount_yen_total"))
	assert.Equal(t, int64(1), sumByName(t, reader, "komono_order_cancelled_total"))
}

func TestMetricsEventHandler_PaymentOutcomes(t *testing.T) {
	h, reader := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, &payment.PaymentCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(payment.EventPaymentCompleted, "PaymentTransaction", uuid.New()),
		Method:          payment.MethodCreditCard,
		Amount:          9800,
	}))
	require.NoError(t, h.Handle(ctx, &payment.PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(payment.EventPaymentFailed, "PaymentTransaction", uuid.New()),
		Method:          payment.MethodPayPay,
		Reason:          "expired",
	}))
	require.NoError(t, h.Handle(ctx, &payment.PaymentRefundedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(payment.EventPaymentRefunded, "PaymentTransaction", uuid.New()),
		Method:          payment.MethodCreditCard,
		RefundedAmount:  9800,
	}))

	assert.Equal(t, int64(2), sumByName(t, reader, "komono_payment_total"))
	assert.Equal(t, int64(1), sumByName(t, reader, "komono_refund_total"))
}

func TestMetricsEventHandler_ShipmentAndReturn(t *testing.T) {
	h, reader := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, &shipping.ShipmentRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(shipping.EventShipmentRegistered, "ShippingOrder", uuid.New()),
		CarrierName:     "yamato",
		ServiceType:     shipping.ServiceCool,
	}))
	require.NoError(t, h.Handle(ctx, &returns.ReturnRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(returns.EventReturnRequested, "ReturnRequest", uuid.New()),
		Reason:          "damaged on arrival",
	}))

	assert.Equal(t, int64(1), sumByName(t, reader, "komono_shipment_registered_total"))
	assert.Equal(t, int64(1), sumByName(t, reader, "komono_return_request_total"))
}

func TestMetricsEventHandler_IgnoresUnknownEvents(t *testing.T) {
	h, reader := newHandlerFixture(t)

	err := h.Handle(context.Background(), &order.OrderDeliveredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(order.EventOrderDelivered, "Order", uuid.New()),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), sumByName(t, reader, "komono_order_placed_total"))
}
