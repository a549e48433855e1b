package telemetry_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/komono/backend/internal/infrastructure/telemetry"
)

func newTestMetrics(t *testing.T, provider telemetry.PaymentMetricsProvider) *telemetry.BusinessMetrics {
	t.Helper()
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:           noop.NewMeterProvider().Meter("test"),
		Logger:          zap.NewNop(),
		PaymentProvider: provider,
	})
	require.NoError(t, err)
	return bm
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBusinessMetrics: meter cannot be nil", err.Error())
}

func TestBusinessMetrics_RecordCounters(t *testing.T) {
	bm := newTestMetrics(t, nil)
	ctx := context.Background()

	// Should not panic
	bm.RecordOrderPlaced(ctx, "CREDIT_CARD", 12800)
	bm.RecordOrderCancelled(ctx, "PENDING_PAYMENT")
	bm.RecordPayment(ctx, "gmo", telemetry.PaymentOutcomeCompleted)
	bm.RecordPayment(ctx, "paypay", telemetry.PaymentOutcomeFailed)
	bm.RecordRefund(ctx, "komoju")
	bm.RecordShipmentRegistered(ctx, "yamato", "STANDARD")
	bm.RecordReturnRequest(ctx, "DAMAGED")
	bm.RecordWebhookReplay(ctx, "gmo")
}

func TestBusinessMetrics_NilReceiverSafe(t *testing.T) {
	var bm *telemetry.BusinessMetrics
	ctx := context.Background()

	// Recording on a nil instance is a no-op
	bm.RecordOrderPlaced(ctx, "PAYPAY", 500)
	bm.RecordPayment(ctx, "paypay", telemetry.PaymentOutcomeExpired)
}

type stubPaymentProvider struct {
	count int64
	calls atomic.Int64
}

func (s *stubPaymentProvider) GetOpenTransactionCount(_ context.Context) (int64, error) {
	s.calls.Add(1)
	return s.count, nil
}

func TestBusinessMetrics_PeriodicCollection(t *testing.T) {
	provider := &stubPaymentProvider{count: 3}
	bm := newTestMetrics(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bm.StartPeriodicCollection(ctx, 10*time.Millisecond)
	defer bm.Stop()

	assert.Eventually(t, func() bool {
		return provider.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestBusinessMetrics_StopTwice(t *testing.T) {
	bm := newTestMetrics(t, nil)
	bm.StartPeriodicCollection(context.Background(), time.Minute)

	bm.Stop()
	bm.Stop()
}
