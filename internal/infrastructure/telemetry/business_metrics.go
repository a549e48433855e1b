package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics tracks order, payment, shipping, and return activity.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	orderPlacedTotal    *Counter
	orderCancelledTotal *Counter
	orderAmountTotal    *Counter
	paymentTotal        *Counter
	refundTotal         *Counter
	shipmentTotal       *Counter
	returnRequestTotal  *Counter
	webhookReplayTotal  *Counter

	// Gauge metrics (point-in-time values)
	openTransactionCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	paymentProvider PaymentMetricsProvider
}

// PaymentMetricsProvider provides payment data for periodic metrics
// collection without coupling the telemetry layer to the payment domain.
type PaymentMetricsProvider interface {
	// GetOpenTransactionCount returns the number of transactions awaiting
	// a gateway outcome.
	GetOpenTransactionCount(ctx context.Context) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	PaymentProvider PaymentMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		paymentProvider: cfg.PaymentProvider,
	}

	var err error

	bm.orderPlacedTotal, err = NewCounter(
		cfg.Meter,
		"komono_order_placed_total",
		"Total number of orders placed",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	bm.orderCancelledTotal, err = NewCounter(
		cfg.Meter,
		"komono_order_cancelled_total",
		"Total number of orders cancelled",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	bm.orderAmountTotal, err = NewCounter(
		cfg.Meter,
		"komono_order_amount_yen_total",
		"Total order amount in yen",
		"{yen}",
	)
	if err != nil {
		return nil, err
	}

	bm.paymentTotal, err = NewCounter(
		cfg.Meter,
		"komono_payment_total",
		"Total number of payment transactions by outcome",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	bm.refundTotal, err = NewCounter(
		cfg.Meter,
		"komono_refund_total",
		"Total number of refunds issued",
		"{refunds}",
	)
	if err != nil {
		return nil, err
	}

	bm.shipmentTotal, err = NewCounter(
		cfg.Meter,
		"komono_shipment_registered_total",
		"Total number of shipments registered with a carrier",
		"{shipments}",
	)
	if err != nil {
		return nil, err
	}

	bm.returnRequestTotal, err = NewCounter(
		cfg.Meter,
		"komono_return_request_total",
		"Total number of return requests opened",
		"{returns}",
	)
	if err != nil {
		return nil, err
	}

	bm.webhookReplayTotal, err = NewCounter(
		cfg.Meter,
		"komono_webhook_replay_total",
		"Webhook deliveries rejected as already processed",
		"{webhooks}",
	)
	if err != nil {
		return nil, err
	}

	bm.openTransactionCount, err = NewGauge(
		cfg.Meter,
		"komono_payment_open_transactions",
		"Transactions currently awaiting a gateway outcome",
		"{transactions}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// PaymentOutcome labels the result of a payment for metrics.
type PaymentOutcome string

const (
	PaymentOutcomeCompleted PaymentOutcome = "completed"
	PaymentOutcomeFailed    PaymentOutcome = "failed"
	PaymentOutcomeExpired   PaymentOutcome = "expired"
)

// RecordOrderPlaced records an order placement and its grand total.
func (bm *BusinessMetrics) RecordOrderPlaced(ctx context.Context, paymentMethod string, amountYen int64) {
	if bm == nil {
		return
	}
	bm.orderPlacedTotal.Inc(ctx, AttrPaymentMethod.String(paymentMethod))
	bm.orderAmountTotal.Add(ctx, amountYen, AttrPaymentMethod.String(paymentMethod))
}

// RecordOrderCancelled records an order cancellation.
func (bm *BusinessMetrics) RecordOrderCancelled(ctx context.Context, fromStatus string) {
	if bm == nil {
		return
	}
	bm.orderCancelledTotal.Inc(ctx, AttrOrderStatus.String(fromStatus))
}

// RecordPayment records a settled payment outcome. Called when a
// gateway callback or reconciliation query resolves a transaction.
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, gateway string, outcome PaymentOutcome) {
	if bm == nil {
		return
	}
	bm.paymentTotal.Inc(ctx,
		AttrPaymentGateway.String(gateway),
		AttrPaymentStatus.String(string(outcome)),
	)
}

// RecordRefund records a refund issued through a gateway.
func (bm *BusinessMetrics) RecordRefund(ctx context.Context, gateway string) {
	if bm == nil {
		return
	}
	bm.refundTotal.Inc(ctx, AttrPaymentGateway.String(gateway))
}

// RecordShipmentRegistered records a shipment booked with a carrier.
func (bm *BusinessMetrics) RecordShipmentRegistered(ctx context.Context, carrier, serviceType string) {
	if bm == nil {
		return
	}
	bm.shipmentTotal.Inc(ctx,
		AttrCarrier.String(carrier),
		AttrServiceType.String(serviceType),
	)
}

// RecordReturnRequest records a return request opened by a customer.
func (bm *BusinessMetrics) RecordReturnRequest(ctx context.Context, reason string) {
	if bm == nil {
		return
	}
	bm.returnRequestTotal.Inc(ctx, AttrReturnReason.String(reason))
}

// RecordWebhookReplay records a webhook delivery that was already processed.
func (bm *BusinessMetrics) RecordWebhookReplay(ctx context.Context, source string) {
	if bm == nil {
		return
	}
	bm.webhookReplayTotal.Inc(ctx, AttrPaymentGateway.String(source))
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// Non-blocking; use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectPaymentMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectPaymentMetrics(ctx)
		}
	}
}

func (bm *BusinessMetrics) collectPaymentMetrics(ctx context.Context) {
	if bm.paymentProvider == nil {
		bm.logger.Debug("No payment provider configured, skipping payment metrics collection")
		return
	}

	count, err := bm.paymentProvider.GetOpenTransactionCount(ctx)
	if err != nil {
		bm.logger.Warn("Failed to get open transaction count", zap.Error(err))
		return
	}
	bm.openTransactionCount.Record(ctx, count)
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
