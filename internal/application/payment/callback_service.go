package payment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/komono/backend/internal/domain/coupon"
	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/shared"
)

var (
	// ErrGatewayNotRegistered is returned when no adapter serves the gateway name
	ErrGatewayNotRegistered = errors.New("payment callback: gateway not registered")
	// ErrInvalidPayload is returned when the callback payload cannot be parsed
	ErrInvalidPayload = errors.New("payment callback: invalid payload")
	// ErrTransactionNotFound is returned when no transaction matches the callback
	ErrTransactionNotFound = errors.New("payment callback: transaction not found")
)

// CallbackResult is the outcome of one webhook delivery
type CallbackResult struct {
	Success          bool
	AlreadyProcessed bool
	AutoRefunded     bool
	GatewayResponse  []byte
}

// CallbackService reconciles asynchronous gateway callbacks against
// pending transactions. Deliveries are at-least-once; replays of the
// same callback are no-ops beyond the first application.
type CallbackService struct {
	txns        payment.Repository
	orders      order.Repository
	coupons     coupon.Repository
	gateways    payment.GatewaySelector
	idempotency shared.IdempotencyStore
	idemCfg     shared.IdempotencyConfig
	tx          shared.TransactionManager
	payments    *Service
	publisher   shared.EventPublisher
	logger      *zap.Logger
}

// CallbackServiceConfig holds the callback service dependencies
type CallbackServiceConfig struct {
	Transactions payment.Repository
	Orders       order.Repository
	Coupons      coupon.Repository
	Gateways     payment.GatewaySelector
	Idempotency  shared.IdempotencyStore
	IdemConfig   shared.IdempotencyConfig
	Tx           shared.TransactionManager
	Payments     *Service
	Publisher    shared.EventPublisher
	Logger       *zap.Logger
}

// NewCallbackService creates a callback service
func NewCallbackService(cfg CallbackServiceConfig) *CallbackService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	idemCfg := cfg.IdemConfig
	if idemCfg.TTL <= 0 {
		idemCfg = shared.DefaultIdempotencyConfig()
	}
	return &CallbackService{
		txns:        cfg.Transactions,
		orders:      cfg.Orders,
		coupons:     cfg.Coupons,
		gateways:    cfg.Gateways,
		idempotency: cfg.Idempotency,
		idemCfg:     idemCfg,
		tx:          cfg.Tx,
		payments:    cfg.Payments,
		publisher:   cfg.Publisher,
		logger:      logger,
	}
}

// ProcessCallback handles a raw gateway webhook: verify the signature,
// dedupe by gateway transaction id, then apply the reported status.
// A signature mismatch mutates nothing and is logged for audit without
// revealing whether the transaction exists.
func (s *CallbackService) ProcessCallback(ctx context.Context, gatewayName string, payload []byte, signature string) (*CallbackResult, error) {
	gw, err := s.gateways.ForName(gatewayName)
	if err != nil {
		s.logger.Error("callback for unregistered gateway",
			zap.String("gateway", gatewayName))
		return nil, ErrGatewayNotRegistered
	}

	if err := gw.VerifyCallback(payload, signature); err != nil {
		s.logger.Warn("callback signature verification failed",
			zap.String("gateway", gatewayName))
		return nil, shared.ErrInvalidSignature
	}

	notification, err := gw.ParseCallback(payload)
	if err != nil || notification == nil {
		return nil, ErrInvalidPayload
	}

	s.logger.Info("payment callback received",
		zap.String("gateway", gatewayName),
		zap.String("external_transaction_id", notification.ExternalTransactionID),
		zap.String("status", notification.Status.String()))

	key := fmt.Sprintf("callback:idempotency:%s:%s:%s", gatewayName, notification.ExternalTransactionID, notification.Status)
	fresh, err := s.idempotency.MarkProcessed(ctx, key, s.idemCfg.TTL)
	if err != nil {
		return nil, err
	}
	if !fresh {
		// replay of an applied callback echoes success so the
		// gateway stops retrying
		s.logger.Info("callback already processed", zap.String("key", key))
		return &CallbackResult{
			Success:          true,
			AlreadyProcessed: true,
			GatewayResponse:  gw.GenerateCallbackResponse(true),
		}, nil
	}

	result, err := s.apply(ctx, gw, notification)
	if err != nil {
		// release the key so the gateway's retry can reprocess
		if rerr := s.idempotency.Release(ctx, key); rerr != nil {
			s.logger.Error("idempotency key release failed",
				zap.String("key", key), zap.Error(rerr))
		}
		s.logger.Error("callback handling failed",
			zap.String("external_transaction_id", notification.ExternalTransactionID),
			zap.Error(err))
		return nil, err
	}
	result.GatewayResponse = gw.GenerateCallbackResponse(true)
	return result, nil
}

// apply reconciles the reported status against our transaction and,
// on completion, the order and coupon. Transaction, order and coupon
// writes land in one database transaction.
func (s *CallbackService) apply(ctx context.Context, gw payment.Gateway, n *payment.CallbackNotification) (*CallbackResult, error) {
	txn, err := s.findTransaction(ctx, n)
	if err != nil {
		return nil, err
	}

	switch n.Status {
	case payment.StatusCompleted:
		return s.applyCompleted(ctx, txn, n)
	case payment.StatusFailed:
		return s.applyFailed(ctx, txn, n)
	default:
		return nil, shared.NewDomainError("UNSUPPORTED_CALLBACK_STATUS",
			"gateway reported unsupported status: "+n.Status.String())
	}
}

func (s *CallbackService) findTransaction(ctx context.Context, n *payment.CallbackNotification) (*payment.Transaction, error) {
	if n.ExternalTransactionID != "" {
		txn, err := s.txns.FindByExternalID(ctx, n.ExternalTransactionID)
		if err == nil {
			return txn, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	if n.TransactionNumber != "" {
		txn, err := s.txns.FindByNumber(ctx, n.TransactionNumber)
		if err == nil {
			return txn, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrTransactionNotFound
}

func (s *CallbackService) applyCompleted(ctx context.Context, txn *payment.Transaction, n *payment.CallbackNotification) (*CallbackResult, error) {
	// replays of a terminal status are no-ops, unless a cancelled
	// order is still owed its auto-refund
	if txn.Status == payment.StatusCompleted || txn.Status == payment.StatusRefunded {
		if settled, result, err := s.settleOutstandingRefund(ctx, txn); settled {
			return result, err
		}
		return &CallbackResult{Success: true, AlreadyProcessed: true}, nil
	}

	var (
		o            *order.Order
		autoRefund   bool
		confirmedNow bool
	)
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if txn.Status == payment.StatusPending {
			if err := txn.Transition(payment.StatusProcessing, "gateway reported completion", ""); err != nil {
				return err
			}
		}
		if err := txn.Transition(payment.StatusCompleted, "gateway callback", n.RawPayload); err != nil {
			return err
		}
		txn.AttachExternalID(n.ExternalTransactionID)

		var err error
		o, err = s.orders.FindByID(txCtx, txn.OrderID)
		if err != nil {
			return err
		}

		if o.Status == order.StatusCancelled {
			// the customer cancelled while the gateway call was in
			// flight; the money goes back, the order stays cancelled
			autoRefund = true
			o.AppendNote("system", "payment completed after cancellation, routing to refund")
			if err := s.orders.SaveWithLock(txCtx, o); err != nil {
				return err
			}
			return s.txns.SaveWithLock(txCtx, txn)
		}

		if o.Status == order.StatusPending {
			if err := o.Transition(order.StatusConfirmed); err != nil {
				return err
			}
			confirmedNow = true
		}
		if err := s.commitCouponUsage(txCtx, o); err != nil {
			return err
		}
		if err := s.orders.SaveWithLock(txCtx, o); err != nil {
			return err
		}
		return s.txns.SaveWithLock(txCtx, txn)
	})
	if err != nil {
		return nil, err
	}

	if autoRefund {
		if _, err := s.payments.refund(ctx, txn, txn.RemainingRefundable(), "order cancelled before completion"); err != nil {
			return nil, err
		}
		return &CallbackResult{Success: true, AutoRefunded: true}, nil
	}

	s.publish(ctx, payment.NewPaymentCompletedEvent(txn))
	if confirmedNow {
		s.publish(ctx, order.NewOrderConfirmedEvent(o))
	}
	s.logger.Info("payment completed",
		zap.String("transaction_number", txn.TransactionNumber),
		zap.String("order_number", o.OrderNumber))
	return &CallbackResult{Success: true}, nil
}

// settleOutstandingRefund re-drives the auto-refund for a cancelled
// order whose completed transaction still holds money. The first
// delivery commits COMPLETED before calling the gateway, so a refund
// failure leaves the transaction terminal; the gateway's redelivery
// lands here instead of the replay no-op and settles the refund.
func (s *CallbackService) settleOutstandingRefund(ctx context.Context, txn *payment.Transaction) (bool, *CallbackResult, error) {
	if txn.Status != payment.StatusCompleted || !txn.RemainingRefundable().IsPositive() {
		return false, nil, nil
	}
	o, err := s.orders.FindByID(ctx, txn.OrderID)
	if err != nil {
		return true, nil, err
	}
	if o.Status != order.StatusCancelled {
		return false, nil, nil
	}
	if _, err := s.payments.refund(ctx, txn, txn.RemainingRefundable(), "order cancelled before completion"); err != nil {
		return true, nil, err
	}
	s.logger.Info("outstanding auto-refund settled on redelivery",
		zap.String("transaction_number", txn.TransactionNumber),
		zap.String("order_number", o.OrderNumber))
	return true, &CallbackResult{Success: true, AutoRefunded: true}, nil
}

func (s *CallbackService) applyFailed(ctx context.Context, txn *payment.Transaction, n *payment.CallbackNotification) (*CallbackResult, error) {
	if txn.Status.IsTerminal() {
		return &CallbackResult{Success: true, AlreadyProcessed: true}, nil
	}
	if err := txn.Transition(payment.StatusFailed, "gateway reported failure", n.RawPayload); err != nil {
		return nil, err
	}
	if err := s.txns.SaveWithLock(ctx, txn); err != nil {
		return nil, err
	}
	s.publish(ctx, payment.NewPaymentFailedEvent(txn, "gateway reported failure"))
	return &CallbackResult{Success: true}, nil
}

// commitCouponUsage confirms the usage reserved at order creation.
// Idempotent by order id: an existing usage row means nothing to do,
// a missing one (legacy orders) is inserted under the coupon row lock.
func (s *CallbackService) commitCouponUsage(ctx context.Context, o *order.Order) error {
	if o.CouponCode == "" {
		return nil
	}
	cpn, err := s.coupons.FindByCodeForUpdate(ctx, o.CouponCode)
	if err != nil {
		return err
	}
	if usage, err := s.coupons.FindUsage(ctx, cpn.ID, o.ID); err == nil && usage != nil {
		return nil
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if err := cpn.RecordUse(); err != nil {
		return err
	}
	usage := &coupon.CouponUsage{
		BaseEntity: shared.NewBaseEntity(),
		CouponID:   cpn.ID,
		OrderID:    o.ID,
		UserID:     &o.UserID,
	}
	if err := s.coupons.InsertUsage(ctx, usage); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil
		}
		return err
	}
	return s.coupons.Save(ctx, cpn)
}

func (s *CallbackService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("event publish failed", zap.Error(err))
	}
}
