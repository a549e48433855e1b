package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// Config holds payment orchestration constants
type Config struct {
	// Expiry is how long an attempt stays open before the stale sweep
	// fails it
	Expiry time.Duration
}

// DefaultConfig returns the default payment configuration
func DefaultConfig() Config {
	return Config{Expiry: 30 * time.Minute}
}

// Service orchestrates payment attempts across gateway adapters
type Service struct {
	txns      payment.Repository
	orders    order.Repository
	gateways  payment.GatewaySelector
	tx        shared.TransactionManager
	publisher shared.EventPublisher
	cfg       Config
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewService creates a payment service
func NewService(txns payment.Repository, orders order.Repository, gateways payment.GatewaySelector, tx shared.TransactionManager, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultConfig().Expiry
	}
	return &Service{
		txns:     txns,
		orders:   orders,
		gateways: gateways,
		tx:       tx,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// SetEventPublisher sets the event publisher
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// CreatePayment opens a payment attempt for a pending order and
// returns the customer instruction from the selected gateway. At most
// one attempt per order may be open at a time.
func (s *Service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	if !req.Method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", "unknown payment method: "+req.Method.String())
	}

	o, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPending {
		return nil, fmt.Errorf("%w: order in status %s cannot take payment", shared.ErrInvalidTransition, o.Status)
	}

	if open, err := s.txns.FindOpenByOrder(ctx, req.OrderID); err == nil && open != nil {
		return nil, fmt.Errorf("%w: attempt %s is still open", shared.ErrPaymentInProgress, open.TransactionNumber)
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	gw, err := s.gateways.ForMethod(req.Method)
	if err != nil {
		return nil, err
	}

	number, err := s.txns.GenerateTransactionNumber(ctx)
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(s.cfg.Expiry)
	txn, err := payment.NewTransaction(number, o.ID, req.Method, gw.Name(), o.GrandTotal, expiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.txns.Save(ctx, txn); err != nil {
		return nil, err
	}

	instruction, err := gw.CreatePayment(ctx, &payment.CreatePaymentRequest{
		TransactionNumber: txn.TransactionNumber,
		OrderNumber:       o.OrderNumber,
		Amount:            txn.Amount,
		Description:       fmt.Sprintf("order %s", o.OrderNumber),
		ReturnURL:         req.ReturnURL,
		ExpiresAt:         expiresAt,
	})
	if err != nil {
		// intent never reached the provider; fail the attempt so a
		// retry is not blocked by PAYMENT_IN_PROGRESS
		if terr := txn.Transition(payment.StatusFailed, "gateway intent creation failed", ""); terr == nil {
			_ = s.txns.SaveWithLock(ctx, txn)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrGatewayUnavailable, err)
	}

	txn.AttachExternalID(instruction.ExternalTransactionID)
	if err := txn.Transition(payment.StatusPending, "gateway intent created", ""); err != nil {
		return nil, err
	}
	if err := s.txns.SaveWithLock(ctx, txn); err != nil {
		return nil, err
	}

	s.logger.Info("payment attempt created",
		zap.String("transaction_number", txn.TransactionNumber),
		zap.String("order_number", o.OrderNumber),
		zap.String("method", req.Method.String()))
	return &CreatePaymentResponse{
		TransactionID:     txn.ID,
		TransactionNumber: txn.TransactionNumber,
		Instruction:       instruction,
	}, nil
}

// Refund returns funds on a completed transaction. Partial refunds
// accumulate; the total never exceeds the paid amount.
func (s *Service) Refund(ctx context.Context, req RefundRequest) (*payment.Transaction, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	txn, err := s.txns.FindByID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	return s.refund(ctx, txn, valueobject.NewMoneyJPYFromInt(req.Amount), req.Reason)
}

func (s *Service) refund(ctx context.Context, txn *payment.Transaction, amount valueobject.Money, reason string) (*payment.Transaction, error) {
	if err := txn.BeginRefund(amount, reason); err != nil {
		return nil, err
	}
	if err := s.txns.SaveWithLock(ctx, txn); err != nil {
		return nil, err
	}

	gw, err := s.gateways.ForName(txn.GatewayName)
	if err != nil {
		return nil, err
	}
	externalID := ""
	if txn.ExternalTransactionID != nil {
		externalID = *txn.ExternalTransactionID
	}
	result, err := gw.CreateRefund(ctx, &payment.RefundRequest{
		ExternalTransactionID: externalID,
		RefundNumber:          payment.RefundNumberFor(txn.TransactionNumber, txn.RefundCount+1),
		Amount:                amount,
		Reason:                reason,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrGatewayUnavailable, err)
	}
	if !result.Accepted {
		return nil, shared.NewExternalError("REFUND_REJECTED", "gateway rejected the refund request")
	}

	if err := txn.SettleRefund(amount, result.RawPayload); err != nil {
		return nil, err
	}
	if err := s.txns.SaveWithLock(ctx, txn); err != nil {
		return nil, err
	}

	s.publish(ctx, payment.NewPaymentRefundedEvent(txn))
	s.logger.Info("refund settled",
		zap.String("transaction_number", txn.TransactionNumber),
		zap.Int64("amount", amount.IntPart()),
		zap.String("status", txn.Status.String()))
	return txn, nil
}

// RefundCompletedForOrder refunds the completed transaction of an
// order in full, if one exists. Used by order cancellation and by the
// late-callback path. No-op when the order never completed a payment.
func (s *Service) RefundCompletedForOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	txns, err := s.txns.FindByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, txn := range txns {
		if txn.Status != payment.StatusCompleted {
			continue
		}
		remaining := txn.RemainingRefundable()
		if !remaining.IsPositive() {
			continue
		}
		if _, err := s.refund(ctx, txn, remaining, reason); err != nil {
			return err
		}
	}
	return nil
}

// RefundOrderAmount refunds part of the order's completed transaction.
// Used by the return processor; the cumulative cap still applies.
func (s *Service) RefundOrderAmount(ctx context.Context, orderID uuid.UUID, amount valueobject.Money, reason string) (*payment.Transaction, error) {
	txns, err := s.txns.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, txn := range txns {
		if txn.Status == payment.StatusCompleted && txn.RemainingRefundable().IsPositive() {
			return s.refund(ctx, txn, amount, reason)
		}
	}
	return nil, shared.NewNotFoundError("NO_REFUNDABLE_PAYMENT", "order has no refundable completed payment")
}

// ExpireStaleTransactions sweeps open attempts past their expiry to
// Failed. Entry point for the recurring external job.
func (s *Service) ExpireStaleTransactions(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.txns.FindStale(ctx, now, 100)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, txn := range stale {
		expired, err := txn.MarkExpired(now)
		if err != nil {
			s.logger.Warn("stale sweep transition failed",
				zap.String("transaction_number", txn.TransactionNumber),
				zap.Error(err))
			continue
		}
		if !expired {
			continue
		}
		if err := s.txns.SaveWithLock(ctx, txn); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				// a callback won the race; leave it alone
				continue
			}
			return swept, err
		}
		s.closeAtGateway(ctx, txn)
		s.publish(ctx, payment.NewPaymentFailedEvent(txn, "expired"))
		swept++
	}
	return swept, nil
}

// closeAtGateway voids the intent at the provider, best-effort
func (s *Service) closeAtGateway(ctx context.Context, txn *payment.Transaction) {
	if txn.ExternalTransactionID == nil {
		return
	}
	gw, err := s.gateways.ForName(txn.GatewayName)
	if err != nil {
		return
	}
	if err := gw.ClosePayment(ctx, *txn.ExternalTransactionID); err != nil {
		s.logger.Warn("gateway close failed",
			zap.String("transaction_number", txn.TransactionNumber),
			zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("event publish failed", zap.Error(err))
	}
}
