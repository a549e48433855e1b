package returns

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/returns"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// Refunder drives refund issuance through the payment orchestrator
type Refunder interface {
	RefundOrderAmount(ctx context.Context, orderID uuid.UUID, amount valueobject.Money, reason string) (*payment.Transaction, error)
}

// Service processes post-delivery returns: claim validation against
// delivered quantities, staff decisions, and refund issuance
type Service struct {
	requests  returns.Repository
	orders    order.Repository
	refunder  Refunder
	tx        shared.TransactionManager
	publisher shared.EventPublisher
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewService creates a returns service
func NewService(requests returns.Repository, orders order.Repository, refunder Refunder, tx shared.TransactionManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		requests: requests,
		orders:   orders,
		refunder: refunder,
		tx:       tx,
		validate: validator.New(),
		logger:   logger,
	}
}

// SetEventPublisher sets the event publisher
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SubmitReturn files a return request. Every claim must reference an
// item of the order, and the claimed quantity cannot exceed the
// ordered quantity minus previously claimed (non-rejected) returns.
// Validation happens before any refund is attempted.
func (s *Service) SubmitReturn(ctx context.Context, req SubmitReturnRequest) (*returns.ReturnRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	o, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusDelivered && o.Status != order.StatusCompleted {
		return nil, fmt.Errorf("%w: returns are accepted only after delivery, order is %s", shared.ErrInvalidTransition, o.Status)
	}

	prior, err := s.requests.FindByOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	claims := make([]returns.ReturnClaim, 0, len(req.Claims))
	for _, c := range req.Claims {
		item := o.FindItem(c.OrderItemID)
		if item == nil {
			return nil, shared.NewDomainError("INVALID_CLAIM",
				fmt.Sprintf("item %s does not belong to order %s", c.OrderItemID, o.OrderNumber))
		}
		remaining := item.Quantity
		for _, p := range prior {
			if p.CountsAgainstReturnable() {
				remaining -= p.ClaimedQuantity(c.OrderItemID)
			}
		}
		if c.Quantity > remaining {
			return nil, shared.NewConflictError("RETURN_EXCEEDS_ORDERED",
				fmt.Sprintf("claimed %d of %s but only %d returnable", c.Quantity, item.ProductName, remaining))
		}
		claims = append(claims, returns.ReturnClaim{
			OrderItemID: c.OrderItemID,
			Quantity:    c.Quantity,
			Condition:   c.Condition,
		})
	}

	number, err := s.requests.GenerateReturnNumber(ctx)
	if err != nil {
		return nil, err
	}
	request, err := returns.NewReturnRequest(number, req.OrderID, req.UserID, req.Reason, req.Description, claims)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requests.Save(txCtx, request); err != nil {
			return err
		}
		if o.Status.CanTransitionTo(order.StatusReturnRequested) {
			if err := o.Transition(order.StatusReturnRequested); err != nil {
				return err
			}
			return s.orders.SaveWithLock(txCtx, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, returns.NewReturnRequestedEvent(request))
	s.logger.Info("return submitted",
		zap.String("return_number", request.ReturnNumber),
		zap.String("order_number", o.OrderNumber))
	return request, nil
}

// ProcessReturn applies the staff decision. Approval drives the refund
// through the payment orchestrator and, once settled, marks the
// returned quantities; the order moves to Returned only when every
// item is fully returned, otherwise it stays Completed.
func (s *Service) ProcessReturn(ctx context.Context, req ProcessReturnRequest) (*returns.ReturnRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	request, err := s.requests.FindByID(ctx, req.ReturnID)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.FindByID(ctx, request.OrderID)
	if err != nil {
		return nil, err
	}

	if req.Decision == DecisionReject {
		return s.reject(ctx, request, o, req.Notes)
	}
	return s.approve(ctx, request, o, req)
}

func (s *Service) reject(ctx context.Context, request *returns.ReturnRequest, o *order.Order, notes string) (*returns.ReturnRequest, error) {
	if err := request.Reject(notes); err != nil {
		return nil, err
	}
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requests.SaveWithLock(txCtx, request); err != nil {
			return err
		}
		if o.Status == order.StatusReturnRequested {
			if err := o.Transition(order.StatusCompleted); err != nil {
				return err
			}
			return s.orders.SaveWithLock(txCtx, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, returns.NewReturnProcessedEvent(request))
	return request, nil
}

func (s *Service) approve(ctx context.Context, request *returns.ReturnRequest, o *order.Order, req ProcessReturnRequest) (*returns.ReturnRequest, error) {
	refundAmount := s.defaultRefund(request, o)
	if req.RefundAmount != nil {
		refundAmount = valueobject.NewMoneyJPYFromInt(*req.RefundAmount)
	}
	refundMethod := req.RefundMethod
	if refundMethod == "" {
		refundMethod = o.PaymentMethod
	}

	if err := request.Approve(refundAmount, refundMethod); err != nil {
		return nil, err
	}
	if err := request.BeginRefund(); err != nil {
		return nil, err
	}
	if err := s.requests.SaveWithLock(ctx, request); err != nil {
		return nil, err
	}

	if refundAmount.IsPositive() {
		if _, err := s.refunder.RefundOrderAmount(ctx, o.ID, refundAmount, "return "+request.ReturnNumber); err != nil {
			return nil, err
		}
	}

	if err := request.Complete(); err != nil {
		return nil, err
	}

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requests.SaveWithLock(txCtx, request); err != nil {
			return err
		}
		for _, claim := range request.Claims {
			if err := o.MarkItemReturned(claim.OrderItemID, claim.Quantity); err != nil {
				return err
			}
		}
		target := order.StatusCompleted
		if o.AllItemsFullyReturned() {
			target = order.StatusReturned
		}
		if o.Status != target && o.Status.CanTransitionTo(target) {
			if err := o.Transition(target); err != nil {
				return err
			}
		}
		return s.orders.SaveWithLock(txCtx, o)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, returns.NewReturnProcessedEvent(request))
	s.logger.Info("return processed",
		zap.String("return_number", request.ReturnNumber),
		zap.String("status", request.Status.String()),
		zap.Int64("refund_amount", request.RefundAmount.IntPart()))
	return request, nil
}

// defaultRefund sums the claimed quantities at their locked unit
// prices, less a proportional share of the order discount
func (s *Service) defaultRefund(request *returns.ReturnRequest, o *order.Order) valueobject.Money {
	total := valueobject.ZeroJPY()
	for _, claim := range request.Claims {
		item := o.FindItem(claim.OrderItemID)
		if item == nil {
			continue
		}
		total = total.MustAdd(item.UnitPrice.MultiplyByInt(int64(claim.Quantity)))
	}
	if o.DiscountAmount.IsPositive() && o.Subtotal.IsPositive() {
		share := o.DiscountAmount.Multiply(total.Amount().Div(o.Subtotal.Amount())).RoundHalfUp()
		total = total.MustSubtract(share)
	}
	if over, _ := total.GreaterThan(o.GrandTotal); over {
		total = o.GrandTotal
	}
	return total
}

func (s *Service) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("event publish failed", zap.Error(err))
	}
}
