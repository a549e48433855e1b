package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/komono/backend/internal/domain/cart"
	"github.com/komono/backend/internal/domain/catalog"
	"github.com/komono/backend/internal/domain/coupon"
	"github.com/komono/backend/internal/domain/inventory"
	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// AddressResolver is the port to the address book collaborator
type AddressResolver interface {
	Resolve(ctx context.Context, addressID, userID uuid.UUID) (valueobject.Address, error)
}

// FeeQuoter quotes the shipping fee for an order before shipment
// registration. Backed by the carrier rate table.
type FeeQuoter interface {
	Quote(ctx context.Context, to valueobject.Address, subtotal valueobject.Money) (valueobject.Money, error)
}

// RefundTrigger lets order cancellation hand a completed payment to
// the payment orchestrator without a package cycle
type RefundTrigger interface {
	RefundCompletedForOrder(ctx context.Context, orderID uuid.UUID, reason string) error
}

// Service owns the order lifecycle: creation from a validated cart,
// status transitions, cancellation and delivery confirmation
type Service struct {
	orders    order.Repository
	stock     inventory.Repository
	coupons   coupon.Repository
	carts     cart.Repository
	catalog   catalog.Provider
	addresses AddressResolver
	fees      FeeQuoter
	tx        shared.TransactionManager
	publisher shared.EventPublisher
	refunds   RefundTrigger
	taxRule   order.TaxRule
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewService creates an order service
func NewService(
	orders order.Repository,
	stock inventory.Repository,
	coupons coupon.Repository,
	carts cart.Repository,
	catalogProvider catalog.Provider,
	addresses AddressResolver,
	fees FeeQuoter,
	tx shared.TransactionManager,
	taxRule order.TaxRule,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orders:    orders,
		stock:     stock,
		coupons:   coupons,
		carts:     carts,
		catalog:   catalogProvider,
		addresses: addresses,
		fees:      fees,
		tx:        tx,
		taxRule:   taxRule,
		validate:  validator.New(),
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher for notification events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetRefundTrigger wires the payment orchestrator for cancellation refunds
func (s *Service) SetRefundTrigger(refunds RefundTrigger) {
	s.refunds = refunds
}

// CreateOrder is the single atomic boundary where cart state becomes
// immutable order state. Every line revalidates against the live
// catalog, stock decrements under row locks, the coupon reserves its
// usage, and totals lock. Either everything lands or nothing does.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*order.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	c, err := s.carts.FindByID(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	items := c.ActiveItems()
	if len(items) == 0 {
		return nil, shared.NewDomainError("EMPTY_CART", "cart has no items to order")
	}

	shippingAddr, err := s.addresses.Resolve(ctx, req.ShippingAddressID, req.UserID)
	if err != nil {
		return nil, err
	}
	billingAddr := shippingAddr
	if req.BillingAddressID != nil {
		billingAddr, err = s.addresses.Resolve(ctx, *req.BillingAddressID, req.UserID)
		if err != nil {
			return nil, err
		}
	}

	couponCode := req.CouponCode
	if couponCode == "" {
		couponCode = c.CouponCode
	}

	var created *order.Order
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		orderNumber, err := s.orders.GenerateOrderNumber(txCtx)
		if err != nil {
			return err
		}
		o, err := order.NewOrder(orderNumber, req.UserID, shippingAddr, billingAddr)
		if err != nil {
			return err
		}
		o.PaymentMethod = req.PaymentMethod
		o.SetCreatedBy(req.UserID)

		// revalidate each line and take the stock under row locks;
		// lock order is the cart's line order, consistent across
		// concurrent checkouts of the same products
		lines := make([]order.PricingLine, 0, len(items))
		for _, item := range items {
			live, err := s.catalog.GetLiveStockAndPrice(txCtx, item.ProductID, item.VariantID)
			if err != nil {
				return err
			}
			if !live.IsActive {
				return fmt.Errorf("%w: %s is no longer available", shared.ErrStockConflict, item.ProductName)
			}
			if !live.Price.Equals(item.CapturedPrice) {
				return fmt.Errorf("%w: %s is now %s", shared.ErrPriceChanged, item.ProductName, live.Price)
			}

			inv, err := s.stock.FindByProductForUpdate(txCtx, item.ProductID, item.VariantID)
			if err != nil {
				return err
			}
			if err := inv.Decrement(item.Quantity); err != nil {
				return err
			}
			if err := s.stock.Save(txCtx, inv); err != nil {
				return err
			}

			if err := o.AddItem(item.ProductID, item.VariantID, item.ProductName, item.Quantity, live.Price, item.IsGift, item.Options); err != nil {
				return err
			}
			lines = append(lines, order.PricingLine{UnitPrice: live.Price, Quantity: item.Quantity})
		}

		subtotal := valueobject.ZeroJPY()
		for _, l := range lines {
			subtotal = subtotal.MustAdd(l.UnitPrice.MultiplyByInt(int64(l.Quantity)))
		}

		discount := valueobject.ZeroJPY()
		if couponCode != "" {
			discount, err = s.reserveCoupon(txCtx, couponCode, o, subtotal)
			if err != nil {
				return err
			}
			o.ApplyCoupon(couponCode)
		}

		shippingFee, err := s.fees.Quote(txCtx, shippingAddr, subtotal)
		if err != nil {
			return err
		}

		totals := order.CalculateTotals(lines, shippingFee, discount, s.taxRule)
		if err := o.SetTotals(totals); err != nil {
			return err
		}
		if err := o.Submit(); err != nil {
			return err
		}
		if err := s.orders.Save(txCtx, o); err != nil {
			return err
		}

		c.Clear()
		if err := s.carts.Save(txCtx, c); err != nil {
			return err
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, order.NewOrderCreatedEvent(created))
	s.logger.Info("order created",
		zap.String("order_number", created.OrderNumber),
		zap.String("user_id", created.UserID.String()),
		zap.Int64("grand_total", created.GrandTotal.IntPart()))
	return created, nil
}

// reserveCoupon validates the coupon under its row lock and reserves
// one usage for this order. The usage row makes the later commit at
// payment completion idempotent by order id.
func (s *Service) reserveCoupon(ctx context.Context, code string, o *order.Order, subtotal valueobject.Money) (valueobject.Money, error) {
	cpn, err := s.coupons.FindByCodeForUpdate(ctx, code)
	if err != nil {
		return valueobject.ZeroJPY(), err
	}
	result := cpn.Validate(subtotal, time.Now())
	if !result.IsValid {
		return valueobject.ZeroJPY(), shared.NewDomainError("COUPON_"+result.Reason, "coupon "+code+" rejected: "+result.Reason)
	}
	if err := cpn.RecordUse(); err != nil {
		return valueobject.ZeroJPY(), err
	}
	usage := &coupon.CouponUsage{
		BaseEntity: shared.NewBaseEntity(),
		CouponID:   cpn.ID,
		OrderID:    o.ID,
		UserID:     &o.UserID,
	}
	if err := s.coupons.InsertUsage(ctx, usage); err != nil {
		return valueobject.ZeroJPY(), err
	}
	if err := s.coupons.Save(ctx, cpn); err != nil {
		return valueobject.ZeroJPY(), err
	}
	return result.DiscountAmount, nil
}

// UpdateStatus moves the order to the target status, rejecting any
// pair off the adjacency list
func (s *Service) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*order.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	o, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := o.Transition(req.Status); err != nil {
		return nil, err
	}
	if req.Notes != "" {
		actor := req.Actor
		if actor == "" {
			actor = "staff"
		}
		o.AppendNote(actor, req.Notes)
	}
	if err := s.orders.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// CancelOrder cancels a pre-shipment order: stock restores, the coupon
// reservation releases, and a completed payment (if any) refunds
// through the orchestrator
func (s *Service) CancelOrder(ctx context.Context, req CancelOrderRequest) (*order.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	var cancelled *order.Order
	var fromStatus order.OrderStatus
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		o, err := s.orders.FindByID(txCtx, req.OrderID)
		if err != nil {
			return err
		}
		fromStatus = o.Status
		if err := o.Cancel(req.Reason); err != nil {
			return err
		}

		for _, item := range o.Items {
			inv, err := s.stock.FindByProductForUpdate(txCtx, item.ProductID, item.VariantID)
			if err != nil {
				return err
			}
			if err := inv.Restock(item.Quantity); err != nil {
				return err
			}
			if err := s.stock.Save(txCtx, inv); err != nil {
				return err
			}
		}

		if o.CouponCode != "" {
			if err := s.releaseCoupon(txCtx, o); err != nil {
				return err
			}
		}

		if err := s.orders.SaveWithLock(txCtx, o); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.refunds != nil {
		if err := s.refunds.RefundCompletedForOrder(ctx, cancelled.ID, "order cancelled: "+req.Reason); err != nil {
			// cancellation already committed; refund is retried by staff
			s.logger.Error("refund after cancellation failed",
				zap.String("order_id", cancelled.ID.String()),
				zap.Error(err))
		}
	}

	s.publish(ctx, order.NewOrderCancelledEvent(cancelled, fromStatus, req.Reason))
	s.logger.Info("order cancelled",
		zap.String("order_number", cancelled.OrderNumber),
		zap.String("reason", req.Reason))
	return cancelled, nil
}

func (s *Service) releaseCoupon(ctx context.Context, o *order.Order) error {
	cpn, err := s.coupons.FindByCodeForUpdate(ctx, o.CouponCode)
	if err != nil {
		return err
	}
	usage, err := s.coupons.FindUsage(ctx, cpn.ID, o.ID)
	if err != nil || usage == nil {
		// nothing reserved, nothing to release
		return nil
	}
	if err := s.coupons.DeleteUsage(ctx, cpn.ID, o.ID); err != nil {
		return err
	}
	cpn.ReleaseUse()
	return s.coupons.Save(ctx, cpn)
}

// ConfirmDelivery records a delivery attempt outcome. Only explicit
// confirmation advances to Delivered; a failed attempt flags the order
// for staff follow-up and stays OutForDelivery.
func (s *Service) ConfirmDelivery(ctx context.Context, req ConfirmDeliveryRequest) (*order.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	o, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if !req.IsReceived {
		if err := o.MarkDeliveryFailed(req.Notes); err != nil {
			return nil, err
		}
		if err := s.orders.SaveWithLock(ctx, o); err != nil {
			return nil, err
		}
		return o, nil
	}

	if err := o.Transition(order.StatusDelivered); err != nil {
		return nil, err
	}
	if req.Notes != "" {
		o.AppendNote("customer", req.Notes)
	}
	if err := s.orders.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, order.NewOrderDeliveredEvent(o))
	return o, nil
}

// GetOrder loads an order with its items and notes
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	return s.orders.FindByID(ctx, orderID)
}

// publish sends notification events fire-and-forget; delivery failure
// never rolls back a transition
func (s *Service) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("event publish failed", zap.Error(err))
	}
}
