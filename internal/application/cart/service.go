package cart

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/komono/backend/internal/domain/cart"
	"github.com/komono/backend/internal/domain/catalog"
	"github.com/komono/backend/internal/domain/coupon"
	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// PreviewConfig holds the pricing constants cart previews use before
// a shipping address is known
type PreviewConfig struct {
	TaxRule               order.TaxRule
	DefaultShippingFee    valueobject.Money
	FreeShippingThreshold valueobject.Money
}

// Service handles cart operations. The cart never reserves stock;
// availability checks here are advisory and repeated authoritatively
// at order creation.
type Service struct {
	carts    cart.Repository
	catalog  catalog.Provider
	coupons  coupon.Repository
	preview  PreviewConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a cart service
func NewService(carts cart.Repository, catalogProvider catalog.Provider, coupons coupon.Repository, preview PreviewConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		carts:    carts,
		catalog:  catalogProvider,
		coupons:  coupons,
		preview:  preview,
		validate: validator.New(),
		logger:   logger,
	}
}

// AddItem adds a line to the owner's cart, creating the cart on first
// use. Lines merge by (product, variant); the requested total quantity
// is checked against live stock.
func (s *Service) AddItem(ctx context.Context, req AddItemRequest) (*cart.Cart, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	c, err := s.findOrCreateCart(ctx, req.UserID, req.SessionToken)
	if err != nil {
		return nil, err
	}

	live, err := s.catalog.GetLiveStockAndPrice(ctx, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}
	if !live.IsActive {
		return nil, shared.NewDomainError("PRODUCT_INACTIVE", "product is not available")
	}

	requested := req.Quantity
	for _, item := range c.ActiveItems() {
		if item.ProductID == req.ProductID && equalVariant(item.VariantID, req.VariantID) {
			requested += item.Quantity
		}
	}
	if live.Stock < requested {
		return nil, shared.ErrOutOfStock
	}

	if err := c.AddItem(req.ProductID, req.VariantID, live.Name, req.Quantity, live.Price, req.IsGift, req.Options); err != nil {
		return nil, err
	}
	if err := s.carts.SaveWithLock(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Debug("cart item added",
		zap.String("cart_id", c.ID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.Int("quantity", req.Quantity))
	return c, nil
}

// UpdateItem changes the quantity of a line. Quantity 0 marks the line
// removal-pending.
func (s *Service) UpdateItem(ctx context.Context, req UpdateItemRequest) (*cart.Cart, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	c, err := s.carts.FindByID(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	if req.Quantity > 0 {
		live, err := s.catalog.GetLiveStockAndPrice(ctx, req.ProductID, req.VariantID)
		if err != nil {
			return nil, err
		}
		if live.Stock < req.Quantity {
			return nil, shared.ErrOutOfStock
		}
	}
	if err := c.UpdateItem(req.ProductID, req.VariantID, req.Quantity); err != nil {
		return nil, err
	}
	if err := s.carts.SaveWithLock(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem deletes a line from the cart
func (s *Service) RemoveItem(ctx context.Context, req RemoveItemRequest) (*cart.Cart, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	c, err := s.carts.FindByID(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	if err := c.RemoveItem(req.ProductID, req.VariantID); err != nil {
		return nil, err
	}
	if err := s.carts.SaveWithLock(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyCoupon records a coupon code on the cart. The code is validated
// for the preview; final validation happens again at order creation.
func (s *Service) ApplyCoupon(ctx context.Context, req ApplyCouponRequest) (*cart.Cart, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	c, err := s.carts.FindByID(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	if _, err := s.coupons.FindByCode(ctx, req.Code); err != nil {
		return nil, err
	}
	c.ApplyCoupon(req.Code)
	if err := s.carts.SaveWithLock(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetSnapshot revalidates every line against the live catalog and
// computes preview totals. Lines with drift are flagged, never
// removed; the cart stays operable.
func (s *Service) GetSnapshot(ctx context.Context, cartID uuid.UUID) (*cart.Snapshot, error) {
	c, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}

	snap := &cart.Snapshot{CartID: c.ID, CouponCode: c.CouponCode}
	lines := make([]order.PricingLine, 0, len(c.Items))

	for _, item := range c.ActiveItems() {
		line := cart.SnapshotLine{
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			CapturedPrice: item.CapturedPrice,
			IsGift:        item.IsGift,
			Options:       item.Options,
		}

		live, err := s.catalog.GetLiveStockAndPrice(ctx, item.ProductID, item.VariantID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			line.Issues = append(line.Issues, cart.IssueInactive)
		case err != nil:
			return nil, err
		default:
			line.LivePrice = live.Price
			line.LiveStock = live.Stock
			if !live.IsActive {
				line.Issues = append(line.Issues, cart.IssueInactive)
			}
			if live.Stock < item.Quantity {
				line.Issues = append(line.Issues, cart.IssueOutOfStock)
			}
			if !live.Price.Equals(item.CapturedPrice) {
				line.Issues = append(line.Issues, cart.IssuePriceChanged)
			}
			lines = append(lines, order.PricingLine{UnitPrice: live.Price, Quantity: item.Quantity})
		}
		snap.Lines = append(snap.Lines, line)
	}

	discount := s.previewDiscount(ctx, c.CouponCode, lines)
	shippingFee := s.previewShippingFee(lines)
	totals := order.CalculateTotals(lines, shippingFee, discount, s.preview.TaxRule)

	snap.Subtotal = totals.Subtotal
	snap.ShippingCost = totals.ShippingCost
	snap.TaxAmount = totals.TaxAmount
	snap.DiscountAmount = totals.DiscountAmount
	snap.Total = totals.Total
	return snap, nil
}

func (s *Service) previewDiscount(ctx context.Context, code string, lines []order.PricingLine) valueobject.Money {
	if code == "" {
		return valueobject.ZeroJPY()
	}
	cpn, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return valueobject.ZeroJPY()
	}
	subtotal := valueobject.ZeroJPY()
	for _, l := range lines {
		subtotal = subtotal.MustAdd(l.UnitPrice.MultiplyByInt(int64(l.Quantity)))
	}
	result := cpn.Validate(subtotal, time.Now())
	if !result.IsValid {
		return valueobject.ZeroJPY()
	}
	return result.DiscountAmount
}

func (s *Service) previewShippingFee(lines []order.PricingLine) valueobject.Money {
	if len(lines) == 0 {
		return valueobject.ZeroJPY()
	}
	subtotal := valueobject.ZeroJPY()
	for _, l := range lines {
		subtotal = subtotal.MustAdd(l.UnitPrice.MultiplyByInt(int64(l.Quantity)))
	}
	if !s.preview.FreeShippingThreshold.IsZero() {
		if over, _ := subtotal.GreaterThan(s.preview.FreeShippingThreshold); over {
			return valueobject.ZeroJPY()
		}
	}
	return s.preview.DefaultShippingFee
}

func (s *Service) findOrCreateCart(ctx context.Context, userID *uuid.UUID, sessionToken string) (*cart.Cart, error) {
	switch {
	case userID != nil && *userID != uuid.Nil:
		c, err := s.carts.FindByUser(ctx, *userID)
		if errors.Is(err, shared.ErrNotFound) {
			return cart.NewUserCart(*userID)
		}
		return c, err
	case sessionToken != "":
		c, err := s.carts.FindBySession(ctx, sessionToken)
		if errors.Is(err, shared.ErrNotFound) {
			return cart.NewSessionCart(sessionToken)
		}
		return c, err
	default:
		return nil, shared.NewDomainError("INVALID_OWNER", "either user id or session token is required")
	}
}

func equalVariant(a, b *uuid.UUID) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
