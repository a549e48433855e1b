package cart

import (
	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// Cart holds a customer's pending line items before checkout. It is
// owned by exactly one of a registered user or an anonymous session.
// Cart prices are display captures only; the catalog stays
// authoritative until order creation locks them.
type Cart struct {
	shared.BaseAggregateRoot
	UserID       *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	SessionToken string     `gorm:"size:128;index" json:"session_token"`
	CouponCode   string     `gorm:"size:50" json:"coupon_code"`
	Items        []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

// CartItem is one line in a cart, keyed by (product, variant)
type CartItem struct {
	shared.BaseEntity
	CartID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"cart_id"`
	ProductID     uuid.UUID         `gorm:"type:uuid;not null" json:"product_id"`
	VariantID     *uuid.UUID        `gorm:"type:uuid" json:"variant_id"`
	ProductName   string            `gorm:"size:200" json:"product_name"`
	Quantity      int               `gorm:"not null" json:"quantity"`
	CapturedPrice valueobject.Money `gorm:"type:decimal(12,0)" json:"captured_price"`
	IsGift        bool              `gorm:"default:false" json:"is_gift"`
	Options       string            `gorm:"type:text" json:"options"`
}

// TableName returns the table name
func (Cart) TableName() string {
	return "carts"
}

// TableName returns the table name
func (CartItem) TableName() string {
	return "cart_items"
}

// NewUserCart creates a cart owned by a registered user
func NewUserCart(userID uuid.UUID) (*Cart, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "user id cannot be empty")
	}
	return &Cart{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            &userID,
	}, nil
}

// NewSessionCart creates a cart owned by an anonymous session
func NewSessionCart(sessionToken string) (*Cart, error) {
	if sessionToken == "" {
		return nil, shared.NewDomainError("INVALID_OWNER", "session token cannot be empty")
	}
	return &Cart{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SessionToken:      sessionToken,
	}, nil
}

// ValidateOwner enforces the exactly-one-owner invariant
func (c *Cart) ValidateOwner() error {
	hasUser := c.UserID != nil && *c.UserID != uuid.Nil
	hasSession := c.SessionToken != ""
	if hasUser == hasSession {
		return shared.NewDomainError("INVALID_OWNER", "cart must belong to exactly one of a user or a session")
	}
	return nil
}

// AddItem adds a line to the cart. Lines with the same (product,
// variant) pair merge by summing quantities. Stock is checked by the
// caller against the live catalog before calling.
func (c *Cart) AddItem(productID uuid.UUID, variantID *uuid.UUID, productName string, quantity int, unitPrice valueobject.Money, isGift bool, options string) error {
	if productID == uuid.Nil {
		return shared.NewDomainError("INVALID_PRODUCT", "product id cannot be empty")
	}
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "quantity must be positive")
	}

	if existing := c.findItem(productID, variantID); existing != nil {
		existing.Quantity += quantity
		existing.CapturedPrice = unitPrice
		return nil
	}

	c.Items = append(c.Items, CartItem{
		BaseEntity:    shared.NewBaseEntity(),
		CartID:        c.ID,
		ProductID:     productID,
		VariantID:     variantID,
		ProductName:   productName,
		Quantity:      quantity,
		CapturedPrice: unitPrice,
		IsGift:        isGift,
		Options:       options,
	})
	return nil
}

// UpdateItem sets the quantity of an existing line. Quantity 0 marks
// the line removal-pending; it stays in the cart until RemoveItem or
// checkout prunes it.
func (c *Cart) UpdateItem(productID uuid.UUID, variantID *uuid.UUID, quantity int) error {
	if quantity < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "quantity cannot be negative")
	}
	item := c.findItem(productID, variantID)
	if item == nil {
		return shared.NewNotFoundError("ITEM_NOT_FOUND", "cart item not found")
	}
	item.Quantity = quantity
	return nil
}

// RemoveItem deletes a line from the cart
func (c *Cart) RemoveItem(productID uuid.UUID, variantID *uuid.UUID) error {
	for i := range c.Items {
		if c.Items[i].matches(productID, variantID) {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return shared.NewNotFoundError("ITEM_NOT_FOUND", "cart item not found")
}

// ApplyCoupon records a coupon code on the cart. Validation happens at
// snapshot and order creation time.
func (c *Cart) ApplyCoupon(code string) {
	c.CouponCode = code
}

// RemoveCoupon clears the coupon code
func (c *Cart) RemoveCoupon() {
	c.CouponCode = ""
}

// ActiveItems returns the lines with positive quantity
func (c *Cart) ActiveItems() []CartItem {
	active := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity > 0 {
			active = append(active, item)
		}
	}
	return active
}

// IsEmpty reports whether the cart has no active lines
func (c *Cart) IsEmpty() bool {
	return len(c.ActiveItems()) == 0
}

// Clear removes all lines and the coupon code, after checkout
func (c *Cart) Clear() {
	c.Items = nil
	c.CouponCode = ""
}

func (c *Cart) findItem(productID uuid.UUID, variantID *uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].matches(productID, variantID) {
			return &c.Items[i]
		}
	}
	return nil
}

func (ci *CartItem) matches(productID uuid.UUID, variantID *uuid.UUID) bool {
	if ci.ProductID != productID {
		return false
	}
	if ci.VariantID == nil && variantID == nil {
		return true
	}
	if ci.VariantID == nil || variantID == nil {
		return false
	}
	return *ci.VariantID == *variantID
}
