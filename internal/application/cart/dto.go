package cart

import (
	"github.com/google/uuid"
)

// AddItemRequest adds or merges a line into a cart
type AddItemRequest struct {
	UserID       *uuid.UUID `json:"user_id"`
	SessionToken string     `json:"session_token"`
	ProductID    uuid.UUID  `json:"product_id" validate:"required"`
	VariantID    *uuid.UUID `json:"variant_id"`
	Quantity     int        `json:"quantity" validate:"required,gt=0"`
	IsGift       bool       `json:"is_gift"`
	Options      string     `json:"options"`
}

// UpdateItemRequest changes the quantity of an existing line
type UpdateItemRequest struct {
	CartID    uuid.UUID  `json:"cart_id" validate:"required"`
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" validate:"gte=0"`
}

// RemoveItemRequest deletes a line from the cart
type RemoveItemRequest struct {
	CartID    uuid.UUID  `json:"cart_id" validate:"required"`
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
}

// ApplyCouponRequest records a coupon code on the cart
type ApplyCouponRequest struct {
	CartID uuid.UUID `json:"cart_id" validate:"required"`
	Code   string    `json:"code" validate:"required,max=50"`
}
