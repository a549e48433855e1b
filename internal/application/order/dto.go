package order

import (
	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/order"
)

// CreateOrderRequest turns a cart into an order
type CreateOrderRequest struct {
	CartID            uuid.UUID  `json:"cart_id" validate:"required"`
	UserID            uuid.UUID  `json:"user_id" validate:"required"`
	ShippingAddressID uuid.UUID  `json:"shipping_address_id" validate:"required"`
	BillingAddressID  *uuid.UUID `json:"billing_address_id"`
	PaymentMethod     string     `json:"payment_method" validate:"required,max=30"`
	CouponCode        string     `json:"coupon_code" validate:"max=50"`
}

// UpdateStatusRequest moves an order along its lifecycle
type UpdateStatusRequest struct {
	OrderID uuid.UUID         `json:"order_id" validate:"required"`
	Status  order.OrderStatus `json:"status" validate:"required"`
	Actor   string            `json:"actor" validate:"max=100"`
	Notes   string            `json:"notes" validate:"max=1000"`
}

// CancelOrderRequest cancels a pre-shipment order
type CancelOrderRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	Reason  string    `json:"reason" validate:"max=500"`
}

// ConfirmDeliveryRequest records the outcome of a delivery attempt
type ConfirmDeliveryRequest struct {
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	IsReceived bool      `json:"is_received"`
	Notes      string    `json:"notes" validate:"max=1000"`
}
