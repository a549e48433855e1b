package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// Order is the fulfillment aggregate. Items and totals lock at
// creation and never recompute from the live catalog afterwards.
type Order struct {
	shared.BaseAggregateRoot
	shared.Audit
	OrderNumber      string              `gorm:"size:32;not null;uniqueIndex" json:"order_number"`
	UserID           uuid.UUID           `gorm:"type:uuid;not null;index" json:"user_id"`
	Status           OrderStatus         `gorm:"size:20;not null;default:'DRAFT';index" json:"status"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID" json:"items"`
	ShippingAddress  valueobject.Address `gorm:"type:jsonb" json:"shipping_address"`
	BillingAddress   valueobject.Address `gorm:"type:jsonb" json:"billing_address"`
	CouponCode       string              `gorm:"size:50" json:"coupon_code"`
	PaymentMethod    string              `gorm:"size:30" json:"payment_method"`
	Subtotal         valueobject.Money   `gorm:"type:decimal(12,0)" json:"subtotal"`
	ShippingCost     valueobject.Money   `gorm:"type:decimal(12,0)" json:"shipping_cost"`
	TaxAmount        valueobject.Money   `gorm:"type:decimal(12,0)" json:"tax_amount"`
	TaxIncluded      bool                `gorm:"default:true" json:"tax_included"`
	DiscountAmount   valueobject.Money   `gorm:"type:decimal(12,0)" json:"discount_amount"`
	GrandTotal       valueobject.Money   `gorm:"type:decimal(12,0)" json:"grand_total"`
	Notes            []OrderNote         `gorm:"foreignKey:OrderID" json:"notes"`
	DeliveryFailedAt *time.Time          `gorm:"" json:"delivery_failed_at"`
	ConfirmedAt      *time.Time          `gorm:"" json:"confirmed_at"`
	DeliveredAt      *time.Time          `gorm:"" json:"delivered_at"`
	CancelledAt      *time.Time          `gorm:"" json:"cancelled_at"`
}

// OrderItem is a price-locked line of an order. Immutable once the
// order leaves Draft.
type OrderItem struct {
	shared.BaseEntity
	OrderID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID        uuid.UUID         `gorm:"type:uuid;not null" json:"product_id"`
	VariantID        *uuid.UUID        `gorm:"type:uuid" json:"variant_id"`
	ProductName      string            `gorm:"size:200;not null" json:"product_name"`
	Quantity         int               `gorm:"not null" json:"quantity"`
	UnitPrice        valueobject.Money `gorm:"type:decimal(12,0);not null" json:"unit_price"`
	IsGift           bool              `gorm:"default:false" json:"is_gift"`
	Options          string            `gorm:"type:text" json:"options"`
	LineNotes        string            `gorm:"size:500" json:"line_notes"`
	ReturnedQuantity int               `gorm:"not null;default:0" json:"returned_quantity"`
}

// OrderNote is one entry of the append-only staff/customer note trail
type OrderNote struct {
	shared.BaseEntity
	OrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	Actor   string    `gorm:"size:100;not null" json:"actor"`
	Text    string    `gorm:"size:1000;not null" json:"text"`
}

// TableName returns the table name
func (Order) TableName() string {
	return "orders"
}

// TableName returns the table name
func (OrderItem) TableName() string {
	return "order_items"
}

// TableName returns the table name
func (OrderNote) TableName() string {
	return "order_notes"
}

// NewOrder creates a draft order for a user
func NewOrder(orderNumber string, userID uuid.UUID, shippingAddress, billingAddress valueobject.Address) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "order number cannot be empty")
	}
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "user id cannot be empty")
	}
	if shippingAddress.IsZero() {
		return nil, shared.NewDomainError("INVALID_ADDRESS", "shipping address is required")
	}
	if billingAddress.IsZero() {
		billingAddress = shippingAddress
	}
	return &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		UserID:            userID,
		Status:            StatusDraft,
		ShippingAddress:   shippingAddress,
		BillingAddress:    billingAddress,
		Subtotal:          valueobject.ZeroJPY(),
		ShippingCost:      valueobject.ZeroJPY(),
		TaxAmount:         valueobject.ZeroJPY(),
		TaxIncluded:       true,
		DiscountAmount:    valueobject.ZeroJPY(),
		GrandTotal:        valueobject.ZeroJPY(),
	}, nil
}

// AddItem appends a price-locked line. Only allowed in Draft.
func (o *Order) AddItem(productID uuid.UUID, variantID *uuid.UUID, productName string, quantity int, unitPrice valueobject.Money, isGift bool, options string) error {
	if o.Status != StatusDraft {
		return fmt.Errorf("%w: items cannot change once order is %s", shared.ErrInvalidTransition, o.Status)
	}
	if productID == uuid.Nil {
		return shared.NewDomainError("INVALID_PRODUCT", "product id cannot be empty")
	}
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "quantity must be positive")
	}
	o.Items = append(o.Items, OrderItem{
		BaseEntity:  shared.NewBaseEntity(),
		OrderID:     o.ID,
		ProductID:   productID,
		VariantID:   variantID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		IsGift:      isGift,
		Options:     options,
	})
	return nil
}

// SetTotals locks the price breakdown onto the order. Only allowed in
// Draft; totals never change afterwards.
func (o *Order) SetTotals(totals Totals) error {
	if o.Status != StatusDraft {
		return fmt.Errorf("%w: totals are locked once order is %s", shared.ErrInvalidTransition, o.Status)
	}
	if !totals.Verify() {
		return shared.NewConflictError("INCONSISTENT_TOTALS", "totals breakdown does not sum to the grand total")
	}
	o.Subtotal = totals.Subtotal
	o.ShippingCost = totals.ShippingCost
	o.TaxAmount = totals.TaxAmount
	o.TaxIncluded = totals.TaxIncluded
	o.DiscountAmount = totals.DiscountAmount
	o.GrandTotal = totals.Total
	return nil
}

// ApplyCoupon records the coupon code and its locked discount
func (o *Order) ApplyCoupon(code string) {
	o.CouponCode = code
}

// Transition moves the order to the target status, rejecting any pair
// not on the adjacency list
func (o *Order) Transition(target OrderStatus) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "unknown order status: "+target.String())
	}
	if !o.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: order cannot move from %s to %s", shared.ErrInvalidTransition, o.Status, target)
	}
	now := time.Now()
	switch target {
	case StatusConfirmed:
		o.ConfirmedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
		o.DeliveryFailedAt = nil
	case StatusCancelled:
		o.CancelledAt = &now
	}
	o.Status = target
	return nil
}

// Submit finalizes the draft into a placed order
func (o *Order) Submit() error {
	if len(o.Items) == 0 {
		return shared.NewDomainError("EMPTY_ORDER", "order must contain at least one item")
	}
	if !o.VerifyTotals() {
		return shared.NewConflictError("INCONSISTENT_TOTALS", "order totals do not match items")
	}
	return o.Transition(StatusPending)
}

// Cancel marks the order cancelled. Only customer-cancellable states
// qualify; later states must go through the return flow.
func (o *Order) Cancel(reason string) error {
	if !o.Status.IsCancellable() {
		return fmt.Errorf("%w: order in status %s cannot be cancelled", shared.ErrInvalidTransition, o.Status)
	}
	if err := o.Transition(StatusCancelled); err != nil {
		return err
	}
	if reason != "" {
		o.AppendNote("customer", "cancelled: "+reason)
	}
	return nil
}

// MarkDeliveryFailed flags the order for staff follow-up after a
// failed delivery attempt. The order stays OutForDelivery; no
// automatic redelivery is scheduled.
func (o *Order) MarkDeliveryFailed(notes string) error {
	if o.Status != StatusOutForDelivery {
		return fmt.Errorf("%w: delivery can only fail while out for delivery, order is %s", shared.ErrInvalidTransition, o.Status)
	}
	now := time.Now()
	o.DeliveryFailedAt = &now
	text := "delivery attempt failed, staff follow-up required"
	if notes != "" {
		text += ": " + notes
	}
	o.AppendNote("carrier", text)
	return nil
}

// AppendNote adds an entry to the append-only note trail
func (o *Order) AppendNote(actor, text string) {
	o.Notes = append(o.Notes, OrderNote{
		BaseEntity: shared.NewBaseEntity(),
		OrderID:    o.ID,
		Actor:      actor,
		Text:       text,
	})
}

// VerifyTotals checks the locked invariant: sum of item lines minus
// discount plus shipping (plus tax when exclusive) equals grand total
func (o *Order) VerifyTotals() bool {
	sum := valueobject.ZeroJPY()
	for _, item := range o.Items {
		sum = sum.MustAdd(item.UnitPrice.MultiplyByInt(int64(item.Quantity)))
	}
	if !sum.Equals(o.Subtotal) {
		return false
	}
	total := sum.MustSubtract(o.DiscountAmount).MustAdd(o.ShippingCost)
	if !o.TaxIncluded {
		total = total.MustAdd(o.TaxAmount)
	}
	return total.Equals(o.GrandTotal)
}

// FindItem returns the order item with the given id
func (o *Order) FindItem(itemID uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// MarkItemReturned adds to an item's returned quantity, capped at the
// ordered quantity
func (o *Order) MarkItemReturned(itemID uuid.UUID, quantity int) error {
	item := o.FindItem(itemID)
	if item == nil {
		return shared.NewNotFoundError("ITEM_NOT_FOUND", "order item not found")
	}
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "returned quantity must be positive")
	}
	if item.ReturnedQuantity+quantity > item.Quantity {
		return shared.NewConflictError("RETURN_EXCEEDS_ORDERED",
			fmt.Sprintf("returned quantity would exceed ordered quantity for item %s", itemID))
	}
	item.ReturnedQuantity += quantity
	return nil
}

// AllItemsFullyReturned reports whether every line is returned in full
func (o *Order) AllItemsFullyReturned() bool {
	for _, item := range o.Items {
		if item.ReturnedQuantity < item.Quantity {
			return false
		}
	}
	return len(o.Items) > 0
}
