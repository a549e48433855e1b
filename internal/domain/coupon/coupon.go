package coupon

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// CouponType is the discount computation mode
type CouponType string

const (
	TypePercentage CouponType = "PERCENTAGE"
	TypeFixed      CouponType = "FIXED"
)

// IsValid checks if the coupon type is valid
func (t CouponType) IsValid() bool {
	return t == TypePercentage || t == TypeFixed
}

// Rejection reasons returned by Validate, machine-readable
const (
	ReasonNotActive     = "NOT_ACTIVE"
	ReasonNotStarted    = "NOT_STARTED"
	ReasonExpired       = "EXPIRED"
	ReasonBelowMinimum  = "BELOW_MINIMUM"
	ReasonUsageExceeded = "USAGE_EXCEEDED"
)

// Coupon is a discount code with a validity window and usage cap
type Coupon struct {
	shared.BaseAggregateRoot
	shared.Activatable
	Code              string            `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Type              CouponType        `gorm:"size:20;not null" json:"type"`
	Value             decimal.Decimal   `gorm:"type:decimal(10,2);not null" json:"value"`
	MinOrderAmount    valueobject.Money `gorm:"type:decimal(12,0)" json:"min_order_amount"`
	MaxDiscountAmount valueobject.Money `gorm:"type:decimal(12,0)" json:"max_discount_amount"`
	UsageLimit        *int              `gorm:"" json:"usage_limit"`
	UsedCount         int               `gorm:"not null;default:0" json:"used_count"`
	StartDate         time.Time         `gorm:"not null" json:"start_date"`
	EndDate           time.Time         `gorm:"not null" json:"end_date"`
	IsPublic          bool              `gorm:"default:true" json:"is_public"`
}

// CouponUsage ties one committed usage to one order. The unique
// (coupon_id, order_id) index makes CommitUsage idempotent by order.
type CouponUsage struct {
	shared.BaseEntity
	CouponID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_coupon_usage_order" json:"coupon_id"`
	OrderID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_coupon_usage_order" json:"order_id"`
	UserID   *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
}

// TableName returns the table name
func (Coupon) TableName() string {
	return "coupons"
}

// TableName returns the table name
func (CouponUsage) TableName() string {
	return "coupon_usages"
}

// NewCoupon creates a coupon
func NewCoupon(code string, couponType CouponType, value decimal.Decimal, startDate, endDate time.Time) (*Coupon, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "coupon code cannot be empty")
	}
	if !couponType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TYPE", "invalid coupon type: "+string(couponType))
	}
	if !value.IsPositive() {
		return nil, shared.NewDomainError("INVALID_VALUE", "coupon value must be positive")
	}
	if couponType == TypePercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewDomainError("INVALID_VALUE", "percentage value cannot exceed 100")
	}
	if !endDate.After(startDate) {
		return nil, shared.NewDomainError("INVALID_WINDOW", "end date must be after start date")
	}
	return &Coupon{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Activatable:       shared.Activatable{IsActive: true},
		Code:              code,
		Type:              couponType,
		Value:             value,
		MinOrderAmount:    valueobject.ZeroJPY(),
		MaxDiscountAmount: valueobject.ZeroJPY(),
		StartDate:         startDate,
		EndDate:           endDate,
		IsPublic:          true,
	}, nil
}

// ValidationResult is the answer to a coupon validation request
type ValidationResult struct {
	IsValid        bool
	DiscountAmount valueobject.Money
	Reason         string
}

// Validate checks the coupon against an order amount at a point in
// time. Checks short-circuit on the first failure, in a fixed order:
// active, validity window, minimum amount, usage cap.
func (c *Coupon) Validate(orderAmount valueobject.Money, now time.Time) ValidationResult {
	if !c.IsActive {
		return ValidationResult{Reason: ReasonNotActive, DiscountAmount: valueobject.ZeroJPY()}
	}
	if now.Before(c.StartDate) {
		return ValidationResult{Reason: ReasonNotStarted, DiscountAmount: valueobject.ZeroJPY()}
	}
	if now.After(c.EndDate) {
		return ValidationResult{Reason: ReasonExpired, DiscountAmount: valueobject.ZeroJPY()}
	}
	if !c.MinOrderAmount.IsZero() {
		if below, _ := orderAmount.LessThan(c.MinOrderAmount); below {
			return ValidationResult{Reason: ReasonBelowMinimum, DiscountAmount: valueobject.ZeroJPY()}
		}
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ValidationResult{Reason: ReasonUsageExceeded, DiscountAmount: valueobject.ZeroJPY()}
	}
	return ValidationResult{IsValid: true, DiscountAmount: c.CalculateDiscount(orderAmount)}
}

// CalculateDiscount computes the discount for an order amount. For
// percentage coupons the result is capped at MaxDiscountAmount when
// one is set. Never exceeds the order amount.
func (c *Coupon) CalculateDiscount(orderAmount valueobject.Money) valueobject.Money {
	var discount valueobject.Money
	switch c.Type {
	case TypePercentage:
		discount = orderAmount.CalculatePercentage(c.Value)
		if !c.MaxDiscountAmount.IsZero() {
			if over, _ := discount.GreaterThan(c.MaxDiscountAmount); over {
				discount = c.MaxDiscountAmount
			}
		}
	case TypeFixed:
		discount = valueobject.NewMoneyJPY(c.Value)
	default:
		return valueobject.ZeroJPY()
	}
	if over, _ := discount.GreaterThan(orderAmount); over {
		discount = orderAmount
	}
	return discount
}

// HasRemainingUses reports whether the usage cap allows another use
func (c *Coupon) HasRemainingUses() bool {
	return c.UsageLimit == nil || c.UsedCount < *c.UsageLimit
}

// RecordUse increments the used count. Callers must hold the coupon
// row lock and have inserted the CouponUsage row first.
func (c *Coupon) RecordUse() error {
	if !c.HasRemainingUses() {
		return shared.NewConflictError("COUPON_USAGE_EXCEEDED", "coupon usage limit reached")
	}
	c.UsedCount++
	return nil
}

// ReleaseUse decrements the used count after an order cancellation
func (c *Coupon) ReleaseUse() {
	if c.UsedCount > 0 {
		c.UsedCount--
	}
}
