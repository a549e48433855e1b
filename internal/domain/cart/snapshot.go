package cart

import (
	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// LineIssue flags a drift problem found on a snapshot line. Issues are
// surfaced without removing the line so the cart stays operable.
type LineIssue string

const (
	IssuePriceChanged LineIssue = "PRICE_CHANGED"
	IssueOutOfStock   LineIssue = "OUT_OF_STOCK"
	IssueInactive     LineIssue = "INACTIVE"
)

// SnapshotLine is one cart line revalidated against the live catalog
type SnapshotLine struct {
	ProductID     uuid.UUID         `json:"product_id"`
	VariantID     *uuid.UUID        `json:"variant_id"`
	ProductName   string            `json:"product_name"`
	Quantity      int               `json:"quantity"`
	CapturedPrice valueobject.Money `json:"captured_price"`
	LivePrice     valueobject.Money `json:"live_price"`
	LiveStock     int               `json:"live_stock"`
	IsGift        bool              `json:"is_gift"`
	Options       string            `json:"options"`
	Issues        []LineIssue       `json:"issues,omitempty"`
}

// HasIssue reports whether the line carries the given issue
func (l SnapshotLine) HasIssue(issue LineIssue) bool {
	for _, i := range l.Issues {
		if i == issue {
			return true
		}
	}
	return false
}

// Snapshot is a point-in-time view of the cart with live validation
// results and preview totals. It is the checkout input.
type Snapshot struct {
	CartID         uuid.UUID         `json:"cart_id"`
	Lines          []SnapshotLine    `json:"lines"`
	CouponCode     string            `json:"coupon_code,omitempty"`
	Subtotal       valueobject.Money `json:"subtotal"`
	ShippingCost   valueobject.Money `json:"shipping_cost"`
	TaxAmount      valueobject.Money `json:"tax_amount"`
	DiscountAmount valueobject.Money `json:"discount_amount"`
	Total          valueobject.Money `json:"total"`
}

// IsCheckoutReady reports whether every line passed live validation
func (s Snapshot) IsCheckoutReady() bool {
	if len(s.Lines) == 0 {
		return false
	}
	for _, l := range s.Lines {
		if len(l.Issues) > 0 {
			return false
		}
	}
	return true
}
