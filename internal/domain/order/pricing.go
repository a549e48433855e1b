package order

import (
	"github.com/shopspring/decimal"

	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// PricingLine is one priced quantity entering the totals calculation.
// The price source differs by caller (live prices for cart preview,
// locked prices at order creation); the algorithm does not.
type PricingLine struct {
	UnitPrice valueobject.Money
	Quantity  int
}

// TaxRule configures consumption tax handling. When Inclusive, listed
// prices already contain tax and TaxAmount is informational only.
type TaxRule struct {
	Rate      decimal.Decimal
	Inclusive bool
}

// Totals is the full price breakdown of a cart preview or an order
type Totals struct {
	Subtotal       valueobject.Money `json:"subtotal"`
	ShippingCost   valueobject.Money `json:"shipping_cost"`
	TaxAmount      valueobject.Money `json:"tax_amount"`
	TaxIncluded    bool              `json:"tax_included"`
	DiscountAmount valueobject.Money `json:"discount_amount"`
	Total          valueobject.Money `json:"total"`
}

// CalculateTotals composes subtotal, discount, shipping and tax into a
// final total. Pure and deterministic: identical inputs always produce
// identical outputs. Amounts round to whole yen half-up, applied once
// at the final total, never per line; any rounding delta is absorbed
// into the tax component so the breakdown sums exactly to the total.
func CalculateTotals(lines []PricingLine, shippingFee, discount valueobject.Money, tax TaxRule) Totals {
	subtotal := valueobject.ZeroJPY()
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.MustAdd(line.UnitPrice.MultiplyByInt(int64(line.Quantity)))
	}

	if over, _ := discount.GreaterThan(subtotal); over {
		discount = subtotal
	}
	taxable := subtotal.MustSubtract(discount)

	if tax.Inclusive {
		// tax already inside the listed prices; surface the included
		// portion without adding it to the total
		one := decimal.NewFromInt(1)
		included := taxable.Multiply(tax.Rate.Div(one.Add(tax.Rate))).RoundHalfUp()
		total := taxable.MustAdd(shippingFee).RoundHalfUp()
		return Totals{
			Subtotal:       subtotal,
			ShippingCost:   shippingFee,
			TaxAmount:      included,
			TaxIncluded:    true,
			DiscountAmount: discount,
			Total:          total,
		}
	}

	taxAmount := taxable.Multiply(tax.Rate)
	total := taxable.MustAdd(shippingFee).MustAdd(taxAmount)
	rounded := total.RoundHalfUp()
	taxAmount = taxAmount.MustAdd(rounded.MustSubtract(total))
	return Totals{
		Subtotal:       subtotal,
		ShippingCost:   shippingFee,
		TaxAmount:      taxAmount,
		DiscountAmount: discount,
		Total:          rounded,
	}
}

// Verify recomputes subtotal − discount + shipping (+ tax when
// exclusive) and checks it equals the stored total
func (t Totals) Verify() bool {
	sum := t.Subtotal.MustSubtract(t.DiscountAmount).MustAdd(t.ShippingCost)
	if !t.TaxIncluded {
		sum = sum.MustAdd(t.TaxAmount)
	}
	return sum.Equals(t.Total)
}
