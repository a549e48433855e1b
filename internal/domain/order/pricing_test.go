package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/komono/backend/internal/domain/shared/valueobject"
)

func yen(v int64) valueobject.Money {
	return valueobject.NewMoneyJPYFromInt(v)
}

var inclusiveTax = TaxRule{Rate: decimal.NewFromFloat(0.10), Inclusive: true}

func TestCalculateTotals_DiscountedOrderScenario(t *testing.T) {
	// 2 units at 100,000 yen, 10% coupon, 30,000 yen shipping
	lines := []PricingLine{{UnitPrice: yen(100000), Quantity: 2}}
	discount := yen(200000).CalculatePercentage(decimal.NewFromInt(10))

	totals := CalculateTotals(lines, yen(30000), discount, inclusiveTax)

	assert.Equal(t, int64(200000), totals.Subtotal.IntPart())
	assert.Equal(t, int64(20000), totals.DiscountAmount.IntPart())
	assert.Equal(t, int64(30000), totals.ShippingCost.IntPart())
	assert.Equal(t, int64(210000), totals.Total.IntPart())
	assert.True(t, totals.Verify())
}

func TestCalculateTotals_ZeroDiscountZeroShipping(t *testing.T) {
	lines := []PricingLine{
		{UnitPrice: yen(3500), Quantity: 2},
		{UnitPrice: yen(1200), Quantity: 1},
	}
	totals := CalculateTotals(lines, valueobject.ZeroJPY(), valueobject.ZeroJPY(), inclusiveTax)

	assert.Equal(t, int64(8200), totals.Subtotal.IntPart())
	assert.Equal(t, int64(8200), totals.Total.IntPart())
	assert.True(t, totals.Verify())
}

func TestCalculateTotals_ExclusiveTax(t *testing.T) {
	lines := []PricingLine{{UnitPrice: yen(1000), Quantity: 3}}
	totals := CalculateTotals(lines, yen(500), valueobject.ZeroJPY(),
		TaxRule{Rate: decimal.NewFromFloat(0.10)})

	assert.Equal(t, int64(3000), totals.Subtotal.IntPart())
	assert.Equal(t, int64(300), totals.TaxAmount.IntPart())
	assert.Equal(t, int64(3800), totals.Total.IntPart())
	assert.False(t, totals.TaxIncluded)
	assert.True(t, totals.Verify())
}

func TestCalculateTotals_RoundingAbsorbedIntoTax(t *testing.T) {
	// 8% of 105 yen is 8.4 yen; total rounds half-up once at the end
	lines := []PricingLine{{UnitPrice: yen(105), Quantity: 1}}
	totals := CalculateTotals(lines, valueobject.ZeroJPY(), valueobject.ZeroJPY(),
		TaxRule{Rate: decimal.NewFromFloat(0.08)})

	assert.Equal(t, int64(113), totals.Total.IntPart())
	assert.True(t, totals.Total.Amount().Equal(decimal.NewFromInt(113)))
	assert.True(t, totals.Verify())
}

func TestCalculateTotals_DiscountCappedAtSubtotal(t *testing.T) {
	lines := []PricingLine{{UnitPrice: yen(1000), Quantity: 1}}
	totals := CalculateTotals(lines, yen(500), yen(9999), inclusiveTax)

	assert.Equal(t, int64(1000), totals.DiscountAmount.IntPart())
	assert.Equal(t, int64(500), totals.Total.IntPart())
	assert.True(t, totals.Verify())
}

func TestCalculateTotals_SkipsRemovalPendingLines(t *testing.T) {
	lines := []PricingLine{
		{UnitPrice: yen(1000), Quantity: 2},
		{UnitPrice: yen(500), Quantity: 0},
	}
	totals := CalculateTotals(lines, valueobject.ZeroJPY(), valueobject.ZeroJPY(), inclusiveTax)
	assert.Equal(t, int64(2000), totals.Subtotal.IntPart())
}

func TestCalculateTotals_Deterministic(t *testing.T) {
	lines := []PricingLine{
		{UnitPrice: yen(2980), Quantity: 3},
		{UnitPrice: yen(12800), Quantity: 1},
	}
	first := CalculateTotals(lines, yen(800), yen(1000), inclusiveTax)
	for i := 0; i < 10; i++ {
		again := CalculateTotals(lines, yen(800), yen(1000), inclusiveTax)
		assert.True(t, first.Total.Equals(again.Total))
		assert.True(t, first.TaxAmount.Equals(again.TaxAmount))
	}
}
