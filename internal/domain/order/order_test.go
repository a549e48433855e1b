package order

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

func testAddress(t *testing.T) valueobject.Address {
	t.Helper()
	addr, err := valueobject.NewAddress("150-0001", "東京都", "渋谷区", "神宮前1-2-3", "山田太郎")
	require.NoError(t, err)
	return addr
}

func testOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("ORD-2026-00001", uuid.New(), testAddress(t), valueobject.Address{})
	require.NoError(t, err)
	return o
}

func addTestItem(t *testing.T, o *Order, price int64, qty int) {
	t.Helper()
	require.NoError(t, o.AddItem(uuid.New(), nil, "波佐見焼 茶碗", qty, yen(price), false, ""))
}

func submitTestOrder(t *testing.T, o *Order) {
	t.Helper()
	totals := CalculateTotals(linesOf(o), o.ShippingCost, o.DiscountAmount, inclusiveTax)
	require.NoError(t, o.SetTotals(totals))
	require.NoError(t, o.Submit())
}

func linesOf(o *Order) []PricingLine {
	lines := make([]PricingLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, PricingLine{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return lines
}

func TestNewOrder(t *testing.T) {
	o := testOrder(t)
	assert.Equal(t, StatusDraft, o.Status)
	assert.Equal(t, "ORD-2026-00001", o.OrderNumber)
	// billing defaults to shipping when absent
	assert.True(t, o.BillingAddress.Equals(o.ShippingAddress))

	_, err := NewOrder("", uuid.New(), testAddress(t), valueobject.Address{})
	assert.Error(t, err)
	_, err = NewOrder("ORD-2026-00002", uuid.Nil, testAddress(t), valueobject.Address{})
	assert.Error(t, err)
	_, err = NewOrder("ORD-2026-00003", uuid.New(), valueobject.Address{}, valueobject.Address{})
	assert.Error(t, err)
}

func TestOrder_Submit(t *testing.T) {
	o := testOrder(t)

	// empty order cannot be submitted
	assert.Error(t, o.Submit())

	addTestItem(t, o, 100000, 2)
	o.ShippingCost = yen(30000)
	o.DiscountAmount = yen(20000)
	o.ApplyCoupon("SAVE10")
	submitTestOrder(t, o)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(210000), o.GrandTotal.IntPart())
	assert.True(t, o.VerifyTotals())
}

func TestOrder_ItemsImmutableAfterDraft(t *testing.T) {
	o := testOrder(t)
	addTestItem(t, o, 5000, 1)
	submitTestOrder(t, o)

	err := o.AddItem(uuid.New(), nil, "x", 1, yen(100), false, "")
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	err = o.SetTotals(Totals{})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestOrder_Transition_RejectsOffAdjacency(t *testing.T) {
	o := testOrder(t)
	addTestItem(t, o, 5000, 1)
	submitTestOrder(t, o)

	err := o.Transition(StatusDelivered)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	assert.Equal(t, StatusPending, o.Status)

	assert.Error(t, o.Transition(OrderStatus("BOGUS")))

	require.NoError(t, o.Transition(StatusConfirmed))
	assert.NotNil(t, o.ConfirmedAt)
	require.NoError(t, o.Transition(StatusProcessing))
	require.NoError(t, o.Transition(StatusPacked))
	require.NoError(t, o.Transition(StatusShipped))
	require.NoError(t, o.Transition(StatusOutForDelivery))
	require.NoError(t, o.Transition(StatusDelivered))
	assert.NotNil(t, o.DeliveredAt)
}

func TestOrder_Cancel(t *testing.T) {
	o := testOrder(t)
	addTestItem(t, o, 5000, 1)
	submitTestOrder(t, o)

	require.NoError(t, o.Cancel("changed my mind"))
	assert.Equal(t, StatusCancelled, o.Status)
	assert.NotNil(t, o.CancelledAt)
	require.Len(t, o.Notes, 1)
	assert.Contains(t, o.Notes[0].Text, "changed my mind")
}

func TestOrder_Cancel_RejectedAfterShipment(t *testing.T) {
	o := testOrder(t)
	addTestItem(t, o, 5000, 1)
	submitTestOrder(t, o)
	require.NoError(t, o.Transition(StatusConfirmed))
	require.NoError(t, o.Transition(StatusProcessing))
	require.NoError(t, o.Transition(StatusPacked))
	require.NoError(t, o.Transition(StatusShipped))

	err := o.Cancel("too late")
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	assert.Equal(t, StatusShipped, o.Status)
}

func TestOrder_MarkDeliveryFailed(t *testing.T) {
	o := testOrder(t)
	addTestItem(t, o, 5000, 1)
	submitTestOrder(t, o)

	// only meaningful while out for delivery
	assert.Error(t, o.MarkDeliveryFailed("absent"))

	require.NoError(t, o.Transition(StatusConfirmed))
	require.NoError(t, o.Transition(StatusProcessing))
	require.NoError(t, o.Transition(StatusPacked))
	require.NoError(t, o.Transition(StatusShipped))
	require.NoError(t, o.Transition(StatusOutForDelivery))

	require.NoError(t, o.MarkDeliveryFailed("recipient absent"))
	// stays out for delivery, flagged for staff follow-up
	assert.Equal(t, StatusOutForDelivery, o.Status)
	assert.NotNil(t, o.DeliveryFailedAt)
	require.Len(t, o.Notes, 1)

	// explicit confirmation clears the flag and advances
	require.NoError(t, o.Transition(StatusDelivered))
	assert.Nil(t, o.DeliveryFailedAt)
}

func TestOrder_MarkItemReturned(t *testing.T) {
	o := testOrder(t)
	addTestItem(t, o, 5000, 2)
	addTestItem(t, o, 3000, 1)
	submitTestOrder(t, o)

	first := o.Items[0].ID

	// over-claim rejected
	err := o.MarkItemReturned(first, 3)
	assert.Error(t, err)
	assert.Equal(t, shared.ErrorKindConflict, shared.KindOf(err))

	require.NoError(t, o.MarkItemReturned(first, 1))
	assert.Equal(t, 1, o.Items[0].ReturnedQuantity)
	assert.False(t, o.AllItemsFullyReturned())

	// cumulative over-claim rejected
	assert.Error(t, o.MarkItemReturned(first, 2))

	require.NoError(t, o.MarkItemReturned(first, 1))
	require.NoError(t, o.MarkItemReturned(o.Items[1].ID, 1))
	assert.True(t, o.AllItemsFullyReturned())

	assert.Error(t, o.MarkItemReturned(uuid.New(), 1))
}

func TestOrder_SetTotals_RejectsInconsistentBreakdown(t *testing.T) {
	o := testOrder(t)
	addTestItem(t, o, 1000, 1)

	bad := Totals{
		Subtotal:       yen(1000),
		ShippingCost:   yen(500),
		TaxAmount:      valueobject.ZeroJPY(),
		TaxIncluded:    true,
		DiscountAmount: valueobject.ZeroJPY(),
		Total:          yen(9999),
	}
	assert.Error(t, o.SetTotals(bad))
}

func TestOrder_VerifyTotals_ExclusiveTax(t *testing.T) {
	o := testOrder(t)
	addTestItem(t, o, 1000, 3)
	totals := CalculateTotals(linesOf(o), yen(500), valueobject.ZeroJPY(),
		TaxRule{Rate: decimal.NewFromFloat(0.10)})
	require.NoError(t, o.SetTotals(totals))
	require.NoError(t, o.Submit())
	assert.True(t, o.VerifyTotals())
	assert.Equal(t, int64(3800), o.GrandTotal.IntPart())
}
