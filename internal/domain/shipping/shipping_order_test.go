package shipping

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

func yen(v int64) valueobject.Money {
	return valueobject.NewMoneyJPYFromInt(v)
}

func testAddr(t *testing.T, recipient string) valueobject.Address {
	t.Helper()
	addr, err := valueobject.NewAddress("150-0001", "東京都", "渋谷区", "神宮前1-2-3", recipient)
	require.NoError(t, err)
	return addr
}

func testShipment(t *testing.T) *ShippingOrder {
	t.Helper()
	s, err := NewShippingOrder("SHP-2026-00001", uuid.New(), "yamato", ServiceStandard,
		testAddr(t, "コモノ物流センター"), testAddr(t, "山田太郎"),
		PackageSize{WeightGrams: 1200, WidthCM: 30, HeightCM: 20, DepthCM: 15})
	require.NoError(t, err)
	return s
}

func TestNewShippingOrder(t *testing.T) {
	s := testShipment(t)
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, 65, s.Package.TotalCM())

	_, err := NewShippingOrder("", uuid.New(), "yamato", ServiceStandard,
		testAddr(t, "a"), testAddr(t, "b"), PackageSize{})
	assert.Error(t, err)

	_, err = NewShippingOrder("SHP-1", uuid.Nil, "yamato", ServiceStandard,
		testAddr(t, "a"), testAddr(t, "b"), PackageSize{})
	assert.Error(t, err)

	_, err = NewShippingOrder("SHP-1", uuid.New(), "yamato", ServiceType("DRONE"),
		testAddr(t, "a"), testAddr(t, "b"), PackageSize{})
	assert.Error(t, err)

	_, err = NewShippingOrder("SHP-1", uuid.New(), "yamato", ServiceStandard,
		valueobject.Address{}, testAddr(t, "b"), PackageSize{})
	assert.Error(t, err)
}

func TestShippingStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusPickedUp, true},
		{StatusPickedUp, StatusInTransit, true},
		{StatusInTransit, StatusOutForDelivery, true},
		{StatusOutForDelivery, StatusDelivered, true},
		{StatusOutForDelivery, StatusFailed, true},
		{StatusInTransit, StatusReturned, true},
		{StatusFailed, StatusReturned, true},

		{StatusPending, StatusDelivered, false},
		{StatusDelivered, StatusInTransit, false},
		{StatusReturned, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}

	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusReturned.IsTerminal())
	assert.False(t, StatusFailed.IsTerminal())
}

func TestShippingOrder_AssignTracking(t *testing.T) {
	s := testShipment(t)
	fees := FeeBreakdown{BaseFee: yen(800), Surcharge: yen(200), CODFee: yen(0), Total: yen(1000)}
	require.NoError(t, s.AssignTracking("4401-2345-6789", fees))
	assert.Equal(t, "4401-2345-6789", s.TrackingNumber)
	assert.Equal(t, int64(1000), s.Fees.Total.IntPart())

	assert.Error(t, s.AssignTracking("", fees))
}

func TestShippingOrder_EnableCOD(t *testing.T) {
	s := testShipment(t)
	require.NoError(t, s.EnableCOD(yen(210000)))
	assert.True(t, s.IsCOD)
	assert.Equal(t, int64(210000), s.CODAmount.IntPart())

	assert.Error(t, s.EnableCOD(yen(0)))
}

func TestShippingOrder_AppendTracking(t *testing.T) {
	s := testShipment(t)

	applied, err := s.AppendTracking("ev-1", StatusPickedUp, "荷物をお預かりしました", "渋谷営業所", time.Now())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusPickedUp, s.Status)
	assert.NotNil(t, s.ShippedAt)

	// duplicate carrier event id is an idempotent no-op
	applied, err = s.AppendTracking("ev-1", StatusPickedUp, "duplicate", "", time.Now())
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Len(t, s.Events, 1)

	applied, err = s.AppendTracking("ev-2", StatusInTransit, "輸送中", "厚木ゲートウェイ", time.Now())
	require.NoError(t, err)
	assert.True(t, applied)

	// out-of-order event appends to the trail without regressing status
	applied, err = s.AppendTracking("ev-3", StatusPickedUp, "late scan", "", time.Now())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusInTransit, s.Status)
	assert.Len(t, s.Events, 3)

	applied, err = s.AppendTracking("ev-4", StatusOutForDelivery, "配達中", "渋谷営業所", time.Now())
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = s.AppendTracking("ev-5", StatusDelivered, "お届け完了", "", time.Now())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusDelivered, s.Status)
	assert.NotNil(t, s.DeliveredAt)

	_, err = s.AppendTracking("", StatusDelivered, "", "", time.Now())
	assert.Error(t, err)
	_, err = s.AppendTracking("ev-6", Status("WARP"), "", "", time.Now())
	assert.Error(t, err)
}

func TestShippingOrder_AppendTracking_SkippedScans(t *testing.T) {
	s := testShipment(t)

	_, err := s.AppendTracking("ev-1", StatusPickedUp, "荷物をお預かりしました", "渋谷営業所", time.Now())
	require.NoError(t, err)

	// carrier never sent the out-for-delivery scan
	applied, err := s.AppendTracking("ev-2", StatusDelivered, "お届け完了", "", time.Now())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusDelivered, s.Status)
	assert.NotNil(t, s.DeliveredAt)

	// a failed shipment does not jump onto the delivery path
	f := testShipment(t)
	_, err = f.AppendTracking("ev-1", StatusFailed, "受取人不在", "", time.Now())
	require.NoError(t, err)
	applied, err = f.AppendTracking("ev-2", StatusDelivered, "late scan", "", time.Now())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusFailed, f.Status)
}

func TestShippingOrder_Transition_RejectsOffAdjacency(t *testing.T) {
	s := testShipment(t)
	err := s.Transition(StatusDelivered)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	assert.Equal(t, StatusPending, s.Status)
}
