package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyJPYFromInt(t *testing.T) {
	m := NewMoneyJPYFromInt(1500)
	assert.Equal(t, JPY, m.Currency())
	assert.Equal(t, int64(1500), m.IntPart())
	assert.True(t, m.IsPositive())
}

func TestMoney_AddSubtract(t *testing.T) {
	a := NewMoneyJPYFromInt(1000)
	b := NewMoneyJPYFromInt(300)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), sum.IntPart())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, int64(700), diff.IntPart())

	// currency mismatch
	usd, err := NewMoney(decimal.NewFromInt(10), USD)
	require.NoError(t, err)
	_, err = a.Add(usd)
	assert.Error(t, err)
	_, err = a.Subtract(usd)
	assert.Error(t, err)
}

func TestMoney_MultiplyByInt(t *testing.T) {
	unit := NewMoneyJPYFromInt(2980)
	total := unit.MultiplyByInt(3)
	assert.Equal(t, int64(8940), total.IntPart())
}

func TestMoney_CalculatePercentage(t *testing.T) {
	subtotal := NewMoneyJPYFromInt(200000)
	discount := subtotal.CalculatePercentage(decimal.NewFromInt(10))
	assert.Equal(t, int64(20000), discount.IntPart())
}

func TestMoney_RoundHalfUp(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   int64
	}{
		{"exact yen stays", "1000", 1000},
		{"half rounds up", "1000.5", 1001},
		{"below half rounds down", "1000.4", 1000},
		{"above half rounds up", "1000.6", 1001},
		{"fractional discount", "98.5", 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyJPYFromString(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.RoundHalfUp().IntPart())
			assert.True(t, m.RoundHalfUp().Amount().Equal(decimal.NewFromInt(tt.want)))
		})
	}
}

func TestMoney_Comparisons(t *testing.T) {
	a := NewMoneyJPYFromInt(500)
	b := NewMoneyJPYFromInt(800)

	less, err := a.LessThan(b)
	require.NoError(t, err)
	assert.True(t, less)

	greater, err := b.GreaterThan(a)
	require.NoError(t, err)
	assert.True(t, greater)

	assert.True(t, a.Equals(NewMoneyJPYFromInt(500)))
	assert.False(t, a.Equals(b))
}

func TestMoney_Negate(t *testing.T) {
	m := NewMoneyJPYFromInt(250)
	n := m.Negate()
	assert.True(t, n.IsNegative())
	assert.Equal(t, int64(-250), n.IntPart())
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := NewMoneyJPYFromInt(30000)
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, m.Equals(decoded))
}

func TestMoney_Scan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("12345"))
	assert.Equal(t, int64(12345), m.IntPart())
	assert.Equal(t, JPY, m.Currency())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())

	assert.Error(t, m.Scan(3.14))
}
