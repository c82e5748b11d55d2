package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromDecimal(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
		wantCode string
	}{
		{"dollars", "1234.56", USD, 123456, USD},
		{"rounds half cents", "10.005", USD, 1001, USD},
		{"euro", "99.9", EUR, 9990, EUR},
		{"yen has no minor unit", "1500", JPY, 1500, JPY},
		{"unknown code falls back", "1.00", "XXZ", 100, USD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFromDecimal(decimal.RequireFromString(tt.amount), tt.currency)
			assert.Equal(t, tt.want, m.Amount())
			assert.Equal(t, tt.wantCode, m.Currency())
		})
	}
}

func TestAdd(t *testing.T) {
	sum, err := New(1000, USD).Add(New(250, USD))
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.Amount())

	_, err = New(1000, USD).Add(New(250, EUR))
	assert.Error(t, err)

	var empty *Money
	sum, err = empty.Add(New(5, USD))
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.Amount())
}

func TestString(t *testing.T) {
	assert.Equal(t, "1234.50", New(123450, USD).String())
	assert.Equal(t, "1500", New(1500, JPY).String())
	assert.Equal(t, "0.00", (*Money)(nil).String())
}

func TestTotals(t *testing.T) {
	totals := NewTotals("")
	require.NoError(t, totals.Add(decimal.RequireFromString("100.10"), USD))
	require.NoError(t, totals.Add(decimal.RequireFromString("0.90"), ""))
	require.NoError(t, totals.Add(decimal.RequireFromString("12.5"), EUR))

	assert.Equal(t, []string{EUR, USD}, totals.Currencies())
	assert.Equal(t, int64(10100), totals.Get(USD).Amount())
	assert.True(t, totals.Get(GBP).IsZero())
	assert.Equal(t, map[string]string{USD: "101.00", EUR: "12.50"}, totals.Strings())

	other := NewTotals(EUR)
	require.NoError(t, other.Add(decimal.RequireFromString("7.50"), ""))
	require.NoError(t, totals.Merge(other))
	assert.Equal(t, "20.00", totals.Get(EUR).String())

	assert.Nil(t, NewTotals(USD).Strings())
}

func TestParseTotals(t *testing.T) {
	run := NewTotals(USD)
	for _, file := range []map[string]string{
		{USD: "1234.50"},
		{USD: "0.50", GBP: "10.00"},
		nil,
	} {
		totals, err := ParseTotals(file)
		require.NoError(t, err)
		require.NoError(t, run.Merge(totals))
	}

	assert.Equal(t, map[string]string{USD: "1235.00", GBP: "10.00"}, run.Strings())
	assert.Equal(t, "$19.99", New(1999, USD).Display())
	assert.Len(t, run.Display(), 2)
	assert.Equal(t, "$1,235.00", run.Display()[1])

	_, err := ParseTotals(map[string]string{USD: "lots"})
	assert.Error(t, err)
}

func TestTestDataGenerator(t *testing.T) {
	gen := NewTestDataGeneratorWithSeed(42)

	lines := gen.Depletions(USD, 20)
	require.Len(t, lines, 20)
	for _, l := range lines {
		assert.NotEmpty(t, l.Account)
		assert.NotEmpty(t, l.Product)
		assert.GreaterOrEqual(t, l.Cases, 1)
		assert.False(t, l.Price.IsZero())
		assert.Equal(t, 2024, l.Date.Year())
	}
}

func BenchmarkTotalsAdd(b *testing.B) {
	totals := NewTotals(USD)
	amount := decimal.RequireFromString("12.34")
	for i := 0; i < b.N; i++ {
		_ = totals.Add(amount, USD)
	}
}
