package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

func TestFindHeaderRow(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]string
		expect  int
		wantErr error
	}{
		{
			name: "preamble before headers",
			rows: [][]string{
				{"Monthly Depletion Report"},
				{"Generated 2024-03-01", ""},
				{"Invoice Date", "Ship To Name", "Product Code", "Extended Price", "Cases", "Rep Name"},
				{"01/15/2024", "Acme Liquors", "CAB-750", "$1,234.56", "12", "J. Smith"},
			},
			expect: 2,
		},
		{
			name: "headers on first row",
			rows: [][]string{
				{"Account", "Product", "Quantity"},
				{"Acme", "Merlot", "3"},
			},
			expect: 0,
		},
		{
			name: "no keywords falls back to widest text row",
			rows: [][]string{
				{"alpha", "beta", "gamma"},
				{"1", "2", "3"},
			},
			expect: 0,
		},
		{
			name:    "numbers only",
			rows:    [][]string{{"1", "2"}, {"3", "4"}},
			wantErr: ErrNoHeadersFound,
		},
		{
			name:    "empty",
			rows:    nil,
			wantErr: ErrEmptyExtract,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindHeaderRow(tt.rows)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]string{"Invoice Date", "Ship To Name"})
	b := Fingerprint([]string{" invoice_date ", "SHIP TO NAME"})
	c := Fingerprint([]string{"Ship To Name", "Invoice Date"})

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestProbeDialect(t *testing.T) {
	t.Run("european amounts and day-first dates", func(t *testing.T) {
		rows := []mapping.SampleRow{
			mapping.Row("15/01/2024", "Acme", "1.234,56 €"),
			mapping.Row("20/02/2024", "Beta", "99,90 €"),
		}
		d := ProbeDialect(rows, 2, 0)
		assert.True(t, d.IsEuropeanFormat)
		assert.Equal(t, ',', d.DecimalSeparator)
		assert.Equal(t, "EUR", d.CurrencyHint)
		assert.True(t, d.DayFirst())
	})

	t.Run("us amounts and month-first dates", func(t *testing.T) {
		rows := []mapping.SampleRow{
			mapping.Row("01/15/2024", "Acme", "$1,234.56"),
			mapping.Row("02/20/2024", "Beta", "$99.90"),
		}
		d := ProbeDialect(rows, 2, 0)
		assert.False(t, d.IsEuropeanFormat)
		assert.Equal(t, "USD", d.CurrencyHint)
		assert.False(t, d.DayFirst())
		assert.Equal(t, 1.0, d.Confidence)
	})

	t.Run("numeric cells and unknown columns", func(t *testing.T) {
		rows := []mapping.SampleRow{mapping.Row(12.5, nil, "2024-01-15")}
		d := ProbeDialect(rows, -1, 2)
		assert.False(t, d.IsEuropeanFormat)
		assert.Equal(t, 0.5, d.Confidence)
		assert.False(t, d.DayFirst())
	})
}
