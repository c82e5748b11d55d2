package normalizer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"lowercase", "CASES", "cases"},
		{"trim", "  cases ", "cases"},
		{"underscore", "Invoice_Date", "invoice date"},
		{"collapse whitespace", "Ship  To\tName", "ship to name"},
		{"byte order mark", "\uFEFFAccount", "account"},
		{"quoted", `"Rep Name"`, "rep name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, NormalizeHeader(tt.input))
		})
	}
}

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		dayFirst bool
		expect   string
		wantErr  bool
	}{
		{"iso", "2024-01-15", false, "2024-01-15", false},
		{"iso with time", "2024-01-15T10:30:00", false, "2024-01-15", false},
		{"us slash", "01/02/2024", false, "2024-01-02", false},
		{"eu slash when day first", "01/02/2024", true, "2024-02-01", false},
		{"unambiguous day first", "15/01/2024", false, "2024-01-15", false},
		{"named month", "Jan 15, 2024", false, "2024-01-15", false},
		{"abbreviated dashes", "15-Jan-2024", false, "2024-01-15", false},
		{"empty", "  ", false, "", true},
		{"garbage", "not a date", false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFlexibleDate(tt.input, tt.dayFirst)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got.Format(ISODate))
		})
	}
}

func TestLooksLikeDate(t *testing.T) {
	assert.True(t, LooksLikeDate("2024-03-01"))
	assert.True(t, LooksLikeDate("3/1/2024"))
	assert.True(t, LooksLikeDate("20240301"))
	assert.False(t, LooksLikeDate("12"))
	assert.False(t, LooksLikeDate("$12.50"))
	assert.False(t, LooksLikeDate("Acme Liquors"))
}

func TestFromExcelSerial(t *testing.T) {
	got, ok := FromExcelSerial(45306)
	require.True(t, ok)
	assert.Equal(t, "2024-01-15", got.Format(ISODate))

	_, ok = FromExcelSerial(12)
	assert.False(t, ok)
}

func TestParsePeriod(t *testing.T) {
	got, err := ParsePeriod("2024-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParsePeriod("2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31", got.Format(ISODate))

	_, err = ParsePeriod("soon")
	assert.Error(t, err)
}

func TestParseRevenue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		european bool
		expect   string
		currency string
		wantErr  error
	}{
		{"us dollars", "$1,234.56", false, "1234.56", "USD", nil},
		{"european euros", "1.234,56 €", true, "1234.56", "EUR", nil},
		{"plain", "99.90", false, "99.9", "", nil},
		{"parenthesized negative", "(100.00)", false, "-100", "", nil},
		{"trailing minus", "45.00-", false, "-45", "", nil},
		{"reais", "R$ 10,50", true, "10.5", "BRL", nil},
		{"empty", "", false, "0", "", ErrEmptyAmount},
		{"text", "n/a", false, "0", "", ErrNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, currency, err := ParseRevenue(tt.input, tt.european)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expect).Equal(got), "got %s", got)
			assert.Equal(t, tt.currency, currency)
		})
	}
}

func TestLooksLikeCurrency(t *testing.T) {
	tests := []struct {
		input  string
		expect bool
	}{
		{"$12", true},
		{"12.50", true},
		{"1,234.56", true},
		{"€ 9,99", true},
		{"12", false},
		{"1,200", false},
		{"1.200", false},
		{"$1,200", true},
		{"abc", false},
		{"2024-01-15", false},
		{"01/15/2024", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expect, LooksLikeCurrency(tt.input))
		})
	}
}

func TestIsEuropeanAmount(t *testing.T) {
	assert.True(t, IsEuropeanAmount("1.234,56"))
	assert.True(t, IsEuropeanAmount("12,5"))
	assert.False(t, IsEuropeanAmount("1,234.56"))
	assert.False(t, IsEuropeanAmount("1,234"))
}

func TestCurrencyFromText(t *testing.T) {
	code, ok := CurrencyFromText("£12")
	assert.True(t, ok)
	assert.Equal(t, "GBP", code)

	_, ok = CurrencyFromText("12")
	assert.False(t, ok)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		european bool
		expect   int
		wantErr  error
	}{
		{"integer", "12", false, 12, nil},
		{"padded", " 7 ", false, 7, nil},
		{"trailing zero decimal", "12.0", false, 12, nil},
		{"trailing zero decimal european", "12.0", true, 12, nil},
		{"grouped", "1,200", false, 1200, nil},
		{"grouped with decimals european", "1.200,00", true, 1200, nil},
		{"dot grouped european", "1.200", true, 1200, nil},
		{"dot grouped millions european", "1.200.000", true, 1200000, nil},
		{"dot grouped millions", "1.200.000", false, 1200000, nil},
		{"dot is a decimal point outside europe", "1.200", false, 0, ErrFractionalQuantity},
		{"negative", "-3", false, -3, nil},
		{"fraction", "2.5", false, 0, ErrFractionalQuantity},
		{"fraction european", "2.5", true, 0, ErrFractionalQuantity},
		{"comma fraction", "12,5", true, 0, ErrFractionalQuantity},
		{"text", "twelve", false, 0, ErrNotNumeric},
		{"empty", "", false, 0, ErrEmptyAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuantity(tt.input, tt.european)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestQuantityFromNumber(t *testing.T) {
	got, err := QuantityFromNumber(24)
	require.NoError(t, err)
	assert.Equal(t, 24, got)

	_, err = QuantityFromNumber(2.25)
	assert.ErrorIs(t, err, ErrFractionalQuantity)
}
