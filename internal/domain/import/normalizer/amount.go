package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyAmount is returned for blank amount cells.
	ErrEmptyAmount = errors.New("empty amount")
	// ErrNotNumeric is returned when an amount has no parseable number.
	ErrNotNumeric = errors.New("not numeric")
)

var currencySymbols = []string{"R$", "US$", "$", "€", "£", "¥", "₹", "USD", "EUR", "GBP", "BRL", "CAD"}

// ParseRevenue strips currency symbols and thousands separators and parses
// the remainder as a decimal. Parenthesized values are negative. The detected
// ISO currency code is returned when a symbol was present.
func ParseRevenue(s string, european bool) (decimal.Decimal, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, "", ErrEmptyAmount
	}

	currency, _ := CurrencyFromText(s)
	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	if european {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	if s == "" {
		return decimal.Zero, currency, ErrNotNumeric
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, currency, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	if negative {
		d = d.Neg()
	}
	return d, currency, nil
}

// LooksLikeCurrency reports whether s reads as a money amount: it must parse
// as a number and carry a currency marker or a decimal part of one or two
// digits. Plain and grouped integers such as "1,200" are not currency-like.
func LooksLikeCurrency(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if _, err := decimal.NewFromString(s); err == nil && !strings.ContainsAny(s, ".,") {
		return false
	}
	_, hasSymbol := CurrencyFromText(s)
	digits := CleanAmountSample(s)
	digits = strings.TrimPrefix(digits, "-")
	if digits == "" {
		return false
	}
	european := IsEuropeanAmount(digits)
	if _, _, err := ParseRevenue(s, european); err != nil {
		return false
	}
	return hasSymbol || HasDecimalSuffix(digits, '.') || HasDecimalSuffix(digits, ',')
}

// IsEuropeanAmount guesses the dialect of a single cleaned amount.
func IsEuropeanAmount(cleaned string) bool {
	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		return strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".")
	case hasComma:
		return HasDecimalSuffix(cleaned, ',')
	default:
		return false
	}
}

// CleanAmountSample keeps only digits, separators and the minus sign.
func CleanAmountSample(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)
}

// HasDecimalSuffix reports whether value ends with sep followed by one or two digits.
func HasDecimalSuffix(value string, sep rune) bool {
	idx := strings.LastIndex(value, string(sep))
	if idx == -1 || idx == len(value)-1 {
		return false
	}
	digits := 0
	for _, r := range value[idx+1:] {
		if !unicode.IsDigit(r) {
			return false
		}
		digits++
		if digits > 2 {
			return false
		}
	}
	return digits > 0
}

// CurrencyFromText maps a currency symbol or code in s to an ISO code.
func CurrencyFromText(value string) (string, bool) {
	upper := strings.ToUpper(value)
	switch {
	case strings.Contains(value, "R$") || strings.Contains(upper, "BRL"):
		return "BRL", true
	case strings.Contains(value, "€") || strings.Contains(upper, "EUR"):
		return "EUR", true
	case strings.Contains(value, "£") || strings.Contains(upper, "GBP"):
		return "GBP", true
	case strings.Contains(value, "¥"):
		return "JPY", true
	case strings.Contains(value, "₹"):
		return "INR", true
	case strings.Contains(upper, "CAD"):
		return "CAD", true
	case strings.Contains(value, "$") || strings.Contains(upper, "USD"):
		return "USD", true
	}
	return "", false
}
