package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrFractionalQuantity is returned for quantities with a non-zero fractional part.
var ErrFractionalQuantity = errors.New("fractional quantity")

var dotGrouped = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)

// ParseQuantity parses case counts such as "12", "12.0" or "1,200". In the
// european dialect "1.200" is a grouped integer; elsewhere it is 1.2 and
// rejected. Fractional units are rejected.
func ParseQuantity(s string, european bool) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyAmount
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\'' {
			return -1
		}
		return r
	}, s)

	// "1,200" is a grouped integer; "12.0" and "12,0" are decimals.
	switch {
	case european && dotGrouped.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	case strings.Contains(cleaned, ",") && strings.Contains(cleaned, "."):
		if IsEuropeanAmount(cleaned) {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Contains(cleaned, ","):
		if HasDecimalSuffix(cleaned, ',') {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q", ErrFractionalQuantity, s)
	}
	return int(d.IntPart()), nil
}

// QuantityFromNumber converts a numeric cell into a whole quantity.
func QuantityFromNumber(n float64) (int, error) {
	d := decimal.NewFromFloat(n)
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%w: %v", ErrFractionalQuantity, n)
	}
	return int(d.IntPart()), nil
}
