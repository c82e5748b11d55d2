package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/normalizer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// ErrNegativeRevenue rejects credits and returns in the revenue column.
var ErrNegativeRevenue = errors.New("negative revenue")

func parseRevenue(cell mapping.CellValue, european bool) (decimal.Decimal, string, error) {
	var (
		amount   decimal.Decimal
		currency string
		err      error
	)
	if cell.Kind == mapping.CellNumber {
		amount = decimal.NewFromFloat(cell.Num)
	} else {
		amount, currency, err = normalizer.ParseRevenue(cell.Str, european)
		if err != nil {
			return decimal.Zero, "", err
		}
	}
	if amount.IsNegative() {
		return decimal.Zero, "", fmt.Errorf("%w: %s", ErrNegativeRevenue, amount.String())
	}
	return amount, currency, nil
}

// duplicateKey identifies a line and names the field a repeat is reported
// on. With an order id, one product per order is expected; otherwise the
// whole canonical tuple must repeat.
func duplicateKey(rec *mapping.TransformedRecord, p *plan) (string, mapping.CanonicalField) {
	product := strings.ToLower(rec.Product)
	if _, ok := p.columns[mapping.FieldOrderID]; ok && rec.OrderID != "" {
		return "order\x00" + strings.ToLower(rec.OrderID) + "\x00" + product, mapping.FieldOrderID
	}
	revenue := ""
	if rec.Revenue != nil {
		revenue = rec.Revenue.String()
	}
	return strings.Join([]string{
		"row",
		strings.ToLower(rec.Account),
		product,
		fmt.Sprint(rec.Quantity),
		rec.DateISO,
		rec.Period,
		revenue,
	}, "\x00"), mapping.FieldProduct
}
