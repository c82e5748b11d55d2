// Package valueinfer infers a column's field from the shape of its sample
// values. It only resolves date, revenue and quantity columns; text columns
// are never assigned account or product.
package valueinfer

import (
	"math"
	"regexp"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/normalizer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

const (
	// MatchRatio is the share of non-null samples that must fit a shape.
	MatchRatio = 0.7

	DateConfidence     = 0.7
	RevenueConfidence  = 0.7
	QuantityConfidence = 0.6
)

// Whole numbers fit both quantities and round-dollar revenue; the header decides.
var (
	revenueHeader  = regexp.MustCompile(`(?i)\b(price|amount|amt|revenue|sales|total|value|cost|extended|gross|net|dollars?)\b|[$€£]`)
	quantityHeader = regexp.MustCompile(`(?i)\b(qty|quantity|cases|cs|units|bottles|count|pcs|pieces|volume)\b`)
)

// Analyzer proposes fields from sample values.
type Analyzer struct {
	quantityMax int
	sampleLimit int
}

// NewAnalyzer creates an analyzer bounded by the policy's quantity range and sample size.
func NewAnalyzer(policy mapping.Policy) *Analyzer {
	policy = policy.WithDefaults()
	return &Analyzer{quantityMax: policy.QuantityMax, sampleLimit: policy.SampleRowLimit}
}

// Candidates returns the indices of columns with no header proposal at or
// above lowConfidence.
func Candidates(headers []string, proposals []mapping.Proposal, lowConfidence float64) []int {
	best := make(map[string]float64, len(proposals))
	for _, p := range proposals {
		if p.Confidence > best[p.Column] {
			best[p.Column] = p.Confidence
		}
	}
	var out []int
	for i, h := range headers {
		if best[h] < lowConfidence {
			out = append(out, i)
		}
	}
	return out
}

// Analyze inspects the given columns; the first matching heuristic wins per column.
func (a *Analyzer) Analyze(headers []string, rows []mapping.SampleRow, columns []int) []mapping.Proposal {
	if len(rows) > a.sampleLimit {
		rows = rows[:a.sampleLimit]
	}

	var proposals []mapping.Proposal
	for _, idx := range columns {
		if idx < 0 || idx >= len(headers) {
			continue
		}
		field, confidence, ok := a.classify(headers[idx], mapping.ColumnValues(rows, idx))
		if !ok {
			continue
		}
		proposals = append(proposals, mapping.Proposal{
			Field:      field,
			Column:     headers[idx],
			Confidence: confidence,
			Method:     mapping.MethodValueInference,
		})
	}
	return proposals
}

func (a *Analyzer) classify(header string, values []mapping.CellValue) (mapping.CanonicalField, float64, bool) {
	var dates, currency, quantities, total int
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		total++
		if isDate(v) {
			dates++
		}
		if isCurrency(v) {
			currency++
		}
		if a.isQuantity(v) {
			quantities++
		}
	}
	if total == 0 {
		return "", 0, false
	}

	switch n := float64(total); {
	case float64(dates)/n >= MatchRatio:
		return mapping.FieldDate, DateConfidence, true
	case float64(currency)/n >= MatchRatio:
		return mapping.FieldRevenue, RevenueConfidence, true
	case float64(quantities)/n >= MatchRatio:
		if revenueHeader.MatchString(header) && !quantityHeader.MatchString(header) {
			return mapping.FieldRevenue, RevenueConfidence, true
		}
		return mapping.FieldQuantity, QuantityConfidence, true
	}
	return "", 0, false
}

func isDate(v mapping.CellValue) bool {
	if v.Kind == mapping.CellNumber {
		if v.Num != math.Trunc(v.Num) {
			return false
		}
		_, ok := normalizer.FromExcelSerial(v.Num)
		return ok
	}
	return normalizer.LooksLikeDate(v.Str)
}

func isCurrency(v mapping.CellValue) bool {
	if v.Kind == mapping.CellNumber {
		return v.Num >= 0 && v.Num != math.Trunc(v.Num)
	}
	return normalizer.LooksLikeCurrency(v.Str)
}

func (a *Analyzer) isQuantity(v mapping.CellValue) bool {
	var (
		q   int
		err error
	)
	if v.Kind == mapping.CellNumber {
		q, err = normalizer.QuantityFromNumber(v.Num)
	} else if q, err = normalizer.ParseQuantity(v.Str, false); err != nil {
		// The dialect is unknown before the mapping exists; "1.200" may be grouped.
		q, err = normalizer.ParseQuantity(v.Str, true)
	}
	return err == nil && q >= 0 && q <= a.quantityMax
}
