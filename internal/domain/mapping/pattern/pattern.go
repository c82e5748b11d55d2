// Package pattern maps headers to canonical fields with ordered regular
// expressions. It never consults stored state or external services.
package pattern

import (
	"regexp"
	"sort"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/normalizer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Rule maps headers matching Expr to Field with a fixed confidence.
type Rule struct {
	Expr       *regexp.Regexp
	Field      mapping.CanonicalField
	Priority   int
	Confidence float64
}

// DefaultRules are evaluated against normalized headers. Specific rules
// carry a higher priority than the bare keywords they overlap with.
func DefaultRules() []Rule {
	return []Rule{
		{regexp.MustCompile(`(?i)invoice[_ ]?(no|num|number|#)`), mapping.FieldOrderID, 100, 0.75},
		{regexp.MustCompile(`(?i)(invoice|inv|order|ship|sale|transaction)[_ ]?date`), mapping.FieldDate, 95, 0.75},
		{regexp.MustCompile(`(?i)(ext(ended)?|total|net)[_ ]?(price|amount|sales|\$)`), mapping.FieldRevenue, 90, 0.75},
		{regexp.MustCompile(`(?i)ship[_ -]?to|sold[_ -]?to|bill[_ -]?to`), mapping.FieldAccount, 85, 0.7},
		{regexp.MustCompile(`(?i)order[_ ]?(id|no|num|number|#)|\bpo\b`), mapping.FieldOrderID, 80, 0.7},
		{regexp.MustCompile(`(?i)\b(sales[_ ]?)?rep(resentative)?s?\b|salesperson|\bbroker\b`), mapping.FieldRepresentative, 75, 0.7},
		{regexp.MustCompile(`(?i)\b(qty|quantity|cases?|units?|bottles?|cs|btl)\b`), mapping.FieldQuantity, 70, 0.7},
		{regexp.MustCompile(`(?i)\b(sku|upc|item|product|brand)\b`), mapping.FieldProduct, 65, 0.7},
		{regexp.MustCompile(`(?i)\b(customer|account|acct|retailer|outlet|store|premise)\b`), mapping.FieldAccount, 60, 0.7},
		{regexp.MustCompile(`(?i)\b(region|territory|state|market|zone)\b`), mapping.FieldRegion, 57, 0.65},
		{regexp.MustCompile(`(?i)\b(revenue|sales|amount|dollars|value)\b`), mapping.FieldRevenue, 55, 0.65},
		{regexp.MustCompile(`(?i)\b(category|class|varietal|segment)\b`), mapping.FieldCategory, 45, 0.65},
		{regexp.MustCompile(`(?i)\b(distributor|wholesaler|supplier|warehouse)\b`), mapping.FieldDistributor, 40, 0.65},
		{regexp.MustCompile(`(?i)\b(date|period|month|dt)\b`), mapping.FieldDate, 10, 0.6},
	}
}

// Matcher applies rules in descending priority; the first match wins per header.
type Matcher struct {
	rules []Rule
}

// NewMatcher creates a matcher. Nil rules select DefaultRules.
func NewMatcher(rules []Rule) *Matcher {
	if rules == nil {
		rules = DefaultRules()
	}
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
	return &Matcher{rules: sorted}
}

// Match proposes at most one field per header.
func (m *Matcher) Match(headers []string) []mapping.Proposal {
	var proposals []mapping.Proposal
	for _, header := range headers {
		if p, ok := m.MatchHeader(header); ok {
			proposals = append(proposals, p)
		}
	}
	return proposals
}

// MatchHeader returns the first rule that matches header.
func (m *Matcher) MatchHeader(header string) (mapping.Proposal, bool) {
	normalized := normalizer.NormalizeHeader(header)
	if normalized == "" {
		return mapping.Proposal{}, false
	}
	for _, r := range m.rules {
		if r.Expr.MatchString(normalized) {
			return mapping.Proposal{
				Field:      r.Field,
				Column:     header,
				Confidence: r.Confidence,
				Method:     mapping.MethodPattern,
			}, true
		}
	}
	return mapping.Proposal{}, false
}
