// Package combiner fuses detector proposals into one column mapping.
package combiner

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Input is everything the detectors produced for one extract.
type Input struct {
	Headers []string
	// Learned holds fields from a reusable history record. They are accepted as-is.
	Learned   mapping.ColumnMapping
	Proposals []mapping.Proposal
}

// Result is the fused mapping.
type Result struct {
	Mapping           mapping.ColumnMapping
	OverallConfidence float64
	Method            mapping.DetectionMethod
	Warnings          []string
	Synonyms          []mapping.SynonymKey
}

// Combiner resolves competing proposals. It holds no state between calls.
type Combiner struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Combiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Combiner{logger: logger}
}

// candidate is every proposal for one (field, column) pair folded together.
type candidate struct {
	field      mapping.CanonicalField
	column     string
	columnIdx  int
	confidence float64
	method     mapping.DetectionMethod
	agreeing   int
	synonyms   []mapping.SynonymKey
}

func (c *candidate) add(p mapping.Proposal) {
	c.agreeing++
	if p.Synonym != nil {
		c.synonyms = append(c.synonyms, *p.Synonym)
	}
	if p.Confidence > c.confidence ||
		(p.Confidence == c.confidence && p.Method.Priority() > c.method.Priority()) {
		c.confidence = p.Confidence
		c.method = p.Method
	}
}

// Combine assigns each field and each column at most once. Learned fields go
// first; the rest is greedy by confidence, then detector priority, then
// canonical field order. A missing account or product fails the detection
// with a *mapping.RequiredFieldError.
func (c *Combiner) Combine(in Input) (*Result, error) {
	columnIdx := make(map[string]int, len(in.Headers))
	for i, h := range in.Headers {
		if _, ok := columnIdx[h]; !ok {
			columnIdx[h] = i
		}
	}

	result := mapping.ColumnMapping{}
	usedColumns := map[string]mapping.CanonicalField{}
	for _, f := range in.Learned.Fields() {
		fm := in.Learned[f]
		if _, ok := columnIdx[fm.SourceColumn]; !ok {
			continue
		}
		if _, taken := usedColumns[fm.SourceColumn]; taken {
			continue
		}
		fm.Method = mapping.MethodLearned
		result[f] = fm
		usedColumns[fm.SourceColumn] = f
	}

	candidates := c.collect(in.Proposals, columnIdx)
	var (
		warnings []string
		synonyms []mapping.SynonymKey
		winners  = map[mapping.CanonicalField]*candidate{}
	)
	for _, cand := range candidates {
		if _, done := result[cand.field]; done {
			continue
		}
		if owner, taken := usedColumns[cand.column]; taken {
			if w, ok := winners[owner]; ok && w.confidence == cand.confidence && owner != cand.field {
				warnings = append(warnings, fmt.Sprintf(
					"ambiguous mapping: column %q claimed by %s and %s at confidence %.2f; kept %s",
					cand.column, owner, cand.field, cand.confidence, owner))
				c.logger.Warn("ambiguous column mapping resolved by detector priority",
					"column", cand.column,
					"kept", owner,
					"dropped", cand.field,
					"confidence", cand.confidence,
					"error", mapping.ErrAmbiguousMapping)
			}
			continue
		}

		result[cand.field] = mapping.FieldMapping{
			SourceColumn: cand.column,
			Confidence:   mapping.Clamp01(cand.confidence),
			Method:       cand.method,
		}
		usedColumns[cand.column] = cand.field
		winners[cand.field] = cand
		synonyms = append(synonyms, cand.synonyms...)
	}

	if missing := result.MissingRequired(); len(missing) > 0 {
		return nil, &mapping.RequiredFieldError{
			Missing:  missing,
			Headers:  append([]string(nil), in.Headers...),
			Detected: result,
		}
	}

	return &Result{
		Mapping:           result,
		OverallConfidence: result.AverageConfidence(),
		Method:            MajorityMethod(result),
		Warnings:          warnings,
		Synonyms:          synonyms,
	}, nil
}

func (c *Combiner) collect(proposals []mapping.Proposal, columnIdx map[string]int) []*candidate {
	byKey := map[[2]string]*candidate{}
	var out []*candidate
	for _, p := range proposals {
		idx, ok := columnIdx[p.Column]
		if !ok || p.Confidence <= 0 {
			continue
		}
		key := [2]string{string(p.Field), p.Column}
		cand, ok := byKey[key]
		if !ok {
			cand = &candidate{field: p.Field, column: p.Column, columnIdx: idx}
			byKey[key] = cand
			out = append(out, cand)
		}
		cand.add(p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if pa, pb := a.method.Priority(), b.method.Priority(); pa != pb {
			return pa > pb
		}
		if a.agreeing != b.agreeing {
			return a.agreeing > b.agreeing
		}
		if oa, ob := a.field.Order(), b.field.Order(); oa != ob {
			return oa < ob
		}
		return a.columnIdx < b.columnIdx
	})
	return out
}

// MajorityMethod returns the method behind more than half of the fields, or
// MethodHybrid when no method has a strict majority.
func MajorityMethod(m mapping.ColumnMapping) mapping.DetectionMethod {
	if len(m) == 0 {
		return mapping.MethodHybrid
	}
	counts := map[mapping.DetectionMethod]int{}
	for _, fm := range m {
		counts[fm.Method]++
	}
	for method, n := range counts {
		if n*2 > len(m) {
			return method
		}
	}
	return mapping.MethodHybrid
}
