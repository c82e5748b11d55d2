// Package synonym maps header variants to canonical fields. It holds the
// synonym table shared across detections and the matcher built from it.
package synonym

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/normalizer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

const (
	// PartialPenalty scales the weight of a variant found inside a header (or vice versa).
	PartialPenalty = 0.85
	// FuzzyPenalty scales the weight of a typo-tolerant match.
	FuzzyPenalty = 0.7
	// FuzzyThreshold is the minimum similarity score (0-100) for a fuzzy match.
	FuzzyThreshold = 85

	minPartialLen = 3
	minFuzzyLen   = 4
)

type matchTier int

const (
	tierFuzzy matchTier = iota + 1
	tierPartial
	tierExact
)

// Matcher resolves headers against an immutable set of synonyms.
// Exact variants are looked up directly; variants contained in a header are
// found in a single Aho-Corasick pass.
type Matcher struct {
	exact    map[string][]mapping.FieldSynonym
	patterns []string
	metadata [][]mapping.FieldSynonym // synonyms sharing each pattern
	ac       *ahocorasick.Matcher
}

type candidate struct {
	syn        mapping.FieldSynonym
	confidence float64
	tier       matchTier
	score      int
}

// NewMatcher builds a matcher. Variants are normalized; entries with an
// empty variant or an unknown field are ignored.
func NewMatcher(entries []mapping.FieldSynonym) *Matcher {
	m := &Matcher{exact: make(map[string][]mapping.FieldSynonym)}
	patternToIndex := make(map[string]int)

	for _, e := range entries {
		e.Variant = normalizer.NormalizeHeader(e.Variant)
		if e.Variant == "" {
			continue
		}
		if _, ok := mapping.ParseField(string(e.Field)); !ok {
			continue
		}
		if e.Scope == "" {
			e.Scope = mapping.ScopeGlobal
		}
		e.Weight = mapping.Clamp01(e.Weight)
		m.exact[e.Variant] = append(m.exact[e.Variant], e)

		if len(e.Variant) < minPartialLen {
			continue
		}
		if idx, exists := patternToIndex[e.Variant]; exists {
			m.metadata[idx] = append(m.metadata[idx], e)
		} else {
			patternToIndex[e.Variant] = len(m.patterns)
			m.patterns = append(m.patterns, e.Variant)
			m.metadata = append(m.metadata, []mapping.FieldSynonym{e})
		}
	}

	if len(m.patterns) > 0 {
		bytePatterns := make([][]byte, len(m.patterns))
		for i, p := range m.patterns {
			bytePatterns[i] = []byte(p)
		}
		m.ac = ahocorasick.NewMatcher(bytePatterns)
	}
	return m
}

// Size returns the number of distinct variants.
func (m *Matcher) Size() int {
	return len(m.exact)
}

// Match returns at most one proposal per header: the best exact match,
// otherwise the best partial match, otherwise the best fuzzy match.
func (m *Matcher) Match(headers []string) []mapping.Proposal {
	var proposals []mapping.Proposal
	for _, header := range headers {
		if p, ok := m.MatchHeader(header); ok {
			proposals = append(proposals, p)
		}
	}
	return proposals
}

// MatchHeader resolves a single header.
func (m *Matcher) MatchHeader(header string) (mapping.Proposal, bool) {
	normalized := normalizer.NormalizeHeader(header)
	if normalized == "" {
		return mapping.Proposal{}, false
	}

	best, ok := m.bestExact(normalized)
	if !ok {
		best, ok = m.bestPartial(normalized)
	}
	if !ok {
		best, ok = m.bestFuzzy(normalized)
	}
	if !ok || best.confidence <= 0 {
		return mapping.Proposal{}, false
	}

	key := best.syn.Key()
	return mapping.Proposal{
		Field:      best.syn.Field,
		Column:     header,
		Confidence: best.confidence,
		Method:     mapping.MethodSynonym,
		Synonym:    &key,
	}, true
}

func (m *Matcher) bestExact(header string) (candidate, bool) {
	var cands []candidate
	for _, syn := range m.exact[header] {
		cands = append(cands, candidate{syn: syn, confidence: syn.Weight, tier: tierExact, score: 100})
	}
	return pick(cands)
}

func (m *Matcher) bestPartial(header string) (candidate, bool) {
	var cands []candidate

	// Variants contained in the header.
	if m.ac != nil {
		for _, idx := range m.ac.Match([]byte(header)) {
			if idx < 0 || idx >= len(m.patterns) || !containsWord(header, m.patterns[idx]) {
				continue
			}
			for _, syn := range m.metadata[idx] {
				cands = append(cands, candidate{
					syn:        syn,
					confidence: syn.Weight * PartialPenalty,
					tier:       tierPartial,
					score:      len(syn.Variant),
				})
			}
		}
	}

	// Headers contained in a longer variant ("ship" in "ship to name").
	if len(header) >= minPartialLen {
		for i, pattern := range m.patterns {
			if len(pattern) <= len(header) || !containsWord(pattern, header) {
				continue
			}
			for _, syn := range m.metadata[i] {
				cands = append(cands, candidate{
					syn:        syn,
					confidence: syn.Weight * PartialPenalty,
					tier:       tierPartial,
					score:      len(header),
				})
			}
		}
	}
	return pick(cands)
}

func (m *Matcher) bestFuzzy(header string) (candidate, bool) {
	if len(header) < minFuzzyLen {
		return candidate{}, false
	}
	var cands []candidate
	for i, pattern := range m.patterns {
		if len(pattern) < minFuzzyLen {
			continue
		}
		score := similarity(header, pattern)
		if score < FuzzyThreshold {
			continue
		}
		for _, syn := range m.metadata[i] {
			cands = append(cands, candidate{
				syn:        syn,
				confidence: syn.Weight * FuzzyPenalty,
				tier:       tierFuzzy,
				score:      score,
			})
		}
	}
	return pick(cands)
}

// pick orders by confidence, then match score, then canonical field order.
func pick(cands []candidate) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.syn.Field.Order() < b.syn.Field.Order()
	})
	return cands[0], true
}

// containsWord reports whether word occurs in text on word boundaries.
// A trailing plural "s" in text is tolerated.
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for start := 0; start < len(text); {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		before := idx == 0 || !isWordByte(text[idx-1])
		after := end == len(text) || !isWordByte(text[end]) ||
			(text[end] == 's' && (end+1 == len(text) || !isWordByte(text[end+1])))
		if before && after {
			return true
		}
		start = idx + 1
	}
	return false
}

func isWordByte(b byte) bool {
	r := rune(b)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
