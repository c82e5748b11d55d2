package mapping

import (
	"github.com/google/uuid"
)

// DetectionInput is what callers hand to the detection pipeline.
type DetectionInput struct {
	Headers    []string    `json:"headers"`
	SampleRows []SampleRow `json:"sample_rows"`
	// SourceKey identifies a recurring file shape. Derived from the headers when empty.
	SourceKey string `json:"source_key,omitempty"`
	// DistributorID scopes the derived source key.
	DistributorID     string         `json:"distributor_id,omitempty"`
	OrganizationID    string         `json:"organization_id,omitempty"`
	OrganizationHints []FieldSynonym `json:"organization_hints,omitempty"`
}

// DetectionResult is the outcome of a successful detection.
type DetectionResult struct {
	SourceKey         string          `json:"source_key"`
	Mapping           ColumnMapping   `json:"mapping"`
	OverallConfidence float64         `json:"overall_confidence"`
	Method            DetectionMethod `json:"method"`
	Warnings          []string        `json:"warnings"`
	// Fallback is the fused mapping kept when the AI fast path was taken.
	Fallback *DetectionResult `json:"fallback,omitempty"`
	// Synonyms lists the synonym entries that back the accepted mapping.
	Synonyms []SynonymKey `json:"-"`
}

// TransformInput is what callers hand to the row transformer.
type TransformInput struct {
	Headers       []string      `json:"headers"`
	Rows          []SampleRow   `json:"rows"`
	Mapping       ColumnMapping `json:"mapping"`
	DefaultPeriod string        `json:"default_period,omitempty"`
	// EuropeanFormat forces the decimal dialect; nil detects it from the rows.
	EuropeanFormat *bool `json:"european_format,omitempty"`
}

// TransformResult is the aggregate output of a transform.
type TransformResult struct {
	Records        []TransformedRecord `json:"records"`
	Issues         []ValidationIssue   `json:"issues"`
	TotalRows      int                 `json:"total_rows"`
	ValidCount     int                 `json:"valid_count"`
	PartialCount   int                 `json:"partial_count"`
	InvalidCount   int                 `json:"invalid_count"`
	SuccessRate    float64             `json:"success_rate"`
	RevenueTotals  map[string]string   `json:"revenue_totals,omitempty"`
	CurrencyHint   string              `json:"currency_hint,omitempty"`
	EuropeanFormat bool                `json:"european_format"`
}

// Outcome summarizes a completed transform for the feedback writer.
type Outcome struct {
	ID          uuid.UUID
	SourceKey   string
	Mapping     ColumnMapping
	Confidence  float64
	SuccessRate float64
	TotalRows   int
	Synonyms    []SynonymKey
}
