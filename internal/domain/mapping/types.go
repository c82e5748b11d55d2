// Package mapping holds the data contracts shared by the column detection,
// row transformation and learning components.
package mapping

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CanonicalField is a semantic target every detector tries to populate.
type CanonicalField string

const (
	FieldDate           CanonicalField = "date"
	FieldAccount        CanonicalField = "account"
	FieldProduct        CanonicalField = "product"
	FieldQuantity       CanonicalField = "quantity"
	FieldRevenue        CanonicalField = "revenue"
	FieldRepresentative CanonicalField = "representative"
	FieldOrderID        CanonicalField = "order_id"
	FieldCategory       CanonicalField = "category"
	FieldRegion         CanonicalField = "region"
	FieldDistributor    CanonicalField = "distributor"
)

// AllFields lists canonical fields in their stable reporting order.
var AllFields = []CanonicalField{
	FieldDate,
	FieldAccount,
	FieldProduct,
	FieldQuantity,
	FieldRevenue,
	FieldRepresentative,
	FieldOrderID,
	FieldCategory,
	FieldRegion,
	FieldDistributor,
}

// RequiredFields must resolve for a detection to succeed.
var RequiredFields = []CanonicalField{FieldAccount, FieldProduct}

// ParseField converts free text into a known canonical field.
func ParseField(s string) (CanonicalField, bool) {
	for _, f := range AllFields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Order returns the position of the field in AllFields, used for deterministic tie-breaks.
func (f CanonicalField) Order() int {
	for i, candidate := range AllFields {
		if candidate == f {
			return i
		}
	}
	return len(AllFields)
}

// IsRequired reports whether the field is always required.
func (f CanonicalField) IsRequired() bool {
	return f == FieldAccount || f == FieldProduct
}

// DetectionMethod carries the provenance of a field mapping.
type DetectionMethod string

const (
	MethodLearned        DetectionMethod = "learned"
	MethodAI             DetectionMethod = "ai"
	MethodSynonym        DetectionMethod = "synonym"
	MethodPattern        DetectionMethod = "pattern"
	MethodValueInference DetectionMethod = "value_inference"
	MethodHybrid         DetectionMethod = "hybrid"
)

// Priority is used by the combiner to break confidence ties. Higher wins.
func (m DetectionMethod) Priority() int {
	switch m {
	case MethodLearned:
		return 5
	case MethodAI:
		return 4
	case MethodSynonym:
		return 3
	case MethodPattern:
		return 2
	case MethodValueInference:
		return 1
	default:
		return 0
	}
}

// FieldMapping is the resolved source column for one canonical field.
type FieldMapping struct {
	SourceColumn string          `json:"source_column"`
	Confidence   float64         `json:"confidence"`
	Method       DetectionMethod `json:"method"`
}

// ColumnMapping maps each canonical field to at most one source column.
type ColumnMapping map[CanonicalField]FieldMapping

// Fields returns the mapped fields in canonical order.
func (m ColumnMapping) Fields() []CanonicalField {
	fields := make([]CanonicalField, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Order() < fields[j].Order() })
	return fields
}

// Column returns the source column for a field, if mapped.
func (m ColumnMapping) Column(f CanonicalField) (string, bool) {
	fm, ok := m[f]
	if !ok || fm.SourceColumn == "" {
		return "", false
	}
	return fm.SourceColumn, true
}

// Clone returns a copy safe for mutation.
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SameColumns reports whether both mappings bind identical columns to identical fields.
func (m ColumnMapping) SameColumns(other ColumnMapping) bool {
	if len(m) != len(other) {
		return false
	}
	for f, fm := range m {
		o, ok := other[f]
		if !ok || o.SourceColumn != fm.SourceColumn {
			return false
		}
	}
	return true
}

// AverageConfidence is the mean confidence over mapped fields.
func (m ColumnMapping) AverageConfidence() float64 {
	if len(m) == 0 {
		return 0
	}
	sum := 0.0
	for _, fm := range m {
		sum += fm.Confidence
	}
	return sum / float64(len(m))
}

// MissingRequired returns required fields without a positive-confidence column.
func (m ColumnMapping) MissingRequired() []CanonicalField {
	var missing []CanonicalField
	for _, f := range RequiredFields {
		fm, ok := m[f]
		if !ok || fm.SourceColumn == "" || fm.Confidence <= 0 {
			missing = append(missing, f)
		}
	}
	return missing
}

// Proposal is a single detector's claim that a column holds a field.
type Proposal struct {
	Field      CanonicalField
	Column     string
	Confidence float64
	Method     DetectionMethod
	// Synonym identifies the synonym entry behind a synonym proposal.
	Synonym *SynonymKey
}

// Scope distinguishes global synonyms from organization-specific ones.
type Scope string

const (
	ScopeGlobal       Scope = "global"
	ScopeOrganization Scope = "organization"
)

// SynonymKey is the unique identity of a FieldSynonym.
type SynonymKey struct {
	Field          CanonicalField `json:"field"`
	Variant        string         `json:"variant"`
	Scope          Scope          `json:"scope"`
	OrganizationID string         `json:"organization_id,omitempty"`
}

// FieldSynonym maps a header variant to a canonical field.
type FieldSynonym struct {
	Field          CanonicalField `json:"field"`
	Variant        string         `json:"variant"`
	Scope          Scope          `json:"scope"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Weight         float64        `json:"weight"`
	UsageCount     int            `json:"usage_count"`
}

// Key returns the synonym identity. Variant must already be normalized.
func (s FieldSynonym) Key() SynonymKey {
	scope := s.Scope
	if scope == "" {
		scope = ScopeGlobal
	}
	return SynonymKey{Field: s.Field, Variant: s.Variant, Scope: scope, OrganizationID: s.OrganizationID}
}

// MappingHistoryRecord is a previously accepted mapping for a source key.
type MappingHistoryRecord struct {
	ID            uuid.UUID     `json:"id"`
	SourceKey     string        `json:"source_key"`
	Mapping       ColumnMapping `json:"mapping"`
	Confidence    float64       `json:"confidence"`
	CreatedAt     time.Time     `json:"created_at"`
	SuccessCount  int           `json:"success_count"`
	LastSuccessAt *time.Time    `json:"last_success_at,omitempty"`
	SupersededAt  *time.Time    `json:"superseded_at,omitempty"`
}

// SampleRow is one row of raw cells aligned to headers.
type SampleRow []CellValue

// RowStatus is the terminal state of a transformed row.
type RowStatus string

const (
	RowPending        RowStatus = "pending"
	RowValid          RowStatus = "valid"
	RowPartiallyValid RowStatus = "partially_valid"
	RowInvalid        RowStatus = "invalid"
)

// TransformedRecord is a canonical output row.
type TransformedRecord struct {
	RowIndex       int              `json:"row_index"`
	Account        string           `json:"account"`
	Product        string           `json:"product"`
	Quantity       int              `json:"quantity"`
	Date           *time.Time       `json:"-"`
	DateISO        string           `json:"date,omitempty"`
	Period         string           `json:"period,omitempty"`
	Revenue        *decimal.Decimal `json:"revenue,omitempty"`
	HasRevenueData bool             `json:"has_revenue_data"`
	Dateless       bool             `json:"dateless"`
	Incomplete     bool             `json:"incomplete"`
	Representative string           `json:"representative,omitempty"`
	OrderID        string           `json:"order_id,omitempty"`
	Category       string           `json:"category,omitempty"`
	Region         string           `json:"region,omitempty"`
	Distributor    string           `json:"distributor,omitempty"`
	Status         RowStatus        `json:"status"`
}

// IssueReason classifies a row validation failure.
type IssueReason string

const (
	ReasonMissingRequired IssueReason = "missing_required"
	ReasonInvalidType     IssueReason = "invalid_type"
	ReasonOutOfRange      IssueReason = "out_of_range"
	ReasonDuplicate       IssueReason = "duplicate"
)

// ValidationIssue describes one problem found on one row.
type ValidationIssue struct {
	RowIndex int            `json:"row_index"`
	Field    CanonicalField `json:"field"`
	Reason   IssueReason    `json:"reason"`
	Detail   string         `json:"detail,omitempty"`
}
