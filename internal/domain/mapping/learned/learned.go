// Package learned caches accepted mappings per source key so recurring
// file shapes skip detection once a mapping has proven itself.
package learned

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/normalizer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/sniffer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Store persists mapping history records.
type Store interface {
	// Current returns the active (not superseded) record for sourceKey, or nil.
	Current(ctx context.Context, sourceKey string) (*mapping.MappingHistoryRecord, error)
	// RecordSuccess applies a successful outcome atomically per source key.
	// Reusing the same columns increments the success count and raises the
	// confidence; a different mapping supersedes the active record. Applying
	// the same outcomeID twice is a no-op that returns the active record.
	RecordSuccess(ctx context.Context, outcomeID uuid.UUID, sourceKey string, m mapping.ColumnMapping, confidence, boost float64) (*mapping.MappingHistoryRecord, error)
	// History returns every record for sourceKey, newest first.
	History(ctx context.Context, sourceKey string) ([]mapping.MappingHistoryRecord, error)
}

// SourceKey combines an optional distributor identity with the header fingerprint.
func SourceKey(distributorID string, headers []string) string {
	fp := sniffer.Fingerprint(headers)
	distributorID = strings.TrimSpace(distributorID)
	if distributorID == "" {
		return fp
	}
	return distributorID + ":" + fp
}

// Reusable returns the record's mapping rebound to the actual header text when
// the record is confident enough and every mapped column is still present.
func Reusable(rec *mapping.MappingHistoryRecord, headers []string, threshold float64) (mapping.ColumnMapping, bool) {
	out := Fields(rec, headers, threshold)
	if len(out) == 0 || len(out) != len(rec.Mapping) || len(out.MissingRequired()) > 0 {
		return nil, false
	}
	return out, true
}

// Fields returns the subset of the record's mapping whose columns are still
// present, rebound to the actual header text. It returns nil for a superseded
// record or one below threshold.
func Fields(rec *mapping.MappingHistoryRecord, headers []string, threshold float64) mapping.ColumnMapping {
	if rec == nil || rec.SupersededAt != nil || rec.Confidence < threshold || len(rec.Mapping) == 0 {
		return nil
	}

	present := make(map[string]string, len(headers))
	for _, h := range headers {
		present[normalizer.NormalizeHeader(h)] = h
	}

	out := make(mapping.ColumnMapping, len(rec.Mapping))
	for field, fm := range rec.Mapping {
		actual, ok := present[normalizer.NormalizeHeader(fm.SourceColumn)]
		if !ok {
			continue
		}
		out[field] = mapping.FieldMapping{
			SourceColumn: actual,
			Confidence:   rec.Confidence,
			Method:       mapping.MethodLearned,
		}
	}
	return out
}

// NextRecord computes the record state after a successful outcome at ts.
// It returns the updated active record and, when the mapping changed, the superseded one.
func NextRecord(current *mapping.MappingHistoryRecord, sourceKey string, m mapping.ColumnMapping, confidence, boost float64, ts time.Time) (next, superseded *mapping.MappingHistoryRecord) {
	if current != nil && current.Mapping.SameColumns(m) {
		updated := *current
		updated.Mapping = current.Mapping.Clone()
		updated.SuccessCount++
		updated.Confidence = mapping.Clamp01(max(current.Confidence, confidence) + boost)
		updated.LastSuccessAt = &ts
		return &updated, nil
	}

	if current != nil {
		old := *current
		old.SupersededAt = &ts
		superseded = &old
	}
	return &mapping.MappingHistoryRecord{
		ID:            uuid.New(),
		SourceKey:     sourceKey,
		Mapping:       m.Clone(),
		Confidence:    mapping.Clamp01(confidence),
		CreatedAt:     ts,
		SuccessCount:  1,
		LastSuccessAt: &ts,
	}, superseded
}
