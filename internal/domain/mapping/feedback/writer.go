// Package feedback closes the learning loop: accepted outcomes update the
// mapping history and the usage counters of the synonyms that produced them.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/learned"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/synonym"
)

// ErrNoSourceKey is returned for outcomes that cannot be attributed to a source.
var ErrNoSourceKey = errors.New("outcome has no source key")

// Result reports what an outcome changed.
type Result struct {
	OutcomeID uuid.UUID `json:"outcome_id"`
	Accepted  bool      `json:"accepted"`
	// Record is the active history record after the write.
	Record *mapping.MappingHistoryRecord `json:"record,omitempty"`
}

// Writer applies transform outcomes to the learning stores.
type Writer struct {
	history  learned.Store
	synonyms synonym.Store
	policy   mapping.Policy
	logger   *slog.Logger
}

// NewWriter creates a writer. A nil synonym store skips usage counting.
func NewWriter(history learned.Store, synonyms synonym.Store, policy mapping.Policy, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		history:  history,
		synonyms: synonyms,
		policy:   policy.WithDefaults(),
		logger:   logger,
	}
}

// Apply persists an outcome whose success rate reaches the acceptance
// threshold. Rejected outcomes only leave a log line. Store failures are
// wrapped in mapping.ErrLearningPersistence; the history write and the
// synonym write are attempted independently.
func (w *Writer) Apply(ctx context.Context, outcome mapping.Outcome) (*Result, error) {
	if outcome.SourceKey == "" {
		return nil, ErrNoSourceKey
	}
	if outcome.ID == uuid.Nil {
		outcome.ID = uuid.New()
	}
	res := &Result{OutcomeID: outcome.ID}

	if outcome.SuccessRate < w.policy.AcceptanceThreshold {
		w.RecordFailure(outcome)
		return res, nil
	}
	res.Accepted = true

	var errs []error
	rec, err := w.history.RecordSuccess(ctx, outcome.ID, outcome.SourceKey, outcome.Mapping, outcome.Confidence, w.policy.LearnedReuseBoost)
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: history for %s: %v", mapping.ErrLearningPersistence, outcome.SourceKey, err))
	} else {
		res.Record = rec
	}

	if w.synonyms != nil && len(outcome.Synonyms) > 0 {
		if err := w.synonyms.RecordUsage(ctx, outcome.ID, outcome.Synonyms, w.policy.SynonymUsageBoost); err != nil {
			errs = append(errs, fmt.Errorf("%w: synonym usage: %v", mapping.ErrLearningPersistence, err))
		}
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}

	attrs := []any{
		"outcome_id", outcome.ID,
		"source_key", outcome.SourceKey,
		"success_rate", outcome.SuccessRate,
		"synonyms", len(outcome.Synonyms),
	}
	if rec != nil {
		attrs = append(attrs, "success_count", rec.SuccessCount, "confidence", rec.Confidence)
	}
	w.logger.Info("mapping outcome learned", attrs...)
	return res, nil
}

// RecordFailure logs an outcome that did not qualify for learning.
func (w *Writer) RecordFailure(outcome mapping.Outcome) {
	w.logger.Info("mapping outcome below acceptance threshold, not learning",
		"outcome_id", outcome.ID,
		"source_key", outcome.SourceKey,
		"success_rate", outcome.SuccessRate,
		"threshold", w.policy.AcceptanceThreshold,
		"total_rows", outcome.TotalRows)
}
