package classifier

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// BatchValueClassifier sends values in fixed-size batches, waiting on a
// limiter between batches so the external service's rate limit holds.
type BatchValueClassifier struct {
	inner     ValueClassifier
	batchSize int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewBatchValueClassifier creates a batcher that issues at most one batch per delay.
func NewBatchValueClassifier(inner ValueClassifier, batchSize int, delay time.Duration, logger *slog.Logger) *BatchValueClassifier {
	if batchSize <= 0 {
		batchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &BatchValueClassifier{
		inner:     inner,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// Classify labels the distinct non-blank values. Failed batches are logged and
// skipped; the labels gathered so far are returned when ctx ends.
func (b *BatchValueClassifier) Classify(ctx context.Context, field mapping.CanonicalField, values []string) map[string]string {
	labels := make(map[string]string)
	if b == nil || b.inner == nil {
		return labels
	}

	seen := make(map[string]bool, len(values))
	distinct := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		distinct = append(distinct, v)
	}

	for start := 0; start < len(distinct); start += b.batchSize {
		end := min(start+b.batchSize, len(distinct))
		if err := b.limiter.Wait(ctx); err != nil {
			b.logger.Warn("value classification stopped", "error", err, "labelled", len(labels))
			return labels
		}

		batch, err := b.inner.ClassifyValues(ctx, field, distinct[start:end])
		if err != nil {
			b.logger.Warn("value classification batch failed",
				"field", field, "batch_start", start, "batch_size", end-start, "error", err)
			continue
		}
		for v, label := range batch {
			labels[v] = label
		}
	}
	return labels
}
