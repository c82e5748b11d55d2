package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Transform applies a mapping to rows and, when a category classifier is
// configured and no category column is mapped, labels products with a category.
func (e *Engine) Transform(ctx context.Context, in mapping.TransformInput) (*mapping.TransformResult, error) {
	ctx, span := tracer.Start(ctx, "mapping.Transform", trace.WithAttributes(attribute.Int("rows", len(in.Rows))))
	defer span.End()

	res, err := e.transformer.Transform(in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if _, mapped := in.Mapping.Column(mapping.FieldCategory); !mapped && e.categories != nil {
		e.enrichCategories(ctx, res)
	}

	span.SetAttributes(
		attribute.Int("valid", res.ValidCount),
		attribute.Int("partial", res.PartialCount),
		attribute.Int("invalid", res.InvalidCount),
		attribute.Float64("success_rate", res.SuccessRate),
	)
	e.metrics.ObserveRows(res.ValidCount, res.PartialCount, res.InvalidCount)
	return res, nil
}

func (e *Engine) enrichCategories(ctx context.Context, res *mapping.TransformResult) {
	products := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		if rec.Category == "" {
			products = append(products, rec.Product)
		}
	}
	if len(products) == 0 {
		return
	}
	labels := e.categories.Classify(ctx, mapping.FieldCategory, products)
	for i := range res.Records {
		if res.Records[i].Category != "" {
			continue
		}
		if label, ok := labels[strings.TrimSpace(res.Records[i].Product)]; ok {
			res.Records[i].Category = label
		}
	}
}

// Process detects, transforms and learns. When the classifier fast path
// produced a mapping whose rows fall below the acceptance threshold, the
// fused mapping is tried instead. Learning failures are logged and never
// fail the call.
func (e *Engine) Process(ctx context.Context, in ProcessInput) (*ProcessResult, error) {
	ctx, span := tracer.Start(ctx, "mapping.Process")
	defer span.End()

	detectIn := in.DetectionInput
	if len(detectIn.SampleRows) == 0 {
		detectIn.SampleRows = in.Rows
	}
	det, err := e.Detect(ctx, detectIn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	tr, err := e.Transform(ctx, e.transformInput(in, det.Mapping))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := &ProcessResult{Detection: det, Transform: tr}
	if det.Fallback != nil && tr.SuccessRate < e.policy.AcceptanceThreshold {
		fallback, ferr := e.Transform(ctx, e.transformInput(in, det.Fallback.Mapping))
		switch {
		case ferr != nil:
			e.logger.Warn("fallback mapping could not be applied", "source_key", det.SourceKey, "error", ferr)
		case fallback.SuccessRate > tr.SuccessRate:
			e.logger.Warn("classifier mapping failed validation, using fused mapping",
				"source_key", det.SourceKey,
				"classifier_success_rate", tr.SuccessRate,
				"fused_success_rate", fallback.SuccessRate)
			out.Warnings = append(out.Warnings, "classifier fast-path mapping failed row validation; fused mapping used instead")
			out.Detection, out.Transform = det.Fallback, fallback
		}
	}

	outcomeID := in.OutcomeID
	if outcomeID == uuid.Nil {
		outcomeID = uuid.New()
	}
	fb, err := e.feedback.Apply(ctx, mapping.Outcome{
		ID:          outcomeID,
		SourceKey:   out.Detection.SourceKey,
		Mapping:     out.Detection.Mapping,
		Confidence:  out.Detection.OverallConfidence,
		SuccessRate: out.Transform.SuccessRate,
		TotalRows:   out.Transform.TotalRows,
		Synonyms:    out.Detection.Synonyms,
	})
	out.Feedback = fb
	switch {
	case err != nil:
		e.metrics.ObserveFeedback("error")
		e.logger.Warn("learning persistence failed, transform result kept",
			"source_key", out.Detection.SourceKey, "error", err)
		if errors.Is(err, mapping.ErrLearningPersistence) {
			out.Warnings = append(out.Warnings, "mapping could not be saved for reuse")
		}
	case fb.Accepted:
		e.metrics.ObserveFeedback("accepted")
		if len(out.Detection.Synonyms) > 0 {
			if err := e.synonyms.Refresh(ctx); err != nil {
				e.logger.Warn("failed to refresh synonym table", "error", err)
			}
		}
	default:
		e.metrics.ObserveFeedback("rejected")
	}

	span.SetAttributes(
		attribute.String("source_key", out.Detection.SourceKey),
		attribute.Float64("success_rate", out.Transform.SuccessRate),
	)
	return out, nil
}

func (e *Engine) transformInput(in ProcessInput, m mapping.ColumnMapping) mapping.TransformInput {
	return mapping.TransformInput{
		Headers:        in.Headers,
		Rows:           in.Rows,
		Mapping:        m,
		DefaultPeriod:  in.DefaultPeriod,
		EuropeanFormat: in.EuropeanFormat,
	}
}
