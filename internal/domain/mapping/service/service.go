// Package service runs the mapping pipeline: learned lookup, detectors,
// fusion, row transformation and feedback.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/classifier"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/combiner"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/feedback"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/learned"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/pattern"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/synonym"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/transform"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/valueinfer"
	"github.com/FACorreiaa/depletion-mapper/pkg/metrics"
)

var tracer = otel.Tracer("github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/service")

// MappingService is the pipeline entry point used by the CLI.
type MappingService interface {
	Detect(ctx context.Context, in mapping.DetectionInput) (*mapping.DetectionResult, error)
	Transform(ctx context.Context, in mapping.TransformInput) (*mapping.TransformResult, error)
	Process(ctx context.Context, in ProcessInput) (*ProcessResult, error)
}

// ProcessInput is one extract to detect, transform and learn from.
type ProcessInput struct {
	mapping.DetectionInput
	// Rows are all data rows. SampleRows default to the first rows when empty.
	Rows           []mapping.SampleRow
	DefaultPeriod  string
	EuropeanFormat *bool
	// OutcomeID makes a retried Process call idempotent. Zero assigns a new id.
	OutcomeID uuid.UUID
}

// ProcessResult is the combined outcome of a Process call.
type ProcessResult struct {
	Detection *mapping.DetectionResult `json:"detection"`
	Transform *mapping.TransformResult `json:"transform"`
	Feedback  *feedback.Result         `json:"feedback,omitempty"`
	Warnings  []string                 `json:"warnings,omitempty"`
}

// Engine implements MappingService.
type Engine struct {
	policy      mapping.Policy
	synonyms    *synonym.Table
	patterns    *pattern.Matcher
	values      *valueinfer.Analyzer
	history     learned.Store
	ai          *classifier.Guard
	categories  *classifier.BatchValueClassifier
	combiner    *combiner.Combiner
	transformer *transform.Transformer
	feedback    *feedback.Writer
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

var _ MappingService = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithClassifier enables the external classifier behind a guard.
func WithClassifier(g *classifier.Guard) Option {
	return func(e *Engine) { e.ai = g }
}

// WithCategoryClassifier fills missing categories from product names.
func WithCategoryClassifier(b *classifier.BatchValueClassifier) Option {
	return func(e *Engine) { e.categories = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPatternRules replaces the built-in header rules.
func WithPatternRules(rules []pattern.Rule) Option {
	return func(e *Engine) { e.patterns = pattern.NewMatcher(rules) }
}

// WithTransformer replaces the default row transformer.
func WithTransformer(t *transform.Transformer) Option {
	return func(e *Engine) { e.transformer = t }
}

// New wires the pipeline. synonyms must already be refreshed.
func New(policy mapping.Policy, synonyms *synonym.Table, history learned.Store, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	policy = policy.WithDefaults()
	e := &Engine{
		policy:   policy,
		synonyms: synonyms,
		patterns: pattern.NewMatcher(nil),
		values:   valueinfer.NewAnalyzer(policy),
		history:  history,
		combiner: combiner.New(logger),
		feedback: feedback.NewWriter(history, synonyms.Store(), policy, logger),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.transformer == nil {
		e.transformer = transform.New(policy, logger)
	}
	return e
}

// Detect resolves the column mapping for an extract. A confident learned
// mapping for the source key is returned as-is; otherwise every detector
// runs and the combiner fuses their proposals. Only a missing account or
// product fails the call.
func (e *Engine) Detect(ctx context.Context, in mapping.DetectionInput) (*mapping.DetectionResult, error) {
	ctx, span := tracer.Start(ctx, "mapping.Detect", trace.WithAttributes(attribute.Int("headers", len(in.Headers))))
	defer span.End()

	started := time.Now()
	res, err := e.detect(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, mapping.ErrRequiredFieldUnresolved) {
			e.metrics.DetectionFailed()
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.String("source_key", res.SourceKey),
		attribute.String("method", string(res.Method)),
		attribute.Float64("confidence", res.OverallConfidence),
	)
	e.metrics.ObserveDetection(string(res.Method), time.Since(started))
	e.logger.Info("column mapping detected",
		"source_key", res.SourceKey,
		"method", res.Method,
		"confidence", res.OverallConfidence,
		"fields", len(res.Mapping),
		"warnings", len(res.Warnings),
		"duration", time.Since(started))
	return res, nil
}

func (e *Engine) detect(ctx context.Context, in mapping.DetectionInput) (*mapping.DetectionResult, error) {
	if len(in.Headers) == 0 {
		return nil, mapping.ErrNoHeaders
	}
	sourceKey := in.SourceKey
	if sourceKey == "" {
		sourceKey = learned.SourceKey(in.DistributorID, in.Headers)
	}
	samples := in.SampleRows
	if len(samples) > e.policy.SampleRowLimit {
		samples = samples[:e.policy.SampleRowLimit]
	}

	var proposals []mapping.Proposal
	rec, err := e.history.Current(ctx, sourceKey)
	if err != nil {
		e.logger.Warn("learned mapping lookup failed, detecting from scratch",
			"source_key", sourceKey, "error", err)
	}
	if m, ok := learned.Reusable(rec, in.Headers, e.policy.ReuseThreshold); ok {
		return &mapping.DetectionResult{
			SourceKey:         sourceKey,
			Mapping:           m,
			OverallConfidence: rec.Confidence,
			Method:            mapping.MethodLearned,
			Warnings:          []string{},
		}, nil
	}
	// A confident record missing some columns still pins the ones it has.
	pinned := learned.Fields(rec, in.Headers, e.policy.ReuseThreshold)
	if m, ok := learned.Reusable(rec, in.Headers, 0); ok && len(pinned) == 0 {
		// Below the reuse threshold the record is one more opinion.
		for _, f := range m.Fields() {
			proposals = append(proposals, mapping.Proposal{Field: f, Column: m[f].SourceColumn, Confidence: m[f].Confidence, Method: mapping.MethodLearned})
		}
	}

	aiDone := e.classifyAsync(ctx, in, samples)

	proposals = append(proposals, e.synonyms.Match(ctx, in.Headers, in.OrganizationID, in.OrganizationHints)...)
	proposals = append(proposals, e.patterns.Match(in.Headers)...)
	columns := valueinfer.Candidates(in.Headers, proposals, e.policy.LowConfidence)
	proposals = append(proposals, e.values.Analyze(in.Headers, samples, columns)...)

	aiResp := <-aiDone
	proposals = append(proposals, aiResp.Proposals()...)

	fused, err := e.combiner.Combine(combiner.Input{Headers: in.Headers, Learned: pinned, Proposals: proposals})
	if err != nil {
		var reqErr *mapping.RequiredFieldError
		if errors.As(err, &reqErr) {
			e.logger.Warn("required fields unresolved",
				"source_key", sourceKey, "missing", reqErr.Missing, "headers", in.Headers)
		}
		return nil, err
	}

	result := &mapping.DetectionResult{
		SourceKey:         sourceKey,
		Mapping:           fused.Mapping,
		OverallConfidence: fused.OverallConfidence,
		Method:            fused.Method,
		Warnings:          append(fused.Warnings, e.suggestions(in.Headers, fused.Mapping)...),
		Synonyms:          fused.Synonyms,
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}

	if aiResp != nil && aiResp.Confidence >= e.policy.AIFastPath && len(aiResp.Mapping.MissingRequired()) == 0 {
		return fastPath(result, aiResp), nil
	}
	return result, nil
}

// classifyAsync issues the classifier call while the local detectors run.
func (e *Engine) classifyAsync(ctx context.Context, in mapping.DetectionInput, samples []mapping.SampleRow) <-chan *classifier.Response {
	done := make(chan *classifier.Response, 1)
	if !e.ai.Enabled() {
		done <- nil
		return done
	}
	req := classifier.Request{
		Headers:              in.Headers,
		SampleRows:           samples,
		TrainingInstructions: classifier.TrainingInstructions(in.OrganizationHints),
	}
	go func() {
		resp, ok := e.ai.Classify(ctx, req)
		if !ok {
			resp = nil
		}
		done <- resp
	}()
	return done
}

// fastPath accepts the classifier's mapping and keeps the fused one as fallback.
func fastPath(fused *mapping.DetectionResult, ai *classifier.Response) *mapping.DetectionResult {
	var synonyms []mapping.SynonymKey
	for _, key := range fused.Synonyms {
		if ai.Mapping[key.Field].SourceColumn == fused.Mapping[key.Field].SourceColumn {
			synonyms = append(synonyms, key)
		}
	}
	warnings := append([]string{}, fused.Warnings...)
	warnings = append(warnings, fmt.Sprintf("classifier mapping accepted via fast path at confidence %.2f", ai.Confidence))
	return &mapping.DetectionResult{
		SourceKey:         fused.SourceKey,
		Mapping:           ai.Mapping.Clone(),
		OverallConfidence: ai.Confidence,
		Method:            mapping.MethodAI,
		Warnings:          warnings,
		Fallback:          fused,
		Synonyms:          synonyms,
	}
}

// suggestions names the closest field for headers left unmapped.
func (e *Engine) suggestions(headers []string, m mapping.ColumnMapping) []string {
	used := make(map[string]bool, len(m))
	for _, fm := range m {
		used[fm.SourceColumn] = true
	}
	var out []string
	for _, h := range headers {
		if used[h] {
			continue
		}
		s, ok := e.synonyms.Suggest(h)
		if !ok {
			continue
		}
		if _, mapped := m[s.Field]; mapped {
			continue
		}
		out = append(out, fmt.Sprintf("column %q is unmapped; closest field is %s (like %q)", h, s.Field, s.Variant))
	}
	return out
}
