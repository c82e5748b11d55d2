// Package classifier adapts an external text-classification service to the
// detection pipeline. The service is unreliable by contract: every call is
// bounded and its failures degrade to "no result".
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Request is what the classifier is asked.
type Request struct {
	Headers              []string            `json:"headers"`
	SampleRows           []mapping.SampleRow `json:"sampleRows"`
	TrainingInstructions string              `json:"trainingInstructions,omitempty"`
}

// Response is a validated classifier answer.
type Response struct {
	Mapping mapping.ColumnMapping
	// Confidence is the mean of the per-field confidences.
	Confidence float64
	Reasoning  string
}

// Classifier maps headers to canonical fields.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Response, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, req Request) (*Response, error)

func (f Func) Classify(ctx context.Context, req Request) (*Response, error) { return f(ctx, req) }

// ValueClassifier labels free-text values, e.g. product names with a category.
type ValueClassifier interface {
	ClassifyValues(ctx context.Context, field mapping.CanonicalField, values []string) (map[string]string, error)
}

// wireResponse is the response contract of the external service.
type wireResponse struct {
	FieldMappings      []map[string]string `json:"fieldMappings"`
	ConfidencePerField map[string]float64  `json:"confidencePerField"`
	Reasoning          string              `json:"reasoning"`
}

// ParseResponse validates a raw answer against the response contract. Any
// deviation (unknown field or column, missing or out-of-range confidence,
// a field mapped twice) is reported as mapping.ErrInvalidResponse.
func ParseResponse(headers []string, raw []byte) (*Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", mapping.ErrInvalidResponse, err)
	}
	if wire.FieldMappings == nil || wire.ConfidencePerField == nil {
		return nil, fmt.Errorf("%w: missing fieldMappings or confidencePerField", mapping.ErrInvalidResponse)
	}

	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}

	result := mapping.ColumnMapping{}
	for _, entry := range wire.FieldMappings {
		for name, column := range entry {
			field, ok := mapping.ParseField(strings.TrimSpace(name))
			if !ok {
				return nil, fmt.Errorf("%w: unknown field %q", mapping.ErrInvalidResponse, name)
			}
			if !known[column] {
				return nil, fmt.Errorf("%w: unknown column %q for %s", mapping.ErrInvalidResponse, column, field)
			}
			if _, dup := result[field]; dup {
				return nil, fmt.Errorf("%w: field %s mapped twice", mapping.ErrInvalidResponse, field)
			}
			confidence, ok := wire.ConfidencePerField[name]
			if !ok {
				return nil, fmt.Errorf("%w: no confidence for %s", mapping.ErrInvalidResponse, field)
			}
			if confidence < 0 || confidence > 1 {
				return nil, fmt.Errorf("%w: confidence %v for %s out of range", mapping.ErrInvalidResponse, confidence, field)
			}
			result[field] = mapping.FieldMapping{SourceColumn: column, Confidence: confidence, Method: mapping.MethodAI}
		}
	}

	return &Response{
		Mapping:    result,
		Confidence: result.AverageConfidence(),
		Reasoning:  wire.Reasoning,
	}, nil
}

// Proposals flattens a response into per-field proposals.
func (r *Response) Proposals() []mapping.Proposal {
	if r == nil {
		return nil
	}
	out := make([]mapping.Proposal, 0, len(r.Mapping))
	for _, f := range r.Mapping.Fields() {
		fm := r.Mapping[f]
		out = append(out, mapping.Proposal{Field: f, Column: fm.SourceColumn, Confidence: fm.Confidence, Method: mapping.MethodAI})
	}
	return out
}

// TrainingInstructions renders organization hints for the prompt.
func TrainingInstructions(hints []mapping.FieldSynonym) string {
	if len(hints) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("This organization uses the following column names:\n")
	for _, h := range hints {
		fmt.Fprintf(&b, "- %q means %s\n", h.Variant, h.Field)
	}
	return b.String()
}

// extractJSON strips markdown fences and surrounding prose from a model answer.
func extractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in response", mapping.ErrInvalidResponse)
	}
	return content[start : end+1], nil
}
