package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "openai/gpt-4o-mini"
)

// Config configures the HTTP adapter.
type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	HTTPClient   *http.Client
	MaxRetries   int
	RetryBackoff time.Duration
}

// HTTPClient talks to an OpenAI-compatible chat completions endpoint.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewHTTPClient creates the adapter. Timeouts are applied by the caller's context.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: cfg.HTTPClient,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
	}
}

// Classify sends headers and samples and validates the structured answer.
func (c *HTTPClient) Classify(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classification request: %w", err)
	}

	content, err := c.complete(ctx, buildMappingPrompt(), string(payload))
	if err != nil {
		return nil, err
	}
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}
	return ParseResponse(req.Headers, []byte(raw))
}

// ClassifyValues labels values for field. Labels for values that were not
// asked about are dropped.
func (c *HTTPClient) ClassifyValues(ctx context.Context, field mapping.CanonicalField, values []string) (map[string]string, error) {
	payload, err := json.Marshal(map[string]any{"field": field, "values": values})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value request: %w", err)
	}

	content, err := c.complete(ctx, buildValuePrompt(field), string(payload))
	if err != nil {
		return nil, err
	}
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Labels map[string]string `json:"labels"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", mapping.ErrInvalidResponse, err)
	}

	asked := make(map[string]bool, len(values))
	for _, v := range values {
		asked[v] = true
	}
	labels := make(map[string]string, len(wire.Labels))
	for v, label := range wire.Labels {
		if asked[v] && strings.TrimSpace(label) != "" {
			labels[v] = strings.TrimSpace(label)
		}
	}
	return labels, nil
}

func (c *HTTPClient) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", mapping.ErrDetectorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("%w: API returned status %d: %s", mapping.ErrDetectorUnavailable, resp.StatusCode, string(bodyBytes))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("%w: failed to parse API response: %v", mapping.ErrInvalidResponse, err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in API response", mapping.ErrInvalidResponse)
	}
	return chat.Choices[0].Message.Content, nil
}

// retryWithBackoff retries transport errors, 429 and 5xx responses.
func (c *HTTPClient) retryWithBackoff(ctx context.Context, do func() (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, err := do()
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt == c.maxRetries {
				return resp, nil
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func buildMappingPrompt() string {
	fields := make([]string, len(mapping.AllFields))
	for i, f := range mapping.AllFields {
		fields[i] = string(f)
	}
	return `You map the columns of distributor sales (depletion) reports to canonical fields.

Canonical fields: ` + strings.Join(fields, ", ") + `.
account and product are required; date and revenue are often absent.

The user message is JSON with "headers", "sampleRows" and optional "trainingInstructions".
Use the sample values to disambiguate. Map each field to at most one header, copied exactly.
Leave a field out when no header fits.

Return ONLY a JSON object:
{
  "fieldMappings": [{"<field>": "<header>"}],
  "confidencePerField": {"<field>": 0.0-1.0},
  "reasoning": "one or two sentences"
}`
}

func buildValuePrompt(field mapping.CanonicalField) string {
	return fmt.Sprintf(`You label product names from beverage distributor reports with a short %s (for example "Red Wine", "Spirits", "Beer").

The user message is JSON with "values". Return ONLY a JSON object:
{"labels": {"<value copied exactly>": "<%s>"}}
Omit values you cannot label.`, field, field)
}
