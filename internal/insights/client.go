// Package insights asks an OpenAI-compatible chat completions API for a
// narrative analysis of attribution data and validates the JSON it returns.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ga4revenue/internal/apperr"
	"ga4revenue/internal/attribution"
	"ga4revenue/internal/metrics"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultModel    = "gpt-4-turbo-preview"
	DefaultTimeout  = 30 * time.Second

	temperature = 0.7
	maxTokens   = 2000
)

// SupportedModels are the models offered when configuring a preset. Other
// names are passed through unchanged.
var SupportedModels = []string{"gpt-4-turbo-preview", "gpt-4", "gpt-3.5-turbo"}

// IsSupportedModel reports whether model is one of SupportedModels.
func IsSupportedModel(model string) bool {
	for _, m := range SupportedModels {
		if m == model {
			return true
		}
	}
	return false
}

// Client calls the chat completions API.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithEndpoint overrides the chat completions URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithMetrics records insights calls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates an insights client. An empty model means DefaultModel.
func NewClient(apiKey, model string, opts ...Option) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Analyze requests an insights report for data covering windowDays days.
// Failures are never retried.
func (c *Client) Analyze(ctx context.Context, data attribution.StructuredData, windowDays int) (*Report, error) {
	if c.apiKey == "" {
		return nil, apperr.New(apperr.AIUnconfigured, "AI API key not configured")
	}

	prompt, err := BuildPrompt(data, windowDays)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(metrics.TargetInsights, string(apperr.AIRequestError), time.Since(start))
		return nil, apperr.Wrap(apperr.AIRequestError, "AI API request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveUpstream(metrics.TargetInsights, string(apperr.AIRequestError), time.Since(start))
		return nil, apperr.Wrap(apperr.AIRequestError, "failed to read AI response", err)
	}

	var completion chatResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		if resp.StatusCode != http.StatusOK {
			c.metrics.ObserveUpstream(metrics.TargetInsights, string(apperr.AIProviderError), time.Since(start))
			return nil, apperr.Newf(apperr.AIProviderError, "AI API returned status %d", resp.StatusCode)
		}
		c.metrics.ObserveUpstream(metrics.TargetInsights, string(apperr.AIParseError), time.Since(start))
		return nil, apperr.Wrap(apperr.AIParseError, "Failed to parse AI response", err)
	}

	if completion.Error != nil {
		c.metrics.ObserveUpstream(metrics.TargetInsights, string(apperr.AIProviderError), time.Since(start))
		message := completion.Error.Message
		if message == "" {
			message = fmt.Sprintf("AI API returned status %d", resp.StatusCode)
		}
		return nil, apperr.New(apperr.AIProviderError, message)
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.ObserveUpstream(metrics.TargetInsights, string(apperr.AIProviderError), time.Since(start))
		return nil, apperr.Newf(apperr.AIProviderError, "AI API returned status %d", resp.StatusCode)
	}

	if len(completion.Choices) == 0 {
		c.metrics.ObserveUpstream(metrics.TargetInsights, string(apperr.AIParseError), time.Since(start))
		return nil, apperr.New(apperr.AIParseError, "AI response contained no choices")
	}

	report, err := ParseReport(completion.Choices[0].Message.Content)
	if err != nil {
		c.metrics.ObserveUpstream(metrics.TargetInsights, string(apperr.AIParseError), time.Since(start))
		return nil, apperr.Wrap(apperr.AIParseError, "Failed to parse AI response", err)
	}
	c.metrics.ObserveUpstream(metrics.TargetInsights, "success", time.Since(start))

	report.RunID = uuid.New().String()
	report.Model = c.model
	report.WindowDays = windowDays
	report.GeneratedAt = c.now().UTC()

	log.Debug().
		Str("run_id", report.RunID).
		Str("model", c.model).
		Int("score", int(report.OverallScore)).
		Dur("elapsed", time.Since(start)).
		Msg("Insights analysis completed")

	return report, nil
}
