package insights

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ga4revenue/internal/apperr"
	"ga4revenue/internal/attribution"
)

var sampleData = attribution.StructuredData{
	StartDate: "2026-02-01",
	EndDate:   "2026-03-01",
	Channels: []attribution.ChannelSummary{
		{Source: "google", Medium: "organic", Channel: attribution.ChannelOrganic, Visitors: 100, Revenue: 500, Transactions: 10, Purchasers: 10},
	},
	Totals: attribution.Totals{Visitors: 100, Revenue: 500, Transactions: 10, Purchasers: 10},
}

func completionBody(t *testing.T, content string) string {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
	return string(body)
}

func TestAnalyzeSendsChatRequest(t *testing.T) {
	var captured chatRequest
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(completionBody(t, validContent)))
	}))
	defer srv.Close()

	client := NewClient("sk-test", "gpt-4", WithEndpoint(srv.URL))
	report, err := client.Analyze(context.Background(), sampleData, 30)
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", authHeader)
	assert.Equal(t, "gpt-4", captured.Model)
	assert.Equal(t, 0.7, captured.Temperature)
	assert.Equal(t, 2000, captured.MaxTokens)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Contains(t, captured.Messages[1].Content, "last 30 days")
	assert.Contains(t, captured.Messages[1].Content, `"source":"google"`)
	assert.Contains(t, captured.Messages[1].Content, "overall_score")

	assert.Equal(t, Score(72), report.OverallScore)
	assert.Equal(t, "gpt-4", report.Model)
	assert.Equal(t, 30, report.WindowDays)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestAnalyzeDefaultsModel(t *testing.T) {
	client := NewClient("sk-test", " ")
	assert.Equal(t, DefaultModel, client.model)
}

func TestAnalyzeUnconfigured(t *testing.T) {
	client := NewClient("  ", "")

	_, err := client.Analyze(context.Background(), sampleData, 30)

	require.Error(t, err)
	assert.Equal(t, apperr.AIUnconfigured, apperr.KindOf(err))
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   func(t *testing.T) string
		kind   apperr.Kind
		msg    string
	}{
		{
			name:   "provider error object",
			status: http.StatusUnauthorized,
			body: func(t *testing.T) string {
				return `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`
			},
			kind: apperr.AIProviderError,
			msg:  "Incorrect API key provided",
		},
		{
			name:   "provider html error",
			status: http.StatusBadGateway,
			body:   func(t *testing.T) string { return "<html>bad gateway</html>" },
			kind:   apperr.AIProviderError,
			msg:    "502",
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   func(t *testing.T) string { return `{"choices":[]}` },
			kind:   apperr.AIParseError,
			msg:    "no choices",
		},
		{
			name:   "content not json",
			status: http.StatusOK,
			body:   func(t *testing.T) string { return completionBody(t, "Sure! Here is my analysis.") },
			kind:   apperr.AIParseError,
			msg:    "Failed to parse AI response",
		},
		{
			name:   "content missing fields",
			status: http.StatusOK,
			body:   func(t *testing.T) string { return completionBody(t, `{"overall_score":50,"summary":"ok"}`) },
			kind:   apperr.AIParseError,
			msg:    "key_metrics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body(t)
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			client := NewClient("sk-test", "", WithEndpoint(srv.URL))
			_, err := client.Analyze(context.Background(), sampleData, 7)

			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.msg)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "failures are not retried")
		})
	}
}

func TestAnalyzeRequestError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient("sk-test", "", WithEndpoint(url))
	_, err := client.Analyze(context.Background(), sampleData, 7)

	require.Error(t, err)
	assert.Equal(t, apperr.AIRequestError, apperr.KindOf(err))
}

func TestAnalyzeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient("sk-test", "", WithEndpoint(srv.URL), WithTimeout(50*time.Millisecond))
	_, err := client.Analyze(context.Background(), sampleData, 7)

	require.Error(t, err)
	assert.Equal(t, apperr.AIRequestError, apperr.KindOf(err))
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(sampleData, 14)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "Analyze the following Google Analytics revenue attribution data for the last 14 days"))
	assert.Contains(t, prompt, "REVENUE DATA:\n{")
	assert.Contains(t, prompt, `"warnings": [`)
	assert.Contains(t, prompt, "6. Seasonal or trend-based insights")
	assert.NotContains(t, prompt, "purchasers equal transactions")

	basic := sampleData
	basic.BasicMetrics = true
	prompt, err = BuildPrompt(basic, 14)
	require.NoError(t, err)
	assert.Contains(t, prompt, "purchasers equal transactions")
}

func TestIsSupportedModel(t *testing.T) {
	assert.True(t, IsSupportedModel("gpt-4"))
	assert.False(t, IsSupportedModel("my-finetune"))
}
