package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ga4revenue/internal/api"
	"ga4revenue/internal/apperr"
	"ga4revenue/internal/attribution"
	"ga4revenue/internal/config"
	"ga4revenue/internal/insights"
	"ga4revenue/internal/metrics"
	"ga4revenue/internal/service"
)

// stubDashboard records calls and returns canned results.
type stubDashboard struct {
	days       int
	analyzed   attribution.StructuredData
	connection *service.ConnectionResult
	err        error
	panics     bool
	delay      time.Duration
}

func (s *stubDashboard) TestConnection(context.Context) (*service.ConnectionResult, error) {
	return s.connection, s.err
}

func (s *stubDashboard) AttributionReport(ctx context.Context, days int) (*service.AttributionReport, error) {
	s.days = days
	if s.panics {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.NetworkError, "API request failed", ctx.Err())
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	result := attribution.Aggregate(&api.RawReport{PropertyID: "123"})
	return &service.AttributionReport{
		HTML:           "<table></table>",
		StructuredData: result.StructuredData(),
		Result:         result,
	}, nil
}

func (s *stubDashboard) TimeSeries(_ context.Context, days int) (*api.TimeSeries, error) {
	s.days = days
	if s.err != nil {
		return nil, s.err
	}
	return &api.TimeSeries{Labels: []string{"Mar 1"}, Revenue: []float64{10}, Visitors: []int64{2}}, nil
}

func (s *stubDashboard) Analyze(_ context.Context, data attribution.StructuredData, days int) (*service.InsightsResult, error) {
	s.days = days
	s.analyzed = data
	if s.err != nil {
		return nil, s.err
	}
	return &service.InsightsResult{HTML: "<div></div>", Insights: &insights.Report{OverallScore: 80}}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind      string          `json:"kind"`
		Message   string          `json:"message"`
		Details   json.RawMessage `json:"details"`
		RequestID string          `json:"request_id"`
	} `json:"error"`
}

func serve(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func newTestServer(d Dashboard) *Server {
	cfg := config.Default().Server
	return New(d, metrics.New("test"), cfg)
}

func TestHealth(t *testing.T) {
	rec, _ := serve(t, newTestServer(&stubDashboard{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestAttributionEndpoint(t *testing.T) {
	stub := &stubDashboard{}
	rec, env := serve(t, newTestServer(stub), http.MethodGet, "/api/attribution?days=7", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, 7, stub.days)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Contains(t, data, "html")
	assert.Contains(t, data, "chart_data")
	assert.Contains(t, data, "structured_data")
}

func TestAttributionEndpointDefaultsDays(t *testing.T) {
	stub := &stubDashboard{}
	rec, _ := serve(t, newTestServer(stub), http.MethodGet, "/api/attribution", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.DefaultDays, stub.days)
}

func TestAttributionEndpointRejectsBadDays(t *testing.T) {
	rec, env := serve(t, newTestServer(&stubDashboard{}), http.MethodGet, "/api/attribution?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(apperr.InvalidInput), env.Error.Kind)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{apperr.New(apperr.InvalidInput, "days must be between 1 and 365"), http.StatusBadRequest, "invalid_input"},
		{apperr.New(apperr.NotConfigured, "Property ID not configured"), http.StatusPreconditionFailed, "not_configured"},
		{apperr.New(apperr.MissingCredentials, "API credentials not configured"), http.StatusPreconditionFailed, "missing_credentials"},
		{apperr.New(apperr.TokenError, "invalid_grant"), http.StatusBadGateway, "token_error"},
		{apperr.New(apperr.APIError, "quota exceeded"), http.StatusBadGateway, "api_error"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			rec, env := serve(t, newTestServer(&stubDashboard{err: tt.err}), http.MethodGet, "/api/timeseries", "")
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.kind, env.Error.Kind)
			assert.NotEmpty(t, env.Error.RequestID)
		})
	}
}

func TestUnclassifiedErrorHidesMessage(t *testing.T) {
	_, env := serve(t, newTestServer(&stubDashboard{err: errors.New("secret path /etc/x")}), http.MethodGet, "/api/timeseries", "")
	require.NotNil(t, env.Error)
	assert.Equal(t, "internal server error", env.Error.Message)
}

func TestConnectionTestEndpoint(t *testing.T) {
	ok := &stubDashboard{connection: &service.ConnectionResult{Success: true, Message: "Connection successful! Token obtained."}}
	rec, env := serve(t, newTestServer(ok), http.MethodPost, "/api/connection/test", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	failing := &stubDashboard{
		connection: &service.ConnectionResult{KeyDiagnostics: api.KeyDiagnostics{KeyLength: 12}},
		err:        apperr.New(apperr.InvalidKeyFormat, "private key is not valid PEM"),
	}
	rec, env = serve(t, newTestServer(failing), http.MethodPost, "/api/connection/test", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	require.NotNil(t, env.Error)
	assert.JSONEq(t, `{"key_length":12,"has_begin":false,"has_end":false,"has_escaped_newlines":false,"has_real_newlines":false}`, string(env.Error.Details))
}

func TestInsightsEndpoint(t *testing.T) {
	stub := &stubDashboard{}
	body := `{"structured_data":{"channels":[{"source":"google","medium":"cpc","visitors":10,"revenue":50}],"totals":{"revenue":50}},"days":14}`

	rec, env := serve(t, newTestServer(stub), http.MethodPost, "/api/insights", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, 14, stub.days)
	require.Len(t, stub.analyzed.Channels, 1)
	assert.Equal(t, "google", stub.analyzed.Channels[0].Source)
}

func TestInsightsEndpointErrors(t *testing.T) {
	rec, env := serve(t, newTestServer(&stubDashboard{}), http.MethodPost, "/api/insights", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", env.Error.Kind)

	stub := &stubDashboard{err: apperr.New(apperr.AIUnconfigured, "OpenAI API key not configured")}
	rec, env = serve(t, newTestServer(stub), http.MethodPost, "/api/insights", `{"structured_data":{}}`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "ai_unconfigured", env.Error.Kind)
	assert.Equal(t, service.DefaultDays, stub.days)

	stub = &stubDashboard{err: apperr.New(apperr.AIParseError, "Failed to parse AI response")}
	rec, _ = serve(t, newTestServer(stub), http.MethodPost, "/api/insights", `{"structured_data":{},"days":30}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRecovererCatchesPanics(t *testing.T) {
	rec, _ := serve(t, newTestServer(&stubDashboard{panics: true}), http.MethodGet, "/api/attribution", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestTimeout(t *testing.T) {
	cfg := config.Default().Server
	cfg.RequestTimeout = 20 * time.Millisecond
	s := New(&stubDashboard{delay: 5 * time.Second}, nil, cfg)

	rec, env := serve(t, s, http.MethodGet, "/api/attribution", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "network_error", env.Error.Kind)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New("ga4revenue")
	m.RecordDowngrade()

	s := New(&stubDashboard{}, m, config.Default().Server)
	rec, _ := serve(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ga4revenue_report_metric_downgrades_total 1")

	rec, _ = serve(t, New(&stubDashboard{}, nil, config.Default().Server), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusPreconditionFailed, StatusFor(apperr.DecryptError))
	assert.Equal(t, http.StatusBadGateway, StatusFor(apperr.NetworkError))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(""))
}
