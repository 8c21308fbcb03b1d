// Package service exposes the operations the dashboard consumers call: test
// the connection, fetch the attribution report and chart, and analyse a
// report with the insights API.
package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"ga4revenue/internal/api"
	"ga4revenue/internal/apperr"
	"ga4revenue/internal/attribution"
	"ga4revenue/internal/config"
	"ga4revenue/internal/insights"
	"ga4revenue/internal/metrics"
	"ga4revenue/internal/preset"
	"ga4revenue/internal/render"
	"ga4revenue/internal/secret"
)

const (
	DefaultDays = 30
	MaxDays     = 365

	dateLayout = "2006-01-02"
)

// Options carries the dependencies of a Dashboard. Only Config and Store are
// expected in normal use; the rest are optional.
type Options struct {
	Config  *config.AppConfig
	Store   *secret.Store
	Cache   api.ReportCache
	Metrics *metrics.Metrics

	// HTTPClient replaces the per-upstream clients built from the configured
	// timeouts
	HTTPClient *http.Client
	Clock      func() time.Time
}

// Dashboard serves one preset. All calls share a single AuthClient and so a
// single cached access token.
type Dashboard struct {
	preset     *config.Preset
	cfg        *config.AppConfig
	store      *secret.Store
	auth       *api.AuthClient
	data       *api.DataClient
	metrics    *metrics.Metrics
	httpClient *http.Client
	now        func() time.Time
}

// ConnectionResult is the outcome of TestConnection. KeyDiagnostics describe
// the stored key without revealing it.
type ConnectionResult struct {
	Success        bool                   `json:"success"`
	Message        string                 `json:"message"`
	TokenPreview   string                 `json:"token_preview,omitempty"`
	TokenInfo      map[string]interface{} `json:"token_info,omitempty"`
	KeyDiagnostics api.KeyDiagnostics     `json:"key_diagnostics"`
}

// AttributionReport is the dashboard payload for one date window.
type AttributionReport struct {
	HTML           string                     `json:"html"`
	ChartData      *api.TimeSeries            `json:"chart_data"`
	StructuredData attribution.StructuredData `json:"structured_data"`
	Result         *attribution.Result        `json:"result"`
}

// InsightsResult is an analysis together with its rendered HTML.
type InsightsResult struct {
	HTML     string           `json:"html"`
	Insights *insights.Report `json:"insights"`
}

// New builds a Dashboard for p.
func New(p *config.Preset, opts Options) *Dashboard {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	d := &Dashboard{
		preset:     p,
		cfg:        cfg,
		store:      opts.Store,
		metrics:    opts.Metrics,
		httpClient: opts.HTTPClient,
		now:        now,
	}

	d.auth = api.NewAuthClient(
		preset.Credentials(opts.Store, p),
		api.WithTokenURL(cfg.Endpoints.TokenURL),
		api.WithAuthTimeout(cfg.Timeouts.OAuth),
		api.WithAuthHTTPClient(opts.HTTPClient),
		api.WithClock(now),
		api.WithAuthMetrics(opts.Metrics),
	)

	d.data = api.NewDataClient(
		d.auth,
		api.WithBaseURL(cfg.Endpoints.DataAPIBaseURL),
		api.WithReportTimeout(cfg.Timeouts.Report),
		api.WithDataHTTPClient(opts.HTTPClient),
		api.WithReportCache(opts.Cache, cfg.ReportCacheTTL),
		api.WithDataMetrics(opts.Metrics),
	)

	return d
}

// Preset returns the preset the dashboard serves.
func (d *Dashboard) Preset() *config.Preset {
	return d.preset
}

// AccessToken returns the cached token or exchanges a new one.
func (d *Dashboard) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	return d.auth.GetAccessToken(ctx)
}

// TokenInfo describes the cached token.
func (d *Dashboard) TokenInfo() map[string]interface{} {
	return d.auth.TokenInfo()
}

// TestConnection drops the cached token and authenticates from scratch. The
// result is filled in on failure too, so callers can show the diagnostics.
func (d *Dashboard) TestConnection(ctx context.Context) (*ConnectionResult, error) {
	d.auth.ClearTokenCache()

	result := &ConnectionResult{
		KeyDiagnostics: api.DiagnoseKey(d.store.Reveal(d.preset.PrivateKey)),
	}

	token, err := d.auth.GetAccessToken(ctx)
	if err != nil {
		result.Message = "Connection failed: " + err.Error()
		log.Debug().
			Str("preset", d.preset.Name).
			Interface("key_diagnostics", result.KeyDiagnostics).
			Err(err).
			Msg("Connection test failed")
		return result, err
	}

	result.Success = true
	result.Message = "Connection successful! Token obtained."
	result.TokenPreview = api.MaskToken(token.AccessToken)
	result.TokenInfo = d.auth.TokenInfo()
	return result, nil
}

// AttributionReport fetches revenue by source/medium for the last days days,
// aggregates it and renders the table. A failed chart query leaves ChartData
// nil.
func (d *Dashboard) AttributionReport(ctx context.Context, days int) (*AttributionReport, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	if err := d.requireProperty(); err != nil {
		return nil, err
	}

	startDate, endDate := d.DateRange(days)

	raw, err := d.data.GetAttributionReport(ctx, d.preset.PropertyID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	result := attribution.Aggregate(raw)
	html, err := render.AttributionTable(result)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("property_id", d.preset.PropertyID).
		Int("days", days).
		Int("rows", len(result.Rows)).
		Bool("basic_metrics", result.BasicMetrics).
		Msg("Built attribution report")

	return &AttributionReport{
		HTML:           html,
		ChartData:      d.data.GetTimeSeries(ctx, d.preset.PropertyID, startDate, endDate),
		StructuredData: result.StructuredData(),
		Result:         result,
	}, nil
}

// TimeSeries returns daily revenue and sessions for the chart, or nil when
// the query failed.
func (d *Dashboard) TimeSeries(ctx context.Context, days int) (*api.TimeSeries, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	if err := d.requireProperty(); err != nil {
		return nil, err
	}

	startDate, endDate := d.DateRange(days)
	return d.data.GetTimeSeries(ctx, d.preset.PropertyID, startDate, endDate), nil
}

// Analyze sends structured attribution data to the insights API. It is not
// retried on failure.
func (d *Dashboard) Analyze(ctx context.Context, data attribution.StructuredData, days int) (*InsightsResult, error) {
	if !d.preset.AIEnabled {
		return nil, apperr.New(apperr.AIUnconfigured, "AI insights are not enabled for this preset")
	}
	apiKey := preset.AIKey(d.store, d.preset)
	if apiKey == "" {
		return nil, apperr.New(apperr.AIUnconfigured, "OpenAI API key not configured")
	}
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	if data.IsEmpty() {
		return nil, apperr.New(apperr.InvalidInput, "no attribution data to analyse; load a report first")
	}

	client := insights.NewClient(apiKey, d.preset.AIModel,
		insights.WithEndpoint(d.cfg.Endpoints.InsightsURL),
		insights.WithTimeout(d.cfg.Timeouts.Insights),
		insights.WithHTTPClient(d.httpClient),
		insights.WithMetrics(d.metrics),
	)

	report, err := client.Analyze(ctx, data, days)
	if err != nil {
		return nil, err
	}

	html, err := render.Insights(report)
	if err != nil {
		return nil, err
	}

	return &InsightsResult{HTML: html, Insights: report}, nil
}

// DateRange returns the start and end dates (yyyy-mm-dd) covering the last
// days days up to today.
func (d *Dashboard) DateRange(days int) (string, string) {
	end := d.now()
	return end.AddDate(0, 0, -days).Format(dateLayout), end.Format(dateLayout)
}

func (d *Dashboard) requireProperty() error {
	if strings.TrimSpace(d.preset.PropertyID) == "" {
		return apperr.New(apperr.NotConfigured, "Property ID not configured")
	}
	return nil
}

// ValidateDays checks a report window.
func ValidateDays(days int) error {
	if days < 1 || days > MaxDays {
		return apperr.Newf(apperr.InvalidInput, "days must be between 1 and %d, got %d", MaxDays, days)
	}
	return nil
}
