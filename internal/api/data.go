package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"ga4revenue/internal/apperr"
	"ga4revenue/internal/metrics"
)

const (
	// DefaultDataAPIBaseURL is the GA4 Data API root
	DefaultDataAPIBaseURL = "https://analyticsdata.googleapis.com/v1beta"

	// DefaultReportTimeout bounds each runReport call
	DefaultReportTimeout = 15 * time.Second

	// ReportKindAttribution labels cached attribution reports
	ReportKindAttribution = "attribution"
)

// Attribution report metric positions. The basic set keeps the first three.
const (
	MetricSessions = iota
	MetricTotalRevenue
	MetricTransactions
	MetricPurchasers
	MetricAveragePurchaseRevenue
)

var (
	attributionMetrics = []string{"sessions", "totalRevenue", "transactions", "purchasers", "averagePurchaseRevenue"}
	basicMetrics       = []string{"sessions", "totalRevenue", "transactions"}

	// unsupportedMetricMarkers in an error message mean the property has no
	// e-commerce purchaser metrics
	unsupportedMetricMarkers = []string{"purchasers", "averagePurchaseRevenue"}
)

// TokenSource supplies bearer tokens for Data API calls.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (*oauth2.Token, error)
}

// ReportCache stores decoded reports keyed by request hash.
type ReportCache interface {
	GetCachedReport(ctx context.Context, cacheKey string, result interface{}) (bool, error)
	CacheReport(ctx context.Context, cacheKey, propertyID, reportKind string, payload interface{}, rowCount int, ttl time.Duration) error
}

// DataClient handles GA4 Data API operations
type DataClient struct {
	tokens     TokenSource
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	cache      ReportCache
	cacheTTL   time.Duration
	metrics    *metrics.Metrics
}

// DataOption customises a DataClient.
type DataOption func(*DataClient)

// WithBaseURL overrides the Data API root.
func WithBaseURL(baseURL string) DataOption {
	return func(c *DataClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithDataHTTPClient sets the base client the oauth2 transport wraps.
func WithDataHTTPClient(client *http.Client) DataOption {
	return func(c *DataClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithReportTimeout sets the per-request timeout.
func WithReportTimeout(timeout time.Duration) DataOption {
	return func(c *DataClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithReportCache enables caching of attribution reports. A zero ttl
// disables it.
func WithReportCache(cache ReportCache, ttl time.Duration) DataOption {
	return func(c *DataClient) {
		if cache != nil && ttl > 0 {
			c.cache = cache
			c.cacheTTL = ttl
		}
	}
}

// WithDataMetrics records report calls and downgrades.
func WithDataMetrics(m *metrics.Metrics) DataOption {
	return func(c *DataClient) {
		c.metrics = m
	}
}

// NewDataClient creates a new GA4 Data API client
func NewDataClient(tokens TokenSource, opts ...DataOption) *DataClient {
	c := &DataClient{
		tokens:     tokens,
		baseURL:    DefaultDataAPIBaseURL,
		httpClient: http.DefaultClient,
		timeout:    DefaultReportTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunReport API structures
type RunReportRequest struct {
	DateRanges []DateRange `json:"dateRanges"`
	Dimensions []Dimension `json:"dimensions,omitempty"`
	Metrics    []Metric    `json:"metrics,omitempty"`
	OrderBys   []OrderBy   `json:"orderBys,omitempty"`
	Limit      int64       `json:"limit,omitempty"`
}

type RunReportResponse struct {
	DimensionHeaders []DimensionHeader `json:"dimensionHeaders"`
	MetricHeaders    []MetricHeader    `json:"metricHeaders"`
	Rows             []Row             `json:"rows"`
	RowCount         int               `json:"rowCount"`
	Metadata         ResponseMetadata  `json:"metadata"`
	Error            *ErrorBody        `json:"error,omitempty"`
}

// ErrorBody is the Google API error object. runReport returns it with a
// non-2xx status.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type Dimension struct {
	Name string `json:"name"`
}

type Metric struct {
	Name string `json:"name"`
}

type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type OrderBy struct {
	Desc      bool              `json:"desc,omitempty"`
	Dimension *DimensionOrderBy `json:"dimension,omitempty"`
	Metric    *MetricOrderBy    `json:"metric,omitempty"`
}

type DimensionOrderBy struct {
	DimensionName string `json:"dimensionName"`
}

type MetricOrderBy struct {
	MetricName string `json:"metricName"`
}

type DimensionHeader struct {
	Name string `json:"name"`
}

type MetricHeader struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Row struct {
	DimensionValues []DimensionValue `json:"dimensionValues"`
	MetricValues    []MetricValue    `json:"metricValues"`
}

type DimensionValue struct {
	Value string `json:"value"`
}

type MetricValue struct {
	Value string `json:"value"`
}

type ResponseMetadata struct {
	CurrencyCode string `json:"currencyCode,omitempty"`
	TimeZone     string `json:"timeZone,omitempty"`
}

// Dimension returns the i-th dimension value, or "" when absent.
func (r Row) Dimension(i int) string {
	if i < 0 || i >= len(r.DimensionValues) {
		return ""
	}
	return r.DimensionValues[i].Value
}

// Float returns the i-th metric as a float; missing or unparsable cells are 0.
func (r Row) Float(i int) float64 {
	if i < 0 || i >= len(r.MetricValues) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(r.MetricValues[i].Value), 64)
	if err != nil {
		return 0
	}
	return v
}

// Int returns the i-th metric truncated to an integer.
func (r Row) Int(i int) int64 {
	return int64(r.Float(i))
}

// RawReport is an attribution report as returned by the Data API, tagged
// with the metric set that produced it.
type RawReport struct {
	PropertyID   string           `json:"property_id"`
	StartDate    string           `json:"start_date"`
	EndDate      string           `json:"end_date"`
	Rows         []Row            `json:"rows"`
	RowCount     int              `json:"row_count"`
	Metadata     ResponseMetadata `json:"metadata"`
	BasicMetrics bool             `json:"basic_metrics"`
	FetchedAt    time.Time        `json:"fetched_at"`
}

// TimeSeries is the chart payload: one point per day.
type TimeSeries struct {
	Labels   []string  `json:"labels"`
	Revenue  []float64 `json:"revenue"`
	Visitors []int64   `json:"visitors"`
}

// RunReport executes a GA4 report query
func (c *DataClient) RunReport(ctx context.Context, propertyID string, request *RunReportRequest) (*RunReportResponse, error) {
	if strings.TrimSpace(propertyID) == "" {
		return nil, apperr.New(apperr.NotConfigured, "GA4 property ID is not configured")
	}
	if len(request.DateRanges) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "at least one date range is required")
	}

	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/properties/%s:runReport", c.baseURL, propertyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.authenticatedClient(ctx, token).Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(metrics.TargetReport, string(apperr.NetworkError), time.Since(start))
		return nil, apperr.Wrap(apperr.NetworkError, "API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveUpstream(metrics.TargetReport, string(apperr.NetworkError), time.Since(start))
		return nil, apperr.Wrap(apperr.NetworkError, "failed to read report response", err)
	}

	var reportResponse RunReportResponse
	if err := json.Unmarshal(body, &reportResponse); err != nil {
		c.metrics.ObserveUpstream(metrics.TargetReport, string(apperr.APIError), time.Since(start))
		if resp.StatusCode != http.StatusOK {
			return nil, apperr.Newf(apperr.APIError, "GA4 Data API returned status %d", resp.StatusCode)
		}
		return nil, apperr.Wrap(apperr.APIError, "failed to decode report response", err)
	}

	if reportResponse.Error != nil {
		c.metrics.ObserveUpstream(metrics.TargetReport, string(apperr.APIError), time.Since(start))
		message := reportResponse.Error.Message
		if message == "" {
			message = fmt.Sprintf("GA4 Data API returned status %d", resp.StatusCode)
		}
		return nil, apperr.New(apperr.APIError, message)
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.ObserveUpstream(metrics.TargetReport, string(apperr.APIError), time.Since(start))
		return nil, apperr.Newf(apperr.APIError, "GA4 Data API returned status %d", resp.StatusCode)
	}

	c.metrics.ObserveUpstream(metrics.TargetReport, "success", time.Since(start))
	return &reportResponse, nil
}

// authenticatedClient wraps the base client in an oauth2 transport carrying
// token. The token is copied so the transport never mutates the cached one.
func (c *DataClient) authenticatedClient(ctx context.Context, token *oauth2.Token) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
	}))
}

// GetAttributionReport fetches revenue by session source and medium, ordered
// by revenue. Properties without purchaser metrics are retried once with the
// basic metric set.
func (c *DataClient) GetAttributionReport(ctx context.Context, propertyID, startDate, endDate string) (*RawReport, error) {
	request := attributionRequest(startDate, endDate, attributionMetrics)

	var cacheKey string
	if c.cache != nil {
		cacheKey = ReportKindAttribution + ":" + generateQueryHash(propertyID, request)
		var cached RawReport
		found, err := c.cache.GetCachedReport(ctx, cacheKey, &cached)
		if err != nil {
			log.Warn().Err(err).Str("property_id", propertyID).Msg("Report cache lookup failed")
		}
		c.metrics.RecordReportCacheLookup(found)
		if found {
			return &cached, nil
		}
	}

	basic := false
	response, err := c.RunReport(ctx, propertyID, request)
	if err != nil && isUnsupportedMetricError(err) {
		log.Info().
			Str("property_id", propertyID).
			Err(err).
			Msg("Purchaser metrics unavailable, retrying with basic metrics")
		c.metrics.RecordDowngrade()

		basic = true
		response, err = c.RunReport(ctx, propertyID, attributionRequest(startDate, endDate, basicMetrics))
	}
	if err != nil {
		return nil, err
	}

	report := &RawReport{
		PropertyID:   propertyID,
		StartDate:    startDate,
		EndDate:      endDate,
		Rows:         response.Rows,
		RowCount:     response.RowCount,
		Metadata:     response.Metadata,
		BasicMetrics: basic,
		FetchedAt:    time.Now().UTC(),
	}
	if report.Rows == nil {
		report.Rows = []Row{}
	}

	if c.cache != nil {
		if err := c.cache.CacheReport(ctx, cacheKey, propertyID, ReportKindAttribution, report, len(report.Rows), c.cacheTTL); err != nil {
			log.Warn().Err(err).Str("property_id", propertyID).Msg("Failed to cache attribution report")
		}
	}

	return report, nil
}

// GetTimeSeries fetches daily revenue and sessions for the chart. It returns
// nil on any failure; the chart is optional.
func (c *DataClient) GetTimeSeries(ctx context.Context, propertyID, startDate, endDate string) *TimeSeries {
	request := &RunReportRequest{
		DateRanges: []DateRange{{StartDate: startDate, EndDate: endDate}},
		Dimensions: []Dimension{{Name: "date"}},
		Metrics:    []Metric{{Name: "totalRevenue"}, {Name: "sessions"}},
		OrderBys: []OrderBy{
			{Dimension: &DimensionOrderBy{DimensionName: "date"}},
		},
	}

	response, err := c.RunReport(ctx, propertyID, request)
	if err != nil {
		log.Warn().Err(err).Str("property_id", propertyID).Msg("Time series query failed")
		return nil
	}
	if response.Rows == nil {
		return nil
	}

	series := &TimeSeries{
		Labels:   make([]string, 0, len(response.Rows)),
		Revenue:  make([]float64, 0, len(response.Rows)),
		Visitors: make([]int64, 0, len(response.Rows)),
	}
	for _, row := range response.Rows {
		series.Labels = append(series.Labels, formatDateLabel(row.Dimension(0)))
		series.Revenue = append(series.Revenue, row.Float(0))
		series.Visitors = append(series.Visitors, row.Int(1))
	}
	return series
}

func attributionRequest(startDate, endDate string, metricNames []string) *RunReportRequest {
	request := &RunReportRequest{
		DateRanges: []DateRange{{StartDate: startDate, EndDate: endDate}},
		Dimensions: []Dimension{{Name: "sessionSource"}, {Name: "sessionMedium"}},
		OrderBys: []OrderBy{
			{Desc: true, Metric: &MetricOrderBy{MetricName: "totalRevenue"}},
		},
	}
	for _, name := range metricNames {
		request.Metrics = append(request.Metrics, Metric{Name: name})
	}
	return request
}

func isUnsupportedMetricError(err error) bool {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.APIError {
		return false
	}
	for _, marker := range unsupportedMetricMarkers {
		if strings.Contains(appErr.Message, marker) {
			return true
		}
	}
	return false
}

// generateQueryHash creates a unique hash for a query request
func generateQueryHash(propertyID string, request *RunReportRequest) string {
	jsonData, _ := json.Marshal(struct {
		Property string            `json:"property"`
		Request  *RunReportRequest `json:"request"`
	}{propertyID, request})
	hash := sha256.Sum256(jsonData)
	return fmt.Sprintf("%x", hash)
}

// formatDateLabel turns GA4's yyyymmdd into "Jan 2". Unparsable values pass
// through.
func formatDateLabel(value string) string {
	t, err := time.Parse("20060102", value)
	if err != nil {
		return value
	}
	return t.Format("Jan 2")
}
