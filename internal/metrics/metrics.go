package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream targets
const (
	TargetToken    = "oauth_token"
	TargetReport   = "ga4_report"
	TargetInsights = "insights"
)

// Metrics holds the Prometheus collectors for upstream calls. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	UpstreamRequests  *prometheus.CounterVec
	UpstreamLatency   *prometheus.HistogramVec
	MetricDowngrades  prometheus.Counter
	TokenCacheLookups *prometheus.CounterVec
	ReportCacheHits   *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Outbound requests by target and outcome",
			},
			[]string{"target", "outcome"},
		),
		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Outbound request latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"target"},
		),
		MetricDowngrades: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_metric_downgrades_total",
				Help:      "Attribution reports retried with the basic metric set",
			},
		),
		TokenCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_cache_lookups_total",
				Help:      "Access token cache lookups by result",
			},
			[]string{"result"},
		),
		ReportCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_cache_lookups_total",
				Help:      "Report cache lookups by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.UpstreamRequests,
		m.UpstreamLatency,
		m.MetricDowngrades,
		m.TokenCacheLookups,
		m.ReportCacheHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveUpstream records one outbound call.
func (m *Metrics) ObserveUpstream(target, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(target, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(target).Observe(elapsed.Seconds())
}

// RecordDowngrade counts a basic-metrics retry.
func (m *Metrics) RecordDowngrade() {
	if m == nil {
		return
	}
	m.MetricDowngrades.Inc()
}

// RecordTokenLookup counts a token cache hit or miss.
func (m *Metrics) RecordTokenLookup(hit bool) {
	if m == nil {
		return
	}
	m.TokenCacheLookups.WithLabelValues(hitLabel(hit)).Inc()
}

// RecordReportCacheLookup counts a report cache hit or miss.
func (m *Metrics) RecordReportCacheLookup(hit bool) {
	if m == nil {
		return
	}
	m.ReportCacheHits.WithLabelValues(hitLabel(hit)).Inc()
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
