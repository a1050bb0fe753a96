// Package metrics provides Prometheus metrics collection for the relay.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the relay (spec.md §6:
// "cache hit/miss, scrub rule fire counts, rate-limit drops"), kept as one
// struct registered against a single registry per the teacher's
// infrastructure/metrics/metrics.go shape.
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Upstream cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheEntries     *prometheus.GaugeVec
	UpstreamFetchTotal    *prometheus.CounterVec
	UpstreamFetchDuration *prometheus.HistogramVec

	// PII scrubbing metrics
	ScrubRuleFiresTotal *prometheus.CounterVec

	// Rate-limit metrics
	RateLimitDropsTotal *prometheus.CounterVec

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered
// against the default registry.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_cache_hits_total",
				Help: "Total number of upstream-cache fast-path hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_cache_misses_total",
				Help: "Total number of upstream-cache misses requiring a fetch",
			},
			[]string{"cache"},
		),
		CacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_cache_entries",
				Help: "Current number of cache entries by state",
			},
			[]string{"cache", "state"},
		),
		UpstreamFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_upstream_fetch_total",
				Help: "Total number of batched upstream fetches",
			},
			[]string{"cache", "status"},
		),
		UpstreamFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_upstream_fetch_duration_seconds",
				Help:    "Batched upstream fetch duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"cache"},
		),

		ScrubRuleFiresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_pii_rule_fires_total",
				Help: "Total number of PII rule redactions applied",
			},
			[]string{"rule"},
		),

		RateLimitDropsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_rate_limit_drops_total",
				Help: "Total number of envelope items dropped by rate-limit enforcement",
			},
			[]string{"category", "reason"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.CacheEntries,
			m.UpstreamFetchTotal,
			m.UpstreamFetchDuration,
			m.ScrubRuleFiresTotal,
			m.RateLimitDropsTotal,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", environment()).Set(1)

	return m
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// RecordCacheHit/RecordCacheMiss track upstream cache fast-path behavior.
func (m *Metrics) RecordCacheHit(cache string)  { m.CacheHitsTotal.WithLabelValues(cache).Inc() }
func (m *Metrics) RecordCacheMiss(cache string) { m.CacheMissesTotal.WithLabelValues(cache).Inc() }

// SetCacheEntries reports the current entry count for one cache/state pair.
func (m *Metrics) SetCacheEntries(cache, state string, count int) {
	m.CacheEntries.WithLabelValues(cache, state).Set(float64(count))
}

// RecordUpstreamFetch records one batched upstream fetch.
func (m *Metrics) RecordUpstreamFetch(cache, status string, duration time.Duration) {
	m.UpstreamFetchTotal.WithLabelValues(cache, status).Inc()
	m.UpstreamFetchDuration.WithLabelValues(cache).Observe(duration.Seconds())
}

// RecordScrubRuleFire records one PII rule redaction.
func (m *Metrics) RecordScrubRuleFire(ruleID string) {
	m.ScrubRuleFiresTotal.WithLabelValues(ruleID).Inc()
}

// RecordRateLimitDrop records one envelope item dropped by rate limiting.
func (m *Metrics) RecordRateLimitDrop(category, reason string) {
	m.RateLimitDropsTotal.WithLabelValues(category, reason).Inc()
}

// UpdateUptime updates the service uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight/DecrementInFlight track concurrently-processed requests.
func (m *Metrics) IncrementInFlight() { m.RequestsInFlight.Inc() }
func (m *Metrics) DecrementInFlight() { m.RequestsInFlight.Dec() }

func environment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	if env == "" {
		return "development"
	}
	return env
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
//   - production: disabled unless explicitly enabled via METRICS_ENABLED
//   - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return environment() != "production"
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("relay")
	}
	return globalMetrics
}
