package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Watch for: p95/p99 increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Provider call rate by outcome. Watch for: error vs success ratio.
	ProviderCallsTotal *prometheus.CounterVec

	// Provider call latency. Watch for: p95 approaching the 5s timeout.
	ProviderCallDuration *prometheus.HistogramVec

	// Cache hits per namespace. Hit rate = hits/(hits+misses).
	CacheHitsTotal *prometheus.CounterVec

	// Cache misses per namespace.
	CacheMissesTotal *prometheus.CounterVec

	// Lookups answered from cache with the stale label (fetched >1h ago).
	StaleServesTotal prometheus.Counter

	// Lookups answered from cache because a live fetch failed.
	OfflineServesTotal prometheus.Counter

	// Provider readings rejected as outside the plausible range.
	ImplausibleReadingsTotal prometheus.Counter

	// Manual refresh requests reaching the service.
	RefreshRequestsTotal prometheus.Counter

	// Manual refresh requests denied by the 30s per-location guard.
	RefreshDeniedTotal prometheus.Counter

	// Token-bucket denials on the HTTP layer. Watch for: overload.
	RateLimitDeniedTotal prometheus.Counter

	// Cache warming runs.
	CacheWarmingTotal prometheus.Counter

	// Concurrent misses observed for one key. Stampedes are accepted, not
	// prevented; these only make them visible.
	CacheStampedeDetectedTotal *prometheus.CounterVec
	CacheStampedeConcurrency   *prometheus.HistogramVec

	// Circuit breaker state per component (0 closed, 1 half-open, 2 open).
	CircuitBreakerState *prometheus.GaugeVec

	// In-flight requests observed when shutdown began.
	ShutdownInFlightRequests prometheus.Gauge

	// trackedLocations is built from config; used to bound location label cardinality.
	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route and status class.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Number of HTTP requests currently being served.",
	})

	ProviderCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_calls_total",
		Help: "Total weather provider calls by outcome.",
	}, []string{"status"})

	ProviderCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_call_duration_seconds",
		Help:    "Weather provider call latency by outcome.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"status"})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Cache hits by namespace.",
	}, []string{"namespace"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Cache misses by namespace.",
	}, []string{"namespace"})

	StaleServesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stale_serves_total",
		Help: "Lookups served from cache older than the staleness threshold.",
	})

	OfflineServesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_serves_total",
		Help: "Lookups served from cache because the provider fetch failed.",
	})

	ImplausibleReadingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "implausible_readings_total",
		Help: "Provider readings rejected as physically implausible.",
	})

	RefreshRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refresh_requests_total",
		Help: "Manual refresh requests processed.",
	})

	RefreshDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refresh_denied_total",
		Help: "Manual refresh requests denied by the per-location interval guard.",
	})

	RateLimitDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_denied_total",
		Help: "Requests denied by the HTTP token-bucket rate limiter.",
	})

	CacheWarmingTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_warming_total",
		Help: "Cache warming runs.",
	})

	CacheStampedeDetectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_stampede_detected_total",
		Help: "Times more than one concurrent miss was in flight for a key.",
	}, []string{"location"})

	CacheStampedeConcurrency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_stampede_concurrency",
		Help:    "Concurrent miss count observed per stampede.",
		Buckets: []float64{2, 3, 5, 10, 25, 50},
	}, []string{"location"})

	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
	}, []string{"component"})

	ShutdownInFlightRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shutdown_in_flight_requests",
		Help: "In-flight requests observed when graceful shutdown began.",
	})

	registry.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
		ProviderCallsTotal,
		ProviderCallDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		StaleServesTotal,
		OfflineServesTotal,
		ImplausibleReadingsTotal,
		RefreshRequestsTotal,
		RefreshDeniedTotal,
		RateLimitDeniedTotal,
		CacheWarmingTotal,
		CacheStampedeDetectedTotal,
		CacheStampedeConcurrency,
		CircuitBreakerState,
		ShutdownInFlightRequests,
	)
}

// MetricsHandler returns the HTTP handler serving the private registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// SetTrackedLocations installs the allow-list used by MetricLocationLabel.
func SetTrackedLocations(locations []string) {
	m := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		m[loc] = struct{}{}
	}
	trackedLocationsMu.Lock()
	trackedLocations = m
	trackedLocationsMu.Unlock()
}

// MetricLocationLabel resolves a location to a bounded metric label.
// Locations outside the configured allow-list collapse to "other".
func MetricLocationLabel(location string) string {
	trackedLocationsMu.RLock()
	defer trackedLocationsMu.RUnlock()
	if _, ok := trackedLocations[location]; ok {
		return location
	}
	return "other"
}

// RecordShutdownInFlight records the in-flight count at shutdown start.
func RecordShutdownInFlight(count int64) {
	ShutdownInFlightRequests.Set(float64(count))
}
