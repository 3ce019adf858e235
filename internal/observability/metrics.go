package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Flood API call rate by endpoint. Watch for: error vs success ratio.
	FloodAPICallsTotal *prometheus.CounterVec

	// Flood API latency per request. Watch for: p95 > 2s (upstream degradation), p99 near the timeout.
	FloodAPIDuration *prometheus.HistogramVec

	// Retry attempts against the flood API. Watch for: high retries = unstable upstream.
	FloodAPIRetriesTotal prometheus.Counter

	// Pages fetched per paginated request. Watch for: hitting the max-pages cap (truncated results).
	FloodAPIPagesPerFetch prometheus.Histogram

	// Station records skipped during catalog build (missing id or label).
	StationsSkippedTotal prometheus.Counter

	// Reading records skipped during normalization, by reason.
	ReadingsSkippedTotal *prometheus.CounterVec

	// Catalog cache hits vs refreshes. Hit rate = hits/(hits+refreshes).
	CatalogCacheHitsTotal  prometheus.Counter
	CatalogRefreshesTotal  prometheus.Counter
	ReadingsCacheHitsTotal prometheus.Counter
	ReadingsFetchesTotal   prometheus.Counter

	// Stations in the most recent catalog. Watch for: sudden drops (partial upstream data).
	CatalogSize prometheus.Gauge

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// trackedRivers is built from config; used to resolve the river label for per-river query metrics.
	trackedRiversMu sync.RWMutex
	trackedRivers   map[string]struct{}

	// Per-river readings query count (allow-list; others go to "other").
	ReadingsQueriesByRiverTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	FloodAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodApiCallsTotal",
			Help: "Total number of flood-monitoring API calls",
		},
		[]string{"endpoint", "status"},
	)
	FloodAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floodApiDurationSeconds",
			Help:    "Flood-monitoring API latency in seconds (per page request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	FloodAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "floodApiRetriesTotal",
			Help: "Total number of retry attempts for flood API calls",
		},
	)
	FloodAPIPagesPerFetch = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "floodApiPagesPerFetch",
			Help:    "Pages followed per paginated fetch; max bucket means the page cap was hit",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)
	StationsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stationsSkippedTotal",
			Help: "Station records skipped during catalog build (missing id or label)",
		},
	)
	ReadingsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readingsSkippedTotal",
			Help: "Reading records skipped during normalization, by reason",
		},
		[]string{"reason"},
	)
	CatalogCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogCacheHitsTotal",
			Help: "Station catalog requests served from the session cache",
		},
	)
	CatalogRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogRefreshesTotal",
			Help: "Station catalog rebuilds from upstream",
		},
	)
	ReadingsCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "readingsCacheHitsTotal",
			Help: "Readings requests served from the session working set",
		},
	)
	ReadingsFetchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "readingsFetchesTotal",
			Help: "Readings fetches that went upstream",
		},
	)
	CatalogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogSize",
			Help: "Stations in the most recently built catalog",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	ReadingsQueriesByRiverTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readingsQueriesByRiverTotal",
			Help: "Readings queries by river (allow-list; others use river=other)",
		},
		[]string{"river"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		FloodAPICallsTotal, FloodAPIDuration, FloodAPIRetriesTotal, FloodAPIPagesPerFetch,
		StationsSkippedTotal, ReadingsSkippedTotal,
		CatalogCacheHitsTotal, CatalogRefreshesTotal, ReadingsCacheHitsTotal, ReadingsFetchesTotal,
		CatalogSize, RateLimitDeniedTotal, ReadingsQueriesByRiverTotal,
	)
}

// SetTrackedRivers sets the allow-list for per-river metrics. Non-tracked rivers increment "other".
func SetTrackedRivers(rivers []string) {
	trackedRiversMu.Lock()
	defer trackedRiversMu.Unlock()
	trackedRivers = make(map[string]struct{}, len(rivers))
	for _, r := range rivers {
		trackedRivers[normalizeRiverForMetrics(r)] = struct{}{}
	}
}

// RecordReadingsQuery records a readings query against the station's river.
func RecordReadingsQuery(river string) {
	r := normalizeRiverForMetrics(river)
	trackedRiversMu.RLock()
	_, ok := trackedRivers[r]
	trackedRiversMu.RUnlock()
	if ok {
		ReadingsQueriesByRiverTotal.WithLabelValues(r).Inc()
	} else {
		ReadingsQueriesByRiverTotal.WithLabelValues("other").Inc()
	}
}

func normalizeRiverForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
