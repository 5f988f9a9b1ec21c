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

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate by upstream (geocoder, points, stations, observations) and status class.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per call. Watch for: p95 approaching upstream.timeout.
	UpstreamDuration *prometheus.HistogramVec

	// Breaker state per upstream: 0=closed, 1=half_open, 2=open.
	CircuitBreakerState *prometheus.GaugeVec

	// Breaker transitions. Watch for: flapping between open and half_open.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Per-station fetch attempts by tier (latest, recent) and outcome (usable, unusable, failed).
	// A high failed/unusable share on latest is normal; on recent it means stations are dark.
	StationAttemptsTotal *prometheus.CounterVec

	// Stations contacted per resolution. Watch for: p95 > 1 (nearest station unreliable).
	StationsContacted prometheus.Histogram

	// Resolution outcomes: ok, no_data, not_found, no_stations, invalid, upstream_error, timeout.
	ResolutionsTotal *prometheus.CounterVec

	// Total conditions lookups. Watch for: traffic volume, rate() for QPS.
	ConditionsQueriesTotal prometheus.Counter

	// Per-location query count (allow-list; others go to "other").
	ConditionsQueriesByLocationTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Scheduled probe results by location (allow-list) and outcome.
	ProbeResultsTotal *prometheus.CounterVec

	// Wall time of one probe run across all tracked locations.
	ProbeDurationSeconds prometheus.Histogram

	// trackedLocations is built from config; used to resolve location for metrics.
	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}

	rateLimitGaugesOnce sync.Once
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
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls",
		},
		[]string{"upstream", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"upstream", "status"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per upstream (0=closed, 1=half_open, 2=open)",
		},
		[]string{"upstream"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"upstream", "from", "to"},
	)
	StationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationAttemptsTotal",
			Help: "Observation fetch attempts per station by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)
	StationsContacted = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stationsContacted",
			Help:    "Number of stations contacted per resolution",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8},
		},
	)
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolutionsTotal",
			Help: "Location resolutions by outcome",
		},
		[]string{"outcome"},
	)
	ConditionsQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conditionsQueriesTotal",
			Help: "Total number of conditions lookups",
		},
	)
	ConditionsQueriesByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conditionsQueriesByLocationTotal",
			Help: "Conditions queries by location (allow-list; others use location=other)",
		},
		[]string{"location"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	ProbeResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probeResultsTotal",
			Help: "Scheduled probe results by location and outcome",
		},
		[]string{"location", "outcome"},
	)
	ProbeDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "probeDurationSeconds",
			Help:    "Duration of one scheduled probe run in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		StationAttemptsTotal, StationsContacted, ResolutionsTotal,
		ConditionsQueriesTotal, ConditionsQueriesByLocationTotal,
		RateLimitDeniedTotal,
		ProbeResultsTotal, ProbeDurationSeconds,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// requests and rejects are read on every scrape; main passes the health tracker's window counts.
func RegisterRateLimitGauges(requests, rejects func() float64) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window; load/capacity planning",
				},
				requests,
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window; are we rejecting requests",
				},
				rejects,
			),
		)
	})
}

// CircuitBreakerStateValue maps a breaker state name to the gauge value.
func CircuitBreakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half-open", "half_open":
		return 1
	default:
		return 0
	}
}

// RecordCircuitBreakerTransition records a transition and updates the state gauge.
func RecordCircuitBreakerTransition(upstream, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(upstream, from, to).Inc()
	CircuitBreakerState.WithLabelValues(upstream).Set(CircuitBreakerStateValue(to))
}

// SetTrackedLocations sets the allow-list for location metrics. Non-tracked locations increment "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// RecordConditionsQuery records a conditions query for the given location.
func RecordConditionsQuery(location string) {
	ConditionsQueriesTotal.Inc()
	ConditionsQueriesByLocationTotal.WithLabelValues(MetricLocationLabel(location)).Inc()
}

// MetricLocationLabel returns the normalized location if it is on the allow-list, else "other".
// Keeps label cardinality bounded for free-text input.
func MetricLocationLabel(location string) string {
	loc := normalizeLocationForMetrics(location)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc] // nil map read is safe in Go
	trackedLocationsMu.RUnlock()
	if ok {
		return loc
	}
	return "other"
}

func normalizeLocationForMetrics(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
