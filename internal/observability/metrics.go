package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider labels for upstream metrics.
const (
	ProviderTahmo     = "tahmo"
	ProviderMeteoblue = "meteoblue"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Dominated by the two upstream calls on /api/data.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate by provider and outcome.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency. Watch for: p99 near the configured timeout.
	UpstreamDuration *prometheus.HistogramVec

	// Upstream failures by provider and error category (see client.CategorizeError).
	UpstreamErrorsTotal *prometheus.CounterVec

	// /api/data outcomes: success, not_found, malformed, error.
	StationDataRequestsTotal *prometheus.CounterVec

	// Forecasts embedded as error objects instead of a series.
	ForecastErrorsTotal prometheus.Counter

	// Station list refresh runs by result (success, error).
	StationRefreshTotal *prometheus.CounterVec

	// Station list refresh duration.
	StationRefreshDuration prometheus.Histogram

	// Unix time of the last successful refresh. Watch for: now - value > 24h.
	StationRefreshLastSuccess prometheus.Gauge

	// Scheduled refreshes skipped because they fired past the misfire grace.
	StationRefreshMisfiresTotal prometheus.Counter

	// Active stations held by the store after the last refresh.
	StationsStored prometheus.Gauge

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
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
		[]string{"provider", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "status"},
	)
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "Upstream API failures by error category",
		},
		[]string{"provider", "category"},
	)
	StationDataRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationDataRequestsTotal",
			Help: "Station data lookups by result",
		},
		[]string{"result"},
	)
	ForecastErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastErrorsTotal",
			Help: "Forecasts returned as error objects",
		},
	)
	StationRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationRefreshTotal",
			Help: "Station list refresh runs by result",
		},
		[]string{"result"},
	)
	StationRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stationRefreshDurationSeconds",
			Help:    "Station list refresh duration in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	StationRefreshLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stationRefreshLastSuccessTimestampSeconds",
			Help: "Unix time of the last successful station refresh",
		},
	)
	StationRefreshMisfiresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stationRefreshMisfiresTotal",
			Help: "Scheduled station refreshes skipped past the misfire grace time",
		},
	)
	StationsStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stationsStored",
			Help: "Active stations in the store after the last refresh",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamErrorsTotal,
		StationDataRequestsTotal, ForecastErrorsTotal,
		StationRefreshTotal, StationRefreshDuration, StationRefreshLastSuccess,
		StationRefreshMisfiresTotal, StationsStored,
		RateLimitDeniedTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
