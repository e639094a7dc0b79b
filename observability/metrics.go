package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Dashboard metrics
	DashboardOpsTotal    *prometheus.CounterVec
	DashboardOpFailures  *prometheus.CounterVec
	DashboardWidgetCount *prometheus.HistogramVec
	PresetAppliesTotal   *prometheus.CounterVec

	// Prediction metrics
	PredictionRequestsTotal *prometheus.CounterVec
	PredictionDuration      *prometheus.HistogramVec
	PredictionErrorsTotal   *prometheus.CounterVec
	PredictionConfidence    *prometheus.HistogramVec
	PredictionSimulated     *prometheus.CounterVec

	// Offline cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec
	CacheSizeBytes      prometheus.Gauge
	CacheCompressedSavings prometheus.Counter
	SyncActionsTotal    *prometheus.CounterVec

	// External API metrics
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// confidenceBuckets are histogram buckets for confidence metrics (0 to 1)
var confidenceBuckets = []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// widgetCountBuckets are histogram buckets for per-layout widget counts
var widgetCountBuckets = []float64{0, 1, 2, 4, 6, 8, 12, 16, 24}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		DashboardOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "dashboard",
				Name:      "operations_total",
				Help:      "Total number of dashboard layout operations",
			},
			[]string{"operation"},
		),
		DashboardOpFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "dashboard",
				Name:      "operation_failures_total",
				Help:      "Total number of failed dashboard layout operations",
			},
			[]string{"operation"},
		),
		DashboardWidgetCount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stockboard",
				Subsystem: "dashboard",
				Name:      "widget_count",
				Help:      "Distribution of widgets per saved layout",
				Buckets:   widgetCountBuckets,
			},
			[]string{"operation"},
		),
		PresetAppliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "preset",
				Name:      "applies_total",
				Help:      "Total number of preset layout applications",
			},
			[]string{"category"},
		),

		PredictionRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "prediction",
				Name:      "requests_total",
				Help:      "Total number of prediction requests",
			},
			[]string{"algorithm"},
		),
		PredictionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stockboard",
				Subsystem: "prediction",
				Name:      "duration_seconds",
				Help:      "Duration of prediction generation in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"algorithm", "status"},
		),
		PredictionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "prediction",
				Name:      "errors_total",
				Help:      "Total number of prediction errors",
			},
			[]string{"algorithm", "error_type"},
		),
		PredictionConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stockboard",
				Subsystem: "prediction",
				Name:      "confidence",
				Help:      "Distribution of prediction confidence levels",
				Buckets:   confidenceBuckets,
			},
			[]string{"algorithm"},
		),
		PredictionSimulated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "prediction",
				Name:      "simulated_total",
				Help:      "Total number of predictions served from the simulated estimator",
			},
			[]string{"algorithm"},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "offline_cache",
				Name:      "hits_total",
				Help:      "Total number of offline cache hits",
			},
			[]string{"kind"},
		),
		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "offline_cache",
				Name:      "misses_total",
				Help:      "Total number of offline cache misses",
			},
			[]string{"kind"},
		),
		CacheEvictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "offline_cache",
				Name:      "evictions_total",
				Help:      "Total number of cache entries evicted",
			},
			[]string{"reason"},
		),
		CacheSizeBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "stockboard",
				Subsystem: "offline_cache",
				Name:      "size_bytes",
				Help:      "Current total size of the offline cache in bytes",
			},
		),
		CacheCompressedSavings: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "offline_cache",
				Name:      "compression_saved_bytes_total",
				Help:      "Total bytes saved by cache compression",
			},
		),
		SyncActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "offline_cache",
				Name:      "sync_actions_total",
				Help:      "Total number of queued offline actions synced",
			},
			[]string{"status"},
		),

		ExternalAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "external_api",
				Name:      "requests_total",
				Help:      "Total number of external API requests",
			},
			[]string{"service", "operation"},
		),
		ExternalAPIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "external_api",
				Name:      "errors_total",
				Help:      "Total number of external API errors",
			},
			[]string{"service", "operation", "error_type"},
		),
		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stockboard",
				Subsystem: "external_api",
				Name:      "duration_seconds",
				Help:      "Duration of external API calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"service", "operation"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stockboard",
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "database",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stockboard",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stockboard",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "stockboard",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockboard",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// InitMetricsWithRegistry initializes the global metrics with a custom
// registry. Tests use this to avoid duplicate-registration panics.
func InitMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	globalMetrics = NewMetrics(reg)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// RecordDashboardOp records a dashboard layout operation and its outcome
func (m *Metrics) RecordDashboardOp(operation string, ok bool) {
	m.DashboardOpsTotal.WithLabelValues(operation).Inc()
	if !ok {
		m.DashboardOpFailures.WithLabelValues(operation).Inc()
	}
}

// RecordLayoutSize records the widget count of a saved layout
func (m *Metrics) RecordLayoutSize(operation string, widgets int) {
	m.DashboardWidgetCount.WithLabelValues(operation).Observe(float64(widgets))
}

// RecordPresetApply records a preset application
func (m *Metrics) RecordPresetApply(category string) {
	m.PresetAppliesTotal.WithLabelValues(category).Inc()
}

// RecordPredictionRequest records a prediction request
func (m *Metrics) RecordPredictionRequest(algorithm string) {
	m.PredictionRequestsTotal.WithLabelValues(algorithm).Inc()
}

// RecordPredictionError records a prediction error
func (m *Metrics) RecordPredictionError(algorithm, errorType string) {
	m.PredictionErrorsTotal.WithLabelValues(algorithm, errorType).Inc()
}

// RecordPrediction records the outcome of a prediction run
func (m *Metrics) RecordPrediction(algorithm string, confidence float64, simulated bool) {
	m.PredictionConfidence.WithLabelValues(algorithm).Observe(confidence)
	if simulated {
		m.PredictionSimulated.WithLabelValues(algorithm).Inc()
	}
}

// RecordCacheHit records an offline cache hit
func (m *Metrics) RecordCacheHit(kind string) {
	m.CacheHitsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheMiss records an offline cache miss
func (m *Metrics) RecordCacheMiss(kind string) {
	m.CacheMissesTotal.WithLabelValues(kind).Inc()
}

// RecordCacheEviction records evicted cache entries
func (m *Metrics) RecordCacheEviction(reason string, count int) {
	m.CacheEvictionsTotal.WithLabelValues(reason).Add(float64(count))
}

// SetCacheSize sets the current cache size gauge
func (m *Metrics) SetCacheSize(bytes int64) {
	m.CacheSizeBytes.Set(float64(bytes))
}

// RecordCompressionSavings records bytes saved by compression
func (m *Metrics) RecordCompressionSavings(bytes int64) {
	if bytes > 0 {
		m.CacheCompressedSavings.Add(float64(bytes))
	}
}

// RecordSyncAction records a synced offline action
func (m *Metrics) RecordSyncAction(status string) {
	m.SyncActionsTotal.WithLabelValues(status).Inc()
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

// RecordExternalAPIError records an external API error
func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

// RecordExternalAPIDuration records the duration of an external API call
func (m *Metrics) RecordExternalAPIDuration(service, operation string, duration time.Duration) {
	m.ExternalAPIDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error
func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObservePrediction records the prediction duration and status
func (t *Timer) ObservePrediction(algorithm, status string) {
	t.metrics.PredictionDuration.WithLabelValues(algorithm, status).Observe(time.Since(t.start).Seconds())
}

// ObserveExternalAPI records the external API duration
func (t *Timer) ObserveExternalAPI(service, operation string) {
	t.metrics.RecordExternalAPIDuration(service, operation, time.Since(t.start))
}

// ObserveDB records the database query duration
func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
