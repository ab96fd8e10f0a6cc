package metrics

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/quantlens/pkg/errs"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Provider error categories (bounded set)
	ProviderErrorTimeout     = "timeout"
	ProviderErrorRateLimit   = "rate_limit"
	ProviderErrorAuth        = "authentication"
	ProviderErrorNetwork     = "network"
	ProviderErrorNotFound    = "not_found"
	ProviderErrorServerError = "server_error"
	ProviderErrorNoData      = "no_data"
	ProviderErrorOther       = "other"

	// Analysis results (bounded set)
	ResultOK          = "ok"
	ResultConfigError = "config_error"
	ResultDataError   = "data_error"
	ResultProvider    = "provider_error"
	ResultError       = "error"

	// Cache lookup results
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// NormalizeProviderError maps arbitrary provider errors to a bounded set
func NormalizeProviderError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ProviderErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProviderErrorTimeout
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ProviderErrorTimeout
	case strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many"):
		return ProviderErrorRateLimit
	case strings.Contains(errStr, "api_key") || strings.Contains(errStr, "api key") || strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return ProviderErrorAuth
	case strings.Contains(errStr, "404") || strings.Contains(errStr, "not found") || strings.Contains(errStr, "does not exist"):
		return ProviderErrorNotFound
	case strings.Contains(errStr, "no observations") || strings.Contains(errStr, "no data"):
		return ProviderErrorNoData
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") || strings.Contains(errStr, "dial"):
		return ProviderErrorNetwork
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503") || strings.Contains(errStr, "server error"):
		return ProviderErrorServerError
	default:
		return ProviderErrorOther
	}
}

// ResultFor maps an analysis error to its bounded result label
func ResultFor(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, errs.ErrConfiguration):
		return ResultConfigError
	case errors.Is(err, errs.ErrData):
		return ResultDataError
	case errors.Is(err, errs.ErrProvider):
		return ResultProvider
	default:
		return ResultError
	}
}

// ============================================================================
// PROVIDER METRICS
// ============================================================================

var (
	// Upstream provider requests by outcome
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantlens_provider_requests_total",
		Help: "Total number of upstream data provider requests",
	}, []string{"provider", "operation", "result"})

	// Upstream provider latency
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quantlens_provider_latency_ms",
		Help:    "Upstream data provider latency in milliseconds",
		Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}, []string{"provider", "operation"})

	// Provider retries
	ProviderRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantlens_provider_retries_total",
		Help: "Total number of retried upstream requests",
	}, []string{"provider"})

	// Circuit breaker state (0 closed, 1 half-open, 2 open)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quantlens_circuit_breaker_state",
		Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
	}, []string{"provider"})

	// Circuit breaker trips
	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantlens_circuit_breaker_trips_total",
		Help: "Number of times a provider circuit breaker opened",
	}, []string{"provider"})
)

// ============================================================================
// CACHE METRICS
// ============================================================================

var (
	// Series cache lookups by result
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantlens_cache_lookups_total",
		Help: "Series cache lookups by result",
	}, []string{"result"})

	// Cache hit rate (0.0 to 1.0)
	CacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quantlens_cache_hit_rate",
		Help: "Series cache hit rate since start (0.0 to 1.0)",
	})

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

// ============================================================================
// ANALYSIS METRICS
// ============================================================================

var (
	// Analyses by kind and result
	Analyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantlens_analyses_total",
		Help: "Total number of analyses run",
	}, []string{"kind", "result"})

	// Analysis duration
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quantlens_analysis_duration_ms",
		Help:    "End-to-end analysis duration in milliseconds",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}, []string{"kind"})

	// Assets per portfolio analysis
	PortfolioAssets = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quantlens_portfolio_assets",
		Help:    "Number of assets per portfolio analysis",
		Buckets: []float64{1, 2, 3, 4, 5, 8, 10, 15, 20},
	})

	// Reports generated by kind and sink
	ReportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantlens_reports_generated_total",
		Help: "Total number of daily reports written or published",
	}, []string{"kind", "sink"})

	// Catalog size
	CatalogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quantlens_catalog_entries",
		Help: "Number of entries in the asset catalog",
	})

	// Stored reports
	StoredReports = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quantlens_stored_reports",
		Help: "Number of daily reports stored in the database",
	})
)

// ============================================================================
// API & INFRASTRUCTURE METRICS
// ============================================================================

var (
	// HTTP requests
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantlens_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// API request duration
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quantlens_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
	}, []string{"method", "path", "status"})

	// Database connections
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quantlens_database_connections_active",
		Help: "Number of active database connections",
	})

	DatabaseConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quantlens_database_connections_idle",
		Help: "Number of idle database connections",
	})

	// Database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quantlens_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})

	// Errors by component
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantlens_errors_total",
		Help: "Total number of errors by type and component",
	}, []string{"error_type", "component"})
)

// Helper functions to update metrics

// RecordProviderRequest records an upstream request and its outcome
func RecordProviderRequest(provider, operation string, durationMs float64, err error) {
	ProviderLatency.WithLabelValues(provider, operation).Observe(durationMs)
	result := ResultOK
	if err != nil {
		result = NormalizeProviderError(err)
	}
	ProviderRequests.WithLabelValues(provider, operation, result).Inc()
}

// RecordProviderRetry records a retried upstream request
func RecordProviderRetry(provider string) {
	ProviderRetries.WithLabelValues(provider).Inc()
}

// UpdateCircuitBreaker sets the breaker state gauge and counts trips
func UpdateCircuitBreaker(provider string, state int, tripped bool) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
	if tripped {
		CircuitBreakerTrips.WithLabelValues(provider).Inc()
	}
}

// RecordCacheLookup records a series cache lookup and refreshes the hit rate
func RecordCacheLookup(result string) {
	CacheLookups.WithLabelValues(result).Inc()
	switch result {
	case CacheHit:
		cacheHits.Add(1)
	case CacheMiss:
		cacheMisses.Add(1)
	default:
		return
	}
	hits, misses := cacheHits.Load(), cacheMisses.Load()
	if total := hits + misses; total > 0 {
		CacheHitRate.Set(float64(hits) / float64(total))
	}
}

// RecordAnalysis records a completed analysis
func RecordAnalysis(kind string, durationMs float64, err error) {
	Analyses.WithLabelValues(kind, ResultFor(err)).Inc()
	AnalysisDuration.WithLabelValues(kind).Observe(durationMs)
}

// RecordReport records a generated report for a sink (csv, nats, database)
func RecordReport(kind, sink string) {
	ReportsGenerated.WithLabelValues(kind, sink).Inc()
}

// RecordAPIRequest records an API request with duration
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// RecordDatabaseQuery records a database query
func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// RecordError records an error
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}

// UpdateDatabaseConnections updates database connection metrics
func UpdateDatabaseConnections(active, idle int32) {
	DatabaseConnectionsActive.Set(float64(active))
	DatabaseConnectionsIdle.Set(float64(idle))
}
