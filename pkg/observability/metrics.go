package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Aggregation metrics
	AggregationsTotal   *prometheus.CounterVec
	AggregationDuration *prometheus.HistogramVec
	PluginsTotal        prometheus.Gauge
	CategoriesTotal     prometheus.Gauge
	ManifestReloadTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Usage store metrics
	UsageOperationsTotal *prometheus.CounterVec

	// Query and trace metrics
	QueryRequestsTotal *prometheus.CounterVec
	QueryDuration      prometheus.Histogram
	TracesDeletedTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuronote_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neuronote_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neuronote_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		AggregationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuronote_aggregations_total",
				Help: "Total number of manifest aggregations",
			},
			[]string{"sort_by", "status"},
		),
		AggregationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neuronote_aggregation_duration_seconds",
				Help:    "Manifest aggregation duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"sort_by"},
		),
		PluginsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "neuronote_plugins_total",
				Help: "Number of plugins in the last aggregation",
			},
		),
		CategoriesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "neuronote_categories_total",
				Help: "Number of categories in the last aggregation",
			},
		),
		ManifestReloadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuronote_manifest_reloads_total",
				Help: "Total number of manifest source reloads",
			},
			[]string{"source", "status"},
		),

		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "neuronote_cache_hits_total",
				Help: "Total number of aggregation cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "neuronote_cache_misses_total",
				Help: "Total number of aggregation cache misses",
			},
		),

		UsageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuronote_usage_operations_total",
				Help: "Total number of usage store operations",
			},
			[]string{"operation", "backend", "status"},
		),

		QueryRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuronote_query_requests_total",
				Help: "Total number of queries forwarded to the orchestrator",
			},
			[]string{"status"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "neuronote_query_duration_seconds",
				Help:    "Orchestrator query duration in seconds",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		TracesDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "neuronote_traces_deleted_total",
				Help: "Total number of traces removed by retention cleanup",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AggregationsTotal,
		m.AggregationDuration,
		m.PluginsTotal,
		m.CategoriesTotal,
		m.ManifestReloadTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.UsageOperationsTotal,
		m.QueryRequestsTotal,
		m.QueryDuration,
		m.TracesDeletedTotal,
	)

	return m
}

// ObserveAggregation records the outcome of one aggregation
func (m *Metrics) ObserveAggregation(sortBy string, duration time.Duration, plugins, categories int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.AggregationsTotal.WithLabelValues(sortBy, status).Inc()
	if err != nil {
		return
	}
	m.AggregationDuration.WithLabelValues(sortBy).Observe(duration.Seconds())
	m.PluginsTotal.Set(float64(plugins))
	m.CategoriesTotal.Set(float64(categories))
}

// ObserveCache records an aggregation cache lookup
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

// ObserveReload records a manifest source reload
func (m *Metrics) ObserveReload(source string, err error) {
	if m == nil {
		return
	}
	m.ManifestReloadTotal.WithLabelValues(source, statusLabel(err)).Inc()
}

// ObserveUsageOp records a usage store operation
func (m *Metrics) ObserveUsageOp(operation, backend string, err error) {
	if m == nil {
		return
	}
	m.UsageOperationsTotal.WithLabelValues(operation, backend, statusLabel(err)).Inc()
}

// ObserveQuery records a forwarded query
func (m *Metrics) ObserveQuery(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.QueryRequestsTotal.WithLabelValues(statusLabel(err)).Inc()
	m.QueryDuration.Observe(duration.Seconds())
}

// ObserveTraceCleanup records traces removed by retention cleanup
func (m *Metrics) ObserveTraceCleanup(deleted int64) {
	if m == nil || deleted <= 0 {
		return
	}
	m.TracesDeletedTotal.Add(float64(deleted))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel uses the mux route template so path parameters don't explode cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := routeLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
