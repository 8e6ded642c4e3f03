// Package metrics provides Prometheus metrics for the techrank service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Domain
	techniciansTotal    prometheus.Gauge
	serviceRecordsTotal prometheus.Gauge
	recordsAdded        *prometheus.CounterVec
	recordsDuplicate    *prometheus.CounterVec
	rankingsComputed    *prometheus.CounterVec
	rankingLatency      prometheus.Histogram
	transfers           *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec

	// Ingest
	ingestMessages    *prometheus.CounterVec
	ingestWorkerCount prometheus.Gauge
	ingestQueueSize   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level helpers

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // exposed through GetRegistry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "techrank",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.techniciansTotal = m.gauge("technicians_total", "Number of technicians in the store")
	m.serviceRecordsTotal = m.gauge("service_records_total", "Number of service records in the store")
	m.recordsAdded = m.counterVec("records_added_total", "Service records stored, by source", "source")
	m.recordsDuplicate = m.counterVec("records_duplicate_total", "Service record submissions answered from an idempotency key, by source", "source")
	m.rankingsComputed = m.counterVec("rankings_computed_total", "Ranking passes, by sort key", "sort")
	m.rankingLatency = m.histogram("ranking_latency_milliseconds", "Time to load and rank technicians in milliseconds", m.histogramBuckets)
	m.transfers = m.counterVec("transfers_total", "Export and import operations, by kind and outcome", "kind", "outcome")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Record store operation latency in milliseconds", "operation")

	m.ingestMessages = m.counterVec("ingest_messages_total", "Ingested broker messages, by outcome", "outcome")
	m.ingestWorkerCount = m.gauge("ingest_worker_count", "Running ingest workers")
	m.ingestQueueSize = m.gauge("ingest_queue_size", "Messages fetched but not yet handled")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// UpdateTechniciansTotal sets the technician count.
func UpdateTechniciansTotal(count int) {
	globalManager.techniciansTotal.Set(float64(count))
}

// UpdateServiceRecordsTotal sets the service record count.
func UpdateServiceRecordsTotal(count int) {
	globalManager.serviceRecordsTotal.Set(float64(count))
}

// RecordServiceRecordAdded counts a stored record. source is "api", "ingest" or "seed".
func RecordServiceRecordAdded(source string) {
	globalManager.recordsAdded.WithLabelValues(source).Inc()
}

// RecordServiceRecordDuplicate counts a replayed submission.
func RecordServiceRecordDuplicate(source string) {
	globalManager.recordsDuplicate.WithLabelValues(source).Inc()
}

// RecordRankingComputed counts a ranking pass and its latency.
func RecordRankingComputed(sortKey string, latencyMs float64) {
	globalManager.rankingsComputed.WithLabelValues(sortKey).Inc()
	globalManager.rankingLatency.Observe(latencyMs)
}

// RecordTransfer counts an export, archive or import.
func RecordTransfer(kind, outcome string) {
	globalManager.transfers.WithLabelValues(kind, outcome).Inc()
}

// RecordStoreLatency records a store operation latency.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordIngestMessage counts a broker message by outcome.
func RecordIngestMessage(outcome string) {
	globalManager.ingestMessages.WithLabelValues(outcome).Inc()
}

// UpdateIngestWorkerCount sets the number of running ingest workers.
func UpdateIngestWorkerCount(count int) {
	globalManager.ingestWorkerCount.Set(float64(count))
}

// UpdateIngestQueueSize sets the ingest backlog.
func UpdateIngestQueueSize(size int) {
	globalManager.ingestQueueSize.Set(float64(size))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
