// Package metrics provides Prometheus metrics for the roofline service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the roofline service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Reconciliation
	estimates           *prometheus.CounterVec
	reconcileLatency    prometheus.Histogram
	zoomFetches         *prometheus.CounterVec
	visionAnalyses      *prometheus.CounterVec
	collaboratorLatency *prometheus.HistogramVec

	// Cache
	cacheLookups     *prometheus.CounterVec
	cacheWriteErrors *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Batch jobs
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueUtilization        prometheus.Gauge
	queueEnqueue            prometheus.Counter
	queueDequeue            prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	jobs                    *prometheus.CounterVec
	jobsDuplicate           prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "roofline",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 45000},
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.estimates = m.counterVec("estimates_total", "Roof estimates returned by method and confidence", "method", "confidence")
	m.reconcileLatency = m.histogram("reconcile_latency_milliseconds", "End-to-end reconciliation latency in milliseconds")
	m.zoomFetches = m.counterVec("zoom_fetches_total", "Satellite image fetches by zoom level and result", "zoom", "result")
	m.visionAnalyses = m.counterVec("vision_analyses_total", "Vision analyses by result", "result")
	m.collaboratorLatency = m.histogramVec("collaborator_latency_milliseconds", "Outbound call latency in milliseconds", "collaborator")

	m.cacheLookups = m.counterVec("cache_lookups_total", "Cache lookups by tier and result", "tier", "result")
	m.cacheWriteErrors = m.counterVec("cache_write_errors_total", "Swallowed cache write failures by tier", "tier")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Current size of the batch item queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum batch item queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of batch items enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of batch items dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.jobs = m.counterVec("jobs_total", "Batch jobs by final status", "status")
	m.jobsDuplicate = m.counter("jobs_duplicate_total", "Batch submissions rejected as duplicates")
	m.workerCount = m.gauge("worker_count", "Current number of batch workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Per-item worker processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed batch items")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordEstimate counts a returned estimate.
func RecordEstimate(method, confidence string) {
	globalManager.estimates.WithLabelValues(method, confidence).Inc()
}

// RecordReconcileLatency records reconciliation latency in milliseconds.
func RecordReconcileLatency(latencyMs float64) {
	globalManager.reconcileLatency.Observe(latencyMs)
}

// RecordZoomFetch counts an image fetch at zoom with result ok, retry or error.
func RecordZoomFetch(zoom int, result string) {
	globalManager.zoomFetches.WithLabelValues(strconv.Itoa(zoom), result).Inc()
}

// RecordVisionAnalysis counts a vision analysis by result.
func RecordVisionAnalysis(result string) {
	globalManager.visionAnalyses.WithLabelValues(result).Inc()
}

// RecordCollaboratorLatency records outbound call latency.
func RecordCollaboratorLatency(collaborator string, latencyMs float64) {
	globalManager.collaboratorLatency.WithLabelValues(collaborator).Observe(latencyMs)
}

// RecordCacheLookup counts a lookup on tier with result hit, miss or expired.
func RecordCacheLookup(tier, result string) {
	globalManager.cacheLookups.WithLabelValues(tier, result).Inc()
}

// RecordCacheWriteError counts a swallowed write failure.
func RecordCacheWriteError(tier string) {
	globalManager.cacheWriteErrors.WithLabelValues(tier).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordJob counts a job reaching a final status.
func RecordJob(status string) {
	globalManager.jobs.WithLabelValues(status).Inc()
}

// RecordJobDuplicate counts a duplicate job submission.
func RecordJobDuplicate() {
	globalManager.jobsDuplicate.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
