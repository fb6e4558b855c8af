// Package metrics provides Prometheus metrics for the tally points engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ledger metrics
	taskEvents          *prometheus.CounterVec
	activitiesRecorded  *prometheus.CounterVec
	pointsAwarded       *prometheus.CounterVec
	bonusesAwarded      *prometheus.CounterVec
	duplicateEvents     prometheus.Counter
	ledgerConflicts     prometheus.Counter
	ledgerUpdateLatency prometheus.Histogram
	totalAccounts       prometheus.Gauge

	// Store metrics
	storeQueryLatency *prometheus.HistogramVec

	// Work queue metrics
	queueDepth    *prometheus.GaugeVec
	queueRejected *prometheus.CounterVec
	jobsProcessed *prometheus.CounterVec
	jobLatency    *prometheus.HistogramVec
	workersActive *prometheus.GaugeVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         *prometheus.CounterVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tally",
		subsystem:        "points",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.taskEvents = auto.NewCounterVec(
		m.counterOpts("task_events_total", "Task completion events applied to the points ledger"),
		[]string{"task_type"},
	)
	m.activitiesRecorded = auto.NewCounterVec(
		m.counterOpts("activities_recorded_total", "Activity records appended to the activity ledger"),
		[]string{"activity_type", "difficulty"},
	)
	m.pointsAwarded = auto.NewCounterVec(
		m.counterOpts("points_awarded_total", "Points awarded by source ledger"),
		[]string{"source"},
	)
	m.bonusesAwarded = auto.NewCounterVec(
		m.counterOpts("bonuses_awarded_total", "Bonuses awarded by kind"),
		[]string{"kind"},
	)
	m.duplicateEvents = auto.NewCounter(
		m.counterOpts("events_duplicate_total", "Task events dropped because their idempotency key was seen"),
	)
	m.ledgerConflicts = auto.NewCounter(
		m.counterOpts("ledger_conflicts_total", "Optimistic concurrency conflicts on account updates"),
	)
	m.ledgerUpdateLatency = auto.NewHistogram(
		m.histogramOpts("ledger_update_latency_milliseconds", "Latency of atomic account updates in milliseconds"),
	)
	m.totalAccounts = auto.NewGauge(
		m.gaugeOpts("accounts", "Number of points accounts"),
	)

	m.storeQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("store_query_latency_milliseconds", "Store read latency in milliseconds by operation"),
		[]string{"operation"},
	)

	m.queueDepth = auto.NewGaugeVec(
		m.gaugeOpts("queue_depth", "Jobs waiting in a work queue"),
		[]string{"queue"},
	)
	m.queueRejected = auto.NewCounterVec(
		m.counterOpts("queue_rejected_total", "Jobs refused by a work queue by reason"),
		[]string{"queue", "reason"},
	)
	m.jobsProcessed = auto.NewCounterVec(
		m.counterOpts("jobs_processed_total", "Jobs handled by a worker pool by outcome"),
		[]string{"pool", "outcome"},
	)
	m.jobLatency = auto.NewHistogramVec(
		m.histogramOpts("job_latency_milliseconds", "Job handling latency in milliseconds"),
		[]string{"pool"},
	)
	m.workersActive = auto.NewGaugeVec(
		m.gaugeOpts("workers_active", "Running workers of a pool"),
		[]string{"pool"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.rateLimited = auto.NewCounterVec(
		m.counterOpts("http_rate_limited_total", "Requests rejected by the rate limiter"),
		[]string{"endpoint"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// RecordTaskEvent counts one applied task event.
func RecordTaskEvent(taskType string) {
	globalManager.taskEvents.WithLabelValues(taskType).Inc()
}

// RecordActivity counts one appended activity record.
func RecordActivity(activityType, difficulty string) {
	globalManager.activitiesRecorded.WithLabelValues(activityType, difficulty).Inc()
}

// RecordPointsAwarded adds points to the awarded counter of a source ledger.
func RecordPointsAwarded(source string, points int64) {
	if points <= 0 {
		return
	}
	globalManager.pointsAwarded.WithLabelValues(source).Add(float64(points))
}

// RecordBonus counts one awarded bonus of the given kind.
func RecordBonus(kind string) {
	globalManager.bonusesAwarded.WithLabelValues(kind).Inc()
}

// RecordEventDuplicate counts a task event dropped by idempotency.
func RecordEventDuplicate() {
	globalManager.duplicateEvents.Inc()
}

// RecordLedgerConflict counts an optimistic concurrency conflict.
func RecordLedgerConflict() {
	globalManager.ledgerConflicts.Inc()
}

// RecordLedgerUpdateLatency observes an account update latency.
func RecordLedgerUpdateLatency(latencyMs float64) {
	globalManager.ledgerUpdateLatency.Observe(latencyMs)
}

// UpdateTotalAccounts sets the accounts gauge.
func UpdateTotalAccounts(count int) {
	globalManager.totalAccounts.Set(float64(count))
}

// RecordStoreQueryLatency observes a store read latency.
func RecordStoreQueryLatency(operation string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a request rejected by the limiter.
func RecordRateLimited(endpoint string) {
	globalManager.rateLimited.WithLabelValues(endpoint).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory usage in bytes.
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

// UpdateQueueDepth sets the number of jobs waiting in a queue.
func UpdateQueueDepth(queue string, depth int) {
	globalManager.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordQueueRejected counts a job a queue refused.
func RecordQueueRejected(queue, reason string) {
	globalManager.queueRejected.WithLabelValues(queue, reason).Inc()
}

// RecordJobProcessed counts a handled job and observes its latency.
func RecordJobProcessed(pool, outcome string, latencyMs float64) {
	globalManager.jobsProcessed.WithLabelValues(pool, outcome).Inc()
	globalManager.jobLatency.WithLabelValues(pool).Observe(latencyMs)
}

// UpdateWorkersActive sets the number of running workers of a pool.
func UpdateWorkersActive(pool string, n int) {
	globalManager.workersActive.WithLabelValues(pool).Set(float64(n))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
