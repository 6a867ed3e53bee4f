package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Journal metrics

	// JournalOperations tracks Journal repository calls, labeled by
	// operation (create, mark_processing, mark_completed, ...) and
	// result (success, error) — populated via repository.Instrument,
	// not written to directly by journal callers.
	JournalOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orchestrator",
			Subsystem: "journal",
			Name:      "operations_total",
			Help:      "Total Task Journal repository calls",
		},
		[]string{"operation", "result"},
	)

	// JournalOperationDuration tracks Journal repository call latency.
	JournalOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "orchestrator",
			Subsystem: "journal",
			Name:      "operation_duration_seconds",
			Help:      "Time to execute a Task Journal repository call",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Queue Store metrics

	// QueueStoreGroupDepth tracks per-group pending envelope count,
	// sampled on demand (not continuously, to avoid an LLEN per group
	// per scrape); updated by control.Operations.GroupQueueDepth calls.
	QueueStoreGroupDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "orchestrator",
			Subsystem: "queuestore",
			Name:      "group_depth",
			Help:      "Pending envelope count for a sampled group",
		},
		[]string{"group_id"},
	)

	// QueueStoreActiveGroups tracks the size of the active-groups set.
	QueueStoreActiveGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "orchestrator",
			Subsystem: "queuestore",
			Name:      "active_groups",
			Help:      "Number of groups currently in the active-groups set",
		},
	)

	// QueueStoreProcessingSize tracks the global processing list length.
	QueueStoreProcessingSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "orchestrator",
			Subsystem: "queuestore",
			Name:      "processing_size",
			Help:      "Number of envelopes currently in the global processing list",
		},
	)

	// Worker Pool metrics

	// WorkerTasksProcessed tracks tasks a worker pool has finished,
	// labeled by kind and outcome (completed, failed, unknown_kind).
	WorkerTasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orchestrator",
			Subsystem: "worker",
			Name:      "tasks_processed_total",
			Help:      "Total tasks processed by the worker pool",
		},
		[]string{"kind", "outcome"},
	)

	// WorkerTaskDuration tracks handler execution duration by kind.
	WorkerTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "orchestrator",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Time spent inside a handler's Process call",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 600, 1800, 3600},
		},
		[]string{"kind"},
	)

	// WorkerActiveWorkers tracks how many worker goroutines are
	// currently holding a group lock and running a handler.
	WorkerActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "orchestrator",
			Subsystem: "worker",
			Name:      "active_workers",
			Help:      "Number of workers currently executing a handler",
		},
	)

	// WorkerPanicsRecovered tracks handler panics caught by the pool.
	WorkerPanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orchestrator",
			Subsystem: "worker",
			Name:      "panics_recovered_total",
			Help:      "Total handler panics recovered by the worker pool",
		},
		[]string{"kind"},
	)

	// Recovery Loop metrics

	// RecoveryTasksRequeued tracks tasks Recovery moved back to PENDING
	// after their handler timeout elapsed.
	RecoveryTasksRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orchestrator",
			Subsystem: "recovery",
			Name:      "tasks_requeued_total",
			Help:      "Total tasks requeued by the recovery loop after timeout",
		},
	)

	// RecoveryTickDuration tracks one recovery tick's wall time.
	RecoveryTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "orchestrator",
			Subsystem: "recovery",
			Name:      "tick_duration_seconds",
			Help:      "Time to complete one recovery loop tick",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Producer metrics

	// ProducerEnqueues tracks enqueue attempts, labeled by kind and
	// result (success, journal_error, queue_error).
	ProducerEnqueues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orchestrator",
			Subsystem: "producer",
			Name:      "enqueues_total",
			Help:      "Total task enqueue attempts",
		},
		[]string{"kind", "result"},
	)

	// Control Operations metrics

	// ControlOperations tracks retry/stop/cancel calls, labeled by
	// operation and result.
	ControlOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orchestrator",
			Subsystem: "control",
			Name:      "operations_total",
			Help:      "Total control-plane operations (retry, stop, cancel)",
		},
		[]string{"operation", "result"},
	)

	// HTTP API metrics

	// HTTPRequestsTotal tracks HTTP API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orchestrator",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP API requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP API request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "orchestrator",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP API request duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPActiveConnections tracks active HTTP connections.
	HTTPActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "orchestrator",
			Subsystem: "http",
			Name:      "active_connections",
			Help:      "Number of active HTTP connections",
		},
	)

	// Graph Engine client metrics

	// GraphEngineRequests tracks graphenginehttp.Client calls, labeled
	// by method and result (success, error, circuit_open).
	GraphEngineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orchestrator",
			Subsystem: "graphengine",
			Name:      "requests_total",
			Help:      "Total Graph Engine collaborator calls",
		},
		[]string{"method", "result"},
	)

	// GraphEngineRequestDuration tracks Graph Engine call latency.
	GraphEngineRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "orchestrator",
			Subsystem: "graphengine",
			Name:      "request_duration_seconds",
			Help:      "Time to execute a Graph Engine collaborator call",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// GraphEngineCircuitBreakerState tracks the graph engine HTTP
	// client's circuit breaker state (see CircuitBreakerClosed/Open/
	// HalfOpen), labeled by base URL.
	GraphEngineCircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "orchestrator",
			Subsystem: "graphengine",
			Name:      "circuit_breaker_state",
			Help:      "Graph Engine client circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"target"},
	)

	// GraphEngineCircuitBreakerTrips counts transitions into the open
	// state.
	GraphEngineCircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orchestrator",
			Subsystem: "graphengine",
			Name:      "circuit_breaker_trips_total",
			Help:      "Total Graph Engine client circuit breaker trips",
		},
		[]string{"target"},
	)
)

// Circuit breaker state values, shared by every gauge that reports a
// gobreaker.State (see GraphEngineCircuitBreakerState).
const (
	CircuitBreakerClosed   = 0
	CircuitBreakerOpen     = 1
	CircuitBreakerHalfOpen = 2
)
