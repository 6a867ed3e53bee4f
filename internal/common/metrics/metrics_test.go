package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJournalOperations_Labels(t *testing.T) {
	JournalOperations.WithLabelValues("create", "success").Inc()
	JournalOperations.WithLabelValues("mark_failed", "error").Inc()

	counter := JournalOperations.WithLabelValues("create", "success")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

func TestJournalOperationDuration_Observe(t *testing.T) {
	JournalOperationDuration.WithLabelValues("create").Observe(0.01)

	histogram := JournalOperationDuration.WithLabelValues("create")
	if histogram == nil {
		t.Error("Expected histogram to be non-nil")
	}
}

func TestQueueStoreGroupDepth_Gauge(t *testing.T) {
	gauge := QueueStoreGroupDepth.WithLabelValues("group-1")
	gauge.Set(5)
	gauge.Inc()
	gauge.Dec()

	if gauge == nil {
		t.Error("Expected gauge to be non-nil")
	}
}

func TestQueueStoreActiveGroupsAndProcessingSize_Gauges(t *testing.T) {
	QueueStoreActiveGroups.Set(3)
	QueueStoreProcessingSize.Set(1)

	if testutil.ToFloat64(QueueStoreActiveGroups) != 3 {
		t.Errorf("QueueStoreActiveGroups = %v, want 3", testutil.ToFloat64(QueueStoreActiveGroups))
	}
}

func TestWorkerTasksProcessed_Labels(t *testing.T) {
	WorkerTasksProcessed.WithLabelValues("add_episode", "completed").Inc()
	WorkerTasksProcessed.WithLabelValues("add_episode", "failed").Inc()
	WorkerTasksProcessed.WithLabelValues("unknown_kind", "unknown_kind").Inc()

	counter := WorkerTasksProcessed.WithLabelValues("add_episode", "completed")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

func TestWorkerTaskDuration_Observe(t *testing.T) {
	WorkerTaskDuration.WithLabelValues("rebuild_communities").Observe(12.5)

	histogram := WorkerTaskDuration.WithLabelValues("rebuild_communities")
	if histogram == nil {
		t.Error("Expected histogram to be non-nil")
	}
}

func TestWorkerActiveWorkersAndPanicsRecovered(t *testing.T) {
	WorkerActiveWorkers.Set(4)
	WorkerActiveWorkers.Inc()
	WorkerActiveWorkers.Dec()

	WorkerPanicsRecovered.WithLabelValues("deduplicate_entities").Inc()

	if testutil.ToFloat64(WorkerPanicsRecovered.WithLabelValues("deduplicate_entities")) != 1 {
		t.Error("expected one recovered panic recorded")
	}
}

func TestRecoveryMetrics(t *testing.T) {
	RecoveryTasksRequeued.Add(2)
	RecoveryTickDuration.Observe(0.25)

	if testutil.ToFloat64(RecoveryTasksRequeued) < 2 {
		t.Error("expected RecoveryTasksRequeued to have been incremented")
	}
}

func TestProducerEnqueues_Labels(t *testing.T) {
	ProducerEnqueues.WithLabelValues("add_episode", "success").Inc()
	ProducerEnqueues.WithLabelValues("add_episode", "queue_error").Inc()

	counter := ProducerEnqueues.WithLabelValues("add_episode", "success")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

func TestControlOperations_Labels(t *testing.T) {
	ControlOperations.WithLabelValues("retry", "enqueued").Inc()
	ControlOperations.WithLabelValues("retry", "pending_only").Inc()
	ControlOperations.WithLabelValues("stop", "success").Inc()

	counter := ControlOperations.WithLabelValues("retry", "enqueued")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

func TestHTTPRequestsTotal_Labels(t *testing.T) {
	methods := []string{"GET", "POST"}
	paths := []string{"/api/tasks/episodes", "/api/tasks/recent"}
	statuses := []string{"200", "202", "400", "404", "500"}

	for _, method := range methods {
		for _, path := range paths {
			for _, status := range statuses {
				HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
			}
		}
	}

	counter := HTTPRequestsTotal.WithLabelValues("GET", "/api/tasks/recent", "200")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

func TestHTTPRequestDuration_Observe(t *testing.T) {
	HTTPRequestDuration.WithLabelValues("GET", "/api/tasks/recent").Observe(0.015)
	HTTPRequestDuration.WithLabelValues("POST", "/api/tasks/episodes").Observe(0.150)

	histogram := HTTPRequestDuration.WithLabelValues("GET", "/api/tasks/recent")
	if histogram == nil {
		t.Error("Expected histogram to be non-nil")
	}
}

func TestHTTPActiveConnections_Gauge(t *testing.T) {
	HTTPActiveConnections.Set(10)
	HTTPActiveConnections.Inc()
	HTTPActiveConnections.Dec()
	HTTPActiveConnections.Add(5)
	HTTPActiveConnections.Sub(3)

	desc := HTTPActiveConnections.Desc()
	if desc == nil {
		t.Error("Expected Desc to be non-nil")
	}
}

func TestGraphEngineRequests_Labels(t *testing.T) {
	GraphEngineRequests.WithLabelValues("AddEpisode", "success").Inc()
	GraphEngineRequests.WithLabelValues("AddEpisode", "error").Inc()

	counter := GraphEngineRequests.WithLabelValues("AddEpisode", "success")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

func TestGraphEngineRequestDuration_Observe(t *testing.T) {
	GraphEngineRequestDuration.WithLabelValues("MergeEntities").Observe(0.2)

	histogram := GraphEngineRequestDuration.WithLabelValues("MergeEntities")
	if histogram == nil {
		t.Error("Expected histogram to be non-nil")
	}
}

func TestGraphEngineCircuitBreakerConstants(t *testing.T) {
	if CircuitBreakerClosed != 0 {
		t.Errorf("Expected CircuitBreakerClosed=0, got %d", CircuitBreakerClosed)
	}
	if CircuitBreakerOpen != 1 {
		t.Errorf("Expected CircuitBreakerOpen=1, got %d", CircuitBreakerOpen)
	}
	if CircuitBreakerHalfOpen != 2 {
		t.Errorf("Expected CircuitBreakerHalfOpen=2, got %d", CircuitBreakerHalfOpen)
	}
}

func TestGraphEngineCircuitBreakerState_Values(t *testing.T) {
	gauge := GraphEngineCircuitBreakerState.WithLabelValues("http://graph-engine.local")

	gauge.Set(CircuitBreakerClosed)
	gauge.Set(CircuitBreakerOpen)
	gauge.Set(CircuitBreakerHalfOpen)

	if gauge == nil {
		t.Error("Expected gauge to be non-nil")
	}
}

func TestGraphEngineCircuitBreakerTrips_Counter(t *testing.T) {
	GraphEngineCircuitBreakerTrips.WithLabelValues("http://graph-engine.local").Inc()

	counter := GraphEngineCircuitBreakerTrips.WithLabelValues("http://graph-engine.local")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

func TestCounterValue(t *testing.T) {
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter",
	})

	reg.MustRegister(counter)
	counter.Add(5)

	val := testutil.ToFloat64(counter)
	if val != 5 {
		t.Errorf("Expected counter value 5, got %f", val)
	}

	counter.Inc()
	val = testutil.ToFloat64(counter)
	if val != 6 {
		t.Errorf("Expected counter value 6, got %f", val)
	}
}

func TestGaugeValue(t *testing.T) {
	reg := prometheus.NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "Test gauge",
	})

	reg.MustRegister(gauge)

	gauge.Set(100)
	if val := testutil.ToFloat64(gauge); val != 100 {
		t.Errorf("Expected gauge value 100, got %f", val)
	}

	gauge.Add(50)
	if val := testutil.ToFloat64(gauge); val != 150 {
		t.Errorf("Expected gauge value 150, got %f", val)
	}

	gauge.Sub(30)
	if val := testutil.ToFloat64(gauge); val != 120 {
		t.Errorf("Expected gauge value 120, got %f", val)
	}
}

func TestHistogramBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_histogram",
		Help:    "Test histogram",
		Buckets: []float64{0.1, 0.5, 1.0, 5.0},
	})

	reg.MustRegister(histogram)

	histogram.Observe(0.05)
	histogram.Observe(0.25)
	histogram.Observe(0.75)
	histogram.Observe(2.5)
	histogram.Observe(10.0)

	if histogram == nil {
		t.Error("Expected histogram to be non-nil")
	}
}

func BenchmarkCounterInc(b *testing.B) {
	counter := WorkerTasksProcessed.WithLabelValues("add_episode", "completed")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		counter.Inc()
	}
}

func BenchmarkHistogramObserve(b *testing.B) {
	histogram := WorkerTaskDuration.WithLabelValues("add_episode")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		histogram.Observe(0.123)
	}
}

func BenchmarkGaugeSet(b *testing.B) {
	gauge := WorkerActiveWorkers
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gauge.Set(float64(i))
	}
}
