package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Standard histogram buckets
var (
	// DurationBuckets: 100ms to 5min for operation durations
	DurationBuckets = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300}

	// APIBuckets: 100ms to 10s for HTTP request durations
	APIBuckets = []float64{0.1, 0.5, 1, 5, 10}
)

// Metrics holds the engine collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	OperationsTotal     *prometheus.CounterVec
	OperationsRunning   prometheus.Gauge
	OperationsQueued    prometheus.Gauge
	OperationDuration   *prometheus.HistogramVec
	BytesTransferred    prometheus.Counter
	StepFailures        *prometheus.CounterVec
	CrossDeviceFallback prometheus.Counter
	ConflictsRequested  prometheus.Counter
	TrashItems          *prometheus.CounterVec
	LogWriteFailures    prometheus.Counter
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileops_operations_total",
			Help: "Finished operations by type and terminal status",
		}, []string{"type", "status"}),
		OperationsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fileops_operations_running",
			Help: "Operations currently executing",
		}),
		OperationsQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fileops_operations_queued",
			Help: "Operations waiting for an executor slot",
		}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fileops_operation_duration_seconds",
			Help:    "Wall time from start to terminal status",
			Buckets: DurationBuckets,
		}, []string{"type"}),
		BytesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileops_bytes_transferred_total",
			Help: "Bytes written by copy and move steps",
		}),
		StepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileops_step_failures_total",
			Help: "Failed steps by error kind",
		}, []string{"kind"}),
		CrossDeviceFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileops_cross_device_fallbacks_total",
			Help: "Moves that fell back to copy and delete",
		}),
		ConflictsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileops_conflicts_requested_total",
			Help: "Steps suspended waiting for a conflict decision",
		}),
		TrashItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileops_trash_items_total",
			Help: "Trash actions by kind",
		}, []string{"action"}),
		LogWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileops_log_write_failures_total",
			Help: "Operation log appends that failed",
		}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fileops_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: APIBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.OperationsTotal,
		m.OperationsRunning,
		m.OperationsQueued,
		m.OperationDuration,
		m.BytesTransferred,
		m.StepFailures,
		m.CrossDeviceFallback,
		m.ConflictsRequested,
		m.TrashItems,
		m.LogWriteFailures,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OperationQueued() {
	if m == nil {
		return
	}
	m.OperationsQueued.Inc()
}

func (m *Metrics) OperationStarted() {
	if m == nil {
		return
	}
	m.OperationsQueued.Dec()
	m.OperationsRunning.Inc()
}

// OperationFinished records a terminal status. started is zero when the
// operation never left the queue.
func (m *Metrics) OperationFinished(opType string, status string, started time.Time) {
	if m == nil {
		return
	}
	if started.IsZero() {
		m.OperationsQueued.Dec()
	} else {
		m.OperationsRunning.Dec()
		m.OperationDuration.WithLabelValues(opType).Observe(time.Since(started).Seconds())
	}
	m.OperationsTotal.WithLabelValues(opType, status).Inc()
}

func (m *Metrics) AddBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesTransferred.Add(float64(n))
}

func (m *Metrics) StepFailed(kind string) {
	if m == nil {
		return
	}
	m.StepFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.CrossDeviceFallback.Inc()
}

func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.ConflictsRequested.Inc()
}

func (m *Metrics) Trash(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TrashItems.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) LogWriteFailed() {
	if m == nil {
		return
	}
	m.LogWriteFailures.Inc()
}

func (m *Metrics) ObserveHTTP(method string, route string, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
