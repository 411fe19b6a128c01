package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, collector prometheus.Collector) float64 {
	t.Helper()

	ch := make(chan prometheus.Metric, 1)
	collector.Collect(ch)
	var pb dto.Metric
	require.NoError(t, (<-ch).Write(&pb))
	if pb.Counter != nil {
		return pb.GetCounter().GetValue()
	}
	return pb.GetGauge().GetValue()
}

func TestMetricsLifecycle(t *testing.T) {
	t.Parallel()

	m := New()
	m.OperationQueued()
	require.Equal(t, 1.0, value(t, m.OperationsQueued))

	started := time.Now()
	m.OperationStarted()
	require.Equal(t, 0.0, value(t, m.OperationsQueued))
	require.Equal(t, 1.0, value(t, m.OperationsRunning))

	m.AddBytes(2048)
	m.Fallback()
	m.StepFailed("permission_denied")
	m.OperationFinished("move", "failed", started)

	require.Equal(t, 0.0, value(t, m.OperationsRunning))
	require.Equal(t, 2048.0, value(t, m.BytesTransferred))
	require.Equal(t, 1.0, value(t, m.CrossDeviceFallback))
	require.Equal(t, 1.0, value(t, m.StepFailures.WithLabelValues("permission_denied")))
	require.Equal(t, 1.0, value(t, m.OperationsTotal.WithLabelValues("move", "failed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.OperationQueued()
	m.AddBytes(10)
	m.LogWriteFailed()
	require.Nil(t, m.Registry())
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()

	m := New()
	m.Conflict()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "fileops_conflicts_requested_total 1")
}
