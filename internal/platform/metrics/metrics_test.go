package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveCompute(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveCompute("SMA", 2*time.Millisecond, 11)
	m.ObserveCompute("SMA", time.Millisecond, 1)
	m.ObserveCompute("MAX", time.Millisecond, 4)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.PointsTotal.WithLabelValues("SMA")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.PointsTotal.WithLabelValues("MAX")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ComputeDur))
}

func TestMetrics_ObserveStore(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveStore("upsert", time.Millisecond, nil)
	m.ObserveStore("upsert", time.Millisecond, errors.New("boom"))
	m.ObserveStore("query latest", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFailures.WithLabelValues("upsert")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StoreFailures.WithLabelValues("query latest")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCompute("SMA", time.Millisecond, 1)
		m.ObserveStore("upsert", time.Millisecond, nil)
	})
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveCompute("SMA", time.Millisecond, 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `indicator_points_computed_total{kind="SMA"} 3`)
}
