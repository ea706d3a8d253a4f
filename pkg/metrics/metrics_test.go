package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveGather("cisco_ios", "l2_interfaces", "success", 4, "10.0.0.1")
	c.ObserveGather("cisco_ios", "l2_interfaces", "failed", 0, "10.0.0.2")
	c.ObserveDeviceDuration("cisco_ios", 300*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.GatherTotal.WithLabelValues("cisco_ios", "l2_interfaces", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GatherTotal.WithLabelValues("cisco_ios", "l2_interfaces", "failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.FactItems.WithLabelValues("10.0.0.1", "l2_interfaces")))
	// 失败时不更新条目数
	assert.Equal(t, 1, testutil.CollectAndCount(c.FactItems))
	assert.Equal(t, uint64(1), histogramSampleCount(t, reg, "l2collector_gather_duration_seconds"))
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)
	assert.Same(t, first.GatherTotal, second.GatherTotal)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveGather("cisco_ios", "l2_interfaces", "success", 1, "10.0.0.1")
	c.ObserveDeviceDuration("cisco_ios", time.Second)
	c.SetPoolStats(map[string]int{"active_connections": 1})
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)
	c.SetPoolStats(map[string]int{"active_connections": 2, "idle_connections": 3})

	r := gin.New()
	r.Use(c.GinMiddleware())
	r.GET("/ping", func(ctx *gin.Context) { ctx.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(c.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/ping", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `l2collector_ssh_connections{state="idle"} 3`), body)
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()
	mfs, err := gatherer.Gather()
	require.NoError(t, err)
	var total uint64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			total += histogram(m).GetSampleCount()
		}
	}
	return total
}

func histogram(m *dto.Metric) *dto.Histogram {
	return m.GetHistogram()
}
