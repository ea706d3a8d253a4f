package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 采集器的 Prometheus 指标集合
type Collector struct {
	gatherer prometheus.Gatherer

	GatherTotal    *prometheus.CounterVec
	GatherDuration *prometheus.HistogramVec
	FactItems      *prometheus.GaugeVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	SSHConnections *prometheus.GaugeVec
}

// New 在 reg 上注册指标，reg 为 nil 时使用全局注册表
// 重复注册同名指标时复用已存在的收集器
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	gatherTotal, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "l2collector_gather_total",
		Help: "Fact gathers per platform, resource and status.",
	}, []string{"platform", "resource", "status"}), "l2collector_gather_total")
	if err != nil {
		return nil, err
	}
	gatherDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "l2collector_gather_duration_seconds",
		Help:    "Per-device fact gather latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"platform"}), "l2collector_gather_duration_seconds")
	if err != nil {
		return nil, err
	}
	items, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "l2collector_fact_items",
		Help: "Number of items in the latest facts of a device resource.",
	}, []string{"device_ip", "resource"}), "l2collector_fact_items")
	if err != nil {
		return nil, err
	}
	httpRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "l2collector_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"}), "l2collector_http_requests_total")
	if err != nil {
		return nil, err
	}
	httpDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "l2collector_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"}), "l2collector_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}
	sshConns, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "l2collector_ssh_connections",
		Help: "SSH pool connections by state.",
	}, []string{"state"}), "l2collector_ssh_connections")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		GatherTotal:    gatherTotal,
		GatherDuration: gatherDuration,
		FactItems:      items,
		HTTPRequests:   httpRequests,
		HTTPDuration:   httpDuration,
		SSHConnections: sshConns,
	}, nil
}

// ObserveGather 记录一次设备资源采集
func (c *Collector) ObserveGather(platform, resource, status string, items int, deviceIP string) {
	if c == nil {
		return
	}
	c.GatherTotal.WithLabelValues(platform, resource, status).Inc()
	if deviceIP != "" && status == "success" {
		c.FactItems.WithLabelValues(deviceIP, resource).Set(float64(items))
	}
}

// ObserveDeviceDuration 记录单台设备采集耗时
func (c *Collector) ObserveDeviceDuration(platform string, d time.Duration) {
	if c == nil {
		return
	}
	c.GatherDuration.WithLabelValues(platform).Observe(d.Seconds())
}

// SetPoolStats 同步 SSH 连接池统计
func (c *Collector) SetPoolStats(stats map[string]int) {
	if c == nil {
		return
	}
	c.SSHConnections.WithLabelValues("active").Set(float64(stats["active_connections"]))
	c.SSHConnections.WithLabelValues("idle").Set(float64(stats["idle_connections"]))
}

// GinMiddleware 记录请求数与耗时；未匹配路由记为 "unmatched"
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		if c == nil {
			return
		}
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.HTTPRequests.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 处理器
func (c *Collector) Handler() http.Handler {
	var gatherer prometheus.Gatherer
	if c != nil {
		gatherer = c.gatherer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
