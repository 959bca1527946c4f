package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Collector SCM流程指标，使用独立 registry
type Collector struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	quantities  *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	requests    *prometheus.HistogramVec
}

// NewCollector 创建并注册全部指标
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "scm"
	}
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_transitions_total",
				Help:      "Document status transitions",
			},
			[]string{"entity", "from", "to"},
		),
		quantities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quantity_total",
				Help:      "Quantity moved through each workflow stage",
			},
			[]string{"stage"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Operations rejected by workflow rules",
			},
			[]string{"operation", "kind"},
		),
		requests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	registry.MustRegister(c.transitions, c.quantities, c.rejections, c.requests)
	return c
}

// Transition 记录状态变更
func (c *Collector) Transition(entityType, from, to string) {
	if from == "" {
		from = "NEW"
	}
	if to == "" {
		to = "DELETED"
	}
	c.transitions.WithLabelValues(entityType, from, to).Inc()
}

// Quantity 累计各环节数量（received/accepted/rejected/stored/dispatched）
func (c *Collector) Quantity(stage string, qty decimal.Decimal) {
	if !qty.IsPositive() {
		return
	}
	c.quantities.WithLabelValues(stage).Add(qty.InexactFloat64())
}

// Rejected 记录业务拒绝
func (c *Collector) Rejected(operation, kind string) {
	c.rejections.WithLabelValues(operation, kind).Inc()
}

// Middleware 记录请求耗时，route 使用路由模板避免基数膨胀
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.requests.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry 供测试读取
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
