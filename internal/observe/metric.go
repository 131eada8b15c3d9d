// Package observe 暴露 Prometheus 指标
package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	CatalogRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opalbridge_catalog_requests_total",
		Help: "发往 Opal REST 的请求数",
	}, []string{"resource", "code"})

	catalogRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opalbridge_catalog_request_duration_seconds",
		Help:    "Opal REST 请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource"})

	PagesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opalbridge_value_set_pages_fetched_total",
		Help: "已获取的值集分页数",
	})

	RowsIterated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opalbridge_cursor_rows_total",
		Help: "游标已前进的行数",
	})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opalbridge_http_request_duration_seconds",
		Help:    "网关 HTTP 请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(CatalogRequests, catalogRequestDuration, PagesFetched, RowsIterated, httpRequestDuration)
}

// ObserveCatalogRequest 记录一次目录请求
func ObserveCatalogRequest(resource string, code int, elapsed time.Duration) {
	CatalogRequests.WithLabelValues(resource, strconv.Itoa(code)).Inc()
	catalogRequestDuration.WithLabelValues(resource).Observe(elapsed.Seconds())
}

// PrometheusMiddleware 记录每个 HTTP 请求的耗时
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }
