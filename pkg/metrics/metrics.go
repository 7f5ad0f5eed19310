package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace はtrustgateが公開するメトリクスの接頭辞。
const Namespace = "trustgate"

// unmatchedRoute はルートに一致しなかったリクエストのrouteラベル。
const unmatchedRoute = "unmatched"

// Metrics はtrustgateサーバーのPrometheusメトリクス。
// グローバルレジストリは使わず、インスタンスごとに専用のレジストリを持つ。
type Metrics struct {
	registry      *prometheus.Registry
	gateDecisions *prometheus.CounterVec
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New はMetricsを生成し、プロセスとGoランタイムのコレクターも登録する。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "gate_decisions_total",
			Help:      "Trusted header gate decisions by gate and outcome",
		}, []string{"gate", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		m.gateDecisions,
		m.requests,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordGateDecision はゲートの判定を1件数える。
func (m *Metrics) RecordGateDecision(gate, outcome string) {
	m.gateDecisions.WithLabelValues(gate, outcome).Inc()
}

// ObserveRequest はHTTPリクエストの件数とレイテンシを記録する。
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Middleware はリクエストごとにObserveRequestを呼ぶGinミドルウェアを返す。
// routeラベルにはURLではなくルートのパターンを使う。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Handler は/metrics用のHTTPハンドラーを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry は内部のレジストリを返す。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
