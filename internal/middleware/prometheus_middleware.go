package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMiddleware считает HTTP-запросы REST API.
//
//	mw := middleware.NewPrometheusMiddleware("blockguard", reg)
//	r.Use(mw.Handler())
//	mw.RegisterMetricsEndpoint(r, reg)
//
// Метрики:
// * http_request_duration_seconds{method,path,status} — histogram
// * http_requests_inflight — gauge
// * http_request_errors_total{method,path,status} — counter (4xx/5xx)
// * bridge_requests_total{category,status}: запросы моста хоста по категориям событий
//
// Долгие соединения (поток событий) не попадают в гистограмму длительности.
type PrometheusMiddleware struct {
	reqDuration    *prometheus.HistogramVec
	reqInflight    prometheus.Gauge
	reqErrors      *prometheus.CounterVec
	bridgeRequests *prometheus.CounterVec
	longLived      map[string]bool
}

// NewPrometheusMiddleware создаёт middleware; при reg == nil метрики не регистрируются
func NewPrometheusMiddleware(namespace string, reg prometheus.Registerer, longLived ...string) *PrometheusMiddleware {
	pm := &PrometheusMiddleware{
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"method", "path", "status"}),
		reqInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "Текущее количество обрабатываемых HTTP-запросов.",
		}),
		reqErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "Запросы, завершившиеся ошибкой (4xx/5xx).",
		}, []string{"method", "path", "status"}),
		bridgeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_requests_total",
			Help:      "Запросы моста хоста по категориям событий.",
		}, []string{"category", "status"}),
		longLived: make(map[string]bool, len(longLived)),
	}
	for _, path := range longLived {
		pm.longLived[path] = true
	}

	if reg != nil {
		reg.MustRegister(pm.reqDuration, pm.reqInflight, pm.reqErrors, pm.bridgeRequests)
	}
	return pm
}

// Handler возвращает gin.HandlerFunc для router.Use()
func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		pm.reqInflight.Inc()
		defer pm.reqInflight.Dec()

		c.Next()

		code := c.Writer.Status()
		status := strconv.Itoa(code)
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched" // произвольные URL не раздувают кардинальность
		}

		if !pm.longLived[path] {
			pm.reqDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		}
		if code >= 400 {
			pm.reqErrors.WithLabelValues(method, path, status).Inc()
		}
		// Категория берётся только с сопоставленного маршрута моста
		if category := c.Param("category"); category != "" {
			pm.bridgeRequests.WithLabelValues(category, status).Inc()
		}
	}
}

// RegisterMetricsEndpoint добавляет GET /metrics; nil g означает DefaultGatherer
func (pm *PrometheusMiddleware) RegisterMetricsEndpoint(r gin.IRoutes, g prometheus.Gatherer) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
