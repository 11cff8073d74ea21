package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fitshare/fitness-api/internal/config"
)

type Metrics struct {
	registry    *prometheus.Registry
	httpReqCnt  *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	httpInfl    *prometheus.GaugeVec
	taskCnt     *prometheus.CounterVec
	taskDur     *prometheus.HistogramVec
	taskInfl    *prometheus.GaugeVec
	quotaDenied *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	taskCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "tasks_processed_total"}, []string{"task", "status"})
	taskDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "task_duration_seconds", Buckets: buckets}, []string{"task", "status"})
	taskInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "tasks_inflight"}, []string{"task"})
	r.MustRegister(taskCnt, taskDur, taskInfl)

	quotaDenied := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "quota_denied_total"}, []string{"resource"})
	r.MustRegister(quotaDenied)

	return &Metrics{
		registry:    r,
		httpReqCnt:  httpReqCnt,
		httpDur:     httpDur,
		httpInfl:    httpInfl,
		taskCnt:     taskCnt,
		taskDur:     taskDur,
		taskInfl:    taskInfl,
		quotaDenied: quotaDenied,
	}
}

// TaskStart and TaskDone make Metrics a queue.Observer.
func (m *Metrics) TaskStart(task string) {
	m.taskInfl.WithLabelValues(task).Inc()
}

func (m *Metrics) TaskDone(task string, since time.Time, status string) {
	m.taskCnt.WithLabelValues(task, status).Inc()
	m.taskDur.WithLabelValues(task, status).Observe(time.Since(since).Seconds())
	m.taskInfl.WithLabelValues(task).Dec()
}

// QuotaDenied counts a create rejected by a plan ceiling.
func (m *Metrics) QuotaDenied(resource string) {
	m.quotaDenied.WithLabelValues(resource).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
