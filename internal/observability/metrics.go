package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API, scheduler, and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	batchTransitionsTotal *prometheus.CounterVec
	otpVerificationsTotal *prometheus.CounterVec
	staleEscalationsTotal prometheus.Counter
	jobsPublishedTotal    *prometheus.CounterVec
	jobsProcessedTotal    *prometheus.CounterVec
	jobHandleDuration     *prometheus.HistogramVec
	workerInflight        *prometheus.GaugeVec
	tickDuration          prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "batch_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "batch_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "batch_engine",
				Name:      "batch_transitions_total",
				Help:      "Total number of batch state transitions by target state and trigger.",
			},
			[]string{"to", "trigger"},
		),
		otpVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "batch_engine",
				Name:      "otp_verifications_total",
				Help:      "Total number of delivery code verification attempts by result.",
			},
			[]string{"result"},
		),
		staleEscalationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "batch_engine",
				Name:      "stale_escalations_total",
				Help:      "Total number of stale-batch escalation notifications enqueued.",
			},
		),
		jobsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "batch_engine",
				Name:      "jobs_published_total",
				Help:      "Total number of jobs published by queue.",
			},
			[]string{"queue"},
		),
		jobsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "batch_engine",
				Name:      "jobs_processed_total",
				Help:      "Total number of consumed jobs by queue and result.",
			},
			[]string{"queue", "result"},
		),
		jobHandleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "batch_engine",
				Name:      "job_handle_duration_seconds",
				Help:      "Job handler duration in seconds grouped by queue.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"queue"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "batch_engine",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight job handlers grouped by queue.",
			},
			[]string{"queue"},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "batch_engine",
				Name:      "tick_duration_seconds",
				Help:      "Lifecycle scheduler tick duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchTransitionsTotal,
		m.otpVerificationsTotal,
		m.staleEscalationsTotal,
		m.jobsPublishedTotal,
		m.jobsProcessedTotal,
		m.jobHandleDuration,
		m.workerInflight,
		m.tickDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncBatchTransition(to string, trigger string) {
	if m == nil {
		return
	}
	m.batchTransitionsTotal.WithLabelValues(normalizeLabel(to), normalizeLabel(trigger)).Inc()
}

func (m *Metrics) IncOTPVerification(result string) {
	if m == nil {
		return
	}
	m.otpVerificationsTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncStaleEscalation() {
	if m == nil {
		return
	}
	m.staleEscalationsTotal.Inc()
}

func (m *Metrics) IncJobPublished(queue string) {
	if m == nil {
		return
	}
	m.jobsPublishedTotal.WithLabelValues(normalizeLabel(queue)).Inc()
}

func (m *Metrics) IncJobProcessed(queue string, result string) {
	if m == nil {
		return
	}
	m.jobsProcessedTotal.WithLabelValues(normalizeLabel(queue), normalizeLabel(result)).Inc()
}

func (m *Metrics) ObserveJobHandleDuration(queue string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.jobHandleDuration.WithLabelValues(normalizeLabel(queue)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(queue string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(queue)).Inc()
}

func (m *Metrics) DecWorkerInFlight(queue string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(queue)).Dec()
}

func (m *Metrics) ObserveTickDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.tickDuration.Observe(seconds)
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
