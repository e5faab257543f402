package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface
// and the scheduling engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	optimizationRuns    prometheus.Counter
	optimizationChanges prometheus.Histogram
	scheduleChanges     *prometheus.CounterVec
	emailsSent          prometheus.Counter
	emailsFailed        prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	optimizationRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_optimization_runs_total",
		Help: "Total number of completed schedule optimization runs",
	})

	optimizationChanges := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_optimization_changes",
		Help:    "Number of changes applied per optimization run",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})

	scheduleChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_changes_total",
		Help: "Total schedule changes applied, by reason",
	}, []string{"reason"})

	emailsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reschedule_emails_sent_total",
		Help: "Total reschedule notification emails delivered",
	})

	emailsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reschedule_emails_failed_total",
		Help: "Total reschedule notification emails that failed to send",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration,
		optimizationRuns, optimizationChanges, scheduleChanges, emailsSent, emailsFailed, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		dbQueryDuration:     dbQueryDuration,
		optimizationRuns:    optimizationRuns,
		optimizationChanges: optimizationChanges,
		scheduleChanges:     scheduleChanges,
		emailsSent:          emailsSent,
		emailsFailed:        emailsFailed,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request rate and latency metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordOptimizationRun counts a completed optimization pass and the number of
// changes it applied.
func (m *MetricsService) RecordOptimizationRun(changes int) {
	if m == nil {
		return
	}
	m.optimizationRuns.Inc()
	m.optimizationChanges.Observe(float64(changes))
}

// RecordScheduleChange counts one applied change by its reason label.
func (m *MetricsService) RecordScheduleChange(reason string) {
	if m == nil {
		return
	}
	m.scheduleChanges.WithLabelValues(reason).Inc()
}

// RecordNotificationEmail counts a reschedule email outcome.
func (m *MetricsService) RecordNotificationEmail(sent bool) {
	if m == nil {
		return
	}
	if sent {
		m.emailsSent.Inc()
	} else {
		m.emailsFailed.Inc()
	}
}
