// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pillowdl"

// Metrics holds all application metrics.
type Metrics struct {
	// Task metrics
	TasksCreated   prometheus.Counter
	TasksSucceeded prometheus.Counter
	TasksFailed    prometheus.Counter
	TaskDuration   prometheus.Histogram

	// Fetch metrics
	FetchesInProgress prometheus.Gauge
	DownloadBytes     prometheus.Counter

	// Storage metrics
	StoredTasks     prometheus.Gauge
	ErrorRecords    prometheus.Counter
	PartialsRemoved prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Proxy metrics
	ProxyRequestsTotal *prometheus.CounterVec
	ProxyFailures      *prometheus.CounterVec
	ProxiesAvailable   prometheus.Gauge

	// Downloader metrics
	DownloaderRequestsTotal *prometheus.CounterVec
	DownloaderErrors        *prometheus.CounterVec
}

// New creates all application metrics and registers them with reg.
// A nil reg creates unregistered metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	metrics := &Metrics{
		// Task metrics
		TasksCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "created_total",
			Help:      "Total number of download tasks created",
		}),
		TasksSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "succeeded_total",
			Help:      "Total number of tasks that wrote a file",
		}),
		TasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "failed_total",
			Help:      "Total number of tasks that ended with an error record",
		}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Histogram of task duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),

		// Fetch metrics
		FetchesInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "in_progress",
			Help:      "Number of download requests currently in flight",
		}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "bytes_total",
			Help:      "Total bytes written to disk",
		}),

		// Storage metrics
		StoredTasks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "tasks_current",
			Help:      "Current number of registered tasks",
		}),
		ErrorRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "error_records_total",
			Help:      "Total number of records appended to the error log",
		}),
		PartialsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "partials_removed_total",
			Help:      "Total number of partial files removed",
		}),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served by the status server",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		// Proxy metrics
		ProxyRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of requests made through proxies",
		}, []string{"proxy"}),
		ProxyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "failures_total",
			Help:      "Total number of proxy failures",
		}, []string{"proxy"}),
		ProxiesAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "available",
			Help:      "Number of currently available proxies",
		}),

		// Downloader metrics
		DownloaderRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloader",
			Name:      "requests_total",
			Help:      "Total number of download requests",
		}, []string{"downloader", "status"}),
		DownloaderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloader",
			Name:      "errors_total",
			Help:      "Total number of download errors",
		}, []string{"downloader", "error_type"}),
	}

	return metrics
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a Prometheus HTTP handler serving the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// TaskTimer returns a function to record task duration.
func (m *Metrics) TaskTimer() func() {
	start := time.Now()

	return func() {
		m.TaskDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTaskCreated increments the tasks created counter.
func (m *Metrics) RecordTaskCreated() {
	m.TasksCreated.Inc()
}

// RecordTaskSucceeded records a task that wrote its file.
func (m *Metrics) RecordTaskSucceeded() {
	m.TasksSucceeded.Inc()
}

// RecordTaskFailed records a task that ended with an error record.
func (m *Metrics) RecordTaskFailed() {
	m.TasksFailed.Inc()
}

// RecordFetchStarted marks a download request as in flight.
func (m *Metrics) RecordFetchStarted() {
	m.FetchesInProgress.Inc()
}

// RecordFetchFinished marks a download request as done.
func (m *Metrics) RecordFetchFinished() {
	m.FetchesInProgress.Dec()
}

// RecordBytes adds n written bytes.
func (m *Metrics) RecordBytes(n int64) {
	m.DownloadBytes.Add(float64(n))
}

// RecordErrorRecord counts an appended error record.
func (m *Metrics) RecordErrorRecord() {
	m.ErrorRecords.Inc()
}

// RecordPartialsRemoved counts removed partial files.
func (m *Metrics) RecordPartialsRemoved(n int) {
	m.PartialsRemoved.Add(float64(n))
}

// RecordDownloaderRequest records a download request.
func (m *Metrics) RecordDownloaderRequest(downloader, status string) {
	m.DownloaderRequestsTotal.WithLabelValues(downloader, status).Inc()
}

// RecordDownloaderError records a download error.
func (m *Metrics) RecordDownloaderError(downloader, errorType string) {
	m.DownloaderErrors.WithLabelValues(downloader, errorType).Inc()
}

// RecordProxyRequest records a proxy request.
func (m *Metrics) RecordProxyRequest(proxy string) {
	m.ProxyRequestsTotal.WithLabelValues(proxy).Inc()
}

// RecordProxyFailure records a proxy failure.
func (m *Metrics) RecordProxyFailure(proxy string) {
	m.ProxyFailures.WithLabelValues(proxy).Inc()
}

// SetProxiesAvailable sets the number of available proxies.
func (m *Metrics) SetProxiesAvailable(count int) {
	m.ProxiesAvailable.Set(float64(count))
}

// SetStoredTasks sets the number of registered tasks.
func (m *Metrics) SetStoredTasks(count int) {
	m.StoredTasks.Set(float64(count))
}
