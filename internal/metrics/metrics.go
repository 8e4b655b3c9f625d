// Package metrics exposes Prometheus collectors for the digest service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobRunsTotal           *prometheus.CounterVec
	jobRunDurationSeconds  *prometheus.HistogramVec
	recordsFetchedTotal    *prometheus.CounterVec
	recordsPublishedTotal  *prometheus.CounterVec
	summarizerCallsTotal   *prometheus.CounterVec
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDurationSec *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "choukan_job_runs_total",
				Help: "Total number of job runs, labeled by job and outcome status code.",
			},
			[]string{"job", "status"},
		)

		jobRunDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "choukan_job_run_duration_seconds",
				Help:    "Histogram of job run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"job"},
		)

		recordsFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "choukan_records_fetched_total",
				Help: "Total number of source records fetched, labeled by job.",
			},
			[]string{"job"},
		)

		recordsPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "choukan_records_published_total",
				Help: "Total number of rendered records published to a digest, labeled by job.",
			},
			[]string{"job"},
		)

		summarizerCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "choukan_summarizer_calls_total",
				Help: "Total number of summarizer calls, labeled by job and result.",
			},
			[]string{"job", "result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSec = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJobRun records the outcome and duration of one job run.
func ObserveJobRun(job string, status string, duration time.Duration) {
	if jobRunsTotal == nil {
		return
	}
	jobRunsTotal.WithLabelValues(job, status).Inc()
	jobRunDurationSeconds.WithLabelValues(job).Observe(duration.Seconds())
}

// AddRecordsFetched increments the fetched-record counter for a job.
func AddRecordsFetched(job string, n int) {
	if recordsFetchedTotal == nil || n <= 0 {
		return
	}
	recordsFetchedTotal.WithLabelValues(job).Add(float64(n))
}

// AddRecordsPublished increments the published-record counter for a job.
func AddRecordsPublished(job string, n int) {
	if recordsPublishedTotal == nil || n <= 0 {
		return
	}
	recordsPublishedTotal.WithLabelValues(job).Add(float64(n))
}

// ObserveSummarizerCall records one summarizer call outcome.
func ObserveSummarizerCall(job string, err error) {
	if summarizerCallsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	summarizerCallsTotal.WithLabelValues(job, result).Inc()
}

// ObserveHTTPRequest records an HTTP request for the middleware.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, statusClass(status)).Inc()
	httpRequestDurationSec.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
