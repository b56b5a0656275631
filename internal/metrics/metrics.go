// Package metrics exposes Prometheus collectors for the crawl worker.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	archiveBlobsTotal          *prometheus.CounterVec
	stepsTotal                 *prometheus.CounterVec
	nextRequestsTotal          *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govscout_fetches_total",
				Help: "Total number of portal fetches, labeled by method and status code.",
			},
			[]string{"method", "code"},
		)

		archiveBlobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govscout_archive_blobs_total",
				Help: "Archived response bodies, labeled by whether the blob was uploaded or reused.",
			},
			[]string{"result"},
		)

		stepsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govscout_steps_total",
				Help: "Crawl steps processed, labeled by operation and status.",
			},
			[]string{"operation", "status"},
		)

		nextRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govscout_next_requests_total",
				Help: "Follow-up crawl steps emitted, labeled by operation.",
			},
			[]string{"operation"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "govscout_rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting on the per-host request limiter.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of admin HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of admin HTTP request latencies, labeled by method and route.",
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

// ObserveFetch counts one completed portal exchange.
func ObserveFetch(method string, code int) {
	Init()
	fetchesTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// ObserveArchiveBlob counts an archived body as "uploaded" or "reused".
func ObserveArchiveBlob(result string) {
	Init()
	archiveBlobsTotal.WithLabelValues(result).Inc()
}

// ObserveStep counts one dispatched step.
func ObserveStep(operation, status string) {
	Init()
	stepsTotal.WithLabelValues(operation, status).Inc()
}

// ObserveNextRequests counts follow-up steps for an operation.
func ObserveNextRequests(operation string, n int) {
	Init()
	if n > 0 {
		nextRequestsTotal.WithLabelValues(operation).Add(float64(n))
	}
}

// ObserveRateLimitDelay records a wait imposed by the request limiter.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveHTTPRequest increments the admin HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
