// Package metrics exposes Prometheus collectors for the crawl and
// retrieval subsystems.
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
	crawlerPagesTotal         *prometheus.CounterVec
	crawlerPagesSkippedTotal  *prometheus.CounterVec
	crawlerFetchRetriesTotal  prometheus.Counter
	crawlerForbiddenHitsTotal prometheus.Counter
	crawlerJobsTotal          *prometheus.CounterVec
	crawlerActiveWorkers      prometheus.Gauge
	queueEnqueueErrorsTotal   prometheus.Counter
	retrievalQueriesTotal     *prometheus.CounterVec
	retrievalDurationSeconds  prometheus.Histogram
	pageCacheLookupsTotal     *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total pages crawled, labeled by site origin and status code.",
			},
			[]string{"site", "status"},
		)

		crawlerPagesSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_skipped_total",
				Help: "Total pages skipped after exhausting fetch retries, labeled by site origin.",
			},
			[]string{"site"},
		)

		crawlerFetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_fetch_retries_total",
				Help: "Total fetch attempts beyond the first.",
			},
		)

		crawlerForbiddenHitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_forbidden_hits_total",
				Help: "Total HTTP 403 responses, usually bot challenges.",
			},
		)

		crawlerJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_jobs_total",
				Help: "Total crawl jobs processed, labeled by terminal status.",
			},
			[]string{"status"},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		queueEnqueueErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "queue_enqueue_errors_total",
				Help: "Total crawl job enqueue failures (best-effort, non-blocking).",
			},
		)

		retrievalQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_queries_total",
				Help: "Total relevance queries, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		retrievalDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "retrieval_duration_seconds",
				Help:    "Histogram of relevance query latencies.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		pageCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "page_cache_lookups_total",
				Help: "Total page cache lookups, labeled by result.",
			},
			[]string{"result"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePageCrawled records one successfully crawled page.
func ObservePageCrawled(site string, statusCode int) {
	if crawlerPagesTotal == nil {
		return
	}
	crawlerPagesTotal.WithLabelValues(site, strconv.Itoa(statusCode)).Inc()
}

// ObservePageSkipped records a page dropped after exhausting retries.
func ObservePageSkipped(site string) {
	if crawlerPagesSkippedTotal == nil {
		return
	}
	crawlerPagesSkippedTotal.WithLabelValues(site).Inc()
}

// ObserveFetchRetry records one fetch retry.
func ObserveFetchRetry() {
	if crawlerFetchRetriesTotal == nil {
		return
	}
	crawlerFetchRetriesTotal.Inc()
}

// ObserveForbidden records an HTTP 403 response.
func ObserveForbidden() {
	if crawlerForbiddenHitsTotal == nil {
		return
	}
	crawlerForbiddenHitsTotal.Inc()
}

// ObserveJob records a job reaching the given terminal status.
func ObserveJob(status string) {
	if crawlerJobsTotal == nil {
		return
	}
	crawlerJobsTotal.WithLabelValues(status).Inc()
}

// WorkerStarted increments the active worker gauge.
func WorkerStarted() {
	if crawlerActiveWorkers == nil {
		return
	}
	crawlerActiveWorkers.Inc()
}

// WorkerFinished decrements the active worker gauge.
func WorkerFinished() {
	if crawlerActiveWorkers == nil {
		return
	}
	crawlerActiveWorkers.Dec()
}

// ObserveEnqueueError records a best-effort enqueue failure.
func ObserveEnqueueError() {
	if queueEnqueueErrorsTotal == nil {
		return
	}
	queueEnqueueErrorsTotal.Inc()
}

// ObserveRetrieval records one relevance query and its latency.
func ObserveRetrieval(outcome string, duration time.Duration) {
	if retrievalQueriesTotal == nil {
		return
	}
	retrievalQueriesTotal.WithLabelValues(outcome).Inc()
	retrievalDurationSeconds.Observe(duration.Seconds())
}

// ObserveCacheLookup records a page cache hit or miss.
func ObserveCacheLookup(hit bool) {
	if pageCacheLookupsTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	pageCacheLookupsTotal.WithLabelValues(result).Inc()
}
