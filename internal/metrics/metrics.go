// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	scrapeItemsTotal           *prometheus.CounterVec
	insertItemsTotal           *prometheus.CounterVec
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         *prometheus.HistogramVec
	archiveWritesTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "borsa_fetch_attempts_total",
				Help: "Page fetch attempts, labeled by site, HTTP code and backoff outcome.",
			},
			[]string{"site", "code", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "borsa_fetch_bytes_total",
				Help: "Total number of page bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		scrapeItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "borsa_scrape_items_total",
				Help: "Terminal scrape task outcomes, labeled by scraper and outcome.",
			},
			[]string{"scraper", "outcome"},
		)

		insertItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "borsa_insert_items_total",
				Help: "Persistence calls, labeled by operation and status.",
			},
			[]string{"operation", "status"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "borsa_runs_total",
				Help: "Completed harvest runs, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		runDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "borsa_run_duration_seconds",
				Help:    "Histogram of harvest run durations, labeled by kind.",
				Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600},
			},
			[]string{"kind"},
		)

		archiveWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "borsa_archive_writes_total",
				Help: "Raw page archive writes, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "borsa_active_workers",
				Help: "Number of run workers currently executing a run.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "borsa_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt. code is 0 for transport failures.
func ObserveFetch(site string, code int, outcome string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	fetchAttemptsTotal.WithLabelValues(sanitizedSite, strconv.Itoa(code), outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveScrape records the terminal outcome of one scrape task.
func ObserveScrape(scraper, outcome string) {
	Init()
	scrapeItemsTotal.WithLabelValues(scraper, outcome).Inc()
}

// ObserveInsert records one persistence call.
func ObserveInsert(operation string, ok bool) {
	Init()
	status := "ok"
	if !ok {
		status = "error"
	}
	insertItemsTotal.WithLabelValues(operation, status).Inc()
}

// ObserveRun records a finished run.
func ObserveRun(kind, status string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(kind, status).Inc()
	runDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveArchive records a raw page archive write.
func ObserveArchive(status string) {
	Init()
	archiveWritesTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
