// Package metrics exposes Prometheus collectors for the sitemap archiver.
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
	archiverSitemapsTotal         *prometheus.CounterVec
	archiverPagesTotal            *prometheus.CounterVec
	archiverBytesTotal            *prometheus.CounterVec
	archiverUploadsTotal          *prometheus.CounterVec
	archiverFoldersCreatedTotal   prometheus.Counter
	archiverActiveWorkers         prometheus.Gauge
	archiverRateLimitDelaySeconds *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		archiverSitemapsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_sitemaps_total",
				Help: "Total number of sitemap documents processed, labeled by kind.",
			},
			[]string{"kind"},
		)

		archiverPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_pages_total",
				Help: "Total number of pages processed, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		archiverBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_bytes_total",
				Help: "Total number of page bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		archiverUploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_uploads_total",
				Help: "Total number of artifact uploads, labeled by artifact kind and result.",
			},
			[]string{"artifact", "result"},
		)

		archiverFoldersCreatedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "archiver_folders_created_total",
				Help: "Total number of remote folders created.",
			},
		)

		archiverActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "archiver_active_workers",
				Help: "Number of workers currently processing a task.",
			},
		)

		archiverRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archiver_rate_limit_delays_seconds",
				Help:    "Histogram of politeness wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// ObserveSitemap counts a processed sitemap document of the given kind.
func ObserveSitemap(kind string) {
	Init()
	archiverSitemapsTotal.WithLabelValues(kind).Inc()
}

// ObservePage counts a processed page and the bytes fetched for it.
func ObservePage(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	archiverPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		archiverBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveUpload counts an artifact upload attempt.
func ObserveUpload(artifact, result string) {
	Init()
	archiverUploadsTotal.WithLabelValues(artifact, result).Inc()
}

// ObserveFolderCreated counts a newly created remote folder.
func ObserveFolderCreated() {
	Init()
	archiverFoldersCreatedTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	archiverActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	archiverActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	archiverRateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
