// Package metrics exposes Prometheus collectors for the document sync
// service.
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
	pagesVisitedTotal      *prometheus.CounterVec
	documentsFoundTotal    *prometheus.CounterVec
	documentsAcceptedTotal *prometheus.CounterVec
	documentsUploadedTotal *prometheus.CounterVec
	uploadFailuresTotal    prometheus.Counter
	jobsTotal              *prometheus.CounterVec
	jobDurationSeconds     prometheus.Histogram
	activeJobs             prometheus.Gauge

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesVisitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsync_pages_visited_total",
				Help: "Total number of pages fetched during crawls, labeled by site.",
			},
			[]string{"site"},
		)

		documentsFoundTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsync_documents_found_total",
				Help: "Total candidate documents discovered, labeled by site.",
			},
			[]string{"site"},
		)

		documentsAcceptedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsync_documents_accepted_total",
				Help: "Total documents accepted by the classifier, labeled by site.",
			},
			[]string{"site"},
		)

		documentsUploadedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsync_documents_uploaded_total",
				Help: "Total documents uploaded to the document library, labeled by site.",
			},
			[]string{"site"},
		)

		uploadFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "docsync_upload_failures_total",
				Help: "Total per-document upload attempts that failed and were skipped.",
			},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsync_jobs_total",
				Help: "Total number of jobs reaching a terminal status, labeled by status.",
			},
			[]string{"status"},
		)

		jobDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docsync_job_duration_seconds",
				Help:    "Histogram of wall-clock durations of finished jobs.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
			},
		)

		activeJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsync_active_jobs",
				Help: "Number of jobs currently running.",
			},
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
	return promhttp.Handler()
}

// ObserveCrawl records the page and document counts of a finished crawl.
func ObserveCrawl(site string, pagesVisited, documentsFound int) {
	sanitized := SanitizeSite(site)
	pagesVisitedTotal.WithLabelValues(sanitized).Add(float64(pagesVisited))
	documentsFoundTotal.WithLabelValues(sanitized).Add(float64(documentsFound))
}

// ObserveAccepted increments the accepted-documents counter.
func ObserveAccepted(site string) {
	documentsAcceptedTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveUploaded increments the uploaded-documents counter.
func ObserveUploaded(site string) {
	documentsUploadedTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveUploadFailure increments the skipped-upload counter.
func ObserveUploadFailure() {
	uploadFailuresTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob records a job reaching a terminal status.
func ObserveJob(status string, duration time.Duration) {
	jobsTotal.WithLabelValues(status).Inc()
	jobDurationSeconds.Observe(duration.Seconds())
}

// IncActiveJobs increments the running-jobs gauge.
func IncActiveJobs() {
	activeJobs.Inc()
}

// DecActiveJobs decrements the running-jobs gauge.
func DecActiveJobs() {
	activeJobs.Dec()
}
