// Package metrics exposes Prometheus collectors for the catalog service.
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
	documentsTotal             *prometheus.CounterVec
	documentDurationSeconds    prometheus.Histogram
	versionsTotal              *prometheus.CounterVec
	extractionTierTotal        *prometheus.CounterVec
	groupsTotal                *prometheus.CounterVec
	articlesPersistedTotal     *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	headlessPromotionsTotal    prometheus.Counter

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_documents_total",
				Help: "Documents processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		documentDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_document_duration_seconds",
				Help:    "Wall time spent processing one document.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		versionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_versions_total",
				Help: "Version references visited, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		extractionTierTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_extraction_tier_total",
				Help: "Extracted versions, labeled by the container tier their text came from.",
			},
			[]string{"tier"},
		)

		groupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_groups_total",
				Help: "Canonical identities handled, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		articlesPersistedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_articles_persisted_total",
				Help: "Article rows written, labeled by content kind.",
			},
			[]string{"kind"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_active_workers",
				Help: "Number of workers currently processing a document.",
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

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting for a fetch token, labeled by host.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		headlessPromotionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_headless_promotions_total",
				Help: "Pages re-fetched with the headless renderer after a plain fetch.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveDocument records one processed document.
func ObserveDocument(outcome string, duration time.Duration) {
	Init()
	documentsTotal.WithLabelValues(outcome).Inc()
	documentDurationSeconds.Observe(duration.Seconds())
}

// ObserveVersion records one visited version reference.
func ObserveVersion(outcome string) {
	Init()
	versionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveExtractionTier records the container tier of an extracted version.
func ObserveExtractionTier(tier string) {
	Init()
	extractionTierTotal.WithLabelValues(tier).Inc()
}

// ObserveGroup records the outcome of one canonical identity.
func ObserveGroup(outcome string) {
	Init()
	groupsTotal.WithLabelValues(outcome).Inc()
}

// ObservePersisted records rows written for a content kind.
func ObservePersisted(kind string, rows int) {
	Init()
	articlesPersistedTotal.WithLabelValues(kind).Add(float64(rows))
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

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records a wait imposed by the fetch throttle.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHeadlessPromotion counts one page re-rendered headlessly.
func ObserveHeadlessPromotion() {
	Init()
	headlessPromotionsTotal.Inc()
}
