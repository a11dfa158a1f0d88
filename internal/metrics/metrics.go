// Package metrics declares the Prometheus collectors of the generation
// pipeline. Collectors are registered on the default registry at init and are
// safe for concurrent use.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Generations counts generate calls by category and outcome
	// (created, deduplicated, failed).
	Generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_generations_total",
			Help: "Document generation requests by category and outcome.",
		},
		[]string{"category", "outcome"},
	)

	// DedupCheckFailures counts duplicate lookups that errored and fell open.
	// A steady rate here means duplicates are being generated silently.
	DedupCheckFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docgen_dedup_check_failures_total",
			Help: "Duplicate lookups that failed and were bypassed.",
		},
	)

	RenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgen_render_duration_seconds",
			Help:    "Time spent rendering a document.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"category"},
	)

	RenderedPages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docgen_rendered_pages",
			Help:    "Pages per rendered document.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50},
		},
	)

	// StorageRetries counts bucket calls that were attempted again.
	StorageRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_storage_retries_total",
			Help: "Object storage operations retried after a failure.",
		},
		[]string{"op"},
	)

	StorageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_storage_failures_total",
			Help: "Object storage operations that failed by op and reason.",
		},
		[]string{"op", "reason"},
	)

	// CacheLookups counts cache lookups by cache (template, preview), tier and result.
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_cache_lookups_total",
			Help: "Cache lookups by cache, tier and result.",
		},
		[]string{"cache", "tier", "result"},
	)

	CacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_cache_evictions_total",
			Help: "Cache entries evicted by cache and reason.",
		},
		[]string{"cache", "reason"},
	)

	PreviewCacheBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docgen_preview_cache_bytes",
			Help: "Bytes held by the in-memory preview cache.",
		},
	)

	// LifecycleItems counts lifecycle outcomes per phase.
	LifecycleItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_lifecycle_items_total",
			Help: "Items handled by the lifecycle sweep by phase and result.",
		},
		[]string{"phase", "result"},
	)

	TokenVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_token_verifications_total",
			Help: "Download token verifications by result.",
		},
		[]string{"result"},
	)

	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgen_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		Generations,
		DedupCheckFailures,
		RenderDuration,
		RenderedPages,
		StorageRetries,
		StorageFailures,
		CacheLookups,
		CacheEvictions,
		PreviewCacheBytes,
		LifecycleItems,
		TokenVerifications,
		httpReqs,
		httpLat,
	)
}

// HTTP instruments chi routes. The route label is the matched pattern, so ids
// in the path do not explode cardinality.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpReqs.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpLat.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
