// Package metrics exposes Prometheus metrics for synchronization runs and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Item outcomes recorded by ObserveItems.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeUpdated   = "updated"
	OutcomeFailed    = "failed"
)

// Recorder owns a private registry. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	itemsTotal      *prometheus.CounterVec
	sourceFailures  prometheus.Counter
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	embedDuration   prometheus.Histogram
	collectionItems prometheus.Gauge

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates a recorder with metrics under namespace ("vecsync" when empty).
func New(namespace string) *Recorder {
	if namespace == "" {
		namespace = "vecsync"
	}
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.itemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_total",
		Help:      "Items handled by synchronization runs, by strategy and outcome.",
	}, []string{"strategy", "outcome"})
	r.sourceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_failures_total",
		Help:      "Sources that could not be read.",
	})
	r.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Synchronization runs, by strategy and result.",
	}, []string{"strategy", "result"})
	r.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Synchronization run duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"strategy"})
	r.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "embed_duration_seconds",
		Help:      "Embedding call duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
	r.collectionItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "collection_items",
		Help:      "Items in the collection after the last run.",
	})
	r.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})
	r.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.registry.MustRegister(
		r.itemsTotal,
		r.sourceFailures,
		r.runsTotal,
		r.runDuration,
		r.embedDuration,
		r.collectionItems,
		r.requestsTotal,
		r.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveItems adds n items with the given outcome.
func (r *Recorder) ObserveItems(strategy, outcome string, n int64) {
	if r == nil || n == 0 {
		return
	}
	r.itemsTotal.WithLabelValues(strategy, outcome).Add(float64(n))
}

// ObserveSourceFailures adds n unreadable sources.
func (r *Recorder) ObserveSourceFailures(n int) {
	if r == nil || n == 0 {
		return
	}
	r.sourceFailures.Add(float64(n))
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(strategy string, d time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.runsTotal.WithLabelValues(strategy, result).Inc()
	r.runDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// ObserveEmbed records one embedding call.
func (r *Recorder) ObserveEmbed(d time.Duration) {
	if r == nil {
		return
	}
	r.embedDuration.Observe(d.Seconds())
}

// SetCollectionItems sets the collection size gauge.
func (r *Recorder) SetCollectionItems(n int64) {
	if r == nil {
		return
	}
	r.collectionItems.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Middleware counts requests by chi route pattern, which keeps label cardinality bounded.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := req.URL.Path
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.requestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
		r.requestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}
