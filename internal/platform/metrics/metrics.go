package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the display service.
type Metrics struct {
	registry       *prometheus.Registry
	requestsTotal  prometheus.Counter
	errorsTotal    prometheus.Counter
	requestLatency *prometheus.HistogramVec
	advancesTotal  *prometheus.CounterVec
	resetsTotal    *prometheus.CounterVec
	driftTotal     prometheus.Counter
	archivedTotal  prometheus.Counter
	catalogItems   prometheus.Gauge
	catalogLookups *prometheus.CounterVec
}

// New creates and registers Prometheus metrics for the display service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signage_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signage_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	requestLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signage_request_duration_seconds",
		Help:    "HTTP request latency by chi route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	advancesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_advances_total",
		Help: "Timeline transitions by cause (timer, video_end, manual, skip, previous)",
	}, []string{"cause"})
	resetsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_timeline_resets_total",
		Help: "Timeline resets to index 0 by cause (operator, drift, stale)",
	}, []string{"cause"})
	driftTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signage_catalog_drift_total",
		Help: "Number of reconciliation ticks that observed an approved-count change",
	})
	archivedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signage_media_archived_total",
		Help: "Number of approved items moved to archived by the retention sweep",
	})
	catalogItems := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signage_catalog_items",
		Help: "Number of approved items in the last catalog read",
	})
	catalogLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_catalog_cache_total",
		Help: "Catalog cache lookups by result (hit, miss)",
	}, []string{"result"})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		requestLatency,
		advancesTotal,
		resetsTotal,
		driftTotal,
		archivedTotal,
		catalogItems,
		catalogLookups,
	)

	return &Metrics{
		registry:       registry,
		requestsTotal:  requestsTotal,
		errorsTotal:    errorsTotal,
		requestLatency: requestLatency,
		advancesTotal:  advancesTotal,
		resetsTotal:    resetsTotal,
		driftTotal:     driftTotal,
		archivedTotal:  archivedTotal,
		catalogItems:   catalogItems,
		catalogLookups: catalogLookups,
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.requestsTotal.Inc()
	if status >= 400 {
		m.errorsTotal.Inc()
	}
	m.requestLatency.WithLabelValues(route).Observe(d.Seconds())
}

// IncAdvance records a timeline transition.
func (m *Metrics) IncAdvance(cause string) {
	m.advancesTotal.WithLabelValues(cause).Inc()
}

// IncReset records a reset to index 0.
func (m *Metrics) IncReset(cause string) {
	m.resetsTotal.WithLabelValues(cause).Inc()
}

// IncDrift records a reconciliation tick that found drift.
func (m *Metrics) IncDrift() {
	m.driftTotal.Inc()
}

// AddArchived adds n archived items.
func (m *Metrics) AddArchived(n int) {
	if n > 0 {
		m.archivedTotal.Add(float64(n))
	}
}

// SetCatalogItems sets the catalog size gauge.
func (m *Metrics) SetCatalogItems(n int) {
	m.catalogItems.Set(float64(n))
}

// IncCatalogLookup records a catalog cache hit or miss.
func (m *Metrics) IncCatalogLookup(hit bool) {
	if hit {
		m.catalogLookups.WithLabelValues("hit").Inc()
		return
	}
	m.catalogLookups.WithLabelValues("miss").Inc()
}

// Registry exposes the underlying registry (tests use it to gather values).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
