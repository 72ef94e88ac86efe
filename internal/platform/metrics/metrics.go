package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lotto_feed"

const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeError       = "error"
	OutcomeRejected    = "rejected"
	OutcomeReplaced    = "replaced"
	OutcomeKept        = "kept"
	OutcomeUnavailable = "unavailable"
)

// Metrics owns a private registry so tests and multiple instances never
// collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	refreshes        *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	cacheRows        *prometheus.GaugeVec
	latestRound      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Upstream fetches by source and outcome.",
			},
			[]string{"source", "outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Duration of upstream fetches.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
			},
			[]string{"source"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "refreshes_total",
				Help:      "Cache refresh attempts by outcome.",
			},
			[]string{"trigger", "outcome"},
		),
		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "refresh_duration_seconds",
				Help:      "Duration of hybrid refreshes.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		cacheRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "rows",
				Help:      "Cached draw rows by source.",
			},
			[]string{"source"},
		),
		latestRound: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "latest_round",
				Help:      "Newest round held in the cache.",
			},
		),
	}

	m.registry.MustRegister(
		m.upstreamRequests,
		m.upstreamDuration,
		m.refreshes,
		m.refreshDuration,
		m.cacheRows,
		m.latestRound,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveUpstream(source, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	m.upstreamRequests.WithLabelValues(source, outcome).Inc()
	m.upstreamDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *Metrics) ObserveRefresh(trigger, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(trigger, outcome).Inc()
	if duration > 0 {
		m.refreshDuration.Observe(duration.Seconds())
	}
}

// SetCacheRows replaces the per-source row gauges.
func (m *Metrics) SetCacheRows(bySource map[string]int, latestRound int) {
	if m == nil {
		return
	}
	m.cacheRows.Reset()
	for source, count := range bySource {
		m.cacheRows.WithLabelValues(source).Set(float64(count))
	}
	m.latestRound.Set(float64(latestRound))
}
