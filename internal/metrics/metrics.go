// Package metrics exposes Prometheus collectors for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	synthesisTotal    *prometheus.CounterVec
	synthesisDuration *prometheus.HistogramVec
	voicesTotal       *prometheus.CounterVec
	permitsInUse      prometheus.Gauge
	permitWait        prometheus.Histogram
	rateLimited       prometheus.Counter
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		synthesisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speechgate",
			Name:      "synthesis_requests_total",
			Help:      "Synthesis requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		synthesisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "speechgate",
			Name:      "synthesis_duration_seconds",
			Help:      "End-to-end synthesis latency by mode.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"mode"}),
		voicesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speechgate",
			Name:      "voice_listings_total",
			Help:      "Voice listing requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		permitsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "speechgate",
			Subsystem: "gwent",
			Name:      "permits_in_use",
			Help:      "Daemon permits currently held.",
		}),
		permitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "speechgate",
			Subsystem: "gwent",
			Name:      "permit_wait_seconds",
			Help:      "Time spent waiting for a daemon permit.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speechgate",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.synthesisTotal,
		m.synthesisDuration,
		m.voicesTotal,
		m.permitsInUse,
		m.permitWait,
		m.rateLimited,
	)
	return m
}

func (m *Metrics) ObserveSynthesis(mode, outcome string, elapsed time.Duration) {
	m.synthesisTotal.WithLabelValues(mode, outcome).Inc()
	m.synthesisDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveVoices(mode, outcome string) {
	m.voicesTotal.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) PermitAcquired(wait time.Duration) {
	m.permitsInUse.Inc()
	m.permitWait.Observe(wait.Seconds())
}

func (m *Metrics) PermitReleased() {
	m.permitsInUse.Dec()
}

func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
