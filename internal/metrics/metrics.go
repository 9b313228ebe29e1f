// Package metrics exposes dashboard counters on a dedicated Prometheus
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carddash/internal/dashboard"
)

const namespace = "carddash"

// Metrics implements dashboard.Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	reloads       *prometheus.CounterVec
	recomputes    prometheus.Counter
	cardsLoaded   prometheus.Gauge
	filteredCards prometheus.Gauge
	recomputeTime prometheus.Histogram
}

// New registers every collector on a fresh registry, so several instances
// can coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Reload attempts by result (ok, error, stale).",
		}, []string{"result"}),
		recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recomputations_total",
			Help:      "View recomputations.",
		}),
		cardsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cards_loaded",
			Help:      "Cards in the current collection.",
		}),
		filteredCards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "filtered_cards",
			Help:      "Cards passing the most recently computed filter.",
		}),
		recomputeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_seconds",
			Help:      "Time to filter and aggregate one view.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}

	reg.MustRegister(
		m.reloads,
		m.recomputes,
		m.cardsLoaded,
		m.filteredCards,
		m.recomputeTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRecompute(d time.Duration, filtered int) {
	m.recomputes.Inc()
	m.filteredCards.Set(float64(filtered))
	m.recomputeTime.Observe(d.Seconds())
}

func (m *Metrics) ObserveReload(result string, cards int) {
	m.reloads.WithLabelValues(result).Inc()
	if result == dashboard.ReloadOK {
		m.cardsLoaded.Set(float64(cards))
	}
}

// SetCardsLoaded records a collection installed without a reload, such as a
// restored snapshot.
func (m *Metrics) SetCardsLoaded(n int) {
	m.cardsLoaded.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
