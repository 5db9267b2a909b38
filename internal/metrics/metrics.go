package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/fidelity"
)

// Metrics counts scoring outcomes across the HTTP and gRPC surfaces.
type Metrics struct {
	registry    *prometheus.Registry
	scores      *prometheus.CounterVec
	correlation prometheus.Histogram
	r2          prometheus.Histogram
}

// New registers the auditor's collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fidelity_scores_total",
			Help: "Fidelity scoring requests by surface and outcome.",
		}, []string{"surface", "outcome"}),
		correlation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fidelity_correlation",
			Help:    "Pearson correlation of scored prediction pairs.",
			Buckets: []float64{-0.5, 0, 0.5, 0.7, 0.8, 0.9, 0.95, 0.99, 1},
		}),
		r2: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fidelity_r2",
			Help:    "R² of scored prediction pairs.",
			Buckets: []float64{0, 0.5, 0.7, 0.8, 0.9, 0.95, 0.99, 1},
		}),
	}
	m.registry.MustRegister(
		m.scores, m.correlation, m.r2,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one scoring outcome. res is nil when scoring failed.
func (m *Metrics) Observe(surface, outcome string, res *fidelity.Result) {
	if m == nil {
		return
	}
	m.scores.WithLabelValues(surface, outcome).Inc()
	if res != nil {
		m.correlation.Observe(res.Correlation)
		m.r2.Observe(res.R2)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
