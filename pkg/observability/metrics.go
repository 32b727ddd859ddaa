package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
// Each instance owns its registry, so several can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	NodesCreated   *prometheus.CounterVec
	NodesRemoved   prometheus.Counter
	EdgesCreated   *prometheus.CounterVec
	EdgesRemoved   prometheus.Counter
	Compilations   prometheus.Counter
	Submissions    *prometheus.CounterVec
	SubmitDuration prometheus.Histogram
}

// NewMetrics creates and registers the collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		NodesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_created_total",
				Help:      "Total number of nodes created, by kind origin",
			},
			[]string{"origin"},
		),
		NodesRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_removed_total",
				Help:      "Total number of nodes removed",
			},
		),
		EdgesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_created_total",
				Help:      "Total number of edges created, manual or auto-chained",
			},
			[]string{"mode"},
		),
		EdgesRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_removed_total",
				Help:      "Total number of edges removed, cascades included",
			},
		),
		Compilations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compilations_total",
				Help:      "Total number of graph compilations",
			},
		),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Total number of training submissions, by result",
			},
			[]string{"result"},
		),
		SubmitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_duration_seconds",
				Help:      "Training submission latency in seconds, retries included",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.NodesCreated,
		m.NodesRemoved,
		m.EdgesCreated,
		m.EdgesRemoved,
		m.Compilations,
		m.Submissions,
		m.SubmitDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks recording every event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeCreated: func(_ context.Context, e *domain.NodeEvent) {
			m.NodesCreated.WithLabelValues(string(e.Kind.Origin)).Inc()
		},
		OnNodeRemoved: func(_ context.Context, e *domain.NodeEvent) {
			m.NodesRemoved.Inc()
		},
		OnEdgeCreated: func(_ context.Context, e *domain.EdgeEvent) {
			mode := "manual"
			if e.Auto {
				mode = "auto"
			}
			m.EdgesCreated.WithLabelValues(mode).Inc()
		},
		OnEdgeRemoved: func(_ context.Context, e *domain.EdgeEvent) {
			m.EdgesRemoved.Inc()
		},
		OnCompiled: func(_ context.Context, e *domain.CompileEvent) {
			m.Compilations.Inc()
		},
		OnSubmitted: func(_ context.Context, e *domain.SubmitEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			m.Submissions.WithLabelValues(result).Inc()
			m.SubmitDuration.Observe(e.Duration.Seconds())
		},
	}
}
