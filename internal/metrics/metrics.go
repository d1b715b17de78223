// Package metrics holds the Prometheus collectors for graph evaluation and
// script runs. Every Metrics value owns its registry, so instances never
// collide with each other or with the global default registry.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/chazu/nodes/pkg/graph"
	"github.com/chazu/nodes/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "nodes"

// Evaluation results.
const (
	ResultValue = "value"
	ResultNone  = "none"
	ResultCycle = "cycle"
)

// Script run outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeErrors = "errors"
	OutcomeFatal  = "fatal"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	evaluations  *prometheus.CounterVec
	evalDuration prometheus.Histogram
	graphNodes   prometheus.Gauge
	scriptRuns   *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Output port evaluations by result (value, none, cycle)",
			},
			[]string{"result"},
		),
		evalDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Wall time of a top-level output port evaluation",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
		),
		graphNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Number of live nodes in the current graph",
			},
		),
		scriptRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_runs_total",
				Help:      "Session script runs by outcome (ok, errors, fatal)",
			},
			[]string{"outcome"},
		),
	}
	m.registry.MustRegister(m.evaluations, m.evalDuration, m.graphNodes, m.scriptRuns)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Evaluate evaluates port on w and records the result and duration.
func (m *Metrics) Evaluate(w *graph.World, port storage.ID, ctx graph.Context) (float64, bool, error) {
	start := time.Now()
	v, ok, err := w.Evaluate(port, ctx)
	m.ObserveEvaluation(time.Since(start), ok, err)
	return v, ok, err
}

// ObserveEvaluation records one evaluation.
func (m *Metrics) ObserveEvaluation(d time.Duration, ok bool, err error) {
	if m == nil {
		return
	}
	result := ResultNone
	switch {
	case err != nil:
		result = ResultCycle
	case ok:
		result = ResultValue
	}
	m.evaluations.WithLabelValues(result).Inc()
	m.evalDuration.Observe(d.Seconds())
}

// SetGraphNodes records the current node count.
func (m *Metrics) SetGraphNodes(n int) {
	if m == nil {
		return
	}
	m.graphNodes.Set(float64(n))
}

// ScriptRun counts a script run with the given outcome.
func (m *Metrics) ScriptRun(outcome string) {
	if m == nil {
		return
	}
	m.scriptRuns.WithLabelValues(outcome).Inc()
}

// WriteText writes every collected metric in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
