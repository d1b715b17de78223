package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/chazu/nodes/pkg/graph"
	"github.com/chazu/nodes/pkg/nodes"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEvaluationResults(t *testing.T) {
	m := New()

	m.ObserveEvaluation(time.Millisecond, true, nil)
	m.ObserveEvaluation(time.Millisecond, true, nil)
	m.ObserveEvaluation(time.Millisecond, false, nil)
	m.ObserveEvaluation(time.Millisecond, false, &graph.CyclicGraphError{})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues(ResultValue)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues(ResultNone)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues(ResultCycle)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.evalDuration))
}

func TestEvaluateRecords(t *testing.T) {
	m := New()
	w := graph.NewWorld()
	c := w.CreateNode(v2.Vec{}, nodes.Constant())

	v, ok, err := m.Evaluate(w, w.OutputsOf(c)[0], graph.Context{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues(ResultValue)))
}

func TestGaugeAndScriptRuns(t *testing.T) {
	m := New()
	m.SetGraphNodes(3)
	m.ScriptRun(OutcomeOK)
	m.ScriptRun(OutcomeFatal)
	m.ScriptRun(OutcomeFatal)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.graphNodes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.scriptRuns.WithLabelValues(OutcomeFatal)))
}

func TestWriteText(t *testing.T) {
	m := New()
	m.SetGraphNodes(2)
	m.ScriptRun(OutcomeOK)

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "nodes_graph_nodes 2")
	assert.Contains(t, out, `nodes_script_runs_total{outcome="ok"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEvaluation(time.Second, true, nil)
		m.SetGraphNodes(1)
		m.ScriptRun(OutcomeOK)
		require.NoError(t, m.WriteText(&bytes.Buffer{}))
	})
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ScriptRun(OutcomeOK)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.scriptRuns.WithLabelValues(OutcomeOK)))
}
