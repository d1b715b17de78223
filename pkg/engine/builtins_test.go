package engine

import (
	"testing"

	"github.com/chazu/nodes/pkg/graph"
	v2 "github.com/deadsy/sdfx/vec/v2"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(node "Constant" :val 2)`,
			expect: `(node "Constant" "__kw_val" 2)`,
		},
		{
			name:   "multiple keywords",
			input:  `(node "Binary Math" :at (pos 1 2) :op "-")`,
			expect: `(node "Binary Math" "__kw_at" (pos 1 2) "__kw_op" "-")`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "escaped quote in string",
			input:  `"a \" :b" :c`,
			expect: `"a \" :b" "__kw_c"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(eval-port p)`,
			expect: `(eval_port p)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:long-name`,
			expect: `"__kw_long-name"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, preprocessSource(tt.input))
		})
	}
}

// ---------------------------------------------------------------------------
// Argument helpers
// ---------------------------------------------------------------------------

func TestParseArgs(t *testing.T) {
	args := []zygo.Sexp{
		&zygo.SexpStr{S: "Constant"},
		&zygo.SexpStr{S: kwPrefix + "val"},
		&zygo.SexpInt{Val: 2},
		&zygo.SexpStr{S: kwPrefix + "at"},
		&sexpPos{pos: v2.Vec{X: 1, Y: 2}},
		&zygo.SexpStr{S: kwPrefix + "flag"},
	}
	a := parseArgs(args)

	require.Len(t, a.positional, 1)
	assert.Equal(t, []string{"val", "at", "flag"}, a.order)
	v, err := toFloat64(a.kw["val"])
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, zygo.SexpNull, a.kw["flag"])
}

func TestSetStateConvertsToStoredKind(t *testing.T) {
	s := graph.State{
		"val":  graph.Float(1),
		"op":   graph.Char('+'),
		"name": graph.String(""),
	}

	require.NoError(t, setState(s, "val", &zygo.SexpInt{Val: 4}))
	require.NoError(t, setState(s, "op", &zygo.SexpStr{S: "*"}))
	require.NoError(t, setState(s, "name", &zygo.SexpStr{S: "x"}))

	v, _ := s.Float("val")
	assert.Equal(t, 4.0, v)
	op, _ := s.Char("op")
	assert.Equal(t, '*', op)
	name, _ := s.String("name")
	assert.Equal(t, "x", name)

	assert.Error(t, setState(s, "missing", &zygo.SexpInt{Val: 1}))
	assert.Error(t, setState(s, "op", &zygo.SexpStr{S: "**"}))
	assert.Error(t, setState(s, "val", &zygo.SexpStr{S: "x"}))
}

// ---------------------------------------------------------------------------
// Builtins end to end
// ---------------------------------------------------------------------------

func run(t *testing.T, source string, ctx graph.Context) *Result {
	t.Helper()
	res, evalErrs, err := NewEngine().Run(source, ctx)
	require.NoError(t, err)
	require.Empty(t, evalErrs)
	require.NotNil(t, res)
	return res
}

func TestCompositionScript(t *testing.T) {
	res := run(t, `
; two constants into a binary math node
(def a (node "Constant" :at (pos 0 0) :val 2))
(def b (node "Constant" :at (pos 0 120) :val 3))
(def m (node "Binary Math" :at (pos 240 60)))
(connect (in m "A") (out a))
(connect (in m "B") (out b))
(eval-port (out m) "sum")
(set-state m :op "-")
(eval-port (out m) "difference")
(set-state m :op "*")
(eval-port (out m "Out") "product")
`, graph.Context{})

	require.Len(t, res.Evaluations, 3)
	want := map[string]float64{"sum": 5, "difference": -1, "product": 6}
	for _, ev := range res.Evaluations {
		assert.True(t, ev.OK, ev.Label)
		assert.NoError(t, ev.Err)
		assert.Equal(t, want[ev.Label], ev.Value, ev.Label)
	}
}

func TestMissingUpstreamScript(t *testing.T) {
	res := run(t, `
(def a (node "Constant" :val 2))
(def m (node "Binary Math"))
(connect (in m "A") (out a))
(eval-port (out m))
`, graph.Context{})

	require.Len(t, res.Evaluations, 1)
	assert.False(t, res.Evaluations[0].OK)
	assert.Equal(t, "Out", res.Evaluations[0].Label)
}

func TestBindFeedsContext(t *testing.T) {
	res := run(t, `
(def x (node "Attr" :name "x"))
(eval-port (out x) "before")
(bind "x" 4.5)
(eval-port (out x) "after")
`, graph.Context{}.With("y", 1))

	require.Len(t, res.Evaluations, 2)
	assert.False(t, res.Evaluations[0].OK)
	assert.True(t, res.Evaluations[1].OK)
	assert.Equal(t, 4.5, res.Evaluations[1].Value)
	assert.Equal(t, []string{"x", "y"}, res.Bindings.Names())
}

func TestEvalPortReturnsNumber(t *testing.T) {
	res := run(t, `
(def c (node "Constant" :val 2))
(def v (eval-port (out c)))
(bind "twice" (* v 2))
`, graph.Context{})

	twice, ok := res.Bindings.Lookup("twice")
	require.True(t, ok)
	assert.Equal(t, 4.0, twice)
}

func TestMoveRemoveDisconnect(t *testing.T) {
	res := run(t, `
(def a (node "Constant"))
(def b (node "Constant"))
(def e (node "Exp"))
(connect (in e "Inp") (out a))
(move e (pos 50 60))
(remove b)
(disconnect (in e "Inp"))
`, graph.Context{})

	w := res.World
	assert.Equal(t, 2, w.NodeCount())
	for _, n := range w.Nodes() {
		if n.Prototype.Name == "Exp" {
			assert.Equal(t, v2.Vec{X: 50, Y: 60}, n.Pos)
			_, ok := w.Port(n.Ports[0]).Upstream()
			assert.False(t, ok)
		}
	}
}

func TestCycleIsReportedOnEvaluation(t *testing.T) {
	res := run(t, `
(def m (node "Binary Math"))
(connect (in m "A") (out m))
(bind "B" 1)
(eval-port (out m))
`, graph.Context{})

	require.Len(t, res.Evaluations, 1)
	ev := res.Evaluations[0]
	assert.False(t, ev.OK)
	var cyc *graph.CyclicGraphError
	assert.ErrorAs(t, ev.Err, &cyc)
}

func TestBuiltinArgumentErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		substr string
	}{
		{"pos arity", `(pos 1)`, "pos requires exactly 2 arguments"},
		{"node state", `(node "Constant" :nope 1)`, `no state "nope"`},
		{"in on output", `(in (node "Constant") "")`, "not an input"},
		{"out ambiguous", `(out (node "Out"))`, "has 0 outputs"},
		{"unknown port", `(in (node "Exp") "Nope")`, "unknown port"},
		{"connect roles", `(def e (node "Exp")) (connect (in e "Inp") (in e "Inp"))`, "not an output"},
		{"bind value", `(bind "x" "y")`, "expected number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, evalErrs, err := NewEngine().Run(tt.source, graph.Context{})
			require.NoError(t, err)
			assert.Nil(t, res)
			require.NotEmpty(t, evalErrs)
			assert.Contains(t, evalErrs[0].Error(), tt.substr)
		})
	}
}
