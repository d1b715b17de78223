package nodes

import (
	"math"

	"github.com/chazu/nodes/pkg/graph"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ---------------------------------------------------------------------------
// Constant
// ---------------------------------------------------------------------------

// Constant emits the number stored in its "val" state.
func Constant() graph.NodePrototype {
	return graph.NodePrototype{
		Name: "Constant",
		Size: v2.Vec{X: 200, Y: 100},
		Ports: []graph.PortPrototype{
			graph.OutputPort("", v2.Vec{X: 200, Y: 30}, graph.EvaluatorFunc(evalConstant)),
		},
		State:  graph.State{"val": graph.Float(1)},
		Render: renderConstant,
	}
}

func evalConstant(_ graph.Inputs, s graph.State, _ graph.Context) (float64, bool) {
	return s.Float("val")
}

func renderConstant(ui graph.Widgets, s graph.State, _ graph.Pos) bool {
	v, ok := s.Float("val")
	if !ok || !ui.Slider("val", &v) {
		return false
	}
	return s.SetFloat("val", v)
}

// ---------------------------------------------------------------------------
// Binary Math
// ---------------------------------------------------------------------------

// Operators lists the choices offered for a Binary Math node's "op" state.
var Operators = []graph.Choice{
	{Value: '+', Label: "Add"},
	{Value: '-', Label: "Sub"},
	{Value: '*', Label: "Mul"},
	{Value: '/', Label: "Div"},
}

// BinaryMath combines inputs A and B with the operator held in "op".
func BinaryMath() graph.NodePrototype {
	return graph.NodePrototype{
		Name: "Binary Math",
		Size: v2.Vec{X: 100, Y: 80},
		Ports: []graph.PortPrototype{
			graph.InputPort("A", v2.Vec{X: 0, Y: 50}),
			graph.InputPort("B", v2.Vec{X: 0, Y: 60}),
			graph.OutputPort("Out", v2.Vec{X: 100, Y: 40}, graph.EvaluatorFunc(evalBinaryMath)),
		},
		State:  graph.State{"op": graph.Char('+')},
		Render: renderBinaryMath,
	}
}

func evalBinaryMath(in graph.Inputs, s graph.State, ctx graph.Context) (float64, bool) {
	a, ok := in.Get("A", ctx)
	if !ok {
		return 0, false
	}
	b, ok := in.Get("B", ctx)
	if !ok {
		return 0, false
	}
	op, ok := s.Char("op")
	if !ok {
		return 0, false
	}

	switch op {
	case '+':
		return a + b, true
	case '-':
		return a - b, true
	case '*':
		return a * b, true
	case '/':
		if b == 0 {
			return 0, false
		}
		return a / b, true
	}
	return 0, false
}

func renderBinaryMath(ui graph.Widgets, s graph.State, _ graph.Pos) bool {
	op, ok := s.Char("op")
	if !ok || !ui.Select("op", &op, Operators) {
		return false
	}
	return s.SetChar("op", op)
}

// ---------------------------------------------------------------------------
// Attr
// ---------------------------------------------------------------------------

// Attribute looks up the context binding named by its "name" state.
func Attribute() graph.NodePrototype {
	return graph.NodePrototype{
		Name: "Attr",
		Size: v2.Vec{X: 100, Y: 70},
		Ports: []graph.PortPrototype{
			graph.OutputPort("", v2.Vec{X: 100, Y: 50}, graph.EvaluatorFunc(evalAttribute)),
		},
		State:  graph.State{"name": graph.String("")},
		Render: renderText("name"),
	}
}

func evalAttribute(_ graph.Inputs, s graph.State, ctx graph.Context) (float64, bool) {
	name, ok := s.String("name")
	if !ok {
		return 0, false
	}
	return ctx.Lookup(name)
}

// renderText returns a hook editing the string state key.
func renderText(key string) graph.RenderFunc {
	return func(ui graph.Widgets, s graph.State, _ graph.Pos) bool {
		v, ok := s.String(key)
		if !ok || !ui.Text(key, &v) {
			return false
		}
		return s.SetString(key, v)
	}
}

// ---------------------------------------------------------------------------
// Exp
// ---------------------------------------------------------------------------

// Exp raises e to the power of its input.
func Exp() graph.NodePrototype {
	return graph.NodePrototype{
		Name: "Exp",
		Size: v2.Vec{X: 50, Y: 50},
		Ports: []graph.PortPrototype{
			graph.InputPort("Inp", v2.Vec{X: 0, Y: 20}),
			graph.OutputPort("", v2.Vec{X: 50, Y: 20}, Apply(func(args ...float64) float64 {
				return math.Exp(args[0])
			}, "Inp")),
		},
		State: graph.State{},
	}
}

// ---------------------------------------------------------------------------
// Out
// ---------------------------------------------------------------------------

// Output is a sink with a single input and nothing to evaluate.
func Output() graph.NodePrototype {
	return graph.NodePrototype{
		Name: "Out",
		Size: v2.Vec{X: 50, Y: 50},
		Ports: []graph.PortPrototype{
			graph.InputPort("Inp", v2.Vec{X: 0, Y: 10}),
		},
		State: graph.State{},
	}
}
