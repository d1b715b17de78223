package graph

import (
	"strings"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func constProto(v float64) NodePrototype {
	return NodePrototype{
		Name: "Constant",
		Size: v2.Vec{X: 80, Y: 40},
		Ports: []PortPrototype{
			OutputPort("", v2.Vec{X: 80, Y: 20}, EvaluatorFunc(func(_ Inputs, s State, _ Context) (float64, bool) {
				return s.Float("val")
			})),
		},
		State: State{"val": Float(v)},
	}
}

func addProto() NodePrototype {
	return NodePrototype{
		Name: "Add",
		Size: v2.Vec{X: 100, Y: 60},
		Ports: []PortPrototype{
			InputPort("A", v2.Vec{X: 0, Y: 20}),
			InputPort("B", v2.Vec{X: 0, Y: 40}),
			OutputPort("Out", v2.Vec{X: 100, Y: 30}, EvaluatorFunc(func(in Inputs, _ State, ctx Context) (float64, bool) {
				a, ok := in.Get("A", ctx)
				if !ok {
					return 0, false
				}
				b, ok := in.Get("B", ctx)
				if !ok {
					return 0, false
				}
				return a + b, true
			})),
		},
		State: State{},
	}
}

func attrProto(name string) NodePrototype {
	return NodePrototype{
		Name: "Attr",
		Size: v2.Vec{X: 80, Y: 40},
		Ports: []PortPrototype{
			OutputPort("", v2.Vec{X: 80, Y: 20}, EvaluatorFunc(func(_ Inputs, s State, ctx Context) (float64, bool) {
				n, ok := s.String("name")
				if !ok {
					return 0, false
				}
				return ctx.Lookup(n)
			})),
		},
		State: State{"name": String(name)},
	}
}

// hasFinding returns true if findings contain one of the given severity whose
// message contains substr.
func hasFinding(findings []ValidationError, sev ValidationSeverity, substr string) bool {
	for _, e := range findings {
		if e.Severity == sev && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
