package nodes

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/nodes/pkg/graph"
	v2 "github.com/deadsy/sdfx/vec/v2"
	zygo "github.com/glycerine/zygomys/zygo"
)

// DefaultExpression is the "expr" state of a new Expr node.
const DefaultExpression = "(+ a b)"

// Expression evaluates the Lisp form in its "expr" state. Inputs a and b are
// bound as variables when they resolve, and (ctx "name") reads the context.
func Expression() graph.NodePrototype {
	return graph.NodePrototype{
		Name: "Expr",
		Size: v2.Vec{X: 160, Y: 80},
		Ports: []graph.PortPrototype{
			graph.InputPort("a", v2.Vec{X: 0, Y: 30}),
			graph.InputPort("b", v2.Vec{X: 0, Y: 50}),
			graph.OutputPort("", v2.Vec{X: 160, Y: 40}, graph.EvaluatorFunc(evalExpression)),
		},
		State:  graph.State{"expr": graph.String(DefaultExpression)},
		Render: renderText("expr"),
	}
}

func evalExpression(in graph.Inputs, s graph.State, ctx graph.Context) (float64, bool) {
	expr, ok := s.String("expr")
	if !ok || strings.TrimSpace(expr) == "" {
		return 0, false
	}

	var src strings.Builder
	for _, name := range in.Names() {
		v, ok := in.Get(name, ctx)
		if !ok {
			continue
		}
		lit, ok := floatLiteral(v)
		if !ok {
			return 0, false
		}
		fmt.Fprintf(&src, "(def %s %s)\n", name, lit)
	}
	src.WriteString(expr)

	v, err := runExpression(src.String(), ctx)
	if err != nil {
		return 0, false
	}
	return v, true
}

// runExpression evaluates src in a fresh sandbox and converts the result to a
// number.
func runExpression(src string, ctx graph.Context) (float64, error) {
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	env.AddFunction("ctx", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("ctx requires exactly 1 argument, got %d", len(args))
		}
		key, ok := args[0].(*zygo.SexpStr)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("ctx: expected string, got %T", args[0])
		}
		v, ok := ctx.Lookup(key.S)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("ctx: %q is not bound", key.S)
		}
		return &zygo.SexpFloat{Val: v}, nil
	})

	if err := env.LoadString(src); err != nil {
		return 0, err
	}
	res, err := env.Run()
	if err != nil {
		return 0, err
	}

	switch r := res.(type) {
	case *zygo.SexpFloat:
		return r.Val, nil
	case *zygo.SexpInt:
		return float64(r.Val), nil
	}
	return 0, fmt.Errorf("expression produced %T, not a number", res)
}

// floatLiteral formats v so the reader parses it back as a float, never as
// an integer.
func floatLiteral(v float64) (string, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, true
}
