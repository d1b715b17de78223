package nodes

import "github.com/chazu/nodes/pkg/graph"

// Apply returns an evaluator that resolves each named input in order and
// passes the values to fn. Evaluation stops with no value at the first input
// that cannot be resolved.
func Apply(fn func(args ...float64) float64, names ...string) graph.Evaluator {
	return graph.EvaluatorFunc(func(in graph.Inputs, _ graph.State, ctx graph.Context) (float64, bool) {
		args := make([]float64, 0, len(names))
		for _, name := range names {
			v, ok := in.Get(name, ctx)
			if !ok {
				return 0, false
			}
			args = append(args, v)
		}
		return fn(args...), true
	})
}
