package graph

import (
	"maps"
	"slices"

	"github.com/chazu/nodes/pkg/storage"
)

// evaluation is the bookkeeping of a single top-level evaluation call.
type evaluation struct {
	stack  []storage.ID
	active map[storage.ID]bool
	cycle  *CyclicGraphError
}

// Inputs gives an Evaluator access to the direct inputs of its node. Each
// input name maps to its upstream output, or to the zero ID when the input
// is unconnected.
type Inputs struct {
	world  *World
	direct map[string]storage.ID
	run    *evaluation
}

// World returns the world being evaluated.
func (in Inputs) World() *World { return in.world }

// Upstream returns the output wired to the named input.
func (in Inputs) Upstream(name string) (storage.ID, bool) {
	id, ok := in.direct[name]
	if !ok || id.IsZero() {
		return 0, false
	}
	return id, true
}

// Has reports whether the node declares an input called name.
func (in Inputs) Has(name string) bool {
	_, ok := in.direct[name]
	return ok
}

// Names returns the declared input names in sorted order.
func (in Inputs) Names() []string {
	return slices.Sorted(maps.Keys(in.direct))
}

// Get resolves a logical input. A wired input is evaluated recursively with
// ctx; otherwise the name is looked up in ctx.
func (in Inputs) Get(name string, ctx Context) (float64, bool) {
	if up, ok := in.Upstream(name); ok {
		return in.world.evaluate(in.run, up, ctx)
	}
	return ctx.Lookup(name)
}

// EvaluateOutputPort computes the value of an output port. It is false when
// port is an input, when some needed value is missing, or when the walk ran
// into a cycle. A stale port ID panics.
func (w *World) EvaluateOutputPort(port storage.ID, ctx Context) (float64, bool) {
	v, ok, _ := w.Evaluate(port, ctx)
	return v, ok
}

// Evaluate is EvaluateOutputPort that also reports a *CyclicGraphError when
// the walk re-entered an output port already on its stack. The cyclic branch
// yields no value; the rest of the walk proceeds as usual.
func (w *World) Evaluate(port storage.ID, ctx Context) (float64, bool, error) {
	run := &evaluation{active: make(map[storage.ID]bool)}
	v, ok := w.evaluate(run, port, ctx)
	if run.cycle != nil {
		w.logger.Warn("cycle during evaluation", "port", port, "err", run.cycle)
		return v, ok, run.cycle
	}
	return v, ok, nil
}

func (w *World) evaluate(run *evaluation, port storage.ID, ctx Context) (float64, bool) {
	p := w.ports.Get(port)
	out, isOutput := p.Kind.(OutputKind)
	if !isOutput || out.Eval == nil {
		return 0, false
	}

	if run.active[port] {
		if run.cycle == nil {
			start := slices.Index(run.stack, port)
			run.cycle = &CyclicGraphError{Port: port, Path: slices.Clone(run.stack[start:])}
		}
		return 0, false
	}
	run.active[port] = true
	run.stack = append(run.stack, port)
	defer func() {
		delete(run.active, port)
		run.stack = run.stack[:len(run.stack)-1]
	}()

	node := w.nodes.Get(p.Node)
	direct := make(map[string]storage.ID)
	for _, pid := range node.Ports {
		if in, ok := w.ports.Get(pid).Kind.(InputKind); ok {
			direct[w.ports.Get(pid).Info.Name] = in.Upstream
		}
	}

	v, ok := out.Eval.Evaluate(Inputs{world: w, direct: direct, run: run}, node.State, ctx)
	w.logger.Debug("evaluated output",
		"port", port,
		"node", node.Prototype.Name,
		"value", v,
		"ok", ok,
	)
	if !ok {
		return 0, false
	}
	return v, true
}
