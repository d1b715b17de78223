// Package layout turns a World into per-frame render data: node rectangles,
// port markers, connection endpoints, evaluated output values and the
// controls each node's render hook draws. Snapshots are read-only; Edit is
// the single entry point that lets a hook change node state.
package layout

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/chazu/nodes/pkg/graph"
	"github.com/chazu/nodes/pkg/storage"
	"github.com/deadsy/sdfx/sdf"
)

// EvalFunc evaluates one output port. graph.World.Evaluate has this shape
// once bound to a world; metrics.Metrics.Evaluate matches it directly.
type EvalFunc func(w *graph.World, port storage.ID, ctx graph.Context) (float64, bool, error)

// Frame is everything a renderer needs to draw one frame.
type Frame struct {
	Nodes []NodeView `json:"nodes"`
	Links []Link     `json:"links"`
}

// NodeView is the render data of one node.
type NodeView struct {
	ID       storage.ID     `json:"id"`
	Name     string         `json:"name"`
	Bounds   sdf.Box2       `json:"bounds"`
	Ports    []PortView     `json:"ports"`
	Controls []Control      `json:"controls"`
	State    map[string]any `json:"state"`
}

// PortView is the render data of one port. Value is nil for inputs, for
// outputs that produced no value and for non-finite results.
type PortView struct {
	ID    storage.ID `json:"id"`
	Name  string     `json:"name"`
	Input bool       `json:"input"`
	Pos   graph.Pos  `json:"pos"`
	Value *float64   `json:"value,omitempty"`
	Error string     `json:"error,omitempty"`
}

// Link is one connection, drawn from an output to the input it feeds.
type Link struct {
	From  storage.ID `json:"from"`
	To    storage.ID `json:"to"`
	Start graph.Pos  `json:"start"`
	End   graph.Pos  `json:"end"`
}

// Snapshot builds the frame for w. Every output port is evaluated once with
// ctx through eval; a nil eval uses World.Evaluate.
func Snapshot(w *graph.World, ctx graph.Context, eval EvalFunc) *Frame {
	if eval == nil {
		eval = func(w *graph.World, port storage.ID, ctx graph.Context) (float64, bool, error) {
			return w.Evaluate(port, ctx)
		}
	}

	f := &Frame{Nodes: []NodeView{}, Links: []Link{}}
	for _, id := range sortedNodes(w) {
		f.Nodes = append(f.Nodes, nodeView(w, id, ctx, eval))
	}

	for pid, p := range w.Ports() {
		up, ok := p.Upstream()
		if !ok || !w.HasPort(up) {
			continue
		}
		f.Links = append(f.Links, Link{
			From:  up,
			To:    pid,
			Start: w.GetPortPosition(up),
			End:   w.GetPortPosition(pid),
		})
	}
	slices.SortFunc(f.Links, func(a, b Link) int { return cmp.Compare(a.To, b.To) })
	return f
}

func nodeView(w *graph.World, id storage.ID, ctx graph.Context, eval EvalFunc) NodeView {
	n := w.Node(id)
	lo, hi := n.Bounds()
	v := NodeView{
		ID:       id,
		Name:     n.Prototype.Name,
		Bounds:   sdf.Box2{Min: lo, Max: hi},
		Ports:    make([]PortView, 0, len(n.Ports)),
		Controls: Controls(w, id),
		State:    make(map[string]any, len(n.State)),
	}
	for _, key := range n.StateKeys() {
		val := n.State[key].Any()
		if r, ok := val.(rune); ok {
			val = string(r)
		}
		v.State[key] = val
	}

	for _, pid := range n.Ports {
		p := w.Port(pid)
		pv := PortView{
			ID:    pid,
			Name:  p.Info.Name,
			Input: p.IsInput(),
			Pos:   w.GetPortPosition(pid),
		}
		if p.IsOutput() {
			val, ok, err := eval(w, pid, ctx)
			pv.Value, pv.Error = Value(val, ok)
			if err != nil {
				pv.Error = err.Error()
			}
		}
		v.Ports = append(v.Ports, pv)
	}
	return v
}

// Value converts an evaluation result for JSON output. JSON has no NaN or
// infinity, so a non-finite result becomes no value plus a note saying why.
func Value(v float64, ok bool) (*float64, string) {
	switch {
	case !ok:
		return nil, ""
	case math.IsNaN(v) || math.IsInf(v, 0):
		return nil, fmt.Sprintf("non-finite result %v", v)
	}
	return &v, ""
}

// sortedNodes returns node IDs ordered by slot index, which keeps the
// drawing order stable across removals.
func sortedNodes(w *graph.World) []storage.ID {
	ids := make([]storage.ID, 0, w.NodeCount())
	for id := range w.Nodes() {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b storage.ID) int { return cmp.Compare(a.Index(), b.Index()) })
	return ids
}
