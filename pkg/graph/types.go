package graph

import (
	"maps"
	"slices"

	"github.com/chazu/nodes/pkg/storage"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Pos is a 2D coordinate on the canvas. Evaluation never reads positions;
// they exist for the renderer.
type Pos = v2.Vec

// PortKind is the role of a port: InputKind or OutputKind.
type PortKind interface {
	portKind() // marker method restricting implementations to this package
}

// InputKind is an input port. Upstream names the output port feeding it, or
// is zero when the input is unconnected. An input has at most one upstream.
type InputKind struct {
	Upstream storage.ID
}

func (InputKind) portKind() {}

// OutputKind is an output port carrying the strategy that produces its value.
type OutputKind struct {
	Eval Evaluator
}

func (OutputKind) portKind() {}

// Evaluator produces the value of an output port. It receives the node's
// direct inputs, the node's current state (read-only) and the incoming
// context. The second result is false when no value can be produced.
type Evaluator interface {
	Evaluate(in Inputs, state State, ctx Context) (float64, bool)
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(in Inputs, state State, ctx Context) (float64, bool)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(in Inputs, state State, ctx Context) (float64, bool) {
	return f(in, state, ctx)
}

// PortPrototype describes one port of a node kind.
type PortPrototype struct {
	Name   string
	Offset Pos // relative to the node's position
	Kind   PortKind
}

// InputPort describes an input port.
func InputPort(name string, offset Pos) PortPrototype {
	return PortPrototype{Name: name, Offset: offset, Kind: InputKind{}}
}

// OutputPort describes an output port evaluated by eval.
func OutputPort(name string, offset Pos, eval Evaluator) PortPrototype {
	return PortPrototype{Name: name, Offset: offset, Kind: OutputKind{Eval: eval}}
}

// IsInput reports whether the descriptor is an input.
func (p PortPrototype) IsInput() bool {
	_, ok := p.Kind.(InputKind)
	return ok
}

// Port is a connection endpoint owned by exactly one node.
type Port struct {
	Info PortPrototype
	Node storage.ID
	Kind PortKind
}

// IsInput reports whether p is an input port.
func (p *Port) IsInput() bool {
	_, ok := p.Kind.(InputKind)
	return ok
}

// IsOutput reports whether p is an output port.
func (p *Port) IsOutput() bool {
	_, ok := p.Kind.(OutputKind)
	return ok
}

// Upstream returns the output feeding p. It is false for outputs and for
// unconnected inputs.
func (p *Port) Upstream() (storage.ID, bool) {
	in, ok := p.Kind.(InputKind)
	if !ok || in.Upstream.IsZero() {
		return 0, false
	}
	return in.Upstream, true
}

// RenderFunc draws a node's controls through ui and reports whether it
// changed state. pos is the node's screen position.
type RenderFunc func(ui Widgets, state State, pos Pos) bool

// NodePrototype is the immutable template of a node kind.
type NodePrototype struct {
	Name   string
	Size   Pos
	Ports  []PortPrototype
	State  State      // default state for new instances
	Render RenderFunc // optional
}

// Clone returns a copy that shares no mutable data with p.
func (p NodePrototype) Clone() NodePrototype {
	p.Ports = slices.Clone(p.Ports)
	p.State = p.State.Clone()
	return p
}

// Node is an instance of a prototype placed in a World.
type Node struct {
	// Ports lists the node's port IDs in the prototype's declared order.
	Ports []storage.ID
	// Prototype is the node's private copy of the template it was made from.
	Prototype NodePrototype
	State     State
	Pos       Pos
}

// Bounds returns the node's rectangle as min and max corners.
func (n *Node) Bounds() (Pos, Pos) {
	return n.Pos, n.Pos.Add(n.Prototype.Size)
}

// StateKeys returns the node's state keys in sorted order.
func (n *Node) StateKeys() []string {
	return slices.Sorted(maps.Keys(n.State))
}
