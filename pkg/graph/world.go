package graph

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/chazu/nodes/pkg/storage"
)

// World owns every node and port of one graph. It is the only mutator of
// topology. A World is not safe for concurrent use.
type World struct {
	nodes  *storage.Storage[Node]
	ports  *storage.Storage[Port]
	logger *slog.Logger
}

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger used for evaluation traces.
func WithLogger(l *slog.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorld returns an empty World.
func NewWorld(opts ...Option) *World {
	w := &World{
		nodes:  storage.New[Node](),
		ports:  storage.New[Port](),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CreateNode instantiates proto at pos. The node keeps its own clone of the
// prototype and owns one port per descriptor, in declared order.
func (w *World) CreateNode(pos Pos, proto NodePrototype) storage.ID {
	proto = proto.Clone()
	_, id := w.nodes.Create(Node{
		Prototype: proto,
		State:     proto.State.Clone(),
		Pos:       pos,
	})

	ports := make([]storage.ID, 0, len(proto.Ports))
	for _, info := range proto.Ports {
		_, pid := w.ports.Create(Port{Info: info, Node: id, Kind: info.Kind})
		ports = append(ports, pid)
	}
	w.nodes.Get(id).Ports = ports
	return id
}

// Node returns the node for id. It panics if id is not live.
func (w *World) Node(id storage.ID) *Node { return w.nodes.Get(id) }

// Port returns the port for id. It panics if id is not live.
func (w *World) Port(id storage.ID) *Port { return w.ports.Get(id) }

// HasNode reports whether id names a live node.
func (w *World) HasNode(id storage.ID) bool { return w.nodes.Exists(id) }

// HasPort reports whether id names a live port.
func (w *World) HasPort(id storage.ID) bool { return w.ports.Exists(id) }

// Nodes iterates over all live nodes in arena order.
func (w *World) Nodes() iter.Seq2[storage.ID, *Node] { return w.nodes.All() }

// Ports iterates over all live ports in arena order.
func (w *World) Ports() iter.Seq2[storage.ID, *Port] { return w.ports.All() }

// NodeCount returns the number of live nodes.
func (w *World) NodeCount() int { return w.nodes.Len() }

// PortCount returns the number of live ports.
func (w *World) PortCount() int { return w.ports.Len() }

// GetPortPosition returns the absolute position of a port: its node's
// position plus the port's offset.
func (w *World) GetPortPosition(id storage.ID) Pos {
	p := w.ports.Get(id)
	return w.nodes.Get(p.Node).Pos.Add(p.Info.Offset)
}

// Connect makes output the upstream of input, replacing any previous link.
func (w *World) Connect(input, output storage.ID) error {
	in := w.ports.Get(input)
	out := w.ports.Get(output)
	if !in.IsInput() {
		return fmt.Errorf("connect %s: %w", input, ErrNotInput)
	}
	if !out.IsOutput() {
		return fmt.Errorf("connect %s: %w", output, ErrNotOutput)
	}
	in.Kind = InputKind{Upstream: output}
	return nil
}

// Disconnect clears the upstream of input.
func (w *World) Disconnect(input storage.ID) error {
	in := w.ports.Get(input)
	if !in.IsInput() {
		return fmt.Errorf("disconnect %s: %w", input, ErrNotInput)
	}
	in.Kind = InputKind{}
	return nil
}

// MoveNode sets the position of a node.
func (w *World) MoveNode(id storage.ID, pos Pos) {
	w.nodes.Get(id).Pos = pos
}

// RemoveNode deletes a node and its ports. Inputs elsewhere that were fed by
// one of the removed ports become unconnected.
func (w *World) RemoveNode(id storage.ID) {
	n := w.nodes.Get(id)
	owned := make(map[storage.ID]bool, len(n.Ports))
	for _, pid := range n.Ports {
		owned[pid] = true
		w.ports.Remove(pid)
	}
	w.nodes.Remove(id)

	for pid, p := range w.ports.All() {
		if up, ok := p.Upstream(); ok && owned[up] {
			p.Kind = InputKind{}
			w.logger.Debug("cleared dangling upstream", "port", pid, "upstream", up)
		}
	}
}

// InputsOf returns the input ports of a node in declared order.
func (w *World) InputsOf(node storage.ID) []storage.ID {
	return w.portsOf(node, true)
}

// OutputsOf returns the output ports of a node in declared order.
func (w *World) OutputsOf(node storage.ID) []storage.ID {
	return w.portsOf(node, false)
}

func (w *World) portsOf(node storage.ID, inputs bool) []storage.ID {
	var out []storage.ID
	for _, pid := range w.nodes.Get(node).Ports {
		if w.ports.Get(pid).IsInput() == inputs {
			out = append(out, pid)
		}
	}
	return out
}

// PortByName returns the first port of node whose descriptor is called name.
func (w *World) PortByName(node storage.ID, name string) (storage.ID, error) {
	n := w.nodes.Get(node)
	for _, pid := range n.Ports {
		if w.ports.Get(pid).Info.Name == name {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("%s has no port %q: %w", n.Prototype.Name, name, ErrUnknownPort)
}
