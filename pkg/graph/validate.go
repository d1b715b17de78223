package graph

import (
	"fmt"
	"slices"

	"github.com/chazu/nodes/pkg/storage"
)

// ValidationSeverity indicates whether a validation finding makes evaluation
// unreliable or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // evaluation cannot be trusted
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Node     storage.ID         // zero if not tied to a node
	Port     storage.ID         // zero if not tied to a port
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	switch {
	case !e.Port.IsZero():
		return fmt.Sprintf("[%s] port %s: %s", e.Severity, e.Port, e.Message)
	case !e.Node.IsZero():
		return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.Node, e.Message)
	default:
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
}

// Validate runs the structural checks on w and returns every finding. An
// empty result means the graph is sound. Validate never mutates w.
func Validate(w *World) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateReferences(w)...)
	errs = append(errs, validatePorts(w)...)
	errs = append(errs, validateCycles(w)...)
	return errs
}

// HasErrors reports whether any finding has error severity.
func HasErrors(findings []ValidationError) bool {
	return slices.ContainsFunc(findings, func(e ValidationError) bool {
		return e.Severity == SeverityError
	})
}

// validateReferences checks that every ID stored in a node or port names a
// live entry of the right arena.
func validateReferences(w *World) []ValidationError {
	var errs []ValidationError

	for id, n := range w.Nodes() {
		for _, pid := range n.Ports {
			if !w.HasPort(pid) {
				errs = append(errs, ValidationError{
					Node:     id,
					Message:  fmt.Sprintf("owned port %s does not exist", pid),
					Severity: SeverityError,
				})
			} else if owner := w.Port(pid).Node; owner != id {
				errs = append(errs, ValidationError{
					Node:     id,
					Port:     pid,
					Message:  fmt.Sprintf("port is owned by %s, not by this node", owner),
					Severity: SeverityError,
				})
			}
		}
	}

	for id, p := range w.Ports() {
		if !w.HasNode(p.Node) {
			errs = append(errs, ValidationError{
				Port:     id,
				Message:  fmt.Sprintf("owning node %s does not exist", p.Node),
				Severity: SeverityError,
			})
		}
		up, ok := p.Upstream()
		if !ok {
			continue
		}
		if !w.HasPort(up) {
			errs = append(errs, ValidationError{
				Node:     p.Node,
				Port:     id,
				Message:  fmt.Sprintf("upstream %s does not exist", up),
				Severity: SeverityError,
			})
		} else if !w.Port(up).IsOutput() {
			errs = append(errs, ValidationError{
				Node:     p.Node,
				Port:     id,
				Message:  fmt.Sprintf("upstream %s is an input, not an output", up),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validatePorts checks per-port invariants: outputs carry an evaluator, and
// unconnected inputs are reported as warnings since they resolve through the
// context only.
func validatePorts(w *World) []ValidationError {
	var errs []ValidationError

	for id, p := range w.Ports() {
		switch k := p.Kind.(type) {
		case OutputKind:
			if k.Eval == nil {
				errs = append(errs, ValidationError{
					Node:     p.Node,
					Port:     id,
					Message:  fmt.Sprintf("output %q has no evaluator", p.Info.Name),
					Severity: SeverityError,
				})
			}
		case InputKind:
			if k.Upstream.IsZero() {
				errs = append(errs, ValidationError{
					Node:     p.Node,
					Port:     id,
					Message:  fmt.Sprintf("input %q is unconnected and reads from the context", p.Info.Name),
					Severity: SeverityWarning,
				})
			}
		}
	}

	return errs
}

// validateCycles checks for cycles using DFS with 3-color marking over output
// ports. An output depends on the upstreams of its node's inputs.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
func validateCycles(w *World) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[storage.ID]int)
	var errs []ValidationError

	var visit func(id storage.ID) bool // returns true if cycle found
	visit = func(id storage.ID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			p := w.Port(id)
			errs = append(errs, ValidationError{
				Node:     p.Node,
				Port:     id,
				Message:  fmt.Sprintf("cycle detected: output %q of %s feeds itself", p.Info.Name, w.Node(p.Node).Prototype.Name),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		p := w.Port(id)
		if w.HasNode(p.Node) {
			for _, pid := range w.Node(p.Node).Ports {
				if !w.HasPort(pid) {
					continue
				}
				// Dangling upstreams are handled by validateReferences.
				if up, ok := w.Port(pid).Upstream(); ok && w.HasPort(up) && w.Port(up).IsOutput() {
					if visit(up) {
						return true
					}
				}
			}
		}
		color[id] = black
		return false
	}

	for id, p := range w.Ports() {
		if p.IsOutput() && color[id] == white {
			if visit(id) {
				// One cycle error is sufficient; stop early.
				break
			}
		}
	}

	return errs
}
