package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/nodes/pkg/storage"
)

var (
	// ErrNotInput is returned when an operation needs an input port.
	ErrNotInput = errors.New("port is not an input")
	// ErrNotOutput is returned when an operation needs an output port.
	ErrNotOutput = errors.New("port is not an output")
	// ErrUnknownPort is returned when a node has no port with a given name.
	ErrUnknownPort = errors.New("unknown port")
)

// CyclicGraphError reports an evaluation that reached an output port already
// being evaluated further up the same call chain.
type CyclicGraphError struct {
	Port storage.ID   // the output port that was re-entered
	Path []storage.ID // output ports on the stack, outermost first
}

func (e *CyclicGraphError) Error() string {
	parts := make([]string, 0, len(e.Path)+1)
	for _, id := range e.Path {
		parts = append(parts, id.String())
	}
	parts = append(parts, e.Port.String())
	return fmt.Sprintf("cyclic graph: %s", strings.Join(parts, " -> "))
}
