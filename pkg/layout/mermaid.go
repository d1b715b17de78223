package layout

import (
	"fmt"
	"strings"

	"github.com/chazu/nodes/pkg/graph"
	"github.com/chazu/nodes/pkg/storage"
)

// Mermaid renders the topology of w as a Mermaid flowchart. Edges run from
// the producing node to the consuming node and are labelled with the input
// name.
func Mermaid(w *graph.World) string {
	var sb strings.Builder

	sb.WriteString("graph LR\n")

	for _, id := range sortedNodes(w) {
		fmt.Fprintf(&sb, "    %s[%q]\n", mermaidID(id), w.Node(id).Prototype.Name)
	}

	for _, id := range sortedNodes(w) {
		for _, pid := range w.InputsOf(id) {
			p := w.Port(pid)
			up, ok := p.Upstream()
			if !ok || !w.HasPort(up) {
				continue
			}
			from := w.Port(up).Node
			fmt.Fprintf(&sb, "    %s -->|%s| %s\n", mermaidID(from), p.Info.Name, mermaidID(id))
		}
	}

	return sb.String()
}

func mermaidID(id storage.ID) string {
	return fmt.Sprintf("n%d_%d", id.Index(), id.Generation())
}
