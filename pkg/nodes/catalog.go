package nodes

import (
	"slices"

	"github.com/chazu/nodes/pkg/graph"
)

// Kind pairs a display name with the constructor of its prototype.
type Kind struct {
	Name string
	New  func() graph.NodePrototype
}

var catalog = []Kind{
	{Name: "Constant", New: Constant},
	{Name: "Binary Math", New: BinaryMath},
	{Name: "Attr", New: Attribute},
	{Name: "Exp", New: Exp},
	{Name: "Out", New: Output},
	{Name: "Expr", New: Expression},
}

// Catalog returns the built-in kinds in palette order.
func Catalog() []Kind {
	return slices.Clone(catalog)
}

// Lookup returns a fresh prototype for the kind called name.
func Lookup(name string) (graph.NodePrototype, bool) {
	for _, k := range catalog {
		if k.Name == name {
			return k.New(), true
		}
	}
	return graph.NodePrototype{}, false
}

// Names returns the names of the built-in kinds in palette order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, k := range catalog {
		names[i] = k.Name
	}
	return names
}
