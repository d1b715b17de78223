package graph

import (
	"slices"

	"github.com/benbjohnson/immutable"
)

// Context is an immutable set of named values threaded through evaluation.
// The zero value is the empty context. Copies are cheap: With shares
// structure with its receiver.
type Context struct {
	m *immutable.Map[string, float64]
}

// ContextFrom builds a context holding the entries of vars.
func ContextFrom(vars map[string]float64) Context {
	var c Context
	for k, v := range vars {
		c = c.With(k, v)
	}
	return c
}

// With returns a context that additionally binds name to v. The receiver is
// unchanged.
func (c Context) With(name string, v float64) Context {
	m := c.m
	if m == nil {
		m = immutable.NewMap[string, float64](nil)
	}
	return Context{m: m.Set(name, v)}
}

// Lookup returns the value bound to name.
func (c Context) Lookup(name string) (float64, bool) {
	if c.m == nil {
		return 0, false
	}
	return c.m.Get(name)
}

// Len returns the number of bindings.
func (c Context) Len() int {
	if c.m == nil {
		return 0
	}
	return c.m.Len()
}

// Names returns the bound names in sorted order.
func (c Context) Names() []string {
	if c.m == nil {
		return nil
	}
	names := make([]string, 0, c.m.Len())
	itr := c.m.Iterator()
	for !itr.Done() {
		k, _, _ := itr.Next()
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Map returns the bindings as a plain map.
func (c Context) Map() map[string]float64 {
	out := make(map[string]float64, c.Len())
	if c.m == nil {
		return out
	}
	itr := c.m.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		out[k] = v
	}
	return out
}
