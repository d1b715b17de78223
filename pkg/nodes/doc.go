// Package nodes provides the built-in node kinds. Each kind is a plain
// graph.NodePrototype value; nothing has to be registered for a kind to be
// usable, Catalog merely lists these for palettes and scripts.
package nodes
