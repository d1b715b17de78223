// Package graph defines the node graph data model and its evaluator.
//
// A World owns two arenas, one of nodes and one of ports. Nodes are created
// from immutable prototypes, which are cloned into each instance. Every
// output port carries an Evaluator; evaluating an output pulls values
// through the wired inputs of its node, recursively, with an immutable
// Context of named values threaded down the call chain. Nothing is cached
// between evaluations.
package graph
