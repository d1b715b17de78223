package graph

import (
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortPrototypeConstructors(t *testing.T) {
	in := InputPort("A", v2.Vec{X: 1, Y: 2})
	assert.True(t, in.IsInput())
	assert.Equal(t, InputKind{}, in.Kind)

	out := OutputPort("Out", v2.Vec{}, EvaluatorFunc(func(Inputs, State, Context) (float64, bool) { return 1, true }))
	assert.False(t, out.IsInput())
	k, ok := out.Kind.(OutputKind)
	require.True(t, ok)
	require.NotNil(t, k.Eval)
}

func TestPortUpstream(t *testing.T) {
	p := Port{Kind: InputKind{}}
	_, ok := p.Upstream()
	assert.False(t, ok, "unconnected input")

	p.Kind = InputKind{Upstream: 42}
	up, ok := p.Upstream()
	assert.True(t, ok)
	assert.EqualValues(t, 42, up)

	p.Kind = OutputKind{}
	_, ok = p.Upstream()
	assert.False(t, ok, "outputs have no upstream")
	assert.True(t, p.IsOutput())
	assert.False(t, p.IsInput())
}

func TestPrototypeCloneIsIndependent(t *testing.T) {
	proto := constProto(2)
	clone := proto.Clone()

	proto.State["val"] = Float(99)
	proto.Ports[0].Name = "changed"

	v, ok := clone.State.Float("val")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, "", clone.Ports[0].Name)
}

func TestNodeBounds(t *testing.T) {
	n := Node{Pos: v2.Vec{X: 10, Y: 20}, Prototype: NodePrototype{Size: v2.Vec{X: 80, Y: 40}}}
	lo, hi := n.Bounds()
	assert.Equal(t, v2.Vec{X: 10, Y: 20}, lo)
	assert.Equal(t, v2.Vec{X: 90, Y: 60}, hi)
}
