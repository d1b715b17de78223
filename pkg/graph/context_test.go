package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextZeroValueIsEmpty(t *testing.T) {
	var c Context
	_, ok := c.Lookup("x")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Names())
	assert.Empty(t, c.Map())
}

func TestContextWithDoesNotMutateReceiver(t *testing.T) {
	base := Context{}.With("x", 1)
	child := base.With("y", 2)
	shadow := base.With("x", 10)

	_, ok := base.Lookup("y")
	assert.False(t, ok)

	y, ok := child.Lookup("y")
	require.True(t, ok)
	assert.Equal(t, 2.0, y)

	x, _ := base.Lookup("x")
	assert.Equal(t, 1.0, x)
	x, _ = shadow.Lookup("x")
	assert.Equal(t, 10.0, x)
}

func TestContextFrom(t *testing.T) {
	c := ContextFrom(map[string]float64{"b": 2, "a": 1})
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b"}, c.Names())
	assert.Equal(t, map[string]float64{"a": 1, "b": 2}, c.Map())
}
