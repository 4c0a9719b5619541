package mem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	name string
	next *node
}

func TestMakeAndAppend(t *testing.T) {
	a := NewArena()

	n := Make(a, node{name: "a"})
	n.next = Make(a, node{name: "b"})
	assert.Equal(t, "b", n.next.name)

	var s []int
	for i := range 1000 {
		s = Append(a, s, i)
	}
	require.Len(t, s, 1000)
	for i, v := range s {
		assert.Equal(t, i, v)
	}

	s2 := MakeSlice(a, []string{"x", "y"})
	assert.Equal(t, []string{"x", "y"}, s2)
	assert.Nil(t, NewSlice[[]int](a, 0, 0))
}

func TestBytesAlignment(t *testing.T) {
	a := NewArena()
	_ = Bytes(a, 3, 1)
	b := Bytes(a, 16, 8)
	require.Len(t, b, 16)
	assert.Zero(t, uintptr(unsafe.Pointer(&b[0]))%8)
	assert.Nil(t, Bytes(a, 0, 4))
}

func TestOversizedAllocations(t *testing.T) {
	a := NewArena()

	big := Bytes(a, 3*slabSize, 8)
	require.Len(t, big, 3*slabSize)
	big[len(big)-1] = 1

	nodes := NewSlice[[]node](a, slabSize, slabSize)
	require.Len(t, nodes, slabSize)
	nodes[len(nodes)-1].name = "last"
}

func TestResetReusesAndZeroes(t *testing.T) {
	a := NewArena()
	b := Bytes(a, 64, 8)
	for i := range b {
		b[i] = 0xff
	}
	before := a.Stats()
	assert.Equal(t, 64, before.InUse)
	assert.Equal(t, 1, before.Slabs)

	a.Reset()
	assert.Zero(t, a.Stats().InUse)

	b2 := Bytes(a, 64, 8)
	assert.Equal(t, make([]byte, 64), b2)
	assert.Equal(t, before.Capacity, a.Stats().Capacity, "reset must not release slabs")

	n := New[node](a)
	n.name = "x"
	a.Reset()
	n2 := New[node](a)
	assert.Empty(t, n2.name)
}
