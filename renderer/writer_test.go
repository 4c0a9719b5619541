package renderer

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/safeish"

	"honnef.co/go/render2d/gfx"
)

func vertices(dev *fakeDevice) []Vertex {
	var out []Vertex
	for _, a := range dev.allocsOf(gputypes.BufferUsageVertex) {
		out = append(out, safeish.SliceCast[[]Vertex](a.data)...)
	}
	return out
}

func indices(dev *fakeDevice) []uint32 {
	var out []uint32
	for _, a := range dev.allocsOf(gputypes.BufferUsageIndex) {
		out = append(out, safeish.SliceCast[[]uint32](a.data)...)
	}
	return out
}

func TestVertexSize(t *testing.T) {
	assert.Equal(t, 28, vertexSize)
	layout := VertexLayout()
	require.Len(t, layout, 1)
	assert.Equal(t, uint64(vertexSize), layout[0].ArrayStride)
	assert.Len(t, layout[0].Attributes, 4)
}

func TestWriteQuads(t *testing.T) {
	b, dev, _ := newTestBatcher(t, Options{})
	mat := &fakeMaterial{id: 1, kind: gfx.Opaque, ready: true}
	tint := gfx.RGBA8(10, 20, 30, 40)

	for i := range 2 {
		cmd := drawSprite(b, mat, 0.5, tint)
		off := float32(10 * i)
		cmd.Quad = [4][2]float32{{off, 0}, {off + 4, 0}, {off + 4, 2}, {off, 2}}
		cmd.UV = gfx.UVRect{Min: [2]float32{0.25, 0.5}, Max: [2]float32{0.75, 1}}
	}
	b.Flush()

	verts := vertices(dev)
	want := []Vertex{
		{Position: [3]float32{0, 0, 0.5}, UV: [2]float32{0.25, 0.5}, Color: tint},
		{Position: [3]float32{4, 0, 0.5}, UV: [2]float32{0.75, 0.5}, Color: tint},
		{Position: [3]float32{4, 2, 0.5}, UV: [2]float32{0.75, 1}, Color: tint},
		{Position: [3]float32{0, 2, 0.5}, UV: [2]float32{0.25, 1}, Color: tint},
		{Position: [3]float32{10, 0, 0.5}, UV: [2]float32{0.25, 0.5}, Color: tint},
		{Position: [3]float32{14, 0, 0.5}, UV: [2]float32{0.75, 0.5}, Color: tint},
		{Position: [3]float32{14, 2, 0.5}, UV: [2]float32{0.75, 1}, Color: tint},
		{Position: [3]float32{10, 2, 0.5}, UV: [2]float32{0.25, 1}, Color: tint},
	}
	assert.Equal(t, want, verts)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7}, indices(dev))
	assert.Equal(t, []DrawIndexed{{IndexCount: 12}}, dev.draws())
}

func TestWriteGlyphsBindsStyleTable(t *testing.T) {
	b, dev, _ := newTestBatcher(t, Options{})
	mat := &fakeMaterial{id: 1, kind: gfx.Transparent, ready: true}
	b.SelectStyle(gfx.DefaultTextStyle)
	idx := b.SelectStyle(gfx.DefaultTextStyle.WithOutline(gfx.White, 0.5))
	drawGlyph(b, mat, 0)
	b.Flush()

	verts := vertices(dev)
	require.Len(t, verts, 4)
	for _, v := range verts {
		assert.Equal(t, idx, v.Instance)
	}

	require.Len(t, dev.submissions, 1)
	var bound []BindBuffer
	for _, op := range dev.submissions[0] {
		if op, ok := op.(BindBuffer); ok {
			bound = append(bound, op)
		}
	}
	require.Len(t, bound, 1)
	assert.Equal(t, ScopeStyleTable, bound[0].Scope)
	assert.Equal(t, BufferSlice{Buffer: 0, Stride: 64, Count: 2}, bound[0].Slice)
}

func TestWriteQuadsOutsideFlushPanics(t *testing.T) {
	b, _, _ := newTestBatcher(t, Options{})
	assert.Panics(t, func() {
		b.WriteQuads(0, 0, b.Pipeline(DrawSprite), &fakeMaterial{}, false)
	})
}
