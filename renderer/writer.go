package renderer

import (
	"structs"
	"unsafe"

	"github.com/gogpu/gputypes"
	"honnef.co/go/safeish"

	"honnef.co/go/render2d/gfx"
)

// WriteFunc turns the commands [offset, offset+count) of the batcher into
// device operations. All of these commands share pipeline and material.
type WriteFunc func(b *Batcher, offset, count int, pipeline gfx.Pipeline, material gfx.Material)

// Vertex is the vertex format shared by the sprite and text pipelines.
type Vertex struct {
	_ structs.HostLayout

	// x, y and depth
	Position [3]float32
	UV       [2]float32
	Color    gfx.RGBA
	Instance uint32
}

const vertexSize = int(unsafe.Sizeof(Vertex{}))

// VertexLayout describes Vertex to the device.
func VertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: uint64(vertexSize),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position, depth
				{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1}, // uv
				{Format: gputypes.VertexFormatUnorm8x4, Offset: 20, ShaderLocation: 2},  // color
				{Format: gputypes.VertexFormatUint32, Offset: 24, ShaderLocation: 3},    // instance
			},
		},
	}
}

func writeSprites(b *Batcher, offset, count int, pipeline gfx.Pipeline, material gfx.Material) {
	b.WriteQuads(offset, count, pipeline, material, false)
}

func writeGlyphs(b *Batcher, offset, count int, pipeline gfx.Pipeline, material gfx.Material) {
	b.WriteQuads(offset, count, pipeline, material, true)
}

// WriteQuads expands each command in [offset, offset+count) into four
// vertices and six indices and records a single indexed draw for all of
// them. If styled is true, the style table is bound as well. It may only be
// called by a WriteFunc.
func (b *Batcher) WriteQuads(offset, count int, pipeline gfx.Pipeline, material gfx.Material, styled bool) {
	if b.state != stateFlushing {
		panic("WriteQuads called outside of Flush")
	}

	var styles BufferSlice
	if styled {
		styles = b.styleTable()
	}
	vdata, vslice := b.dev.Allocate(gputypes.BufferUsageVertex, vertexSize, 4*count)
	idata, islice := b.dev.Allocate(gputypes.BufferUsageIndex, 4, 6*count)
	verts := safeish.SliceCast[[]Vertex](vdata)
	indices := safeish.SliceCast[[]uint32](idata)
	for i := range count {
		writeQuad(verts[4*i:4*i+4], b.pool.at(offset+i))
		writeQuadIndices(indices[6*i:6*i+6], uint32(4*i))
	}

	arena := b.arena
	rec := &b.rec
	rec.SetPipeline(arena, pipeline)
	rec.Bind(arena, material)
	rec.SetVertices(arena, vslice)
	rec.SetIndices(arena, islice, gputypes.IndexFormatUint32)
	for scope := ScopeGlobal; scope <= ScopeStyle; scope++ {
		rec.SetUniform(arena, scope, b.scopeData[scope])
	}
	if params := material.Params(); len(params) > 0 {
		rec.SetUniform(arena, ScopeMaterial, params)
	}
	if styled {
		rec.BindBuffer(arena, ScopeStyleTable, styles)
	}
	rec.DrawIndexed(arena, uint32(6*count))
}

func writeQuad(dst []Vertex, cmd *Command) {
	uv := [4][2]float32{
		cmd.UV.Min,
		{cmd.UV.Max[0], cmd.UV.Min[1]},
		cmd.UV.Max,
		{cmd.UV.Min[0], cmd.UV.Max[1]},
	}
	for i := range 4 {
		dst[i] = Vertex{
			Position: [3]float32{cmd.Quad[i][0], cmd.Quad[i][1], cmd.Depth},
			UV:       uv[i],
			Color:    cmd.Tint,
			Instance: cmd.Instance,
		}
	}
}

func writeQuadIndices(dst []uint32, base uint32) {
	dst[0] = base
	dst[1] = base + 1
	dst[2] = base + 2
	dst[3] = base
	dst[4] = base + 2
	dst[5] = base + 3
}
