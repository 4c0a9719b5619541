// Package headless implements a renderer.Device that keeps everything in
// host memory. It records what would have been drawn, which makes it useful
// for tests and for inspecting the batching of a scene.
package headless

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"honnef.co/go/safeish"

	"honnef.co/go/render2d/content"
	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/mem"
	"honnef.co/go/render2d/renderer"
)

// Draw is a copy of one indexed draw of a submission.
type Draw struct {
	Pipeline gfx.Pipeline
	Material gfx.Material
	Vertices []renderer.Vertex
	Indices  []uint32
	// Uniforms holds the data bound to each scope at the time of the draw.
	Uniforms [renderer.NumScopes][]byte
	Styles   []gfx.TextStyle
}

// Quads returns the number of quads drawn.
func (d *Draw) Quads() int { return len(d.Indices) / 6 }

type Stats struct {
	Submissions int
	Discards    int
	Draws       int
	Vertices    int
	Indices     int
	// BytesStaged counts the bytes handed out by Allocate.
	BytesStaged int
}

type buffer struct {
	usage gputypes.BufferUsage
	data  []byte
}

type Device struct {
	arena   *mem.Arena
	buffers []buffer
	last    []Draw
	stats   Stats
}

func New() *Device {
	return &Device{arena: mem.NewArena()}
}

func (d *Device) Allocate(usage gputypes.BufferUsage, stride, count int) ([]byte, renderer.BufferSlice) {
	if stride <= 0 || count < 0 {
		panic(fmt.Sprintf("invalid allocation of %d elements of size %d", count, stride))
	}
	data := mem.Bytes(d.arena, stride*count, 8)
	d.buffers = append(d.buffers, buffer{usage, data})
	d.stats.BytesStaged += len(data)
	return data, renderer.BufferSlice{
		Buffer: uint32(len(d.buffers) - 1),
		Stride: uint32(stride),
		Count:  uint32(count),
	}
}

func (d *Device) view(slice renderer.BufferSlice, usage gputypes.BufferUsage) []byte {
	if int(slice.Buffer) >= len(d.buffers) {
		panic(fmt.Sprintf("unknown buffer %d", slice.Buffer))
	}
	buf := d.buffers[slice.Buffer]
	if buf.usage&usage == 0 {
		panic(fmt.Sprintf("buffer %d bound with wrong usage", slice.Buffer))
	}
	return buf.data[slice.Offset : slice.Offset+slice.Size()]
}

func (d *Device) Submit(rec *renderer.Recording) {
	d.last = d.last[:0]
	var cur Draw
	var vertices, indices []byte
	for _, op := range rec.Ops {
		switch op := op.(type) {
		case *renderer.SetPipeline:
			cur.Pipeline = op.Pipeline
		case *renderer.BindMaterial:
			cur.Material = op.Material
			cur.Uniforms[renderer.ScopeMaterial] = nil
		case *renderer.SetVertices:
			vertices = d.view(op.Slice, gputypes.BufferUsageVertex)
		case *renderer.SetIndices:
			if op.Format != gputypes.IndexFormatUint32 {
				panic("only 32-bit indices are supported")
			}
			indices = d.view(op.Slice, gputypes.BufferUsageIndex)
		case *renderer.SetUniform:
			cur.Uniforms[op.Scope] = op.Data
		case *renderer.BindBuffer:
			data := d.view(op.Slice, gputypes.BufferUsageUniform)
			cur.Uniforms[op.Scope] = data
			if op.Scope == renderer.ScopeStyleTable {
				cur.Styles = safeish.SliceCast[[]gfx.TextStyle](data)
			}
		case *renderer.DrawIndexed:
			draw := Draw{
				Pipeline: cur.Pipeline,
				Material: cur.Material,
				Vertices: slices.Clone(safeish.SliceCast[[]renderer.Vertex](vertices)),
				Indices:  slices.Clone(safeish.SliceCast[[]uint32](indices)[op.FirstIndex : op.FirstIndex+op.IndexCount]),
				Styles:   slices.Clone(cur.Styles),
			}
			for scope, data := range cur.Uniforms {
				draw.Uniforms[scope] = slices.Clone(data)
			}
			d.last = append(d.last, draw)
			d.stats.Draws++
			d.stats.Vertices += len(draw.Vertices)
			d.stats.Indices += len(draw.Indices)
			cur.Styles = nil
			cur.Uniforms[renderer.ScopeStyleTable] = nil
		default:
			panic(fmt.Sprintf("unhandled type %T", op))
		}
	}
	d.stats.Submissions++
	d.release()
}

func (d *Device) Discard() {
	d.stats.Discards++
	d.release()
}

func (d *Device) release() {
	clear(d.buffers)
	d.buffers = d.buffers[:0]
	d.arena.Reset()
}

// Buffers returns the number of buffers allocated since the last Submit or
// Discard.
func (d *Device) Buffers() int { return len(d.buffers) }

// LastSubmission returns the draws of the most recent call to Submit. It is
// only valid until the next call.
func (d *Device) LastSubmission() []Draw { return d.last }

func (d *Device) Stats() Stats { return d.stats }

// ArenaStats reports the staging memory in use.
func (d *Device) ArenaStats() mem.Stats { return d.arena.Stats() }

// Pipeline is the value the headless pipeline loaders produce.
type Pipeline struct {
	Name string
}

// RegisterPipelines registers loaders for the built-in pipelines.
func RegisterPipelines(m *content.Manager) {
	for _, id := range []string{renderer.SpritePipelineID, renderer.FontPipelineID} {
		m.Register(id, func(ctx context.Context, id string) (any, error) {
			return &Pipeline{Name: id}, nil
		})
	}
}

// Material is a material without textures.
type Material struct {
	id     uint32
	kind   gfx.MaterialKind
	params []byte
	ready  atomic.Bool
}

// NewMaterial returns a material that is ready unless told otherwise via
// SetReady.
func NewMaterial(id uint32, kind gfx.MaterialKind, params []byte) *Material {
	m := &Material{id: id, kind: kind, params: params}
	m.ready.Store(true)
	return m
}

func (m *Material) ID() uint32             { return m.id }
func (m *Material) Kind() gfx.MaterialKind { return m.kind }
func (m *Material) Params() []byte         { return m.params }
func (m *Material) HasCompleted() bool     { return m.ready.Load() }
func (m *Material) SetReady(ready bool)    { m.ready.Store(ready) }
