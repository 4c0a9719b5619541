package renderer

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/require"

	"honnef.co/go/render2d/gfx"
)

type fakePipeline struct {
	id    uint32
	ready bool
}

func (p *fakePipeline) ID() uint32         { return p.id }
func (p *fakePipeline) HasCompleted() bool { return p.ready }

type fakeMaterial struct {
	id     uint32
	kind   gfx.MaterialKind
	params []byte
	ready  bool
}

func (m *fakeMaterial) ID() uint32             { return m.id }
func (m *fakeMaterial) Kind() gfx.MaterialKind { return m.kind }
func (m *fakeMaterial) Params() []byte         { return m.params }
func (m *fakeMaterial) HasCompleted() bool     { return m.ready }

type fakeContent struct {
	pipelines map[string]*fakePipeline
}

func (c *fakeContent) LoadPipeline(id string) gfx.Pipeline {
	if p, ok := c.pipelines[id]; ok {
		return p
	}
	p := &fakePipeline{id: uint32(len(c.pipelines) + 1), ready: true}
	c.pipelines[id] = p
	return p
}

type allocation struct {
	usage  gputypes.BufferUsage
	stride int
	count  int
	data   []byte
}

// fakeDevice keeps every allocation and a copy of every submitted op.
type fakeDevice struct {
	allocs      []allocation
	submissions [][]any
	discards    int
}

func (d *fakeDevice) Discard() { d.discards++ }

func (d *fakeDevice) Allocate(usage gputypes.BufferUsage, stride, count int) ([]byte, BufferSlice) {
	data := make([]byte, stride*count)
	d.allocs = append(d.allocs, allocation{usage, stride, count, data})
	return data, BufferSlice{
		Buffer: uint32(len(d.allocs) - 1),
		Stride: uint32(stride),
		Count:  uint32(count),
	}
}

func (d *fakeDevice) Submit(rec *Recording) {
	var ops []any
	for _, op := range rec.Ops {
		switch op := op.(type) {
		case *SetPipeline:
			ops = append(ops, *op)
		case *BindMaterial:
			ops = append(ops, *op)
		case *SetVertices:
			ops = append(ops, *op)
		case *SetIndices:
			ops = append(ops, *op)
		case *SetUniform:
			ops = append(ops, SetUniform{op.Scope, bytes.Clone(op.Data)})
		case *BindBuffer:
			ops = append(ops, *op)
		case *DrawIndexed:
			ops = append(ops, *op)
		default:
			panic(fmt.Sprintf("unhandled type %T", op))
		}
	}
	d.submissions = append(d.submissions, ops)
}

func (d *fakeDevice) allocsOf(usage gputypes.BufferUsage) []allocation {
	var out []allocation
	for _, a := range d.allocs {
		if a.usage == usage {
			out = append(out, a)
		}
	}
	return out
}

func (d *fakeDevice) draws() []DrawIndexed {
	var out []DrawIndexed
	for _, sub := range d.submissions {
		for _, op := range sub {
			if op, ok := op.(DrawIndexed); ok {
				out = append(out, op)
			}
		}
	}
	return out
}

func newTestBatcher(t *testing.T, opts Options) (*Batcher, *fakeDevice, *fakeContent) {
	t.Helper()
	dev := &fakeDevice{}
	content := &fakeContent{pipelines: map[string]*fakePipeline{}}
	b, err := New(dev, content, opts)
	require.NoError(t, err)
	return b, dev, content
}

func drawSprite(b *Batcher, mat *fakeMaterial, depth float32, tint gfx.RGBA) *Command {
	key := EncodeKey(mat.kind, DrawSprite, depth, mat.id, b.Pipeline(DrawSprite).ID())
	cmd := b.CreateCommand(DrawSprite, key)
	cmd.Material = mat
	cmd.Depth = depth
	cmd.Tint = tint
	cmd.UV = gfx.FullUV
	cmd.Quad = [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	return cmd
}

func drawGlyph(b *Batcher, mat *fakeMaterial, depth float32) *Command {
	key := EncodeKey(mat.kind, DrawFont, depth, mat.id, b.Pipeline(DrawFont).ID())
	cmd := b.CreateCommand(DrawFont, key)
	cmd.Material = mat
	cmd.Depth = depth
	cmd.UV = gfx.FullUV
	return cmd
}
