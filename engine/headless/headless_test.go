package headless

import (
	"context"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honnef.co/go/render2d/content"
	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/renderer"
)

var _ renderer.Device = (*Device)(nil)

func newBatcher(t *testing.T) (*renderer.Batcher, *Device) {
	t.Helper()
	m := content.NewManager()
	t.Cleanup(func() { m.Close() })
	RegisterPipelines(m)

	dev := New()
	b, err := renderer.New(dev, m, renderer.Options{})
	require.NoError(t, err)
	for _, typ := range []renderer.DrawType{renderer.DrawSprite, renderer.DrawFont} {
		require.NoError(t, b.Pipeline(typ).(*content.Handle[any]).Wait(context.Background()))
	}
	return b, dev
}

func quad(b *renderer.Batcher, typ renderer.DrawType, mat gfx.Material, depth float32) *renderer.Command {
	key := renderer.EncodeKey(mat.Kind(), typ, depth, mat.ID(), b.Pipeline(typ).ID())
	cmd := b.CreateCommand(typ, key)
	cmd.Material = mat
	cmd.Depth = depth
	cmd.UV = gfx.FullUV
	cmd.Tint = gfx.White
	return cmd
}

func TestSubmit(t *testing.T) {
	b, dev := newBatcher(t)
	sprites := NewMaterial(1, gfx.Transparent, []byte{1, 2, 3, 4})
	glyphs := NewMaterial(2, gfx.Transparent, nil)

	quad(b, renderer.DrawSprite, sprites, 0.5)
	quad(b, renderer.DrawSprite, sprites, 0.5)
	style := gfx.DefaultTextStyle.WithOutline(gfx.Black, 0.25)
	b.SelectStyle(style)
	quad(b, renderer.DrawFont, glyphs, 0.5)
	b.Flush()

	draws := dev.LastSubmission()
	require.Len(t, draws, 2)

	// Font commands sort first.
	text := draws[0]
	assert.Equal(t, 1, text.Quads())
	assert.Same(t, glyphs, text.Material)
	assert.Equal(t, []gfx.TextStyle{style}, text.Styles)
	assert.Nil(t, text.Uniforms[renderer.ScopeMaterial])

	sprite := draws[1]
	assert.Equal(t, 2, sprite.Quads())
	assert.Len(t, sprite.Vertices, 8)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7}, sprite.Indices)
	assert.Equal(t, []byte{1, 2, 3, 4}, sprite.Uniforms[renderer.ScopeMaterial])
	assert.Nil(t, sprite.Styles)

	st := dev.Stats()
	assert.Equal(t, 1, st.Submissions)
	assert.Equal(t, 2, st.Draws)
	assert.Equal(t, 12, st.Vertices)
	assert.Equal(t, 18, st.Indices)
	assert.Zero(t, dev.ArenaStats().InUse, "staging is released after submission")
}

func TestNotReadyMaterial(t *testing.T) {
	b, dev := newBatcher(t)
	mat := NewMaterial(1, gfx.Opaque, nil)
	mat.SetReady(false)
	quad(b, renderer.DrawSprite, mat, 0)
	b.Flush()
	assert.Zero(t, dev.Stats().Submissions)
	assert.Zero(t, dev.Stats().BytesStaged)

	mat.SetReady(true)
	quad(b, renderer.DrawSprite, mat, 0)
	b.Flush()
	assert.Equal(t, 1, dev.Stats().Submissions)
}

func TestSkippedFramesReleaseStaging(t *testing.T) {
	b, dev := newBatcher(t)
	font := NewMaterial(1, gfx.Transparent, nil)
	font.SetReady(false)
	sprite := NewMaterial(2, gfx.Opaque, nil)
	sprite.SetReady(false)

	for i := range 1000 {
		b.SelectStyle(gfx.DefaultTextStyle.WithOutline(gfx.Black, float32(i%8)/8))
		quad(b, renderer.DrawFont, font, 0)
		quad(b, renderer.DrawSprite, sprite, 0)
		b.Flush()
	}
	assert.Zero(t, dev.Stats().Submissions)
	assert.Zero(t, dev.Stats().BytesStaged, "the style table of skipped glyphs isn't uploaded")
	assert.Zero(t, dev.Buffers())
	assert.Zero(t, dev.ArenaStats().InUse)
	assert.Equal(t, 2000, b.Stats().SkippedBatches)
}

func TestDiscard(t *testing.T) {
	dev := New()
	dev.Allocate(gputypes.BufferUsageUniform, 64, 4)
	dev.Allocate(gputypes.BufferUsageVertex, 28, 4)
	assert.Equal(t, 2, dev.Buffers())
	assert.NotZero(t, dev.ArenaStats().InUse)

	dev.Discard()
	assert.Zero(t, dev.Buffers())
	assert.Zero(t, dev.ArenaStats().InUse)
	assert.Equal(t, 1, dev.Stats().Discards)
	assert.Zero(t, dev.Stats().Submissions)

	_, slice := dev.Allocate(gputypes.BufferUsageVertex, 28, 1)
	assert.Equal(t, uint32(0), slice.Buffer, "buffer indices start over")
}

func TestAllocateUsage(t *testing.T) {
	dev := New()
	data, slice := dev.Allocate(gputypes.BufferUsageVertex, 28, 4)
	assert.Len(t, data, 112)
	assert.Equal(t, uint64(112), slice.Size())
	assert.Panics(t, func() { dev.view(slice, gputypes.BufferUsageIndex) })
	assert.Panics(t, func() { dev.Allocate(gputypes.BufferUsageVertex, 0, 1) })
}
