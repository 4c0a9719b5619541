package font

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"honnef.co/go/render2d/gfx"
)

type material struct{ ready bool }

func (m *material) ID() uint32             { return 1 }
func (m *material) Kind() gfx.MaterialKind { return gfx.Transparent }
func (m *material) Params() []byte         { return nil }
func (m *material) HasCompleted() bool     { return m.ready }

func TestLoadSFNT(t *testing.T) {
	f, err := LoadSFNT(goregular.TTF, SFNTOptions{})
	require.NoError(t, err)
	assert.True(t, f.HasCompleted())
	assert.Equal(t, len(ASCII), f.NumGlyphs())
	assert.NotEmpty(t, f.Name())

	m := f.Metrics()
	assert.Positive(t, m.Ascender)
	assert.Positive(t, m.Descender)
	assert.GreaterOrEqual(t, m.LineHeight, m.Ascender)
	assert.Less(t, m.LineHeight, float32(2))

	a, ok := f.Glyph('A')
	require.True(t, ok)
	assert.Positive(t, a.Advance)
	assert.Less(t, a.Advance, float32(1))
	assert.False(t, a.Plane.Empty())
	assert.Negative(t, a.Plane.Y0, "glyphs extend above the baseline")

	space, ok := f.Glyph(' ')
	require.True(t, ok)
	assert.Positive(t, space.Advance)
	assert.True(t, space.Plane.Empty())

	_, ok = f.Glyph('€')
	assert.False(t, ok)
	assert.Zero(t, f.Kerning('€', 'A'))
}

func TestAtlasGrid(t *testing.T) {
	f, err := LoadSFNT(goregular.TTF, SFNTOptions{Runes: []rune("abcde")})
	require.NoError(t, err)

	// Five glyphs fill a 3x2 grid.
	b, _ := f.Glyph('b')
	assert.Equal(t, gfx.UVRect{
		Min: [2]float32{1.0 / 3, 0},
		Max: [2]float32{2.0 / 3, 0.5},
	}, b.Atlas)
	e, _ := f.Glyph('e')
	assert.Equal(t, gfx.UVRect{
		Min: [2]float32{1.0 / 3, 0.5},
		Max: [2]float32{2.0 / 3, 1},
	}, e.Atlas)
}

func TestLoadSFNTErrors(t *testing.T) {
	_, err := LoadSFNT([]byte("not a font"), SFNTOptions{})
	assert.Error(t, err)

	_, err = LoadSFNT(goregular.TTF, SFNTOptions{Runes: []rune{'\U000F0000'}})
	assert.ErrorIs(t, err, ErrNoGlyphs)
}

func TestReadiness(t *testing.T) {
	mat := &material{}
	f := New("test", Metrics{LineHeight: 1.2}, mat)
	f.AddGlyph('x', Glyph{Advance: 0.5})
	f.SetKerning('x', 'x', -0.1)
	assert.False(t, f.HasCompleted())

	f.MarkCompleted()
	assert.False(t, f.HasCompleted(), "material still loading")
	mat.ready = true
	assert.True(t, f.HasCompleted())

	assert.Equal(t, float32(-0.1), f.Kerning('x', 'x'))
	assert.Panics(t, func() { f.AddGlyph('y', Glyph{}) })
}
