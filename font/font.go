// Package font provides the glyph metrics the renderer needs to lay out text
// drawn from a multi-channel signed distance field atlas.
//
// All metrics are in ems, with y pointing down and the origin at the pen
// position on the baseline.
package font

import (
	"sync/atomic"

	"honnef.co/go/render2d/gfx"
)

type Rect struct {
	X0, Y0, X1, Y1 float32
}

func (r Rect) Empty() bool { return r.X0 >= r.X1 || r.Y0 >= r.Y1 }

type Glyph struct {
	Advance float32
	// Plane is the glyph quad relative to the pen position.
	Plane Rect
	// Atlas is the glyph's region in the atlas texture.
	Atlas gfx.UVRect
}

type Metrics struct {
	// Ascender is the distance from the baseline to the top of the tallest
	// glyphs. It is positive.
	Ascender float32
	// Descender is the distance from the baseline to the bottom of the
	// lowest glyphs. It is positive.
	Descender float32
	// LineHeight is the distance between consecutive baselines.
	LineHeight float32
}

type kernPair struct{ a, b rune }

// A Font is built once, then marked as completed, after which it is read
// only and may be shared between goroutines.
type Font struct {
	name     string
	metrics  Metrics
	material gfx.Material
	glyphs   map[rune]Glyph
	kerning  map[kernPair]float32
	ready    atomic.Bool
}

func New(name string, metrics Metrics, material gfx.Material) *Font {
	return &Font{
		name:     name,
		metrics:  metrics,
		material: material,
		glyphs:   make(map[rune]Glyph),
		kerning:  make(map[kernPair]float32),
	}
}

func (f *Font) AddGlyph(r rune, g Glyph) {
	f.mustBeBuilding()
	f.glyphs[r] = g
}

func (f *Font) SetKerning(a, b rune, k float32) {
	f.mustBeBuilding()
	f.kerning[kernPair{a, b}] = k
}

// MarkCompleted finishes building the font.
func (f *Font) MarkCompleted() { f.ready.Store(true) }

func (f *Font) mustBeBuilding() {
	if f.ready.Load() {
		panic("modifying completed font")
	}
}

func (f *Font) Name() string          { return f.name }
func (f *Font) Metrics() Metrics      { return f.metrics }
func (f *Font) Material() gfx.Material { return f.material }
func (f *Font) NumGlyphs() int        { return len(f.glyphs) }

// SetMaterial sets the atlas material. It may be called before or after the
// font has been completed, but not concurrently with drawing.
func (f *Font) SetMaterial(m gfx.Material) { f.material = m }

func (f *Font) Glyph(r rune) (Glyph, bool) {
	g, ok := f.glyphs[r]
	return g, ok
}

// Kerning returns the adjustment of the advance between a and b.
func (f *Font) Kerning(a, b rune) float32 {
	return f.kerning[kernPair{a, b}]
}

// HasCompleted reports whether the font and its atlas material are ready for
// drawing.
func (f *Font) HasCompleted() bool {
	if !f.ready.Load() {
		return false
	}
	return f.material == nil || f.material.HasCompleted()
}
