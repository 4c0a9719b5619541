package render2d

import (
	"honnef.co/go/curve"

	"honnef.co/go/render2d/font"
	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/renderer"
)

// DrawText draws text with its first baseline starting at origin. size is the
// font size in pixels per em. Glyphs use the style selected by SetStyle.
// Runes missing from the font are skipped. Nothing is drawn until the font
// has finished loading.
func (r *Renderer) DrawText(
	f *font.Font,
	text string,
	origin curve.Point,
	size float32,
	tint gfx.RGBA,
	depth float32,
) {
	if !f.HasCompleted() {
		return
	}
	mat := f.Material()
	if mat == nil {
		return
	}
	key := renderer.EncodeKey(mat.Kind(), renderer.DrawFont, depth, mat.ID(), r.fontID)
	layout(f, text, size, func(x, y float32, g *font.Glyph) {
		if g == nil || g.Plane.Empty() {
			return
		}
		x += float32(origin.X)
		y += float32(origin.Y)
		cmd := r.b.CreateCommand(renderer.DrawFont, key)
		cmd.Material = mat
		cmd.Tint = tint
		cmd.Depth = depth
		cmd.UV = g.Atlas
		x0, y0 := x+g.Plane.X0*size, y+g.Plane.Y0*size
		x1, y1 := x+g.Plane.X1*size, y+g.Plane.Y1*size
		cmd.Quad = [4][2]float32{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
	})
}

// MeasureText returns the width of the widest line and the height of all
// lines of text.
func MeasureText(f *font.Font, text string, size float32) (width, height float32) {
	if text == "" {
		return 0, 0
	}
	var lineWidth float32
	lines := 1
	layout(f, text, size, func(x, y float32, g *font.Glyph) {
		if g == nil {
			width = max(width, lineWidth)
			lineWidth = 0
			lines++
			return
		}
		lineWidth = x + g.Advance*size
	})
	width = max(width, lineWidth)
	return width, float32(lines) * f.Metrics().LineHeight * size
}

// layout calls fn with the pen position of every glyph, relative to the first
// baseline. At line breaks, fn is called with a nil glyph.
func layout(f *font.Font, text string, size float32, fn func(x, y float32, g *font.Glyph)) {
	var x, y float32
	var prev rune = -1
	for _, c := range text {
		if c == '\n' {
			fn(x, y, nil)
			x = 0
			y += f.Metrics().LineHeight * size
			prev = -1
			continue
		}
		g, ok := f.Glyph(c)
		if !ok {
			continue
		}
		if prev != -1 {
			x += f.Kerning(prev, c) * size
		}
		fn(x, y, &g)
		x += g.Advance * size
		prev = c
	}
}
