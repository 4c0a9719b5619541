package font

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"honnef.co/go/render2d/gfx"
)

var ErrNoGlyphs = errors.New("font has none of the requested glyphs")

// ASCII is the printable ASCII range.
var ASCII = func() []rune {
	out := make([]rune, 0, 0x7F-0x20)
	for r := rune(0x20); r < 0x7F; r++ {
		out = append(out, r)
	}
	return out
}()

type SFNTOptions struct {
	Name string
	// Runes lists the glyphs present in the atlas, in atlas order. It
	// defaults to ASCII.
	Runes []rune
	// Material is the atlas texture.
	Material gfx.Material
}

// LoadSFNT reads glyph metrics and kerning from TrueType or OpenType data.
//
// The atlas is expected to be a square grid of ceil(sqrt(n)) columns, where n
// is len(opts.Runes), with the i-th rune's glyph filling cell i in row major
// order. Runes missing from the font keep their cell but aren't added.
func LoadSFNT(data []byte, opts SFNTOptions) (*Font, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	runes := opts.Runes
	if runes == nil {
		runes = ASCII
	}
	name := opts.Name
	if name == "" {
		if n, err := f.Name(nil, sfnt.NameIDFamily); err == nil {
			name = n
		}
	}

	// Measure at one pixel per font unit so that nothing gets rounded.
	var buf sfnt.Buffer
	upem := f.UnitsPerEm()
	ppem := fixed.I(int(upem))
	toEm := func(v fixed.Int26_6) float32 {
		return float32(v) / 64 / float32(upem)
	}

	m, err := f.Metrics(&buf, ppem, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("reading metrics: %w", err)
	}
	out := New(name, Metrics{
		Ascender:   toEm(m.Ascent),
		Descender:  toEm(m.Descent),
		LineHeight: toEm(m.Height),
	}, opts.Material)

	cols := int(math.Ceil(math.Sqrt(float64(len(runes)))))
	rows := (len(runes) + cols - 1) / max(cols, 1)
	indices := make(map[rune]sfnt.GlyphIndex, len(runes))
	for i, r := range runes {
		idx, err := f.GlyphIndex(&buf, r)
		if err != nil {
			return nil, fmt.Errorf("looking up %q: %w", r, err)
		}
		if idx == 0 {
			continue
		}
		bounds, advance, err := f.GlyphBounds(&buf, idx, ppem, font.HintingNone)
		if err != nil {
			return nil, fmt.Errorf("measuring %q: %w", r, err)
		}
		col, row := i%cols, i/cols
		out.AddGlyph(r, Glyph{
			Advance: toEm(advance),
			Plane: Rect{
				X0: toEm(bounds.Min.X),
				Y0: toEm(bounds.Min.Y),
				X1: toEm(bounds.Max.X),
				Y1: toEm(bounds.Max.Y),
			},
			Atlas: gfx.UVRect{
				Min: [2]float32{float32(col) / float32(cols), float32(row) / float32(rows)},
				Max: [2]float32{float32(col+1) / float32(cols), float32(row+1) / float32(rows)},
			},
		})
		indices[r] = idx
	}
	if len(indices) == 0 {
		return nil, ErrNoGlyphs
	}

	for a, ia := range indices {
		for b, ib := range indices {
			k, err := f.Kern(&buf, ia, ib, ppem, font.HintingNone)
			if err != nil {
				// Most commonly sfnt.ErrNotFound, for fonts without a kern
				// table.
				continue
			}
			if k != 0 {
				out.SetKerning(a, b, toEm(k))
			}
		}
	}

	out.MarkCompleted()
	return out, nil
}
