// Copyright 2022 the Peniko Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import "structs"

// TextStyle is the per-glyph style block of the MSDF text shader. Glyphs
// reference it by index into a uniform array, so its layout must match the
// shader's and its size must stay a multiple of 16 bytes.
type TextStyle struct {
	_ structs.HostLayout

	OutlineColor [4]float32
	ShadowColor  [4]float32
	ShadowOffset [2]float32
	// OutlineWidth and ShadowSoftness are in units of the distance field range.
	OutlineWidth   float32
	ShadowSoftness float32
	// Weight shifts the distance field threshold; 0 is the font's regular
	// weight, positive values embolden.
	Weight float32
	_      [3]float32
}

// DefaultTextStyle draws plain glyphs without outline or shadow.
var DefaultTextStyle = TextStyle{}

func (s TextStyle) WithOutline(c RGBA, width float32) TextStyle {
	s.OutlineColor = c.Float32()
	s.OutlineWidth = width
	return s
}

func (s TextStyle) WithShadow(c RGBA, dx, dy, softness float32) TextStyle {
	s.ShadowColor = c.Float32()
	s.ShadowOffset = [2]float32{dx, dy}
	s.ShadowSoftness = softness
	return s
}
