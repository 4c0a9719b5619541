// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import (
	"fmt"

	"honnef.co/go/color"
)

// RGBA is a tint packed as 8 bits per channel, red in the lowest byte. This
// is the byte order of a unorm8x4 vertex attribute on little endian hosts.
type RGBA uint32

var (
	White = RGBA8(255, 255, 255, 255)
	Black = RGBA8(0, 0, 0, 255)
	Clear = RGBA(0)
)

func RGBA8(r, g, b, a uint8) RGBA {
	return RGBA(uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24)
}

func (c RGBA) R() uint8 { return uint8(c) }
func (c RGBA) G() uint8 { return uint8(c >> 8) }
func (c RGBA) B() uint8 { return uint8(c >> 16) }
func (c RGBA) A() uint8 { return uint8(c >> 24) }

// Float32 returns the channels normalized to [0, 1].
func (c RGBA) Float32() [4]float32 {
	return [4]float32{
		float32(c.R()) / 255,
		float32(c.G()) / 255,
		float32(c.B()) / 255,
		float32(c.A()) / 255,
	}
}

// WithAlphaFactor scales the alpha channel by f, which is clamped to [0, 1].
func (c RGBA) WithAlphaFactor(f float32) RGBA {
	f = min(max(f, 0), 1)
	return RGBA8(c.R(), c.G(), c.B(), uint8(float32(c.A())*f+0.5))
}

func (c RGBA) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R(), c.G(), c.B(), c.A())
}

// FromColor converts c to sRGB and packs it. Alpha stays straight, the
// shaders premultiply.
func FromColor(c *color.Color) RGBA {
	v := Float32(c)
	return RGBA8(unorm8(v[0]), unorm8(v[1]), unorm8(v[2]), unorm8(v[3]))
}

// Float32 returns c's sRGB channels and alpha.
func Float32(c *color.Color) [4]float32 {
	cc := c.Convert(color.SRGB)
	return [4]float32{
		float32(cc.Values[0]),
		float32(cc.Values[1]),
		float32(cc.Values[2]),
		float32(cc.Values[3]),
	}
}

func unorm8(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}
