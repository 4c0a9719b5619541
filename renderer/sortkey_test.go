package renderer

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"honnef.co/go/render2d/gfx"
)

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		name string
		kind gfx.MaterialKind
		want uint64
	}{
		{
			"opaque",
			gfx.Opaque,
			1<<56 | 0xAB<<48 | 0x2345<<32 | uint64(math.Float32bits(0.75)),
		},
		{
			"transparent",
			gfx.Transparent,
			1<<56 | uint64(math.Float32bits(0.25))<<24 | 0xAB<<16 | 0x2345,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeKey(tt.kind, DrawFont, 0.25, 0x12345, 0x1AB)
			assert.Equal(t, tt.want, got, "got %#x, want %#x", got, tt.want)
		})
	}
}

func TestTransparentKeysOrderByDepth(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 1000 {
		d1 := r.Float32()
		d2 := r.Float32()
		if d1 == d2 {
			continue
		}
		if d1 > d2 {
			d1, d2 = d2, d1
		}
		k1 := EncodeKey(gfx.Transparent, DrawSprite, d1, r.Uint32(), r.Uint32())
		k2 := EncodeKey(gfx.Transparent, DrawSprite, d2, r.Uint32(), r.Uint32())
		assert.Greater(t, k2, k1, "deeper draw must sort first (d1=%v d2=%v)", d1, d2)
	}
}

func TestOpaqueKeysGroupBeforeDepth(t *testing.T) {
	// Within one pipeline, the material decides the order regardless of
	// depth.
	near := EncodeKey(gfx.Opaque, DrawSprite, 0.1, 2, 1)
	far := EncodeKey(gfx.Opaque, DrawSprite, 0.9, 3, 1)
	assert.Greater(t, far, near)

	// Same material: nearer draws have the larger key and go first.
	a := EncodeKey(gfx.Opaque, DrawSprite, 0.1, 2, 1)
	b := EncodeKey(gfx.Opaque, DrawSprite, 0.9, 2, 1)
	assert.Greater(t, a, b)
}

func TestDrawTypeDominates(t *testing.T) {
	sprite := EncodeKey(gfx.Transparent, DrawSprite, 1, 0xFFFF, 0xFF)
	font := EncodeKey(gfx.Transparent, DrawFont, 0, 0, 0)
	assert.Greater(t, font, sprite)
}
