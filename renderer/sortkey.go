package renderer

import (
	"fmt"
	"math"

	"honnef.co/go/render2d/gfx"
)

// DrawType selects the writer that turns commands into vertices. It occupies
// the top 8 bits of every sort key, so different draw types are never
// interleaved.
type DrawType uint8

const (
	DrawSprite DrawType = iota
	DrawFont

	numBuiltinDrawTypes
)

func (t DrawType) String() string {
	switch t {
	case DrawSprite:
		return "sprite"
	case DrawFont:
		return "font"
	default:
		return fmt.Sprintf("DrawType(%d)", uint8(t))
	}
}

// EncodeKey packs a command's ordering information into a sort key. Commands
// are drawn in descending key order.
//
// Opaque keys, from the most significant bit:
//
//	type(8) | pipeline&0xFF(8) | material&0xFFFF(16) | bits(1-depth)(32)
//
// Transparent keys:
//
//	type(8) | bits(depth)(32) | pipeline&0xFF(8) | material&0xFFFF(16)
//
// Opaque draws therefore group by pipeline and material first and go front
// to back within a group, while transparent draws go strictly back to front
// and only group draws at equal depth. Depth is compared through its bit
// pattern, which orders non-negative floats correctly.
func EncodeKey(kind gfx.MaterialKind, t DrawType, depth float32, materialID, pipelineID uint32) uint64 {
	if kind == gfx.Opaque {
		return opaqueKey(t, depth, materialID, pipelineID)
	}
	return transparentKey(t, depth, materialID, pipelineID)
}

func opaqueKey(t DrawType, depth float32, materialID, pipelineID uint32) uint64 {
	return uint64(t)<<56 |
		uint64(pipelineID&0xFF)<<48 |
		uint64(materialID&0xFFFF)<<32 |
		uint64(math.Float32bits(1.0-depth))
}

func transparentKey(t DrawType, depth float32, materialID, pipelineID uint32) uint64 {
	return uint64(t)<<56 |
		uint64(math.Float32bits(depth))<<24 |
		uint64(pipelineID&0xFF)<<16 |
		uint64(materialID&0xFFFF)
}
