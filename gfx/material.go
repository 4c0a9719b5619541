// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import "fmt"

// MaterialKind selects how draws using a material are blended and, as a
// consequence, how they are ordered.
type MaterialKind uint8

const (
	// Opaque draws write depth and need no particular order among
	// themselves.
	Opaque MaterialKind = iota
	// Transparent draws are alpha blended and must be drawn back to front.
	Transparent
)

func (k MaterialKind) String() string {
	switch k {
	case Opaque:
		return "opaque"
	case Transparent:
		return "transparent"
	default:
		return fmt.Sprintf("MaterialKind(%d)", uint8(k))
	}
}

// Pipeline is a handle to a GPU pipeline that may still be loading.
type Pipeline interface {
	// ID identifies the pipeline. Only the low 8 bits take part in sorting.
	ID() uint32
	HasCompleted() bool
}

// Material is a handle to a set of textures and parameters that may still be
// loading.
type Material interface {
	// ID identifies the material. Only the low 16 bits take part in sorting.
	ID() uint32
	Kind() MaterialKind
	// Params returns the raw material parameter block, or nil.
	Params() []byte
	HasCompleted() bool
}

// UVRect is a rectangle in normalized texture coordinates.
type UVRect struct {
	Min [2]float32
	Max [2]float32
}

// FullUV covers the whole texture.
var FullUV = UVRect{Max: [2]float32{1, 1}}
