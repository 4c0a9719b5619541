// Package shaders contains the WGSL sources of the built-in pipelines.
//
// Both shaders share one pipeline layout. Group 0 holds the uniform scopes,
// in order global, effect, style, material and style table. Group 1 holds the
// material's texture and sampler.
package shaders

import _ "embed"

//go:embed sprite.wgsl
var Sprite []byte

//go:embed msdf.wgsl
var MSDF []byte

// Minimum binding sizes of the uniform scopes, in bytes.
const (
	GlobalSize     = 64
	EffectSize     = 16
	StyleSize      = 16
	MaterialSize   = 16
	StyleTableSize = 1024 * 64
)
