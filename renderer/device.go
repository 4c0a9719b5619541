package renderer

import (
	"github.com/gogpu/gputypes"

	"honnef.co/go/render2d/gfx"
)

// Device is the graphics device the batcher writes to.
type Device interface {
	// Allocate returns count zeroed elements of size stride in a buffer
	// suitable for usage. The bytes stay writable until the next call to
	// Submit.
	Allocate(usage gputypes.BufferUsage, stride, count int) ([]byte, BufferSlice)
	// Submit executes a recording. The recording and everything it refers
	// to is reused after Submit returns.
	Submit(rec *Recording)
	// Discard releases everything allocated since the last Submit without
	// executing anything.
	Discard()
}

// Content resolves pipelines by name.
type Content interface {
	LoadPipeline(id string) gfx.Pipeline
}

// ShapeFlusher is a renderer for other primitives whose pending work has to
// be drawn before the batcher's.
type ShapeFlusher interface {
	Flush()
}

// Well known pipeline identifiers.
const (
	SpritePipelineID = "render2d/sprite"
	FontPipelineID   = "render2d/msdf"
)
