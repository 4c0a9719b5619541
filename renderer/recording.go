package renderer

import (
	"github.com/gogpu/gputypes"

	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/mem"
)

// Scope identifies a uniform binding slot.
type Scope uint8

const (
	ScopeGlobal Scope = iota
	ScopeEffect
	ScopeStyle
	ScopeMaterial
	// ScopeStyleTable holds the array of text styles that font vertices
	// index via their instance attribute.
	ScopeStyleTable

	NumScopes
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeEffect:
		return "effect"
	case ScopeStyle:
		return "style"
	case ScopeMaterial:
		return "material"
	case ScopeStyleTable:
		return "style table"
	default:
		return "invalid scope"
	}
}

// BufferSlice describes a region of a device buffer handed out by
// Device.Allocate.
type BufferSlice struct {
	Buffer uint32
	Offset uint64
	Stride uint32
	Count  uint32
}

func (s BufferSlice) Size() uint64 {
	return uint64(s.Stride) * uint64(s.Count)
}

// Recording is the ordered list of operations produced by one flush. Ops and
// the data they reference are only valid until Device.Submit returns.
type Recording struct {
	Ops []Op
}

func (rec *Recording) push(arena *mem.Arena, op Op) {
	rec.Ops = mem.Append(arena, rec.Ops, op)
}

func (rec *Recording) SetPipeline(arena *mem.Arena, p gfx.Pipeline) {
	rec.push(arena, mem.Make(arena, SetPipeline{p}))
}

func (rec *Recording) Bind(arena *mem.Arena, m gfx.Material) {
	rec.push(arena, mem.Make(arena, BindMaterial{m}))
}

func (rec *Recording) SetVertices(arena *mem.Arena, slice BufferSlice) {
	rec.push(arena, mem.Make(arena, SetVertices{slice}))
}

func (rec *Recording) SetIndices(arena *mem.Arena, slice BufferSlice, format gputypes.IndexFormat) {
	rec.push(arena, mem.Make(arena, SetIndices{slice, format}))
}

func (rec *Recording) SetUniform(arena *mem.Arena, scope Scope, data []byte) {
	rec.push(arena, mem.Make(arena, SetUniform{scope, data}))
}

func (rec *Recording) BindBuffer(arena *mem.Arena, scope Scope, slice BufferSlice) {
	rec.push(arena, mem.Make(arena, BindBuffer{scope, slice}))
}

func (rec *Recording) DrawIndexed(arena *mem.Arena, indexCount uint32) {
	rec.push(arena, mem.Make(arena, DrawIndexed{IndexCount: indexCount}))
}

// Draws returns the number of draw calls in the recording.
func (rec *Recording) Draws() int {
	n := 0
	for _, op := range rec.Ops {
		if _, ok := op.(*DrawIndexed); ok {
			n++
		}
	}
	return n
}

func (rec *Recording) Reset() {
	rec.Ops = nil
}

type Op interface {
	isOp()
}

func (*SetPipeline) isOp()  {}
func (*BindMaterial) isOp() {}
func (*SetVertices) isOp()  {}
func (*SetIndices) isOp()   {}
func (*SetUniform) isOp()   {}
func (*BindBuffer) isOp()   {}
func (*DrawIndexed) isOp()  {}

type SetPipeline struct {
	Pipeline gfx.Pipeline
}

type BindMaterial struct {
	Material gfx.Material
}

type SetVertices struct {
	Slice BufferSlice
}

type SetIndices struct {
	Slice  BufferSlice
	Format gputypes.IndexFormat
}

// SetUniform binds raw uniform data to a scope. A nil Data binds an all
// zero block.
type SetUniform struct {
	Scope Scope
	Data  []byte
}

// BindBuffer binds a previously allocated buffer region to a scope.
type BindBuffer struct {
	Scope Scope
	Slice BufferSlice
}

type DrawIndexed struct {
	IndexCount uint32
	FirstIndex uint32
	BaseVertex int32
}
