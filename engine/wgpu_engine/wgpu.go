// Package wgpu_engine implements a renderer.Device on top of WebGPU.
package wgpu_engine

// OPT reuse bind groups across submissions

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/gogpu/gputypes"
	"honnef.co/go/wgpu"

	"honnef.co/go/render2d/engine/wgpu_engine/shaders"
	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/jmath"
	"honnef.co/go/render2d/mem"
	"honnef.co/go/render2d/renderer"
)

const (
	chunkSize = 1024 * 1024
	// Uniform offsets must be multiples of minUniformBufferOffsetAlignment,
	// which is at most 256.
	uniformAlignment = 256
	// Uniform chunks are followed by this much padding so that every scope
	// can be bound with its full size, no matter its offset.
	uniformPadding = shaders.StyleTableSize
)

var minBindingSize = [renderer.NumScopes]uint64{
	renderer.ScopeGlobal:     shaders.GlobalSize,
	renderer.ScopeEffect:     shaders.EffectSize,
	renderer.ScopeStyle:      shaders.StyleSize,
	renderer.ScopeMaterial:   shaders.MaterialSize,
	renderer.ScopeStyleTable: shaders.StyleTableSize,
}

type Engine struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue
	// Profiler records the render passes of each submission. It may be nil.
	Profiler *ProfilerGroup

	format wgpu.TextureFormat
	pool   resourcePool
	arena  *mem.Arena

	uniformLayout  *wgpu.BindGroupLayout
	materialLayout *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	sampler        *wgpu.Sampler

	// Staging memory. Chunks stay allocated across frames; only the first
	// numChunks are in use.
	chunks    []*chunk
	numChunks int

	target     *wgpu.TextureView
	clear      bool
	clearColor wgpu.Color

	// Reused by Submit.
	staged     []renderer.BufferSlice
	stagedData map[*byte]renderer.BufferSlice
	bindGroups []*wgpu.BindGroup
}

type chunk struct {
	usage wgpu.BufferUsage
	data  []byte
	used  int
	gpu   *wgpu.Buffer
}

type bufferProperties struct {
	size   uint64
	usages wgpu.BufferUsage
}

type resourcePool struct {
	bufs map[bufferProperties][]*wgpu.Buffer
}

// New returns an engine drawing to textures of the given format.
func New(dev *wgpu.Device, queue *wgpu.Queue, format wgpu.TextureFormat) *Engine {
	eng := &Engine{
		Device: dev,
		Queue:  queue,
		format: format,
		pool: resourcePool{
			bufs: make(map[bufferProperties][]*wgpu.Buffer),
		},
		arena:      mem.NewArena(),
		stagedData: make(map[*byte]renderer.BufferSlice),
	}
	eng.createLayouts()
	return eng
}

// BeginFrame sets the texture that the following submissions draw to. If
// clear is not nil, the first submission clears the target to it.
func (eng *Engine) BeginFrame(target *wgpu.TextureView, clear *wgpu.Color) {
	eng.target = target
	eng.clear = clear != nil
	if clear != nil {
		eng.clearColor = *clear
	}
}

func (eng *Engine) Allocate(usage gputypes.BufferUsage, stride, count int) ([]byte, renderer.BufferSlice) {
	wusage, align := stagingUsage(usage)
	size := stride * count

	var c *chunk
	var idx, off int
	for i, cc := range eng.chunks[:eng.numChunks] {
		if cc.usage != wusage {
			continue
		}
		o := jmath.AlignUp(cc.used, align)
		if o+size <= len(cc.data) {
			c, idx, off = cc, i, o
			break
		}
	}
	if c == nil {
		c, idx = eng.newChunk(wusage, size), eng.numChunks-1
	}

	c.used = off + size
	data := c.data[off:c.used]
	clear(data)
	return data, renderer.BufferSlice{
		Buffer: uint32(idx),
		Offset: uint64(off),
		Stride: uint32(stride),
		Count:  uint32(count),
	}
}

func (eng *Engine) newChunk(usage wgpu.BufferUsage, size int) *chunk {
	// Reuse an idle chunk if one is big enough.
	for i := eng.numChunks; i < len(eng.chunks); i++ {
		c := eng.chunks[i]
		if len(c.data) >= size {
			eng.chunks[i], eng.chunks[eng.numChunks] = eng.chunks[eng.numChunks], c
			c.usage = usage
			c.used = 0
			eng.numChunks++
			return c
		}
	}
	c := &chunk{
		usage: usage,
		data:  make([]byte, max(chunkSize, jmath.AlignUp(size, 4))),
	}
	eng.chunks = append(eng.chunks, c)
	last := len(eng.chunks) - 1
	eng.chunks[last], eng.chunks[eng.numChunks] = eng.chunks[eng.numChunks], eng.chunks[last]
	eng.numChunks++
	return c
}

// stagingUsage maps the usage requested by the renderer to the usage of the
// GPU buffer and the required offset alignment.
func stagingUsage(usage gputypes.BufferUsage) (wgpu.BufferUsage, int) {
	switch {
	case usage&gputypes.BufferUsageVertex != 0:
		return wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst, 4
	case usage&gputypes.BufferUsageIndex != 0:
		return wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst, 4
	case usage&gputypes.BufferUsageUniform != 0:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst, uniformAlignment
	default:
		panic(fmt.Sprintf("unsupported buffer usage %#x", uint64(usage)))
	}
}

func indexFormatToWGPU(f gputypes.IndexFormat) wgpu.IndexFormat {
	switch f {
	case gputypes.IndexFormatUint16:
		return wgpu.IndexFormatUint16
	case gputypes.IndexFormatUint32:
		return wgpu.IndexFormatUint32
	default:
		panic(fmt.Sprintf("unhandled value %d", f))
	}
}

// Submit replays rec into a single render pass.
func (eng *Engine) Submit(rec *renderer.Recording) {
	if eng.target == nil {
		panic("Submit called without a target, call BeginFrame first")
	}
	pgroup := eng.Profiler.Nest("Submit")
	defer pgroup.End()
	arena := eng.arena
	defer arena.Reset()

	// Uniform data is inline in the recording, so it has to be staged before
	// anything can be uploaded.
	_, zeroSlice := eng.Allocate(gputypes.BufferUsageUniform, uniformAlignment, 1)
	for _, op := range rec.Ops {
		op, ok := op.(*renderer.SetUniform)
		if !ok {
			continue
		}
		if len(op.Data) == 0 {
			eng.staged = append(eng.staged, zeroSlice)
			continue
		}
		slice, ok := eng.stagedData[&op.Data[0]]
		if !ok {
			data, s := eng.Allocate(gputypes.BufferUsageUniform, len(op.Data), 1)
			copy(data, op.Data)
			slice = s
			eng.stagedData[&op.Data[0]] = slice
		}
		eng.staged = append(eng.staged, slice)
	}

	for _, c := range eng.chunks[:eng.numChunks] {
		size := jmath.AlignUp(c.used, 4)
		gpuSize := uint64(size)
		if c.usage&wgpu.BufferUsageUniform != 0 {
			gpuSize += uniformPadding
		}
		c.gpu = eng.pool.getBuf(gpuSize, "render2d staging", c.usage, eng.Device)
		eng.Queue.WriteBuffer(c.gpu, 0, c.data[:size])
	}

	loadOp := wgpu.LoadOpLoad
	if eng.clear {
		loadOp = wgpu.LoadOpClear
		eng.clear = false
	}
	encoder := eng.Device.CreateCommandEncoder(mem.Make(arena, wgpu.CommandEncoderDescriptor{Label: "render2d"}))
	pass := encoder.BeginRenderPass(mem.Make(arena, wgpu.RenderPassDescriptor{
		ColorAttachments: mem.MakeSlice(arena, []wgpu.RenderPassColorAttachment{
			{
				View:       eng.target,
				LoadOp:     loadOp,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: eng.clearColor,
			},
		}),
		TimestampWrites: pgroup.Render(arena, "render2d"),
	}))

	var (
		bindings  [renderer.NumScopes]renderer.BufferSlice
		dirty     = true
		bindGroup *wgpu.BindGroup
		uniform   int
	)
	for i := range bindings {
		bindings[i] = zeroSlice
	}
	for _, op := range rec.Ops {
		switch op := op.(type) {
		case *renderer.SetPipeline:
			pass.SetPipeline(resolvePipeline(op.Pipeline).pipeline)

		case *renderer.BindMaterial:
			m, ok := op.Material.(*Material)
			if !ok {
				panic(fmt.Sprintf("unhandled type %T", op.Material))
			}
			pass.SetBindGroup(1, m.bindGroup, nil)
			bindings[renderer.ScopeMaterial] = zeroSlice
			dirty = true

		case *renderer.SetVertices:
			pass.SetVertexBuffer(0, eng.chunkBuffer(op.Slice), op.Slice.Offset, op.Slice.Size())

		case *renderer.SetIndices:
			pass.SetIndexBuffer(eng.chunkBuffer(op.Slice), indexFormatToWGPU(op.Format), op.Slice.Offset, op.Slice.Size())

		case *renderer.SetUniform:
			if s := eng.staged[uniform]; s != bindings[op.Scope] {
				bindings[op.Scope] = s
				dirty = true
			}
			uniform++

		case *renderer.BindBuffer:
			if op.Slice != bindings[op.Scope] {
				bindings[op.Scope] = op.Slice
				dirty = true
			}

		case *renderer.DrawIndexed:
			if dirty {
				bindGroup = eng.uniformBindGroup(&bindings)
				eng.bindGroups = append(eng.bindGroups, bindGroup)
				dirty = false
			}
			pass.SetBindGroup(0, bindGroup, nil)
			pass.DrawIndexed(op.IndexCount, 1, op.FirstIndex, op.BaseVertex, 0)

		default:
			panic(fmt.Sprintf("unhandled command %T", op))
		}
	}
	pass.End()
	pass.Release()

	cmd := encoder.Finish(nil)
	encoder.Release()
	eng.Queue.Submit(cmd)
	cmd.Release()

	for _, bg := range eng.bindGroups {
		bg.Release()
	}
	clear(eng.bindGroups)
	eng.bindGroups = eng.bindGroups[:0]
	eng.staged = eng.staged[:0]
	clear(eng.stagedData)
	for _, c := range eng.chunks[:eng.numChunks] {
		eng.pool.putBuf(c.gpu)
		c.gpu = nil
	}
	eng.Discard()
}

// Discard drops all staged data. The chunks stay around for the next frame.
func (eng *Engine) Discard() {
	for _, c := range eng.chunks[:eng.numChunks] {
		c.used = 0
	}
	eng.numChunks = 0
}

func (eng *Engine) chunkBuffer(slice renderer.BufferSlice) *wgpu.Buffer {
	if int(slice.Buffer) >= eng.numChunks {
		panic(fmt.Sprintf("unknown buffer %d", slice.Buffer))
	}
	return eng.chunks[slice.Buffer].gpu
}

func (eng *Engine) uniformBindGroup(bindings *[renderer.NumScopes]renderer.BufferSlice) *wgpu.BindGroup {
	var entries [renderer.NumScopes]wgpu.BindGroupEntry
	for scope, slice := range bindings {
		entries[scope] = wgpu.BindGroupEntry{
			Binding: uint32(scope),
			Buffer:  eng.chunkBuffer(slice),
			Offset:  slice.Offset,
			Size:    max(slice.Size(), minBindingSize[scope]),
		}
	}
	return eng.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "render2d uniforms",
		Layout:  eng.uniformLayout,
		Entries: entries[:],
	})
}

type valuer interface {
	Value() (any, bool)
}

func resolvePipeline(p gfx.Pipeline) *RenderPipeline {
	switch p := p.(type) {
	case *RenderPipeline:
		return p
	case valuer:
		if v, ok := p.Value(); ok {
			if rp, ok := v.(*RenderPipeline); ok {
				return rp
			}
		}
		panic(fmt.Sprintf("pipeline %d isn't a loaded render pipeline", p.(gfx.Pipeline).ID()))
	default:
		panic(fmt.Sprintf("unhandled type %T", p))
	}
}

func (pool *resourcePool) getBuf(
	size uint64,
	name string,
	usage wgpu.BufferUsage,
	dev *wgpu.Device,
) *wgpu.Buffer {
	const sizeClassBits = 1

	roundedSize := poolSizeClass(size, sizeClassBits)
	props := bufferProperties{
		size:   roundedSize,
		usages: usage,
	}
	if bufVec := pool.bufs[props]; len(bufVec) > 0 {
		buf := bufVec[len(bufVec)-1]
		pool.bufs[props] = bufVec[:len(bufVec)-1]
		return buf
	}
	return dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  roundedSize,
		Usage: usage,
	})
}

func (pool *resourcePool) putBuf(buf *wgpu.Buffer) {
	props := bufferProperties{
		size:   buf.Size(),
		usages: buf.Usage(),
	}
	pool.bufs[props] = append(pool.bufs[props], buf)
}

// poolSizeClass rounds x up so that only its numBits+1 most significant bits
// may be set.
func poolSizeClass(x uint64, numBits uint32) uint64 {
	if x > 1<<numBits {
		a := bits.LeadingZeros64(x - 1)
		b := (x - 1) | (((math.MaxUint64 / 2) >> numBits) >> a)
		return b + 1
	} else {
		return 1 << numBits
	}
}
