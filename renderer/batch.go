// Package renderer batches quads by pipeline and material and records them
// for a Device.
//
// Callers create commands with CreateCommand, fill them in, and eventually
// call Flush. Flush sorts the pending commands by their key, cuts them into
// batches of commands sharing draw type, pipeline and material, and hands
// each batch to the writer registered for its draw type. Batches whose
// pipeline or material has not finished loading are dropped.
//
// A Batcher must only be used from a single goroutine.
package renderer

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"unsafe"

	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/mem"
	"honnef.co/go/render2d/profiler"
)

type state uint8

const (
	stateIdle state = iota
	stateAccumulating
	stateFlushing
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAccumulating:
		return "accumulating"
	case stateFlushing:
		return "flushing"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Stats are cumulative counters over the lifetime of a Batcher.
type Stats struct {
	// Flushes counts flushes that had pending commands.
	Flushes int
	// ImplicitFlushes counts flushes caused by a full command pool or style
	// table.
	ImplicitFlushes int
	Batches         int
	// SkippedBatches counts batches dropped because their pipeline or
	// material wasn't ready.
	SkippedBatches int
	Draws          int
	Commands       int
	Submissions    int
}

type Batcher struct {
	dev  Device
	opts Options

	pool      commandPool
	styles    styleTable
	pipelines []gfx.Pipeline
	writers   []WriteFunc
	uniforms  [ScopeMaterial][]byte

	arena *mem.Arena
	rec   Recording
	state state
	stats Stats

	// Only valid during Flush.
	scopeData  [ScopeMaterial][]byte
	styleSlice BufferSlice
}

const styleSize = int(unsafe.Sizeof(gfx.TextStyle{}))

// New returns a batcher drawing to dev. The sprite and text pipelines are
// requested from content immediately; they need not be ready yet.
func New(dev Device, content Content, opts Options) (*Batcher, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	b := &Batcher{
		dev:    dev,
		opts:   opts,
		pool:   newCommandPool(opts.MaxCommands),
		styles: newStyleTable(opts.MaxStyles),
		arena:  mem.NewArena(),
	}
	b.pipelines = make([]gfx.Pipeline, numBuiltinDrawTypes)
	b.pipelines[DrawSprite] = content.LoadPipeline(opts.SpritePipeline)
	b.pipelines[DrawFont] = content.LoadPipeline(opts.FontPipeline)
	b.writers = make([]WriteFunc, numBuiltinDrawTypes)
	b.writers[DrawSprite] = writeSprites
	b.writers[DrawFont] = writeGlyphs
	return b, nil
}

// RegisterDrawType adds a draw type whose commands use pipeline and are
// written by w.
func (b *Batcher) RegisterDrawType(pipeline gfx.Pipeline, w WriteFunc) DrawType {
	if pipeline == nil || w == nil {
		panic("RegisterDrawType needs a pipeline and a writer")
	}
	if len(b.writers) > math.MaxUint8 {
		panic("too many draw types")
	}
	t := DrawType(len(b.writers))
	b.pipelines = append(b.pipelines, pipeline)
	b.writers = append(b.writers, w)
	return t
}

func (b *Batcher) checkType(t DrawType) {
	if int(t) >= len(b.writers) {
		panic(fmt.Sprintf("unregistered draw type %s", t))
	}
}

// Pipeline returns the pipeline used by commands of type t.
func (b *Batcher) Pipeline(t DrawType) gfx.Pipeline {
	b.checkType(t)
	return b.pipelines[t]
}

// CreateCommand returns a new command of type t with the given sort key.
// Key, type, pipeline and, for font commands, the current style are already
// set; the caller has to fill in the rest before creating the next command.
// If the command pool is full, pending commands are flushed first.
func (b *Batcher) CreateCommand(t DrawType, key uint64) *Command {
	if b.state == stateFlushing {
		panic("CreateCommand called during Flush")
	}
	b.checkType(t)
	if b.pool.full() {
		logger().Debug("command pool full, flushing", "capacity", len(b.pool.slots))
		b.stats.ImplicitFlushes++
		b.Flush()
	}

	var instance uint32
	if t == DrawFont {
		instance = b.CurrentStyle()
	}
	b.state = stateAccumulating
	cmd := b.pool.alloc()
	cmd.Key = key
	cmd.Type = t
	cmd.Pipeline = b.pipelines[t]
	cmd.Instance = instance
	return cmd
}

// Command returns the i-th pending command. During Flush, commands are in
// sorted order.
func (b *Batcher) Command(i int) *Command { return b.pool.at(i) }

// Len returns the number of pending commands.
func (b *Batcher) Len() int { return b.pool.n }

func (b *Batcher) Stats() Stats { return b.stats }

// SetProfiler sets the group that flushes are recorded under. Passing nil
// disables profiling.
func (b *Batcher) SetProfiler(pg profiler.ProfilerGroup) {
	if pg == nil {
		pg = profiler.Nop{}
	}
	b.opts.Profiler = pg
}

// SetUniform sets the data bound to scope by every following batch. Only
// ScopeGlobal, ScopeEffect and ScopeStyle can be set; the data is copied.
func (b *Batcher) SetUniform(scope Scope, data []byte) {
	if scope >= ScopeMaterial {
		panic(fmt.Sprintf("cannot set uniform data for %s scope", scope))
	}
	b.uniforms[scope] = append(b.uniforms[scope][:0], data...)
}

// Flush draws all pending commands. Pending work of the shape renderer is
// always flushed first, even if there are no pending commands.
func (b *Batcher) Flush() {
	if b.state == stateFlushing {
		panic("Flush called during Flush")
	}
	if b.opts.Shapes != nil {
		b.opts.Shapes.Flush()
	}
	if b.pool.n == 0 {
		b.styles.reset()
		return
	}

	b.state = stateFlushing
	pg := b.opts.Profiler.Start("Flush")
	cmds := b.pool.live()

	sortGroup := pg.Start("sort")
	slices.SortStableFunc(cmds, func(x, y Command) int {
		return cmp.Compare(y.Key, x.Key)
	})
	sortGroup.End()

	for scope := range b.scopeData {
		b.scopeData[scope] = mem.MakeSlice(b.arena, b.uniforms[scope])
	}

	writeGroup := pg.Start("write")
	before := b.stats
	partition(cmds, b.writeBatch)
	writeGroup.End()
	b.styles.reset()

	draws := b.rec.Draws()
	if draws > 0 {
		b.dev.Submit(&b.rec)
		b.stats.Submissions++
	} else {
		b.dev.Discard()
	}
	b.stats.Flushes++
	b.stats.Commands += len(cmds)
	b.stats.Draws += draws
	logger().Debug("flushed",
		"commands", len(cmds),
		"batches", b.stats.Batches-before.Batches,
		"skipped", b.stats.SkippedBatches-before.SkippedBatches,
		"draws", draws)

	b.rec.Reset()
	b.arena.Reset()
	b.pool.reset()
	b.scopeData = [ScopeMaterial][]byte{}
	b.styleSlice = BufferSlice{}
	b.state = stateIdle
	pg.End()
}

// partition calls fn for every maximal run of commands sharing draw type,
// pipeline and material.
func partition(cmds []Command, fn func(start, count int)) {
	start := 0
	for i := range cmds {
		if i == len(cmds)-1 || !sameBatch(&cmds[i], &cmds[i+1]) {
			fn(start, i-start+1)
			start = i + 1
		}
	}
}

func sameBatch(a, b *Command) bool {
	return a.Type == b.Type && a.Pipeline == b.Pipeline && a.Material == b.Material
}

func (b *Batcher) writeBatch(start, count int) {
	b.stats.Batches++
	cmd := b.pool.at(start)
	if cmd.Pipeline == nil || cmd.Material == nil {
		panic(fmt.Sprintf("%s command without pipeline or material", cmd.Type))
	}
	if !cmd.Pipeline.HasCompleted() || !cmd.Material.HasCompleted() {
		b.stats.SkippedBatches++
		logger().Debug("skipping batch, content not ready",
			"type", cmd.Type,
			"pipeline", cmd.Pipeline.ID(),
			"material", cmd.Material.ID(),
			"commands", count)
		return
	}
	b.writers[cmd.Type](b, start, count, cmd.Pipeline, cmd.Material)
}
