// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"time"

	"honnef.co/go/safeish"
	"honnef.co/go/wgpu"

	"honnef.co/go/render2d/mem"
	"honnef.co/go/render2d/profiler"
)

const maxProfilerTimestamps = 1024

// Profiler measures the GPU time of render passes. A nil *Profiler is valid
// and records nothing.
type Profiler struct {
	dev *wgpu.Device

	// started groups that haven't been resolved yet
	groups         []*ProfilerGroup
	resolvedGroups []*ProfilerGroup
	mappedGroups   []*ProfilerGroup
	// slice to reuse for next frame
	spare []*ProfilerGroup

	// free lists
	timestamps []*timestamps
	freeGroups []*ProfilerGroup
	results    []ProfilerResult
}

// timestamps are the GPU resources of one top-level group: the queries
// written by its passes and the buffers they are read back through.
type timestamps struct {
	queries  *wgpu.QuerySet
	resolve  *wgpu.Buffer
	readback *wgpu.Buffer
}

func NewProfiler(dev *wgpu.Device) *Profiler {
	return &Profiler{dev: dev}
}

// Start starts a top-level group, usually one per frame.
func (p *Profiler) Start(label string) *ProfilerGroup {
	if p == nil {
		return nil
	}

	g := p.getGroup()
	g.profiler = p
	g.Label = label
	g.parent = nil
	g.ts = p.getTimestamps()
	g.set = profilerQuerySet{set: g.ts.queries}
	g.cpuStart = time.Now()
	p.groups = append(p.groups, g)
	return g
}

func (p *Profiler) getGroup() *ProfilerGroup {
	if len(p.freeGroups) > 0 {
		g := p.freeGroups[len(p.freeGroups)-1]
		p.freeGroups = p.freeGroups[:len(p.freeGroups)-1]
		clear(g.children)
		clear(g.passes)
		g.children = g.children[:0]
		g.passes = g.passes[:0]
		g.cpuEnd = time.Time{}
		g.ts = nil
		g.ch = nil
		return g
	}
	return &ProfilerGroup{}
}

type profilerQuerySet struct {
	set *wgpu.QuerySet
	id  uint32
}

func (set *profilerQuerySet) nextID() uint32 {
	id := set.id
	set.id++
	return id
}

// ProfilerGroup implements profiler.ProfilerGroup, so that the renderer's CPU
// spans and the engine's GPU passes end up in the same tree.
type ProfilerGroup struct {
	Label    string
	set      profilerQuerySet
	cpuStart time.Time
	cpuEnd   time.Time
	children []*ProfilerGroup
	passes   []passQuery
	profiler *Profiler
	parent   *ProfilerGroup

	// set for top-level groups only
	ts *timestamps
	ch <-chan error
}

var _ profiler.ProfilerGroup = (*ProfilerGroup)(nil)

type passQuery struct {
	label   string
	startID uint32
	endID   uint32
}

func (g *ProfilerGroup) End() {
	if g == nil {
		return
	}
	if !g.cpuEnd.IsZero() {
		panic("trying to end same group twice")
	}
	g.cpuEnd = time.Now()
	if g.parent != nil {
		g.parent.set.id = g.set.id
	}
}

func (g *ProfilerGroup) Start(label string) profiler.ProfilerGroup {
	if g == nil {
		return (*ProfilerGroup)(nil)
	}
	return g.Nest(label)
}

func (g *ProfilerGroup) Nest(label string) *ProfilerGroup {
	if g == nil {
		return nil
	}
	cg := g.profiler.getGroup()
	cg.profiler = g.profiler
	cg.Label = label
	cg.set = g.set
	cg.cpuStart = time.Now()
	cg.parent = g
	g.children = append(g.children, cg)
	return cg
}

// Render returns the timestamp writes for a render pass.
func (g *ProfilerGroup) Render(arena *mem.Arena, label string) *wgpu.RenderPassTimestampWrites {
	if g == nil {
		return nil
	}
	if g.set.id+2 > maxProfilerTimestamps {
		// Out of queries, the pass goes unmeasured.
		return nil
	}
	startID, endID := g.set.nextID(), g.set.nextID()
	g.passes = append(g.passes, passQuery{
		label:   label,
		startID: startID,
		endID:   endID,
	})
	return mem.Make(arena, wgpu.RenderPassTimestampWrites{
		QuerySet:                  g.set.set,
		BeginningOfPassWriteIndex: startID,
		EndOfPassWriteIndex:       endID,
	})
}

func (p *Profiler) getTimestamps() *timestamps {
	if n := len(p.timestamps); n > 0 {
		ts := p.timestamps[n-1]
		p.timestamps = p.timestamps[:n-1]
		return ts
	}
	const size = maxProfilerTimestamps * 8
	return &timestamps{
		queries: p.dev.CreateQuerySet(&wgpu.QuerySetDescriptor{
			Label: "render2d timestamps",
			Type:  wgpu.QueryTypeTimestamp,
			Count: maxProfilerTimestamps,
		}),
		resolve: p.dev.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "render2d timestamp resolve",
			Usage: wgpu.BufferUsageQueryResolve | wgpu.BufferUsageCopySrc,
			Size:  size,
		}),
		readback: p.dev.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "render2d timestamp readback",
			Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
			Size:  size,
		}),
	}
}

// Resolve copies the timestamps of all started groups into mappable
// buffers. All groups must have ended.
func (p *Profiler) Resolve(enc *wgpu.CommandEncoder) {
	if p == nil {
		return
	}
	for _, g := range p.groups {
		if g.set.id == 0 {
			continue
		}
		enc.ResolveQuerySet(g.ts.queries, 0, g.set.id, g.ts.resolve, 0)
		enc.CopyBufferToBuffer(g.ts.resolve, 0, g.ts.readback, 0, uint64(g.set.id)*8)
	}
	p.resolvedGroups = p.groups
	p.groups = p.spare[:0]
}

// Map starts mapping the groups resolved by the last call to Resolve. It must
// be called after the command buffer containing the resolve has been
// submitted.
func (p *Profiler) Map() {
	if p == nil {
		return
	}
	for _, g := range p.resolvedGroups {
		if g.set.id == 0 {
			ch := make(chan error, 1)
			ch <- nil
			g.ch = ch
			continue
		}
		g.ch = g.ts.readback.Map(p.dev, wgpu.MapModeRead, 0, int(g.set.id)*8)
	}
	p.mappedGroups = append(p.mappedGroups, p.resolvedGroups...)
	clear(p.resolvedGroups)
	p.spare = p.resolvedGroups[:0]
}

type ProfilerResult struct {
	Label    string
	CPUStart time.Time
	CPUEnd   time.Time
	Passes   []PassResult
	Children []ProfilerResult
}

// PassResult holds the raw timestamps of a render pass, in ticks of the
// queue's timestamp period.
type PassResult struct {
	Label string
	Start uint64
	End   uint64
}

// CPU converts r to a profiler.Result, dropping GPU timings.
func (r *ProfilerResult) CPU() profiler.Result {
	res := profiler.Result{
		Label: r.Label,
		Start: r.CPUStart,
		End:   r.CPUEnd,
	}
	if len(r.Children) > 0 {
		res.Children = make([]profiler.Result, len(r.Children))
		for i := range r.Children {
			res.Children[i] = r.Children[i].CPU()
		}
	}
	return res
}

func (p *Profiler) populateResult(g *ProfilerGroup, res *ProfilerResult, values []uint64) {
	// Don't use *res = ProfilerResult{...} so that we reuse res.Children and
	// res.Passes.
	res.Label = g.Label
	res.CPUStart = g.cpuStart
	res.CPUEnd = g.cpuEnd
	if cap(res.Passes) >= len(g.passes) {
		res.Passes = res.Passes[:len(g.passes)]
	} else {
		res.Passes = make([]PassResult, len(g.passes))
	}
	if cap(res.Children) >= len(g.children) {
		res.Children = res.Children[:len(g.children)]
	} else {
		res.Children = make([]ProfilerResult, len(g.children))
	}
	for i, q := range g.passes {
		res.Passes[i] = PassResult{
			Label: q.label,
			Start: values[q.startID],
			End:   values[q.endID],
		}
	}
	for i, c := range g.children {
		p.populateResult(c, &res.Children[i], values)
	}
}

// Collect returns all available profiler results, in order of creation. The
// return value is only valid until the next call to Collect.
func (p *Profiler) Collect() []ProfilerResult {
	if p == nil {
		return nil
	}
	out := p.results[:0]

	var returnGroups func(gs ...*ProfilerGroup)
	returnGroups = func(gs ...*ProfilerGroup) {
		p.freeGroups = append(p.freeGroups, gs...)
		for _, g := range gs {
			returnGroups(g.children...)
		}
	}

	n := 0
collect:
	for _, g := range p.mappedGroups {
		select {
		case err := <-g.ch:
			if err != nil {
				panic(err)
			}
		default:
			// We stop at the first missing group so that we return groups in
			// order of creation.
			break collect
		}
		if cap(out) > len(out) {
			out = out[:len(out)+1]
		} else {
			out = append(out, ProfilerResult{})
		}
		var ticks []uint64
		if g.set.id > 0 {
			ticks = safeish.SliceCast[[]uint64](g.ts.readback.ReadOnlyMappedRange(0, int(g.set.id)*8))
		}
		p.populateResult(g, &out[len(out)-1], ticks)
		if g.set.id > 0 {
			g.ts.readback.Unmap()
		}
		if g.ts != nil {
			p.timestamps = append(p.timestamps, g.ts)
		}
		n++
	}
	returnGroups(p.mappedGroups[:n]...)
	copy(p.mappedGroups, p.mappedGroups[n:])
	clear(p.mappedGroups[len(p.mappedGroups)-n:])
	p.mappedGroups = p.mappedGroups[:len(p.mappedGroups)-n]
	p.results = out[:0]
	return out
}
