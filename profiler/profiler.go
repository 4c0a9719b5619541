// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package profiler

import (
	"time"
)

type ProfilerGroup interface {
	Start(label string) ProfilerGroup
	End()
}

// Nop is a ProfilerGroup that records nothing.
type Nop struct{}

func (Nop) Start(string) ProfilerGroup { return Nop{} }
func (Nop) End()                       {}

// CPU records wall clock spans. Each call to Frame starts a new top-level
// group; Collect returns the groups that have ended since the last call.
type CPU struct {
	now func() time.Time

	groups []*CPUGroup
	// free list of groups
	free []*CPUGroup
	// slice to reuse for the next call to Collect
	results []Result
}

func NewCPU() *CPU {
	return &CPU{now: time.Now}
}

type CPUGroup struct {
	Label    string
	start    time.Time
	end      time.Time
	children []*CPUGroup
	parent   *CPUGroup
	profiler *CPU
}

type Result struct {
	Label    string
	Start    time.Time
	End      time.Time
	Children []Result
}

func (r Result) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (p *CPU) getGroup() *CPUGroup {
	if len(p.free) > 0 {
		g := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		clear(g.children)
		// Don't use *g = CPUGroup{...} so that we reuse g.children.
		g.children = g.children[:0]
		g.end = time.Time{}
		g.parent = nil
		return g
	}
	return &CPUGroup{}
}

func (p *CPU) Frame(label string) *CPUGroup {
	g := p.getGroup()
	g.profiler = p
	g.Label = label
	g.start = p.now()
	p.groups = append(p.groups, g)
	return g
}

func (g *CPUGroup) Start(label string) ProfilerGroup {
	cg := g.profiler.getGroup()
	cg.profiler = g.profiler
	cg.Label = label
	cg.start = g.profiler.now()
	cg.parent = g
	g.children = append(g.children, cg)
	return cg
}

func (g *CPUGroup) End() {
	if !g.end.IsZero() {
		panic("trying to end same group twice")
	}
	g.end = g.profiler.now()
}

func populateResult(g *CPUGroup, res *Result) {
	// Don't use *res = Result{...} so that we reuse res.Children.
	res.Label = g.Label
	res.Start = g.start
	res.End = g.end
	if cap(res.Children) >= len(g.children) {
		res.Children = res.Children[:len(g.children)]
	} else {
		res.Children = make([]Result, len(g.children))
	}
	for i, c := range g.children {
		populateResult(c, &res.Children[i])
	}
}

// Collect returns the results of all top-level groups that have ended, in
// order of creation. The return value is only valid until the next call to
// Collect.
func (p *CPU) Collect() []Result {
	out := p.results[:0]

	var returnGroups func(gs ...*CPUGroup)
	returnGroups = func(gs ...*CPUGroup) {
		p.free = append(p.free, gs...)
		for _, g := range gs {
			returnGroups(g.children...)
		}
	}

	n := 0
	for _, g := range p.groups {
		if g.end.IsZero() {
			// We stop at the first open group so that we return groups in
			// order of creation.
			break
		}
		if cap(out) > len(out) {
			out = out[:len(out)+1]
		} else {
			out = append(out, Result{})
		}
		populateResult(g, &out[len(out)-1])
		n++
	}
	returnGroups(p.groups[:n]...)
	copy(p.groups, p.groups[n:])
	clear(p.groups[len(p.groups)-n:])
	p.groups = p.groups[:len(p.groups)-n]
	p.results = out[:0]
	return out
}
