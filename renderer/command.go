package renderer

import (
	"fmt"

	"honnef.co/go/render2d/gfx"
)

// Command is a single quad waiting to be drawn.
type Command struct {
	Key      uint64
	Type     DrawType
	Tint     gfx.RGBA
	Pipeline gfx.Pipeline
	Material gfx.Material
	// Quad holds the transformed corners in the order top-left, top-right,
	// bottom-right, bottom-left.
	Quad  [4][2]float32
	Depth float32
	UV    gfx.UVRect
	// Instance indexes the style table for font commands.
	Instance uint32
}

// commandPool is a fixed array of command slots. Slots are handed out in
// order and all of them are released at once by reset.
type commandPool struct {
	slots []Command
	n     int
}

func newCommandPool(capacity int) commandPool {
	return commandPool{slots: make([]Command, capacity)}
}

func (p *commandPool) full() bool { return p.n == len(p.slots) }

func (p *commandPool) alloc() *Command {
	if p.full() {
		panic("allocating from full command pool")
	}
	cmd := &p.slots[p.n]
	*cmd = Command{}
	p.n++
	return cmd
}

func (p *commandPool) at(i int) *Command {
	if i < 0 || i >= p.n {
		panic(fmt.Sprintf("command index %d out of range [0, %d)", i, p.n))
	}
	return &p.slots[i]
}

func (p *commandPool) live() []Command { return p.slots[:p.n] }

func (p *commandPool) reset() {
	// Drop references to pipelines and materials.
	clear(p.slots[:p.n])
	p.n = 0
}
