// Package render2d draws sprites, rectangles, lines and text by batching
// them into as few draw calls as possible.
//
// Coordinates are in pixels with y pointing down. Depth is in [0, 1]; larger
// depths are further away. Transparent materials are drawn back to front,
// opaque ones grouped by pipeline and material.
//
// A Renderer must only be used from a single goroutine.
package render2d

import (
	"log/slog"

	"github.com/chewxy/math32"
	"honnef.co/go/curve"
	"honnef.co/go/safeish"

	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/jmath"
	"honnef.co/go/render2d/profiler"
	"honnef.co/go/render2d/renderer"
)

// SetLogger sets the logger used by the renderer. Passing nil discards all
// output, which is also the default.
func SetLogger(l *slog.Logger) { renderer.SetLogger(l) }

func Logger() *slog.Logger { return renderer.Logger() }

type Renderer struct {
	b     *renderer.Batcher
	solid gfx.Material
	// pipeline IDs, for sort keys
	spriteID uint32
	fontID   uint32

	viewProj [16]float32
	frame    profiler.ProfilerGroup
	frames   int
}

// New returns a renderer drawing to dev. Pipelines are requested from content
// by the names in cfg.
func New(dev renderer.Device, content renderer.Content, cfg Config) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := renderer.New(dev, content, cfg.options())
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		b:        b,
		solid:    cfg.SolidMaterial,
		spriteID: b.Pipeline(renderer.DrawSprite).ID(),
		fontID:   b.Pipeline(renderer.DrawFont).ID(),
		frame:    cfg.Profiler,
	}
	return r, nil
}

// Batcher returns the underlying batcher, for registering custom draw types.
func (r *Renderer) Batcher() *renderer.Batcher { return r.b }

func (r *Renderer) Stats() renderer.Stats { return r.b.Stats() }

// Frames returns the number of frames ended so far.
func (r *Renderer) Frames() int { return r.frames }

// BeginFrame starts a frame. Flushes until the matching EndFrame are profiled
// under pg, which may be nil.
func (r *Renderer) BeginFrame(pg profiler.ProfilerGroup) {
	if pg == nil {
		pg = r.frame
	}
	r.b.SetProfiler(pg)
}

// EndFrame draws everything that is still pending.
func (r *Renderer) EndFrame() {
	r.b.Flush()
	r.b.SetProfiler(r.frame)
	r.frames++
}

// Flush draws everything that is pending.
func (r *Renderer) Flush() { r.b.Flush() }

// SetViewProjection sets the column-major matrix mapping pixels to clip
// space.
func (r *Renderer) SetViewProjection(m [16]float32) {
	r.viewProj = m
	r.b.SetUniform(renderer.ScopeGlobal, safeish.AsBytes(&r.viewProj))
}

// SetUniform sets the data of the global, effect or style scope.
func (r *Renderer) SetUniform(scope renderer.Scope, data []byte) {
	r.b.SetUniform(scope, data)
}

// SetStyle selects the style of text drawn from now on and returns its index.
func (r *Renderer) SetStyle(s gfx.TextStyle) uint32 {
	return r.b.SelectStyle(s)
}

// Ortho returns a projection mapping a width×height pixel area with the
// origin at the top left corner to clip space.
func Ortho(width, height float32) [16]float32 {
	return [16]float32{
		2 / width, 0, 0, 0,
		0, -2 / height, 0, 0,
		0, 0, 1, 0,
		-1, 1, 0, 1,
	}
}

// DrawSprite draws the uv region of mat's texture into dst.
func (r *Renderer) DrawSprite(mat gfx.Material, dst curve.Rect, uv gfx.UVRect, tint gfx.RGBA, depth float32) {
	r.sprite(mat, jmath.Identity.Quad(
		float32(dst.X0), float32(dst.Y0),
		float32(dst.X1), float32(dst.Y1),
	), uv, tint, depth)
}

// DrawSpriteTransformed draws a w×h sprite whose top left corner is at the
// origin of t.
func (r *Renderer) DrawSpriteTransformed(
	mat gfx.Material,
	t jmath.Transform,
	w, h float32,
	uv gfx.UVRect,
	tint gfx.RGBA,
	depth float32,
) {
	r.sprite(mat, t.Quad(0, 0, w, h), uv, tint, depth)
}

func (r *Renderer) sprite(mat gfx.Material, quad [4][2]float32, uv gfx.UVRect, tint gfx.RGBA, depth float32) {
	if mat == nil {
		panic("sprite without material")
	}
	key := renderer.EncodeKey(mat.Kind(), renderer.DrawSprite, depth, mat.ID(), r.spriteID)
	cmd := r.b.CreateCommand(renderer.DrawSprite, key)
	cmd.Material = mat
	cmd.Tint = tint
	cmd.Quad = quad
	cmd.Depth = depth
	cmd.UV = uv
}

func (r *Renderer) mustSolid() gfx.Material {
	if r.solid == nil {
		panic("drawing shapes requires Config.SolidMaterial")
	}
	return r.solid
}

// DrawRect fills rect with tint.
func (r *Renderer) DrawRect(rect curve.Rect, tint gfx.RGBA, depth float32) {
	r.DrawSprite(r.mustSolid(), rect, gfx.FullUV, tint, depth)
}

// DrawLine draws a line of the given width with butt caps. Zero length lines
// draw nothing.
func (r *Renderer) DrawLine(p0, p1 curve.Point, width float32, tint gfx.RGBA, depth float32) {
	mat := r.mustSolid()
	x0, y0 := float32(p0.X), float32(p0.Y)
	x1, y1 := float32(p1.X), float32(p1.Y)
	dx, dy := x1-x0, y1-y0
	l := math32.Hypot(dx, dy)
	if l < jmath.Epsilon {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	r.sprite(mat, [4][2]float32{
		{x0 + nx, y0 + ny},
		{x1 + nx, y1 + ny},
		{x1 - nx, y1 - ny},
		{x0 - nx, y0 - ny},
	}, gfx.FullUV, tint, depth)
}
