// Command render2d-stats draws a scene through the headless device and
// reports how the renderer batched it.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
	"honnef.co/go/curve"

	"honnef.co/go/render2d"
	"honnef.co/go/render2d/content"
	"honnef.co/go/render2d/engine/headless"
	"honnef.co/go/render2d/font"
	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/jmath"
	"honnef.co/go/render2d/profiler"
)

const fontID = "fonts/goregular"

type Scene struct {
	Width     float32    `toml:"width" yaml:"width"`
	Height    float32    `toml:"height" yaml:"height"`
	Frames    int        `toml:"frames" yaml:"frames"`
	Materials []Material `toml:"materials" yaml:"materials"`
	Sprites   []Sprite   `toml:"sprites" yaml:"sprites"`
	Texts     []Text     `toml:"texts" yaml:"texts"`
}

type Material struct {
	ID          uint32 `toml:"id" yaml:"id"`
	Transparent bool   `toml:"transparent" yaml:"transparent"`
	// NotReady simulates a material that is still loading.
	NotReady bool `toml:"not_ready" yaml:"not_ready"`
}

type Sprite struct {
	Material uint32     `toml:"material" yaml:"material"`
	Rect     [4]float32 `toml:"rect" yaml:"rect"`
	Rotation float32    `toml:"rotation" yaml:"rotation"`
	Depth    float32    `toml:"depth" yaml:"depth"`
	Tint     *[4]uint8  `toml:"tint" yaml:"tint"`
	// Count repeats the sprite, each copy offset by Step.
	Count int        `toml:"count" yaml:"count"`
	Step  [2]float32 `toml:"step" yaml:"step"`
}

type Text struct {
	Text    string     `toml:"text" yaml:"text"`
	At      [2]float32 `toml:"at" yaml:"at"`
	Size    float32    `toml:"size" yaml:"size"`
	Depth   float32    `toml:"depth" yaml:"depth"`
	Outline float32    `toml:"outline" yaml:"outline"`
	Shadow  float32    `toml:"shadow" yaml:"shadow"`
}

func loadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	scene := &Scene{Width: 800, Height: 600, Frames: 1}
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(scene)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(scene)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return nil, fmt.Errorf("unsupported scene format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scene, nil
}

func main() {
	var (
		configPath string
		scenePath  string
		verbose    bool
		profile    bool
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-v] [-profile] [-config <file>] -scene <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&configPath, "config", "", "Renderer configuration `file` (TOML or YAML)")
	flag.StringVar(&scenePath, "scene", "", "Scene `file` (TOML or YAML)")
	flag.BoolVar(&verbose, "v", false, "Log flushes and skipped batches")
	flag.BoolVar(&profile, "profile", false, "Print CPU profile of each frame")
	flag.Parse()

	if scenePath == "" || len(flag.Args()) != 0 {
		flag.Usage()
		os.Exit(2)
	}

	dief := func(f string, v ...any) {
		fmt.Fprintf(os.Stderr, f, v...)
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	if verbose {
		render2d.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := render2d.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = render2d.LoadConfig(configPath)
		if err != nil {
			dief("Couldn't load config: %s", err)
		}
	}
	scene, err := loadScene(scenePath)
	if err != nil {
		dief("Couldn't load scene: %s", err)
	}

	m := content.NewManager()
	defer m.Close()
	headless.RegisterPipelines(m)
	fontMaterial := headless.NewMaterial(1<<16-1, gfx.Transparent, nil)
	m.Register(fontID, func(ctx context.Context, id string) (any, error) {
		return font.LoadSFNT(goregular.TTF, font.SFNTOptions{Name: id, Material: fontMaterial})
	})
	fontHandle := content.Load[*font.Font](m, fontID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fontHandle.Wait(ctx); err != nil {
		dief("Couldn't load font: %s", err)
	}
	for _, id := range []string{cfg.SpritePipeline, cfg.FontPipeline} {
		if err := content.Load[any](m, id).Wait(ctx); err != nil {
			dief("Couldn't load pipeline: %s", err)
		}
	}
	f, _ := fontHandle.Get()

	materials := make(map[uint32]*headless.Material)
	for _, mat := range scene.Materials {
		kind := gfx.Opaque
		if mat.Transparent {
			kind = gfx.Transparent
		}
		hm := headless.NewMaterial(mat.ID, kind, nil)
		hm.SetReady(!mat.NotReady)
		materials[mat.ID] = hm
	}

	dev := headless.New()
	prof := profiler.NewCPU()
	r, err := render2d.New(dev, m, cfg)
	if err != nil {
		dief("Couldn't create renderer: %s", err)
	}
	r.SetViewProjection(render2d.Ortho(scene.Width, scene.Height))

	for i := range max(scene.Frames, 1) {
		frame := prof.Frame(fmt.Sprintf("frame %d", i))
		r.BeginFrame(frame)
		if err := drawScene(r, scene, materials, f); err != nil {
			dief("%s", err)
		}
		r.EndFrame()
		frame.End()
	}

	w := io.Writer(os.Stdout)
	var tw *tabwriter.Writer
	if term.IsTerminal(int(os.Stdout.Fd())) {
		tw = tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', tabwriter.AlignRight)
		w = tw
	}
	printStats(w, r, dev)
	if profile {
		for _, res := range prof.Collect() {
			printProfile(w, res, 0)
		}
	}
	if tw != nil {
		tw.Flush()
	}
}

func drawScene(r *render2d.Renderer, scene *Scene, materials map[uint32]*headless.Material, f *font.Font) error {
	for _, s := range scene.Sprites {
		mat, ok := materials[s.Material]
		if !ok {
			return fmt.Errorf("sprite uses unknown material %d", s.Material)
		}
		tint := gfx.White
		if s.Tint != nil {
			tint = gfx.RGBA8(s.Tint[0], s.Tint[1], s.Tint[2], s.Tint[3])
		}
		w, h := s.Rect[2]-s.Rect[0], s.Rect[3]-s.Rect[1]
		for i := range max(s.Count, 1) {
			x := s.Rect[0] + float32(i)*s.Step[0]
			y := s.Rect[1] + float32(i)*s.Step[1]
			if s.Rotation == 0 {
				r.DrawSprite(mat, curve.Rect{
					X0: float64(x),
					Y0: float64(y),
					X1: float64(x + w),
					Y1: float64(y + h),
				}, gfx.FullUV, tint, s.Depth)
			} else {
				// Rotate around the sprite's center.
				t := jmath.Translate(x+w/2, y+h/2).
					Mul(jmath.Rotate(s.Rotation)).
					Mul(jmath.Translate(-w/2, -h/2))
				r.DrawSpriteTransformed(mat, t, w, h, gfx.FullUV, tint, s.Depth)
			}
		}
	}
	for _, t := range scene.Texts {
		style := gfx.DefaultTextStyle
		if t.Outline > 0 {
			style = style.WithOutline(gfx.Black, t.Outline)
		}
		if t.Shadow > 0 {
			style = style.WithShadow(gfx.Black.WithAlphaFactor(0.5), t.Shadow, t.Shadow, 0.5)
		}
		r.SetStyle(style)
		size := t.Size
		if size == 0 {
			size = 16
		}
		r.DrawText(f, t.Text, curve.Point{X: float64(t.At[0]), Y: float64(t.At[1])}, size, gfx.White, t.Depth)
	}
	return nil
}

func printStats(w io.Writer, r *render2d.Renderer, dev *headless.Device) {
	st := r.Stats()
	dst := dev.Stats()
	rows := []struct {
		name  string
		value int
	}{
		{"frames", r.Frames()},
		{"commands", st.Commands},
		{"flushes", st.Flushes},
		{"implicit flushes", st.ImplicitFlushes},
		{"batches", st.Batches},
		{"skipped batches", st.SkippedBatches},
		{"draws", st.Draws},
		{"submissions", dst.Submissions},
		{"discards", dst.Discards},
		{"vertices", dst.Vertices},
		{"indices", dst.Indices},
		{"bytes staged", dst.BytesStaged},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s:\t%d\t\n", row.name, row.value)
	}
}

func printProfile(w io.Writer, res profiler.Result, depth int) {
	fmt.Fprintf(w, "%s%s:\t%s\t\n", strings.Repeat("  ", depth), res.Label, res.Duration())
	for _, c := range res.Children {
		printProfile(w, c, depth+1)
	}
}
