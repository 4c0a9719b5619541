package render2d

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/profiler"
	"honnef.co/go/render2d/renderer"
)

var ErrUnknownFormat = errors.New("unknown config format")

// Config configures a Renderer. The zero value of each field selects its
// default.
type Config struct {
	MaxCommands    int    `toml:"max_commands" yaml:"max_commands"`
	MaxStyles      int    `toml:"max_styles" yaml:"max_styles"`
	SpritePipeline string `toml:"sprite_pipeline" yaml:"sprite_pipeline"`
	FontPipeline   string `toml:"font_pipeline" yaml:"font_pipeline"`

	// Profiler receives a "Flush" group per flush. It may be nil.
	Profiler profiler.ProfilerGroup `toml:"-" yaml:"-"`
	// Shapes is flushed before every batch of sprites and text.
	Shapes renderer.ShapeFlusher `toml:"-" yaml:"-"`
	// SolidMaterial is an opaque white texture used by DrawRect and
	// DrawLine.
	SolidMaterial gfx.Material `toml:"-" yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		MaxCommands:    renderer.DefaultMaxCommands,
		MaxStyles:      renderer.DefaultMaxStyles,
		SpritePipeline: renderer.SpritePipelineID,
		FontPipeline:   renderer.FontPipelineID,
	}
}

func (cfg *Config) Validate() error {
	if cfg.MaxCommands < 0 {
		return fmt.Errorf("max commands %d: %w", cfg.MaxCommands, renderer.ErrInvalidCapacity)
	}
	if cfg.MaxStyles < 0 || cfg.MaxStyles > renderer.MaxStyles {
		return fmt.Errorf("max styles %d not in [0, %d]: %w",
			cfg.MaxStyles, renderer.MaxStyles, renderer.ErrInvalidCapacity)
	}
	return nil
}

func (cfg *Config) options() renderer.Options {
	return renderer.Options{
		MaxCommands:    cfg.MaxCommands,
		MaxStyles:      cfg.MaxStyles,
		SpritePipeline: cfg.SpritePipeline,
		FontPipeline:   cfg.FontPipeline,
		Profiler:       cfg.Profiler,
		Shapes:         cfg.Shapes,
	}
}

// ParseConfig parses data in the given format, "toml" or "yaml", on top of
// DefaultConfig. Unknown keys are errors.
func ParseConfig(data []byte, format string) (Config, error) {
	cfg := DefaultConfig()
	var err error
	switch strings.ToLower(format) {
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
		if errors.Is(err, io.EOF) {
			// empty document
			err = nil
		}
	default:
		return Config{}, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse %s config: %w", format, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a config file, picking the format from its extension.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := ParseConfig(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
