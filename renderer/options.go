package renderer

import (
	"errors"
	"fmt"

	"honnef.co/go/render2d/profiler"
)

const (
	DefaultMaxCommands = 16384
	DefaultMaxStyles   = 64

	// MaxStyles is the size of the style array declared by the text shader.
	MaxStyles = 1024
)

var ErrInvalidCapacity = errors.New("invalid capacity")

type Options struct {
	// MaxCommands is the number of commands that can be pending before an
	// implicit flush.
	MaxCommands int
	// MaxStyles is the number of distinct text styles per flush.
	MaxStyles int

	// Pipeline identifiers passed to Content.LoadPipeline. Empty strings
	// select SpritePipelineID and FontPipelineID.
	SpritePipeline string
	FontPipeline   string

	Profiler profiler.ProfilerGroup
	Shapes   ShapeFlusher
}

func (opts *Options) setDefaults() {
	if opts.MaxCommands == 0 {
		opts.MaxCommands = DefaultMaxCommands
	}
	if opts.MaxStyles == 0 {
		opts.MaxStyles = DefaultMaxStyles
	}
	if opts.SpritePipeline == "" {
		opts.SpritePipeline = SpritePipelineID
	}
	if opts.FontPipeline == "" {
		opts.FontPipeline = FontPipelineID
	}
	if opts.Profiler == nil {
		opts.Profiler = profiler.Nop{}
	}
}

func (opts *Options) validate() error {
	if opts.MaxCommands < 1 {
		return fmt.Errorf("max commands %d: %w", opts.MaxCommands, ErrInvalidCapacity)
	}
	if opts.MaxStyles < 1 || opts.MaxStyles > MaxStyles {
		return fmt.Errorf("max styles %d not in [1, %d]: %w", opts.MaxStyles, MaxStyles, ErrInvalidCapacity)
	}
	return nil
}
