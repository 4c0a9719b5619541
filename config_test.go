package render2d

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honnef.co/go/render2d/renderer"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
		want   Config
	}{
		{
			name:   "toml",
			format: "toml",
			data: `max_commands = 128
font_pipeline = "custom/msdf"
`,
			want: Config{
				MaxCommands:    128,
				MaxStyles:      renderer.DefaultMaxStyles,
				SpritePipeline: renderer.SpritePipelineID,
				FontPipeline:   "custom/msdf",
			},
		},
		{
			name:   "yaml",
			format: "yaml",
			data: `max_styles: 8
sprite_pipeline: custom/sprite
`,
			want: Config{
				MaxCommands:    renderer.DefaultMaxCommands,
				MaxStyles:      8,
				SpritePipeline: "custom/sprite",
				FontPipeline:   renderer.FontPipelineID,
			},
		},
		{
			name:   "empty yaml",
			format: "yml",
			data:   "",
			want:   DefaultConfig(),
		},
		{
			name:   "empty toml",
			format: "TOML",
			data:   "",
			want:   DefaultConfig(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.data), tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig(nil, "json")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = ParseConfig([]byte("max_styles = 100000"), "toml")
	assert.ErrorIs(t, err, renderer.ErrInvalidCapacity)

	_, err = ParseConfig([]byte("max_commands: -1"), "yaml")
	assert.ErrorIs(t, err, renderer.ErrInvalidCapacity)

	_, err = ParseConfig([]byte("bogus = 1"), "toml")
	assert.Error(t, err, "unknown keys are rejected")

	_, err = ParseConfig([]byte("bogus: 1"), "yaml")
	assert.Error(t, err, "unknown keys are rejected")

	_, err = ParseConfig([]byte("max_commands = "), "toml")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "render2d.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_commands: 7\n"), 0666))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxCommands)

	_, err = LoadConfig(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "render2d.ini")
	require.NoError(t, os.WriteFile(bad, nil, 0666))
	_, err = LoadConfig(bad)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
