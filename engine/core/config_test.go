package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Graphics.FramesInFlight)
	assert.Equal(t, 64, cfg.Graphics.MaxStackDepth)
	assert.Equal(t, 3, cfg.Graphics.TemporaryEvictionFrames)
}

func TestDecodeOverridesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Decode([]byte(`
[graphics]
backend = "vulkan"
frames_in_flight = 3

[log]
level = "debug"
`))
	require.NoError(t, err)
	assert.Equal(t, "vulkan", cfg.Graphics.Backend)
	assert.Equal(t, 3, cfg.Graphics.FramesInFlight)
	assert.Equal(t, 64, cfg.Graphics.MaxStackDepth)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "[graphics]\nbogus = 1\n"},
		{"unknown backend", "[graphics]\nbackend = \"metal\"\n"},
		{"no frames in flight", "[graphics]\nframes_in_flight = 0\n"},
		{"zero window", "[window]\nwidth = 0\n"},
		{"malformed", "[graphics\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.Decode([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	want := DefaultConfig()
	want.Window.Title = "roundtrip"
	want.Graphics.CacheEvictionFrames = 10
	data, err := want.Encode()
	require.NoError(t, err)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
