package core

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type GraphicsConfig struct {
	// Backend selects the implementation at process start: "headless" or "vulkan".
	Backend                 string `toml:"backend"`
	FramesInFlight          int    `toml:"frames_in_flight"`
	MaxStackDepth           int    `toml:"max_stack_depth"`
	TemporaryEvictionFrames int    `toml:"temporary_eviction_frames"`
	CacheEvictionFrames     int    `toml:"cache_eviction_frames"`
	InitialVertexBufferSize int    `toml:"initial_vertex_buffer_size"`
	InitialIndexBufferSize  int    `toml:"initial_index_buffer_size"`
	Validation              bool   `toml:"validation"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type AssetsConfig struct {
	ShaderDir string `toml:"shader_dir"`
	FontDir   string `toml:"font_dir"`
	Watch     bool   `toml:"watch"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Graphics GraphicsConfig `toml:"graphics"`
	Window   WindowConfig   `toml:"window"`
	Assets   AssetsConfig   `toml:"assets"`
	Log      LogConfig      `toml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Backend:                 "headless",
			FramesInFlight:          2,
			MaxStackDepth:           64,
			TemporaryEvictionFrames: 3,
			CacheEvictionFrames:     60,
			InitialVertexBufferSize: 1024 * 1024,
			InitialIndexBufferSize:  64 * 1024,
		},
		Window: WindowConfig{
			Title:  "anima2d",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Assets: AssetsConfig{
			ShaderDir: "assets/shaders",
			FontDir:   "assets/fonts",
			Watch:     true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. A missing file is not
// an error and yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			LogWarn("config file %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}
	if err := cfg.Decode(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges TOML data into the configuration and validates the result.
func (c *Config) Decode(data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return c.Validate()
}

func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) Validate() error {
	g := c.Graphics
	switch g.Backend {
	case "headless", "vulkan":
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, g.Backend)
	}
	if g.FramesInFlight < 1 {
		return fmt.Errorf("%w: frames_in_flight must be at least 1", ErrInvalidConfig)
	}
	if g.MaxStackDepth < 1 {
		return fmt.Errorf("%w: max_stack_depth must be at least 1", ErrInvalidConfig)
	}
	if g.TemporaryEvictionFrames < 0 || g.CacheEvictionFrames < 1 {
		return fmt.Errorf("%w: eviction frame counts out of range", ErrInvalidConfig)
	}
	if g.InitialVertexBufferSize <= 0 || g.InitialIndexBufferSize <= 0 {
		return fmt.Errorf("%w: stream buffer sizes must be positive", ErrInvalidConfig)
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("%w: window dimensions must be positive", ErrInvalidConfig)
	}
	return nil
}
