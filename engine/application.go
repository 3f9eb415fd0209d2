package engine

import "github.com/spaghettifunk/anima2d/engine/core"

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string
	// ConfigPath points at a TOML file. Missing files fall back to the
	// defaults.
	ConfigPath string
	// Config overrides ConfigPath when set.
	Config *core.Config
	// MaxFrames stops the run loop after that many frames. Zero runs until
	// the application quits.
	MaxFrames uint64
	// TargetFPS caps the frame rate by sleeping out the rest of each frame.
	// Zero disables the cap.
	TargetFPS float64
	// ScreenshotDir receives the captures taken with F12.
	ScreenshotDir string
}

func (c *ApplicationConfig) load() (*core.Config, error) {
	cfg := c.Config
	if cfg == nil {
		var err error
		if cfg, err = core.LoadConfig(c.ConfigPath); err != nil {
			return nil, err
		}
	}
	if c.Name != "" {
		cfg.Window.Title = c.Name
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
