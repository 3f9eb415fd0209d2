package engine

import (
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/platform"
	"github.com/spaghettifunk/anima2d/engine/renderer"
	"github.com/spaghettifunk/anima2d/engine/renderer/headless"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/spaghettifunk/anima2d/engine/renderer/vulkan"
)

// NewBackend creates the backend named by the configuration. p supplies the
// Vulkan loader and may be nil, in which case the system library is used.
func NewBackend(cfg *core.Config, p *platform.Platform) (metadata.Backend, error) {
	kind, err := renderer.ParseBackendType(cfg.Graphics.Backend)
	if err != nil {
		return nil, err
	}

	width, height := int(cfg.Window.Width), int(cfg.Window.Height)
	switch kind {
	case renderer.Vulkan:
		opts := vulkan.Options{
			Width:               width,
			Height:              height,
			FramesInFlight:      cfg.Graphics.FramesInFlight,
			CacheEvictionFrames: cfg.Graphics.CacheEvictionFrames,
			Validation:          cfg.Graphics.Validation,
			PreferDiscreteGPU:   true,
			AppName:             cfg.Window.Title,
		}
		if p != nil && p.Window != nil {
			opts.GetInstanceProcAddr = p.InstanceProcAddr()
			opts.InstanceExtensions = p.RequiredInstanceExtensions()
		}
		b, err := vulkan.New(opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return headless.New(headless.Options{Width: width, Height: height}), nil
	}
}
