package engine

import (
	"github.com/spaghettifunk/anima2d/engine/assets"
	"github.com/spaghettifunk/anima2d/engine/renderer"
	"github.com/spaghettifunk/anima2d/engine/systems"
)

// Game is the application plugged into the engine. Graphics, Assets,
// Shaders and Jobs are set by the engine before FnInitialize runs.
type Game struct {
	ApplicationConfig *ApplicationConfig
	Graphics          *renderer.Graphics
	Assets            *assets.AssetManager
	Shaders           *ShaderLibrary
	Jobs              *systems.JobSystem
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(g *renderer.Graphics, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
