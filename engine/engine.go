package engine

import (
	"fmt"
	"image"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spaghettifunk/anima2d/engine/assets"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/platform"
	"github.com/spaghettifunk/anima2d/engine/renderer"
	"github.com/spaghettifunk/anima2d/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every subsystem
	EngineStageShutdown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	isRunning    bool
	isSuspended  bool

	bus          *core.EventBus
	platform     *platform.Platform
	assetManager *assets.AssetManager
	graphics     *renderer.Graphics
	shaders      *ShaderLibrary
	jobs         *systems.JobSystem

	width       uint32
	height      uint32
	clock       *core.Clock
	metrics     *core.Metrics
	lastTime    float64
	statsTimer  float64
	frameBudget float64
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("%w: missing application config", core.ErrInvalidConfig)
	}
	cfg, err := g.ApplicationConfig.load()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidConfig, err)
	}

	bus := core.NewEventBus()
	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		bus:          bus,
		assetManager: assets.NewAssetManager(cfg.Assets, bus),
		width:        cfg.Window.Width,
		height:       cfg.Window.Height,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}
	if fps := g.ApplicationConfig.TargetFPS; fps > 0 {
		e.frameBudget = 1.0 / fps
	}
	return e, nil
}

// Events returns the bus the engine dispatches once per frame.
func (e *Engine) Events() *core.EventBus {
	return e.bus
}

func (e *Engine) Graphics() *renderer.Graphics {
	return e.graphics
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	// register some events
	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	e.bus.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	e.bus.Register(core.EVENT_CODE_KEY_RELEASED, e.onKey)
	e.bus.Register(core.EVENT_CODE_RESIZED, e.onResized)
	e.bus.Register(core.EVENT_CODE_ASSET_CHANGED, e.onAssetChanged)

	// The window only exists for the explicit backend; headless runs
	// have no OS surface at all.
	if e.config.Graphics.Backend == renderer.Vulkan.String() {
		e.platform = platform.New(e.bus)
		if err := e.platform.Startup(e.config.Window); err != nil {
			return err
		}
		e.width, e.height = e.platform.FramebufferSize()
	}

	backend, err := NewBackend(e.config, e.platform)
	if err != nil {
		return err
	}
	g, err := renderer.New(backend, e.config.Graphics)
	if err != nil {
		_ = backend.Shutdown()
		return err
	}
	e.graphics = g

	if err := e.assetManager.Initialize(); err != nil {
		return err
	}
	e.shaders = NewShaderLibrary(e.graphics, e.assetManager)
	js, err := systems.NewJobSystem(max(runtime.NumCPU()-1, 1), 64)
	if err != nil {
		return err
	}
	e.jobs = js

	e.gameInstance.Graphics = e.graphics
	e.gameInstance.Assets = e.assetManager
	e.gameInstance.Shaders = e.shaders
	e.gameInstance.Jobs = e.jobs
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run from stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	maxFrames := e.gameInstance.ApplicationConfig.MaxFrames
	var frames uint64

	for e.isRunning {
		if e.platform != nil && !e.platform.PumpMessages() {
			e.isRunning = false
		}
		e.bus.Dispatch()
		if !e.isRunning {
			break
		}

		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			e.clock.Update()
			e.lastTime = e.clock.Elapsed()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		if err := e.frame(delta); err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.graphics.Frame(), err)
			e.isRunning = false
			return err
		}

		frameElapsed := time.Since(frameStart).Seconds()
		if remaining := e.frameBudget - frameElapsed; e.frameBudget > 0 && remaining > 0 {
			time.Sleep(time.Duration(remaining * float64(time.Second)))
		}

		e.metrics.Update(frameElapsed)
		e.statsTimer += delta
		if e.statsTimer >= 1 {
			e.statsTimer = 0
			e.logStats()
		}

		e.lastTime = currentTime
		frames++
		if maxFrames > 0 && frames >= maxFrames {
			e.isRunning = false
		}
	}
	return nil
}

func (e *Engine) frame(delta float64) error {
	// job callbacks may create GPU objects, so they run before the game
	// records the frame
	e.jobs.Update()
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return fmt.Errorf("game update: %w", err)
		}
	}
	if err := e.graphics.ClearBackground(); err != nil {
		return err
	}
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(e.graphics, delta); err != nil {
			return fmt.Errorf("game render: %w", err)
		}
	}
	return e.graphics.Present()
}

// Quit asks the run loop to stop after the current frame. It is safe to
// call from any goroutine.
func (e *Engine) Quit() {
	e.bus.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs []string
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if e.jobs != nil {
		if err := e.jobs.Shutdown(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := e.assetManager.Shutdown(); err != nil {
		errs = append(errs, err.Error())
	}
	if e.shaders != nil {
		e.shaders.Release()
	}
	var frames uint64
	if e.graphics != nil {
		frames = e.graphics.Frame()
		if err := e.graphics.Shutdown(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	e.currentStage = EngineStageShutdown
	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %s", strings.Join(errs, "; "))
	}
	core.LogInfo("engine shut down after %d frames", frames)
	return nil
}

func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) logStats() {
	fps, frameMS := e.metrics.Frame()
	s := e.graphics.LastFrameStats()
	core.LogDebug("fps %.0f, frame %.2fms, draws %d (%d batched), rt switches %d, shader switches %d, temporaries %d/%d, readbacks %d",
		fps, frameMS, s.DrawCalls, s.DrawCallsBatched, s.RenderTargetSwitches, s.ShaderSwitches,
		s.TemporaryTextures, s.TemporaryBuffers, s.PendingReadbacks)

	names := make([]string, 0, len(s.Caches))
	for name := range s.Caches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := s.Caches[name]
		core.LogDebug("cache %s: %d entries, %d hits, %d misses, %d evictions", name, c.Entries, c.Hits, c.Misses, c.Evictions)
	}
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if context.Type != core.EVENT_CODE_KEY_PRESSED {
		return false
	}

	switch ke.KeyCode {
	case platform.KeyEscape:
		e.Quit()
		return true
	case platform.KeyF12:
		e.captureScreenshot()
		return true
	case platform.KeyF5:
		e.reloadShaders()
		return true
	}
	return false
}

func (e *Engine) captureScreenshot() {
	dir := e.gameInstance.ApplicationConfig.ScreenshotDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, fmt.Sprintf("screenshot-%s.png", time.Now().Format("20060102-150405.000")))
	e.graphics.CaptureScreenshot(func(img *image.RGBA, err error) {
		if err == nil {
			err = renderer.SaveScreenshot(img, path)
		}
		if err != nil {
			core.LogError("screenshot failed: %s", err)
			return
		}
		core.LogInfo("screenshot saved to %s", path)
	})
}

// reloadShaders relinks every shader whose stage is indexed.
func (e *Engine) reloadShaders() {
	for _, path := range e.assetManager.Assets() {
		if _, err := e.shaders.Reload(path); err != nil {
			core.LogError("failed to reload %s: %s", path, err)
		}
	}
}

func (e *Engine) onAssetChanged(context core.EventContext) bool {
	ae, ok := context.Data.(*core.AssetEvent)
	if !ok || ae.Removed {
		return false
	}
	reloaded, err := e.shaders.Reload(ae.Path)
	if err != nil {
		// The previous shader keeps running; a fixed file triggers
		// another event.
		core.LogError("failed to reload %s: %s", ae.Path, err)
		return true
	}
	return reloaded
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.ResizeEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}

	width := se.WindowWidth
	height := se.WindowHeight
	if width == e.width && height == e.height && !e.isSuspended {
		return true
	}
	e.width = width
	e.height = height

	core.LogDebug("Window resize: %d, %d", width, height)

	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.graphics.Resize(int(width), int(height)); err != nil {
		core.LogError("failed to resize the backbuffer: %s", err)
		return true
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return true
}
