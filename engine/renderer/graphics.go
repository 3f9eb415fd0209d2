// Package renderer holds the backend-agnostic graphics state machine: the
// display state stack, transforms and projections, render target
// management, the batched draw engine and the temporary resource pools.
package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/frames"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// Graphics is the graphics context. Every method must be called from the
// goroutine that builds frames.
type Graphics struct {
	backend metadata.Backend
	caps    *metadata.Capabilities
	cfg     core.GraphicsConfig

	lifecycle *frames.Lifecycle

	states      []DisplayState
	stackTypes  []StackType
	transforms  []math.Mat4
	pixelScales []float64

	projection       math.Mat4
	deviceProjection math.Mat4

	batch batchState

	temporaryTextures []temporaryTexture
	temporaryBuffers  []temporaryBuffer

	pendingReadbacks   []*pendingReadback
	pendingScreenshots []ScreenshotCallback

	shaderStages    [metadata.ShaderStageMax]map[string]metadata.ShaderStage
	standardShaders [metadata.StandardShaderMax]metadata.Shader
	currentShader   metadata.Shader

	drawCalls            int
	drawCallsBatched     int
	renderTargetSwitches int
	shaderSwitches       int
	lastStats            Stats

	closed bool
}

// New creates a graphics context on top of an already initialized backend.
func New(backend metadata.Backend, cfg core.GraphicsConfig) (*Graphics, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", core.ErrInvalidConfig)
	}
	if cfg.MaxStackDepth <= 0 {
		cfg.MaxStackDepth = 64
	}
	if cfg.TemporaryEvictionFrames <= 0 {
		cfg.TemporaryEvictionFrames = 3
	}
	if cfg.InitialVertexBufferSize <= 0 {
		cfg.InitialVertexBufferSize = 1024 * 1024
	}
	if cfg.InitialIndexBufferSize <= 0 {
		cfg.InitialIndexBufferSize = 64 * 1024
	}
	if cfg.FramesInFlight <= 0 {
		cfg.FramesInFlight = 2
	}

	lifecycle, err := frames.New(cfg.FramesInFlight, backend.NewFence)
	if err != nil {
		return nil, err
	}

	g := &Graphics{
		backend:     backend,
		caps:        backend.Capabilities(),
		cfg:         cfg,
		lifecycle:   lifecycle,
		states:      []DisplayState{DefaultDisplayState()},
		transforms:  []math.Mat4{math.NewMat4Identity()},
		pixelScales: []float64{1},
	}
	for i := range g.shaderStages {
		g.shaderStages[i] = make(map[string]metadata.ShaderStage)
	}

	for i := 0; i < 2; i++ {
		if g.batch.vb[i], err = backend.NewStreamBuffer(metadata.BufferUsageVertex, cfg.InitialVertexBufferSize); err != nil {
			return nil, fmt.Errorf("failed to create batch vertex buffer: %w", err)
		}
	}
	if g.batch.indexBuffer, err = backend.NewStreamBuffer(metadata.BufferUsageIndex, cfg.InitialIndexBufferSize); err != nil {
		return nil, fmt.Errorf("failed to create batch index buffer: %w", err)
	}

	if err := backend.BeginFrame(lifecycle); err != nil {
		return nil, err
	}
	if err := g.Reset(); err != nil {
		return nil, err
	}

	core.LogInfo("graphics context created on %s backend, %d frames in flight", backend.Name(), cfg.FramesInFlight)
	return g, nil
}

func (g *Graphics) Backend() metadata.Backend {
	return g.backend
}

func (g *Graphics) Capabilities() *metadata.Capabilities {
	return g.caps
}

// Dimensions returns the backbuffer size in pixels.
func (g *Graphics) Dimensions() (int, int) {
	return g.backend.Dimensions()
}

// Frame returns the number of the frame being built.
func (g *Graphics) Frame() uint64 {
	return g.lifecycle.Frame()
}

// Resize resizes the backbuffer and refreshes the projection when it is
// derived from the backbuffer.
func (g *Graphics) Resize(width, height int) error {
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	if err := g.backend.Resize(width, height); err != nil {
		return err
	}
	if g.IsRenderTargetActive() {
		return nil
	}
	st := g.state()
	if st.UseCustomProjection {
		g.updateDeviceProjection(st.CustomProjection)
		return nil
	}
	return g.ResetProjection()
}

// Shutdown waits for the device, releases every resource owned by the
// context and shuts the backend down.
func (g *Graphics) Shutdown() error {
	if g.closed {
		return core.ErrClosed
	}
	g.closed = true

	if err := g.lifecycle.Drain(); err != nil {
		core.LogWarn("failed to drain frames on shutdown: %s", err)
	}
	g.ClearTemporaryResources()
	for _, sh := range g.standardShaders {
		if sh != nil {
			sh.Release()
		}
	}
	for _, stages := range g.shaderStages {
		for _, st := range stages {
			st.Release()
		}
	}
	for i := range g.batch.vb {
		g.batch.vb[i].Release()
	}
	g.batch.indexBuffer.Release()

	if err := g.lifecycle.Release(); err != nil {
		core.LogWarn("failed to release frame lifecycle: %s", err)
	}
	return g.backend.Shutdown()
}
