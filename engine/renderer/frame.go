package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
)

// Present ends the frame being built: pending batches are flushed, queued
// screenshots are captured and the frame is submitted. It then waits for
// the oldest frame in flight, retires its deferred work and starts the next
// frame.
func (g *Graphics) Present() error {
	if g.closed {
		return core.ErrClosed
	}
	if g.IsRenderTargetActive() {
		return fmt.Errorf("%w: cannot present while a render target is active", core.ErrRenderTargetActive)
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	g.captureScreenshots()

	if err := g.backend.Submit(g.lifecycle.Fence()); err != nil {
		return err
	}
	g.lifecycle.Submitted()

	g.lastStats = g.Stats()
	g.drawCalls = 0
	g.drawCallsBatched = 0
	g.renderTargetSwitches = 0
	g.shaderSwitches = 0

	if err := g.lifecycle.Advance(); err != nil {
		return err
	}
	g.updateTemporaryResources()
	g.updatePendingReadbacks()

	for i := range g.batch.vb {
		g.batch.vb[i].NextFrame()
	}
	g.batch.indexBuffer.NextFrame()

	return g.backend.BeginFrame(g.lifecycle)
}
