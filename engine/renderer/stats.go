package renderer

import "github.com/spaghettifunk/anima2d/engine/renderer/objcache"

// Stats is a snapshot of per-frame graphics counters.
type Stats struct {
	DrawCalls            int
	DrawCallsBatched     int
	RenderTargetSwitches int
	ShaderSwitches       int
	TemporaryTextures    int
	TemporaryBuffers     int
	PendingReadbacks     int
	// Caches holds per cache counters for backends that keep device object
	// caches, keyed by cache name.
	Caches map[string]objcache.Stats
}

// CacheReporter is implemented by backends that cache device objects.
type CacheReporter interface {
	CacheStats() map[string]objcache.Stats
}

// Stats returns the counters of the frame being built. A pending batch
// counts as one more draw call.
func (g *Graphics) Stats() Stats {
	s := Stats{
		DrawCalls:            g.drawCalls,
		DrawCallsBatched:     g.drawCallsBatched,
		RenderTargetSwitches: g.renderTargetSwitches,
		ShaderSwitches:       g.shaderSwitches,
		TemporaryTextures:    len(g.temporaryTextures),
		TemporaryBuffers:     len(g.temporaryBuffers),
		PendingReadbacks:     len(g.pendingReadbacks),
	}
	if g.batch.vertexCount > 0 {
		s.DrawCalls++
	}
	if r, ok := g.backend.(CacheReporter); ok {
		s.Caches = r.CacheStats()
	}
	return s
}

// LastFrameStats returns the counters of the last presented frame.
func (g *Graphics) LastFrameStats() Stats {
	return g.lastStats
}
