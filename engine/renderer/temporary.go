package renderer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// framesSinceUse is -1 while a resource is claimed and counts the frames it
// has been free otherwise.
type temporaryTexture struct {
	texture        metadata.Texture
	framesSinceUse int
}

type temporaryBuffer struct {
	buffer         metadata.Buffer
	size           int
	framesSinceUse int
}

// GetTemporaryTexture claims a free pooled render target texture with the
// given format, size and sample count, or creates one.
func (g *Graphics) GetTemporaryTexture(format metadata.PixelFormat, w, h, msaa int) (metadata.Texture, error) {
	for i := range g.temporaryTextures {
		t := &g.temporaryTextures[i]
		if t.framesSinceUse < 0 {
			continue
		}
		tex := t.texture
		if tex.Format() == format && tex.PixelWidth(0) == w && tex.PixelHeight(0) == h && tex.MSAA() == msaa {
			t.framesSinceUse = -1
			return tex, nil
		}
	}

	tex, err := g.backend.NewTexture(metadata.TextureSettings{
		Type:         metadata.TextureType2D,
		Format:       format,
		Width:        w,
		Height:       h,
		MSAA:         msaa,
		MipmapCount:  1,
		RenderTarget: true,
		DebugName:    "temporary-" + uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary %s texture %dx%d: %w", format, w, h, err)
	}
	g.temporaryTextures = append(g.temporaryTextures, temporaryTexture{texture: tex, framesSinceUse: -1})
	core.LogDebug("temporary texture created: %s %dx%d msaa %d", format, w, h, msaa)
	return tex, nil
}

// ReleaseTemporaryTexture returns tex to the pool. It stays alive until it
// has been unused for the eviction threshold.
func (g *Graphics) ReleaseTemporaryTexture(tex metadata.Texture) {
	for i := range g.temporaryTextures {
		if g.temporaryTextures[i].texture == tex {
			g.temporaryTextures[i].framesSinceUse = 0
			return
		}
	}
}

func (g *Graphics) GetTemporaryBuffer(size int, usage metadata.BufferUsage, dataUsage metadata.DataUsage) (metadata.Buffer, error) {
	for i := range g.temporaryBuffers {
		t := &g.temporaryBuffers[i]
		if t.framesSinceUse < 0 {
			continue
		}
		if t.size == size && t.buffer.Usage() == usage && t.buffer.DataUsage() == dataUsage {
			t.framesSinceUse = -1
			return t.buffer, nil
		}
	}

	buf, err := g.backend.NewBuffer(metadata.BufferSettings{
		Usage:     usage,
		DataUsage: dataUsage,
		DebugName: "temporary-" + uuid.NewString(),
	}, size, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary buffer of %d bytes: %w", size, err)
	}
	g.temporaryBuffers = append(g.temporaryBuffers, temporaryBuffer{buffer: buf, size: size, framesSinceUse: -1})
	return buf, nil
}

func (g *Graphics) ReleaseTemporaryBuffer(buf metadata.Buffer) {
	for i := range g.temporaryBuffers {
		if g.temporaryBuffers[i].buffer == buf {
			g.temporaryBuffers[i].framesSinceUse = 0
			return
		}
	}
}

// updateTemporaryResources ages free resources once per frame and evicts
// the ones unused for the eviction threshold. Destruction waits until the
// frame that may still reference them has finished.
func (g *Graphics) updateTemporaryResources() {
	limit := g.cfg.TemporaryEvictionFrames

	for i := len(g.temporaryTextures) - 1; i >= 0; i-- {
		t := &g.temporaryTextures[i]
		if t.framesSinceUse >= limit {
			tex := t.texture
			g.lifecycle.QueueCleanup(tex.Release)
			last := len(g.temporaryTextures) - 1
			g.temporaryTextures[i] = g.temporaryTextures[last]
			g.temporaryTextures = g.temporaryTextures[:last]
		} else if t.framesSinceUse >= 0 {
			t.framesSinceUse++
		}
	}

	for i := len(g.temporaryBuffers) - 1; i >= 0; i-- {
		t := &g.temporaryBuffers[i]
		if t.framesSinceUse >= limit {
			buf := t.buffer
			g.lifecycle.QueueCleanup(buf.Release)
			last := len(g.temporaryBuffers) - 1
			g.temporaryBuffers[i] = g.temporaryBuffers[last]
			g.temporaryBuffers = g.temporaryBuffers[:last]
		} else if t.framesSinceUse >= 0 {
			t.framesSinceUse++
		}
	}
}

// ClearTemporaryResources releases every pooled resource immediately. The
// device must be idle.
func (g *Graphics) ClearTemporaryResources() {
	for _, t := range g.temporaryBuffers {
		t.buffer.Release()
	}
	for _, t := range g.temporaryTextures {
		t.texture.Release()
	}
	g.temporaryBuffers = nil
	g.temporaryTextures = nil
}

// TemporaryResourceCount returns the number of pooled textures and buffers.
func (g *Graphics) TemporaryResourceCount() (textures, buffers int) {
	return len(g.temporaryTextures), len(g.temporaryBuffers)
}
