package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// Draw issues a non-indexed draw with the current transform, after any
// pending batched geometry.
func (g *Graphics) Draw(cmd *metadata.DrawCommand) error {
	if g.closed {
		return core.ErrClosed
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	return g.draw(cmd)
}

// DrawIndexed is the indexed form of Draw.
func (g *Graphics) DrawIndexed(cmd *metadata.DrawIndexedCommand) error {
	if g.closed {
		return core.ErrClosed
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	return g.drawIndexed(cmd)
}

func (g *Graphics) draw(cmd *metadata.DrawCommand) error {
	if cmd.InstanceCount > 1 && !g.caps.Supports(metadata.FeatureInstancing) {
		return fmt.Errorf("%w: %s", core.ErrFeatureUnsupported, metadata.FeatureInstancing)
	}
	g.backend.SetTransforms(g.Transform(), g.deviceProjection)
	if err := g.backend.Draw(cmd); err != nil {
		return err
	}
	g.drawCalls++
	return nil
}

func (g *Graphics) drawIndexed(cmd *metadata.DrawIndexedCommand) error {
	if cmd.IndexType == metadata.IndexDataUint32 && !g.caps.Supports(metadata.FeatureIndexBuffer32) {
		return fmt.Errorf("%w: %s", core.ErrFeatureUnsupported, metadata.FeatureIndexBuffer32)
	}
	if cmd.InstanceCount > 1 && !g.caps.Supports(metadata.FeatureInstancing) {
		return fmt.Errorf("%w: %s", core.ErrFeatureUnsupported, metadata.FeatureInstancing)
	}
	g.backend.SetTransforms(g.Transform(), g.deviceProjection)
	if err := g.backend.DrawIndexed(cmd); err != nil {
		return err
	}
	g.drawCalls++
	return nil
}

// Clear clears every active color target to color and the depth/stencil
// target to the given values. Nil values are left untouched.
func (g *Graphics) Clear(color *metadata.Color, stencil *int32, depth *float32) error {
	n := max(1, len(g.state().RenderTargets.Colors))
	colors := make([]*metadata.Color, n)
	for i := range colors {
		colors[i] = color
	}
	return g.ClearColors(colors, stencil, depth)
}

// ClearColors clears each color target to its own value. Extra values are
// ignored.
func (g *Graphics) ClearColors(colors []*metadata.Color, stencil *int32, depth *float32) error {
	if n := max(1, len(g.state().RenderTargets.Colors)); len(colors) > n {
		colors = colors[:n]
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	return g.backend.Clear(metadata.ClearValues{Colors: colors, Stencil: stencil, Depth: depth})
}

// ClearBackground clears the active targets to the background color.
func (g *Graphics) ClearBackground() error {
	c := g.state().BackgroundColor
	stencil := int32(0)
	depth := float32(1)
	return g.Clear(&c, &stencil, &depth)
}

// NewTexture creates a texture and uploads pixels to mip 0 of slice 0.
func (g *Graphics) NewTexture(settings metadata.TextureSettings, pixels []byte) (metadata.Texture, error) {
	if max(settings.Width, settings.Height) > int(g.caps.Limit(metadata.LimitTextureSize)) {
		return nil, fmt.Errorf("%w: texture %dx%d exceeds the size limit", core.ErrObjectCreation, settings.Width, settings.Height)
	}
	if settings.MSAA > 1 && settings.MSAA > int(g.caps.Limit(metadata.LimitTextureMSAA)) {
		return nil, fmt.Errorf("%w: %d MSAA samples", core.ErrFeatureUnsupported, settings.MSAA)
	}
	tex, err := g.backend.NewTexture(settings)
	if err != nil {
		return nil, err
	}
	if len(pixels) == 0 {
		return tex, nil
	}

	staging, err := g.backend.NewBuffer(metadata.BufferSettings{
		Usage:     metadata.BufferUsageCopySource,
		DataUsage: metadata.DataUsageStream,
		DebugName: settings.DebugName + "-staging",
	}, len(pixels), pixels)
	if err != nil {
		tex.Release()
		return nil, err
	}
	defer g.lifecycle.QueueCleanup(staging.Release)

	rect := metadata.Rect{W: settings.Width, H: settings.Height}
	if err := g.backend.CopyBufferToTexture(staging, 0, tex, 0, 0, rect); err != nil {
		tex.Release()
		return nil, err
	}
	return tex, nil
}

// NewBuffer creates a GPU buffer, optionally initialized with data.
func (g *Graphics) NewBuffer(settings metadata.BufferSettings, size int, data []byte) (metadata.Buffer, error) {
	return g.backend.NewBuffer(settings, size, data)
}

// ReleaseLater releases r once the frame being built has finished on the
// GPU.
func (g *Graphics) ReleaseLater(r metadata.Resource) {
	g.lifecycle.QueueCleanup(r.Release)
}

// DrawTexture draws mip 0 of tex stretched over the rectangle x, y, w, h,
// tinted by the current color.
func (g *Graphics) DrawTexture(tex metadata.Texture, x, y, w, h float32) error {
	if tex == nil {
		return fmt.Errorf("%w: nil texture", core.ErrInvalidConfig)
	}
	data, err := g.RequestBatchedDraw(BatchedDrawCommand{
		Primitive:   metadata.PrimitiveTriangles,
		Formats:     [metadata.MaxVertexBuffers]metadata.CommonFormat{metadata.CommonFormatXYfSTfRGBAub},
		IndexMode:   metadata.IndexModeQuads,
		VertexCount: 4,
		Texture:     tex,
	})
	if err != nil {
		return err
	}
	writeGlyphQuad(data.Stream[0], g.Transform(), [4][4]float32{
		{x, y, 0, 0},
		{x, y + h, 0, 1},
		{x + w, y + h, 1, 1},
		{x + w, y, 1, 0},
	}, g.Color().ToBytes())
	return nil
}
