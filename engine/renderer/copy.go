package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

func rangesOverlap(aOffset, bOffset, size int) bool {
	return aOffset < bOffset+size && bOffset < aOffset+size
}

// CopyBuffer copies size bytes between two buffers on the GPU timeline.
func (g *Graphics) CopyBuffer(src, dst metadata.Buffer, srcOffset, dstOffset, size int) error {
	if !g.caps.Supports(metadata.FeatureCopyBuffer) {
		return fmt.Errorf("%w: %s", core.ErrFeatureUnsupported, metadata.FeatureCopyBuffer)
	}
	if dst.DataUsage() == metadata.DataUsageStream {
		return fmt.Errorf("%w: stream buffers cannot be a copy destination", core.ErrInvalidCopy)
	}
	if src.DataUsage() == metadata.DataUsageReadback {
		return fmt.Errorf("%w: readback buffers cannot be a copy source", core.ErrInvalidCopy)
	}
	if size <= 0 || srcOffset < 0 || dstOffset < 0 {
		return fmt.Errorf("%w: offsets and size must be positive", core.ErrInvalidCopy)
	}
	if srcOffset+size > src.Size() {
		return fmt.Errorf("%w: source range [%d, %d) exceeds %d bytes", core.ErrBufferTooSmall, srcOffset, srcOffset+size, src.Size())
	}
	if dstOffset+size > dst.Size() {
		return fmt.Errorf("%w: destination range [%d, %d) exceeds %d bytes", core.ErrBufferTooSmall, dstOffset, dstOffset+size, dst.Size())
	}
	if src == dst && rangesOverlap(srcOffset, dstOffset, size) {
		return fmt.Errorf("%w: source and destination ranges overlap", core.ErrInvalidCopy)
	}
	if dst.Immutable() {
		return fmt.Errorf("%w: destination buffer is immutable", core.ErrInvalidCopy)
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	return g.backend.CopyBuffer(src, dst, srcOffset, dstOffset, size)
}

func (g *Graphics) validateTextureRegion(tex metadata.Texture, slice, mip int, rect metadata.Rect) error {
	if g.IsRenderTargetActiveTexture(tex) {
		return fmt.Errorf("%w: %q", core.ErrRenderTargetActive, tex.DebugName())
	}
	if mip < 0 || mip >= tex.MipmapCount() {
		return fmt.Errorf("%w: %d", core.ErrInvalidMipmap, mip)
	}
	if !validSlice(tex, slice, mip) {
		return fmt.Errorf("%w: %d", core.ErrInvalidSlice, slice)
	}
	w, h := tex.PixelWidth(mip), tex.PixelHeight(mip)
	if rect.X < 0 || rect.Y < 0 || rect.W <= 0 || rect.H <= 0 || rect.X+rect.W > w || rect.Y+rect.H > h {
		return fmt.Errorf("%w: rectangle (x=%d, y=%d, w=%d, h=%d) for %dx%d texture",
			core.ErrInvalidCopy, rect.X, rect.Y, rect.W, rect.H, w, h)
	}
	return nil
}

// CopyTextureToBuffer copies a region of a texture into tightly packed rows.
func (g *Graphics) CopyTextureToBuffer(src metadata.Texture, slice, mip int, rect metadata.Rect, dst metadata.Buffer, dstOffset int) error {
	if !g.caps.Supports(metadata.FeatureCopyTextureToBuffer) {
		if !src.IsRenderTarget() {
			return fmt.Errorf("%w: %s", core.ErrFeatureUnsupported, metadata.FeatureCopyTextureToBuffer)
		}
		if !g.caps.Supports(metadata.FeatureCopyRenderTargetToBuffer) {
			return fmt.Errorf("%w: %s", core.ErrFeatureUnsupported, metadata.FeatureCopyRenderTargetToBuffer)
		}
	}
	if src.Format().IsDepthStencil() {
		return fmt.Errorf("%w: depth/stencil textures cannot be copied to a buffer", core.ErrInvalidCopy)
	}
	if dst.DataUsage() == metadata.DataUsageStream {
		return fmt.Errorf("%w: stream buffers cannot be a copy destination", core.ErrInvalidCopy)
	}
	if dst.Immutable() {
		return fmt.Errorf("%w: destination buffer is immutable", core.ErrInvalidCopy)
	}
	if err := g.validateTextureRegion(src, slice, mip, rect); err != nil {
		return err
	}
	size := rect.W * rect.H * src.Format().BytesPerPixel()
	if dstOffset < 0 || dstOffset+size > dst.Size() {
		return fmt.Errorf("%w: %d bytes at offset %d", core.ErrBufferTooSmall, size, dstOffset)
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	return g.backend.CopyTextureToBuffer(src, slice, mip, rect, dst, dstOffset)
}

// CopyBufferToTexture uploads tightly packed rows into a texture region.
func (g *Graphics) CopyBufferToTexture(src metadata.Buffer, srcOffset int, dst metadata.Texture, slice, mip int, rect metadata.Rect) error {
	if !g.caps.Supports(metadata.FeatureCopyBufferToTexture) {
		return fmt.Errorf("%w: %s", core.ErrFeatureUnsupported, metadata.FeatureCopyBufferToTexture)
	}
	if src.DataUsage() == metadata.DataUsageReadback {
		return fmt.Errorf("%w: readback buffers cannot be a copy source", core.ErrInvalidCopy)
	}
	if dst.Format().IsDepthStencil() {
		return fmt.Errorf("%w: buffers cannot be copied to depth/stencil textures", core.ErrInvalidCopy)
	}
	if err := g.validateTextureRegion(dst, slice, mip, rect); err != nil {
		return err
	}
	size := rect.W * rect.H * dst.Format().BytesPerPixel()
	if srcOffset < 0 || srcOffset+size > src.Size() {
		return fmt.Errorf("%w: %d bytes at offset %d", core.ErrBufferTooSmall, size, srcOffset)
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	return g.backend.CopyBufferToTexture(src, srcOffset, dst, slice, mip, rect)
}
