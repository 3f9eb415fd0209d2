package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// SetRenderTarget renders into a single color target. A target without a
// texture returns to the backbuffer.
func (g *Graphics) SetRenderTarget(rt metadata.RenderTarget, flags metadata.TemporaryRTFlags) error {
	if rt.Texture == nil {
		return g.setBackbuffer()
	}
	return g.SetRenderTargets(metadata.RenderTargets{
		Colors:         []metadata.RenderTarget{rt},
		TemporaryFlags: flags,
	})
}

// RenderTargets returns a copy of the active render targets.
func (g *Graphics) RenderTargets() metadata.RenderTargets {
	return g.state().RenderTargets.Clone()
}

func (g *Graphics) IsRenderTargetActive() bool {
	return !g.state().RenderTargets.Empty()
}

// IsRenderTargetActiveTexture reports whether any slice of tex is bound.
func (g *Graphics) IsRenderTargetActiveTexture(tex metadata.Texture) bool {
	rts := g.state().RenderTargets
	for _, rt := range rts.Colors {
		if rt.Texture == tex {
			return true
		}
	}
	return rts.DepthStencil.Texture != nil && rts.DepthStencil.Texture == tex
}

func (g *Graphics) IsRenderTargetActiveSlice(tex metadata.Texture, slice int) bool {
	rts := g.state().RenderTargets
	for _, rt := range rts.Colors {
		if rt.Texture == tex && rt.Slice == slice {
			return true
		}
	}
	return rts.DepthStencil.Texture != nil && rts.DepthStencil.Texture == tex && rts.DepthStencil.Slice == slice
}

func validSlice(tex metadata.Texture, slice, mip int) bool {
	return slice >= 0 && slice < tex.SliceCount(mip)
}

func validateTarget(rt metadata.RenderTarget) error {
	tex := rt.Texture
	if !tex.IsRenderTarget() {
		return fmt.Errorf("%w: texture %q", core.ErrNotRenderTarget, tex.DebugName())
	}
	if rt.MipMap < 0 || rt.MipMap >= tex.MipmapCount() {
		return fmt.Errorf("%w: %d", core.ErrInvalidMipmap, rt.MipMap)
	}
	if !validSlice(tex, rt.Slice, rt.MipMap) {
		return fmt.Errorf("%w: %d", core.ErrInvalidSlice, rt.Slice)
	}
	return nil
}

// SetRenderTargets binds a set of color targets plus an optional
// depth/stencil target. Every target is validated before any state changes.
// When no depth/stencil texture is given but temporary flags are, a pooled
// depth/stencil texture matching the first target is bound and cleared.
func (g *Graphics) SetRenderTargets(rts metadata.RenderTargets) error {
	st := g.state()
	first := rts.First()
	if first.Texture == nil {
		return g.setBackbuffer()
	}

	if rts.Equal(st.RenderTargets) {
		return nil
	}

	if limit := int(g.caps.Limit(metadata.LimitRenderTargets)); len(rts.Colors) > limit {
		return fmt.Errorf("%w: %d color targets, limit is %d", core.ErrTooManyRenderTargets, len(rts.Colors), limit)
	}

	multiFormat := g.caps.Supports(metadata.FeatureMultiRenderTargetFormats)
	firstTex := first.Texture

	firstColorFormat := metadata.PixelFormatUnknown
	if len(rts.Colors) > 0 {
		firstColorFormat = rts.Colors[0].Texture.Format()
	}

	if !firstTex.IsRenderTarget() {
		return fmt.Errorf("%w: texture %q", core.ErrNotRenderTarget, firstTex.DebugName())
	}
	if firstColorFormat.IsDepthStencil() {
		return fmt.Errorf("%w: %s", core.ErrDepthStencilAsColor, firstColorFormat)
	}
	if err := validateTarget(first); err != nil {
		return err
	}

	hasSRGB := firstColorFormat.IsSRGB()
	pixelW := firstTex.PixelWidth(first.MipMap)
	pixelH := firstTex.PixelHeight(first.MipMap)
	msaa := firstTex.MSAA()

	for i := 1; i < len(rts.Colors); i++ {
		rt := rts.Colors[i]
		if rt.Texture == nil {
			return fmt.Errorf("%w: color target %d has no texture", core.ErrNotRenderTarget, i)
		}
		if err := validateTarget(rt); err != nil {
			return err
		}
		format := rt.Texture.Format()
		if rt.Texture.PixelWidth(rt.MipMap) != pixelW || rt.Texture.PixelHeight(rt.MipMap) != pixelH {
			return fmt.Errorf("%w: color target %d", core.ErrRenderTargetDimensions, i)
		}
		if !multiFormat && format != firstColorFormat {
			return fmt.Errorf("%w: %w: %s", core.ErrRenderTargetFormat, core.ErrFeatureUnsupported, metadata.FeatureMultiRenderTargetFormats)
		}
		if rt.Texture.MSAA() != msaa {
			return fmt.Errorf("%w: color target %d", core.ErrRenderTargetMSAA, i)
		}
		if format.IsDepthStencil() {
			return fmt.Errorf("%w: color target %d is %s", core.ErrDepthStencilAsColor, i, format)
		}
		if format.IsSRGB() {
			hasSRGB = true
		}
	}

	if ds := rts.DepthStencil; ds.Texture != nil {
		if !ds.Texture.IsRenderTarget() {
			return fmt.Errorf("%w: depth/stencil texture %q", core.ErrNotRenderTarget, ds.Texture.DebugName())
		}
		if !ds.Texture.Format().IsDepthStencil() {
			return fmt.Errorf("%w: %s", core.ErrNotDepthStencil, ds.Texture.Format())
		}
		if ds.Texture.PixelWidth(ds.MipMap) != pixelW || ds.Texture.PixelHeight(ds.MipMap) != pixelH {
			return fmt.Errorf("%w: depth/stencil target", core.ErrRenderTargetDimensions)
		}
		if ds.Texture.MSAA() != msaa {
			return fmt.Errorf("%w: depth/stencil target", core.ErrRenderTargetMSAA)
		}
		if ds.MipMap < 0 || ds.MipMap >= ds.Texture.MipmapCount() {
			return fmt.Errorf("%w: %d", core.ErrInvalidMipmap, ds.MipMap)
		}
		if !validSlice(ds.Texture, ds.Slice, ds.MipMap) {
			return fmt.Errorf("%w: %d", core.ErrInvalidSlice, ds.Slice)
		}
	}

	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}

	temporary := rts.DepthStencil.Texture == nil && rts.TemporaryFlags != 0
	if temporary {
		bound := rts.Clone()
		tex, err := g.GetTemporaryTexture(g.temporaryDepthStencilFormat(rts.TemporaryFlags), pixelW, pixelH, msaa)
		if err != nil {
			return err
		}
		bound.DepthStencil = metadata.RenderTarget{Texture: tex}
		err = g.backend.SetRenderTargets(bound, pixelW, pixelH, hasSRGB)
		// The texture stays bound; it is only reused by a later request.
		g.ReleaseTemporaryTexture(tex)
		if err != nil {
			return err
		}
	} else if err := g.backend.SetRenderTargets(rts, pixelW, pixelH, hasSRGB); err != nil {
		return err
	}

	g.state().RenderTargets = rts.Clone()
	g.renderTargetSwitches++
	if err := g.ResetProjection(); err != nil {
		return err
	}

	if temporary {
		stencil := int32(0)
		depth := float32(1)
		return g.Clear(nil, &stencil, &depth)
	}
	return nil
}

func (g *Graphics) temporaryDepthStencilFormat(flags metadata.TemporaryRTFlags) metadata.PixelFormat {
	wantsDepth := flags&metadata.TemporaryRTDepth != 0
	wantsStencil := flags&metadata.TemporaryRTStencil != 0
	switch {
	case wantsDepth && wantsStencil:
		return metadata.PixelFormatDepth24Stencil8
	case wantsDepth && g.caps.IsRenderTargetFormatSupported(metadata.PixelFormatDepth24):
		return metadata.PixelFormatDepth24
	case wantsDepth:
		return metadata.PixelFormatDepth16
	}
	return metadata.PixelFormatStencil8
}

func (g *Graphics) setBackbuffer() error {
	st := g.state()
	if st.RenderTargets.Empty() {
		return nil
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	w, h := g.backend.Dimensions()
	if err := g.backend.SetRenderTargets(metadata.RenderTargets{}, w, h, false); err != nil {
		return err
	}
	st.RenderTargets = metadata.RenderTargets{}
	g.renderTargetSwitches++
	return g.ResetProjection()
}
