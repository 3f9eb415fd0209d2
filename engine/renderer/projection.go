package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// Projection returns the logical projection matrix.
func (g *Graphics) Projection() math.Mat4 {
	return g.projection
}

// DeviceProjection returns the projection adjusted for the backend's
// coordinate conventions.
func (g *Graphics) DeviceProjection() math.Mat4 {
	return g.deviceProjection
}

func (g *Graphics) SetOrthoProjection(w, h, near, far float32) error {
	if near >= far {
		return fmt.Errorf("%w: orthographic far (%v) must be greater than near (%v)", core.ErrInvalidProjection, far, near)
	}
	return g.SetCustomProjection(math.NewMat4Orthographic(0, w, h, 0, near, far))
}

func (g *Graphics) SetPerspectiveProjection(fov, aspect, near, far float32) error {
	if near <= 0 {
		return fmt.Errorf("%w: perspective near (%v) must be greater than 0", core.ErrInvalidProjection, near)
	}
	if near >= far {
		return fmt.Errorf("%w: perspective far (%v) must be greater than near (%v)", core.ErrInvalidProjection, far, near)
	}
	return g.SetCustomProjection(math.NewMat4Perspective(fov, aspect, near, far))
}

func (g *Graphics) SetCustomProjection(m math.Mat4) error {
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	st := g.state()
	st.UseCustomProjection = true
	st.CustomProjection = m
	g.updateDeviceProjection(m)
	return nil
}

// ResetProjection restores the default orthographic projection covering the
// first render target, or the backbuffer when none is active, with y down.
func (g *Graphics) ResetProjection() error {
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	st := g.state()
	w, h := g.backend.Dimensions()
	if rt := st.RenderTargets.First(); rt.Texture != nil {
		w = rt.Texture.PixelWidth(rt.MipMap)
		h = rt.Texture.PixelHeight(rt.MipMap)
	}
	st.UseCustomProjection = false
	g.updateDeviceProjection(math.NewMat4Orthographic(0, float32(w), float32(h), 0, -10, 10))
	return nil
}

func (g *Graphics) updateDeviceProjection(projection math.Mat4) {
	g.projection = projection
	flags := g.backend.DeviceProjectionFlags(g.IsRenderTargetActive())
	g.deviceProjection = CalculateDeviceProjection(projection, flags)
}

// CalculateDeviceProjection adjusts a logical projection: FlipY negates the
// y row, Z01 remaps depth from [-1, 1] to [0, 1] and ReverseZ flips depth.
func CalculateDeviceProjection(projection math.Mat4, flags metadata.DeviceProjectionFlags) math.Mat4 {
	m := projection
	reverseZ := flags&metadata.DeviceProjectionReverseZ != 0

	if flags&metadata.DeviceProjectionFlipY != 0 {
		m.SetRow(1, m.Row(1).MulScalar(-1))
	}

	if flags&metadata.DeviceProjectionZ01 != 0 {
		scale := float32(0.5)
		if reverseZ {
			scale = -0.5
		}
		m.SetRow(2, m.Row(2).MulScalar(scale).Add(m.Row(3)))
	} else if reverseZ {
		m.SetRow(2, m.Row(2).MulScalar(-1))
	}
	return m
}
