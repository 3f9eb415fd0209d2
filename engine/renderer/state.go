package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// DisplayState is one snapshot of the drawing state. Values are copied on
// push; Font and Shader are references owned elsewhere.
type DisplayState struct {
	Color           metadata.Color
	BackgroundColor metadata.Color

	Blend metadata.BlendState

	LineWidth float32
	LineStyle metadata.LineStyle
	LineJoin  metadata.LineJoin

	PointSize float32

	Scissor     bool
	ScissorRect metadata.Rect

	Stencil metadata.StencilState
	Depth   metadata.DepthState

	ColorMask    metadata.ColorChannelMask
	MeshCullMode metadata.CullMode
	Winding      metadata.Winding

	Font   *Font
	Shader metadata.Shader

	RenderTargets metadata.RenderTargets

	DefaultSampler metadata.SamplerState
	Wireframe      bool

	UseCustomProjection bool
	CustomProjection    math.Mat4
}

func DefaultDisplayState() DisplayState {
	sampler := metadata.DefaultSamplerState()
	sampler.MipmapFilter = metadata.FilterLinear
	return DisplayState{
		Color:            metadata.ColorWhite,
		BackgroundColor:  metadata.Color{},
		Blend:            metadata.ComputeBlendState(metadata.BlendModeAlpha, metadata.BlendAlphaMultiply),
		LineWidth:        1,
		LineStyle:        metadata.LineStyleSmooth,
		LineJoin:         metadata.LineJoinMiter,
		PointSize:        1,
		Stencil:          metadata.DefaultStencilState(),
		Depth:            metadata.DepthState{Compare: metadata.CompareAlways},
		ColorMask:        metadata.ColorMaskAll,
		MeshCullMode:     metadata.CullNone,
		Winding:          metadata.WindingCCW,
		DefaultSampler:   sampler,
		CustomProjection: math.NewMat4Identity(),
	}
}

func (g *Graphics) state() *DisplayState {
	return &g.states[len(g.states)-1]
}

// State returns a copy of the current display state.
func (g *Graphics) State() DisplayState {
	s := *g.state()
	s.RenderTargets = s.RenderTargets.Clone()
	return s
}

// Reset applies the default display state and clears the transform.
func (g *Graphics) Reset() error {
	if err := g.restoreState(DefaultDisplayState()); err != nil {
		return err
	}
	g.Origin()
	return nil
}

// restoreState applies every field of s.
func (g *Graphics) restoreState(s DisplayState) error {
	g.SetColor(s.Color)
	g.SetBackgroundColor(s.BackgroundColor)
	if err := g.SetBlendState(s.Blend); err != nil {
		return err
	}
	g.SetLineWidth(s.LineWidth)
	g.SetLineStyle(s.LineStyle)
	g.SetLineJoin(s.LineJoin)
	if err := g.SetPointSize(s.PointSize); err != nil {
		return err
	}
	if err := g.applyScissor(s.Scissor, s.ScissorRect); err != nil {
		return err
	}
	g.SetMeshCullMode(s.MeshCullMode)
	if err := g.SetFrontFaceWinding(s.Winding); err != nil {
		return err
	}
	g.SetFont(s.Font)
	if err := g.SetShader(s.Shader); err != nil {
		return err
	}
	if err := g.SetRenderTargets(s.RenderTargets); err != nil {
		return err
	}
	if err := g.SetStencilState(s.Stencil); err != nil {
		return err
	}
	if err := g.SetDepthState(s.Depth); err != nil {
		return err
	}
	if err := g.SetColorMask(s.ColorMask); err != nil {
		return err
	}
	if err := g.SetWireframe(s.Wireframe); err != nil {
		return err
	}
	g.SetDefaultSamplerState(s.DefaultSampler)

	if s.UseCustomProjection {
		return g.SetCustomProjection(s.CustomProjection)
	}
	return g.ResetProjection()
}

// restoreStateChecked applies s, skipping every GPU state change whose value
// already matches the current state.
func (g *Graphics) restoreStateChecked(s DisplayState) error {
	cur := *g.state()

	if s.Color != cur.Color {
		g.SetColor(s.Color)
	}
	g.SetBackgroundColor(s.BackgroundColor)

	if s.Blend != cur.Blend {
		if err := g.SetBlendState(s.Blend); err != nil {
			return err
		}
	}

	g.SetLineWidth(s.LineWidth)
	g.SetLineStyle(s.LineStyle)
	g.SetLineJoin(s.LineJoin)

	if s.PointSize != cur.PointSize {
		if err := g.SetPointSize(s.PointSize); err != nil {
			return err
		}
	}

	if s.Scissor != cur.Scissor || (s.Scissor && s.ScissorRect != cur.ScissorRect) {
		if err := g.applyScissor(s.Scissor, s.ScissorRect); err != nil {
			return err
		}
	}

	g.SetMeshCullMode(s.MeshCullMode)

	if s.Winding != cur.Winding {
		if err := g.SetFrontFaceWinding(s.Winding); err != nil {
			return err
		}
	}

	g.SetFont(s.Font)
	if s.Shader != cur.Shader {
		if err := g.SetShader(s.Shader); err != nil {
			return err
		}
	}

	if !s.RenderTargets.Equal(cur.RenderTargets) {
		if err := g.SetRenderTargets(s.RenderTargets); err != nil {
			return err
		}
	}

	if s.Stencil != cur.Stencil {
		if err := g.SetStencilState(s.Stencil); err != nil {
			return err
		}
	}
	if s.Depth != cur.Depth {
		if err := g.SetDepthState(s.Depth); err != nil {
			return err
		}
	}
	if s.ColorMask != cur.ColorMask {
		if err := g.SetColorMask(s.ColorMask); err != nil {
			return err
		}
	}
	if s.Wireframe != cur.Wireframe {
		if err := g.SetWireframe(s.Wireframe); err != nil {
			return err
		}
	}

	g.SetDefaultSamplerState(s.DefaultSampler)

	if s.UseCustomProjection {
		return g.SetCustomProjection(s.CustomProjection)
	} else if g.state().UseCustomProjection {
		return g.ResetProjection()
	}
	return nil
}

// SetColor sets the constant color. Batched geometry bakes the color into
// its vertices, so no flush is needed.
func (g *Graphics) SetColor(c metadata.Color) {
	g.state().Color = c
	g.backend.SetColor(c)
}

func (g *Graphics) Color() metadata.Color {
	return g.state().Color
}

func (g *Graphics) SetBackgroundColor(c metadata.Color) {
	g.state().BackgroundColor = c
}

func (g *Graphics) BackgroundColor() metadata.Color {
	return g.state().BackgroundColor
}

func (g *Graphics) SetBlendState(s metadata.BlendState) error {
	if s.Enable && (s.OperationRGB == metadata.BlendOperationMin || s.OperationRGB == metadata.BlendOperationMax ||
		s.OperationA == metadata.BlendOperationMin || s.OperationA == metadata.BlendOperationMax) &&
		!g.caps.Supports(metadata.FeatureBlendMinMax) {
		return fmt.Errorf("%w: %s", core.ErrFeatureUnsupported, metadata.FeatureBlendMinMax)
	}
	if s != g.state().Blend {
		if err := g.FlushBatchedDraws(); err != nil {
			return err
		}
	}
	g.state().Blend = s
	g.backend.SetBlendState(s)
	return nil
}

// SetBlendMode sets one of the named blend modes. Modes that cannot produce
// correct results with non-premultiplied colors require premultiplied alpha.
func (g *Graphics) SetBlendMode(mode metadata.BlendMode, alpha metadata.BlendAlpha) error {
	if alpha == metadata.BlendAlphaMultiply &&
		(mode == metadata.BlendModeMultiply || mode == metadata.BlendModeLighten || mode == metadata.BlendModeDarken) {
		return fmt.Errorf("%w: blend mode %d must be used with premultiplied alpha", core.ErrFeatureUnsupported, mode)
	}
	return g.SetBlendState(metadata.ComputeBlendState(mode, alpha))
}

func (g *Graphics) BlendState() metadata.BlendState {
	return g.state().Blend
}

func (g *Graphics) SetLineWidth(width float32) {
	g.state().LineWidth = width
}

func (g *Graphics) SetLineStyle(style metadata.LineStyle) {
	g.state().LineStyle = style
}

func (g *Graphics) SetLineJoin(join metadata.LineJoin) {
	g.state().LineJoin = join
}

func (g *Graphics) LineWidth() float32 {
	return g.state().LineWidth
}

func (g *Graphics) LineStyle() metadata.LineStyle {
	return g.state().LineStyle
}

func (g *Graphics) LineJoin() metadata.LineJoin {
	return g.state().LineJoin
}

func (g *Graphics) SetPointSize(size float32) error {
	if size != g.state().PointSize {
		if err := g.FlushBatchedDraws(); err != nil {
			return err
		}
	}
	g.state().PointSize = size
	g.backend.SetPointSize(size)
	return nil
}

func (g *Graphics) PointSize() float32 {
	return g.state().PointSize
}

func (g *Graphics) SetScissor(rect metadata.Rect) error {
	return g.applyScissor(true, rect)
}

func (g *Graphics) ClearScissor() error {
	return g.applyScissor(false, metadata.Rect{})
}

// IntersectScissor narrows the scissor to its overlap with rect.
func (g *Graphics) IntersectScissor(rect metadata.Rect) error {
	cur := g.state().ScissorRect
	if !g.state().Scissor {
		cur = metadata.Rect{X: 0, Y: 0, W: int(^uint32(0) >> 1), H: int(^uint32(0) >> 1)}
	}
	return g.SetScissor(cur.Intersect(rect))
}

// Scissor returns the scissor rectangle and whether scissoring is enabled.
func (g *Graphics) Scissor() (metadata.Rect, bool) {
	return g.state().ScissorRect, g.state().Scissor
}

func (g *Graphics) applyScissor(enable bool, rect metadata.Rect) error {
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	st := g.state()
	st.Scissor = enable
	if enable {
		st.ScissorRect = rect
		g.backend.SetScissor(&rect)
	} else {
		g.backend.SetScissor(nil)
	}
	return nil
}

func (g *Graphics) SetStencilState(s metadata.StencilState) error {
	if s != g.state().Stencil {
		if err := g.FlushBatchedDraws(); err != nil {
			return err
		}
	}
	g.state().Stencil = s
	g.backend.SetStencilState(s)
	return nil
}

func (g *Graphics) StencilState() metadata.StencilState {
	return g.state().Stencil
}

func (g *Graphics) SetDepthState(s metadata.DepthState) error {
	if s != g.state().Depth {
		if err := g.FlushBatchedDraws(); err != nil {
			return err
		}
	}
	g.state().Depth = s
	g.backend.SetDepthState(s)
	return nil
}

func (g *Graphics) DepthState() metadata.DepthState {
	return g.state().Depth
}

func (g *Graphics) SetColorMask(mask metadata.ColorChannelMask) error {
	if mask != g.state().ColorMask {
		if err := g.FlushBatchedDraws(); err != nil {
			return err
		}
	}
	g.state().ColorMask = mask
	g.backend.SetColorMask(mask)
	return nil
}

func (g *Graphics) ColorMask() metadata.ColorChannelMask {
	return g.state().ColorMask
}

// SetMeshCullMode only affects non-batched draws, which pick it up per call.
func (g *Graphics) SetMeshCullMode(mode metadata.CullMode) {
	g.state().MeshCullMode = mode
}

func (g *Graphics) MeshCullMode() metadata.CullMode {
	return g.state().MeshCullMode
}

func (g *Graphics) SetFrontFaceWinding(w metadata.Winding) error {
	if w != g.state().Winding {
		if err := g.FlushBatchedDraws(); err != nil {
			return err
		}
	}
	g.state().Winding = w
	g.backend.SetFrontFaceWinding(w)
	return nil
}

func (g *Graphics) FrontFaceWinding() metadata.Winding {
	return g.state().Winding
}

func (g *Graphics) SetFont(f *Font) {
	g.state().Font = f
}

func (g *Graphics) Font() *Font {
	return g.state().Font
}

// SetShader activates shader; nil returns to the standard shaders.
func (g *Graphics) SetShader(shader metadata.Shader) error {
	if shader != nil && shader.HasStage(metadata.ShaderStageCompute) {
		return fmt.Errorf("%w: compute shaders cannot be used for drawing", core.ErrInvalidShader)
	}
	if shader != g.state().Shader {
		if err := g.FlushBatchedDraws(); err != nil {
			return err
		}
	}
	g.state().Shader = shader
	if shader == nil {
		g.attachStandardShader(metadata.StandardShaderDefault)
		return nil
	}
	g.attachShader(shader)
	return nil
}

func (g *Graphics) Shader() metadata.Shader {
	return g.state().Shader
}

func (g *Graphics) SetDefaultSamplerState(s metadata.SamplerState) {
	g.state().DefaultSampler = s
	g.backend.SetDefaultSamplerState(s)
}

func (g *Graphics) DefaultSamplerState() metadata.SamplerState {
	return g.state().DefaultSampler
}

func (g *Graphics) SetWireframe(enable bool) error {
	if enable != g.state().Wireframe {
		if err := g.FlushBatchedDraws(); err != nil {
			return err
		}
	}
	g.state().Wireframe = enable
	g.backend.SetWireframe(enable)
	return nil
}

func (g *Graphics) IsWireframe() bool {
	return g.state().Wireframe
}
