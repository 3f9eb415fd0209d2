package renderer

import (
	"testing"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/headless"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemporaryDepthTargetAllocatedAndPooled(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	a := newRenderTexture(t, g, metadata.PixelFormatRGBA8, 256, 256)

	require.NoError(t, g.SetRenderTarget(metadata.NewRenderTarget(a), 0))
	assert.Nil(t, b.RenderTargets.DepthStencil.Texture)

	require.NoError(t, g.SetRenderTargets(metadata.RenderTargets{
		Colors:         []metadata.RenderTarget{metadata.NewRenderTarget(a)},
		TemporaryFlags: metadata.TemporaryRTDepth,
	}))

	ds := b.RenderTargets.DepthStencil.Texture
	require.NotNil(t, ds)
	assert.Equal(t, metadata.PixelFormatDepth24, ds.Format())
	assert.Equal(t, 256, ds.PixelWidth(0))
	assert.Equal(t, 256, ds.PixelHeight(0))
	assert.Equal(t, a.MSAA(), ds.MSAA())
	assert.Equal(t, 2, g.Stats().RenderTargetSwitches)

	require.NotEmpty(t, b.Clears)
	cv := b.Clears[len(b.Clears)-1]
	require.NotNil(t, cv.Depth)
	require.NotNil(t, cv.Stencil)
	assert.Equal(t, float32(1), *cv.Depth)
	assert.Equal(t, int32(0), *cv.Stencil)

	// The pooled texture is free again but alive.
	textures, _ := g.TemporaryResourceCount()
	assert.Equal(t, 1, textures)
	reused, err := g.GetTemporaryTexture(metadata.PixelFormatDepth24, 256, 256, 1)
	require.NoError(t, err)
	assert.Same(t, ds, reused)
	g.ReleaseTemporaryTexture(reused)

	require.NoError(t, g.SetRenderTarget(metadata.RenderTarget{}, 0))
	presentFrames(t, g, 3)
	assert.False(t, ds.(*headless.Texture).Released)
	textures, _ = g.TemporaryResourceCount()
	assert.Equal(t, 1, textures)

	presentFrames(t, g, 2)
	assert.True(t, ds.(*headless.Texture).Released)
}

func TestDepthStencilFlagsPickFormat(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{
		UnsupportedFormats: []metadata.PixelFormat{metadata.PixelFormatDepth24},
	}, core.GraphicsConfig{})
	a := newRenderTexture(t, g, metadata.PixelFormatRGBA8, 32, 32)

	require.NoError(t, g.SetRenderTarget(metadata.NewRenderTarget(a), metadata.TemporaryRTDepth))
	assert.Equal(t, metadata.PixelFormatDepth16, b.RenderTargets.DepthStencil.Texture.Format())

	require.NoError(t, g.SetRenderTarget(metadata.NewRenderTarget(a), metadata.TemporaryRTDepth|metadata.TemporaryRTStencil))
	assert.Equal(t, metadata.PixelFormatDepth24Stencil8, b.RenderTargets.DepthStencil.Texture.Format())

	require.NoError(t, g.SetRenderTarget(metadata.NewRenderTarget(a), metadata.TemporaryRTStencil))
	assert.Equal(t, metadata.PixelFormatStencil8, b.RenderTargets.DepthStencil.Texture.Format())
}

func TestRenderTargetResetsProjection(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	a := newRenderTexture(t, g, metadata.PixelFormatRGBA8, 256, 128)

	require.NoError(t, g.SetRenderTarget(metadata.NewRenderTarget(a), 0))
	x, y := g.Projection().TransformXY(256, 128)
	assert.InDelta(t, 1, x, 1e-5)
	assert.InDelta(t, -1, y, 1e-5)

	// Rendering to a texture flips y on the device side.
	_, dy := g.DeviceProjection().TransformXY(256, 128)
	assert.InDelta(t, 1, dy, 1e-5)

	require.NoError(t, g.SetRenderTarget(metadata.RenderTarget{}, 0))
	x, _ = g.Projection().TransformXY(800, 600)
	assert.InDelta(t, 1, x, 1e-5)
}

func TestSettingSameTargetsIsNoop(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	a := newRenderTexture(t, g, metadata.PixelFormatRGBA8, 64, 64)

	require.NoError(t, g.SetRenderTarget(metadata.NewRenderTarget(a), 0))
	require.NoError(t, g.SetRenderTarget(metadata.NewRenderTarget(a), 0))
	assert.Equal(t, 1, b.StateCalls["rendertargets"])
	assert.Equal(t, 1, g.Stats().RenderTargetSwitches)
}

func TestRenderTargetValidation(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{
		DisabledFeatures: []metadata.Feature{metadata.FeatureMultiRenderTargetFormats},
	}, core.GraphicsConfig{})

	color := newRenderTexture(t, g, metadata.PixelFormatRGBA8, 64, 64)
	small := newRenderTexture(t, g, metadata.PixelFormatRGBA8, 32, 32)
	float := newRenderTexture(t, g, metadata.PixelFormatRGBA16F, 64, 64)
	depth := newRenderTexture(t, g, metadata.PixelFormatDepth24, 64, 64)
	plain, err := g.NewTexture(metadata.TextureSettings{Format: metadata.PixelFormatRGBA8, Width: 64, Height: 64}, nil)
	require.NoError(t, err)

	rt := metadata.NewRenderTarget
	tests := []struct {
		name string
		rts  metadata.RenderTargets
		err  error
	}{
		{"not a render target", metadata.RenderTargets{Colors: []metadata.RenderTarget{rt(plain)}}, core.ErrNotRenderTarget},
		{"depth as color", metadata.RenderTargets{Colors: []metadata.RenderTarget{rt(depth)}}, core.ErrDepthStencilAsColor},
		{"dimension mismatch", metadata.RenderTargets{Colors: []metadata.RenderTarget{rt(color), rt(small)}}, core.ErrRenderTargetDimensions},
		{"mixed formats", metadata.RenderTargets{Colors: []metadata.RenderTarget{rt(color), rt(float)}}, core.ErrRenderTargetFormat},
		{"color as depth", metadata.RenderTargets{Colors: []metadata.RenderTarget{rt(color)}, DepthStencil: rt(float)}, core.ErrNotDepthStencil},
		{"invalid mip", metadata.RenderTargets{Colors: []metadata.RenderTarget{{Texture: color, MipMap: 1}}}, core.ErrInvalidMipmap},
		{"invalid slice", metadata.RenderTargets{Colors: []metadata.RenderTarget{{Texture: color, Slice: 1}}}, core.ErrInvalidSlice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.SetRenderTargets(tt.rts)
			assert.ErrorIs(t, err, tt.err)
			assert.False(t, g.IsRenderTargetActive())
			assert.True(t, b.RenderTargets.Empty())
		})
	}

	tooMany := make([]metadata.RenderTarget, metadata.LimitRenderTargetsMax+1)
	for i := range tooMany {
		tooMany[i] = rt(color)
	}
	assert.ErrorIs(t, g.SetRenderTargets(metadata.RenderTargets{Colors: tooMany}), core.ErrTooManyRenderTargets)

	err = g.SetRenderTargets(metadata.RenderTargets{Colors: []metadata.RenderTarget{rt(color), rt(float)}})
	assert.ErrorIs(t, err, core.ErrFeatureUnsupported)
}

func TestDepthOnlyTarget(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	depth := newRenderTexture(t, g, metadata.PixelFormatDepth24Stencil8, 64, 64)

	require.NoError(t, g.SetRenderTargets(metadata.RenderTargets{DepthStencil: metadata.NewRenderTarget(depth)}))
	assert.True(t, g.IsRenderTargetActive())
	assert.True(t, g.IsRenderTargetActiveTexture(depth))
	assert.Same(t, depth, b.RenderTargets.DepthStencil.Texture)
}

func TestPresentFailsWithActiveTarget(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	a := newRenderTexture(t, g, metadata.PixelFormatRGBA8, 64, 64)

	require.NoError(t, g.SetRenderTarget(metadata.NewRenderTarget(a), 0))
	assert.ErrorIs(t, g.Present(), core.ErrRenderTargetActive)

	require.NoError(t, g.SetRenderTarget(metadata.RenderTarget{}, 0))
	assert.NoError(t, g.Present())
}
