package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPixelFormatPredicates(t *testing.T) {
	assert.True(t, PixelFormatDepth24Stencil8.HasDepth())
	assert.True(t, PixelFormatDepth24Stencil8.HasStencil())
	assert.True(t, PixelFormatStencil8.IsDepthStencil())
	assert.False(t, PixelFormatStencil8.HasDepth())
	assert.False(t, PixelFormatRGBA8.IsDepthStencil())
	assert.True(t, PixelFormatSRGBA8.IsSRGB())
	assert.Equal(t, "depth24stencil8", PixelFormatDepth24Stencil8.String())
}

func TestSetCommonFormat(t *testing.T) {
	var va VertexAttributes
	va.SetCommonFormat(CommonFormatXYf, 0)
	va.SetCommonFormat(CommonFormatSTfRGBAub, 1)

	assert.True(t, va.IsEnabled(VertexAttributePosition))
	assert.True(t, va.IsEnabled(VertexAttributeTexCoord))
	assert.True(t, va.IsEnabled(VertexAttributeColor))
	assert.Equal(t, [MaxVertexBuffers]uint16{8, 12}, va.Strides)
	assert.Equal(t, VertexAttribute{Format: VertexDataUNorm8Vec4, BufferIndex: 1, Offset: 8}, va.Attribs[VertexAttributeColor])

	var other VertexAttributes
	other.SetCommonFormat(CommonFormatXYf, 0)
	other.SetCommonFormat(CommonFormatSTfRGBAub, 1)
	assert.Equal(t, va, other)
}

func TestComputeBlendState(t *testing.T) {
	alpha := ComputeBlendState(BlendModeAlpha, BlendAlphaMultiply)
	assert.True(t, alpha.Enable)
	assert.Equal(t, BlendFactorSrcAlpha, alpha.SrcFactorRGB)
	assert.Equal(t, BlendFactorOne, alpha.SrcFactorA)
	assert.Equal(t, BlendFactorOneMinusSrcAlpha, alpha.DstFactorRGB)

	pre := ComputeBlendState(BlendModeAlpha, BlendAlphaPremultiplied)
	assert.Equal(t, BlendFactorOne, pre.SrcFactorRGB)

	sub := ComputeBlendState(BlendModeSubtract, BlendAlphaMultiply)
	assert.Equal(t, BlendOperationReverseSubtract, sub.OperationRGB)

	assert.False(t, ComputeBlendState(BlendModeNone, BlendAlphaMultiply).Enable)
}

func TestRectIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	assert.Equal(t, Rect{X: 5, Y: 5, W: 5, H: 5}, a.Intersect(Rect{X: 5, Y: 5, W: 10, H: 10}))
	assert.Equal(t, 0, a.Intersect(Rect{X: 20, Y: 20, W: 1, H: 1}).W)
}

func TestColorToBytes(t *testing.T) {
	assert.Equal(t, [4]uint8{255, 0, 128, 255}, Color{1, -1, 0.5, 2}.ToBytes())
}
