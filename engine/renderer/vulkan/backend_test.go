package vulkan

import (
	"encoding/binary"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamRegions(t *testing.T) {
	r := streamRegions{regionSize: 64, regions: 2}

	assert.Equal(t, 0, r.writeOffset())
	r.markUsed(16)
	assert.Equal(t, 16, r.writeOffset())
	assert.Equal(t, 48, r.usable())

	r.next()
	assert.Equal(t, 64, r.base())
	assert.Equal(t, 64, r.writeOffset())
	assert.Equal(t, 64, r.usable())

	r.markUsed(100)
	assert.Equal(t, 0, r.usable(), "usage is clamped to the region")
	assert.Equal(t, 128, r.writeOffset())

	r.next()
	assert.Equal(t, 0, r.base(), "regions wrap around")
}

func spirvWords(words ...uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func spirvHeader() []uint32 {
	return []uint32{spirvMagic, 0x00010000, 0, 16, 0}
}

func TestDecodeSPIRV(t *testing.T) {
	_, err := decodeSPIRV([]byte{1, 2, 3})
	assert.ErrorIs(t, err, core.ErrInvalidShader)

	bad := spirvHeader()
	bad[0] = 0xdeadbeef
	_, err = decodeSPIRV(spirvWords(bad...))
	assert.ErrorIs(t, err, core.ErrInvalidShader)

	code, err := decodeSPIRV(spirvWords(spirvHeader()...))
	require.NoError(t, err)
	assert.Len(t, code, spirvHeaderWords)
	assert.Equal(t, uint32(spirvMagic), code[0])
}

func TestSPIRVLocalSize(t *testing.T) {
	code := append(spirvHeader(),
		2<<16|17, 1, // OpCapability Shader
		6<<16|spirvOpExecutionMode, 4, spirvModeLocalSize, 8, 4, 1,
	)
	size, ok := spirvLocalSize(code)
	require.True(t, ok)
	assert.Equal(t, [3]int{8, 4, 1}, size)

	_, ok = spirvLocalSize(spirvHeader())
	assert.False(t, ok)

	truncated := append(spirvHeader(), 6<<16|spirvOpExecutionMode, 4)
	_, ok = spirvLocalSize(truncated)
	assert.False(t, ok)
}

func TestNewShaderStageRejectsSource(t *testing.T) {
	b := &Backend{}
	_, err := b.NewShaderStage(metadata.ShaderStagePixel, "void main() {}")
	assert.ErrorIs(t, err, core.ErrInvalidShader)

	st, err := b.NewShaderStage(metadata.ShaderStageCompute, string(spirvWords(spirvHeader()...)))
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 1, 1}, st.(*ShaderStage).localSize)
	assert.Contains(t, st.Key(), "compute:")
}

func TestVertexInputFeedsDisabledAttributes(t *testing.T) {
	var va metadata.VertexAttributes
	va.SetCommonFormat(metadata.CommonFormatXYfSTf, 0)

	bindings, attributes := vertexInput(va)
	require.Len(t, bindings, 2)
	assert.Equal(t, uint32(0), bindings[0].Binding)
	assert.Equal(t, uint32(16), bindings[0].Stride)
	assert.Equal(t, uint32(defaultAttributeBinding), bindings[1].Binding)
	assert.Equal(t, uint32(0), bindings[1].Stride)

	require.Len(t, attributes, int(metadata.VertexAttributeMax))
	color := attributes[metadata.VertexAttributeColor]
	assert.Equal(t, uint32(defaultAttributeBinding), color.Binding)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, color.Format)
	assert.Equal(t, uint32(16), color.Offset)

	texcoord := attributes[metadata.VertexAttributeTexCoord]
	assert.Equal(t, uint32(0), texcoord.Binding)
	assert.Equal(t, uint32(8), texcoord.Offset)
}

func TestVertexInputTwoBuffers(t *testing.T) {
	var va metadata.VertexAttributes
	va.SetCommonFormat(metadata.CommonFormatXYf, 0)
	va.SetCommonFormat(metadata.CommonFormatRGBAub, 1)

	bindings, attributes := vertexInput(va)
	require.Len(t, bindings, 3)
	assert.Equal(t, uint32(8), bindings[0].Stride)
	assert.Equal(t, uint32(4), bindings[1].Stride)
	assert.Equal(t, uint32(1), attributes[metadata.VertexAttributeColor].Binding)
	assert.Equal(t, uint32(defaultAttributeBinding), attributes[metadata.VertexAttributeTexCoord].Binding)
}

func TestDefaultAttributeData(t *testing.T) {
	for id, off := range defaultAttributeOffsets {
		size := 8
		if metadata.VertexAttributeID(id) == metadata.VertexAttributeColor {
			size = 4
		}
		assert.LessOrEqual(t, int(off)+size, len(defaultAttributeData))
	}
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, defaultAttributeData[16:20])
}

func TestPushConstantsLayout(t *testing.T) {
	// mat4 + vec4 + float
	assert.Equal(t, uint32(64+16+4), pushConstantsSize)
}

func TestFrontFace(t *testing.T) {
	tests := []struct {
		winding metadata.Winding
		flipped bool
		want    vk.FrontFace
	}{
		{metadata.WindingCCW, false, vk.FrontFaceCounterClockwise},
		{metadata.WindingCW, false, vk.FrontFaceClockwise},
		{metadata.WindingCCW, true, vk.FrontFaceClockwise},
		{metadata.WindingCW, true, vk.FrontFaceCounterClockwise},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, vkFrontFace(tt.winding, tt.flipped))
	}
}

func TestFormatMapping(t *testing.T) {
	f, ok := vkFormat(metadata.PixelFormatRGBA8, vk.FormatD24UnormS8Uint)
	assert.True(t, ok)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, f)

	f, ok = vkFormat(metadata.PixelFormatDepth24Stencil8, vk.FormatD32SfloatS8Uint)
	assert.True(t, ok)
	assert.Equal(t, vk.FormatD32SfloatS8Uint, f, "falls back to the detected depth format")

	f, _ = vkFormat(metadata.PixelFormatDepth24Stencil8, vk.FormatD24UnormS8Uint)
	assert.Equal(t, vk.FormatD24UnormS8Uint, f)

	_, ok = vkFormat(metadata.PixelFormatUnknown, vk.FormatD24UnormS8Uint)
	assert.False(t, ok)

	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), vkAspect(metadata.PixelFormatRGBA8))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), vkAspect(metadata.PixelFormatDepth24Stencil8))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectStencilBit), vkAspect(metadata.PixelFormatStencil8))
}

func TestSampleCounts(t *testing.T) {
	assert.Equal(t, vk.SampleCount1Bit, vkSampleCount(0))
	assert.Equal(t, vk.SampleCount4Bit, vkSampleCount(4))
	assert.Equal(t, vk.SampleCount4Bit, vkSampleCount(6))

	counts := vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount2Bit | vk.SampleCount4Bit | vk.SampleCount8Bit)
	assert.Equal(t, 8, maxSampleCount(counts))
	assert.Equal(t, 1, maxSampleCount(vk.SampleCountFlags(vk.SampleCount1Bit)))
}

func TestBufferUsageAlwaysCopies(t *testing.T) {
	flags := vkBufferUsage(metadata.BufferUsageVertex)
	assert.NotZero(t, flags&vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	assert.NotZero(t, flags&vk.BufferUsageFlags(vk.BufferUsageTransferDstBit))
	assert.NotZero(t, flags&vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	assert.Zero(t, flags&vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
}
