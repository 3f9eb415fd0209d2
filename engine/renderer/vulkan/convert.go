package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// vkFormat maps a pixel format to the device format. Packed depth formats
// without a direct equivalent fall back to the detected depth format.
func vkFormat(f metadata.PixelFormat, depthFormat vk.Format) (vk.Format, bool) {
	switch f {
	case metadata.PixelFormatR8:
		return vk.FormatR8Unorm, true
	case metadata.PixelFormatRG8:
		return vk.FormatR8g8Unorm, true
	case metadata.PixelFormatRGBA8:
		return vk.FormatR8g8b8a8Unorm, true
	case metadata.PixelFormatSRGBA8:
		return vk.FormatR8g8b8a8Srgb, true
	case metadata.PixelFormatBGRA8:
		return vk.FormatB8g8r8a8Unorm, true
	case metadata.PixelFormatSBGRA8:
		return vk.FormatB8g8r8a8Srgb, true
	case metadata.PixelFormatRGBA16F:
		return vk.FormatR16g16b16a16Sfloat, true
	case metadata.PixelFormatRGBA32F:
		return vk.FormatR32g32b32a32Sfloat, true
	case metadata.PixelFormatR32F:
		return vk.FormatR32Sfloat, true
	case metadata.PixelFormatStencil8:
		return vk.FormatS8Uint, true
	case metadata.PixelFormatDepth16:
		return vk.FormatD16Unorm, true
	case metadata.PixelFormatDepth24:
		return vk.FormatX8D24UnormPack32, true
	case metadata.PixelFormatDepth32F:
		return vk.FormatD32Sfloat, true
	case metadata.PixelFormatDepth24Stencil8:
		if depthFormat == vk.FormatD32SfloatS8Uint {
			return depthFormat, true
		}
		return vk.FormatD24UnormS8Uint, true
	case metadata.PixelFormatDepth32FStencil8:
		return vk.FormatD32SfloatS8Uint, true
	}
	return vk.FormatUndefined, false
}

func vkAspect(f metadata.PixelFormat) vk.ImageAspectFlags {
	var aspect vk.ImageAspectFlagBits
	if f.HasDepth() {
		aspect |= vk.ImageAspectDepthBit
	}
	if f.HasStencil() {
		aspect |= vk.ImageAspectStencilBit
	}
	if aspect == 0 {
		aspect = vk.ImageAspectColorBit
	}
	return vk.ImageAspectFlags(aspect)
}

func vkSampleCount(msaa int) vk.SampleCountFlagBits {
	switch {
	case msaa >= 64:
		return vk.SampleCount64Bit
	case msaa >= 32:
		return vk.SampleCount32Bit
	case msaa >= 16:
		return vk.SampleCount16Bit
	case msaa >= 8:
		return vk.SampleCount8Bit
	case msaa >= 4:
		return vk.SampleCount4Bit
	case msaa >= 2:
		return vk.SampleCount2Bit
	}
	return vk.SampleCount1Bit
}

func vkBufferUsage(usage metadata.BufferUsage) vk.BufferUsageFlags {
	// Every buffer can be copied from and to; readbacks and uploads rely on it.
	flags := vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
	if usage&metadata.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage&metadata.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage&metadata.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&metadata.BufferUsageTexel != 0 {
		flags |= vk.BufferUsageUniformTexelBufferBit
	}
	if usage&metadata.BufferUsageShaderStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if usage&metadata.BufferUsageIndirect != 0 {
		flags |= vk.BufferUsageIndirectBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

func vkPrimitive(p metadata.PrimitiveType) vk.PrimitiveTopology {
	switch p {
	case metadata.PrimitiveTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.PrimitiveTriangleFan:
		return vk.PrimitiveTopologyTriangleFan
	case metadata.PrimitivePoints:
		return vk.PrimitiveTopologyPointList
	}
	return vk.PrimitiveTopologyTriangleList
}

func vkVertexFormat(f metadata.VertexDataFormat) vk.Format {
	switch f {
	case metadata.VertexDataFloatVec3:
		return vk.FormatR32g32b32Sfloat
	case metadata.VertexDataUNorm8Vec4:
		return vk.FormatR8g8b8a8Unorm
	}
	return vk.FormatR32g32Sfloat
}

func vkIndexType(t metadata.IndexDataType) vk.IndexType {
	if t == metadata.IndexDataUint32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

func vkCompareOp(c metadata.CompareMode) vk.CompareOp {
	switch c {
	case metadata.CompareNever:
		return vk.CompareOpNever
	case metadata.CompareLess:
		return vk.CompareOpLess
	case metadata.CompareLEqual:
		return vk.CompareOpLessOrEqual
	case metadata.CompareEqual:
		return vk.CompareOpEqual
	case metadata.CompareGEqual:
		return vk.CompareOpGreaterOrEqual
	case metadata.CompareGreater:
		return vk.CompareOpGreater
	case metadata.CompareNotEqual:
		return vk.CompareOpNotEqual
	}
	return vk.CompareOpAlways
}

func vkStencilOp(a metadata.StencilAction) vk.StencilOp {
	switch a {
	case metadata.StencilZero:
		return vk.StencilOpZero
	case metadata.StencilReplace:
		return vk.StencilOpReplace
	case metadata.StencilIncrement:
		return vk.StencilOpIncrementAndClamp
	case metadata.StencilDecrement:
		return vk.StencilOpDecrementAndClamp
	case metadata.StencilIncrementWrap:
		return vk.StencilOpIncrementAndWrap
	case metadata.StencilDecrementWrap:
		return vk.StencilOpDecrementAndWrap
	case metadata.StencilInvert:
		return vk.StencilOpInvert
	}
	return vk.StencilOpKeep
}

func vkCullMode(c metadata.CullMode) vk.CullModeFlags {
	switch c {
	case metadata.CullBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case metadata.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

// vkFrontFace accounts for the Y flip of the device projection, which
// reverses the apparent winding of every triangle.
func vkFrontFace(w metadata.Winding, flipped bool) vk.FrontFace {
	ccw := w == metadata.WindingCCW
	if flipped {
		ccw = !ccw
	}
	if ccw {
		return vk.FrontFaceCounterClockwise
	}
	return vk.FrontFaceClockwise
}

func vkBlendOp(op metadata.BlendOperation) vk.BlendOp {
	switch op {
	case metadata.BlendOperationSubtract:
		return vk.BlendOpSubtract
	case metadata.BlendOperationReverseSubtract:
		return vk.BlendOpReverseSubtract
	case metadata.BlendOperationMin:
		return vk.BlendOpMin
	case metadata.BlendOperationMax:
		return vk.BlendOpMax
	}
	return vk.BlendOpAdd
}

func vkBlendFactor(f metadata.BlendFactor) vk.BlendFactor {
	switch f {
	case metadata.BlendFactorZero:
		return vk.BlendFactorZero
	case metadata.BlendFactorSrcColor:
		return vk.BlendFactorSrcColor
	case metadata.BlendFactorOneMinusSrcColor:
		return vk.BlendFactorOneMinusSrcColor
	case metadata.BlendFactorSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case metadata.BlendFactorOneMinusSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case metadata.BlendFactorDstColor:
		return vk.BlendFactorDstColor
	case metadata.BlendFactorOneMinusDstColor:
		return vk.BlendFactorOneMinusDstColor
	case metadata.BlendFactorDstAlpha:
		return vk.BlendFactorDstAlpha
	case metadata.BlendFactorOneMinusDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	case metadata.BlendFactorSrcAlphaSaturated:
		return vk.BlendFactorSrcAlphaSaturate
	}
	return vk.BlendFactorOne
}

func vkColorMask(m metadata.ColorChannelMask) vk.ColorComponentFlags {
	var flags vk.ColorComponentFlagBits
	if m.R {
		flags |= vk.ColorComponentRBit
	}
	if m.G {
		flags |= vk.ColorComponentGBit
	}
	if m.B {
		flags |= vk.ColorComponentBBit
	}
	if m.A {
		flags |= vk.ColorComponentABit
	}
	return vk.ColorComponentFlags(flags)
}

func vkFilter(f metadata.FilterMode) vk.Filter {
	if f == metadata.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func vkMipmapMode(f metadata.FilterMode) vk.SamplerMipmapMode {
	if f == metadata.FilterLinear {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

func vkAddressMode(w metadata.WrapMode) vk.SamplerAddressMode {
	switch w {
	case metadata.WrapClampZero, metadata.WrapClampOne:
		return vk.SamplerAddressModeClampToBorder
	case metadata.WrapRepeat:
		return vk.SamplerAddressModeRepeat
	case metadata.WrapMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	}
	return vk.SamplerAddressModeClampToEdge
}

func vkBorderColor(s metadata.SamplerState) vk.BorderColor {
	for _, w := range []metadata.WrapMode{s.WrapU, s.WrapV, s.WrapW} {
		if w == metadata.WrapClampOne {
			return vk.BorderColorFloatOpaqueWhite
		}
	}
	return vk.BorderColorFloatTransparentBlack
}

func vkShaderStage(s metadata.ShaderStageType) vk.ShaderStageFlagBits {
	switch s {
	case metadata.ShaderStagePixel:
		return vk.ShaderStageFragmentBit
	case metadata.ShaderStageCompute:
		return vk.ShaderStageComputeBit
	}
	return vk.ShaderStageVertexBit
}
