package metadata

import "fmt"

type PixelFormat uint8

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatR8
	PixelFormatRG8
	PixelFormatRGBA8
	PixelFormatSRGBA8
	PixelFormatBGRA8
	PixelFormatSBGRA8
	PixelFormatRGBA16F
	PixelFormatRGBA32F
	PixelFormatR32F
	PixelFormatStencil8
	PixelFormatDepth16
	PixelFormatDepth24
	PixelFormatDepth32F
	PixelFormatDepth24Stencil8
	PixelFormatDepth32FStencil8
	PixelFormatMax
)

var pixelFormatNames = [PixelFormatMax]string{
	"unknown", "r8", "rg8", "rgba8", "srgba8", "bgra8", "sbgra8", "rgba16f", "rgba32f", "r32f",
	"stencil8", "depth16", "depth24", "depth32f", "depth24stencil8", "depth32fstencil8",
}

func (f PixelFormat) String() string {
	if f < PixelFormatMax {
		return pixelFormatNames[f]
	}
	return fmt.Sprintf("PixelFormat(%d)", uint8(f))
}

// IsDepthStencil reports whether the format carries depth and/or stencil
// data and can only be bound as the depth/stencil target.
func (f PixelFormat) IsDepthStencil() bool {
	return f.HasDepth() || f.HasStencil()
}

func (f PixelFormat) HasDepth() bool {
	switch f {
	case PixelFormatDepth16, PixelFormatDepth24, PixelFormatDepth32F,
		PixelFormatDepth24Stencil8, PixelFormatDepth32FStencil8:
		return true
	}
	return false
}

func (f PixelFormat) HasStencil() bool {
	switch f {
	case PixelFormatStencil8, PixelFormatDepth24Stencil8, PixelFormatDepth32FStencil8:
		return true
	}
	return false
}

func (f PixelFormat) IsSRGB() bool {
	return f == PixelFormatSRGBA8 || f == PixelFormatSBGRA8
}

func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatR8, PixelFormatStencil8:
		return 1
	case PixelFormatRG8, PixelFormatDepth16:
		return 2
	case PixelFormatRGBA8, PixelFormatSRGBA8, PixelFormatBGRA8, PixelFormatSBGRA8,
		PixelFormatR32F, PixelFormatDepth24, PixelFormatDepth32F, PixelFormatDepth24Stencil8:
		return 4
	case PixelFormatRGBA16F, PixelFormatDepth32FStencil8:
		return 8
	case PixelFormatRGBA32F:
		return 16
	}
	return 0
}

// CommonFormat is one of the fixed vertex layouts the batching engine writes.
type CommonFormat uint8

const (
	CommonFormatNone CommonFormat = iota
	CommonFormatXYf
	CommonFormatXYZf
	CommonFormatRGBAub
	CommonFormatSTfRGBAub
	CommonFormatXYfSTf
	CommonFormatXYfSTfRGBAub
)

// Stride returns the size in bytes of one vertex in this format.
func (f CommonFormat) Stride() int {
	switch f {
	case CommonFormatXYf:
		return 8
	case CommonFormatXYZf:
		return 12
	case CommonFormatRGBAub:
		return 4
	case CommonFormatSTfRGBAub:
		return 12
	case CommonFormatXYfSTf:
		return 16
	case CommonFormatXYfSTfRGBAub:
		return 20
	}
	return 0
}

func (f CommonFormat) HasColor() bool {
	return f == CommonFormatRGBAub || f == CommonFormatSTfRGBAub || f == CommonFormatXYfSTfRGBAub
}

type VertexAttributeID uint8

const (
	VertexAttributePosition VertexAttributeID = iota
	VertexAttributeTexCoord
	VertexAttributeColor
	VertexAttributeMax
)

type VertexDataFormat uint8

const (
	VertexDataFloatVec2 VertexDataFormat = iota + 1
	VertexDataFloatVec3
	VertexDataUNorm8Vec4
)

type VertexAttribute struct {
	Format      VertexDataFormat
	BufferIndex uint8
	Offset      uint16
}

const MaxVertexBuffers = 2

// VertexAttributes describes which attributes are fetched from which
// vertex buffer. It is a plain value so it can be part of a cache key.
type VertexAttributes struct {
	EnableBits uint32
	Attribs    [VertexAttributeMax]VertexAttribute
	Strides    [MaxVertexBuffers]uint16
}

func (va VertexAttributes) IsEnabled(id VertexAttributeID) bool {
	return va.EnableBits&(1<<id) != 0
}

func (va *VertexAttributes) Set(id VertexAttributeID, format VertexDataFormat, offset uint16, buffer uint8) {
	va.EnableBits |= 1 << id
	va.Attribs[id] = VertexAttribute{Format: format, BufferIndex: buffer, Offset: offset}
}

// SetCommonFormat adds the attributes of a common format read from the
// given vertex buffer slot.
func (va *VertexAttributes) SetCommonFormat(format CommonFormat, buffer uint8) {
	va.Strides[buffer] = uint16(format.Stride())
	switch format {
	case CommonFormatXYf:
		va.Set(VertexAttributePosition, VertexDataFloatVec2, 0, buffer)
	case CommonFormatXYZf:
		va.Set(VertexAttributePosition, VertexDataFloatVec3, 0, buffer)
	case CommonFormatRGBAub:
		va.Set(VertexAttributeColor, VertexDataUNorm8Vec4, 0, buffer)
	case CommonFormatSTfRGBAub:
		va.Set(VertexAttributeTexCoord, VertexDataFloatVec2, 0, buffer)
		va.Set(VertexAttributeColor, VertexDataUNorm8Vec4, 8, buffer)
	case CommonFormatXYfSTf:
		va.Set(VertexAttributePosition, VertexDataFloatVec2, 0, buffer)
		va.Set(VertexAttributeTexCoord, VertexDataFloatVec2, 8, buffer)
	case CommonFormatXYfSTfRGBAub:
		va.Set(VertexAttributePosition, VertexDataFloatVec2, 0, buffer)
		va.Set(VertexAttributeTexCoord, VertexDataFloatVec2, 8, buffer)
		va.Set(VertexAttributeColor, VertexDataUNorm8Vec4, 16, buffer)
	}
}
