package metadata

type PrimitiveType uint8

const (
	PrimitiveTriangles PrimitiveType = iota
	PrimitiveTriangleStrip
	PrimitiveTriangleFan
	PrimitivePoints
)

// IndexMode selects the index pattern generated for batched geometry.
type IndexMode uint8

const (
	IndexModeNone IndexMode = iota
	IndexModeQuads
	IndexModeFan
)

type StandardShader uint8

const (
	// StandardShaderNone keeps whatever shader is active.
	StandardShaderNone StandardShader = iota
	StandardShaderDefault
	StandardShaderPoints
	StandardShaderArray
	StandardShaderMax
)

type IndexDataType uint8

const (
	IndexDataUint16 IndexDataType = iota
	IndexDataUint32
)

func (t IndexDataType) Size() int {
	if t == IndexDataUint32 {
		return 4
	}
	return 2
}

// BufferBindings maps vertex buffer slots to buffers and byte offsets. A
// slot holds either a Buffer or a StreamBuffer.
type BufferBindings struct {
	Buffers [MaxVertexBuffers]Resource
	Offsets [MaxVertexBuffers]int
}

type DrawCommand struct {
	Primitive     PrimitiveType
	Attributes    VertexAttributes
	Buffers       BufferBindings
	VertexStart   int
	VertexCount   int
	InstanceCount int
	Texture       Texture
	CullMode      CullMode
}

type DrawIndexedCommand struct {
	Primitive         PrimitiveType
	Attributes        VertexAttributes
	Buffers           BufferBindings
	IndexCount        int
	InstanceCount     int
	IndexType         IndexDataType
	IndexBuffer       Resource
	IndexBufferOffset int
	Texture           Texture
	CullMode          CullMode
}

// DeviceProjectionFlags adjust the logical projection to what the device
// expects for the current target.
type DeviceProjectionFlags uint8

const DeviceProjectionDefault DeviceProjectionFlags = 0

const (
	DeviceProjectionFlipY DeviceProjectionFlags = 1 << iota
	DeviceProjectionZ01
	DeviceProjectionReverseZ
)

type ClearValues struct {
	Colors  []*Color
	Stencil *int32
	Depth   *float32
}
