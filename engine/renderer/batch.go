package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// BatchedDrawCommand describes geometry that may be merged with the pending
// batch. A zero StandardShader selects the default standard shader.
type BatchedDrawCommand struct {
	Primitive      metadata.PrimitiveType
	Formats        [metadata.MaxVertexBuffers]metadata.CommonFormat
	IndexMode      metadata.IndexMode
	VertexCount    int
	Texture        metadata.Texture
	StandardShader metadata.StandardShader
}

// BatchedVertexData holds one writable region per format slot, sized for
// exactly the requested vertices.
type BatchedVertexData struct {
	Stream [metadata.MaxVertexBuffers][]byte
}

// mapInfo is an open mapping of a stream buffer. data is nil when unmapped.
type mapInfo struct {
	data   []byte
	cursor int
}

type batchState struct {
	vb          [metadata.MaxVertexBuffers]metadata.StreamBuffer
	indexBuffer metadata.StreamBuffer

	primitive      metadata.PrimitiveType
	formats        [metadata.MaxVertexBuffers]metadata.CommonFormat
	texture        metadata.Texture
	standardShader metadata.StandardShader

	vertexCount int
	indexCount  int

	vbMap    [metadata.MaxVertexBuffers]mapInfo
	indexMap mapInfo
}

// RequestBatchedDraw reserves room for cmd.VertexCount vertices in the
// shared stream buffers. The pending batch is flushed first when cmd cannot
// be merged into it or when the buffers are too small.
func (g *Graphics) RequestBatchedDraw(cmd BatchedDrawCommand) (BatchedVertexData, error) {
	st := &g.batch
	var data BatchedVertexData

	if cmd.VertexCount <= 0 {
		return data, nil
	}
	if cmd.StandardShader == metadata.StandardShaderNone {
		cmd.StandardShader = metadata.StandardShaderDefault
	}
	indexed := cmd.IndexMode != metadata.IndexModeNone

	shouldFlush := cmd.Primitive != st.primitive ||
		cmd.Formats != st.formats ||
		indexed != (st.indexCount > 0) ||
		cmd.Texture != st.texture ||
		cmd.StandardShader != st.standardShader
	shouldResize := false

	totalVertices := st.vertexCount + cmd.VertexCount
	if indexed && totalVertices > maxBatchVertices {
		shouldFlush = true
	}
	if indexed && cmd.VertexCount > maxBatchVertices {
		return data, fmt.Errorf("%w: %d vertices exceed the 16-bit index range", core.ErrBatchTooLarge, cmd.VertexCount)
	}

	reqIndexCount := indexCount(cmd.IndexMode, cmd.VertexCount)
	reqIndexSize := reqIndexCount * metadata.IndexDataUint16.Size()

	var newDataSizes [metadata.MaxVertexBuffers]int
	var bufferSizes [metadata.MaxVertexBuffers + 1]int

	for i, format := range cmd.Formats {
		if format == metadata.CommonFormatNone {
			continue
		}
		stride := format.Stride()
		dataSize := stride * totalVertices

		if st.vbMap[i].data != nil && dataSize > len(st.vbMap[i].data) {
			shouldFlush = true
		}
		if dataSize > st.vb[i].UsableSize() {
			bufferSizes[i] = max(dataSize, st.vb[i].Size()*2)
			shouldResize = true
		}
		newDataSizes[i] = stride * cmd.VertexCount
	}

	if indexed {
		dataSize := (st.indexCount + reqIndexCount) * metadata.IndexDataUint16.Size()
		if st.indexMap.data != nil && dataSize > len(st.indexMap.data) {
			shouldFlush = true
		}
		if dataSize > st.indexBuffer.UsableSize() {
			bufferSizes[2] = max(dataSize, st.indexBuffer.Size()*2)
			shouldResize = true
		}
	}

	if shouldFlush || shouldResize {
		if err := g.FlushBatchedDraws(); err != nil {
			return data, err
		}
		st.primitive = cmd.Primitive
		st.formats = cmd.Formats
		st.texture = cmd.Texture
		st.standardShader = cmd.StandardShader
	}

	if st.vertexCount == 0 && g.state().Shader == nil {
		g.attachStandardShader(st.standardShader)
	}

	if shouldResize {
		if err := g.resizeBatchBuffers(bufferSizes); err != nil {
			return data, err
		}
	}

	if indexed {
		if st.indexMap.data == nil {
			st.indexMap = mapInfo{data: st.indexBuffer.Map(reqIndexSize)}
		}
		m := &st.indexMap
		fillIndices(cmd.IndexMode, st.vertexCount, cmd.VertexCount, m.data[m.cursor:m.cursor+reqIndexSize])
		m.cursor += reqIndexSize
	}

	for i, size := range newDataSizes {
		if size == 0 {
			continue
		}
		if st.vbMap[i].data == nil {
			st.vbMap[i] = mapInfo{data: st.vb[i].Map(size)}
		}
		m := &st.vbMap[i]
		data.Stream[i] = m.data[m.cursor : m.cursor+size]
		m.cursor += size
	}

	if st.vertexCount > 0 {
		g.drawCallsBatched++
	}
	st.vertexCount += cmd.VertexCount
	st.indexCount += reqIndexCount

	return data, nil
}

// resizeBatchBuffers replaces every stream buffer smaller than its required
// size. The old buffers may still be read by frames in flight, so their
// release waits for the current frame to retire.
func (g *Graphics) resizeBatchBuffers(sizes [metadata.MaxVertexBuffers + 1]int) error {
	st := &g.batch
	for i := range st.vb {
		if st.vb[i].Size() >= sizes[i] {
			continue
		}
		g.lifecycle.QueueCleanup(st.vb[i].Release)
		vb, err := g.backend.NewStreamBuffer(metadata.BufferUsageVertex, sizes[i])
		if err != nil {
			return fmt.Errorf("failed to grow batch vertex buffer to %d bytes: %w", sizes[i], err)
		}
		st.vb[i] = vb
	}
	if st.indexBuffer.Size() < sizes[2] {
		g.lifecycle.QueueCleanup(st.indexBuffer.Release)
		ib, err := g.backend.NewStreamBuffer(metadata.BufferUsageIndex, sizes[2])
		if err != nil {
			return fmt.Errorf("failed to grow batch index buffer to %d bytes: %w", sizes[2], err)
		}
		st.indexBuffer = ib
	}
	return nil
}

// FlushBatchedDraws submits the pending batch as a single draw. Vertex
// positions and colors are already final, so the draw runs with an identity
// transform and white constant color.
func (g *Graphics) FlushBatchedDraws() error {
	st := &g.batch
	if st.vertexCount == 0 && st.indexCount == 0 {
		return nil
	}

	var attrs metadata.VertexAttributes
	var bindings metadata.BufferBindings
	var usedSizes [metadata.MaxVertexBuffers + 1]int

	for i, format := range st.formats {
		if format == metadata.CommonFormatNone {
			continue
		}
		attrs.SetCommonFormat(format, uint8(i))
		usedSizes[i] = format.Stride() * st.vertexCount
		bindings.Buffers[i] = st.vb[i]
		bindings.Offsets[i] = st.vb[i].Unmap(usedSizes[i])
		st.vbMap[i] = mapInfo{}
	}

	if attrs.EnableBits == 0 {
		st.vertexCount, st.indexCount = 0, 0
		return nil
	}

	color := g.state().Color
	hasColor := attrs.IsEnabled(metadata.VertexAttributeColor)
	if hasColor {
		g.backend.SetColor(metadata.ColorWhite)
	}
	g.PushIdentityTransform()

	var err error
	if st.indexCount > 0 {
		usedSizes[2] = metadata.IndexDataUint16.Size() * st.indexCount
		cmd := &metadata.DrawIndexedCommand{
			Primitive:         st.primitive,
			Attributes:        attrs,
			Buffers:           bindings,
			IndexCount:        st.indexCount,
			InstanceCount:     1,
			IndexType:         metadata.IndexDataUint16,
			IndexBuffer:       st.indexBuffer,
			IndexBufferOffset: st.indexBuffer.Unmap(usedSizes[2]),
			Texture:           st.texture,
		}
		st.indexMap = mapInfo{}
		err = g.drawIndexed(cmd)
	} else {
		err = g.draw(&metadata.DrawCommand{
			Primitive:     st.primitive,
			Attributes:    attrs,
			Buffers:       bindings,
			VertexCount:   st.vertexCount,
			InstanceCount: 1,
			Texture:       st.texture,
		})
	}

	for i := range st.vb {
		if usedSizes[i] > 0 {
			st.vb[i].MarkUsed(usedSizes[i])
		}
	}
	if usedSizes[2] > 0 {
		st.indexBuffer.MarkUsed(usedSizes[2])
	}

	g.PopTransform()
	if hasColor {
		g.backend.SetColor(color)
	}

	st.vertexCount = 0
	st.indexCount = 0
	return err
}
