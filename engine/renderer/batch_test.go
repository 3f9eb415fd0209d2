package renderer

import (
	"encoding/binary"
	"testing"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/headless"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readVec2(data []byte, i int) (float32, float32) {
	x := math32.Float32frombits(binary.LittleEndian.Uint32(data[i*8:]))
	y := math32.Float32frombits(binary.LittleEndian.Uint32(data[i*8+4:]))
	return x, y
}

func TestThreeRectanglesCoalesceIntoOneDraw(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 10, 10))
	require.NoError(t, g.Rectangle(DrawModeFill, 20, 0, 10, 10))
	require.NoError(t, g.Rectangle(DrawModeFill, 40, 0, 10, 10))
	assert.Empty(t, b.Draws)

	require.NoError(t, g.FlushBatchedDraws())
	require.Len(t, b.Draws, 1)

	d := b.Draws[0]
	assert.True(t, d.Indexed)
	assert.Equal(t, 18, d.IndexCount)
	assert.Equal(t, 12, d.VertexCount)
	assert.Equal(t, []uint16{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7, 8, 9, 10, 8, 10, 11}, d.Indices)
	assert.Len(t, d.Vertices[0], 12*metadata.CommonFormatXYf.Stride())
	assert.Len(t, d.Vertices[1], 12*metadata.CommonFormatRGBAub.Stride())
	assert.Equal(t, 2, g.Stats().DrawCallsBatched)
}

func TestFlushBakesTransformAndColor(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	red := metadata.Color{R: 1, A: 1}
	g.SetColor(red)
	g.Translate(100, 50)
	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 10, 20))
	require.NoError(t, g.FlushBatchedDraws())

	require.Len(t, b.Draws, 1)
	d := b.Draws[0]
	assert.Equal(t, metadata.ColorWhite, d.Color)
	assert.True(t, d.Transform.Compare(math.NewMat4Identity(), 0))

	x, y := readVec2(d.Vertices[0], 0)
	assert.Equal(t, float32(100), x)
	assert.Equal(t, float32(50), y)
	x, y = readVec2(d.Vertices[0], 2)
	assert.Equal(t, float32(110), x)
	assert.Equal(t, float32(70), y)
	assert.Equal(t, []byte{255, 0, 0, 255}, d.Vertices[1][:4])

	assert.Equal(t, red, b.Color)
	assert.True(t, g.Transform().Compare(math.NewMat4Translation(math.NewVec3(100, 50, 0)), 0))
}

func TestLineWidthDoesNotFlush(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 10, 10))
	g.SetLineWidth(4)
	g.SetLineJoin(metadata.LineJoinBevel)
	g.SetColor(metadata.Color{G: 1, A: 1})
	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 10, 10))
	assert.Empty(t, b.Draws)

	require.NoError(t, g.FlushBatchedDraws())
	assert.Len(t, b.Draws, 1)
}

func TestIncompatibleRequestsFlush(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	texA := newRenderTexture(t, g, metadata.PixelFormatRGBA8, 4, 4)
	texB := newRenderTexture(t, g, metadata.PixelFormatRGBA8, 4, 4)
	b.Reset()

	quad := func(tex metadata.Texture) BatchedDrawCommand {
		return BatchedDrawCommand{
			Formats:     [metadata.MaxVertexBuffers]metadata.CommonFormat{metadata.CommonFormatXYfSTfRGBAub},
			IndexMode:   metadata.IndexModeQuads,
			VertexCount: 4,
			Texture:     tex,
		}
	}

	_, err := g.RequestBatchedDraw(quad(texA))
	require.NoError(t, err)
	_, err = g.RequestBatchedDraw(quad(texA))
	require.NoError(t, err)
	assert.Empty(t, b.Draws)

	_, err = g.RequestBatchedDraw(quad(texB))
	require.NoError(t, err)
	require.Len(t, b.Draws, 1)
	assert.Equal(t, texA, b.Draws[0].Texture)
	assert.Equal(t, 12, b.Draws[0].IndexCount)

	// Points use a different topology and format.
	require.NoError(t, g.Points([]math.Vec2{{X: 1, Y: 1}}, nil))
	require.Len(t, b.Draws, 2)
	assert.Equal(t, texB, b.Draws[1].Texture)

	require.NoError(t, g.FlushBatchedDraws())
	require.Len(t, b.Draws, 3)
	assert.False(t, b.Draws[2].Indexed)
	assert.Equal(t, metadata.PrimitivePoints, b.Draws[2].Primitive)
	assert.Equal(t, 1, b.Draws[2].VertexCount)
}

func TestIndexThresholdFlushes(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	cmd := BatchedDrawCommand{
		Formats:     [metadata.MaxVertexBuffers]metadata.CommonFormat{metadata.CommonFormatXYf},
		IndexMode:   metadata.IndexModeQuads,
		VertexCount: 65000,
	}
	_, err := g.RequestBatchedDraw(cmd)
	require.NoError(t, err)
	assert.Empty(t, b.Draws)

	cmd.VertexCount = 1000
	_, err = g.RequestBatchedDraw(cmd)
	require.NoError(t, err)
	require.Len(t, b.Draws, 1)
	assert.Equal(t, 65000/4*6, b.Draws[0].IndexCount)

	require.NoError(t, g.FlushBatchedDraws())
	require.Len(t, b.Draws, 2)
	assert.Equal(t, 1000/4*6, b.Draws[1].IndexCount)
	assert.Equal(t, uint16(0), b.Draws[1].Indices[0])
}

func TestOversizedIndexedRequestFails(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	_, err := g.RequestBatchedDraw(BatchedDrawCommand{
		Formats:     [metadata.MaxVertexBuffers]metadata.CommonFormat{metadata.CommonFormatXYf},
		IndexMode:   metadata.IndexModeQuads,
		VertexCount: 70000,
	})
	assert.ErrorIs(t, err, core.ErrBatchTooLarge)
}

func TestBatchBuffersGrow(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{
		InitialVertexBufferSize: 64,
		InitialIndexBufferSize:  16,
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, g.Rectangle(DrawModeFill, float32(i), 0, 1, 1))
	}
	require.NoError(t, g.FlushBatchedDraws())

	total := 0
	for _, d := range b.Draws {
		total += d.IndexCount
	}
	assert.Equal(t, 60, total)
}

func TestStatsCountPendingBatch(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	assert.Equal(t, 0, g.Stats().DrawCalls)
	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 1, 1))
	assert.Equal(t, 1, g.Stats().DrawCalls)
	require.NoError(t, g.FlushBatchedDraws())
	assert.Equal(t, 1, g.Stats().DrawCalls)
}

func TestIndexPatterns(t *testing.T) {
	assert.Equal(t, 0, indexCount(metadata.IndexModeNone, 12))
	assert.Equal(t, 12, indexCount(metadata.IndexModeQuads, 8))
	assert.Equal(t, 9, indexCount(metadata.IndexModeFan, 5))
	assert.Equal(t, 0, indexCount(metadata.IndexModeFan, 2))

	dst := make([]byte, 9*2)
	fillIndices(metadata.IndexModeFan, 10, 5, dst)
	got := make([]uint16, 9)
	for i := range got {
		got[i] = binary.LittleEndian.Uint16(dst[i*2:])
	}
	assert.Equal(t, []uint16{10, 11, 12, 10, 12, 13, 10, 13, 14}, got)
}

func TestDirectDrawKeepsCallOrder(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 10, 10))
	require.NoError(t, g.Draw(&metadata.DrawCommand{
		Primitive:     metadata.PrimitiveTriangles,
		VertexCount:   3,
		InstanceCount: 1,
	}))
	require.NoError(t, g.FlushBatchedDraws())

	require.Len(t, b.Draws, 2)
	assert.True(t, b.Draws[0].Indexed, "the pending rectangle is submitted first")
	assert.Equal(t, 4, b.Draws[0].VertexCount)
	assert.False(t, b.Draws[1].Indexed)
	assert.Equal(t, 3, b.Draws[1].VertexCount)
}
