package renderer

import (
	"testing"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/headless"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flushOne(t *testing.T, g *Graphics, b *headless.Backend) headless.DrawRecord {
	t.Helper()
	require.NoError(t, g.FlushBatchedDraws())
	require.Len(t, b.Draws, 1)
	return b.Draws[0]
}

func TestCalculateEllipsePoints(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	assert.Equal(t, 14, g.CalculateEllipsePoints(10, 10))
	assert.Equal(t, 8, g.CalculateEllipsePoints(1, 1))

	g.Scale(4, 4)
	assert.Equal(t, 28, g.CalculateEllipsePoints(10, 10))
}

func TestFilledEllipseIsAFan(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	require.NoError(t, g.Circle(DrawModeFill, 50, 50, 10, 0))
	d := flushOne(t, g, b)

	assert.Equal(t, 16, d.VertexCount)
	assert.Equal(t, 14*3, d.IndexCount)
	x, y := readVec2(d.Vertices[0], 0)
	assert.Equal(t, float32(50), x)
	assert.Equal(t, float32(50), y)
	x, y = readVec2(d.Vertices[0], 1)
	assert.Equal(t, float32(60), x)
	assert.Equal(t, float32(50), y)
}

func TestLineEllipseIsClosedPolyline(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	require.NoError(t, g.Ellipse(DrawModeLine, 0, 0, 10, 10, 0))
	d := flushOne(t, g, b)

	assert.Equal(t, 14*4, d.VertexCount)
	assert.Equal(t, 14*6, d.IndexCount)
}

func TestRoundedRectangle(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	require.NoError(t, g.RoundedRectangle(DrawModeFill, 0, 0, 10, 10, 0, 0, 0))
	require.NoError(t, g.RoundedRectangle(DrawModeFill, 0, 0, 10, 10, 2, 2, 0))
	d := flushOne(t, g, b)

	assert.Equal(t, 4+16, d.VertexCount)
	assert.Equal(t, (2+14)*3, d.IndexCount)
}

func TestArcModes(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	require.NoError(t, g.Arc(DrawModeFill, ArcPie, 0, 0, 10, 0, 1, 0))
	require.NoError(t, g.Arc(DrawModeFill, ArcPie, 0, 0, 10, 1, 1, 0))
	require.NoError(t, g.FlushBatchedDraws())
	require.Len(t, b.Draws, 1)
	b.Reset()

	require.NoError(t, g.Arc(DrawModeFill, ArcPie, 0, 0, 10, 0, math.K_PI, 0))
	d := flushOne(t, g, b)
	// 7 segments: center, 8 arc points, the closing center is skipped.
	assert.Equal(t, 9, d.VertexCount)
	b.Reset()

	require.NoError(t, g.Arc(DrawModeFill, ArcOpen, 0, 0, 10, 0, math.K_PI, 0))
	d = flushOne(t, g, b)
	assert.Equal(t, 8, d.VertexCount)
	b.Reset()

	require.NoError(t, g.Arc(DrawModeLine, ArcOpen, 0, 0, 10, 0, math.K_PI, 4))
	d = flushOne(t, g, b)
	assert.Equal(t, 4*4, d.VertexCount)
	b.Reset()

	require.NoError(t, g.Arc(DrawModeFill, ArcPie, 0, 0, 10, 0, 3*math.K_PI, 0))
	d = flushOne(t, g, b)
	assert.Equal(t, 16, d.VertexCount)
}

func TestPolygon(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	err := g.Polygon(DrawModeFill, []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 1}})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	triangle := []math.Vec2{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}
	require.NoError(t, g.Polygon(DrawModeFill, triangle))
	d := flushOne(t, g, b)
	assert.Equal(t, 3, d.VertexCount)
	assert.Equal(t, []uint16{0, 1, 2}, d.Indices)
	assert.Len(t, triangle, 3)
	b.Reset()

	require.NoError(t, g.Polygon(DrawModeLine, triangle))
	d = flushOne(t, g, b)
	assert.Equal(t, 3*4, d.VertexCount)
}

func TestLineQuad(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	g.SetLineWidth(2)
	require.NoError(t, g.Line(0, 0, 10, 0))
	d := flushOne(t, g, b)

	require.Equal(t, 4, d.VertexCount)
	want := [][2]float32{{0, 1}, {0, -1}, {10, -1}, {10, 1}}
	for i, w := range want {
		x, y := readVec2(d.Vertices[0], i)
		assert.InDelta(t, w[0], x, 1e-5, "vertex %d", i)
		assert.InDelta(t, w[1], y, 1e-5, "vertex %d", i)
	}
}

func TestPolylineJoins(t *testing.T) {
	path := []math.Vec2{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}

	miter := tessellatePolyline(path, 1, metadata.LineJoinMiter)
	require.Len(t, miter, 8)
	assert.True(t, miter[2].Compare(math.NewVec2(11, -1), 1e-5))
	assert.True(t, miter[3].Compare(math.NewVec2(9, 1), 1e-5))
	assert.True(t, miter[4].Compare(miter[3], 1e-5))
	assert.True(t, miter[5].Compare(miter[2], 1e-5))

	none := tessellatePolyline(path, 1, metadata.LineJoinNone)
	require.Len(t, none, 8)
	assert.True(t, none[2].Compare(math.NewVec2(10, -1), 1e-5))

	bevel := tessellatePolyline(path, 1, metadata.LineJoinBevel)
	assert.Len(t, bevel, 16)

	// Repeated points collapse and a single point draws nothing.
	assert.Len(t, tessellatePolyline([]math.Vec2{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 1}}, 1, metadata.LineJoinMiter), 4)
	assert.Empty(t, tessellatePolyline([]math.Vec2{{X: 1, Y: 1}, {X: 1, Y: 1}}, 1, metadata.LineJoinMiter))
}

func TestPointsColors(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	g.SetColor(metadata.Color{R: 1, G: 1, B: 1, A: 0.5})
	err := g.Points([]math.Vec2{{X: 1, Y: 2}, {X: 3, Y: 4}}, []metadata.Color{metadata.ColorWhite})
	assert.ErrorIs(t, err, core.ErrBufferTooSmall)

	require.NoError(t, g.Points(
		[]math.Vec2{{X: 1, Y: 2}, {X: 3, Y: 4}},
		[]metadata.Color{{R: 1, A: 1}, {G: 1, A: 1}},
	))
	d := flushOne(t, g, b)

	assert.Equal(t, metadata.PrimitivePoints, d.Primitive)
	assert.False(t, d.Indexed)
	assert.Equal(t, []byte{255, 0, 0, 128, 0, 255, 0, 128}, d.Vertices[1])
	x, y := readVec2(d.Vertices[0], 1)
	assert.Equal(t, float32(3), x)
	assert.Equal(t, float32(4), y)
}
