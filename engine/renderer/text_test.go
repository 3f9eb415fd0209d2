package renderer

import (
	"encoding/binary"
	"testing"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/headless"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFont(t *testing.T, g *Graphics) *Font {
	t.Helper()
	page, err := g.NewTexture(metadata.TextureSettings{Format: metadata.PixelFormatRGBA8, Width: 64, Height: 64}, nil)
	require.NoError(t, err)
	return &Font{
		Name:       "test",
		LineHeight: 12,
		Base:       10,
		PageWidth:  64,
		PageHeight: 64,
		Pages:      []metadata.Texture{page},
		Glyphs: map[rune]Glyph{
			'A': {X: 0, Y: 0, W: 8, H: 10, XAdvance: 9},
			'B': {X: 8, Y: 0, W: 8, H: 10, XOffset: 1, YOffset: 2, XAdvance: 9},
			' ': {XAdvance: 4},
		},
		Kerning: map[[2]rune]int{{'A', 'B'}: -1},
	}
}

func glyphVertex(data []byte, i int) [4]float32 {
	var v [4]float32
	off := i * metadata.CommonFormatXYfSTfRGBAub.Stride()
	for c := range v {
		v[c] = math32.Float32frombits(binary.LittleEndian.Uint32(data[off+c*4:]))
	}
	return v
}

func TestPrintBatchesGlyphQuads(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	font := newTestFont(t, g)

	require.NoError(t, g.Print(font, "A B\nAB?", 100, 200))
	require.NoError(t, g.FlushBatchedDraws())
	require.Len(t, b.Draws, 1)

	d := b.Draws[0]
	assert.Same(t, font.Pages[0], d.Texture)
	assert.Equal(t, 4*4, d.VertexCount)
	assert.Equal(t, 4*6, d.IndexCount)

	// 'B' after a space: pen at 100 + 9 + 4, plus its offsets.
	assert.Equal(t, [4]float32{114, 202, 8.0 / 64, 0}, glyphVertex(d.Vertices[0], 4))
	assert.Equal(t, [4]float32{122, 212, 16.0 / 64, 10.0 / 64}, glyphVertex(d.Vertices[0], 6))

	// Second line, kerned 'B'.
	assert.Equal(t, [4]float32{100, 212, 0, 0}, glyphVertex(d.Vertices[0], 8))
	assert.Equal(t, [4]float32{109, 214, 8.0 / 64, 0}, glyphVertex(d.Vertices[0], 12))
}

func TestPrintUsesCurrentFont(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	assert.ErrorIs(t, g.Print(nil, "A", 0, 0), core.ErrInvalidConfig)

	g.SetFont(newTestFont(t, g))
	require.NoError(t, g.Print(nil, "AA", 0, 0))
	require.NoError(t, g.FlushBatchedDraws())
	require.Len(t, b.Draws, 1)
	assert.Equal(t, 8, b.Draws[0].VertexCount)
}

func TestFontWidth(t *testing.T) {
	font := &Font{
		Glyphs:  map[rune]Glyph{'A': {XAdvance: 9}, 'B': {XAdvance: 7}},
		Kerning: map[[2]rune]int{{'A', 'B'}: -2},
	}
	assert.Equal(t, 14, font.Width("AB"))
	assert.Equal(t, 18, font.Width("B\nAA"))
	assert.Equal(t, 0, font.Width(""))
}

func TestDrawTextureQuad(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	tex, err := g.NewTexture(metadata.TextureSettings{Format: metadata.PixelFormatRGBA8, Width: 16, Height: 16}, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, g.DrawTexture(nil, 0, 0, 1, 1), core.ErrInvalidConfig)

	g.Translate(10, 0)
	require.NoError(t, g.DrawTexture(tex, 0, 5, 32, 16))
	require.NoError(t, g.DrawTexture(tex, 40, 5, 32, 16))
	require.NoError(t, g.FlushBatchedDraws())
	require.Len(t, b.Draws, 1, "quads sharing a texture batch together")

	d := b.Draws[0]
	assert.Same(t, tex, d.Texture)
	assert.Equal(t, 8, d.VertexCount)
	assert.Equal(t, [4]float32{10, 5, 0, 0}, glyphVertex(d.Vertices[0], 0))
	assert.Equal(t, [4]float32{42, 21, 1, 1}, glyphVertex(d.Vertices[0], 2))
	assert.Equal(t, [4]float32{82, 5, 1, 0}, glyphVertex(d.Vertices[0], 7))
}
