package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// Glyph locates one character inside a font page, in pixels.
type Glyph struct {
	X, Y, W, H       int
	XOffset, YOffset int
	XAdvance         int
	Page             int
}

// Font is a bitmap font whose pages are already uploaded as textures.
type Font struct {
	Name       string
	Size       int
	LineHeight int
	Base       int
	PageWidth  int
	PageHeight int
	Pages      []metadata.Texture
	Glyphs     map[rune]Glyph
	Kerning    map[[2]rune]int
}

// Width returns the advance of the widest line of text.
func (f *Font) Width(text string) int {
	widest, width := 0, 0
	prev := rune(-1)
	for _, r := range text {
		if r == '\n' {
			widest = max(widest, width)
			width, prev = 0, -1
			continue
		}
		g, ok := f.Glyphs[r]
		if !ok {
			continue
		}
		width += f.Kerning[[2]rune{prev, r}] + g.XAdvance
		prev = r
	}
	return max(widest, width)
}

func (f *Font) Release() {
	for _, p := range f.Pages {
		if p != nil {
			p.Release()
		}
	}
	f.Pages = nil
}

// Print draws text with its top-left corner at x, y using font, or the
// current font when font is nil. Characters missing from the font are
// skipped.
func (g *Graphics) Print(font *Font, text string, x, y float32) error {
	if font == nil {
		font = g.Font()
	}
	if font == nil {
		return fmt.Errorf("%w: no font set", core.ErrInvalidConfig)
	}

	t := g.Transform()
	color := g.Color().ToBytes()
	pw, ph := float32(max(font.PageWidth, 1)), float32(max(font.PageHeight, 1))

	penX, penY := x, y
	prev := rune(-1)
	for _, r := range text {
		if r == '\n' {
			penX = x
			penY += float32(font.LineHeight)
			prev = -1
			continue
		}
		gl, ok := font.Glyphs[r]
		if !ok {
			continue
		}
		penX += float32(font.Kerning[[2]rune{prev, r}])
		prev = r

		if gl.W > 0 && gl.H > 0 {
			if gl.Page < 0 || gl.Page >= len(font.Pages) {
				return fmt.Errorf("%w: glyph %q references page %d", core.ErrInvalidConfig, r, gl.Page)
			}
			data, err := g.RequestBatchedDraw(BatchedDrawCommand{
				Primitive:   metadata.PrimitiveTriangles,
				Formats:     [metadata.MaxVertexBuffers]metadata.CommonFormat{metadata.CommonFormatXYfSTfRGBAub},
				IndexMode:   metadata.IndexModeQuads,
				VertexCount: 4,
				Texture:     font.Pages[gl.Page],
			})
			if err != nil {
				return err
			}

			x0 := penX + float32(gl.XOffset)
			y0 := penY + float32(gl.YOffset)
			x1, y1 := x0+float32(gl.W), y0+float32(gl.H)
			s0, t0 := float32(gl.X)/pw, float32(gl.Y)/ph
			s1, t1 := float32(gl.X+gl.W)/pw, float32(gl.Y+gl.H)/ph

			quad := [4][4]float32{
				{x0, y0, s0, t0},
				{x0, y1, s0, t1},
				{x1, y1, s1, t1},
				{x1, y0, s1, t0},
			}
			writeGlyphQuad(data.Stream[0], t, quad, color)
		}
		penX += float32(gl.XAdvance)
	}
	return nil
}

func writeGlyphQuad(dst []byte, t math.Mat4, quad [4][4]float32, color [4]uint8) {
	stride := metadata.CommonFormatXYfSTfRGBAub.Stride()
	for i, v := range quad {
		off := i * stride
		px, py := t.TransformXY(v[0], v[1])
		putFloat(dst[off:], px)
		putFloat(dst[off+4:], py)
		putFloat(dst[off+8:], v[2])
		putFloat(dst[off+12:], v[3])
		copy(dst[off+16:off+20], color[:])
	}
}
