package loaders

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/spaghettifunk/anima2d/engine/core"
)

func TestToRGBAFlip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 12, 13))
	src.Set(10, 10, color.NRGBA{255, 0, 0, 255})

	out := ToRGBA(src, false)
	assert.Equal(t, image.Rect(0, 0, 2, 3), out.Rect)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, out.RGBAAt(0, 0))

	flipped := ToRGBA(src, true)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, flipped.RGBAAt(0, 2))
	assert.Equal(t, color.RGBA{}, flipped.RGBAAt(0, 0))
}

func TestShaderLoaderRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.vert.spv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var sl ShaderLoader
	_, err := sl.Load(path, nil)
	assert.ErrorIs(t, err, core.ErrInvalidShader)

	require.NoError(t, os.WriteFile(path, []byte{3, 2, 0x23, 7}, 0o644))
	res, err := sl.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "empty.vert", res.Name)
	assert.Equal(t, string([]byte{3, 2, 0x23, 7}), res.Data)
}

func TestParseFontConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go.fontcfg")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nfile=go.ttf\nface = Go Regular\nsize=21\n"), 0o644))

	cfg, err := parseFontConfig(path)
	require.NoError(t, err)
	assert.Equal(t, systemFontConfig{file: "go.ttf", face: "Go Regular", size: 21}, cfg)

	require.NoError(t, os.WriteFile(path, []byte("size=12\n"), 0o644))
	cfg, err = parseFontConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.file)

	require.NoError(t, os.WriteFile(path, []byte("file=a.ttf\nsize=-3\n"), 0o644))
	_, err = parseFontConfig(path)
	assert.ErrorContains(t, err, "invalid size")
}

func TestSystemFontRasterizesASCII(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.ttf"), goregular.TTF, 0o644))
	path := filepath.Join(dir, "go.fontcfg")
	require.NoError(t, os.WriteFile(path, []byte("file=go.ttf\nsize=16\n"), 0o644))

	var fl SystemFontLoader
	res, err := fl.Load(path, &SystemFontParams{Size: 24})
	require.NoError(t, err)
	data := res.Data.(*FontData)

	assert.Equal(t, 24, data.Size)
	assert.Equal(t, systemFontAtlasWidth, data.PageWidth)
	require.Len(t, data.Pages, 1)
	assert.Equal(t, data.PageHeight, data.Pages[0].Image.Rect.Dy())

	a, ok := data.Glyphs['A']
	require.True(t, ok)
	assert.Positive(t, a.W)
	assert.Positive(t, a.H)
	assert.Positive(t, a.XAdvance)
	assert.LessOrEqual(t, a.X+a.W, data.PageWidth)
	assert.LessOrEqual(t, a.Y+a.H, data.PageHeight)

	covered := false
	for y := a.Y; y < a.Y+a.H && !covered; y++ {
		for x := a.X; x < a.X+a.W; x++ {
			if data.Pages[0].Image.RGBAAt(x, y).A > 0 {
				covered = true
				break
			}
		}
	}
	assert.True(t, covered, "glyph A is drawn into its atlas cell")

	_, ok = data.Glyphs[' ']
	assert.True(t, ok)
	_, ok = data.Glyphs['é']
	assert.False(t, ok)

	_, err = fl.Load(path, nil)
	require.NoError(t, err)

	embedded := filepath.Join(dir, "embedded.fontcfg")
	require.NoError(t, os.WriteFile(embedded, []byte("size=12\n"), 0o644))
	res, err = fl.Load(embedded, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Data.(*FontData).Size)

	require.NoError(t, os.WriteFile(path, []byte("file=go.ttf\nface=Nope\n"), 0o644))
	_, err = fl.Load(path, nil)
	assert.ErrorContains(t, err, "not found")
}
