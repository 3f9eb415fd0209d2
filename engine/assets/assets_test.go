package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/anima2d/engine/assets/loaders"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer"
	"github.com/spaghettifunk/anima2d/engine/renderer/headless"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFNT = `info face="Test" size=-16 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=18 base=14 scaleW=32 scaleH=32 pages=1 packed=0 alphaChnl=0 redChnl=0 greenChnl=0 blueChnl=0
page id=0 file="test_0.png"
chars count=2
char id=65 x=1 y=2 width=8 height=10 xoffset=0 yoffset=4 xadvance=9 page=0 chnl=15
char id=66 x=10 y=2 width=7 height=10 xoffset=1 yoffset=4 xadvance=8 page=0 chnl=15
kernings count=1
kerning first=65 second=66 amount=-1
`

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newTestManager(t *testing.T, watch bool) (*AssetManager, *core.EventBus, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "shaders"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "fonts"), 0o755))
	writeFile(t, filepath.Join(root, "shaders", "sprite.vert.spv"), []byte("vertex"))
	writeFile(t, filepath.Join(root, "shaders", "sprite.frag.spv"), []byte("pixel"))
	writeFile(t, filepath.Join(root, "shaders", "README.md"), []byte("not an asset"))

	bus := core.NewEventBus()
	am := NewAssetManager(core.AssetsConfig{
		ShaderDir: filepath.Join(root, "shaders"),
		FontDir:   filepath.Join(root, "fonts"),
		Watch:     watch,
	}, bus)
	t.Cleanup(func() { _ = am.Shutdown() })
	return am, bus, root
}

func newTestGraphics(t *testing.T) *renderer.Graphics {
	t.Helper()
	cfg := core.DefaultConfig().Graphics
	g, err := renderer.New(headless.New(headless.Options{}), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Shutdown() })
	return g
}

func TestDetermineAssetType(t *testing.T) {
	tests := []struct {
		path string
		want loaders.ResourceType
	}{
		{"a/b.vert.spv", loaders.ResourceTypeShader},
		{"page.PNG", loaders.ResourceTypeImage},
		{"page.tiff", loaders.ResourceTypeImage},
		{"mono.fnt", loaders.ResourceTypeBitmapFont},
		{"noto.fontcfg", loaders.ResourceTypeSystemFont},
		{"README.md", loaders.ResourceTypeNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, determineAssetType(tt.path), tt.path)
	}
}

func TestShaderStageOf(t *testing.T) {
	name, stage, ok := ShaderStageOf("assets/shaders/sprite.frag.spv")
	require.True(t, ok)
	assert.Equal(t, "sprite", name)
	assert.Equal(t, metadata.ShaderStagePixel, stage)

	name, stage, ok = ShaderStageOf("blur.comp.spv")
	require.True(t, ok)
	assert.Equal(t, "blur", name)
	assert.Equal(t, metadata.ShaderStageCompute, stage)

	_, _, ok = ShaderStageOf("sprite.geom.spv")
	assert.False(t, ok)
	_, _, ok = ShaderStageOf("sprite.vert")
	assert.False(t, ok)
}

func TestInitializeIndexesShaders(t *testing.T) {
	am, _, root := newTestManager(t, false)
	require.NoError(t, am.Initialize())

	assert.Equal(t, []string{
		filepath.Join(root, "shaders", "sprite.frag.spv"),
		filepath.Join(root, "shaders", "sprite.vert.spv"),
	}, am.Assets())

	src, err := am.ShaderSource("sprite", metadata.ShaderStageVertex)
	require.NoError(t, err)
	assert.Equal(t, "vertex", src)

	info, ok := am.Lookup(am.ShaderPath("sprite", metadata.ShaderStageVertex))
	require.True(t, ok)
	assert.False(t, info.LastLoaded.IsZero())

	_, err = am.ShaderSource("sprite", metadata.ShaderStageCompute)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestMissingDirectoriesAreSkipped(t *testing.T) {
	am := NewAssetManager(core.AssetsConfig{
		ShaderDir: filepath.Join(t.TempDir(), "nope"),
		FontDir:   filepath.Join(t.TempDir(), "nope"),
	}, nil)
	require.NoError(t, am.Initialize())
	assert.Empty(t, am.Assets())
	assert.NoError(t, am.Shutdown())
	assert.NoError(t, am.Shutdown())
}

func TestWatcherFiresAssetChanged(t *testing.T) {
	am, bus, root := newTestManager(t, true)
	require.NoError(t, am.Initialize())

	var events []core.AssetEvent
	bus.Register(core.EVENT_CODE_ASSET_CHANGED, func(ctx core.EventContext) bool {
		events = append(events, *ctx.Data.(*core.AssetEvent))
		return true
	})

	path := filepath.Join(root, "shaders", "blur.comp.spv")
	writeFile(t, path, []byte("compute"))
	require.Eventually(t, func() bool {
		bus.Dispatch()
		for _, e := range events {
			if e.Path == path && !e.Removed {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	_, ok := am.Lookup(path)
	assert.True(t, ok)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		bus.Dispatch()
		for _, e := range events {
			if e.Path == path && e.Removed {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	_, ok = am.Lookup(path)
	assert.False(t, ok)
}

func TestLoadBitmapFont(t *testing.T) {
	am, _, root := newTestManager(t, false)
	writeFile(t, filepath.Join(root, "fonts", "test.fnt"), []byte(testFNT))
	writePNG(t, filepath.Join(root, "fonts", "test_0.png"), 32, 32)
	require.NoError(t, am.Initialize())

	g := newTestGraphics(t)
	font, err := am.LoadFont(g, "test", nil)
	require.NoError(t, err)
	defer font.Release()

	assert.Equal(t, "test", font.Name)
	assert.Equal(t, 16, font.Size)
	assert.Equal(t, 18, font.LineHeight)
	assert.Equal(t, 14, font.Base)
	require.Len(t, font.Pages, 1)
	assert.Equal(t, 32, font.Pages[0].PixelWidth(0))
	assert.Equal(t, metadata.PixelFormatRGBA8, font.Pages[0].Format())

	assert.Equal(t, renderer.Glyph{X: 1, Y: 2, W: 8, H: 10, YOffset: 4, XAdvance: 9}, font.Glyphs['A'])
	assert.Equal(t, -1, font.Kerning[[2]rune{'A', 'B'}])
	assert.Equal(t, 9+8-1, font.Width("AB"))
}

func TestLoadFontNotFound(t *testing.T) {
	am, _, _ := newTestManager(t, false)
	require.NoError(t, am.Initialize())
	_, err := am.LoadFont(newTestGraphics(t), "missing", nil)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestLoadTexture(t *testing.T) {
	am, _, root := newTestManager(t, false)
	path := filepath.Join(root, "fonts", "logo.png")
	writePNG(t, path, 4, 2)
	require.NoError(t, am.Initialize())

	tex, err := am.LoadTexture(newTestGraphics(t), path, true)
	require.NoError(t, err)
	assert.Equal(t, 4, tex.PixelWidth(0))
	assert.Equal(t, 2, tex.PixelHeight(0))
	assert.Contains(t, tex.DebugName(), "logo.png-")
}
