package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima2d/engine/assets"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer"
	"github.com/spaghettifunk/anima2d/engine/renderer/headless"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLibrary(t *testing.T) (*ShaderLibrary, *renderer.Graphics, string) {
	t.Helper()
	dir := t.TempDir()
	for name, src := range map[string]string{
		"sprite.vert.spv": "sprite vertex",
		"sprite.frag.spv": "sprite pixel",
		"blur.vert.spv":   "blur vertex",
		"blur.frag.spv":   "blur pixel",
		"sum.comp.spv":    "sum compute",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}

	am := assets.NewAssetManager(core.AssetsConfig{ShaderDir: dir, FontDir: filepath.Join(dir, "fonts")}, nil)
	require.NoError(t, am.Initialize())
	t.Cleanup(func() { _ = am.Shutdown() })

	g, err := renderer.New(headless.New(headless.Options{Width: 64, Height: 64}), core.DefaultConfig().Graphics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Shutdown() })

	return NewShaderLibrary(g, am), g, dir
}

func TestShaderLibraryLoad(t *testing.T) {
	lib, g, _ := newTestLibrary(t)

	sprite, err := lib.LoadStandard(metadata.StandardShaderDefault, "sprite")
	require.NoError(t, err)
	assert.Same(t, sprite, g.StandardShader(metadata.StandardShaderDefault))

	sum, err := lib.LoadCompute("sum")
	require.NoError(t, err)
	assert.True(t, sum.HasStage(metadata.ShaderStageCompute))
	assert.Same(t, sum, lib.Get("sum"))

	_, err = lib.Load("sprite")
	assert.Error(t, err, "names are unique")

	_, err = lib.Load("missing")
	assert.ErrorIs(t, err, assets.ErrAssetNotFound)
	assert.Nil(t, lib.Get("missing"))
}

func TestShaderLibraryReloadStandard(t *testing.T) {
	lib, g, dir := newTestLibrary(t)
	old, err := lib.LoadStandard(metadata.StandardShaderDefault, "sprite")
	require.NoError(t, err)

	path := filepath.Join(dir, "sprite.frag.spv")
	require.NoError(t, os.WriteFile(path, []byte("sprite pixel v2"), 0o644))

	reloaded, err := lib.Reload(path)
	require.NoError(t, err)
	assert.True(t, reloaded)
	assert.NotSame(t, old, lib.Get("sprite"))
	assert.Same(t, lib.Get("sprite"), g.StandardShader(metadata.StandardShaderDefault))
}

func TestShaderLibraryReloadBoundShader(t *testing.T) {
	lib, g, dir := newTestLibrary(t)
	blur, err := lib.Load("blur")
	require.NoError(t, err)
	require.NoError(t, g.SetShader(blur))

	path := filepath.Join(dir, "blur.vert.spv")
	require.NoError(t, os.WriteFile(path, []byte("blur vertex v2"), 0o644))

	reloaded, err := lib.Reload(path)
	require.NoError(t, err)
	require.True(t, reloaded)
	assert.Same(t, lib.Get("blur"), g.Shader(), "the bound shader follows the reload")
}

func TestShaderLibraryReloadKeepsShaderOnFailure(t *testing.T) {
	lib, _, dir := newTestLibrary(t)
	blur, err := lib.Load("blur")
	require.NoError(t, err)

	path := filepath.Join(dir, "blur.frag.spv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	reloaded, err := lib.Reload(path)
	assert.ErrorIs(t, err, core.ErrInvalidShader)
	assert.False(t, reloaded)
	assert.Same(t, blur, lib.Get("blur"))
}

func TestShaderLibraryReloadIgnoresUnknownPaths(t *testing.T) {
	lib, _, dir := newTestLibrary(t)
	_, err := lib.Load("blur")
	require.NoError(t, err)

	for _, path := range []string{
		filepath.Join(dir, "sprite.vert.spv"), // never loaded
		filepath.Join(dir, "blur.comp.spv"),   // stage not part of blur
		filepath.Join(dir, "notes.txt"),
	} {
		reloaded, err := lib.Reload(path)
		assert.NoError(t, err, path)
		assert.False(t, reloaded, path)
	}
}
