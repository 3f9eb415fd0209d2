package renderer

import (
	"testing"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/headless"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func presentFrames(t *testing.T, g *Graphics, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, g.Present())
	}
}

func TestTemporaryTextureReusedAfterRelease(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	a, err := g.GetTemporaryTexture(metadata.PixelFormatRGBA8, 128, 128, 1)
	require.NoError(t, err)
	busy, err := g.GetTemporaryTexture(metadata.PixelFormatRGBA8, 128, 128, 1)
	require.NoError(t, err)
	assert.NotSame(t, a, busy)

	g.ReleaseTemporaryTexture(a)
	presentFrames(t, g, 2)

	again, err := g.GetTemporaryTexture(metadata.PixelFormatRGBA8, 128, 128, 1)
	require.NoError(t, err)
	assert.Same(t, a, again)

	other, err := g.GetTemporaryTexture(metadata.PixelFormatRGBA8, 128, 128, 4)
	require.NoError(t, err)
	assert.NotSame(t, a, other)

	textures, _ := g.TemporaryResourceCount()
	assert.Equal(t, 3, textures)
}

func TestTemporaryTextureEvictedAfterThreshold(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{TemporaryEvictionFrames: 3})

	a, err := g.GetTemporaryTexture(metadata.PixelFormatDepth24, 64, 64, 1)
	require.NoError(t, err)
	g.ReleaseTemporaryTexture(a)

	presentFrames(t, g, 3)
	textures, _ := g.TemporaryResourceCount()
	assert.Equal(t, 1, textures)

	presentFrames(t, g, 1)
	textures, _ = g.TemporaryResourceCount()
	assert.Equal(t, 0, textures)
	assert.False(t, a.(*headless.Texture).Released, "destruction waits for the frame to retire")

	presentFrames(t, g, 1)
	assert.True(t, a.(*headless.Texture).Released)

	fresh, err := g.GetTemporaryTexture(metadata.PixelFormatDepth24, 64, 64, 1)
	require.NoError(t, err)
	assert.NotSame(t, a, fresh)
}

func TestClaimedTemporaryTextureNeverEvicted(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{TemporaryEvictionFrames: 1})

	a, err := g.GetTemporaryTexture(metadata.PixelFormatRGBA8, 16, 16, 1)
	require.NoError(t, err)
	presentFrames(t, g, 5)

	textures, _ := g.TemporaryResourceCount()
	assert.Equal(t, 1, textures)
	assert.False(t, a.(*headless.Texture).Released)
}

func TestTemporaryBufferPool(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{TemporaryEvictionFrames: 2})

	a, err := g.GetTemporaryBuffer(256, metadata.BufferUsageCopyDest, metadata.DataUsageReadback)
	require.NoError(t, err)
	g.ReleaseTemporaryBuffer(a)

	b, err := g.GetTemporaryBuffer(256, metadata.BufferUsageCopyDest, metadata.DataUsageReadback)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := g.GetTemporaryBuffer(512, metadata.BufferUsageCopyDest, metadata.DataUsageReadback)
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	g.ReleaseTemporaryBuffer(b)
	g.ReleaseTemporaryBuffer(c)
	presentFrames(t, g, 3)
	_, buffers := g.TemporaryResourceCount()
	assert.Equal(t, 0, buffers)
}

func TestClearTemporaryResourcesReleasesImmediately(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	a, err := g.GetTemporaryTexture(metadata.PixelFormatRGBA8, 16, 16, 1)
	require.NoError(t, err)
	g.ClearTemporaryResources()

	assert.True(t, a.(*headless.Texture).Released)
	textures, buffers := g.TemporaryResourceCount()
	assert.Zero(t, textures)
	assert.Zero(t, buffers)
}
