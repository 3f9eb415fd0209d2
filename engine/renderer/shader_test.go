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

func TestShaderStagesAreCachedBySource(t *testing.T) {
	g, _ := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})

	a, err := g.NewShaderStage(metadata.ShaderStageVertex, "void main() {}")
	require.NoError(t, err)
	b, err := g.NewShaderStage(metadata.ShaderStageVertex, "void main() {}")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := g.NewShaderStage(metadata.ShaderStagePixel, "void main() {}")
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	assert.True(t, g.InvalidateShaderStage(metadata.ShaderStageVertex, "void main() {}"))
	assert.False(t, g.InvalidateShaderStage(metadata.ShaderStageVertex, "void main() {}"))

	d, err := g.NewShaderStage(metadata.ShaderStageVertex, "void main() {}")
	require.NoError(t, err)
	assert.NotSame(t, a, d)

	presentFrames(t, g, 2)
	assert.True(t, a.(*headless.ShaderStage).Released)
}

func TestStandardShaderUsedForBatches(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	def, err := g.NewShader("default-vs", "default-ps")
	require.NoError(t, err)
	points, err := g.NewShader("points-vs", "points-ps")
	require.NoError(t, err)

	require.NoError(t, g.SetStandardShader(metadata.StandardShaderDefault, def))
	require.NoError(t, g.SetStandardShader(metadata.StandardShaderPoints, points))
	assert.ErrorIs(t, g.SetStandardShader(metadata.StandardShaderNone, def), core.ErrInvalidShader)

	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 1, 1))
	require.NoError(t, g.Points(nil, nil))
	require.NoError(t, g.Points([]math.Vec2{{X: 1, Y: 1}}, nil))
	require.NoError(t, g.FlushBatchedDraws())

	require.Len(t, b.Draws, 2)
	assert.Same(t, def, b.Draws[0].Shader)
	assert.Same(t, points, b.Draws[1].Shader)
	assert.Equal(t, 2, g.Stats().ShaderSwitches)
}

func TestReplacingStandardShaderReattaches(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	first, err := g.NewShader("vs", "ps-1")
	require.NoError(t, err)
	second, err := g.NewShader("vs", "ps-2")
	require.NoError(t, err)

	require.NoError(t, g.SetStandardShader(metadata.StandardShaderDefault, first))
	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 1, 1))
	require.NoError(t, g.SetStandardShader(metadata.StandardShaderDefault, second))

	require.Len(t, b.Draws, 1)
	assert.Same(t, first, b.Draws[0].Shader)
	assert.Same(t, second, b.Shader)
	assert.False(t, first.(*headless.Shader).Released)

	presentFrames(t, g, 2)
	assert.True(t, first.(*headless.Shader).Released)
}

func TestUserShaderOverridesStandardShader(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	def, err := g.NewShader("default-vs", "default-ps")
	require.NoError(t, err)
	custom, err := g.NewShader("custom-vs", "custom-ps")
	require.NoError(t, err)
	require.NoError(t, g.SetStandardShader(metadata.StandardShaderDefault, def))

	require.NoError(t, g.SetShader(custom))
	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 1, 1))
	require.NoError(t, g.SetShader(nil))
	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 1, 1))
	require.NoError(t, g.FlushBatchedDraws())

	require.Len(t, b.Draws, 2)
	assert.Same(t, custom, b.Draws[0].Shader)
	assert.Same(t, def, b.Draws[1].Shader)
}

func TestDispatchThreadgroups(t *testing.T) {
	g, b := newTestGraphics(t, headless.Options{}, core.GraphicsConfig{})
	def, err := g.NewShader("vs", "ps")
	require.NoError(t, err)
	require.NoError(t, g.SetShader(def))
	cs, err := g.NewComputeShader("compute")
	require.NoError(t, err)

	assert.Equal(t, [3]int{1, 1, 1}, cs.ThreadgroupSize())
	assert.ErrorIs(t, g.DispatchThreadgroups(def, 1, 1, 1), core.ErrNotComputeShader)
	assert.ErrorIs(t, g.DispatchThreadgroups(cs, 0, 1, 1), core.ErrInvalidThreadgroups)
	assert.ErrorIs(t, g.DispatchThreadgroups(cs, 70000, 1, 1), core.ErrInvalidThreadgroups)

	require.NoError(t, g.Rectangle(DrawModeFill, 0, 0, 1, 1))
	require.NoError(t, g.DispatchThreadgroups(cs, 8, 4, 1))

	assert.Len(t, b.Draws, 1)
	require.Len(t, b.Dispatches, 1)
	assert.Equal(t, headless.DispatchRecord{Shader: cs, X: 8, Y: 4, Z: 1}, b.Dispatches[0])
	assert.Same(t, def, b.Shader)
}
