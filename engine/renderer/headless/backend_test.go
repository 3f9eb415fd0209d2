package headless

import (
	"encoding/binary"
	"testing"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamBufferRegions(t *testing.T) {
	b := New(Options{})
	sb, err := b.NewStreamBuffer(metadata.BufferUsageVertex, 64)
	require.NoError(t, err)

	region := sb.Map(16)
	assert.Len(t, region, 64)
	copy(region, []byte{1, 2, 3, 4})
	assert.Equal(t, 0, sb.Unmap(4))
	sb.MarkUsed(4)
	assert.Equal(t, 60, sb.UsableSize())

	region = sb.Map(8)
	assert.Len(t, region, 60)
	assert.Equal(t, 4, sb.Unmap(8))
	sb.MarkUsed(8)

	sb.NextFrame()
	assert.Equal(t, 64, sb.UsableSize())
}

func TestDrawIndexedRecordsIndicesAndVertices(t *testing.T) {
	b := New(Options{})
	vb, err := b.NewStreamBuffer(metadata.BufferUsageVertex, 256)
	require.NoError(t, err)
	ib, err := b.NewStreamBuffer(metadata.BufferUsageIndex, 64)
	require.NoError(t, err)

	copy(vb.Map(32), make([]byte, 32))
	idx := ib.Map(12)
	for i, v := range []uint16{0, 1, 2, 0, 2, 3} {
		binary.LittleEndian.PutUint16(idx[i*2:], v)
	}

	var attrs metadata.VertexAttributes
	attrs.SetCommonFormat(metadata.CommonFormatXYf, 0)
	cmd := &metadata.DrawIndexedCommand{
		Primitive:   metadata.PrimitiveTriangles,
		Attributes:  attrs,
		IndexCount:  6,
		IndexType:   metadata.IndexDataUint16,
		IndexBuffer: ib,
	}
	cmd.Buffers.Buffers[0] = vb
	require.NoError(t, b.DrawIndexed(cmd))

	require.Len(t, b.Draws, 1)
	rec := b.Draws[0]
	assert.True(t, rec.Indexed)
	assert.Equal(t, []uint16{0, 1, 2, 0, 2, 3}, rec.Indices)
	assert.Equal(t, 4, rec.VertexCount)
	assert.Len(t, rec.Vertices[0], 4*8)
}

func TestFenceCompletion(t *testing.T) {
	b := New(Options{DeferCompletion: true})
	f, err := b.NewFence()
	require.NoError(t, err)

	require.NoError(t, b.Submit(f))
	assert.False(t, f.Signaled())
	require.NoError(t, f.Wait(0))
	assert.True(t, f.Signaled())
	require.NoError(t, f.Reset())
	assert.False(t, f.Signaled())

	eager := New(Options{})
	g, _ := eager.NewFence()
	require.NoError(t, eager.Submit(g))
	assert.True(t, g.Signaled())
}

type queueScheduler struct {
	readbacks []func()
}

func (q *queueScheduler) Frame() uint64           { return 0 }
func (q *queueScheduler) QueueCleanup(fn func())  { fn() }
func (q *queueScheduler) QueueReadback(fn func()) { q.readbacks = append(q.readbacks, fn) }

func TestReadbackCompletesWhenFrameRetires(t *testing.T) {
	b := New(Options{Width: 2, Height: 2})
	sched := &queueScheduler{}
	require.NoError(t, b.BeginFrame(sched))

	red := metadata.Color{R: 1, A: 1}
	require.NoError(t, b.Clear(metadata.ClearValues{Colors: []*metadata.Color{&red}}))

	rb, err := b.CaptureBackbuffer()
	require.NoError(t, err)
	assert.False(t, rb.Update())

	for _, fn := range sched.readbacks {
		fn()
	}
	assert.True(t, rb.Update())
	assert.Equal(t, []byte{255, 0, 0, 255}, rb.Data()[:4])
	assert.Len(t, rb.Data(), 16)
}

func TestCapabilitiesOptions(t *testing.T) {
	b := New(Options{
		DisabledFeatures:   []metadata.Feature{metadata.FeatureMultiRenderTargetFormats},
		UnsupportedFormats: []metadata.PixelFormat{metadata.PixelFormatDepth24},
	})
	caps := b.Capabilities()
	assert.False(t, caps.Supports(metadata.FeatureMultiRenderTargetFormats))
	assert.True(t, caps.Supports(metadata.FeatureCopyBuffer))
	assert.False(t, caps.IsRenderTargetFormatSupported(metadata.PixelFormatDepth24))
	assert.True(t, caps.IsRenderTargetFormatSupported(metadata.PixelFormatDepth16))
	assert.Equal(t, float64(metadata.LimitRenderTargetsMax), caps.Limit(metadata.LimitRenderTargets))
}

func TestShaderStages(t *testing.T) {
	b := New(Options{})
	vs, err := b.NewShaderStage(metadata.ShaderStageVertex, "void main() {}")
	require.NoError(t, err)
	cs, err := b.NewShaderStage(metadata.ShaderStageCompute, "void main() {}")
	require.NoError(t, err)
	assert.NotEqual(t, vs.Key(), cs.Key())

	_, err = b.NewShader([]metadata.ShaderStage{vs, cs})
	assert.ErrorIs(t, err, core.ErrObjectCreation)

	compute, err := b.NewShader([]metadata.ShaderStage{cs})
	require.NoError(t, err)
	assert.True(t, compute.HasStage(metadata.ShaderStageCompute))
	assert.Equal(t, [3]int{1, 1, 1}, compute.ThreadgroupSize())

	_, err = b.NewShaderStage(metadata.ShaderStagePixel, "")
	assert.ErrorIs(t, err, core.ErrObjectCreation)
}

func TestTextureMipDimensions(t *testing.T) {
	b := New(Options{})
	tex, err := b.NewTexture(metadata.TextureSettings{
		Type: metadata.TextureTypeVolume, Format: metadata.PixelFormatRGBA8,
		Width: 64, Height: 16, Layers: 8, MipmapCount: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, tex.PixelWidth(3))
	assert.Equal(t, 2, tex.PixelHeight(3))
	assert.Equal(t, 1, tex.SliceCount(3))
	assert.Equal(t, 4, tex.SliceCount(1))
}
