package objcache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

type handle struct {
	serial int
}

type queueDeferrer struct {
	pending []func()
}

func (d *queueDeferrer) QueueCleanup(fn func()) {
	d.pending = append(d.pending, fn)
}

func (d *queueDeferrer) run() {
	for _, fn := range d.pending {
		fn()
	}
	d.pending = nil
}

func newPipelineCache(evictAfter int, deferrer Deferrer) (*Cache[GraphicsPipelineConfiguration, *handle], *int, *[]*handle) {
	created := 0
	var destroyed []*handle
	c := New(Config[GraphicsPipelineConfiguration, *handle]{
		Name: "pipeline",
		Create: func(GraphicsPipelineConfiguration) (*handle, error) {
			created++
			return &handle{serial: created}, nil
		},
		Destroy:    func(h *handle) { destroyed = append(destroyed, h) },
		EvictAfter: evictAfter,
	}, deferrer)
	return c, &created, &destroyed
}

func basePipeline() GraphicsPipelineConfiguration {
	cfg := GraphicsPipelineConfiguration{
		RenderPass:           core.ObjectID(7),
		Shader:               core.ObjectID(9),
		Blend:                metadata.ComputeBlendState(metadata.BlendModeAlpha, metadata.BlendAlphaMultiply),
		ColorMask:            metadata.ColorMaskAll,
		MSAA:                 1,
		ColorAttachmentCount: 1,
		Primitive:            metadata.PrimitiveTriangles,
		Dynamic: DynamicState{
			Cull:           metadata.CullNone,
			StencilCompare: metadata.CompareAlways,
			Depth:          metadata.DepthState{Compare: metadata.CompareAlways},
		},
	}
	cfg.VertexAttributes.SetCommonFormat(metadata.CommonFormatXYf, 0)
	cfg.VertexAttributes.SetCommonFormat(metadata.CommonFormatRGBAub, 1)
	return cfg
}

func TestGetIsIdempotent(t *testing.T) {
	c, created, _ := newPipelineCache(0, nil)

	a, idA, err := c.Get(basePipeline())
	require.NoError(t, err)
	b, idB, err := c.Get(basePipeline())
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, idA, idB)
	assert.Equal(t, 1, *created)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Entries: 1}, c.Stats())
}

func TestSingleFieldChangeBuildsNewObject(t *testing.T) {
	mutations := map[string]func(*GraphicsPipelineConfiguration){
		"wireframe":    func(c *GraphicsPipelineConfiguration) { c.Wireframe = true },
		"color mask":   func(c *GraphicsPipelineConfiguration) { c.ColorMask.A = false },
		"primitive":    func(c *GraphicsPipelineConfiguration) { c.Primitive = metadata.PrimitivePoints },
		"msaa":         func(c *GraphicsPipelineConfiguration) { c.MSAA = 4 },
		"blend":        func(c *GraphicsPipelineConfiguration) { c.Blend.DstFactorA = metadata.BlendFactorZero },
		"cull":         func(c *GraphicsPipelineConfiguration) { c.Dynamic.Cull = metadata.CullBack },
		"depth write":  func(c *GraphicsPipelineConfiguration) { c.Dynamic.Depth.Write = true },
		"shader":       func(c *GraphicsPipelineConfiguration) { c.Shader = core.ObjectID(10) },
		"vertex input": func(c *GraphicsPipelineConfiguration) { c.VertexAttributes.Strides[1] = 8 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c, created, _ := newPipelineCache(0, nil)
			base, baseID, err := c.Get(basePipeline())
			require.NoError(t, err)

			changed := basePipeline()
			mutate(&changed)
			other, otherID, err := c.Get(changed)
			require.NoError(t, err)

			assert.NotSame(t, base, other)
			assert.NotEqual(t, baseID, otherID)
			assert.Equal(t, 2, *created)
			assert.Equal(t, 2, c.Len())
		})
	}
}

func TestHashIsStableAndFieldSensitive(t *testing.T) {
	a := RenderPassConfiguration{ColorAttachmentCount: 1, HasDepth: true}
	a.ColorAttachments[0] = RenderPassAttachment{Format: metadata.PixelFormatRGBA8, MSAA: 1}
	a.DepthAttachment = RenderPassAttachment{Format: metadata.PixelFormatDepth24Stencil8, MSAA: 1, Discard: true}
	b := a
	assert.Equal(t, a.Hash(), b.Hash())

	b.ColorAttachments[0].Discard = true
	assert.NotEqual(t, a.Hash(), b.Hash())

	fa := FramebufferConfiguration{ColorViewCount: 1, Width: 256, Height: 256, RenderPass: 3}
	fa.ColorViews[0] = 11
	fb := fa
	fb.Width = 128
	assert.NotEqual(t, fa.Hash(), fb.Hash())

	sa := SamplerConfiguration{State: metadata.DefaultSamplerState()}
	sb := sa
	sb.State.LodBias = 0.5
	assert.NotEqual(t, sa.Hash(), sb.Hash())
}

type collidingKey struct {
	v int
}

func (collidingKey) Hash() uint32 { return 42 }

func TestBucketCollisionsUseExactEquality(t *testing.T) {
	c := New(Config[collidingKey, int]{
		Name:   "collide",
		Create: func(k collidingKey) (int, error) { return k.v * 10, nil },
	}, nil)

	for i := 0; i < 3; i++ {
		v, _, err := c.Get(collidingKey{v: i})
		require.NoError(t, err)
		assert.Equal(t, i*10, v)
	}
	v, _, err := c.Get(collidingKey{v: 1})
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 3, c.Len())
}

func TestSweepEvictsUnusedAndDefersDestroy(t *testing.T) {
	d := &queueDeferrer{}
	c, _, destroyed := newPipelineCache(2, d)

	kept := basePipeline()
	stale := basePipeline()
	stale.Wireframe = true
	_, _, err := c.Get(kept)
	require.NoError(t, err)
	_, _, err = c.Get(stale)
	require.NoError(t, err)

	assert.Equal(t, 0, c.Sweep())

	_, _, _ = c.Get(kept)
	assert.Equal(t, 0, c.Sweep())

	_, _, _ = c.Get(kept)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	assert.Empty(t, *destroyed, "destruction waits for the frame to retire")

	d.run()
	require.Len(t, *destroyed, 1)
	assert.Equal(t, 2, (*destroyed)[0].serial)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestEvictPredicate(t *testing.T) {
	c, _, destroyed := newPipelineCache(0, nil)
	a := basePipeline()
	b := basePipeline()
	b.Shader = 99
	_, _, _ = c.Get(a)
	_, _, _ = c.Get(b)

	n := c.Evict(func(k GraphicsPipelineConfiguration) bool { return k.Shader == 99 })
	assert.Equal(t, 1, n)
	assert.Len(t, *destroyed, 1)
	assert.Equal(t, 1, c.Len())
}

func TestCreateErrorNamesConfiguration(t *testing.T) {
	boom := errors.New("unsupported format")
	c := New(Config[RenderPassConfiguration, int]{
		Name:   "render pass",
		Create: func(RenderPassConfiguration) (int, error) { return 0, boom },
	}, nil)

	_, id, err := c.Get(RenderPassConfiguration{ColorAttachmentCount: 1})
	assert.ErrorIs(t, err, core.ErrObjectCreation)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "render pass")
	assert.False(t, id.Valid())
	assert.Equal(t, 0, c.Len())
}

func TestClearDestroysImmediately(t *testing.T) {
	d := &queueDeferrer{}
	c, _, destroyed := newPipelineCache(1, d)
	_, _, _ = c.Get(basePipeline())
	c.Clear()
	assert.Len(t, *destroyed, 1)
	assert.Empty(t, d.pending)
	assert.Equal(t, 0, c.Len())
}

func TestEvictClearsDroppedBucketSlots(t *testing.T) {
	c := New(Config[collidingKey, int]{
		Name:   "collide",
		Create: func(k collidingKey) (int, error) { return k.v, nil },
	}, nil)
	for i := 0; i < 3; i++ {
		_, _, err := c.Get(collidingKey{v: i})
		require.NoError(t, err)
	}
	full := c.buckets[42]
	require.Len(t, full, 3)

	n := c.Evict(func(k collidingKey) bool { return k.v != 0 })
	assert.Equal(t, 2, n)
	require.Len(t, c.buckets[42], 1)

	backing := full[:3]
	assert.NotNil(t, backing[0])
	assert.Nil(t, backing[1], "evicted entries are not reachable from the bucket")
	assert.Nil(t, backing[2])
}
