package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/spaghettifunk/anima2d/engine/renderer/objcache"
)

const (
	defaultFramesInFlight      = 2
	defaultCacheEvictionFrames = 60
)

type Options struct {
	Width  int
	Height int
	// FramesInFlight must match the frame lifecycle driving the backend:
	// command buffers and stream buffer regions are indexed by frame.
	FramesInFlight int
	// CacheEvictionFrames is how many consecutive unused frames a
	// framebuffer or pipeline survives in its cache.
	CacheEvictionFrames int
	Validation          bool
	PreferDiscreteGPU   bool
	AppName             string
	// InstanceExtensions are required by the windowing system, if any.
	InstanceExtensions []string
	// GetInstanceProcAddr is the loader entry point. When nil the system
	// Vulkan library is loaded.
	GetInstanceProcAddr unsafe.Pointer
}

type drawState struct {
	shader     *Shader
	color      metadata.Color
	scissor    *metadata.Rect
	stencil    metadata.StencilState
	depth      metadata.DepthState
	winding    metadata.Winding
	colorMask  metadata.ColorChannelMask
	blend      metadata.BlendState
	pointSize  float32
	wireframe  bool
	sampler    metadata.SamplerState
	transform  math.Mat4
	projection math.Mat4
}

type attachment struct {
	texture *Texture
	mip     int
	slice   int
}

// target is the attachment set draws are recorded into.
type target struct {
	colors []attachment
	depth  attachment
	width  int
	height int
	msaa   int
}

type pass struct {
	active     bool
	renderPass vk.RenderPass
	id         core.ObjectID
}

// Backend renders offscreen: the backbuffer is a color plus depth/stencil
// texture pair that screenshots read back.
type Backend struct {
	opts    Options
	context *Context
	caps    metadata.Capabilities
	flags   metadata.DeviceProjectionFlags

	scheduler      metadata.FrameScheduler
	commandBuffers []*CommandBuffer
	cb             *CommandBuffer

	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	descriptors    *DescriptorAllocator

	renderPasses *objcache.Cache[objcache.RenderPassConfiguration, vk.RenderPass]
	framebuffers *objcache.Cache[objcache.FramebufferConfiguration, vk.Framebuffer]
	pipelines    *objcache.Cache[objcache.GraphicsPipelineConfiguration, vk.Pipeline]
	samplers     *objcache.Cache[objcache.SamplerConfiguration, vk.Sampler]

	// Cache keys reference render passes and image views by ObjectID.
	passHandles map[core.ObjectID]vk.RenderPass
	views       map[core.ObjectID]vk.ImageView

	width, height   int
	backbufferColor *Texture
	backbufferDepth *Texture
	white           *Texture
	defaults        *deviceBuffer

	state        drawState
	target       target
	pass         pass
	dynamicDirty bool
	shutdown     bool
}

// cacheDeferrer routes cache evictions through the frame scheduler.
type cacheDeferrer struct{ b *Backend }

func (d cacheDeferrer) QueueCleanup(fn func()) { d.b.deferDestroy(fn) }

func New(opts Options) (*Backend, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: backbuffer %dx%d", core.ErrInvalidConfig, opts.Width, opts.Height)
	}
	if opts.FramesInFlight <= 0 {
		opts.FramesInFlight = defaultFramesInFlight
	}
	if opts.CacheEvictionFrames <= 0 {
		opts.CacheEvictionFrames = defaultCacheEvictionFrames
	}

	context, err := newContext(opts)
	if err != nil {
		return nil, err
	}
	b := &Backend{
		opts:        opts,
		context:     context,
		flags:       metadata.DeviceProjectionFlipY | metadata.DeviceProjectionZ01,
		passHandles: make(map[core.ObjectID]vk.RenderPass),
		views:       make(map[core.ObjectID]vk.ImageView),
	}
	fail := func(err error) (*Backend, error) {
		core.LogError("failed to create vulkan backend: %s", err)
		b.destroy()
		return nil, err
	}

	if err := DeviceCreate(context, PhysicalDeviceRequirements{
		Graphics:    true,
		Compute:     true,
		DiscreteGPU: opts.PreferDiscreteGPU,
	}); err != nil {
		return fail(err)
	}
	b.caps = context.Device.capabilities()

	b.setLayout, b.pipelineLayout, err = PipelineLayoutCreate(context)
	if err != nil {
		return fail(err)
	}
	b.descriptors = NewDescriptorAllocator(context, b.setLayout)
	b.createCaches()

	for range opts.FramesInFlight {
		cb, err := NewCommandBuffer(context, context.Device.GraphicsCommandPool)
		if err != nil {
			return fail(err)
		}
		b.commandBuffers = append(b.commandBuffers, cb)
	}

	b.defaults, err = newDeviceBuffer(context, len(defaultAttributeData), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return fail(err)
	}
	copy(b.defaults.data, defaultAttributeData)

	b.white, err = newTexture(b, metadata.TextureSettings{
		Format:    metadata.PixelFormatRGBA8,
		Width:     1,
		Height:    1,
		DebugName: "white",
	})
	if err != nil {
		return fail(err)
	}
	if err := b.upload(b.white, []byte{0xff, 0xff, 0xff, 0xff}); err != nil {
		return fail(err)
	}
	if err := b.createBackbuffer(opts.Width, opts.Height); err != nil {
		return fail(err)
	}

	b.state = drawState{
		color:      metadata.ColorWhite,
		stencil:    metadata.DefaultStencilState(),
		depth:      metadata.DepthState{Compare: metadata.CompareAlways},
		colorMask:  metadata.ColorMaskAll,
		blend:      metadata.ComputeBlendState(metadata.BlendModeAlpha, metadata.BlendAlphaMultiply),
		pointSize:  1,
		sampler:    metadata.DefaultSamplerState(),
		transform:  math.NewMat4Identity(),
		projection: math.NewMat4Identity(),
	}
	b.useBackbuffer()

	name := context.Device.Properties.DeviceName[:]
	core.LogInfo("vulkan backend created on '%s': %dx%d, %d frames in flight",
		string(name[:FindFirstZeroInByteArray(name)]), opts.Width, opts.Height, opts.FramesInFlight)
	return b, nil
}

func (b *Backend) createCaches() {
	context := b.context
	deferrer := cacheDeferrer{b: b}
	// Render passes are few and framebuffer and pipeline keys refer to
	// them by ID, so they are never evicted.
	b.renderPasses = objcache.New(objcache.Config[objcache.RenderPassConfiguration, vk.RenderPass]{
		Name: "render pass",
		Create: func(cfg objcache.RenderPassConfiguration) (vk.RenderPass, error) {
			return RenderpassCreate(context, cfg)
		},
		Destroy: func(rp vk.RenderPass) { RenderpassDestroy(context, rp) },
	}, deferrer)
	b.framebuffers = objcache.New(objcache.Config[objcache.FramebufferConfiguration, vk.Framebuffer]{
		Name: "framebuffer",
		Create: func(cfg objcache.FramebufferConfiguration) (vk.Framebuffer, error) {
			rp, ok := b.passHandles[cfg.RenderPass]
			if !ok {
				return vk.NullFramebuffer, fmt.Errorf("unknown render pass %d", cfg.RenderPass)
			}
			return FramebufferCreate(context, cfg, rp, b.views)
		},
		Destroy:    func(fb vk.Framebuffer) { FramebufferDestroy(context, fb) },
		EvictAfter: b.opts.CacheEvictionFrames,
	}, deferrer)
	b.pipelines = objcache.New(objcache.Config[objcache.GraphicsPipelineConfiguration, vk.Pipeline]{
		Name: "graphics pipeline",
		Create: func(cfg objcache.GraphicsPipelineConfiguration) (vk.Pipeline, error) {
			sh := b.state.shader
			if sh == nil || sh.id != cfg.Shader {
				return vk.NullPipeline, fmt.Errorf("shader %d is not bound", cfg.Shader)
			}
			rp, ok := b.passHandles[cfg.RenderPass]
			if !ok {
				return vk.NullPipeline, fmt.Errorf("unknown render pass %d", cfg.RenderPass)
			}
			return GraphicsPipelineCreate(context, cfg, sh, rp, b.pipelineLayout, b.flags&metadata.DeviceProjectionFlipY != 0)
		},
		Destroy:    func(p vk.Pipeline) { PipelineDestroy(context, p) },
		EvictAfter: b.opts.CacheEvictionFrames,
	}, deferrer)
	b.samplers = objcache.New(objcache.Config[objcache.SamplerConfiguration, vk.Sampler]{
		Name:    "sampler",
		Create:  func(cfg objcache.SamplerConfiguration) (vk.Sampler, error) { return SamplerCreate(context, cfg.State) },
		Destroy: func(s vk.Sampler) { SamplerDestroy(context, s) },
	}, deferrer)
}

// CacheStats reports hit, miss and eviction counters per cache.
func (b *Backend) CacheStats() map[string]objcache.Stats {
	return map[string]objcache.Stats{
		"render_pass": b.renderPasses.Stats(),
		"framebuffer": b.framebuffers.Stats(),
		"pipeline":    b.pipelines.Stats(),
		"sampler":     b.samplers.Stats(),
		"descriptors": {Entries: b.descriptors.Len()},
		"image_views": {Entries: len(b.views)},
	}
}

// deferDestroy runs fn once the frame being recorded has completed, or
// immediately when no frame has started.
func (b *Backend) deferDestroy(fn func()) {
	if b.scheduler == nil {
		fn()
		return
	}
	b.scheduler.QueueCleanup(fn)
}

func (b *Backend) forgetTexture(t *Texture) {
	ids := t.viewIDs()
	b.framebuffers.Evict(func(cfg objcache.FramebufferConfiguration) bool {
		for i := 0; i < int(cfg.ColorViewCount); i++ {
			if ids[cfg.ColorViews[i]] {
				return true
			}
		}
		return ids[cfg.DepthView]
	})
	b.deferDestroy(b.descriptors.Forget(t.id))
	for id := range ids {
		delete(b.views, id)
	}
}

func (b *Backend) forgetShader(sh *Shader) {
	b.pipelines.Evict(func(cfg objcache.GraphicsPipelineConfiguration) bool {
		return cfg.Shader == sh.id
	})
	if b.state.shader == sh {
		b.state.shader = nil
	}
}

// upload fills a texture outside of any frame, for objects the backend
// creates itself.
func (b *Backend) upload(t *Texture, data []byte) error {
	staging, err := newDeviceBuffer(b.context, len(data), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return err
	}
	defer staging.destroy(b.context)
	copy(staging.data, data)

	region, err := t.copyRegion(0, 0, metadata.Rect{W: t.settings.Width, H: t.settings.Height}, 0)
	if err != nil {
		return err
	}
	pool := b.context.Device.GraphicsCommandPool
	cb, err := AllocateAndBeginSingleUse(b.context, pool)
	if err != nil {
		return err
	}
	vk.CmdCopyBufferToImage(cb.Handle, staging.Handle, t.Handle, vk.ImageLayoutGeneral, 1, []vk.BufferImageCopy{region})
	return cb.EndSingleUse(b.context, pool, b.context.Device.GraphicsQueue)
}

func (b *Backend) createBackbuffer(width, height int) error {
	color, err := newTexture(b, metadata.TextureSettings{
		Format:       metadata.PixelFormatRGBA8,
		Width:        width,
		Height:       height,
		RenderTarget: true,
		DebugName:    "backbuffer",
	})
	if err != nil {
		return err
	}
	depth, err := newTexture(b, metadata.TextureSettings{
		Format:       metadata.PixelFormatDepth24Stencil8,
		Width:        width,
		Height:       height,
		RenderTarget: true,
		DebugName:    "backbuffer depth",
	})
	if err != nil {
		color.destroy()
		return err
	}
	if b.backbufferColor != nil {
		b.backbufferColor.Release()
		b.backbufferDepth.Release()
	}
	b.backbufferColor, b.backbufferDepth = color, depth
	b.width, b.height = width, height
	return nil
}

func (b *Backend) useBackbuffer() {
	b.target = target{
		colors: []attachment{{texture: b.backbufferColor}},
		depth:  attachment{texture: b.backbufferDepth},
		width:  b.width,
		height: b.height,
		msaa:   1,
	}
	b.dynamicDirty = true
}

func (b *Backend) Name() string                         { return "vulkan" }
func (b *Backend) Capabilities() *metadata.Capabilities { return &b.caps }
func (b *Backend) Dimensions() (int, int)               { return b.width, b.height }

func (b *Backend) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", core.ErrRenderTargetDimensions, width, height)
	}
	if width == b.width && height == b.height {
		return nil
	}
	onBackbuffer := b.target.colors[0].texture == b.backbufferColor
	if onBackbuffer {
		b.endPass()
	}
	if err := b.createBackbuffer(width, height); err != nil {
		core.LogError("failed to resize backbuffer: %s", err)
		return err
	}
	if onBackbuffer {
		b.useBackbuffer()
	}
	core.LogDebug("backbuffer resized to %dx%d", width, height)
	return nil
}

// DeviceProjectionFlags is the same for every target: all of them are
// images read back top row first, and clip space depth is [0, 1].
func (b *Backend) DeviceProjectionFlags(renderTargetActive bool) metadata.DeviceProjectionFlags {
	return b.flags
}

func (b *Backend) NewFence() (metadata.Fence, error) {
	f, err := NewFence(b.context, false)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (b *Backend) SetShader(shader metadata.Shader) {
	sh, _ := shader.(*Shader)
	b.state.shader = sh
}

func (b *Backend) SetColor(color metadata.Color) { b.state.color = color }

func (b *Backend) SetScissor(rect *metadata.Rect) {
	if rect == nil {
		b.state.scissor = nil
	} else {
		r := *rect
		b.state.scissor = &r
	}
	b.dynamicDirty = true
}

func (b *Backend) SetStencilState(state metadata.StencilState) {
	b.state.stencil = state
	b.dynamicDirty = true
}

func (b *Backend) SetDepthState(state metadata.DepthState)            { b.state.depth = state }
func (b *Backend) SetFrontFaceWinding(winding metadata.Winding)       { b.state.winding = winding }
func (b *Backend) SetColorMask(mask metadata.ColorChannelMask)        { b.state.colorMask = mask }
func (b *Backend) SetBlendState(state metadata.BlendState)            { b.state.blend = state }
func (b *Backend) SetPointSize(size float32)                          { b.state.pointSize = size }
func (b *Backend) SetWireframe(enable bool)                           { b.state.wireframe = enable }
func (b *Backend) SetDefaultSamplerState(state metadata.SamplerState) { b.state.sampler = state }

func (b *Backend) SetTransforms(transform, projection math.Mat4) {
	b.state.transform = transform
	b.state.projection = projection
}

func (b *Backend) SetRenderTargets(rts metadata.RenderTargets, pixelWidth, pixelHeight int, hasSRGB bool) error {
	b.endPass()
	if rts.Empty() {
		b.useBackbuffer()
		return nil
	}
	resolve := func(rt metadata.RenderTarget) (attachment, error) {
		t, ok := rt.Texture.(*Texture)
		if !ok || t == nil || t.Handle == vk.NullImage {
			return attachment{}, fmt.Errorf("%w: %T is not a live vulkan texture", core.ErrNotRenderTarget, rt.Texture)
		}
		if !t.settings.RenderTarget {
			return attachment{}, fmt.Errorf("%w: '%s'", core.ErrNotRenderTarget, t.settings.DebugName)
		}
		return attachment{texture: t, mip: rt.MipMap, slice: rt.Slice}, nil
	}

	next := target{width: pixelWidth, height: pixelHeight, msaa: 1}
	for _, rt := range rts.Colors {
		a, err := resolve(rt)
		if err != nil {
			return err
		}
		next.colors = append(next.colors, a)
	}
	if rts.DepthStencil.Texture != nil {
		a, err := resolve(rts.DepthStencil)
		if err != nil {
			return err
		}
		next.depth = a
	}
	if first := rts.First(); first.Texture != nil {
		next.msaa = max(1, first.Texture.MSAA())
	}
	b.target = next
	b.dynamicDirty = true
	return nil
}

// BeginFrame starts recording into the command buffer of the frame's slot.
// The scheduler has already waited for the frame that last used it.
func (b *Backend) BeginFrame(scheduler metadata.FrameScheduler) error {
	if b.shutdown {
		return core.ErrClosed
	}
	b.scheduler = scheduler
	cb := b.commandBuffers[scheduler.Frame()%uint64(len(b.commandBuffers))]
	if cb.State != COMMAND_BUFFER_STATE_READY {
		if err := cb.Reset(); err != nil {
			return err
		}
	}
	if err := cb.Begin(false); err != nil {
		return err
	}
	b.cb = cb
	b.pass = pass{}
	b.dynamicDirty = true
	return nil
}

func (b *Backend) recording() error {
	if b.shutdown {
		return core.ErrClosed
	}
	if b.cb == nil || !b.cb.Recording() {
		return fmt.Errorf("%w: no frame is being recorded", core.ErrUnknown)
	}
	return nil
}

func (b *Backend) attachmentView(a attachment) (core.ObjectID, error) {
	v, err := a.texture.attachmentView(a.mip, a.slice)
	if err != nil {
		return core.InvalidObjectID, err
	}
	b.views[v.id] = v.Handle
	return v.id, nil
}

// beginPass starts a render pass over the current target unless one is
// already open. Attachments are loaded, so passes may be split freely.
func (b *Backend) beginPass() error {
	if err := b.recording(); err != nil {
		return err
	}
	if b.pass.active {
		return nil
	}
	var rpCfg objcache.RenderPassConfiguration
	var fbCfg objcache.FramebufferConfiguration
	for i, a := range b.target.colors {
		rpCfg.ColorAttachments[i] = objcache.RenderPassAttachment{
			Format: a.texture.settings.Format,
			MSAA:   uint8(a.texture.settings.MSAA),
		}
		id, err := b.attachmentView(a)
		if err != nil {
			return err
		}
		fbCfg.ColorViews[i] = id
	}
	rpCfg.ColorAttachmentCount = uint8(len(b.target.colors))
	fbCfg.ColorViewCount = rpCfg.ColorAttachmentCount
	if d := b.target.depth; d.texture != nil {
		rpCfg.HasDepth = true
		rpCfg.DepthAttachment = objcache.RenderPassAttachment{
			Format: d.texture.settings.Format,
			MSAA:   uint8(d.texture.settings.MSAA),
		}
		id, err := b.attachmentView(d)
		if err != nil {
			return err
		}
		fbCfg.DepthView = id
	}

	rp, rpID, err := b.renderPasses.Get(rpCfg)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	b.passHandles[rpID] = rp

	fbCfg.Width = uint32(b.target.width)
	fbCfg.Height = uint32(b.target.height)
	fbCfg.RenderPass = rpID
	fb, _, err := b.framebuffers.Get(fbCfg)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	RenderpassBegin(b.cb, rp, fb, fbCfg.Width, fbCfg.Height)
	b.pass = pass{active: true, renderPass: rp, id: rpID}
	b.dynamicDirty = true
	return nil
}

func (b *Backend) endPass() {
	if b.pass.active {
		RenderpassEnd(b.cb)
		b.pass.active = false
	}
}

// scissorRect clips the scissor to the target.
func (b *Backend) scissorRect() vk.Rect2D {
	full := metadata.Rect{W: b.target.width, H: b.target.height}
	r := full
	if b.state.scissor != nil {
		r = b.state.scissor.Intersect(full)
	}
	return vk.Rect2D{
		Offset: vk.Offset2D{X: int32(r.X), Y: int32(r.Y)},
		Extent: vk.Extent2D{Width: uint32(r.W), Height: uint32(r.H)},
	}
}

func (b *Backend) setDynamicState() {
	if !b.dynamicDirty {
		return
	}
	viewport := vk.Viewport{
		Width:    float32(b.target.width),
		Height:   float32(b.target.height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	vk.CmdSetViewport(b.cb.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(b.cb.Handle, 0, 1, []vk.Rect2D{b.scissorRect()})

	faces := vk.StencilFaceFlags(vk.StencilFaceFrontBit | vk.StencilFaceBackBit)
	st := b.state.stencil
	vk.CmdSetStencilReference(b.cb.Handle, faces, uint32(st.Value))
	vk.CmdSetStencilCompareMask(b.cb.Handle, faces, st.ReadMask)
	vk.CmdSetStencilWriteMask(b.cb.Handle, faces, st.WriteMask)
	b.dynamicDirty = false
}

func (b *Backend) pushConstants(cb *CommandBuffer) {
	c := b.state.color
	pc := PushConstants{
		MVP:       b.state.transform.Mul(b.state.projection),
		Color:     [4]float32{c.R, c.G, c.B, c.A},
		PointSize: b.state.pointSize,
	}
	vk.CmdPushConstants(cb.Handle, b.pipelineLayout, pushConstantStages, 0, pushConstantsSize, unsafe.Pointer(&pc))
}

// textureSet returns the descriptor set sampling tex, or the white texture
// when tex is nil, with the current default sampler.
func (b *Backend) textureSet(tex metadata.Texture) (vk.DescriptorSet, error) {
	var none vk.DescriptorSet
	t := b.white
	if tex != nil {
		vt, ok := tex.(*Texture)
		if !ok || vt == nil || vt.Handle == vk.NullImage {
			return none, fmt.Errorf("%w: %T is not a live vulkan texture", core.ErrObjectCreation, tex)
		}
		t = vt
	}
	sampler, samplerID, err := b.samplers.Get(objcache.SamplerConfiguration{State: b.state.sampler})
	if err != nil {
		return none, err
	}
	return b.descriptors.Get(descriptorKey{texture: t.id, sampler: samplerID}, t.sampled.Handle, sampler)
}

func (b *Backend) prepareDraw(prim metadata.PrimitiveType, attrs metadata.VertexAttributes, buffers metadata.BufferBindings, tex metadata.Texture, cull metadata.CullMode) error {
	sh := b.state.shader
	if sh == nil || !sh.HasStage(metadata.ShaderStageVertex) {
		return fmt.Errorf("%w: no graphics shader bound", core.ErrInvalidShader)
	}
	if err := b.beginPass(); err != nil {
		return err
	}

	dynamic := objcache.DynamicState{
		Cull:           cull,
		Winding:        b.state.winding,
		StencilAction:  metadata.StencilKeep,
		StencilCompare: metadata.CompareAlways,
		Depth:          metadata.DepthState{Compare: metadata.CompareAlways},
	}
	if d := b.target.depth.texture; d != nil {
		if d.settings.Format.HasStencil() {
			dynamic.StencilAction = b.state.stencil.Action
			dynamic.StencilCompare = b.state.stencil.Compare
		}
		if d.settings.Format.HasDepth() {
			dynamic.Depth = b.state.depth
		}
	}
	key := objcache.GraphicsPipelineConfiguration{
		RenderPass:           b.pass.id,
		VertexAttributes:     attrs,
		Shader:               sh.id,
		Wireframe:            b.state.wireframe,
		Blend:                b.state.blend,
		ColorMask:            b.state.colorMask,
		MSAA:                 uint8(b.target.msaa),
		ColorAttachmentCount: uint8(len(b.target.colors)),
		Primitive:            prim,
		Dynamic:              dynamic,
	}
	pipeline, _, err := b.pipelines.Get(key)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	PipelineBind(b.cb, vk.PipelineBindPointGraphics, pipeline)
	b.setDynamicState()

	set, err := b.textureSet(tex)
	if err != nil {
		return err
	}
	vk.CmdBindDescriptorSets(b.cb.Handle, vk.PipelineBindPointGraphics, b.pipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	b.pushConstants(b.cb)

	var used [metadata.MaxVertexBuffers]bool
	for id := metadata.VertexAttributeID(0); id < metadata.VertexAttributeMax; id++ {
		if attrs.IsEnabled(id) {
			used[attrs.Attribs[id].BufferIndex] = true
		}
	}
	for slot, u := range used {
		if !u {
			continue
		}
		handle, err := bufferHandle(buffers.Buffers[slot])
		if err != nil {
			return err
		}
		vk.CmdBindVertexBuffers(b.cb.Handle, uint32(slot), 1, []vk.Buffer{handle}, []vk.DeviceSize{vk.DeviceSize(buffers.Offsets[slot])})
	}
	vk.CmdBindVertexBuffers(b.cb.Handle, defaultAttributeBinding, 1, []vk.Buffer{b.defaults.Handle}, []vk.DeviceSize{0})
	return nil
}

func (b *Backend) Clear(values metadata.ClearValues) error {
	if err := b.beginPass(); err != nil {
		return err
	}
	var attachments []vk.ClearAttachment
	for i, c := range values.Colors {
		if c == nil || i >= len(b.target.colors) {
			continue
		}
		var cv vk.ClearValue
		cv.SetColor([]float32{c.R, c.G, c.B, c.A})
		attachments = append(attachments, vk.ClearAttachment{
			AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
			ColorAttachment: uint32(i),
			ClearValue:      cv,
		})
	}
	if d := b.target.depth.texture; d != nil {
		var aspect vk.ImageAspectFlagBits
		depth, stencil := float32(1), uint32(0)
		if values.Depth != nil && d.settings.Format.HasDepth() {
			aspect |= vk.ImageAspectDepthBit
			depth = *values.Depth
		}
		if values.Stencil != nil && d.settings.Format.HasStencil() {
			aspect |= vk.ImageAspectStencilBit
			stencil = uint32(*values.Stencil)
		}
		if aspect != 0 {
			var cv vk.ClearValue
			cv.SetDepthStencil(depth, stencil)
			attachments = append(attachments, vk.ClearAttachment{
				AspectMask: vk.ImageAspectFlags(aspect),
				ClearValue: cv,
			})
		}
	}
	rect := b.scissorRect()
	if len(attachments) == 0 || rect.Extent.Width == 0 || rect.Extent.Height == 0 {
		return nil
	}
	vk.CmdClearAttachments(b.cb.Handle, uint32(len(attachments)), attachments, 1,
		[]vk.ClearRect{{Rect: rect, BaseArrayLayer: 0, LayerCount: 1}})
	return nil
}

func (b *Backend) Draw(cmd *metadata.DrawCommand) error {
	if err := b.prepareDraw(cmd.Primitive, cmd.Attributes, cmd.Buffers, cmd.Texture, cmd.CullMode); err != nil {
		return err
	}
	vk.CmdDraw(b.cb.Handle, uint32(cmd.VertexCount), uint32(max(1, cmd.InstanceCount)), uint32(cmd.VertexStart), 0)
	return nil
}

func (b *Backend) DrawIndexed(cmd *metadata.DrawIndexedCommand) error {
	if err := b.prepareDraw(cmd.Primitive, cmd.Attributes, cmd.Buffers, cmd.Texture, cmd.CullMode); err != nil {
		return err
	}
	handle, err := bufferHandle(cmd.IndexBuffer)
	if err != nil {
		return err
	}
	vk.CmdBindIndexBuffer(b.cb.Handle, handle, vk.DeviceSize(cmd.IndexBufferOffset), vkIndexType(cmd.IndexType))
	vk.CmdDrawIndexed(b.cb.Handle, uint32(cmd.IndexCount), uint32(max(1, cmd.InstanceCount)), 0, 0, 0)
	return nil
}

// barrier makes every earlier write visible to every later command.
func (b *Backend) barrier() {
	vk.CmdPipelineBarrier(b.cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 1, []vk.MemoryBarrier{{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: vk.AccessFlags(vk.AccessMemoryWriteBit),
			DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
		}}, 0, nil, 0, nil)
}

// outsidePass records fn between barriers with no render pass open.
func (b *Backend) outsidePass(fn func()) error {
	if err := b.recording(); err != nil {
		return err
	}
	b.endPass()
	b.barrier()
	fn()
	b.barrier()
	return nil
}

func (b *Backend) Dispatch(shader metadata.Shader, x, y, z int) error {
	sh, ok := shader.(*Shader)
	if !ok || sh == nil || sh.computePipeline == vk.NullPipeline {
		return fmt.Errorf("%w: %T", core.ErrNotComputeShader, shader)
	}
	if x <= 0 || y <= 0 || z <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", core.ErrInvalidThreadgroups, x, y, z)
	}
	set, err := b.textureSet(nil)
	if err != nil {
		return err
	}
	return b.outsidePass(func() {
		PipelineBind(b.cb, vk.PipelineBindPointCompute, sh.computePipeline)
		vk.CmdBindDescriptorSets(b.cb.Handle, vk.PipelineBindPointCompute, b.pipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
		b.pushConstants(b.cb)
		vk.CmdDispatch(b.cb.Handle, uint32(x), uint32(y), uint32(z))
	})
}

func asBuffer(buf metadata.Buffer) (*Buffer, error) {
	vb, ok := buf.(*Buffer)
	if !ok || vb == nil || vb.buffer == nil {
		return nil, fmt.Errorf("%w: %T is not a live vulkan buffer", core.ErrInvalidCopy, buf)
	}
	return vb, nil
}

func (b *Backend) CopyBuffer(src, dst metadata.Buffer, srcOffset, dstOffset, size int) error {
	s, err := asBuffer(src)
	if err != nil {
		return err
	}
	d, err := asBuffer(dst)
	if err != nil {
		return err
	}
	if srcOffset < 0 || dstOffset < 0 || size <= 0 || srcOffset+size > s.size || dstOffset+size > d.size {
		return fmt.Errorf("%w: copy of %d bytes from %d to %d", core.ErrBufferTooSmall, size, srcOffset, dstOffset)
	}
	return b.outsidePass(func() {
		vk.CmdCopyBuffer(b.cb.Handle, s.buffer.Handle, d.buffer.Handle, 1, []vk.BufferCopy{{
			SrcOffset: vk.DeviceSize(srcOffset),
			DstOffset: vk.DeviceSize(dstOffset),
			Size:      vk.DeviceSize(size),
		}})
	})
}

func (b *Backend) CopyTextureToBuffer(src metadata.Texture, slice, mip int, rect metadata.Rect, dst metadata.Buffer, dstOffset int) error {
	t, err := asTexture(src)
	if err != nil {
		return err
	}
	d, err := asBuffer(dst)
	if err != nil {
		return err
	}
	region, err := t.copyRegion(slice, mip, rect, dstOffset)
	if err != nil {
		return err
	}
	if dstOffset < 0 || dstOffset+t.copySize(rect) > d.size {
		return fmt.Errorf("%w: %d bytes at %d", core.ErrBufferTooSmall, t.copySize(rect), dstOffset)
	}
	return b.outsidePass(func() {
		vk.CmdCopyImageToBuffer(b.cb.Handle, t.Handle, vk.ImageLayoutGeneral, d.buffer.Handle, 1, []vk.BufferImageCopy{region})
	})
}

func (b *Backend) CopyBufferToTexture(src metadata.Buffer, srcOffset int, dst metadata.Texture, slice, mip int, rect metadata.Rect) error {
	s, err := asBuffer(src)
	if err != nil {
		return err
	}
	t, err := asTexture(dst)
	if err != nil {
		return err
	}
	region, err := t.copyRegion(slice, mip, rect, srcOffset)
	if err != nil {
		return err
	}
	if srcOffset < 0 || srcOffset+t.copySize(rect) > s.size {
		return fmt.Errorf("%w: %d bytes at %d", core.ErrBufferTooSmall, t.copySize(rect), srcOffset)
	}
	return b.outsidePass(func() {
		vk.CmdCopyBufferToImage(b.cb.Handle, s.buffer.Handle, t.Handle, vk.ImageLayoutGeneral, 1, []vk.BufferImageCopy{region})
	})
}

// readback records a copy into a fresh staging buffer and collects the bytes
// once the scheduler retires the frame.
func (b *Backend) readback(size int, record func(staging vk.Buffer)) (metadata.Readback, error) {
	if err := b.recording(); err != nil {
		return nil, err
	}
	staging, err := newDeviceBuffer(b.context, size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit))
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if err := b.outsidePass(func() { record(staging.Handle) }); err != nil {
		staging.destroy(b.context)
		return nil, err
	}
	rb := &Readback{staging: staging, size: size}
	b.scheduler.QueueReadback(func() { rb.finish(b) })
	return rb, nil
}

func (b *Backend) ReadbackBuffer(src metadata.Buffer, offset, size int) (metadata.Readback, error) {
	s, err := asBuffer(src)
	if err != nil {
		return nil, err
	}
	if offset < 0 || size <= 0 || offset+size > s.size {
		return nil, fmt.Errorf("%w: %d bytes at %d", core.ErrBufferTooSmall, size, offset)
	}
	return b.readback(size, func(staging vk.Buffer) {
		vk.CmdCopyBuffer(b.cb.Handle, s.buffer.Handle, staging, 1, []vk.BufferCopy{{
			SrcOffset: vk.DeviceSize(offset),
			Size:      vk.DeviceSize(size),
		}})
	})
}

func (b *Backend) ReadbackTexture(src metadata.Texture, slice, mip int, rect metadata.Rect) (metadata.Readback, error) {
	t, err := asTexture(src)
	if err != nil {
		return nil, err
	}
	region, err := t.copyRegion(slice, mip, rect, 0)
	if err != nil {
		return nil, err
	}
	return b.readback(t.copySize(rect), func(staging vk.Buffer) {
		vk.CmdCopyImageToBuffer(b.cb.Handle, t.Handle, vk.ImageLayoutGeneral, staging, 1, []vk.BufferImageCopy{region})
	})
}

func (b *Backend) CaptureBackbuffer() (metadata.Readback, error) {
	return b.ReadbackTexture(b.backbufferColor, 0, 0, metadata.Rect{W: b.width, H: b.height})
}

// Submit closes the frame's command buffer and hands it to the graphics
// queue with the frame fence. Caches are swept once per frame here.
func (b *Backend) Submit(fence metadata.Fence) error {
	if err := b.recording(); err != nil {
		return err
	}
	f, ok := fence.(*Fence)
	if !ok || f == nil {
		return fmt.Errorf("%w: %T is not a vulkan fence", core.ErrUnknown, fence)
	}
	b.endPass()
	if err := b.cb.End(); err != nil {
		return err
	}

	device := b.context.Device
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{b.cb.Handle},
	}
	err := b.context.Locks.SafeQueueCall(uint32(device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, f.Handle); res != vk.Success {
			return vkError("vkQueueSubmit", res)
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.cb.UpdateSubmitted()

	b.renderPasses.Sweep()
	b.framebuffers.Sweep()
	b.pipelines.Sweep()
	b.samplers.Sweep()
	return nil
}

func (b *Backend) Shutdown() error {
	if b.shutdown {
		return nil
	}
	b.shutdown = true
	if res := vk.DeviceWaitIdle(b.context.Device.LogicalDevice); !VulkanResultIsSuccess(res) {
		core.LogWarn("vkDeviceWaitIdle failed: %s", VulkanResultString(res))
	}
	stats := b.CacheStats()
	core.LogDebug("vulkan backend shutting down: %d pipelines, %d framebuffers, %d descriptor sets",
		stats["pipeline"].Entries, stats["framebuffer"].Entries, stats["descriptors"].Entries)
	b.destroy()
	core.LogInfo("vulkan backend shut down")
	return nil
}

// destroy releases everything the backend owns. The device must be idle.
func (b *Backend) destroy() {
	b.scheduler = nil
	context := b.context
	if context.Device != nil && context.Device.LogicalDevice != nil {
		for _, t := range []*Texture{b.backbufferColor, b.backbufferDepth, b.white} {
			if t != nil {
				t.destroy()
			}
		}
		if b.defaults != nil {
			b.defaults.destroy(context)
		}
		if b.pipelines != nil {
			b.pipelines.Clear()
			b.framebuffers.Clear()
			b.renderPasses.Clear()
			b.samplers.Clear()
		}
		if b.descriptors != nil {
			b.descriptors.Destroy()
		}
		// The set layout exists whenever the pipeline layout does.
		if b.pipelineLayout != vk.NullPipelineLayout {
			vk.DestroyPipelineLayout(context.Device.LogicalDevice, b.pipelineLayout, context.Allocator)
			vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, b.setLayout, context.Allocator)
		}
		for _, cb := range b.commandBuffers {
			cb.Free(context, context.Device.GraphicsCommandPool)
		}
		b.commandBuffers = nil
	}
	DeviceDestroy(context)
	context.destroy()
}
