// Package headless implements a device-less backend that records every
// command it receives. It drives the graphics core in tests and in CI where
// no GPU is available.
package headless

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

type Options struct {
	Width  int
	Height int
	// DisabledFeatures and UnsupportedFormats shape the advertised
	// capabilities.
	DisabledFeatures   []metadata.Feature
	UnsupportedFormats []metadata.PixelFormat
	// DeferCompletion keeps submitted fences unsignaled until they are
	// waited on.
	DeferCompletion bool
}

type DrawRecord struct {
	Indexed       bool
	Primitive     metadata.PrimitiveType
	Attributes    metadata.VertexAttributes
	VertexCount   int
	IndexCount    int
	InstanceCount int
	Indices       []uint16
	// Vertices holds the bytes read from each bound slot.
	Vertices      [metadata.MaxVertexBuffers][]byte
	Texture       metadata.Texture
	Shader        metadata.Shader
	Color         metadata.Color
	Transform     math.Mat4
	Projection    math.Mat4
	RenderTargets metadata.RenderTargets
	CullMode      metadata.CullMode
	Blend         metadata.BlendState
	Scissor       *metadata.Rect
}

type DispatchRecord struct {
	Shader  metadata.Shader
	X, Y, Z int
}

type CopyRecord struct {
	Kind      string
	Size      int
	SrcOffset int
	DstOffset int
}

type Backend struct {
	width, height int
	caps          metadata.Capabilities
	opts          Options
	scheduler     metadata.FrameScheduler

	Shader        metadata.Shader
	Color         metadata.Color
	Scissor       *metadata.Rect
	Stencil       metadata.StencilState
	Depth         metadata.DepthState
	Winding       metadata.Winding
	ColorMask     metadata.ColorChannelMask
	Blend         metadata.BlendState
	PointSize     float32
	Wireframe     bool
	Sampler       metadata.SamplerState
	Transform     math.Mat4
	Projection    math.Mat4
	RenderTargets metadata.RenderTargets

	Draws      []DrawRecord
	Clears     []metadata.ClearValues
	Dispatches []DispatchRecord
	Copies     []CopyRecord
	Textures   []*Texture
	Frames     int
	Submits    int
	// StateCalls counts every setter invocation by name.
	StateCalls map[string]int

	backbuffer []byte
	shutdown   bool
}

func New(opts Options) *Backend {
	if opts.Width <= 0 {
		opts.Width = 800
	}
	if opts.Height <= 0 {
		opts.Height = 600
	}
	b := &Backend{
		width:      opts.Width,
		height:     opts.Height,
		opts:       opts,
		Transform:  math.NewMat4Identity(),
		Projection: math.NewMat4Identity(),
		ColorMask:  metadata.ColorMaskAll,
		StateCalls: make(map[string]int),
	}
	b.caps = defaultCapabilities(opts)
	b.backbuffer = make([]byte, b.width*b.height*4)
	core.LogDebug("headless backend created: %dx%d", b.width, b.height)
	return b
}

func defaultCapabilities(opts Options) metadata.Capabilities {
	var caps metadata.Capabilities
	for i := range caps.Features {
		caps.Features[i] = true
	}
	for _, f := range opts.DisabledFeatures {
		caps.Features[f] = false
	}
	caps.Limits[metadata.LimitPointSize] = 64
	caps.Limits[metadata.LimitTextureSize] = 16384
	caps.Limits[metadata.LimitVolumeTextureSize] = 2048
	caps.Limits[metadata.LimitCubeTextureSize] = 16384
	caps.Limits[metadata.LimitTextureLayers] = 2048
	caps.Limits[metadata.LimitTexelBufferSize] = 1 << 27
	caps.Limits[metadata.LimitShaderStorageBufferSize] = 1 << 27
	caps.Limits[metadata.LimitThreadgroupsX] = 65535
	caps.Limits[metadata.LimitThreadgroupsY] = 65535
	caps.Limits[metadata.LimitThreadgroupsZ] = 65535
	caps.Limits[metadata.LimitRenderTargets] = metadata.LimitRenderTargetsMax
	caps.Limits[metadata.LimitTextureMSAA] = 8
	caps.Limits[metadata.LimitAnisotropy] = 16

	caps.RenderTargetFormats = make(map[metadata.PixelFormat]bool)
	for f := metadata.PixelFormatUnknown + 1; f < metadata.PixelFormatMax; f++ {
		caps.RenderTargetFormats[f] = true
	}
	for _, f := range opts.UnsupportedFormats {
		delete(caps.RenderTargetFormats, f)
	}
	return caps
}

func (b *Backend) Name() string                         { return "headless" }
func (b *Backend) Capabilities() *metadata.Capabilities { return &b.caps }
func (b *Backend) Dimensions() (int, int)               { return b.width, b.height }

func (b *Backend) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", core.ErrRenderTargetDimensions, width, height)
	}
	b.width, b.height = width, height
	b.backbuffer = make([]byte, width*height*4)
	return nil
}

// DeviceProjectionFlags mirrors a device whose texture origin is top-left.
func (b *Backend) DeviceProjectionFlags(renderTargetActive bool) metadata.DeviceProjectionFlags {
	if renderTargetActive {
		return metadata.DeviceProjectionFlipY
	}
	return metadata.DeviceProjectionDefault
}

func (b *Backend) NewStreamBuffer(usage metadata.BufferUsage, size int) (metadata.StreamBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: stream buffer size %d", core.ErrObjectCreation, size)
	}
	return &StreamBuffer{id: core.NewObjectID(), usage: usage, Data: make([]byte, size)}, nil
}

func (b *Backend) NewBuffer(settings metadata.BufferSettings, size int, data []byte) (metadata.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", core.ErrObjectCreation, size)
	}
	if len(data) > size {
		return nil, fmt.Errorf("%w: %d bytes into %d", core.ErrBufferTooSmall, len(data), size)
	}
	buf := &Buffer{id: core.NewObjectID(), settings: settings, Data: make([]byte, size)}
	copy(buf.Data, data)
	return buf, nil
}

func (b *Backend) NewTexture(settings metadata.TextureSettings) (metadata.Texture, error) {
	if settings.Width <= 0 || settings.Height <= 0 {
		return nil, fmt.Errorf("%w: texture %dx%d", core.ErrObjectCreation, settings.Width, settings.Height)
	}
	tex := &Texture{id: core.NewObjectID(), settings: settings}
	b.Textures = append(b.Textures, tex)
	return tex, nil
}

func (b *Backend) NewShaderStage(stage metadata.ShaderStageType, source string) (metadata.ShaderStage, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: empty %s stage source", core.ErrObjectCreation, stage)
	}
	return &ShaderStage{id: core.NewObjectID(), stage: stage, key: stageKey(stage, source), Source: source}, nil
}

func (b *Backend) NewShader(stages []metadata.ShaderStage) (metadata.Shader, error) {
	sh := &Shader{id: core.NewObjectID()}
	for _, st := range stages {
		hs, ok := st.(*ShaderStage)
		if !ok {
			return nil, fmt.Errorf("%w: foreign shader stage %T", core.ErrObjectCreation, st)
		}
		sh.stages[hs.stage] = hs
		sh.name += hs.stage.String() + " "
	}
	if sh.stages[metadata.ShaderStageCompute] != nil &&
		(sh.stages[metadata.ShaderStageVertex] != nil || sh.stages[metadata.ShaderStagePixel] != nil) {
		return nil, fmt.Errorf("%w: compute stage mixed with graphics stages", core.ErrObjectCreation)
	}
	return sh, nil
}

func (b *Backend) NewFence() (metadata.Fence, error) {
	return &Fence{id: core.NewObjectID()}, nil
}

func (b *Backend) count(name string) { b.StateCalls[name]++ }

func (b *Backend) SetShader(shader metadata.Shader) {
	b.count("shader")
	b.Shader = shader
}

func (b *Backend) SetColor(color metadata.Color) {
	b.count("color")
	b.Color = color
}

func (b *Backend) SetScissor(rect *metadata.Rect) {
	b.count("scissor")
	if rect == nil {
		b.Scissor = nil
		return
	}
	r := *rect
	b.Scissor = &r
}

func (b *Backend) SetStencilState(state metadata.StencilState) {
	b.count("stencil")
	b.Stencil = state
}

func (b *Backend) SetDepthState(state metadata.DepthState) {
	b.count("depth")
	b.Depth = state
}

func (b *Backend) SetFrontFaceWinding(winding metadata.Winding) {
	b.count("winding")
	b.Winding = winding
}

func (b *Backend) SetColorMask(mask metadata.ColorChannelMask) {
	b.count("colormask")
	b.ColorMask = mask
}

func (b *Backend) SetBlendState(state metadata.BlendState) {
	b.count("blend")
	b.Blend = state
}

func (b *Backend) SetPointSize(size float32) {
	b.count("pointsize")
	b.PointSize = size
}

func (b *Backend) SetWireframe(enable bool) {
	b.count("wireframe")
	b.Wireframe = enable
}

func (b *Backend) SetDefaultSamplerState(state metadata.SamplerState) {
	b.count("sampler")
	b.Sampler = state
}

func (b *Backend) SetTransforms(transform, projection math.Mat4) {
	b.Transform = transform
	b.Projection = projection
}

func (b *Backend) SetRenderTargets(rts metadata.RenderTargets, pixelWidth, pixelHeight int, hasSRGB bool) error {
	b.count("rendertargets")
	b.RenderTargets = rts.Clone()
	return nil
}

func (b *Backend) BeginFrame(scheduler metadata.FrameScheduler) error {
	if b.shutdown {
		return core.ErrClosed
	}
	b.scheduler = scheduler
	b.Frames++
	return nil
}

func (b *Backend) Clear(values metadata.ClearValues) error {
	b.Clears = append(b.Clears, values)
	if b.RenderTargets.Empty() && len(values.Colors) > 0 && values.Colors[0] != nil {
		px := values.Colors[0].ToBytes()
		for i := 0; i < len(b.backbuffer); i += 4 {
			copy(b.backbuffer[i:i+4], px[:])
		}
	}
	return nil
}

func (b *Backend) record(indexed bool, prim metadata.PrimitiveType, attrs metadata.VertexAttributes,
	bindings metadata.BufferBindings, vertexStart, vertexCount int) DrawRecord {
	rec := DrawRecord{
		Indexed:       indexed,
		Primitive:     prim,
		Attributes:    attrs,
		VertexCount:   vertexCount,
		Shader:        b.Shader,
		Color:         b.Color,
		Transform:     b.Transform,
		Projection:    b.Projection,
		RenderTargets: b.RenderTargets.Clone(),
		Blend:         b.Blend,
		Scissor:       b.Scissor,
	}
	for slot := range bindings.Buffers {
		stride := int(attrs.Strides[slot])
		data := resourceBytes(bindings.Buffers[slot])
		if data == nil || stride == 0 {
			continue
		}
		start := bindings.Offsets[slot] + vertexStart*stride
		end := min(start+vertexCount*stride, len(data))
		if start < end {
			rec.Vertices[slot] = append([]byte(nil), data[start:end]...)
		}
	}
	return rec
}

func resourceBytes(r metadata.Resource) []byte {
	switch v := r.(type) {
	case *StreamBuffer:
		return v.Data
	case *Buffer:
		return v.Data
	}
	return nil
}

func (b *Backend) Draw(cmd *metadata.DrawCommand) error {
	rec := b.record(false, cmd.Primitive, cmd.Attributes, cmd.Buffers, cmd.VertexStart, cmd.VertexCount)
	rec.InstanceCount = cmd.InstanceCount
	rec.Texture = cmd.Texture
	rec.CullMode = cmd.CullMode
	b.Draws = append(b.Draws, rec)
	return nil
}

func (b *Backend) DrawIndexed(cmd *metadata.DrawIndexedCommand) error {
	data := resourceBytes(cmd.IndexBuffer)
	if data == nil {
		return fmt.Errorf("%w: no index buffer bound", core.ErrUnknown)
	}
	size := cmd.IndexType.Size()
	if cmd.IndexBufferOffset+cmd.IndexCount*size > len(data) {
		return fmt.Errorf("%w: index range exceeds buffer", core.ErrBufferTooSmall)
	}
	indices := make([]uint16, cmd.IndexCount)
	vertexCount := 0
	for i := range indices {
		off := cmd.IndexBufferOffset + i*size
		if cmd.IndexType == metadata.IndexDataUint32 {
			indices[i] = uint16(binary.LittleEndian.Uint32(data[off:]))
		} else {
			indices[i] = binary.LittleEndian.Uint16(data[off:])
		}
		vertexCount = max(vertexCount, int(indices[i])+1)
	}
	rec := b.record(true, cmd.Primitive, cmd.Attributes, cmd.Buffers, 0, vertexCount)
	rec.IndexCount = cmd.IndexCount
	rec.InstanceCount = cmd.InstanceCount
	rec.Indices = indices
	rec.Texture = cmd.Texture
	rec.CullMode = cmd.CullMode
	b.Draws = append(b.Draws, rec)
	return nil
}

func (b *Backend) Dispatch(shader metadata.Shader, x, y, z int) error {
	b.Dispatches = append(b.Dispatches, DispatchRecord{Shader: shader, X: x, Y: y, Z: z})
	return nil
}

func (b *Backend) CopyBuffer(src, dst metadata.Buffer, srcOffset, dstOffset, size int) error {
	s, sok := src.(*Buffer)
	d, dok := dst.(*Buffer)
	if !sok || !dok {
		return fmt.Errorf("%w: foreign buffer", core.ErrInvalidCopy)
	}
	copy(d.Data[dstOffset:dstOffset+size], s.Data[srcOffset:srcOffset+size])
	b.Copies = append(b.Copies, CopyRecord{Kind: "buffer", Size: size, SrcOffset: srcOffset, DstOffset: dstOffset})
	return nil
}

func (b *Backend) CopyTextureToBuffer(src metadata.Texture, slice, mip int, rect metadata.Rect, dst metadata.Buffer, dstOffset int) error {
	size := rect.W * rect.H * src.Format().BytesPerPixel()
	b.Copies = append(b.Copies, CopyRecord{Kind: "texture-to-buffer", Size: size, DstOffset: dstOffset})
	return nil
}

func (b *Backend) CopyBufferToTexture(src metadata.Buffer, srcOffset int, dst metadata.Texture, slice, mip int, rect metadata.Rect) error {
	size := rect.W * rect.H * dst.Format().BytesPerPixel()
	b.Copies = append(b.Copies, CopyRecord{Kind: "buffer-to-texture", Size: size, SrcOffset: srcOffset})
	return nil
}

// readback completes once the frame that requested it has retired.
func (b *Backend) readback(data []byte) *Readback {
	rb := &Readback{data: data}
	if b.scheduler == nil {
		rb.complete = true
		return rb
	}
	b.scheduler.QueueReadback(func() { rb.complete = true })
	return rb
}

func (b *Backend) ReadbackBuffer(src metadata.Buffer, offset, size int) (metadata.Readback, error) {
	buf, ok := src.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("%w: foreign buffer", core.ErrInvalidCopy)
	}
	if offset < 0 || offset+size > len(buf.Data) {
		return nil, core.ErrBufferTooSmall
	}
	return b.readback(append([]byte(nil), buf.Data[offset:offset+size]...)), nil
}

func (b *Backend) ReadbackTexture(src metadata.Texture, slice, mip int, rect metadata.Rect) (metadata.Readback, error) {
	return b.readback(make([]byte, rect.W*rect.H*src.Format().BytesPerPixel())), nil
}

func (b *Backend) CaptureBackbuffer() (metadata.Readback, error) {
	return b.readback(append([]byte(nil), b.backbuffer...)), nil
}

func (b *Backend) Submit(fence metadata.Fence) error {
	if b.shutdown {
		return core.ErrClosed
	}
	b.Submits++
	if f, ok := fence.(*Fence); ok && f != nil {
		f.submitted = true
		if !b.opts.DeferCompletion {
			f.signaled = true
		}
	}
	return nil
}

func (b *Backend) Shutdown() error {
	b.shutdown = true
	core.LogDebug("headless backend shut down after %d draws and %d submits", len(b.Draws), b.Submits)
	return nil
}

// Reset drops the recorded commands.
func (b *Backend) Reset() {
	b.Draws = nil
	b.Clears = nil
	b.Dispatches = nil
	b.Copies = nil
	b.StateCalls = make(map[string]int)
}
