package metadata

import "github.com/spaghettifunk/anima2d/engine/math"

// FrameScheduler defers work until the GPU finished the current frame.
type FrameScheduler interface {
	Frame() uint64
	QueueCleanup(fn func())
	QueueReadback(fn func())
}

// Backend is the narrow contract between the graphics core and a device.
// One implementation is chosen at process start.
type Backend interface {
	Name() string
	Capabilities() *Capabilities
	// Dimensions returns the backbuffer size in pixels.
	Dimensions() (int, int)
	Resize(width, height int) error
	// DeviceProjectionFlags resolves how the logical projection must be
	// adjusted when rendering to a texture or to the backbuffer.
	DeviceProjectionFlags(renderTargetActive bool) DeviceProjectionFlags

	NewStreamBuffer(usage BufferUsage, size int) (StreamBuffer, error)
	NewBuffer(settings BufferSettings, size int, data []byte) (Buffer, error)
	NewTexture(settings TextureSettings) (Texture, error)
	NewShaderStage(stage ShaderStageType, source string) (ShaderStage, error)
	NewShader(stages []ShaderStage) (Shader, error)
	NewFence() (Fence, error)

	SetShader(shader Shader)
	SetColor(color Color)
	SetScissor(rect *Rect)
	SetStencilState(state StencilState)
	SetDepthState(state DepthState)
	SetFrontFaceWinding(winding Winding)
	SetColorMask(mask ColorChannelMask)
	SetBlendState(state BlendState)
	SetPointSize(size float32)
	SetWireframe(enable bool)
	SetDefaultSamplerState(state SamplerState)
	SetTransforms(transform, projection math.Mat4)
	// SetRenderTargets binds the attachments; an empty set binds the backbuffer.
	SetRenderTargets(rts RenderTargets, pixelWidth, pixelHeight int, hasSRGB bool) error

	BeginFrame(scheduler FrameScheduler) error
	Clear(values ClearValues) error
	Draw(cmd *DrawCommand) error
	DrawIndexed(cmd *DrawIndexedCommand) error
	Dispatch(shader Shader, x, y, z int) error
	CopyBuffer(src, dst Buffer, srcOffset, dstOffset, size int) error
	CopyTextureToBuffer(src Texture, slice, mip int, rect Rect, dst Buffer, dstOffset int) error
	CopyBufferToTexture(src Buffer, srcOffset int, dst Texture, slice, mip int, rect Rect) error
	ReadbackBuffer(src Buffer, offset, size int) (Readback, error)
	ReadbackTexture(src Texture, slice, mip int, rect Rect) (Readback, error)
	// CaptureBackbuffer reads the backbuffer as tightly packed RGBA8 rows.
	CaptureBackbuffer() (Readback, error)
	// Submit flushes recorded work to the device; fence signals on completion.
	Submit(fence Fence) error

	Shutdown() error
}
