package metadata

import "github.com/spaghettifunk/anima2d/engine/core"

// Resource is implemented by every backend object the core hands back to
// the backend. Backends type-assert to their own concrete types.
type Resource interface {
	ID() core.ObjectID
	Release()
}

type TextureType uint8

const (
	TextureType2D TextureType = iota
	TextureTypeVolume
	TextureType2DArray
	TextureTypeCube
)

type TextureSettings struct {
	Type         TextureType
	Format       PixelFormat
	Width        int
	Height       int
	Layers       int
	MipmapCount  int
	MSAA         int
	RenderTarget bool
	ComputeWrite bool
	DebugName    string
}

type Texture interface {
	Resource
	Type() TextureType
	Format() PixelFormat
	// PixelWidth and PixelHeight return the dimensions of a mip level.
	PixelWidth(mip int) int
	PixelHeight(mip int) int
	MipmapCount() int
	// SliceCount returns the number of layers, cube faces or depth slices
	// addressable at the given mip level.
	SliceCount(mip int) int
	MSAA() int
	IsRenderTarget() bool
	IsComputeWritable() bool
	DebugName() string
}

type BufferUsage uint16

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageTexel
	BufferUsageShaderStorage
	BufferUsageCopySource
	BufferUsageCopyDest
	BufferUsageIndirect
)

type DataUsage uint8

const (
	DataUsageStatic DataUsage = iota
	DataUsageDynamic
	DataUsageStream
	DataUsageReadback
)

type BufferSettings struct {
	Usage     BufferUsage
	DataUsage DataUsage
	Immutable bool
	DebugName string
}

type Buffer interface {
	Resource
	Size() int
	Usage() BufferUsage
	DataUsage() DataUsage
	Immutable() bool
	// Fill writes data at offset. Immutable buffers reject it.
	Fill(offset int, data []byte) error
}

// StreamBuffer is a growable-by-replacement, CPU-writable buffer the batching
// engine maps once per batch. The usable region shrinks as regions are marked
// used and is reset when the frame advances.
type StreamBuffer interface {
	Resource
	Usage() BufferUsage
	Size() int
	UsableSize() int
	// Map returns a writable region of at least minSize bytes starting at the
	// current write offset. The returned slice may be larger.
	Map(minSize int) []byte
	// Unmap finishes writing usedSize bytes and returns the offset of the
	// mapped region inside the buffer.
	Unmap(usedSize int) int
	// MarkUsed advances the write offset past the region last unmapped.
	MarkUsed(usedSize int)
	// NextFrame resets the write offset for a new frame.
	NextFrame()
}

type ShaderStageType uint8

const (
	ShaderStageVertex ShaderStageType = iota
	ShaderStagePixel
	ShaderStageCompute
	ShaderStageMax
)

func (s ShaderStageType) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStagePixel:
		return "pixel"
	case ShaderStageCompute:
		return "compute"
	}
	return "unknown"
}

type ShaderStage interface {
	Resource
	Stage() ShaderStageType
	// Key is the stage-cache key (hash of the source).
	Key() string
}

type Shader interface {
	Resource
	HasStage(stage ShaderStageType) bool
	// ThreadgroupSize is the local size declared by a compute shader.
	ThreadgroupSize() [3]int
	DebugName() string
}

// Fence is signaled by the device when the work submitted with it finishes.
type Fence interface {
	Resource
	// Wait blocks until the fence signals or timeoutNs elapses.
	Wait(timeoutNs uint64) error
	Signaled() bool
	Reset() error
}

// Readback is an asynchronous GPU to CPU copy.
type Readback interface {
	// Update polls the copy and reports whether it completed.
	Update() bool
	IsComplete() bool
	Data() []byte
	Err() error
}
