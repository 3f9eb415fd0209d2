package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// deviceBuffer is a buffer bound to host visible, coherent memory that stays
// mapped for its whole lifetime.
type deviceBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	data   []byte
}

func newDeviceBuffer(context *Context, size int, usage vk.BufferUsageFlags) (*deviceBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", core.ErrObjectCreation, size)
	}
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	db := &deviceBuffer{}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, vkError("vkCreateBuffer", res)
	}
	db.Handle = handle

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &reqs)
	reqs.Deref()

	memoryType, err := context.FindMemoryIndex(reqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		db.destroy(context)
		return nil, err
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		db.destroy(context)
		return nil, vkError("vkAllocateMemory", res)
	}
	db.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		db.destroy(context)
		return nil, vkError("vkBindBufferMemory", res)
	}

	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
		db.destroy(context)
		return nil, vkError("vkMapMemory", res)
	}
	db.data = unsafe.Slice((*byte)(ptr), size)
	return db, nil
}

func (db *deviceBuffer) destroy(context *Context) {
	if db.data != nil {
		vk.UnmapMemory(context.Device.LogicalDevice, db.Memory)
		db.data = nil
	}
	if db.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, db.Memory, context.Allocator)
		db.Memory = vk.NullDeviceMemory
	}
	if db.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, db.Handle, context.Allocator)
		db.Handle = vk.NullBuffer
	}
}

type Buffer struct {
	id       core.ObjectID
	backend  *Backend
	settings metadata.BufferSettings
	size     int
	buffer   *deviceBuffer
}

func (b *Backend) NewBuffer(settings metadata.BufferSettings, size int, data []byte) (metadata.Buffer, error) {
	if len(data) > size {
		return nil, fmt.Errorf("%w: %d bytes of data for a %d byte buffer", core.ErrBufferTooSmall, len(data), size)
	}
	db, err := newDeviceBuffer(b.context, size, vkBufferUsage(settings.Usage))
	if err != nil {
		return nil, err
	}
	copy(db.data, data)
	return &Buffer{
		id:       core.NewObjectID(),
		backend:  b,
		settings: settings,
		size:     size,
		buffer:   db,
	}, nil
}

func (buf *Buffer) ID() core.ObjectID             { return buf.id }
func (buf *Buffer) Size() int                     { return buf.size }
func (buf *Buffer) Usage() metadata.BufferUsage   { return buf.settings.Usage }
func (buf *Buffer) DataUsage() metadata.DataUsage { return buf.settings.DataUsage }
func (buf *Buffer) Immutable() bool               { return buf.settings.Immutable }

// Release destroys the buffer once the frames referencing it completed.
func (buf *Buffer) Release() {
	if buf.buffer == nil {
		return
	}
	db := buf.buffer
	buf.buffer = nil
	buf.backend.deferDestroy(func() { db.destroy(buf.backend.context) })
}

func (buf *Buffer) Fill(offset int, data []byte) error {
	if buf.settings.Immutable {
		return fmt.Errorf("%w: buffer is immutable", core.ErrInvalidCopy)
	}
	if offset < 0 || offset+len(data) > buf.size {
		return core.ErrBufferTooSmall
	}
	copy(buf.buffer.data[offset:], data)
	return nil
}

// streamRegions hands out write offsets inside one region per frame in
// flight, so the CPU never overwrites vertices an earlier frame still reads.
type streamRegions struct {
	regionSize int
	regions    int
	current    int
	offset     int
}

func (r *streamRegions) base() int {
	return r.current * r.regionSize
}

func (r *streamRegions) usable() int {
	return r.regionSize - r.offset
}

func (r *streamRegions) writeOffset() int {
	return r.base() + r.offset
}

func (r *streamRegions) markUsed(n int) {
	r.offset = min(r.regionSize, r.offset+n)
}

func (r *streamRegions) next() {
	r.current = (r.current + 1) % r.regions
	r.offset = 0
}

type StreamBuffer struct {
	id      core.ObjectID
	backend *Backend
	usage   metadata.BufferUsage
	buffer  *deviceBuffer
	regions streamRegions
}

func (b *Backend) NewStreamBuffer(usage metadata.BufferUsage, size int) (metadata.StreamBuffer, error) {
	regions := b.opts.FramesInFlight
	db, err := newDeviceBuffer(b.context, size*regions, vkBufferUsage(usage))
	if err != nil {
		return nil, err
	}
	return &StreamBuffer{
		id:      core.NewObjectID(),
		backend: b,
		usage:   usage,
		buffer:  db,
		regions: streamRegions{regionSize: size, regions: regions},
	}, nil
}

func (s *StreamBuffer) ID() core.ObjectID           { return s.id }
func (s *StreamBuffer) Usage() metadata.BufferUsage { return s.usage }
func (s *StreamBuffer) Size() int                   { return s.regions.regionSize }
func (s *StreamBuffer) UsableSize() int             { return s.regions.usable() }

func (s *StreamBuffer) Release() {
	if s.buffer == nil {
		return
	}
	db := s.buffer
	s.buffer = nil
	s.backend.deferDestroy(func() { db.destroy(s.backend.context) })
}

func (s *StreamBuffer) Map(minSize int) []byte {
	start := s.regions.writeOffset()
	return s.buffer.data[start : s.regions.base()+s.regions.regionSize]
}

func (s *StreamBuffer) Unmap(usedSize int) int {
	return s.regions.writeOffset()
}

func (s *StreamBuffer) MarkUsed(usedSize int) {
	s.regions.markUsed(usedSize)
}

func (s *StreamBuffer) NextFrame() {
	s.regions.next()
}

// bufferHandle resolves a vertex or index slot, which may hold either kind
// of buffer. Stream buffer offsets are already absolute.
func bufferHandle(r metadata.Resource) (vk.Buffer, error) {
	switch buf := r.(type) {
	case *Buffer:
		if buf.buffer != nil {
			return buf.buffer.Handle, nil
		}
	case *StreamBuffer:
		if buf.buffer != nil {
			return buf.buffer.Handle, nil
		}
	}
	return vk.NullBuffer, fmt.Errorf("%w: %T is not a live vulkan buffer", core.ErrInvalidCopy, r)
}
