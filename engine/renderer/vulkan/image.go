package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

type imageView struct {
	id     core.ObjectID
	Handle vk.ImageView
}

type viewKey struct {
	mip, slice int
}

// Texture is an optimally tiled image that lives in the general layout for
// its whole lifetime, so it can be sampled, copied and rendered to without
// per-use layout transitions.
type Texture struct {
	id       core.ObjectID
	backend  *Backend
	settings metadata.TextureSettings

	Handle       vk.Image
	Memory       vk.DeviceMemory
	deviceFormat vk.Format
	aspect       vk.ImageAspectFlags
	layers       uint32

	sampled imageView
	views   map[viewKey]imageView
}

func (b *Backend) NewTexture(settings metadata.TextureSettings) (metadata.Texture, error) {
	t, err := newTexture(b, settings)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func newTexture(b *Backend, settings metadata.TextureSettings) (*Texture, error) {
	context := b.context
	settings.MipmapCount = max(1, settings.MipmapCount)
	settings.MSAA = max(1, settings.MSAA)
	if settings.Width <= 0 || settings.Height <= 0 {
		return nil, fmt.Errorf("%w: texture %dx%d", core.ErrObjectCreation, settings.Width, settings.Height)
	}
	format, ok := vkFormat(settings.Format, context.Device.DepthFormat)
	if !ok {
		return nil, fmt.Errorf("%w: pixel format %s", core.ErrRenderTargetFormat, settings.Format)
	}

	t := &Texture{
		id:           core.NewObjectID(),
		backend:      b,
		settings:     settings,
		deviceFormat: format,
		aspect:       vkAspect(settings.Format),
		layers:       1,
		views:        make(map[viewKey]imageView),
	}

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  uint32(settings.Width),
			Height: uint32(settings.Height),
			Depth:  1,
		},
		MipLevels:     uint32(settings.MipmapCount),
		ArrayLayers:   1,
		Samples:       vkSampleCount(settings.MSAA),
		Tiling:        vk.ImageTilingOptimal,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	viewType := vk.ImageViewType2d
	switch settings.Type {
	case metadata.TextureType2DArray:
		t.layers = uint32(max(1, settings.Layers))
		createInfo.ArrayLayers = t.layers
		viewType = vk.ImageViewType2dArray
	case metadata.TextureTypeCube:
		t.layers = 6
		createInfo.ArrayLayers = 6
		createInfo.Flags |= vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
		viewType = vk.ImageViewTypeCube
	case metadata.TextureTypeVolume:
		createInfo.ImageType = vk.ImageType3d
		createInfo.Extent.Depth = uint32(max(1, settings.Layers))
		if settings.RenderTarget {
			createInfo.Flags |= vk.ImageCreateFlags(vk.ImageCreate2dArrayCompatibleBit)
		}
		viewType = vk.ImageViewType3d
	}

	usage := vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit
	if settings.RenderTarget {
		if settings.Format.IsDepthStencil() {
			usage |= vk.ImageUsageDepthStencilAttachmentBit
		} else {
			usage |= vk.ImageUsageColorAttachmentBit
		}
	}
	if settings.ComputeWrite {
		usage |= vk.ImageUsageStorageBit
	}
	createInfo.Usage = vk.ImageUsageFlags(usage)

	var image vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &createInfo, context.Allocator, &image); res != vk.Success {
		return nil, vkError("vkCreateImage", res)
	}
	t.Handle = image

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, image, &reqs)
	reqs.Deref()
	memoryType, err := context.FindMemoryIndex(reqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		t.destroy()
		return nil, err
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		t.destroy()
		return nil, vkError("vkAllocateMemory", res)
	}
	t.Memory = memory
	if res := vk.BindImageMemory(context.Device.LogicalDevice, image, memory, 0); res != vk.Success {
		t.destroy()
		return nil, vkError("vkBindImageMemory", res)
	}

	sampled, err := t.createView(viewType, 0, uint32(settings.MipmapCount), 0, t.layers, true)
	if err != nil {
		t.destroy()
		return nil, err
	}
	t.sampled = sampled

	if err := t.transitionToGeneral(); err != nil {
		t.destroy()
		return nil, err
	}
	core.LogDebug("texture '%s' created: %dx%d %s", settings.DebugName, settings.Width, settings.Height, settings.Format)
	return t, nil
}

func (t *Texture) createView(viewType vk.ImageViewType, baseMip, mipCount, baseLayer, layerCount uint32, sampled bool) (imageView, error) {
	context := t.backend.context
	aspect := t.aspect
	if sampled && t.settings.Format.HasDepth() {
		// Sampled depth/stencil views read depth only.
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.Handle,
		ViewType: viewType,
		Format:   t.deviceFormat,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   baseMip,
			LevelCount:     mipCount,
			BaseArrayLayer: baseLayer,
			LayerCount:     layerCount,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &createInfo, context.Allocator, &view); res != vk.Success {
		return imageView{}, vkError("vkCreateImageView", res)
	}
	return imageView{id: core.NewObjectID(), Handle: view}, nil
}

// attachmentView returns the single mip, single slice view a framebuffer
// binds for a render target.
func (t *Texture) attachmentView(mip, slice int) (imageView, error) {
	key := viewKey{mip: mip, slice: slice}
	if v, ok := t.views[key]; ok {
		return v, nil
	}
	v, err := t.createView(vk.ImageViewType2d, uint32(mip), 1, uint32(slice), 1, false)
	if err != nil {
		return imageView{}, err
	}
	t.views[key] = v
	return v, nil
}

// transitionToGeneral moves every subresource out of the undefined layout.
func (t *Texture) transitionToGeneral() error {
	context := t.backend.context
	pool := context.Device.GraphicsCommandPool
	cb, err := AllocateAndBeginSingleUse(context, pool)
	if err != nil {
		return err
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       0,
		DstAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutGeneral,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     t.aspect,
			BaseMipLevel:   0,
			LevelCount:     uint32(t.settings.MipmapCount),
			BaseArrayLayer: 0,
			LayerCount:     t.layers,
		},
	}
	vk.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return cb.EndSingleUse(context, pool, context.Device.GraphicsQueue)
}

func (t *Texture) ID() core.ObjectID            { return t.id }
func (t *Texture) Type() metadata.TextureType   { return t.settings.Type }
func (t *Texture) Format() metadata.PixelFormat { return t.settings.Format }
func (t *Texture) MipmapCount() int             { return t.settings.MipmapCount }
func (t *Texture) MSAA() int                    { return t.settings.MSAA }
func (t *Texture) IsRenderTarget() bool         { return t.settings.RenderTarget }
func (t *Texture) IsComputeWritable() bool      { return t.settings.ComputeWrite }
func (t *Texture) DebugName() string            { return t.settings.DebugName }

func (t *Texture) PixelWidth(mip int) int {
	return max(1, t.settings.Width>>mip)
}

func (t *Texture) PixelHeight(mip int) int {
	return max(1, t.settings.Height>>mip)
}

func (t *Texture) SliceCount(mip int) int {
	if t.settings.Type == metadata.TextureTypeVolume {
		return max(1, t.settings.Layers>>mip)
	}
	return int(t.layers)
}

// Release drops every cached object referencing the texture and destroys
// it once in-flight frames are done with it.
func (t *Texture) Release() {
	if t.Handle == vk.NullImage {
		return
	}
	t.backend.forgetTexture(t)
	handle, memory := t.Handle, t.Memory
	views := make([]vk.ImageView, 0, len(t.views)+1)
	views = append(views, t.sampled.Handle)
	for _, v := range t.views {
		views = append(views, v.Handle)
	}
	t.Handle, t.Memory = vk.NullImage, vk.NullDeviceMemory
	t.sampled = imageView{}
	t.views = make(map[viewKey]imageView)

	context := t.backend.context
	t.backend.deferDestroy(func() {
		for _, v := range views {
			if v != vk.NullImageView {
				vk.DestroyImageView(context.Device.LogicalDevice, v, context.Allocator)
			}
		}
		vk.DestroyImage(context.Device.LogicalDevice, handle, context.Allocator)
		vk.FreeMemory(context.Device.LogicalDevice, memory, context.Allocator)
	})
}

// destroy releases a partially created texture immediately.
func (t *Texture) destroy() {
	context := t.backend.context
	dev := context.Device.LogicalDevice
	for _, v := range t.views {
		vk.DestroyImageView(dev, v.Handle, context.Allocator)
	}
	if t.sampled.Handle != vk.NullImageView {
		vk.DestroyImageView(dev, t.sampled.Handle, context.Allocator)
	}
	if t.Handle != vk.NullImage {
		vk.DestroyImage(dev, t.Handle, context.Allocator)
	}
	if t.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(dev, t.Memory, context.Allocator)
	}
	t.Handle, t.Memory = vk.NullImage, vk.NullDeviceMemory
	t.sampled = imageView{}
	t.views = nil
}

// viewIDs lists the ObjectIDs of every view, for framebuffer eviction.
func (t *Texture) viewIDs() map[core.ObjectID]bool {
	ids := make(map[core.ObjectID]bool, len(t.views)+1)
	ids[t.sampled.id] = true
	for _, v := range t.views {
		ids[v.id] = true
	}
	return ids
}

func asTexture(tex metadata.Texture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok || t == nil || t.Handle == vk.NullImage {
		return nil, fmt.Errorf("%w: %T is not a live vulkan texture", core.ErrInvalidCopy, tex)
	}
	return t, nil
}

// copyRegion validates rect against the mip level and slice and describes
// the buffer copy. Depth/stencil images copy their depth aspect.
func (t *Texture) copyRegion(slice, mip int, rect metadata.Rect, bufferOffset int) (vk.BufferImageCopy, error) {
	if mip < 0 || mip >= t.settings.MipmapCount {
		return vk.BufferImageCopy{}, fmt.Errorf("%w: mip %d of %d", core.ErrInvalidMipmap, mip, t.settings.MipmapCount)
	}
	if slice < 0 || slice >= t.SliceCount(mip) {
		return vk.BufferImageCopy{}, fmt.Errorf("%w: slice %d of %d", core.ErrInvalidSlice, slice, t.SliceCount(mip))
	}
	if rect.X < 0 || rect.Y < 0 || rect.W <= 0 || rect.H <= 0 ||
		rect.X+rect.W > t.PixelWidth(mip) || rect.Y+rect.H > t.PixelHeight(mip) {
		return vk.BufferImageCopy{}, fmt.Errorf("%w: rect %+v outside %dx%d", core.ErrInvalidCopy, rect, t.PixelWidth(mip), t.PixelHeight(mip))
	}
	aspect := t.aspect
	if t.settings.Format.HasDepth() {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	region := vk.BufferImageCopy{
		BufferOffset: vk.DeviceSize(bufferOffset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     aspect,
			MipLevel:       uint32(mip),
			BaseArrayLayer: uint32(slice),
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: int32(rect.X), Y: int32(rect.Y)},
		ImageExtent: vk.Extent3D{Width: uint32(rect.W), Height: uint32(rect.H), Depth: 1},
	}
	if t.settings.Type == metadata.TextureTypeVolume {
		region.ImageSubresource.BaseArrayLayer = 0
		region.ImageOffset.Z = int32(slice)
	}
	return region, nil
}

// copySize is the byte size of a tightly packed rect.
func (t *Texture) copySize(rect metadata.Rect) int {
	return rect.W * rect.H * t.settings.Format.BytesPerPixel()
}
