package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

type Device struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	ComputeQueueIndex  int32

	GraphicsQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
	// PortabilitySubset is set on MoltenVK style implementations.
	PortabilitySubset bool
}

type PhysicalDeviceRequirements struct {
	Graphics          bool
	Compute           bool
	SamplerAnisotropy bool
	DiscreteGPU       bool
}

type PhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	ComputeFamilyIndex  int32
}

func DeviceCreate(context *Context, requirements PhysicalDeviceRequirements) error {
	device, err := selectPhysicalDevice(context, requirements)
	if err != nil {
		return err
	}
	context.Device = device

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(device.GraphicsQueueIndex)}
	if device.ComputeQueueIndex >= 0 && device.ComputeQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, uint32(device.ComputeQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: device.Features.SamplerAnisotropy,
		FillModeNonSolid:  device.Features.FillModeNonSolid,
		IndependentBlend:  device.Features.IndependentBlend,
		LargePoints:       device.Features.LargePoints,
	}

	var extensionNames []string
	if device.PortabilitySubset {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logical); res != vk.Success {
		return vkError("vkCreateDevice", res)
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.GraphicsQueueIndex), 0, &queue)
	device.GraphicsQueue = queue
	context.Locks.SetQueueFamily(uint32(device.GraphicsQueueIndex))

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		return vkError("vkCreateCommandPool", res)
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if !DeviceDetectDepthFormat(device) {
		err := fmt.Errorf("%w: no supported depth format", core.ErrFeatureUnsupported)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func DeviceDestroy(context *Context) {
	device := context.Device
	if device == nil {
		return
	}
	device.GraphicsQueue = nil

	core.LogInfo("Destroying command pools...")
	if device.GraphicsCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		device.GraphicsCommandPool = vk.NullCommandPool
	}

	core.LogInfo("Destroying logical device...")
	if device.LogicalDevice != nil {
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
	device.GraphicsQueueIndex = -1
	device.ComputeQueueIndex = -1
}

func DeviceDetectDepthFormat(device *Device) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.LinearTilingFeatures&flags == flags || properties.OptimalTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

// SupportsFormat reports whether the format can be used as an optimally
// tiled attachment and sampled image.
func (d *Device) SupportsFormat(format vk.Format, attachment vk.FormatFeatureFlagBits) bool {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, format, &properties)
	properties.Deref()
	flags := vk.FormatFeatureFlags(attachment)
	return properties.OptimalTilingFeatures&flags == flags
}

func selectPhysicalDevice(context *Context, requirements PhysicalDeviceRequirements) (*Device, error) {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return nil, vkError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		err := fmt.Errorf("%w: no devices which support Vulkan were found", core.ErrFeatureUnsupported)
		core.LogError(err.Error())
		return nil, err
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return nil, vkError("vkEnumeratePhysicalDevices", res)
	}

	var selected *Device
	for _, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()
		properties.Limits.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(physicalDevice, &features)
		features.Deref()

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
		memory.Deref()

		queueInfo, ok := PhysicalDeviceMeetsRequirements(physicalDevice, &properties, &features, requirements)
		if !ok {
			continue
		}

		candidate := &Device{
			PhysicalDevice:     physicalDevice,
			GraphicsQueueIndex: queueInfo.GraphicsFamilyIndex,
			ComputeQueueIndex:  queueInfo.ComputeFamilyIndex,
			Properties:         properties,
			Features:           features,
			Memory:             memory,
			PortabilitySubset:  hasDeviceExtension(physicalDevice, "VK_KHR_portability_subset"),
		}
		// Prefer a discrete GPU when one is available.
		if selected == nil || (properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu &&
			selected.Properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu) {
			selected = candidate
		}
	}

	if selected == nil {
		err := fmt.Errorf("%w: no physical devices were found which meet the requirements", core.ErrFeatureUnsupported)
		core.LogError(err.Error())
		return nil, err
	}

	properties := selected.Properties
	end := FindFirstZeroInByteArray(properties.DeviceName[:])
	core.LogInfo("Selected device: '%s'.", string(properties.DeviceName[:end]))
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)
	for j := 0; j < int(selected.Memory.MemoryHeapCount); j++ {
		heap := selected.Memory.MemoryHeaps[j]
		heap.Deref()
		memorySizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
	return selected, nil
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements PhysicalDeviceRequirements) (PhysicalDeviceQueueFamilyInfo, bool) {
	info := PhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, ComputeFamilyIndex: -1}

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return info, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := queueFamilies[i].QueueFlags
		if flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 && info.GraphicsFamilyIndex < 0 {
			info.GraphicsFamilyIndex = int32(i)
		}
		if flags&vk.QueueFlags(vk.QueueComputeBit) != 0 && info.ComputeFamilyIndex < 0 {
			info.ComputeFamilyIndex = int32(i)
		}
	}
	core.LogDebug("Graphics Family Index: %d", info.GraphicsFamilyIndex)
	core.LogDebug("Compute Family Index:  %d", info.ComputeFamilyIndex)

	if requirements.Graphics && info.GraphicsFamilyIndex < 0 {
		return info, false
	}
	if requirements.Compute && info.ComputeFamilyIndex < 0 {
		return info, false
	}
	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return info, false
	}
	return info, true
}

func hasDeviceExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	extensions := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, extensions); res != vk.Success {
		return false
	}
	for i := range extensions {
		extensions[i].Deref()
		end := FindFirstZeroInByteArray(extensions[i].ExtensionName[:])
		if string(extensions[i].ExtensionName[:end]) == name {
			return true
		}
	}
	return false
}

// capabilities derives the advertised feature set and limits from the
// selected physical device.
func (d *Device) capabilities() metadata.Capabilities {
	var caps metadata.Capabilities
	limits := d.Properties.Limits

	caps.Features[metadata.FeatureMultiRenderTargetFormats] = d.Features.IndependentBlend == vk.True
	caps.Features[metadata.FeatureClampZero] = true
	caps.Features[metadata.FeatureClampOne] = true
	caps.Features[metadata.FeatureBlendMinMax] = true
	caps.Features[metadata.FeatureFullNPOT] = true
	caps.Features[metadata.FeatureShaderDerivatives] = true
	caps.Features[metadata.FeatureInstancing] = true
	caps.Features[metadata.FeatureTexelBuffer] = true
	caps.Features[metadata.FeatureIndexBuffer32] = true
	caps.Features[metadata.FeatureCopyBuffer] = true
	caps.Features[metadata.FeatureCopyBufferToTexture] = true
	caps.Features[metadata.FeatureCopyTextureToBuffer] = true
	caps.Features[metadata.FeatureCopyRenderTargetToBuffer] = true
	caps.Features[metadata.FeatureMipmapRange] = true
	caps.Features[metadata.FeatureIndirectDraw] = d.Features.MultiDrawIndirect == vk.True

	caps.Limits[metadata.LimitPointSize] = float64(limits.PointSizeRange[1])
	caps.Limits[metadata.LimitTextureSize] = float64(limits.MaxImageDimension2D)
	caps.Limits[metadata.LimitVolumeTextureSize] = float64(limits.MaxImageDimension3D)
	caps.Limits[metadata.LimitCubeTextureSize] = float64(limits.MaxImageDimensionCube)
	caps.Limits[metadata.LimitTextureLayers] = float64(limits.MaxImageArrayLayers)
	caps.Limits[metadata.LimitTexelBufferSize] = float64(limits.MaxTexelBufferElements)
	caps.Limits[metadata.LimitShaderStorageBufferSize] = float64(limits.MaxStorageBufferRange)
	caps.Limits[metadata.LimitThreadgroupsX] = float64(limits.MaxComputeWorkGroupCount[0])
	caps.Limits[metadata.LimitThreadgroupsY] = float64(limits.MaxComputeWorkGroupCount[1])
	caps.Limits[metadata.LimitThreadgroupsZ] = float64(limits.MaxComputeWorkGroupCount[2])
	caps.Limits[metadata.LimitRenderTargets] = float64(min(int(limits.MaxColorAttachments), metadata.LimitRenderTargetsMax))
	caps.Limits[metadata.LimitTextureMSAA] = float64(maxSampleCount(limits.FramebufferColorSampleCounts))
	caps.Limits[metadata.LimitAnisotropy] = float64(limits.MaxSamplerAnisotropy)

	caps.RenderTargetFormats = make(map[metadata.PixelFormat]bool)
	for f := metadata.PixelFormatUnknown + 1; f < metadata.PixelFormatMax; f++ {
		vf, ok := vkFormat(f, d.DepthFormat)
		if !ok {
			continue
		}
		bit := vk.FormatFeatureColorAttachmentBit
		if f.IsDepthStencil() {
			bit = vk.FormatFeatureDepthStencilAttachmentBit
		}
		if d.SupportsFormat(vf, bit) {
			caps.RenderTargetFormats[f] = true
		}
	}
	return caps
}

func maxSampleCount(counts vk.SampleCountFlags) int {
	for _, n := range []int{64, 32, 16, 8, 4, 2} {
		if counts&vk.SampleCountFlags(n) != 0 {
			return n
		}
	}
	return 1
}
