package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
)

// Context holds the instance level objects shared by every resource the
// backend creates.
type Context struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	debugMessenger vk.DebugReportCallback

	Device *Device
	Locks  *LockPool
}

func newContext(opts Options) (*Context, error) {
	if opts.GetInstanceProcAddr != nil {
		vk.SetGetInstanceProcAddr(opts.GetInstanceProcAddr)
	} else if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		err = fmt.Errorf("%w: failed to load the Vulkan library: %s", core.ErrFeatureUnsupported, err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := vk.Init(); err != nil {
		err = fmt.Errorf("%w: failed to initialize vk: %s", core.ErrFeatureUnsupported, err)
		core.LogError(err.Error())
		return nil, err
	}

	context := &Context{
		// TODO: custom allocator.
		Allocator: nil,
		Locks:     NewLockPool(),
	}
	if err := context.createInstance(opts); err != nil {
		return nil, err
	}
	return context, nil
}

func (c *Context) createInstance(opts Options) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		EngineVersion:      uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(opts.AppName),
		PEngineName:        VulkanSafeString("anima2d"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Offscreen rendering needs no surface extension. The window layer may
	// still hand over what it requires.
	requiredExtensions := append([]string(nil), opts.InstanceExtensions...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1 // VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	}

	var requiredValidationLayerNames []string
	if opts.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkValidationLayers(requiredValidationLayerNames); err != nil {
			return err
		}
	}
	for _, ext := range requiredExtensions {
		core.LogDebug("required instance extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, c.Allocator, &instance); res != vk.Success {
		return vkError("vkCreateInstance", res)
	}
	if err := vk.InitInstance(instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	c.Instance = instance
	core.LogInfo("Vulkan Instance created.")

	if opts.Validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(c.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		c.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func checkValidationLayers(required []string) error {
	var availableLayerCount uint32
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
		return vkError("vkEnumerateInstanceLayerProperties", res)
	}
	availableLayers := make([]vk.LayerProperties, availableLayerCount)
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
		return vkError("vkEnumerateInstanceLayerProperties", res)
	}

	for _, name := range required {
		found := false
		for j := range availableLayers {
			availableLayers[j].Deref()
			end := FindFirstZeroInByteArray(availableLayers[j].LayerName[:])
			if name == string(availableLayers[j].LayerName[:end]) {
				found = true
				break
			}
		}
		if !found {
			err := fmt.Errorf("%w: required validation layer is missing: %s", core.ErrFeatureUnsupported, name)
			core.LogError(err.Error())
			return err
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint64, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has every requested property.
func (c *Context) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	memoryProperties := c.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (memoryProperties.MemoryTypes[i].PropertyFlags&propertyFlags) == propertyFlags {
			return i, nil
		}
	}
	err := fmt.Errorf("%w: unable to find suitable memory type", core.ErrObjectCreation)
	core.LogWarn(err.Error())
	return 0, err
}

func (c *Context) destroy() {
	if c.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(c.Instance, c.debugMessenger, c.Allocator)
		c.debugMessenger = vk.NullDebugReportCallback
	}
	if c.Instance != nil {
		vk.DestroyInstance(c.Instance, c.Allocator)
		c.Instance = nil
	}
}
