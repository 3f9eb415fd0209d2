package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
)

// Fence is a frame fence. It is created unsignaled; the lifecycle only
// waits on fences that were submitted.
type Fence struct {
	id         core.ObjectID
	context    *Context
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *Context, createSignaled bool) (*Fence, error) {
	fence := &Fence{
		id:         core.NewObjectID(),
		context:    context,
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		return nil, vkError("vkCreateFence", res)
	}
	fence.Handle = pFence
	return fence, nil
}

func (f *Fence) ID() core.ObjectID { return f.id }

// Release destroys the fence immediately. Frame fences are only released
// after the lifecycle drained them.
func (f *Fence) Release() {
	if f.Handle != vk.NullFence {
		vk.DestroyFence(f.context.Device.LogicalDevice, f.Handle, f.context.Allocator)
		f.Handle = vk.NullFence
	}
	f.IsSignaled = false
}

func (f *Fence) Signaled() bool {
	if f.IsSignaled {
		return true
	}
	if vk.GetFenceStatus(f.context.Device.LogicalDevice, f.Handle) == vk.Success {
		f.IsSignaled = true
	}
	return f.IsSignaled
}

func (f *Fence) Wait(timeoutNs uint64) error {
	if f.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(f.context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		f.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return fmt.Errorf("%w: after %dns", core.ErrFenceTimeout, timeoutNs)
	default:
		return vkError("vkWaitForFences", result)
	}
}

func (f *Fence) Reset() error {
	if res := vk.ResetFences(f.context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}); res != vk.Success {
		return vkError("vkResetFences", res)
	}
	f.IsSignaled = false
	return nil
}
