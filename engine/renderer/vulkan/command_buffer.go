package vulkan

import (
	vk "github.com/goki/vulkan"
)

type CommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY CommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type CommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State CommandBufferState
}

func NewCommandBuffer(context *Context, pool vk.CommandPool) (*CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		return nil, vkError("vkAllocateCommandBuffers", res)
	}
	return &CommandBuffer{Handle: handles[0], State: COMMAND_BUFFER_STATE_READY}, nil
}

func (cb *CommandBuffer) Free(context *Context, pool vk.CommandPool) {
	if cb.Handle == nil {
		return
	}
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{cb.Handle})
	cb.Handle = nil
	cb.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (cb *CommandBuffer) Begin(isSingleUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}

	if res := vk.BeginCommandBuffer(cb.Handle, &beginInfo); res != vk.Success {
		return vkError("vkBeginCommandBuffer", res)
	}
	cb.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (cb *CommandBuffer) End() error {
	if res := vk.EndCommandBuffer(cb.Handle); res != vk.Success {
		return vkError("vkEndCommandBuffer", res)
	}
	cb.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (cb *CommandBuffer) UpdateSubmitted() {
	cb.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (cb *CommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(cb.Handle, 0); res != vk.Success {
		return vkError("vkResetCommandBuffer", res)
	}
	cb.State = COMMAND_BUFFER_STATE_READY
	return nil
}

// Recording reports whether commands may be appended.
func (cb *CommandBuffer) Recording() bool {
	return cb.State == COMMAND_BUFFER_STATE_RECORDING || cb.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

// AllocateAndBeginSingleUse allocates a command buffer for a one-off upload.
func AllocateAndBeginSingleUse(context *Context, pool vk.CommandPool) (*CommandBuffer, error) {
	cb, err := NewCommandBuffer(context, pool)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits, waits for the queue to go idle and
// frees the command buffer.
func (cb *CommandBuffer) EndSingleUse(context *Context, pool vk.CommandPool, queue vk.Queue) error {
	defer cb.Free(context, pool)

	if err := cb.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}

	return context.Locks.SafeQueueCall(uint32(context.Device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			return vkError("vkQueueSubmit", res)
		}
		if res := vk.QueueWaitIdle(queue); res != vk.Success {
			return vkError("vkQueueWaitIdle", res)
		}
		return nil
	})
}
