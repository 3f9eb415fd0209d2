package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/objcache"
)

// RenderpassCreate builds a single subpass render pass for the
// configuration. Every attachment stays in the general layout; clears are
// recorded inside the pass, so attachments either load or discard.
func RenderpassCreate(context *Context, cfg objcache.RenderPassConfiguration) (vk.RenderPass, error) {
	var attachments []vk.AttachmentDescription
	var colorRefs []vk.AttachmentReference

	loadOp := func(discard bool) vk.AttachmentLoadOp {
		if discard {
			return vk.AttachmentLoadOpDontCare
		}
		return vk.AttachmentLoadOpLoad
	}

	for i := 0; i < int(cfg.ColorAttachmentCount); i++ {
		a := cfg.ColorAttachments[i]
		format, ok := vkFormat(a.Format, context.Device.DepthFormat)
		if !ok {
			return vk.NullRenderPass, fmt.Errorf("%w: color attachment format %s", core.ErrRenderTargetFormat, a.Format)
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         format,
			Samples:        vkSampleCount(int(a.MSAA)),
			LoadOp:         loadOp(a.Discard),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutGeneral,
			FinalLayout:    vk.ImageLayoutGeneral,
		})
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutGeneral,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}

	if cfg.HasDepth {
		a := cfg.DepthAttachment
		format, ok := vkFormat(a.Format, context.Device.DepthFormat)
		if !ok {
			return vk.NullRenderPass, fmt.Errorf("%w: depth attachment format %s", core.ErrRenderTargetFormat, a.Format)
		}
		depthOp := vk.AttachmentLoadOpDontCare
		stencilOp := vk.AttachmentLoadOpDontCare
		depthStore := vk.AttachmentStoreOpDontCare
		stencilStore := vk.AttachmentStoreOpDontCare
		if a.Format.HasDepth() {
			depthOp, depthStore = loadOp(a.Discard), vk.AttachmentStoreOpStore
		}
		if a.Format.HasStencil() {
			stencilOp, stencilStore = loadOp(a.Discard), vk.AttachmentStoreOpStore
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         format,
			Samples:        vkSampleCount(int(a.MSAA)),
			LoadOp:         depthOp,
			StoreOp:        depthStore,
			StencilLoadOp:  stencilOp,
			StencilStoreOp: stencilStore,
			InitialLayout:  vk.ImageLayoutGeneral,
			FinalLayout:    vk.ImageLayoutGeneral,
		})
		depthRef := vk.AttachmentReference{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutGeneral,
		}
		subpass.PDepthStencilAttachment = &depthRef
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessMemoryWriteBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageAllGraphicsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var renderPass vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &createInfo, context.Allocator, &renderPass); res != vk.Success {
		return vk.NullRenderPass, vkError("vkCreateRenderPass", res)
	}
	return renderPass, nil
}

func RenderpassDestroy(context *Context, renderPass vk.RenderPass) {
	if renderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(context.Device.LogicalDevice, renderPass, context.Allocator)
	}
}

// RenderpassBegin starts the pass over the whole framebuffer.
func RenderpassBegin(cb *CommandBuffer, renderPass vk.RenderPass, framebuffer vk.Framebuffer, width, height uint32) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: width, Height: height},
		},
	}
	vk.CmdBeginRenderPass(cb.Handle, &beginInfo, vk.SubpassContentsInline)
	cb.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func RenderpassEnd(cb *CommandBuffer) {
	vk.CmdEndRenderPass(cb.Handle)
	cb.State = COMMAND_BUFFER_STATE_RECORDING
}
