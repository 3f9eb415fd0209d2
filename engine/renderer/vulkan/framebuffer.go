package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/objcache"
)

// FramebufferCreate resolves the view IDs of the configuration and builds
// the framebuffer. Attachment order matches RenderpassCreate: colors first,
// then depth.
func FramebufferCreate(context *Context, cfg objcache.FramebufferConfiguration, renderPass vk.RenderPass, views map[core.ObjectID]vk.ImageView) (vk.Framebuffer, error) {
	attachments := make([]vk.ImageView, 0, int(cfg.ColorViewCount)+2)
	lookup := func(id core.ObjectID) error {
		view, ok := views[id]
		if !ok {
			return fmt.Errorf("%w: unknown image view %d", core.ErrObjectCreation, id)
		}
		attachments = append(attachments, view)
		return nil
	}
	for i := 0; i < int(cfg.ColorViewCount); i++ {
		if err := lookup(cfg.ColorViews[i]); err != nil {
			return vk.NullFramebuffer, err
		}
	}
	if cfg.DepthView != core.InvalidObjectID {
		if err := lookup(cfg.DepthView); err != nil {
			return vk.NullFramebuffer, err
		}
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           cfg.Width,
		Height:          cfg.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &framebuffer); res != vk.Success {
		return vk.NullFramebuffer, vkError("vkCreateFramebuffer", res)
	}
	return framebuffer, nil
}

func FramebufferDestroy(context *Context, framebuffer vk.Framebuffer) {
	if framebuffer != vk.NullFramebuffer {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, framebuffer, context.Allocator)
	}
}
