package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// SamplerCreate builds a sampler for the state. Anisotropy is clamped to
// the device limit and only enabled when the device supports it.
func SamplerCreate(context *Context, state metadata.SamplerState) (vk.Sampler, error) {
	limits := context.Device.Properties.Limits
	anisotropy := min(float32(max(1, state.MaxAnisotropy)), limits.MaxSamplerAnisotropy)
	anisotropyEnable := context.Device.Features.SamplerAnisotropy == vk.True && anisotropy > 1

	maxLod := float32(state.MaxLod)
	if state.MipmapFilter == metadata.FilterNone {
		// Sample the base level only.
		maxLod = 0.25
	}

	createInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vkFilter(state.MagFilter),
		MinFilter:               vkFilter(state.MinFilter),
		MipmapMode:              vkMipmapMode(state.MipmapFilter),
		AddressModeU:            vkAddressMode(state.WrapU),
		AddressModeV:            vkAddressMode(state.WrapV),
		AddressModeW:            vkAddressMode(state.WrapW),
		MipLodBias:              state.LodBias,
		AnisotropyEnable:        boolToVk(anisotropyEnable),
		MaxAnisotropy:           anisotropy,
		CompareEnable:           boolToVk(state.DepthCompare),
		CompareOp:               vkCompareOp(state.CompareMode),
		MinLod:                  float32(state.MinLod),
		MaxLod:                  maxLod,
		BorderColor:             vkBorderColor(state),
		UnnormalizedCoordinates: vk.False,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &createInfo, context.Allocator, &sampler); res != vk.Success {
		return sampler, vkError("vkCreateSampler", res)
	}
	return sampler, nil
}

func SamplerDestroy(context *Context, sampler vk.Sampler) {
	if sampler != nil {
		vk.DestroySampler(context.Device.LogicalDevice, sampler, context.Allocator)
	}
}
