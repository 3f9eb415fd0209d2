package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/spaghettifunk/anima2d/engine/renderer/objcache"
)

// PushConstants is the per-draw block every shader declares:
//
//	layout(push_constant) uniform Draw {
//		mat4 mvp;
//		vec4 color;
//		float pointSize;
//	};
type PushConstants struct {
	MVP       math.Mat4
	Color     [4]float32
	PointSize float32
}

const (
	pushConstantsSize  = uint32(unsafe.Sizeof(PushConstants{}))
	pushConstantStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit | vk.ShaderStageComputeBit)

	// defaultAttributeBinding feeds disabled attributes from a constant
	// buffer with a zero stride.
	defaultAttributeBinding = metadata.MaxVertexBuffers
)

// Byte offsets of the defaults inside the default attribute buffer.
var defaultAttributeOffsets = [metadata.VertexAttributeMax]uint32{
	metadata.VertexAttributePosition: 0,
	metadata.VertexAttributeTexCoord: 8,
	metadata.VertexAttributeColor:    16,
}

// defaultAttributeData is position (0, 0), texcoord (0, 0) and opaque white.
var defaultAttributeData = []byte{
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
	0xff, 0xff, 0xff, 0xff,
}

// PipelineLayoutCreate builds the layout shared by every pipeline: one
// combined image sampler at set 0 binding 0 plus the push constant block.
func PipelineLayoutCreate(context *Context) (vk.DescriptorSetLayout, vk.PipelineLayout, error) {
	binding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit | vk.ShaderStageComputeBit),
	}
	var setLayout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{binding},
	}, context.Allocator, &setLayout); res != vk.Success {
		return setLayout, vk.NullPipelineLayout, vkError("vkCreateDescriptorSetLayout", res)
	}

	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: pushConstantStages,
			Offset:     0,
			Size:       pushConstantsSize,
		}},
	}, context.Allocator, &layout); res != vk.Success {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, setLayout, context.Allocator)
		var none vk.DescriptorSetLayout
		return none, vk.NullPipelineLayout, vkError("vkCreatePipelineLayout", res)
	}
	return setLayout, layout, nil
}

// vertexInput maps enabled attributes to their buffer slots and the
// disabled ones to the default attribute binding.
func vertexInput(va metadata.VertexAttributes) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	var bindings []vk.VertexInputBindingDescription
	var attributes []vk.VertexInputAttributeDescription
	var used [metadata.MaxVertexBuffers]bool

	for id := metadata.VertexAttributeID(0); id < metadata.VertexAttributeMax; id++ {
		if !va.IsEnabled(id) {
			attributes = append(attributes, vk.VertexInputAttributeDescription{
				Location: uint32(id),
				Binding:  defaultAttributeBinding,
				Format:   vkVertexFormat(defaultAttributeFormat(id)),
				Offset:   defaultAttributeOffsets[id],
			})
			continue
		}
		a := va.Attribs[id]
		used[a.BufferIndex] = true
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: uint32(id),
			Binding:  uint32(a.BufferIndex),
			Format:   vkVertexFormat(a.Format),
			Offset:   uint32(a.Offset),
		})
	}
	for i, u := range used {
		if u {
			bindings = append(bindings, vk.VertexInputBindingDescription{
				Binding:   uint32(i),
				Stride:    uint32(va.Strides[i]),
				InputRate: vk.VertexInputRateVertex,
			})
		}
	}
	bindings = append(bindings, vk.VertexInputBindingDescription{
		Binding:   defaultAttributeBinding,
		Stride:    0,
		InputRate: vk.VertexInputRateVertex,
	})
	return bindings, attributes
}

func defaultAttributeFormat(id metadata.VertexAttributeID) metadata.VertexDataFormat {
	if id == metadata.VertexAttributeColor {
		return metadata.VertexDataUNorm8Vec4
	}
	return metadata.VertexDataFloatVec2
}

// GraphicsPipelineCreate bakes one pipeline configuration. Viewport,
// scissor and the stencil reference and masks stay dynamic.
func GraphicsPipelineCreate(context *Context, cfg objcache.GraphicsPipelineConfiguration, shader *Shader, renderPass vk.RenderPass, layout vk.PipelineLayout, flipY bool) (vk.Pipeline, error) {
	bindings, attributes := vertexInput(cfg.VertexAttributes)
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vkPrimitive(cfg.Primitive),
		PrimitiveRestartEnable: vk.False,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vkCullMode(cfg.Dynamic.Cull),
		FrontFace:               vkFrontFace(cfg.Dynamic.Winding, flipY),
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	if cfg.Wireframe {
		rasterizer.PolygonMode = vk.PolygonModeLine
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vkSampleCount(int(cfg.MSAA)),
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}

	stencilOp := vk.StencilOpState{
		FailOp:      vk.StencilOpKeep,
		PassOp:      vkStencilOp(cfg.Dynamic.StencilAction),
		DepthFailOp: vk.StencilOpKeep,
		CompareOp:   vkCompareOp(cfg.Dynamic.StencilCompare),
	}
	stencilEnabled := cfg.Dynamic.StencilAction != metadata.StencilKeep || cfg.Dynamic.StencilCompare != metadata.CompareAlways
	depthEnabled := cfg.Dynamic.Depth.Compare != metadata.CompareAlways || cfg.Dynamic.Depth.Write
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       boolToVk(depthEnabled),
		DepthWriteEnable:      boolToVk(cfg.Dynamic.Depth.Write),
		DepthCompareOp:        vkCompareOp(cfg.Dynamic.Depth.Compare),
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     boolToVk(stencilEnabled),
		Front:                 stencilOp,
		Back:                  stencilOp,
		MinDepthBounds:        0,
		MaxDepthBounds:        1,
	}

	blend := cfg.Blend
	blendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         boolToVk(blend.Enable),
		SrcColorBlendFactor: vkBlendFactor(blend.SrcFactorRGB),
		DstColorBlendFactor: vkBlendFactor(blend.DstFactorRGB),
		ColorBlendOp:        vkBlendOp(blend.OperationRGB),
		SrcAlphaBlendFactor: vkBlendFactor(blend.SrcFactorA),
		DstAlphaBlendFactor: vkBlendFactor(blend.DstFactorA),
		AlphaBlendOp:        vkBlendOp(blend.OperationA),
		ColorWriteMask:      vkColorMask(cfg.ColorMask),
	}
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, cfg.ColorAttachmentCount)
	for i := range blendAttachments {
		blendAttachments[i] = blendAttachment
	}
	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateStencilReference,
		vk.DynamicStateStencilCompareMask,
		vk.DynamicStateStencilWriteMask,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	stages := shader.stageInfos()
	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
	}

	pipelines := make([]vk.Pipeline, 1)
	err := context.Locks.SafeCall(PipelineManagement, func() error {
		if res := vk.CreateGraphicsPipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineInfo}, context.Allocator, pipelines); res != vk.Success {
			return vkError("vkCreateGraphicsPipelines", res)
		}
		return nil
	})
	if err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

func ComputePipelineCreate(context *Context, shader *Shader, layout vk.PipelineLayout) (vk.Pipeline, error) {
	stages := shader.stageInfos()
	pipelineInfo := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  stages[0],
		Layout: layout,
	}
	pipelines := make([]vk.Pipeline, 1)
	err := context.Locks.SafeCall(PipelineManagement, func() error {
		if res := vk.CreateComputePipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.ComputePipelineCreateInfo{pipelineInfo}, context.Allocator, pipelines); res != vk.Success {
			return vkError("vkCreateComputePipelines", res)
		}
		return nil
	})
	if err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

func PipelineDestroy(context *Context, pipeline vk.Pipeline) {
	if pipeline != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline, context.Allocator)
	}
}

func PipelineBind(cb *CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cb.Handle, bindPoint, pipeline)
}
