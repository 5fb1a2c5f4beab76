package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
	"github.com/spaghettifunk/dyne/engine/renderer"
)

// VulkanPipeline holds a graphics pipeline and its layout.
type VulkanPipeline struct {
	Handle         vk.Pipeline
	PipelineLayout vk.PipelineLayout

	device *VulkanDevice
	id     uuid.UUID
}

// maxPushConstantRanges: only 128 bytes are guaranteed, in 4-byte units.
const maxPushConstantRanges = 32

func vertexInputState(layout *renderer.VertexLayout) vk.PipelineVertexInputStateCreateInfo {
	info := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if layout == nil {
		return info
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(layout.Attributes))
	for i, a := range layout.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   vertexFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	info.VertexBindingDescriptionCount = 1
	info.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    layout.Stride,
		InputRate: vk.VertexInputRateVertex,
	}}
	info.VertexAttributeDescriptionCount = uint32(len(attributes))
	info.PVertexAttributeDescriptions = attributes
	return info
}

func colorBlendAttachment(alphaBlend bool) vk.PipelineColorBlendAttachmentState {
	state := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
	}
	if alphaBlend {
		state.BlendEnable = vk.True
		state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	}
	return state
}

func boolToVk(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func (d *VulkanDevice) CreatePipeline(cfg *renderer.PipelineConfig) (renderer.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.PushConstants) > maxPushConstantRanges {
		return nil, errors.Errorf("pipeline %q: cannot have more than %d push constant ranges, got %d", cfg.Name, maxPushConstantRanges, len(cfg.PushConstants))
	}
	renderPass, ok := cfg.RenderPass.(*VulkanRenderPass)
	if !ok {
		return nil, errors.Errorf("pipeline %q: render pass is a %T", cfg.Name, cfg.RenderPass)
	}

	vertexStage, err := NewShaderStage(d, cfg.VertexShader, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline %q: vertex shader", cfg.Name)
	}
	defer vertexStage.Destroy(d)
	fragmentStage, err := NewShaderStage(d, cfg.FragmentShader, vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline %q: fragment shader", cfg.Name)
	}
	defer fragmentStage.Destroy(d)

	setLayouts := make([]vk.DescriptorSetLayout, len(cfg.SetLayouts))
	for i, l := range cfg.SetLayouts {
		setLayouts[i] = l.Handle().(vk.DescriptorSetLayout)
	}
	ranges := make([]vk.PushConstantRange, len(cfg.PushConstants))
	for i, pc := range cfg.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: shaderStages(pc.Stages),
			Offset:     pc.Offset,
			Size:       pc.Size,
		}
	}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}

	p := &VulkanPipeline{device: d}
	err = d.locks.SafeCall(PipelineManagement, func() error {
		var layout vk.PipelineLayout
		if err := check(vk.CreatePipelineLayout(d.LogicalDevice, &pipelineLayoutCreateInfo, d.context.Allocator, &layout), "create pipeline layout"); err != nil {
			return err
		}
		p.PipelineLayout = layout
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline %q", cfg.Name)
	}

	// Viewport and scissor are set per frame.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		LineWidth:   1.0,
		CullMode:    cullMode(cfg.CullMode),
		FrontFace:   vk.FrontFaceClockwise,
	}
	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  boolToVk(cfg.DepthTest),
		DepthWriteEnable: boolToVk(cfg.DepthWrite),
		DepthCompareOp:   vk.CompareOpLess,
		MinDepthBounds:   0.0,
		MaxDepthBounds:   1.0,
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment(cfg.AlphaBlend)},
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	vertexInput := vertexInputState(cfg.Vertex)

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             []vk.PipelineShaderStageCreateInfo{vertexStage.ShaderStageCreateInfo, fragmentStage.ShaderStageCreateInfo},
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              p.PipelineLayout,
		RenderPass:          renderPass.Handle,
		Subpass:             cfg.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	err = d.locks.SafeCall(PipelineManagement, func() error {
		return check(vk.CreateGraphicsPipelines(d.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, d.context.Allocator, pipelines), "create graphics pipeline")
	})
	if err != nil {
		p.Destroy()
		return nil, errors.Wrapf(err, "pipeline %q", cfg.Name)
	}
	p.Handle = pipelines[0]
	p.id = d.tracker.Track("pipeline", cfg.Name)

	core.LogDebug("Graphics pipeline %q created", cfg.Name)
	return p, nil
}

func (pipeline *VulkanPipeline) Destroy() {
	d := pipeline.device
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		if pipeline.Handle != vk.NullPipeline {
			vk.DestroyPipeline(d.LogicalDevice, pipeline.Handle, d.context.Allocator)
			pipeline.Handle = vk.NullPipeline
		}
		if pipeline.PipelineLayout != vk.NullPipelineLayout {
			vk.DestroyPipelineLayout(d.LogicalDevice, pipeline.PipelineLayout, d.context.Allocator)
			pipeline.PipelineLayout = vk.NullPipelineLayout
		}
		return nil
	})
	if pipeline.id != uuid.Nil {
		_ = d.tracker.Release(pipeline.id)
		pipeline.id = uuid.Nil
	}
}
