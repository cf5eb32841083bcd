package vgb

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// Viewport, scissor, blend constants and stencil reference are set per draw by the command list
var pipelineDynamicStates = []core1_0.DynamicState{
	core1_0.DynamicStateViewport,
	core1_0.DynamicStateScissor,
	core1_0.DynamicStateBlendConstants,
	core1_0.DynamicStateStencilReference,
}

const shaderEntryPoint = "main"

// PipelineState is a graphics pipeline together with the render pass, descriptor set layout,
// and pipeline layout it was built against. It is immutable once built, but is rebuilt from
// its description by Recreate.
type PipelineState struct {
	device      *Device
	description PipelineStateDescription

	renderPass          core1_0.RenderPass
	descriptorSetLayout core1_0.DescriptorSetLayout
	layout              core1_0.PipelineLayout
	pipeline            core1_0.Pipeline

	bindingMappings    []DescriptorBindingMapping
	typeCounts         descriptorTypeCounts
	resourceGroupCount int
	destroyed          bool
}

// NewPipelineState builds a graphics pipeline. The description is copied and retained so that
// the pipeline can be rebuilt when the device is recreated.
func NewPipelineState(device *Device, description PipelineStateDescription) (*PipelineState, error) {
	if description.RootSignature == nil || description.EffectBytecode == nil {
		return nil, invalidUsage("pipeline state requires a root signature and effect bytecode")
	}

	p := &PipelineState{
		device:      device,
		description: description.clone(),
	}

	err := p.build()
	if err != nil {
		p.collectNativeObjects()
		return nil, err
	}

	device.RegisterRecreatable(p)
	return p, nil
}

func (p *PipelineState) build() error {
	description := &p.description
	p.device.logger.Debug("PipelineState::build",
		slog.Int("renderTargets", description.Output.RenderTargetCount),
		slog.Int("stages", len(description.EffectBytecode.Stages)),
		slog.Int("inputElements", len(description.InputElements)),
	)

	depthFormat, err := p.device.resolveDepthFormat(description.Output.DepthStencilFormat)
	if err != nil {
		return err
	}
	renderPassInfo, err := renderPassCreateInfo(description, depthFormat)
	if err != nil {
		return err
	}
	p.renderPass, _, err = p.device.device.CreateRenderPass(nil, renderPassInfo)
	if err != nil {
		return err
	}

	err = p.buildLayout()
	if err != nil {
		return err
	}

	var attributeNames map[int]string
	for _, stage := range description.EffectBytecode.Stages {
		if stage.Stage == ShaderStageVertex {
			attributeNames = stage.InputAttributeNames
		}
	}
	vertexInput, err := vertexInputState(description.InputElements, attributeNames)
	if err != nil {
		return err
	}

	topology, err := lookup(primitiveTopologies, description.PrimitiveType, "primitive type")
	if err != nil {
		return err
	}
	rasterization, err := rasterizationState(description.RasterizerState)
	if err != nil {
		return err
	}
	depthStencil, err := depthStencilState(description.DepthStencilState)
	if err != nil {
		return err
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{}
	for index := 0; index < description.Output.RenderTargetCount; index++ {
		attachment, err := colorBlendAttachment(description.BlendState.renderTarget(index))
		if err != nil {
			return err
		}
		colorBlend.Attachments = append(colorBlend.Attachments, attachment)
	}

	samples := description.Output.MultisampleCount
	if samples == 0 {
		samples = core1_0.Samples1
	}

	stages, modules, err := p.createShaderStages()
	// Modules are only needed until the pipeline is linked
	defer func() {
		for _, module := range modules {
			module.Destroy(nil)
		}
	}()
	if err != nil {
		return err
	}

	pipelines, _, err := p.device.device.CreateGraphicsPipelines(nil, nil, []core1_0.GraphicsPipelineCreateInfo{
		{
			Stages:           stages,
			VertexInputState: vertexInput,
			InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
				Topology:               topology,
				PrimitiveRestartEnable: primitiveRestart(description.PrimitiveType),
			},
			ViewportState: &core1_0.PipelineViewportStateCreateInfo{
				Viewports: []core1_0.Viewport{{}},
				Scissors:  []core1_0.Rect2D{{}},
			},
			RasterizationState: rasterization,
			MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
				RasterizationSamples:  samples,
				AlphaToCoverageEnable: description.BlendState.AlphaToCoverageEnable,
				MinSampleShading:      1.0,
			},
			DepthStencilState: depthStencil,
			ColorBlendState:   colorBlend,
			DynamicState: &core1_0.PipelineDynamicStateCreateInfo{
				DynamicStates: pipelineDynamicStates,
			},
			Layout:            p.layout,
			RenderPass:        p.renderPass,
			Subpass:           0,
			BasePipelineIndex: -1,
		},
	})
	if err != nil {
		return err
	}
	p.pipeline = pipelines[0]

	return nil
}

func (p *PipelineState) buildLayout() error {
	defaultSampler := p.device.PointWrapSampler()
	if defaultSampler == nil {
		return invalidUsage("pipeline layouts require the device's point-wrap sampler")
	}

	layout, err := buildPipelineLayout(p.description.RootSignature, p.description.EffectBytecode, defaultSampler)
	if err != nil {
		return err
	}

	bindings, err := layout.setLayoutBindings()
	if err != nil {
		return err
	}

	p.descriptorSetLayout, _, err = p.device.device.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: bindings,
	})
	if err != nil {
		return err
	}

	p.layout, _, err = p.device.device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{p.descriptorSetLayout},
	})
	if err != nil {
		return err
	}

	p.bindingMappings = layout.mappings
	p.typeCounts = layout.typeCounts
	p.resourceGroupCount = layout.resourceGroupCount
	return nil
}

func (p *PipelineState) createShaderStages() ([]core1_0.PipelineShaderStageCreateInfo, []core1_0.ShaderModule, error) {
	var stages []core1_0.PipelineShaderStageCreateInfo
	var modules []core1_0.ShaderModule

	for _, stage := range p.description.EffectBytecode.Stages {
		stageFlags, err := lookup(shaderStages, stage.Stage, "shader stage")
		if err != nil {
			return nil, modules, err
		}

		module, _, err := p.device.device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
			Code: stage.Code,
		})
		if err != nil {
			return nil, modules, err
		}
		modules = append(modules, module)

		stages = append(stages, core1_0.PipelineShaderStageCreateInfo{
			Stage:  stageFlags,
			Module: module,
			Name:   shaderEntryPoint,
		})
	}

	return stages, modules, nil
}

func (p *PipelineState) Description() PipelineStateDescription { return p.description }

func (p *PipelineState) NativePipeline() core1_0.Pipeline { return p.pipeline }

func (p *PipelineState) NativeLayout() core1_0.PipelineLayout { return p.layout }

func (p *PipelineState) RenderPass() core1_0.RenderPass { return p.renderPass }

func (p *PipelineState) DescriptorSetLayout() core1_0.DescriptorSetLayout {
	return p.descriptorSetLayout
}

// BindingMappings returns the logical-to-native binding table that drives descriptor writes
func (p *PipelineState) BindingMappings() []DescriptorBindingMapping { return p.bindingMappings }

// ResourceGroupCount is the number of distinct resource groups the effect reflection names
func (p *PipelineState) ResourceGroupCount() int { return p.resourceGroupCount }

// DescriptorTypeCount returns how many descriptors of a type one descriptor set of the
// pipeline consumes
func (p *PipelineState) DescriptorTypeCount(descriptorType core1_0.DescriptorType) int {
	if int(descriptorType) < 0 || int(descriptorType) >= descriptorTypeCount {
		return 0
	}
	return p.typeCounts[descriptorType]
}

func (p *PipelineState) RecreateStage() RecreateStage {
	return RecreateStagePipelines
}

// Recreate rebuilds every native object from the retained description
func (p *PipelineState) Recreate() error {
	p.device.logger.Debug("PipelineState::Recreate")

	p.collectNativeObjects()
	return p.build()
}

func (p *PipelineState) collectNativeObjects() {
	p.device.Collect(NativePipeline(p.pipeline))
	p.device.Collect(NativePipelineLayout(p.layout))
	p.device.Collect(NativeDescriptorSetLayout(p.descriptorSetLayout))
	p.device.Collect(NativeRenderPass(p.renderPass))
	p.pipeline = nil
	p.layout = nil
	p.descriptorSetLayout = nil
	p.renderPass = nil
}

// Destroy hands the pipeline, its layouts, and its render pass to the device collector
func (p *PipelineState) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true

	p.device.UnregisterRecreatable(p)
	p.collectNativeObjects()
}
