package vgb

import (
	"github.com/vkngwrapper/core/v2/core1_0"
)

var fillModes = map[FillMode]core1_0.PolygonMode{
	FillSolid:     core1_0.PolygonModeFill,
	FillWireframe: core1_0.PolygonModeLine,
}

var cullModes = map[CullMode]core1_0.CullModeFlags{
	CullNone:  0,
	CullFront: core1_0.CullModeFront,
	CullBack:  core1_0.CullModeBack,
}

var primitiveTopologies = map[PrimitiveType]core1_0.PrimitiveTopology{
	PrimitivePointList:                  core1_0.PrimitiveTopologyPointList,
	PrimitiveLineList:                   core1_0.PrimitiveTopologyLineList,
	PrimitiveLineStrip:                  core1_0.PrimitiveTopologyLineStrip,
	PrimitiveTriangleList:               core1_0.PrimitiveTopologyTriangleList,
	PrimitiveTriangleStrip:              core1_0.PrimitiveTopologyTriangleStrip,
	PrimitiveLineListWithAdjacency:      core1_0.PrimitiveTopologyLineListWithAdjacency,
	PrimitiveLineStripWithAdjacency:     core1_0.PrimitiveTopologyLineStripWithAdjacency,
	PrimitiveTriangleListWithAdjacency:  core1_0.PrimitiveTopologyTriangleListWithAdjacency,
	PrimitiveTriangleStripWithAdjacency: core1_0.PrimitiveTopologyTriangleStripWithAdjacency,
	PrimitivePatchList:                  core1_0.PrimitiveTopologyPatchList,
}

var shaderStages = map[ShaderStage]core1_0.ShaderStageFlags{
	ShaderStageVertex:   core1_0.StageVertex,
	ShaderStageHull:     core1_0.StageTessellationControl,
	ShaderStageDomain:   core1_0.StageTessellationEvaluation,
	ShaderStageGeometry: core1_0.StageGeometry,
	ShaderStagePixel:    core1_0.StageFragment,
	ShaderStageCompute:  core1_0.StageCompute,
}

var compareOps = map[CompareFunction]core1_0.CompareOp{
	CompareNever:        core1_0.CompareOpNever,
	CompareLess:         core1_0.CompareOpLess,
	CompareEqual:        core1_0.CompareOpEqual,
	CompareLessEqual:    core1_0.CompareOpLessOrEqual,
	CompareGreater:      core1_0.CompareOpGreater,
	CompareNotEqual:     core1_0.CompareOpNotEqual,
	CompareGreaterEqual: core1_0.CompareOpGreaterOrEqual,
	CompareAlways:       core1_0.CompareOpAlways,
}

var stencilOps = map[StencilOperation]core1_0.StencilOp{
	StencilOperationKeep:                core1_0.StencilKeep,
	StencilOperationZero:                core1_0.StencilZero,
	StencilOperationReplace:             core1_0.StencilReplace,
	StencilOperationIncrementSaturation: core1_0.StencilIncrementAndClamp,
	StencilOperationDecrementSaturation: core1_0.StencilDecrementAndClamp,
	StencilOperationInvert:              core1_0.StencilInvert,
	StencilOperationIncrement:           core1_0.StencilIncrementAndWrap,
	StencilOperationDecrement:           core1_0.StencilDecrementAndWrap,
}

var blendOps = map[BlendFunction]core1_0.BlendOp{
	BlendFunctionAdd:             core1_0.BlendOpAdd,
	BlendFunctionSubtract:        core1_0.BlendOpSubtract,
	BlendFunctionReverseSubtract: core1_0.BlendOp(2), // VK_BLEND_OP_REVERSE_SUBTRACT; core v2.1.3 has no named constant
	BlendFunctionMin:             core1_0.BlendOpMin,
	BlendFunctionMax:             core1_0.BlendOpMax,
}

var blendFactors = map[Blend]core1_0.BlendFactor{
	BlendZero:                        core1_0.BlendFactorZero,
	BlendOne:                         core1_0.BlendFactorOne,
	BlendSourceColor:                 core1_0.BlendFactorSrcColor,
	BlendInverseSourceColor:          core1_0.BlendFactorOneMinusSrcColor,
	BlendSourceAlpha:                 core1_0.BlendFactorSrcAlpha,
	BlendInverseSourceAlpha:          core1_0.BlendFactorOneMinusSrcAlpha,
	BlendDestinationAlpha:            core1_0.BlendFactorDstAlpha,
	BlendInverseDestinationAlpha:     core1_0.BlendFactorOneMinusDstAlpha,
	BlendDestinationColor:            core1_0.BlendFactorDstColor,
	BlendInverseDestinationColor:     core1_0.BlendFactorOneMinusDstColor,
	BlendSourceAlphaSaturate:         core1_0.BlendFactorSrcAlphaSaturate,
	BlendBlendFactor:                 core1_0.BlendFactorConstantColor,
	BlendInverseBlendFactor:          core1_0.BlendFactorOneMinusConstantColor,
	BlendSecondarySourceColor:        core1_0.BlendFactorSrc1Color,
	BlendInverseSecondarySourceColor: core1_0.BlendFactorOneMinusSrc1Color,
	BlendSecondarySourceAlpha:        core1_0.BlendFactorSrc1Alpha,
	BlendInverseSecondarySourceAlpha: core1_0.BlendFactorOneMinusSrc1Alpha,
}

func lookup[K comparable, V any](table map[K]V, key K, kind string) (V, error) {
	value, ok := table[key]
	if !ok {
		var zero V
		return zero, invalidUsage("unknown %s %d", kind, key)
	}
	return value, nil
}

// primitiveRestart reports whether strip topologies restart on the maximum index
func primitiveRestart(primitiveType PrimitiveType) bool {
	switch primitiveType {
	case PrimitivePointList, PrimitiveLineList, PrimitiveTriangleList,
		PrimitiveLineListWithAdjacency, PrimitiveTriangleListWithAdjacency, PrimitivePatchList:
		return false
	}
	return true
}

func colorComponents(channels ColorWriteChannels) core1_0.ColorComponentFlags {
	var flags core1_0.ColorComponentFlags
	if channels&ColorWriteRed != 0 {
		flags |= core1_0.ColorComponentRed
	}
	if channels&ColorWriteGreen != 0 {
		flags |= core1_0.ColorComponentGreen
	}
	if channels&ColorWriteBlue != 0 {
		flags |= core1_0.ColorComponentBlue
	}
	if channels&ColorWriteAlpha != 0 {
		flags |= core1_0.ColorComponentAlpha
	}
	return flags
}

// descriptorType maps a layout entry onto the descriptor type it is bound as
func descriptorType(class EffectParameterClass, parameterType EffectParameterType) (core1_0.DescriptorType, error) {
	switch class {
	case ParameterClassConstantBuffer:
		return core1_0.DescriptorTypeUniformBuffer, nil
	case ParameterClassSampler:
		return core1_0.DescriptorTypeSampler, nil
	case ParameterClassShaderResourceView:
		if parameterType.isTexture() {
			return core1_0.DescriptorTypeSampledImage, nil
		}
		if parameterType == ParameterTypeBuffer {
			return core1_0.DescriptorTypeUniformTexelBuffer, nil
		}
	case ParameterClassUnorderedAccessView:
		if parameterType.isTexture() {
			return core1_0.DescriptorTypeStorageImage, nil
		}
		if parameterType == ParameterTypeBuffer {
			return core1_0.DescriptorTypeStorageBuffer, nil
		}
	}
	return 0, notImplemented("descriptor binding of this parameter class and type")
}

func stencilOpState(face DepthStencilStencilOpDescription, compareMask, writeMask uint8) (core1_0.StencilOpState, error) {
	failOp, err := lookup(stencilOps, face.StencilFail, "stencil operation")
	if err != nil {
		return core1_0.StencilOpState{}, err
	}
	depthFailOp, err := lookup(stencilOps, face.StencilDepthBufferFail, "stencil operation")
	if err != nil {
		return core1_0.StencilOpState{}, err
	}
	passOp, err := lookup(stencilOps, face.StencilPass, "stencil operation")
	if err != nil {
		return core1_0.StencilOpState{}, err
	}
	compareOp, err := lookup(compareOps, face.StencilFunction, "compare function")
	if err != nil {
		return core1_0.StencilOpState{}, err
	}

	return core1_0.StencilOpState{
		FailOp:      failOp,
		PassOp:      passOp,
		DepthFailOp: depthFailOp,
		CompareOp:   compareOp,
		CompareMask: uint32(compareMask),
		WriteMask:   uint32(writeMask),
	}, nil
}

func rasterizationState(description RasterizerStateDescription) (*core1_0.PipelineRasterizationStateCreateInfo, error) {
	polygonMode, err := lookup(fillModes, description.FillMode, "fill mode")
	if err != nil {
		return nil, err
	}
	cullMode, err := lookup(cullModes, description.CullMode, "cull mode")
	if err != nil {
		return nil, err
	}

	frontFace := core1_0.FrontFaceClockwise
	if description.FrontFaceCounterClockwise {
		frontFace = core1_0.FrontFaceCounterClockwise
	}

	return &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        !description.DepthClipEnable,
		RasterizerDiscardEnable: false,
		PolygonMode:             polygonMode,
		CullMode:                cullMode,
		FrontFace:               frontFace,
		DepthBiasEnable:         description.DepthBias != 0 || description.SlopeScaleDepthBias != 0,
		DepthBiasConstantFactor: description.DepthBias,
		DepthBiasClamp:          description.DepthBiasClamp,
		DepthBiasSlopeFactor:    description.SlopeScaleDepthBias,
		LineWidth:               1.0,
	}, nil
}

func depthStencilState(description DepthStencilStateDescription) (*core1_0.PipelineDepthStencilStateCreateInfo, error) {
	depthCompareOp, err := lookup(compareOps, description.DepthBufferFunction, "compare function")
	if err != nil {
		return nil, err
	}
	front, err := stencilOpState(description.FrontFace, description.StencilMask, description.StencilWriteMask)
	if err != nil {
		return nil, err
	}
	back, err := stencilOpState(description.BackFace, description.StencilMask, description.StencilWriteMask)
	if err != nil {
		return nil, err
	}

	return &core1_0.PipelineDepthStencilStateCreateInfo{
		DepthTestEnable:   description.DepthBufferEnable,
		DepthWriteEnable:  description.DepthBufferWriteEnable,
		DepthCompareOp:    depthCompareOp,
		StencilTestEnable: description.StencilEnable,
		Front:             front,
		Back:              back,
		MinDepthBounds:    0,
		MaxDepthBounds:    1,
	}, nil
}

func colorBlendAttachment(description *RenderTargetBlendDescription) (core1_0.PipelineColorBlendAttachmentState, error) {
	var state core1_0.PipelineColorBlendAttachmentState
	var err error

	state.BlendEnabled = description.BlendEnable
	state.ColorWriteMask = colorComponents(description.ColorWriteChannels)

	state.SrcColorBlendFactor, err = lookup(blendFactors, description.ColorSourceBlend, "blend")
	if err != nil {
		return state, err
	}
	state.DstColorBlendFactor, err = lookup(blendFactors, description.ColorDestinationBlend, "blend")
	if err != nil {
		return state, err
	}
	state.ColorBlendOp, err = lookup(blendOps, description.ColorBlendFunction, "blend function")
	if err != nil {
		return state, err
	}
	state.SrcAlphaBlendFactor, err = lookup(blendFactors, description.AlphaSourceBlend, "blend")
	if err != nil {
		return state, err
	}
	state.DstAlphaBlendFactor, err = lookup(blendFactors, description.AlphaDestinationBlend, "blend")
	if err != nil {
		return state, err
	}
	state.AlphaBlendOp, err = lookup(blendOps, description.AlphaBlendFunction, "blend function")
	return state, err
}
