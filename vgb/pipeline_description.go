package vgb

import "github.com/vkngwrapper/core/v2/core1_0"

// MaxRenderTargets is the number of color attachments a pipeline can write
const MaxRenderTargets = 8

// DefaultResourceGroup is the resource group reflection reports for bindings that do not
// name one
const DefaultResourceGroup = "Globals"

type ShaderStage int32

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageHull
	ShaderStageDomain
	ShaderStageGeometry
	ShaderStagePixel
	ShaderStageCompute
)

// ShaderStageBytecode is one compiled stage of an effect
type ShaderStageBytecode struct {
	Stage ShaderStage
	// Code is the SPIR-V module for the stage
	Code []uint32
	// ResourceBindings maps each resource name the stage declares to the binding index the
	// compiler assigned it
	ResourceBindings map[string]int
	// InputAttributeNames maps vertex input locations to attribute names. It is only
	// populated for vertex stages.
	InputAttributeNames map[int]string
}

// ResourceBinding is one entry of an effect's reflection: a named resource and the resource
// group it belongs to
type ResourceBinding struct {
	Name          string
	ResourceGroup string
}

// EffectBytecode is the compiled form of an effect: its stages plus the reflection needed to
// lay out its resources
type EffectBytecode struct {
	Stages           []ShaderStageBytecode
	ResourceBindings []ResourceBinding
}

// EffectParameterClass is the kind of resource a layout entry binds
type EffectParameterClass int32

const (
	ParameterClassConstantBuffer EffectParameterClass = iota
	ParameterClassSampler
	ParameterClassShaderResourceView
	ParameterClassUnorderedAccessView
)

// EffectParameterType is the shape of a layout entry, or the element type of a buffer or
// texture
type EffectParameterType int32

const (
	ParameterTypeVoid EffectParameterType = iota
	ParameterTypeBool
	ParameterTypeInt
	ParameterTypeUInt
	ParameterTypeFloat
	ParameterTypeDouble
	ParameterTypeTexture
	ParameterTypeTexture1D
	ParameterTypeTexture2D
	ParameterTypeTexture3D
	ParameterTypeTextureCube
	ParameterTypeTexture1DArray
	ParameterTypeTexture2DArray
	ParameterTypeTextureCubeArray
	ParameterTypeBuffer
	ParameterTypeSampler
	ParameterTypeConstantBuffer
)

func (t EffectParameterType) isTexture() bool {
	return t >= ParameterTypeTexture && t <= ParameterTypeTextureCubeArray
}

// DescriptorSetLayoutEntry is one logical binding of a resource group
type DescriptorSetLayoutEntry struct {
	Name        string
	Class       EffectParameterClass
	Type        EffectParameterType
	ElementType EffectParameterType
	// ArraySize is the descriptor count of the binding. If this value is 0, 1 is used.
	ArraySize int
	// ImmutableSampler is baked into the layout when set. The binding is then never written
	// per draw.
	ImmutableSampler *SamplerState
}

// DescriptorSetLayoutDescription is the layout of one resource group
type DescriptorSetLayoutDescription struct {
	Name    string
	Entries []DescriptorSetLayoutEntry
}

// RootSignature lists the resource group layouts an effect was compiled against
type RootSignature struct {
	Layouts []DescriptorSetLayoutDescription
	// DefaultSetSlot names the layout that resources in the default resource group belong to
	DefaultSetSlot string
}

func (r *RootSignature) layoutIndex(name string) int {
	for index, layout := range r.Layouts {
		if layout.Name == name {
			return index
		}
	}
	return -1
}

type Blend int32

const (
	BlendZero Blend = iota
	BlendOne
	BlendSourceColor
	BlendInverseSourceColor
	BlendSourceAlpha
	BlendInverseSourceAlpha
	BlendDestinationAlpha
	BlendInverseDestinationAlpha
	BlendDestinationColor
	BlendInverseDestinationColor
	BlendSourceAlphaSaturate
	BlendBlendFactor
	BlendInverseBlendFactor
	BlendSecondarySourceColor
	BlendInverseSecondarySourceColor
	BlendSecondarySourceAlpha
	BlendInverseSecondarySourceAlpha
)

type BlendFunction int32

const (
	BlendFunctionAdd BlendFunction = iota
	BlendFunctionSubtract
	BlendFunctionReverseSubtract
	BlendFunctionMin
	BlendFunctionMax
)

// RenderTargetBlendDescription is the blending of a single render target
type RenderTargetBlendDescription struct {
	BlendEnable           bool
	ColorSourceBlend      Blend
	ColorDestinationBlend Blend
	ColorBlendFunction    BlendFunction
	AlphaSourceBlend      Blend
	AlphaDestinationBlend Blend
	AlphaBlendFunction    BlendFunction
	ColorWriteChannels    ColorWriteChannels
}

// BlendStateDescription is the blending of every render target. Unless IndependentBlendEnable
// is set, RenderTargets[0] applies to all targets.
type BlendStateDescription struct {
	AlphaToCoverageEnable  bool
	IndependentBlendEnable bool
	RenderTargets          [MaxRenderTargets]RenderTargetBlendDescription
}

// BlendStateDefault writes every channel of every render target with blending disabled
func BlendStateDefault() BlendStateDescription {
	var description BlendStateDescription
	for index := range description.RenderTargets {
		description.RenderTargets[index] = RenderTargetBlendDescription{
			ColorSourceBlend:      BlendOne,
			ColorDestinationBlend: BlendZero,
			ColorBlendFunction:    BlendFunctionAdd,
			AlphaSourceBlend:      BlendOne,
			AlphaDestinationBlend: BlendZero,
			AlphaBlendFunction:    BlendFunctionAdd,
			ColorWriteChannels:    ColorWriteAll,
		}
	}
	return description
}

// renderTarget returns the blending in effect for a render target
func (d *BlendStateDescription) renderTarget(index int) *RenderTargetBlendDescription {
	if d.IndependentBlendEnable {
		return &d.RenderTargets[index]
	}
	return &d.RenderTargets[0]
}

type FillMode int32

const (
	FillSolid FillMode = iota
	FillWireframe
)

type CullMode int32

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

type RasterizerStateDescription struct {
	FillMode                  FillMode
	CullMode                  CullMode
	FrontFaceCounterClockwise bool
	DepthBias                 float32
	DepthBiasClamp            float32
	SlopeScaleDepthBias       float32
	DepthClipEnable           bool
	// ScissorTestEnable makes CommandList.SetScissorRectangle authoritative. Otherwise the
	// scissor follows the viewport.
	ScissorTestEnable bool
}

// RasterizerStateCullBack fills solid triangles and culls clockwise back faces
func RasterizerStateCullBack() RasterizerStateDescription {
	return RasterizerStateDescription{
		FillMode:        FillSolid,
		CullMode:        CullBack,
		DepthClipEnable: true,
	}
}

type CompareFunction int32

const (
	CompareNever CompareFunction = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

type StencilOperation int32

const (
	StencilOperationKeep StencilOperation = iota
	StencilOperationZero
	StencilOperationReplace
	StencilOperationIncrementSaturation
	StencilOperationDecrementSaturation
	StencilOperationInvert
	StencilOperationIncrement
	StencilOperationDecrement
)

// DepthStencilStencilOpDescription is the stencil behavior of one face
type DepthStencilStencilOpDescription struct {
	StencilFail            StencilOperation
	StencilDepthBufferFail StencilOperation
	StencilPass            StencilOperation
	StencilFunction        CompareFunction
}

type DepthStencilStateDescription struct {
	DepthBufferEnable      bool
	DepthBufferWriteEnable bool
	DepthBufferFunction    CompareFunction
	StencilEnable          bool
	StencilMask            uint8
	StencilWriteMask       uint8
	FrontFace              DepthStencilStencilOpDescription
	BackFace               DepthStencilStencilOpDescription
}

// DepthStencilStateDefault tests and writes depth with a less-equal comparison and leaves
// stencil disabled
func DepthStencilStateDefault() DepthStencilStateDescription {
	face := DepthStencilStencilOpDescription{
		StencilFail:            StencilOperationKeep,
		StencilDepthBufferFail: StencilOperationKeep,
		StencilPass:            StencilOperationKeep,
		StencilFunction:        CompareAlways,
	}
	return DepthStencilStateDescription{
		DepthBufferEnable:      true,
		DepthBufferWriteEnable: true,
		DepthBufferFunction:    CompareLessEqual,
		StencilMask:            0xff,
		StencilWriteMask:       0xff,
		FrontFace:              face,
		BackFace:               face,
	}
}

type InputClassification int32

const (
	InputPerVertex InputClassification = iota
	InputPerInstance
)

// InputElementDescription is one vertex attribute as laid out in a vertex buffer
type InputElementDescription struct {
	SemanticName         string
	SemanticIndex        int
	Format               core1_0.Format
	InputSlot            int
	AlignedByteOffset    int
	InputSlotClass       InputClassification
	InstanceDataStepRate int
}

type PrimitiveType int32

const (
	PrimitivePointList PrimitiveType = iota
	PrimitiveLineList
	PrimitiveLineStrip
	PrimitiveTriangleList
	PrimitiveTriangleStrip
	PrimitiveLineListWithAdjacency
	PrimitiveLineStripWithAdjacency
	PrimitiveTriangleListWithAdjacency
	PrimitiveTriangleStripWithAdjacency
	PrimitivePatchList
)

// RenderOutputDescription is the attachment layout a pipeline renders into
type RenderOutputDescription struct {
	RenderTargetCount   int
	RenderTargetFormats [MaxRenderTargets]core1_0.Format
	// DepthStencilFormat is the requested depth format. 0 means the pipeline has no depth
	// attachment.
	DepthStencilFormat core1_0.Format
	MultisampleCount   core1_0.SampleCountFlags
}

// PipelineStateDescription is everything NewPipelineState needs to build a graphics pipeline
type PipelineStateDescription struct {
	RootSignature     *RootSignature
	EffectBytecode    *EffectBytecode
	BlendState        BlendStateDescription
	RasterizerState   RasterizerStateDescription
	DepthStencilState DepthStencilStateDescription
	InputElements     []InputElementDescription
	PrimitiveType     PrimitiveType
	Output            RenderOutputDescription
}

func (d PipelineStateDescription) clone() PipelineStateDescription {
	d.InputElements = append([]InputElementDescription(nil), d.InputElements...)
	return d
}
