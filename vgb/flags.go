package vgb

import "github.com/vkngwrapper/core/v2/common"

// CreateFlags indicate specific device behaviors to activate or deactivate
type CreateFlags int32

var deviceCreateFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	deviceCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return deviceCreateFlagsMapping.FlagsToString(f)
}

const (
	// DeviceCreateExternallySynchronized ensures that the device and all objects created from it
	// will not be synchronized internally. The consumer must guarantee they are used from only one
	// thread at a time or are synchronized by some other mechanism.
	DeviceCreateExternallySynchronized CreateFlags = 1 << iota
	// DeviceCreateSkipFallbackResources skips creation of the empty texture, texel buffers, and
	// samplers that are bound in place of missing descriptor set entries. Draws that leave an
	// entry empty will fail validation.
	DeviceCreateSkipFallbackResources
)

func init() {
	DeviceCreateExternallySynchronized.Register("DeviceCreateExternallySynchronized")
	DeviceCreateSkipFallbackResources.Register("DeviceCreateSkipFallbackResources")
}

// TextureFlags describe how a texture will be bound to the pipeline
type TextureFlags int32

var textureFlagsMapping = common.NewFlagStringMapping[TextureFlags]()

func (f TextureFlags) Register(str string) {
	textureFlagsMapping.Register(f, str)
}
func (f TextureFlags) String() string {
	return textureFlagsMapping.FlagsToString(f)
}

const (
	// TextureShaderResource allows the texture to be sampled from shaders
	TextureShaderResource TextureFlags = 1 << iota
	// TextureRenderTarget allows the texture to be used as a color attachment
	TextureRenderTarget
	// TextureDepthStencil allows the texture to be used as a depth-stencil attachment
	TextureDepthStencil
	// TextureUnorderedAccess allows the texture to be written from shaders
	TextureUnorderedAccess
)

func init() {
	TextureShaderResource.Register("TextureShaderResource")
	TextureRenderTarget.Register("TextureRenderTarget")
	TextureDepthStencil.Register("TextureDepthStencil")
	TextureUnorderedAccess.Register("TextureUnorderedAccess")
}

// BufferFlags describe how a buffer will be bound to the pipeline
type BufferFlags int32

var bufferFlagsMapping = common.NewFlagStringMapping[BufferFlags]()

func (f BufferFlags) Register(str string) {
	bufferFlagsMapping.Register(f, str)
}
func (f BufferFlags) String() string {
	return bufferFlagsMapping.FlagsToString(f)
}

const (
	BufferConstantBuffer BufferFlags = 1 << iota
	BufferIndexBuffer
	BufferVertexBuffer
	BufferRenderTarget
	BufferShaderResource
	BufferUnorderedAccess
	BufferStructuredBuffer
	BufferRawBuffer
	BufferArgumentBuffer
	BufferStreamOutput
)

func init() {
	BufferConstantBuffer.Register("BufferConstantBuffer")
	BufferIndexBuffer.Register("BufferIndexBuffer")
	BufferVertexBuffer.Register("BufferVertexBuffer")
	BufferRenderTarget.Register("BufferRenderTarget")
	BufferShaderResource.Register("BufferShaderResource")
	BufferUnorderedAccess.Register("BufferUnorderedAccess")
	BufferStructuredBuffer.Register("BufferStructuredBuffer")
	BufferRawBuffer.Register("BufferRawBuffer")
	BufferArgumentBuffer.Register("BufferArgumentBuffer")
	BufferStreamOutput.Register("BufferStreamOutput")
}

// ClearFlags select the aspects cleared by CommandList.ClearDepthStencil
type ClearFlags int32

var clearFlagsMapping = common.NewFlagStringMapping[ClearFlags]()

func (f ClearFlags) Register(str string) {
	clearFlagsMapping.Register(f, str)
}
func (f ClearFlags) String() string {
	return clearFlagsMapping.FlagsToString(f)
}

const (
	ClearDepth ClearFlags = 1 << iota
	ClearStencil
)

func init() {
	ClearDepth.Register("ClearDepth")
	ClearStencil.Register("ClearStencil")
}

// ColorWriteChannels select the color components a render target writes
type ColorWriteChannels int32

var colorWriteChannelsMapping = common.NewFlagStringMapping[ColorWriteChannels]()

func (f ColorWriteChannels) Register(str string) {
	colorWriteChannelsMapping.Register(f, str)
}
func (f ColorWriteChannels) String() string {
	return colorWriteChannelsMapping.FlagsToString(f)
}

const (
	ColorWriteRed ColorWriteChannels = 1 << iota
	ColorWriteGreen
	ColorWriteBlue
	ColorWriteAlpha

	ColorWriteAll = ColorWriteRed | ColorWriteGreen | ColorWriteBlue | ColorWriteAlpha
)

func init() {
	ColorWriteRed.Register("ColorWriteRed")
	ColorWriteGreen.Register("ColorWriteGreen")
	ColorWriteBlue.Register("ColorWriteBlue")
	ColorWriteAlpha.Register("ColorWriteAlpha")
}
