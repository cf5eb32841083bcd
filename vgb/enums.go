package vgb

import "fmt"

// GraphicsResourceUsage describes how the CPU and GPU will access a resource over its lifetime
type GraphicsResourceUsage int32

const (
	// UsageDefault resources are read and written by the GPU only
	UsageDefault GraphicsResourceUsage = iota
	// UsageImmutable resources are initialized once at creation and then only read by the GPU
	UsageImmutable
	// UsageDynamic resources are written by the CPU and read by the GPU
	UsageDynamic
	// UsageStaging resources live in host-visible memory and exist to move data between the CPU
	// and GPU resources
	UsageStaging
)

var graphicsResourceUsageMapping = map[GraphicsResourceUsage]string{}

func init() {
	graphicsResourceUsageMapping[UsageDefault] = "UsageDefault"
	graphicsResourceUsageMapping[UsageImmutable] = "UsageImmutable"
	graphicsResourceUsageMapping[UsageDynamic] = "UsageDynamic"
	graphicsResourceUsageMapping[UsageStaging] = "UsageStaging"
}

func (u GraphicsResourceUsage) String() string {
	return graphicsResourceUsageMapping[u]
}

// Ownership records whether a resource owns its native handles
type Ownership int32

const (
	// OwnershipOwning resources created their image or buffer and memory and release them on Destroy
	OwnershipOwning Ownership = iota
	// OwnershipAliased resources are views over a parent texture's image and memory
	OwnershipAliased
	// OwnershipExternal resources wrap an image owned by someone else, such as a swapchain
	OwnershipExternal
)

var ownershipMapping = map[Ownership]string{}

func init() {
	ownershipMapping[OwnershipOwning] = "OwnershipOwning"
	ownershipMapping[OwnershipAliased] = "OwnershipAliased"
	ownershipMapping[OwnershipExternal] = "OwnershipExternal"
}

func (o Ownership) String() string {
	return ownershipMapping[o]
}

// ResourceState is the engine-level state a texture is transitioned into by
// CommandList.ResourceBarrierTransition
type ResourceState int32

const (
	ResourceStateCommon ResourceState = iota
	ResourceStateVertexAndConstantBuffer
	ResourceStateIndexBuffer
	ResourceStateRenderTarget
	ResourceStateUnorderedAccess
	ResourceStateDepthWrite
	ResourceStateDepthRead
	ResourceStateNonPixelShaderResource
	ResourceStatePixelShaderResource
	ResourceStateStreamOut
	ResourceStateIndirectArgument
	ResourceStateCopyDestination
	ResourceStateCopySource
	ResourceStateGenericRead
	ResourceStatePresent
)

var resourceStateMapping = map[ResourceState]string{}

func init() {
	resourceStateMapping[ResourceStateCommon] = "ResourceStateCommon"
	resourceStateMapping[ResourceStateVertexAndConstantBuffer] = "ResourceStateVertexAndConstantBuffer"
	resourceStateMapping[ResourceStateIndexBuffer] = "ResourceStateIndexBuffer"
	resourceStateMapping[ResourceStateRenderTarget] = "ResourceStateRenderTarget"
	resourceStateMapping[ResourceStateUnorderedAccess] = "ResourceStateUnorderedAccess"
	resourceStateMapping[ResourceStateDepthWrite] = "ResourceStateDepthWrite"
	resourceStateMapping[ResourceStateDepthRead] = "ResourceStateDepthRead"
	resourceStateMapping[ResourceStateNonPixelShaderResource] = "ResourceStateNonPixelShaderResource"
	resourceStateMapping[ResourceStatePixelShaderResource] = "ResourceStatePixelShaderResource"
	resourceStateMapping[ResourceStateStreamOut] = "ResourceStateStreamOut"
	resourceStateMapping[ResourceStateIndirectArgument] = "ResourceStateIndirectArgument"
	resourceStateMapping[ResourceStateCopyDestination] = "ResourceStateCopyDestination"
	resourceStateMapping[ResourceStateCopySource] = "ResourceStateCopySource"
	resourceStateMapping[ResourceStateGenericRead] = "ResourceStateGenericRead"
	resourceStateMapping[ResourceStatePresent] = "ResourceStatePresent"
}

func (s ResourceState) String() string {
	return resourceStateMapping[s]
}

// MapMode selects how CommandList.MapSubresource will access resource memory
type MapMode int32

const (
	MapRead MapMode = iota
	MapWrite
	MapReadWrite
	// MapWriteDiscard requires buffer renaming, which this backend does not perform
	MapWriteDiscard
	MapWriteNoOverwrite
)

var mapModeMapping = map[MapMode]string{}

func init() {
	mapModeMapping[MapRead] = "MapRead"
	mapModeMapping[MapWrite] = "MapWrite"
	mapModeMapping[MapReadWrite] = "MapReadWrite"
	mapModeMapping[MapWriteDiscard] = "MapWriteDiscard"
	mapModeMapping[MapWriteNoOverwrite] = "MapWriteNoOverwrite"
}

func (m MapMode) String() string {
	return mapModeMapping[m]
}

func (m MapMode) reads() bool {
	return m == MapRead || m == MapReadWrite
}

// DeviceStatus reports the health of the native device
type DeviceStatus int32

const (
	DeviceStatusNormal DeviceStatus = iota
	// DeviceStatusReset is reported while Device.Recreate is rebuilding native objects
	DeviceStatusReset
	// DeviceStatusRemoved is reported once the driver has reported the device lost
	DeviceStatusRemoved
	DeviceStatusHung
	DeviceStatusInternalError
)

var deviceStatusMapping = map[DeviceStatus]string{}

func init() {
	deviceStatusMapping[DeviceStatusNormal] = "DeviceStatusNormal"
	deviceStatusMapping[DeviceStatusReset] = "DeviceStatusReset"
	deviceStatusMapping[DeviceStatusRemoved] = "DeviceStatusRemoved"
	deviceStatusMapping[DeviceStatusHung] = "DeviceStatusHung"
	deviceStatusMapping[DeviceStatusInternalError] = "DeviceStatusInternalError"
}

func (s DeviceStatus) String() string {
	return deviceStatusMapping[s]
}

// TextureDimension is the shape of a texture's image
type TextureDimension int32

const (
	Texture1D TextureDimension = iota
	Texture2D
	Texture3D
	TextureCube
)

var textureDimensionMapping = map[TextureDimension]string{}

func init() {
	textureDimensionMapping[Texture1D] = "Texture1D"
	textureDimensionMapping[Texture2D] = "Texture2D"
	textureDimensionMapping[Texture3D] = "Texture3D"
	textureDimensionMapping[TextureCube] = "TextureCube"
}

func (d TextureDimension) String() string {
	str, ok := textureDimensionMapping[d]
	if !ok {
		return fmt.Sprintf("TextureDimension(%d)", int32(d))
	}
	return str
}

// RecreateStage orders the objects rebuilt by Device.Recreate. Lower stages are rebuilt first.
type RecreateStage int32

const (
	RecreateStageMemory RecreateStage = iota
	RecreateStageResources
	RecreateStagePipelines
	RecreateStageCommandLists

	recreateStageCount
)

var recreateStageMapping = map[RecreateStage]string{}

func init() {
	recreateStageMapping[RecreateStageMemory] = "RecreateStageMemory"
	recreateStageMapping[RecreateStageResources] = "RecreateStageResources"
	recreateStageMapping[RecreateStagePipelines] = "RecreateStagePipelines"
	recreateStageMapping[RecreateStageCommandLists] = "RecreateStageCommandLists"
}

func (s RecreateStage) String() string {
	return recreateStageMapping[s]
}
