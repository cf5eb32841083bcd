package vgb

import (
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// Resource is a texture or buffer created from a Device
type Resource interface {
	Name() string
	Usage() GraphicsResourceUsage
	Destroy()

	base() *graphicsResource
}

// graphicsResource holds the state shared by textures and buffers
type graphicsResource struct {
	device *Device
	name   string
	usage  GraphicsResourceUsage

	// The access and stage masks of the last barrier issued against the resource
	accessMask core1_0.AccessFlags
	stageMask  core1_0.PipelineStageFlags

	// Staging resources remember the submission that last wrote them so that mapping them
	// for read can wait on it
	stagingFenceValue uint64
	stagingBuilder    *CommandList

	// initialized is false until the resource has been written on the GPU at least once.
	// Uninitialized render targets are cleared on first use.
	initialized bool
	destroyed   bool
}

func newGraphicsResource(device *Device, name string, usage GraphicsResourceUsage) graphicsResource {
	if name == "" {
		name = uuid.NewString()
	}

	return graphicsResource{
		device: device,
		name:   name,
		usage:  usage,
	}
}

func (r *graphicsResource) base() *graphicsResource { return r }

// Name is the debug name given at creation, or a generated UUID if none was given
func (r *graphicsResource) Name() string { return r.name }

func (r *graphicsResource) Usage() GraphicsResourceUsage { return r.usage }

// IsInitialized reports whether the GPU has written the resource since it was created
func (r *graphicsResource) IsInitialized() bool { return r.initialized }

// AccessMask is the destination access mask of the last barrier issued against the resource
func (r *graphicsResource) AccessMask() core1_0.AccessFlags { return r.accessMask }

// StageMask is the destination stage mask of the last barrier issued against the resource
func (r *graphicsResource) StageMask() core1_0.PipelineStageFlags { return r.stageMask }

// StagingFenceValue is the submission that last wrote this staging resource
func (r *graphicsResource) StagingFenceValue() uint64 { return r.stagingFenceValue }

// shouldRecreate reports whether Recreate can rebuild the resource. Default and immutable
// resources cannot be repopulated without their original data, so only attachments are rebuilt.
func shouldRecreate(usage GraphicsResourceUsage, attachment bool) bool {
	if (usage == UsageDefault || usage == UsageImmutable) && !attachment {
		return false
	}
	return true
}
