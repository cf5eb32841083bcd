package vgb

import "github.com/vkngwrapper/core/v2/core1_0"

// CreateOptions contains optional settings when creating a Device
type CreateOptions struct {
	// Flags indicates specific device behaviors to activate or deactivate
	Flags CreateFlags
	// QueueFamilyIndex is the queue family whose first queue receives every submission. The
	// command pools are created against this family.
	QueueFamilyIndex int
	// UploadBufferSize is the minimum size in bytes of each upload buffer. If this value is
	// 0, 4 MiB is used.
	UploadBufferSize int
	// MaxDescriptorSetCount is the number of descriptor sets each descriptor pool can allocate
	// before a command list retires it and acquires a fresh one. If this value is 0, 256 is used.
	MaxDescriptorSetCount int
	// DescriptorTypeLimits overrides the number of descriptors of each type in a descriptor
	// pool. Types that are not present use the default limits.
	DescriptorTypeLimits map[core1_0.DescriptorType]int
}

const defaultMaxDescriptorSetCount = 256

// descriptorTypeCount covers every core 1.0 descriptor type, Sampler through InputAttachment
const descriptorTypeCount = 11

// descriptorTypeCounts holds one count per descriptor type, indexed by core1_0.DescriptorType
type descriptorTypeCounts [descriptorTypeCount]int

var defaultDescriptorTypeLimits = descriptorTypeCounts{
	core1_0.DescriptorTypeSampler:              256,
	core1_0.DescriptorTypeCombinedImageSampler: 0,
	core1_0.DescriptorTypeSampledImage:         512,
	core1_0.DescriptorTypeStorageImage:         64,
	core1_0.DescriptorTypeUniformTexelBuffer:   64,
	core1_0.DescriptorTypeStorageTexelBuffer:   64,
	core1_0.DescriptorTypeUniformBuffer:        512,
	core1_0.DescriptorTypeStorageBuffer:        64,
	core1_0.DescriptorTypeUniformBufferDynamic: 0,
	core1_0.DescriptorTypeStorageBufferDynamic: 0,
	core1_0.DescriptorTypeInputAttachment:      0,
}

func (o CreateOptions) withDefaults() CreateOptions {
	if o.UploadBufferSize <= 0 {
		o.UploadBufferSize = DefaultUploadBufferSize
	}
	if o.MaxDescriptorSetCount <= 0 {
		o.MaxDescriptorSetCount = defaultMaxDescriptorSetCount
	}
	return o
}

func (o CreateOptions) descriptorTypeLimits() descriptorTypeCounts {
	limits := defaultDescriptorTypeLimits
	for descriptorType, limit := range o.DescriptorTypeLimits {
		if int(descriptorType) < 0 || int(descriptorType) >= descriptorTypeCount {
			continue
		}
		limits[descriptorType] = limit
	}
	return limits
}
