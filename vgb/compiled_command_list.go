package vgb

import (
	"github.com/vkngwrapper/core/v2/core1_0"
)

// CompiledCommandList is a closed command list waiting to be executed. It owns the native
// objects the recording used until Device.ExecuteCommandLists hands them back under the
// submission's value.
type CompiledCommandList struct {
	builder          *CommandList
	commandBuffer    core1_0.CommandBuffer
	descriptorPools  []core1_0.DescriptorPool
	framebuffers     []core1_0.Framebuffer
	stagingResources []Resource
	submitted        bool
}

// Builder is the command list that recorded this list
func (l *CompiledCommandList) Builder() *CommandList { return l.builder }

// release returns the list's objects to the device once it has been submitted as value
func (l *CompiledCommandList) release(d *Device, value uint64) {
	d.commandBuffers.Release(value, l.commandBuffer)
	for _, pool := range l.descriptorPools {
		d.descriptorPools.Release(value, pool)
	}
	for _, framebuffer := range l.framebuffers {
		d.collector.Add(value, NativeFramebuffer(framebuffer))
	}
	for _, resource := range l.stagingResources {
		base := resource.base()
		base.stagingFenceValue = value
		base.stagingBuilder = nil
	}

	l.descriptorPools = nil
	l.framebuffers = nil
	l.stagingResources = nil
	l.submitted = true
}

// abandon returns the list's objects to the device without submitting it. The command
// buffer's contents are discarded when it is next acquired.
func (l *CompiledCommandList) abandon(d *Device) {
	if l.commandBuffer != nil {
		d.commandBuffers.Release(0, l.commandBuffer)
		l.commandBuffer = nil
	}
	for _, pool := range l.descriptorPools {
		d.descriptorPools.Release(0, pool)
	}
	for _, framebuffer := range l.framebuffers {
		d.Collect(NativeFramebuffer(framebuffer))
	}
	for _, resource := range l.stagingResources {
		resource.base().stagingBuilder = nil
	}

	l.descriptorPools = nil
	l.framebuffers = nil
	l.stagingResources = nil
}
