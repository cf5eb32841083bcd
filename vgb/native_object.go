package vgb

import (
	"fmt"

	"github.com/vkngwrapper/core/v2/core1_0"
)

// ObjectKind identifies the native handle carried by a NativeObject
type ObjectKind int32

const (
	ObjectKindBuffer ObjectKind = iota
	ObjectKindBufferView
	ObjectKindImage
	ObjectKindImageView
	ObjectKindDeviceMemory
	ObjectKindSampler
	ObjectKindFramebuffer
	ObjectKindSemaphore
	ObjectKindFence
	ObjectKindQueryPool
	ObjectKindRenderPass
	ObjectKindPipeline
	ObjectKindPipelineLayout
	ObjectKindDescriptorSetLayout
)

var objectKindMapping = map[ObjectKind]string{}

func init() {
	objectKindMapping[ObjectKindBuffer] = "ObjectKindBuffer"
	objectKindMapping[ObjectKindBufferView] = "ObjectKindBufferView"
	objectKindMapping[ObjectKindImage] = "ObjectKindImage"
	objectKindMapping[ObjectKindImageView] = "ObjectKindImageView"
	objectKindMapping[ObjectKindDeviceMemory] = "ObjectKindDeviceMemory"
	objectKindMapping[ObjectKindSampler] = "ObjectKindSampler"
	objectKindMapping[ObjectKindFramebuffer] = "ObjectKindFramebuffer"
	objectKindMapping[ObjectKindSemaphore] = "ObjectKindSemaphore"
	objectKindMapping[ObjectKindFence] = "ObjectKindFence"
	objectKindMapping[ObjectKindQueryPool] = "ObjectKindQueryPool"
	objectKindMapping[ObjectKindRenderPass] = "ObjectKindRenderPass"
	objectKindMapping[ObjectKindPipeline] = "ObjectKindPipeline"
	objectKindMapping[ObjectKindPipelineLayout] = "ObjectKindPipelineLayout"
	objectKindMapping[ObjectKindDescriptorSetLayout] = "ObjectKindDescriptorSetLayout"
}

func (k ObjectKind) String() string {
	str, ok := objectKindMapping[k]
	if !ok {
		return fmt.Sprintf("ObjectKind(%d)", int32(k))
	}
	return str
}

// NativeObject is a raw GPU handle waiting in the device's collector. Build one with the
// Native* constructors and hand it to Device.Collect.
type NativeObject struct {
	Kind ObjectKind

	handle     any
	allocation *DeviceAllocation
}

func NativeBuffer(buffer core1_0.Buffer) NativeObject {
	return NativeObject{Kind: ObjectKindBuffer, handle: buffer}
}

func NativeBufferView(view core1_0.BufferView) NativeObject {
	return NativeObject{Kind: ObjectKindBufferView, handle: view}
}

func NativeImage(image core1_0.Image) NativeObject {
	return NativeObject{Kind: ObjectKindImage, handle: image}
}

func NativeImageView(view core1_0.ImageView) NativeObject {
	return NativeObject{Kind: ObjectKindImageView, handle: view}
}

// NativeDeviceMemory wraps an allocation made by the MemoryManager. Collecting it returns
// the memory through the manager so the per-heap accounting stays correct.
func NativeDeviceMemory(allocation *DeviceAllocation) NativeObject {
	return NativeObject{Kind: ObjectKindDeviceMemory, allocation: allocation}
}

func NativeSampler(sampler core1_0.Sampler) NativeObject {
	return NativeObject{Kind: ObjectKindSampler, handle: sampler}
}

func NativeFramebuffer(framebuffer core1_0.Framebuffer) NativeObject {
	return NativeObject{Kind: ObjectKindFramebuffer, handle: framebuffer}
}

func NativeSemaphore(semaphore core1_0.Semaphore) NativeObject {
	return NativeObject{Kind: ObjectKindSemaphore, handle: semaphore}
}

func NativeFence(fence core1_0.Fence) NativeObject {
	return NativeObject{Kind: ObjectKindFence, handle: fence}
}

func NativeQueryPool(pool core1_0.QueryPool) NativeObject {
	return NativeObject{Kind: ObjectKindQueryPool, handle: pool}
}

func NativeRenderPass(renderPass core1_0.RenderPass) NativeObject {
	return NativeObject{Kind: ObjectKindRenderPass, handle: renderPass}
}

func NativePipeline(pipeline core1_0.Pipeline) NativeObject {
	return NativeObject{Kind: ObjectKindPipeline, handle: pipeline}
}

func NativePipelineLayout(layout core1_0.PipelineLayout) NativeObject {
	return NativeObject{Kind: ObjectKindPipelineLayout, handle: layout}
}

func NativeDescriptorSetLayout(layout core1_0.DescriptorSetLayout) NativeObject {
	return NativeObject{Kind: ObjectKindDescriptorSetLayout, handle: layout}
}

// IsNil reports whether the object carries no handle, in which case collecting it is a no-op
func (o NativeObject) IsNil() bool {
	if o.Kind == ObjectKindDeviceMemory {
		return o.allocation == nil
	}
	return o.handle == nil
}

// destroy releases the native handle immediately. The caller is responsible for making sure
// the GPU no longer references it.
func (o NativeObject) destroy(memory *MemoryManager) {
	switch o.Kind {
	case ObjectKindBuffer:
		o.handle.(core1_0.Buffer).Destroy(nil)
	case ObjectKindBufferView:
		o.handle.(core1_0.BufferView).Destroy(nil)
	case ObjectKindImage:
		o.handle.(core1_0.Image).Destroy(nil)
	case ObjectKindImageView:
		o.handle.(core1_0.ImageView).Destroy(nil)
	case ObjectKindDeviceMemory:
		memory.Free(o.allocation)
	case ObjectKindSampler:
		o.handle.(core1_0.Sampler).Destroy(nil)
	case ObjectKindFramebuffer:
		o.handle.(core1_0.Framebuffer).Destroy(nil)
	case ObjectKindSemaphore:
		o.handle.(core1_0.Semaphore).Destroy(nil)
	case ObjectKindFence:
		o.handle.(core1_0.Fence).Destroy(nil)
	case ObjectKindQueryPool:
		o.handle.(core1_0.QueryPool).Destroy(nil)
	case ObjectKindRenderPass:
		o.handle.(core1_0.RenderPass).Destroy(nil)
	case ObjectKindPipeline:
		o.handle.(core1_0.Pipeline).Destroy(nil)
	case ObjectKindPipelineLayout:
		o.handle.(core1_0.PipelineLayout).Destroy(nil)
	case ObjectKindDescriptorSetLayout:
		o.handle.(core1_0.DescriptorSetLayout).Destroy(nil)
	default:
		panic(fmt.Sprintf("attempted to destroy a native object of unknown kind %s", o.Kind))
	}
}
