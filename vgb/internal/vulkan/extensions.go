package vulkan

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/extensions/v2/khr_get_memory_requirements2"
	khr_get_memory_requirements2_shim "github.com/vkngwrapper/extensions/v2/khr_get_memory_requirements2/shim"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
)

// ExtensionData records which optional device capabilities the backend can lean on
type ExtensionData struct {
	DedicatedAllocations  bool
	GetMemoryRequirements khr_get_memory_requirements2_shim.Shim
	Swapchain             bool
}

func NewExtensionData(device core1_0.Device) *ExtensionData {
	data := &ExtensionData{}

	device11 := core1_1.PromoteDevice(device)
	if device11 != nil {
		// Core 1.1 active - that means we can use khr_get_memory_requirements2 and
		// khr_dedicated_allocation
		data.DedicatedAllocations = true
		data.GetMemoryRequirements = device11
	}

	// khr_get_memory_requirements2 if core 1.1 is not active
	if data.GetMemoryRequirements == nil && device.IsDeviceExtensionActive(khr_get_memory_requirements2.ExtensionName) {
		extension := khr_get_memory_requirements2.CreateExtensionFromDevice(device)
		data.GetMemoryRequirements = khr_get_memory_requirements2_shim.NewShim(extension, device)
	}

	// khr_dedicated_allocation if khr_get_memory_requirements is active but core 1.1 is not
	if data.GetMemoryRequirements != nil && !data.DedicatedAllocations &&
		device.IsDeviceExtensionActive(khr_dedicated_allocation.ExtensionName) {
		data.DedicatedAllocations = true
	}

	data.Swapchain = device.IsDeviceExtensionActive(khr_swapchain.ExtensionName)

	return data
}

// MemoryRequirements queries the requirements of a buffer or an image, exactly one of which
// must be non-nil, along with the driver's dedicated-allocation preference when it can
// report one
func (d *ExtensionData) MemoryRequirements(buffer core1_0.Buffer, image core1_0.Image) (requirements core1_0.MemoryRequirements, prefersDedicated bool, err error) {
	if d.DedicatedAllocations && d.GetMemoryRequirements != nil {
		dedicatedReqs := khr_dedicated_allocation.MemoryDedicatedRequirements{}
		memReqs := core1_1.MemoryRequirements2{
			NextOutData: common.NextOutData{
				Next: &dedicatedReqs,
			},
		}

		if buffer != nil {
			err = d.GetMemoryRequirements.BufferMemoryRequirements2(
				core1_1.BufferMemoryRequirementsInfo2{
					Buffer: buffer,
				},
				&memReqs)
		} else {
			err = d.GetMemoryRequirements.ImageMemoryRequirements2(
				core1_1.ImageMemoryRequirementsInfo2{
					Image: image,
				},
				&memReqs)
		}
		if err != nil {
			return requirements, false, err
		}

		return memReqs.MemoryRequirements, dedicatedReqs.RequiresDedicatedAllocation || dedicatedReqs.PrefersDedicatedAllocation, nil
	}

	if buffer != nil {
		return *buffer.MemoryRequirements(), false, nil
	}
	return *image.MemoryRequirements(), false, nil
}
