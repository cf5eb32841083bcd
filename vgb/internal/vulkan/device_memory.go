package vulkan

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/graphics/memutils"
)

// ErrNoMemoryType is returned when no memory type on the physical device satisfies a
// resource's requirements
var ErrNoMemoryType = errors.New("no compatible memory type")

// DeviceMemoryProperties wraps the memory layout of a physical device and counts the
// allocations made against each heap
type DeviceMemoryProperties struct {
	// Number of live device memory allocations per heap
	blockCount [common.MaxMemoryHeaps]int32
	// Bytes of live device memory allocations per heap
	blockBytes [common.MaxMemoryHeaps]int64

	allocationCallbacks *driver.AllocationCallbacks
	memoryCount         uint32

	device           core1_0.Device
	physicalDevice   core1_0.PhysicalDevice
	deviceProperties *core1_0.PhysicalDeviceProperties
	memoryProperties *core1_0.PhysicalDeviceMemoryProperties
}

func NewDeviceMemoryProperties(
	allocationCallbacks *driver.AllocationCallbacks,
	device core1_0.Device,
	physicalDevice core1_0.PhysicalDevice,
) (*DeviceMemoryProperties, error) {
	deviceProperties := &DeviceMemoryProperties{
		allocationCallbacks: allocationCallbacks,

		device:         device,
		physicalDevice: physicalDevice,
	}

	var err error
	deviceProperties.deviceProperties, err = physicalDevice.Properties()
	if err != nil {
		return nil, err
	}

	deviceProperties.memoryProperties = physicalDevice.MemoryProperties()

	err = memutils.CheckPow2(deviceProperties.deviceProperties.Limits.NonCoherentAtomSize, "device nonCoherentAtomSize")
	if err != nil {
		return nil, err
	}

	if deviceProperties.MemoryHeapCount() > common.MaxMemoryHeaps {
		return nil, errors.Newf("physical device reports %d memory heaps, more than the maximum of %d", deviceProperties.MemoryHeapCount(), common.MaxMemoryHeaps)
	}

	return deviceProperties, nil
}

func (m *DeviceMemoryProperties) MemoryHeapCount() int {
	return len(m.memoryProperties.MemoryHeaps)
}

func (m *DeviceMemoryProperties) MemoryTypeIndexToHeapIndex(memTypeIndex int) int {
	return m.memoryProperties.MemoryTypes[memTypeIndex].HeapIndex
}

func (m *DeviceMemoryProperties) MemoryTypeProperties(memoryTypeIndex int) core1_0.MemoryType {
	return m.memoryProperties.MemoryTypes[memoryTypeIndex]
}

func (m *DeviceMemoryProperties) MemoryHeapProperties(heapIndex int) core1_0.MemoryHeap {
	return m.memoryProperties.MemoryHeaps[heapIndex]
}

// FindMemoryTypeIndex returns the first memory type that is allowed by memoryTypeBits and
// whose property flags include every flag in required
func (m *DeviceMemoryProperties) FindMemoryTypeIndex(memoryTypeBits uint32, required core1_0.MemoryPropertyFlags) (int, error) {
	for typeIndex, memoryType := range m.memoryProperties.MemoryTypes {
		if memoryTypeBits&(1<<typeIndex) == 0 {
			continue
		}

		if memoryType.PropertyFlags&required == required {
			return typeIndex, nil
		}
	}

	return -1, errors.Wrapf(ErrNoMemoryType, "type bits %#x, properties %s", memoryTypeBits, required)
}

func (m *DeviceMemoryProperties) addBlockAllocation(heapIndex int, allocationSize int) {
	atomic.AddInt64(&m.blockBytes[heapIndex], int64(allocationSize))
	atomic.AddInt32(&m.blockCount[heapIndex], 1)
}

func (m *DeviceMemoryProperties) removeBlockAllocation(heapIndex, allocationSize int) {
	newVal := atomic.AddInt64(&m.blockBytes[heapIndex], int64(-allocationSize))

	if newVal < 0 {
		panic(fmt.Sprintf("block bytes for heapIndex %d went negative", heapIndex))
	}

	newCountVal := atomic.AddInt32(&m.blockCount[heapIndex], -1)
	if newCountVal < 0 {
		panic(fmt.Sprintf("block count for heapIndex %d went negative", heapIndex))
	}
}

// AllocateVulkanMemory allocates device memory, enforcing the device's
// maxMemoryAllocationCount and recording the allocation against its heap
func (m *DeviceMemoryProperties) AllocateVulkanMemory(
	allocateInfo core1_0.MemoryAllocateInfo,
) (mem core1_0.DeviceMemory, res common.VkResult, err error) {
	newDeviceCount := atomic.AddUint32(&m.memoryCount, 1)
	defer func() {
		if err != nil {
			atomic.AddUint32(&m.memoryCount, ^uint32(0))
		}
	}()

	if int(newDeviceCount) > m.deviceProperties.Limits.MaxMemoryAllocationCount {
		return nil, core1_0.VKErrorTooManyObjects, core1_0.VKErrorTooManyObjects.ToError()
	}

	mem, res, err = m.device.AllocateMemory(m.allocationCallbacks, allocateInfo)
	if err != nil {
		return nil, res, err
	}

	heapIndex := m.MemoryTypeIndexToHeapIndex(allocateInfo.MemoryTypeIndex)
	m.addBlockAllocation(heapIndex, allocateInfo.AllocationSize)

	return mem, res, nil
}

func (m *DeviceMemoryProperties) FreeVulkanMemory(memoryType int, size int, memory core1_0.DeviceMemory) {
	memory.Free(m.allocationCallbacks)

	heapIndex := m.MemoryTypeIndexToHeapIndex(memoryType)
	m.removeBlockAllocation(heapIndex, size)
	atomic.AddUint32(&m.memoryCount, ^uint32(0))
}

// HeapStatistics reports the live allocations made against a single heap
func (m *DeviceMemoryProperties) HeapStatistics(heapIndex int) memutils.Statistics {
	count := int(atomic.LoadInt32(&m.blockCount[heapIndex]))
	bytes := int(atomic.LoadInt64(&m.blockBytes[heapIndex]))

	// Every device memory object backs exactly one resource
	return memutils.Statistics{
		BlockCount:      count,
		BlockBytes:      bytes,
		AllocationCount: count,
		AllocationBytes: bytes,
	}
}

// AllocationCount is the number of live device memory objects, which the driver caps at
// maxMemoryAllocationCount
func (m *DeviceMemoryProperties) AllocationCount() uint32 {
	return atomic.LoadUint32(&m.memoryCount)
}

