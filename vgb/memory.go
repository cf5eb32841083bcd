package vgb

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/graphics/memutils"
	"github.com/vkngwrapper/graphics/vgb/internal/vulkan"
	"golang.org/x/exp/slog"
)

// DeviceAllocation is a single device memory object backing exactly one buffer or image,
// bound at offset 0
type DeviceAllocation struct {
	Memory          core1_0.DeviceMemory
	MemoryTypeIndex int
	Size            int
	Dedicated       bool
}

// MemoryManager selects memory types for buffers and images, allocates device memory for them
// and binds it. It keeps per-heap counts of the live allocations.
type MemoryManager struct {
	logger     *slog.Logger
	properties *vulkan.DeviceMemoryProperties
	extensions *vulkan.ExtensionData
}

func newMemoryManager(logger *slog.Logger, properties *vulkan.DeviceMemoryProperties, extensions *vulkan.ExtensionData) *MemoryManager {
	return &MemoryManager{
		logger:     logger,
		properties: properties,
		extensions: extensions,
	}
}

// AllocateBufferMemory allocates memory with at least the requested property flags for buffer
// and binds it. A nil allocation with a nil error is returned when the buffer requires no memory.
func (m *MemoryManager) AllocateBufferMemory(buffer core1_0.Buffer, flags core1_0.MemoryPropertyFlags) (*DeviceAllocation, error) {
	m.logger.Debug("MemoryManager::AllocateBufferMemory")

	if buffer == nil {
		return nil, errors.New("attempted to allocate memory for a nil buffer")
	}
	return m.allocate(buffer, nil, flags)
}

// AllocateImageMemory allocates memory with at least the requested property flags for image
// and binds it. A nil allocation with a nil error is returned when the image requires no memory.
func (m *MemoryManager) AllocateImageMemory(image core1_0.Image, flags core1_0.MemoryPropertyFlags) (*DeviceAllocation, error) {
	m.logger.Debug("MemoryManager::AllocateImageMemory")

	if image == nil {
		return nil, errors.New("attempted to allocate memory for a nil image")
	}
	return m.allocate(nil, image, flags)
}

func (m *MemoryManager) allocate(buffer core1_0.Buffer, image core1_0.Image, flags core1_0.MemoryPropertyFlags) (*DeviceAllocation, error) {
	requirements, prefersDedicated, err := m.extensions.MemoryRequirements(buffer, image)
	if err != nil {
		return nil, err
	}

	if requirements.Size == 0 {
		return nil, nil
	}

	memoryTypeIndex, err := m.properties.FindMemoryTypeIndex(requirements.MemoryTypeBits, flags)
	if err != nil {
		return nil, errors.Wrapf(err, "requested memory properties %s", flags)
	}

	allocInfo := core1_0.MemoryAllocateInfo{
		MemoryTypeIndex: memoryTypeIndex,
		AllocationSize:  requirements.Size,
	}

	dedicated := prefersDedicated && m.extensions.DedicatedAllocations
	if dedicated {
		dedicatedAllocInfo := khr_dedicated_allocation.MemoryDedicatedAllocateInfo{
			Buffer: buffer,
			Image:  image,
		}
		dedicatedAllocInfo.Next = allocInfo.Next
		allocInfo.Next = dedicatedAllocInfo
	}

	memory, _, err := m.properties.AllocateVulkanMemory(allocInfo)
	if err != nil {
		return nil, err
	}

	allocation := &DeviceAllocation{
		Memory:          memory,
		MemoryTypeIndex: memoryTypeIndex,
		Size:            requirements.Size,
		Dedicated:       dedicated,
	}

	if buffer != nil {
		_, err = buffer.BindBufferMemory(memory, 0)
	} else {
		_, err = image.BindImageMemory(memory, 0)
	}
	if err != nil {
		m.Free(allocation)
		return nil, err
	}

	return allocation, nil
}

// Free returns an allocation's memory to the device immediately. Allocations still in use by the
// GPU should go through Device.Collect instead.
func (m *MemoryManager) Free(allocation *DeviceAllocation) {
	if allocation == nil {
		return
	}
	m.properties.FreeVulkanMemory(allocation.MemoryTypeIndex, allocation.Size, allocation.Memory)
}

// Map maps an allocation for host access. The allocation must be host-visible.
func (m *MemoryManager) Map(allocation *DeviceAllocation, offset, size int) ([]byte, error) {
	if allocation == nil {
		return nil, errors.New("attempted to map a nil allocation")
	}
	if !m.IsHostVisible(allocation) {
		return nil, invalidUsage("memory type %d is not host visible", allocation.MemoryTypeIndex)
	}

	if size < 0 {
		size = allocation.Size - offset
	}
	if offset < 0 || offset+size > allocation.Size {
		return nil, invalidUsage("mapped range [%d, %d) exceeds allocation size %d", offset, offset+size, allocation.Size)
	}

	ptr, _, err := allocation.Memory.Map(offset, size, 0)
	if err != nil {
		return nil, err
	}

	return unsafeBytes(ptr, size), nil
}

func (m *MemoryManager) Unmap(allocation *DeviceAllocation) {
	allocation.Memory.Unmap()
}

func (m *MemoryManager) IsHostVisible(allocation *DeviceAllocation) bool {
	return m.properties.MemoryTypeProperties(allocation.MemoryTypeIndex).PropertyFlags&core1_0.MemoryPropertyHostVisible != 0
}

// HeapStatistics reports live allocations per heap, indexed by heap
func (m *MemoryManager) HeapStatistics() []memutils.Statistics {
	heaps := make([]memutils.Statistics, m.properties.MemoryHeapCount())
	for heapIndex := range heaps {
		heaps[heapIndex] = m.properties.HeapStatistics(heapIndex)
	}
	return heaps
}

func (m *MemoryManager) memoryHeap(heapIndex int) core1_0.MemoryHeap {
	return m.properties.MemoryHeapProperties(heapIndex)
}

// DeviceMemoryCount is the number of live device memory objects across every heap
func (m *MemoryManager) DeviceMemoryCount() int {
	return int(m.properties.AllocationCount())
}
