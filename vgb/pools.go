package vgb

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/graphics/fenced"
	"github.com/vkngwrapper/graphics/internal/utils"
)

// commandBufferHandler allocates primary command buffers out of a single command pool.
// Command pools are externally synchronized, so every call into the pool is serialized.
type commandBufferHandler struct {
	device      core1_0.Device
	commandPool core1_0.CommandPool
	poolLock    utils.OptionalMutex
}

var _ fenced.PoolHandler[core1_0.CommandBuffer] = &commandBufferHandler{}

func newCommandBufferHandler(device core1_0.Device, queueFamilyIndex int, useMutex bool) (*commandBufferHandler, error) {
	commandPool, _, err := device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: queueFamilyIndex,
	})
	if err != nil {
		return nil, err
	}

	return &commandBufferHandler{
		device:      device,
		commandPool: commandPool,
		poolLock:    utils.OptionalMutex{UseMutex: useMutex},
	}, nil
}

func (h *commandBufferHandler) Create() (core1_0.CommandBuffer, error) {
	h.poolLock.Lock()
	defer h.poolLock.Unlock()

	buffers, _, err := h.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        h.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, err
	}
	return buffers[0], nil
}

func (h *commandBufferHandler) Reset(buffer core1_0.CommandBuffer) error {
	h.poolLock.Lock()
	defer h.poolLock.Unlock()

	_, err := buffer.Reset(0)
	return err
}

func (h *commandBufferHandler) Destroy(buffer core1_0.CommandBuffer) {
	h.poolLock.Lock()
	defer h.poolLock.Unlock()

	h.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
}

// destroyPool destroys the command pool itself, which must happen after every buffer
// allocated from it has been freed
func (h *commandBufferHandler) destroyPool() {
	h.commandPool.Destroy(nil)
}

// descriptorPoolHandler creates descriptor pools sized to the device's descriptor caps
type descriptorPoolHandler struct {
	device core1_0.Device
	info   core1_0.DescriptorPoolCreateInfo
}

var _ fenced.PoolHandler[core1_0.DescriptorPool] = &descriptorPoolHandler{}

func newDescriptorPoolHandler(device core1_0.Device, maxSets int, limits *descriptorTypeCounts) *descriptorPoolHandler {
	var poolSizes []core1_0.DescriptorPoolSize
	for descriptorType, limit := range limits {
		if limit <= 0 {
			continue
		}
		poolSizes = append(poolSizes, core1_0.DescriptorPoolSize{
			Type:            core1_0.DescriptorType(descriptorType),
			DescriptorCount: limit,
		})
	}

	return &descriptorPoolHandler{
		device: device,
		info: core1_0.DescriptorPoolCreateInfo{
			MaxSets:   maxSets,
			PoolSizes: poolSizes,
		},
	}
}

func (h *descriptorPoolHandler) Create() (core1_0.DescriptorPool, error) {
	pool, _, err := h.device.CreateDescriptorPool(nil, h.info)
	return pool, err
}

func (h *descriptorPoolHandler) Reset(pool core1_0.DescriptorPool) error {
	_, err := pool.Reset(0)
	return err
}

func (h *descriptorPoolHandler) Destroy(pool core1_0.DescriptorPool) {
	pool.Destroy(nil)
}

type fenceHandler struct {
	device core1_0.Device
}

var _ fenced.PoolHandler[core1_0.Fence] = &fenceHandler{}

func (h *fenceHandler) Create() (core1_0.Fence, error) {
	fence, _, err := h.device.CreateFence(nil, core1_0.FenceCreateInfo{})
	return fence, err
}

func (h *fenceHandler) Reset(fence core1_0.Fence) error {
	_, err := fence.Reset()
	return err
}

func (h *fenceHandler) Destroy(fence core1_0.Fence) {
	fence.Destroy(nil)
}

// fenceSignal adapts a native fence to the device timeline. Results are reported to the
// device so a lost device shows up in Device.Status.
type fenceSignal struct {
	fence  core1_0.Fence
	report func(res common.VkResult)
}

var _ fenced.Signal = fenceSignal{}

func (s fenceSignal) Signaled() (bool, error) {
	res, err := s.fence.Status()
	if res == core1_0.VKNotReady {
		return false, nil
	}
	if err != nil {
		s.report(res)
		return false, errors.Wrap(err, "polling submission fence")
	}
	return res == core1_0.VKSuccess, nil
}

func (s fenceSignal) Wait() error {
	res, err := s.fence.Wait(common.NoTimeout)
	if err != nil {
		s.report(res)
		return errors.Wrap(err, "waiting on submission fence")
	}
	return nil
}
