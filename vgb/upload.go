package vgb

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/graphics/memutils"
	"golang.org/x/exp/slog"
)

// DefaultUploadBufferSize is the smallest buffer the upload allocator will create
const DefaultUploadBufferSize = 4 * 1024 * 1024

// UploadAllocation is a region of the upload buffer. Data points at Offset bytes into the
// mapped buffer and remains valid until the allocator grows past it.
type UploadAllocation struct {
	Data   unsafe.Pointer
	Buffer core1_0.Buffer
	Offset int
	Size   int
}

// Bytes exposes the allocation as a byte slice over the mapped memory
func (a UploadAllocation) Bytes() []byte {
	return unsafeBytes(a.Data, a.Size)
}

type uploader interface {
	Allocate(size int, alignment int) (UploadAllocation, error)
}

// lockedUploader serializes the device's resource constructors and command lists over the
// single upload allocator
type lockedUploader struct {
	lock     sync.Mutex
	allocate uploader
}

func (u *lockedUploader) Allocate(size int, alignment int) (UploadAllocation, error) {
	u.lock.Lock()
	defer u.lock.Unlock()

	return u.allocate.Allocate(size, alignment)
}

// UploadAllocator is a linear allocator over a persistently-mapped host-visible buffer that
// is used to move CPU data into GPU resources. When the active buffer cannot fit a request,
// it is handed to the device's collector and replaced by a larger one.
//
// UploadAllocator is not safe for concurrent use: callers serialize.
type UploadAllocator struct {
	logger      *slog.Logger
	device      core1_0.Device
	memory      *MemoryManager
	collect     func(obj NativeObject)
	minimumSize int

	buffer     core1_0.Buffer
	allocation *DeviceAllocation
	mapped     unsafe.Pointer
	capacity   int
	offset     int
	margins    []int

	stats memutils.DetailedStatistics
}

func newUploadAllocator(logger *slog.Logger, device core1_0.Device, memory *MemoryManager, minimumSize int, collect func(obj NativeObject)) *UploadAllocator {
	if minimumSize <= 0 {
		minimumSize = DefaultUploadBufferSize
	}

	allocator := &UploadAllocator{
		logger:      logger,
		device:      device,
		memory:      memory,
		collect:     collect,
		minimumSize: minimumSize,
	}
	allocator.stats.Clear()

	return allocator
}

// Allocate reserves size bytes whose offset within the returned buffer is a multiple of
// alignment and of 4, so the region is always a legal buffer-to-image copy source.
func (u *UploadAllocator) Allocate(size int, alignment int) (UploadAllocation, error) {
	u.logger.Debug("UploadAllocator::Allocate", slog.Int("size", size), slog.Int("alignment", alignment))

	if size <= 0 {
		return UploadAllocation{}, invalidUsage("upload allocations must be at least one byte, requested %d", size)
	}
	alignment = memutils.LeastCommonMultiple(4, alignment)

	offset := memutils.AlignUpAny(u.offset, alignment)
	if u.buffer == nil || offset+size+memutils.DebugMargin > u.capacity {
		err := u.grow(size + alignment + memutils.DebugMargin)
		if err != nil {
			return UploadAllocation{}, err
		}
		offset = 0
	}

	u.offset = offset + size
	if memutils.DebugMargin > 0 {
		memutils.WriteMagicValue(u.mapped, u.offset)
		u.margins = append(u.margins, u.offset)
		u.offset += memutils.DebugMargin
	}
	u.stats.AddAllocation(size)

	return UploadAllocation{
		Data:   unsafe.Add(u.mapped, offset),
		Buffer: u.buffer,
		Offset: offset,
		Size:   size,
	}, nil
}

func (u *UploadAllocator) grow(requested int) error {
	size := memutils.Max(u.minimumSize, requested)
	u.logger.Debug("UploadAllocator::grow", slog.Int("size", size), slog.Int("previousSize", u.capacity))

	buffer, _, err := u.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       core1_0.BufferUsageTransferSrc,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return err
	}

	allocation, err := u.memory.AllocateBufferMemory(buffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		buffer.Destroy(nil)
		return err
	}
	if allocation == nil {
		buffer.Destroy(nil)
		return errors.Newf("upload buffer of %d bytes reported no memory requirements", size)
	}

	mapped, _, err := allocation.Memory.Map(0, allocation.Size, 0)
	if err != nil {
		u.memory.Free(allocation)
		buffer.Destroy(nil)
		return err
	}

	u.retire()

	u.buffer = buffer
	u.allocation = allocation
	u.mapped = mapped
	u.capacity = size
	u.offset = 0
	u.stats.BlockCount++
	u.stats.BlockBytes += size

	return nil
}

// retire hands the active buffer to the collector. The GPU may still be reading it, so it
// is destroyed only once the next submission completes.
func (u *UploadAllocator) retire() {
	if u.buffer == nil {
		return
	}

	err := u.Validate()
	if err != nil {
		u.logger.Error("UploadAllocator::retire", slog.Any("error", err))
	}

	if u.capacity > u.offset {
		u.stats.AddUnusedRange(u.capacity - u.offset)
	}

	u.allocation.Memory.Unmap()
	u.collect(NativeBuffer(u.buffer))
	u.collect(NativeDeviceMemory(u.allocation))

	u.buffer = nil
	u.allocation = nil
	u.mapped = nil
	u.capacity = 0
	u.offset = 0
	u.margins = u.margins[:0]
}

// Validate checks the allocator's bookkeeping and, in debug_mem_utils builds, the guard
// bytes written after each allocation
func (u *UploadAllocator) Validate() error {
	if u.offset > u.capacity {
		return errors.Newf("upload offset %d is past the end of a %d-byte buffer", u.offset, u.capacity)
	}
	if u.buffer == nil {
		return nil
	}

	for _, margin := range u.margins {
		if !memutils.ValidateMagicValue(u.mapped, margin) {
			return errors.Newf("upload buffer corrupted after allocation ending at offset %d", margin)
		}
	}
	return nil
}

// Statistics reports buffers created as blocks, allocations, and the unused tails of
// retired buffers as unused ranges
func (u *UploadAllocator) Statistics() memutils.DetailedStatistics {
	return u.stats
}

// Recreate drops the active buffer so the next allocation creates a fresh one
func (u *UploadAllocator) Recreate() error {
	u.retire()
	return nil
}

func (u *UploadAllocator) RecreateStage() RecreateStage {
	return RecreateStageMemory
}

// Destroy releases the active buffer through the collector
func (u *UploadAllocator) Destroy() {
	memutils.DebugValidate(u)
	u.retire()
}
