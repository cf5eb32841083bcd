package vgb

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// BufferDescription describes the buffer created by NewBuffer
type BufferDescription struct {
	SizeInBytes         int
	StructureByteStride int
	Flags               BufferFlags
	Usage               GraphicsResourceUsage
	// ViewFormat is the element format of the buffer's texel view. A texel view is only
	// created for shader resource and unordered access buffers that set a format.
	ViewFormat core1_0.Format
	Name       string
}

// Buffer is a GPU buffer with its memory and an optional texel view
type Buffer struct {
	graphicsResource

	description BufferDescription
	buffer      core1_0.Buffer
	memory      *DeviceAllocation
	view        core1_0.BufferView
}

// NewBuffer creates a buffer, optionally filled with data. Dynamic and staging buffers are
// placed in host-visible memory and written directly. Other buffers are filled through the
// device's upload allocator.
func NewBuffer(device *Device, description BufferDescription, data []byte) (*Buffer, error) {
	if description.SizeInBytes <= 0 {
		return nil, invalidUsage("buffer %q has invalid size %d", description.Name, description.SizeInBytes)
	}
	if len(data) > description.SizeInBytes {
		return nil, invalidUsage("buffer %q is %d bytes but %d bytes of data were provided", description.Name, description.SizeInBytes, len(data))
	}

	buffer := &Buffer{
		graphicsResource: newGraphicsResource(device, description.Name, description.Usage),
		description:      description,
	}

	device.logger.Debug("Buffer::New",
		slog.String("name", buffer.name),
		slog.Int("size", description.SizeInBytes),
		slog.String("flags", description.Flags.String()),
		slog.String("usage", description.Usage.String()),
	)

	err := buffer.initialize(data)
	if err != nil {
		buffer.Destroy()
		return nil, err
	}

	if shouldRecreate(description.Usage, false) {
		device.RegisterRecreatable(buffer)
	}

	return buffer, nil
}

func (b *Buffer) hostVisible() bool {
	return b.usage == UsageDynamic || b.usage == UsageStaging
}

func (b *Buffer) bufferUsage() core1_0.BufferUsageFlags {
	usage := core1_0.BufferUsageTransferSrc | core1_0.BufferUsageTransferDst
	flags := b.description.Flags

	if flags&BufferConstantBuffer != 0 {
		usage |= core1_0.BufferUsageUniformBuffer
	}
	if flags&BufferIndexBuffer != 0 {
		usage |= core1_0.BufferUsageIndexBuffer
	}
	if flags&BufferVertexBuffer != 0 {
		usage |= core1_0.BufferUsageVertexBuffer
	}
	if flags&BufferShaderResource != 0 {
		if b.description.ViewFormat != 0 {
			usage |= core1_0.BufferUsageUniformTexelBuffer
		} else {
			usage |= core1_0.BufferUsageStorageBuffer
		}
	}
	if flags&BufferUnorderedAccess != 0 {
		usage |= core1_0.BufferUsageStorageBuffer
		if b.description.ViewFormat != 0 {
			usage |= core1_0.BufferUsageStorageTexelBuffer
		}
	}
	if flags&(BufferStructuredBuffer|BufferRawBuffer) != 0 {
		usage |= core1_0.BufferUsageStorageBuffer
	}
	if flags&BufferArgumentBuffer != 0 {
		usage |= core1_0.BufferUsageIndirectBuffer
	}

	return usage
}

// restingState is the access and stage a buffer is left in after it has been written
func (b *Buffer) restingState() (core1_0.AccessFlags, core1_0.PipelineStageFlags) {
	if b.usage == UsageStaging {
		return core1_0.AccessHostRead | core1_0.AccessHostWrite, core1_0.PipelineStageHost
	}

	var access core1_0.AccessFlags
	var stage core1_0.PipelineStageFlags
	flags := b.description.Flags

	if flags&BufferVertexBuffer != 0 {
		access |= core1_0.AccessVertexAttributeRead
		stage |= core1_0.PipelineStageVertexInput
	}
	if flags&BufferIndexBuffer != 0 {
		access |= core1_0.AccessIndexRead
		stage |= core1_0.PipelineStageVertexInput
	}
	if flags&BufferConstantBuffer != 0 {
		access |= core1_0.AccessUniformRead
		stage |= core1_0.PipelineStageVertexShader | core1_0.PipelineStageFragmentShader
	}
	if flags&(BufferShaderResource|BufferStructuredBuffer|BufferRawBuffer) != 0 {
		access |= core1_0.AccessShaderRead
		stage |= core1_0.PipelineStageVertexShader | core1_0.PipelineStageFragmentShader
	}
	if flags&BufferUnorderedAccess != 0 {
		access |= core1_0.AccessShaderRead | core1_0.AccessShaderWrite
		stage |= core1_0.PipelineStageVertexShader | core1_0.PipelineStageFragmentShader
	}
	if flags&BufferArgumentBuffer != 0 {
		access |= core1_0.AccessIndirectCommandRead
		stage |= core1_0.PipelineStageDrawIndirect
	}

	if stage == 0 {
		return core1_0.AccessTransferRead | core1_0.AccessTransferWrite, core1_0.PipelineStageTransfer
	}
	return access, stage
}

func (b *Buffer) initialize(data []byte) error {
	if b.buffer != nil {
		return invalidUsage("buffer %q is already initialized", b.name)
	}

	buffer, _, err := b.device.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        b.description.SizeInBytes,
		Usage:       b.bufferUsage(),
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return err
	}
	b.buffer = buffer

	memoryFlags := core1_0.MemoryPropertyDeviceLocal
	if b.hostVisible() {
		memoryFlags = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent
	}

	b.memory, err = b.device.memory.AllocateBufferMemory(buffer, memoryFlags)
	if err != nil {
		return err
	}

	b.accessMask, b.stageMask = b.restingState()

	if len(data) > 0 {
		if b.hostVisible() {
			err = b.writeMapped(data)
		} else {
			err = b.upload(data)
		}
		if err != nil {
			return err
		}
		b.initialized = true
	}

	if b.description.ViewFormat != 0 && b.description.Flags&(BufferShaderResource|BufferUnorderedAccess) != 0 {
		b.view, _, err = b.device.device.CreateBufferView(nil, core1_0.BufferViewCreateInfo{
			Buffer: b.buffer,
			Format: b.description.ViewFormat,
			Offset: 0,
			Range:  b.description.SizeInBytes,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *Buffer) writeMapped(data []byte) error {
	mapped, err := b.device.memory.Map(b.memory, 0, len(data))
	if err != nil {
		return err
	}
	copy(mapped, data)
	b.device.memory.Unmap(b.memory)
	return nil
}

func (b *Buffer) upload(data []byte) error {
	value, err := b.device.executeImmediate(func(commandBuffer core1_0.CommandBuffer) error {
		return b.recordUpload(commandBuffer, b.device.uploader, 0, data)
	})
	if err != nil {
		return err
	}
	b.stagingFenceValue = value
	return nil
}

// recordUpload records a copy of data from the upload buffer into the buffer at offset, fenced by
// barriers on both sides
func (b *Buffer) recordUpload(commandBuffer core1_0.CommandBuffer, upload uploader, offset int, data []byte) error {
	allocation, err := upload.Allocate(len(data), 4)
	if err != nil {
		return err
	}
	copy(allocation.Bytes(), data)

	err = commandBuffer.CmdPipelineBarrier(core1_0.PipelineStageHost|b.stageMask, core1_0.PipelineStageTransfer, 0, nil,
		[]core1_0.BufferMemoryBarrier{
			bufferBarrier(allocation.Buffer, core1_0.AccessHostWrite, core1_0.AccessTransferRead, allocation.Offset, len(data)),
			bufferBarrier(b.buffer, b.accessMask, core1_0.AccessTransferWrite, offset, len(data)),
		}, nil)
	if err != nil {
		return err
	}

	err = commandBuffer.CmdCopyBuffer(allocation.Buffer, b.buffer, []core1_0.BufferCopy{
		{
			SrcOffset: allocation.Offset,
			DstOffset: offset,
			Size:      len(data),
		},
	})
	if err != nil {
		return err
	}

	access, stage := b.restingState()
	err = commandBuffer.CmdPipelineBarrier(core1_0.PipelineStageTransfer, stage, 0, nil,
		[]core1_0.BufferMemoryBarrier{
			bufferBarrier(b.buffer, core1_0.AccessTransferWrite, access, offset, len(data)),
		}, nil)
	if err != nil {
		return err
	}

	b.accessMask, b.stageMask = access, stage
	b.initialized = true
	return nil
}

func (b *Buffer) Description() BufferDescription { return b.description }

func (b *Buffer) Size() int { return b.description.SizeInBytes }

func (b *Buffer) NativeBuffer() core1_0.Buffer { return b.buffer }

// View returns the buffer's texel view, or nil if it has none
func (b *Buffer) View() core1_0.BufferView { return b.view }

func (b *Buffer) Memory() *DeviceAllocation { return b.memory }

func (b *Buffer) RecreateStage() RecreateStage {
	return RecreateStageResources
}

// Recreate rebuilds the buffer and its view without data
func (b *Buffer) Recreate() error {
	b.device.logger.Debug("Buffer::Recreate", slog.String("name", b.name))

	b.collectNativeObjects()
	b.initialized = false
	return b.initialize(nil)
}

func (b *Buffer) collectNativeObjects() {
	b.device.Collect(NativeBufferView(b.view))
	b.device.Collect(NativeBuffer(b.buffer))
	b.device.Collect(NativeDeviceMemory(b.memory))
	b.view = nil
	b.buffer = nil
	b.memory = nil
}

// Destroy hands the buffer, its view, and its memory to the device collector
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true

	b.device.UnregisterRecreatable(b)
	b.collectNativeObjects()
}
