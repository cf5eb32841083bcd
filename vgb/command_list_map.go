package vgb

import (
	"golang.org/x/exp/slog"
)

// MappedResource is host access to part of a resource's memory. Data is nil when the mapping
// was requested without waiting and the GPU had not finished writing the resource.
type MappedResource struct {
	Resource    Resource
	Subresource int
	Data        []byte
	// RowPitch is the byte distance between rows of blocks of a mapped texture subresource
	RowPitch int
	Offset   int
	Size     int

	memory *DeviceAllocation
}

// MapSubresource maps a resource's memory for host access. Length 0 maps the whole
// subresource, or the rest of a buffer past offset. Reads wait for the last GPU write to a
// staging resource, flushing this list first if it recorded that write, unless doNotWait is
// set, in which case an empty mapping is returned.
func (c *CommandList) MapSubresource(resource Resource, subresource int, mode MapMode, doNotWait bool, offset, length int) (MappedResource, error) {
	mapped := MappedResource{
		Resource:    resource,
		Subresource: subresource,
	}

	switch r := resource.(type) {
	case *Texture:
		root := r.root()
		err := root.checkSubresource(subresource)
		if err != nil {
			return mapped, err
		}
		if length == 0 {
			length = root.ComputeSubresourceSize(subresource)
		}
		mipLevel := subresource % root.description.MipLevels
		mapped.RowPitch, _ = root.formatInfo.computePitch(mipSize(root.description.Width, mipLevel), mipSize(root.description.Height, mipLevel))
		offset += root.ComputeBufferOffset(subresource)
		mapped.memory = root.memory

	case *Buffer:
		if length == 0 {
			length = r.Size() - offset
		}
		mapped.memory = r.memory

	default:
		return mapped, invalidUsage("cannot map %T", resource)
	}

	switch mode {
	case MapRead, MapWrite, MapReadWrite:
		if resource.Usage() != UsageStaging {
			return mapped, invalidUsage("%s of %q requires a staging resource, not %s", mode, resource.Name(), resource.Usage())
		}
	case MapWriteDiscard:
		return mapped, invalidUsage("%s of %q is not supported", mode, resource.Name())
	}
	if mapped.memory == nil {
		return mapped, invalidUsage("resource %q has no memory to map", resource.Name())
	}

	c.device.logger.Debug("CommandList::MapSubresource",
		slog.String("resource", resource.Name()),
		slog.Int("subresource", subresource),
		slog.String("mode", mode.String()),
		slog.Int("offset", offset),
		slog.Int("size", length),
	)

	if mode != MapWrite && mode != MapWriteNoOverwrite {
		ready, err := c.waitForStagingWrite(resource, doNotWait)
		if err != nil || !ready {
			return mapped, err
		}
	}

	data, err := c.device.memory.Map(mapped.memory, offset, length)
	if err != nil {
		return mapped, err
	}

	mapped.Data = data
	mapped.Offset = offset
	mapped.Size = length
	return mapped, nil
}

// waitForStagingWrite blocks until the last recorded GPU write to resource has completed. It
// returns false without blocking when doNotWait is set and the write is still pending.
func (c *CommandList) waitForStagingWrite(resource Resource, doNotWait bool) (bool, error) {
	base := resource.base()
	pending := base.stagingBuilder != nil ||
		(base.stagingFenceValue != 0 && !c.device.IsFenceComplete(base.stagingFenceValue))
	if !pending {
		return true, nil
	}
	if doNotWait {
		return false, nil
	}

	if base.stagingBuilder == c {
		err := c.flush(false)
		if err != nil {
			return false, err
		}
	}
	if base.stagingBuilder != nil || base.stagingFenceValue == 0 {
		return false, invalidUsage("the command list writing %q has not been submitted", resource.Name())
	}

	err := c.device.WaitForFence(base.stagingFenceValue)
	return err == nil, err
}

// UnmapSubresource ends host access to a mapping returned by MapSubresource
func (c *CommandList) UnmapSubresource(mapped MappedResource) {
	if mapped.Data == nil || mapped.memory == nil {
		return
	}
	c.device.memory.Unmap(mapped.memory)
}
