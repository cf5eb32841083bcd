package vgb

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/graphics/memutils"
	"golang.org/x/exp/slog"
)

// ResourceRegion is a box within one subresource, in texels for textures and bytes for buffers.
// Right, Bottom, and Back are exclusive.
type ResourceRegion struct {
	Left, Top, Front    int
	Right, Bottom, Back int
}

func (r ResourceRegion) extent() core1_0.Extent3D {
	return core1_0.Extent3D{
		Width:  r.Right - r.Left,
		Height: r.Bottom - r.Top,
		Depth:  r.Back - r.Front,
	}
}

func (r ResourceRegion) offset() core1_0.Offset3D {
	return core1_0.Offset3D{X: r.Left, Y: r.Top, Z: r.Front}
}

// within reports whether the region is non-empty and lies inside bounds
func (r ResourceRegion) within(bounds ResourceRegion) bool {
	return r.Left >= bounds.Left && r.Top >= bounds.Top && r.Front >= bounds.Front &&
		r.Right <= bounds.Right && r.Bottom <= bounds.Bottom && r.Back <= bounds.Back &&
		r.Right > r.Left && r.Bottom > r.Top && r.Back > r.Front
}

// mipRegion is the whole of one mip level
func (t *Texture) mipRegion(mipLevel int) ResourceRegion {
	return ResourceRegion{
		Right:  mipSize(t.description.Width, mipLevel),
		Bottom: mipSize(t.description.Height, mipLevel),
		Back:   mipSize(t.description.Depth, mipLevel),
	}
}

func (t *Texture) subresourceLayers(subresource int) core1_0.ImageSubresourceLayers {
	return core1_0.ImageSubresourceLayers{
		AspectMask:     copyAspect(t.aspect),
		MipLevel:       subresource % t.description.MipLevels,
		BaseArrayLayer: subresource / t.description.MipLevels,
		LayerCount:     1,
	}
}

func (t *Texture) checkSubresource(subresource int) error {
	if subresource < 0 || subresource >= t.description.MipLevels*t.description.ArraySize {
		return invalidUsage("subresource %d is outside texture %q", subresource, t.name)
	}
	return nil
}

// viewRange is the range of subresources a texture view covers
func (t *Texture) viewRange(aspect core1_0.ImageAspectFlags) core1_0.ImageSubresourceRange {
	return core1_0.ImageSubresourceRange{
		AspectMask:     aspect,
		BaseMipLevel:   t.view.MipLevel,
		LevelCount:     memutils.Max(1, t.view.MipCount),
		BaseArrayLayer: t.view.ArraySlice,
		LayerCount:     memutils.Max(1, t.view.ArraySize),
	}
}

// restoreState is where a texture returns after a transfer. Images whose contents were
// undefined settle into their resting state.
func (t *Texture) restoreState(old imageState) imageState {
	if old.Layout == core1_0.ImageLayoutUndefined && !t.isStaging() {
		return t.root().resting
	}
	return old
}

func (t *Texture) isStaging() bool {
	return t.root().stagingBuffer != nil
}

// trackStagingWrite remembers that this list writes a staging resource, so mapping it for read
// knows which recording to wait on
func (c *CommandList) trackStagingWrite(resource Resource) {
	base := resource.base()
	base.stagingFenceValue = 0
	if base.stagingBuilder != c {
		base.stagingBuilder = c
		c.current.stagingResources = append(c.current.stagingResources, resource)
	}
}

// clearImage transitions subresources into the transfer destination layout, records clear, and
// transitions them back
func (c *CommandList) clearImage(texture *Texture, subresources core1_0.ImageSubresourceRange, clear func(commandBuffer core1_0.CommandBuffer)) error {
	c.cleanupRenderPass()

	root := texture.root()
	if root.image == nil {
		return invalidUsage("texture %q has no image to clear", texture.Name())
	}
	commandBuffer := c.commandBuffer()

	old := root.state()
	err := transitionImage(commandBuffer, root.image, subresources, old, transferDestinationState)
	if err != nil {
		return err
	}

	clear(commandBuffer)

	after := root.restoreState(old)
	err = transitionImage(commandBuffer, root.image, subresources, transferDestinationState, after)
	if err != nil {
		return err
	}

	root.setState(after)
	texture.initialized = true
	root.initialized = true
	return nil
}

// ClearRenderTarget fills every subresource of a render target view with color
func (c *CommandList) ClearRenderTarget(renderTarget *Texture, color [4]float32) error {
	if !renderTarget.IsRenderTarget() {
		return invalidUsage("texture %q is not a render target", renderTarget.Name())
	}

	c.device.logger.Debug("CommandList::ClearRenderTarget", slog.String("texture", renderTarget.Name()))

	subresources := renderTarget.viewRange(core1_0.ImageAspectColor)
	return c.clearImage(renderTarget, subresources, func(commandBuffer core1_0.CommandBuffer) {
		commandBuffer.CmdClearColorImage(renderTarget.root().image, core1_0.ImageLayoutTransferDstOptimal,
			core1_0.ClearValueFloat(color), []core1_0.ImageSubresourceRange{subresources})
	})
}

// ClearDepthStencil clears the depth and/or stencil aspects of a depth-stencil view. The stencil
// flag is ignored for formats without stencil.
func (c *CommandList) ClearDepthStencil(depthStencilBuffer *Texture, flags ClearFlags, depth float32, stencil uint32) error {
	if !depthStencilBuffer.IsDepthStencil() {
		return invalidUsage("texture %q is not a depth-stencil buffer", depthStencilBuffer.Name())
	}

	var aspect core1_0.ImageAspectFlags
	if flags&ClearDepth != 0 {
		aspect |= core1_0.ImageAspectDepth
	}
	if flags&ClearStencil != 0 {
		aspect |= core1_0.ImageAspectStencil
	}
	aspect &= depthStencilBuffer.root().aspect
	if aspect == 0 {
		return nil
	}

	c.device.logger.Debug("CommandList::ClearDepthStencil",
		slog.String("texture", depthStencilBuffer.Name()),
		slog.String("flags", flags.String()),
	)

	subresources := depthStencilBuffer.viewRange(aspect)
	return c.clearImage(depthStencilBuffer, subresources, func(commandBuffer core1_0.CommandBuffer) {
		commandBuffer.CmdClearDepthStencilImage(depthStencilBuffer.root().image, core1_0.ImageLayoutTransferDstOptimal,
			&core1_0.ClearValueDepthStencil{Depth: depth, Stencil: stencil}, []core1_0.ImageSubresourceRange{subresources})
	})
}

// ClearReadWrite would clear an unordered access view. Unordered access is not supported.
func (c *CommandList) ClearReadWrite(resource Resource, value [4]float32) error {
	return notImplemented("clearing unordered access views")
}

// Copy copies the whole of source into destination. Textures must have identical dimensions
// and either may be a staging texture. Buffers are copied up to the source's size.
func (c *CommandList) Copy(source, destination Resource) error {
	switch src := source.(type) {
	case *Texture:
		dst, ok := destination.(*Texture)
		if !ok {
			return invalidUsage("cannot copy texture %q into a buffer", src.Name())
		}
		return c.copyTexture(src.root(), dst.root())

	case *Buffer:
		dst, ok := destination.(*Buffer)
		if !ok {
			return invalidUsage("cannot copy buffer %q into a texture", src.Name())
		}
		return c.copyBuffer(src, dst)
	}

	return invalidUsage("cannot copy %T", source)
}

func sameDimensions(a, b TextureDescription) bool {
	return a.Width == b.Width && a.Height == b.Height && a.Depth == b.Depth &&
		a.ArraySize == b.ArraySize && a.MipLevels == b.MipLevels
}

// beginTransfer records the barriers that make src readable and dst writable by transfers
func (c *CommandList) beginTransfer(src, dst *Texture) (srcOld, dstOld imageState, err error) {
	var bufferBarriers []core1_0.BufferMemoryBarrier
	var imageBarriers []core1_0.ImageMemoryBarrier

	srcOld = src.state()
	dstOld = dst.state()

	if src.isStaging() {
		bufferBarriers = append(bufferBarriers, bufferBarrier(src.stagingBuffer, srcOld.Access, core1_0.AccessTransferRead, 0, src.ComputeBufferTotalSize()))
	} else {
		imageBarriers = append(imageBarriers, imageBarrier(src.image, wholeImage(src.aspect, src.description.MipLevels, src.description.ArraySize), srcOld, transferSourceState))
	}

	if dst.isStaging() {
		bufferBarriers = append(bufferBarriers, bufferBarrier(dst.stagingBuffer, dstOld.Access, core1_0.AccessTransferWrite, 0, dst.ComputeBufferTotalSize()))
	} else {
		imageBarriers = append(imageBarriers, imageBarrier(dst.image, wholeImage(dst.aspect, dst.description.MipLevels, dst.description.ArraySize), dstOld, transferDestinationState))
	}

	err = c.commandBuffer().CmdPipelineBarrier(sourceStage(srcOld)|sourceStage(dstOld), core1_0.PipelineStageTransfer, 0, nil, bufferBarriers, imageBarriers)
	return srcOld, dstOld, err
}

// endTransfer returns src and dst to the states they were in before beginTransfer
func (c *CommandList) endTransfer(src, dst *Texture, srcOld, dstOld imageState) error {
	var bufferBarriers []core1_0.BufferMemoryBarrier
	var imageBarriers []core1_0.ImageMemoryBarrier

	srcAfter := src.restoreState(srcOld)
	dstAfter := dst.restoreState(dstOld)

	if src.isStaging() {
		bufferBarriers = append(bufferBarriers, bufferBarrier(src.stagingBuffer, core1_0.AccessTransferRead, srcAfter.Access, 0, src.ComputeBufferTotalSize()))
	} else {
		imageBarriers = append(imageBarriers, imageBarrier(src.image, wholeImage(src.aspect, src.description.MipLevels, src.description.ArraySize), transferSourceState, srcAfter))
	}

	if dst.isStaging() {
		bufferBarriers = append(bufferBarriers, bufferBarrier(dst.stagingBuffer, core1_0.AccessTransferWrite, dstAfter.Access, 0, dst.ComputeBufferTotalSize()))
	} else {
		imageBarriers = append(imageBarriers, imageBarrier(dst.image, wholeImage(dst.aspect, dst.description.MipLevels, dst.description.ArraySize), transferDestinationState, dstAfter))
	}

	stage := srcAfter.Stage | dstAfter.Stage
	if stage == 0 {
		stage = core1_0.PipelineStageAllCommands
	}

	err := c.commandBuffer().CmdPipelineBarrier(core1_0.PipelineStageTransfer, stage, 0, nil, bufferBarriers, imageBarriers)
	if err != nil {
		return err
	}

	src.setState(srcAfter)
	dst.setState(dstAfter)
	return nil
}

func (c *CommandList) copyTexture(src, dst *Texture) error {
	if !sameDimensions(src.description, dst.description) {
		return invalidUsage("cannot copy texture %q into %q: dimensions differ", src.name, dst.name)
	}

	c.device.logger.Debug("CommandList::Copy",
		slog.String("source", src.name),
		slog.String("destination", dst.name),
	)

	c.cleanupRenderPass()
	srcOld, dstOld, err := c.beginTransfer(src, dst)
	if err != nil {
		return err
	}

	subresourceCount := src.description.MipLevels * src.description.ArraySize
	for subresource := 0; subresource < subresourceCount; subresource++ {
		err = c.copySubresource(src, subresource, src.mipRegion(subresource%src.description.MipLevels), dst, subresource, core1_0.Offset3D{})
		if err != nil {
			return err
		}
	}

	if dst.isStaging() {
		c.trackStagingWrite(dst)
	}
	dst.initialized = true

	return c.endTransfer(src, dst, srcOld, dstOld)
}

// copySubresource records the copy of region of one subresource into another. Both textures must
// already be in their transfer states.
func (c *CommandList) copySubresource(src *Texture, srcSubresource int, region ResourceRegion, dst *Texture, dstSubresource int, dstOffset core1_0.Offset3D) error {
	commandBuffer := c.commandBuffer()
	srcLayers := src.subresourceLayers(srcSubresource)
	dstLayers := dst.subresourceLayers(dstSubresource)

	switch {
	case src.isStaging() && dst.isStaging():
		return commandBuffer.CmdCopyBuffer(src.stagingBuffer, dst.stagingBuffer, []core1_0.BufferCopy{
			{
				SrcOffset: src.ComputeBufferOffset(srcSubresource),
				DstOffset: dst.ComputeBufferOffset(dstSubresource),
				Size:      src.ComputeSubresourceSize(srcSubresource),
			},
		})

	case dst.isStaging():
		commandBuffer.CmdCopyImageToBuffer(src.image, core1_0.ImageLayoutTransferSrcOptimal, dst.stagingBuffer, []core1_0.BufferImageCopy{
			{
				BufferOffset:     dst.ComputeBufferOffset(dstSubresource),
				ImageSubresource: srcLayers,
				ImageOffset:      region.offset(),
				ImageExtent:      region.extent(),
			},
		})
		return nil

	case src.isStaging():
		return commandBuffer.CmdCopyBufferToImage(src.stagingBuffer, dst.image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.BufferImageCopy{
			{
				BufferOffset:     src.ComputeBufferOffset(srcSubresource),
				ImageSubresource: dstLayers,
				ImageOffset:      dstOffset,
				ImageExtent:      region.extent(),
			},
		})

	default:
		commandBuffer.CmdCopyImage(src.image, core1_0.ImageLayoutTransferSrcOptimal, dst.image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.ImageCopy{
			{
				SrcSubresource: srcLayers,
				SrcOffset:      region.offset(),
				DstSubresource: dstLayers,
				DstOffset:      dstOffset,
				Extent:         region.extent(),
			},
		})
		return nil
	}
}

// CopyRegion copies a region of one subresource into another subresource at the given offset. A
// nil region copies the whole source mip. Staging sources must be copied whole and staging
// destinations are not supported.
func (c *CommandList) CopyRegion(source *Texture, sourceSubresource int, region *ResourceRegion, destination *Texture, destinationSubresource int, dstX, dstY, dstZ int) error {
	src := source.root()
	dst := destination.root()

	if dst.isStaging() {
		return notImplemented("copying a region into a staging texture")
	}
	err := src.checkSubresource(sourceSubresource)
	if err != nil {
		return err
	}
	err = dst.checkSubresource(destinationSubresource)
	if err != nil {
		return err
	}

	full := src.mipRegion(sourceSubresource % src.description.MipLevels)
	if region == nil {
		region = &full
	}
	if src.isStaging() && *region != full {
		return notImplemented("copying a partial region out of a staging texture")
	}
	if !region.within(full) {
		return invalidUsage("copy region %+v is outside subresource %d of texture %q", *region, sourceSubresource, src.name)
	}

	c.device.logger.Debug("CommandList::CopyRegion",
		slog.String("source", src.name),
		slog.Int("sourceSubresource", sourceSubresource),
		slog.String("destination", dst.name),
		slog.Int("destinationSubresource", destinationSubresource),
	)

	c.cleanupRenderPass()
	srcOld, dstOld, err := c.beginTransfer(src, dst)
	if err != nil {
		return err
	}

	err = c.copySubresource(src, sourceSubresource, *region, dst, destinationSubresource, core1_0.Offset3D{X: dstX, Y: dstY, Z: dstZ})
	if err != nil {
		return err
	}
	dst.initialized = true

	return c.endTransfer(src, dst, srcOld, dstOld)
}

func (c *CommandList) copyBuffer(src, dst *Buffer) error {
	size := src.Size()
	if dst.Size() < size {
		return invalidUsage("cannot copy %d bytes of buffer %q into %q of %d bytes", size, src.name, dst.name, dst.Size())
	}

	c.device.logger.Debug("CommandList::Copy",
		slog.String("source", src.name),
		slog.String("destination", dst.name),
		slog.Int("size", size),
	)

	c.cleanupRenderPass()
	commandBuffer := c.commandBuffer()

	srcAccess, srcStage := src.accessMask, src.stageMask
	dstAccess, dstStage := dst.accessMask, dst.stageMask

	err := commandBuffer.CmdPipelineBarrier(srcStage|dstStage, core1_0.PipelineStageTransfer, 0, nil,
		[]core1_0.BufferMemoryBarrier{
			bufferBarrier(src.buffer, srcAccess, core1_0.AccessTransferRead, 0, size),
			bufferBarrier(dst.buffer, dstAccess, core1_0.AccessTransferWrite, 0, size),
		}, nil)
	if err != nil {
		return err
	}

	err = commandBuffer.CmdCopyBuffer(src.buffer, dst.buffer, []core1_0.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	if err != nil {
		return err
	}

	err = commandBuffer.CmdPipelineBarrier(core1_0.PipelineStageTransfer, srcStage|dstStage, 0, nil,
		[]core1_0.BufferMemoryBarrier{
			bufferBarrier(src.buffer, core1_0.AccessTransferRead, srcAccess, 0, size),
			bufferBarrier(dst.buffer, core1_0.AccessTransferWrite, dstAccess, 0, size),
		}, nil)
	if err != nil {
		return err
	}

	if dst.usage == UsageStaging {
		c.trackStagingWrite(dst)
	}
	dst.initialized = true
	return nil
}

// CopyMultisample would resolve a multisampled texture into a single-sampled one
func (c *CommandList) CopyMultisample(source *Texture, sourceSubresource int, destination *Texture, destinationSubresource int) error {
	return notImplemented("multisample resolves")
}

// CopyCount would copy the hidden counter of an append buffer
func (c *CommandList) CopyCount(source *Buffer, destination *Buffer, offset int) error {
	return notImplemented("copying structured buffer counters")
}

// UpdateSubresource writes CPU data into a region of one subresource of a texture through the
// upload buffer. A nil region covers the whole mip. Staging textures are written by mapping
// them instead.
func (c *CommandList) UpdateSubresource(texture *Texture, subresource int, data DataBox, region *ResourceRegion) error {
	root := texture.root()
	if root.image == nil {
		return invalidUsage("texture %q has no image to update; map staging textures instead", texture.Name())
	}
	err := root.checkSubresource(subresource)
	if err != nil {
		return err
	}

	mipLevel := subresource % root.description.MipLevels
	full := root.mipRegion(mipLevel)
	if region == nil {
		region = &full
	}
	if !region.within(full) {
		return invalidUsage("update region %+v is outside subresource %d of texture %q", *region, subresource, root.name)
	}
	extent := region.extent()
	if data.RowPitch <= 0 || data.SlicePitch <= 0 {
		return invalidUsage("data for texture %q requires a row and slice pitch", root.name)
	}
	length := data.SlicePitch * extent.Depth
	if len(data.Data) < length {
		return invalidUsage("data for texture %q holds %d bytes, %d required", root.name, len(data.Data), length)
	}

	c.device.logger.Debug("CommandList::UpdateSubresource",
		slog.String("texture", root.name),
		slog.Int("subresource", subresource),
		slog.Int("size", length),
	)

	c.cleanupRenderPass()
	commandBuffer := c.commandBuffer()

	// Buffer-to-image copies must start on a texel block and on 4 bytes
	allocation, err := c.device.uploader.Allocate(length, memutils.LeastCommonMultiple(4, root.formatInfo.BlockSize))
	if err != nil {
		return err
	}
	copy(allocation.Bytes(), data.Data[:length])

	subresources := core1_0.ImageSubresourceRange{
		AspectMask:     copyAspect(root.aspect),
		BaseMipLevel:   mipLevel,
		LevelCount:     1,
		BaseArrayLayer: subresource / root.description.MipLevels,
		LayerCount:     1,
	}

	old := root.state()
	err = commandBuffer.CmdPipelineBarrier(core1_0.PipelineStageHost|sourceStage(old), core1_0.PipelineStageTransfer, 0, nil,
		[]core1_0.BufferMemoryBarrier{
			bufferBarrier(allocation.Buffer, core1_0.AccessHostWrite, core1_0.AccessTransferRead, allocation.Offset, length),
		},
		[]core1_0.ImageMemoryBarrier{
			imageBarrier(root.image, subresources, old, transferDestinationState),
		},
	)
	if err != nil {
		return err
	}

	err = commandBuffer.CmdCopyBufferToImage(allocation.Buffer, root.image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.BufferImageCopy{
		{
			BufferOffset:      allocation.Offset,
			BufferRowLength:   data.RowPitch * root.formatInfo.BlockWidth / root.formatInfo.BlockSize,
			BufferImageHeight: data.SlicePitch * root.formatInfo.BlockHeight / data.RowPitch,
			ImageSubresource:  root.subresourceLayers(subresource),
			ImageOffset:       region.offset(),
			ImageExtent:       extent,
		},
	})
	if err != nil {
		return err
	}

	after := root.restoreState(old)
	err = transitionImage(commandBuffer, root.image, subresources, transferDestinationState, after)
	if err != nil {
		return err
	}

	root.setState(after)
	texture.initialized = true
	root.initialized = true
	return nil
}

// UpdateBuffer writes data into buffer at offset through the upload buffer
func (c *CommandList) UpdateBuffer(buffer *Buffer, offset int, data []byte) error {
	if offset < 0 || offset+len(data) > buffer.Size() {
		return invalidUsage("update of %d bytes at %d is outside buffer %q of %d bytes", len(data), offset, buffer.Name(), buffer.Size())
	}
	if len(data) == 0 {
		return nil
	}

	c.device.logger.Debug("CommandList::UpdateBuffer",
		slog.String("buffer", buffer.Name()),
		slog.Int("offset", offset),
		slog.Int("size", len(data)),
	)

	c.cleanupRenderPass()
	return buffer.recordUpload(c.commandBuffer(), c.device.uploader, offset, data)
}
