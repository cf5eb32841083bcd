package vgb

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/graphics/memutils"
	"golang.org/x/exp/slog"
)

// TextureDescription describes the image created by NewTexture
type TextureDescription struct {
	Dimension TextureDimension
	Width     int
	Height    int
	// Depth is the depth of a 3D texture. If this value is 0, 1 is used.
	Depth int
	// ArraySize is the number of array layers. Cube textures use six layers per cube. If this
	// value is 0, 1 is used.
	ArraySize int
	// MipLevels is the number of mip levels. If this value is 0, 1 is used.
	MipLevels int
	Format    core1_0.Format
	// MultisampleCount is the sample count of the image. If this value is 0, 1 sample is used.
	MultisampleCount core1_0.SampleCountFlags
	Usage            GraphicsResourceUsage
	Flags            TextureFlags
	Name             string
}

func (d TextureDescription) withDefaults() TextureDescription {
	if d.Depth <= 0 {
		d.Depth = 1
	}
	if d.ArraySize <= 0 {
		d.ArraySize = 1
	}
	if d.MipLevels <= 0 {
		d.MipLevels = 1
	}
	if d.MultisampleCount == 0 {
		d.MultisampleCount = core1_0.Samples1
	}
	return d
}

func (d TextureDescription) validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return invalidUsage("texture %q has invalid extent %dx%d", d.Name, d.Width, d.Height)
	}
	if d.Dimension == TextureCube && d.ArraySize%6 != 0 {
		return invalidUsage("cube texture %q requires an array size that is a multiple of 6, got %d", d.Name, d.ArraySize)
	}
	if d.Dimension == Texture3D && d.ArraySize > 1 {
		return invalidUsage("3D texture %q cannot be an array", d.Name)
	}
	if d.Usage == UsageStaging && d.Flags&(TextureRenderTarget|TextureDepthStencil) != 0 {
		return invalidUsage("staging texture %q cannot be an attachment", d.Name)
	}
	return nil
}

// DataBox is the initial contents of one subresource. RowPitch is the byte distance between rows
// of blocks and SlicePitch the byte distance between depth slices.
type DataBox struct {
	Data       []byte
	RowPitch   int
	SlicePitch int
}

// TextureViewDescription selects the subresources a texture view covers
type TextureViewDescription struct {
	ArraySlice int
	// ArraySize is the number of array layers covered. If this value is 0, one layer is covered.
	ArraySize int
	MipLevel  int
	// MipCount is the number of mip levels covered. If this value is 0, one level is covered.
	MipCount int
	// Flags selects the views created. If this value is 0, the parent's flags are used.
	Flags TextureFlags
}

// Texture is a GPU image, a view aliasing another texture's image, or a wrapper around an image
// owned elsewhere. Staging textures are backed by a host-visible buffer instead of an image.
//
// Barriers issued against a view are tracked on the texture that owns the image.
type Texture struct {
	graphicsResource

	description TextureDescription
	ownership   Ownership
	parent      *Texture
	view        TextureViewDescription
	// views aliasing this texture, rebuilt when it is recreated
	views []*Texture

	image         core1_0.Image
	memory        *DeviceAllocation
	stagingBuffer core1_0.Buffer
	format        core1_0.Format
	formatInfo    formatInfo
	aspect        core1_0.ImageAspectFlags

	layout  core1_0.ImageLayout
	resting imageState

	shaderResourceView  core1_0.ImageView
	colorAttachmentView core1_0.ImageView
	depthStencilView    core1_0.ImageView
}

// NewTexture creates a texture and initializes it, optionally from CPU data. Initial data is
// ordered by array slice, then mip level.
func NewTexture(device *Device, description TextureDescription, data ...DataBox) (*Texture, error) {
	description = description.withDefaults()
	err := description.validate()
	if err != nil {
		return nil, err
	}

	info, err := lookupFormat(description.Format)
	if err != nil {
		return nil, err
	}

	texture := &Texture{
		graphicsResource: newGraphicsResource(device, description.Name, description.Usage),
		description:      description,
		ownership:        OwnershipOwning,
		view: TextureViewDescription{
			ArraySize: description.ArraySize,
			MipCount:  description.MipLevels,
			Flags:     description.Flags,
		},
		formatInfo: info,
	}

	device.logger.Debug("Texture::New",
		slog.String("name", texture.name),
		slog.String("dimension", description.Dimension.String()),
		slog.Int("width", description.Width),
		slog.Int("height", description.Height),
		slog.Int("mipLevels", description.MipLevels),
		slog.Int("arraySize", description.ArraySize),
		slog.String("format", description.Format.String()),
	)

	err = texture.initialize(data)
	if err != nil {
		texture.Destroy()
		return nil, err
	}

	if shouldRecreate(description.Usage, texture.isAttachment()) {
		device.RegisterRecreatable(texture)
	}

	return texture, nil
}

// NewTextureView creates a texture aliasing a subrange of parent's image. The view never frees
// the image or its memory. Views are not registered with the device: the texture owning the
// image rebuilds them when it is recreated.
func NewTextureView(parent *Texture, view TextureViewDescription) (*Texture, error) {
	root := parent.root()
	if root.description.Usage == UsageStaging {
		return nil, invalidUsage("staging texture %q cannot be viewed", root.name)
	}

	if view.ArraySize <= 0 {
		view.ArraySize = 1
	}
	if view.MipCount <= 0 {
		view.MipCount = 1
	}
	if view.Flags == 0 {
		view.Flags = root.description.Flags
	}
	if view.ArraySlice < 0 || view.ArraySlice+view.ArraySize > root.description.ArraySize ||
		view.MipLevel < 0 || view.MipLevel+view.MipCount > root.description.MipLevels {
		return nil, invalidUsage("view of %q is outside its subresources", root.name)
	}

	texture := &Texture{
		graphicsResource: newGraphicsResource(root.device, "", root.usage),
		description:      root.description,
		ownership:        OwnershipAliased,
		parent:           root,
		view:             view,
		image:            root.image,
		memory:           root.memory,
		format:           root.format,
		formatInfo:       root.formatInfo,
		aspect:           root.aspect,
	}

	err := texture.createViews()
	if err != nil {
		texture.collectViews()
		return nil, err
	}
	root.views = append(root.views, texture)

	return texture, nil
}

// WrapSwapchainImage wraps an image owned by a presenter. The texture creates a color attachment
// view for the image, but destroying it never destroys the image itself.
func WrapSwapchainImage(device *Device, description TextureDescription, image core1_0.Image) (*Texture, error) {
	description = description.withDefaults()
	description.Flags |= TextureRenderTarget

	info, err := lookupFormat(description.Format)
	if err != nil {
		return nil, err
	}

	texture := &Texture{
		graphicsResource: newGraphicsResource(device, description.Name, UsageDefault),
		description:      description,
		ownership:        OwnershipExternal,
		view: TextureViewDescription{
			ArraySize: 1,
			MipCount:  1,
			Flags:     TextureRenderTarget,
		},
		image:      image,
		format:     description.Format,
		formatInfo: info,
		aspect:     core1_0.ImageAspectColor,
		layout:     core1_0.ImageLayoutUndefined,
		resting:    stateForResourceState(ResourceStatePresent),
	}

	err = texture.createViews()
	if err != nil {
		texture.Destroy()
		return nil, err
	}

	return texture, nil
}

func (t *Texture) initialize(data []DataBox) error {
	if t.image != nil || t.stagingBuffer != nil {
		return invalidUsage("texture %q is already initialized", t.name)
	}

	subresourceCount := t.description.ArraySize * t.description.MipLevels
	if len(data) > subresourceCount {
		return invalidUsage("texture %q has %d subresources but %d data boxes were provided", t.name, subresourceCount, len(data))
	}

	t.format = t.description.Format
	if t.IsDepthStencil() && hasStencil(t.format) {
		format, err := t.device.depthStencilFormat(t.format)
		if err != nil {
			return err
		}
		t.format = format
	}
	t.aspect = formatAspect(t.format)

	if t.usage == UsageStaging {
		return t.initializeStaging(data)
	}

	t.resting = restingState(t.description.Flags)

	err := t.createImage()
	if err != nil {
		return err
	}

	value, err := t.device.executeImmediate(func(commandBuffer core1_0.CommandBuffer) error {
		return t.recordInitialization(commandBuffer, t.device.uploader, data)
	})
	if err != nil {
		return err
	}
	t.stagingFenceValue = value

	return t.createViews()
}

func (t *Texture) initializeStaging(data []DataBox) error {
	t.accessMask = core1_0.AccessHostRead | core1_0.AccessHostWrite
	t.stageMask = core1_0.PipelineStageHost

	buffer, _, err := t.device.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        t.ComputeBufferTotalSize(),
		Usage:       core1_0.BufferUsageTransferSrc | core1_0.BufferUsageTransferDst,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return err
	}
	t.stagingBuffer = buffer

	t.memory, err = t.device.memory.AllocateBufferMemory(buffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil || len(data) == 0 {
		return err
	}

	mapped, err := t.device.memory.Map(t.memory, 0, -1)
	if err != nil {
		return err
	}
	defer t.device.memory.Unmap(t.memory)

	for index, box := range data {
		size := t.ComputeSubresourceSize(index)
		if len(box.Data) < size {
			return invalidUsage("data box %d of texture %q holds %d bytes, %d required", index, t.name, len(box.Data), size)
		}
		copy(mapped[t.ComputeBufferOffset(index):], box.Data[:size])
	}
	t.initialized = true

	return nil
}

func (t *Texture) createImage() error {
	createInfo := core1_0.ImageCreateInfo{
		Extent: core1_0.Extent3D{
			Width:  t.description.Width,
			Height: t.description.Height,
			Depth:  t.description.Depth,
		},
		MipLevels:     t.description.MipLevels,
		ArrayLayers:   t.description.ArraySize,
		Format:        t.format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         core1_0.ImageUsageTransferSrc | core1_0.ImageUsageTransferDst,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       t.description.MultisampleCount,
	}

	switch t.description.Dimension {
	case Texture1D:
		createInfo.ImageType = core1_0.ImageType1D
	case Texture2D:
		createInfo.ImageType = core1_0.ImageType2D
	case Texture3D:
		createInfo.ImageType = core1_0.ImageType3D
	case TextureCube:
		createInfo.ImageType = core1_0.ImageType2D
		createInfo.Flags |= core1_0.ImageCreateCubeCompatible
	}

	if t.IsRenderTarget() {
		createInfo.Usage |= core1_0.ImageUsageColorAttachment
	}
	if t.IsDepthStencil() {
		createInfo.Usage |= core1_0.ImageUsageDepthStencilAttachment
	}
	if t.IsShaderResource() {
		createInfo.Usage |= core1_0.ImageUsageSampled
	}
	if t.IsUnorderedAccess() {
		createInfo.Usage |= core1_0.ImageUsageStorage
	}

	image, _, err := t.device.device.CreateImage(nil, createInfo)
	if err != nil {
		return err
	}
	t.image = image

	t.memory, err = t.device.memory.AllocateImageMemory(image, core1_0.MemoryPropertyDeviceLocal)
	return err
}

// recordInitialization records the upload of data and the transition to the texture's resting
// state. Without data the image goes straight from undefined to its resting state.
func (t *Texture) recordInitialization(commandBuffer core1_0.CommandBuffer, upload uploader, data []DataBox) error {
	subresources := wholeImage(t.aspect, t.description.MipLevels, t.description.ArraySize)

	if len(data) == 0 {
		err := transitionImage(commandBuffer, t.image, subresources, imageState{Layout: core1_0.ImageLayoutUndefined}, t.resting)
		if err != nil {
			return err
		}
		t.setState(t.resting)
		return nil
	}

	// Buffer-to-image copies must start on a texel block and on 4 bytes
	alignment := memutils.LeastCommonMultiple(4, t.formatInfo.BlockSize)

	totalSize := len(data) * (alignment - 1)
	for index := range data {
		totalSize += t.ComputeSubresourceSize(index)
	}

	allocation, err := upload.Allocate(totalSize, alignment)
	if err != nil {
		return err
	}

	err = commandBuffer.CmdPipelineBarrier(core1_0.PipelineStageHost, core1_0.PipelineStageTransfer, 0, nil,
		[]core1_0.BufferMemoryBarrier{
			bufferBarrier(allocation.Buffer, core1_0.AccessHostWrite, core1_0.AccessTransferRead, allocation.Offset, totalSize),
		},
		[]core1_0.ImageMemoryBarrier{
			imageBarrier(t.image, subresources, imageState{Layout: core1_0.ImageLayoutUndefined}, transferDestinationState),
		},
	)
	if err != nil {
		return err
	}

	uploadBytes := allocation.Bytes()
	offset := 0
	for index, box := range data {
		arraySlice := index / t.description.MipLevels
		mipLevel := index % t.description.MipLevels
		size := t.ComputeSubresourceSize(index)

		if len(box.Data) < size {
			return invalidUsage("data box %d of texture %q holds %d bytes, %d required", index, t.name, len(box.Data), size)
		}
		if box.RowPitch <= 0 {
			return invalidUsage("data box %d of texture %q has no row pitch", index, t.name)
		}

		offset = memutils.AlignUpAny(allocation.Offset+offset, alignment) - allocation.Offset
		copy(uploadBytes[offset:], box.Data[:size])

		err = commandBuffer.CmdCopyBufferToImage(allocation.Buffer, t.image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.BufferImageCopy{
			{
				BufferOffset:      allocation.Offset + offset,
				BufferRowLength:   box.RowPitch * t.formatInfo.BlockWidth / t.formatInfo.BlockSize,
				BufferImageHeight: box.SlicePitch * t.formatInfo.BlockHeight / box.RowPitch,
				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     copyAspect(t.aspect),
					MipLevel:       mipLevel,
					BaseArrayLayer: arraySlice,
					LayerCount:     1,
				},
				ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
				ImageExtent: core1_0.Extent3D{
					Width:  mipSize(t.description.Width, mipLevel),
					Height: mipSize(t.description.Height, mipLevel),
					Depth:  mipSize(t.description.Depth, mipLevel),
				},
			},
		})
		if err != nil {
			return err
		}

		offset += size
	}

	err = transitionImage(commandBuffer, t.image, subresources, transferDestinationState, t.resting)
	if err != nil {
		return err
	}

	t.setState(t.resting)
	t.initialized = true
	return nil
}

// copyAspect is the single aspect buffer copies of a format address. Depth-stencil copies
// move the depth aspect.
func copyAspect(aspect core1_0.ImageAspectFlags) core1_0.ImageAspectFlags {
	if aspect&core1_0.ImageAspectDepth != 0 {
		return core1_0.ImageAspectDepth
	}
	return core1_0.ImageAspectColor
}

func (t *Texture) setState(state imageState) {
	root := t.root()
	root.layout = state.Layout
	root.accessMask = state.Access
	root.stageMask = state.Stage
}

func (t *Texture) state() imageState {
	root := t.root()
	return imageState{
		Layout: root.layout,
		Access: root.accessMask,
		Stage:  root.stageMask,
	}
}

// root is the texture whose state barriers are tracked on
func (t *Texture) root() *Texture {
	if t.parent != nil {
		return t.parent
	}
	return t
}

func (t *Texture) isAttachment() bool {
	return t.IsRenderTarget() || t.IsDepthStencil()
}

// ComputeSubresourceSize is the byte size of one subresource's data, ordered by array slice
// then mip level
func (t *Texture) ComputeSubresourceSize(subresource int) int {
	mipLevel := subresource % t.description.MipLevels
	_, slicePitch := t.formatInfo.computePitch(mipSize(t.description.Width, mipLevel), mipSize(t.description.Height, mipLevel))
	return slicePitch * mipSize(t.description.Depth, mipLevel)
}

// ComputeBufferOffset is the offset of a subresource within a staging texture's buffer
func (t *Texture) ComputeBufferOffset(subresource int) int {
	offset := 0
	for index := 0; index < subresource; index++ {
		offset += t.ComputeSubresourceSize(index)
	}
	return offset
}

// ComputeBufferTotalSize is the size of a staging texture's buffer: every mip of every array slice
func (t *Texture) ComputeBufferTotalSize() int {
	return t.ComputeBufferOffset(t.description.ArraySize * t.description.MipLevels)
}

func (t *Texture) Description() TextureDescription { return t.description }

func (t *Texture) Ownership() Ownership { return t.ownership }

// Parent returns the texture a view aliases, or nil
func (t *Texture) Parent() *Texture { return t.parent }

func (t *Texture) Image() core1_0.Image { return t.image }

// StagingBuffer returns the host-visible buffer backing a staging texture
func (t *Texture) StagingBuffer() core1_0.Buffer { return t.root().stagingBuffer }

// Format returns the native format of the image, after any depth-stencil fallback
func (t *Texture) Format() core1_0.Format { return t.format }

// Layout is the layout of the last barrier issued against the image
func (t *Texture) Layout() core1_0.ImageLayout { return t.root().layout }

func (t *Texture) ShaderResourceView() core1_0.ImageView { return t.shaderResourceView }

func (t *Texture) ColorAttachmentView() core1_0.ImageView { return t.colorAttachmentView }

func (t *Texture) DepthStencilView() core1_0.ImageView { return t.depthStencilView }

// ViewWidth is the width of the first mip level the texture covers
func (t *Texture) ViewWidth() int { return mipSize(t.description.Width, t.view.MipLevel) }

// ViewHeight is the height of the first mip level the texture covers
func (t *Texture) ViewHeight() int { return mipSize(t.description.Height, t.view.MipLevel) }

func (t *Texture) IsRenderTarget() bool { return t.view.Flags&TextureRenderTarget != 0 }

func (t *Texture) IsDepthStencil() bool { return t.view.Flags&TextureDepthStencil != 0 }

func (t *Texture) IsShaderResource() bool { return t.view.Flags&TextureShaderResource != 0 }

func (t *Texture) IsUnorderedAccess() bool { return t.view.Flags&TextureUnorderedAccess != 0 }

func (t *Texture) IsMultisampled() bool { return t.description.MultisampleCount > core1_0.Samples1 }

func (t *Texture) RecreateStage() RecreateStage {
	return RecreateStageResources
}

// Recreate rebuilds the texture's native objects without initial data, then rebuilds the image
// views of every view aliasing it over the new image
func (t *Texture) Recreate() error {
	t.device.logger.Debug("Texture::Recreate", slog.String("name", t.name), slog.Int("views", len(t.views)))

	if t.parent != nil {
		return t.rebuildOverParent()
	}

	t.collectViews()
	t.initialized = false
	t.collectNativeObjects()

	err := t.initialize(nil)
	if err != nil {
		return err
	}

	for _, view := range t.views {
		err = view.rebuildOverParent()
		if err != nil {
			return errors.Wrapf(err, "view of %q", t.name)
		}
	}
	return nil
}

// rebuildOverParent replaces a view's image views with ones over its parent's current image
func (t *Texture) rebuildOverParent() error {
	t.collectViews()
	t.image = t.parent.image
	t.memory = t.parent.memory
	t.format = t.parent.format
	t.aspect = t.parent.aspect
	t.initialized = t.parent.initialized
	return t.createViews()
}

func (t *Texture) collectViews() {
	t.device.Collect(NativeImageView(t.shaderResourceView))
	t.device.Collect(NativeImageView(t.colorAttachmentView))
	t.device.Collect(NativeImageView(t.depthStencilView))
	t.shaderResourceView = nil
	t.colorAttachmentView = nil
	t.depthStencilView = nil
}

func (t *Texture) collectNativeObjects() {
	if t.ownership == OwnershipOwning {
		t.device.Collect(NativeImage(t.image))
		t.device.Collect(NativeBuffer(t.stagingBuffer))
		t.device.Collect(NativeDeviceMemory(t.memory))
	}
	t.image = nil
	t.stagingBuffer = nil
	t.memory = nil
}

// Destroy hands the texture's image views to the device collector, along with its image and
// memory if it owns them
func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true

	if t.parent != nil {
		t.parent.detachView(t)
	} else {
		t.device.UnregisterRecreatable(t)
	}
	t.collectViews()
	t.collectNativeObjects()
}

func (t *Texture) detachView(view *Texture) {
	for index, candidate := range t.views {
		if candidate == view {
			t.views = append(t.views[:index], t.views[index+1:]...)
			return
		}
	}
}

func (t *Texture) createImageView(viewType core1_0.ImageViewType, aspect core1_0.ImageAspectFlags, mipLevel, mipCount, arraySlice, arraySize int) (core1_0.ImageView, error) {
	view, _, err := t.device.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    t.image,
		ViewType: viewType,
		Format:   t.format,
		Components: core1_0.ComponentMapping{
			R: core1_0.ComponentSwizzleIdentity,
			G: core1_0.ComponentSwizzleIdentity,
			B: core1_0.ComponentSwizzleIdentity,
			A: core1_0.ComponentSwizzleIdentity,
		},
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   mipLevel,
			LevelCount:     mipCount,
			BaseArrayLayer: arraySlice,
			LayerCount:     arraySize,
		},
	})
	return view, err
}

// shaderResourceViewType picks the view type sampled views of the texture use
func (t *Texture) shaderResourceViewType() (core1_0.ImageViewType, error) {
	if t.IsMultisampled() {
		return 0, notImplemented("multisampled shader resource views")
	}

	array := t.view.ArraySize > 1
	switch t.description.Dimension {
	case Texture1D:
		if array {
			return core1_0.ImageViewType1DArray, nil
		}
		return core1_0.ImageViewType1D, nil
	case Texture2D:
		if array {
			return core1_0.ImageViewType2DArray, nil
		}
		return core1_0.ImageViewType2D, nil
	case Texture3D:
		return core1_0.ImageViewType3D, nil
	case TextureCube:
		if t.view.ArraySize%6 != 0 {
			return 0, invalidUsage("cube view of %q covers %d layers, a multiple of 6 is required", t.name, t.view.ArraySize)
		}
		if t.view.ArraySize > 6 {
			return core1_0.ImageViewTypeCubeArray, nil
		}
		return core1_0.ImageViewTypeCube, nil
	}

	return 0, invalidUsage("texture %q has unknown dimension %s", t.name, t.description.Dimension)
}

func (t *Texture) createViews() error {
	if t.image == nil {
		return nil
	}

	if t.IsShaderResource() {
		viewType, err := t.shaderResourceViewType()
		if err != nil {
			return err
		}

		aspect := t.aspect
		if aspect&core1_0.ImageAspectDepth != 0 {
			// Sampled depth-stencil views may only name one aspect
			aspect = core1_0.ImageAspectDepth
		}

		t.shaderResourceView, err = t.createImageView(viewType, aspect, t.view.MipLevel, t.view.MipCount, t.view.ArraySlice, t.view.ArraySize)
		if err != nil {
			return err
		}
	}

	if t.IsRenderTarget() {
		var err error
		t.colorAttachmentView, err = t.createImageView(core1_0.ImageViewType2D, core1_0.ImageAspectColor, t.view.MipLevel, 1, t.view.ArraySlice, 1)
		if err != nil {
			return err
		}
	}

	if t.IsDepthStencil() {
		var err error
		t.depthStencilView, err = t.createImageView(core1_0.ImageViewType2D, t.aspect, 0, 1, t.view.ArraySlice, 1)
		if err != nil {
			return err
		}
	}

	return nil
}
