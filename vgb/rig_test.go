package vgb

import (
	"io"
	"testing"
	"unsafe"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/graphics/fenced"
	"github.com/vkngwrapper/graphics/internal/utils"
	"github.com/vkngwrapper/graphics/memutils"
	"golang.org/x/exp/slog"
)

type testHandler[T any] struct {
	create  func() T
	created int
	resets  int
}

func (h *testHandler[T]) Create() (T, error) {
	h.created++
	return h.create(), nil
}

func (h *testHandler[T]) Reset(obj T) error {
	h.resets++
	return nil
}

func (h *testHandler[T]) Destroy(obj T) {}

type testUpload struct {
	size      int
	alignment int
	offset    int
}

// testUploader hands out regions of a plain byte slice posing as the upload buffer
type testUploader struct {
	buffer  core1_0.Buffer
	data    []byte
	offset  int
	uploads []testUpload
}

func (u *testUploader) Allocate(size int, alignment int) (UploadAllocation, error) {
	offset := memutils.AlignUpAny(u.offset, alignment)
	if offset+size > len(u.data) {
		return UploadAllocation{}, invalidUsage("test upload buffer exhausted")
	}
	u.offset = offset + size
	u.uploads = append(u.uploads, testUpload{size: size, alignment: alignment, offset: offset})

	return UploadAllocation{
		Data:   unsafe.Pointer(&u.data[offset]),
		Buffer: u.buffer,
		Offset: offset,
		Size:   size,
	}, nil
}

type testRig struct {
	t                 *testing.T
	ctrl              *gomock.Controller
	device            *mocks.MockDevice
	queue             *mocks.MockQueue
	commandBuffer     *mocks.MockCommandBuffer
	copyCommandBuffer *mocks.MockCommandBuffer
	descriptorPools *testHandler[core1_0.DescriptorPool]
	upload          *testUploader
	collected       []NativeObject
	d               *Device
}

// newTestRig builds a Device around mocks. Every submission completes immediately.
func newTestRig(t *testing.T) *testRig {
	ctrl := gomock.NewController(t)

	rig := &testRig{
		t:                 t,
		ctrl:              ctrl,
		device:            mocks.NewMockDevice(ctrl),
		queue:             mocks.NewMockQueue(ctrl),
		commandBuffer:     mocks.NewMockCommandBuffer(ctrl),
		copyCommandBuffer: mocks.NewMockCommandBuffer(ctrl),
		descriptorPools: &testHandler[core1_0.DescriptorPool]{
			create: func() core1_0.DescriptorPool { return mocks.NewMockDescriptorPool(ctrl) },
		},
		upload: &testUploader{
			buffer: mocks.NewMockBuffer(ctrl),
			data:   make([]byte, 4*1024*1024),
		},
	}

	options := CreateOptions{}.withDefaults()
	d := &Device{
		logger:               slog.New(slog.NewJSONHandler(io.Discard, nil)),
		useMutex:             true,
		options:              options,
		device:               rig.device,
		queue:                rig.queue,
		descriptorTypeLimits: options.descriptorTypeLimits(),
		recreatableLock:      utils.OptionalRWMutex{UseMutex: true},
		recreatables:         make(map[Recreatable]struct{}),
		uploader:             rig.upload,
		memory:               testMemoryManagerOn(t, ctrl, rig.device),
	}

	d.timeline = fenced.NewTimeline(d.retireSubmission)
	d.collector = fenced.NewCollector[NativeObject](d.timeline, func(obj NativeObject) {
		rig.collected = append(rig.collected, obj)
	}, true)
	d.fences = fenced.NewPool[core1_0.Fence](&testHandler[core1_0.Fence]{
		create: func() core1_0.Fence {
			fence := mocks.NewMockFence(ctrl)
			fence.EXPECT().Status().Return(core1_0.VKSuccess, nil).AnyTimes()
			fence.EXPECT().Wait(gomock.Any()).Return(core1_0.VKSuccess, nil).AnyTimes()
			return fence
		},
	}, d.timeline, true)
	d.commandBuffers = fenced.NewPool[core1_0.CommandBuffer](&testHandler[core1_0.CommandBuffer]{
		create: func() core1_0.CommandBuffer { return rig.commandBuffer },
	}, d.timeline, true)
	d.copyCommandBuffers = fenced.NewPool[core1_0.CommandBuffer](&testHandler[core1_0.CommandBuffer]{
		create: func() core1_0.CommandBuffer { return rig.copyCommandBuffer },
	}, d.timeline, true)
	d.descriptorPools = fenced.NewPool[core1_0.DescriptorPool](rig.descriptorPools, d.timeline, true)

	rig.d = d
	return rig
}

// expectRecording accepts any number of the commands a draw records, except the methods named
// in skip, which the test expects explicitly
func (r *testRig) expectRecording(skip ...string) {
	skipped := make(map[string]bool, len(skip))
	for _, method := range skip {
		skipped[method] = true
	}

	cb := r.commandBuffer
	expectations := map[string]func(){
		"Begin":                  func() { cb.EXPECT().Begin(gomock.Any()).Return(core1_0.VKSuccess, nil).AnyTimes() },
		"End":                    func() { cb.EXPECT().End().Return(core1_0.VKSuccess, nil).AnyTimes() },
		"CmdBindPipeline":        func() { cb.EXPECT().CmdBindPipeline(gomock.Any(), gomock.Any()).AnyTimes() },
		"CmdSetViewport":         func() { cb.EXPECT().CmdSetViewport(gomock.Any()).AnyTimes() },
		"CmdSetScissor":          func() { cb.EXPECT().CmdSetScissor(gomock.Any()).AnyTimes() },
		"CmdSetStencilReference": func() { cb.EXPECT().CmdSetStencilReference(gomock.Any(), gomock.Any()).AnyTimes() },
		"CmdBeginRenderPass":     func() { cb.EXPECT().CmdBeginRenderPass(gomock.Any(), gomock.Any()).AnyTimes() },
		"CmdEndRenderPass":       func() { cb.EXPECT().CmdEndRenderPass().AnyTimes() },
		"CmdBindDescriptorSets": func() {
			cb.EXPECT().CmdBindDescriptorSets(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
		},
		"CmdDraw": func() { cb.EXPECT().CmdDraw(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes() },
		"CmdDrawIndexed": func() {
			cb.EXPECT().CmdDrawIndexed(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
		},
	}

	for method, expect := range expectations {
		if !skipped[method] {
			expect()
		}
	}
}

func (r *testRig) expectSubmit() {
	r.queue.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(core1_0.VKSuccess, nil).AnyTimes()
}

func (r *testRig) expectDescriptorSets() {
	r.device.EXPECT().AllocateDescriptorSets(gomock.Any()).DoAndReturn(
		func(info core1_0.DescriptorSetAllocateInfo) ([]core1_0.DescriptorSet, common.VkResult, error) {
			return []core1_0.DescriptorSet{mocks.NewMockDescriptorSet(r.ctrl)}, core1_0.VKSuccess, nil
		}).AnyTimes()
}

func (r *testRig) expectFramebuffers() {
	r.device.EXPECT().CreateFramebuffer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(allocator any, info core1_0.FramebufferCreateInfo) (core1_0.Framebuffer, common.VkResult, error) {
			return mocks.NewMockFramebuffer(r.ctrl), core1_0.VKSuccess, nil
		}).AnyTimes()
}

// expectImmediate accepts the commands executeImmediate records for texture initialization,
// along with their submission
func (r *testRig) expectImmediate() {
	cb := r.copyCommandBuffer
	cb.EXPECT().Begin(gomock.Any()).Return(core1_0.VKSuccess, nil).AnyTimes()
	cb.EXPECT().End().Return(core1_0.VKSuccess, nil).AnyTimes()
	cb.EXPECT().CmdPipelineBarrier(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	r.expectSubmit()
}

// expectImageCreation makes every CreateImage and CreateImageView call return a fresh mock. Image
// memory comes from the rig's memory manager.
func (r *testRig) expectImageCreation() (*[]*mocks.MockImage, *[]core1_0.ImageViewCreateInfo) {
	var images []*mocks.MockImage
	var views []core1_0.ImageViewCreateInfo

	expectAllocations(r.ctrl, r.device)
	r.device.EXPECT().CreateImage(gomock.Nil(), gomock.Any()).DoAndReturn(
		func(allocator any, info core1_0.ImageCreateInfo) (core1_0.Image, common.VkResult, error) {
			image := mocks.NewMockImage(r.ctrl)
			image.EXPECT().MemoryRequirements().Return(&core1_0.MemoryRequirements{Size: 4096, Alignment: 256, MemoryTypeBits: 0b11}).AnyTimes()
			image.EXPECT().BindImageMemory(gomock.Any(), 0).Return(core1_0.VKSuccess, nil).AnyTimes()
			images = append(images, image)
			return image, core1_0.VKSuccess, nil
		}).AnyTimes()
	r.device.EXPECT().CreateImageView(gomock.Nil(), gomock.Any()).DoAndReturn(
		func(allocator any, info core1_0.ImageViewCreateInfo) (core1_0.ImageView, common.VkResult, error) {
			views = append(views, info)
			return mocks.NewMockImageView(r.ctrl), core1_0.VKSuccess, nil
		}).AnyTimes()

	return &images, &views
}

func (r *testRig) newCommandList(t *testing.T) *CommandList {
	list, err := NewCommandList(r.d)
	require.NoError(t, err)
	return list
}

// newTexture builds a texture around mock handles, already initialized into its resting state
func (r *testRig) newTexture(t *testing.T, description TextureDescription) *Texture {
	description = description.withDefaults()
	info, err := lookupFormat(description.Format)
	require.NoError(t, err)

	texture := &Texture{
		graphicsResource: newGraphicsResource(r.d, description.Name, description.Usage),
		description:      description,
		ownership:        OwnershipOwning,
		view: TextureViewDescription{
			ArraySize: description.ArraySize,
			MipCount:  description.MipLevels,
			Flags:     description.Flags,
		},
		format:     description.Format,
		formatInfo: info,
		aspect:     formatAspect(description.Format),
	}

	if description.Usage == UsageStaging {
		texture.stagingBuffer = mocks.NewMockBuffer(r.ctrl)
		texture.memory = &DeviceAllocation{Size: texture.ComputeBufferTotalSize()}
		texture.accessMask = core1_0.AccessHostRead | core1_0.AccessHostWrite
		texture.stageMask = core1_0.PipelineStageHost
		return texture
	}

	texture.image = mocks.NewMockImage(r.ctrl)
	texture.resting = restingState(description.Flags)
	texture.setState(texture.resting)
	texture.initialized = true

	if description.Flags&TextureRenderTarget != 0 {
		texture.colorAttachmentView = mocks.NewMockImageView(r.ctrl)
	}
	if description.Flags&TextureDepthStencil != 0 {
		texture.depthStencilView = mocks.NewMockImageView(r.ctrl)
	}
	if description.Flags&TextureShaderResource != 0 {
		texture.shaderResourceView = mocks.NewMockImageView(r.ctrl)
	}
	return texture
}

func (r *testRig) newBuffer(description BufferDescription) *Buffer {
	buffer := &Buffer{
		graphicsResource: newGraphicsResource(r.d, description.Name, description.Usage),
		description:      description,
		buffer:           mocks.NewMockBuffer(r.ctrl),
	}
	buffer.accessMask, buffer.stageMask = buffer.restingState()
	return buffer
}

// newPipeline builds a pipeline around mock handles whose descriptor set holds only the
// immutable sampler
func (r *testRig) newPipeline(scissorTest bool) *PipelineState {
	pipeline := r.newPipelineFromLayout(&RootSignature{}, &EffectBytecode{})
	pipeline.description.RasterizerState.ScissorTestEnable = scissorTest
	return pipeline
}

// newPipelineFromLayout builds a pipeline around mock handles with the descriptor layout
// buildPipelineLayout derives from root and bytecode
func (r *testRig) newPipelineFromLayout(root *RootSignature, bytecode *EffectBytecode) *PipelineState {
	layout, err := buildPipelineLayout(root, bytecode, &SamplerState{sampler: mocks.NewMockSampler(r.ctrl)})
	require.NoError(r.t, err)

	return &PipelineState{
		device:              r.d,
		renderPass:          mocks.NewMockRenderPass(r.ctrl),
		descriptorSetLayout: mocks.NewMockDescriptorSetLayout(r.ctrl),
		layout:              mocks.NewMockPipelineLayout(r.ctrl),
		pipeline:            mocks.NewMockPipeline(r.ctrl),
		bindingMappings:     layout.mappings,
		typeCounts:          layout.typeCounts,
		resourceGroupCount:  layout.resourceGroupCount,
	}
}

func renderTargetDescription(width, height int) TextureDescription {
	return TextureDescription{
		Dimension: Texture2D,
		Width:     width,
		Height:    height,
		Format:    core1_0.FormatR8G8B8A8SRGB,
		Usage:     UsageDefault,
		Flags:     TextureRenderTarget | TextureShaderResource,
	}
}
