package vgb

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/google/uuid"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
	"github.com/vkngwrapper/graphics/fenced"
	"github.com/vkngwrapper/graphics/internal/utils"
	"github.com/vkngwrapper/graphics/vgb/internal/vulkan"
	"golang.org/x/exp/slog"
)

// Recreatable is implemented by objects that must rebuild their native handles when the
// device is recreated
type Recreatable interface {
	RecreateStage() RecreateStage
	Recreate() error
}

// Device is the backend's device context. It owns the submission queue and timeline, and the
// pools, collector, and allocators that every other object in this package draws from.
type Device struct {
	logger   *slog.Logger
	id       uuid.UUID
	useMutex bool
	options  CreateOptions

	instance       core1_0.Instance
	physicalDevice core1_0.PhysicalDevice
	device         core1_0.Device
	extensions     *vulkan.ExtensionData
	properties     *vulkan.DeviceMemoryProperties

	queue     core1_0.Queue
	queueLock sync.Mutex
	copyLock  sync.Mutex
	timeline  *fenced.Timeline
	status    atomic.Int32

	fences               *fenced.Pool[core1_0.Fence]
	commandBufferHandler *commandBufferHandler
	commandBuffers       *fenced.Pool[core1_0.CommandBuffer]
	copyBufferHandler    *commandBufferHandler
	copyCommandBuffers   *fenced.Pool[core1_0.CommandBuffer]
	descriptorPools      *fenced.Pool[core1_0.DescriptorPool]
	collector            *fenced.Collector[NativeObject]

	memory   *MemoryManager
	upload   *UploadAllocator
	uploader uploader

	descriptorTypeLimits descriptorTypeCounts

	formatLock   sync.Mutex
	depthFormats *swiss.Map[core1_0.Format, core1_0.Format]

	recreatableLock utils.OptionalRWMutex
	recreatables    map[Recreatable]struct{}

	emptyTexture          *Texture
	emptyTexelBufferInt   *Buffer
	emptyTexelBufferFloat *Buffer
	linearClampSampler    *SamplerState
	pointWrapSampler      *SamplerState

	frameDrawCalls     atomic.Int64
	frameTriangleCount atomic.Int64
	submitCount        atomic.Uint64
	submitNanos        atomic.Int64
}

// New creates a Device over a logical device the caller has already created. The device must
// have khr_swapchain active.
//
// logger - The logger that device operations report to
//
// instance - The instance the device was created from
//
// physicalDevice - The physical device the device was created from
//
// device - The logical device to build on. The caller remains responsible for destroying it
// after Device.Destroy
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, instance core1_0.Instance, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, options CreateOptions) (*Device, error) {
	d, err := newDevice(logger, instance, physicalDevice, device, options)
	if err != nil {
		return nil, err
	}

	if options.Flags&DeviceCreateSkipFallbackResources == 0 {
		err = d.createFallbackResources()
		if err != nil {
			d.Destroy()
			return nil, err
		}
	}

	return d, nil
}

func newDevice(logger *slog.Logger, instance core1_0.Instance, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, options CreateOptions) (*Device, error) {
	options = options.withDefaults()
	useMutex := options.Flags&DeviceCreateExternallySynchronized == 0

	extensions := vulkan.NewExtensionData(device)
	if !extensions.Swapchain {
		return nil, errors.Wrapf(ErrExtensionMissing, "%s", khr_swapchain.ExtensionName)
	}

	properties, err := vulkan.NewDeviceMemoryProperties(nil, device, physicalDevice)
	if err != nil {
		return nil, err
	}

	d := &Device{
		logger:   logger,
		id:       uuid.New(),
		useMutex: useMutex,
		options:  options,

		instance:       instance,
		physicalDevice: physicalDevice,
		device:         device,
		extensions:     extensions,
		properties:     properties,

		descriptorTypeLimits: options.descriptorTypeLimits(),
		depthFormats:         swiss.NewMap[core1_0.Format, core1_0.Format](8),

		recreatableLock: utils.OptionalRWMutex{UseMutex: useMutex},
		recreatables:    make(map[Recreatable]struct{}),
	}

	d.timeline = fenced.NewTimeline(d.retireSubmission)
	d.collector = fenced.NewCollector[NativeObject](d.timeline, d.destroyNative, useMutex)
	d.fences = fenced.NewPool[core1_0.Fence](&fenceHandler{device: device}, d.timeline, useMutex)

	d.commandBufferHandler, err = newCommandBufferHandler(device, options.QueueFamilyIndex, useMutex)
	if err != nil {
		return nil, err
	}
	d.copyBufferHandler, err = newCommandBufferHandler(device, options.QueueFamilyIndex, useMutex)
	if err != nil {
		d.commandBufferHandler.destroyPool()
		return nil, err
	}
	d.commandBuffers = fenced.NewPool[core1_0.CommandBuffer](d.commandBufferHandler, d.timeline, useMutex)
	d.copyCommandBuffers = fenced.NewPool[core1_0.CommandBuffer](d.copyBufferHandler, d.timeline, useMutex)
	d.descriptorPools = fenced.NewPool[core1_0.DescriptorPool](
		newDescriptorPoolHandler(device, options.MaxDescriptorSetCount, &d.descriptorTypeLimits),
		d.timeline,
		useMutex,
	)

	d.memory = newMemoryManager(logger, properties, extensions)
	d.upload = newUploadAllocator(logger, device, d.memory, options.UploadBufferSize, d.Collect)
	d.uploader = &lockedUploader{allocate: d.upload}
	d.RegisterRecreatable(d.upload)

	d.queue = device.GetQueue(options.QueueFamilyIndex, 0)

	logger.Debug("Device::New",
		slog.String("id", d.id.String()),
		slog.Int("queueFamily", options.QueueFamilyIndex),
		slog.Int("uploadBufferSize", options.UploadBufferSize),
		slog.Int("maxDescriptorSets", options.MaxDescriptorSetCount),
	)

	return d, nil
}

func (d *Device) createFallbackResources() error {
	var err error

	d.emptyTexelBufferInt, err = NewBuffer(d, BufferDescription{
		SizeInBytes: 16,
		Flags:       BufferShaderResource,
		Usage:       UsageDefault,
		ViewFormat:  formatR32G32B32A32UnsignedInt,
		Name:        "EmptyTexelBufferInt",
	}, make([]byte, 16))
	if err != nil {
		return err
	}

	d.emptyTexelBufferFloat, err = NewBuffer(d, BufferDescription{
		SizeInBytes: 16,
		Flags:       BufferShaderResource,
		Usage:       UsageDefault,
		ViewFormat:  formatR32G32B32A32SignedFloat,
		Name:        "EmptyTexelBufferFloat",
	}, make([]byte, 16))
	if err != nil {
		return err
	}

	d.emptyTexture, err = NewTexture(d, TextureDescription{
		Dimension: Texture2D,
		Width:     1,
		Height:    1,
		Depth:     1,
		ArraySize: 1,
		MipLevels: 1,
		Format:    formatR8G8B8A8UnsignedNormalized,
		Flags:     TextureShaderResource,
		Usage:     UsageDefault,
		Name:      "EmptyTexture",
	}, DataBox{Data: make([]byte, 4), RowPitch: 4, SlicePitch: 4})
	if err != nil {
		return err
	}

	d.linearClampSampler, err = NewSamplerState(d, SamplerLinearClamp())
	if err != nil {
		return err
	}

	d.pointWrapSampler, err = NewSamplerState(d, SamplerPointWrap())
	return err
}

func (d *Device) destroyFallbackResources() {
	if d.emptyTexture != nil {
		d.emptyTexture.Destroy()
		d.emptyTexture = nil
	}
	if d.emptyTexelBufferInt != nil {
		d.emptyTexelBufferInt.Destroy()
		d.emptyTexelBufferInt = nil
	}
	if d.emptyTexelBufferFloat != nil {
		d.emptyTexelBufferFloat.Destroy()
		d.emptyTexelBufferFloat = nil
	}
	if d.linearClampSampler != nil {
		d.linearClampSampler.Destroy()
		d.linearClampSampler = nil
	}
	if d.pointWrapSampler != nil {
		d.pointWrapSampler.Destroy()
		d.pointWrapSampler = nil
	}
}

// ID is a unique identifier used to tell devices apart in logs and statistics
func (d *Device) ID() uuid.UUID { return d.id }

func (d *Device) NativeDevice() core1_0.Device { return d.device }

func (d *Device) PhysicalDevice() core1_0.PhysicalDevice { return d.physicalDevice }

// EmptyTexture is bound in place of missing shader resource textures
func (d *Device) EmptyTexture() *Texture { return d.emptyTexture }

// EmptyTexelBufferInt is bound in place of missing integer texel buffers
func (d *Device) EmptyTexelBufferInt() *Buffer { return d.emptyTexelBufferInt }

// EmptyTexelBufferFloat is bound in place of missing float texel buffers
func (d *Device) EmptyTexelBufferFloat() *Buffer { return d.emptyTexelBufferFloat }

// LinearClampSampler is bound in place of missing samplers
func (d *Device) LinearClampSampler() *SamplerState { return d.linearClampSampler }

// PointWrapSampler is the immutable sampler every pipeline layout reserves binding 0 for
func (d *Device) PointWrapSampler() *SamplerState { return d.pointWrapSampler }

// Memory returns the device's memory manager
func (d *Device) Memory() *MemoryManager { return d.memory }

// UploadAllocator returns the device's upload allocator
func (d *Device) UploadAllocator() *UploadAllocator { return d.upload }

func (d *Device) retireSubmission(value uint64, signal fenced.Signal) {
	if fs, ok := signal.(fenceSignal); ok {
		d.fences.Release(value, fs.fence)
	}
}

func (d *Device) destroyNative(obj NativeObject) {
	obj.destroy(d.memory)
}

func (d *Device) reportResult(res common.VkResult) {
	switch res {
	case core1_0.VKErrorDeviceLost:
		d.status.Store(int32(DeviceStatusRemoved))
	case core1_0.VKTimeout:
		d.status.Store(int32(DeviceStatusHung))
	default:
		d.status.CompareAndSwap(int32(DeviceStatusNormal), int32(DeviceStatusInternalError))
	}
}

// Status reports the health of the native device. Anything other than DeviceStatusNormal
// means the device should be recreated.
func (d *Device) Status() DeviceStatus {
	return DeviceStatus(d.status.Load())
}

// Collect hands a native object to the collector. It is destroyed once every submission made
// up to now, and the next one, has completed.
func (d *Device) Collect(obj NativeObject) {
	if obj.IsNil() {
		return
	}
	d.collector.Add(d.timeline.NextValue(), obj)
}

// NextFenceValue returns the value the next submission will be assigned
func (d *Device) NextFenceValue() uint64 {
	return d.timeline.NextValue()
}

// IsFenceComplete reports whether the submission assigned value has completed
func (d *Device) IsFenceComplete(value uint64) bool {
	return d.timeline.IsComplete(value)
}

// WaitForFence blocks until the submission assigned value has completed
func (d *Device) WaitForFence(value uint64) error {
	d.logger.Debug("Device::WaitForFence", slog.Uint64("value", value))

	err := d.timeline.Wait(value)
	d.collector.Release()
	return err
}

func (d *Device) submit(commandBuffers []core1_0.CommandBuffer) (uint64, error) {
	fence, err := d.fences.Acquire()
	if err != nil {
		return 0, err
	}

	var submitInfos []core1_0.SubmitInfo
	if len(commandBuffers) > 0 {
		submitInfos = []core1_0.SubmitInfo{
			{CommandBuffers: commandBuffers},
		}
	}

	start := hrtime.Now()
	d.queueLock.Lock()
	res, err := d.queue.Submit(fence, submitInfos)
	if err != nil {
		d.queueLock.Unlock()
		d.reportResult(res)
		// The fence was never submitted so it can be handed straight back out
		d.fences.Release(0, fence)
		return 0, errors.Wrap(err, "queue submission failed")
	}
	value := d.timeline.Enqueue(fenceSignal{fence: fence, report: d.reportResult})
	d.queueLock.Unlock()

	d.submitCount.Add(1)
	d.submitNanos.Add(int64(hrtime.Since(start)))

	return value, nil
}

// ExecuteCommandList submits a closed command list and returns the value assigned to the
// submission
func (d *Device) ExecuteCommandList(list *CompiledCommandList) (uint64, error) {
	return d.ExecuteCommandLists(list)
}

// ExecuteCommandLists submits several closed command lists as a single submission. Each list
// may only be submitted once. Its command buffer and descriptor pools return to the device
// pools under the returned value.
func (d *Device) ExecuteCommandLists(lists ...*CompiledCommandList) (uint64, error) {
	d.logger.Debug("Device::ExecuteCommandLists", slog.Int("count", len(lists)))

	commandBuffers := make([]core1_0.CommandBuffer, 0, len(lists))
	for _, list := range lists {
		if list == nil || list.commandBuffer == nil {
			return 0, invalidUsage("attempted to execute an empty command list")
		}
		if list.submitted {
			return 0, invalidUsage("attempted to execute a command list more than once")
		}
		commandBuffers = append(commandBuffers, list.commandBuffer)
	}

	value, err := d.submit(commandBuffers)
	if err != nil {
		return 0, err
	}

	for _, list := range lists {
		list.release(d, value)
	}

	d.collector.Release()
	return value, nil
}

// executeImmediate records commands on a one-shot copy command buffer, submits it, and waits
// for it to complete
func (d *Device) executeImmediate(record func(commandBuffer core1_0.CommandBuffer) error) (uint64, error) {
	d.copyLock.Lock()
	defer d.copyLock.Unlock()

	commandBuffer, err := d.copyCommandBuffers.Acquire()
	if err != nil {
		return 0, err
	}

	_, err = commandBuffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err == nil {
		err = record(commandBuffer)
		_, endErr := commandBuffer.End()
		if err == nil {
			err = endErr
		}
	}

	var value uint64
	if err == nil {
		value, err = d.submit([]core1_0.CommandBuffer{commandBuffer})
	}
	if err != nil {
		d.copyCommandBuffers.Release(0, commandBuffer)
		return 0, err
	}

	d.copyCommandBuffers.Release(value, commandBuffer)

	err = d.timeline.Wait(value)
	d.collector.Release()
	return value, err
}

// EndFrame submits an empty batch so that pools and the collector advance even on frames with
// no command lists, and resets the frame statistics
func (d *Device) EndFrame() (uint64, error) {
	d.logger.Debug("Device::EndFrame",
		slog.Int64("drawCalls", d.frameDrawCalls.Load()),
		slog.Int64("triangles", d.frameTriangleCount.Load()),
	)

	value, err := d.submit(nil)
	d.frameDrawCalls.Store(0)
	d.frameTriangleCount.Store(0)
	if err != nil {
		return 0, err
	}

	d.collector.Release()
	return value, nil
}

// FrameDrawCalls returns the number of draws recorded since the last EndFrame
func (d *Device) FrameDrawCalls() int64 {
	return d.frameDrawCalls.Load()
}

// FrameTriangleCount returns the number of triangles drawn since the last EndFrame
func (d *Device) FrameTriangleCount() int64 {
	return d.frameTriangleCount.Load()
}

// WaitIdle blocks until the queue has finished all submitted work, then releases everything
// the collector holds
func (d *Device) WaitIdle() error {
	d.logger.Debug("Device::WaitIdle")

	d.queueLock.Lock()
	res, err := d.queue.WaitIdle()
	d.queueLock.Unlock()
	if err != nil {
		d.reportResult(res)
		return err
	}

	err = d.timeline.Drain()
	d.collector.Release()
	return err
}

// RegisterRecreatable adds an object to the set rebuilt by Recreate
func (d *Device) RegisterRecreatable(r Recreatable) {
	d.recreatableLock.Lock()
	defer d.recreatableLock.Unlock()

	d.recreatables[r] = struct{}{}
}

func (d *Device) UnregisterRecreatable(r Recreatable) {
	d.recreatableLock.Lock()
	defer d.recreatableLock.Unlock()

	delete(d.recreatables, r)
}

func (d *Device) recreatablesByStage() [recreateStageCount][]Recreatable {
	d.recreatableLock.RLock()
	defer d.recreatableLock.RUnlock()

	var stages [recreateStageCount][]Recreatable
	for r := range d.recreatables {
		stage := r.RecreateStage()
		stages[stage] = append(stages[stage], r)
	}
	return stages
}

// Recreate rebuilds the native objects of every registered Recreatable, memory first, then
// resources, pipelines, and finally command lists. Work still on the GPU is abandoned.
func (d *Device) Recreate() error {
	d.logger.Debug("Device::Recreate")
	d.status.Store(int32(DeviceStatusReset))

	err := d.WaitIdle()
	if err != nil {
		d.logger.Warn("Device::Recreate", slog.String("waitIdle", err.Error()))
	}
	d.collector.Dispose()

	stages := d.recreatablesByStage()
	for stage, recreatables := range stages {
		// Registration order is lost in the map, so rebuild in a stable order for reproducible logs
		sort.SliceStable(recreatables, func(i, j int) bool {
			return recreatableName(recreatables[i]) < recreatableName(recreatables[j])
		})

		for _, r := range recreatables {
			err = r.Recreate()
			if err != nil {
				d.status.Store(int32(DeviceStatusInternalError))
				return errors.Wrapf(err, "recreating %s", RecreateStage(stage))
			}
		}
	}

	d.status.Store(int32(DeviceStatusNormal))
	return nil
}

type named interface {
	Name() string
}

func recreatableName(r Recreatable) string {
	if n, ok := r.(named); ok {
		return n.Name()
	}
	return ""
}

func (d *Device) supportsDepthStencilAttachment(format core1_0.Format) bool {
	props := d.physicalDevice.FormatProperties(format)
	return props != nil && props.OptimalTilingFeatures&core1_0.FormatFeatureDepthStencilAttachment != 0
}

// depthStencilFormat resolves a requested depth-stencil format to the first supported entry
// of its fallback list
func (d *Device) depthStencilFormat(requested core1_0.Format) (core1_0.Format, error) {
	d.formatLock.Lock()
	defer d.formatLock.Unlock()

	if format, ok := d.depthFormats.Get(requested); ok {
		return format, nil
	}

	format, err := selectDepthStencilFormat(d.supportsDepthStencilAttachment, requested)
	if err != nil {
		return format, err
	}

	d.depthFormats.Put(requested, format)
	return format, nil
}

// Destroy waits for the GPU, then destroys every object the device owns. Resources created
// from the device should be destroyed first.
func (d *Device) Destroy() {
	d.logger.Debug("Device::Destroy")

	err := d.WaitIdle()
	if err != nil {
		d.logger.Warn("Device::Destroy", slog.String("waitIdle", err.Error()))
	}

	d.destroyFallbackResources()
	d.upload.Destroy()

	d.collector.Dispose()
	d.descriptorPools.Destroy()
	d.commandBuffers.Destroy()
	d.copyCommandBuffers.Destroy()
	d.commandBufferHandler.destroyPool()
	d.copyBufferHandler.destroyPool()
	d.fences.Destroy()
}
