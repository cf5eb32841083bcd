package vgb

import (
	"context"

	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// MaxViewportCount is the number of viewports and scissor rectangles a command list tracks
const MaxViewportCount = 16

// CommandList records drawing, copy, and barrier commands into a command buffer drawn from the
// device pool. Render passes, framebuffers, and descriptor sets are created lazily as draws
// need them.
//
// A CommandList is not safe for concurrent use. Use one list per recording goroutine.
type CommandList struct {
	device *Device
	name   string

	current        *CompiledCommandList
	descriptorPool core1_0.DescriptorPool
	budget         descriptorBudget
	descriptorSet  core1_0.DescriptorSet

	framebuffers               *framebufferCache
	framebufferDirty           bool
	framebufferAttachments     [maxFramebufferAttachments]core1_0.ImageView
	framebufferAttachmentCount int

	activePipeline     *PipelineState
	activeRenderPass   core1_0.RenderPass
	previousRenderPass core1_0.RenderPass

	depthStencilBuffer *Texture
	renderTargets      [MaxRenderTargets]*Texture
	renderTargetCount  int

	viewports     []core1_0.Viewport
	viewportDirty bool
	scissors      []core1_0.Rect2D
	scissorsDirty bool

	stencilReference    uint32
	stencilReferenceSet bool

	boundDescriptorSets []*DescriptorSet
	destroyed           bool
}

// NewCommandList creates a command list and opens it for recording
func NewCommandList(device *Device) (*CommandList, error) {
	c := &CommandList{
		device:       device,
		name:         uuid.NewString(),
		framebuffers: newFramebufferCache(device),
		budget: descriptorBudget{
			limits:  &device.descriptorTypeLimits,
			maxSets: device.options.MaxDescriptorSetCount,
		},
	}

	device.logger.Debug("CommandList::New", slog.String("name", c.name))

	var err error
	c.descriptorPool, err = device.descriptorPools.Acquire()
	if err != nil {
		return nil, err
	}

	err = c.Reset()
	if err != nil {
		device.descriptorPools.Release(0, c.descriptorPool)
		return nil, err
	}

	device.RegisterRecreatable(c)
	return c, nil
}

// Name is the generated debug name of the list
func (c *CommandList) Name() string { return c.name }

func (c *CommandList) Device() *Device { return c.device }

// IsOpen reports whether the list is recording
func (c *CommandList) IsOpen() bool { return c.current != nil }

func (c *CommandList) commandBuffer() core1_0.CommandBuffer {
	return c.current.commandBuffer
}

// Reset opens the list for recording on a fresh command buffer. It does nothing if the list is
// already open.
func (c *CommandList) Reset() error {
	if c.current != nil {
		return nil
	}
	c.device.logger.Debug("CommandList::Reset", slog.String("name", c.name))

	c.activeRenderPass = nil
	c.boundDescriptorSets = nil
	for _, framebuffer := range c.framebuffers.drain() {
		c.device.Collect(NativeFramebuffer(framebuffer))
	}
	c.framebufferDirty = true

	commandBuffer, err := c.device.commandBuffers.Acquire()
	if err != nil {
		return err
	}

	_, err = commandBuffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		c.device.commandBuffers.Release(0, commandBuffer)
		return err
	}

	c.current = &CompiledCommandList{
		builder:       c,
		commandBuffer: commandBuffer,
	}

	// Dynamic state does not carry over into a new command buffer
	c.stencilReferenceSet = false
	c.viewportDirty = len(c.viewports) > 0
	c.scissorsDirty = true
	return nil
}

// Close ends recording and returns the compiled list, leaving the builder closed until the next
// Reset. Closing a list that is not open panics.
func (c *CommandList) Close() (*CompiledCommandList, error) {
	if c.current == nil {
		panic("attempted to close a command list that is not open")
	}
	c.device.logger.Debug("CommandList::Close", slog.String("name", c.name))

	c.cleanupRenderPass()

	compiled := c.current
	c.current = nil
	compiled.framebuffers = c.framebuffers.drain()
	for _, resource := range compiled.stagingResources {
		resource.base().stagingBuilder = nil
	}
	c.activePipeline = nil

	_, err := compiled.commandBuffer.End()
	if err != nil {
		compiled.abandon(c.device)
		return nil, err
	}

	return compiled, nil
}

// Flush closes the list, submits it, and reopens it
func (c *CommandList) Flush() error {
	compiled, err := c.Close()
	if err != nil {
		return err
	}

	_, err = c.device.ExecuteCommandList(compiled)
	if err != nil {
		compiled.abandon(c.device)
		return err
	}

	return c.Reset()
}

// flush submits everything recorded so far and restores the list's bound state on a fresh
// command buffer, optionally waiting for the submission to complete
func (c *CommandList) flush(wait bool) error {
	c.device.logger.Debug("CommandList::flush", slog.String("name", c.name), slog.Bool("wait", wait))

	pipeline := c.activePipeline
	sets := c.boundDescriptorSets
	stencilReference := c.stencilReference

	compiled, err := c.Close()
	if err != nil {
		return err
	}

	value, err := c.device.ExecuteCommandList(compiled)
	if err != nil {
		compiled.abandon(c.device)
		return err
	}

	if wait {
		err = c.device.WaitForFence(value)
		if err != nil {
			return err
		}
	}

	err = c.Reset()
	if err != nil {
		return err
	}

	commandBuffer := c.commandBuffer()
	commandBuffer.CmdSetStencilReference(core1_0.StencilFaceFront|core1_0.StencilFaceBack, stencilReference)
	c.stencilReference = stencilReference
	c.stencilReferenceSet = true

	c.boundDescriptorSets = sets
	if pipeline != nil {
		c.activePipeline = pipeline
		commandBuffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, pipeline.NativePipeline())
		if c.descriptorSet != nil {
			commandBuffer.CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, pipeline.NativeLayout(), 0, []core1_0.DescriptorSet{c.descriptorSet}, nil)
		}
	}

	c.setRenderTargets()
	return nil
}

// SetRenderTargets binds a depth-stencil buffer and up to MaxRenderTargets color targets. Either
// may be nil or empty.
func (c *CommandList) SetRenderTargets(depthStencilBuffer *Texture, renderTargets ...*Texture) error {
	if len(renderTargets) > MaxRenderTargets {
		return invalidUsage("%d render targets bound, at most %d are supported", len(renderTargets), MaxRenderTargets)
	}
	for index, renderTarget := range renderTargets {
		if renderTarget == nil || renderTarget.ColorAttachmentView() == nil {
			return invalidUsage("render target %d is not a color attachment", index)
		}
	}
	if depthStencilBuffer != nil && depthStencilBuffer.DepthStencilView() == nil {
		return invalidUsage("texture %q is not a depth-stencil attachment", depthStencilBuffer.Name())
	}

	c.depthStencilBuffer = depthStencilBuffer
	c.renderTargetCount = copy(c.renderTargets[:], renderTargets)
	for index := c.renderTargetCount; index < MaxRenderTargets; index++ {
		c.renderTargets[index] = nil
	}

	c.setRenderTargets()
	return nil
}

// SetRenderTargetsAndViewport binds render targets as SetRenderTargets does and sets a viewport
// covering the first render target, or the depth-stencil buffer if there is none
func (c *CommandList) SetRenderTargetsAndViewport(depthStencilBuffer *Texture, renderTargets ...*Texture) error {
	err := c.SetRenderTargets(depthStencilBuffer, renderTargets...)
	if err != nil {
		return err
	}

	sizeSource := depthStencilBuffer
	if len(renderTargets) > 0 {
		sizeSource = renderTargets[0]
	}
	if sizeSource != nil {
		c.SetViewport(core1_0.Viewport{
			Width:    float32(sizeSource.ViewWidth()),
			Height:   float32(sizeSource.ViewHeight()),
			MinDepth: 0,
			MaxDepth: 1,
		})
	}
	return nil
}

// setRenderTargets refreshes the framebuffer attachments from the bound targets, marking the
// framebuffer dirty if any attachment changed
func (c *CommandList) setRenderTargets() {
	count := 0
	for index := 0; index < c.renderTargetCount; index++ {
		view := c.renderTargets[index].ColorAttachmentView()
		if c.framebufferAttachments[count] != view {
			c.framebufferDirty = true
			c.framebufferAttachments[count] = view
		}
		count++
	}

	if c.depthStencilBuffer != nil {
		view := c.depthStencilBuffer.DepthStencilView()
		if c.framebufferAttachments[count] != view {
			c.framebufferDirty = true
			c.framebufferAttachments[count] = view
		}
		count++
	}

	if count != c.framebufferAttachmentCount {
		c.framebufferDirty = true
		c.framebufferAttachmentCount = count
	}
	for index := count; index < maxFramebufferAttachments; index++ {
		c.framebufferAttachments[index] = nil
	}
}

// SetViewport binds a single viewport
func (c *CommandList) SetViewport(viewport core1_0.Viewport) {
	if len(c.viewports) != 1 || c.viewports[0] != viewport {
		c.viewports = append(c.viewports[:0], viewport)
		c.viewportDirty = true
	}
}

// SetViewports binds up to MaxViewportCount viewports. Pipelines are built with a single
// viewport, so only the first is applied to the command buffer.
func (c *CommandList) SetViewports(viewports ...core1_0.Viewport) error {
	if len(viewports) > MaxViewportCount {
		return invalidUsage("%d viewports bound, at most %d are supported", len(viewports), MaxViewportCount)
	}
	c.viewports = append(c.viewports[:0], viewports...)
	c.viewportDirty = true
	return nil
}

// Viewport returns the first bound viewport
func (c *CommandList) Viewport() core1_0.Viewport {
	if len(c.viewports) == 0 {
		return core1_0.Viewport{}
	}
	return c.viewports[0]
}

// SetScissorRectangle binds the scissor used by pipelines with the scissor test enabled
func (c *CommandList) SetScissorRectangle(rect core1_0.Rect2D) {
	c.scissors = append(c.scissors[:0], rect)
	c.scissorsDirty = true
}

func (c *CommandList) SetScissorRectangles(rects ...core1_0.Rect2D) error {
	if len(rects) > MaxViewportCount {
		return invalidUsage("%d scissor rectangles bound, at most %d are supported", len(rects), MaxViewportCount)
	}
	c.scissors = append(c.scissors[:0], rects...)
	c.scissorsDirty = true
	return nil
}

// applyViewport records the viewport and scissor for the next draw. Without the scissor test
// the scissor follows the viewport.
func (c *CommandList) applyViewport() {
	if len(c.viewports) == 0 {
		return
	}
	commandBuffer := c.commandBuffer()
	viewport := c.viewports[0]

	if c.viewportDirty {
		commandBuffer.CmdSetViewport([]core1_0.Viewport{viewport})
		c.viewportDirty = false
	}

	if c.activePipeline != nil && c.activePipeline.description.RasterizerState.ScissorTestEnable {
		if c.scissorsDirty && len(c.scissors) > 0 {
			commandBuffer.CmdSetScissor([]core1_0.Rect2D{c.scissors[0]})
		}
	} else {
		commandBuffer.CmdSetScissor([]core1_0.Rect2D{
			{
				Offset: core1_0.Offset2D{X: int(viewport.X), Y: int(viewport.Y)},
				Extent: core1_0.Extent2D{Width: int(viewport.Width), Height: int(viewport.Height)},
			},
		})
	}
	c.scissorsDirty = false
}

// SetStencilReference sets the reference value of the stencil test
func (c *CommandList) SetStencilReference(reference uint32) {
	if c.stencilReferenceSet && c.stencilReference == reference {
		return
	}
	c.stencilReference = reference
	c.stencilReferenceSet = true
	c.commandBuffer().CmdSetStencilReference(core1_0.StencilFaceFront|core1_0.StencilFaceBack, reference)
}

// SetBlendFactor sets the constant color used by blend factors that reference it
func (c *CommandList) SetBlendFactor(factor [4]float32) {
	c.commandBuffer().CmdSetBlendConstants(factor)
}

// SetPipelineState binds a pipeline. Its render pass is begun lazily by the next draw.
func (c *CommandList) SetPipelineState(pipeline *PipelineState) {
	if pipeline == c.activePipeline {
		return
	}

	previousScissor := c.activePipeline != nil && c.activePipeline.description.RasterizerState.ScissorTestEnable
	nextScissor := pipeline != nil && pipeline.description.RasterizerState.ScissorTestEnable
	if previousScissor != nextScissor {
		c.scissorsDirty = true
	}

	c.activePipeline = pipeline
	if pipeline == nil {
		return
	}
	c.commandBuffer().CmdBindPipeline(core1_0.PipelineBindPointGraphics, pipeline.NativePipeline())
}

// SetVertexBuffer binds buffer to a vertex input slot. The stride comes from the pipeline's
// input layout.
func (c *CommandList) SetVertexBuffer(slot int, buffer *Buffer, offset int) {
	if buffer == nil {
		return
	}
	c.commandBuffer().CmdBindVertexBuffers(slot, []core1_0.Buffer{buffer.NativeBuffer()}, []int{offset})
}

func (c *CommandList) SetIndexBuffer(buffer *Buffer, offset int, is32Bit bool) {
	if buffer == nil {
		return
	}
	indexType := core1_0.IndexTypeUInt16
	if is32Bit {
		indexType = core1_0.IndexTypeUInt32
	}
	c.commandBuffer().CmdBindIndexBuffer(buffer.NativeBuffer(), offset, indexType)
}

// SetDescriptorSets binds the descriptor sets that the next draws read from. Sets are
// addressed by their index in the pipeline's root signature.
func (c *CommandList) SetDescriptorSets(index int, sets ...*DescriptorSet) error {
	if index != 0 {
		return notImplemented("binding descriptor sets at a nonzero index")
	}
	c.boundDescriptorSets = append(c.boundDescriptorSets[:0:0], sets...)
	return nil
}

// cleanupRenderPass ends the active render pass, if any
func (c *CommandList) cleanupRenderPass() {
	if c.activeRenderPass == nil {
		return
	}
	c.commandBuffer().CmdEndRenderPass()
	c.activeRenderPass = nil
}

// ensureRenderPass begins the active pipeline's render pass over the bound render targets,
// creating the framebuffer on first use. Uninitialized attachments are cleared beforehand.
func (c *CommandList) ensureRenderPass() error {
	if c.activePipeline == nil {
		return nil
	}
	renderPass := c.activePipeline.RenderPass()

	if c.previousRenderPass != renderPass {
		c.framebufferDirty = true
	}
	if !c.framebufferDirty && c.activeRenderPass == renderPass {
		return nil
	}

	c.cleanupRenderPass()
	if renderPass == nil {
		return nil
	}

	sizeSource := c.depthStencilBuffer
	if c.renderTargetCount > 0 {
		sizeSource = c.renderTargets[0]
	}
	if sizeSource == nil {
		return invalidUsage("a draw was recorded with no render target or depth-stencil buffer bound")
	}
	width, height := sizeSource.ViewWidth(), sizeSource.ViewHeight()

	for index := 0; index < c.renderTargetCount; index++ {
		renderTarget := c.renderTargets[index]
		if !renderTarget.IsInitialized() {
			err := c.ClearRenderTarget(renderTarget, [4]float32{})
			if err != nil {
				return err
			}
		}
	}
	if c.depthStencilBuffer != nil && !c.depthStencilBuffer.IsInitialized() {
		err := c.ClearDepthStencil(c.depthStencilBuffer, ClearDepth|ClearStencil, 1, 0)
		if err != nil {
			return err
		}
	}

	framebuffer, err := c.framebuffers.get(framebufferKey{
		renderPass:      renderPass,
		attachmentCount: c.framebufferAttachmentCount,
		attachments:     c.framebufferAttachments,
	}, width, height)
	if err != nil {
		return err
	}
	c.framebufferDirty = false

	err = c.commandBuffer().CmdBeginRenderPass(core1_0.SubpassContentsInline, core1_0.RenderPassBeginInfo{
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		RenderArea: core1_0.Rect2D{
			Offset: core1_0.Offset2D{X: 0, Y: 0},
			Extent: core1_0.Extent2D{Width: width, Height: height},
		},
	})
	if err != nil {
		return err
	}

	c.activeRenderPass = renderPass
	c.previousRenderPass = renderPass
	return nil
}

// prepareDraw flushes dynamic state, begins the render pass, and binds a descriptor set written
// from the bound descriptor sets
func (c *CommandList) prepareDraw() error {
	if c.activePipeline == nil {
		return invalidUsage("a draw was recorded with no pipeline state bound")
	}
	pipeline := c.activePipeline

	c.applyViewport()
	if !c.stencilReferenceSet {
		c.SetStencilReference(0)
	}

	err := c.ensureRenderPass()
	if err != nil {
		return err
	}

	if !c.budget.reserve(&pipeline.typeCounts) || c.descriptorPool == nil {
		err = c.rolloverDescriptorPool()
		if err != nil {
			return err
		}
	}

	sets, _, err := c.device.device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: c.descriptorPool,
		SetLayouts:     []core1_0.DescriptorSetLayout{pipeline.DescriptorSetLayout()},
	})
	if err != nil {
		return err
	}
	c.descriptorSet = sets[0]

	writes, err := writeDescriptors(c.descriptorSet, pipeline.BindingMappings(), c.boundDescriptorSets, c.device.descriptorFallbacks())
	if err != nil {
		return err
	}
	if len(writes) > 0 {
		err = c.device.device.UpdateDescriptorSets(writes, nil)
		if err != nil {
			return err
		}
	}

	c.commandBuffer().CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, pipeline.NativeLayout(), 0, []core1_0.DescriptorSet{c.descriptorSet}, nil)
	return nil
}

// rolloverDescriptorPool retires the current descriptor pool into the open compiled list and
// acquires a fresh one
func (c *CommandList) rolloverDescriptorPool() error {
	c.device.logger.LogAttrs(context.Background(), slog.LevelDebug, "CommandList::rolloverDescriptorPool",
		slog.String("name", c.name),
		slog.Int("retired", len(c.current.descriptorPools)+1),
	)

	if c.descriptorPool != nil {
		c.current.descriptorPools = append(c.current.descriptorPools, c.descriptorPool)
		c.descriptorPool = nil
	}

	pool, err := c.device.descriptorPools.Acquire()
	if err != nil {
		return err
	}
	c.descriptorPool = pool
	return nil
}

// ResourceBarrierTransition moves a texture into the native state for state. Nothing is
// recorded if the texture is already there. Barriers against views are tracked on the texture
// that owns the image.
func (c *CommandList) ResourceBarrierTransition(resource Resource, state ResourceState) error {
	texture, ok := resource.(*Texture)
	if !ok {
		return notImplemented("barrier transitions of buffers")
	}

	root := texture.root()
	if root.image == nil {
		return invalidUsage("texture %q has no image to transition", texture.Name())
	}

	old := root.state()
	next := stateForResourceState(state)
	if old == next {
		return nil
	}

	c.device.logger.Debug("CommandList::ResourceBarrierTransition",
		slog.String("texture", root.Name()),
		slog.String("state", state.String()),
	)

	c.cleanupRenderPass()
	err := transitionImage(c.commandBuffer(), root.image, wholeImage(root.aspect, root.description.MipLevels, root.description.ArraySize), old, next)
	if err != nil {
		return err
	}

	root.setState(next)
	return nil
}

func (d *Device) descriptorFallbacks() descriptorFallbacks {
	return descriptorFallbacks{
		texture:    d.emptyTexture,
		texelInt:   d.emptyTexelBufferInt,
		texelFloat: d.emptyTexelBufferFloat,
		sampler:    d.linearClampSampler,
	}
}

func (c *CommandList) RecreateStage() RecreateStage {
	return RecreateStageCommandLists
}

// Recreate abandons the recording in progress and reopens the list on fresh native objects.
// Bound state is kept but must be re-applied by the caller's next draw.
func (c *CommandList) Recreate() error {
	c.device.logger.Debug("CommandList::Recreate", slog.String("name", c.name))

	if c.current != nil {
		c.current.framebuffers = c.framebuffers.drain()
		c.current.abandon(c.device)
		c.current = nil
	}

	c.activePipeline = nil
	c.activeRenderPass = nil
	c.previousRenderPass = nil
	c.descriptorSet = nil
	c.framebufferDirty = true

	if c.descriptorPool != nil {
		c.device.descriptorPools.Release(0, c.descriptorPool)
		c.descriptorPool = nil
	}
	c.budget.reset()

	var err error
	c.descriptorPool, err = c.device.descriptorPools.Acquire()
	if err != nil {
		return err
	}

	return c.Reset()
}

// Destroy abandons any open recording and returns the list's descriptor pool to the device once
// every submission made so far has completed
func (c *CommandList) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.device.logger.Debug("CommandList::Destroy", slog.String("name", c.name))

	c.device.UnregisterRecreatable(c)

	if c.current != nil {
		c.activeRenderPass = nil
		c.current.framebuffers = c.framebuffers.drain()
		c.current.abandon(c.device)
		c.current = nil
	}

	if c.descriptorPool != nil {
		c.device.descriptorPools.Release(c.device.NextFenceValue(), c.descriptorPool)
		c.descriptorPool = nil
	}
}
