package vgb

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/mocks"
)

func TestCommandList_DescriptorPoolRollover(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()
	rig.expectFramebuffers()
	rig.expectSubmit()

	material := DescriptorSetLayoutDescription{
		Name: "Material",
		Entries: []DescriptorSetLayoutEntry{
			{Name: "Constants", Class: ParameterClassConstantBuffer, Type: ParameterTypeConstantBuffer},
			{Name: "Albedo", Class: ParameterClassShaderResourceView, Type: ParameterTypeTexture2D, ElementType: ParameterTypeFloat},
		},
	}
	pipeline := rig.newPipelineFromLayout(
		&RootSignature{DefaultSetSlot: "Material", Layouts: []DescriptorSetLayoutDescription{material}},
		&EffectBytecode{
			Stages: []ShaderStageBytecode{
				{Stage: ShaderStagePixel, ResourceBindings: map[string]int{"Constants": 1, "Albedo": 2}},
			},
			ResourceBindings: []ResourceBinding{{Name: "Constants"}, {Name: "Albedo"}},
		},
	)

	// The immutable default sampler at binding 0 is the only sampler in each set, so the default
	// limit of 256 samplers per pool holds 256 sets
	require.Equal(t, 1, pipeline.typeCounts[core1_0.DescriptorTypeSampler])
	require.Equal(t, 1, pipeline.typeCounts[core1_0.DescriptorTypeUniformBuffer])
	require.Equal(t, 1, pipeline.typeCounts[core1_0.DescriptorTypeSampledImage])
	require.Equal(t, 256, rig.d.descriptorTypeLimits[core1_0.DescriptorTypeSampler])
	require.Len(t, pipeline.BindingMappings(), 2)

	albedo := renderTargetDescription(8, 8)
	albedo.Flags = TextureShaderResource
	set := NewDescriptorSet(&material)
	require.NoError(t, set.SetConstantBuffer(0, rig.newBuffer(BufferDescription{SizeInBytes: 64, Flags: BufferConstantBuffer}), 0, 0))
	require.NoError(t, set.SetShaderResourceView(1, rig.newTexture(t, albedo), nil))

	rig.device.EXPECT().AllocateDescriptorSets(gomock.Any()).DoAndReturn(
		func(info core1_0.DescriptorSetAllocateInfo) ([]core1_0.DescriptorSet, common.VkResult, error) {
			require.NotNil(t, info.DescriptorPool)
			return []core1_0.DescriptorSet{mocks.NewMockDescriptorSet(rig.ctrl)}, core1_0.VKSuccess, nil
		}).Times(300)
	rig.device.EXPECT().UpdateDescriptorSets(gomock.Any(), nil).DoAndReturn(
		func(writes []core1_0.WriteDescriptorSet, copies []core1_0.CopyDescriptorSet) error {
			require.Len(t, writes, 2)
			require.Equal(t, core1_0.DescriptorTypeUniformBuffer, writes[0].DescriptorType)
			require.Equal(t, core1_0.DescriptorTypeSampledImage, writes[1].DescriptorType)
			return nil
		}).Times(300)

	list := rig.newCommandList(t)
	// Lift the per-pool set count so that only the sampler limit applies
	list.budget.maxSets = 4 * defaultMaxDescriptorSetCount

	renderTarget := rig.newTexture(t, renderTargetDescription(64, 64))
	require.NoError(t, list.SetRenderTargetsAndViewport(nil, renderTarget))
	list.SetPipelineState(pipeline)
	require.NoError(t, list.SetDescriptorSets(0, set))

	for draw := 0; draw < 300; draw++ {
		require.NoError(t, list.Draw(3, 0))
	}

	require.Equal(t, 2, rig.descriptorPools.created)
	require.Len(t, list.current.descriptorPools, 1)
	require.Equal(t, 44, list.budget.counts[core1_0.DescriptorTypeSampler])
	require.Equal(t, int64(300), rig.d.FrameDrawCalls())
	require.Equal(t, int64(900), rig.d.FrameTriangleCount())

	compiled, err := list.Close()
	require.NoError(t, err)
	value, err := rig.d.ExecuteCommandList(compiled)
	require.NoError(t, err)
	require.Equal(t, uint64(1), value)

	stats := rig.d.descriptorPools.Statistics()
	require.Equal(t, 2, stats.Created)
	require.Equal(t, 1, stats.Pending)
}

func TestCommandList_FramebufferCache(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()
	rig.expectDescriptorSets()
	rig.expectSubmit()

	list := rig.newCommandList(t)
	first := rig.newTexture(t, renderTargetDescription(64, 32))
	second := rig.newTexture(t, renderTargetDescription(64, 32))

	var created []core1_0.FramebufferCreateInfo
	rig.device.EXPECT().CreateFramebuffer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(allocator any, info core1_0.FramebufferCreateInfo) (core1_0.Framebuffer, common.VkResult, error) {
			created = append(created, info)
			return mocks.NewMockFramebuffer(rig.ctrl), core1_0.VKSuccess, nil
		}).Times(2)

	list.SetPipelineState(rig.newPipeline(false))
	for _, renderTarget := range []*Texture{first, second, first} {
		require.NoError(t, list.SetRenderTargetsAndViewport(nil, renderTarget))
		require.NoError(t, list.Draw(3, 0))
	}

	require.Len(t, created, 2)
	require.Equal(t, []core1_0.ImageView{first.ColorAttachmentView()}, created[0].Attachments)
	require.Equal(t, []core1_0.ImageView{second.ColorAttachmentView()}, created[1].Attachments)
	require.Equal(t, 64, created[0].Width)
	require.Equal(t, 32, created[0].Height)
	require.Equal(t, uint32(1), created[0].Layers)

	compiled, err := list.Close()
	require.NoError(t, err)
	require.Len(t, compiled.framebuffers, 2)
	require.Equal(t, 0, list.framebuffers.len())

	_, err = rig.d.ExecuteCommandList(compiled)
	require.NoError(t, err)

	require.Len(t, rig.collected, 2)
	for _, obj := range rig.collected {
		require.Equal(t, ObjectKindFramebuffer, obj.Kind)
	}
}

func TestCommandList_BarrierElision(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()
	rig.commandBuffer.EXPECT().CmdPipelineBarrier(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(2)

	list := rig.newCommandList(t)
	renderTarget := rig.newTexture(t, renderTargetDescription(16, 16))

	require.NoError(t, list.ResourceBarrierTransition(renderTarget, ResourceStateRenderTarget))
	require.Equal(t, core1_0.ImageLayoutColorAttachmentOptimal, renderTarget.Layout())

	require.NoError(t, list.ResourceBarrierTransition(renderTarget, ResourceStatePixelShaderResource))
	require.NoError(t, list.ResourceBarrierTransition(renderTarget, ResourceStatePixelShaderResource))
	require.Equal(t, core1_0.ImageLayoutShaderReadOnlyOptimal, renderTarget.Layout())

	require.NoError(t, list.ResourceBarrierTransition(renderTarget, ResourceStateRenderTarget))
	require.Equal(t, core1_0.ImageLayoutColorAttachmentOptimal, renderTarget.Layout())

	buffer := rig.newBuffer(BufferDescription{SizeInBytes: 64, Flags: BufferVertexBuffer, Usage: UsageDefault})
	err := list.ResourceBarrierTransition(buffer, ResourceStateGenericRead)
	require.True(t, errors.Is(err, ErrNotImplemented))
}

func TestCommandList_BarrierOnView(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()
	rig.commandBuffer.EXPECT().CmdPipelineBarrier(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1)

	list := rig.newCommandList(t)
	parent := rig.newTexture(t, renderTargetDescription(16, 16))
	view := &Texture{
		graphicsResource: newGraphicsResource(rig.d, "view", UsageDefault),
		description:      parent.description,
		parent:           parent,
		view:             TextureViewDescription{MipCount: 1, ArraySize: 1, Flags: TextureShaderResource},
	}

	require.NoError(t, list.ResourceBarrierTransition(view, ResourceStatePixelShaderResource))
	require.Equal(t, core1_0.ImageLayoutShaderReadOnlyOptimal, parent.Layout())
	require.Equal(t, core1_0.ImageLayoutShaderReadOnlyOptimal, view.Layout())
}

func TestCommandList_CloseAndExecute(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()
	rig.expectSubmit()

	list := rig.newCommandList(t)
	require.True(t, list.IsOpen())

	compiled, err := list.Close()
	require.NoError(t, err)
	require.False(t, list.IsOpen())
	require.Same(t, list, compiled.Builder())

	require.Panics(t, func() {
		_, _ = list.Close()
	})

	_, err = rig.d.ExecuteCommandList(compiled)
	require.NoError(t, err)

	_, err = rig.d.ExecuteCommandList(compiled)
	require.True(t, errors.Is(err, ErrInvalidUsage))

	_, err = rig.d.ExecuteCommandList(nil)
	require.True(t, errors.Is(err, ErrInvalidUsage))

	require.NoError(t, list.Reset())
	require.True(t, list.IsOpen())
}

func TestCommandList_NotImplemented(t *testing.T) {
	testCases := map[string]struct {
		call func(t *testing.T, list *CommandList, rig *testRig) error
	}{
		"DrawIndirect": {
			call: func(t *testing.T, list *CommandList, rig *testRig) error { return list.DrawIndirect(nil, 0) },
		},
		"DrawIndexedIndirect": {
			call: func(t *testing.T, list *CommandList, rig *testRig) error { return list.DrawIndexedIndirect(nil, 0) },
		},
		"DrawAuto": {
			call: func(t *testing.T, list *CommandList, rig *testRig) error { return list.DrawAuto() },
		},
		"ClearReadWrite": {
			call: func(t *testing.T, list *CommandList, rig *testRig) error { return list.ClearReadWrite(nil, [4]float32{}) },
		},
		"CopyMultisample": {
			call: func(t *testing.T, list *CommandList, rig *testRig) error { return list.CopyMultisample(nil, 0, nil, 0) },
		},
		"CopyCount": {
			call: func(t *testing.T, list *CommandList, rig *testRig) error { return list.CopyCount(nil, nil, 0) },
		},
		"SetDescriptorSetsAtNonzeroIndex": {
			call: func(t *testing.T, list *CommandList, rig *testRig) error { return list.SetDescriptorSets(1) },
		},
		"CopyRegionIntoStaging": {
			call: func(t *testing.T, list *CommandList, rig *testRig) error {
				description := renderTargetDescription(16, 16)
				description.Flags = TextureShaderResource
				source := rig.newTexture(t, description)
				description.Usage = UsageStaging
				destination := rig.newTexture(t, description)
				return list.CopyRegion(source, 0, nil, destination, 0, 0, 0, 0)
			},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			rig := newTestRig(t)
			rig.expectRecording()
			list := rig.newCommandList(t)

			err := testCase.call(t, list, rig)
			require.True(t, errors.Is(err, ErrNotImplemented), "expected ErrNotImplemented, got %v", err)
		})
	}
}

func TestCommandList_DrawRequiresState(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()

	list := rig.newCommandList(t)

	err := list.Draw(3, 0)
	require.True(t, errors.Is(err, ErrInvalidUsage))

	list.SetPipelineState(rig.newPipeline(false))
	err = list.DrawIndexed(3, 0, 0)
	require.True(t, errors.Is(err, ErrInvalidUsage))
	require.Equal(t, int64(0), rig.d.FrameDrawCalls())
}

func TestCommandList_SetRenderTargetsValidation(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()

	list := rig.newCommandList(t)

	shaderOnly := renderTargetDescription(8, 8)
	shaderOnly.Flags = TextureShaderResource
	texture := rig.newTexture(t, shaderOnly)

	err := list.SetRenderTargets(nil, texture)
	require.True(t, errors.Is(err, ErrInvalidUsage))

	err = list.SetRenderTargets(texture)
	require.True(t, errors.Is(err, ErrInvalidUsage))

	targets := make([]*Texture, MaxRenderTargets+1)
	for index := range targets {
		targets[index] = rig.newTexture(t, renderTargetDescription(8, 8))
	}
	err = list.SetRenderTargets(nil, targets...)
	require.True(t, errors.Is(err, ErrInvalidUsage))

	require.NoError(t, list.SetRenderTargets(nil, targets[:2]...))
	require.Equal(t, 2, list.framebufferAttachmentCount)
	require.NoError(t, list.SetRenderTargets(nil, targets[0]))
	require.Equal(t, 1, list.framebufferAttachmentCount)
	require.Nil(t, list.framebufferAttachments[1])
}

func TestCommandList_ScissorFollowsViewport(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording("CmdSetViewport", "CmdSetScissor")
	rig.expectDescriptorSets()
	rig.expectFramebuffers()

	viewport := core1_0.Viewport{X: 4, Y: 8, Width: 32, Height: 16, MinDepth: 0, MaxDepth: 1}
	rig.commandBuffer.EXPECT().CmdSetViewport([]core1_0.Viewport{viewport}).Times(1)
	rig.commandBuffer.EXPECT().CmdSetScissor([]core1_0.Rect2D{
		{
			Offset: core1_0.Offset2D{X: 4, Y: 8},
			Extent: core1_0.Extent2D{Width: 32, Height: 16},
		},
	}).Times(2)

	list := rig.newCommandList(t)
	require.NoError(t, list.SetRenderTargets(nil, rig.newTexture(t, renderTargetDescription(64, 64))))
	list.SetViewport(viewport)
	list.SetPipelineState(rig.newPipeline(false))

	require.NoError(t, list.Draw(3, 0))
	require.NoError(t, list.Draw(3, 0))
}

func TestCommandList_ScissorTest(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording("CmdSetScissor")
	rig.expectDescriptorSets()
	rig.expectFramebuffers()

	scissor := core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 2, Y: 2},
		Extent: core1_0.Extent2D{Width: 8, Height: 8},
	}
	rig.commandBuffer.EXPECT().CmdSetScissor([]core1_0.Rect2D{scissor}).Times(1)

	list := rig.newCommandList(t)
	require.NoError(t, list.SetRenderTargetsAndViewport(nil, rig.newTexture(t, renderTargetDescription(64, 64))))
	list.SetScissorRectangle(scissor)
	list.SetPipelineState(rig.newPipeline(true))

	require.NoError(t, list.Draw(3, 0))
	require.NoError(t, list.Draw(3, 0))
}

func TestCommandList_ClearsUninitializedRenderTargetOnce(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()
	rig.expectDescriptorSets()
	rig.expectFramebuffers()

	rig.commandBuffer.EXPECT().CmdPipelineBarrier(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(2)
	rig.commandBuffer.EXPECT().CmdClearColorImage(gomock.Any(), core1_0.ImageLayoutTransferDstOptimal, gomock.Any(), gomock.Any()).Times(1)

	list := rig.newCommandList(t)
	renderTarget := rig.newTexture(t, renderTargetDescription(64, 64))
	renderTarget.initialized = false

	require.NoError(t, list.SetRenderTargetsAndViewport(nil, renderTarget))
	list.SetPipelineState(rig.newPipeline(false))

	require.NoError(t, list.Draw(3, 0))
	require.NoError(t, list.Draw(3, 0))
	require.True(t, renderTarget.IsInitialized())
	require.Equal(t, core1_0.ImageLayoutColorAttachmentOptimal, renderTarget.Layout())
}

func TestCommandList_FlushRestoresState(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording("CmdSetStencilReference", "CmdBindPipeline")
	rig.expectSubmit()

	list := rig.newCommandList(t)
	pipeline := rig.newPipeline(false)

	rig.commandBuffer.EXPECT().CmdBindPipeline(core1_0.PipelineBindPointGraphics, pipeline.NativePipeline()).Times(2)
	rig.commandBuffer.EXPECT().CmdSetStencilReference(core1_0.StencilFaceFront|core1_0.StencilFaceBack, uint32(7)).Times(2)

	list.SetPipelineState(pipeline)
	list.SetStencilReference(7)
	list.SetStencilReference(7)

	require.NoError(t, list.flush(true))
	require.True(t, list.IsOpen())
	require.Same(t, pipeline, list.activePipeline)
	require.Equal(t, uint32(7), list.stencilReference)
	require.True(t, rig.d.IsFenceComplete(1))
}

func TestCommandList_Timestamps(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()

	queryPool := mocks.NewMockQueryPool(rig.ctrl)
	rig.commandBuffer.EXPECT().CmdResetQueryPool(queryPool, 0, 4)
	rig.commandBuffer.EXPECT().CmdWriteTimestamp(core1_0.PipelineStageBottomOfPipe, queryPool, 3)

	pool := &QueryPool{device: rig.d, pool: queryPool, count: 4}
	list := rig.newCommandList(t)

	list.ResetQueryPool(pool)
	require.NoError(t, list.WriteTimestamp(pool, 3))

	err := list.WriteTimestamp(pool, 4)
	require.True(t, errors.Is(err, ErrInvalidUsage))
}

func TestCommandList_Destroy(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()

	list := rig.newCommandList(t)
	list.Destroy()
	list.Destroy()

	require.False(t, list.IsOpen())
	require.Nil(t, list.descriptorPool)

	stats := rig.d.descriptorPools.Statistics()
	require.Equal(t, 1, stats.Pending)
	require.Equal(t, 1, rig.d.commandBuffers.Statistics().Pending)
}

func TestCommandList_DestroyHoldsPoolForClosedList(t *testing.T) {
	rig := newTestRig(t)
	rig.expectRecording()
	rig.expectDescriptorSets()
	rig.expectFramebuffers()
	rig.expectSubmit()

	list := rig.newCommandList(t)
	require.NoError(t, list.SetRenderTargetsAndViewport(nil, rig.newTexture(t, renderTargetDescription(16, 16))))
	list.SetPipelineState(rig.newPipeline(false))
	require.NoError(t, list.Draw(3, 0))

	compiled, err := list.Close()
	require.NoError(t, err)
	require.Equal(t, uint64(1), rig.d.NextFenceValue())
	list.Destroy()

	// The closed list still references sets from the destroyed list's pool until it is submitted
	other := rig.newCommandList(t)
	require.Equal(t, 2, rig.descriptorPools.created)
	require.Zero(t, rig.d.descriptorPools.Statistics().Recycled)

	value, err := rig.d.ExecuteCommandList(compiled)
	require.NoError(t, err)
	require.Equal(t, uint64(1), value)
	require.True(t, rig.d.IsFenceComplete(value))

	third := rig.newCommandList(t)
	require.Equal(t, 2, rig.descriptorPools.created)
	require.Equal(t, 1, rig.d.descriptorPools.Statistics().Recycled)

	other.Destroy()
	third.Destroy()
}
