package vgb

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
)

func TestStateForResourceState(t *testing.T) {
	testCases := map[string]struct {
		state  ResourceState
		layout core1_0.ImageLayout
		access core1_0.AccessFlags
	}{
		"RenderTarget":   {state: ResourceStateRenderTarget, layout: core1_0.ImageLayoutColorAttachmentOptimal, access: core1_0.AccessColorAttachmentWrite},
		"DepthWrite":     {state: ResourceStateDepthWrite, layout: core1_0.ImageLayoutDepthStencilAttachmentOptimal, access: core1_0.AccessDepthStencilAttachmentWrite},
		"PixelShader":    {state: ResourceStatePixelShaderResource, layout: core1_0.ImageLayoutShaderReadOnlyOptimal, access: core1_0.AccessShaderRead},
		"Present":        {state: ResourceStatePresent, layout: khr_swapchain.ImageLayoutPresentSrc, access: core1_0.AccessMemoryRead},
		"GenericRead":    {state: ResourceStateGenericRead, layout: core1_0.ImageLayoutShaderReadOnlyOptimal, access: core1_0.AccessShaderRead},
		"CopyDestFallow": {state: ResourceStateCopyDestination, layout: core1_0.ImageLayoutGeneral, access: core1_0.AccessMemoryRead | core1_0.AccessMemoryWrite},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			state := stateForResourceState(testCase.state)
			require.Equal(t, testCase.layout, state.Layout)
			require.Equal(t, testCase.access, state.Access)
			require.NotZero(t, state.Stage)
		})
	}
}

func TestRestingState(t *testing.T) {
	require.Equal(t, core1_0.ImageLayoutColorAttachmentOptimal, restingState(TextureRenderTarget|TextureShaderResource).Layout)
	require.Equal(t, core1_0.ImageLayoutDepthStencilAttachmentOptimal, restingState(TextureDepthStencil|TextureShaderResource).Layout)
	require.Equal(t, core1_0.ImageLayoutShaderReadOnlyOptimal, restingState(TextureShaderResource).Layout)
	require.Equal(t, core1_0.ImageLayoutGeneral, restingState(TextureUnorderedAccess).Layout)
}

func TestSourceStage(t *testing.T) {
	require.Equal(t, core1_0.PipelineStageTopOfPipe, sourceStage(imageState{}))
	require.Equal(t, core1_0.PipelineStageTopOfPipe, sourceStage(stateForResourceState(ResourceStatePresent)))
	require.Equal(t, core1_0.PipelineStageTopOfPipe, sourceStage(imageState{Layout: core1_0.ImageLayoutGeneral}))
	require.Equal(t, core1_0.PipelineStageTransfer, sourceStage(transferDestinationState))
	require.Equal(t, core1_0.PipelineStageColorAttachmentOutput, sourceStage(stateForResourceState(ResourceStateRenderTarget)))
}

func TestTransitionImage(t *testing.T) {
	ctrl := gomock.NewController(t)
	commandBuffer := mocks.NewMockCommandBuffer(ctrl)
	image := mocks.NewMockImage(ctrl)

	subresources := wholeImage(core1_0.ImageAspectColor, 3, 2)
	require.Equal(t, core1_0.ImageSubresourceRange{
		AspectMask: core1_0.ImageAspectColor,
		LevelCount: 3,
		LayerCount: 2,
	}, subresources)

	next := stateForResourceState(ResourceStatePixelShaderResource)
	commandBuffer.EXPECT().CmdPipelineBarrier(core1_0.PipelineStageTopOfPipe, next.Stage, core1_0.DependencyFlags(0), nil, nil, []core1_0.ImageMemoryBarrier{
		{
			SrcAccessMask:       0,
			DstAccessMask:       core1_0.AccessShaderRead,
			OldLayout:           core1_0.ImageLayoutUndefined,
			NewLayout:           core1_0.ImageLayoutShaderReadOnlyOptimal,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange:    subresources,
		},
	}).Return(nil)

	require.NoError(t, transitionImage(commandBuffer, image, subresources, imageState{}, next))
}

func TestNativeObject_IsNil(t *testing.T) {
	ctrl := gomock.NewController(t)

	require.True(t, NativeFramebuffer(nil).IsNil())
	require.True(t, NativeDeviceMemory(nil).IsNil())
	require.False(t, NativeFramebuffer(mocks.NewMockFramebuffer(ctrl)).IsNil())
	require.False(t, NativeDeviceMemory(&DeviceAllocation{}).IsNil())
	require.Equal(t, "ObjectKindQueryPool", NativeQueryPool(nil).Kind.String())
	require.Equal(t, "ObjectKind(99)", ObjectKind(99).String())
}
