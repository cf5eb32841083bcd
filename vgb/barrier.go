package vgb

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
)

// imageState is the layout/access/stage triple a texture was left in by its last barrier
type imageState struct {
	Layout core1_0.ImageLayout
	Access core1_0.AccessFlags
	Stage  core1_0.PipelineStageFlags
}

var (
	transferDestinationState = imageState{
		Layout: core1_0.ImageLayoutTransferDstOptimal,
		Access: core1_0.AccessTransferWrite,
		Stage:  core1_0.PipelineStageTransfer,
	}
	transferSourceState = imageState{
		Layout: core1_0.ImageLayoutTransferSrcOptimal,
		Access: core1_0.AccessTransferRead,
		Stage:  core1_0.PipelineStageTransfer,
	}
)

// stateForResourceState maps an engine-level resource state onto the native state a texture
// is transitioned into
func stateForResourceState(state ResourceState) imageState {
	switch state {
	case ResourceStateRenderTarget:
		return imageState{
			Layout: core1_0.ImageLayoutColorAttachmentOptimal,
			Access: core1_0.AccessColorAttachmentWrite,
			Stage:  core1_0.PipelineStageColorAttachmentOutput,
		}
	case ResourceStateDepthWrite:
		return imageState{
			Layout: core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			Access: core1_0.AccessDepthStencilAttachmentWrite,
			Stage:  core1_0.PipelineStageEarlyFragmentTests | core1_0.PipelineStageLateFragmentTests,
		}
	case ResourceStatePixelShaderResource:
		return imageState{
			Layout: core1_0.ImageLayoutShaderReadOnlyOptimal,
			Access: core1_0.AccessShaderRead,
			Stage:  core1_0.PipelineStageFragmentShader,
		}
	case ResourceStatePresent:
		return imageState{
			Layout: khr_swapchain.ImageLayoutPresentSrc,
			Access: core1_0.AccessMemoryRead,
			Stage:  core1_0.PipelineStageBottomOfPipe,
		}
	case ResourceStateGenericRead:
		return imageState{
			Layout: core1_0.ImageLayoutShaderReadOnlyOptimal,
			Access: core1_0.AccessShaderRead,
			Stage:  core1_0.PipelineStageAllCommands,
		}
	default:
		return imageState{
			Layout: core1_0.ImageLayoutGeneral,
			Access: core1_0.AccessMemoryRead | core1_0.AccessMemoryWrite,
			Stage:  core1_0.PipelineStageAllCommands,
		}
	}
}

// restingState is the state a freshly-initialized texture is left in, derived from its flags
func restingState(flags TextureFlags) imageState {
	switch {
	case flags&TextureRenderTarget != 0:
		return imageState{
			Layout: core1_0.ImageLayoutColorAttachmentOptimal,
			Access: core1_0.AccessColorAttachmentWrite,
			Stage:  core1_0.PipelineStageColorAttachmentOutput,
		}
	case flags&TextureDepthStencil != 0:
		return imageState{
			Layout: core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			Access: core1_0.AccessDepthStencilAttachmentWrite,
			Stage: core1_0.PipelineStageColorAttachmentOutput |
				core1_0.PipelineStageEarlyFragmentTests |
				core1_0.PipelineStageLateFragmentTests,
		}
	case flags&TextureShaderResource != 0:
		return imageState{
			Layout: core1_0.ImageLayoutShaderReadOnlyOptimal,
			Access: core1_0.AccessShaderRead | core1_0.AccessInputAttachmentRead,
			Stage:  core1_0.PipelineStageVertexInput | core1_0.PipelineStageFragmentShader,
		}
	default:
		return imageState{
			Layout: core1_0.ImageLayoutGeneral,
			Access: core1_0.AccessShaderRead | core1_0.AccessShaderWrite,
			Stage:  core1_0.PipelineStageAllCommands,
		}
	}
}

// sourceStage is the source stage mask of a barrier leaving old. Nothing needs to be waited
// on when the previous contents are undefined or were only presented.
func sourceStage(old imageState) core1_0.PipelineStageFlags {
	if old.Layout == core1_0.ImageLayoutUndefined || old.Layout == khr_swapchain.ImageLayoutPresentSrc || old.Stage == 0 {
		return core1_0.PipelineStageTopOfPipe
	}
	return old.Stage
}

func wholeImage(aspect core1_0.ImageAspectFlags, mipLevels, arrayLayers int) core1_0.ImageSubresourceRange {
	return core1_0.ImageSubresourceRange{
		AspectMask:     aspect,
		BaseMipLevel:   0,
		LevelCount:     mipLevels,
		BaseArrayLayer: 0,
		LayerCount:     arrayLayers,
	}
}

func imageBarrier(image core1_0.Image, subresources core1_0.ImageSubresourceRange, old, next imageState) core1_0.ImageMemoryBarrier {
	return core1_0.ImageMemoryBarrier{
		SrcAccessMask:       old.Access,
		DstAccessMask:       next.Access,
		OldLayout:           old.Layout,
		NewLayout:           next.Layout,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		Image:               image,
		SubresourceRange:    subresources,
	}
}

// transitionImage records a single image barrier from old to next
func transitionImage(commandBuffer core1_0.CommandBuffer, image core1_0.Image, subresources core1_0.ImageSubresourceRange, old, next imageState) error {
	return commandBuffer.CmdPipelineBarrier(sourceStage(old), next.Stage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		imageBarrier(image, subresources, old, next),
	})
}

func bufferBarrier(buffer core1_0.Buffer, srcAccess, dstAccess core1_0.AccessFlags, offset, size int) core1_0.BufferMemoryBarrier {
	return core1_0.BufferMemoryBarrier{
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		Buffer:              buffer,
		Offset:              offset,
		Size:                size,
	}
}
