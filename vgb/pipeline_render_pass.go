package vgb

import "github.com/vkngwrapper/core/v2/core1_0"

// renderPassCreateInfo describes the single-subpass render pass a pipeline renders into. A
// color attachment is loaded only when its blending reads the destination. depthFormat is the
// resolved depth format, or 0 for no depth attachment.
func renderPassCreateInfo(description *PipelineStateDescription, depthFormat core1_0.Format) (core1_0.RenderPassCreateInfo, error) {
	renderTargetCount := description.Output.RenderTargetCount
	if renderTargetCount < 0 || renderTargetCount > MaxRenderTargets {
		return core1_0.RenderPassCreateInfo{}, invalidUsage("pipeline has %d render targets, at most %d are supported", renderTargetCount, MaxRenderTargets)
	}

	samples := description.Output.MultisampleCount
	if samples == 0 {
		samples = core1_0.Samples1
	}

	attachments := make([]core1_0.AttachmentDescription, 0, renderTargetCount+1)
	colorReferences := make([]core1_0.AttachmentReference, 0, renderTargetCount)

	for index := 0; index < renderTargetCount; index++ {
		loadOp := core1_0.AttachmentLoadOpDontCare
		if description.BlendState.renderTarget(index).BlendEnable {
			loadOp = core1_0.AttachmentLoadOpLoad
		}

		attachments = append(attachments, core1_0.AttachmentDescription{
			Format:         description.Output.RenderTargetFormats[index],
			Samples:        samples,
			LoadOp:         loadOp,
			StoreOp:        core1_0.AttachmentStoreOpStore,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    core1_0.ImageLayoutColorAttachmentOptimal,
		})
		colorReferences = append(colorReferences, core1_0.AttachmentReference{
			Attachment: index,
			Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
		})
	}

	subpass := core1_0.SubpassDescription{
		PipelineBindPoint: core1_0.PipelineBindPointGraphics,
		ColorAttachments:  colorReferences,
	}

	if depthFormat != 0 {
		attachments = append(attachments, core1_0.AttachmentDescription{
			Format:         depthFormat,
			Samples:        samples,
			LoadOp:         core1_0.AttachmentLoadOpLoad,
			StoreOp:        core1_0.AttachmentStoreOpStore,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.DepthStencilAttachment = &core1_0.AttachmentReference{
			Attachment: len(attachments) - 1,
			Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}

	return core1_0.RenderPassCreateInfo{
		Attachments: attachments,
		Subpasses:   []core1_0.SubpassDescription{subpass},
	}, nil
}

// resolveDepthFormat applies the depth-stencil fallback list to formats with a stencil aspect
func (d *Device) resolveDepthFormat(requested core1_0.Format) (core1_0.Format, error) {
	if requested == 0 || !hasStencil(requested) {
		return requested, nil
	}
	return d.depthStencilFormat(requested)
}
