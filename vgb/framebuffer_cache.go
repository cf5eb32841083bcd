package vgb

import (
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// maxFramebufferAttachments is every render target plus depth
const maxFramebufferAttachments = MaxRenderTargets + 1

// framebufferKey identifies a framebuffer by render pass and ordered attachments. Slots past
// attachmentCount must be nil.
type framebufferKey struct {
	renderPass      core1_0.RenderPass
	attachmentCount int
	attachments     [maxFramebufferAttachments]core1_0.ImageView
}

// framebufferCache creates framebuffers on first use. Framebuffers belong to the recording that
// created them: drain hands them to the compiled command list, which collects them under its
// submission value.
type framebufferCache struct {
	device       *Device
	framebuffers *swiss.Map[framebufferKey, core1_0.Framebuffer]
	created      []core1_0.Framebuffer
}

func newFramebufferCache(device *Device) *framebufferCache {
	return &framebufferCache{
		device:       device,
		framebuffers: swiss.NewMap[framebufferKey, core1_0.Framebuffer](8),
	}
}

// get returns the framebuffer for key, creating it over width by height on first use. Every
// framebuffer has a single layer: attachment views always cover one array slice.
func (c *framebufferCache) get(key framebufferKey, width, height int) (core1_0.Framebuffer, error) {
	framebuffer, ok := c.framebuffers.Get(key)
	if ok {
		return framebuffer, nil
	}

	c.device.logger.Debug("framebufferCache::get",
		slog.Int("attachments", key.attachmentCount),
		slog.Int("width", width),
		slog.Int("height", height),
	)

	framebuffer, _, err := c.device.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  key.renderPass,
		Attachments: append([]core1_0.ImageView(nil), key.attachments[:key.attachmentCount]...),
		Width:       width,
		Height:      height,
		Layers:      1,
	})
	if err != nil {
		return nil, err
	}

	c.framebuffers.Put(key, framebuffer)
	c.created = append(c.created, framebuffer)
	return framebuffer, nil
}

func (c *framebufferCache) len() int {
	return c.framebuffers.Count()
}

// drain empties the cache and returns every framebuffer it created
func (c *framebufferCache) drain() []core1_0.Framebuffer {
	created := c.created
	c.created = nil
	c.framebuffers.Clear()
	return created
}
