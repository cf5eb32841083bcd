package vgb

import (
	"github.com/vkngwrapper/core/v2/core1_0"
)

func (c *CommandList) countDraw(vertices int) {
	c.device.frameDrawCalls.Add(1)
	c.device.frameTriangleCount.Add(int64(vertices))
}

// Draw draws non-indexed primitives
func (c *CommandList) Draw(vertexCount, startVertex int) error {
	err := c.prepareDraw()
	if err != nil {
		return err
	}

	c.commandBuffer().CmdDraw(vertexCount, 1, uint32(startVertex), 0)
	c.countDraw(vertexCount)
	return nil
}

// DrawIndexed draws indexed primitives from the bound index buffer
func (c *CommandList) DrawIndexed(indexCount, startIndex, baseVertex int) error {
	err := c.prepareDraw()
	if err != nil {
		return err
	}

	c.commandBuffer().CmdDrawIndexed(indexCount, 1, uint32(startIndex), baseVertex, 0)
	c.countDraw(indexCount)
	return nil
}

func (c *CommandList) DrawInstanced(vertexCountPerInstance, instanceCount, startVertex, startInstance int) error {
	err := c.prepareDraw()
	if err != nil {
		return err
	}

	c.commandBuffer().CmdDraw(vertexCountPerInstance, instanceCount, uint32(startVertex), uint32(startInstance))
	c.countDraw(vertexCountPerInstance * instanceCount)
	return nil
}

func (c *CommandList) DrawIndexedInstanced(indexCountPerInstance, instanceCount, startIndex, baseVertex, startInstance int) error {
	err := c.prepareDraw()
	if err != nil {
		return err
	}

	c.commandBuffer().CmdDrawIndexed(indexCountPerInstance, instanceCount, uint32(startIndex), baseVertex, uint32(startInstance))
	c.countDraw(indexCountPerInstance * instanceCount)
	return nil
}

func (c *CommandList) DrawIndirect(arguments *Buffer, offset int) error {
	return notImplemented("indirect draws")
}

func (c *CommandList) DrawIndexedIndirect(arguments *Buffer, offset int) error {
	return notImplemented("indexed indirect draws")
}

func (c *CommandList) DrawAuto() error {
	return notImplemented("stream-output draws")
}

// WriteTimestamp writes the GPU timestamp into a query once every earlier command has finished
func (c *CommandList) WriteTimestamp(pool *QueryPool, index int) error {
	if index < 0 || index >= pool.count {
		return invalidUsage("timestamp query %d is outside pool of %d queries", index, pool.count)
	}
	c.commandBuffer().CmdWriteTimestamp(core1_0.PipelineStageBottomOfPipe, pool.pool, index)
	return nil
}

// ResetQueryPool resets every query in a pool. Queries must be reset before they are written.
func (c *CommandList) ResetQueryPool(pool *QueryPool) {
	c.cleanupRenderPass()
	c.commandBuffer().CmdResetQueryPool(pool.pool, 0, pool.count)
}
