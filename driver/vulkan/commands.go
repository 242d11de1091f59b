package vulkan

import (
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
	vk "github.com/vulkan-go/vulkan"
)

// CommandBuffer is a primary command buffer.
type CommandBuffer struct {
	pool   *CommandPool
	handle vk.CommandBuffer
}

// Destroy returns the command buffer to its pool.
func (c *CommandBuffer) Destroy() {
	vk.FreeCommandBuffers(c.pool.dev.handle, c.pool.handle, 1, []vk.CommandBuffer{c.handle})
}

// Begin implements driver.CommandBuffer.
func (c *CommandBuffer) Begin(oneTimeSubmit bool) error {
	var flags vk.CommandBufferUsageFlags
	if oneTimeSubmit {
		flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return check(vk.BeginCommandBuffer(c.handle, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}), "begin command buffer")
}

// End implements driver.CommandBuffer.
func (c *CommandBuffer) End() error {
	return check(vk.EndCommandBuffer(c.handle), "end command buffer")
}

func subresourceRange(aspect driver.ImageAspect, base, levels uint32) vk.ImageSubresourceRange {
	if aspect == 0 {
		aspect = driver.AspectColor
	}
	if levels == 0 {
		levels = ^uint32(0)
	}
	return vk.ImageSubresourceRange{
		AspectMask:   aspectToVk(aspect),
		BaseMipLevel: base,
		LevelCount:   levels,
		LayerCount:   1,
	}
}

// PipelineBarrier implements driver.CommandBuffer. A zero Aspect means
// color and zero MipLevels means every level from BaseMip.
func (c *CommandBuffer) PipelineBarrier(src, dst driver.PipelineStage, barriers []driver.ImageBarrier) {
	vb := make([]vk.ImageMemoryBarrier, len(barriers))
	for i, b := range barriers {
		vb[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       accessToVk(b.SrcAccess),
			DstAccessMask:       accessToVk(b.DstAccess),
			OldLayout:           layoutToVk(b.OldLayout),
			NewLayout:           layoutToVk(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               b.Image.(*Image).handle,
			SubresourceRange:    subresourceRange(b.Aspect, b.BaseMip, b.MipLevels),
		}
	}
	vk.CmdPipelineBarrier(c.handle, stagesToVk(src), stagesToVk(dst), 0, 0, nil, 0, nil, uint32(len(vb)), vb)
}

func colorLayers(mip uint32) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		MipLevel:   mip,
		LayerCount: 1,
	}
}

// CopyBufferToImage implements driver.CommandBuffer.
func (c *CommandBuffer) CopyBufferToImage(src driver.Buffer, dst driver.Image, layout driver.ImageLayout, regions []driver.BufferImageCopy) {
	vr := make([]vk.BufferImageCopy, len(regions))
	for i, r := range regions {
		vr[i] = vk.BufferImageCopy{
			BufferOffset:     vk.DeviceSize(r.BufferOffset),
			ImageSubresource: colorLayers(r.MipLevel),
			ImageExtent:      vk.Extent3D{Width: r.Width, Height: r.Height, Depth: 1},
		}
	}
	vk.CmdCopyBufferToImage(c.handle, src.(*Buffer).handle, dst.(*Image).handle, layoutToVk(layout), uint32(len(vr)), vr)
}

// CopyImage implements driver.CommandBuffer for mip 0 of two color images.
func (c *CommandBuffer) CopyImage(src driver.Image, srcLayout driver.ImageLayout, dst driver.Image, dstLayout driver.ImageLayout, extent driver.Extent2D) {
	vk.CmdCopyImage(c.handle,
		src.(*Image).handle, layoutToVk(srcLayout),
		dst.(*Image).handle, layoutToVk(dstLayout),
		1, []vk.ImageCopy{{
			SrcSubresource: colorLayers(0),
			DstSubresource: colorLayers(0),
			Extent:         vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		}})
}

// ClearColorImage implements driver.CommandBuffer.
func (c *CommandBuffer) ClearColorImage(img driver.Image, layout driver.ImageLayout, color [4]float32) {
	var value vk.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&value)) = color
	vk.CmdClearColorImage(c.handle, img.(*Image).handle, layoutToVk(layout), &value, 1,
		[]vk.ImageSubresourceRange{subresourceRange(driver.AspectColor, 0, 0)})
}

// BeginRenderPass implements driver.CommandBuffer.
func (c *CommandBuffer) BeginRenderPass(info *driver.RenderPassBeginInfo) {
	clears := make([]vk.ClearValue, len(info.ClearValues))
	for i, v := range info.ClearValues {
		if v.Depth != 0 || v.Stencil != 0 {
			clears[i] = vk.NewClearDepthStencil(v.Depth, v.Stencil)
		} else {
			clears[i] = vk.NewClearValue(v.Color[:])
		}
	}
	vk.CmdBeginRenderPass(c.handle, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  info.RenderPass.(*RenderPass).handle,
		Framebuffer: info.Framebuffer.(*Framebuffer).handle,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)
}

// EndRenderPass implements driver.CommandBuffer.
func (c *CommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
}

// SetViewport implements driver.CommandBuffer.
func (c *CommandBuffer) SetViewport(v driver.Viewport) {
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}})
}

// SetScissor implements driver.CommandBuffer.
func (c *CommandBuffer) SetScissor(r driver.Rect) {
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}})
}

// BindPipeline implements driver.CommandBuffer.
func (c *CommandBuffer) BindPipeline(p driver.Pipeline) {
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, p.(*Pipeline).handle)
}

// BindDescriptorSet implements driver.CommandBuffer.
func (c *CommandBuffer) BindDescriptorSet(layout driver.PipelineLayout, set driver.DescriptorSet) {
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, layout.(*PipelineLayout).handle,
		0, 1, []vk.DescriptorSet{set.(*DescriptorSet).handle}, 0, nil)
}

// BindVertexBuffer implements driver.CommandBuffer.
func (c *CommandBuffer) BindVertexBuffer(buf driver.Buffer, offset uint64) {
	vk.CmdBindVertexBuffers(c.handle, 0, 1, []vk.Buffer{buf.(*Buffer).handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

// BindIndexBuffer implements driver.CommandBuffer.
func (c *CommandBuffer) BindIndexBuffer(buf driver.Buffer, offset uint64, format gputypes.IndexFormat) {
	vk.CmdBindIndexBuffer(c.handle, buf.(*Buffer).handle, vk.DeviceSize(offset), indexTypeToVk(format))
}

// DrawIndexed implements driver.CommandBuffer.
func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// Queue is the device's single queue.
type Queue struct {
	dev    *Device
	handle vk.Queue
}

func semaphores(s []driver.Semaphore) []vk.Semaphore {
	if len(s) == 0 {
		return nil
	}
	out := make([]vk.Semaphore, len(s))
	for i, sem := range s {
		out[i] = sem.(*Semaphore).handle
	}
	return out
}

// Submit implements driver.Queue.
func (q *Queue) Submit(submits []driver.SubmitInfo) error {
	infos := make([]vk.SubmitInfo, len(submits))
	for i, s := range submits {
		cbs := make([]vk.CommandBuffer, len(s.CommandBuffers))
		for j, cb := range s.CommandBuffers {
			cbs[j] = cb.(*CommandBuffer).handle
		}
		var stages []vk.PipelineStageFlags
		for _, st := range s.WaitStages {
			stages = append(stages, stagesToVk(st))
		}
		wait := semaphores(s.WaitSemaphores)
		signal := semaphores(s.SignalSemaphores)
		infos[i] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(wait)),
			PWaitSemaphores:      wait,
			PWaitDstStageMask:    stages,
			CommandBufferCount:   uint32(len(cbs)),
			PCommandBuffers:      cbs,
			SignalSemaphoreCount: uint32(len(signal)),
			PSignalSemaphores:    signal,
		}
	}
	return check(vk.QueueSubmit(q.handle, uint32(len(infos)), infos, vk.NullFence), "queue submit")
}

// Present implements driver.Queue.
func (q *Queue) Present(info *driver.PresentInfo) error {
	wait := semaphores(info.WaitSemaphores)
	return check(vk.QueuePresent(q.handle, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(wait)),
		PWaitSemaphores:    wait,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{info.Swapchain.(*Swapchain).handle},
		PImageIndices:      []uint32{info.ImageIndex},
	}), "present")
}

// WaitIdle implements driver.Queue.
func (q *Queue) WaitIdle() error {
	return check(vk.QueueWaitIdle(q.handle), "queue wait idle")
}
