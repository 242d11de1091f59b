package noop

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
)

// Command is one command recorded into a command buffer.
type Command struct {
	Op   string
	Args any
	run  func(x *execution)
}

// Argument types of recorded commands. Objects are referenced by ID.
type (
	BarrierArgs struct {
		Src, Dst driver.PipelineStage
		Barriers []BarrierRecord
	}
	BarrierRecord struct {
		Image     uint64
		OldLayout driver.ImageLayout
		NewLayout driver.ImageLayout
	}
	CopyArgs struct {
		Src, Dst uint64
		Regions  int
	}
	ClearArgs struct {
		Image uint64
		Color [4]float32
	}
	RenderPassArgs struct {
		RenderPass  uint64
		Framebuffer uint64
		Extent      driver.Extent2D
		ClearValues []driver.ClearValue
	}
	DrawArgs struct {
		IndexCount    uint32
		InstanceCount uint32
		FirstIndex    uint32
		VertexOffset  int32
	}
	IndexBufferArgs struct {
		Buffer uint64
		Format gputypes.IndexFormat
	}
)

// execution is the state of one command buffer being executed by Submit.
type execution struct {
	st   *state
	pass *Framebuffer
}

// CommandPool is an in-memory driver.CommandPool.
type CommandPool struct {
	object
}

// CommandBuffer is an in-memory driver.CommandBuffer.
type CommandBuffer struct {
	object
	pool      *CommandPool
	recording bool
	ended     bool
	oneTime   bool
	submitted bool
	cmds      []Command
}

// AllocateCommandBuffer implements driver.CommandPool.
func (p *CommandPool) AllocateCommandBuffer() (driver.CommandBuffer, error) {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	if err := p.st.check("AllocateCommandBuffer"); err != nil {
		return nil, err
	}
	if p.destroyed {
		p.st.invalid("AllocateCommandBuffer from destroyed pool %d", p.id)
	}
	cb := &CommandBuffer{object: p.st.newObject("CommandBuffer"), pool: p}
	p.st.record("AllocateCommandBuffer", cb.id, p.id)
	return cb, nil
}

// Commands returns a copy of the recorded commands.
func (c *CommandBuffer) Commands() []Command {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	return append([]Command(nil), c.cmds...)
}

// Begin implements driver.CommandBuffer.
func (c *CommandBuffer) Begin(oneTimeSubmit bool) error {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if err := c.st.check("BeginCommandBuffer"); err != nil {
		return err
	}
	if c.recording {
		c.st.invalid("Begin: command buffer %d already recording", c.id)
	}
	c.recording, c.ended, c.submitted = true, false, false
	c.oneTime = oneTimeSubmit
	c.cmds = c.cmds[:0]
	c.st.record("BeginCommandBuffer", c.id, oneTimeSubmit)
	return nil
}

// End implements driver.CommandBuffer.
func (c *CommandBuffer) End() error {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if err := c.st.check("EndCommandBuffer"); err != nil {
		return err
	}
	if !c.recording {
		c.st.invalid("End: command buffer %d not recording", c.id)
	}
	c.recording, c.ended = false, true
	c.st.record("EndCommandBuffer", c.id, nil)
	return nil
}

func (c *CommandBuffer) add(op string, args any, run func(x *execution)) {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if !c.recording {
		c.st.invalid("%s: command buffer %d not recording", op, c.id)
	}
	c.cmds = append(c.cmds, Command{Op: op, Args: args, run: run})
}

func (x *execution) expect(img *Image, want driver.ImageLayout, what string) {
	if img != nil && img.layout != want {
		x.st.invalid("%s: image %d is in layout %s, expected %s", what, img.id, img.layout, want)
	}
}

// PipelineBarrier implements driver.CommandBuffer.
func (c *CommandBuffer) PipelineBarrier(src, dst driver.PipelineStage, barriers []driver.ImageBarrier) {
	c.st.mu.Lock()
	imgs := make([]*Image, len(barriers))
	args := BarrierArgs{Src: src, Dst: dst}
	for i, b := range barriers {
		imgs[i] = as[*Image](c.st, b.Image, "PipelineBarrier")
		args.Barriers = append(args.Barriers, BarrierRecord{Image: ID(b.Image), OldLayout: b.OldLayout, NewLayout: b.NewLayout})
	}
	c.st.mu.Unlock()
	bs := append([]driver.ImageBarrier(nil), barriers...)
	c.add("PipelineBarrier", args, func(x *execution) {
		for i, b := range bs {
			if imgs[i] == nil {
				continue
			}
			if b.OldLayout != driver.LayoutUndefined {
				x.expect(imgs[i], b.OldLayout, "PipelineBarrier")
			}
			imgs[i].layout = b.NewLayout
		}
	})
}

// CopyBufferToImage implements driver.CommandBuffer.
func (c *CommandBuffer) CopyBufferToImage(src driver.Buffer, dst driver.Image, layout driver.ImageLayout, regions []driver.BufferImageCopy) {
	c.st.mu.Lock()
	b := as[*Buffer](c.st, src, "CopyBufferToImage")
	img := as[*Image](c.st, dst, "CopyBufferToImage")
	if b != nil && img != nil {
		for _, r := range regions {
			if r.MipLevel >= img.desc.MipLevels {
				c.st.invalid("CopyBufferToImage: mip %d out of range", r.MipLevel)
			}
			size := uint64(r.Width) * uint64(r.Height) * bytesPerPixel(img.desc.Format)
			if r.BufferOffset+size > b.desc.Size {
				c.st.invalid("CopyBufferToImage: region at %d overruns buffer %d", r.BufferOffset, b.id)
			}
		}
	}
	c.st.mu.Unlock()
	c.add("CopyBufferToImage", CopyArgs{Src: ID(src), Dst: ID(dst), Regions: len(regions)}, func(x *execution) {
		x.expect(img, layout, "CopyBufferToImage")
	})
}

// CopyImage implements driver.CommandBuffer.
func (c *CommandBuffer) CopyImage(src driver.Image, srcLayout driver.ImageLayout, dst driver.Image, dstLayout driver.ImageLayout, extent driver.Extent2D) {
	c.st.mu.Lock()
	s := as[*Image](c.st, src, "CopyImage")
	d := as[*Image](c.st, dst, "CopyImage")
	if s != nil && d != nil && s.desc.Samples != d.desc.Samples {
		c.st.invalid("CopyImage: sample count mismatch %d vs %d", s.desc.Samples, d.desc.Samples)
	}
	c.st.mu.Unlock()
	c.add("CopyImage", CopyArgs{Src: ID(src), Dst: ID(dst), Regions: 1}, func(x *execution) {
		x.expect(s, srcLayout, "CopyImage source")
		x.expect(d, dstLayout, "CopyImage destination")
	})
}

// ClearColorImage implements driver.CommandBuffer.
func (c *CommandBuffer) ClearColorImage(img driver.Image, layout driver.ImageLayout, color [4]float32) {
	c.st.mu.Lock()
	i := as[*Image](c.st, img, "ClearColorImage")
	c.st.mu.Unlock()
	c.add("ClearColorImage", ClearArgs{Image: ID(img), Color: color}, func(x *execution) {
		x.expect(i, layout, "ClearColorImage")
	})
}

// BeginRenderPass implements driver.CommandBuffer.
func (c *CommandBuffer) BeginRenderPass(info *driver.RenderPassBeginInfo) {
	c.st.mu.Lock()
	rp := as[*RenderPass](c.st, info.RenderPass, "BeginRenderPass")
	fb := as[*Framebuffer](c.st, info.Framebuffer, "BeginRenderPass")
	if rp != nil && fb != nil && fb.pass != rp {
		compatible := len(fb.pass.desc.Attachments) == len(rp.desc.Attachments)
		if !compatible {
			c.st.invalid("BeginRenderPass: framebuffer %d incompatible with render pass %d", fb.id, rp.id)
		}
	}
	c.st.mu.Unlock()
	args := RenderPassArgs{
		RenderPass:  ID(info.RenderPass),
		Framebuffer: ID(info.Framebuffer),
		Extent:      info.Extent,
		ClearValues: append([]driver.ClearValue(nil), info.ClearValues...),
	}
	c.add("BeginRenderPass", args, func(x *execution) {
		if rp == nil || fb == nil {
			return
		}
		if x.pass != nil {
			x.st.invalid("BeginRenderPass inside render pass")
		}
		for i, v := range fb.views {
			if i >= len(rp.desc.Attachments) {
				break
			}
			if want := rp.desc.Attachments[i].InitialLayout; want != driver.LayoutUndefined {
				x.expect(v.image, want, "BeginRenderPass attachment")
			}
		}
		x.pass = &Framebuffer{pass: rp, views: fb.views}
	})
}

// EndRenderPass implements driver.CommandBuffer.
func (c *CommandBuffer) EndRenderPass() {
	c.add("EndRenderPass", nil, func(x *execution) {
		if x.pass == nil {
			x.st.invalid("EndRenderPass outside render pass")
			return
		}
		for i, v := range x.pass.views {
			if i < len(x.pass.pass.desc.Attachments) {
				v.image.layout = x.pass.pass.desc.Attachments[i].FinalLayout
			}
		}
		x.pass = nil
	})
}

// SetViewport implements driver.CommandBuffer.
func (c *CommandBuffer) SetViewport(v driver.Viewport) {
	c.add("SetViewport", v, nil)
}

// SetScissor implements driver.CommandBuffer.
func (c *CommandBuffer) SetScissor(r driver.Rect) {
	c.add("SetScissor", r, nil)
}

// BindPipeline implements driver.CommandBuffer.
func (c *CommandBuffer) BindPipeline(p driver.Pipeline) {
	c.st.mu.Lock()
	as[*Pipeline](c.st, p, "BindPipeline")
	c.st.mu.Unlock()
	c.add("BindPipeline", ID(p), nil)
}

// BindDescriptorSet implements driver.CommandBuffer.
func (c *CommandBuffer) BindDescriptorSet(layout driver.PipelineLayout, set driver.DescriptorSet) {
	c.st.mu.Lock()
	as[*PipelineLayout](c.st, layout, "BindDescriptorSet")
	as[*DescriptorSet](c.st, set, "BindDescriptorSet")
	c.st.mu.Unlock()
	c.add("BindDescriptorSet", ID(set), nil)
}

// BindVertexBuffer implements driver.CommandBuffer.
func (c *CommandBuffer) BindVertexBuffer(buf driver.Buffer, offset uint64) {
	c.st.mu.Lock()
	as[*Buffer](c.st, buf, "BindVertexBuffer")
	c.st.mu.Unlock()
	c.add("BindVertexBuffer", ID(buf), nil)
}

// BindIndexBuffer implements driver.CommandBuffer.
func (c *CommandBuffer) BindIndexBuffer(buf driver.Buffer, offset uint64, format gputypes.IndexFormat) {
	c.st.mu.Lock()
	as[*Buffer](c.st, buf, "BindIndexBuffer")
	c.st.mu.Unlock()
	c.add("BindIndexBuffer", IndexBufferArgs{Buffer: ID(buf), Format: format}, nil)
}

// DrawIndexed implements driver.CommandBuffer.
func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.add("DrawIndexed", DrawArgs{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
	}, func(x *execution) {
		if x.pass == nil {
			x.st.invalid("DrawIndexed outside render pass")
		}
	})
}

// Queue is an in-memory driver.Queue.
type Queue struct {
	st  *state
	dev *Device
}

// Submission is the recorded form of one driver.SubmitInfo.
type Submission struct {
	Wait           []uint64
	WaitStages     []driver.PipelineStage
	CommandBuffers []uint64
	Signal         []uint64
	Commands       []Command
}

// Submit implements driver.Queue. Command buffers execute immediately.
func (q *Queue) Submit(submits []driver.SubmitInfo) error {
	q.st.mu.Lock()
	defer q.st.mu.Unlock()
	if err := q.st.check("Submit"); err != nil {
		return err
	}
	var recs []Submission
	for _, s := range submits {
		rec := Submission{WaitStages: append([]driver.PipelineStage(nil), s.WaitStages...)}
		if len(s.WaitStages) != len(s.WaitSemaphores) {
			q.st.invalid("Submit: %d wait stages for %d semaphores", len(s.WaitStages), len(s.WaitSemaphores))
		}
		for _, w := range s.WaitSemaphores {
			if sem := as[*Semaphore](q.st, w, "Submit"); sem != nil {
				sem.wait("Submit")
			}
			rec.Wait = append(rec.Wait, ID(w))
		}
		for _, cbi := range s.CommandBuffers {
			cb := as[*CommandBuffer](q.st, cbi, "Submit")
			if cb == nil {
				continue
			}
			rec.CommandBuffers = append(rec.CommandBuffers, cb.id)
			switch {
			case cb.recording:
				q.st.invalid("Submit: command buffer %d still recording", cb.id)
			case !cb.ended:
				q.st.invalid("Submit: command buffer %d never recorded", cb.id)
			case cb.oneTime && cb.submitted:
				q.st.invalid("Submit: one-time command buffer %d submitted twice", cb.id)
			}
			x := &execution{st: q.st}
			for _, cmd := range cb.cmds {
				if cmd.run != nil {
					cmd.run(x)
				}
			}
			if x.pass != nil {
				q.st.invalid("Submit: command buffer %d ends inside a render pass", cb.id)
			}
			cb.submitted = true
			rec.Commands = append(rec.Commands, cb.cmds...)
		}
		for _, sg := range s.SignalSemaphores {
			if sem := as[*Semaphore](q.st, sg, "Submit"); sem != nil {
				sem.signal("Submit")
			}
			rec.Signal = append(rec.Signal, ID(sg))
		}
		recs = append(recs, rec)
	}
	q.st.record("Submit", q.dev.id, recs)
	return nil
}

// Present implements driver.Queue.
func (q *Queue) Present(info *driver.PresentInfo) error {
	q.st.mu.Lock()
	defer q.st.mu.Unlock()
	if err := q.st.check("Present"); err != nil {
		return err
	}
	for _, w := range info.WaitSemaphores {
		if sem := as[*Semaphore](q.st, w, "Present"); sem != nil {
			sem.wait("Present")
		}
	}
	sc := as[*Swapchain](q.st, info.Swapchain, "Present")
	if sc == nil {
		return errors.Wrap(driver.ErrSurfaceLost, "noop: present")
	}
	if sc.retired {
		return errors.Wrap(driver.ErrOutOfDate, "noop: present")
	}
	if int(info.ImageIndex) >= len(sc.images) {
		q.st.invalid("Present: image index %d out of range", info.ImageIndex)
		return errors.Wrap(driver.ErrOutOfDate, "noop: present index")
	}
	if !sc.acquired[info.ImageIndex] {
		q.st.invalid("Present: image %d was not acquired", info.ImageIndex)
	}
	delete(sc.acquired, info.ImageIndex)
	img := sc.images[info.ImageIndex]
	if img.layout != driver.LayoutPresentSrc {
		q.st.invalid("Present: image %d is in layout %s", img.id, img.layout)
	}
	q.st.record("Present", sc.id, info.ImageIndex)
	return nil
}

// WaitIdle implements driver.Queue.
func (q *Queue) WaitIdle() error {
	q.st.mu.Lock()
	defer q.st.mu.Unlock()
	if err := q.st.check("QueueWaitIdle"); err != nil {
		return err
	}
	q.st.record("QueueWaitIdle", q.dev.id, nil)
	return nil
}
