package noop

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
)

// Device is an in-memory driver.Device.
type Device struct {
	object
	adapter *Adapter
	family  int
	queue   *Queue
}

// as converts a driver object to its noop type, recording a validation
// error for nil, foreign or destroyed objects.
func as[T interface{ base() *object }](s *state, v any, what string) T {
	t, ok := v.(T)
	if !ok {
		s.invalid("%s: not a noop object (%T)", what, v)
		return t
	}
	if o := t.base(); o.destroyed {
		s.invalid("%s: %s %d used after destroy", what, o.kind, o.id)
	}
	return t
}

func (o *object) base() *object { return o }

// Queue implements driver.Device.
func (d *Device) Queue() driver.Queue { return d.queue }

// QueueFamily returns the family the device was opened with.
func (d *Device) QueueFamily() int { return d.family }

// create runs the common part of every Create call: the scripted failure
// check and the call record. Callers hold mu.
func (d *Device) create(op string) error {
	if d.destroyed {
		d.st.invalid("%s on destroyed device", op)
	}
	return d.st.check(op)
}

// CreateCommandPool implements driver.Device.
func (d *Device) CreateCommandPool() (driver.CommandPool, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateCommandPool"); err != nil {
		return nil, err
	}
	p := &CommandPool{object: d.st.newObject("CommandPool")}
	d.st.record("CreateCommandPool", p.id, nil)
	return p, nil
}

// Image is an in-memory driver.Image. Its layout is tracked through
// submitted commands.
type Image struct {
	object
	desc      driver.ImageDescriptor
	layout    driver.ImageLayout
	mem       *Memory
	swapchain *Swapchain
}

// CreateImage implements driver.Device.
func (d *Device) CreateImage(desc *driver.ImageDescriptor) (driver.Image, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateImage"); err != nil {
		return nil, err
	}
	if desc.Width == 0 || desc.Height == 0 || desc.MipLevels == 0 || desc.Samples < 1 || desc.Usage == 0 {
		d.st.invalid("CreateImage: invalid descriptor %+v", *desc)
		return nil, errors.Wrap(driver.ErrNotSupported, "noop: invalid image descriptor")
	}
	img := &Image{object: d.st.newObject("Image"), desc: *desc}
	d.st.record("CreateImage", img.id, *desc)
	return img, nil
}

// Destroy implements driver.Destroyer. Swapchain images ignore it.
func (i *Image) Destroy() {
	if i.swapchain != nil {
		return
	}
	i.object.Destroy()
}

// Descriptor returns the descriptor the image was created with.
func (i *Image) Descriptor() driver.ImageDescriptor { return i.desc }

// Layout returns the image's current layout.
func (i *Image) Layout() driver.ImageLayout {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	return i.layout
}

// MemoryRequirements implements driver.Image.
func (i *Image) MemoryRequirements() driver.MemoryRequirements {
	var size uint64
	w, h := uint64(i.desc.Width), uint64(i.desc.Height)
	for m := uint32(0); m < i.desc.MipLevels; m++ {
		size += w * h * bytesPerPixel(i.desc.Format) * uint64(i.desc.Samples)
		w = max(1, w/2)
		h = max(1, h/2)
	}
	return driver.MemoryRequirements{
		Size:      alignUp(size, 256),
		Alignment: 256,
		TypeBits:  i.st.typeBits(),
	}
}

func bytesPerPixel(f gputypes.TextureFormat) uint64 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA16Float:
		return 8
	default:
		return 4
	}
}

func alignUp(n, a uint64) uint64 {
	return (n + a - 1) / a * a
}

func (s *state) typeBits() uint32 {
	n := len(s.cfg.Adapters[0].MemoryTypes)
	if n >= 32 {
		return ^uint32(0)
	}
	return 1<<uint(n) - 1
}

// Buffer is an in-memory driver.Buffer.
type Buffer struct {
	object
	desc   driver.BufferDescriptor
	mem    *Memory
	offset uint64
}

// CreateBuffer implements driver.Device.
func (d *Device) CreateBuffer(desc *driver.BufferDescriptor) (driver.Buffer, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateBuffer"); err != nil {
		return nil, err
	}
	if desc.Size == 0 || desc.Usage == 0 {
		d.st.invalid("CreateBuffer: invalid descriptor %+v", *desc)
		return nil, errors.Wrap(driver.ErrNotSupported, "noop: invalid buffer descriptor")
	}
	b := &Buffer{object: d.st.newObject("Buffer"), desc: *desc}
	d.st.record("CreateBuffer", b.id, *desc)
	return b, nil
}

// MemoryRequirements implements driver.Buffer.
func (b *Buffer) MemoryRequirements() driver.MemoryRequirements {
	return driver.MemoryRequirements{
		Size:      alignUp(b.desc.Size, 16),
		Alignment: 16,
		TypeBits:  b.st.typeBits(),
	}
}

// Bytes returns the bound memory backing the buffer, or nil when unbound.
func (b *Buffer) Bytes() []byte {
	b.st.mu.Lock()
	defer b.st.mu.Unlock()
	if b.mem == nil {
		return nil
	}
	return b.mem.data[b.offset : b.offset+b.desc.Size]
}

// Memory is an in-memory driver.Memory backed by a Go slice.
type Memory struct {
	object
	flags   driver.MemoryPropertyFlags
	data    []byte
	mapped  bool
	flushed int
}

// Flushes returns how many times Flush was called.
func (m *Memory) Flushes() int {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	return m.flushed
}

// AllocateMemory implements driver.Device.
func (d *Device) AllocateMemory(size uint64, memoryType int) (driver.Memory, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("AllocateMemory"); err != nil {
		return nil, err
	}
	types := d.adapter.info.MemoryTypes
	if memoryType < 0 || memoryType >= len(types) {
		d.st.invalid("AllocateMemory: memory type %d out of range", memoryType)
		return nil, errors.Wrapf(driver.ErrOutOfDeviceMemory, "noop: memory type %d", memoryType)
	}
	m := &Memory{object: d.st.newObject("Memory"), flags: types[memoryType].Flags, data: make([]byte, size)}
	d.st.record("AllocateMemory", m.id, memoryType)
	return m, nil
}

// Map implements driver.Memory.
func (m *Memory) Map(offset, size uint64) ([]byte, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if err := m.st.check("Map"); err != nil {
		return nil, err
	}
	if m.flags&driver.MemoryHostVisible == 0 {
		m.st.invalid("Map: memory %d is not host visible", m.id)
		return nil, errors.Wrap(driver.ErrNotSupported, "noop: memory not host visible")
	}
	if m.mapped {
		m.st.invalid("Map: memory %d already mapped", m.id)
	}
	if offset+size > uint64(len(m.data)) {
		m.st.invalid("Map: range %d+%d exceeds allocation of %d", offset, size, len(m.data))
		return nil, errors.Wrap(driver.ErrOutOfHostMemory, "noop: map range")
	}
	m.mapped = true
	m.st.record("Map", m.id, size)
	return m.data[offset : offset+size : offset+size], nil
}

// Unmap implements driver.Memory.
func (m *Memory) Unmap() {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if !m.mapped {
		m.st.invalid("Unmap: memory %d not mapped", m.id)
	}
	m.mapped = false
	m.st.record("Unmap", m.id, nil)
}

// Flush implements driver.Memory.
func (m *Memory) Flush(offset, size uint64) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if err := m.st.check("Flush"); err != nil {
		return err
	}
	m.flushed++
	m.st.record("Flush", m.id, size)
	return nil
}

// BindImageMemory implements driver.Device.
func (d *Device) BindImageMemory(img driver.Image, mem driver.Memory, offset uint64) error {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.st.check("BindImageMemory"); err != nil {
		return err
	}
	i := as[*Image](d.st, img, "BindImageMemory")
	m := as[*Memory](d.st, mem, "BindImageMemory")
	if i == nil || m == nil {
		return errors.Wrap(driver.ErrNotSupported, "noop: bind image memory")
	}
	if i.mem != nil {
		d.st.invalid("BindImageMemory: image %d already bound", i.id)
	}
	if offset+i.MemoryRequirements().Size > uint64(len(m.data)) {
		d.st.invalid("BindImageMemory: memory %d too small for image %d", m.id, i.id)
	}
	i.mem = m
	d.st.record("BindImageMemory", i.id, m.id)
	return nil
}

// BindBufferMemory implements driver.Device.
func (d *Device) BindBufferMemory(buf driver.Buffer, mem driver.Memory, offset uint64) error {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.st.check("BindBufferMemory"); err != nil {
		return err
	}
	b := as[*Buffer](d.st, buf, "BindBufferMemory")
	m := as[*Memory](d.st, mem, "BindBufferMemory")
	if b == nil || m == nil {
		return errors.Wrap(driver.ErrNotSupported, "noop: bind buffer memory")
	}
	if b.mem != nil {
		d.st.invalid("BindBufferMemory: buffer %d already bound", b.id)
	}
	if offset+b.desc.Size > uint64(len(m.data)) {
		d.st.invalid("BindBufferMemory: memory %d too small for buffer %d", m.id, b.id)
		return errors.Wrap(driver.ErrOutOfDeviceMemory, "noop: bind buffer memory")
	}
	b.mem, b.offset = m, offset
	d.st.record("BindBufferMemory", b.id, m.id)
	return nil
}

// ImageView is an in-memory driver.ImageView.
type ImageView struct {
	object
	image *Image
	desc  driver.ImageViewDescriptor
}

// CreateImageView implements driver.Device.
func (d *Device) CreateImageView(img driver.Image, desc *driver.ImageViewDescriptor) (driver.ImageView, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateImageView"); err != nil {
		return nil, err
	}
	i := as[*Image](d.st, img, "CreateImageView")
	if i == nil {
		return nil, errors.Wrap(driver.ErrNotSupported, "noop: image view")
	}
	if desc.BaseMip+desc.MipLevels > i.desc.MipLevels {
		d.st.invalid("CreateImageView: mips %d+%d exceed image %d", desc.BaseMip, desc.MipLevels, i.id)
	}
	v := &ImageView{object: d.st.newObject("ImageView"), image: i, desc: *desc}
	d.st.record("CreateImageView", v.id, i.id)
	return v, nil
}

// Image returns the viewed image.
func (v *ImageView) Image() *Image { return v.image }

// Sampler is an in-memory driver.Sampler.
type Sampler struct {
	object
	desc driver.SamplerDescriptor
}

// CreateSampler implements driver.Device.
func (d *Device) CreateSampler(desc *driver.SamplerDescriptor) (driver.Sampler, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateSampler"); err != nil {
		return nil, err
	}
	s := &Sampler{object: d.st.newObject("Sampler"), desc: *desc}
	d.st.record("CreateSampler", s.id, *desc)
	return s, nil
}

// Descriptor returns the descriptor the sampler was created with.
func (s *Sampler) Descriptor() driver.SamplerDescriptor { return s.desc }

// RenderPass is an in-memory driver.RenderPass.
type RenderPass struct {
	object
	desc driver.RenderPassDescriptor
}

// CreateRenderPass implements driver.Device.
func (d *Device) CreateRenderPass(desc *driver.RenderPassDescriptor) (driver.RenderPass, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateRenderPass"); err != nil {
		return nil, err
	}
	n := uint32(len(desc.Attachments))
	refs := append(append([]driver.AttachmentRef(nil), desc.Color...), desc.Resolve...)
	if desc.DepthStencil != nil {
		refs = append(refs, *desc.DepthStencil)
	}
	for _, r := range refs {
		if r.Attachment >= n {
			d.st.invalid("CreateRenderPass: attachment %d out of range", r.Attachment)
			return nil, errors.Wrap(driver.ErrNotSupported, "noop: render pass")
		}
	}
	if len(desc.Resolve) != 0 {
		if len(desc.Resolve) != len(desc.Color) {
			d.st.invalid("CreateRenderPass: %d resolve refs for %d color refs", len(desc.Resolve), len(desc.Color))
		}
		for i, r := range desc.Resolve {
			if i < len(desc.Color) && desc.Attachments[desc.Color[i].Attachment].Samples <= 1 {
				d.st.invalid("CreateRenderPass: resolve from single-sampled attachment %d", desc.Color[i].Attachment)
			}
			if desc.Attachments[r.Attachment].Samples != 1 {
				d.st.invalid("CreateRenderPass: resolve target %d is multisampled", r.Attachment)
			}
		}
	}
	rp := &RenderPass{object: d.st.newObject("RenderPass"), desc: cloneRenderPass(desc)}
	d.st.record("CreateRenderPass", rp.id, rp.desc)
	return rp, nil
}

func cloneRenderPass(desc *driver.RenderPassDescriptor) driver.RenderPassDescriptor {
	c := driver.RenderPassDescriptor{
		Attachments:  append([]driver.AttachmentDescriptor(nil), desc.Attachments...),
		Color:        append([]driver.AttachmentRef(nil), desc.Color...),
		Resolve:      append([]driver.AttachmentRef(nil), desc.Resolve...),
		Dependencies: append([]driver.SubpassDependency(nil), desc.Dependencies...),
	}
	if desc.DepthStencil != nil {
		ds := *desc.DepthStencil
		c.DepthStencil = &ds
	}
	return c
}

// Descriptor returns the descriptor the render pass was created with.
func (r *RenderPass) Descriptor() driver.RenderPassDescriptor { return r.desc }

// Framebuffer is an in-memory driver.Framebuffer.
type Framebuffer struct {
	object
	pass  *RenderPass
	views []*ImageView
	w, h  uint32
}

// CreateFramebuffer implements driver.Device.
func (d *Device) CreateFramebuffer(desc *driver.FramebufferDescriptor) (driver.Framebuffer, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateFramebuffer"); err != nil {
		return nil, err
	}
	rp := as[*RenderPass](d.st, desc.RenderPass, "CreateFramebuffer")
	if rp == nil {
		return nil, errors.Wrap(driver.ErrNotSupported, "noop: framebuffer")
	}
	if len(desc.Attachments) != len(rp.desc.Attachments) {
		d.st.invalid("CreateFramebuffer: %d attachments for a render pass with %d",
			len(desc.Attachments), len(rp.desc.Attachments))
		return nil, errors.Wrap(driver.ErrNotSupported, "noop: framebuffer attachments")
	}
	fb := &Framebuffer{object: d.st.newObject("Framebuffer"), pass: rp, w: desc.Width, h: desc.Height}
	ids := make([]uint64, len(desc.Attachments))
	for i, a := range desc.Attachments {
		v := as[*ImageView](d.st, a, "CreateFramebuffer")
		if v == nil {
			continue
		}
		if v.image.desc.Samples != rp.desc.Attachments[i].Samples {
			d.st.invalid("CreateFramebuffer: attachment %d has %d samples, render pass wants %d",
				i, v.image.desc.Samples, rp.desc.Attachments[i].Samples)
		}
		if v.image.desc.Width < desc.Width || v.image.desc.Height < desc.Height {
			d.st.invalid("CreateFramebuffer: attachment %d smaller than framebuffer", i)
		}
		fb.views = append(fb.views, v)
		ids[i] = v.id
	}
	d.st.record("CreateFramebuffer", fb.id, ids)
	return fb, nil
}

// ShaderModule is an in-memory driver.ShaderModule.
type ShaderModule struct {
	object
	code []byte
}

// CreateShaderModule implements driver.Device.
func (d *Device) CreateShaderModule(spirv []byte) (driver.ShaderModule, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateShaderModule"); err != nil {
		return nil, err
	}
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		d.st.invalid("CreateShaderModule: code size %d is not a positive multiple of 4", len(spirv))
		return nil, errors.Wrap(driver.ErrInitializationFailed, "noop: shader module")
	}
	m := &ShaderModule{object: d.st.newObject("ShaderModule"), code: append([]byte(nil), spirv...)}
	d.st.record("CreateShaderModule", m.id, len(spirv))
	return m, nil
}

// DescriptorSetLayout is an in-memory driver.DescriptorSetLayout.
type DescriptorSetLayout struct {
	object
	bindings []driver.DescriptorBinding
}

// CreateDescriptorSetLayout implements driver.Device.
func (d *Device) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	l := &DescriptorSetLayout{
		object:   d.st.newObject("DescriptorSetLayout"),
		bindings: append([]driver.DescriptorBinding(nil), bindings...),
	}
	d.st.record("CreateDescriptorSetLayout", l.id, l.bindings)
	return l, nil
}

// Bindings returns the layout's bindings.
func (l *DescriptorSetLayout) Bindings() []driver.DescriptorBinding { return l.bindings }

// PipelineLayout is an in-memory driver.PipelineLayout.
type PipelineLayout struct {
	object
	sets []*DescriptorSetLayout
}

// CreatePipelineLayout implements driver.Device.
func (d *Device) CreatePipelineLayout(layouts []driver.DescriptorSetLayout) (driver.PipelineLayout, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	pl := &PipelineLayout{object: d.st.newObject("PipelineLayout")}
	for _, l := range layouts {
		pl.sets = append(pl.sets, as[*DescriptorSetLayout](d.st, l, "CreatePipelineLayout"))
	}
	d.st.record("CreatePipelineLayout", pl.id, len(layouts))
	return pl, nil
}

// Pipeline is an in-memory driver.Pipeline.
type Pipeline struct {
	object
	desc driver.GraphicsPipelineDescriptor
}

// CreateGraphicsPipeline implements driver.Device.
func (d *Device) CreateGraphicsPipeline(desc *driver.GraphicsPipelineDescriptor) (driver.Pipeline, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateGraphicsPipeline"); err != nil {
		return nil, err
	}
	as[*PipelineLayout](d.st, desc.Layout, "CreateGraphicsPipeline")
	as[*RenderPass](d.st, desc.RenderPass, "CreateGraphicsPipeline")
	as[*ShaderModule](d.st, desc.Vertex, "CreateGraphicsPipeline")
	as[*ShaderModule](d.st, desc.Fragment, "CreateGraphicsPipeline")
	p := &Pipeline{object: d.st.newObject("Pipeline"), desc: *desc}
	p.desc.Attributes = append([]driver.VertexAttribute(nil), desc.Attributes...)
	d.st.record("CreateGraphicsPipeline", p.id, p.desc)
	return p, nil
}

// Descriptor returns the descriptor the pipeline was created with.
func (p *Pipeline) Descriptor() driver.GraphicsPipelineDescriptor { return p.desc }

// DescriptorPool is an in-memory driver.DescriptorPool.
type DescriptorPool struct {
	object
	desc driver.DescriptorPoolDescriptor
	sets []*DescriptorSet
	used uint32
}

// CreateDescriptorPool implements driver.Device.
func (d *Device) CreateDescriptorPool(desc *driver.DescriptorPoolDescriptor) (driver.DescriptorPool, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateDescriptorPool"); err != nil {
		return nil, err
	}
	p := &DescriptorPool{object: d.st.newObject("DescriptorPool"), desc: *desc}
	p.desc.Sizes = append([]driver.DescriptorPoolSize(nil), desc.Sizes...)
	d.st.record("CreateDescriptorPool", p.id, p.desc)
	return p, nil
}

// Allocated returns the number of sets currently allocated from the pool.
func (p *DescriptorPool) Allocated() int {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	return int(p.used)
}

// Allocate implements driver.DescriptorPool.
func (p *DescriptorPool) Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	if err := p.st.check("AllocateDescriptorSet"); err != nil {
		return nil, err
	}
	l := as[*DescriptorSetLayout](p.st, layout, "AllocateDescriptorSet")
	if p.used >= p.desc.MaxSets {
		return nil, errors.Wrap(driver.ErrOutOfDeviceMemory, "noop: descriptor pool exhausted")
	}
	s := &DescriptorSet{object: p.st.newObject("DescriptorSet"), pool: p, layout: l, writes: make(map[uint32]driver.DescriptorWrite)}
	p.used++
	p.sets = append(p.sets, s)
	p.st.record("AllocateDescriptorSet", s.id, p.id)
	return s, nil
}

// Destroy implements driver.Destroyer; sets still allocated from the pool
// are freed with it.
func (p *DescriptorPool) Destroy() {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	for _, s := range p.sets {
		if !s.destroyed {
			s.destroyed = true
			p.st.live[s.kind]--
		}
	}
	p.sets = nil
	p.used = 0
	p.destroyLocked()
}

// DescriptorSet is an in-memory driver.DescriptorSet.
type DescriptorSet struct {
	object
	pool   *DescriptorPool
	layout *DescriptorSetLayout
	writes map[uint32]driver.DescriptorWrite
}

// Destroy implements driver.Destroyer by freeing the set to its pool.
func (s *DescriptorSet) Destroy() {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if !s.pool.desc.FreeIndividualSets {
		s.st.invalid("DescriptorSet %d freed to a pool without FreeIndividualSets", s.id)
	}
	if s.destroyed {
		s.destroyLocked()
		return
	}
	s.pool.used--
	s.destroyLocked()
}

// Update implements driver.DescriptorSet.
func (s *DescriptorSet) Update(writes []driver.DescriptorWrite) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	for _, w := range writes {
		found := false
		if s.layout != nil {
			for _, b := range s.layout.bindings {
				if b.Binding == w.Binding {
					found = true
					if b.Type != w.Type {
						s.st.invalid("DescriptorSet %d binding %d: type mismatch", s.id, w.Binding)
					}
				}
			}
		}
		if !found {
			s.st.invalid("DescriptorSet %d: no binding %d in layout", s.id, w.Binding)
		}
		switch w.Type {
		case driver.DescriptorUniformBuffer:
			as[*Buffer](s.st, w.Buffer, "UpdateDescriptorSet")
		case driver.DescriptorCombinedImageSampler:
			as[*ImageView](s.st, w.View, "UpdateDescriptorSet")
			as[*Sampler](s.st, w.Sampler, "UpdateDescriptorSet")
		case driver.DescriptorSampler:
			as[*Sampler](s.st, w.Sampler, "UpdateDescriptorSet")
		}
		s.writes[w.Binding] = w
	}
	s.st.record("UpdateDescriptorSet", s.id, len(writes))
}

// Write returns the last write to binding.
func (s *DescriptorSet) Write(binding uint32) (driver.DescriptorWrite, bool) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	w, ok := s.writes[binding]
	return w, ok
}

// Semaphore is an in-memory driver.Semaphore.
type Semaphore struct {
	object
	signaled bool
}

// CreateSemaphore implements driver.Device.
func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateSemaphore"); err != nil {
		return nil, err
	}
	s := &Semaphore{object: d.st.newObject("Semaphore")}
	d.st.record("CreateSemaphore", s.id, nil)
	return s, nil
}

func (s *Semaphore) signal(by string) {
	if s.signaled {
		s.st.invalid("%s: semaphore %d signaled twice", by, s.id)
	}
	s.signaled = true
}

func (s *Semaphore) wait(by string) {
	if !s.signaled {
		s.st.invalid("%s: wait on unsignaled semaphore %d", by, s.id)
	}
	s.signaled = false
}

// SurfaceSupport implements driver.Device.
func (d *Device) SurfaceSupport(s driver.Surface) (bool, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.st.check("SurfaceSupport"); err != nil {
		return false, err
	}
	as[*Surface](d.st, s, "SurfaceSupport")
	return d.st.cfg.Surface.Supported, nil
}

// SurfaceCapabilities implements driver.Device.
func (d *Device) SurfaceCapabilities(s driver.Surface) (driver.SurfaceCapabilities, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.st.check("SurfaceCapabilities"); err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	as[*Surface](d.st, s, "SurfaceCapabilities")
	return d.st.cfg.Surface.Capabilities, nil
}

// SurfaceFormats implements driver.Device.
func (d *Device) SurfaceFormats(s driver.Surface) ([]driver.SurfaceFormat, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.st.check("SurfaceFormats"); err != nil {
		return nil, err
	}
	as[*Surface](d.st, s, "SurfaceFormats")
	return append([]driver.SurfaceFormat(nil), d.st.cfg.Surface.Formats...), nil
}

// SurfacePresentModes implements driver.Device.
func (d *Device) SurfacePresentModes(s driver.Surface) ([]driver.PresentMode, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.st.check("SurfacePresentModes"); err != nil {
		return nil, err
	}
	as[*Surface](d.st, s, "SurfacePresentModes")
	return append([]driver.PresentMode(nil), d.st.cfg.Surface.PresentModes...), nil
}

// Swapchain is an in-memory driver.Swapchain.
type Swapchain struct {
	object
	desc     driver.SwapchainDescriptor
	images   []*Image
	next     uint32
	acquired map[uint32]bool
	retired  bool
}

// CreateSwapchain implements driver.Device.
func (d *Device) CreateSwapchain(desc *driver.SwapchainDescriptor) (driver.Swapchain, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.create("CreateSwapchain"); err != nil {
		return nil, err
	}
	as[*Surface](d.st, desc.Surface, "CreateSwapchain")
	caps := d.st.cfg.Surface.Capabilities
	if desc.ImageCount < caps.MinImageCount || (caps.MaxImageCount != 0 && desc.ImageCount > caps.MaxImageCount) {
		d.st.invalid("CreateSwapchain: image count %d outside [%d, %d]", desc.ImageCount, caps.MinImageCount, caps.MaxImageCount)
	}
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		d.st.invalid("CreateSwapchain: zero extent")
	}
	if desc.Old != nil {
		if old := as[*Swapchain](d.st, desc.Old, "CreateSwapchain"); old != nil {
			old.retired = true
		}
	}
	sc := &Swapchain{object: d.st.newObject("Swapchain"), desc: *desc, acquired: make(map[uint32]bool)}
	sc.desc.Old = nil
	for n := uint32(0); n < desc.ImageCount; n++ {
		img := &Image{
			object: object{st: d.st, id: d.st.id(), kind: "SwapchainImage"},
			desc: driver.ImageDescriptor{
				Format:    desc.Format.Format,
				Width:     desc.Extent.Width,
				Height:    desc.Extent.Height,
				MipLevels: 1,
				Samples:   1,
				Usage:     desc.Usage,
			},
			swapchain: sc,
		}
		sc.images = append(sc.images, img)
	}
	d.st.record("CreateSwapchain", sc.id, sc.desc)
	return sc, nil
}

// Images implements driver.Swapchain.
func (s *Swapchain) Images() []driver.Image {
	out := make([]driver.Image, len(s.images))
	for i, img := range s.images {
		out[i] = img
	}
	return out
}

// Extent implements driver.Swapchain.
func (s *Swapchain) Extent() driver.Extent2D { return s.desc.Extent }

// Format implements driver.Swapchain.
func (s *Swapchain) Format() gputypes.TextureFormat { return s.desc.Format.Format }

// PresentMode returns the mode the swapchain was created with.
func (s *Swapchain) PresentMode() driver.PresentMode { return s.desc.PresentMode }

// Retire makes later acquires and presents report driver.ErrOutOfDate, as
// a native swapchain does after its window is resized.
func (s *Swapchain) Retire() {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.retired = true
}

// AcquireNextImage implements driver.Swapchain. Images are handed out
// round robin.
func (s *Swapchain) AcquireNextImage(timeout uint64, signal driver.Semaphore) (uint32, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.check("AcquireNextImage"); err != nil {
		return 0, err
	}
	if s.destroyed {
		s.st.invalid("AcquireNextImage on destroyed swapchain %d", s.id)
	}
	if s.retired {
		return 0, errors.Wrap(driver.ErrOutOfDate, "noop: acquire")
	}
	sem := as[*Semaphore](s.st, signal, "AcquireNextImage")
	if sem != nil {
		sem.signal("AcquireNextImage")
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	s.acquired[idx] = true
	s.st.record("AcquireNextImage", s.id, idx)
	return idx, nil
}

// WaitIdle implements driver.Device.
func (d *Device) WaitIdle() error {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if err := d.st.check("WaitIdle"); err != nil {
		return err
	}
	d.st.record("WaitIdle", d.id, nil)
	return nil
}
