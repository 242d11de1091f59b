package vulkan

import (
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
	vk "github.com/vulkan-go/vulkan"
)

// Device is a logical device with a single queue.
type Device struct {
	adapter *Adapter
	handle  vk.Device
	family  uint32
	queue   *Queue
}

// Destroy implements driver.Destroyer.
func (d *Device) Destroy() {
	vk.DestroyDevice(d.handle, nil)
}

// Queue implements driver.Device.
func (d *Device) Queue() driver.Queue { return d.queue }

// WaitIdle implements driver.Device.
func (d *Device) WaitIdle() error {
	return check(vk.DeviceWaitIdle(d.handle), "device wait idle")
}

// CommandPool allocates resettable primary command buffers.
type CommandPool struct {
	dev    *Device
	handle vk.CommandPool
}

// CreateCommandPool implements driver.Device.
func (d *Device) CreateCommandPool() (driver.CommandPool, error) {
	var pool vk.CommandPool
	res := vk.CreateCommandPool(d.handle, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.family,
	}, nil, &pool)
	if err := check(res, "create command pool"); err != nil {
		return nil, err
	}
	return &CommandPool{dev: d, handle: pool}, nil
}

// Destroy implements driver.Destroyer.
func (p *CommandPool) Destroy() {
	vk.DestroyCommandPool(p.dev.handle, p.handle, nil)
}

// AllocateCommandBuffer implements driver.CommandPool.
func (p *CommandPool) AllocateCommandBuffer() (driver.CommandBuffer, error) {
	bufs := make([]vk.CommandBuffer, 1)
	res := vk.AllocateCommandBuffers(p.dev.handle, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, bufs)
	if err := check(res, "allocate command buffer"); err != nil {
		return nil, err
	}
	return &CommandBuffer{pool: p, handle: bufs[0]}, nil
}

// Image is a device image. Swapchain images are owned by their swapchain.
type Image struct {
	dev       *Device
	handle    vk.Image
	desc      driver.ImageDescriptor
	swapchain bool
}

// CreateImage implements driver.Device.
func (d *Device) CreateImage(desc *driver.ImageDescriptor) (driver.Image, error) {
	samples := desc.Samples
	if samples < 1 {
		samples = 1
	}
	mips := desc.MipLevels
	if mips < 1 {
		mips = 1
	}
	var img vk.Image
	res := vk.CreateImage(d.handle, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        formatToVk(desc.Format),
		Extent:        vk.Extent3D{Width: desc.Width, Height: desc.Height, Depth: 1},
		MipLevels:     mips,
		ArrayLayers:   1,
		Samples:       vk.SampleCountFlagBits(samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsageToVk(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if err := check(res, "create image"); err != nil {
		return nil, err
	}
	return &Image{dev: d, handle: img, desc: *desc}, nil
}

// Destroy implements driver.Destroyer.
func (i *Image) Destroy() {
	if i.swapchain {
		return
	}
	vk.DestroyImage(i.dev.handle, i.handle, nil)
}

// MemoryRequirements implements driver.Image.
func (i *Image) MemoryRequirements() driver.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(i.dev.handle, i.handle, &req)
	req.Deref()
	return driver.MemoryRequirements{
		Size:      uint64(req.Size),
		Alignment: uint64(req.Alignment),
		TypeBits:  req.MemoryTypeBits,
	}
}

// Buffer is a device buffer.
type Buffer struct {
	dev    *Device
	handle vk.Buffer
	size   uint64
}

// CreateBuffer implements driver.Device.
func (d *Device) CreateBuffer(desc *driver.BufferDescriptor) (driver.Buffer, error) {
	var buf vk.Buffer
	res := vk.CreateBuffer(d.handle, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       bufferUsageToVk(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if err := check(res, "create buffer"); err != nil {
		return nil, err
	}
	return &Buffer{dev: d, handle: buf, size: desc.Size}, nil
}

// Destroy implements driver.Destroyer.
func (b *Buffer) Destroy() {
	vk.DestroyBuffer(b.dev.handle, b.handle, nil)
}

// MemoryRequirements implements driver.Buffer.
func (b *Buffer) MemoryRequirements() driver.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.dev.handle, b.handle, &req)
	req.Deref()
	return driver.MemoryRequirements{
		Size:      uint64(req.Size),
		Alignment: uint64(req.Alignment),
		TypeBits:  req.MemoryTypeBits,
	}
}

// Memory is a device memory allocation.
type Memory struct {
	dev    *Device
	handle vk.DeviceMemory
	size   uint64
	flags  driver.MemoryPropertyFlags
}

// AllocateMemory implements driver.Device.
func (d *Device) AllocateMemory(size uint64, memoryType int) (driver.Memory, error) {
	types := d.adapter.info.MemoryTypes
	if memoryType < 0 || memoryType >= len(types) {
		return nil, errors.Wrapf(driver.ErrNotSupported, "vulkan: memory type %d", memoryType)
	}
	var mem vk.DeviceMemory
	res := vk.AllocateMemory(d.handle, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: uint32(memoryType),
	}, nil, &mem)
	if err := check(res, "allocate memory"); err != nil {
		return nil, err
	}
	return &Memory{dev: d, handle: mem, size: size, flags: types[memoryType].Flags}, nil
}

// Destroy implements driver.Destroyer.
func (m *Memory) Destroy() {
	vk.FreeMemory(m.dev.handle, m.handle, nil)
}

// Map implements driver.Memory.
func (m *Memory) Map(offset, size uint64) ([]byte, error) {
	if m.flags&driver.MemoryHostVisible == 0 {
		return nil, errors.Wrap(driver.ErrNotSupported, "vulkan: map memory that is not host visible")
	}
	var ptr unsafe.Pointer
	res := vk.MapMemory(m.dev.handle, m.handle, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &ptr)
	if err := check(res, "map memory"); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

// Unmap implements driver.Memory.
func (m *Memory) Unmap() {
	vk.UnmapMemory(m.dev.handle, m.handle)
}

// Flush implements driver.Memory. Coherent memory needs no flush.
func (m *Memory) Flush(offset, size uint64) error {
	if m.flags&driver.MemoryHostCoherent != 0 {
		return nil
	}
	return check(vk.FlushMappedMemoryRanges(m.dev.handle, 1, []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: m.handle,
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}}), "flush memory")
}

// BindImageMemory implements driver.Device.
func (d *Device) BindImageMemory(img driver.Image, mem driver.Memory, offset uint64) error {
	return check(vk.BindImageMemory(d.handle, img.(*Image).handle, mem.(*Memory).handle, vk.DeviceSize(offset)), "bind image memory")
}

// BindBufferMemory implements driver.Device.
func (d *Device) BindBufferMemory(buf driver.Buffer, mem driver.Memory, offset uint64) error {
	return check(vk.BindBufferMemory(d.handle, buf.(*Buffer).handle, mem.(*Memory).handle, vk.DeviceSize(offset)), "bind buffer memory")
}

// ImageView is a 2D image view.
type ImageView struct {
	dev    *Device
	handle vk.ImageView
}

// CreateImageView implements driver.Device.
func (d *Device) CreateImageView(img driver.Image, desc *driver.ImageViewDescriptor) (driver.ImageView, error) {
	levels := desc.MipLevels
	if levels == 0 {
		levels = 1
	}
	var view vk.ImageView
	res := vk.CreateImageView(d.handle, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.(*Image).handle,
		ViewType: vk.ImageViewType2d,
		Format:   formatToVk(desc.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:   aspectToVk(desc.Aspect),
			BaseMipLevel: desc.BaseMip,
			LevelCount:   levels,
			LayerCount:   1,
		},
	}, nil, &view)
	if err := check(res, "create image view"); err != nil {
		return nil, err
	}
	return &ImageView{dev: d, handle: view}, nil
}

// Destroy implements driver.Destroyer.
func (v *ImageView) Destroy() {
	vk.DestroyImageView(v.dev.handle, v.handle, nil)
}

// Sampler is a texture sampler.
type Sampler struct {
	dev    *Device
	handle vk.Sampler
}

// CreateSampler implements driver.Device.
func (d *Device) CreateSampler(desc *driver.SamplerDescriptor) (driver.Sampler, error) {
	addr := addressModeToVk(desc.AddressMode)
	var s vk.Sampler
	res := vk.CreateSampler(d.handle, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filterToVk(desc.MagFilter),
		MinFilter:               filterToVk(desc.MinFilter),
		MipmapMode:              mipmapModeToVk(desc.MipmapFilter),
		AddressModeU:            addr,
		AddressModeV:            addr,
		AddressModeW:            addr,
		AnisotropyEnable:        vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		MaxLod:                  desc.MaxLod,
	}, nil, &s)
	if err := check(res, "create sampler"); err != nil {
		return nil, err
	}
	return &Sampler{dev: d, handle: s}, nil
}

// Destroy implements driver.Destroyer.
func (s *Sampler) Destroy() {
	vk.DestroySampler(s.dev.handle, s.handle, nil)
}

// RenderPass is a single-subpass render pass.
type RenderPass struct {
	dev    *Device
	handle vk.RenderPass
}

func attachmentRefs(refs []driver.AttachmentRef) []vk.AttachmentReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]vk.AttachmentReference, len(refs))
	for i, r := range refs {
		out[i] = vk.AttachmentReference{Attachment: r.Attachment, Layout: layoutToVk(r.Layout)}
	}
	return out
}

// CreateRenderPass implements driver.Device.
func (d *Device) CreateRenderPass(desc *driver.RenderPassDescriptor) (driver.RenderPass, error) {
	atts := make([]vk.AttachmentDescription, len(desc.Attachments))
	for i, a := range desc.Attachments {
		samples := a.Samples
		if samples < 1 {
			samples = 1
		}
		atts[i] = vk.AttachmentDescription{
			Format:         formatToVk(a.Format),
			Samples:        vk.SampleCountFlagBits(samples),
			LoadOp:         loadOpToVk(a.Load),
			StoreOp:        storeOpToVk(a.Store),
			StencilLoadOp:  loadOpToVk(a.StencilLoad),
			StencilStoreOp: storeOpToVk(a.StencilStore),
			InitialLayout:  layoutToVk(a.InitialLayout),
			FinalLayout:    layoutToVk(a.FinalLayout),
		}
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(desc.Color)),
		PColorAttachments:    attachmentRefs(desc.Color),
		PResolveAttachments:  attachmentRefs(desc.Resolve),
	}
	if ds := desc.DepthStencil; ds != nil {
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{Attachment: ds.Attachment, Layout: layoutToVk(ds.Layout)}
	}
	deps := make([]vk.SubpassDependency, len(desc.Dependencies))
	for i, dep := range desc.Dependencies {
		deps[i] = vk.SubpassDependency{
			SrcSubpass:    dep.SrcSubpass,
			DstSubpass:    dep.DstSubpass,
			SrcStageMask:  stagesToVk(dep.SrcStage),
			DstStageMask:  stagesToVk(dep.DstStage),
			SrcAccessMask: accessToVk(dep.SrcAccess),
			DstAccessMask: accessToVk(dep.DstAccess),
		}
	}
	var pass vk.RenderPass
	res := vk.CreateRenderPass(d.handle, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(atts)),
		PAttachments:    atts,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(deps)),
		PDependencies:   deps,
	}, nil, &pass)
	if err := check(res, "create render pass"); err != nil {
		return nil, err
	}
	return &RenderPass{dev: d, handle: pass}, nil
}

// Destroy implements driver.Destroyer.
func (p *RenderPass) Destroy() {
	vk.DestroyRenderPass(p.dev.handle, p.handle, nil)
}

// Framebuffer binds image views to a render pass.
type Framebuffer struct {
	dev    *Device
	handle vk.Framebuffer
}

// CreateFramebuffer implements driver.Device.
func (d *Device) CreateFramebuffer(desc *driver.FramebufferDescriptor) (driver.Framebuffer, error) {
	views := make([]vk.ImageView, len(desc.Attachments))
	for i, v := range desc.Attachments {
		views[i] = v.(*ImageView).handle
	}
	var fb vk.Framebuffer
	res := vk.CreateFramebuffer(d.handle, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      desc.RenderPass.(*RenderPass).handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           desc.Width,
		Height:          desc.Height,
		Layers:          1,
	}, nil, &fb)
	if err := check(res, "create framebuffer"); err != nil {
		return nil, err
	}
	return &Framebuffer{dev: d, handle: fb}, nil
}

// Destroy implements driver.Destroyer.
func (f *Framebuffer) Destroy() {
	vk.DestroyFramebuffer(f.dev.handle, f.handle, nil)
}

// ShaderModule is a SPIR-V module.
type ShaderModule struct {
	dev    *Device
	handle vk.ShaderModule
}

// CreateShaderModule implements driver.Device. SPIR-V is little-endian
// 32-bit words.
func (d *Device) CreateShaderModule(spirv []byte) (driver.ShaderModule, error) {
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return nil, errors.Wrapf(driver.ErrNotSupported, "vulkan: spir-v length %d", len(spirv))
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	var mod vk.ShaderModule
	res := vk.CreateShaderModule(d.handle, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(spirv)),
		PCode:    words,
	}, nil, &mod)
	if err := check(res, "create shader module"); err != nil {
		return nil, err
	}
	return &ShaderModule{dev: d, handle: mod}, nil
}

// Destroy implements driver.Destroyer.
func (m *ShaderModule) Destroy() {
	vk.DestroyShaderModule(m.dev.handle, m.handle, nil)
}

// DescriptorSetLayout describes the bindings of a descriptor set.
type DescriptorSetLayout struct {
	dev    *Device
	handle vk.DescriptorSetLayout
}

// CreateDescriptorSetLayout implements driver.Device.
func (d *Device) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	vb := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vb[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorTypeToVk(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      shaderStagesToVk(b.Stages),
		}
	}
	var layout vk.DescriptorSetLayout
	res := vk.CreateDescriptorSetLayout(d.handle, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vb)),
		PBindings:    vb,
	}, nil, &layout)
	if err := check(res, "create descriptor set layout"); err != nil {
		return nil, err
	}
	return &DescriptorSetLayout{dev: d, handle: layout}, nil
}

// Destroy implements driver.Destroyer.
func (l *DescriptorSetLayout) Destroy() {
	vk.DestroyDescriptorSetLayout(l.dev.handle, l.handle, nil)
}

// PipelineLayout is the set of descriptor set layouts a pipeline uses.
type PipelineLayout struct {
	dev    *Device
	handle vk.PipelineLayout
}

// CreatePipelineLayout implements driver.Device.
func (d *Device) CreatePipelineLayout(layouts []driver.DescriptorSetLayout) (driver.PipelineLayout, error) {
	sets := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		sets[i] = l.(*DescriptorSetLayout).handle
	}
	var layout vk.PipelineLayout
	res := vk.CreatePipelineLayout(d.handle, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(sets)),
		PSetLayouts:    sets,
	}, nil, &layout)
	if err := check(res, "create pipeline layout"); err != nil {
		return nil, err
	}
	return &PipelineLayout{dev: d, handle: layout}, nil
}

// Destroy implements driver.Destroyer.
func (l *PipelineLayout) Destroy() {
	vk.DestroyPipelineLayout(l.dev.handle, l.handle, nil)
}

// Pipeline is a graphics pipeline.
type Pipeline struct {
	dev    *Device
	handle vk.Pipeline
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// CreateGraphicsPipeline implements driver.Device.
func (d *Device) CreateGraphicsPipeline(desc *driver.GraphicsPipelineDescriptor) (driver.Pipeline, error) {
	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: desc.Vertex.(*ShaderModule).handle,
		PName:  cstr(desc.VertexEntry),
	}, {
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFragmentBit,
		Module: desc.Fragment.(*ShaderModule).handle,
		PName:  cstr(desc.FragmentEntry),
	}}

	attrs := make([]vk.VertexInputAttributeDescription, len(desc.Attributes))
	for i, a := range desc.Attributes {
		attrs[i] = vk.VertexInputAttributeDescription{
			Binding:  0,
			Location: a.Location,
			Format:   vertexFormatToVk(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topologyToVk(desc.Topology),
		PrimitiveRestartEnable: vk.False,
	}
	viewport := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}
	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    cullModeToVk(desc.CullMode),
		FrontFace:   frontFaceToVk(desc.FrontFace),
		LineWidth:   1,
	}
	samples := desc.Samples
	if samples < 1 {
		samples = 1
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCountFlagBits(samples),
		PSampleMask:          []vk.SampleMask{vk.SampleMask(vk.MaxUint32)},
		MinSampleShading:     1,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  bool32(desc.DepthTest),
		DepthWriteEnable: bool32(desc.DepthWrite),
		DepthCompareOp:   compareToVk(desc.DepthCompare),
	}
	attachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(
			vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit,
		),
		BlendEnable: bool32(desc.Blend),
	}
	if desc.Blend {
		attachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		attachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		attachment.ColorBlendOp = vk.BlendOpAdd
		attachment.SrcAlphaBlendFactor = vk.BlendFactorOne
		attachment.DstAlphaBlendFactor = vk.BlendFactorZero
		attachment.AlphaBlendOp = vk.BlendOpAdd
	}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{attachment},
	}

	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(d.handle, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewport,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              desc.Layout.(*PipelineLayout).handle,
		RenderPass:          desc.RenderPass.(*RenderPass).handle,
	}}, nil, pipelines)
	if err := check(res, "create graphics pipeline"); err != nil {
		return nil, err
	}
	return &Pipeline{dev: d, handle: pipelines[0]}, nil
}

// Destroy implements driver.Destroyer.
func (p *Pipeline) Destroy() {
	vk.DestroyPipeline(p.dev.handle, p.handle, nil)
}

// DescriptorPool allocates descriptor sets.
type DescriptorPool struct {
	dev        *Device
	handle     vk.DescriptorPool
	individual bool
}

// CreateDescriptorPool implements driver.Device.
func (d *Device) CreateDescriptorPool(desc *driver.DescriptorPoolDescriptor) (driver.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(desc.Sizes))
	for i, s := range desc.Sizes {
		sizes[i] = vk.DescriptorPoolSize{Type: descriptorTypeToVk(s.Type), DescriptorCount: s.Count}
	}
	var flags vk.DescriptorPoolCreateFlags
	if desc.FreeIndividualSets {
		flags = vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit)
	}
	var pool vk.DescriptorPool
	res := vk.CreateDescriptorPool(d.handle, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         flags,
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	if err := check(res, "create descriptor pool"); err != nil {
		return nil, err
	}
	return &DescriptorPool{dev: d, handle: pool, individual: desc.FreeIndividualSets}, nil
}

// Destroy implements driver.Destroyer. Sets allocated from the pool are
// freed with it.
func (p *DescriptorPool) Destroy() {
	vk.DestroyDescriptorPool(p.dev.handle, p.handle, nil)
}

// Allocate implements driver.DescriptorPool.
func (p *DescriptorPool) Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	var set vk.DescriptorSet
	res := vk.AllocateDescriptorSets(p.dev.handle, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.(*DescriptorSetLayout).handle},
	}, &set)
	if res == vk.ErrorOutOfPoolMemory || res == vk.ErrorFragmentedPool {
		return nil, errors.Wrap(driver.ErrOutOfDeviceMemory, "vulkan: descriptor pool exhausted")
	}
	if err := check(res, "allocate descriptor set"); err != nil {
		return nil, err
	}
	return &DescriptorSet{pool: p, handle: set}, nil
}

// DescriptorSet is an allocated descriptor set.
type DescriptorSet struct {
	pool   *DescriptorPool
	handle vk.DescriptorSet
}

// Destroy returns the set to its pool when the pool allows it.
func (s *DescriptorSet) Destroy() {
	if !s.pool.individual {
		return
	}
	vk.FreeDescriptorSets(s.pool.dev.handle, s.pool.handle, 1, &s.handle)
}

// Update implements driver.DescriptorSet.
func (s *DescriptorSet) Update(writes []driver.DescriptorWrite) {
	vw := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		vw[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.handle,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  descriptorTypeToVk(w.Type),
		}
		switch w.Type {
		case driver.DescriptorUniformBuffer:
			vw[i].PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: w.Buffer.(*Buffer).handle,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(w.Range),
			}}
		case driver.DescriptorCombinedImageSampler:
			vw[i].PImageInfo = []vk.DescriptorImageInfo{{
				ImageLayout: layoutToVk(w.Layout),
				ImageView:   w.View.(*ImageView).handle,
				Sampler:     w.Sampler.(*Sampler).handle,
			}}
		case driver.DescriptorSampler:
			vw[i].PImageInfo = []vk.DescriptorImageInfo{{
				Sampler: w.Sampler.(*Sampler).handle,
			}}
		}
	}
	vk.UpdateDescriptorSets(s.pool.dev.handle, uint32(len(vw)), vw, 0, nil)
}

// Semaphore is a binary GPU semaphore.
type Semaphore struct {
	dev    *Device
	handle vk.Semaphore
}

// CreateSemaphore implements driver.Device.
func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	var sem vk.Semaphore
	res := vk.CreateSemaphore(d.handle, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := check(res, "create semaphore"); err != nil {
		return nil, err
	}
	return &Semaphore{dev: d, handle: sem}, nil
}

// Destroy implements driver.Destroyer.
func (s *Semaphore) Destroy() {
	vk.DestroySemaphore(s.dev.handle, s.handle, nil)
}

// SurfaceSupport implements driver.Device.
func (d *Device) SurfaceSupport(s driver.Surface) (bool, error) {
	var ok vk.Bool32
	res := vk.GetPhysicalDeviceSurfaceSupport(d.adapter.handle, d.family, s.(*Surface).handle, &ok)
	if err := check(res, "query surface support"); err != nil {
		return false, err
	}
	return ok == vk.True, nil
}

func extentFromVk(e vk.Extent2D) driver.Extent2D {
	e.Deref()
	return driver.Extent2D{Width: e.Width, Height: e.Height}
}

// SurfaceCapabilities implements driver.Device.
func (d *Device) SurfaceCapabilities(s driver.Surface) (driver.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(d.adapter.handle, s.(*Surface).handle, &caps)
	if err := check(res, "query surface capabilities"); err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	caps.Deref()
	return driver.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  extentFromVk(caps.CurrentExtent),
		MinImageExtent: extentFromVk(caps.MinImageExtent),
		MaxImageExtent: extentFromVk(caps.MaxImageExtent),
	}, nil
}

// SurfaceFormats implements driver.Device. Formats the driver package has
// no name for are skipped.
func (d *Device) SurfaceFormats(s driver.Surface) ([]driver.SurfaceFormat, error) {
	surf := s.(*Surface).handle
	var count uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(d.adapter.handle, surf, &count, nil), "query surface formats"); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(d.adapter.handle, surf, &count, formats), "query surface formats"); err != nil {
		return nil, err
	}
	out := make([]driver.SurfaceFormat, 0, count)
	for _, f := range formats[:count] {
		f.Deref()
		tf := formatFromVk(f.Format)
		if tf == gputypes.TextureFormatUndefined {
			continue
		}
		out = append(out, driver.SurfaceFormat{Format: tf, ColorSpace: uint32(f.ColorSpace)})
	}
	return out, nil
}

// SurfacePresentModes implements driver.Device.
func (d *Device) SurfacePresentModes(s driver.Surface) ([]driver.PresentMode, error) {
	surf := s.(*Surface).handle
	var count uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(d.adapter.handle, surf, &count, nil), "query present modes"); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(d.adapter.handle, surf, &count, modes), "query present modes"); err != nil {
		return nil, err
	}
	out := make([]driver.PresentMode, 0, count)
	for _, m := range modes[:count] {
		if pm, ok := presentModeFromVk(m); ok {
			out = append(out, pm)
		}
	}
	return out, nil
}

// Swapchain is a presentable image chain.
type Swapchain struct {
	dev    *Device
	handle vk.Swapchain
	images []driver.Image
	extent driver.Extent2D
	format gputypes.TextureFormat
}

// CreateSwapchain implements driver.Device.
func (d *Device) CreateSwapchain(desc *driver.SwapchainDescriptor) (driver.Swapchain, error) {
	surf := desc.Surface.(*Surface)
	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(d.adapter.handle, surf.handle, &caps), "query surface capabilities"); err != nil {
		return nil, err
	}
	caps.Deref()

	transform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		transform = vk.SurfaceTransformIdentityBit
	}
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if vk.CompositeAlphaFlagBits(caps.SupportedCompositeAlpha)&flag != 0 {
			compositeAlpha = flag
			break
		}
	}

	old := vk.NullSwapchain
	if desc.Old != nil {
		old = desc.Old.(*Swapchain).handle
	}
	format := formatToVk(desc.Format.Format)
	var sc vk.Swapchain
	res := vk.CreateSwapchain(d.handle, &vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         surf.handle,
		MinImageCount:   desc.ImageCount,
		ImageFormat:     format,
		ImageColorSpace: vk.ColorSpace(desc.Format.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
		},
		ImageUsage:       imageUsageToVk(desc.Usage),
		PreTransform:     transform,
		CompositeAlpha:   compositeAlpha,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		PresentMode:      presentModeToVk(desc.PresentMode),
		OldSwapchain:     old,
		Clipped:          vk.True,
	}, nil, &sc)
	if err := check(res, "create swapchain"); err != nil {
		return nil, err
	}

	var count uint32
	if err := check(vk.GetSwapchainImages(d.handle, sc, &count, nil), "get swapchain images"); err != nil {
		vk.DestroySwapchain(d.handle, sc, nil)
		return nil, err
	}
	handles := make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(d.handle, sc, &count, handles), "get swapchain images"); err != nil {
		vk.DestroySwapchain(d.handle, sc, nil)
		return nil, err
	}
	s := &Swapchain{dev: d, handle: sc, extent: desc.Extent, format: desc.Format.Format}
	for _, h := range handles[:count] {
		s.images = append(s.images, &Image{
			dev:    d,
			handle: h,
			desc: driver.ImageDescriptor{
				Format:    desc.Format.Format,
				Width:     desc.Extent.Width,
				Height:    desc.Extent.Height,
				MipLevels: 1,
				Samples:   1,
				Usage:     desc.Usage,
			},
			swapchain: true,
		})
	}
	log().Debug("vulkan: swapchain created",
		"images", count, "extent", desc.Extent, "mode", desc.PresentMode.String())
	return s, nil
}

// Destroy implements driver.Destroyer.
func (s *Swapchain) Destroy() {
	vk.DestroySwapchain(s.dev.handle, s.handle, nil)
}

// Images implements driver.Swapchain.
func (s *Swapchain) Images() []driver.Image { return s.images }

// Extent implements driver.Swapchain.
func (s *Swapchain) Extent() driver.Extent2D { return s.extent }

// Format implements driver.Swapchain.
func (s *Swapchain) Format() gputypes.TextureFormat { return s.format }

// AcquireNextImage implements driver.Swapchain.
func (s *Swapchain) AcquireNextImage(timeout uint64, signal driver.Semaphore) (uint32, error) {
	var idx uint32
	res := vk.AcquireNextImage(s.dev.handle, s.handle, timeout, signal.(*Semaphore).handle, vk.NullFence, &idx)
	if err := check(res, "acquire next image"); err != nil {
		return 0, err
	}
	return idx, nil
}
