package driver

import (
	"github.com/gogpu/gputypes"
)

// QueueFlags describes the operations a queue family supports.
type QueueFlags uint32

// Queue capabilities.
const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

// QueueFamily describes one queue family of an adapter.
type QueueFamily struct {
	Flags QueueFlags
	Count int
}

// SampleCountFlags is a bitmask of supported sample counts; bit n set means
// 1<<n samples are supported.
type SampleCountFlags uint32

// Sample count bits.
const (
	SampleCount1  SampleCountFlags = 1 << 0
	SampleCount2  SampleCountFlags = 1 << 1
	SampleCount4  SampleCountFlags = 1 << 2
	SampleCount8  SampleCountFlags = 1 << 3
	SampleCount16 SampleCountFlags = 1 << 4
	SampleCount32 SampleCountFlags = 1 << 5
	SampleCount64 SampleCountFlags = 1 << 6
)

// Limits holds the adapter limits the graphics core negotiates against.
type Limits struct {
	FramebufferColorSampleCounts   SampleCountFlags
	FramebufferDepthSampleCounts   SampleCountFlags
	FramebufferStencilSampleCounts SampleCountFlags
}

// MemoryPropertyFlags describes a memory type.
type MemoryPropertyFlags uint32

// Memory properties.
const (
	MemoryDeviceLocal MemoryPropertyFlags = 1 << iota
	MemoryHostVisible
	MemoryHostCoherent
	MemoryHostCached
)

// MemoryType is one memory type exposed by an adapter.
type MemoryType struct {
	Flags MemoryPropertyFlags
}

// AdapterInfo describes a physical adapter.
type AdapterInfo struct {
	Name          string
	QueueFamilies []QueueFamily
	Limits        Limits
	MemoryTypes   []MemoryType
}

// Extent2D is a size in pixels.
type Extent2D struct {
	Width, Height uint32
}

// ImageUsage is a bitmask of the ways an image can be used.
type ImageUsage uint32

// Image usages.
const (
	ImageUsageTransferSrc ImageUsage = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
	ImageUsageInputAttachment
)

// BufferUsage is a bitmask of the ways a buffer can be used.
type BufferUsage uint32

// Buffer usages.
const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageVertex
	BufferUsageIndex
)

// ImageLayout is the memory layout of an image subresource.
type ImageLayout uint32

// Image layouts.
const (
	LayoutUndefined ImageLayout = iota
	LayoutGeneral
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresentSrc
)

var layoutNames = [...]string{
	"Undefined", "General", "ColorAttachment", "DepthStencilAttachment",
	"ShaderReadOnly", "TransferSrc", "TransferDst", "PresentSrc",
}

// String returns the layout name.
func (l ImageLayout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return "ImageLayout(?)"
}

// ImageAspect selects the aspects of an image a view or barrier covers.
type ImageAspect uint32

// Image aspects.
const (
	AspectColor ImageAspect = 1 << iota
	AspectDepth
	AspectStencil
)

// PipelineStage is a bitmask of pipeline stages.
type PipelineStage uint32

// Pipeline stages.
const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageFragmentShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageTransfer
	StageBottomOfPipe
	StageAllCommands
)

// Access is a bitmask of memory access types.
type Access uint32

// Memory access types.
const (
	AccessShaderRead Access = 1 << iota
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
	AccessTransferRead
	AccessTransferWrite
	AccessMemoryRead
)

// ImageDescriptor describes a 2D image.
type ImageDescriptor struct {
	Format    gputypes.TextureFormat
	Width     uint32
	Height    uint32
	MipLevels uint32
	Samples   int
	Usage     ImageUsage
}

// BufferDescriptor describes a buffer.
type BufferDescriptor struct {
	Size  uint64
	Usage BufferUsage
}

// MemoryRequirements is what a resource needs from its backing memory.
// Bit i of TypeBits is set when memory type i is acceptable.
type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

// ImageViewDescriptor describes a 2D view over mip levels of an image.
type ImageViewDescriptor struct {
	Format    gputypes.TextureFormat
	Aspect    ImageAspect
	BaseMip   uint32
	MipLevels uint32
}

// SamplerDescriptor describes a sampler.
type SamplerDescriptor struct {
	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.FilterMode
	AddressMode  gputypes.AddressMode
	MaxLod       float32
}

// LoadOp is what happens to an attachment at the start of a render pass.
type LoadOp uint32

// Attachment load operations.
const (
	LoadOpDontCare LoadOp = iota
	LoadOpClear
	LoadOpLoad
)

// AttachmentDescriptor describes one render pass attachment.
type AttachmentDescriptor struct {
	Format        gputypes.TextureFormat
	Samples       int
	Load          LoadOp
	Store         gputypes.StoreOp
	StencilLoad   LoadOp
	StencilStore  gputypes.StoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

// AttachmentRef references an attachment from a subpass.
type AttachmentRef struct {
	Attachment uint32
	Layout     ImageLayout
}

// SubpassExternal refers to work outside the render pass in a dependency.
const SubpassExternal = ^uint32(0)

// SubpassDependency orders work between subpasses.
type SubpassDependency struct {
	SrcSubpass, DstSubpass uint32
	SrcStage, DstStage     PipelineStage
	SrcAccess, DstAccess   Access
}

// RenderPassDescriptor describes a single-subpass render pass.
type RenderPassDescriptor struct {
	Attachments  []AttachmentDescriptor
	Color        []AttachmentRef
	Resolve      []AttachmentRef
	DepthStencil *AttachmentRef
	Dependencies []SubpassDependency
}

// FramebufferDescriptor binds image views to a render pass.
type FramebufferDescriptor struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Width       uint32
	Height      uint32
}

// DescriptorType is the kind of resource a descriptor binds.
type DescriptorType uint32

// Descriptor types.
const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorCombinedImageSampler
	DescriptorSampler
)

// DescriptorBinding is one binding of a descriptor set layout.
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  gputypes.ShaderStage
}

// DescriptorPoolSize is the number of descriptors of one type a pool holds.
type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorPoolDescriptor describes a descriptor pool.
type DescriptorPoolDescriptor struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize
	// FreeIndividualSets allows DescriptorSet.Destroy to return a set to
	// the pool.
	FreeIndividualSets bool
}

// DescriptorWrite updates one binding of a descriptor set. Buffer fields
// apply to uniform buffers, image fields to combined image samplers and
// Sampler alone to samplers.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType

	Buffer Buffer
	Offset uint64
	Range  uint64

	View    ImageView
	Sampler Sampler
	Layout  ImageLayout
}

// VertexAttribute is one attribute of the interleaved vertex layout.
type VertexAttribute struct {
	Location uint32
	Format   gputypes.VertexFormat
	Offset   uint32
}

// GraphicsPipelineDescriptor describes a graphics pipeline with a single
// interleaved vertex buffer and dynamic viewport and scissor.
type GraphicsPipelineDescriptor struct {
	Layout        PipelineLayout
	RenderPass    RenderPass
	Vertex        ShaderModule
	VertexEntry   string
	Fragment      ShaderModule
	FragmentEntry string

	VertexStride uint32
	Attributes   []VertexAttribute
	Topology     gputypes.PrimitiveTopology

	CullMode  gputypes.CullMode
	FrontFace gputypes.FrontFace

	DepthTest    bool
	DepthWrite   bool
	DepthCompare gputypes.CompareFunction

	Samples int
	Blend   bool
}

// ImageBarrier transitions an image between layouts and makes memory
// accesses visible.
type ImageBarrier struct {
	Image     Image
	Aspect    ImageAspect
	BaseMip   uint32
	MipLevels uint32
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess Access
	DstAccess Access
}

// BufferImageCopy copies one tightly packed mip level from a buffer.
type BufferImageCopy struct {
	BufferOffset uint64
	MipLevel     uint32
	Width        uint32
	Height       uint32
}

// ClearValue is an attachment clear value. Color is used for color
// attachments, Depth and Stencil for depth/stencil attachments.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// RenderPassBeginInfo starts a render pass instance.
type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearValues []ClearValue
}

// Viewport is a viewport transform.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is a scissor rectangle.
type Rect struct {
	X, Y          int32
	Width, Height uint32
}

// SubmitInfo is one queue submission. WaitStages pairs with
// WaitSemaphores.
type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

// PresentInfo presents one swapchain image.
type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}

// PresentMode is a swapchain presentation mode.
type PresentMode uint32

// Present modes.
const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

// String returns the present mode name.
func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	default:
		return "unknown"
	}
}

// SurfaceFormat is a format and color space pair a surface supports.
type SurfaceFormat struct {
	Format     gputypes.TextureFormat
	ColorSpace uint32
}

// SurfaceCapabilities describes what swapchains a surface accepts.
// MaxImageCount 0 means no upper bound. A CurrentExtent of 0xFFFFFFFF in
// both dimensions means the swapchain decides the extent.
type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

// UndefinedExtent is the CurrentExtent component a surface reports when
// the swapchain extent is free.
const UndefinedExtent = ^uint32(0)

// SwapchainDescriptor describes a swapchain.
type SwapchainDescriptor struct {
	Surface     Surface
	ImageCount  uint32
	Format      SurfaceFormat
	Extent      Extent2D
	Usage       ImageUsage
	PresentMode PresentMode
	// Old is the swapchain being replaced, or nil.
	Old Swapchain
}

// TimeoutInfinite waits without bound in AcquireNextImage.
const TimeoutInfinite = ^uint64(0)
