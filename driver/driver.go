package driver

import "github.com/gogpu/gputypes"

// Destroyer is implemented by every driver object.
type Destroyer interface {
	Destroy()
}

// Instance is a loaded backend.
type Instance interface {
	Destroyer
	Adapters() ([]Adapter, error)
	CreateSurface(w Window) (Surface, error)
}

// Adapter is a physical device.
type Adapter interface {
	Info() AdapterInfo
	// Open creates a logical device with one queue from queueFamily.
	Open(queueFamily int) (Device, error)
}

// Window is a window a surface can be created for. *glfw.Window satisfies
// it.
type Window interface {
	GetFramebufferSize() (width, height int)
}

// Device is a logical device.
type Device interface {
	Destroyer

	Queue() Queue

	CreateCommandPool() (CommandPool, error)
	CreateImage(desc *ImageDescriptor) (Image, error)
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	AllocateMemory(size uint64, memoryType int) (Memory, error)
	BindImageMemory(img Image, mem Memory, offset uint64) error
	BindBufferMemory(buf Buffer, mem Memory, offset uint64) error
	CreateImageView(img Image, desc *ImageViewDescriptor) (ImageView, error)
	CreateSampler(desc *SamplerDescriptor) (Sampler, error)
	CreateRenderPass(desc *RenderPassDescriptor) (RenderPass, error)
	CreateFramebuffer(desc *FramebufferDescriptor) (Framebuffer, error)
	CreateShaderModule(spirv []byte) (ShaderModule, error)
	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	CreatePipelineLayout(layouts []DescriptorSetLayout) (PipelineLayout, error)
	CreateGraphicsPipeline(desc *GraphicsPipelineDescriptor) (Pipeline, error)
	CreateDescriptorPool(desc *DescriptorPoolDescriptor) (DescriptorPool, error)
	CreateSemaphore() (Semaphore, error)

	SurfaceSupport(s Surface) (bool, error)
	SurfaceCapabilities(s Surface) (SurfaceCapabilities, error)
	SurfaceFormats(s Surface) ([]SurfaceFormat, error)
	SurfacePresentModes(s Surface) ([]PresentMode, error)
	CreateSwapchain(desc *SwapchainDescriptor) (Swapchain, error)

	// WaitIdle blocks until the device has finished all submitted work.
	WaitIdle() error
}

// Queue executes command buffers.
type Queue interface {
	Submit(submits []SubmitInfo) error
	Present(info *PresentInfo) error
	WaitIdle() error
}

// CommandPool allocates command buffers.
type CommandPool interface {
	Destroyer
	AllocateCommandBuffer() (CommandBuffer, error)
}

// CommandBuffer records GPU commands. Destroy returns it to its pool.
type CommandBuffer interface {
	Destroyer

	Begin(oneTimeSubmit bool) error
	End() error

	PipelineBarrier(src, dst PipelineStage, barriers []ImageBarrier)
	CopyBufferToImage(src Buffer, dst Image, layout ImageLayout, regions []BufferImageCopy)
	CopyImage(src Image, srcLayout ImageLayout, dst Image, dstLayout ImageLayout, extent Extent2D)
	ClearColorImage(img Image, layout ImageLayout, color [4]float32)

	BeginRenderPass(info *RenderPassBeginInfo)
	EndRenderPass()
	SetViewport(v Viewport)
	SetScissor(r Rect)
	BindPipeline(p Pipeline)
	BindDescriptorSet(layout PipelineLayout, set DescriptorSet)
	BindVertexBuffer(buf Buffer, offset uint64)
	BindIndexBuffer(buf Buffer, offset uint64, format gputypes.IndexFormat)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

// Image is a GPU image. Images owned by a swapchain ignore Destroy.
type Image interface {
	Destroyer
	MemoryRequirements() MemoryRequirements
}

// Buffer is a GPU buffer.
type Buffer interface {
	Destroyer
	MemoryRequirements() MemoryRequirements
}

// Memory is a device memory allocation.
type Memory interface {
	Destroyer
	// Map returns a host view of size bytes at offset. The slice is valid
	// until Unmap.
	Map(offset, size uint64) ([]byte, error)
	Unmap()
	// Flush makes host writes in the range visible to the device.
	Flush(offset, size uint64) error
}

// DescriptorPool allocates descriptor sets.
type DescriptorPool interface {
	Destroyer
	Allocate(layout DescriptorSetLayout) (DescriptorSet, error)
}

// DescriptorSet binds resources to shader bindings. Destroy returns the set
// to its pool.
type DescriptorSet interface {
	Destroyer
	Update(writes []DescriptorWrite)
}

// Swapchain is a chain of presentable images.
type Swapchain interface {
	Destroyer
	Images() []Image
	Extent() Extent2D
	Format() gputypes.TextureFormat
	// AcquireNextImage returns the index of the next image and signals
	// signal once it is ready. Out-of-date swapchains return ErrOutOfDate.
	AcquireNextImage(timeout uint64, signal Semaphore) (uint32, error)
}

// Opaque driver objects.
type (
	Surface             interface{ Destroyer }
	ImageView           interface{ Destroyer }
	Sampler             interface{ Destroyer }
	RenderPass          interface{ Destroyer }
	Framebuffer         interface{ Destroyer }
	ShaderModule        interface{ Destroyer }
	DescriptorSetLayout interface{ Destroyer }
	PipelineLayout      interface{ Destroyer }
	Pipeline            interface{ Destroyer }
	Semaphore           interface{ Destroyer }
)

// FindMemoryType returns the index of the first memory type allowed by
// typeBits that has all of the wanted properties.
func FindMemoryType(types []MemoryType, typeBits uint32, want MemoryPropertyFlags) (int, bool) {
	for i, t := range types {
		if i >= 32 {
			break
		}
		if typeBits&(1<<uint(i)) != 0 && t.Flags&want == want {
			return i, true
		}
	}
	return -1, false
}
