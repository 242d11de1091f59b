package ocgfx

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
)

// maxOutputs bounds the number of images a render target writes to.
const maxOutputs = 3

// RenderTargetDescriptor selects where a render target's frames go.
// Exactly one field must be set.
type RenderTargetDescriptor struct {
	Swapchain *Swapchain
	// Image must have been created with ImageUsageShaderInput and
	// ImageUsageRenderTarget. Only mip level 0 is written.
	Image *Image
}

// RenderTarget renders the world into a multisampled color image and
// resolves (or, single-sampled, copies) it into its output: the acquired
// swapchain image or an Image.
type RenderTarget struct {
	world     *World
	swapchain *Swapchain
	image     *Image

	format     gputypes.TextureFormat
	extent     driver.Extent2D
	generation uint64
	passes     *passSet
	// built is false while the sized objects are missing, after a failed
	// rebuild for example.
	built bool

	color     driver.Image
	colorMem  *allocation
	colorView driver.ImageView
	depth     driver.Image
	depthMem  *allocation
	depthView driver.ImageView
	main      driver.Framebuffer
	outputs   []rtOutput
	// mainPre re-barriers the color image before each frame.
	mainPre driver.CommandBuffer

	// ubo holds projection (slot 0) and view (slot 1).
	ubo *uniformBuffer

	camera     *Camera
	projection mgl32.Mat4
	view       mgl32.Mat4
	deps       []*RenderTarget
}

// rtOutput is one image a render target can write to. The image itself
// belongs to the swapchain or to the target Image.
type rtOutput struct {
	image driver.Image
	view  driver.ImageView
	// framebuffer is the composite framebuffer, nil when copying.
	framebuffer driver.Framebuffer
	// pre moves the image from where its consumer left it to where the
	// composite step writes it.
	pre driver.CommandBuffer
}

// NewRenderTargetFromSwapchain creates a render target presenting to sc.
func (w *World) NewRenderTargetFromSwapchain(sc *Swapchain) (*RenderTarget, error) {
	return w.CreateRenderTarget(RenderTargetDescriptor{Swapchain: sc})
}

// NewRenderTargetFromImage creates a render target writing into img.
func (w *World) NewRenderTargetFromImage(img *Image) (*RenderTarget, error) {
	return w.CreateRenderTarget(RenderTargetDescriptor{Image: img})
}

// CreateRenderTarget creates a render target and appends it to the world.
// Argument and capacity checks happen before anything is allocated; on a
// later failure everything created by the call is released and the world
// is unchanged.
func (w *World) CreateRenderTarget(desc RenderTargetDescriptor) (*RenderTarget, error) {
	if (desc.Swapchain == nil) == (desc.Image == nil) {
		return nil, errors.Wrap(ErrInvalidArgs, "render target needs exactly one of a swapchain and an image")
	}
	if img := desc.Image; img != nil {
		const need = ImageUsageShaderInput | ImageUsageRenderTarget
		if img.handle == nil || img.usage&need != need {
			return nil, errors.Wrapf(ErrInvalidArgs, "render target image usage %#x", img.usage)
		}
	}
	if len(w.targets) >= w.ctx.maxRenderTargets {
		return nil, errors.Wrapf(ErrTooManyRenderTargets, "world holds %d", len(w.targets))
	}

	rt := &RenderTarget{
		world:      w,
		swapchain:  desc.Swapchain,
		image:      desc.Image,
		projection: mgl32.Ident4(),
		view:       mgl32.Ident4(),
	}
	if err := rt.build(); err != nil {
		rt.release()
		return nil, err
	}
	ubo, err := w.ctx.newUniformBuffer(2)
	if err != nil {
		rt.release()
		return nil, err
	}
	rt.ubo = ubo
	w.targets = append(w.targets, rt)
	Logger().Debug("ocgfx: render target created",
		"window", rt.swapchain != nil,
		"format", rt.format,
		"width", rt.extent.Width,
		"height", rt.extent.Height,
		"outputs", len(rt.outputs))
	return rt, nil
}

// target returns the output images, their format and size.
func (rt *RenderTarget) target() ([]driver.Image, gputypes.TextureFormat, driver.Extent2D) {
	if sc := rt.swapchain; sc != nil {
		return sc.images, sc.Format(), sc.extent
	}
	img := rt.image
	return []driver.Image{img.handle}, img.format, driver.Extent2D{Width: img.width, Height: img.height}
}

// consumedLayout is the layout the output is left in by its consumer:
// the presentation engine or shaders sampling the image.
func (rt *RenderTarget) consumedLayout() driver.ImageLayout {
	if rt.swapchain != nil {
		return driver.LayoutPresentSrc
	}
	return rt.image.layout
}

// writeLayout is the layout the composite step writes the output in.
func (rt *RenderTarget) writeLayout() driver.ImageLayout {
	if rt.resolves() {
		return driver.LayoutColorAttachment
	}
	return driver.LayoutTransferDst
}

// resolves reports whether the output is written by a resolve pass rather
// than a copy.
func (rt *RenderTarget) resolves() bool { return rt.world.ctx.samples > 1 }

// build creates the images, framebuffers and command buffers sized for
// the current output. The uniform buffer is not touched.
func (rt *RenderTarget) build() error {
	c := rt.world.ctx
	outputs, format, extent := rt.target()
	if n := len(outputs); n < 1 || n > maxOutputs {
		return errors.Wrapf(ErrInvalidArgs, "%d output images, want 1 to %d", n, maxOutputs)
	}
	rt.format, rt.extent = format, extent
	passes, err := c.passes(format)
	if err != nil {
		return err
	}
	rt.passes = passes

	// Main color and depth/stencil images.
	if rt.color, rt.colorMem, err = c.newDeviceImage(&driver.ImageDescriptor{
		Format:    format,
		Width:     extent.Width,
		Height:    extent.Height,
		MipLevels: 1,
		Samples:   c.samples,
		Usage:     driver.ImageUsageColorAttachment | driver.ImageUsageTransferSrc,
	}); err != nil {
		return err
	}
	if rt.colorView, err = c.dev.CreateImageView(rt.color, &driver.ImageViewDescriptor{
		Format: format, Aspect: driver.AspectColor, MipLevels: 1,
	}); err != nil {
		return classify(err, "create color view")
	}
	if rt.depth, rt.depthMem, err = c.newDeviceImage(&driver.ImageDescriptor{
		Format:    DepthFormat,
		Width:     extent.Width,
		Height:    extent.Height,
		MipLevels: 1,
		Samples:   c.samples,
		Usage:     driver.ImageUsageDepthStencilAttachment,
	}); err != nil {
		return err
	}
	if rt.depthView, err = c.dev.CreateImageView(rt.depth, &driver.ImageViewDescriptor{
		Format: DepthFormat, Aspect: driver.AspectDepth | driver.AspectStencil, MipLevels: 1,
	}); err != nil {
		return classify(err, "create depth view")
	}

	if rt.main, err = c.dev.CreateFramebuffer(&driver.FramebufferDescriptor{
		RenderPass:  passes.main,
		Attachments: []driver.ImageView{rt.colorView, rt.depthView},
		Width:       extent.Width,
		Height:      extent.Height,
	}); err != nil {
		return classify(err, "create main framebuffer")
	}

	composite := passes.composite(rt.swapchain != nil)
	for _, img := range outputs {
		rt.outputs = append(rt.outputs, rtOutput{image: img})
		out := &rt.outputs[len(rt.outputs)-1]
		if out.view, err = c.dev.CreateImageView(img, &driver.ImageViewDescriptor{
			Format: format, Aspect: driver.AspectColor, MipLevels: 1,
		}); err != nil {
			return classify(err, "create output view")
		}
		if composite != nil {
			if out.framebuffer, err = c.dev.CreateFramebuffer(&driver.FramebufferDescriptor{
				RenderPass:  composite,
				Attachments: []driver.ImageView{out.view, rt.colorView},
				Width:       extent.Width,
				Height:      extent.Height,
			}); err != nil {
				return classify(err, "create composite framebuffer")
			}
		}
		barrier := driver.ImageBarrier{
			Image:     img,
			MipLevels: 1,
			OldLayout: rt.consumedLayout(),
			NewLayout: rt.writeLayout(),
			DstAccess: driver.AccessColorAttachmentWrite | driver.AccessTransferWrite,
		}
		if out.pre, err = c.sub.record(false, func(cb driver.CommandBuffer) {
			cb.PipelineBarrier(driver.StageTopOfPipe, driver.StageColorAttachmentOutput|driver.StageTransfer, []driver.ImageBarrier{barrier})
		}); err != nil {
			return err
		}
	}

	if err := c.sub.oneShot(func(cb driver.CommandBuffer) {
		cb.PipelineBarrier(driver.StageTopOfPipe, driver.StageColorAttachmentOutput|driver.StageEarlyFragmentTests, []driver.ImageBarrier{
			{
				Image:     rt.color,
				OldLayout: driver.LayoutUndefined,
				NewLayout: driver.LayoutColorAttachment,
				DstAccess: driver.AccessColorAttachmentWrite,
			},
			{
				Image:     rt.depth,
				Aspect:    driver.AspectDepth | driver.AspectStencil,
				OldLayout: driver.LayoutUndefined,
				NewLayout: driver.LayoutDepthStencilAttachment,
				DstAccess: driver.AccessDepthStencilAttachmentWrite,
			},
		})
	}); err != nil {
		return err
	}

	// Same-layout barrier: the previous frame's resolve reads must finish
	// before this frame clears the image.
	rt.mainPre, err = c.sub.record(false, func(cb driver.CommandBuffer) {
		cb.PipelineBarrier(driver.StageColorAttachmentOutput, driver.StageColorAttachmentOutput, []driver.ImageBarrier{{
			Image:     rt.color,
			OldLayout: driver.LayoutColorAttachment,
			NewLayout: driver.LayoutColorAttachment,
			SrcAccess: driver.AccessColorAttachmentWrite | driver.AccessColorAttachmentRead,
			DstAccess: driver.AccessColorAttachmentWrite,
		}})
	})
	if err != nil {
		return err
	}
	rt.built = true
	if rt.swapchain != nil {
		rt.generation = rt.swapchain.generation
	}
	return nil
}

// releaseImages undoes build. Every handle is checked, so it is safe on a
// partially built target.
func (rt *RenderTarget) releaseImages() {
	rt.built = false
	if rt.mainPre != nil {
		rt.mainPre.Destroy()
		rt.mainPre = nil
	}
	for i := len(rt.outputs) - 1; i >= 0; i-- {
		out := &rt.outputs[i]
		if out.pre != nil {
			out.pre.Destroy()
		}
		if out.framebuffer != nil {
			out.framebuffer.Destroy()
		}
		if out.view != nil {
			out.view.Destroy()
		}
	}
	rt.outputs = nil
	if rt.main != nil {
		rt.main.Destroy()
		rt.main = nil
	}
	if rt.depthView != nil {
		rt.depthView.Destroy()
		rt.depthView = nil
	}
	if rt.depth != nil {
		rt.depth.Destroy()
		rt.depth = nil
	}
	rt.depthMem.free()
	rt.depthMem = nil
	if rt.colorView != nil {
		rt.colorView.Destroy()
		rt.colorView = nil
	}
	if rt.color != nil {
		rt.color.Destroy()
		rt.color = nil
	}
	rt.colorMem.free()
	rt.colorMem = nil
}

// release frees everything the target owns.
func (rt *RenderTarget) release() {
	rt.ubo.destroy()
	rt.ubo = nil
	rt.releaseImages()
}

// rebuild recreates the sized objects after the swapchain was recreated.
func (rt *RenderTarget) rebuild() error {
	if err := rt.world.ctx.sub.waitDeviceIdle(); err != nil {
		return err
	}
	rt.releaseImages()
	if err := rt.build(); err != nil {
		rt.releaseImages()
		return err
	}
	Logger().Debug("ocgfx: render target rebuilt",
		"width", rt.extent.Width, "height", rt.extent.Height, "generation", rt.generation)
	return nil
}

// SetCamera makes the target take its projection and view from cam at
// every draw. nil returns to the matrices given to SetProjection.
func (rt *RenderTarget) SetCamera(cam *Camera) { rt.camera = cam }

// Camera returns the camera set with SetCamera, or nil.
func (rt *RenderTarget) Camera() *Camera { return rt.camera }

// SetProjection sets the projection and view used when no camera is set.
// The projection is in engine clip space; clip correction is applied at
// draw time.
func (rt *RenderTarget) SetProjection(projection, view mgl32.Mat4) {
	rt.projection, rt.view = projection, view
}

func (rt *RenderTarget) matrices() (projection, view mgl32.Mat4) {
	if rt.camera != nil {
		return rt.camera.Projection(), rt.camera.View()
	}
	return rt.projection, rt.view
}

// DependsOn makes World.Draw draw other before rt, for example when rt
// samples other's output image.
func (rt *RenderTarget) DependsOn(other *RenderTarget) error {
	if other == nil || other == rt || other.world != rt.world {
		return errors.Wrap(ErrInvalidArgs, "render target dependency must be another target of the same world")
	}
	if !slices.Contains(rt.deps, other) {
		rt.deps = append(rt.deps, other)
	}
	return nil
}

// Size returns the pixel size of the target.
func (rt *RenderTarget) Size() (width, height uint32) {
	return rt.extent.Width, rt.extent.Height
}

// Format returns the output color format.
func (rt *RenderTarget) Format() gputypes.TextureFormat { return rt.format }

// Swapchain returns the swapchain the target presents to, or nil.
func (rt *RenderTarget) Swapchain() *Swapchain { return rt.swapchain }

// Image returns the image the target writes, or nil.
func (rt *RenderTarget) Image() *Image { return rt.image }

// currentOutput returns the output the next frame writes to.
func (rt *RenderTarget) currentOutput() *rtOutput {
	if rt.swapchain != nil {
		return &rt.outputs[rt.swapchain.current]
	}
	return &rt.outputs[0]
}

// recordFrame records the main pass over objects and the composite step
// into out.
func (rt *RenderTarget) recordFrame(cb driver.CommandBuffer, out *rtOutput, objects []*Object, sets []driver.DescriptorSet) {
	c := rt.world.ctx
	cb.BeginRenderPass(&driver.RenderPassBeginInfo{
		RenderPass:  rt.passes.main,
		Framebuffer: rt.main,
		Extent:      rt.extent,
		ClearValues: []driver.ClearValue{{Color: clearColor}, clearDepth},
	})
	cb.SetViewport(driver.Viewport{Width: float32(rt.extent.Width), Height: float32(rt.extent.Height), MaxDepth: 1})
	cb.SetScissor(driver.Rect{Width: rt.extent.Width, Height: rt.extent.Height})
	for i, o := range objects {
		m := o.mesh
		cb.BindPipeline(rt.passes.pipeline)
		cb.BindDescriptorSet(c.pipelineLayout, sets[i])
		cb.BindVertexBuffer(m.vertices, 0)
		cb.BindIndexBuffer(m.indices, 0, m.indexFormat)
		cb.DrawIndexed(m.indexCount, 1, 0, 0, 0)
	}
	cb.EndRenderPass()

	final := rt.consumedLayout()
	if rt.resolves() {
		cb.BeginRenderPass(&driver.RenderPassBeginInfo{
			RenderPass:  rt.passes.composite(rt.swapchain != nil),
			Framebuffer: out.framebuffer,
			Extent:      rt.extent,
		})
		cb.EndRenderPass()
		return
	}

	cb.PipelineBarrier(driver.StageColorAttachmentOutput, driver.StageTransfer, []driver.ImageBarrier{{
		Image:     rt.color,
		OldLayout: driver.LayoutColorAttachment,
		NewLayout: driver.LayoutTransferSrc,
		SrcAccess: driver.AccessColorAttachmentWrite,
		DstAccess: driver.AccessTransferRead,
	}})
	cb.CopyImage(rt.color, driver.LayoutTransferSrc, out.image, driver.LayoutTransferDst, rt.extent)
	cb.PipelineBarrier(driver.StageTransfer, driver.StageColorAttachmentOutput|driver.StageFragmentShader|driver.StageBottomOfPipe, []driver.ImageBarrier{
		{
			Image:     out.image,
			MipLevels: 1,
			OldLayout: driver.LayoutTransferDst,
			NewLayout: final,
			SrcAccess: driver.AccessTransferWrite,
			DstAccess: driver.AccessShaderRead | driver.AccessMemoryRead,
		},
		{
			Image:     rt.color,
			OldLayout: driver.LayoutTransferSrc,
			NewLayout: driver.LayoutColorAttachment,
			SrcAccess: driver.AccessTransferRead,
			DstAccess: driver.AccessColorAttachmentWrite,
		},
	})
}
