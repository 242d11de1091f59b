package ocgfx

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
)

// DepthFormat is the format of every render target's depth/stencil image.
const DepthFormat = gputypes.TextureFormatDepth24PlusStencil8

// Main pass clear values.
var (
	clearColor = [4]float32{0, 0, 1, 1}
	clearDepth = driver.ClearValue{Depth: 1, Stencil: 0}
)

// passSet holds the render passes and the pipeline for one output color
// format. Framebuffers and pipelines are only compatible with passes whose
// attachment formats match, so each output format gets its own set.
type passSet struct {
	format gputypes.TextureFormat

	// main renders into the multisampled color and depth images.
	main driver.RenderPass
	// compositeImage and compositeWindow resolve the main color image into
	// an output image, leaving it shader readable or presentable. Both are
	// nil when the context is single-sampled and outputs are copied.
	compositeImage  driver.RenderPass
	compositeWindow driver.RenderPass

	pipeline driver.Pipeline
}

func (p *passSet) destroy() {
	if p.pipeline != nil {
		p.pipeline.Destroy()
	}
	if p.compositeWindow != nil {
		p.compositeWindow.Destroy()
	}
	if p.compositeImage != nil {
		p.compositeImage.Destroy()
	}
	if p.main != nil {
		p.main.Destroy()
	}
}

// composite returns the composite pass for an output ending in a
// presentable (window) or shader-readable layout.
func (p *passSet) composite(window bool) driver.RenderPass {
	if window {
		return p.compositeWindow
	}
	return p.compositeImage
}

func mainPassDescriptor(format gputypes.TextureFormat, samples int) *driver.RenderPassDescriptor {
	return &driver.RenderPassDescriptor{
		Attachments: []driver.AttachmentDescriptor{
			{
				Format:        format,
				Samples:       samples,
				Load:          driver.LoadOpClear,
				Store:         gputypes.StoreOpStore,
				StencilLoad:   driver.LoadOpDontCare,
				StencilStore:  gputypes.StoreOpDiscard,
				InitialLayout: driver.LayoutColorAttachment,
				FinalLayout:   driver.LayoutColorAttachment,
			},
			{
				Format:        DepthFormat,
				Samples:       samples,
				Load:          driver.LoadOpClear,
				Store:         gputypes.StoreOpDiscard,
				StencilLoad:   driver.LoadOpClear,
				StencilStore:  gputypes.StoreOpDiscard,
				InitialLayout: driver.LayoutDepthStencilAttachment,
				FinalLayout:   driver.LayoutDepthStencilAttachment,
			},
		},
		Color:        []driver.AttachmentRef{{Attachment: 0, Layout: driver.LayoutColorAttachment}},
		DepthStencil: &driver.AttachmentRef{Attachment: 1, Layout: driver.LayoutDepthStencilAttachment},
		Dependencies: []driver.SubpassDependency{{
			SrcSubpass: driver.SubpassExternal,
			DstSubpass: 0,
			SrcStage:   driver.StageColorAttachmentOutput | driver.StageEarlyFragmentTests,
			DstStage:   driver.StageColorAttachmentOutput | driver.StageEarlyFragmentTests,
			DstAccess:  driver.AccessColorAttachmentWrite | driver.AccessDepthStencilAttachmentWrite,
		}},
	}
}

// compositePassDescriptor resolves attachment 1 (the main color image)
// into attachment 0 (the output). Nothing is cleared.
func compositePassDescriptor(format gputypes.TextureFormat, samples int, final driver.ImageLayout) *driver.RenderPassDescriptor {
	return &driver.RenderPassDescriptor{
		Attachments: []driver.AttachmentDescriptor{
			{
				Format:        format,
				Samples:       1,
				Load:          driver.LoadOpDontCare,
				Store:         gputypes.StoreOpStore,
				StencilLoad:   driver.LoadOpDontCare,
				StencilStore:  gputypes.StoreOpDiscard,
				InitialLayout: driver.LayoutColorAttachment,
				FinalLayout:   final,
			},
			{
				Format:        format,
				Samples:       samples,
				Load:          driver.LoadOpLoad,
				Store:         gputypes.StoreOpStore,
				StencilLoad:   driver.LoadOpDontCare,
				StencilStore:  gputypes.StoreOpDiscard,
				InitialLayout: driver.LayoutColorAttachment,
				FinalLayout:   driver.LayoutColorAttachment,
			},
		},
		Color:   []driver.AttachmentRef{{Attachment: 1, Layout: driver.LayoutColorAttachment}},
		Resolve: []driver.AttachmentRef{{Attachment: 0, Layout: driver.LayoutColorAttachment}},
		Dependencies: []driver.SubpassDependency{{
			SrcSubpass: driver.SubpassExternal,
			DstSubpass: 0,
			SrcStage:   driver.StageColorAttachmentOutput,
			DstStage:   driver.StageColorAttachmentOutput,
			SrcAccess:  driver.AccessColorAttachmentWrite,
			DstAccess:  driver.AccessColorAttachmentRead | driver.AccessColorAttachmentWrite,
		}},
	}
}

// Vertex layout of every mesh: position, uv, normal.
const vertexStride = 32

var vertexAttributes = []driver.VertexAttribute{
	{Location: 0, Format: gputypes.VertexFormatFloat32x3, Offset: 0},
	{Location: 1, Format: gputypes.VertexFormatFloat32x2, Offset: 12},
	{Location: 2, Format: gputypes.VertexFormatFloat32x3, Offset: 20},
}

func (c *Context) pipelineDescriptor(pass driver.RenderPass) *driver.GraphicsPipelineDescriptor {
	return &driver.GraphicsPipelineDescriptor{
		Layout:        c.pipelineLayout,
		RenderPass:    pass,
		Vertex:        c.shaders.vertex,
		VertexEntry:   c.shaders.vertexEntry,
		Fragment:      c.shaders.fragment,
		FragmentEntry: c.shaders.fragmentEntry,
		VertexStride:  vertexStride,
		Attributes:    vertexAttributes,
		Topology:      gputypes.PrimitiveTopologyTriangleList,
		CullMode:      gputypes.CullModeBack,
		FrontFace:     gputypes.FrontFaceCCW,
		DepthTest:     false,
		DepthWrite:    true,
		DepthCompare:  gputypes.CompareFunctionLessEqual,
		Samples:       c.samples,
		Blend:         false,
	}
}

// createPassSet builds the passes and pipeline for format. Partial sets
// are destroyed on failure.
func (c *Context) createPassSet(format gputypes.TextureFormat) (*passSet, error) {
	p := &passSet{format: format}
	var err error
	if p.main, err = c.dev.CreateRenderPass(mainPassDescriptor(format, c.samples)); err != nil {
		p.destroy()
		return nil, classify(err, "create main render pass (%v)", format)
	}
	if c.samples > 1 {
		if p.compositeImage, err = c.dev.CreateRenderPass(compositePassDescriptor(format, c.samples, driver.LayoutShaderReadOnly)); err != nil {
			p.destroy()
			return nil, classify(err, "create image composite render pass")
		}
		if p.compositeWindow, err = c.dev.CreateRenderPass(compositePassDescriptor(format, c.samples, driver.LayoutPresentSrc)); err != nil {
			p.destroy()
			return nil, classify(err, "create window composite render pass")
		}
	}
	if p.pipeline, err = c.dev.CreateGraphicsPipeline(c.pipelineDescriptor(p.main)); err != nil {
		p.destroy()
		return nil, classify(err, "create pipeline")
	}
	Logger().Debug("ocgfx: render passes created", "format", format, "samples", c.samples)
	return p, nil
}

// passes returns the pass set for format, creating it on first use.
func (c *Context) passes(format gputypes.TextureFormat) (*passSet, error) {
	c.passMu.Lock()
	defer c.passMu.Unlock()
	if p, ok := c.passSets[format]; ok {
		return p, nil
	}
	p, err := c.createPassSet(format)
	if err != nil {
		return nil, err
	}
	c.passSets[format] = p
	return p, nil
}
