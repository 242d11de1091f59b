package ocgfx

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
)

// Descriptor bindings of the fixed pipeline.
const (
	bindingCamera  = 0
	bindingModel   = 1
	bindingImage   = 2
	bindingSampler = 3
)

// Descriptor pool capacity.
const (
	maxDescriptorSets = 1024
	maxDescriptors    = 1024
)

// Context owns the device, its queue and command pool, the fixed pipeline
// and the shared samplers. It is created once and destroyed at shutdown;
// every other ocgfx object is created from it and must be destroyed first.
//
// A Context is not safe for concurrent use.
type Context struct {
	inst        driver.Instance
	adapterInfo driver.AdapterInfo
	family      int
	dev         driver.Device
	sub         submitter
	appName     string

	samples          int
	maxSamples       int
	maxRenderTargets int

	shaders        *shaderSet
	setLayout      driver.DescriptorSetLayout
	pipelineLayout driver.PipelineLayout
	linear         driver.Sampler
	nearest        driver.Sampler
	descriptorPool driver.DescriptorPool

	passMu   sync.Mutex
	passSets map[gputypes.TextureFormat]*passSet

	// white is bound to objects without an image.
	white *Image

	memory memoryTracker
}

// NewContext opens a device on inst and builds the fixed pipeline. On
// failure everything created so far is released and the error is marked
// ErrGraphicsInitFailed (or ErrOutOfMemory, ErrInvalidArgs for bad
// options).
//
// The caller keeps ownership of inst and destroys it after the Context.
func NewContext(inst driver.Instance, opts ...ContextOption) (*Context, error) {
	if inst == nil {
		return nil, errors.Wrap(ErrInvalidArgs, "nil driver instance")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxRenderTargets < 1 {
		return nil, errors.Wrapf(ErrInvalidArgs, "max render targets %d", o.maxRenderTargets)
	}

	adapters, err := inst.Adapters()
	if err != nil {
		return nil, initFailed(err, "enumerate adapters")
	}
	adapter, family, err := selectAdapter(adapters, o.adapter)
	if err != nil {
		return nil, err
	}

	c := &Context{
		inst:             inst,
		adapterInfo:      adapter.Info(),
		family:           family,
		appName:          o.appName,
		maxRenderTargets: o.maxRenderTargets,
		passSets:         make(map[gputypes.TextureFormat]*passSet),
	}
	c.samples, c.maxSamples = ClampMSAA(o.msaa, c.adapterInfo.Limits)
	trackInstance(inst)

	if err := c.init(adapter, &o); err != nil {
		c.Destroy()
		return nil, err
	}
	Logger().Info("ocgfx: context created",
		"app", c.appName,
		"adapter", c.adapterInfo.Name,
		"queueFamily", family,
		"msaa", c.samples,
		"maxMSAA", c.maxSamples)
	return c, nil
}

// init creates the device objects in dependency order. Destroy undoes
// whatever part of it succeeded.
func (c *Context) init(adapter driver.Adapter, o *contextOptions) error {
	dev, err := adapter.Open(c.family)
	if err != nil {
		return initFailed(err, "open device on %q", c.adapterInfo.Name)
	}
	c.dev = dev
	pool, err := dev.CreateCommandPool()
	if err != nil {
		return initFailed(err, "create command pool")
	}
	c.sub = submitter{dev: dev, queue: dev.Queue(), pool: pool}

	if c.shaders, err = createShaders(dev, o); err != nil {
		return err
	}
	c.setLayout, err = dev.CreateDescriptorSetLayout([]driver.DescriptorBinding{
		{Binding: bindingCamera, Type: driver.DescriptorUniformBuffer, Count: 1, Stages: gputypes.ShaderStageVertex},
		{Binding: bindingModel, Type: driver.DescriptorUniformBuffer, Count: 1, Stages: gputypes.ShaderStageVertex},
		{Binding: bindingImage, Type: driver.DescriptorCombinedImageSampler, Count: 1, Stages: gputypes.ShaderStageFragment},
		{Binding: bindingSampler, Type: driver.DescriptorSampler, Count: 1, Stages: gputypes.ShaderStageFragment},
	})
	if err != nil {
		return initFailed(err, "create descriptor set layout")
	}
	if c.pipelineLayout, err = dev.CreatePipelineLayout([]driver.DescriptorSetLayout{c.setLayout}); err != nil {
		return initFailed(err, "create pipeline layout")
	}
	if _, err := c.passes(gputypes.TextureFormatRGBA8Unorm); err != nil {
		return initFailed(err, "create render passes")
	}

	c.linear, err = dev.CreateSampler(&driver.SamplerDescriptor{
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
		AddressMode:  gputypes.AddressModeRepeat,
		MaxLod:       32,
	})
	if err != nil {
		return initFailed(err, "create linear sampler")
	}
	c.nearest, err = dev.CreateSampler(&driver.SamplerDescriptor{
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
		AddressMode:  gputypes.AddressModeRepeat,
		MaxLod:       32,
	})
	if err != nil {
		return initFailed(err, "create nearest sampler")
	}

	c.descriptorPool, err = dev.CreateDescriptorPool(&driver.DescriptorPoolDescriptor{
		MaxSets: maxDescriptorSets,
		Sizes: []driver.DescriptorPoolSize{
			{Type: driver.DescriptorUniformBuffer, Count: maxDescriptors},
			{Type: driver.DescriptorCombinedImageSampler, Count: maxDescriptors},
			{Type: driver.DescriptorSampler, Count: maxDescriptors},
		},
		FreeIndividualSets: true,
	})
	if err != nil {
		return initFailed(err, "create descriptor pool")
	}

	c.white, err = c.CreateImage(&ImageDescriptor{
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  ImageUsageShaderInput,
		Mips:   []MipLevel{{Offset: 0, Size: 4, Width: 1, Height: 1}},
		Data:   []byte{0xff, 0xff, 0xff, 0xff},
	})
	if err != nil {
		return initFailed(err, "create default image")
	}
	return nil
}

// Destroy waits for the device to go idle and releases everything the
// Context created. It is safe on a partially initialized Context.
func (c *Context) Destroy() {
	if c == nil || c.inst == nil {
		return
	}
	if c.dev != nil {
		if err := c.dev.WaitIdle(); err != nil {
			Logger().Warn("ocgfx: wait idle before destroy", "err", err)
		}
	}
	if c.white != nil {
		c.white.Destroy()
		c.white = nil
	}
	if c.descriptorPool != nil {
		c.descriptorPool.Destroy()
		c.descriptorPool = nil
	}
	if c.nearest != nil {
		c.nearest.Destroy()
		c.nearest = nil
	}
	if c.linear != nil {
		c.linear.Destroy()
		c.linear = nil
	}
	c.passMu.Lock()
	for f, p := range c.passSets {
		p.destroy()
		delete(c.passSets, f)
	}
	c.passMu.Unlock()
	if c.pipelineLayout != nil {
		c.pipelineLayout.Destroy()
		c.pipelineLayout = nil
	}
	if c.setLayout != nil {
		c.setLayout.Destroy()
		c.setLayout = nil
	}
	if c.shaders != nil {
		c.shaders.destroy()
		c.shaders = nil
	}
	if c.sub.pool != nil {
		c.sub.pool.Destroy()
		c.sub.pool = nil
	}
	if c.dev != nil {
		c.dev.Destroy()
		c.dev = nil
	}
	untrackInstance(c.inst)
	c.inst = nil
}

// MSAASamples returns the negotiated sample count.
func (c *Context) MSAASamples() int { return c.samples }

// MaxMSAASamples returns the largest sample count the adapter supports
// for color, depth and stencil together.
func (c *Context) MaxMSAASamples() int { return c.maxSamples }

// MaxRenderTargets returns the render target capacity of each World.
func (c *Context) MaxRenderTargets() int { return c.maxRenderTargets }

// AdapterInfo describes the adapter the Context runs on.
func (c *Context) AdapterInfo() driver.AdapterInfo { return c.adapterInfo }

// QueueFamily returns the index of the queue family in use.
func (c *Context) QueueFamily() int { return c.family }

// MemoryStats returns the device memory currently allocated through the
// Context.
func (c *Context) MemoryStats() MemoryStats { return c.memory.snapshot() }

// WaitIdle blocks until the device has finished all submitted work.
func (c *Context) WaitIdle() error { return c.sub.waitDeviceIdle() }

// sampler returns the shared sampler for f.
func (c *Context) sampler(f Filter) driver.Sampler {
	if f == FilterLinear {
		return c.linear
	}
	return c.nearest
}
