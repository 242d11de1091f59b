package ocgfx

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
)

// VsyncMode selects how presentation synchronizes with the display.
type VsyncMode int

// Vsync modes.
const (
	// VsyncAdaptive syncs when frames are on time and tears when late.
	VsyncAdaptive VsyncMode = iota
	// VsyncDisabled presents immediately.
	VsyncDisabled
	// VsyncEnabled always waits for vertical blank.
	VsyncEnabled
)

// String returns the mode name.
func (m VsyncMode) String() string {
	switch m {
	case VsyncAdaptive:
		return "adaptive"
	case VsyncDisabled:
		return "disabled"
	case VsyncEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

// swapchainImageCount is the number of images every swapchain requests.
const swapchainImageCount = 2

// desiredSurfaceFormats is the caller-ordered format preference.
var desiredSurfaceFormats = []gputypes.TextureFormat{
	gputypes.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatBGRA8Unorm,
}

var presentPriority = map[VsyncMode][]driver.PresentMode{
	VsyncDisabled: {driver.PresentModeImmediate, driver.PresentModeFifoRelaxed, driver.PresentModeMailbox, driver.PresentModeFifo},
	VsyncEnabled:  {driver.PresentModeFifo, driver.PresentModeMailbox, driver.PresentModeFifoRelaxed, driver.PresentModeImmediate},
	VsyncAdaptive: {driver.PresentModeFifoRelaxed, driver.PresentModeMailbox, driver.PresentModeFifo, driver.PresentModeImmediate},
}

// ChoosePresentMode returns the first supported mode in mode's priority
// order. FIFO is always available and is the fallback.
func ChoosePresentMode(supported []driver.PresentMode, mode VsyncMode) driver.PresentMode {
	order, ok := presentPriority[mode]
	if !ok {
		order = presentPriority[VsyncAdaptive]
	}
	for _, want := range order {
		for _, have := range supported {
			if have == want {
				return want
			}
		}
	}
	return driver.PresentModeFifo
}

// ChooseSurfaceFormat returns the first format of desired that the surface
// supports. When none match it falls back to the first supported format
// and reports false. An empty supported list is ErrNotSupported.
func ChooseSurfaceFormat(supported []driver.SurfaceFormat, desired []gputypes.TextureFormat) (driver.SurfaceFormat, bool, error) {
	if len(supported) == 0 {
		return driver.SurfaceFormat{}, false, errors.Wrap(ErrNotSupported, "surface reports no formats")
	}
	for _, want := range desired {
		for _, have := range supported {
			if have.Format == want {
				return have, true, nil
			}
		}
	}
	return supported[0], false, nil
}

// chooseExtent uses the surface's current extent unless the surface leaves
// it to the swapchain, then the window size. The result is at least 1x1
// and inside the surface bounds.
func chooseExtent(caps driver.SurfaceCapabilities, window driver.Window) driver.Extent2D {
	ext := caps.CurrentExtent
	if ext.Width == driver.UndefinedExtent && ext.Height == driver.UndefinedExtent {
		w, h := window.GetFramebufferSize()
		ext = driver.Extent2D{Width: uint32(max(w, 0)), Height: uint32(max(h, 0))}
		if caps.MaxImageExtent.Width != 0 {
			ext.Width = min(max(ext.Width, caps.MinImageExtent.Width), caps.MaxImageExtent.Width)
		}
		if caps.MaxImageExtent.Height != 0 {
			ext.Height = min(max(ext.Height, caps.MinImageExtent.Height), caps.MaxImageExtent.Height)
		}
	}
	ext.Width = max(ext.Width, 1)
	ext.Height = max(ext.Height, 1)
	return ext
}

// Swapchain is the chain of presentable images of one window. One image
// is always acquired: the one the next frame draws into.
type Swapchain struct {
	ctx     *Context
	window  driver.Window
	vsync   VsyncMode
	surface driver.Surface
	handle  driver.Swapchain
	// ready is signaled when the acquired image is ready to be drawn.
	ready driver.Semaphore

	images      []driver.Image
	format      driver.SurfaceFormat
	extent      driver.Extent2D
	presentMode driver.PresentMode

	current uint32
	// waited records that a draw consumed ready for the current image.
	waited bool
	// stale is set when the surface reported out of date.
	stale bool
	// generation counts recreations so render targets notice new images.
	generation uint64
}

// CreateSwapchain creates a surface for window and a swapchain of two
// images on it, clears every image and acquires the first one. On failure
// nothing created by the call is left behind.
func (c *Context) CreateSwapchain(window driver.Window, mode VsyncMode) (*Swapchain, error) {
	if window == nil {
		return nil, errors.Wrap(ErrInvalidArgs, "nil window")
	}
	surface, err := c.inst.CreateSurface(window)
	if err != nil {
		return nil, classify(err, "create surface")
	}
	s := &Swapchain{ctx: c, window: window, vsync: mode, surface: surface}
	if err := s.build(nil); err != nil {
		s.release()
		return nil, err
	}
	Logger().Info("ocgfx: swapchain created",
		"format", s.format.Format,
		"width", s.extent.Width,
		"height", s.extent.Height,
		"presentMode", s.presentMode,
		"vsync", mode)
	return s, nil
}

// build creates the swapchain, its semaphore and its images against the
// surface, replacing old when not nil.
func (s *Swapchain) build(old driver.Swapchain) error {
	c := s.ctx
	ok, err := c.dev.SurfaceSupport(s.surface)
	if err != nil {
		return classify(err, "query surface support")
	}
	if !ok {
		return errors.Wrapf(ErrNotSupported, "queue family %d cannot present to the surface", c.family)
	}
	caps, err := c.dev.SurfaceCapabilities(s.surface)
	if err != nil {
		return classify(err, "query surface capabilities")
	}
	if swapchainImageCount < caps.MinImageCount || (caps.MaxImageCount != 0 && swapchainImageCount > caps.MaxImageCount) {
		return errors.Wrapf(ErrNotSupported, "surface accepts %d to %d images, need %d",
			caps.MinImageCount, caps.MaxImageCount, swapchainImageCount)
	}
	formats, err := c.dev.SurfaceFormats(s.surface)
	if err != nil {
		return classify(err, "query surface formats")
	}
	format, matched, err := ChooseSurfaceFormat(formats, desiredSurfaceFormats)
	if err != nil {
		return err
	}
	if !matched {
		Logger().Warn("ocgfx: no preferred surface format, using the first supported one", "format", format.Format)
	}
	modes, err := c.dev.SurfacePresentModes(s.surface)
	if err != nil {
		return classify(err, "query present modes")
	}
	s.presentMode = ChoosePresentMode(modes, s.vsync)
	s.extent = chooseExtent(caps, s.window)
	s.format = format

	handle, err := c.dev.CreateSwapchain(&driver.SwapchainDescriptor{
		Surface:     s.surface,
		ImageCount:  swapchainImageCount,
		Format:      format,
		Extent:      s.extent,
		Usage:       driver.ImageUsageColorAttachment | driver.ImageUsageTransferDst,
		PresentMode: s.presentMode,
		Old:         old,
	})
	if err != nil {
		return classify(err, "create swapchain")
	}
	s.handle = handle
	s.images = handle.Images()
	s.extent = handle.Extent()

	if s.ready, err = c.dev.CreateSemaphore(); err != nil {
		return classify(err, "create image semaphore")
	}
	if err := s.clearImages(); err != nil {
		return err
	}
	return s.acquire()
}

// clearImages clears every image to red and leaves it presentable.
func (s *Swapchain) clearImages() error {
	toDst := make([]driver.ImageBarrier, len(s.images))
	toPresent := make([]driver.ImageBarrier, len(s.images))
	for i, img := range s.images {
		toDst[i] = driver.ImageBarrier{
			Image:     img,
			OldLayout: driver.LayoutUndefined,
			NewLayout: driver.LayoutTransferDst,
			DstAccess: driver.AccessTransferWrite,
		}
		toPresent[i] = driver.ImageBarrier{
			Image:     img,
			OldLayout: driver.LayoutTransferDst,
			NewLayout: driver.LayoutPresentSrc,
			SrcAccess: driver.AccessTransferWrite,
			DstAccess: driver.AccessMemoryRead,
		}
	}
	return s.ctx.sub.oneShot(func(cb driver.CommandBuffer) {
		cb.PipelineBarrier(driver.StageTopOfPipe, driver.StageTransfer, toDst)
		for _, img := range s.images {
			cb.ClearColorImage(img, driver.LayoutTransferDst, [4]float32{1, 0, 0, 1})
		}
		cb.PipelineBarrier(driver.StageTransfer, driver.StageBottomOfPipe, toPresent)
	})
}

// acquire acquires the next image, signaling ready.
func (s *Swapchain) acquire() error {
	idx, err := s.handle.AcquireNextImage(driver.TimeoutInfinite, s.ready)
	if err != nil {
		if errors.Is(err, driver.ErrOutOfDate) {
			s.stale = true
		}
		return classify(err, "acquire swapchain image")
	}
	s.current = idx
	s.waited = false
	return nil
}

// Present presents the acquired image and acquires the next one. When the
// surface is out of date the swapchain is marked stale and the error is
// ErrSwapchainOutOfDate; Recreate, or the next World.Draw, recovers.
func (s *Swapchain) Present() error {
	if s.stale {
		return errors.Wrap(ErrSwapchainOutOfDate, "present on stale swapchain")
	}
	info := &driver.PresentInfo{Swapchain: s.handle, ImageIndex: s.current}
	if !s.waited {
		// Nothing drew into the image, so present consumes the acquire.
		info.WaitSemaphores = []driver.Semaphore{s.ready}
	}
	if err := s.ctx.sub.queue.Present(info); err != nil {
		if errors.Is(err, driver.ErrOutOfDate) {
			s.stale = true
		}
		err = classify(err, "present image %d", s.current)
		Logger().Warn("ocgfx: present failed", "image", s.current, "err", err)
		return err
	}
	if err := s.acquire(); err != nil {
		Logger().Warn("ocgfx: acquire failed", "err", err)
		return err
	}
	return nil
}

// Recreate waits for the device to go idle and rebuilds the chain against
// the same surface and window size. On failure the swapchain is left
// stale.
func (s *Swapchain) Recreate() error {
	if err := s.ctx.sub.waitDeviceIdle(); err != nil {
		return err
	}
	old := s.handle
	if s.ready != nil {
		s.ready.Destroy()
		s.ready = nil
	}
	s.handle, s.images = nil, nil
	err := s.build(old)
	if old != nil {
		old.Destroy()
	}
	if err != nil {
		// Present refuses the chain until a later Recreate succeeds.
		s.stale = true
		return err
	}
	s.stale = false
	s.generation++
	Logger().Info("ocgfx: swapchain recreated",
		"width", s.extent.Width, "height", s.extent.Height, "generation", s.generation)
	return nil
}

// Destroy waits for the device to go idle, then releases the semaphore,
// the swapchain and the surface.
func (s *Swapchain) Destroy() {
	if s == nil || s.surface == nil {
		return
	}
	if err := s.ctx.sub.waitDeviceIdle(); err != nil {
		Logger().Warn("ocgfx: wait idle before swapchain destroy", "err", err)
	}
	s.release()
}

func (s *Swapchain) release() {
	if s.ready != nil {
		s.ready.Destroy()
		s.ready = nil
	}
	if s.handle != nil {
		s.handle.Destroy()
		s.handle = nil
	}
	s.images = nil
	if s.surface != nil {
		s.surface.Destroy()
		s.surface = nil
	}
}

// Extent returns the size of the swapchain images.
func (s *Swapchain) Extent() driver.Extent2D { return s.extent }

// Format returns the chosen surface format.
func (s *Swapchain) Format() gputypes.TextureFormat { return s.format.Format }

// PresentMode returns the chosen present mode.
func (s *Swapchain) PresentMode() driver.PresentMode { return s.presentMode }

// ImageCount returns the number of images in the chain.
func (s *Swapchain) ImageCount() int { return len(s.images) }

// CurrentImage returns the index of the acquired image.
func (s *Swapchain) CurrentImage() uint32 { return s.current }

// Stale reports whether the swapchain needs Recreate.
func (s *Swapchain) Stale() bool { return s.stale }
