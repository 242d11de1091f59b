package ocgfx

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/ocgfx/driver"
)

// FrameStats counts World.Draw outcomes.
type FrameStats struct {
	// Frames is the number of Draw calls.
	Frames uint64
	// Failures is the number of Draw calls that returned an error.
	Failures uint64
	// Recreations is the number of swapchains recreated by Draw.
	Recreations uint64
}

// World is a set of objects drawn into a set of render targets.
type World struct {
	ctx     *Context
	targets []*RenderTarget
	objects []*Object
	// image is bound to objects without their own.
	image *Image
	stats FrameStats
}

// NewWorld returns an empty world.
func (c *Context) NewWorld() *World {
	return &World{ctx: c}
}

// Destroy waits for the device to go idle and frees every render target
// and object of the world. Meshes, images and swapchains are owned by the
// caller and survive.
func (w *World) Destroy() {
	if w == nil || w.ctx == nil {
		return
	}
	if err := w.ctx.sub.waitDeviceIdle(); err != nil {
		Logger().Warn("ocgfx: wait idle before world destroy", "err", err)
	}
	for _, o := range w.objects {
		o.release()
	}
	w.objects = nil
	for _, rt := range w.targets {
		rt.release()
	}
	w.targets = nil
	w.ctx = nil
}

// SetImage sets the image bound to objects that have none. nil selects a
// white 1x1 image.
func (w *World) SetImage(img *Image) { w.image = img }

// Image returns the world image, or nil.
func (w *World) Image() *Image { return w.image }

// imageFor picks the image o is drawn with.
func (w *World) imageFor(o *Object) *Image {
	switch {
	case o.image != nil:
		return o.image
	case w.image != nil:
		return w.image
	default:
		return w.ctx.white
	}
}

// RenderTargets returns the render targets in registration order.
func (w *World) RenderTargets() []*RenderTarget { return slices.Clone(w.targets) }

// Objects returns the objects in creation order.
func (w *World) Objects() []*Object { return slices.Clone(w.objects) }

// Stats returns the frame counters.
func (w *World) Stats() FrameStats { return w.stats }

// RemoveRenderTarget waits for the device to go idle, frees rt and the
// descriptor sets objects hold for it, and drops it from the world and
// from other targets' dependencies.
func (w *World) RemoveRenderTarget(rt *RenderTarget) error {
	i := slices.Index(w.targets, rt)
	if rt == nil || i < 0 {
		return errors.Wrap(ErrInvalidArgs, "render target is not part of this world")
	}
	if err := w.ctx.sub.waitDeviceIdle(); err != nil {
		return err
	}
	for _, o := range w.objects {
		o.releaseSet(rt)
	}
	for _, other := range w.targets {
		other.deps = slices.DeleteFunc(other.deps, func(d *RenderTarget) bool { return d == rt })
	}
	w.targets = slices.Delete(w.targets, i, i+1)
	rt.release()
	rt.world = nil
	return nil
}

func (w *World) removeObject(o *Object) {
	if i := slices.Index(w.objects, o); i >= 0 {
		w.objects = slices.Delete(w.objects, i, i+1)
	}
}

// drawOrder sorts the targets so every target follows its dependencies.
// Among ready targets the earliest registered goes first.
func (w *World) drawOrder() ([]*RenderTarget, error) {
	done := make(map[*RenderTarget]bool, len(w.targets))
	order := make([]*RenderTarget, 0, len(w.targets))
	ready := func(rt *RenderTarget) bool {
		for _, d := range rt.deps {
			if !done[d] {
				return false
			}
		}
		return true
	}
	for len(order) < len(w.targets) {
		next := -1
		for i, rt := range w.targets {
			if !done[rt] && ready(rt) {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, errors.Wrapf(ErrInvalidOperation, "render target dependencies form a cycle (%d of %d ordered)",
				len(order), len(w.targets))
		}
		done[w.targets[next]] = true
		order = append(order, w.targets[next])
	}
	return order, nil
}

// Draw draws every render target once, dependencies first. A failing
// target does not stop the others; the first error is returned. Stale
// swapchains are recreated before their target is drawn.
func (w *World) Draw() error {
	w.stats.Frames++
	order, err := w.drawOrder()
	if err != nil {
		w.stats.Failures++
		return err
	}
	var first error
	for _, rt := range order {
		if err := w.DrawRT(rt); err != nil {
			Logger().Warn("ocgfx: render target draw failed", "err", err, "recoverable", IsRecoverable(err))
			if first == nil {
				first = err
			}
		}
	}
	if first != nil {
		w.stats.Failures++
	}
	return first
}

// DrawRT draws every object into rt and resolves the result into its
// current output. It blocks until the GPU has finished the frame. For a
// swapchain target the frame is not presented; call Swapchain.Present.
func (w *World) DrawRT(rt *RenderTarget) error {
	if rt == nil || rt.world != w {
		return errors.Wrap(ErrInvalidArgs, "render target is not part of this world")
	}
	c := w.ctx
	sc := rt.swapchain
	if sc != nil && sc.stale {
		if err := sc.Recreate(); err != nil {
			return err
		}
		w.stats.Recreations++
	}
	if !rt.built || (sc != nil && rt.generation != sc.generation) {
		if err := rt.rebuild(); err != nil {
			return err
		}
	}
	if sc != nil && sc.waited {
		return errors.Wrap(ErrInvalidOperation, "swapchain image already drawn; present it first")
	}

	proj, view := rt.matrices()
	rt.ubo.set(0, ClipCorrection().Mul4(proj))
	rt.ubo.set(1, view)

	sets := make([]driver.DescriptorSet, len(w.objects))
	for i, o := range w.objects {
		set, err := o.descriptorSet(rt)
		if err != nil {
			return err
		}
		sets[i] = set
	}

	out := rt.currentOutput()
	cb, err := c.sub.record(true, func(cb driver.CommandBuffer) {
		rt.recordFrame(cb, out, w.objects, sets)
	})
	if err != nil {
		return err
	}
	defer cb.Destroy()

	if err := c.sub.submit(driver.SubmitInfo{CommandBuffers: []driver.CommandBuffer{rt.mainPre}}); err != nil {
		return err
	}
	pre := driver.SubmitInfo{CommandBuffers: []driver.CommandBuffer{out.pre}}
	if sc != nil {
		pre.WaitSemaphores = []driver.Semaphore{sc.ready}
		pre.WaitStages = []driver.PipelineStage{driver.StageColorAttachmentOutput}
	}
	if err := c.sub.submit(pre); err != nil {
		return err
	}
	if sc != nil {
		sc.waited = true
	}
	return c.sub.submitAndWait(driver.SubmitInfo{CommandBuffers: []driver.CommandBuffer{cb}})
}

// Step advances simulation by dt seconds. Nothing in the world animates
// yet, so it does nothing.
func (w *World) Step(dt float32) {}
