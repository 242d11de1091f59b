package ocgfx

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/ocgfx/driver"
	"github.com/gogpu/ocgfx/driver/noop"
)

// newTestObject places a triangle in w.
func newTestObject(t *testing.T, ctx *Context, w *World) *Object {
	t.Helper()
	o, err := w.CreateObject(newTriangle(t, ctx))
	if err != nil {
		t.Fatalf("CreateObject() error = %v", err)
	}
	return o
}

func setFor(t *testing.T, o *Object, rt *RenderTarget) *noop.DescriptorSet {
	t.Helper()
	s, ok := o.sets[rt]
	if !ok {
		t.Fatalf("object has no descriptor set for the render target")
	}
	return s.set.(*noop.DescriptorSet)
}

// drawCalls counts DrawIndexed commands in every submission so far.
func drawCalls(inst *noop.Instance) int {
	n := 0
	for _, c := range inst.Calls() {
		subs, ok := c.Args.([]noop.Submission)
		if c.Op != "Submit" || !ok {
			continue
		}
		for _, s := range subs {
			for _, cmd := range s.Commands {
				if cmd.Op == "DrawIndexed" {
					n++
				}
			}
		}
	}
	return n
}

func TestWorldDrawImage(t *testing.T) {
	ctx, inst := newTestContext(t)
	img := newTargetImage(t, ctx, 32)
	w := newTestWorld(t, ctx)
	rt, err := w.NewRenderTargetFromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	a := newTestObject(t, ctx, w)
	b := newTestObject(t, ctx, w)

	for frame := 0; frame < 3; frame++ {
		if err := w.Draw(); err != nil {
			t.Fatalf("frame %d: Draw() error = %v", frame, err)
		}
	}
	expectValid(t, inst)
	if got := drawCalls(inst); got != 6 {
		t.Errorf("DrawIndexed recorded %d times, want 6", got)
	}
	if got := img.handle.(*noop.Image).Layout(); got != driver.LayoutShaderReadOnly {
		t.Errorf("target image layout after draw = %v", got)
	}
	if st := w.Stats(); st.Frames != 3 || st.Failures != 0 {
		t.Errorf("Stats() = %+v", st)
	}

	// Each object binds the shared camera buffer and its own model buffer.
	for _, o := range []*Object{a, b} {
		set := setFor(t, o, rt)
		cam, _ := set.Write(bindingCamera)
		model, _ := set.Write(bindingModel)
		if cam.Buffer != rt.ubo.buf || model.Buffer != o.ubo.buf {
			t.Error("descriptor set does not bind the camera and the object's model buffer")
		}
	}
	if setFor(t, a, rt) == setFor(t, b, rt) {
		t.Error("objects share a descriptor set")
	}
	if n := ctx.descriptorPool.(*noop.DescriptorPool).Allocated(); n != 2 {
		t.Errorf("%d descriptor sets allocated, want one per object", n)
	}
}

func TestWorldDrawSwapchain(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncEnabled)
	w := newTestWorld(t, ctx)
	if _, err := w.NewRenderTargetFromSwapchain(sc); err != nil {
		t.Fatal(err)
	}
	newTestObject(t, ctx, w)

	for frame := 0; frame < 4; frame++ {
		if err := w.Draw(); err != nil {
			t.Fatalf("frame %d: Draw() error = %v", frame, err)
		}
		if err := sc.Present(); err != nil {
			t.Fatalf("frame %d: Present() error = %v", frame, err)
		}
	}
	expectValid(t, inst)
	if n := inst.Count("Present"); n != 4 {
		t.Errorf("Present called %d times, want 4", n)
	}
}

func TestWorldDrawTwiceWithoutPresent(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncEnabled)
	w := newTestWorld(t, ctx)
	if _, err := w.NewRenderTargetFromSwapchain(sc); err != nil {
		t.Fatal(err)
	}
	if err := w.Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if err := w.Draw(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("second Draw() error = %v, want ErrInvalidOperation", err)
	}
	if st := w.Stats(); st.Frames != 2 || st.Failures != 1 {
		t.Errorf("Stats() = %+v", st)
	}
	if err := sc.Present(); err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if err := w.Draw(); err != nil {
		t.Errorf("Draw() after Present error = %v", err)
	}
	if err := sc.Present(); err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	expectValid(t, inst)
}

func TestWorldRecreatesStaleSwapchain(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncEnabled)
	w := newTestWorld(t, ctx)
	rt, err := w.NewRenderTargetFromSwapchain(sc)
	if err != nil {
		t.Fatal(err)
	}
	newTestObject(t, ctx, w)

	if err := w.Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	sc.handle.(*noop.Swapchain).Retire()
	if err := sc.Present(); !IsRecoverable(err) {
		t.Fatalf("Present() on retired swapchain = %v, want a recoverable error", err)
	}

	// The window grew while the swapchain was out of date.
	surface := noop.DefaultConfig().Surface
	surface.Capabilities.CurrentExtent = driver.Extent2D{Width: 800, Height: 600}
	inst.SetSurface(surface)

	if err := w.Draw(); err != nil {
		t.Fatalf("Draw() after out of date error = %v", err)
	}
	if err := sc.Present(); err != nil {
		t.Fatalf("Present() after recreation error = %v", err)
	}
	if st := w.Stats(); st.Recreations != 1 || st.Failures != 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if wd, ht := rt.Size(); wd != 800 || ht != 600 || rt.generation != sc.generation {
		t.Errorf("render target %dx%d generation %d, want 800x600 generation %d", wd, ht, rt.generation, sc.generation)
	}
	if got := inst.Live()["Swapchain"]; got != 1 {
		t.Errorf("live swapchains = %d, want 1", got)
	}
	expectValid(t, inst)
}

func TestWorldDrawAfterFailedRebuild(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncEnabled)
	w := newTestWorld(t, ctx)
	rt, err := w.NewRenderTargetFromSwapchain(sc)
	if err != nil {
		t.Fatal(err)
	}
	newTestObject(t, ctx, w)

	if err := w.Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	sc.handle.(*noop.Swapchain).Retire()
	if err := sc.Present(); !IsRecoverable(err) {
		t.Fatalf("Present() on retired swapchain = %v, want a recoverable error", err)
	}

	// The swapchain is recreated, then the render target fails to rebuild.
	inst.FailOnce("CreateFramebuffer", errors.Wrap(driver.ErrOutOfDeviceMemory, "injected"))
	if err := w.Draw(); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("Draw() with failing rebuild = %v, want ErrOutOfMemory", err)
	}
	if rt.built || len(rt.outputs) != 0 {
		t.Fatalf("failed rebuild left built=%v with %d outputs", rt.built, len(rt.outputs))
	}

	for frame := 0; frame < 2; frame++ {
		if err := w.Draw(); err != nil {
			t.Fatalf("frame %d: Draw() error = %v", frame, err)
		}
		if err := sc.Present(); err != nil {
			t.Fatalf("frame %d: Present() error = %v", frame, err)
		}
	}
	if !rt.built || rt.generation != sc.generation || len(rt.outputs) != swapchainImageCount {
		t.Errorf("render target built=%v generation %d/%d outputs %d", rt.built, rt.generation, sc.generation, len(rt.outputs))
	}
	if st := w.Stats(); st.Recreations != 1 || st.Failures != 1 {
		t.Errorf("Stats() = %+v, want one recreation and one failure", st)
	}
	expectValid(t, inst)
}

func TestWorldDrawOrder(t *testing.T) {
	ctx, _ := newTestContext(t)
	img := newTargetImage(t, ctx, 8)
	w := newTestWorld(t, ctx)
	var rts []*RenderTarget
	for i := 0; i < 4; i++ {
		rt, err := w.NewRenderTargetFromImage(img)
		if err != nil {
			t.Fatal(err)
		}
		rts = append(rts, rt)
	}
	a, b, c, d := rts[0], rts[1], rts[2], rts[3]

	order, err := w.drawOrder()
	if err != nil || !sameTargets(order, rts) {
		t.Fatalf("drawOrder() without dependencies = %v, %v; want registration order", order, err)
	}

	// a needs c, c needs d: b stays first among the ready targets.
	if err := a.DependsOn(c); err != nil {
		t.Fatal(err)
	}
	if err := c.DependsOn(d); err != nil {
		t.Fatal(err)
	}
	order, err = w.drawOrder()
	if err != nil || !sameTargets(order, []*RenderTarget{b, d, c, a}) {
		t.Errorf("drawOrder() = %v, %v; want b d c a", order, err)
	}

	if err := d.DependsOn(a); err != nil {
		t.Fatal(err)
	}
	if err := w.Draw(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Draw() with a cycle error = %v, want ErrInvalidOperation", err)
	}
	if st := w.Stats(); st.Frames != 1 || st.Failures != 1 {
		t.Errorf("Stats() = %+v", st)
	}

	if err := w.RemoveRenderTarget(c); err != nil {
		t.Fatal(err)
	}
	if len(a.deps) != 0 {
		t.Errorf("removed target still listed as a dependency: %v", a.deps)
	}
	order, err = w.drawOrder()
	if err != nil || !sameTargets(order, []*RenderTarget{a, b, d}) {
		t.Errorf("drawOrder() after removal = %v, %v; want a b d", order, err)
	}
}

func sameTargets(got, want []*RenderTarget) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestWorldDrawContinuesAfterFailure(t *testing.T) {
	ctx, inst := newTestContext(t)
	img := newTargetImage(t, ctx, 8)
	w := newTestWorld(t, ctx)
	for i := 0; i < 2; i++ {
		if _, err := w.NewRenderTargetFromImage(img); err != nil {
			t.Fatal(err)
		}
	}
	newTestObject(t, ctx, w)

	inst.FailOnce("AllocateDescriptorSet", errors.Wrap(driver.ErrOutOfDeviceMemory, "injected"))
	before := drawCalls(inst)
	if err := w.Draw(); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("Draw() error = %v, want ErrOutOfMemory", err)
	}
	if got := drawCalls(inst) - before; got != 1 {
		t.Errorf("%d objects drawn, want the second target to draw", got)
	}
	if err := w.Draw(); err != nil {
		t.Errorf("Draw() after transient failure = %v", err)
	}
	if st := w.Stats(); st.Frames != 2 || st.Failures != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestWorldImageFallback(t *testing.T) {
	ctx, _ := newTestContext(t)
	target := newTargetImage(t, ctx, 8)
	worldImage := newTargetImage(t, ctx, 4)
	objectImage := newTargetImage(t, ctx, 2)
	w := newTestWorld(t, ctx)
	rt, err := w.NewRenderTargetFromImage(target)
	if err != nil {
		t.Fatal(err)
	}
	o := newTestObject(t, ctx, w)

	boundView := func() driver.ImageView {
		t.Helper()
		if err := w.Draw(); err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
		wr, ok := setFor(t, o, rt).Write(bindingImage)
		if !ok {
			t.Fatal("no image written to the descriptor set")
		}
		return wr.View
	}

	if boundView() != ctx.white.view {
		t.Error("object without image should sample the white image")
	}
	w.SetImage(worldImage)
	if boundView() != worldImage.view {
		t.Error("object should fall back to the world image")
	}
	o.SetImage(objectImage)
	if boundView() != objectImage.view {
		t.Error("object image should win over the world image")
	}

	objectImage.SetFilter(FilterLinear)
	boundView()
	if wr, _ := setFor(t, o, rt).Write(bindingSampler); wr.Sampler != ctx.linear {
		t.Error("filter change did not rebind the sampler")
	}
}

func TestWorldCameraUniforms(t *testing.T) {
	ctx, _ := newTestContext(t)
	img := newTargetImage(t, ctx, 8)
	w := newTestWorld(t, ctx)
	rt, err := w.NewRenderTargetFromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	cam := NewPerspectiveCamera(mgl32.DegToRad(60), 1, 0.1, 10)
	cam.SetPosition(mgl32.Vec3{1, 2, 3})
	rt.SetCamera(cam)

	if err := w.Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if got, want := rt.ubo.get(0), ClipCorrection().Mul4(cam.Projection()); !got.ApproxEqual(want) {
		t.Errorf("projection uniform = %v, want clip corrected %v", got, want)
	}
	if got := rt.ubo.get(1); !got.ApproxEqual(cam.View()) {
		t.Errorf("view uniform = %v, want %v", got, cam.View())
	}
}

func TestObjectTransform(t *testing.T) {
	ctx, _ := newTestContext(t)
	w := newTestWorld(t, ctx)
	o := newTestObject(t, ctx, w)

	if !o.Transform().ApproxEqual(mgl32.Ident4()) {
		t.Errorf("new object transform = %v, want identity", o.Transform())
	}
	rot := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})
	o.SetTransform(mgl32.Vec3{1, 2, 3}, rot, mgl32.Vec3{2, 2, 2})

	// (1, 0, 0) scales to (2, 0, 0), turns to (0, 2, 0), moves to (1, 4, 3).
	p := o.Transform().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !p.ApproxEqualThreshold(mgl32.Vec4{1, 4, 3, 1}, 1e-5) {
		t.Errorf("transformed point = %v, want (1, 4, 3)", p)
	}
	o.SetPosition(mgl32.Vec3{})
	if o.Position() != (mgl32.Vec3{}) || o.Scale() != (mgl32.Vec3{2, 2, 2}) {
		t.Errorf("position %v scale %v", o.Position(), o.Scale())
	}
	m := mgl32.Translate3D(5, 0, 0)
	o.SetMatrix(m)
	if o.Transform() != m {
		t.Errorf("SetMatrix() stored %v", o.Transform())
	}
}

func TestObjectDestroy(t *testing.T) {
	ctx, inst := newTestContext(t)
	img := newTargetImage(t, ctx, 8)
	mesh := newTriangle(t, ctx)
	w := newTestWorld(t, ctx)
	rt, err := w.NewRenderTargetFromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	before := inst.Live()

	o, err := w.CreateObject(mesh)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Draw(); err != nil {
		t.Fatal(err)
	}
	o.Destroy()
	o.Destroy()
	if len(w.Objects()) != 0 {
		t.Error("destroyed object still in the world")
	}
	sameLive(t, inst, before)
	if err := w.Draw(); err != nil {
		t.Errorf("Draw() of an empty world error = %v", err)
	}

	// Removing a target frees the sets objects hold for it.
	o2, err := w.CreateObject(mesh)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Draw(); err != nil {
		t.Fatal(err)
	}
	if err := w.RemoveRenderTarget(rt); err != nil {
		t.Fatal(err)
	}
	if len(o2.sets) != 0 {
		t.Error("object kept a descriptor set for a removed target")
	}
	if err := w.RemoveRenderTarget(rt); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("second RemoveRenderTarget() error = %v, want ErrInvalidArgs", err)
	}
	if err := w.DrawRT(rt); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("DrawRT() of a removed target error = %v, want ErrInvalidArgs", err)
	}
}

func TestCreateObjectNilMesh(t *testing.T) {
	ctx, _ := newTestContext(t)
	w := newTestWorld(t, ctx)
	if _, err := w.CreateObject(nil); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("CreateObject(nil) error = %v, want ErrInvalidArgs", err)
	}
}
