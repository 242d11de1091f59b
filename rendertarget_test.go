package ocgfx

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
	"github.com/gogpu/ocgfx/driver/noop"
)

func newTestWorld(t *testing.T, ctx *Context) *World {
	t.Helper()
	w := ctx.NewWorld()
	t.Cleanup(w.Destroy)
	return w
}

func sameLive(t *testing.T, inst *noop.Instance, before map[string]int) {
	t.Helper()
	after := inst.Live()
	for kind, n := range after {
		if before[kind] != n {
			t.Errorf("live %s went from %d to %d", kind, before[kind], n)
		}
	}
	for kind, n := range before {
		if after[kind] != n {
			t.Errorf("live %s went from %d to %d", kind, n, after[kind])
		}
	}
}

func TestCreateRenderTargetFromImage(t *testing.T) {
	ctx, inst := newTestContext(t)
	img := newTargetImage(t, ctx, 64)
	w := newTestWorld(t, ctx)

	rt, err := w.NewRenderTargetFromImage(img)
	if err != nil {
		t.Fatalf("NewRenderTargetFromImage() error = %v", err)
	}
	if wd, ht := rt.Size(); wd != 64 || ht != 64 {
		t.Errorf("Size() = %dx%d, want 64x64", wd, ht)
	}
	if rt.Format() != gputypes.TextureFormatRGBA8Unorm || rt.Image() != img || rt.Swapchain() != nil {
		t.Errorf("render target format %v image %p swapchain %p", rt.Format(), rt.Image(), rt.Swapchain())
	}
	if got := w.RenderTargets(); len(got) != 1 || got[0] != rt {
		t.Errorf("RenderTargets() = %v", got)
	}
	if len(rt.outputs) != 1 || rt.outputs[0].framebuffer == nil {
		t.Fatalf("outputs %+v, want one resolving output", rt.outputs)
	}
	color := rt.color.(*noop.Image)
	if color.Descriptor().Samples != ctx.MSAASamples() || color.Layout() != driver.LayoutColorAttachment {
		t.Errorf("color image samples %d layout %v", color.Descriptor().Samples, color.Layout())
	}
	if got := rt.depth.(*noop.Image).Layout(); got != driver.LayoutDepthStencilAttachment {
		t.Errorf("depth layout = %v", got)
	}
	// Main framebuffer plus one composite framebuffer.
	if got := inst.Live()["Framebuffer"]; got != 2 {
		t.Errorf("live framebuffers = %d, want 2", got)
	}
	// The output image stays shader readable until a frame is drawn.
	if got := img.handle.(*noop.Image).Layout(); got != driver.LayoutShaderReadOnly {
		t.Errorf("target image layout = %v", got)
	}
}

func TestCreateRenderTargetFromSwapchain(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncEnabled)
	w := newTestWorld(t, ctx)

	rt, err := w.NewRenderTargetFromSwapchain(sc)
	if err != nil {
		t.Fatalf("NewRenderTargetFromSwapchain() error = %v", err)
	}
	if len(rt.outputs) != swapchainImageCount {
		t.Errorf("%d outputs, want one per swapchain image", len(rt.outputs))
	}
	if wd, ht := rt.Size(); wd != 640 || ht != 480 {
		t.Errorf("Size() = %dx%d, want 640x480", wd, ht)
	}
	if rt.Format() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("Format() = %v, want the swapchain format", rt.Format())
	}
	if _, ok := ctx.passSets[gputypes.TextureFormatBGRA8Unorm]; !ok {
		t.Error("no pass set created for the swapchain format")
	}
	if got := inst.Live()["Framebuffer"]; got != 1+swapchainImageCount {
		t.Errorf("live framebuffers = %d, want %d", got, 1+swapchainImageCount)
	}
}

func TestCreateRenderTargetInvalidArgs(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncEnabled)
	img := newTargetImage(t, ctx, 16)
	sampledOnly, err := ctx.CreateImage(&ImageDescriptor{
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  ImageUsageShaderInput,
		Mips:   []MipLevel{{Width: 4, Height: 4}},
	})
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	defer sampledOnly.Destroy()
	w := newTestWorld(t, ctx)

	tests := []struct {
		name string
		desc RenderTargetDescriptor
	}{
		{"both", RenderTargetDescriptor{Swapchain: sc, Image: img}},
		{"neither", RenderTargetDescriptor{}},
		{"image without render target usage", RenderTargetDescriptor{Image: sampledOnly}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := inst.Live()
			calls := len(inst.Calls())
			rt, err := w.CreateRenderTarget(tt.desc)
			if rt != nil || !errors.Is(err, ErrInvalidArgs) {
				t.Fatalf("CreateRenderTarget() = %v, %v; want ErrInvalidArgs", rt, err)
			}
			if n := len(inst.Calls()); n != calls {
				t.Errorf("rejected render target made %d driver calls", n-calls)
			}
			sameLive(t, inst, before)
			if len(w.RenderTargets()) != 0 {
				t.Error("rejected render target was added to the world")
			}
		})
	}
}

func TestCreateRenderTargetTooMany(t *testing.T) {
	ctx, inst := newTestContext(t, WithMaxRenderTargets(2))
	img := newTargetImage(t, ctx, 8)
	w := newTestWorld(t, ctx)

	var targets []*RenderTarget
	for i := 0; i < 2; i++ {
		rt, err := w.NewRenderTargetFromImage(img)
		if err != nil {
			t.Fatalf("render target %d: %v", i, err)
		}
		targets = append(targets, rt)
	}
	before := inst.Live()
	rt, err := w.NewRenderTargetFromImage(img)
	if rt != nil || !errors.Is(err, ErrTooManyRenderTargets) {
		t.Fatalf("third render target = %v, %v; want ErrTooManyRenderTargets", rt, err)
	}
	sameLive(t, inst, before)
	got := w.RenderTargets()
	if len(got) != 2 || got[0] != targets[0] || got[1] != targets[1] {
		t.Errorf("RenderTargets() changed to %v", got)
	}

	if err := w.RemoveRenderTarget(targets[0]); err != nil {
		t.Fatalf("RemoveRenderTarget() error = %v", err)
	}
	if _, err := w.NewRenderTargetFromImage(img); err != nil {
		t.Errorf("render target after removal: %v", err)
	}
}

func TestCreateRenderTargetUnwinds(t *testing.T) {
	ops := []string{
		"CreateImage",
		"AllocateMemory",
		"CreateImageView",
		"CreateFramebuffer",
		"AllocateCommandBuffer",
		"Submit",
		"CreateBuffer",
		"Map",
	}
	for _, op := range ops {
		t.Run(op, func(t *testing.T) {
			ctx, inst := newTestContext(t)
			img := newTargetImage(t, ctx, 32)
			w := newTestWorld(t, ctx)
			before := inst.Live()
			stats := ctx.MemoryStats()

			inst.FailOnce(op, errors.Wrap(driver.ErrOutOfDeviceMemory, "injected"))
			if _, err := w.NewRenderTargetFromImage(img); !errors.Is(err, ErrOutOfMemory) {
				t.Errorf("error = %v, want ErrOutOfMemory", err)
			}
			sameLive(t, inst, before)
			if got := ctx.MemoryStats(); got != stats {
				t.Errorf("MemoryStats() = %v, want %v", got, stats)
			}
			if len(w.RenderTargets()) != 0 {
				t.Error("failed render target was added to the world")
			}
			if got := img.handle.(*noop.Image).Layout(); got != driver.LayoutShaderReadOnly {
				t.Errorf("target image left in layout %v", got)
			}
		})
	}
}

func TestRenderTargetSingleSampled(t *testing.T) {
	ctx, inst := newTestContext(t, WithMSAA(1))
	img := newTargetImage(t, ctx, 16)
	w := newTestWorld(t, ctx)

	rt, err := w.NewRenderTargetFromImage(img)
	if err != nil {
		t.Fatalf("NewRenderTargetFromImage() error = %v", err)
	}
	if rt.outputs[0].framebuffer != nil {
		t.Error("single-sampled target should copy, not resolve")
	}
	if got := inst.Live()["Framebuffer"]; got != 1 {
		t.Errorf("live framebuffers = %d, want the main one only", got)
	}
	if _, err := w.CreateObject(newTriangle(t, ctx)); err != nil {
		t.Fatalf("CreateObject() error = %v", err)
	}
	for frame := 0; frame < 2; frame++ {
		if err := w.Draw(); err != nil {
			t.Fatalf("frame %d: Draw() error = %v", frame, err)
		}
	}
	if got := img.handle.(*noop.Image).Layout(); got != driver.LayoutShaderReadOnly {
		t.Errorf("target image layout after copy = %v", got)
	}
	if got := rt.color.(*noop.Image).Layout(); got != driver.LayoutColorAttachment {
		t.Errorf("color image layout after copy = %v", got)
	}
	expectValid(t, inst)
}

func TestRenderTargetDependsOn(t *testing.T) {
	ctx, _ := newTestContext(t)
	img := newTargetImage(t, ctx, 8)
	w := newTestWorld(t, ctx)
	other := newTestWorld(t, ctx)

	a, err := w.NewRenderTargetFromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	b, err := w.NewRenderTargetFromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := other.NewRenderTargetFromImage(img)
	if err != nil {
		t.Fatal(err)
	}

	for _, bad := range []*RenderTarget{nil, a, foreign} {
		if err := a.DependsOn(bad); !errors.Is(err, ErrInvalidArgs) {
			t.Errorf("DependsOn(%p) error = %v, want ErrInvalidArgs", bad, err)
		}
	}
	if err := a.DependsOn(b); err != nil {
		t.Fatalf("DependsOn() error = %v", err)
	}
	if err := a.DependsOn(b); err != nil || len(a.deps) != 1 {
		t.Errorf("repeated DependsOn() = %v with %d deps, want one", err, len(a.deps))
	}
}

func TestRenderTargetCamera(t *testing.T) {
	ctx, _ := newTestContext(t)
	img := newTargetImage(t, ctx, 8)
	w := newTestWorld(t, ctx)
	rt, err := w.NewRenderTargetFromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	proj, view := rt.matrices()
	if proj != mgl32.Ident4() || view != mgl32.Ident4() {
		t.Error("new render target should start with identity matrices")
	}

	cam := NewOrthographicCamera(-1, 1, -1, 1, 0, 10)
	rt.SetCamera(cam)
	if proj, _ := rt.matrices(); proj != cam.Projection() || rt.Camera() != cam {
		t.Error("camera matrices not used")
	}
	rt.SetCamera(nil)
	if proj, _ := rt.matrices(); proj != mgl32.Ident4() {
		t.Error("clearing the camera should restore SetProjection matrices")
	}
}
