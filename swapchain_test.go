package ocgfx

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
	"github.com/gogpu/ocgfx/driver/noop"
)

// newTestSwapchain creates a swapchain on a 640x480 test window and
// destroys it at cleanup.
func newTestSwapchain(t *testing.T, ctx *Context, mode VsyncMode) *Swapchain {
	t.Helper()
	sc, err := ctx.CreateSwapchain(testWindow{640, 480}, mode)
	if err != nil {
		t.Fatalf("CreateSwapchain() error = %v", err)
	}
	t.Cleanup(sc.Destroy)
	return sc
}

func TestChoosePresentMode(t *testing.T) {
	var (
		immediate = driver.PresentModeImmediate
		mailbox   = driver.PresentModeMailbox
		fifo      = driver.PresentModeFifo
		relaxed   = driver.PresentModeFifoRelaxed
	)
	tests := []struct {
		name      string
		supported []driver.PresentMode
		mode      VsyncMode
		want      driver.PresentMode
	}{
		{"disabled prefers immediate", []driver.PresentMode{fifo, mailbox, immediate}, VsyncDisabled, immediate},
		{"disabled without immediate", []driver.PresentMode{fifo, mailbox}, VsyncDisabled, mailbox},
		{"disabled prefers relaxed over mailbox", []driver.PresentMode{mailbox, relaxed, fifo}, VsyncDisabled, relaxed},
		{"enabled takes fifo", []driver.PresentMode{immediate, mailbox, fifo}, VsyncEnabled, fifo},
		{"adaptive prefers relaxed", []driver.PresentMode{fifo, relaxed}, VsyncAdaptive, relaxed},
		{"adaptive without relaxed", []driver.PresentMode{fifo, mailbox}, VsyncAdaptive, mailbox},
		{"adaptive fifo only", []driver.PresentMode{fifo}, VsyncAdaptive, fifo},
		{"nothing reported", nil, VsyncDisabled, fifo},
		{"unknown mode acts adaptive", []driver.PresentMode{fifo, relaxed}, VsyncMode(9), relaxed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChoosePresentMode(tt.supported, tt.mode); got != tt.want {
				t.Errorf("ChoosePresentMode(%v, %v) = %v, want %v", tt.supported, tt.mode, got, tt.want)
			}
		})
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	bgra := driver.SurfaceFormat{Format: gputypes.TextureFormatBGRA8Unorm}
	rgba := driver.SurfaceFormat{Format: gputypes.TextureFormatRGBA8Unorm}
	srgb := driver.SurfaceFormat{Format: gputypes.TextureFormatBGRA8UnormSrgb}

	got, matched, err := ChooseSurfaceFormat([]driver.SurfaceFormat{bgra, rgba}, desiredSurfaceFormats)
	if err != nil || !matched || got != rgba {
		t.Errorf("preferred format = %v, %v, %v; want RGBA8 matched", got, matched, err)
	}
	got, matched, err = ChooseSurfaceFormat([]driver.SurfaceFormat{srgb, bgra}, desiredSurfaceFormats)
	if err != nil || !matched || got != bgra {
		t.Errorf("second preference = %v, %v, %v; want BGRA8 matched", got, matched, err)
	}
	got, matched, err = ChooseSurfaceFormat([]driver.SurfaceFormat{srgb}, desiredSurfaceFormats)
	if err != nil || matched || got != srgb {
		t.Errorf("fallback = %v, %v, %v; want first supported, not matched", got, matched, err)
	}
	if _, _, err := ChooseSurfaceFormat(nil, desiredSurfaceFormats); !errors.Is(err, ErrNotSupported) {
		t.Errorf("no formats error = %v, want ErrNotSupported", err)
	}
}

func TestChooseExtent(t *testing.T) {
	caps := driver.SurfaceCapabilities{
		CurrentExtent:  driver.Extent2D{Width: driver.UndefinedExtent, Height: driver.UndefinedExtent},
		MinImageExtent: driver.Extent2D{Width: 16, Height: 16},
		MaxImageExtent: driver.Extent2D{Width: 1024, Height: 1024},
	}
	tests := []struct {
		name   string
		caps   driver.SurfaceCapabilities
		window testWindow
		want   driver.Extent2D
	}{
		{"current extent wins", noop.DefaultConfig().Surface.Capabilities, testWindow{100, 100}, driver.Extent2D{Width: 640, Height: 480}},
		{"window size", caps, testWindow{800, 600}, driver.Extent2D{Width: 800, Height: 600}},
		{"clamped to max", caps, testWindow{4000, 300}, driver.Extent2D{Width: 1024, Height: 300}},
		{"clamped to min", caps, testWindow{4, 8}, driver.Extent2D{Width: 16, Height: 16}},
		{"minimized window", driver.SurfaceCapabilities{CurrentExtent: caps.CurrentExtent}, testWindow{0, -1}, driver.Extent2D{Width: 1, Height: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chooseExtent(tt.caps, tt.window); got != tt.want {
				t.Errorf("chooseExtent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateSwapchain(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncDisabled)

	if sc.ImageCount() != swapchainImageCount {
		t.Errorf("ImageCount() = %d, want %d", sc.ImageCount(), swapchainImageCount)
	}
	// The default surface offers FIFO and MAILBOX only.
	if sc.PresentMode() != driver.PresentModeMailbox {
		t.Errorf("PresentMode() = %v, want mailbox", sc.PresentMode())
	}
	if sc.Format() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("Format() = %v, want BGRA8Unorm", sc.Format())
	}
	if ext := sc.Extent(); ext.Width != 640 || ext.Height != 480 {
		t.Errorf("Extent() = %v, want 640x480", ext)
	}
	for i, img := range sc.images {
		if got := img.(*noop.Image).Layout(); got != driver.LayoutPresentSrc {
			t.Errorf("image %d layout = %v, want PresentSrc after clear", i, got)
		}
	}
	if n := inst.Count("AcquireNextImage"); n != 1 {
		t.Errorf("AcquireNextImage called %d times, want 1", n)
	}
	if live := inst.Live(); live["Surface"] != 1 || live["Swapchain"] != 1 || live["Semaphore"] != 1 {
		t.Errorf("live objects %v", live)
	}
}

func TestCreateSwapchainImageCountOutOfRange(t *testing.T) {
	ctx, inst := newTestContext(t)
	surface := noop.DefaultConfig().Surface
	surface.Capabilities.MinImageCount = 3
	surface.Capabilities.MaxImageCount = 4
	inst.SetSurface(surface)
	before := inst.Live()

	sc, err := ctx.CreateSwapchain(testWindow{640, 480}, VsyncEnabled)
	if sc != nil || !errors.Is(err, ErrNotSupported) {
		t.Fatalf("CreateSwapchain() = %v, %v; want ErrNotSupported", sc, err)
	}
	if n := inst.Count("CreateSwapchain"); n != 0 {
		t.Errorf("driver CreateSwapchain called %d times", n)
	}
	for kind, n := range inst.Live() {
		if before[kind] != n {
			t.Errorf("live %s went from %d to %d", kind, before[kind], n)
		}
	}
}

func TestCreateSwapchainFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(inst *noop.Instance)
		want  error
	}{
		{"unsupported surface", func(inst *noop.Instance) {
			s := noop.DefaultConfig().Surface
			s.Supported = false
			inst.SetSurface(s)
		}, ErrNotSupported},
		{"no formats", func(inst *noop.Instance) {
			s := noop.DefaultConfig().Surface
			s.Formats = nil
			inst.SetSurface(s)
		}, ErrNotSupported},
		{"surface creation", func(inst *noop.Instance) {
			inst.FailOnce("CreateSurface", errors.Wrap(driver.ErrInitializationFailed, "injected"))
		}, ErrGraphicsInitFailed},
		{"driver swapchain", func(inst *noop.Instance) {
			inst.FailOnce("CreateSwapchain", errors.Wrap(driver.ErrOutOfDeviceMemory, "injected"))
		}, ErrOutOfMemory},
		{"semaphore", func(inst *noop.Instance) {
			inst.FailOnce("CreateSemaphore", errors.Wrap(driver.ErrOutOfHostMemory, "injected"))
		}, ErrOutOfMemory},
		{"clear", func(inst *noop.Instance) {
			inst.FailOnce("Submit", errors.Wrap(driver.ErrDeviceLost, "injected"))
		}, ErrGraphics},
		{"first acquire", func(inst *noop.Instance) {
			inst.FailOnce("AcquireNextImage", errors.Wrap(driver.ErrSurfaceLost, "injected"))
		}, ErrGraphics},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, inst := newTestContext(t)
			before := inst.Live()
			tt.setup(inst)
			if _, err := ctx.CreateSwapchain(testWindow{640, 480}, VsyncAdaptive); !errors.Is(err, tt.want) {
				t.Errorf("CreateSwapchain() error = %v, want %v", err, tt.want)
			}
			for kind, n := range inst.Live() {
				if before[kind] != n {
					t.Errorf("live %s went from %d to %d", kind, before[kind], n)
				}
			}
		})
	}
}

func TestCreateSwapchainNilWindow(t *testing.T) {
	ctx, _ := newTestContext(t)
	if _, err := ctx.CreateSwapchain(nil, VsyncEnabled); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("CreateSwapchain(nil) error = %v, want ErrInvalidArgs", err)
	}
}

func TestSwapchainPresent(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncEnabled)

	for frame := 0; frame < 4; frame++ {
		want := uint32(frame % swapchainImageCount)
		if sc.CurrentImage() != want {
			t.Fatalf("frame %d: CurrentImage() = %d, want %d", frame, sc.CurrentImage(), want)
		}
		if err := sc.Present(); err != nil {
			t.Fatalf("frame %d: Present() error = %v", frame, err)
		}
	}
	if n := inst.Count("Present"); n != 4 {
		t.Errorf("Present called %d times, want 4", n)
	}
}

func TestSwapchainOutOfDate(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncEnabled)
	sc.handle.(*noop.Swapchain).Retire()

	err := sc.Present()
	if !errors.Is(err, ErrSwapchainOutOfDate) || !IsRecoverable(err) {
		t.Fatalf("Present() on retired swapchain = %v, want recoverable ErrSwapchainOutOfDate", err)
	}
	if !sc.Stale() {
		t.Fatal("swapchain not marked stale")
	}
	presents := inst.Count("Present")
	if err := sc.Present(); !errors.Is(err, ErrSwapchainOutOfDate) {
		t.Errorf("second Present() = %v, want ErrSwapchainOutOfDate", err)
	}
	if inst.Count("Present") != presents {
		t.Error("stale swapchain reached the driver")
	}

	old := sc.handle
	if err := sc.Recreate(); err != nil {
		t.Fatalf("Recreate() error = %v", err)
	}
	if sc.Stale() || sc.generation != 1 || sc.handle == old {
		t.Errorf("after Recreate stale=%v generation=%d", sc.Stale(), sc.generation)
	}
	if live := inst.Live(); live["Swapchain"] != 1 || live["Semaphore"] != 1 {
		t.Errorf("live objects after Recreate %v", live)
	}
	if err := sc.Present(); err != nil {
		t.Errorf("Present() after Recreate error = %v", err)
	}
}

func TestSwapchainRecreateFailureLeavesStale(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncEnabled)

	inst.FailOnce("SurfaceCapabilities", errors.Wrap(driver.ErrOutOfHostMemory, "injected"))
	if err := sc.Recreate(); err == nil {
		t.Fatal("Recreate() succeeded with failing surface query")
	}
	if !sc.Stale() {
		t.Fatal("failed Recreate left the swapchain usable")
	}
	presents := inst.Count("Present")
	if err := sc.Present(); !errors.Is(err, ErrSwapchainOutOfDate) {
		t.Errorf("Present() after failed Recreate = %v, want ErrSwapchainOutOfDate", err)
	}
	if inst.Count("Present") != presents {
		t.Error("swapchain without a handle reached the driver")
	}
	expectValid(t, inst)

	if err := sc.Recreate(); err != nil {
		t.Fatalf("second Recreate() error = %v", err)
	}
	if sc.Stale() || sc.generation != 1 {
		t.Errorf("after retry stale=%v generation=%d", sc.Stale(), sc.generation)
	}
	if err := sc.Present(); err != nil {
		t.Errorf("Present() after retry error = %v", err)
	}
	if live := inst.Live(); live["Swapchain"] != 1 || live["Semaphore"] != 1 {
		t.Errorf("live objects after retry %v", live)
	}
}

func TestSwapchainAcquireOutOfDate(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc := newTestSwapchain(t, ctx, VsyncEnabled)
	inst.FailOnce("AcquireNextImage", errors.Wrap(driver.ErrOutOfDate, "injected"))

	if err := sc.Present(); !errors.Is(err, ErrSwapchainOutOfDate) {
		t.Fatalf("Present() error = %v, want ErrSwapchainOutOfDate", err)
	}
	if !sc.Stale() {
		t.Fatal("out of date acquire did not mark the swapchain stale")
	}
	if err := sc.Recreate(); err != nil {
		t.Fatalf("Recreate() error = %v", err)
	}
	if err := sc.Present(); err != nil {
		t.Errorf("Present() after Recreate error = %v", err)
	}
}

func TestSwapchainDestroyTwice(t *testing.T) {
	ctx, inst := newTestContext(t)
	sc, err := ctx.CreateSwapchain(testWindow{640, 480}, VsyncEnabled)
	if err != nil {
		t.Fatalf("CreateSwapchain() error = %v", err)
	}
	sc.Destroy()
	sc.Destroy()
	if live := inst.Live(); live["Surface"] != 0 || live["Swapchain"] != 0 {
		t.Errorf("live objects after Destroy %v", live)
	}
}

func TestVsyncModeString(t *testing.T) {
	for mode, want := range map[VsyncMode]string{
		VsyncAdaptive: "adaptive",
		VsyncDisabled: "disabled",
		VsyncEnabled:  "enabled",
		VsyncMode(7):  "unknown",
	} {
		if got := mode.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(mode), got, want)
		}
	}
}
