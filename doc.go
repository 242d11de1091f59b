// Package ocgfx is a small real-time 3D renderer over an explicit GPU API.
//
// # Overview
//
// A Context opens a device through a driver.Instance and builds one fixed
// pipeline: interleaved position/uv/normal vertices, a camera and a model
// matrix, one sampled image. Everything else is created from it:
//
//	inst, _ := driver.Open(driver.BackendVulkan)
//	ctx, err := ocgfx.NewContext(inst, ocgfx.WithMSAA(4))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ctx.Destroy()
//
//	sc, _ := ctx.CreateSwapchain(window, ocgfx.VsyncAdaptive)
//	world := ctx.NewWorld()
//	rt, _ := world.NewRenderTargetFromSwapchain(sc)
//	rt.SetCamera(ocgfx.NewPerspectiveCamera(math.Pi/3, 4.0/3, 0.1, 100))
//
//	for !window.ShouldClose() {
//		if err := world.Draw(); err != nil && !ocgfx.IsRecoverable(err) {
//			log.Fatal(err)
//		}
//		_ = sc.Present()
//	}
//
// # Render targets
//
// A render target draws the world's objects into a multisampled color and
// depth image, then resolves the color image into its output: the
// acquired swapchain image, or an Image other objects can sample. With a
// single sample the color image is copied instead. World.Draw orders
// targets by their DependsOn edges.
//
// # Synchronization
//
// Every submission waits for the queue to drain before returning. Frames
// are never in flight concurrently, so mapped uniform buffers are written
// directly. None of the types are safe for concurrent use.
//
// # Errors
//
// Errors are marked with one of the Err* values and keep the driver cause
// attached; test them with errors.Is. ErrSwapchainOutOfDate is the only
// recoverable kind: the swapchain is recreated on the next World.Draw.
//
// # Resources
//
// The ocd package reads and writes the OCD binary format for images and
// scenes. CreateImageFromOCD and World.LoadScene turn decoded files into
// GPU resources.
package ocgfx

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
