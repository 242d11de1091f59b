// Command ocview opens a window and renders an OCD scene with an orbiting
// camera.
//
// Usage:
//
//	ocview [-scene scene.ocd] [-image albedo.ocd] [-msaa 4] [-vsync adaptive|on|off] [-driver vulkan]
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/ocgfx"
	"github.com/gogpu/ocgfx/driver"
	_ "github.com/gogpu/ocgfx/driver/noop"
	"github.com/gogpu/ocgfx/driver/vulkan"
	"github.com/gogpu/ocgfx/ocd"
)

func init() {
	// glfw must be driven from the main thread.
	runtime.LockOSThread()
}

type config struct {
	scene    string
	image    string
	msaa     int
	vsync    ocgfx.VsyncMode
	driver   string
	width    int
	height   int
	distance float64
	frames   int
	verbose  bool
}

func parseVsync(s string) (ocgfx.VsyncMode, error) {
	switch s {
	case "adaptive":
		return ocgfx.VsyncAdaptive, nil
	case "on":
		return ocgfx.VsyncEnabled, nil
	case "off":
		return ocgfx.VsyncDisabled, nil
	default:
		return 0, errors.Newf("unknown vsync mode %q", s)
	}
}

func main() {
	var cfg config
	vsync := flag.String("vsync", "adaptive", "presentation: adaptive, on or off")
	flag.StringVar(&cfg.scene, "scene", "", "OCD scene to load")
	flag.StringVar(&cfg.image, "image", "", "OCD image used for objects without a material")
	flag.IntVar(&cfg.msaa, "msaa", 4, "MSAA sample count")
	flag.StringVar(&cfg.driver, "driver", driver.BackendVulkan, "graphics backend")
	flag.IntVar(&cfg.width, "width", 1280, "window width")
	flag.IntVar(&cfg.height, "height", 720, "window height")
	flag.Float64Var(&cfg.distance, "distance", 8, "camera distance from the origin")
	flag.IntVar(&cfg.frames, "frames", 0, "exit after this many frames (0 runs until closed)")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ocgfx.SetLogger(logger)

	mode, err := parseVsync(*vsync)
	if err == nil {
		cfg.vsync = mode
		err = run(cfg, logger)
	}
	if err != nil {
		logger.Error("ocview failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "init glfw")
	}
	defer glfw.Terminate()
	if !glfw.VulkanSupported() {
		return errors.New("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.width, cfg.height, "ocview", nil, nil)
	if err != nil {
		return errors.Wrap(err, "create window")
	}
	defer window.Destroy()
	resized := false
	window.SetFramebufferSizeCallback(func(*glfw.Window, int, int) { resized = true })

	vulkan.Register(vulkan.Options{
		ProcAddr:        glfw.GetVulkanGetInstanceProcAddress(),
		Extensions:      window.GetRequiredInstanceExtensions(),
		ApplicationName: "ocview",
	})
	inst, err := driver.Get(cfg.driver)
	if err != nil {
		return err
	}
	defer inst.Destroy()

	ctx, err := ocgfx.NewContext(inst, ocgfx.WithMSAA(cfg.msaa), ocgfx.WithApplicationName("ocview"))
	if err != nil {
		return err
	}
	defer ctx.Destroy()
	info := ctx.AdapterInfo()
	logger.Info("adapter", "name", info.Name, "msaa", ctx.MSAASamples(), "maxMSAA", ctx.MaxMSAASamples())

	sc, err := ctx.CreateSwapchain(window, cfg.vsync)
	if err != nil {
		return err
	}
	defer sc.Destroy()

	world := ctx.NewWorld()
	defer world.Destroy()
	rt, err := world.NewRenderTargetFromSwapchain(sc)
	if err != nil {
		return err
	}

	if cfg.image != "" {
		img, err := loadImage(ctx, cfg.image)
		if err != nil {
			return err
		}
		defer img.Destroy()
		world.SetImage(img)
	}
	if cfg.scene != "" {
		ls, err := loadScene(world, cfg.scene)
		if err != nil {
			return err
		}
		defer ls.Destroy()
	} else {
		logger.Warn("no -scene given; drawing an empty world")
	}

	cam := ocgfx.NewPerspectiveCamera(mgl32.DegToRad(60), aspect(sc.Extent()), 0.1, 100)
	rt.SetCamera(cam)

	start := time.Now()
	for frame := 0; !window.ShouldClose() && (cfg.frames == 0 || frame < cfg.frames); frame++ {
		glfw.PollEvents()
		if w, h := window.GetFramebufferSize(); w == 0 || h == 0 {
			// Minimized: nothing to present to.
			glfw.WaitEvents()
			continue
		}
		if resized {
			resized = false
			if err := sc.Recreate(); err != nil {
				return err
			}
		}
		cam.SetPerspective(mgl32.DegToRad(60), aspect(sc.Extent()), 0.1, 100)
		orbit(cam, float32(time.Since(start).Seconds()*0.5), float32(cfg.distance))

		if err := world.Draw(); err != nil {
			if errors.Is(err, ocgfx.ErrSwapchainOutOfDate) {
				continue
			}
			return err
		}
		if err := sc.Present(); err != nil && !errors.Is(err, ocgfx.ErrSwapchainOutOfDate) {
			return err
		}
	}

	if err := ctx.WaitIdle(); err != nil {
		return err
	}
	stats := world.Stats()
	elapsed := time.Since(start)
	logger.Info("done",
		"frames", stats.Frames,
		"failures", stats.Failures,
		"recreations", stats.Recreations,
		"fps", fmt.Sprintf("%.1f", float64(stats.Frames)/max(elapsed.Seconds(), 1e-9)),
		"memory", ctx.MemoryStats())
	return nil
}

func aspect(e driver.Extent2D) float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// orbit places cam on a circle of radius distance around the Y axis,
// slightly above the origin, looking at it.
func orbit(cam *ocgfx.Camera, angle, distance float32) {
	tilt := mgl32.QuatRotate(-0.3, mgl32.Vec3{1, 0, 0})
	yaw := mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0})
	rot := yaw.Mul(tilt)
	cam.SetRotation(rot)
	cam.SetPosition(rot.Rotate(mgl32.Vec3{0, 0, distance}))
}

func readOCD(path string) ([]byte, ocd.ResourceType, error) {
	return ocd.Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

func loadImage(ctx *ocgfx.Context, path string) (*ocgfx.Image, error) {
	data, kind, err := readOCD(path)
	if err != nil {
		return nil, err
	}
	if kind != ocd.TypeImage {
		return nil, errors.Newf("%s is a %v, not an image", path, kind)
	}
	src, err := ocd.ReadImage(data)
	if err != nil {
		return nil, err
	}
	img, err := ctx.CreateImageFromOCD(src)
	if err != nil {
		return nil, err
	}
	img.SetFilter(ocgfx.FilterLinear)
	return img, nil
}

func loadScene(world *ocgfx.World, path string) (*ocgfx.LoadedScene, error) {
	data, kind, err := readOCD(path)
	if err != nil {
		return nil, err
	}
	if kind != ocd.TypeScene {
		return nil, errors.Newf("%s is a %v, not a scene", path, kind)
	}
	scene, err := ocd.ReadScene(data)
	if err != nil {
		return nil, err
	}
	return world.LoadScene(scene)
}
