// Package vulkan implements the driver interfaces on top of
// github.com/vulkan-go/vulkan.
//
// The loader entry point comes from the windowing layer, so the backend is
// registered explicitly rather than from init:
//
//	vulkan.Register(vulkan.Options{
//		ProcAddr:   glfw.GetVulkanGetInstanceProcAddress(),
//		Extensions: window.GetRequiredInstanceExtensions(),
//	})
//	inst, err := driver.Get(driver.BackendVulkan)
package vulkan

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/ocgfx/driver"
	vk "github.com/vulkan-go/vulkan"
)

// Options configures instance creation.
type Options struct {
	// ProcAddr is vkGetInstanceProcAddr as returned by the windowing
	// library.
	ProcAddr unsafe.Pointer
	// Extensions are the instance extensions the window surface needs.
	Extensions []string
	// ApplicationName is reported to the driver.
	ApplicationName string
}

// Register makes the backend available as driver.BackendVulkan.
func Register(opts Options) {
	driver.Register(driver.BackendVulkan, func() (driver.Instance, error) {
		return New(opts)
	})
}

var logger atomic.Pointer[slog.Logger]

func log() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.New(discard{})
}

type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (d discard) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discard) WithGroup(string) slog.Handler           { return d }

// Instance is a Vulkan instance.
type Instance struct {
	handle vk.Instance
}

// New loads Vulkan and creates an instance.
func New(opts Options) (*Instance, error) {
	if opts.ProcAddr == nil {
		return nil, errors.Wrap(driver.ErrBackendNotAvailable, "vulkan: no loader entry point")
	}
	vk.SetGetInstanceProcAddr(opts.ProcAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "vulkan: init loader"), driver.ErrInitializationFailed)
	}

	name := opts.ApplicationName
	if name == "" {
		name = "ocgfx"
	}
	exts := make([]string, len(opts.Extensions))
	for i, e := range opts.Extensions {
		exts[i] = cstr(e)
	}
	var inst vk.Instance
	res := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   cstr(name),
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PEngineName:        cstr("ocgfx"),
			EngineVersion:      vk.MakeVersion(1, 0, 0),
			ApiVersion:         vk.MakeVersion(1, 0, 0),
		},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}, nil, &inst)
	if err := check(res, "create instance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(inst); err != nil {
		vk.DestroyInstance(inst, nil)
		return nil, errors.Mark(errors.Wrap(err, "vulkan: init instance"), driver.ErrInitializationFailed)
	}
	log().Info("vulkan: instance created", "extensions", len(exts))
	return &Instance{handle: inst}, nil
}

// SetLogger sets the logger used by the backend. Nil restores silence.
func (i *Instance) SetLogger(l *slog.Logger) {
	logger.Store(l)
}

// Destroy implements driver.Destroyer.
func (i *Instance) Destroy() {
	vk.DestroyInstance(i.handle, nil)
}

// Adapters implements driver.Instance.
func (i *Instance) Adapters() ([]driver.Adapter, error) {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(i.handle, &count, nil), "enumerate adapters"); err != nil {
		return nil, err
	}
	gpus := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(i.handle, &count, gpus), "enumerate adapters"); err != nil {
		return nil, err
	}
	out := make([]driver.Adapter, 0, count)
	for _, gpu := range gpus[:count] {
		out = append(out, newAdapter(i, gpu))
	}
	return out, nil
}

// windowSurfacer is implemented by *glfw.Window.
type windowSurfacer interface {
	CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error)
}

// Surface is a window surface.
type Surface struct {
	inst   *Instance
	handle vk.Surface
	window driver.Window
}

// CreateSurface implements driver.Instance. The window must be able to
// create a Vulkan surface itself, as *glfw.Window does.
func (i *Instance) CreateSurface(w driver.Window) (driver.Surface, error) {
	ws, ok := w.(windowSurfacer)
	if !ok {
		return nil, errors.Wrapf(driver.ErrNotSupported, "vulkan: window %T cannot create surfaces", w)
	}
	ptr, err := ws.CreateWindowSurface(i.handle, nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "vulkan: create surface"), driver.ErrInitializationFailed)
	}
	return &Surface{inst: i, handle: vk.SurfaceFromPointer(ptr), window: w}, nil
}

// Destroy implements driver.Destroyer.
func (s *Surface) Destroy() {
	vk.DestroySurface(s.inst.handle, s.handle, nil)
}

// Adapter is a physical device.
type Adapter struct {
	inst   *Instance
	handle vk.PhysicalDevice
	info   driver.AdapterInfo
	mem    vk.PhysicalDeviceMemoryProperties
}

func newAdapter(inst *Instance, gpu vk.PhysicalDevice) *Adapter {
	a := &Adapter{inst: inst, handle: gpu}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	props.Limits.Deref()
	a.info.Name = cname(props.DeviceName[:])
	a.info.Limits = driver.Limits{
		FramebufferColorSampleCounts:   driver.SampleCountFlags(props.Limits.FramebufferColorSampleCounts),
		FramebufferDepthSampleCounts:   driver.SampleCountFlags(props.Limits.FramebufferDepthSampleCounts),
		FramebufferStencilSampleCounts: driver.SampleCountFlags(props.Limits.FramebufferStencilSampleCounts),
	}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, families)
	for _, f := range families[:count] {
		f.Deref()
		var flags driver.QueueFlags
		if f.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			flags |= driver.QueueGraphics
		}
		if f.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			flags |= driver.QueueCompute
		}
		if f.QueueFlags&vk.QueueFlags(vk.QueueTransferBit) != 0 {
			flags |= driver.QueueTransfer
		}
		a.info.QueueFamilies = append(a.info.QueueFamilies, driver.QueueFamily{Flags: flags, Count: int(f.QueueCount)})
	}

	vk.GetPhysicalDeviceMemoryProperties(gpu, &a.mem)
	a.mem.Deref()
	for n := uint32(0); n < a.mem.MemoryTypeCount; n++ {
		t := a.mem.MemoryTypes[n]
		t.Deref()
		a.info.MemoryTypes = append(a.info.MemoryTypes, driver.MemoryType{Flags: memoryFlagsFromVk(t.PropertyFlags)})
	}
	return a
}

// Info implements driver.Adapter.
func (a *Adapter) Info() driver.AdapterInfo { return a.info }

// Open implements driver.Adapter.
func (a *Adapter) Open(queueFamily int) (driver.Device, error) {
	if queueFamily < 0 || queueFamily >= len(a.info.QueueFamilies) {
		return nil, errors.Wrapf(driver.ErrInitializationFailed, "vulkan: queue family %d", queueFamily)
	}
	var dev vk.Device
	res := vk.CreateDevice(a.handle, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(queueFamily),
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		}},
		EnabledExtensionCount:   1,
		PpEnabledExtensionNames: []string{cstr("VK_KHR_swapchain")},
	}, nil, &dev)
	if err := check(res, "create device"); err != nil {
		return nil, err
	}
	var q vk.Queue
	vk.GetDeviceQueue(dev, uint32(queueFamily), 0, &q)
	d := &Device{adapter: a, handle: dev, family: uint32(queueFamily)}
	d.queue = &Queue{dev: d, handle: q}
	log().Info("vulkan: device opened", "adapter", a.info.Name, "family", queueFamily)
	return d, nil
}

// check converts a vk.Result into a driver error. Suboptimal counts as
// success.
func check(res vk.Result, op string) error {
	switch res {
	case vk.Success, vk.Suboptimal:
		return nil
	}
	cause := errors.Wrapf(vk.Error(res), "vulkan: %s", op)
	var kind error
	switch res {
	case vk.ErrorOutOfHostMemory:
		kind = driver.ErrOutOfHostMemory
	case vk.ErrorOutOfDeviceMemory:
		kind = driver.ErrOutOfDeviceMemory
	case vk.ErrorInitializationFailed, vk.ErrorIncompatibleDriver,
		vk.ErrorExtensionNotPresent, vk.ErrorLayerNotPresent:
		kind = driver.ErrInitializationFailed
	case vk.ErrorDeviceLost:
		kind = driver.ErrDeviceLost
	case vk.ErrorSurfaceLost:
		kind = driver.ErrSurfaceLost
	case vk.ErrorOutOfDate:
		kind = driver.ErrOutOfDate
	case vk.ErrorFeatureNotPresent, vk.ErrorFormatNotSupported:
		kind = driver.ErrNotSupported
	case vk.Timeout, vk.NotReady:
		kind = driver.ErrTimeout
	default:
		return cause
	}
	return errors.Mark(cause, kind)
}

// cstr returns s NUL-terminated, as vulkan-go expects for C strings.
func cstr(s string) string {
	if len(s) > 0 && s[len(s)-1] == 0 {
		return s
	}
	return s + "\x00"
}

func cname(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
