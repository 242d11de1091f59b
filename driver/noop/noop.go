// Package noop implements the driver interfaces in memory.
//
// Nothing is rendered. Every call is recorded, objects are counted while
// alive, mapped memory is backed by Go slices and submissions are checked
// for the mistakes a validation layer would report: waiting on a semaphore
// that was never signaled, using an image in the wrong layout, submitting
// a command buffer that is still recording. Tests of the graphics core run
// against it.
package noop

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
)

func init() {
	driver.Register(driver.BackendNoop, func() (driver.Instance, error) {
		return New(DefaultConfig()), nil
	})
}

// SurfaceConfig describes what surfaces created by an Instance report.
type SurfaceConfig struct {
	Supported    bool
	Capabilities driver.SurfaceCapabilities
	Formats      []driver.SurfaceFormat
	PresentModes []driver.PresentMode
}

// Config describes the adapters and surfaces of an Instance.
type Config struct {
	Adapters []driver.AdapterInfo
	Surface  SurfaceConfig
}

// DefaultConfig returns a single adapter with one universal queue family,
// up to 8x MSAA, device-local and host-coherent memory, and a 640x480
// surface supporting FIFO and MAILBOX.
func DefaultConfig() Config {
	return Config{
		Adapters: []driver.AdapterInfo{{
			Name: "noop",
			QueueFamilies: []driver.QueueFamily{
				{Flags: driver.QueueGraphics | driver.QueueCompute | driver.QueueTransfer, Count: 1},
			},
			Limits: driver.Limits{
				FramebufferColorSampleCounts:   driver.SampleCount1 | driver.SampleCount2 | driver.SampleCount4 | driver.SampleCount8,
				FramebufferDepthSampleCounts:   driver.SampleCount1 | driver.SampleCount2 | driver.SampleCount4 | driver.SampleCount8,
				FramebufferStencilSampleCounts: driver.SampleCount1 | driver.SampleCount2 | driver.SampleCount4 | driver.SampleCount8,
			},
			MemoryTypes: []driver.MemoryType{
				{Flags: driver.MemoryDeviceLocal},
				{Flags: driver.MemoryHostVisible | driver.MemoryHostCoherent},
			},
		}},
		Surface: SurfaceConfig{
			Supported: true,
			Capabilities: driver.SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  3,
				CurrentExtent:  driver.Extent2D{Width: 640, Height: 480},
				MinImageExtent: driver.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: driver.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []driver.SurfaceFormat{
				{Format: gputypes.TextureFormatBGRA8Unorm},
			},
			PresentModes: []driver.PresentMode{driver.PresentModeFifo, driver.PresentModeMailbox},
		},
	}
}

// Call is one recorded driver call.
type Call struct {
	Op string
	// Object is the ID of the receiver, or of the created object for
	// Create calls.
	Object uint64
	Args   any
}

type failure struct {
	err       error
	remaining int // -1 means every call
}

// state is shared by every object of one Instance.
type state struct {
	mu         sync.Mutex
	cfg        Config
	calls      []Call
	live       map[string]int
	fail       map[string]*failure
	validation []string
	nextID     uint64
	logger     *slog.Logger
}

func (s *state) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *state) record(op string, obj uint64, args any) {
	s.calls = append(s.calls, Call{Op: op, Object: obj, Args: args})
}

// check returns the scripted failure for op, if any. Callers hold mu.
func (s *state) check(op string) error {
	f, ok := s.fail[op]
	if !ok {
		return nil
	}
	err := f.err
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(s.fail, op)
		}
	}
	return err
}

func (s *state) invalid(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.validation = append(s.validation, msg)
	if s.logger != nil {
		s.logger.Debug("noop: validation", "message", msg)
	}
}

// object is embedded in every noop driver object.
type object struct {
	st        *state
	id        uint64
	kind      string
	destroyed bool
}

func (s *state) newObject(kind string) object {
	s.live[kind]++
	return object{st: s, id: s.id(), kind: kind}
}

// ID returns the object's unique handle.
func (o *object) ID() uint64 { return o.id }

func (o *object) Destroy() {
	o.st.mu.Lock()
	defer o.st.mu.Unlock()
	o.destroyLocked()
}

func (o *object) destroyLocked() {
	if o.destroyed {
		o.st.invalid("%s %d destroyed twice", o.kind, o.id)
		return
	}
	o.destroyed = true
	o.st.live[o.kind]--
	o.st.record("Destroy"+o.kind, o.id, nil)
}

// ID returns the handle of a noop driver object, or 0 for nil or foreign
// objects.
func ID(obj any) uint64 {
	if h, ok := obj.(interface{ ID() uint64 }); ok {
		return h.ID()
	}
	return 0
}

// Instance is an in-memory driver.Instance.
type Instance struct {
	object
	adapters []*Adapter
}

// New creates an Instance from cfg.
func New(cfg Config) *Instance {
	st := &state{
		cfg:  cfg,
		live: make(map[string]int),
		fail: make(map[string]*failure),
	}
	inst := &Instance{object: st.newObject("Instance")}
	for i := range cfg.Adapters {
		inst.adapters = append(inst.adapters, &Adapter{st: st, info: cfg.Adapters[i]})
	}
	return inst
}

// SetLogger sets the logger used for validation diagnostics.
func (i *Instance) SetLogger(l *slog.Logger) {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	i.st.logger = l
}

// Adapters implements driver.Instance.
func (i *Instance) Adapters() ([]driver.Adapter, error) {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	if err := i.st.check("Adapters"); err != nil {
		return nil, err
	}
	out := make([]driver.Adapter, len(i.adapters))
	for n, a := range i.adapters {
		out[n] = a
	}
	return out, nil
}

// CreateSurface implements driver.Instance.
func (i *Instance) CreateSurface(w driver.Window) (driver.Surface, error) {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	if err := i.st.check("CreateSurface"); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, errors.Wrap(driver.ErrInitializationFailed, "noop: nil window")
	}
	s := &Surface{object: i.st.newObject("Surface"), window: w}
	i.st.record("CreateSurface", s.id, nil)
	return s, nil
}

// SetSurface replaces the surface configuration reported from now on.
func (i *Instance) SetSurface(cfg SurfaceConfig) {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	i.st.cfg.Surface = cfg
}

// FailOn makes every later call to op fail with err. A nil err clears it.
// Op names are the interface method names, for example "CreateImage" or
// "AcquireNextImage".
func (i *Instance) FailOn(op string, err error) {
	i.failN(op, err, -1)
}

// FailOnce makes the next call to op fail with err.
func (i *Instance) FailOnce(op string, err error) {
	i.failN(op, err, 1)
}

func (i *Instance) failN(op string, err error, n int) {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	if err == nil {
		delete(i.st.fail, op)
		return
	}
	i.st.fail[op] = &failure{err: err, remaining: n}
}

// Calls returns a copy of the call log.
func (i *Instance) Calls() []Call {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	return append([]Call(nil), i.st.calls...)
}

// Count returns how many times op was called.
func (i *Instance) Count(op string) int {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	n := 0
	for _, c := range i.st.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (i *Instance) ResetCalls() {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	i.st.calls = nil
}

// Live returns the number of live objects per kind, omitting kinds with
// no live objects. The Instance itself is included until destroyed.
func (i *Instance) Live() map[string]int {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	out := make(map[string]int)
	for k, n := range i.st.live {
		if n != 0 {
			out[k] = n
		}
	}
	return out
}

// LiveKinds returns the sorted kinds with live objects, excluding the
// Instance.
func (i *Instance) LiveKinds() []string {
	var kinds []string
	for k := range i.Live() {
		if k != "Instance" {
			kinds = append(kinds, k)
		}
	}
	sort.Strings(kinds)
	return kinds
}

// ValidationErrors returns the misuse detected so far.
func (i *Instance) ValidationErrors() []string {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	return append([]string(nil), i.st.validation...)
}

// Adapter is an in-memory driver.Adapter.
type Adapter struct {
	st   *state
	info driver.AdapterInfo
}

// Info implements driver.Adapter.
func (a *Adapter) Info() driver.AdapterInfo { return a.info }

// Open implements driver.Adapter.
func (a *Adapter) Open(queueFamily int) (driver.Device, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	if err := a.st.check("Open"); err != nil {
		return nil, err
	}
	if queueFamily < 0 || queueFamily >= len(a.info.QueueFamilies) {
		return nil, errors.Wrapf(driver.ErrInitializationFailed, "noop: queue family %d", queueFamily)
	}
	d := &Device{object: a.st.newObject("Device"), adapter: a, family: queueFamily}
	d.queue = &Queue{st: a.st, dev: d}
	a.st.record("Open", d.id, queueFamily)
	return d, nil
}

// Surface is an in-memory driver.Surface.
type Surface struct {
	object
	window driver.Window
}
