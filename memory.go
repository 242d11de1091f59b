package ocgfx

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/ocgfx/driver"
)

// MemoryStats contains device memory usage of a Context.
type MemoryStats struct {
	// DeviceBytes is memory allocated from device-local types.
	DeviceBytes uint64

	// HostBytes is memory allocated from host-visible types.
	HostBytes uint64

	// Allocations is the number of live allocations.
	Allocations int
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%d KB device, %d KB host, %d allocations]",
		s.DeviceBytes/1024, s.HostBytes/1024, s.Allocations)
}

// memoryTracker counts live allocations.
type memoryTracker struct {
	mu    sync.Mutex
	stats MemoryStats
}

func (m *memoryTracker) add(size uint64, host bool, sign int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case sign > 0 && host:
		m.stats.HostBytes += size
	case sign > 0:
		m.stats.DeviceBytes += size
	case host:
		m.stats.HostBytes -= size
	default:
		m.stats.DeviceBytes -= size
	}
	m.stats.Allocations += sign
}

func (m *memoryTracker) snapshot() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// allocation is one block of device memory bound to one resource.
type allocation struct {
	mem     driver.Memory
	size    uint64
	host    bool
	tracker *memoryTracker
}

func (a *allocation) free() {
	if a == nil || a.mem == nil {
		return
	}
	a.mem.Destroy()
	a.tracker.add(a.size, a.host, -1)
	a.mem = nil
}

// allocate allocates memory satisfying req with all of the wanted
// properties, sized to the driver-reported requirement.
func (c *Context) allocate(req driver.MemoryRequirements, want driver.MemoryPropertyFlags) (*allocation, error) {
	idx, ok := driver.FindMemoryType(c.adapterInfo.MemoryTypes, req.TypeBits, want)
	if !ok {
		return nil, errors.Wrapf(ErrOutOfMemory, "no memory type with properties %#x in %#x", want, req.TypeBits)
	}
	mem, err := c.dev.AllocateMemory(req.Size, idx)
	if err != nil {
		return nil, classify(err, "allocate %d bytes", req.Size)
	}
	host := want&driver.MemoryHostVisible != 0
	c.memory.add(req.Size, host, 1)
	Logger().Debug("ocgfx: memory allocated", "bytes", req.Size, "type", idx, "host", host)
	return &allocation{mem: mem, size: req.Size, host: host, tracker: &c.memory}, nil
}

// newDeviceImage creates an image backed by device-local memory.
func (c *Context) newDeviceImage(desc *driver.ImageDescriptor) (driver.Image, *allocation, error) {
	img, err := c.dev.CreateImage(desc)
	if err != nil {
		return nil, nil, classify(err, "create %dx%d image", desc.Width, desc.Height)
	}
	alloc, err := c.allocate(img.MemoryRequirements(), driver.MemoryDeviceLocal)
	if err != nil {
		img.Destroy()
		return nil, nil, err
	}
	if err := c.dev.BindImageMemory(img, alloc.mem, 0); err != nil {
		alloc.free()
		img.Destroy()
		return nil, nil, classify(err, "bind image memory")
	}
	return img, alloc, nil
}

// newHostBuffer creates a buffer backed by host-visible, host-coherent
// memory.
func (c *Context) newHostBuffer(size uint64, usage driver.BufferUsage) (driver.Buffer, *allocation, error) {
	buf, err := c.dev.CreateBuffer(&driver.BufferDescriptor{Size: size, Usage: usage})
	if err != nil {
		return nil, nil, classify(err, "create %d byte buffer", size)
	}
	alloc, err := c.allocate(buf.MemoryRequirements(), driver.MemoryHostVisible|driver.MemoryHostCoherent)
	if err != nil {
		buf.Destroy()
		return nil, nil, err
	}
	if err := c.dev.BindBufferMemory(buf, alloc.mem, 0); err != nil {
		alloc.free()
		buf.Destroy()
		return nil, nil, classify(err, "bind buffer memory")
	}
	return buf, alloc, nil
}

// uniformBuffer is a host-coherent buffer of 4x4 matrices that stays
// mapped for its whole life.
type uniformBuffer struct {
	buf   driver.Buffer
	alloc *allocation
	data  []byte
}

const mat4Size = 64

// newUniformBuffer creates a mapped uniform buffer holding n matrices,
// all set to identity.
func (c *Context) newUniformBuffer(n int) (*uniformBuffer, error) {
	size := uint64(n * mat4Size)
	buf, alloc, err := c.newHostBuffer(size, driver.BufferUsageUniform)
	if err != nil {
		return nil, err
	}
	data, err := alloc.mem.Map(0, size)
	if err != nil {
		alloc.free()
		buf.Destroy()
		return nil, classify(err, "map uniform buffer")
	}
	u := &uniformBuffer{buf: buf, alloc: alloc, data: data}
	for i := 0; i < n; i++ {
		u.set(i, mgl32.Ident4())
	}
	return u, nil
}

// set writes m, column major, into slot i.
func (u *uniformBuffer) set(i int, m mgl32.Mat4) {
	dst := u.data[i*mat4Size : (i+1)*mat4Size]
	for k, v := range m {
		binary.LittleEndian.PutUint32(dst[k*4:], math.Float32bits(v))
	}
}

// get reads slot i back.
func (u *uniformBuffer) get(i int) mgl32.Mat4 {
	var m mgl32.Mat4
	src := u.data[i*mat4Size : (i+1)*mat4Size]
	for k := range m {
		m[k] = math.Float32frombits(binary.LittleEndian.Uint32(src[k*4:]))
	}
	return m
}

func (u *uniformBuffer) size() uint64 { return uint64(len(u.data)) }

func (u *uniformBuffer) destroy() {
	if u == nil || u.buf == nil {
		return
	}
	u.alloc.mem.Unmap()
	u.buf.Destroy()
	u.alloc.free()
	u.buf, u.data = nil, nil
}
