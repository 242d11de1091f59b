package ocgfx

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
	"github.com/gogpu/ocgfx/ocd"
)

// MeshDescriptor describes mesh geometry. Vertices hold VertexCount
// vertices in VertexFormat, Indices hold IndexCount indices.
type MeshDescriptor struct {
	Topology     gputypes.PrimitiveTopology
	VertexFormat ocd.VertexFormat
	IndexFormat  gputypes.IndexFormat
	VertexCount  uint32
	Vertices     []byte
	IndexCount   uint32
	Indices      []byte
}

// Mesh is vertex and index data in host-visible, host-coherent buffers.
// The data is not staged into device-local memory.
type Mesh struct {
	ctx         *Context
	topology    gputypes.PrimitiveTopology
	indexFormat gputypes.IndexFormat
	indexCount  uint32
	vertexCount uint32

	vertices     driver.Buffer
	vertexMemory *allocation
	indices      driver.Buffer
	indexMemory  *allocation
}

func indexSize(f gputypes.IndexFormat) uint64 {
	switch f {
	case gputypes.IndexFormatUint16:
		return 2
	case gputypes.IndexFormatUint32:
		return 4
	default:
		return 0
	}
}

// CreateMesh copies desc into new vertex and index buffers. Only triangle
// lists are drawable by the fixed pipeline; other topologies are
// ErrNotSupported.
func (c *Context) CreateMesh(desc *MeshDescriptor) (*Mesh, error) {
	if desc == nil {
		return nil, errors.Wrap(ErrInvalidArgs, "nil mesh descriptor")
	}
	if desc.Topology != gputypes.PrimitiveTopologyTriangleList {
		return nil, errors.Wrapf(ErrNotSupported, "topology %v", desc.Topology)
	}
	vs, is := uint64(desc.VertexFormat.Size()), indexSize(desc.IndexFormat)
	if vs == 0 || is == 0 {
		return nil, errors.Wrapf(ErrInvalidArgs, "vertex format %d, index format %v", desc.VertexFormat, desc.IndexFormat)
	}
	if desc.VertexCount == 0 || desc.IndexCount == 0 {
		return nil, errors.Wrap(ErrInvalidArgs, "empty mesh")
	}
	vlen, ilen := uint64(desc.VertexCount)*vs, uint64(desc.IndexCount)*is
	if uint64(len(desc.Vertices)) < vlen || uint64(len(desc.Indices)) < ilen {
		return nil, errors.Wrapf(ErrInvalidArgs, "mesh data %d/%d bytes, need %d/%d",
			len(desc.Vertices), len(desc.Indices), vlen, ilen)
	}

	m := &Mesh{
		ctx:         c,
		topology:    desc.Topology,
		indexFormat: desc.IndexFormat,
		indexCount:  desc.IndexCount,
		vertexCount: desc.VertexCount,
	}
	var err error
	if m.vertices, m.vertexMemory, err = c.fillBuffer(desc.Vertices[:vlen], driver.BufferUsageVertex); err != nil {
		m.Destroy()
		return nil, err
	}
	if m.indices, m.indexMemory, err = c.fillBuffer(desc.Indices[:ilen], driver.BufferUsageIndex); err != nil {
		m.Destroy()
		return nil, err
	}
	Logger().Debug("ocgfx: mesh created", "vertices", desc.VertexCount, "indices", desc.IndexCount)
	return m, nil
}

// fillBuffer creates a host-coherent buffer holding data.
func (c *Context) fillBuffer(data []byte, usage driver.BufferUsage) (driver.Buffer, *allocation, error) {
	size := uint64(len(data))
	buf, alloc, err := c.newHostBuffer(size, usage)
	if err != nil {
		return nil, nil, err
	}
	p, err := alloc.mem.Map(0, size)
	if err != nil {
		alloc.free()
		buf.Destroy()
		return nil, nil, classify(err, "map mesh buffer")
	}
	copy(p, data)
	alloc.mem.Unmap()
	return buf, alloc, nil
}

// Destroy frees both buffers and their memory.
func (m *Mesh) Destroy() {
	if m == nil {
		return
	}
	if m.indices != nil {
		m.indices.Destroy()
		m.indices = nil
	}
	m.indexMemory.free()
	if m.vertices != nil {
		m.vertices.Destroy()
		m.vertices = nil
	}
	m.vertexMemory.free()
}

// IndexCount returns the number of indices drawn.
func (m *Mesh) IndexCount() uint32 { return m.indexCount }

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() uint32 { return m.vertexCount }

// IndexFormat returns the index width.
func (m *Mesh) IndexFormat() gputypes.IndexFormat { return m.indexFormat }

// MeshDescriptorFromOCD describes the geometry of one OCD mesh group.
func MeshDescriptorFromOCD(g ocd.MeshGroup) (*MeshDescriptor, error) {
	desc := &MeshDescriptor{
		VertexFormat: g.VertexFormat,
		VertexCount:  g.VertexCount,
		Vertices:     g.Vertices,
		IndexCount:   g.IndexCount,
		Indices:      g.Indices,
	}
	switch g.Primitive {
	case ocd.PrimitiveTriangles:
		desc.Topology = gputypes.PrimitiveTopologyTriangleList
	case ocd.PrimitiveTriangleStrip:
		desc.Topology = gputypes.PrimitiveTopologyTriangleStrip
	case ocd.PrimitiveLines:
		desc.Topology = gputypes.PrimitiveTopologyLineList
	case ocd.PrimitivePoints:
		desc.Topology = gputypes.PrimitiveTopologyPointList
	default:
		return nil, errors.Wrapf(ErrInvalidArgs, "primitive type %d", g.Primitive)
	}
	switch g.IndexFormat {
	case ocd.IndexFormatUint16:
		desc.IndexFormat = gputypes.IndexFormatUint16
	case ocd.IndexFormatUint32:
		desc.IndexFormat = gputypes.IndexFormatUint32
	default:
		return nil, errors.Wrapf(ErrInvalidArgs, "index format %d", g.IndexFormat)
	}
	return desc, nil
}
