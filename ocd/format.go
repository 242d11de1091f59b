package ocd

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FourCC is the magic number at the start of every OCD file ("OCD ").
const FourCC uint32 = 'O' | 'C'<<8 | 'D'<<16 | ' '<<24

// ResourceType identifies the payload of an OCD file.
type ResourceType uint32

// Resource types.
const (
	TypeUnknown ResourceType = iota
	TypeImage
	TypeScene
	TypeMaterial
)

// String returns the resource type name.
func (t ResourceType) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypeScene:
		return "scene"
	case TypeMaterial:
		return "material"
	default:
		return "unknown"
	}
}

// ImageFormat is the pixel format stored in an image payload.
type ImageFormat uint32

// Image formats.
const (
	FormatUnknown ImageFormat = iota
	FormatRGBA8
	FormatSRGBA8
	FormatRGBA16F
)

// BytesPerPixel returns the pixel size of f, or 0 for unknown formats.
func (f ImageFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA8, FormatSRGBA8:
		return 4
	case FormatRGBA16F:
		return 8
	default:
		return 0
	}
}

// String returns the format name.
func (f ImageFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatSRGBA8:
		return "SRGBA8"
	case FormatRGBA16F:
		return "RGBA16F"
	default:
		return fmt.Sprintf("ImageFormat(%d)", uint32(f))
	}
}

// PrimitiveType is the topology of a mesh group.
type PrimitiveType uint32

// Primitive types.
const (
	PrimitiveTriangles PrimitiveType = iota
	PrimitiveTriangleStrip
	PrimitiveLines
	PrimitivePoints
)

// VertexFormat describes the interleaved layout of mesh vertices.
type VertexFormat uint32

// VertexFormatP3T2N3 is position (3 x f32), texture coordinate (2 x f32)
// and normal (3 x f32): 32 bytes per vertex.
const VertexFormatP3T2N3 VertexFormat = 0

// Size returns the size of one vertex in bytes, or 0 for unknown formats.
func (f VertexFormat) Size() int {
	if f == VertexFormatP3T2N3 {
		return 32
	}
	return 0
}

// IndexFormat is the integer width of mesh indices.
type IndexFormat uint32

// Index formats.
const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

// Size returns the size of one index in bytes, or 0 for unknown formats.
func (f IndexFormat) Size() int {
	switch f {
	case IndexFormatUint16:
		return 2
	case IndexFormatUint32:
		return 4
	default:
		return 0
	}
}

// ComponentType identifies the data attached to a scene component.
type ComponentType uint32

// Component types.
const (
	ComponentTypeScene ComponentType = 1
	ComponentTypeMesh  ComponentType = 2
)

// ObjectNone is the sentinel used for missing object links.
const ObjectNone uint32 = 0xFFFFFFFF

// NoSubresource marks a mesh group without a material.
const NoSubresource uint32 = 0xFFFFFFFF

// SubresourceFlagInternal marks a subresource whose data is embedded in the
// scene rather than referenced by path.
const SubresourceFlagInternal uint64 = 1 << 0

// Fixed record sizes, in bytes.
const (
	headerSize            = 8
	imageHeaderSize       = headerSize + 8
	mipRecordSize         = 24
	sceneHeaderSize       = headerSize + 32
	subresourceRecordSize = 32
	objectRecordSize      = 80
	componentRecordSize   = 24
	meshHeaderSize        = 40
	meshGroupRecordSize   = 40
)

var le = binary.LittleEndian

// Mip describes one level of an image payload.
type Mip struct {
	Offset uint64
	Size   uint64
	Width  uint32
	Height uint32
}

func (m *Mip) encode(b []byte) {
	le.PutUint64(b[0:], m.Offset)
	le.PutUint64(b[8:], m.Size)
	le.PutUint32(b[16:], m.Width)
	le.PutUint32(b[20:], m.Height)
}

func decodeMip(b []byte) Mip {
	return Mip{
		Offset: le.Uint64(b[0:]),
		Size:   le.Uint64(b[8:]),
		Width:  le.Uint32(b[16:]),
		Height: le.Uint32(b[20:]),
	}
}

// Subresource is a scene subresource record: either a path to an external
// resource or, with SubresourceFlagInternal, embedded data.
type Subresource struct {
	PathOffset uint64
	Flags      uint64
	DataSize   uint64
	DataOffset uint64
}

// Internal reports whether the subresource data is embedded in the scene.
func (s *Subresource) Internal() bool { return s.Flags&SubresourceFlagInternal != 0 }

func (s *Subresource) encode(b []byte) {
	le.PutUint64(b[0:], s.PathOffset)
	le.PutUint64(b[8:], s.Flags)
	le.PutUint64(b[16:], s.DataSize)
	le.PutUint64(b[24:], s.DataOffset)
}

func decodeSubresource(b []byte) Subresource {
	return Subresource{
		PathOffset: le.Uint64(b[0:]),
		Flags:      le.Uint64(b[8:]),
		DataSize:   le.Uint64(b[16:]),
		DataOffset: le.Uint64(b[24:]),
	}
}

// Object is a scene object record. Links are object indices or ObjectNone.
// Rotation is a quaternion stored as x, y, z, w.
type Object struct {
	NameOffset       uint64
	Parent           uint32
	FirstChild       uint32
	LastChild        uint32
	PrevSibling      uint32
	NextSibling      uint32
	Position         [3]float32
	Rotation         [4]float32
	Scale            [3]float32
	ComponentCount   uint32
	ComponentsOffset uint64
}

func (o *Object) encode(b []byte) {
	le.PutUint64(b[0:], o.NameOffset)
	le.PutUint32(b[8:], o.Parent)
	le.PutUint32(b[12:], o.FirstChild)
	le.PutUint32(b[16:], o.LastChild)
	le.PutUint32(b[20:], o.PrevSibling)
	le.PutUint32(b[24:], o.NextSibling)
	putFloats(b[28:], o.Position[:])
	putFloats(b[40:], o.Rotation[:])
	putFloats(b[56:], o.Scale[:])
	le.PutUint32(b[68:], o.ComponentCount)
	le.PutUint64(b[72:], o.ComponentsOffset)
}

func decodeObject(b []byte) Object {
	var o Object
	o.NameOffset = le.Uint64(b[0:])
	o.Parent = le.Uint32(b[8:])
	o.FirstChild = le.Uint32(b[12:])
	o.LastChild = le.Uint32(b[16:])
	o.PrevSibling = le.Uint32(b[20:])
	o.NextSibling = le.Uint32(b[24:])
	getFloats(b[28:], o.Position[:])
	getFloats(b[40:], o.Rotation[:])
	getFloats(b[56:], o.Scale[:])
	o.ComponentCount = le.Uint32(b[68:])
	o.ComponentsOffset = le.Uint64(b[72:])
	return o
}

// Component is a scene component record.
type Component struct {
	Type       ComponentType
	DataSize   uint64
	DataOffset uint64
}

func (c *Component) encode(b []byte) {
	le.PutUint32(b[0:], uint32(c.Type))
	le.PutUint32(b[4:], 0)
	le.PutUint64(b[8:], c.DataSize)
	le.PutUint64(b[16:], c.DataOffset)
}

func decodeComponent(b []byte) Component {
	return Component{
		Type:       ComponentType(le.Uint32(b[0:])),
		DataSize:   le.Uint64(b[8:]),
		DataOffset: le.Uint64(b[16:]),
	}
}

// meshGroupRecord is the on-disk form of a mesh group. Vertex and index
// data offsets are relative to the vertex and index sections of the
// component.
type meshGroupRecord struct {
	materialIndex    uint32
	primitive        PrimitiveType
	vertexFormat     VertexFormat
	vertexCount      uint32
	vertexDataOffset uint64
	indexFormat      IndexFormat
	indexCount       uint32
	indexDataOffset  uint64
}

func (g *meshGroupRecord) encode(b []byte) {
	le.PutUint32(b[0:], g.materialIndex)
	le.PutUint32(b[4:], uint32(g.primitive))
	le.PutUint32(b[8:], uint32(g.vertexFormat))
	le.PutUint32(b[12:], g.vertexCount)
	le.PutUint64(b[16:], g.vertexDataOffset)
	le.PutUint32(b[24:], uint32(g.indexFormat))
	le.PutUint32(b[28:], g.indexCount)
	le.PutUint64(b[32:], g.indexDataOffset)
}

func decodeMeshGroupRecord(b []byte) meshGroupRecord {
	return meshGroupRecord{
		materialIndex:    le.Uint32(b[0:]),
		primitive:        PrimitiveType(le.Uint32(b[4:])),
		vertexFormat:     VertexFormat(le.Uint32(b[8:])),
		vertexCount:      le.Uint32(b[12:]),
		vertexDataOffset: le.Uint64(b[16:]),
		indexFormat:      IndexFormat(le.Uint32(b[24:])),
		indexCount:       le.Uint32(b[28:]),
		indexDataOffset:  le.Uint64(b[32:]),
	}
}

func putFloats(b []byte, v []float32) {
	for i, f := range v {
		le.PutUint32(b[i*4:], math.Float32bits(f))
	}
}

func getFloats(b []byte, v []float32) {
	for i := range v {
		v[i] = math.Float32frombits(le.Uint32(b[i*4:]))
	}
}

// VertexBytes returns the little-endian encoding of v.
func VertexBytes(v []float32) []byte {
	b := make([]byte, len(v)*4)
	putFloats(b, v)
	return b
}

// IndexBytes16 returns the little-endian encoding of 16-bit indices.
func IndexBytes16(idx []uint16) []byte {
	b := make([]byte, len(idx)*2)
	for i, v := range idx {
		le.PutUint16(b[i*2:], v)
	}
	return b
}

// IndexBytes32 returns the little-endian encoding of 32-bit indices.
func IndexBytes32(idx []uint32) []byte {
	b := make([]byte, len(idx)*4)
	for i, v := range idx {
		le.PutUint32(b[i*4:], v)
	}
	return b
}
