package ocd

import (
	"io/fs"

	"github.com/cockroachdb/errors"
)

// Image is a decoded OCD image.
type Image struct {
	Format ImageFormat
	Mips   []Mip
	// Data is the image data block. Mip offsets index into it.
	Data []byte
}

// MipData returns the pixels of mip level i.
func (im *Image) MipData(i int) []byte {
	m := im.Mips[i]
	return im.Data[m.Offset : m.Offset+m.Size]
}

// Scene is a decoded OCD scene. Records keep the absolute offsets stored in
// the file; use the accessor methods to resolve them.
type Scene struct {
	Subresources []Subresource
	Objects      []Object
	Components   []Component

	data []byte
}

// MeshGroup is one decoded group of a mesh component. Vertices and Indices
// alias the scene data.
type MeshGroup struct {
	MaterialIndex uint32
	Primitive     PrimitiveType
	VertexFormat  VertexFormat
	VertexCount   uint32
	Vertices      []byte
	IndexFormat   IndexFormat
	IndexCount    uint32
	Indices       []byte
}

// DetectType validates the OCD header of data and returns its resource
// type.
func DetectType(data []byte) (ResourceType, error) {
	if len(data) < headerSize {
		return TypeUnknown, errors.Wrapf(ErrCorrupt, "%d bytes is too short for a header", len(data))
	}
	if magic := le.Uint32(data); magic != FourCC {
		return TypeUnknown, errors.Wrapf(ErrCorrupt, "bad magic %#08x", magic)
	}
	t := ResourceType(le.Uint32(data[4:]))
	switch t {
	case TypeImage, TypeScene, TypeMaterial:
		return t, nil
	default:
		return TypeUnknown, errors.Wrapf(ErrUnsupportedType, "type id %d", uint32(t))
	}
}

// Load reads the named OCD file from fsys and returns its contents and
// resource type.
func Load(fsys fs.FS, name string) ([]byte, ResourceType, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, TypeUnknown, errors.Wrapf(err, "load %s", name)
	}
	t, err := DetectType(data)
	if err != nil {
		return nil, TypeUnknown, errors.Wrapf(err, "load %s", name)
	}
	return data, t, nil
}

func expectType(data []byte, want ResourceType) error {
	t, err := DetectType(data)
	if err != nil {
		return err
	}
	if t != want {
		return errors.Wrapf(ErrUnsupportedType, "got %v, want %v", t, want)
	}
	return nil
}

// within reports whether [off, off+size) lies inside a buffer of length n.
func within(off, size uint64, n int) bool {
	return off <= uint64(n) && size <= uint64(n)-off
}

// ReadImage decodes an OCD image.
func ReadImage(data []byte) (*Image, error) {
	if err := expectType(data, TypeImage); err != nil {
		return nil, err
	}
	if len(data) < imageHeaderSize {
		return nil, errors.Wrap(ErrCorrupt, "truncated image header")
	}
	im := &Image{Format: ImageFormat(le.Uint32(data[8:]))}
	if im.Format.BytesPerPixel() == 0 {
		return nil, errors.Wrapf(ErrCorrupt, "image format %v", im.Format)
	}
	mipCount := uint64(le.Uint32(data[12:]))
	if mipCount == 0 {
		return nil, errors.Wrap(ErrCorrupt, "image has no mips")
	}

	sizeOff := imageHeaderSize + mipCount*mipRecordSize
	if !within(imageHeaderSize, mipCount*mipRecordSize+8, len(data)) {
		return nil, errors.Wrapf(ErrCorrupt, "%d mip records past end", mipCount)
	}
	dataSize := le.Uint64(data[sizeOff:])
	if !within(sizeOff+8, dataSize, len(data)) {
		return nil, errors.Wrapf(ErrCorrupt, "image data of %d bytes past end", dataSize)
	}
	im.Data = data[sizeOff+8 : sizeOff+8+dataSize]

	bpp := uint64(im.Format.BytesPerPixel())
	for i := range mipCount {
		m := decodeMip(data[imageHeaderSize+i*mipRecordSize:])
		if m.Size != uint64(m.Width)*uint64(m.Height)*bpp {
			return nil, errors.Wrapf(ErrCorrupt, "mip %d: %d bytes for %dx%d", i, m.Size, m.Width, m.Height)
		}
		if !within(m.Offset, m.Size, len(im.Data)) {
			return nil, errors.Wrapf(ErrCorrupt, "mip %d data past end", i)
		}
		im.Mips = append(im.Mips, m)
	}
	return im, nil
}

// ReadScene decodes an OCD scene and validates every record offset and
// object link.
func ReadScene(data []byte) (*Scene, error) {
	if err := expectType(data, TypeScene); err != nil {
		return nil, err
	}
	if len(data) < sceneHeaderSize {
		return nil, errors.Wrap(ErrCorrupt, "truncated scene header")
	}
	subCount := uint64(le.Uint32(data[8:]))
	objCount := uint64(le.Uint32(data[12:]))
	subOff := le.Uint64(data[16:])
	objOff := le.Uint64(data[24:])
	payloadSize := le.Uint64(data[32:])
	if payloadSize < sceneHeaderSize || payloadSize > uint64(len(data)) {
		return nil, errors.Wrapf(ErrCorrupt, "payload size %d for %d bytes", payloadSize, len(data))
	}
	data = data[:payloadSize]

	if !within(subOff, subCount*subresourceRecordSize, len(data)) {
		return nil, errors.Wrap(ErrCorrupt, "subresource records past end")
	}
	if !within(objOff, objCount*objectRecordSize, len(data)) {
		return nil, errors.Wrap(ErrCorrupt, "object records past end")
	}

	s := &Scene{data: data}
	for i := range subCount {
		sr := decodeSubresource(data[subOff+i*subresourceRecordSize:])
		if sr.PathOffset >= payloadSize {
			return nil, errors.Wrapf(ErrCorrupt, "subresource %d path past end", i)
		}
		if sr.Internal() && !within(sr.DataOffset, sr.DataSize, len(data)) {
			return nil, errors.Wrapf(ErrCorrupt, "subresource %d data past end", i)
		}
		s.Subresources = append(s.Subresources, sr)
	}

	compBase := objOff + objCount*objectRecordSize
	var compCount uint64
	for i := range objCount {
		o := decodeObject(data[objOff+i*objectRecordSize:])
		if o.NameOffset >= payloadSize {
			return nil, errors.Wrapf(ErrCorrupt, "object %d name past end", i)
		}
		for _, link := range []uint32{o.Parent, o.FirstChild, o.LastChild, o.PrevSibling, o.NextSibling} {
			if link != ObjectNone && uint64(link) >= objCount {
				return nil, errors.Wrapf(ErrCorrupt, "object %d links to %d of %d", i, link, objCount)
			}
		}
		if o.ComponentCount > 0 {
			if o.ComponentsOffset < compBase || (o.ComponentsOffset-compBase)%componentRecordSize != 0 {
				return nil, errors.Wrapf(ErrCorrupt, "object %d components offset %d", i, o.ComponentsOffset)
			}
			end := (o.ComponentsOffset-compBase)/componentRecordSize + uint64(o.ComponentCount)
			compCount = max(compCount, end)
		}
		s.Objects = append(s.Objects, o)
	}

	if !within(compBase, compCount*componentRecordSize, len(data)) {
		return nil, errors.Wrap(ErrCorrupt, "component records past end")
	}
	for i := range compCount {
		c := decodeComponent(data[compBase+i*componentRecordSize:])
		if !within(c.DataOffset, c.DataSize, len(data)) {
			return nil, errors.Wrapf(ErrCorrupt, "component %d data past end", i)
		}
		s.Components = append(s.Components, c)
	}
	return s, nil
}

// ObjectName returns the name of object i.
func (s *Scene) ObjectName(i uint32) (string, error) {
	if int(i) >= len(s.Objects) {
		return "", errors.Wrapf(ErrInvalidArgs, "object %d of %d", i, len(s.Objects))
	}
	return cString(s.data, s.Objects[i].NameOffset)
}

// ObjectComponents returns the components attached to object i.
func (s *Scene) ObjectComponents(i uint32) []Component {
	o := s.Objects[i]
	if o.ComponentCount == 0 {
		return nil
	}
	first := s.componentIndex(o.ComponentsOffset)
	return s.Components[first : first+uint64(o.ComponentCount)]
}

func (s *Scene) componentIndex(off uint64) uint64 {
	objOff := le.Uint64(s.data[24:])
	base := objOff + uint64(len(s.Objects))*objectRecordSize
	return (off - base) / componentRecordSize
}

// Children returns the child indices of object i in sibling order. Pass
// ObjectNone to list the root objects.
func (s *Scene) Children(i uint32) []uint32 {
	var next uint32
	if i == ObjectNone {
		next = ObjectNone
		for j := range s.Objects {
			if s.Objects[j].Parent == ObjectNone {
				next = uint32(j)
				break
			}
		}
	} else {
		next = s.Objects[i].FirstChild
	}
	var out []uint32
	for next != ObjectNone && len(out) <= len(s.Objects) {
		out = append(out, next)
		next = s.Objects[next].NextSibling
	}
	return out
}

// SubresourcePath returns the path of subresource i. Internal subresources
// have an empty path.
func (s *Scene) SubresourcePath(i uint32) (string, error) {
	if int(i) >= len(s.Subresources) {
		return "", errors.Wrapf(ErrInvalidArgs, "subresource %d of %d", i, len(s.Subresources))
	}
	return cString(s.data, s.Subresources[i].PathOffset)
}

// SubresourceData returns the embedded data of internal subresource i.
func (s *Scene) SubresourceData(i uint32) ([]byte, error) {
	if int(i) >= len(s.Subresources) {
		return nil, errors.Wrapf(ErrInvalidArgs, "subresource %d of %d", i, len(s.Subresources))
	}
	sr := s.Subresources[i]
	if !sr.Internal() {
		return nil, errors.Wrapf(ErrInvalidArgs, "subresource %d is external", i)
	}
	return s.data[sr.DataOffset : sr.DataOffset+sr.DataSize], nil
}

// SceneSubresource returns the subresource index referenced by a scene
// component.
func (s *Scene) SceneSubresource(c Component) (uint32, error) {
	if c.Type != ComponentTypeScene || c.DataSize < 8 {
		return 0, errors.Wrapf(ErrInvalidArgs, "component type %d size %d", c.Type, c.DataSize)
	}
	idx := le.Uint32(s.data[c.DataOffset:])
	if int(idx) >= len(s.Subresources) {
		return 0, errors.Wrapf(ErrCorrupt, "scene component references subresource %d of %d", idx, len(s.Subresources))
	}
	return idx, nil
}

// MeshGroups decodes the groups of a mesh component.
func (s *Scene) MeshGroups(c Component) ([]MeshGroup, error) {
	if c.Type != ComponentTypeMesh {
		return nil, errors.Wrapf(ErrInvalidArgs, "component type %d is not a mesh", c.Type)
	}
	d := s.data[c.DataOffset : c.DataOffset+c.DataSize]
	if len(d) < meshHeaderSize {
		return nil, errors.Wrap(ErrCorrupt, "truncated mesh header")
	}
	groupCount := uint64(le.Uint32(d[0:]))
	vSize, vOff := le.Uint64(d[8:]), le.Uint64(d[16:])
	iSize, iOff := le.Uint64(d[24:]), le.Uint64(d[32:])
	if !within(meshHeaderSize, groupCount*meshGroupRecordSize, len(d)) ||
		!within(vOff, vSize, len(d)) || !within(iOff, iSize, len(d)) {
		return nil, errors.Wrap(ErrCorrupt, "mesh sections past end")
	}
	vertices, indices := d[vOff:vOff+vSize], d[iOff:iOff+iSize]

	groups := make([]MeshGroup, 0, groupCount)
	for i := range groupCount {
		r := decodeMeshGroupRecord(d[meshHeaderSize+i*meshGroupRecordSize:])
		vs, is := uint64(r.vertexFormat.Size()), uint64(r.indexFormat.Size())
		if vs == 0 || is == 0 {
			return nil, errors.Wrapf(ErrCorrupt, "mesh group %d formats", i)
		}
		vlen, ilen := uint64(r.vertexCount)*vs, uint64(r.indexCount)*is
		if !within(r.vertexDataOffset, vlen, len(vertices)) || !within(r.indexDataOffset, ilen, len(indices)) {
			return nil, errors.Wrapf(ErrCorrupt, "mesh group %d data past end", i)
		}
		if r.materialIndex != NoSubresource && int(r.materialIndex) >= len(s.Subresources) {
			return nil, errors.Wrapf(ErrCorrupt, "mesh group %d material %d", i, r.materialIndex)
		}
		groups = append(groups, MeshGroup{
			MaterialIndex: r.materialIndex,
			Primitive:     r.primitive,
			VertexFormat:  r.vertexFormat,
			VertexCount:   r.vertexCount,
			Vertices:      vertices[r.vertexDataOffset : r.vertexDataOffset+vlen],
			IndexFormat:   r.indexFormat,
			IndexCount:    r.indexCount,
			Indices:       indices[r.indexDataOffset : r.indexDataOffset+ilen],
		})
	}
	return groups, nil
}
