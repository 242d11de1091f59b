package ocd

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilder accumulates an object tree with components and subresources
// and renders it as an OCD scene file.
//
// BeginObject and EndObject nest like a stack; a new object becomes a child
// of the innermost open object. All components of one object must be added
// consecutively, without components of another object in between.
type SceneBuilder struct {
	subresources []Subresource
	objects      []Object
	components   []Component
	stack        []uint32

	componentData   DataBlock
	subresourceData DataBlock
	strings         DataBlock

	mesh *meshBuilder
}

// MeshGroupData is one draw group added to a mesh component. Counts are
// derived from the byte lengths and formats.
type MeshGroupData struct {
	// Material is the subresource path of the material, or "" for none.
	Material string
	// EmbeddedMaterial, when set, is stored as a new internal subresource
	// and used instead of Material.
	EmbeddedMaterial []byte

	Primitive    PrimitiveType
	VertexFormat VertexFormat
	Vertices     []byte
	IndexFormat  IndexFormat
	Indices      []byte
}

type meshBuilder struct {
	groups   []meshGroupRecord
	vertices DataBlock
	indices  DataBlock
}

// NewSceneBuilder returns an empty scene builder.
func NewSceneBuilder() *SceneBuilder {
	return &SceneBuilder{}
}

// ObjectCount returns the number of objects begun so far.
func (b *SceneBuilder) ObjectCount() int { return len(b.objects) }

// Object returns the builder-side record of object i. Offsets are relative
// to the builder's blocks until Render.
func (b *SceneBuilder) Object(i uint32) Object { return b.objects[i] }

// BeginObject opens a new object as the last child of the innermost open
// object, or as the last root object when none is open. It fails while a
// mesh component is open.
func (b *SceneBuilder) BeginObject(name string, position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) (uint32, error) {
	if b.mesh != nil {
		return ObjectNone, errors.Wrap(ErrInvalidOperation, "begin object: mesh component still open")
	}
	idx := uint32(len(b.objects))
	obj := Object{
		NameOffset:  b.strings.WriteString(name),
		Parent:      ObjectNone,
		FirstChild:  ObjectNone,
		LastChild:   ObjectNone,
		PrevSibling: ObjectNone,
		NextSibling: ObjectNone,
		Position:    [3]float32(position),
		Rotation:    [4]float32{rotation.V[0], rotation.V[1], rotation.V[2], rotation.W},
		Scale:       [3]float32(scale),
	}

	if n := len(b.stack); n > 0 {
		obj.Parent = b.stack[n-1]
		parent := &b.objects[obj.Parent]
		obj.PrevSibling = parent.LastChild
		parent.LastChild = idx
		if parent.FirstChild == ObjectNone {
			parent.FirstChild = idx
		}
	} else {
		for i := len(b.objects); i > 0; i-- {
			if b.objects[i-1].Parent == ObjectNone {
				obj.PrevSibling = uint32(i - 1)
				break
			}
		}
	}
	if obj.PrevSibling != ObjectNone {
		b.objects[obj.PrevSibling].NextSibling = idx
	}

	b.objects = append(b.objects, obj)
	b.stack = append(b.stack, idx)
	return idx, nil
}

// EndObject closes the innermost open object.
func (b *SceneBuilder) EndObject() error {
	if len(b.stack) == 0 {
		return errors.Wrap(ErrInvalidOperation, "end object: no open object")
	}
	if b.mesh != nil {
		return errors.Wrap(ErrInvalidOperation, "end object: mesh component still open")
	}
	b.stack = b.stack[:len(b.stack)-1]
	return nil
}

// AddSubresource returns the index of the external subresource at path,
// appending it when no earlier external subresource has the same path.
func (b *SceneBuilder) AddSubresource(path string) (uint32, error) {
	if path == "" {
		return 0, errors.Wrap(ErrInvalidArgs, "subresource path is empty")
	}
	for i := range b.subresources {
		s := &b.subresources[i]
		if s.Internal() {
			continue
		}
		existing, err := b.strings.StringAt(s.PathOffset)
		if err != nil {
			return 0, err
		}
		if existing == path {
			return uint32(i), nil
		}
	}
	b.subresources = append(b.subresources, Subresource{PathOffset: b.strings.WriteString(path)})
	return uint32(len(b.subresources) - 1), nil
}

// AddInternalSubresource embeds data in the scene and returns its index.
// Internal subresources are never deduplicated.
func (b *SceneBuilder) AddInternalSubresource(data []byte) uint32 {
	s := Subresource{
		PathOffset: b.strings.WriteString(""),
		Flags:      SubresourceFlagInternal,
		DataSize:   uint64(len(data)),
		DataOffset: b.subresourceData.Write(data),
	}
	b.subresourceData.WritePadding64()
	b.subresources = append(b.subresources, s)
	return uint32(len(b.subresources) - 1)
}

// AddSceneComponent attaches a reference to another scene file to the
// innermost open object.
func (b *SceneBuilder) AddSceneComponent(path string) error {
	obj, err := b.componentTarget()
	if err != nil {
		return err
	}
	idx, err := b.AddSubresource(path)
	if err != nil {
		return err
	}
	off := b.componentData.WriteUint32(idx)
	b.componentData.WriteUint32(0)
	b.appendComponent(obj, Component{Type: ComponentTypeScene, DataSize: 8, DataOffset: off})
	return nil
}

// BeginMeshComponent starts a mesh component on the innermost open object.
// Contiguity is checked here so a misuse fails before any group adds an
// embedded material.
func (b *SceneBuilder) BeginMeshComponent() error {
	if b.mesh != nil {
		return errors.Wrap(ErrInvalidOperation, "begin mesh: mesh component already open")
	}
	if _, err := b.componentTarget(); err != nil {
		return errors.Wrap(err, "begin mesh")
	}
	b.mesh = &meshBuilder{}
	return nil
}

// AddMeshGroup appends a group to the open mesh component.
func (b *SceneBuilder) AddMeshGroup(g MeshGroupData) error {
	if b.mesh == nil {
		return errors.Wrap(ErrInvalidOperation, "add mesh group: no open mesh component")
	}
	vsize, isize := g.VertexFormat.Size(), g.IndexFormat.Size()
	if vsize == 0 || isize == 0 {
		return errors.Wrapf(ErrInvalidArgs, "mesh group formats vertex=%d index=%d", g.VertexFormat, g.IndexFormat)
	}
	if len(g.Vertices) == 0 || len(g.Vertices)%vsize != 0 {
		return errors.Wrapf(ErrInvalidArgs, "%d vertex bytes for stride %d", len(g.Vertices), vsize)
	}
	if len(g.Indices) == 0 || len(g.Indices)%isize != 0 {
		return errors.Wrapf(ErrInvalidArgs, "%d index bytes for size %d", len(g.Indices), isize)
	}

	material := NoSubresource
	if g.EmbeddedMaterial != nil {
		material = b.AddInternalSubresource(g.EmbeddedMaterial)
	} else if g.Material != "" {
		idx, err := b.AddSubresource(g.Material)
		if err != nil {
			return err
		}
		material = idx
	}

	m := b.mesh
	rec := meshGroupRecord{
		materialIndex:    material,
		primitive:        g.Primitive,
		vertexFormat:     g.VertexFormat,
		vertexCount:      uint32(len(g.Vertices) / vsize),
		vertexDataOffset: m.vertices.Write(g.Vertices),
		indexFormat:      g.IndexFormat,
		indexCount:       uint32(len(g.Indices) / isize),
		indexDataOffset:  m.indices.Write(g.Indices),
	}
	m.vertices.WritePadding64()
	m.indices.WritePadding64()
	m.groups = append(m.groups, rec)
	return nil
}

// EndMeshComponent writes the open mesh component and attaches it to the
// innermost open object.
//
// The component data is a 40-byte header, the group records, the vertex
// data and the index data. Section offsets are relative to the component.
func (b *SceneBuilder) EndMeshComponent() error {
	if b.mesh == nil {
		return errors.Wrap(ErrInvalidOperation, "end mesh: no open mesh component")
	}
	m := b.mesh
	b.mesh = nil

	obj, err := b.componentTarget()
	if err != nil {
		return err
	}

	groupCount := uint64(len(m.groups))
	vertexOffset := meshHeaderSize + groupCount*meshGroupRecordSize
	indexOffset := vertexOffset + m.vertices.Len() + padding64(m.vertices.Len())

	head := make([]byte, vertexOffset)
	le.PutUint32(head[0:], uint32(groupCount))
	le.PutUint64(head[8:], m.vertices.Len())
	le.PutUint64(head[16:], vertexOffset)
	le.PutUint64(head[24:], m.indices.Len())
	le.PutUint64(head[32:], indexOffset)
	for i := range m.groups {
		m.groups[i].encode(head[meshHeaderSize+i*meshGroupRecordSize:])
	}

	off := b.componentData.Write(head)
	b.componentData.WriteBlock(&m.vertices)
	b.componentData.WritePadding64()
	b.componentData.WriteBlock(&m.indices)
	b.componentData.WritePadding64()

	b.appendComponent(obj, Component{
		Type:       ComponentTypeMesh,
		DataSize:   b.componentData.Len() - off,
		DataOffset: off,
	})
	return nil
}

// componentTarget returns the innermost open object after checking that a
// component appended now keeps the object's components contiguous.
func (b *SceneBuilder) componentTarget() (*Object, error) {
	if len(b.stack) == 0 {
		return nil, errors.Wrap(ErrInvalidOperation, "add component: no open object")
	}
	idx := b.stack[len(b.stack)-1]
	obj := &b.objects[idx]
	if obj.ComponentCount > 0 {
		inBlock := (uint64(len(b.components))*componentRecordSize - obj.ComponentsOffset) / componentRecordSize
		if inBlock != uint64(obj.ComponentCount) {
			return nil, errors.Wrapf(ErrInvalidOperation,
				"object %d: components interleaved with another object's (%d in block, %d owned)",
				idx, inBlock, obj.ComponentCount)
		}
	}
	return obj, nil
}

func (b *SceneBuilder) appendComponent(obj *Object, c Component) {
	if obj.ComponentCount == 0 {
		obj.ComponentsOffset = uint64(len(b.components)) * componentRecordSize
	}
	b.components = append(b.components, c)
	obj.ComponentCount++
}

// sceneLayout holds the absolute offsets of each section of a rendered
// scene.
type sceneLayout struct {
	subresources    uint64
	objects         uint64
	components      uint64
	componentData   uint64
	subresourceData uint64
	strings         uint64
}

// Render encodes the scene as an OCD file.
func (b *SceneBuilder) Render() ([]byte, error) {
	if b.mesh != nil {
		return nil, errors.Wrap(ErrInvalidOperation, "render: mesh component still open")
	}
	var out DataBlock
	l := b.layout(&out)
	if err := b.patch(&out, l); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// layout appends the header with placeholder offsets and every section in
// order, recording where each section starts. Record offsets are still
// block-relative afterwards.
func (b *SceneBuilder) layout(out *DataBlock) sceneLayout {
	var l sceneLayout

	out.WriteUint32(FourCC)
	out.WriteUint32(uint32(TypeScene))
	out.WriteUint32(uint32(len(b.subresources)))
	out.WriteUint32(uint32(len(b.objects)))
	out.WriteUint64(0)
	out.WriteUint64(0)
	out.WriteUint64(0)

	var rec [objectRecordSize]byte

	l.subresources = out.Len()
	for i := range b.subresources {
		b.subresources[i].encode(rec[:subresourceRecordSize])
		out.Write(rec[:subresourceRecordSize])
	}
	l.objects = out.Len()
	for i := range b.objects {
		b.objects[i].encode(rec[:objectRecordSize])
		out.Write(rec[:objectRecordSize])
	}
	l.components = out.Len()
	for i := range b.components {
		b.components[i].encode(rec[:componentRecordSize])
		out.Write(rec[:componentRecordSize])
	}
	l.componentData = out.WriteBlock(&b.componentData)
	l.subresourceData = out.WriteBlock(&b.subresourceData)
	l.strings = out.WriteBlock(&b.strings)
	return l
}

// patch fills in the header offsets and payload size, then rebases every
// block-relative offset in the written records onto the file start.
func (b *SceneBuilder) patch(out *DataBlock, l sceneLayout) error {
	if err := out.PutUint64At(16, l.subresources); err != nil {
		return err
	}
	if err := out.PutUint64At(24, l.objects); err != nil {
		return err
	}
	if err := out.PutUint64At(32, out.Len()); err != nil {
		return err
	}

	for i := range uint64(len(b.subresources)) {
		rec := l.subresources + i*subresourceRecordSize
		if err := out.addUint64At(rec+0, l.strings); err != nil {
			return err
		}
		if err := out.addUint64At(rec+24, l.subresourceData); err != nil {
			return err
		}
	}
	for i := range uint64(len(b.objects)) {
		rec := l.objects + i*objectRecordSize
		if err := out.addUint64At(rec+0, l.strings); err != nil {
			return err
		}
		if err := out.addUint64At(rec+72, l.components); err != nil {
			return err
		}
	}
	for i := range uint64(len(b.components)) {
		rec := l.components + i*componentRecordSize
		if err := out.addUint64At(rec+16, l.componentData); err != nil {
			return err
		}
	}
	return nil
}
