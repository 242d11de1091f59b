package ocgfx

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/ocgfx/driver"
)

// Object is a mesh placed in a World. Its world matrix lives in a mapped
// uniform buffer that is rewritten on every transform change.
type Object struct {
	world *World
	mesh  *Mesh
	image *Image

	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3
	ubo      *uniformBuffer

	// sets holds one descriptor set per render target the object was
	// drawn into.
	sets map[*RenderTarget]*objectSet
}

// objectSet is a descriptor set and the image binding last written to it.
type objectSet struct {
	set   driver.DescriptorSet
	bound binding
}

// CreateObject places mesh in the world with an identity transform. The
// mesh stays owned by the caller and must outlive the object.
func (w *World) CreateObject(mesh *Mesh) (*Object, error) {
	if mesh == nil {
		return nil, errors.Wrap(ErrInvalidArgs, "nil mesh")
	}
	ubo, err := w.ctx.newUniformBuffer(1)
	if err != nil {
		return nil, err
	}
	o := &Object{
		world:    w,
		mesh:     mesh,
		rotation: mgl32.QuatIdent(),
		scale:    mgl32.Vec3{1, 1, 1},
		ubo:      ubo,
		sets:     make(map[*RenderTarget]*objectSet),
	}
	w.objects = append(w.objects, o)
	return o, nil
}

// SetTransform stores the transform and rewrites the world matrix
// (translate * rotate * scale) into the uniform buffer.
func (o *Object) SetTransform(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) {
	o.position, o.rotation, o.scale = position, rotation.Normalize(), scale
	o.ubo.set(0, o.matrix())
}

// SetPosition moves the object.
func (o *Object) SetPosition(p mgl32.Vec3) { o.SetTransform(p, o.rotation, o.scale) }

// SetRotation orients the object.
func (o *Object) SetRotation(q mgl32.Quat) { o.SetTransform(o.position, q, o.scale) }

// SetScale scales the object.
func (o *Object) SetScale(s mgl32.Vec3) { o.SetTransform(o.position, o.rotation, s) }

// Position returns the object position.
func (o *Object) Position() mgl32.Vec3 { return o.position }

// Rotation returns the object orientation.
func (o *Object) Rotation() mgl32.Quat { return o.rotation }

// Scale returns the object scale.
func (o *Object) Scale() mgl32.Vec3 { return o.scale }

// SetMatrix writes m as the world matrix. The stored position, rotation
// and scale are kept, so a later SetTransform replaces m.
func (o *Object) SetMatrix(m mgl32.Mat4) { o.ubo.set(0, m) }

// Transform returns the world matrix.
func (o *Object) Transform() mgl32.Mat4 { return o.ubo.get(0) }

func (o *Object) matrix() mgl32.Mat4 {
	t := mgl32.Translate3D(o.position[0], o.position[1], o.position[2])
	s := mgl32.Scale3D(o.scale[0], o.scale[1], o.scale[2])
	return t.Mul4(o.rotation.Mat4()).Mul4(s)
}

// SetImage selects the image the object is drawn with. nil falls back to
// the world image.
func (o *Object) SetImage(img *Image) { o.image = img }

// Image returns the object's own image, or nil.
func (o *Object) Image() *Image { return o.image }

// Mesh returns the object's mesh.
func (o *Object) Mesh() *Mesh { return o.mesh }

// descriptorSet returns the object's set for rt, allocating and writing
// it on first use and rewriting the image binding when it changed.
func (o *Object) descriptorSet(rt *RenderTarget) (driver.DescriptorSet, error) {
	c := o.world.ctx
	s, ok := o.sets[rt]
	if !ok {
		set, err := c.descriptorPool.Allocate(c.setLayout)
		if err != nil {
			return nil, classify(err, "allocate descriptor set")
		}
		set.Update([]driver.DescriptorWrite{
			{Binding: bindingCamera, Type: driver.DescriptorUniformBuffer, Buffer: rt.ubo.buf, Range: rt.ubo.size()},
			{Binding: bindingModel, Type: driver.DescriptorUniformBuffer, Buffer: o.ubo.buf, Range: o.ubo.size()},
		})
		s = &objectSet{set: set}
		o.sets[rt] = s
	}
	if want := o.world.imageFor(o).binding(); s.bound != want {
		s.set.Update([]driver.DescriptorWrite{
			{Binding: bindingImage, Type: driver.DescriptorCombinedImageSampler, View: want.view, Sampler: want.sampler, Layout: want.layout},
			{Binding: bindingSampler, Type: driver.DescriptorSampler, Sampler: want.sampler},
		})
		s.bound = want
	}
	return s.set, nil
}

// releaseSet frees the object's set for rt, if any.
func (o *Object) releaseSet(rt *RenderTarget) {
	if s, ok := o.sets[rt]; ok {
		s.set.Destroy()
		delete(o.sets, rt)
	}
}

// Destroy removes the object from its world and frees its uniform buffer
// and descriptor sets. The mesh and image are left alone.
func (o *Object) Destroy() {
	if o == nil || o.world == nil {
		return
	}
	o.world.removeObject(o)
	o.release()
}

func (o *Object) release() {
	for rt := range o.sets {
		o.releaseSet(rt)
	}
	o.ubo.destroy()
	o.world = nil
}
