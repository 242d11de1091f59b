package ocgfx

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/ocd"
)

// LoadedScene is what World.LoadScene created: one mesh and one object per
// drawable mesh group, plus images decoded from embedded materials.
type LoadedScene struct {
	world   *World
	meshes  []*Mesh
	images  []*Image
	objects []*Object
	// names maps each created object to the name of its scene object.
	names map[*Object]string
}

// LoadScene instantiates every mesh component of scene. Each object is
// placed with its world transform, the product of its ancestors' local
// transforms and its own. Groups with a topology the pipeline cannot draw
// are skipped. A group whose material is an embedded OCD image is drawn
// with that image.
func (w *World) LoadScene(scene *ocd.Scene) (*LoadedScene, error) {
	if scene == nil {
		return nil, errors.Wrap(ErrInvalidArgs, "nil scene")
	}
	ls := &LoadedScene{
		world: w,
		names: make(map[*Object]string),
	}
	materials := make(map[uint32]*Image)
	visited := make([]bool, len(scene.Objects))

	var visit func(idx uint32, parent mgl32.Mat4) error
	visit = func(idx uint32, parent mgl32.Mat4) error {
		if int(idx) >= len(scene.Objects) || visited[idx] {
			return errors.Wrapf(ErrInvalidArgs, "scene object %d referenced twice or out of range", idx)
		}
		visited[idx] = true
		rec := scene.Objects[idx]
		world := parent.Mul4(localTransform(rec))
		name, err := scene.ObjectName(idx)
		if err != nil {
			return classify(err, "scene object %d name", idx)
		}
		for _, comp := range scene.ObjectComponents(idx) {
			if comp.Type != ocd.ComponentTypeMesh {
				continue
			}
			groups, err := scene.MeshGroups(comp)
			if err != nil {
				return classify(err, "scene object %q mesh", name)
			}
			for gi, g := range groups {
				if err := ls.addGroup(scene, g, world, name, materials); err != nil {
					if errors.Is(err, ErrNotSupported) {
						Logger().Debug("ocgfx: skipping mesh group", "object", name, "group", gi, "err", err)
						continue
					}
					return err
				}
			}
		}
		for _, child := range scene.Children(idx) {
			if err := visit(child, world); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range scene.Children(ocd.ObjectNone) {
		if err := visit(root, mgl32.Ident4()); err != nil {
			ls.Destroy()
			return nil, err
		}
	}
	Logger().Info("ocgfx: scene loaded",
		"objects", len(ls.objects), "meshes", len(ls.meshes), "images", len(ls.images))
	return ls, nil
}

func (ls *LoadedScene) addGroup(scene *ocd.Scene, g ocd.MeshGroup, m mgl32.Mat4, name string, materials map[uint32]*Image) error {
	w := ls.world
	desc, err := MeshDescriptorFromOCD(g)
	if err != nil {
		return err
	}
	if desc.Topology != gputypes.PrimitiveTopologyTriangleList {
		return errors.Wrapf(ErrNotSupported, "topology %v", desc.Topology)
	}
	mesh, err := w.ctx.CreateMesh(desc)
	if err != nil {
		return err
	}
	ls.meshes = append(ls.meshes, mesh)
	obj, err := w.CreateObject(mesh)
	if err != nil {
		return err
	}
	ls.objects = append(ls.objects, obj)
	ls.names[obj] = name
	obj.SetMatrix(m)

	if g.MaterialIndex == ocd.NoSubresource {
		return nil
	}
	img, ok := materials[g.MaterialIndex]
	if !ok {
		img, err = ls.loadMaterial(scene, g.MaterialIndex)
		if err != nil {
			return err
		}
		materials[g.MaterialIndex] = img
	}
	obj.SetImage(img)
	return nil
}

// loadMaterial decodes an embedded OCD image subresource. Anything else
// yields nil and the object keeps the world image.
func (ls *LoadedScene) loadMaterial(scene *ocd.Scene, idx uint32) (*Image, error) {
	if !scene.Subresources[idx].Internal() {
		path, _ := scene.SubresourcePath(idx)
		Logger().Debug("ocgfx: external material not loaded", "path", path)
		return nil, nil
	}
	data, err := scene.SubresourceData(idx)
	if err != nil {
		return nil, classify(err, "material %d", idx)
	}
	if t, err := ocd.DetectType(data); err != nil || t != ocd.TypeImage {
		return nil, nil
	}
	src, err := ocd.ReadImage(data)
	if err != nil {
		return nil, classify(err, "material %d", idx)
	}
	img, err := ls.world.ctx.CreateImageFromOCD(src)
	if err != nil {
		return nil, err
	}
	ls.images = append(ls.images, img)
	return img, nil
}

// localTransform is translate * rotate * scale of one scene object.
func localTransform(o ocd.Object) mgl32.Mat4 {
	t := mgl32.Translate3D(o.Position[0], o.Position[1], o.Position[2])
	q := mgl32.Quat{W: o.Rotation[3], V: mgl32.Vec3{o.Rotation[0], o.Rotation[1], o.Rotation[2]}}
	s := mgl32.Scale3D(o.Scale[0], o.Scale[1], o.Scale[2])
	return t.Mul4(q.Normalize().Mat4()).Mul4(s)
}

// Objects returns the created objects.
func (ls *LoadedScene) Objects() []*Object { return ls.objects }

// Name returns the scene object name o was created for.
func (ls *LoadedScene) Name(o *Object) string { return ls.names[o] }

// Destroy frees the objects, meshes and images of the scene.
func (ls *LoadedScene) Destroy() {
	if ls == nil {
		return
	}
	for _, o := range ls.objects {
		o.Destroy()
	}
	for _, m := range ls.meshes {
		m.Destroy()
	}
	for _, img := range ls.images {
		img.Destroy()
	}
	ls.objects, ls.meshes, ls.images = nil, nil, nil
}
