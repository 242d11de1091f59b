package main

import (
	"flag"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/ocgfx/ocd"
)

func runCube(args []string) error {
	flags := flag.NewFlagSet("cube", flag.ContinueOnError)
	out := flags.String("out", "", "destination OCD file")
	texture := flags.String("texture", "", "OCD image embedded as the material of the textured groups")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		flags.Usage()
		return flag.ErrHelp
	}

	var material []byte
	if *texture != "" {
		data, err := os.ReadFile(*texture)
		if err != nil {
			return errors.Wrapf(err, "read %s", *texture)
		}
		if t, err := ocd.DetectType(data); err != nil || t != ocd.TypeImage {
			return errors.Newf("%s is not an OCD image", *texture)
		}
		material = data
	}
	data, err := cubeScene(material)
	if err != nil {
		return err
	}
	return writeFile(*out, data)
}

// cubeScene builds a root object holding a large cube and a smaller
// textured one, with two spinning cubes as children.
func cubeScene(material []byte) ([]byte, error) {
	vertices, indices := cubeMesh(1)
	small, _ := cubeMesh(0.4)
	group := ocd.MeshGroupData{
		Primitive:    ocd.PrimitiveTriangles,
		VertexFormat: ocd.VertexFormatP3T2N3,
		Vertices:     ocd.VertexBytes(vertices),
		IndexFormat:  ocd.IndexFormatUint16,
		Indices:      ocd.IndexBytes16(indices),
	}
	textured := group
	textured.Vertices = ocd.VertexBytes(small)
	textured.EmbeddedMaterial = material

	b := ocd.NewSceneBuilder()
	one := mgl32.Vec3{1, 1, 1}
	if _, err := b.BeginObject("root", mgl32.Vec3{}, mgl32.QuatIdent(), one); err != nil {
		return nil, err
	}
	if err := b.BeginMeshComponent(); err != nil {
		return nil, err
	}
	for _, g := range []ocd.MeshGroupData{group, textured} {
		if err := b.AddMeshGroup(g); err != nil {
			return nil, err
		}
	}
	if err := b.EndMeshComponent(); err != nil {
		return nil, err
	}

	children := []struct {
		name     string
		position mgl32.Vec3
		angle    float32
	}{
		{"left", mgl32.Vec3{-3, 0, 0}, mgl32.DegToRad(30)},
		{"right", mgl32.Vec3{3, 0, 0}, mgl32.DegToRad(-30)},
	}
	for _, c := range children {
		if _, err := b.BeginObject(c.name, c.position, mgl32.QuatRotate(c.angle, mgl32.Vec3{0, 1, 0}), mgl32.Vec3{0.5, 0.5, 0.5}); err != nil {
			return nil, err
		}
		if err := b.BeginMeshComponent(); err != nil {
			return nil, err
		}
		if err := b.AddMeshGroup(textured); err != nil {
			return nil, err
		}
		if err := b.EndMeshComponent(); err != nil {
			return nil, err
		}
		if err := b.EndObject(); err != nil {
			return nil, err
		}
	}
	if err := b.EndObject(); err != nil {
		return nil, err
	}
	logger.Info("scene", "objects", b.ObjectCount(), "textured", material != nil)
	return b.Render()
}

// cubeMesh returns the P3T2N3 vertices and triangle-list indices of an
// axis-aligned cube with half extent h. Each face has its own four
// vertices so normals and texture coordinates stay per face.
func cubeMesh(h float32) ([]float32, []uint16) {
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	vertices := make([]float32, 0, len(faces)*4*8)
	indices := make([]uint16, 0, len(faces)*6)
	for i, f := range faces {
		for _, c := range corners {
			p := f.n.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1])).Mul(h)
			vertices = append(vertices,
				p[0], p[1], p[2],
				(c[0]+1)/2, (1-c[1])/2,
				f.n[0], f.n[1], f.n[2])
		}
		base := uint16(i * 4)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}
