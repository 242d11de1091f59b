package main

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/gogpu/ocgfx/ocd"
)

func TestCubeMesh(t *testing.T) {
	vertices, indices := cubeMesh(1)
	if len(vertices) != 24*8 || len(indices) != 36 {
		t.Fatalf("%d floats and %d indices, want 24 vertices and 36 indices", len(vertices), len(indices))
	}
	for i := 0; i < 24; i++ {
		v := vertices[i*8:]
		for _, c := range v[:3] {
			if c != 1 && c != -1 {
				t.Fatalf("vertex %d position %v is not a cube corner", i, v[:3])
			}
		}
		if u, w := v[3], v[4]; u < 0 || u > 1 || w < 0 || w > 1 {
			t.Errorf("vertex %d uv (%v, %v) outside [0, 1]", i, u, w)
		}
	}
}

func TestCubeScene(t *testing.T) {
	tex, err := ocd.NewImageBuilder(ocd.FormatRGBA8, 1, 1, []byte{255, 0, 0, 255})
	if err != nil {
		t.Fatal(err)
	}
	texData, err := tex.Render()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		material     []byte
		subresources int
	}{
		{"plain", nil, 0},
		{"textured", texData, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := cubeScene(tt.material)
			if err != nil {
				t.Fatalf("cubeScene() error = %v", err)
			}
			s, err := ocd.ReadScene(data)
			if err != nil {
				t.Fatalf("ReadScene() error = %v", err)
			}
			if len(s.Objects) != 3 {
				t.Fatalf("%d objects, want 3", len(s.Objects))
			}
			roots := s.Children(ocd.ObjectNone)
			if len(roots) != 1 || len(s.Children(roots[0])) != 2 {
				t.Errorf("object tree roots %v", roots)
			}
			comps := s.ObjectComponents(roots[0])
			if len(comps) != 1 {
				t.Fatalf("root has %d components", len(comps))
			}
			groups, err := s.MeshGroups(comps[0])
			if err != nil || len(groups) != 2 {
				t.Fatalf("root mesh groups %d, %v", len(groups), err)
			}
			if groups[0].VertexCount != 24 || groups[0].IndexCount != 36 {
				t.Errorf("group counts %d/%d", groups[0].VertexCount, groups[0].IndexCount)
			}
			if len(s.Subresources) != tt.subresources {
				t.Errorf("%d subresources, want %d", len(s.Subresources), tt.subresources)
			}

			var out bytes.Buffer
			if err := describe(&out, data, ocd.TypeScene); err != nil {
				t.Fatalf("describe() error = %v", err)
			}
			for _, want := range []string{"objects: 3", "root", "left", "right", "mesh component: 2 groups"} {
				if !strings.Contains(out.String(), want) {
					t.Errorf("description lacks %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestEncodeImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	tests := []struct {
		name    string
		mips    bool
		maxSize int
		want    []ocd.Mip
	}{
		{"as is", false, 0, []ocd.Mip{{Width: 8, Height: 4}}},
		{"mips", true, 0, []ocd.Mip{{Width: 8, Height: 4}, {Width: 4, Height: 2}, {Width: 2, Height: 1}, {Width: 1, Height: 1}}},
		{"scaled", false, 4, []ocd.Mip{{Width: 4, Height: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := encodeImage(src, ocd.FormatSRGBA8, tt.mips, tt.maxSize)
			if err != nil {
				t.Fatalf("encodeImage() error = %v", err)
			}
			img, err := ocd.ReadImage(data)
			if err != nil {
				t.Fatalf("ReadImage() error = %v", err)
			}
			if img.Format != ocd.FormatSRGBA8 || len(img.Mips) != len(tt.want) {
				t.Fatalf("format %v with %d mips, want %d", img.Format, len(img.Mips), len(tt.want))
			}
			for i, m := range img.Mips {
				if m.Width != tt.want[i].Width || m.Height != tt.want[i].Height {
					t.Errorf("mip %d is %dx%d, want %dx%d", i, m.Width, m.Height, tt.want[i].Width, tt.want[i].Height)
				}
			}
			if tt.maxSize > 0 {
				return
			}
			if px := img.MipData(0)[:4]; !bytes.Equal(px, []byte{200, 100, 50, 255}) {
				t.Errorf("first pixel = %v", px)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := parseFormat("rgba8"); err != nil || f != ocd.FormatRGBA8 {
		t.Errorf("parseFormat(rgba8) = %v, %v", f, err)
	}
	if _, err := parseFormat("bgra8"); err == nil {
		t.Error("parseFormat(bgra8) succeeded")
	}
}
