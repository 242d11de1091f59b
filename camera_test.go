package ocgfx

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const eps = 1e-5

func TestClipCorrection(t *testing.T) {
	tests := []struct {
		name string
		in   mgl32.Vec4
		want mgl32.Vec4
	}{
		{"near plane", mgl32.Vec4{0, 0, -1, 1}, mgl32.Vec4{0, 0, 0, 1}},
		{"far plane", mgl32.Vec4{0, 0, 1, 1}, mgl32.Vec4{0, 0, 1, 1}},
		{"top flips down", mgl32.Vec4{0.5, 1, 0, 1}, mgl32.Vec4{0.5, -1, 0.5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClipCorrection().Mul4x1(tt.in); !got.ApproxEqualThreshold(tt.want, eps) {
				t.Errorf("ClipCorrection * %v = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCameraView(t *testing.T) {
	cam := NewPerspectiveCamera(mgl32.DegToRad(60), 4.0/3.0, 0.1, 100)
	cam.SetPosition(mgl32.Vec3{0, 0, 5})

	origin := cam.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !origin.ApproxEqualThreshold(mgl32.Vec4{0, 0, -5, 1}, eps) {
		t.Errorf("origin in view space = %v, want (0, 0, -5)", origin)
	}

	cam.RotateY(math.Pi / 2)
	// Turned left, the origin is now on the camera's right.
	p := cam.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !p.ApproxEqualThreshold(mgl32.Vec4{5, 0, 0, 1}, 1e-4) {
		t.Errorf("origin after rotation = %v, want (5, 0, 0)", p)
	}
	if got := cam.Rotation().Len(); math.Abs(float64(got)-1) > eps {
		t.Errorf("rotation length = %v, want unit", got)
	}
}

func TestCameraProjection(t *testing.T) {
	cam := NewPerspectiveCamera(mgl32.DegToRad(90), 1, 1, 10)
	clip := ClipCorrection().Mul4(cam.Projection())

	near := clip.Mul4x1(mgl32.Vec4{0, 0, -1, 1})
	far := clip.Mul4x1(mgl32.Vec4{0, 0, -10, 1})
	if z := near.Z() / near.W(); math.Abs(float64(z)) > eps {
		t.Errorf("near plane depth = %v, want 0", z)
	}
	if z := far.Z() / far.W(); math.Abs(float64(z)-1) > 1e-4 {
		t.Errorf("far plane depth = %v, want 1", z)
	}

	ortho := NewOrthographicCamera(-2, 2, -1, 1, 0, 10)
	corner := ortho.Projection().Mul4x1(mgl32.Vec4{2, 1, 0, 1})
	if !corner.ApproxEqualThreshold(mgl32.Vec4{1, 1, -1, 1}, eps) {
		t.Errorf("orthographic corner = %v, want (1, 1, -1)", corner)
	}
}
