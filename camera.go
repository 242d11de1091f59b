package ocgfx

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ClipCorrection maps the engine's clip space (+Y up, depth -1..1) onto
// the device's (+Y down, depth 0..1). Render targets apply it as
// ClipCorrection() * projection.
func ClipCorrection() mgl32.Mat4 {
	return mgl32.Mat4{
		1, 0, 0, 0,
		0, -1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
}

// Camera is a projection plus a rigid view transform.
type Camera struct {
	projection mgl32.Mat4
	position   mgl32.Vec3
	rotation   mgl32.Quat
}

// NewPerspectiveCamera returns a camera at the origin looking down -Z.
// fovY is in radians.
func NewPerspectiveCamera(fovY, aspect, near, far float32) *Camera {
	c := &Camera{rotation: mgl32.QuatIdent()}
	c.SetPerspective(fovY, aspect, near, far)
	return c
}

// NewOrthographicCamera returns an orthographic camera at the origin.
func NewOrthographicCamera(left, right, bottom, top, near, far float32) *Camera {
	c := &Camera{rotation: mgl32.QuatIdent()}
	c.SetOrthographic(left, right, bottom, top, near, far)
	return c
}

// SetPerspective replaces the projection.
func (c *Camera) SetPerspective(fovY, aspect, near, far float32) {
	c.projection = mgl32.Perspective(fovY, aspect, near, far)
}

// SetOrthographic replaces the projection.
func (c *Camera) SetOrthographic(left, right, bottom, top, near, far float32) {
	c.projection = mgl32.Ortho(left, right, bottom, top, near, far)
}

// Projection returns the projection without clip correction.
func (c *Camera) Projection() mgl32.Mat4 { return c.projection }

// View returns the world-to-camera transform.
func (c *Camera) View() mgl32.Mat4 {
	p := c.position.Mul(-1)
	return c.rotation.Inverse().Mat4().Mul4(mgl32.Translate3D(p[0], p[1], p[2]))
}

// SetPosition moves the camera.
func (c *Camera) SetPosition(p mgl32.Vec3) { c.position = p }

// Position returns the camera position.
func (c *Camera) Position() mgl32.Vec3 { return c.position }

// SetRotation replaces the camera orientation.
func (c *Camera) SetRotation(q mgl32.Quat) { c.rotation = q.Normalize() }

// Rotation returns the camera orientation.
func (c *Camera) Rotation() mgl32.Quat { return c.rotation }

// Rotate applies q after the current orientation.
func (c *Camera) Rotate(q mgl32.Quat) { c.rotation = q.Mul(c.rotation).Normalize() }

// RotateX rotates by angle radians about the world X axis.
func (c *Camera) RotateX(angle float32) { c.Rotate(mgl32.QuatRotate(angle, mgl32.Vec3{1, 0, 0})) }

// RotateY rotates by angle radians about the world Y axis.
func (c *Camera) RotateY(angle float32) { c.Rotate(mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0})) }
