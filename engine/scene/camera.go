package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera produces matrices for a right-handed world with +Y down in clip
// space and depth in [0, 1], as Vulkan expects.
type Camera struct {
	projection  mgl32.Mat4
	view        mgl32.Mat4
	inverseView mgl32.Mat4
}

func NewCamera() *Camera {
	return &Camera{
		projection:  mgl32.Ident4(),
		view:        mgl32.Ident4(),
		inverseView: mgl32.Ident4(),
	}
}

func (c *Camera) SetOrthographicProjection(left, right, top, bottom, near, far float32) {
	p := mgl32.Ident4()
	p[0] = 2 / (right - left)
	p[5] = 2 / (bottom - top)
	p[10] = 1 / (far - near)
	p[12] = -(right + left) / (right - left)
	p[13] = -(bottom + top) / (bottom - top)
	p[14] = -near / (far - near)
	c.projection = p
}

func (c *Camera) SetPerspectiveProjection(fovy, aspect, near, far float32) {
	tanHalfFovy := math32.Tan(fovy / 2)
	var p mgl32.Mat4
	p[0] = 1 / (aspect * tanHalfFovy)
	p[5] = 1 / tanHalfFovy
	p[10] = far / (far - near)
	p[11] = 1
	p[14] = -(far * near) / (far - near)
	c.projection = p
}

// setView builds the view matrix from an orthonormal basis u (right),
// v (down) and w (forward) and the camera position.
func (c *Camera) setView(u, v, w, position mgl32.Vec3) {
	view := mgl32.Ident4()
	inv := mgl32.Ident4()
	for i := 0; i < 3; i++ {
		view[i*4+0] = u[i]
		view[i*4+1] = v[i]
		view[i*4+2] = w[i]

		inv[0*4+i] = u[i]
		inv[1*4+i] = v[i]
		inv[2*4+i] = w[i]
		inv[3*4+i] = position[i]
	}
	view[12] = -u.Dot(position)
	view[13] = -v.Dot(position)
	view[14] = -w.Dot(position)
	c.view = view
	c.inverseView = inv
}

func (c *Camera) SetViewDirection(position, direction, up mgl32.Vec3) {
	w := direction.Normalize()
	u := w.Cross(up).Normalize()
	v := w.Cross(u)
	c.setView(u, v, w, position)
}

func (c *Camera) SetViewTarget(position, target, up mgl32.Vec3) {
	c.SetViewDirection(position, target.Sub(position), up)
}

// SetViewYXZ orients the camera with Tait-Bryan angles applied Y, X, Z,
// the same convention as Transform.
func (c *Camera) SetViewYXZ(position, rotation mgl32.Vec3) {
	c3, s3 := math32.Cos(rotation.Z()), math32.Sin(rotation.Z())
	c2, s2 := math32.Cos(rotation.X()), math32.Sin(rotation.X())
	c1, s1 := math32.Cos(rotation.Y()), math32.Sin(rotation.Y())
	u := mgl32.Vec3{c1*c3 + s1*s2*s3, c2 * s3, c1*s2*s3 - c3*s1}
	v := mgl32.Vec3{c3*s1*s2 - c1*s3, c2 * c3, c1*c3*s2 + s1*s3}
	w := mgl32.Vec3{c2 * s1, -s2, c1 * c2}
	c.setView(u, v, w, position)
}

func (c *Camera) Projection() mgl32.Mat4  { return c.projection }
func (c *Camera) View() mgl32.Mat4        { return c.view }
func (c *Camera) InverseView() mgl32.Mat4 { return c.inverseView }

// Position is the camera's world position.
func (c *Camera) Position() mgl32.Vec3 {
	return mgl32.Vec3{c.inverseView[12], c.inverseView[13], c.inverseView[14]}
}
