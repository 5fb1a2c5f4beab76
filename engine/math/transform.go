package math

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Transform places an object in world space. Rotation holds Tait-Bryan
// angles in radians applied in Y(1), X(2), Z(3) order, so the model matrix
// is translate * Ry * Rx * Rz * scale.
type Transform struct {
	Translation mgl32.Vec3
	Scale       mgl32.Vec3
	Rotation    mgl32.Vec3
}

func TransformCreate() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

func TransformFromPosition(position mgl32.Vec3) Transform {
	t := TransformCreate()
	t.Translation = position
	return t
}

func TransformFromPositionRotationScale(position, rotation, scale mgl32.Vec3) Transform {
	return Transform{Translation: position, Rotation: rotation, Scale: scale}
}

func (t *Transform) Translate(delta mgl32.Vec3) {
	t.Translation = t.Translation.Add(delta)
}

func (t *Transform) Rotate(delta mgl32.Vec3) {
	t.Rotation = t.Rotation.Add(delta)
}

func (t Transform) angles() (c1, s1, c2, s2, c3, s3 float32) {
	c3, s3 = math32.Cos(t.Rotation.Z()), math32.Sin(t.Rotation.Z())
	c2, s2 = math32.Cos(t.Rotation.X()), math32.Sin(t.Rotation.X())
	c1, s1 = math32.Cos(t.Rotation.Y()), math32.Sin(t.Rotation.Y())
	return
}

// Mat4 returns the model matrix.
func (t Transform) Mat4() mgl32.Mat4 {
	c1, s1, c2, s2, c3, s3 := t.angles()
	sx, sy, sz := t.Scale.X(), t.Scale.Y(), t.Scale.Z()
	return mgl32.Mat4{
		sx * (c1*c3 + s1*s2*s3), sx * (c2 * s3), sx * (c1*s2*s3 - c3*s1), 0,
		sy * (c3*s1*s2 - c1*s3), sy * (c2 * c3), sy * (c1*c3*s2 + s1*s3), 0,
		sz * (c2 * s1), sz * (-s2), sz * (c1 * c2), 0,
		t.Translation.X(), t.Translation.Y(), t.Translation.Z(), 1,
	}
}

// NormalMatrix returns the inverse transpose of the model matrix's upper 3x3.
func (t Transform) NormalMatrix() mgl32.Mat3 {
	c1, s1, c2, s2, c3, s3 := t.angles()
	ix, iy, iz := 1/t.Scale.X(), 1/t.Scale.Y(), 1/t.Scale.Z()
	return mgl32.Mat3{
		ix * (c1*c3 + s1*s2*s3), ix * (c2 * s3), ix * (c1*s2*s3 - c3*s1),
		iy * (c3*s1*s2 - c1*s3), iy * (c2 * c3), iy * (c1*c3*s2 + s1*s3),
		iz * (c2 * s1), iz * (-s2), iz * (c1 * c2),
	}
}
