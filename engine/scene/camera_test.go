package scene

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-5

func assertVec4(t *testing.T, want, got mgl32.Vec4) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], tolerance, "component %d of %v", i, got)
	}
}

func TestPerspectiveDepthRange(t *testing.T) {
	c := NewCamera()
	c.SetPerspectiveProjection(mgl32.DegToRad(50), 1.5, 0.1, 100)

	near := c.Projection().Mul4x1(mgl32.Vec4{0, 0, 0.1, 1})
	far := c.Projection().Mul4x1(mgl32.Vec4{0, 0, 100, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), tolerance)
	assert.InDelta(t, 1, far.Z()/far.W(), tolerance)

	tanHalf := math32.Tan(mgl32.DegToRad(25))
	assert.InDelta(t, 1/tanHalf, c.Projection()[5], tolerance)
	assert.InDelta(t, 1/(1.5*tanHalf), c.Projection()[0], tolerance)
}

func TestOrthographicMapsBoxToClip(t *testing.T) {
	c := NewCamera()
	c.SetOrthographicProjection(-2, 2, -1, 1, 0, 10)

	assertVec4(t, mgl32.Vec4{-1, -1, 0, 1}, c.Projection().Mul4x1(mgl32.Vec4{-2, -1, 0, 1}))
	assertVec4(t, mgl32.Vec4{1, 1, 1, 1}, c.Projection().Mul4x1(mgl32.Vec4{2, 1, 10, 1}))
}

func TestViewTargetLooksDownPositiveZ(t *testing.T) {
	c := NewCamera()
	pos := mgl32.Vec3{1, -2, -5}
	c.SetViewTarget(pos, mgl32.Vec3{1, -2, 0}, mgl32.Vec3{0, -1, 0})

	// the target lies straight ahead at distance 5
	assertVec4(t, mgl32.Vec4{0, 0, 5, 1}, c.View().Mul4x1(mgl32.Vec4{1, -2, 0, 1}))
	assert.Equal(t, pos, c.Position())
}

func TestInverseViewUndoesView(t *testing.T) {
	c := NewCamera()
	c.SetViewYXZ(mgl32.Vec3{0.5, -1, -2.5}, mgl32.Vec3{0.3, 1.2, -0.1})

	product := c.InverseView().Mul4(c.View())
	ident := mgl32.Ident4()
	for i := range ident {
		assert.InDelta(t, ident[i], product[i], tolerance)
	}
	assert.InDelta(t, 0.5, c.Position().X(), tolerance)
	assert.InDelta(t, -2.5, c.Position().Z(), tolerance)
}

func TestViewYXZMatchesDirection(t *testing.T) {
	yaw := float32(0.7)
	a := NewCamera()
	a.SetViewYXZ(mgl32.Vec3{}, mgl32.Vec3{0, yaw, 0})
	b := NewCamera()
	b.SetViewDirection(mgl32.Vec3{}, mgl32.Vec3{math32.Sin(yaw), 0, math32.Cos(yaw)}, mgl32.Vec3{0, -1, 0})

	for i := range a.View() {
		assert.InDelta(t, b.View()[i], a.View()[i], tolerance)
	}
}
