package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/dyne/engine/core"
	dmath "github.com/spaghettifunk/dyne/engine/math"
)

// MaxPitch keeps the camera from flipping over the vertical.
const MaxPitch float32 = 1.5

const epsilon float32 = 1.1920929e-07

type KeyState interface {
	IsKeyDown(key core.KeyCode) bool
}

type KeyMappings struct {
	MoveLeft     core.KeyCode
	MoveRight    core.KeyCode
	MoveForward  core.KeyCode
	MoveBackward core.KeyCode
	MoveUp       core.KeyCode
	MoveDown     core.KeyCode
	LookLeft     core.KeyCode
	LookRight    core.KeyCode
	LookUp       core.KeyCode
	LookDown     core.KeyCode
	BoostLeft    core.KeyCode
	BoostRight   core.KeyCode
}

func DefaultKeyMappings() KeyMappings {
	return KeyMappings{
		MoveLeft:     core.KEY_A,
		MoveRight:    core.KEY_D,
		MoveForward:  core.KEY_W,
		MoveBackward: core.KEY_S,
		MoveUp:       core.KEY_E,
		MoveDown:     core.KEY_Q,
		LookLeft:     core.KEY_LEFT,
		LookRight:    core.KEY_RIGHT,
		LookUp:       core.KEY_UP,
		LookDown:     core.KEY_DOWN,
		BoostLeft:    core.KEY_LSHIFT,
		BoostRight:   core.KEY_RSHIFT,
	}
}

// MovementController flies a transform around: keys or mouse look, movement
// relative to the current yaw and pitch. Speeds are per second.
type MovementController struct {
	Keys       KeyMappings
	MoveSpeed  float32
	LookSpeed  float32
	BoostScale float32
}

func NewMovementController(moveSpeed, lookSpeed, boostScale float32) *MovementController {
	return &MovementController{
		Keys:       DefaultKeyMappings(),
		MoveSpeed:  moveSpeed,
		LookSpeed:  lookSpeed,
		BoostScale: boostScale,
	}
}

// Move updates t for a frame of dt seconds. look is the mouse offset since
// the last frame, x to the right and y up; pass zero when the cursor is free.
func (mc *MovementController) Move(keys KeyState, look mgl32.Vec2, dt float32, t *dmath.Transform) {
	rotate := mgl32.Vec3{look.Y(), look.X(), 0}
	if keys.IsKeyDown(mc.Keys.LookRight) {
		rotate[1]++
	}
	if keys.IsKeyDown(mc.Keys.LookLeft) {
		rotate[1]--
	}
	if keys.IsKeyDown(mc.Keys.LookUp) {
		rotate[0]++
	}
	if keys.IsKeyDown(mc.Keys.LookDown) {
		rotate[0]--
	}
	if rotate.Dot(rotate) > epsilon {
		t.Rotate(rotate.Normalize().Mul(mc.LookSpeed * dt))
	}

	t.Rotation[0] = dmath.Clamp(t.Rotation.X(), -MaxPitch, MaxPitch)
	t.Rotation[1] = dmath.WrapAngle(t.Rotation.Y())

	pitch, yaw := t.Rotation.X(), t.Rotation.Y()
	forward := mgl32.Vec3{math32.Sin(yaw), -math32.Sin(pitch), math32.Cos(yaw)}
	right := mgl32.Vec3{forward.Z(), 0, -forward.X()}
	up := mgl32.Vec3{0, -1, 0}

	var move mgl32.Vec3
	if keys.IsKeyDown(mc.Keys.MoveForward) {
		move = move.Add(forward)
	}
	if keys.IsKeyDown(mc.Keys.MoveBackward) {
		move = move.Sub(forward)
	}
	if keys.IsKeyDown(mc.Keys.MoveRight) {
		move = move.Add(right)
	}
	if keys.IsKeyDown(mc.Keys.MoveLeft) {
		move = move.Sub(right)
	}
	if keys.IsKeyDown(mc.Keys.MoveUp) {
		move = move.Add(up)
	}
	if keys.IsKeyDown(mc.Keys.MoveDown) {
		move = move.Sub(up)
	}

	speed := mc.MoveSpeed
	if keys.IsKeyDown(mc.Keys.BoostLeft) || keys.IsKeyDown(mc.Keys.BoostRight) {
		speed *= mc.BoostScale
	}
	if move.Dot(move) > epsilon {
		t.Translate(move.Normalize().Mul(speed * dt))
	}
}
