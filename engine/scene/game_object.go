package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/dyne/engine/core"
	dmath "github.com/spaghettifunk/dyne/engine/math"
)

const (
	DefaultLightIntensity float32 = 10
	DefaultLightRadius    float32 = 0.1
)

type PointLightComponent struct {
	Intensity float32
}

// GameObject is a transform with an optional mesh and an optional point
// light. For lights, Transform.Scale.X() is the billboard radius.
type GameObject struct {
	id core.ID

	Color      mgl32.Vec3
	Transform  dmath.Transform
	Mesh       MeshHandle
	PointLight *PointLightComponent
}

func (g *GameObject) ID() core.ID {
	return g.id
}

func (g *GameObject) HasMesh() bool {
	return g.Mesh.Valid()
}

// GameObjectOption is a functional option applied when the scene spawns an object.
type GameObjectOption func(*GameObject)

func WithPosition(x, y, z float32) GameObjectOption {
	return func(g *GameObject) {
		g.Transform.Translation = mgl32.Vec3{x, y, z}
	}
}

func WithScale(x, y, z float32) GameObjectOption {
	return func(g *GameObject) {
		g.Transform.Scale = mgl32.Vec3{x, y, z}
	}
}

// WithRotation sets the Tait-Bryan angles in radians.
func WithRotation(x, y, z float32) GameObjectOption {
	return func(g *GameObject) {
		g.Transform.Rotation = mgl32.Vec3{x, y, z}
	}
}

func WithTransform(t dmath.Transform) GameObjectOption {
	return func(g *GameObject) {
		g.Transform = t
	}
}

func WithColor(c mgl32.Vec3) GameObjectOption {
	return func(g *GameObject) {
		g.Color = c
	}
}

// WithMesh makes the object reference the mesh. The scene takes a
// reference on spawn and drops it when the object is removed.
func WithMesh(h MeshHandle) GameObjectOption {
	return func(g *GameObject) {
		g.Mesh = h
	}
}

func WithPointLight(intensity, radius float32) GameObjectOption {
	return func(g *GameObject) {
		g.PointLight = &PointLightComponent{Intensity: intensity}
		g.Transform.Scale = mgl32.Vec3{radius, g.Transform.Scale.Y(), g.Transform.Scale.Z()}
	}
}
