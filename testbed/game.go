package testbed

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/dyne/engine"
	"github.com/spaghettifunk/dyne/engine/core"
	"github.com/spaghettifunk/dyne/engine/scene"
)

type gameState struct {
	width  uint32
	height uint32

	flatVase core.ID
	removed  bool
}

var lightColors = []mgl32.Vec3{
	{1, 0.1, 0.1},
	{0.1, 0.1, 1},
	{0.1, 1, 0.1},
	{1, 1, 0.1},
	{0.1, 1, 1},
	{1, 1, 1},
}

func NewTestGame() *engine.Game {
	state := &gameState{}
	g := &engine.Game{
		Name:    "Dyne Testbed",
		Texture: "textures/checker.png",
		State:   state,
	}
	g.FnInitialize = state.initialize
	g.FnUpdate = state.update
	g.FnOnResize = state.onResize
	g.FnShutdown = state.shutdown
	return g
}

func (s *gameState) initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")

	meshes, err := e.LoadMeshes("models/flat_vase.obj", "models/smooth_vase.obj", "models/quad.obj")
	if err != nil {
		return err
	}
	flat, smooth, quad := meshes[0], meshes[1], meshes[2]
	world := e.Scene()

	vase, err := world.Spawn(scene.WithMesh(flat), scene.WithPosition(-0.5, 0.5, 0), scene.WithScale(3, 1.5, 3))
	if err != nil {
		return err
	}
	s.flatVase = vase.ID()
	if _, err := world.Spawn(scene.WithMesh(smooth), scene.WithPosition(0.5, 0.5, 0), scene.WithScale(3, 1.5, 3)); err != nil {
		return err
	}
	if _, err := world.Spawn(scene.WithMesh(quad), scene.WithPosition(0, 0.5, 0), scene.WithScale(3, 1, 3)); err != nil {
		return err
	}
	// the spawned objects hold their own references
	for _, h := range meshes {
		if err := world.ReleaseMesh(h); err != nil {
			return err
		}
	}

	for i, color := range lightColors {
		angle := float32(i) * 2 * mgl32.DegToRad(180) / float32(len(lightColors))
		rotate := mgl32.HomogRotate3D(angle, mgl32.Vec3{0, -1, 0})
		pos := rotate.Mul4x1(mgl32.Vec4{-1, -1, -1, 1}).Vec3()
		if _, err := world.NewPointLight(0.2, 0, color, scene.WithPosition(pos.X(), pos.Y(), pos.Z())); err != nil {
			return err
		}
	}
	core.LogInfo("testbed scene ready: %d objects", world.Len())
	return nil
}

// update removes the flat vase when R is pressed, which hands its mesh back
// to the engine for destruction.
func (s *gameState) update(e *engine.Engine, deltaTime float32) error {
	in := e.Input()
	if s.removed || !in.IsKeyDown(core.KEY_R) || in.WasKeyDown(core.KEY_R) {
		return nil
	}
	s.removed = true
	core.LogInfo("removing the flat vase")
	return e.Scene().Remove(s.flatVase)
}

func (s *gameState) onResize(width uint32, height uint32) error {
	s.width = width
	s.height = height
	return nil
}

func (s *gameState) shutdown() error {
	core.LogInfo("shutting down testbed...")
	return nil
}
