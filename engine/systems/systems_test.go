package systems

import (
	"encoding/binary"
	"math"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/renderer/rendertest"
	"github.com/spaghettifunk/dyne/engine/scene"
)

type fixture struct {
	device  *rendertest.Device
	texture renderer.Texture
	pass    renderer.RenderPass
	cmd     *rendertest.CommandBuffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	device := rendertest.NewDevice()
	sc, err := device.CreateSwapchain(renderer.Extent{Width: 800, Height: 600}, nil)
	require.NoError(t, err)
	tex, err := device.CreateTexture(renderer.TextureDesc{Name: "white", Width: 1, Height: 1, Pixels: []byte{255, 255, 255, 255}})
	require.NoError(t, err)
	cmds, err := device.AllocateCommandBuffers(1)
	require.NoError(t, err)
	cmd := cmds[0].(*rendertest.CommandBuffer)
	require.NoError(t, cmd.Begin())
	return &fixture{device: device, texture: tex, pass: sc.RenderPass(), cmd: cmd}
}

func (f *fixture) config() SystemManagerConfig {
	shaders := ShaderPair{Vertex: rendertest.SPIRV(), Fragment: rendertest.SPIRV()}
	return SystemManagerConfig{
		RenderPass:        f.pass,
		SimpleShaders:     shaders,
		PointLightShaders: shaders,
		Texture:           f.texture,
	}
}

func (f *fixture) frame(s *scene.Scene, index int) *FrameInfo {
	return &FrameInfo{
		FrameIndex:    index,
		FrameTime:     0,
		CommandBuffer: f.cmd,
		Camera:        scene.NewCamera(),
		Scene:         s,
	}
}

func float32At(b []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[offset:]))
}

func TestSystemManagerBuildsGlobalState(t *testing.T) {
	f := newFixture(t)
	sm, err := NewSystemManager(f.device, f.config())
	require.NoError(t, err)

	require.Len(t, f.device.Pipelines, 2)
	simple, lights := f.device.Pipelines[0].Config, f.device.Pipelines[1].Config
	assert.Equal(t, "simple", simple.Name)
	assert.NotNil(t, simple.Vertex)
	assert.Equal(t, renderer.SimplePushConstantSize, simple.PushConstants[0].Size)
	assert.Equal(t, uint32(128), simple.PushConstants[0].Size)
	assert.Equal(t, "point_light", lights.Name)
	assert.Nil(t, lights.Vertex)
	assert.True(t, lights.AlphaBlend)

	for i := 0; i < renderer.MaxFramesInFlight; i++ {
		set := rendertest.AsSet(sm.GlobalSet(i))
		require.NotNil(t, set)
		assert.Contains(t, set.Writes, uint32(0))
		assert.Contains(t, set.Writes, uint32(1))
		assert.Equal(t, f.texture, set.Writes[1].Image.Texture)
	}
	assert.NotSame(t, rendertest.AsSet(sm.GlobalSet(0)), rendertest.AsSet(sm.GlobalSet(1)))

	sm.Shutdown()
	f.texture.Destroy()
	assert.Equal(t, 0, f.device.Tracker.Count(), "every resource is released")
}

func TestSystemManagerNeedsTexture(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Texture = nil
	_, err := NewSystemManager(f.device, cfg)
	assert.Error(t, err)
}

func TestSystemManagerCleansUpOnPipelineFailure(t *testing.T) {
	f := newFixture(t)
	f.device.FailPipelineCreate = errors.New("no pipelines today")
	_, err := NewSystemManager(f.device, f.config())
	require.Error(t, err)

	for _, a := range f.device.Allocations {
		assert.True(t, a.Destroyed)
	}
	for _, p := range f.device.Pools {
		assert.True(t, p.Destroyed)
	}
}

func TestUpdateWritesGlobalUniforms(t *testing.T) {
	f := newFixture(t)
	sm, err := NewSystemManager(f.device, f.config())
	require.NoError(t, err)
	defer sm.Shutdown()

	s := scene.New()
	_, err = s.NewPointLight(2, 0.1, mgl32.Vec3{1, 0, 0}, scene.WithPosition(1, 0, 0))
	require.NoError(t, err)
	_, err = s.NewPointLight(3, 0.1, mgl32.Vec3{0, 1, 0}, scene.WithPosition(0, -1, 2))
	require.NoError(t, err)

	frame := f.frame(s, 1)
	frame.Camera.SetPerspectiveProjection(1, 1.5, 0.1, 100)
	frame.Camera.SetViewTarget(mgl32.Vec3{0, 0, -3}, mgl32.Vec3{}, mgl32.Vec3{0, -1, 0})
	require.NoError(t, sm.Update(frame))
	assert.Equal(t, sm.GlobalSet(1), frame.GlobalDescriptorSet)

	var written *rendertest.Allocation
	for _, a := range f.device.Allocations {
		if a.Usage == renderer.BufferUsageUniform && len(a.Flushes) > 0 {
			written = a
		}
	}
	require.NotNil(t, written)
	ubo := (*renderer.GlobalUBO)(unsafe.Pointer(&written.Data[0]))
	assert.Equal(t, int32(2), ubo.NumLights)
	assert.Equal(t, frame.Camera.Projection(), ubo.Projection)
	assert.Equal(t, mgl32.Vec4{0, 0, -3, 1}, ubo.CameraPosition)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 2}, ubo.PointLights[0].Color)
	assert.Equal(t, mgl32.Vec4{0, -1, 2, 1}, ubo.PointLights[1].Position)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 0.002}, ubo.AmbientLightColor)
}

func TestPointLightsOrbit(t *testing.T) {
	f := newFixture(t)
	sys, err := NewPointLightSystem(f.device, PointLightSystemConfig{
		RenderPass: f.pass,
		Shaders:    ShaderPair{Vertex: rendertest.SPIRV(), Fragment: rendertest.SPIRV()},
	})
	require.NoError(t, err)
	defer sys.Destroy()

	s := scene.New()
	light, err := s.NewPointLight(1, 0.1, mgl32.Vec3{1, 1, 1}, scene.WithPosition(1, 0, 0))
	require.NoError(t, err)

	frame := f.frame(s, 0)
	frame.FrameTime = math.Pi
	ubo := renderer.NewGlobalUBO()
	require.NoError(t, sys.Update(frame, &ubo))

	// a quarter turn around -Y takes +X to +Z
	got := light.Transform.Translation
	assert.InDelta(t, 0, got.X(), 1e-5)
	assert.InDelta(t, 0, got.Y(), 1e-5)
	assert.InDelta(t, 1, got.Z(), 1e-5)
}

func TestTooManyPointLights(t *testing.T) {
	f := newFixture(t)
	sys, err := NewPointLightSystem(f.device, PointLightSystemConfig{
		RenderPass: f.pass,
		Shaders:    ShaderPair{Vertex: rendertest.SPIRV(), Fragment: rendertest.SPIRV()},
	})
	require.NoError(t, err)
	defer sys.Destroy()

	s := scene.New()
	for i := 0; i <= renderer.MaxLights; i++ {
		_, err := s.NewPointLight(1, 0.1, mgl32.Vec3{1, 1, 1})
		require.NoError(t, err)
	}
	ubo := renderer.NewGlobalUBO()
	err = sys.Update(f.frame(s, 0), &ubo)
	assert.True(t, errors.Is(err, ErrTooManyLights))
}

func TestPointLightsRenderBackToFront(t *testing.T) {
	f := newFixture(t)
	sys, err := NewPointLightSystem(f.device, PointLightSystemConfig{
		RenderPass: f.pass,
		Shaders:    ShaderPair{Vertex: rendertest.SPIRV(), Fragment: rendertest.SPIRV()},
	})
	require.NoError(t, err)
	defer sys.Destroy()

	s := scene.New()
	for _, z := range []float32{1, 5, 3} {
		_, err := s.NewPointLight(1, 0.25, mgl32.Vec3{1, 1, 1}, scene.WithPosition(0, 0, z))
		require.NoError(t, err)
	}
	_, err = s.Spawn(scene.WithPosition(0, 0, 10))
	require.NoError(t, err)

	sys.Render(f.frame(s, 0))

	require.Len(t, f.cmd.Pushes, 3)
	var order []float32
	for _, push := range f.cmd.Pushes {
		order = append(order, float32At(push, 8))
		assert.Equal(t, float32(0.25), float32At(push, 32))
	}
	assert.Equal(t, []float32{5, 3, 1}, order)
	assert.Equal(t, []string{
		"BindPipeline", "BindDescriptorSets",
		"PushConstants", "Draw", "PushConstants", "Draw", "PushConstants", "Draw",
	}, f.cmd.Names())
}

func TestSimpleRenderSystemDrawsMeshes(t *testing.T) {
	f := newFixture(t)
	sys, err := NewSimpleRenderSystem(f.device, SimpleRenderSystemConfig{
		RenderPass: f.pass,
		Shaders:    ShaderPair{Vertex: rendertest.SPIRV(), Fragment: rendertest.SPIRV()},
	})
	require.NoError(t, err)
	defer sys.Destroy()

	s := scene.New()
	vase := rendertest.NewMesh("vase")
	h := s.AddMesh("vase", vase)
	_, err = s.Spawn(scene.WithMesh(h), scene.WithPosition(-0.5, 0.5, 0))
	require.NoError(t, err)
	_, err = s.Spawn(scene.WithMesh(h), scene.WithScale(3, 1.5, 3))
	require.NoError(t, err)
	_, err = s.NewPointLight(1, 0.1, mgl32.Vec3{})
	require.NoError(t, err)

	sys.Render(f.frame(s, 0))

	assert.Equal(t, 2, vase.Binds)
	assert.Equal(t, 2, vase.Draws)
	require.Len(t, f.cmd.Pushes, 2)
	assert.Len(t, f.cmd.Pushes[0], 128)
	// model matrix translation lives in column 3
	assert.Equal(t, float32(-0.5), float32At(f.cmd.Pushes[0], 48))
	assert.Equal(t, float32(3), float32At(f.cmd.Pushes[1], 0))
}
