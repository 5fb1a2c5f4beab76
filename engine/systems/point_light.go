package systems

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/scene"
)

// LightOrbitSpeed is how fast lights circle the vertical axis, in radians
// per second.
const LightOrbitSpeed float32 = 0.5

type PointLightSystemConfig struct {
	RenderPass      renderer.RenderPass
	GlobalSetLayout *renderer.DescriptorSetLayout
	Shaders         ShaderPair
}

// PointLightSystem animates the scene's point lights, publishes them in the
// global uniforms and draws each one as a camera facing billboard.
type PointLightSystem struct {
	pipeline renderer.Pipeline
}

func NewPointLightSystem(device renderer.Device, cfg PointLightSystemConfig) (*PointLightSystem, error) {
	pc := renderer.DefaultPipelineConfig()
	pc.Name = "point_light"
	pc.VertexShader = cfg.Shaders.Vertex
	pc.FragmentShader = cfg.Shaders.Fragment
	pc.RenderPass = cfg.RenderPass
	pc.SetLayouts = []*renderer.DescriptorSetLayout{cfg.GlobalSetLayout}
	pc.PushConstants = []renderer.PushConstantRange{{
		Stages: renderer.ShaderStageAllGraphics,
		Offset: 0,
		Size:   renderer.PointLightPushSize,
	}}
	// the billboard corners are generated in the vertex shader
	pc.Vertex = nil
	pc.EnableAlphaBlending()

	pipeline, err := device.CreatePipeline(&pc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create point light pipeline")
	}
	return &PointLightSystem{pipeline: pipeline}, nil
}

func (s *PointLightSystem) Update(frame *FrameInfo, ubo *renderer.GlobalUBO) error {
	rotate := mgl32.HomogRotate3D(LightOrbitSpeed*frame.FrameTime, mgl32.Vec3{0, -1, 0})

	var count int
	var err error
	frame.Scene.Each(func(obj *scene.GameObject) {
		if obj.PointLight == nil || err != nil {
			return
		}
		if count >= renderer.MaxLights {
			err = errors.Wrapf(ErrTooManyLights, "limit is %d", renderer.MaxLights)
			return
		}
		obj.Transform.Translation = rotate.Mul4x1(obj.Transform.Translation.Vec4(1)).Vec3()
		ubo.PointLights[count] = renderer.PointLight{
			Position: obj.Transform.Translation.Vec4(1),
			Color:    obj.Color.Vec4(obj.PointLight.Intensity),
		}
		count++
	})
	ubo.NumLights = int32(count)
	return err
}

type lightDistance struct {
	obj  *scene.GameObject
	dist float32
}

// Render draws lights back to front so their blended edges composite
// correctly over each other.
func (s *PointLightSystem) Render(frame *FrameInfo) {
	eye := frame.Camera.Position()
	var lights []lightDistance
	frame.Scene.Each(func(obj *scene.GameObject) {
		if obj.PointLight == nil {
			return
		}
		offset := eye.Sub(obj.Transform.Translation)
		lights = append(lights, lightDistance{obj: obj, dist: offset.Dot(offset)})
	})
	sort.SliceStable(lights, func(i, j int) bool { return lights[i].dist > lights[j].dist })

	cmd := frame.CommandBuffer
	cmd.BindPipeline(s.pipeline)
	cmd.BindDescriptorSets(s.pipeline, 0, frame.GlobalDescriptorSet)
	for _, l := range lights {
		push := renderer.PointLightPushConstants{
			Position: l.obj.Transform.Translation.Vec4(1),
			Color:    l.obj.Color.Vec4(l.obj.PointLight.Intensity),
			Radius:   l.obj.Transform.Scale.X(),
		}
		cmd.PushConstants(s.pipeline, renderer.ShaderStageAllGraphics, 0, push.Bytes())
		cmd.Draw(6, 1, 0, 0)
	}
}

func (s *PointLightSystem) Destroy() {
	if s.pipeline != nil {
		s.pipeline.Destroy()
		s.pipeline = nil
	}
}
