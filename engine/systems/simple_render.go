package systems

import (
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/scene"
)

type SimpleRenderSystemConfig struct {
	RenderPass      renderer.RenderPass
	GlobalSetLayout *renderer.DescriptorSetLayout
	Shaders         ShaderPair
}

// SimpleRenderSystem draws every object that has a mesh with the lit,
// textured pipeline.
type SimpleRenderSystem struct {
	pipeline renderer.Pipeline
}

func NewSimpleRenderSystem(device renderer.Device, cfg SimpleRenderSystemConfig) (*SimpleRenderSystem, error) {
	pc := renderer.DefaultPipelineConfig()
	pc.Name = "simple"
	pc.VertexShader = cfg.Shaders.Vertex
	pc.FragmentShader = cfg.Shaders.Fragment
	pc.RenderPass = cfg.RenderPass
	pc.SetLayouts = []*renderer.DescriptorSetLayout{cfg.GlobalSetLayout}
	pc.PushConstants = []renderer.PushConstantRange{{
		Stages: renderer.ShaderStageAllGraphics,
		Offset: 0,
		Size:   renderer.SimplePushConstantSize,
	}}
	pc.Vertex = renderer.VertexLayoutFor()

	pipeline, err := device.CreatePipeline(&pc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create simple render pipeline")
	}
	return &SimpleRenderSystem{pipeline: pipeline}, nil
}

func (s *SimpleRenderSystem) Update(frame *FrameInfo, ubo *renderer.GlobalUBO) error {
	return nil
}

func (s *SimpleRenderSystem) Render(frame *FrameInfo) {
	cmd := frame.CommandBuffer
	cmd.BindPipeline(s.pipeline)
	cmd.BindDescriptorSets(s.pipeline, 0, frame.GlobalDescriptorSet)

	frame.Scene.Each(func(obj *scene.GameObject) {
		if !obj.HasMesh() {
			return
		}
		mesh, ok := frame.Scene.Mesh(obj.Mesh)
		if !ok {
			return
		}
		push := renderer.SimplePushConstantData{
			ModelMatrix:  obj.Transform.Mat4(),
			NormalMatrix: obj.Transform.NormalMatrix().Mat4(),
		}
		cmd.PushConstants(s.pipeline, renderer.ShaderStageAllGraphics, 0, push.Bytes())
		mesh.Bind(cmd)
		mesh.Draw(cmd)
	})
}

func (s *SimpleRenderSystem) Destroy() {
	if s.pipeline != nil {
		s.pipeline.Destroy()
		s.pipeline = nil
	}
}
