package systems

import (
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
	"github.com/spaghettifunk/dyne/engine/renderer"
)

type SystemManagerConfig struct {
	RenderPass        renderer.RenderPass
	SimpleShaders     ShaderPair
	PointLightShaders ShaderPair
	// Texture is bound at global binding 1. The caller keeps ownership.
	Texture renderer.Texture
}

// SystemManager owns the global descriptor state shared by every render
// system: one uniform buffer and one descriptor set per frame in flight.
type SystemManager struct {
	globalPool   *renderer.DescriptorPool
	globalLayout *renderer.DescriptorSetLayout
	uboBuffers   []*renderer.Buffer
	globalSets   []renderer.DescriptorSet
	systems      []RenderSystem
}

func NewSystemManager(device renderer.Device, cfg SystemManagerConfig) (*SystemManager, error) {
	sm := &SystemManager{}
	if err := sm.initialize(device, cfg); err != nil {
		sm.Shutdown()
		return nil, err
	}
	return sm, nil
}

func (sm *SystemManager) initialize(device renderer.Device, cfg SystemManagerConfig) error {
	if cfg.Texture == nil {
		return errors.New("system manager needs a texture for the global sampler")
	}

	pool, err := renderer.NewDescriptorPoolBuilder(device).
		SetMaxSets(renderer.MaxFramesInFlight).
		AddPoolSize(renderer.DescriptorTypeUniformBuffer, renderer.MaxFramesInFlight).
		AddPoolSize(renderer.DescriptorTypeCombinedImageSampler, renderer.MaxFramesInFlight).
		Build()
	if err != nil {
		return errors.Wrap(err, "failed to create global descriptor pool")
	}
	sm.globalPool = pool

	layout, err := renderer.NewDescriptorSetLayoutBuilder(device).
		AddBinding(0, renderer.DescriptorTypeUniformBuffer, renderer.ShaderStageAllGraphics).
		AddBinding(1, renderer.DescriptorTypeCombinedImageSampler, renderer.ShaderStageFragment).
		Build()
	if err != nil {
		return errors.Wrap(err, "failed to create global set layout")
	}
	sm.globalLayout = layout

	align := device.Limits().MinUniformBufferOffsetAlignment
	for i := 0; i < renderer.MaxFramesInFlight; i++ {
		ubo, err := renderer.NewBuffer(device, renderer.GlobalUBOSize, 1,
			renderer.BufferUsageUniform, renderer.MemoryHostVisible, align)
		if err != nil {
			return errors.Wrapf(err, "failed to create global uniform buffer %d", i)
		}
		sm.uboBuffers = append(sm.uboBuffers, ubo)
		if err := ubo.Map(); err != nil {
			return errors.Wrapf(err, "failed to map global uniform buffer %d", i)
		}

		set, err := renderer.NewDescriptorWriter(layout, pool).
			WriteBuffer(0, ubo.DescriptorInfo(renderer.WholeSize, 0)).
			WriteImage(1, renderer.ImageInfo{Texture: cfg.Texture}).
			Build()
		if err != nil {
			return errors.Wrapf(err, "failed to write global descriptor set %d", i)
		}
		sm.globalSets = append(sm.globalSets, set)
	}

	simple, err := NewSimpleRenderSystem(device, SimpleRenderSystemConfig{
		RenderPass:      cfg.RenderPass,
		GlobalSetLayout: layout,
		Shaders:         cfg.SimpleShaders,
	})
	if err != nil {
		return err
	}
	sm.systems = append(sm.systems, simple)

	lights, err := NewPointLightSystem(device, PointLightSystemConfig{
		RenderPass:      cfg.RenderPass,
		GlobalSetLayout: layout,
		Shaders:         cfg.PointLightShaders,
	})
	if err != nil {
		return err
	}
	sm.systems = append(sm.systems, lights)

	core.LogDebug("render systems initialized: %d systems, %d global sets", len(sm.systems), len(sm.globalSets))
	return nil
}

// GlobalSetLayout is set 0 of every render system pipeline.
func (sm *SystemManager) GlobalSetLayout() *renderer.DescriptorSetLayout {
	return sm.globalLayout
}

func (sm *SystemManager) GlobalSet(frameIndex int) renderer.DescriptorSet {
	return sm.globalSets[frameIndex]
}

// Update fills the frame's global uniforms from the camera and every
// system, then writes and flushes them. Call it before the render pass.
func (sm *SystemManager) Update(frame *FrameInfo) error {
	frame.GlobalDescriptorSet = sm.globalSets[frame.FrameIndex]

	ubo := renderer.NewGlobalUBO()
	ubo.Projection = frame.Camera.Projection()
	ubo.View = frame.Camera.View()
	ubo.CameraPosition = frame.Camera.Position().Vec4(1)
	for _, s := range sm.systems {
		if err := s.Update(frame, &ubo); err != nil {
			return err
		}
	}

	buf := sm.uboBuffers[frame.FrameIndex]
	if err := buf.Write(ubo.Bytes(), 0); err != nil {
		return errors.Wrap(err, "write global uniforms")
	}
	return errors.Wrap(buf.Flush(renderer.WholeSize, 0), "flush global uniforms")
}

// Render records every system, in registration order, into the active
// render pass.
func (sm *SystemManager) Render(frame *FrameInfo) {
	for _, s := range sm.systems {
		s.Render(frame)
	}
}

// Shutdown destroys the systems and the global descriptor state. The device
// must be idle.
func (sm *SystemManager) Shutdown() {
	for _, s := range sm.systems {
		s.Destroy()
	}
	sm.systems = nil
	for _, b := range sm.uboBuffers {
		b.Destroy()
	}
	sm.uboBuffers = nil
	sm.globalSets = nil
	if sm.globalPool != nil {
		sm.globalPool.Destroy()
		sm.globalPool = nil
	}
	if sm.globalLayout != nil {
		sm.globalLayout.Destroy()
		sm.globalLayout = nil
	}
}
