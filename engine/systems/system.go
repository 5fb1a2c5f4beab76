package systems

import (
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/scene"
)

var ErrTooManyLights = errors.New("too many point lights")

// FrameInfo is what a render system gets for one frame. CommandBuffer is
// recording and, during Render, inside the swapchain render pass.
type FrameInfo struct {
	FrameIndex          int
	FrameTime           float32
	CommandBuffer       renderer.CommandBuffer
	Camera              *scene.Camera
	GlobalDescriptorSet renderer.DescriptorSet
	Scene               *scene.Scene
}

// RenderSystem owns one pipeline and draws one kind of object.
type RenderSystem interface {
	// Update runs before the render pass begins and may write into the
	// frame's global uniforms.
	Update(frame *FrameInfo, ubo *renderer.GlobalUBO) error
	Render(frame *FrameInfo)
	Destroy()
}

// ShaderPair is a vertex and a fragment stage in SPIR-V.
type ShaderPair struct {
	Vertex   []uint32
	Fragment []uint32
}
