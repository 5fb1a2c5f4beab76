package renderer

import (
	"github.com/pkg/errors"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

type VertexFormat uint8

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
	VertexFormatFloat32x4
)

type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

// VertexLayout describes one interleaved vertex buffer at binding 0.
type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeBack
	CullModeFront
)

// PipelineConfig is the fixed-function and programmable state of a graphics
// pipeline. Viewport and scissor are always dynamic.
type PipelineConfig struct {
	Name           string
	VertexShader   []uint32
	FragmentShader []uint32
	RenderPass     RenderPass
	Subpass        uint32
	SetLayouts     []*DescriptorSetLayout
	PushConstants  []PushConstantRange
	// Vertex is nil for pipelines that generate vertices in the shader.
	Vertex     *VertexLayout
	CullMode   CullMode
	DepthTest  bool
	DepthWrite bool
	AlphaBlend bool
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CullMode:   CullModeNone,
		DepthTest:  true,
		DepthWrite: true,
	}
}

// EnableAlphaBlending switches to src-alpha/one-minus-src-alpha blending.
func (c *PipelineConfig) EnableAlphaBlending() {
	c.AlphaBlend = true
}

func validSPIRV(code []uint32) bool {
	return len(code) >= 5 && code[0] == SPIRVMagic
}

func (c *PipelineConfig) Validate() error {
	if c.RenderPass == nil {
		return errors.Errorf("pipeline %q: no render pass", c.Name)
	}
	if !validSPIRV(c.VertexShader) {
		return errors.Errorf("pipeline %q: vertex shader is not SPIR-V", c.Name)
	}
	if !validSPIRV(c.FragmentShader) {
		return errors.Errorf("pipeline %q: fragment shader is not SPIR-V", c.Name)
	}
	for _, pc := range c.PushConstants {
		if pc.Size == 0 || pc.Size%4 != 0 || pc.Offset%4 != 0 {
			return errors.Errorf("pipeline %q: push constant range %d+%d is not 4-byte aligned", c.Name, pc.Offset, pc.Size)
		}
	}
	return nil
}
