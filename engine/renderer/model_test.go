package renderer_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/renderer/rendertest"
)

func triangle() *renderer.MeshData {
	return &renderer.MeshData{Vertices: []renderer.Vertex{
		{Position: mgl32.Vec3{0, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}},
	}}
}

func TestModelUploadsThroughStaging(t *testing.T) {
	device := rendertest.NewDevice()
	m, err := renderer.NewModel(device, triangle())
	require.NoError(t, err)

	assert.Equal(t, 1, device.OneShots)
	require.Len(t, device.Allocations, 2)
	staging, vertices := device.Allocations[0], device.Allocations[1]
	assert.True(t, staging.Destroyed, "staging buffer is released after the copy")
	assert.True(t, vertices.Memory.Has(renderer.MemoryDeviceLocal))
	assert.Equal(t, renderer.BufferUsageVertex|renderer.BufferUsageTransferDst, vertices.Usage)

	// the first float of the second vertex survived the copy
	stride := renderer.VertexLayoutFor().Stride
	bits := binary.LittleEndian.Uint32(vertices.Data[stride:])
	assert.Equal(t, float32(0.5), math.Float32frombits(bits))

	assert.False(t, m.HasIndices())
	assert.Equal(t, uint32(3), m.VertexCount())

	m.Destroy()
	assert.Equal(t, 0, device.Tracker.Count())
}

func TestModelDrawIndexed(t *testing.T) {
	device := rendertest.NewDevice()
	mesh := triangle()
	mesh.Vertices = append(mesh.Vertices, renderer.Vertex{Position: mgl32.Vec3{0.5, -0.5, 0}})
	mesh.Indices = []uint32{0, 1, 2, 0, 3, 1}
	m, err := renderer.NewModel(device, mesh)
	require.NoError(t, err)
	defer m.Destroy()
	assert.Equal(t, 2, device.OneShots)

	cmds, err := device.AllocateCommandBuffers(1)
	require.NoError(t, err)
	cmd := cmds[0].(*rendertest.CommandBuffer)
	require.NoError(t, cmd.Begin())
	m.Bind(cmd)
	m.Draw(cmd)

	assert.Equal(t, []string{"BindVertexBuffers", "BindIndexBuffer", "DrawIndexed"}, cmd.Names())
	assert.Equal(t, []interface{}{uint32(6), uint32(1)}, cmd.Commands[2].Args)
}

func TestModelDrawNonIndexed(t *testing.T) {
	device := rendertest.NewDevice()
	m, err := renderer.NewModel(device, triangle())
	require.NoError(t, err)
	defer m.Destroy()

	cmds, err := device.AllocateCommandBuffers(1)
	require.NoError(t, err)
	cmd := cmds[0].(*rendertest.CommandBuffer)
	require.NoError(t, cmd.Begin())
	m.Bind(cmd)
	m.Draw(cmd)
	assert.Equal(t, []string{"BindVertexBuffers", "Draw"}, cmd.Names())
}

func TestModelRejectsDegenerateMesh(t *testing.T) {
	device := rendertest.NewDevice()
	_, err := renderer.NewModel(device, &renderer.MeshData{Vertices: make([]renderer.Vertex, 2)})
	assert.True(t, errors.Is(err, renderer.ErrEmptyMesh))
	assert.Empty(t, device.Allocations)
}

func TestVertexLayout(t *testing.T) {
	layout := renderer.VertexLayoutFor()
	assert.Equal(t, uint32(44), layout.Stride)
	require.Len(t, layout.Attributes, 4)
	for i, a := range layout.Attributes {
		assert.Equal(t, uint32(i), a.Location)
	}
	assert.Equal(t, uint32(36), layout.Attributes[3].Offset)
	assert.Equal(t, renderer.VertexFormatFloat32x2, layout.Attributes[3].Format)
}

func TestPipelineConfigValidate(t *testing.T) {
	pass := &rendertest.RenderPass{}
	cfg := renderer.DefaultPipelineConfig()
	cfg.Name = "simple"
	cfg.VertexShader = rendertest.SPIRV()
	cfg.FragmentShader = rendertest.SPIRV()
	assert.Error(t, cfg.Validate(), "render pass is required")

	cfg.RenderPass = pass
	cfg.PushConstants = []renderer.PushConstantRange{{Stages: renderer.ShaderStageAllGraphics, Size: renderer.SimplePushConstantSize}}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.DepthTest)
	assert.False(t, cfg.AlphaBlend)
	cfg.EnableAlphaBlending()
	assert.True(t, cfg.AlphaBlend)

	bad := cfg
	bad.FragmentShader = []uint32{1, 2, 3, 4, 5}
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.PushConstants = []renderer.PushConstantRange{{Size: 6}}
	assert.Error(t, bad.Validate())

	device := rendertest.NewDevice()
	p, err := device.CreatePipeline(&cfg)
	require.NoError(t, err)
	p.Destroy()
	assert.Equal(t, 0, device.Tracker.Count())
}

func TestResourceTracker(t *testing.T) {
	tr := renderer.NewResourceTracker()
	a := tr.Track("buffer", "ubo")
	b := tr.Track("texture", "white")
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, tr.Count())

	live := tr.Live()
	require.Len(t, live, 2)
	assert.ElementsMatch(t, []string{"ubo", "white"}, []string{live[0].Label, live[1].Label})

	require.NoError(t, tr.Release(a))
	assert.True(t, errors.Is(tr.Release(a), renderer.ErrResourceNotFound))
	assert.Equal(t, 1, tr.Count())
}
