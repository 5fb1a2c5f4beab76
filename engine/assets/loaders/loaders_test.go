package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/resources"
)

const quadOBJ = `# unit quad
o quad
v -1 0 -1
v  1 0 -1
v  1 0  1
v -1 0  1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 -1 0
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseOBJDeduplicatesVertices(t *testing.T) {
	data, err := ParseOBJ(strings.NewReader(quadOBJ))
	require.NoError(t, err)

	mesh := data.Mesh
	assert.True(t, data.HasNormals)
	assert.Len(t, mesh.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Indices)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, mesh.Vertices[0].Color)
	assert.Equal(t, mgl32.Vec2{1, 1}, mesh.Vertices[2].UV)
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, mesh.Vertices[3].Normal)
}

func TestParseOBJColorsAndNegativeIndices(t *testing.T) {
	src := `v 0 0 0 1 0 0
v 1 0 0 0 1 0
v 0 1 0 0 0 1
f -3 -2 -1
`
	data, err := ParseOBJ(strings.NewReader(src))
	require.NoError(t, err)

	mesh := data.Mesh
	assert.False(t, data.HasNormals)
	require.Len(t, mesh.Vertices, 3)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, mesh.Vertices[1].Color)
	for _, v := range mesh.Vertices {
		assert.True(t, v.Normal.ApproxEqual(mgl32.Vec3{0, 0, 1}), "generated normal %v", v.Normal)
	}
}

func TestParseOBJErrors(t *testing.T) {
	_, err := ParseOBJ(strings.NewReader("v 0 0 0\n"))
	assert.EqualError(t, err, "no faces")

	_, err = ParseOBJ(strings.NewReader("v 0 0 0\nf 1 2 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	_, err = ParseOBJ(strings.NewReader("v 0 zero 0\n"))
	assert.Error(t, err)

	_, err = ParseOBJ(strings.NewReader("v 0 0 0 1 red 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vertex color")
}

func TestParseOBJMergesObjects(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
f 1 2 3
o second
f 2 4 3
`
	data, err := ParseOBJ(strings.NewReader(src))
	require.NoError(t, err)

	mesh := data.Mesh
	assert.Len(t, mesh.Indices, 6)
	assert.Len(t, mesh.Vertices, 4)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, mesh.Vertices[mesh.Indices[4]].Position)
}

func TestResourceNameAndBytecode(t *testing.T) {
	assert.Equal(t, "simple", resourceName("shaders/simple.vert.spv"))
	assert.Equal(t, "vase", resourceName("/tmp/models/vase.obj"))
	assert.Equal(t, []uint32{renderer.SPIRVMagic, 1}, bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0, 9}))
}

func TestShaderStageFromName(t *testing.T) {
	stage, err := shaderStage("shaders/simple.vert.spv")
	require.NoError(t, err)
	assert.Equal(t, resources.ShaderStageVertex, stage)

	stage, err = shaderStage("point_light.frag.wgsl")
	require.NoError(t, err)
	assert.Equal(t, resources.ShaderStageFragment, stage)

	_, err = shaderStage("simple.spv")
	assert.Error(t, err)
}

func TestShaderLoaderSPIRV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.vert.spv")
	words := []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}
	require.NoError(t, os.WriteFile(path, words, 0o644))

	res, err := (&ShaderLoader{}).Load(path, nil)
	require.NoError(t, err)
	shader := res.Data.(*resources.ShaderResourceData)
	assert.Equal(t, resources.ShaderStageVertex, shader.Stage)
	assert.Len(t, shader.Code, 5)
	assert.Equal(t, "empty", res.Name)

	bad := filepath.Join(dir, "bad.frag.spv")
	require.NoError(t, os.WriteFile(bad, []byte{1, 2, 3}, 0o644))
	_, err = (&ShaderLoader{}).Load(bad, nil)
	assert.Error(t, err)
}

func TestShaderLoaderCompilesWGSL(t *testing.T) {
	src := `@vertex
fn main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`
	path := filepath.Join(t.TempDir(), "tri.vert.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	res, err := (&ShaderLoader{}).Load(path, nil)
	require.NoError(t, err)
	shader := res.Data.(*resources.ShaderResourceData)
	assert.Equal(t, renderer.SPIRVMagic, shader.Code[0])
	assert.Equal(t, src, shader.Source)
}

func encodePNG(t *testing.T) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	img.Set(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeRGBA(t *testing.T) {
	data := encodePNG(t)

	img, err := DecodeRGBA(data, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.Len(t, img.Pixels, 16)
	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pixels[0:4])

	flipped, err := DecodeRGBA(data, true)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 255, 255}, flipped.Pixels[0:4])
}

func TestImageLoaderRejectsNonImages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.png")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a png"), 0o644))
	_, err := (&ImageLoader{}).Load(path, nil)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.png")
	require.NoError(t, os.WriteFile(good, encodePNG(t), 0o644))
	res, err := (&ImageLoader{}).Load(good, &resources.ImageResourceParams{FlipY: true})
	require.NoError(t, err)
	assert.Equal(t, resources.ResourceTypeImage, res.Type)
	assert.Equal(t, uint8(4), res.Data.(*resources.ImageResourceData).ChannelCount)
}
