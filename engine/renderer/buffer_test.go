package renderer_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/renderer/rendertest"
)

func newUBOBuffer(t *testing.T, device *rendertest.Device) *renderer.Buffer {
	t.Helper()
	b, err := renderer.NewBuffer(device, renderer.GlobalUBOSize, 1,
		renderer.BufferUsageUniform, renderer.MemoryHostVisible, device.Limits().MinUniformBufferOffsetAlignment)
	require.NoError(t, err)
	t.Cleanup(b.Destroy)
	return b
}

func TestGlobalUBORoundTrip(t *testing.T) {
	device := rendertest.NewDevice()
	b := newUBOBuffer(t, device)
	require.NoError(t, b.Map())

	ubo := renderer.NewGlobalUBO()
	ubo.CameraPosition = mgl32.Vec4{1, 2, 3, 1}
	ubo.Projection = mgl32.Perspective(mgl32.DegToRad(50), 1.5, 0.1, 100)
	ubo.View = mgl32.LookAtV(mgl32.Vec3{0, 0, -2}, mgl32.Vec3{}, mgl32.Vec3{0, -1, 0})
	ubo.PointLights[0] = renderer.PointLight{Position: mgl32.Vec4{1, -1, 0, 1}, Color: mgl32.Vec4{1, 0, 0, 0.5}}
	ubo.NumLights = 1

	require.NoError(t, b.Write(ubo.Bytes(), 0))
	require.NoError(t, b.Flush(renderer.WholeSize, 0))

	got, err := b.ReadBack(renderer.GlobalUBOSize, 0)
	require.NoError(t, err)
	assert.Equal(t, ubo.Bytes(), got)

	alloc := b.Allocation().(*rendertest.Allocation)
	require.Len(t, alloc.Flushes, 1)
	assert.Equal(t, rendertest.Range{Offset: 0, Size: b.Size()}, alloc.Flushes[0])
}

func TestGlobalUBODefaults(t *testing.T) {
	ubo := renderer.NewGlobalUBO()
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 0.002}, ubo.AmbientLightColor)
	assert.Equal(t, mgl32.Ident4(), ubo.Projection)
	assert.Equal(t, mgl32.Ident4(), ubo.View)
	assert.Equal(t, int32(0), ubo.NumLights)
	// std140: every member is a multiple of 16 bytes
	assert.Equal(t, uint64(0), renderer.GlobalUBOSize%16)
	assert.Equal(t, uint64(16+64+64+16+renderer.MaxLights*32+16), renderer.GlobalUBOSize)
	assert.Equal(t, uint32(128), renderer.SimplePushConstantSize)
}

func TestBufferAlignment(t *testing.T) {
	assert.Equal(t, uint64(256), renderer.Alignment(1, 256))
	assert.Equal(t, uint64(256), renderer.Alignment(256, 256))
	assert.Equal(t, uint64(512), renderer.Alignment(257, 256))
	assert.Equal(t, uint64(12), renderer.Alignment(12, 0))

	device := rendertest.NewDevice()
	b, err := renderer.NewBuffer(device, 100, 3, renderer.BufferUsageUniform, renderer.MemoryHostVisible, 64)
	require.NoError(t, err)
	defer b.Destroy()
	assert.Equal(t, uint64(128), b.AlignmentSize())
	assert.Equal(t, uint64(384), b.Size())
	assert.Equal(t, renderer.BufferInfo{Buffer: b, Offset: 256, Range: 128}, b.DescriptorInfoForIndex(2))
}

func TestBufferIndexedWrites(t *testing.T) {
	device := rendertest.NewDevice()
	b, err := renderer.NewBuffer(device, 4, 2, renderer.BufferUsageUniform, renderer.MemoryHostVisible|renderer.MemoryHostCoherent, 16)
	require.NoError(t, err)
	defer b.Destroy()
	require.NoError(t, b.Map())

	require.NoError(t, b.WriteToIndex([]byte{1, 2, 3, 4}, 1))
	require.NoError(t, b.FlushIndex(1))
	got, err := b.ReadBack(4, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	assert.True(t, errors.Is(b.WriteToIndex([]byte{1}, 2), renderer.ErrIndexOutOfRange))
	assert.True(t, errors.Is(b.WriteToIndex(make([]byte, 5), 0), renderer.ErrBufferOverflow))
	assert.True(t, errors.Is(b.Write(make([]byte, 8), 28), renderer.ErrBufferOverflow))
}

func TestBufferRequiresMapping(t *testing.T) {
	device := rendertest.NewDevice()
	b := newUBOBuffer(t, device)

	assert.True(t, errors.Is(b.Write([]byte{1}, 0), renderer.ErrBufferNotMapped))
	assert.True(t, errors.Is(b.Flush(renderer.WholeSize, 0), renderer.ErrBufferNotMapped))

	require.NoError(t, b.Map())
	require.NoError(t, b.Map())
	assert.Equal(t, 1, b.Allocation().(*rendertest.Allocation).MapCount)

	b.Unmap()
	assert.False(t, b.IsMapped())
}

func TestDeviceLocalBufferCannotMap(t *testing.T) {
	device := rendertest.NewDevice()
	b, err := renderer.NewBuffer(device, 16, 1, renderer.BufferUsageVertex, renderer.MemoryDeviceLocal, 0)
	require.NoError(t, err)
	defer b.Destroy()
	assert.Error(t, b.Map())
}

func TestBufferDestroyReleasesMemory(t *testing.T) {
	device := rendertest.NewDevice()
	b, err := renderer.NewBuffer(device, 16, 1, renderer.BufferUsageUniform, renderer.MemoryHostVisible, 0)
	require.NoError(t, err)
	require.NoError(t, b.Map())
	assert.Equal(t, 1, device.Tracker.Count())

	b.Destroy()
	assert.Equal(t, 0, device.Tracker.Count())
	assert.True(t, device.Allocations[0].Destroyed)
}
