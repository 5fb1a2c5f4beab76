package renderer_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/renderer/rendertest"
)

func globalLayout(t *testing.T, device *rendertest.Device) *renderer.DescriptorSetLayout {
	t.Helper()
	layout, err := renderer.NewDescriptorSetLayoutBuilder(device).
		AddBinding(0, renderer.DescriptorTypeUniformBuffer, renderer.ShaderStageAllGraphics).
		AddBinding(1, renderer.DescriptorTypeCombinedImageSampler, renderer.ShaderStageFragment).
		Build()
	require.NoError(t, err)
	return layout
}

func globalPool(t *testing.T, device *rendertest.Device, sets uint32) *renderer.DescriptorPool {
	t.Helper()
	pool, err := renderer.NewDescriptorPoolBuilder(device).
		SetMaxSets(sets).
		AddPoolSize(renderer.DescriptorTypeUniformBuffer, sets).
		AddPoolSize(renderer.DescriptorTypeCombinedImageSampler, sets).
		Build()
	require.NoError(t, err)
	return pool
}

func TestGlobalDescriptorSetsPerFrame(t *testing.T) {
	device := rendertest.NewDevice()
	pool := globalPool(t, device, renderer.MaxFramesInFlight)
	layout := globalLayout(t, device)
	tex, err := device.CreateTexture(renderer.TextureDesc{Name: "white", Width: 1, Height: 1, Pixels: []byte{255, 255, 255, 255}})
	require.NoError(t, err)

	var sets []renderer.DescriptorSet
	var ubos []*renderer.Buffer
	for i := 0; i < renderer.MaxFramesInFlight; i++ {
		ubo := newUBOBuffer(t, device)
		ubos = append(ubos, ubo)
		set, err := renderer.NewDescriptorWriter(layout, pool).
			WriteBuffer(0, ubo.DescriptorInfo(renderer.WholeSize, 0)).
			WriteImage(1, renderer.ImageInfo{Texture: tex}).
			Build()
		require.NoError(t, err)
		require.NotNil(t, set)
		sets = append(sets, set)
	}

	assert.NotSame(t, rendertest.AsSet(sets[0]), rendertest.AsSet(sets[1]))
	assert.Equal(t, renderer.MaxFramesInFlight, pool.Allocated())
	for i, set := range sets {
		s := rendertest.AsSet(set)
		require.Len(t, s.Writes, 2)
		assert.Same(t, ubos[i], s.Writes[0].Buffer.Buffer)
		assert.Equal(t, renderer.DescriptorTypeUniformBuffer, s.Writes[0].Type)
		assert.Equal(t, tex, s.Writes[1].Image.Texture)
		assert.Equal(t, renderer.DescriptorTypeCombinedImageSampler, s.Writes[1].Type)
	}
}

func TestPoolExhaustionKeepsExistingSets(t *testing.T) {
	device := rendertest.NewDevice()
	pool := globalPool(t, device, 2)
	layout, err := renderer.NewDescriptorSetLayoutBuilder(device).
		AddBinding(0, renderer.DescriptorTypeUniformBuffer, renderer.ShaderStageVertex).
		Build()
	require.NoError(t, err)

	var ubos []*renderer.Buffer
	var sets []renderer.DescriptorSet
	for i := 0; i < 2; i++ {
		ubo := newUBOBuffer(t, device)
		set, err := renderer.NewDescriptorWriter(layout, pool).
			WriteBuffer(0, ubo.DescriptorInfo(renderer.WholeSize, 0)).
			Build()
		require.NoError(t, err)
		ubos = append(ubos, ubo)
		sets = append(sets, set)
	}

	extra := newUBOBuffer(t, device)
	set, err := renderer.NewDescriptorWriter(layout, pool).
		WriteBuffer(0, extra.DescriptorInfo(renderer.WholeSize, 0)).
		Build()
	assert.Nil(t, set)
	assert.True(t, errors.Is(err, renderer.ErrDescriptorPoolExhausted), "got %v", err)

	assert.Equal(t, 2, pool.Allocated())
	for i, set := range sets {
		s := rendertest.AsSet(set)
		assert.False(t, s.Freed)
		assert.Same(t, ubos[i], s.Writes[0].Buffer.Buffer)
	}
	assert.Len(t, device.Pools[0].Sets, 2)
}

func TestPoolExhaustionByDescriptorCount(t *testing.T) {
	device := rendertest.NewDevice()
	// room for 10 sets, but a single uniform descriptor
	pool, err := renderer.NewDescriptorPoolBuilder(device).
		SetMaxSets(10).
		AddPoolSize(renderer.DescriptorTypeUniformBuffer, 1).
		Build()
	require.NoError(t, err)
	layout, err := renderer.NewDescriptorSetLayoutBuilder(device).
		AddBinding(0, renderer.DescriptorTypeUniformBuffer, renderer.ShaderStageVertex).
		Build()
	require.NoError(t, err)

	_, err = pool.AllocateDescriptor(layout)
	require.NoError(t, err)
	_, err = pool.AllocateDescriptor(layout)
	assert.True(t, errors.Is(err, renderer.ErrDescriptorPoolExhausted))
}

func TestLayoutBuilderRejectsDuplicateBinding(t *testing.T) {
	device := rendertest.NewDevice()
	layout, err := renderer.NewDescriptorSetLayoutBuilder(device).
		AddBinding(0, renderer.DescriptorTypeUniformBuffer, renderer.ShaderStageVertex).
		AddBinding(0, renderer.DescriptorTypeCombinedImageSampler, renderer.ShaderStageFragment).
		Build()
	assert.Nil(t, layout)
	assert.True(t, errors.Is(err, renderer.ErrDuplicateBinding))
	assert.Empty(t, device.Layouts)
}

func TestLayoutBindingsAreSorted(t *testing.T) {
	device := rendertest.NewDevice()
	layout, err := renderer.NewDescriptorSetLayoutBuilder(device).
		AddBinding(3, renderer.DescriptorTypeStorageBuffer, renderer.ShaderStageFragment).
		AddBinding(1, renderer.DescriptorTypeUniformBuffer, renderer.ShaderStageVertex).
		Build()
	require.NoError(t, err)

	bindings := layout.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, uint32(1), bindings[0].Binding)
	assert.Equal(t, uint32(3), bindings[1].Binding)
	assert.Equal(t, bindings, device.Layouts[0].Bindings)

	lb, ok := layout.Binding(3)
	assert.True(t, ok)
	assert.Equal(t, renderer.DescriptorTypeStorageBuffer, lb.Type)

	layout.Destroy()
	assert.True(t, device.Layouts[0].Destroyed)
}

func TestWriterValidation(t *testing.T) {
	device := rendertest.NewDevice()
	pool := globalPool(t, device, 4)
	layout := globalLayout(t, device)
	ubo := newUBOBuffer(t, device)
	tex, err := device.CreateTexture(renderer.TextureDesc{Width: 1, Height: 1, Pixels: make([]byte, 4)})
	require.NoError(t, err)

	cases := []struct {
		name   string
		writer *renderer.DescriptorWriter
		want   error
	}{
		{"unknown binding", renderer.NewDescriptorWriter(layout, pool).WriteBuffer(5, ubo.DescriptorInfo(renderer.WholeSize, 0)), renderer.ErrUnknownBinding},
		{"image into buffer binding", renderer.NewDescriptorWriter(layout, pool).WriteImage(0, renderer.ImageInfo{Texture: tex}), renderer.ErrBindingMismatch},
		{"buffer into image binding", renderer.NewDescriptorWriter(layout, pool).WriteBuffer(1, ubo.DescriptorInfo(renderer.WholeSize, 0)), renderer.ErrBindingMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set, err := tc.writer.Build()
			assert.Nil(t, set)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
	assert.Equal(t, 0, pool.Allocated(), "failed writers must not allocate")
}

func TestWriterOverwrite(t *testing.T) {
	device := rendertest.NewDevice()
	pool := globalPool(t, device, 1)
	layout := globalLayout(t, device)
	a := newUBOBuffer(t, device)
	b := newUBOBuffer(t, device)

	set, err := renderer.NewDescriptorWriter(layout, pool).
		WriteBuffer(0, a.DescriptorInfo(renderer.WholeSize, 0)).
		Build()
	require.NoError(t, err)

	require.NoError(t, renderer.NewDescriptorWriter(layout, pool).
		WriteBuffer(0, b.DescriptorInfo(renderer.WholeSize, 0)).
		Overwrite(set))
	assert.Same(t, b, rendertest.AsSet(set).Writes[0].Buffer.Buffer)
	assert.Equal(t, 1, pool.Allocated())
}

func TestPoolFreeAndReset(t *testing.T) {
	device := rendertest.NewDevice()
	layout := globalLayout(t, device)

	fixed := globalPool(t, device, 2)
	set, err := fixed.AllocateDescriptor(layout)
	require.NoError(t, err)
	assert.True(t, errors.Is(fixed.FreeDescriptors(set), renderer.ErrFreeNotAllowed))

	freeable, err := renderer.NewDescriptorPoolBuilder(device).
		SetMaxSets(1).
		SetPoolFlags(renderer.PoolFlagFreeDescriptorSet).
		AddPoolSize(renderer.DescriptorTypeUniformBuffer, 1).
		AddPoolSize(renderer.DescriptorTypeCombinedImageSampler, 1).
		Build()
	require.NoError(t, err)
	first, err := freeable.AllocateDescriptor(layout)
	require.NoError(t, err)
	_, err = freeable.AllocateDescriptor(layout)
	require.True(t, errors.Is(err, renderer.ErrDescriptorPoolExhausted))

	require.NoError(t, freeable.FreeDescriptors(first))
	assert.True(t, rendertest.AsSet(first).Freed)
	_, err = freeable.AllocateDescriptor(layout)
	require.NoError(t, err)

	require.NoError(t, freeable.ResetPool())
	assert.Equal(t, 0, freeable.Allocated())
	_, err = freeable.AllocateDescriptor(layout)
	assert.NoError(t, err)

	freeable.Destroy()
	assert.True(t, device.Pools[1].Destroyed)
}

func TestPoolBuilderDefaults(t *testing.T) {
	device := rendertest.NewDevice()
	pool, err := renderer.NewDescriptorPoolBuilder(device).Build()
	require.NoError(t, err)
	assert.Equal(t, uint32(renderer.DefaultPoolMaxSets), pool.MaxSets())

	_, err = renderer.NewDescriptorPoolBuilder(device).SetMaxSets(0).Build()
	assert.Error(t, err)
}

// vulkanFreeDevice frees like vkFreeDescriptorSets, which always succeeds.
type vulkanFreeDevice struct {
	*rendertest.Device
	frees int
}

func (d *vulkanFreeDevice) FreeDescriptorSets(renderer.DescriptorPoolHandle, []renderer.DescriptorSet) error {
	d.frees++
	return nil
}

func TestPoolFreeRejectsDuplicateSets(t *testing.T) {
	device := &vulkanFreeDevice{Device: rendertest.NewDevice()}
	layout := globalLayout(t, device.Device)

	pool, err := renderer.NewDescriptorPoolBuilder(device).
		SetMaxSets(2).
		SetPoolFlags(renderer.PoolFlagFreeDescriptorSet).
		AddPoolSize(renderer.DescriptorTypeUniformBuffer, 2).
		AddPoolSize(renderer.DescriptorTypeCombinedImageSampler, 2).
		Build()
	require.NoError(t, err)
	set, err := pool.AllocateDescriptor(layout)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		err = pool.FreeDescriptors(set, set)
	})
	assert.True(t, errors.Is(err, renderer.ErrDuplicateDescriptorSet))
	assert.Equal(t, 0, device.frees, "nothing reaches the driver")
	assert.Equal(t, 1, pool.Allocated())

	require.NoError(t, pool.FreeDescriptors(set))
	assert.Equal(t, 1, device.frees)
	assert.Equal(t, 0, pool.Allocated())
}
