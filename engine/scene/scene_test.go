package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dyne/engine/core"
	"github.com/spaghettifunk/dyne/engine/renderer/rendertest"
)

func TestSpawnAssignsIncreasingIDs(t *testing.T) {
	s := New()
	a, err := s.Spawn()
	require.NoError(t, err)
	b, err := s.Spawn(WithPosition(1, 2, 3), WithColor(mgl32.Vec3{1, 0, 0}))
	require.NoError(t, err)

	assert.Equal(t, core.ID(0), a.ID())
	assert.Equal(t, core.ID(1), b.ID())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, b.Transform.Translation)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, a.Transform.Scale)
	assert.False(t, a.HasMesh())
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Remove(a.ID()))
	c, err := s.Spawn()
	require.NoError(t, err)
	assert.Equal(t, core.ID(2), c.ID(), "ids are never reused")
}

func TestMeshSharedAcrossObjects(t *testing.T) {
	s := New()
	vase := rendertest.NewMesh("vase")
	h := s.AddMesh("vase", vase)
	assert.Equal(t, 1, s.MeshRefs(h))

	a, err := s.Spawn(WithMesh(h))
	require.NoError(t, err)
	b, err := s.Spawn(WithMesh(h))
	require.NoError(t, err)
	assert.Equal(t, 3, s.MeshRefs(h))

	require.NoError(t, s.ReleaseMesh(h))
	require.NoError(t, s.Remove(a.ID()))
	assert.Equal(t, 1, s.MeshRefs(h))
	assert.False(t, s.HasReleased())

	require.NoError(t, s.Remove(b.ID()))
	assert.True(t, s.HasReleased())
	assert.False(t, vase.Destroyed, "destruction waits for DestroyReleased")
	assert.Equal(t, 1, s.DestroyReleased())
	assert.True(t, vase.Destroyed)

	_, ok := s.Mesh(h)
	assert.False(t, ok)
	assert.Equal(t, 0, s.MeshRefs(h))
}

func TestStaleHandleAfterSlotReuse(t *testing.T) {
	s := New()
	old := s.AddMesh("a", rendertest.NewMesh("a"))
	require.NoError(t, s.ReleaseMesh(old))
	s.DestroyReleased()

	fresh := s.AddMesh("b", rendertest.NewMesh("b"))
	assert.Equal(t, old.index, fresh.index)

	_, err := s.Spawn(WithMesh(old))
	assert.ErrorIs(t, err, ErrInvalidMeshHandle)
	assert.ErrorIs(t, s.ReleaseMesh(old), ErrInvalidMeshHandle)

	m, ok := s.Mesh(fresh)
	require.True(t, ok)
	assert.Equal(t, "b", m.(*rendertest.Mesh).Name)
}

func TestNewPointLightDefaults(t *testing.T) {
	s := New()
	light, err := s.NewPointLight(0, 0, mgl32.Vec3{}, WithPosition(0, -1, 0))
	require.NoError(t, err)
	require.NotNil(t, light.PointLight)
	assert.Equal(t, DefaultLightIntensity, light.PointLight.Intensity)
	assert.Equal(t, DefaultLightRadius, light.Transform.Scale.X())
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, light.Color)
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, light.Transform.Translation)

	red, err := s.NewPointLight(0.2, 0.5, mgl32.Vec3{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, float32(0.2), red.PointLight.Intensity)
	assert.Equal(t, float32(0.5), red.Transform.Scale.X())
}

func TestEachVisitsInIDOrder(t *testing.T) {
	s := New()
	for i := 0; i < 20; i++ {
		_, err := s.Spawn()
		require.NoError(t, err)
	}
	require.NoError(t, s.Remove(7))

	var seen []core.ID
	s.Each(func(g *GameObject) { seen = append(seen, g.ID()) })
	require.Len(t, seen, 19)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, uint32(seen[i-1]), uint32(seen[i]))
	}
	assert.Error(t, s.Remove(7))
}

func TestDestroyFreesEveryMesh(t *testing.T) {
	s := New()
	a := rendertest.NewMesh("a")
	b := rendertest.NewMesh("b")
	s.AddMesh("a", a)
	hb := s.AddMesh("b", b)
	_, err := s.Spawn(WithMesh(hb))
	require.NoError(t, err)

	s.Destroy()
	assert.True(t, a.Destroyed)
	assert.True(t, b.Destroyed)
	assert.Equal(t, 0, s.Len())
}
