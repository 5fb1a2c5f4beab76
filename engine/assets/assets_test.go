package assets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dyne/engine/resources"
)

const triangleOBJ = "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newIndexedManager(t *testing.T, watch bool) (*AssetManager, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "models/a.obj", triangleOBJ)
	writeFile(t, root, "models/b.obj", triangleOBJ)
	writeFile(t, root, "models/a.mtl", "newmtl none\n")
	writeFile(t, root, "data/blob.bin", "\x01\x02")
	writeFile(t, root, "README.md", "ignored")

	am := NewAssetManager(2)
	require.NoError(t, am.Initialize(root, watch))
	t.Cleanup(am.Shutdown)
	return am, root
}

func TestIndexByType(t *testing.T) {
	am, _ := newIndexedManager(t, false)

	assert.Equal(t, 3, am.Count())
	assert.Equal(t, []string{"models/a.obj", "models/b.obj"}, am.List(resources.ResourceTypeMesh))
	assert.True(t, am.Exists("data/blob.bin"))
	assert.False(t, am.Exists("models/a.mtl"))
}

func TestLoadAsset(t *testing.T) {
	am, _ := newIndexedManager(t, false)

	res, err := am.LoadAsset("models/a.obj", nil)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Name)
	mesh := res.Data.(*resources.MeshResourceData)
	assert.Len(t, mesh.Mesh.Vertices, 3)

	bin, err := am.LoadAsset("data/blob.bin", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, bin.Data)
	require.NoError(t, am.UnloadAsset(bin))
	assert.Nil(t, bin.Data)

	_, err = am.LoadAsset("models/missing.obj", nil)
	assert.True(t, errors.Is(err, ErrAssetNotFound))
}

func TestLoadAssetsInParallel(t *testing.T) {
	am, _ := newIndexedManager(t, false)

	res, err := am.LoadAssets([]string{"models/b.obj", "models/a.obj"}, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "b", res[0].Name)
	assert.Equal(t, "a", res[1].Name)

	_, err = am.LoadAssets([]string{"models/a.obj", "nope.obj"}, nil)
	assert.True(t, errors.Is(err, ErrAssetNotFound))
}

func TestLoadAfterShutdown(t *testing.T) {
	am, _ := newIndexedManager(t, false)
	am.Shutdown()
	_, err := am.LoadAsset("models/a.obj", nil)
	assert.Equal(t, ErrManagerShutdown, err)
}

func TestWatchFollowsFileSystem(t *testing.T) {
	am, root := newIndexedManager(t, true)

	var mu sync.Mutex
	var events []AssetEvent
	am.OnChange(func(e AssetEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	writeFile(t, root, "models/c.obj", triangleOBJ)
	require.Eventually(t, func() bool { return am.Exists("models/c.obj") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(root, "models", "a.obj")))
	require.Eventually(t, func() bool { return !am.Exists("models/a.obj") }, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	var removed bool
	for _, e := range events {
		if e.Op == AssetRemoved && e.Asset.Path == "models/a.obj" {
			removed = true
		}
	}
	assert.True(t, removed)
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, resources.ResourceTypeShader, determineAssetType("x/simple.vert.spv"))
	assert.Equal(t, resources.ResourceTypeShader, determineAssetType("x/simple.frag.wgsl"))
	assert.Equal(t, resources.ResourceTypeImage, determineAssetType("x/tex.JPG"))
	assert.Equal(t, resources.ResourceTypeNone, determineAssetType("x/simple.vert"))
}
