package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dyne/engine/assets"
	"github.com/spaghettifunk/dyne/engine/core"
)

// minimal SPIR-V header: magic, version 1.0, generator, bound, schema
var spirvHeader = []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}

const solidFragWGSL = `@fragment
fn main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

func newShaderEngine(t *testing.T, files map[string][]byte) *Engine {
	t.Helper()
	root := t.TempDir()
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	am := assets.NewAssetManager(1)
	require.NoError(t, am.Initialize(root, false))
	t.Cleanup(am.Shutdown)
	return &Engine{assets: am}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	core.SetLogOutput(&buf)
	t.Cleanup(func() { core.SetLogOutput(os.Stderr) })
	return &buf
}

func TestShaderPairPrefersSPIRV(t *testing.T) {
	e := newShaderEngine(t, map[string][]byte{
		"shaders/lit.vert.spv":  spirvHeader,
		"shaders/lit.frag.spv":  spirvHeader,
		"shaders/lit.frag.wgsl": []byte(solidFragWGSL),
	})
	logs := captureLog(t)

	pair, err := e.loadShaderPair("lit")
	require.NoError(t, err)
	assert.Len(t, pair.Vertex, 5)
	assert.Len(t, pair.Fragment, 5)
	assert.NotContains(t, logs.String(), "WGSL fallback")
}

func TestShaderPairWarnsOnWGSLFallback(t *testing.T) {
	e := newShaderEngine(t, map[string][]byte{
		"shaders/lit.vert.spv":  spirvHeader,
		"shaders/lit.frag.wgsl": []byte(solidFragWGSL),
	})
	logs := captureLog(t)

	pair, err := e.loadShaderPair("lit")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Fragment)
	assert.Contains(t, logs.String(), "WGSL fallback")
	assert.Contains(t, logs.String(), "lit")
}

func TestShaderPairMissingStage(t *testing.T) {
	e := newShaderEngine(t, map[string][]byte{
		"shaders/lit.vert.spv": spirvHeader,
	})

	_, err := e.loadShaderPair("lit")
	assert.True(t, errors.Is(err, ErrShaderNotFound))
}
