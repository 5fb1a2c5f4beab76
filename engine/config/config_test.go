package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	v, err := cfg.APIVersion()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Major())
	assert.Equal(t, uint64(2), v.Minor())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[window]
title = "Testbed"
width = 800

[renderer]
present_mode = "fifo"
validation = false

[camera]
fov = 60.0
`))
	require.NoError(t, err)
	assert.Equal(t, "Testbed", cfg.Window.Title)
	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.Equal(t, uint32(720), cfg.Window.Height)
	assert.Equal(t, "fifo", cfg.Renderer.PresentMode)
	assert.False(t, cfg.Renderer.Validation)
	assert.Equal(t, float32(60), cfg.Camera.FOV)
	assert.Equal(t, float32(0.1), cfg.Camera.Near)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"zero width", "[window]\nwidth = 0\n"},
		{"vulkan 2", "[renderer]\napi_version = \"2.0.0\"\n"},
		{"not a version", "[renderer]\napi_version = \"latest\"\n"},
		{"present mode", "[renderer]\npresent_mode = \"vsync\"\n"},
		{"clip range", "[camera]\nnear = 10.0\nfar = 1.0\n"},
		{"workers", "[assets]\nworkers = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte("[window\n"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoadResolvesAssetRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dyne.toml")
	require.NoError(t, os.WriteFile(path, []byte("[assets]\nroot = \"data\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Assets.Root)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
