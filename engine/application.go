package engine

import (
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
	dmath "github.com/spaghettifunk/dyne/engine/math"
	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/resources"
	"github.com/spaghettifunk/dyne/engine/scene"
	"github.com/spaghettifunk/dyne/engine/systems"
)

// Scene is the live scene. Mutate it only from the game hooks.
func (e *Engine) Scene() *scene.Scene {
	return e.scene
}

func (e *Engine) Input() *core.Input {
	return e.input
}

// Viewer is the transform the camera follows and the controller moves.
func (e *Engine) Viewer() *dmath.Transform {
	return &e.viewer
}

func (e *Engine) Device() renderer.Device {
	return e.backend.Device()
}

// LoadMesh loads one OBJ asset and uploads it. The scene owns the mesh.
func (e *Engine) LoadMesh(name string) (scene.MeshHandle, error) {
	handles, err := e.LoadMeshes(name)
	if err != nil {
		return scene.MeshHandle{}, err
	}
	return handles[0], nil
}

// LoadMeshes parses the OBJ assets in parallel on the asset workers, then
// uploads them in order on the calling goroutine.
func (e *Engine) LoadMeshes(names ...string) ([]scene.MeshHandle, error) {
	res, err := e.assets.LoadAssets(names, nil)
	if err != nil {
		return nil, err
	}
	handles := make([]scene.MeshHandle, 0, len(res))
	for i, r := range res {
		data, ok := r.Data.(*resources.MeshResourceData)
		if !ok {
			return nil, errors.Errorf("asset %s is a %s, not a mesh", names[i], r.Type)
		}
		model, err := renderer.NewModel(e.Device(), data.Mesh)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to upload mesh %s", names[i])
		}
		handles = append(handles, e.scene.AddMesh(r.Name, model))
		if err := e.assets.UnloadAsset(r); err != nil {
			core.LogWarn("unload %s: %v", names[i], err)
		}
	}
	return handles, nil
}

// NewMesh uploads generated geometry.
func (e *Engine) NewMesh(name string, data *renderer.MeshData) (scene.MeshHandle, error) {
	model, err := renderer.NewModel(e.Device(), data)
	if err != nil {
		return scene.MeshHandle{}, errors.Wrapf(err, "failed to upload mesh %s", name)
	}
	return e.scene.AddMesh(name, model), nil
}

// loadShader returns the SPIR-V for name, and whether it had to be compiled
// from the WGSL source.
func (e *Engine) loadShader(name string) ([]uint32, bool, error) {
	candidates := []string{name + ".spv", name + ".wgsl"}
	for _, c := range candidates {
		if !e.assets.Exists(c) {
			continue
		}
		res, err := e.assets.LoadAsset(c, nil)
		if err != nil {
			return nil, false, err
		}
		return res.Data.(*resources.ShaderResourceData).Code, path.Ext(c) == ".wgsl", nil
	}
	return nil, false, errors.Wrapf(ErrShaderNotFound, "%s", strings.Join(candidates, ", "))
}

// loadShaderPair prefers precompiled SPIR-V over WGSL sources.
func (e *Engine) loadShaderPair(name string) (systems.ShaderPair, error) {
	vert, vertWGSL, err := e.loadShader(path.Join("shaders", name+".vert"))
	if err != nil {
		return systems.ShaderPair{}, err
	}
	frag, fragWGSL, err := e.loadShader(path.Join("shaders", name+".frag"))
	if err != nil {
		return systems.ShaderPair{}, err
	}
	if vertWGSL || fragWGSL {
		core.LogWarn("shader %s: no SPIR-V build, using the WGSL fallback which does not sample the texture (run mage build:shaders)", name)
	}
	return systems.ShaderPair{Vertex: vert, Fragment: frag}, nil
}

func (e *Engine) loadTexture(name string) (renderer.Texture, error) {
	if name == "" {
		return e.Device().CreateTexture(renderer.TextureDesc{
			Name: "white", Width: 1, Height: 1, Pixels: []byte{255, 255, 255, 255},
		})
	}
	res, err := e.assets.LoadAsset(name, &resources.ImageResourceParams{FlipY: false})
	if err != nil {
		return nil, err
	}
	img := res.Data.(*resources.ImageResourceData)
	return e.Device().CreateTexture(renderer.TextureDesc{
		Name:   res.Name,
		Width:  img.Width,
		Height: img.Height,
		Pixels: img.Pixels,
	})
}
