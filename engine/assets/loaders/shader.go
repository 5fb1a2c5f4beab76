package loaders

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/naga"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/resources"
)

// ShaderLoader reads precompiled SPIR-V (.spv) or compiles WGSL (.wgsl).
// The stage comes from the inner extension: name.vert.spv, name.frag.wgsl.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	stage, err := shaderStage(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read shader %s", path)
	}

	shader := &resources.ShaderResourceData{Stage: stage}
	switch filepath.Ext(path) {
	case ".spv":
		if len(data)%4 != 0 {
			return nil, errors.Errorf("shader %s: size %d is not a multiple of 4", path, len(data))
		}
		shader.Code = bytesToBytecode(data)
	case ".wgsl":
		shader.Source = string(data)
		spirv, err := naga.Compile(shader.Source)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to compile shader %s", path)
		}
		shader.Code = bytesToBytecode(spirv)
	default:
		return nil, errors.Errorf("shader %s: unsupported extension", path)
	}
	if len(shader.Code) == 0 || shader.Code[0] != renderer.SPIRVMagic {
		return nil, errors.Errorf("shader %s: missing SPIR-V magic number", path)
	}

	return &resources.Resource{
		Name:     resourceName(path),
		FullPath: path,
		Type:     resources.ResourceTypeShader,
		DataSize: uint64(len(data)),
		Data:     shader,
	}, nil
}

func (sl *ShaderLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}

func shaderStage(path string) (resources.ShaderStage, error) {
	inner := filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path)))
	switch inner {
	case ".vert":
		return resources.ShaderStageVertex, nil
	case ".frag":
		return resources.ShaderStageFragment, nil
	}
	return 0, errors.Errorf("shader %s: cannot tell the stage from %q", path, inner)
}
