package resources

import "github.com/spaghettifunk/dyne/engine/renderer"

type ResourceType int

// Pre-defined resource types.
const (
	ResourceTypeNone ResourceType = iota
	// Raw file contents.
	ResourceTypeBinary
	// Decoded RGBA8 image.
	ResourceTypeImage
	// SPIR-V words, from a .spv file or compiled from WGSL.
	ResourceTypeShader
	// Triangle mesh parsed from a Wavefront OBJ file.
	ResourceTypeMesh
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeMesh:
		return "mesh"
	}
	return "none"
}

// Resource is what every loader returns. Data holds one of the
// *XResourceData types below, or []byte for binary resources.
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	// DataSize is the size of the file the resource was read from.
	DataSize uint64
	Data     interface{}
}

// ImageResourceData is tightly packed RGBA8, first row at the top unless
// the image was loaded with FlipY.
type ImageResourceData struct {
	ChannelCount uint8
	Width        uint32
	Height       uint32
	Pixels       []uint8
}

type ImageResourceParams struct {
	// FlipY flips the image on the y-axis when loaded.
	FlipY bool
}

type ShaderStage uint8

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
)

type ShaderResourceData struct {
	Stage ShaderStage
	// Code is the SPIR-V module as little-endian words.
	Code []uint32
	// Source is set when the module was compiled from WGSL.
	Source string
}

type MeshResourceData struct {
	Mesh *renderer.MeshData
	// HasNormals is false when the file had no vn records and the normals
	// were generated from the faces.
	HasNormals bool
}
