package renderer

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxLights is the size of the point light array in the global UBO.
const MaxLights = 10

type PointLight struct {
	Position mgl32.Vec4
	// Color holds rgb and the intensity in w.
	Color mgl32.Vec4
}

// GlobalUBO is the per-frame uniform block at set 0, binding 0. Every member
// is 16-byte aligned so the Go layout matches std140.
type GlobalUBO struct {
	CameraPosition    mgl32.Vec4
	Projection        mgl32.Mat4
	View              mgl32.Mat4
	AmbientLightColor mgl32.Vec4
	PointLights       [MaxLights]PointLight
	NumLights         int32
	_                 [3]int32
}

func NewGlobalUBO() GlobalUBO {
	return GlobalUBO{
		Projection:        mgl32.Ident4(),
		View:              mgl32.Ident4(),
		AmbientLightColor: mgl32.Vec4{1, 1, 1, 0.002},
	}
}

// Bytes views the UBO as raw memory. The slice aliases u.
func (u *GlobalUBO) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), unsafe.Sizeof(*u))
}

// SimplePushConstantData is pushed once per drawn object.
type SimplePushConstantData struct {
	ModelMatrix  mgl32.Mat4
	NormalMatrix mgl32.Mat4
}

func (p *SimplePushConstantData) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(*p))
}

// PointLightPushConstants is pushed once per light billboard.
type PointLightPushConstants struct {
	Position mgl32.Vec4
	Color    mgl32.Vec4
	Radius   float32
}

func (p *PointLightPushConstants) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(*p))
}

var (
	GlobalUBOSize          = uint64(unsafe.Sizeof(GlobalUBO{}))
	SimplePushConstantSize = uint32(unsafe.Sizeof(SimplePushConstantData{}))
	PointLightPushSize     = uint32(unsafe.Sizeof(PointLightPushConstants{}))
)
