package renderer

// MaxFramesInFlight is the number of frames the CPU may record ahead of the GPU.
const MaxFramesInFlight = 2

type Extent struct {
	Width  uint32
	Height uint32
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) AspectRatio() float32 {
	if e.Height == 0 {
		return 0
	}
	return float32(e.Width) / float32(e.Height)
}

// Format is a backend pixel format value, compared but never interpreted by
// the frame loop.
type Format int32

// SwapchainFormats are the attachment formats a render pass was built for.
type SwapchainFormats struct {
	Image Format
	Depth Format
}

// PresentStatus classifies non-fatal acquire/present outcomes.
type PresentStatus uint8

const (
	StatusOK PresentStatus = iota
	StatusSuboptimal
	StatusOutOfDate
)

func (s PresentStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out-of-date"
	}
	return "unknown"
}

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageAllGraphics = ShaderStageVertex | ShaderStageFragment
)

type DescriptorType uint8

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeStorageBuffer
	DescriptorTypeCombinedImageSampler
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeUniformBuffer:
		return "uniform-buffer"
	case DescriptorTypeStorageBuffer:
		return "storage-buffer"
	case DescriptorTypeCombinedImageSampler:
		return "combined-image-sampler"
	}
	return "unknown"
}

func (t DescriptorType) isBuffer() bool {
	return t == DescriptorTypeUniformBuffer || t == DescriptorTypeStorageBuffer
}

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageVertex
	BufferUsageIndex
)

type MemoryProperty uint32

const (
	MemoryDeviceLocal MemoryProperty = 1 << iota
	MemoryHostVisible
	MemoryHostCoherent
)

func (m MemoryProperty) Has(flag MemoryProperty) bool {
	return m&flag == flag
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Rect struct {
	X, Y          int32
	Width, Height uint32
}

type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// DefaultClearValues clears to opaque black and the far plane.
func DefaultClearValues() ClearValues {
	return ClearValues{Color: [4]float32{0, 0, 0, 1}, Depth: 1, Stencil: 0}
}
