package renderer

import "time"

// Destroyer is implemented by objects that hold memory outside the Go heap.
// Destroy must be called explicitly, and only once the GPU is done with them.
type Destroyer interface {
	Destroy()
}

// Fence is a GPU to CPU signal.
type Fence interface {
	Destroyer
	Wait(timeout time.Duration) error
	Reset() error
}

type RenderPass interface {
	Destroyer
}

type Framebuffer interface {
	Destroyer
}

type Pipeline interface {
	Destroyer
}

// Texture is a sampled image with its view and sampler.
type Texture interface {
	Destroyer
	Width() uint32
	Height() uint32
}

type TextureDesc struct {
	Name   string
	Width  uint32
	Height uint32
	// Pixels is tightly packed RGBA8 data.
	Pixels []byte
}

// CommandBuffer records the work of one frame-in-flight slot.
type CommandBuffer interface {
	Begin() error
	End() error
	Reset() error
	BeginRenderPass(pass RenderPass, fb Framebuffer, area Rect, clear ClearValues)
	EndRenderPass()
	SetViewport(v Viewport)
	SetScissor(r Rect)
	BindPipeline(p Pipeline)
	BindDescriptorSets(p Pipeline, firstSet uint32, sets ...DescriptorSet)
	PushConstants(p Pipeline, stages ShaderStage, offset uint32, data []byte)
	BindVertexBuffers(first uint32, buffers ...*Buffer)
	BindIndexBuffer(b *Buffer)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CopyBuffer(src, dst *Buffer, size uint64)
}

// Swapchain owns the presentable images and their per-frame synchronization.
type Swapchain interface {
	Destroyer
	// AcquireNextImage waits for the fence of the given frame slot, then asks
	// the presentation engine for an image. StatusOutOfDate is not an error.
	AcquireNextImage(frame int) (uint32, PresentStatus, error)
	// SubmitCommandBuffers submits cmd for the image and queues presentation.
	SubmitCommandBuffers(cmd CommandBuffer, frame int, imageIndex uint32) (PresentStatus, error)
	Extent() Extent
	Formats() SwapchainFormats
	ImageCount() int
	RenderPass() RenderPass
	Framebuffer(imageIndex uint32) Framebuffer
}

// Allocator creates buffer memory.
type Allocator interface {
	CreateBuffer(size uint64, usage BufferUsage, memory MemoryProperty) (BufferAllocation, error)
}

// BufferAllocation is a buffer handle bound to its device memory.
type BufferAllocation interface {
	Destroyer
	Size() uint64
	// Map maps the whole allocation and returns a view of it.
	Map() ([]byte, error)
	Unmap()
	Flush(offset, size uint64) error
	Invalidate(offset, size uint64) error
}

type Limits struct {
	MinUniformBufferOffsetAlignment uint64
	NonCoherentAtomSize             uint64
}

// Device is the logical device context. Everything it creates must be
// destroyed before Destroy is called on it.
type Device interface {
	Allocator
	DescriptorDriver

	Limits() Limits
	WaitIdle() error
	CreateSwapchain(extent Extent, previous Swapchain) (Swapchain, error)
	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(cmds []CommandBuffer)
	// SubmitOneShot records and submits a command buffer and waits for it.
	SubmitOneShot(record func(cmd CommandBuffer)) error
	CreateTexture(desc TextureDesc) (Texture, error)
	CreatePipeline(cfg *PipelineConfig) (Pipeline, error)
	Destroy()
}

// Window is what the frame loop needs from the windowing layer.
type Window interface {
	Extent() Extent
	WasResized() bool
	ResetResized()
	ShouldClose() bool
	// WaitEvents blocks until the platform has events to process.
	WaitEvents()
}
