package renderer

import "github.com/pkg/errors"

var (
	ErrFrameInProgress        = errors.New("cannot begin frame while a frame is already in progress")
	ErrNoFrameInProgress      = errors.New("no frame in progress")
	ErrRenderPassActive       = errors.New("render pass still active")
	ErrNoRenderPass           = errors.New("no render pass active")
	ErrForeignCommandBuffer   = errors.New("command buffer does not belong to the current frame")
	ErrSwapchainFormatChanged = errors.New("swapchain image (or depth) format has changed")

	ErrDescriptorPoolExhausted = errors.New("descriptor pool exhausted")
	ErrDuplicateBinding        = errors.New("descriptor binding already in use")
	ErrUnknownBinding          = errors.New("layout does not contain binding")
	ErrBindingMismatch         = errors.New("descriptor does not match binding")
	ErrFreeNotAllowed          = errors.New("descriptor pool was created without free-descriptor-set flag")
	ErrDuplicateDescriptorSet  = errors.New("descriptor set passed more than once")

	ErrBufferNotMapped  = errors.New("buffer is not mapped")
	ErrBufferOverflow   = errors.New("write exceeds buffer bounds")
	ErrIndexOutOfRange  = errors.New("buffer instance index out of range")
	ErrEmptyMesh        = errors.New("mesh has fewer than 3 vertices")
	ErrResourceNotFound = errors.New("resource not tracked")
)
