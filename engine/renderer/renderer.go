package renderer

import (
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
)

type FrameState uint8

const (
	FrameStateIdle FrameState = iota
	FrameStateBegun
	FrameStateRenderPassActive
)

func (s FrameState) String() string {
	switch s {
	case FrameStateIdle:
		return "idle"
	case FrameStateBegun:
		return "frame-begun"
	case FrameStateRenderPassActive:
		return "render-pass-active"
	}
	return "unknown"
}

// Renderer drives the frame loop: acquire, record, submit, present, and
// rebuilds the swapchain whenever it stops matching the window.
type Renderer struct {
	window         Window
	device         Device
	swapchain      Swapchain
	commandBuffers []CommandBuffer
	clear          ClearValues

	state             FrameState
	currentImageIndex uint32
	currentFrameIndex int
	generation        uint64
}

func NewRenderer(window Window, device Device) (*Renderer, error) {
	r := &Renderer{
		window: window,
		device: device,
		clear:  DefaultClearValues(),
	}
	if err := r.recreateSwapchain(); err != nil {
		return nil, err
	}
	cmds, err := device.AllocateCommandBuffers(MaxFramesInFlight)
	if err != nil {
		r.swapchain.Destroy()
		return nil, errors.Wrap(err, "failed to allocate command buffers")
	}
	r.commandBuffers = cmds
	return r, nil
}

// BeginFrame starts recording the next frame. A nil command buffer with a
// nil error means the swapchain was rebuilt and this tick must be skipped.
func (r *Renderer) BeginFrame() (CommandBuffer, error) {
	if r.state != FrameStateIdle {
		return nil, ErrFrameInProgress
	}

	imageIndex, status, err := r.swapchain.AcquireNextImage(r.currentFrameIndex)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire swapchain image")
	}
	if status == StatusOutOfDate {
		return nil, r.recreateSwapchain()
	}
	r.currentImageIndex = imageIndex

	cmd := r.commandBuffers[r.currentFrameIndex]
	if err := cmd.Begin(); err != nil {
		return nil, errors.Wrap(err, "failed to begin recording command buffer")
	}
	r.state = FrameStateBegun
	return cmd, nil
}

// EndFrame submits and presents the frame. The frame index advances even
// when presentation asked for a rebuild or failed.
func (r *Renderer) EndFrame() error {
	switch r.state {
	case FrameStateIdle:
		return errors.Wrap(ErrNoFrameInProgress, "cannot end frame")
	case FrameStateRenderPassActive:
		return errors.Wrap(ErrRenderPassActive, "cannot end frame")
	}

	cmd := r.commandBuffers[r.currentFrameIndex]
	frame := r.currentFrameIndex
	r.state = FrameStateIdle
	r.currentFrameIndex = (r.currentFrameIndex + 1) % MaxFramesInFlight

	if err := cmd.End(); err != nil {
		return errors.Wrap(err, "failed to record command buffer")
	}

	status, err := r.swapchain.SubmitCommandBuffers(cmd, frame, r.currentImageIndex)
	if err != nil {
		return errors.Wrap(err, "failed to present swapchain image")
	}
	if status != StatusOK || r.window.WasResized() {
		r.window.ResetResized()
		return r.recreateSwapchain()
	}
	return nil
}

func (r *Renderer) checkCommandBuffer(cmd CommandBuffer) error {
	if cmd != r.commandBuffers[r.currentFrameIndex] {
		return ErrForeignCommandBuffer
	}
	return nil
}

// BeginSwapchainRenderPass begins the swapchain render pass and resets
// viewport and scissor to the full current extent.
func (r *Renderer) BeginSwapchainRenderPass(cmd CommandBuffer) error {
	switch r.state {
	case FrameStateIdle:
		return errors.Wrap(ErrNoFrameInProgress, "cannot begin render pass")
	case FrameStateRenderPassActive:
		return errors.Wrap(ErrRenderPassActive, "cannot begin render pass")
	}
	if err := r.checkCommandBuffer(cmd); err != nil {
		return errors.Wrap(err, "cannot begin render pass")
	}

	extent := r.swapchain.Extent()
	area := Rect{Width: extent.Width, Height: extent.Height}
	cmd.BeginRenderPass(r.swapchain.RenderPass(), r.swapchain.Framebuffer(r.currentImageIndex), area, r.clear)
	cmd.SetViewport(Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	cmd.SetScissor(area)
	r.state = FrameStateRenderPassActive
	return nil
}

func (r *Renderer) EndSwapchainRenderPass(cmd CommandBuffer) error {
	switch r.state {
	case FrameStateIdle:
		return errors.Wrap(ErrNoFrameInProgress, "cannot end render pass")
	case FrameStateBegun:
		return errors.Wrap(ErrNoRenderPass, "cannot end render pass")
	}
	if err := r.checkCommandBuffer(cmd); err != nil {
		return errors.Wrap(err, "cannot end render pass")
	}
	cmd.EndRenderPass()
	r.state = FrameStateBegun
	return nil
}

func (r *Renderer) recreateSwapchain() error {
	extent := r.window.Extent()
	for extent.IsZero() {
		r.window.WaitEvents()
		extent = r.window.Extent()
	}

	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device idle")
	}

	old := r.swapchain
	sc, err := r.device.CreateSwapchain(extent, old)
	if err != nil {
		return errors.Wrap(err, "failed to create swapchain")
	}
	r.swapchain = sc
	r.generation++

	if old != nil {
		defer old.Destroy()
		if old.Formats() != sc.Formats() {
			return errors.Wrapf(ErrSwapchainFormatChanged, "%+v -> %+v", old.Formats(), sc.Formats())
		}
	}
	core.LogDebug("swapchain ready: %dx%d, %d images, generation %d", extent.Width, extent.Height, sc.ImageCount(), r.generation)
	return nil
}

func (r *Renderer) State() FrameState {
	return r.state
}

func (r *Renderer) IsFrameInProgress() bool {
	return r.state != FrameStateIdle
}

// CurrentCommandBuffer is only valid while a frame is in progress.
func (r *Renderer) CurrentCommandBuffer() (CommandBuffer, error) {
	if r.state == FrameStateIdle {
		return nil, ErrNoFrameInProgress
	}
	return r.commandBuffers[r.currentFrameIndex], nil
}

// FrameIndex is the frame-in-flight slot in [0, MaxFramesInFlight).
func (r *Renderer) FrameIndex() int {
	return r.currentFrameIndex
}

func (r *Renderer) SwapchainRenderPass() RenderPass {
	return r.swapchain.RenderPass()
}

func (r *Renderer) Extent() Extent {
	return r.swapchain.Extent()
}

func (r *Renderer) AspectRatio() float32 {
	return r.swapchain.Extent().AspectRatio()
}

// Generation counts swapchain builds, starting at 1.
func (r *Renderer) Generation() uint64 {
	return r.generation
}

// Destroy releases command buffers and the swapchain. The device must be idle.
func (r *Renderer) Destroy() {
	if r.commandBuffers != nil {
		r.device.FreeCommandBuffers(r.commandBuffers)
		r.commandBuffers = nil
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}
}
