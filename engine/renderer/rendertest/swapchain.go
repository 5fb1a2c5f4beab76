package rendertest

import (
	"time"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

// ErrDeadlock is returned when the CPU would wait on a fence nothing will
// ever signal.
var ErrDeadlock = errors.New("wait on unsignaled fence with no pending submission")

type Fence struct {
	Signaled  bool
	Waits     int
	Resets    int
	Destroyed bool
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.Waits++
	if !f.Signaled {
		return ErrDeadlock
	}
	return nil
}

func (f *Fence) Reset() error {
	f.Resets++
	f.Signaled = false
	return nil
}

func (f *Fence) Destroy() { f.Destroyed = true }

type RenderPass struct {
	Formats   renderer.SwapchainFormats
	Destroyed bool
}

func (r *RenderPass) Destroy() { r.Destroyed = true }

type Framebuffer struct {
	Image     uint32
	Destroyed bool
}

func (f *Framebuffer) Destroy() { f.Destroyed = true }

// Submission is one SubmitCommandBuffers call.
type Submission struct {
	Frame int
	Image uint32
	Cmd   *CommandBuffer
}

// Swapchain hands out images round-robin and, unless HoldFences is set,
// completes work on submit.
type Swapchain struct {
	ExtentValue  renderer.Extent
	FormatsValue renderer.SwapchainFormats
	Previous     renderer.Swapchain
	Sync         *renderer.FrameSync
	Fences       []*Fence
	Pass         *RenderPass
	Framebuffers []*Framebuffer
	Submissions  []Submission
	Acquires     []int
	Destroyed    bool

	// Scripted outcomes, consumed front to back. Empty means StatusOK.
	AcquireStatus []renderer.PresentStatus
	PresentStatus []renderer.PresentStatus
	AcquireErr    error
	PresentErr    error
	// HoldFences leaves submitted work pending until CompleteWork.
	HoldFences bool

	nextImage uint32
}

func newSwapchain(extent renderer.Extent, formats renderer.SwapchainFormats, imageCount int, previous renderer.Swapchain) *Swapchain {
	fences := make([]*Fence, renderer.MaxFramesInFlight)
	slots := make([]renderer.Fence, renderer.MaxFramesInFlight)
	for i := range fences {
		fences[i] = &Fence{Signaled: true}
		slots[i] = fences[i]
	}
	sc := &Swapchain{
		ExtentValue:  extent,
		FormatsValue: formats,
		Previous:     previous,
		Sync:         renderer.NewFrameSync(slots, imageCount),
		Fences:       fences,
		Pass:         &RenderPass{Formats: formats},
	}
	for i := 0; i < imageCount; i++ {
		sc.Framebuffers = append(sc.Framebuffers, &Framebuffer{Image: uint32(i)})
	}
	return sc
}

func pop(q *[]renderer.PresentStatus) renderer.PresentStatus {
	if len(*q) == 0 {
		return renderer.StatusOK
	}
	s := (*q)[0]
	*q = (*q)[1:]
	return s
}

func (s *Swapchain) AcquireNextImage(frame int) (uint32, renderer.PresentStatus, error) {
	if err := s.Sync.WaitForSlot(frame); err != nil {
		return 0, renderer.StatusOK, err
	}
	s.Acquires = append(s.Acquires, frame)
	if s.AcquireErr != nil {
		return 0, renderer.StatusOK, s.AcquireErr
	}
	st := pop(&s.AcquireStatus)
	if st == renderer.StatusOutOfDate {
		return 0, st, nil
	}
	image := s.nextImage
	s.nextImage = (s.nextImage + 1) % uint32(len(s.Framebuffers))
	return image, st, nil
}

func (s *Swapchain) SubmitCommandBuffers(cmd renderer.CommandBuffer, frame int, imageIndex uint32) (renderer.PresentStatus, error) {
	fc, ok := cmd.(*CommandBuffer)
	if !ok {
		return renderer.StatusOK, errors.New("foreign command buffer")
	}
	fence, err := s.Sync.ClaimImage(imageIndex, frame)
	if err != nil {
		return renderer.StatusOK, err
	}
	if err := fc.execute(); err != nil {
		return renderer.StatusOK, err
	}
	fence.(*Fence).Signaled = !s.HoldFences
	s.Submissions = append(s.Submissions, Submission{Frame: frame, Image: imageIndex, Cmd: fc})

	if s.PresentErr != nil {
		return renderer.StatusOK, s.PresentErr
	}
	return pop(&s.PresentStatus), nil
}

// CompleteWork signals every in-flight fence, as if the GPU caught up.
func (s *Swapchain) CompleteWork() {
	for _, f := range s.Fences {
		f.Signaled = true
	}
}

func (s *Swapchain) Extent() renderer.Extent                   { return s.ExtentValue }
func (s *Swapchain) Formats() renderer.SwapchainFormats        { return s.FormatsValue }
func (s *Swapchain) ImageCount() int                           { return len(s.Framebuffers) }
func (s *Swapchain) RenderPass() renderer.RenderPass           { return s.Pass }
func (s *Swapchain) Framebuffer(i uint32) renderer.Framebuffer { return s.Framebuffers[i] }

func (s *Swapchain) Destroy() {
	if s.Destroyed {
		return
	}
	s.Destroyed = true
	for _, fb := range s.Framebuffers {
		fb.Destroy()
	}
	s.Pass.Destroy()
	s.Sync.Destroy()
}
