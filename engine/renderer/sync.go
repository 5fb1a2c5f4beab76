package renderer

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// FenceTimeout is used for every CPU wait on a frame fence.
const FenceTimeout = time.Duration(math.MaxInt64)

// FrameSync tracks the in-flight fence of every frame slot and which fence
// last used each swapchain image. Images may be acquired out of order, so a
// frame can get an image whose previous submission is still running under a
// different slot.
type FrameSync struct {
	inFlight       []Fence
	imagesInFlight []Fence
}

// NewFrameSync takes ownership of the slot fences. They must be created
// signaled so the first wait of every slot returns immediately.
func NewFrameSync(inFlight []Fence, imageCount int) *FrameSync {
	return &FrameSync{
		inFlight:       inFlight,
		imagesInFlight: make([]Fence, imageCount),
	}
}

func (s *FrameSync) Slots() int {
	return len(s.inFlight)
}

// WaitForSlot blocks until the previous submission of the slot retired.
func (s *FrameSync) WaitForSlot(frame int) error {
	if frame < 0 || frame >= len(s.inFlight) {
		return errors.Errorf("frame slot %d out of range [0,%d)", frame, len(s.inFlight))
	}
	return errors.Wrapf(s.inFlight[frame].Wait(FenceTimeout), "wait for frame slot %d", frame)
}

// ClaimImage makes the slot the owner of the image: it waits for whatever
// submission last used the image, records the slot fence against it and
// resets that fence. The returned fence must be signaled by the submission.
func (s *FrameSync) ClaimImage(imageIndex uint32, frame int) (Fence, error) {
	if int(imageIndex) >= len(s.imagesInFlight) {
		return nil, errors.Errorf("image index %d out of range [0,%d)", imageIndex, len(s.imagesInFlight))
	}
	fence := s.inFlight[frame]
	if prev := s.imagesInFlight[imageIndex]; prev != nil && prev != fence {
		if err := prev.Wait(FenceTimeout); err != nil {
			return nil, errors.Wrapf(err, "wait for image %d", imageIndex)
		}
	}
	s.imagesInFlight[imageIndex] = fence
	if err := fence.Reset(); err != nil {
		return nil, errors.Wrapf(err, "reset fence of frame slot %d", frame)
	}
	return fence, nil
}

// ImageFence returns the fence that last claimed the image, or nil.
func (s *FrameSync) ImageFence(imageIndex uint32) Fence {
	if int(imageIndex) >= len(s.imagesInFlight) {
		return nil
	}
	return s.imagesInFlight[imageIndex]
}

func (s *FrameSync) Destroy() {
	for _, f := range s.inFlight {
		f.Destroy()
	}
	s.inFlight = nil
	s.imagesInFlight = nil
}
