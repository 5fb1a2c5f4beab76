package core

import (
	"github.com/spaghettifunk/dyne/engine/containers"
)

const AVG_COUNT = 30

// FrameMetrics keeps a rolling frame-time average and a per-second FPS count.
type FrameMetrics struct {
	frameTimes         *containers.RingQueue[float64]
	msAverage          float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		frameTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// Update records one frame that took frameSeconds.
// It reports true once per second, when a fresh FPS value is available.
func (m *FrameMetrics) Update(frameSeconds float64) bool {
	frameMS := frameSeconds * 1000.0
	m.frameTimes.Push(frameMS)

	if m.frameTimes.IsFull() {
		total := 0.0
		m.frameTimes.Each(func(v float64) { total += v })
		m.msAverage = total / float64(AVG_COUNT)
	}

	// Calculate frames per second.
	m.frames++
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS >= 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
		return true
	}
	return false
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

func (m *FrameMetrics) FrameTime() float64 {
	return m.msAverage
}
