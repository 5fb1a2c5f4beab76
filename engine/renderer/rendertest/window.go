// Package rendertest provides an in-memory implementation of the renderer
// backend interfaces. The fake GPU completes every submission immediately.
package rendertest

import (
	"github.com/spaghettifunk/dyne/engine/renderer"
)

// Window replays a list of extents: each WaitEvents call moves to the next
// one, the last one sticks.
type Window struct {
	extents    []renderer.Extent
	current    int
	resized    bool
	closed     bool
	WaitCalls  int
	ResetCalls int
}

func NewWindow(extents ...renderer.Extent) *Window {
	if len(extents) == 0 {
		extents = []renderer.Extent{{Width: 800, Height: 600}}
	}
	return &Window{extents: extents}
}

func (w *Window) Extent() renderer.Extent {
	return w.extents[w.current]
}

func (w *Window) WaitEvents() {
	w.WaitCalls++
	if w.current < len(w.extents)-1 {
		w.current++
	}
}

// Resize appends an extent, makes it current and raises the resize flag.
func (w *Window) Resize(e renderer.Extent) {
	w.extents = append(w.extents[:w.current+1], e)
	w.current = len(w.extents) - 1
	w.resized = true
}

// Queue appends extents that later WaitEvents calls step through.
func (w *Window) Queue(extents ...renderer.Extent) {
	w.extents = append(w.extents, extents...)
}

func (w *Window) WasResized() bool { return w.resized }

func (w *Window) ResetResized() {
	w.ResetCalls++
	w.resized = false
}

func (w *Window) ShouldClose() bool { return w.closed }

func (w *Window) Close() { w.closed = true }
