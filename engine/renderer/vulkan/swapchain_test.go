package vulkan

import (
	"math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

func TestChooseSurfaceFormat(t *testing.T) {
	unorm := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	srgb := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	assert.Equal(t, vk.FormatB8g8r8a8Srgb, chooseSurfaceFormat([]vk.SurfaceFormat{unorm, srgb}).Format)
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, chooseSurfaceFormat([]vk.SurfaceFormat{unorm}).Format)
}

func TestChoosePresentMode(t *testing.T) {
	all := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox, vk.PresentModeImmediate}
	fifoOnly := []vk.PresentMode{vk.PresentModeFifo}

	tests := []struct {
		name      string
		modes     []vk.PresentMode
		preferred string
		want      vk.PresentMode
	}{
		{"mailbox by default", all, "", vk.PresentModeMailbox},
		{"explicit fifo", all, "fifo", vk.PresentModeFifo},
		{"immediate", all, "immediate", vk.PresentModeImmediate},
		{"mailbox unsupported", fifoOnly, "mailbox", vk.PresentModeFifo},
		{"immediate unsupported", fifoOnly, "immediate", vk.PresentModeFifo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, choosePresentMode(tt.modes, tt.preferred))
		})
	}
}

func TestChooseExtent(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 1920, Height: 1080},
	}
	got := chooseExtent(caps, renderer.Extent{Width: 4000, Height: 600})
	assert.Equal(t, uint32(1920), got.Width)
	assert.Equal(t, uint32(600), got.Height)

	// the surface dictates the extent when it reports one
	caps.CurrentExtent = vk.Extent2D{Width: 800, Height: 600}
	got = chooseExtent(caps, renderer.Extent{Width: 1024, Height: 768})
	assert.Equal(t, uint32(800), got.Width)
	assert.Equal(t, uint32(600), got.Height)
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2}))
	assert.Equal(t, uint32(2), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
}

func TestPresentStatus(t *testing.T) {
	status, ok := presentStatus(vk.Suboptimal)
	assert.True(t, ok)
	assert.Equal(t, renderer.StatusSuboptimal, status)

	status, ok = presentStatus(vk.ErrorOutOfDate)
	assert.True(t, ok)
	assert.Equal(t, renderer.StatusOutOfDate, status)

	_, ok = presentStatus(vk.ErrorDeviceLost)
	assert.False(t, ok)
}
