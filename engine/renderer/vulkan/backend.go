package vulkan

import (
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
)

// VulkanRenderer brings up the Vulkan objects that outlive any swapchain:
// instance, surface and logical device.
type VulkanRenderer struct {
	context *VulkanContext
	device  *VulkanDevice
}

func New(window SurfaceWindow, cfg Config) (*VulkanRenderer, error) {
	ctx, err := NewContext(window, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create vulkan context")
	}
	device, err := NewDevice(ctx, cfg)
	if err != nil {
		ctx.Destroy()
		return nil, errors.Wrap(err, "failed to create vulkan device")
	}
	core.LogInfo("Vulkan renderer initialized successfully.")
	return &VulkanRenderer{context: ctx, device: device}, nil
}

func (vr *VulkanRenderer) Device() *VulkanDevice {
	return vr.device
}

// Shutdown waits for the GPU and releases the device, surface and
// instance. Everything created from the device must already be destroyed.
func (vr *VulkanRenderer) Shutdown() {
	if vr.device != nil {
		if err := vr.device.WaitIdle(); err != nil {
			core.LogError("wait idle before shutdown: %v", err)
		}
		vr.device.Destroy()
		vr.device = nil
	}
	if vr.context != nil {
		vr.context.Destroy()
		vr.context = nil
	}
	core.LogInfo("Vulkan renderer shut down.")
}
