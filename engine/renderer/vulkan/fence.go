package vulkan

import (
	"time"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
)

// VulkanFence implements renderer.Fence. IsSignaled mirrors what the CPU
// last observed so redundant waits and resets are skipped.
type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool

	device *VulkanDevice
}

func NewFence(device *VulkanDevice, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{IsSignaled: createSignaled, device: device}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if createSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if err := check(vk.CreateFence(device.LogicalDevice, &fenceCreateInfo, device.context.Allocator, &handle), "create fence"); err != nil {
		return nil, err
	}
	fence.Handle = handle
	return fence, nil
}

func (vf *VulkanFence) Wait(timeout time.Duration) error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(vf.device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, uint64(timeout.Nanoseconds()))
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("fence wait timed out after %s", timeout)
		return errors.Errorf("fence wait timed out after %s", timeout)
	}
	return check(result, "wait for fence")
}

func (vf *VulkanFence) Reset() error {
	if !vf.IsSignaled {
		return nil
	}
	if err := check(vk.ResetFences(vf.device.LogicalDevice, 1, []vk.Fence{vf.Handle}), "reset fence"); err != nil {
		return err
	}
	vf.IsSignaled = false
	return nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(vf.device.LogicalDevice, vf.Handle, vf.device.context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}
