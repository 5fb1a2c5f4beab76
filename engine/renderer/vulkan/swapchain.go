package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
	dmath "github.com/spaghettifunk/dyne/engine/math"
	"github.com/spaghettifunk/dyne/engine/renderer"
)

// VulkanSwapchain implements renderer.Swapchain. It owns the render pass,
// one depth image and framebuffer per swapchain image, and the
// per-frame-slot semaphores and fences.
type VulkanSwapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachments []*VulkanImage
	Framebuffers     []*VulkanFramebuffer
	Renderpass       *VulkanRenderPass

	imageAvailable []vk.Semaphore
	renderFinished []vk.Semaphore
	sync           *renderer.FrameSync

	extent vk.Extent2D
	device *VulkanDevice
}

// chooseSurfaceFormat prefers 8-bit BGRA sRGB.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

// choosePresentMode returns the configured mode when the surface supports
// it. FIFO is always available.
func choosePresentMode(modes []vk.PresentMode, preferred string) vk.PresentMode {
	want := vk.PresentModeMailbox
	switch preferred {
	case "fifo":
		return vk.PresentModeFifo
	case "immediate":
		want = vk.PresentModeImmediate
	}
	for _, m := range modes {
		if m == want {
			return m
		}
	}
	return vk.PresentModeFifo
}

func chooseExtent(caps vk.SurfaceCapabilities, want renderer.Extent) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  dmath.Clamp(want.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: dmath.Clamp(want.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func newSwapchain(d *VulkanDevice, want renderer.Extent, old *VulkanSwapchain) (*VulkanSwapchain, error) {
	support, err := querySwapchainSupport(d.PhysicalDevice, d.context.Surface)
	if err != nil {
		return nil, err
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, errors.New("surface has no formats or present modes")
	}

	sc := &VulkanSwapchain{
		ImageFormat: chooseSurfaceFormat(support.Formats),
		PresentMode: choosePresentMode(support.PresentModes, d.presentMode),
		extent:      chooseExtent(support.Capabilities, want),
		device:      d,
	}
	if sc.extent.Width == 0 || sc.extent.Height == 0 {
		return nil, errors.Errorf("surface extent is %dx%d", sc.extent.Width, sc.extent.Height)
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.context.Surface,
		MinImageCount:    chooseImageCount(support.Capabilities),
		ImageFormat:      sc.ImageFormat.Format,
		ImageColorSpace:  sc.ImageFormat.ColorSpace,
		ImageExtent:      sc.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      sc.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if d.GraphicsQueueIndex != d.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{d.GraphicsQueueIndex, d.PresentQueueIndex}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}
	if old != nil {
		createInfo.OldSwapchain = old.Handle
	}

	err = d.locks.SafeCall(SwapchainManagement, func() error {
		var handle vk.Swapchain
		if err := check(vk.CreateSwapchain(d.LogicalDevice, &createInfo, d.context.Allocator, &handle), "create swapchain"); err != nil {
			return err
		}
		sc.Handle = handle
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := sc.createImages(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createRenderTargets(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createSyncObjects(); err != nil {
		sc.Destroy()
		return nil, err
	}

	core.LogInfo("Swapchain created: %dx%d, %d images, format %d, present mode %d",
		sc.extent.Width, sc.extent.Height, len(sc.Images), sc.ImageFormat.Format, sc.PresentMode)
	return sc, nil
}

func (sc *VulkanSwapchain) createImages() error {
	d := sc.device
	var count uint32
	if err := check(vk.GetSwapchainImages(d.LogicalDevice, sc.Handle, &count, nil), "get swapchain images"); err != nil {
		return err
	}
	sc.Images = make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(d.LogicalDevice, sc.Handle, &count, sc.Images), "get swapchain images"); err != nil {
		return err
	}
	// Views only: the images belong to the swapchain.
	sc.Views = make([]vk.ImageView, 0, count)
	for _, img := range sc.Images {
		view, err := createImageView(d, img, sc.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return err
		}
		sc.Views = append(sc.Views, view)
	}
	return nil
}

func (sc *VulkanSwapchain) createRenderTargets() error {
	d := sc.device
	rp, err := NewRenderPass(d, sc.ImageFormat.Format, d.DepthFormat)
	if err != nil {
		return err
	}
	sc.Renderpass = rp

	for _, view := range sc.Views {
		depth, err := NewImage(d, imageDesc{
			width:  sc.extent.Width,
			height: sc.extent.Height,
			format: d.DepthFormat,
			usage:  vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
			aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		})
		if err != nil {
			return errors.Wrap(err, "depth attachment")
		}
		sc.DepthAttachments = append(sc.DepthAttachments, depth)

		fb, err := NewFramebuffer(d, rp, sc.extent.Width, sc.extent.Height, []vk.ImageView{view, depth.View})
		if err != nil {
			return err
		}
		sc.Framebuffers = append(sc.Framebuffers, fb)
	}
	return nil
}

func (sc *VulkanSwapchain) createSyncObjects() error {
	d := sc.device
	semaphoreInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	fences := make([]renderer.Fence, 0, renderer.MaxFramesInFlight)
	for i := 0; i < renderer.MaxFramesInFlight; i++ {
		var available, finished vk.Semaphore
		if err := check(vk.CreateSemaphore(d.LogicalDevice, &semaphoreInfo, d.context.Allocator, &available), "create semaphore"); err != nil {
			return err
		}
		sc.imageAvailable = append(sc.imageAvailable, available)
		if err := check(vk.CreateSemaphore(d.LogicalDevice, &semaphoreInfo, d.context.Allocator, &finished), "create semaphore"); err != nil {
			return err
		}
		sc.renderFinished = append(sc.renderFinished, finished)

		fence, err := NewFence(d, true)
		if err != nil {
			for _, f := range fences {
				f.Destroy()
			}
			return err
		}
		fences = append(fences, fence)
	}
	sc.sync = renderer.NewFrameSync(fences, len(sc.Images))
	return nil
}

func (sc *VulkanSwapchain) AcquireNextImage(frame int) (uint32, renderer.PresentStatus, error) {
	if err := sc.sync.WaitForSlot(frame); err != nil {
		return 0, renderer.StatusOK, err
	}
	var imageIndex uint32
	res := vk.AcquireNextImage(sc.device.LogicalDevice, sc.Handle, vk.MaxUint64, sc.imageAvailable[frame], vk.NullFence, &imageIndex)
	status, ok := presentStatus(res)
	if !ok {
		return 0, status, check(res, "acquire next image")
	}
	return imageIndex, status, nil
}

func (sc *VulkanSwapchain) SubmitCommandBuffers(cmd renderer.CommandBuffer, frame int, imageIndex uint32) (renderer.PresentStatus, error) {
	vcmd, ok := cmd.(*VulkanCommandBuffer)
	if !ok {
		return renderer.StatusOK, errors.Errorf("command buffer is a %T", cmd)
	}
	fence, err := sc.sync.ClaimImage(imageIndex, frame)
	if err != nil {
		return renderer.StatusOK, err
	}
	d := sc.device

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{sc.imageAvailable[frame]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{vcmd.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{sc.renderFinished[frame]},
	}
	err = d.locks.SafeQueueCall(d.GraphicsQueueIndex, func() error {
		return check(vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.(*VulkanFence).Handle), "submit draw command buffer")
	})
	if err != nil {
		return renderer.StatusOK, err
	}
	vcmd.State = COMMAND_BUFFER_STATE_SUBMITTED

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sc.renderFinished[frame]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	var res vk.Result
	_ = d.locks.SafeQueueCall(d.PresentQueueIndex, func() error {
		res = vk.QueuePresent(d.PresentQueue, &presentInfo)
		return nil
	})
	status, ok := presentStatus(res)
	if !ok {
		return status, check(res, "present swapchain image")
	}
	return status, nil
}

func (sc *VulkanSwapchain) Extent() renderer.Extent {
	return renderer.Extent{Width: sc.extent.Width, Height: sc.extent.Height}
}

func (sc *VulkanSwapchain) Formats() renderer.SwapchainFormats {
	return renderer.SwapchainFormats{
		Image: renderer.Format(sc.ImageFormat.Format),
		Depth: renderer.Format(sc.device.DepthFormat),
	}
}

func (sc *VulkanSwapchain) ImageCount() int { return len(sc.Images) }

func (sc *VulkanSwapchain) RenderPass() renderer.RenderPass { return sc.Renderpass }

func (sc *VulkanSwapchain) Framebuffer(imageIndex uint32) renderer.Framebuffer {
	return sc.Framebuffers[imageIndex]
}

func (sc *VulkanSwapchain) Destroy() {
	d := sc.device
	if sc.sync != nil {
		sc.sync.Destroy()
		sc.sync = nil
	}
	for _, s := range sc.imageAvailable {
		vk.DestroySemaphore(d.LogicalDevice, s, d.context.Allocator)
	}
	for _, s := range sc.renderFinished {
		vk.DestroySemaphore(d.LogicalDevice, s, d.context.Allocator)
	}
	sc.imageAvailable, sc.renderFinished = nil, nil

	for _, fb := range sc.Framebuffers {
		fb.Destroy()
	}
	sc.Framebuffers = nil
	for _, depth := range sc.DepthAttachments {
		depth.Destroy()
	}
	sc.DepthAttachments = nil
	if sc.Renderpass != nil {
		sc.Renderpass.Destroy()
		sc.Renderpass = nil
	}
	for _, view := range sc.Views {
		vk.DestroyImageView(d.LogicalDevice, view, d.context.Allocator)
	}
	sc.Views = nil
	sc.Images = nil

	if sc.Handle != vk.NullSwapchain {
		_ = d.locks.SafeCall(SwapchainManagement, func() error {
			vk.DestroySwapchain(d.LogicalDevice, sc.Handle, d.context.Allocator)
			return nil
		})
		sc.Handle = vk.NullSwapchain
	}
}
