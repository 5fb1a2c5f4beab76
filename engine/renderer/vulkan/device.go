package vulkan

import (
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
	"github.com/spaghettifunk/dyne/engine/renderer"
)

// VulkanDevice is the logical device plus everything needed to create
// resources on it. It implements renderer.Device.
type VulkanDevice struct {
	context *VulkanContext

	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	TransferQueueIndex uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format

	presentMode string
	locks       *VulkanLockPool
	tracker     *renderer.ResourceTracker
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	TransferFamilyIndex int32
}

func (q VulkanPhysicalDeviceQueueFamilyInfo) complete(r *VulkanPhysicalDeviceRequirements) bool {
	return (!r.Graphics || q.GraphicsFamilyIndex >= 0) &&
		(!r.Present || q.PresentFamilyIndex >= 0) &&
		(!r.Transfer || q.TransferFamilyIndex >= 0)
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// NewDevice picks a physical device that can present to the context
// surface and creates the logical device, its queues and a graphics pool.
func NewDevice(context *VulkanContext, cfg Config) (*VulkanDevice, error) {
	d := &VulkanDevice{
		context:     context,
		presentMode: cfg.PresentMode,
		locks:       NewVulkanLockPool(),
		tracker:     renderer.NewResourceTracker(),
	}
	if err := d.selectPhysicalDevice(); err != nil {
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		return nil, err
	}
	if !d.detectDepthFormat() {
		d.Destroy()
		return nil, errors.New("failed to find a supported depth format")
	}
	return d, nil
}

func (d *VulkanDevice) selectPhysicalDevice() error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.context.Instance, &count, nil), "enumerate physical devices"); err != nil {
		return err
	}
	if count == 0 {
		return errors.New("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.context.Instance, &count, devices), "enumerate physical devices"); err != nil {
		return err
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		SamplerAnisotropy:    true,
		DiscreteGPU:          runtime.GOOS != "darwin",
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	// A discrete GPU is preferred; fall back to anything that works.
	for _, discrete := range []bool{requirements.DiscreteGPU, false} {
		requirements.DiscreteGPU = discrete
		for _, pd := range devices {
			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(pd, &properties)
			properties.Deref()
			properties.Limits.Deref()

			var features vk.PhysicalDeviceFeatures
			vk.GetPhysicalDeviceFeatures(pd, &features)
			features.Deref()

			queues, ok := d.meetsRequirements(pd, &properties, &features, &requirements)
			if !ok {
				continue
			}

			var memory vk.PhysicalDeviceMemoryProperties
			vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
			memory.Deref()

			d.PhysicalDevice = pd
			d.Properties = properties
			d.Features = features
			d.Memory = memory
			d.GraphicsQueueIndex = uint32(queues.GraphicsFamilyIndex)
			d.PresentQueueIndex = uint32(queues.PresentFamilyIndex)
			d.TransferQueueIndex = uint32(queues.TransferFamilyIndex)
			d.logSelection()
			return nil
		}
	}
	return errors.New("no physical devices were found which meet the requirements")
}

func (d *VulkanDevice) logSelection() {
	p := d.Properties
	core.LogInfo("Selected device: '%s'.", cString(p.DeviceName[:]))
	switch p.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	driver := vk.Version(p.DriverVersion)
	api := vk.Version(p.ApiVersion)
	core.LogInfo("GPU Driver version: %d.%d.%d", driver.Major(), driver.Minor(), driver.Patch())
	core.LogInfo("Vulkan API version: %d.%d.%d", api.Major(), api.Minor(), api.Patch())

	for j := 0; j < int(d.Memory.MemoryHeapCount); j++ {
		heap := d.Memory.MemoryHeaps[j]
		heap.Deref()
		gib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", gib)
		}
	}
}

func (d *VulkanDevice) meetsRequirements(pd vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	queues := VulkanPhysicalDeviceQueueFamilyInfo{-1, -1, -1}
	name := cString(properties.DeviceName[:])

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogDebug("%s is not a discrete GPU, and one is required. Skipping.", name)
		return queues, false
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)

	minTransferScore := 255
	for i := range families {
		families[i].Deref()
		flags := vk.QueueFlagBits(families[i].QueueFlags)
		score := 0
		if flags&vk.QueueGraphicsBit != 0 {
			if queues.GraphicsFamilyIndex < 0 {
				queues.GraphicsFamilyIndex = int32(i)
			}
			score++
		}
		if flags&vk.QueueComputeBit != 0 {
			score++
		}
		// The lowest score is the most likely to be a dedicated transfer queue.
		if flags&vk.QueueTransferBit != 0 && score <= minTransferScore {
			minTransferScore = score
			queues.TransferFamilyIndex = int32(i)
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), d.context.Surface, &supportsPresent); res != vk.Success {
			return queues, false
		}
		if supportsPresent == vk.True && queues.PresentFamilyIndex < 0 {
			queues.PresentFamilyIndex = int32(i)
		}
	}

	core.LogDebug("%s queues: graphics=%d present=%d transfer=%d", name,
		queues.GraphicsFamilyIndex, queues.PresentFamilyIndex, queues.TransferFamilyIndex)
	if !queues.complete(requirements) {
		return queues, false
	}

	support, err := querySwapchainSupport(pd, d.context.Surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogDebug("Required swapchain support not present, skipping %s.", name)
		return queues, false
	}

	available, err := deviceExtensions(pd)
	if err != nil {
		return queues, false
	}
	for _, ext := range requirements.DeviceExtensionNames {
		if _, ok := available[ext]; !ok {
			core.LogDebug("Required extension not found: '%s', skipping %s.", ext, name)
			return queues, false
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogDebug("%s does not support samplerAnisotropy, skipping.", name)
		return queues, false
	}
	return queues, true
}

func deviceExtensions(pd vk.PhysicalDevice) (map[string]struct{}, error) {
	var count uint32
	if err := check(vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil), "enumerate device extensions"); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := check(vk.EnumerateDeviceExtensionProperties(pd, "", &count, props), "enumerate device extensions"); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, count)
	for i := range props {
		props[i].Deref()
		out[cString(props[i].ExtensionName[:])] = struct{}{}
	}
	return out, nil
}

func querySwapchainSupport(pd vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	var info VulkanSwapchainSupportInfo
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &info.Capabilities), "surface capabilities"); err != nil {
		return info, err
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil), "surface formats"); err != nil {
		return info, err
	}
	if formatCount > 0 {
		info.Formats = make([]vk.SurfaceFormat, formatCount)
		if err := check(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, info.Formats), "surface formats"); err != nil {
			return info, err
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, nil), "surface present modes"); err != nil {
		return info, err
	}
	if modeCount > 0 {
		info.PresentModes = make([]vk.PresentMode, modeCount)
		if err := check(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, info.PresentModes), "surface present modes"); err != nil {
			return info, err
		}
	}
	return info, nil
}

func (d *VulkanDevice) createLogicalDevice() error {
	core.LogInfo("Creating logical device...")

	// Shared indices get a single queue.
	indices := []uint32{d.GraphicsQueueIndex}
	for _, idx := range []uint32{d.PresentQueueIndex, d.TransferQueueIndex} {
		seen := false
		for _, have := range indices {
			seen = seen || have == idx
		}
		if !seen {
			indices = append(indices, idx)
		}
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, idx := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: idx,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
		d.locks.SetQueueFamily(idx)
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{SamplerAnisotropy: vk.True}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(d.PhysicalDevice)
	if err != nil {
		return err
	}
	if _, ok := available["VK_KHR_portability_subset"]; ok {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var device vk.Device
	if err := check(vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, d.context.Allocator, &device), "create logical device"); err != nil {
		return err
	}
	d.LogicalDevice = device
	core.LogInfo("Logical device created.")

	var q vk.Queue
	vk.GetDeviceQueue(d.LogicalDevice, d.GraphicsQueueIndex, 0, &q)
	d.GraphicsQueue = q
	vk.GetDeviceQueue(d.LogicalDevice, d.PresentQueueIndex, 0, &q)
	d.PresentQueue = q
	vk.GetDeviceQueue(d.LogicalDevice, d.TransferQueueIndex, 0, &q)
	d.TransferQueue = q

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit | vk.CommandPoolCreateTransientBit),
	}
	var pool vk.CommandPool
	if err := check(vk.CreateCommandPool(d.LogicalDevice, &poolCreateInfo, d.context.Allocator, &pool), "create graphics command pool"); err != nil {
		vk.DestroyDevice(d.LogicalDevice, d.context.Allocator)
		d.LogicalDevice = nil
		return err
	}
	d.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")
	return nil
}

func (d *VulkanDevice) detectDepthFormat() bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.LinearTilingFeatures&flags == flags || properties.OptimalTilingFeatures&flags == flags {
			d.DepthFormat = candidate
			return true
		}
	}
	d.DepthFormat = vk.FormatUndefined
	return false
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has all the requested property flags.
func (d *VulkanDevice) FindMemoryIndex(typeFilter uint32, flags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.Memory.MemoryTypeCount; i++ {
		memoryType := d.Memory.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&flags == flags {
			return i, nil
		}
	}
	return 0, errors.Errorf("no suitable memory type for filter %#x and flags %#x", typeFilter, flags)
}

func (d *VulkanDevice) Limits() renderer.Limits {
	return renderer.Limits{
		MinUniformBufferOffsetAlignment: uint64(d.Properties.Limits.MinUniformBufferOffsetAlignment),
		NonCoherentAtomSize:             uint64(d.Properties.Limits.NonCoherentAtomSize),
	}
}

func (d *VulkanDevice) WaitIdle() error {
	return check(vk.DeviceWaitIdle(d.LogicalDevice), "wait for device idle")
}

func (d *VulkanDevice) CreateSwapchain(extent renderer.Extent, previous renderer.Swapchain) (renderer.Swapchain, error) {
	var old *VulkanSwapchain
	if previous != nil {
		sc, ok := previous.(*VulkanSwapchain)
		if !ok {
			return nil, errors.Errorf("previous swapchain is a %T", previous)
		}
		old = sc
	}
	return newSwapchain(d, extent, old)
}

func (d *VulkanDevice) AllocateCommandBuffers(count int) ([]renderer.CommandBuffer, error) {
	handles := make([]vk.CommandBuffer, count)
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	err := d.locks.SafeCall(CommandBufferManagement, func() error {
		return check(vk.AllocateCommandBuffers(d.LogicalDevice, &info, handles), "allocate %d command buffers", count)
	})
	if err != nil {
		return nil, err
	}
	out := make([]renderer.CommandBuffer, count)
	for i, h := range handles {
		out[i] = &VulkanCommandBuffer{Handle: h, State: COMMAND_BUFFER_STATE_READY, device: d}
	}
	return out, nil
}

func (d *VulkanDevice) FreeCommandBuffers(cmds []renderer.CommandBuffer) {
	handles := make([]vk.CommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		if vc, ok := c.(*VulkanCommandBuffer); ok && vc.Handle != nil {
			handles = append(handles, vc.Handle)
			vc.Handle = nil
			vc.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
		}
	}
	if len(handles) == 0 {
		return
	}
	_ = d.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(d.LogicalDevice, d.GraphicsCommandPool, uint32(len(handles)), handles)
		return nil
	})
}

func (d *VulkanDevice) SubmitOneShot(record func(cmd renderer.CommandBuffer)) error {
	cmds, err := d.AllocateCommandBuffers(1)
	if err != nil {
		return err
	}
	defer d.FreeCommandBuffers(cmds)
	cmd := cmds[0].(*VulkanCommandBuffer)

	if err := cmd.begin(vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)); err != nil {
		return err
	}
	record(cmd)
	if err := cmd.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd.Handle},
	}
	return d.locks.SafeQueueCall(d.GraphicsQueueIndex, func() error {
		if err := check(vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence), "submit one-shot commands"); err != nil {
			return err
		}
		cmd.State = COMMAND_BUFFER_STATE_SUBMITTED
		return check(vk.QueueWaitIdle(d.GraphicsQueue), "wait for graphics queue")
	})
}

// Tracker exposes the live resource registry of the device.
func (d *VulkanDevice) Tracker() *renderer.ResourceTracker { return d.tracker }

func (d *VulkanDevice) Destroy() {
	if d.LogicalDevice == nil {
		return
	}
	for _, r := range d.tracker.Live() {
		core.LogWarn("%s %q (%s) was not destroyed before the device", r.Kind, r.Label, r.ID)
	}

	d.GraphicsQueue = nil
	d.PresentQueue = nil
	d.TransferQueue = nil

	core.LogInfo("Destroying command pools...")
	vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, d.context.Allocator)
	d.GraphicsCommandPool = vk.NullCommandPool

	core.LogInfo("Destroying logical device...")
	vk.DestroyDevice(d.LogicalDevice, d.context.Allocator)
	d.LogicalDevice = nil
	d.PhysicalDevice = nil
}
