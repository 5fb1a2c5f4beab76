package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/Masterminds/semver/v3"
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
	"github.com/spaghettifunk/dyne/engine/renderer"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

type Config struct {
	ApplicationName string
	// APIVersion is the Vulkan version requested from the instance.
	APIVersion *semver.Version
	Validation bool
	// PresentMode is one of "fifo", "mailbox" or "immediate".
	PresentMode string
}

// SurfaceWindow is a window Vulkan can present to.
type SurfaceWindow interface {
	renderer.Window
	RequiredInstanceExtensions() []string
	// InstanceProcAddr is the loader entry point vkGetInstanceProcAddr.
	InstanceProcAddr() unsafe.Pointer
	// CreateSurface returns a VkSurfaceKHR handle for the instance.
	CreateSurface(instance interface{}) (uintptr, error)
}

// VulkanContext owns the instance, the debug callback and the window surface.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback
	validation     bool
}

func apiVersion(v *semver.Version) uint32 {
	if v == nil {
		return uint32(vk.MakeVersion(1, 0, 0))
	}
	return uint32(vk.MakeVersion(int(v.Major()), int(v.Minor()), int(v.Patch())))
}

func NewContext(window SurfaceWindow, cfg Config) (*VulkanContext, error) {
	procAddr := window.InstanceProcAddr()
	if procAddr == nil {
		return nil, errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize vulkan loader")
	}

	vc := &VulkanContext{validation: cfg.Validation}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         apiVersion(cfg.APIVersion),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.ApplicationName),
		PEngineName:        VulkanSafeString("Dyne Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{}, window.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if cfg.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if err := requireLayer(validationLayer); err != nil {
			return nil, err
		}
		layers = []string{validationLayer}
		core.LogInfo("validation layers enabled")
	}
	for _, e := range extensions {
		core.LogDebug("instance extension: %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if err := check(vk.CreateInstance(&createInfo, vc.Allocator, &vc.Instance), "create instance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(vc.Instance); err != nil {
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		return nil, errors.Wrap(err, "init instance")
	}
	core.LogInfo("Vulkan instance created")

	if cfg.Validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := check(vk.CreateDebugReportCallback(vc.Instance, &debugCreateInfo, vc.Allocator, &dbg), "create debug callback"); err != nil {
			vc.Destroy()
			return nil, err
		}
		vc.debugMessenger = dbg
	}

	surface, err := window.CreateSurface(vc.Instance)
	if err != nil {
		vc.Destroy()
		return nil, errors.Wrap(err, "create window surface")
	}
	vc.Surface = vk.SurfaceFromPointer(surface)
	return vc, nil
}

func requireLayer(name string) error {
	var count uint32
	if err := check(vk.EnumerateInstanceLayerProperties(&count, nil), "enumerate layers"); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := check(vk.EnumerateInstanceLayerProperties(&count, available), "enumerate layers"); err != nil {
		return err
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].LayerName[:]) == name {
			return nil
		}
	}
	return errors.Errorf("required validation layer is missing: %s", name)
}

func (vc *VulkanContext) Destroy() {
	if vc.Surface != vk.NullSurface {
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	}
	if vc.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugMessenger, vc.Allocator)
		vc.debugMessenger = vk.NullDebugReportCallback
	}
	if vc.Instance != nil {
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
