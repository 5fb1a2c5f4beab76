package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

// Translation from the backend-neutral renderer enums to Vulkan values.

func descriptorType(t renderer.DescriptorType) vk.DescriptorType {
	switch t {
	case renderer.DescriptorTypeStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case renderer.DescriptorTypeCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

func shaderStages(s renderer.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&renderer.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&renderer.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(flags)
}

func bufferUsage(u renderer.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	table := []struct {
		from renderer.BufferUsage
		to   vk.BufferUsageFlagBits
	}{
		{renderer.BufferUsageTransferSrc, vk.BufferUsageTransferSrcBit},
		{renderer.BufferUsageTransferDst, vk.BufferUsageTransferDstBit},
		{renderer.BufferUsageUniform, vk.BufferUsageUniformBufferBit},
		{renderer.BufferUsageStorage, vk.BufferUsageStorageBufferBit},
		{renderer.BufferUsageVertex, vk.BufferUsageVertexBufferBit},
		{renderer.BufferUsageIndex, vk.BufferUsageIndexBufferBit},
	}
	for _, e := range table {
		if u&e.from != 0 {
			flags |= e.to
		}
	}
	return vk.BufferUsageFlags(flags)
}

func memoryProperties(m renderer.MemoryProperty) vk.MemoryPropertyFlags {
	var flags vk.MemoryPropertyFlagBits
	if m.Has(renderer.MemoryDeviceLocal) {
		flags |= vk.MemoryPropertyDeviceLocalBit
	}
	if m.Has(renderer.MemoryHostVisible) {
		flags |= vk.MemoryPropertyHostVisibleBit
	}
	if m.Has(renderer.MemoryHostCoherent) {
		flags |= vk.MemoryPropertyHostCoherentBit
	}
	return vk.MemoryPropertyFlags(flags)
}

func vertexFormat(f renderer.VertexFormat) vk.Format {
	switch f {
	case renderer.VertexFormatFloat32x2:
		return vk.FormatR32g32Sfloat
	case renderer.VertexFormatFloat32x4:
		return vk.FormatR32g32b32a32Sfloat
	default:
		return vk.FormatR32g32b32Sfloat
	}
}

func cullMode(c renderer.CullMode) vk.CullModeFlags {
	switch c {
	case renderer.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case renderer.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

func presentStatus(res vk.Result) (renderer.PresentStatus, bool) {
	switch res {
	case vk.Success:
		return renderer.StatusOK, true
	case vk.Suboptimal:
		return renderer.StatusSuboptimal, true
	case vk.ErrorOutOfDate:
		return renderer.StatusOutOfDate, true
	}
	return renderer.StatusOK, false
}
