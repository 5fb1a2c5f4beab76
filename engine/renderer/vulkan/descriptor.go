package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

// The descriptor driver hands out raw Vulkan handles as the opaque
// renderer handles.

func (d *VulkanDevice) CreateDescriptorSetLayout(bindings []renderer.LayoutBinding) (renderer.DescriptorSetLayoutHandle, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      shaderStages(b.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	err := d.locks.SafeCall(DescriptorManagement, func() error {
		return check(vk.CreateDescriptorSetLayout(d.LogicalDevice, &info, d.context.Allocator, &layout), "create descriptor set layout")
	})
	if err != nil {
		return nil, err
	}
	return layout, nil
}

func (d *VulkanDevice) DestroyDescriptorSetLayout(layout renderer.DescriptorSetLayoutHandle) {
	vk.DestroyDescriptorSetLayout(d.LogicalDevice, layout.(vk.DescriptorSetLayout), d.context.Allocator)
}

func (d *VulkanDevice) CreateDescriptorPool(cfg renderer.DescriptorPoolConfig) (renderer.DescriptorPoolHandle, error) {
	sizes := make([]vk.DescriptorPoolSize, len(cfg.Sizes))
	for i, s := range cfg.Sizes {
		sizes[i] = vk.DescriptorPoolSize{Type: descriptorType(s.Type), DescriptorCount: s.Count}
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       cfg.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	if cfg.Flags&renderer.PoolFlagFreeDescriptorSet != 0 {
		info.Flags = vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit)
	}
	var pool vk.DescriptorPool
	err := d.locks.SafeCall(DescriptorManagement, func() error {
		return check(vk.CreateDescriptorPool(d.LogicalDevice, &info, d.context.Allocator, &pool), "create descriptor pool")
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func (d *VulkanDevice) DestroyDescriptorPool(pool renderer.DescriptorPoolHandle) {
	vk.DestroyDescriptorPool(d.LogicalDevice, pool.(vk.DescriptorPool), d.context.Allocator)
}

// AllocateDescriptorSet maps the pool-exhaustion results to
// renderer.ErrDescriptorPoolExhausted.
func (d *VulkanDevice) AllocateDescriptorSet(pool renderer.DescriptorPoolHandle, layout renderer.DescriptorSetLayoutHandle) (renderer.DescriptorSet, error) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.(vk.DescriptorPool),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.(vk.DescriptorSetLayout)},
	}
	var set vk.DescriptorSet
	var res vk.Result
	_ = d.locks.SafeCall(DescriptorManagement, func() error {
		res = vk.AllocateDescriptorSets(d.LogicalDevice, &info, &set)
		return nil
	})
	switch res {
	case vk.Success:
		return set, nil
	case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
		return nil, errors.Wrap(renderer.ErrDescriptorPoolExhausted, VulkanResultString(res, false))
	}
	return nil, check(res, "allocate descriptor set")
}

func (d *VulkanDevice) FreeDescriptorSets(pool renderer.DescriptorPoolHandle, sets []renderer.DescriptorSet) error {
	if len(sets) == 0 {
		return nil
	}
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		handles[i] = s.(vk.DescriptorSet)
	}
	return d.locks.SafeCall(DescriptorManagement, func() error {
		return check(vk.FreeDescriptorSets(d.LogicalDevice, pool.(vk.DescriptorPool), uint32(len(handles)), &handles[0]), "free descriptor sets")
	})
}

func (d *VulkanDevice) ResetDescriptorPool(pool renderer.DescriptorPoolHandle) error {
	return d.locks.SafeCall(DescriptorManagement, func() error {
		return check(vk.ResetDescriptorPool(d.LogicalDevice, pool.(vk.DescriptorPool), 0), "reset descriptor pool")
	})
}

func (d *VulkanDevice) UpdateDescriptorSets(writes []renderer.DescriptorWrite) {
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          w.Set.(vk.DescriptorSet),
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  descriptorType(w.Type),
		}
		switch {
		case w.Buffer != nil:
			size := vk.DeviceSize(w.Buffer.Range)
			if w.Buffer.Range == renderer.WholeSize {
				size = vk.DeviceSize(vk.WholeSize)
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: bufferHandle(w.Buffer.Buffer),
				Offset: vk.DeviceSize(w.Buffer.Offset),
				Range:  size,
			}}
		case w.Image != nil:
			tex := w.Image.Texture.(*VulkanTexture)
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     tex.Sampler,
				ImageView:   tex.Image.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		}
		vkWrites = append(vkWrites, write)
	}
	if len(vkWrites) == 0 {
		return
	}
	_ = d.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
		return nil
	})
}
