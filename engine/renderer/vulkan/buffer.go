package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

// VulkanBuffer is a VkBuffer with its own dedicated memory allocation.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory

	device         *VulkanDevice
	id             uuid.UUID
	size           uint64
	allocationSize uint64
	coherent       bool
	mapped         unsafe.Pointer
}

func (d *VulkanDevice) CreateBuffer(size uint64, usage renderer.BufferUsage, memory renderer.MemoryProperty) (renderer.BufferAllocation, error) {
	b := &VulkanBuffer{
		device:   d,
		size:     size,
		coherent: memory.Has(renderer.MemoryHostCoherent),
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	err := d.locks.SafeCall(BufferManagement, func() error {
		var handle vk.Buffer
		if err := check(vk.CreateBuffer(d.LogicalDevice, &bufferInfo, d.context.Allocator, &handle), "create buffer"); err != nil {
			return err
		}
		b.Handle = handle
		return nil
	})
	if err != nil {
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, b.Handle, &requirements)
	requirements.Deref()

	memoryIndex, err := d.FindMemoryIndex(requirements.MemoryTypeBits, memoryProperties(memory))
	if err != nil {
		vk.DestroyBuffer(d.LogicalDevice, b.Handle, d.context.Allocator)
		return nil, errors.Wrap(err, "buffer memory")
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	err = d.locks.SafeCall(MemoryManagement, func() error {
		var mem vk.DeviceMemory
		if err := check(vk.AllocateMemory(d.LogicalDevice, &allocateInfo, d.context.Allocator, &mem), "allocate %d bytes", requirements.Size); err != nil {
			return err
		}
		b.Memory = mem
		return nil
	})
	if err != nil {
		vk.DestroyBuffer(d.LogicalDevice, b.Handle, d.context.Allocator)
		return nil, err
	}
	b.allocationSize = uint64(requirements.Size)

	if err := check(vk.BindBufferMemory(d.LogicalDevice, b.Handle, b.Memory, 0), "bind buffer memory"); err != nil {
		b.Destroy()
		return nil, err
	}
	b.id = d.tracker.Track("buffer", "")
	return b, nil
}

func (b *VulkanBuffer) Size() uint64 { return b.size }

func (b *VulkanBuffer) Map() ([]byte, error) {
	if b.mapped == nil {
		var ptr unsafe.Pointer
		if err := check(vk.MapMemory(b.device.LogicalDevice, b.Memory, 0, vk.DeviceSize(vk.WholeSize), 0, &ptr), "map memory"); err != nil {
			return nil, err
		}
		b.mapped = ptr
	}
	return unsafe.Slice((*byte)(b.mapped), b.size), nil
}

func (b *VulkanBuffer) Unmap() {
	if b.mapped != nil {
		vk.UnmapMemory(b.device.LogicalDevice, b.Memory)
		b.mapped = nil
	}
}

// mappedRange widens [offset, offset+size) to nonCoherentAtomSize, which
// flush and invalidate require for non-coherent memory.
func (b *VulkanBuffer) mappedRange(offset, size uint64) vk.MappedMemoryRange {
	atom := b.device.Limits().NonCoherentAtomSize
	start, end := offset, offset+size
	if atom > 1 {
		start = offset / atom * atom
		end = renderer.Alignment(end, atom)
	}
	r := vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: b.Memory,
		Offset: vk.DeviceSize(start),
		Size:   vk.DeviceSize(end - start),
	}
	if end >= b.allocationSize {
		r.Size = vk.DeviceSize(vk.WholeSize)
	}
	return r
}

func (b *VulkanBuffer) Flush(offset, size uint64) error {
	if b.mapped == nil {
		return renderer.ErrBufferNotMapped
	}
	if b.coherent {
		return nil
	}
	return check(vk.FlushMappedMemoryRanges(b.device.LogicalDevice, 1, []vk.MappedMemoryRange{b.mappedRange(offset, size)}), "flush mapped range")
}

func (b *VulkanBuffer) Invalidate(offset, size uint64) error {
	if b.mapped == nil {
		return renderer.ErrBufferNotMapped
	}
	if b.coherent {
		return nil
	}
	return check(vk.InvalidateMappedMemoryRanges(b.device.LogicalDevice, 1, []vk.MappedMemoryRange{b.mappedRange(offset, size)}), "invalidate mapped range")
}

func (b *VulkanBuffer) Destroy() {
	b.Unmap()
	d := b.device
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(d.LogicalDevice, b.Handle, d.context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.LogicalDevice, b.Memory, d.context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	if b.id != uuid.Nil {
		_ = d.tracker.Release(b.id)
		b.id = uuid.Nil
	}
}

func bufferHandle(b *renderer.Buffer) vk.Buffer {
	if b == nil {
		return vk.NullBuffer
	}
	if vb, ok := b.Allocation().(*VulkanBuffer); ok {
		return vb.Handle
	}
	return vk.NullBuffer
}
