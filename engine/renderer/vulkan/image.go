package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format

	device *VulkanDevice
}

type imageDesc struct {
	width, height uint32
	format        vk.Format
	usage         vk.ImageUsageFlags
	aspect        vk.ImageAspectFlags
}

// NewImage creates a 2D, optimally tiled, device local image with a view.
func NewImage(device *VulkanDevice, desc imageDesc) (*VulkanImage, error) {
	img := &VulkanImage{
		Width:  desc.width,
		Height: desc.height,
		Format: desc.format,
		device: device,
	}
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  desc.width,
			Height: desc.height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        desc.format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         desc.usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	err := device.locks.SafeCall(ImageManagement, func() error {
		var handle vk.Image
		if err := check(vk.CreateImage(device.LogicalDevice, &createInfo, device.context.Allocator, &handle), "create image"); err != nil {
			return err
		}
		img.Handle = handle
		return nil
	})
	if err != nil {
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device.LogicalDevice, img.Handle, &requirements)
	requirements.Deref()
	memoryIndex, err := device.FindMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy()
		return nil, errors.Wrap(err, "image memory")
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	var memory vk.DeviceMemory
	if err := check(vk.AllocateMemory(device.LogicalDevice, &allocateInfo, device.context.Allocator, &memory), "allocate image memory"); err != nil {
		img.Destroy()
		return nil, err
	}
	img.Memory = memory
	if err := check(vk.BindImageMemory(device.LogicalDevice, img.Handle, img.Memory, 0), "bind image memory"); err != nil {
		img.Destroy()
		return nil, err
	}

	view, err := createImageView(device, img.Handle, desc.format, desc.aspect)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.View = view
	return img, nil
}

func createImageView(device *VulkanDevice, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := check(vk.CreateImageView(device.LogicalDevice, &viewInfo, device.context.Allocator, &view), "create image view"); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

// transitionLayout records the barrier for the two transitions a sampled
// texture goes through: undefined to transfer destination, then transfer
// destination to shader read.
func (img *VulkanImage) transitionLayout(cmd vk.CommandBuffer, from, to vk.ImageLayout) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var srcStage, dstStage vk.PipelineStageFlagBits
	switch {
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageTopOfPipeBit
		dstStage = vk.PipelineStageTransferBit
	case from == vk.ImageLayoutTransferDstOptimal && to == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageTransferBit
		dstStage = vk.PipelineStageFragmentShaderBit
	default:
		return errors.Errorf("unsupported layout transition %d -> %d", from, to)
	}
	vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

func (img *VulkanImage) copyFromBuffer(cmd vk.CommandBuffer, buffer vk.Buffer) {
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: img.Width, Height: img.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cmd, buffer, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (img *VulkanImage) Destroy() {
	d := img.device
	if img.View != vk.NullImageView {
		vk.DestroyImageView(d.LogicalDevice, img.View, d.context.Allocator)
		img.View = vk.NullImageView
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.LogicalDevice, img.Memory, d.context.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
	if img.Handle != vk.NullImage {
		vk.DestroyImage(d.LogicalDevice, img.Handle, d.context.Allocator)
		img.Handle = vk.NullImage
	}
}

// VulkanTexture is a sampled RGBA8 image with a linear, repeating sampler.
type VulkanTexture struct {
	Name    string
	Image   *VulkanImage
	Sampler vk.Sampler

	id uuid.UUID
}

func (d *VulkanDevice) CreateTexture(desc renderer.TextureDesc) (renderer.Texture, error) {
	size := uint64(desc.Width) * uint64(desc.Height) * 4
	if size == 0 || uint64(len(desc.Pixels)) != size {
		return nil, errors.Errorf("texture %q: expected %d bytes of RGBA for %dx%d, got %d", desc.Name, size, desc.Width, desc.Height, len(desc.Pixels))
	}

	staging, err := d.CreateBuffer(size, renderer.BufferUsageTransferSrc, renderer.MemoryHostVisible|renderer.MemoryHostCoherent)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %q: staging buffer", desc.Name)
	}
	defer staging.Destroy()
	mapped, err := staging.Map()
	if err != nil {
		return nil, errors.Wrapf(err, "texture %q", desc.Name)
	}
	copy(mapped, desc.Pixels)
	staging.Unmap()

	image, err := NewImage(d, imageDesc{
		width:  desc.Width,
		height: desc.Height,
		format: vk.FormatR8g8b8a8Srgb,
		usage:  vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "texture %q", desc.Name)
	}

	var recordErr error
	err = d.SubmitOneShot(func(cmd renderer.CommandBuffer) {
		h := cmd.(*VulkanCommandBuffer).Handle
		if recordErr = image.transitionLayout(h, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); recordErr != nil {
			return
		}
		image.copyFromBuffer(h, staging.(*VulkanBuffer).Handle)
		recordErr = image.transitionLayout(h, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err == nil {
		err = recordErr
	}
	if err != nil {
		image.Destroy()
		return nil, errors.Wrapf(err, "texture %q: upload", desc.Name)
	}

	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           d.Properties.Limits.MaxSamplerAnisotropy,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	var sampler vk.Sampler
	err = d.locks.SafeCall(SamplerManagement, func() error {
		return check(vk.CreateSampler(d.LogicalDevice, &samplerInfo, d.context.Allocator, &sampler), "create sampler")
	})
	if err != nil {
		image.Destroy()
		return nil, errors.Wrapf(err, "texture %q", desc.Name)
	}

	return &VulkanTexture{
		Name:    desc.Name,
		Image:   image,
		Sampler: sampler,
		id:      d.tracker.Track("texture", desc.Name),
	}, nil
}

func (t *VulkanTexture) Width() uint32  { return t.Image.Width }
func (t *VulkanTexture) Height() uint32 { return t.Image.Height }

func (t *VulkanTexture) Destroy() {
	d := t.Image.device
	if t.Sampler != vk.NullSampler {
		vk.DestroySampler(d.LogicalDevice, t.Sampler, d.context.Allocator)
		t.Sampler = vk.NullSampler
	}
	t.Image.Destroy()
	if t.id != uuid.Nil {
		_ = d.tracker.Release(t.id)
		t.id = uuid.Nil
	}
}
