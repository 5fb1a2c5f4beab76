package rendertest

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

var DefaultFormats = renderer.SwapchainFormats{Image: 44, Depth: 126}

// Device is a headless renderer.Device.
type Device struct {
	Tracker *renderer.ResourceTracker

	// Formats used by the next CreateSwapchain call.
	NextFormats renderer.SwapchainFormats
	ImageCount  int
	LimitsValue renderer.Limits

	Swapchains     []*Swapchain
	CommandBuffers []*CommandBuffer
	Allocations    []*Allocation
	Pipelines      []*Pipeline
	Textures       []*Texture
	Pools          []*Pool
	Layouts        []*Layout

	WaitIdleCalls int
	OneShots      int
	Destroyed     bool

	// Failure injection.
	FailBufferCreate   error
	FailPipelineCreate error
	FailSwapchain      error
}

func NewDevice() *Device {
	return &Device{
		Tracker:     renderer.NewResourceTracker(),
		NextFormats: DefaultFormats,
		ImageCount:  3,
		LimitsValue: renderer.Limits{MinUniformBufferOffsetAlignment: 256, NonCoherentAtomSize: 64},
	}
}

func (d *Device) Limits() renderer.Limits { return d.LimitsValue }

func (d *Device) WaitIdle() error {
	d.WaitIdleCalls++
	return nil
}

// LastSwapchain returns the most recently created swapchain.
func (d *Device) LastSwapchain() *Swapchain {
	if len(d.Swapchains) == 0 {
		return nil
	}
	return d.Swapchains[len(d.Swapchains)-1]
}

func (d *Device) CreateSwapchain(extent renderer.Extent, previous renderer.Swapchain) (renderer.Swapchain, error) {
	if d.FailSwapchain != nil {
		return nil, d.FailSwapchain
	}
	if extent.IsZero() {
		return nil, errors.New("swapchain extent has zero area")
	}
	if previous != nil {
		if p, ok := previous.(*Swapchain); !ok || p.Destroyed {
			return nil, errors.New("previous swapchain is not alive")
		}
	}
	sc := newSwapchain(extent, d.NextFormats, d.ImageCount, previous)
	d.Swapchains = append(d.Swapchains, sc)
	return sc, nil
}

func (d *Device) AllocateCommandBuffers(count int) ([]renderer.CommandBuffer, error) {
	out := make([]renderer.CommandBuffer, count)
	for i := range out {
		cb := &CommandBuffer{device: d}
		d.CommandBuffers = append(d.CommandBuffers, cb)
		out[i] = cb
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(cmds []renderer.CommandBuffer) {
	for _, c := range cmds {
		if cb, ok := c.(*CommandBuffer); ok {
			cb.Freed = true
		}
	}
}

func (d *Device) SubmitOneShot(record func(cmd renderer.CommandBuffer)) error {
	cb := &CommandBuffer{device: d}
	if err := cb.Begin(); err != nil {
		return err
	}
	record(cb)
	if err := cb.End(); err != nil {
		return err
	}
	d.OneShots++
	return cb.execute()
}

func (d *Device) CreateBuffer(size uint64, usage renderer.BufferUsage, memory renderer.MemoryProperty) (renderer.BufferAllocation, error) {
	if d.FailBufferCreate != nil {
		return nil, d.FailBufferCreate
	}
	a := &Allocation{
		device: d,
		id:     d.Tracker.Track("buffer", ""),
		Data:   make([]byte, size),
		Usage:  usage,
		Memory: memory,
	}
	d.Allocations = append(d.Allocations, a)
	return a, nil
}

type Texture struct {
	Desc      renderer.TextureDesc
	Destroyed bool
	device    *Device
	id        uuid.UUID
}

func (t *Texture) Width() uint32  { return t.Desc.Width }
func (t *Texture) Height() uint32 { return t.Desc.Height }

func (t *Texture) Destroy() {
	if !t.Destroyed {
		t.Destroyed = true
		_ = t.device.Tracker.Release(t.id)
	}
}

func (d *Device) CreateTexture(desc renderer.TextureDesc) (renderer.Texture, error) {
	if uint64(len(desc.Pixels)) != uint64(desc.Width)*uint64(desc.Height)*4 {
		return nil, errors.Errorf("texture %q: %d bytes for %dx%d RGBA", desc.Name, len(desc.Pixels), desc.Width, desc.Height)
	}
	t := &Texture{Desc: desc, device: d, id: d.Tracker.Track("texture", desc.Name)}
	d.Textures = append(d.Textures, t)
	return t, nil
}

type Pipeline struct {
	Config    renderer.PipelineConfig
	Destroyed bool
	device    *Device
	id        uuid.UUID
}

func (p *Pipeline) Destroy() {
	if !p.Destroyed {
		p.Destroyed = true
		_ = p.device.Tracker.Release(p.id)
	}
}

func (d *Device) CreatePipeline(cfg *renderer.PipelineConfig) (renderer.Pipeline, error) {
	if d.FailPipelineCreate != nil {
		return nil, d.FailPipelineCreate
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{Config: *cfg, device: d, id: d.Tracker.Track("pipeline", cfg.Name)}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) Destroy() {
	d.Destroyed = true
}

// SPIRV returns a minimal module header usable as shader code.
func SPIRV() []uint32 {
	return []uint32{renderer.SPIRVMagic, 0x00010000, 0, 1, 0}
}
