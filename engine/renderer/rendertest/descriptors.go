package rendertest

import (
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

type Layout struct {
	Bindings  []renderer.LayoutBinding
	Destroyed bool
}

type Pool struct {
	Config    renderer.DescriptorPoolConfig
	Sets      []*Set
	Resets    int
	Destroyed bool
}

// Set keeps the latest write of every binding.
type Set struct {
	Pool   *Pool
	Layout *Layout
	Writes map[uint32]renderer.DescriptorWrite
	Freed  bool
}

func (s *Set) live() bool {
	return !s.Freed && !s.Pool.Destroyed
}

// AsSet unwraps a descriptor set handle.
func AsSet(set renderer.DescriptorSet) *Set {
	s, _ := set.(*Set)
	return s
}

func (d *Device) CreateDescriptorSetLayout(bindings []renderer.LayoutBinding) (renderer.DescriptorSetLayoutHandle, error) {
	l := &Layout{Bindings: append([]renderer.LayoutBinding(nil), bindings...)}
	d.Layouts = append(d.Layouts, l)
	return l, nil
}

func (d *Device) DestroyDescriptorSetLayout(layout renderer.DescriptorSetLayoutHandle) {
	layout.(*Layout).Destroyed = true
}

func (d *Device) CreateDescriptorPool(cfg renderer.DescriptorPoolConfig) (renderer.DescriptorPoolHandle, error) {
	p := &Pool{Config: cfg}
	d.Pools = append(d.Pools, p)
	return p, nil
}

func (d *Device) DestroyDescriptorPool(pool renderer.DescriptorPoolHandle) {
	pool.(*Pool).Destroyed = true
}

func (p *Pool) allocated() uint32 {
	var n uint32
	for _, s := range p.Sets {
		if !s.Freed {
			n++
		}
	}
	return n
}

func (d *Device) AllocateDescriptorSet(pool renderer.DescriptorPoolHandle, layout renderer.DescriptorSetLayoutHandle) (renderer.DescriptorSet, error) {
	p := pool.(*Pool)
	l := layout.(*Layout)
	if p.Destroyed || l.Destroyed {
		return nil, errors.New("allocation from destroyed pool or layout")
	}
	if p.allocated() >= p.Config.MaxSets {
		return nil, renderer.ErrDescriptorPoolExhausted
	}
	s := &Set{Pool: p, Layout: l, Writes: make(map[uint32]renderer.DescriptorWrite)}
	p.Sets = append(p.Sets, s)
	return s, nil
}

func (d *Device) FreeDescriptorSets(pool renderer.DescriptorPoolHandle, sets []renderer.DescriptorSet) error {
	p := pool.(*Pool)
	for _, set := range sets {
		s := AsSet(set)
		if s == nil || s.Pool != p || s.Freed {
			return errors.New("free of a set the pool does not own")
		}
		s.Freed = true
	}
	return nil
}

func (d *Device) ResetDescriptorPool(pool renderer.DescriptorPoolHandle) error {
	p := pool.(*Pool)
	for _, s := range p.Sets {
		s.Freed = true
	}
	p.Sets = nil
	p.Resets++
	return nil
}

// UpdateDescriptorSets panics on writes to dead sets, the same misuse is
// undefined behavior on a real device.
func (d *Device) UpdateDescriptorSets(writes []renderer.DescriptorWrite) {
	for _, w := range writes {
		s := AsSet(w.Set)
		if s == nil || !s.live() {
			panic("descriptor write to a dead set")
		}
		s.Writes[w.Binding] = w
	}
}
