package renderer

import (
	"sort"

	"github.com/pkg/errors"
)

// Opaque backend handles.
type (
	DescriptorSet             interface{}
	DescriptorPoolHandle      interface{}
	DescriptorSetLayoutHandle interface{}
)

type PoolFlags uint32

const (
	// PoolFlagFreeDescriptorSet allows returning individual sets to the pool.
	PoolFlagFreeDescriptorSet PoolFlags = 1 << iota
)

type LayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
	Count   uint32
}

type PoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorPoolConfig struct {
	MaxSets uint32
	Sizes   []PoolSize
	Flags   PoolFlags
}

type BufferInfo struct {
	Buffer *Buffer
	Offset uint64
	Range  uint64
}

type ImageInfo struct {
	Texture Texture
}

// DescriptorWrite binds one resource to one binding of a set.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Buffer  *BufferInfo
	Image   *ImageInfo
}

// DescriptorDriver is the backend side of the descriptor manager.
// AllocateDescriptorSet reports an exhausted pool with ErrDescriptorPoolExhausted.
type DescriptorDriver interface {
	CreateDescriptorSetLayout(bindings []LayoutBinding) (DescriptorSetLayoutHandle, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayoutHandle)
	CreateDescriptorPool(cfg DescriptorPoolConfig) (DescriptorPoolHandle, error)
	DestroyDescriptorPool(pool DescriptorPoolHandle)
	AllocateDescriptorSet(pool DescriptorPoolHandle, layout DescriptorSetLayoutHandle) (DescriptorSet, error)
	FreeDescriptorSets(pool DescriptorPoolHandle, sets []DescriptorSet) error
	ResetDescriptorPool(pool DescriptorPoolHandle) error
	UpdateDescriptorSets(writes []DescriptorWrite)
}

// *************** Descriptor Set Layout *********************

type DescriptorSetLayoutBuilder struct {
	driver   DescriptorDriver
	bindings []LayoutBinding
}

func NewDescriptorSetLayoutBuilder(driver DescriptorDriver) *DescriptorSetLayoutBuilder {
	return &DescriptorSetLayoutBuilder{driver: driver}
}

// AddBinding declares a binding with a descriptor count of 1.
func (b *DescriptorSetLayoutBuilder) AddBinding(binding uint32, t DescriptorType, stages ShaderStage) *DescriptorSetLayoutBuilder {
	return b.AddBindingArray(binding, t, stages, 1)
}

func (b *DescriptorSetLayoutBuilder) AddBindingArray(binding uint32, t DescriptorType, stages ShaderStage, count uint32) *DescriptorSetLayoutBuilder {
	b.bindings = append(b.bindings, LayoutBinding{Binding: binding, Type: t, Stages: stages, Count: count})
	return b
}

// Build validates the bindings and creates the layout.
func (b *DescriptorSetLayoutBuilder) Build() (*DescriptorSetLayout, error) {
	bindings := make(map[uint32]LayoutBinding, len(b.bindings))
	for _, lb := range b.bindings {
		if _, ok := bindings[lb.Binding]; ok {
			return nil, errors.Wrapf(ErrDuplicateBinding, "binding %d", lb.Binding)
		}
		if lb.Count == 0 {
			return nil, errors.Errorf("binding %d declares zero descriptors", lb.Binding)
		}
		bindings[lb.Binding] = lb
	}

	ordered := make([]LayoutBinding, 0, len(bindings))
	for _, lb := range bindings {
		ordered = append(ordered, lb)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Binding < ordered[j].Binding })

	handle, err := b.driver.CreateDescriptorSetLayout(ordered)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create descriptor set layout")
	}
	return &DescriptorSetLayout{
		driver:   b.driver,
		handle:   handle,
		bindings: bindings,
		ordered:  ordered,
	}, nil
}

// DescriptorSetLayout maps binding indices to descriptor types and stages.
type DescriptorSetLayout struct {
	driver   DescriptorDriver
	handle   DescriptorSetLayoutHandle
	bindings map[uint32]LayoutBinding
	ordered  []LayoutBinding
}

func (l *DescriptorSetLayout) Handle() DescriptorSetLayoutHandle { return l.handle }

func (l *DescriptorSetLayout) Binding(binding uint32) (LayoutBinding, bool) {
	lb, ok := l.bindings[binding]
	return lb, ok
}

// Bindings returns the bindings sorted by index.
func (l *DescriptorSetLayout) Bindings() []LayoutBinding {
	return append([]LayoutBinding(nil), l.ordered...)
}

func (l *DescriptorSetLayout) Destroy() {
	if l.handle != nil {
		l.driver.DestroyDescriptorSetLayout(l.handle)
		l.handle = nil
	}
}

// *************** Descriptor Pool *********************

const DefaultPoolMaxSets = 1000

type DescriptorPoolBuilder struct {
	driver  DescriptorDriver
	sizes   []PoolSize
	flags   PoolFlags
	maxSets uint32
}

func NewDescriptorPoolBuilder(driver DescriptorDriver) *DescriptorPoolBuilder {
	return &DescriptorPoolBuilder{driver: driver, maxSets: DefaultPoolMaxSets}
}

func (b *DescriptorPoolBuilder) AddPoolSize(t DescriptorType, count uint32) *DescriptorPoolBuilder {
	b.sizes = append(b.sizes, PoolSize{Type: t, Count: count})
	return b
}

func (b *DescriptorPoolBuilder) SetPoolFlags(flags PoolFlags) *DescriptorPoolBuilder {
	b.flags = flags
	return b
}

func (b *DescriptorPoolBuilder) SetMaxSets(count uint32) *DescriptorPoolBuilder {
	b.maxSets = count
	return b
}

func (b *DescriptorPoolBuilder) Build() (*DescriptorPool, error) {
	if b.maxSets == 0 {
		return nil, errors.New("descriptor pool needs at least one set")
	}
	capacity := make(map[DescriptorType]uint32)
	for _, s := range b.sizes {
		capacity[s.Type] += s.Count
	}
	cfg := DescriptorPoolConfig{
		MaxSets: b.maxSets,
		Sizes:   append([]PoolSize(nil), b.sizes...),
		Flags:   b.flags,
	}
	handle, err := b.driver.CreateDescriptorPool(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create descriptor pool")
	}
	return &DescriptorPool{
		driver:   b.driver,
		handle:   handle,
		config:   cfg,
		capacity: capacity,
		used:     make(map[DescriptorType]uint32),
		live:     make(map[DescriptorSet]*DescriptorSetLayout),
	}, nil
}

// DescriptorPool has a fixed capacity. When it runs out a new pool is
// needed; allocation reports ErrDescriptorPoolExhausted and never panics.
type DescriptorPool struct {
	driver   DescriptorDriver
	handle   DescriptorPoolHandle
	config   DescriptorPoolConfig
	capacity map[DescriptorType]uint32
	used     map[DescriptorType]uint32
	live     map[DescriptorSet]*DescriptorSetLayout
}

func (p *DescriptorPool) Handle() DescriptorPoolHandle { return p.handle }
func (p *DescriptorPool) MaxSets() uint32              { return p.config.MaxSets }
func (p *DescriptorPool) Allocated() int               { return len(p.live) }

func (p *DescriptorPool) fits(layout *DescriptorSetLayout) bool {
	if uint32(len(p.live)) >= p.config.MaxSets {
		return false
	}
	need := make(map[DescriptorType]uint32)
	for _, lb := range layout.ordered {
		need[lb.Type] += lb.Count
	}
	for t, n := range need {
		if p.used[t]+n > p.capacity[t] {
			return false
		}
	}
	return true
}

// AllocateDescriptor allocates one set for the layout.
func (p *DescriptorPool) AllocateDescriptor(layout *DescriptorSetLayout) (DescriptorSet, error) {
	if !p.fits(layout) {
		return nil, errors.Wrapf(ErrDescriptorPoolExhausted, "%d of %d sets in use", len(p.live), p.config.MaxSets)
	}
	set, err := p.driver.AllocateDescriptorSet(p.handle, layout.handle)
	if err != nil {
		return nil, errors.Wrap(err, "allocate descriptor set")
	}
	for _, lb := range layout.ordered {
		p.used[lb.Type] += lb.Count
	}
	p.live[set] = layout
	return set, nil
}

// FreeDescriptors returns sets to a pool built with PoolFlagFreeDescriptorSet.
func (p *DescriptorPool) FreeDescriptors(sets ...DescriptorSet) error {
	if p.config.Flags&PoolFlagFreeDescriptorSet == 0 {
		return ErrFreeNotAllowed
	}
	seen := make(map[DescriptorSet]struct{}, len(sets))
	for _, s := range sets {
		if _, ok := p.live[s]; !ok {
			return errors.New("descriptor set was not allocated from this pool")
		}
		if _, ok := seen[s]; ok {
			return ErrDuplicateDescriptorSet
		}
		seen[s] = struct{}{}
	}
	if err := p.driver.FreeDescriptorSets(p.handle, sets); err != nil {
		return errors.Wrap(err, "free descriptor sets")
	}
	for _, s := range sets {
		for _, lb := range p.live[s].ordered {
			p.used[lb.Type] -= lb.Count
		}
		delete(p.live, s)
	}
	return nil
}

// ResetPool returns every set to the pool.
func (p *DescriptorPool) ResetPool() error {
	if err := p.driver.ResetDescriptorPool(p.handle); err != nil {
		return errors.Wrap(err, "reset descriptor pool")
	}
	p.used = make(map[DescriptorType]uint32)
	p.live = make(map[DescriptorSet]*DescriptorSetLayout)
	return nil
}

func (p *DescriptorPool) Destroy() {
	if p.handle != nil {
		p.driver.DestroyDescriptorPool(p.handle)
		p.handle = nil
		p.live = nil
	}
}

// *************** Descriptor Writer *********************

// DescriptorWriter batches writes for one set. Validation errors are kept
// and reported by Build or Overwrite, before anything is allocated.
type DescriptorWriter struct {
	layout *DescriptorSetLayout
	pool   *DescriptorPool
	writes []DescriptorWrite
	err    error
}

func NewDescriptorWriter(layout *DescriptorSetLayout, pool *DescriptorPool) *DescriptorWriter {
	return &DescriptorWriter{layout: layout, pool: pool}
}

func (w *DescriptorWriter) check(binding uint32, buffer bool) (LayoutBinding, bool) {
	if w.err != nil {
		return LayoutBinding{}, false
	}
	lb, ok := w.layout.Binding(binding)
	if !ok {
		w.err = errors.Wrapf(ErrUnknownBinding, "binding %d", binding)
		return lb, false
	}
	if lb.Count != 1 {
		w.err = errors.Wrapf(ErrBindingMismatch, "binding %d expects %d descriptors", binding, lb.Count)
		return lb, false
	}
	if lb.Type.isBuffer() != buffer {
		w.err = errors.Wrapf(ErrBindingMismatch, "binding %d is a %s", binding, lb.Type)
		return lb, false
	}
	return lb, true
}

func (w *DescriptorWriter) WriteBuffer(binding uint32, info BufferInfo) *DescriptorWriter {
	if lb, ok := w.check(binding, true); ok {
		w.writes = append(w.writes, DescriptorWrite{Binding: binding, Type: lb.Type, Buffer: &info})
	}
	return w
}

func (w *DescriptorWriter) WriteImage(binding uint32, info ImageInfo) *DescriptorWriter {
	if lb, ok := w.check(binding, false); ok {
		w.writes = append(w.writes, DescriptorWrite{Binding: binding, Type: lb.Type, Image: &info})
	}
	return w
}

// Build allocates a set and applies every queued write to it.
func (w *DescriptorWriter) Build() (DescriptorSet, error) {
	if w.err != nil {
		return nil, w.err
	}
	set, err := w.pool.AllocateDescriptor(w.layout)
	if err != nil {
		return nil, err
	}
	if err := w.Overwrite(set); err != nil {
		return nil, err
	}
	return set, nil
}

// Overwrite applies the queued writes to an existing set.
func (w *DescriptorWriter) Overwrite(set DescriptorSet) error {
	if w.err != nil {
		return w.err
	}
	writes := make([]DescriptorWrite, len(w.writes))
	for i, wr := range w.writes {
		wr.Set = set
		writes[i] = wr
	}
	w.pool.driver.UpdateDescriptorSets(writes)
	return nil
}
