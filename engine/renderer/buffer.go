package renderer

import (
	"github.com/pkg/errors"
)

// WholeSize selects the rest of the buffer from the given offset.
const WholeSize = ^uint64(0)

// Buffer is an array of instanceCount elements, each padded to the
// alignment the device requires for dynamic offsets.
type Buffer struct {
	alloc         BufferAllocation
	mapped        []byte
	bufferSize    uint64
	instanceSize  uint64
	instanceCount uint32
	alignmentSize uint64
	usage         BufferUsage
	memory        MemoryProperty
}

// Alignment rounds instanceSize up to a multiple of minOffsetAlignment.
func Alignment(instanceSize, minOffsetAlignment uint64) uint64 {
	if minOffsetAlignment > 0 {
		return (instanceSize + minOffsetAlignment - 1) &^ (minOffsetAlignment - 1)
	}
	return instanceSize
}

func NewBuffer(a Allocator, instanceSize uint64, instanceCount uint32, usage BufferUsage, memory MemoryProperty, minOffsetAlignment uint64) (*Buffer, error) {
	if instanceSize == 0 || instanceCount == 0 {
		return nil, errors.Errorf("invalid buffer shape %d x %d", instanceSize, instanceCount)
	}
	alignmentSize := Alignment(instanceSize, minOffsetAlignment)
	size := alignmentSize * uint64(instanceCount)

	alloc, err := a.CreateBuffer(size, usage, memory)
	if err != nil {
		return nil, errors.Wrapf(err, "create buffer of %d bytes", size)
	}
	return &Buffer{
		alloc:         alloc,
		bufferSize:    size,
		instanceSize:  instanceSize,
		instanceCount: instanceCount,
		alignmentSize: alignmentSize,
		usage:         usage,
		memory:        memory,
	}, nil
}

// Map persistently maps the buffer memory. Mapping twice is a no-op.
func (b *Buffer) Map() error {
	if b.mapped != nil {
		return nil
	}
	if !b.memory.Has(MemoryHostVisible) {
		return errors.New("buffer memory is not host visible")
	}
	m, err := b.alloc.Map()
	if err != nil {
		return errors.Wrap(err, "map buffer memory")
	}
	b.mapped = m
	return nil
}

func (b *Buffer) Unmap() {
	if b.mapped != nil {
		b.alloc.Unmap()
		b.mapped = nil
	}
}

func (b *Buffer) IsMapped() bool {
	return b.mapped != nil
}

func (b *Buffer) span(size, offset uint64) (uint64, uint64, error) {
	if size == WholeSize {
		if offset > b.bufferSize {
			return 0, 0, ErrBufferOverflow
		}
		size = b.bufferSize - offset
	}
	if offset+size > b.bufferSize || offset+size < offset {
		return 0, 0, errors.Wrapf(ErrBufferOverflow, "range [%d,%d) of %d bytes", offset, offset+size, b.bufferSize)
	}
	return size, offset, nil
}

// Write copies data into the mapped memory at offset.
func (b *Buffer) Write(data []byte, offset uint64) error {
	if b.mapped == nil {
		return ErrBufferNotMapped
	}
	if _, _, err := b.span(uint64(len(data)), offset); err != nil {
		return err
	}
	copy(b.mapped[offset:], data)
	return nil
}

// Flush makes a host write visible to the device. Coherent memory would not
// need it, the call is made regardless.
func (b *Buffer) Flush(size, offset uint64) error {
	if b.mapped == nil {
		return ErrBufferNotMapped
	}
	size, offset, err := b.span(size, offset)
	if err != nil {
		return err
	}
	return errors.Wrap(b.alloc.Flush(offset, size), "flush buffer")
}

// Invalidate makes a device write visible to the host.
func (b *Buffer) Invalidate(size, offset uint64) error {
	if b.mapped == nil {
		return ErrBufferNotMapped
	}
	size, offset, err := b.span(size, offset)
	if err != nil {
		return err
	}
	return errors.Wrap(b.alloc.Invalidate(offset, size), "invalidate buffer")
}

// ReadBack invalidates the range and returns a copy of it.
func (b *Buffer) ReadBack(size, offset uint64) ([]byte, error) {
	if err := b.Invalidate(size, offset); err != nil {
		return nil, err
	}
	size, offset, _ = b.span(size, offset)
	out := make([]byte, size)
	copy(out, b.mapped[offset:offset+size])
	return out, nil
}

func (b *Buffer) checkIndex(index uint32) error {
	if index >= b.instanceCount {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d of %d", index, b.instanceCount)
	}
	return nil
}

func (b *Buffer) WriteToIndex(data []byte, index uint32) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	if uint64(len(data)) > b.instanceSize {
		return errors.Wrapf(ErrBufferOverflow, "%d bytes into a %d byte instance", len(data), b.instanceSize)
	}
	return b.Write(data, uint64(index)*b.alignmentSize)
}

func (b *Buffer) FlushIndex(index uint32) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	return b.Flush(b.alignmentSize, uint64(index)*b.alignmentSize)
}

func (b *Buffer) InvalidateIndex(index uint32) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	return b.Invalidate(b.alignmentSize, uint64(index)*b.alignmentSize)
}

// DescriptorInfo describes a range of the buffer for a descriptor write.
func (b *Buffer) DescriptorInfo(size, offset uint64) BufferInfo {
	return BufferInfo{Buffer: b, Offset: offset, Range: size}
}

func (b *Buffer) DescriptorInfoForIndex(index uint32) BufferInfo {
	return b.DescriptorInfo(b.alignmentSize, uint64(index)*b.alignmentSize)
}

// Allocation exposes the backend allocation so backends can reach the handle.
func (b *Buffer) Allocation() BufferAllocation { return b.alloc }

func (b *Buffer) Size() uint64           { return b.bufferSize }
func (b *Buffer) InstanceSize() uint64   { return b.instanceSize }
func (b *Buffer) InstanceCount() uint32  { return b.instanceCount }
func (b *Buffer) AlignmentSize() uint64  { return b.alignmentSize }
func (b *Buffer) Usage() BufferUsage     { return b.usage }
func (b *Buffer) Memory() MemoryProperty { return b.memory }

func (b *Buffer) Destroy() {
	b.Unmap()
	if b.alloc != nil {
		b.alloc.Destroy()
		b.alloc = nil
	}
}
