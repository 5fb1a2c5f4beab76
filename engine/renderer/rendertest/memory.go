package rendertest

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

type Range struct {
	Offset uint64
	Size   uint64
}

// Allocation is a buffer backed by a byte slice. Device-local memory is
// backed too, so staging copies can be observed.
type Allocation struct {
	device      *Device
	id          uuid.UUID
	Data        []byte
	Usage       renderer.BufferUsage
	Memory      renderer.MemoryProperty
	MapCount    int
	Mapped      bool
	Flushes     []Range
	Invalidates []Range
	Destroyed   bool
}

func (a *Allocation) Size() uint64 { return uint64(len(a.Data)) }

func (a *Allocation) Map() ([]byte, error) {
	if a.Destroyed {
		return nil, errors.New("map of destroyed buffer")
	}
	if a.Mapped {
		return nil, errors.New("memory is already mapped")
	}
	a.Mapped = true
	a.MapCount++
	return a.Data, nil
}

func (a *Allocation) Unmap() {
	a.Mapped = false
}

func (a *Allocation) Flush(offset, size uint64) error {
	if !a.Mapped {
		return errors.New("flush of unmapped memory")
	}
	a.Flushes = append(a.Flushes, Range{Offset: offset, Size: size})
	return nil
}

func (a *Allocation) Invalidate(offset, size uint64) error {
	if !a.Mapped {
		return errors.New("invalidate of unmapped memory")
	}
	a.Invalidates = append(a.Invalidates, Range{Offset: offset, Size: size})
	return nil
}

func (a *Allocation) Destroy() {
	if a.Destroyed {
		return
	}
	a.Destroyed = true
	a.Data = nil
	_ = a.device.Tracker.Release(a.id)
}

// allocationOf digs the fake allocation out of a renderer buffer.
func allocationOf(b *renderer.Buffer) *Allocation {
	if b == nil {
		return nil
	}
	a, _ := b.Allocation().(*Allocation)
	return a
}
