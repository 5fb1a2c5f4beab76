package scene

import (
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

var ErrInvalidMeshHandle = errors.New("invalid mesh handle")

// MeshHandle addresses a mesh in a scene's arena. The zero value is "no mesh".
// A handle to a released slot never resolves again, even once the slot is reused.
type MeshHandle struct {
	index      uint32
	generation uint32
}

func (h MeshHandle) Valid() bool {
	return h.generation != 0
}

type meshSlot struct {
	name       string
	mesh       renderer.Mesh
	refs       int
	generation uint32
}

// meshArena stores meshes shared by many game objects. A mesh's GPU buffers
// are destroyed only after its last reference is gone and the owner has
// confirmed the GPU no longer uses them.
type meshArena struct {
	slots    []meshSlot
	free     []uint32
	released []renderer.Mesh
}

func (a *meshArena) add(name string, mesh renderer.Mesh) MeshHandle {
	var index uint32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = uint32(len(a.slots))
		a.slots = append(a.slots, meshSlot{})
	}
	slot := &a.slots[index]
	slot.generation++
	slot.name = name
	slot.mesh = mesh
	slot.refs = 1
	return MeshHandle{index: index, generation: slot.generation}
}

func (a *meshArena) slot(h MeshHandle) (*meshSlot, error) {
	if !h.Valid() || int(h.index) >= len(a.slots) {
		return nil, ErrInvalidMeshHandle
	}
	s := &a.slots[h.index]
	if s.generation != h.generation || s.mesh == nil {
		return nil, ErrInvalidMeshHandle
	}
	return s, nil
}

func (a *meshArena) acquire(h MeshHandle) error {
	s, err := a.slot(h)
	if err != nil {
		return err
	}
	s.refs++
	return nil
}

func (a *meshArena) release(h MeshHandle) error {
	s, err := a.slot(h)
	if err != nil {
		return err
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	a.released = append(a.released, s.mesh)
	s.mesh = nil
	s.name = ""
	// bump now so stale handles fail before the slot is reused
	s.generation++
	a.free = append(a.free, h.index)
	return nil
}

func (a *meshArena) destroyReleased() int {
	n := len(a.released)
	for _, m := range a.released {
		m.Destroy()
	}
	a.released = nil
	return n
}

func (a *meshArena) destroyAll() {
	for i := range a.slots {
		if a.slots[i].mesh != nil {
			a.released = append(a.released, a.slots[i].mesh)
			a.slots[i].mesh = nil
		}
	}
	a.destroyReleased()
	a.slots = nil
	a.free = nil
}
