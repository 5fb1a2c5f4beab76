package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
	dmath "github.com/spaghettifunk/dyne/engine/math"
	"github.com/spaghettifunk/dyne/engine/renderer"
)

var ErrObjectNotFound = errors.New("game object not found")

// Scene owns the game objects and the meshes they share. It is mutated on
// the frame loop goroutine between frames only.
type Scene struct {
	ids     *core.IDGenerator
	objects map[core.ID]*GameObject
	meshes  meshArena
}

func New() *Scene {
	return &Scene{
		ids:     core.NewIDGenerator(),
		objects: make(map[core.ID]*GameObject),
	}
}

// AddMesh hands ownership of mesh to the scene. The returned handle holds
// one reference, dropped with ReleaseMesh.
func (s *Scene) AddMesh(name string, mesh renderer.Mesh) MeshHandle {
	h := s.meshes.add(name, mesh)
	core.LogDebug("scene: mesh %q added", name)
	return h
}

func (s *Scene) Mesh(h MeshHandle) (renderer.Mesh, bool) {
	slot, err := s.meshes.slot(h)
	if err != nil {
		return nil, false
	}
	return slot.mesh, true
}

// MeshRefs reports the live references to a mesh, 0 for stale handles.
func (s *Scene) MeshRefs(h MeshHandle) int {
	slot, err := s.meshes.slot(h)
	if err != nil {
		return 0
	}
	return slot.refs
}

func (s *Scene) AcquireMesh(h MeshHandle) error {
	return s.meshes.acquire(h)
}

// ReleaseMesh drops a reference. The last release queues the mesh for
// destruction by DestroyReleased.
func (s *Scene) ReleaseMesh(h MeshHandle) error {
	return s.meshes.release(h)
}

// HasReleased reports whether meshes are waiting for DestroyReleased.
func (s *Scene) HasReleased() bool {
	return len(s.meshes.released) > 0
}

// DestroyReleased frees the GPU buffers of meshes whose last reference is
// gone. The device must be idle.
func (s *Scene) DestroyReleased() int {
	return s.meshes.destroyReleased()
}

// Spawn creates an object with a fresh ID. A mesh set through WithMesh
// gains a reference.
func (s *Scene) Spawn(opts ...GameObjectOption) (*GameObject, error) {
	obj := &GameObject{Transform: dmath.TransformCreate()}
	for _, opt := range opts {
		opt(obj)
	}
	if obj.Mesh.Valid() {
		if err := s.meshes.acquire(obj.Mesh); err != nil {
			return nil, errors.Wrap(err, "cannot spawn object")
		}
	}
	obj.id = s.ids.Next()
	s.objects[obj.id] = obj
	return obj, nil
}

// NewPointLight spawns a light-only object. Zero intensity or radius picks
// the defaults; a zero color is white.
func (s *Scene) NewPointLight(intensity, radius float32, color mgl32.Vec3, opts ...GameObjectOption) (*GameObject, error) {
	if intensity == 0 {
		intensity = DefaultLightIntensity
	}
	if radius == 0 {
		radius = DefaultLightRadius
	}
	if color == (mgl32.Vec3{}) {
		color = mgl32.Vec3{1, 1, 1}
	}
	all := append([]GameObjectOption{WithColor(color)}, opts...)
	all = append(all, WithPointLight(intensity, radius))
	return s.Spawn(all...)
}

func (s *Scene) Get(id core.ID) (*GameObject, bool) {
	obj, ok := s.objects[id]
	return obj, ok
}

func (s *Scene) Remove(id core.ID) error {
	obj, ok := s.objects[id]
	if !ok {
		return errors.Wrapf(ErrObjectNotFound, "id %d", id)
	}
	delete(s.objects, id)
	if obj.Mesh.Valid() {
		return s.meshes.release(obj.Mesh)
	}
	return nil
}

func (s *Scene) Len() int {
	return len(s.objects)
}

// Each visits objects in ID order.
func (s *Scene) Each(fn func(*GameObject)) {
	ids := make([]core.ID, 0, len(s.objects))
	for id := range s.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(s.objects[id])
	}
}

// Destroy drops every object and destroys every mesh. The device must be idle.
func (s *Scene) Destroy() {
	s.objects = make(map[core.ID]*GameObject)
	s.meshes.destroyAll()
}
