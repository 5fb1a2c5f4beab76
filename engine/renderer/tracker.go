package renderer

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type TrackedResource struct {
	ID      uuid.UUID
	Kind    string
	Label   string
	Created time.Time
}

// ResourceTracker records live GPU objects so the device can report what
// is still alive when it is torn down.
type ResourceTracker struct {
	mu   sync.Mutex
	live map[uuid.UUID]TrackedResource
}

func NewResourceTracker() *ResourceTracker {
	return &ResourceTracker{live: make(map[uuid.UUID]TrackedResource)}
}

func (t *ResourceTracker) Track(kind, label string) uuid.UUID {
	id := uuid.New()
	t.mu.Lock()
	t.live[id] = TrackedResource{ID: id, Kind: kind, Label: label, Created: time.Now()}
	t.mu.Unlock()
	return id
}

func (t *ResourceTracker) Release(id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.live[id]; !ok {
		return errors.Wrapf(ErrResourceNotFound, "%s", id)
	}
	delete(t.live, id)
	return nil
}

// Live returns the tracked resources, oldest first.
func (t *ResourceTracker) Live() []TrackedResource {
	t.mu.Lock()
	out := make([]TrackedResource, 0, len(t.live))
	for _, r := range t.live {
		out = append(out, r)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

func (t *ResourceTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}
