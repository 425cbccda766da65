// Package registry tracks the active soft bodies and colliders of a scene.
//
// Writers (spawn and despawn) take a mutex and publish a fresh immutable slice; readers load
// the current slice atomically and iterate it without locking, so registering or removing an
// entry never disturbs an iteration already in progress.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/squish/collision"
	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/sleep"
	"github.com/pthm-cable/squish/solver"
)

// ID identifies a registered entry. IDs are never reused within a Set.
type ID uint64

// Entry is one registered value.
type Entry[T any] struct {
	ID    ID
	Value T
}

// Set is a concurrent collection with copy-on-write snapshots.
type Set[T any] struct {
	mu      sync.Mutex
	next    ID
	version atomic.Uint64
	snap    atomic.Pointer[[]Entry[T]]
}

// NewSet creates an empty set.
func NewSet[T any]() *Set[T] {
	s := &Set[T]{next: 1}
	empty := []Entry[T]{}
	s.snap.Store(&empty)
	return s
}

// Register adds v and returns its ID.
func (s *Set[T]) Register(v T) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	old := *s.snap.Load()
	entries := make([]Entry[T], len(old), len(old)+1)
	copy(entries, old)
	entries = append(entries, Entry[T]{ID: id, Value: v})
	s.publish(entries)
	return id
}

// Unregister removes id. It returns false if id is not registered.
func (s *Set[T]) Unregister(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := *s.snap.Load()
	for i := range old {
		if old[i].ID != id {
			continue
		}
		entries := make([]Entry[T], 0, len(old)-1)
		entries = append(entries, old[:i]...)
		entries = append(entries, old[i+1:]...)
		s.publish(entries)
		return true
	}
	return false
}

// Replace swaps the value stored under id.
func (s *Set[T]) Replace(id ID, v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := *s.snap.Load()
	for i := range old {
		if old[i].ID == id {
			entries := append([]Entry[T](nil), old...)
			entries[i].Value = v
			s.publish(entries)
			return true
		}
	}
	return false
}

func (s *Set[T]) publish(entries []Entry[T]) {
	s.snap.Store(&entries)
	s.version.Add(1)
}

// Snapshot returns the entries at this instant in registration order. The slice is shared and
// must not be modified.
func (s *Set[T]) Snapshot() []Entry[T] {
	return *s.snap.Load()
}

// Get returns the value registered under id.
func (s *Set[T]) Get(id ID) (T, bool) {
	for _, e := range s.Snapshot() {
		if e.ID == id {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of entries.
func (s *Set[T]) Len() int {
	return len(s.Snapshot())
}

// Version increments on every change; callers use it to detect stale caches.
func (s *Set[T]) Version() uint64 {
	return s.version.Load()
}

// Body is a registered soft body.
type Body struct {
	Name     string
	Entity   ecs.Entity
	Solver   *solver.Solver
	Sleep    *sleep.Tracker
	Gatherer *collision.Gatherer
}

// Collider is a registered scene collider. Its transform lives on the entity.
type Collider struct {
	Entity ecs.Entity
	Shape  components.ColliderShape
	Static bool
}

// Registry is the service shared by every body of a scene.
type Registry struct {
	Bodies    *Set[Body]
	Colliders *Set[Collider]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		Bodies:    NewSet[Body](),
		Colliders: NewSet[Collider](),
	}
}
