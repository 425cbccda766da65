// Package buffers holds the device-resident arrays of a soft body, addressed by role name.
//
// The store is a dumb storage adapter: it allocates, copies and reports memory usage, but it
// has no opinion about what the arrays mean. Kernels obtain direct views with View and work
// on them in place.
package buffers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

// Role names used by the solver.
const (
	Particles            = "particles"
	Constraints          = "constraints"
	Vertices             = "vertices"
	PreviousPositions    = "previousPositions"
	VolumeConstraints    = "volumeConstraints"
	Colliders            = "colliders"
	CollisionCorrections = "collisionCorrections"
	Debug                = "debug"
)

var (
	// ErrNotFound is returned when no buffer has the requested name.
	ErrNotFound = errors.New("buffer not found")
	// ErrTypeMismatch is returned when a buffer is accessed with the wrong element type.
	ErrTypeMismatch = errors.New("buffer element type mismatch")
	// ErrOverflow is returned when data does not fit in the buffer.
	ErrOverflow = errors.New("data larger than buffer")
)

// ElementType identifies the record type stored in a buffer.
type ElementType uint8

const (
	ElemParticle ElementType = iota
	ElemConstraint
	ElemVolumeConstraint
	ElemCollider
	ElemVec3
	ElemFloat
)

// Stride returns the size in bytes of one element.
func (e ElementType) Stride() int {
	switch e {
	case ElemParticle:
		return int(unsafe.Sizeof(components.Particle{}))
	case ElemConstraint:
		return int(unsafe.Sizeof(components.Constraint{}))
	case ElemVolumeConstraint:
		return int(unsafe.Sizeof(components.VolumeConstraint{}))
	case ElemCollider:
		return int(unsafe.Sizeof(components.SDFCollider{}))
	case ElemVec3:
		return int(unsafe.Sizeof(r3.Vec{}))
	case ElemFloat:
		return int(unsafe.Sizeof(float64(0)))
	default:
		return 0
	}
}

// String returns the element type name.
func (e ElementType) String() string {
	switch e {
	case ElemParticle:
		return "particle"
	case ElemConstraint:
		return "constraint"
	case ElemVolumeConstraint:
		return "volume_constraint"
	case ElemCollider:
		return "collider"
	case ElemVec3:
		return "vec3"
	case ElemFloat:
		return "float"
	default:
		return "unknown"
	}
}

func allocate(e ElementType, count int) (any, error) {
	switch e {
	case ElemParticle:
		return make([]components.Particle, count), nil
	case ElemConstraint:
		return make([]components.Constraint, count), nil
	case ElemVolumeConstraint:
		return make([]components.VolumeConstraint, count), nil
	case ElemCollider:
		return make([]components.SDFCollider, count), nil
	case ElemVec3:
		return make([]r3.Vec, count), nil
	case ElemFloat:
		return make([]float64, count), nil
	default:
		return nil, fmt.Errorf("unknown element type %d", e)
	}
}

// Buffer is one named device array.
type Buffer struct {
	Name  string
	Elem  ElementType
	Count int
	data  any
}

// Bytes returns the buffer size in bytes.
func (b *Buffer) Bytes() int64 {
	return int64(b.Count) * int64(b.Elem.Stride())
}

// Store owns the named buffers of one soft body.
type Store struct {
	mu      sync.RWMutex
	buffers map[string]*Buffer
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{buffers: make(map[string]*Buffer)}
}

// CreateBuffer allocates a zeroed buffer, replacing any existing buffer with the same name.
func (s *Store) CreateBuffer(name string, elem ElementType, count int) error {
	if count < 0 {
		return fmt.Errorf("creating buffer %q: negative count %d", name, count)
	}
	data, err := allocate(elem, count)
	if err != nil {
		return fmt.Errorf("creating buffer %q: %w", name, err)
	}
	s.mu.Lock()
	s.buffers[name] = &Buffer{Name: name, Elem: elem, Count: count, data: data}
	s.mu.Unlock()
	return nil
}

// Buffer returns the named buffer handle.
func (s *Store) Buffer(name string) (*Buffer, error) {
	s.mu.RLock()
	b, ok := s.buffers[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return b, nil
}

// Has reports whether a buffer with the given name exists.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	_, ok := s.buffers[name]
	s.mu.RUnlock()
	return ok
}

// Release frees the named buffer. Releasing a missing buffer is a no-op.
func (s *Store) Release(name string) {
	s.mu.Lock()
	delete(s.buffers, name)
	s.mu.Unlock()
}

// ReleaseAll frees every buffer.
func (s *Store) ReleaseAll() {
	s.mu.Lock()
	s.buffers = make(map[string]*Buffer)
	s.mu.Unlock()
}

// Names returns the buffer names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.buffers))
	for name := range s.buffers {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// MemoryUsage returns the total size of all buffers in bytes.
func (s *Store) MemoryUsage() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, b := range s.buffers {
		total += b.Bytes()
	}
	return total
}

// View returns the live backing slice of the named buffer. Writes go straight to the device array.
func View[T any](s *Store, name string) ([]T, error) {
	b, err := s.Buffer(name)
	if err != nil {
		return nil, err
	}
	data, ok := b.data.([]T)
	if !ok {
		return nil, fmt.Errorf("%q holds %s: %w", name, b.Elem, ErrTypeMismatch)
	}
	return data, nil
}

// SetData uploads data into the start of the named buffer.
func SetData[T any](s *Store, name string, data []T) error {
	dst, err := View[T](s, name)
	if err != nil {
		return fmt.Errorf("uploading: %w", err)
	}
	if len(data) > len(dst) {
		return fmt.Errorf("uploading %d elements into %q (%d): %w", len(data), name, len(dst), ErrOverflow)
	}
	copy(dst, data)
	return nil
}

// GetData downloads the named buffer into out and returns the number of elements copied.
func GetData[T any](s *Store, name string, out []T) (int, error) {
	src, err := View[T](s, name)
	if err != nil {
		return 0, fmt.Errorf("downloading: %w", err)
	}
	return copy(out, src), nil
}
