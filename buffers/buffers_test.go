package buffers

import (
	"errors"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

func TestStoreContract(t *testing.T) {
	s := NewStore()
	if err := s.CreateBuffer(Particles, ElemParticle, 4); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateBuffer(Debug, ElemFloat, 4); err != nil {
		t.Fatal(err)
	}

	in := []components.Particle{
		{Position: r3.Vec{X: 1}, InvMass: 1},
		{Position: r3.Vec{Y: 2}, InvMass: 0},
	}
	if err := SetData(s, Particles, in); err != nil {
		t.Fatal(err)
	}

	out := make([]components.Particle, 4)
	n, err := GetData(s, Particles, out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("GetData copied %d, want 4", n)
	}
	if out[0] != in[0] || out[1] != in[1] {
		t.Errorf("GetData = %v, want prefix %v", out[:2], in)
	}

	view, err := View[components.Particle](s, Particles)
	if err != nil {
		t.Fatal(err)
	}
	view[2].InvMass = 3
	_, _ = GetData(s, Particles, out)
	if out[2].InvMass != 3 {
		t.Error("write through View not visible to GetData")
	}

	want := int64(4*ElemParticle.Stride() + 4*ElemFloat.Stride())
	if got := s.MemoryUsage(); got != want {
		t.Errorf("MemoryUsage = %d, want %d", got, want)
	}
}

func TestStoreErrors(t *testing.T) {
	s := NewStore()
	_ = s.CreateBuffer(Debug, ElemFloat, 2)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"missing", func() error { _, err := s.Buffer("nope"); return err }, ErrNotFound},
		{"missing view", func() error { _, err := View[float64](s, "nope"); return err }, ErrNotFound},
		{"wrong type", func() error { _, err := View[r3.Vec](s, Debug); return err }, ErrTypeMismatch},
		{"overflow", func() error { return SetData(s, Debug, []float64{1, 2, 3}) }, ErrOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if err := s.CreateBuffer("bad", ElemFloat, -1); err == nil {
		t.Error("expected error for negative count")
	}
}

func TestStoreReleaseAndNames(t *testing.T) {
	s := NewStore()
	_ = s.CreateBuffer(Vertices, ElemVec3, 3)
	_ = s.CreateBuffer(Colliders, ElemCollider, 64)

	names := s.Names()
	if len(names) != 2 || names[0] != Colliders || names[1] != Vertices {
		t.Errorf("Names = %v", names)
	}
	s.Release(Colliders)
	if s.Has(Colliders) {
		t.Error("Colliders still present after Release")
	}
	s.ReleaseAll()
	if s.MemoryUsage() != 0 {
		t.Errorf("MemoryUsage after ReleaseAll = %d", s.MemoryUsage())
	}
}

// waitReady polls until the readback completes or the deadline passes.
func waitReady(t *testing.T, r *Readback, dst []float32) int {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, ok := r.Poll(dst); ok {
			return n
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("readback never completed")
	return 0
}

func TestReadbackPendingThenReady(t *testing.T) {
	s := NewStore()
	_ = s.CreateBuffer(Vertices, ElemVec3, 2)
	_ = SetData(s, Vertices, []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}})

	release := make(chan struct{})
	r := NewReadback(time.Second)
	r.Transfer = func(src []r3.Vec, dst []float32) error {
		<-release
		return PackVertices(src, dst)
	}

	if err := r.Request(s, Vertices); err != nil {
		t.Fatal(err)
	}
	if !r.Pending() {
		t.Error("expected pending after Request")
	}
	if err := r.Request(s, Vertices); !errors.Is(err, ErrReadbackBusy) {
		t.Errorf("second Request = %v, want ErrReadbackBusy", err)
	}

	// Device writes after the request must not leak into the transfer.
	view, _ := View[r3.Vec](s, Vertices)
	view[0] = r3.Vec{X: 100}

	dst := make([]float32, 6)
	if _, ok := r.Poll(dst); ok {
		t.Error("Poll ready before transfer finished")
	}
	close(release)

	n := waitReady(t, r, dst)
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
	want := []float32{1, 2, 3, 4, 5, 6}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestReadbackFailureCooldown(t *testing.T) {
	s := NewStore()
	_ = s.CreateBuffer(Vertices, ElemVec3, 1)

	now := time.Unix(100, 0)
	r := NewReadback(500 * time.Millisecond)
	r.now = func() time.Time { return now }
	done := make(chan struct{})
	r.Transfer = func(src []r3.Vec, dst []float32) error {
		defer close(done)
		return errors.New("device lost")
	}

	if err := r.Request(s, Vertices); err != nil {
		t.Fatal(err)
	}
	<-done
	for r.Pending() {
		time.Sleep(time.Millisecond)
	}

	dst := make([]float32, 3)
	if _, ok := r.Poll(dst); ok {
		t.Fatal("failed readback reported ready")
	}
	if r.Err() == nil {
		t.Error("expected Err after failure")
	}
	if err := r.Request(s, Vertices); !errors.Is(err, ErrReadbackBusy) {
		t.Errorf("Request during cooldown = %v, want ErrReadbackBusy", err)
	}

	now = now.Add(time.Second)
	r.Transfer = PackVertices
	if err := r.Request(s, Vertices); err != nil {
		t.Fatalf("Request after cooldown = %v", err)
	}
	waitReady(t, r, dst)

	completed, failed := r.Counts()
	if completed != 1 || failed != 1 {
		t.Errorf("Counts = %d, %d, want 1, 1", completed, failed)
	}
}

func TestReadbackMissingBuffer(t *testing.T) {
	r := NewReadback(0)
	if err := r.Request(NewStore(), Vertices); !errors.Is(err, ErrNotFound) {
		t.Errorf("Request = %v, want ErrNotFound", err)
	}
}
