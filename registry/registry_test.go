package registry

import (
	"sync"
	"testing"
)

func TestSetRegisterUnregister(t *testing.T) {
	s := NewSet[string]()
	a := s.Register("a")
	b := s.Register("b")
	c := s.Register("c")

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	if a == b || b == c {
		t.Fatalf("duplicate ids %d %d %d", a, b, c)
	}

	before := s.Snapshot()
	v0 := s.Version()
	if !s.Unregister(b) {
		t.Fatal("Unregister(b) = false")
	}
	if s.Unregister(b) {
		t.Error("second Unregister(b) = true")
	}
	if s.Version() == v0 {
		t.Error("version unchanged after Unregister")
	}

	// the old snapshot is untouched
	if len(before) != 3 || before[1].Value != "b" {
		t.Errorf("old snapshot changed: %v", before)
	}
	after := s.Snapshot()
	if len(after) != 2 || after[0].Value != "a" || after[1].Value != "c" {
		t.Errorf("snapshot = %v, want [a c]", after)
	}

	if v, ok := s.Get(c); !ok || v != "c" {
		t.Errorf("Get(c) = %q, %v", v, ok)
	}
	if _, ok := s.Get(b); ok {
		t.Error("Get found an unregistered id")
	}

	if !s.Replace(a, "A") {
		t.Fatal("Replace(a) = false")
	}
	if v, _ := s.Get(a); v != "A" {
		t.Errorf("Get(a) after Replace = %q", v)
	}
	if after[0].Value != "a" {
		t.Error("Replace mutated an earlier snapshot")
	}

	// ids are not reused
	if d := s.Register("d"); d <= c {
		t.Errorf("new id %d reuses a released id", d)
	}
}

func TestRegisterDuringIteration(t *testing.T) {
	s := NewSet[int]()
	for i := 0; i < 100; i++ {
		s.Register(i)
	}

	stop := make(chan struct{})
	var writers sync.WaitGroup
	for w := 0; w < 4; w++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				id := s.Register(1000 + i)
				s.Unregister(id)
			}
		}()
	}

	errs := make(chan string, 4)
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for n := 0; n < 2000; n++ {
				snap := s.Snapshot()
				seen := make(map[ID]bool, len(snap))
				stable := 0
				for _, e := range snap {
					if seen[e.ID] {
						errs <- "duplicate id in snapshot"
						return
					}
					seen[e.ID] = true
					if e.Value < 100 {
						stable++
					}
				}
				if stable != 100 {
					errs <- "snapshot lost a stable entry"
					return
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	writers.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}

	if s.Len() != 100 {
		t.Errorf("Len = %d after churn, want 100", s.Len())
	}
}

func TestRegistryNew(t *testing.T) {
	r := New()
	id := r.Bodies.Register(Body{Name: "cube"})
	r.Colliders.Register(Collider{Static: true})
	if b, ok := r.Bodies.Get(id); !ok || b.Name != "cube" {
		t.Errorf("Bodies.Get = %+v, %v", b, ok)
	}
	if r.Colliders.Len() != 1 {
		t.Errorf("Colliders.Len = %d, want 1", r.Colliders.Len())
	}
}
