package topology

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

func TestLatticeCounts(t *testing.T) {
	tests := []struct {
		name        string
		opts        LatticeOptions
		particles   int
		constraints int
		volumes     int
		indices     int
	}{
		{
			name:        "structural 5x5x4",
			opts:        LatticeOptions{NX: 5, NY: 5, NZ: 4, Spacing: 0.25, Mass: 1, Compliance: 1e-6},
			particles:   100,
			constraints: 4*5*4 + 5*4*4 + 5*5*3,
			indices:     (2*4*4 + 2*4*3 + 2*4*3) * 6,
		},
		{
			name:        "single cell with shear and volume",
			opts:        LatticeOptions{NX: 2, NY: 2, NZ: 2, Spacing: 1, Mass: 1, Shear: true, Volume: true, Pressure: 1},
			particles:   8,
			constraints: 12 + 12 + 4,
			volumes:     6,
			indices:     6 * 6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top, err := Lattice(r3.Vec{}, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if got := len(top.Particles); got != tt.particles {
				t.Errorf("particles = %d, want %d", got, tt.particles)
			}
			if got := len(top.Constraints); got != tt.constraints {
				t.Errorf("constraints = %d, want %d", got, tt.constraints)
			}
			if got := len(top.VolumeConstraints); got != tt.volumes {
				t.Errorf("volume constraints = %d, want %d", got, tt.volumes)
			}
			if got := len(top.Indices); got != tt.indices {
				t.Errorf("indices = %d, want %d", got, tt.indices)
			}
			if len(top.UVs) != len(top.Particles) {
				t.Errorf("uvs = %d, want one per particle", len(top.UVs))
			}
		})
	}
}

func TestLatticeInvariants(t *testing.T) {
	top, err := Lattice(r3.Vec{X: -1, Y: 2}, LatticeOptions{
		NX: 3, NY: 4, NZ: 3, Spacing: 0.5, Mass: 2,
		Shear: true, Volume: true, VolumeCompliance: 1e-4, Pressure: 1.2,
	})
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[[2]int32]bool)
	for i, c := range top.Constraints {
		if c.A == c.B || c.RestLength <= 0 {
			t.Fatalf("constraint %d degenerate: %+v", i, c)
		}
		if c.Color != components.Uncolored {
			t.Errorf("constraint %d colored at generation", i)
		}
		key := [2]int32{min(c.A, c.B), max(c.A, c.B)}
		if seen[key] {
			t.Errorf("duplicate constraint %v", key)
		}
		seen[key] = true
	}

	for i, v := range top.VolumeConstraints {
		ps := top.Particles
		got := components.SignedVolume(ps[v.P[0]].Position, ps[v.P[1]].Position, ps[v.P[2]].Position, ps[v.P[3]].Position)
		if got <= 0 || math.Abs(got-v.RestVolume) > 1e-12 {
			t.Errorf("tetra %d signed volume %v, rest %v", i, got, v.RestVolume)
		}
	}

	lo, hi := top.Bounds()
	center := r3.Scale(0.5, r3.Add(lo, hi))
	for i := 0; i < len(top.Indices); i += 3 {
		p0 := top.Particles[top.Indices[i]].Position
		p1 := top.Particles[top.Indices[i+1]].Position
		p2 := top.Particles[top.Indices[i+2]].Position
		n := r3.Cross(r3.Sub(p1, p0), r3.Sub(p2, p0))
		mid := r3.Scale(1.0/3, r3.Add(p0, r3.Add(p1, p2)))
		if r3.Dot(n, r3.Sub(mid, center)) <= 0 {
			t.Errorf("triangle %d faces inward", i/3)
		}
	}
	if lo != (r3.Vec{X: -1, Y: 2}) || hi != (r3.Vec{X: 0, Y: 3.5, Z: 1}) {
		t.Errorf("bounds = %v, %v", lo, hi)
	}
}

func TestLatticeErrors(t *testing.T) {
	tests := []struct {
		name string
		opts LatticeOptions
	}{
		{"flat", LatticeOptions{NX: 1, NY: 5, NZ: 5, Spacing: 1, Mass: 1}},
		{"zero spacing", LatticeOptions{NX: 2, NY: 2, NZ: 2, Mass: 1}},
		{"zero mass", LatticeOptions{NX: 2, NY: 2, NZ: 2, Spacing: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Lattice(r3.Vec{}, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTetrahedronAndPendulum(t *testing.T) {
	tet := Tetrahedron(r3.Vec{Y: 1}, 2, 1, 0, 0)
	if len(tet.Particles) != 4 || len(tet.Constraints) != 6 || len(tet.VolumeConstraints) != 1 {
		t.Fatalf("tetrahedron sizes %d/%d/%d", len(tet.Particles), len(tet.Constraints), len(tet.VolumeConstraints))
	}
	if got := tet.VolumeConstraints[0].RestVolume; math.Abs(got-8.0/6) > 1e-12 {
		t.Errorf("rest volume = %v, want %v", got, 8.0/6)
	}

	p := Pendulum(r3.Vec{}, 1.5, 1, 0)
	if !p.Particles[0].Pinned() || p.Particles[1].Pinned() {
		t.Error("pendulum anchor must be pinned and bob free")
	}
	if got := p.Constraints[0].RestLength; got != 1.5 {
		t.Errorf("rest length = %v, want 1.5", got)
	}

	c := p.Clone()
	c.Particles[1].Position.X = 9
	if p.Particles[1].Position.X == 9 {
		t.Error("Clone shares particle storage")
	}
}
