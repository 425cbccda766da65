// Package topology generates the initial particles and constraints of simple soft bodies.
package topology

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

// Topology is the initial state of a soft body. Constraint colors are unset.
type Topology struct {
	Particles         []components.Particle
	Constraints       []components.Constraint
	VolumeConstraints []components.VolumeConstraint
	Indices           []int32  // surface triangles
	UVs               []r2.Vec // one per particle, may be nil
}

// Bounds returns the axis aligned bounds of the particle positions.
func (t *Topology) Bounds() (lo, hi r3.Vec) {
	if len(t.Particles) == 0 {
		return
	}
	lo, hi = t.Particles[0].Position, t.Particles[0].Position
	for i := range t.Particles {
		p := t.Particles[i].Position
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return lo, hi
}

// Clone returns a deep copy.
func (t *Topology) Clone() Topology {
	return Topology{
		Particles:         append([]components.Particle(nil), t.Particles...),
		Constraints:       append([]components.Constraint(nil), t.Constraints...),
		VolumeConstraints: append([]components.VolumeConstraint(nil), t.VolumeConstraints...),
		Indices:           append([]int32(nil), t.Indices...),
		UVs:               append([]r2.Vec(nil), t.UVs...),
	}
}

// distance builds an uncolored distance constraint at the current separation of a and b.
func distance(ps []components.Particle, a, b int32, compliance float64) components.Constraint {
	return components.Constraint{
		A:          a,
		B:          b,
		RestLength: r3.Norm(r3.Sub(ps[b].Position, ps[a].Position)),
		Compliance: compliance,
		Color:      components.Uncolored,
	}
}

// tetra builds a volume constraint with positive rest volume, reordering p if needed.
func tetra(ps []components.Particle, p [4]int32, compliance, pressure float64) components.VolumeConstraint {
	v := components.SignedVolume(ps[p[0]].Position, ps[p[1]].Position, ps[p[2]].Position, ps[p[3]].Position)
	if v < 0 {
		p[2], p[3] = p[3], p[2]
		v = -v
	}
	return components.VolumeConstraint{P: p, RestVolume: v, Compliance: compliance, Pressure: pressure}
}

// Tetrahedron returns a single tetrahedron with edge constraints and one volume constraint.
func Tetrahedron(origin r3.Vec, size, mass, compliance, volumeCompliance float64) Topology {
	pos := []r3.Vec{
		{},
		{X: size},
		{Y: size},
		{Z: size},
	}
	t := Topology{}
	for _, p := range pos {
		t.Particles = append(t.Particles, components.Particle{Position: r3.Add(origin, p), InvMass: 1 / mass})
	}
	for a := int32(0); a < 4; a++ {
		for b := a + 1; b < 4; b++ {
			t.Constraints = append(t.Constraints, distance(t.Particles, a, b, compliance))
		}
	}
	t.VolumeConstraints = []components.VolumeConstraint{tetra(t.Particles, [4]int32{0, 1, 2, 3}, volumeCompliance, 1)}
	t.Indices = []int32{0, 2, 1, 0, 1, 3, 0, 3, 2, 1, 2, 3}
	return t
}

// Pendulum returns a pinned anchor and a free bob held level with it, length away along X.
func Pendulum(anchor r3.Vec, length, mass, compliance float64) Topology {
	t := Topology{
		Particles: []components.Particle{
			{Position: anchor, InvMass: 0},
			{Position: r3.Add(anchor, r3.Vec{X: length}), InvMass: 1 / mass},
		},
	}
	t.Constraints = []components.Constraint{distance(t.Particles, 0, 1, compliance)}
	return t
}
