// Package components defines the simulation data model and the ECS components for the scene.
//
// Particles, constraints and colliders are plain fixed-size records stored in contiguous
// slices and referenced by int32 index, so a whole body can be uploaded to a compute device
// in one copy.
package components

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Uncolored marks a constraint that has not been through the coloring engine yet.
const Uncolored int32 = -1

// Particle is a single point mass.
type Particle struct {
	Position r3.Vec
	InvMass  float64 // 0 = pinned (infinite mass)
	Velocity r3.Vec
	Force    r3.Vec // reserved, not read by the solver
}

// Pinned reports whether the particle has infinite mass.
func (p *Particle) Pinned() bool {
	return p.InvMass <= 0
}

// Constraint is a compliant distance constraint between two particles.
type Constraint struct {
	A, B       int32
	RestLength float64
	Compliance float64 // inverse stiffness, 0 = rigid
	Lambda     float64 // accumulated Lagrange multiplier
	Color      int32   // color group assigned by the coloring engine
}

// Degenerate reports whether the constraint cannot produce a correction.
func (c *Constraint) Degenerate() bool {
	return c.A == c.B || c.RestLength <= 1e-9
}

// Other returns the endpoint opposite to particle i.
func (c *Constraint) Other(i int32) int32 {
	if c.A == i {
		return c.B
	}
	return c.A
}

// VolumeConstraint keeps the signed volume of a tetrahedron near its (pressure scaled) rest value.
type VolumeConstraint struct {
	P          [4]int32
	RestVolume float64
	Compliance float64
	Lambda     float64
	Pressure   float64 // multiplier on RestVolume, 0 is treated as 1
}

// TargetVolume returns the rest volume scaled by the pressure multiplier.
func (v *VolumeConstraint) TargetVolume() float64 {
	p := v.Pressure
	if p == 0 {
		p = 1
	}
	return v.RestVolume * p
}

// SignedVolume returns the signed volume of the tetrahedron (p0, p1, p2, p3).
// Positive when (p1-p0, p2-p0, p3-p0) is a right-handed frame.
func SignedVolume(p0, p1, p2, p3 r3.Vec) float64 {
	e1 := r3.Sub(p1, p0)
	e2 := r3.Sub(p2, p0)
	e3 := r3.Sub(p3, p0)
	return r3.Dot(e1, r3.Cross(e2, e3)) / 6.0
}

// Finite reports whether x is neither NaN nor infinite.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// FiniteVec reports whether every component of v is finite.
func FiniteVec(v r3.Vec) bool {
	return Finite(v.X) && Finite(v.Y) && Finite(v.Z)
}

// SanitizeVec replaces each non-finite component of v with the matching component of fallback.
// The fallback must itself be finite; the result is then always finite and a second pass is a no-op.
func SanitizeVec(v, fallback r3.Vec) r3.Vec {
	if !Finite(v.X) {
		v.X = fallback.X
	}
	if !Finite(v.Y) {
		v.Y = fallback.Y
	}
	if !Finite(v.Z) {
		v.Z = fallback.Z
	}
	return v
}
