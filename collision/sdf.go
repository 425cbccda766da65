// Package collision implements the signed distance collision model: SDF primitives, the
// conversion of scene shapes into SDF colliders, the two-phase detect/apply kernels and the
// throttled gathering of environment and body proxy colliders.
package collision

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

const (
	// MaxColliders is the total collider budget of one body per step.
	MaxColliders = 64
	// MaxEnvironment is the share of the budget used by static scene colliders.
	MaxEnvironment = 48
	// Friction is the positional friction coefficient applied on contact.
	Friction = 0.8
	// FloorSkin lifts floor planes off the render surface.
	FloorSkin = 0.001

	gradientStep = 1e-4
)

var up = r3.Vec{Y: 1}

// Evaluate returns the signed distance from p to the collider surface (negative inside) and the
// outward surface normal at p.
func Evaluate(c *components.SDFCollider, p r3.Vec) (float64, r3.Vec) {
	var dist float64
	var n r3.Vec
	switch c.Kind {
	case components.ColliderSphere:
		dist, n = sphere(p, c.Center, c.Scalar)
	case components.ColliderPlane:
		dist, n = plane(p, c.Normal, c.Scalar)
	case components.ColliderBox:
		local := components.InverseRotate(c.Rotation, r3.Sub(p, c.Center))
		dist, n = box(local, c.Extents)
		n = components.Rotate(c.Rotation, n)
	case components.ColliderCylinder:
		local := components.InverseRotate(c.Rotation, r3.Sub(p, c.Center))
		dist, n = cylinder(local, c.Extents.X, c.Extents.Y)
		n = components.Rotate(c.Rotation, n)
	default:
		return math.Inf(1), up
	}

	if !components.FiniteVec(n) || r3.Norm2(n) < 1e-12 {
		n = gradient(c, p)
	}
	return dist, n
}

// Distance returns only the signed distance from p to the collider.
func Distance(c *components.SDFCollider, p r3.Vec) float64 {
	d, _ := Evaluate(c, p)
	return d
}

func sphere(p, center r3.Vec, radius float64) (float64, r3.Vec) {
	d := r3.Sub(p, center)
	l := r3.Norm(d)
	if l < 1e-12 {
		return -radius, up
	}
	return l - radius, r3.Scale(1/l, d)
}

func plane(p, normal r3.Vec, distance float64) (float64, r3.Vec) {
	l := r3.Norm(normal)
	if l < 1e-12 {
		normal, l = up, 1
	}
	n := r3.Scale(1/l, normal)
	return r3.Dot(p, n) - distance, n
}

// box is the exact SDF of an axis aligned box centered at the origin.
func box(p, half r3.Vec) (float64, r3.Vec) {
	q := r3.Vec{X: math.Abs(p.X) - half.X, Y: math.Abs(p.Y) - half.Y, Z: math.Abs(p.Z) - half.Z}
	outside := r3.Vec{X: math.Max(q.X, 0), Y: math.Max(q.Y, 0), Z: math.Max(q.Z, 0)}
	ol := r3.Norm(outside)
	inside := math.Min(math.Max(q.X, math.Max(q.Y, q.Z)), 0)

	if ol > 0 {
		n := r3.Vec{
			X: math.Copysign(outside.X, p.X),
			Y: math.Copysign(outside.Y, p.Y),
			Z: math.Copysign(outside.Z, p.Z),
		}
		return ol, r3.Scale(1/ol, n)
	}

	// Inside: push out through the nearest face.
	var n r3.Vec
	switch {
	case q.X >= q.Y && q.X >= q.Z:
		n.X = sign(p.X)
	case q.Y >= q.Z:
		n.Y = sign(p.Y)
	default:
		n.Z = sign(p.Z)
	}
	return inside, n
}

// cylinder is the exact SDF of a capped cylinder along Y centered at the origin.
func cylinder(p r3.Vec, radius, halfHeight float64) (float64, r3.Vec) {
	rl := math.Hypot(p.X, p.Z)
	radial := r3.Vec{X: 1}
	if rl > 1e-12 {
		radial = r3.Vec{X: p.X / rl, Z: p.Z / rl}
	}
	axial := r3.Vec{Y: sign(p.Y)}

	dr := rl - radius
	dy := math.Abs(p.Y) - halfHeight

	if dr <= 0 && dy <= 0 {
		if dr > dy {
			return dr, radial
		}
		return dy, axial
	}

	wr, wy := math.Max(dr, 0), math.Max(dy, 0)
	l := math.Hypot(wr, wy)
	n := r3.Add(r3.Scale(wr/l, radial), r3.Scale(wy/l, axial))
	return l, n
}

// gradient estimates the SDF normal by central differences.
func gradient(c *components.SDFCollider, p r3.Vec) r3.Vec {
	h := gradientStep
	g := r3.Vec{
		X: rawDistance(c, r3.Add(p, r3.Vec{X: h})) - rawDistance(c, r3.Sub(p, r3.Vec{X: h})),
		Y: rawDistance(c, r3.Add(p, r3.Vec{Y: h})) - rawDistance(c, r3.Sub(p, r3.Vec{Y: h})),
		Z: rawDistance(c, r3.Add(p, r3.Vec{Z: h})) - rawDistance(c, r3.Sub(p, r3.Vec{Z: h})),
	}
	l := r3.Norm(g)
	if l < 1e-12 || !components.FiniteVec(g) {
		return up
	}
	return r3.Scale(1/l, g)
}

func rawDistance(c *components.SDFCollider, p r3.Vec) float64 {
	switch c.Kind {
	case components.ColliderSphere:
		return r3.Norm(r3.Sub(p, c.Center)) - c.Scalar
	case components.ColliderPlane:
		d, _ := plane(p, c.Normal, c.Scalar)
		return d
	case components.ColliderBox:
		d, _ := box(components.InverseRotate(c.Rotation, r3.Sub(p, c.Center)), c.Extents)
		return d
	case components.ColliderCylinder:
		d, _ := cylinder(components.InverseRotate(c.Rotation, r3.Sub(p, c.Center)), c.Extents.X, c.Extents.Y)
		return d
	}
	return math.Inf(1)
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
