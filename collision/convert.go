package collision

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

// Convert maps a scene collider shape at transform xf to an SDF collider.
// Floor-tagged shapes always become an infinite plane. Concave meshes and terrain have no
// approximation and report false.
func Convert(shape components.ColliderShape, xf components.Transform) (components.SDFCollider, bool) {
	rot := components.Orientation(xf.Rotation)
	scale := absVec(xf.Scale)

	if shape.Floor {
		n := components.Rotate(rot, up)
		top := shape.Center
		if shape.Kind == components.ShapeBox {
			top.Y += shape.Size.Y / 2
		}
		surface := worldPoint(xf, rot, top)
		return components.SDFCollider{
			Kind:     components.ColliderPlane,
			Normal:   n,
			Scalar:   r3.Dot(surface, n) + FloorSkin,
			Rotation: rot,
		}, true
	}

	center := worldPoint(xf, rot, shape.Center)
	switch shape.Kind {
	case components.ShapeBox:
		return components.SDFCollider{
			Kind:     components.ColliderBox,
			Center:   center,
			Extents:  mulVec(r3.Scale(0.5, shape.Size), scale),
			Rotation: rot,
		}, true

	case components.ShapeSphere:
		return components.SDFCollider{
			Kind:     components.ColliderSphere,
			Center:   center,
			Scalar:   shape.Radius * components.MaxAxis(scale),
			Rotation: rot,
		}, true

	case components.ShapeCapsule:
		heightScale, radiusScale := capsuleScales(shape.Axis, scale)
		radius := shape.Radius * radiusScale
		half := math.Max(shape.Height*heightScale/2, radius)
		return components.SDFCollider{
			Kind:     components.ColliderCylinder,
			Center:   center,
			Extents:  r3.Vec{X: radius, Y: half},
			Rotation: quat.Mul(rot, capsuleCorrection(shape.Axis)),
		}, true

	case components.ShapeConvexMesh:
		localCenter := r3.Add(shape.Center, r3.Scale(0.5, r3.Add(shape.Min, shape.Max)))
		return components.SDFCollider{
			Kind:     components.ColliderBox,
			Center:   worldPoint(xf, rot, localCenter),
			Extents:  mulVec(r3.Scale(0.5, r3.Sub(shape.Max, shape.Min)), scale),
			Rotation: rot,
		}, true
	}
	return components.SDFCollider{}, false
}

// capsuleScales returns the scale along the capsule axis and the larger of the other two.
func capsuleScales(axis int, s r3.Vec) (height, radius float64) {
	switch axis {
	case components.AxisX:
		return s.X, math.Max(s.Y, s.Z)
	case components.AxisZ:
		return s.Z, math.Max(s.X, s.Y)
	default:
		return s.Y, math.Max(s.X, s.Z)
	}
}

// capsuleCorrection rotates the Y aligned cylinder onto the capsule axis.
func capsuleCorrection(axis int) quat.Number {
	switch axis {
	case components.AxisX:
		return components.AxisAngle(r3.Vec{Z: 1}, math.Pi/2)
	case components.AxisZ:
		return components.AxisAngle(r3.Vec{X: 1}, math.Pi/2)
	default:
		return components.Identity
	}
}

func worldPoint(xf components.Transform, rot quat.Number, local r3.Vec) r3.Vec {
	return r3.Add(xf.Position, components.Rotate(rot, mulVec(local, xf.Scale)))
}

func mulVec(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

func absVec(v r3.Vec) r3.Vec {
	return r3.Vec{X: math.Abs(v.X), Y: math.Abs(v.Y), Z: math.Abs(v.Z)}
}
