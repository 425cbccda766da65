package components

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Identity is the identity rotation.
var Identity = quat.Number{Real: 1}

// Transform places a scene entity in the world.
type Transform struct {
	Position r3.Vec
	Rotation quat.Number
	Scale    r3.Vec
}

// NewTransform returns a transform at pos with identity rotation and unit scale.
func NewTransform(pos r3.Vec) Transform {
	return Transform{Position: pos, Rotation: Identity, Scale: r3.Vec{X: 1, Y: 1, Z: 1}}
}

// Orientation returns q normalized, or the identity for a zero quaternion.
func Orientation(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < 1e-12 {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Rotate applies rotation q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(Orientation(q)).Rotate(v)
}

// InverseRotate applies the inverse of rotation q to v.
func InverseRotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(quat.Conj(Orientation(q))).Rotate(v)
}

// AxisAngle builds a unit quaternion rotating by angle radians around axis.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	return quat.Number(r3.NewRotation(angle, axis))
}

// MaxAxis returns the largest absolute component of v.
func MaxAxis(v r3.Vec) float64 {
	m := abs(v.X)
	if y := abs(v.Y); y > m {
		m = y
	}
	if z := abs(v.Z); z > m {
		m = z
	}
	return m
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
