package components

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ColliderKind tags the active variant of an SDFCollider.
type ColliderKind uint8

const (
	ColliderSphere ColliderKind = iota
	ColliderPlane
	ColliderBox
	ColliderCylinder
)

// SDFCollider is a collision proxy evaluated as a signed distance field.
// Which fields are meaningful depends on Kind:
//
//	Sphere:   Center, Scalar (radius)
//	Plane:    Normal, Scalar (distance from origin along Normal)
//	Box:      Center, Extents (half-extents), Rotation
//	Cylinder: Center, Extents.X (radius), Extents.Y (half-height), Rotation
type SDFCollider struct {
	Kind     ColliderKind
	Center   r3.Vec
	Scalar   float64
	Extents  r3.Vec
	Normal   r3.Vec
	Rotation quat.Number
}

// ShapeKind identifies the scene-side collider shape before conversion.
type ShapeKind uint8

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeCapsule
	ShapeConvexMesh
	ShapeMesh    // concave triangle mesh, no SDF approximation
	ShapeTerrain // heightfield, no SDF approximation
)

// Capsule axis directions.
const (
	AxisX = 0
	AxisY = 1
	AxisZ = 2
)

// ColliderShape is the ECS component describing a scene collider in local space.
type ColliderShape struct {
	Kind   ShapeKind
	Center r3.Vec  // local offset from the transform origin
	Size   r3.Vec  // box full size
	Radius float64 // sphere / capsule radius
	Height float64 // capsule total height along Axis
	Axis   int     // capsule long axis
	Min    r3.Vec  // convex mesh local bounds
	Max    r3.Vec
	Floor  bool // tagged as floor: always an infinite plane
}

// SoftBody links a scene entity to its registered simulated body.
type SoftBody struct {
	ID uint64 // registry id
}

// Orbit moves a kinematic collider around a vertical axis through Center, keeping it facing
// the direction of travel.
type Orbit struct {
	Center r3.Vec
	Radius float64
	Rate   float64 // rad/s
	Angle  float64
}

// Impact is a pending collision impulse reported against a soft body.
type Impact struct {
	Point     r3.Vec
	Impulse   r3.Vec
	Magnitude float64
}
