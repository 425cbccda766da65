package components

// String returns the display name for a ColliderKind.
func (k ColliderKind) String() string {
	names := ColliderKindNames()
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// ColliderKindNames returns the display names for all collider kinds.
// The order matches the ColliderKind constants.
func ColliderKindNames() []string {
	return []string{"Sphere", "Plane", "Box", "Cylinder"}
}

// String returns the display name for a ShapeKind.
func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "Box"
	case ShapeSphere:
		return "Sphere"
	case ShapeCapsule:
		return "Capsule"
	case ShapeConvexMesh:
		return "ConvexMesh"
	case ShapeMesh:
		return "Mesh"
	case ShapeTerrain:
		return "Terrain"
	default:
		return "Unknown"
	}
}
