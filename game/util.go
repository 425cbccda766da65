package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"
)

// toRL converts a simulation vector to a raylib vector.
func toRL(v r3.Vec) rl.Vector3 {
	return rl.Vector3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// packed returns vertex i of a packed xyz position slice.
func packed(ps []float32, i int32) rl.Vector3 {
	return rl.Vector3{X: ps[i*3], Y: ps[i*3+1], Z: ps[i*3+2]}
}

// clampf restricts x to [lo, hi].
func clampf(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// lerpColor blends a toward b by t in [0, 1].
func lerpColor(a, b rl.Color, t float64) rl.Color {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t)
	}
	return rl.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}
