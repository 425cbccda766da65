package collision

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

// Detect writes, for particles [start, end), the average push-out correction over every
// collider the particle penetrates. Particles outside every collider get a zero correction.
// Each particle writes only its own slot.
func Detect(particles []components.Particle, colliders []components.SDFCollider, corrections []r3.Vec, start, end int) {
	for i := start; i < end; i++ {
		p := &particles[i]
		if p.Pinned() {
			corrections[i] = r3.Vec{}
			continue
		}
		var sum r3.Vec
		hits := 0
		for c := range colliders {
			dist, n := Evaluate(&colliders[c], p.Position)
			if dist < 0 {
				sum = r3.Add(sum, r3.Scale(-dist, n))
				hits++
			}
		}
		if hits > 0 {
			sum = r3.Scale(1/float64(hits), sum)
		}
		corrections[i] = components.SanitizeVec(sum, r3.Vec{})
	}
}

// Apply moves particles [start, end) by their detected correction and removes tangential
// motion since prev with positional friction. The friction displacement never exceeds
// Friction times the correction magnitude.
func Apply(particles []components.Particle, prev, corrections []r3.Vec, start, end int) {
	for i := start; i < end; i++ {
		p := &particles[i]
		corr := corrections[i]
		if p.Pinned() {
			continue
		}
		mag := r3.Norm(corr)
		if mag < 1e-12 {
			continue
		}

		pos := r3.Add(p.Position, corr)
		n := r3.Scale(1/mag, corr)
		disp := r3.Sub(pos, prev[i])
		tangent := r3.Sub(disp, r3.Scale(r3.Dot(disp, n), n))
		if tl := r3.Norm(tangent); tl > 1e-12 {
			f := Friction * mag
			if f > tl {
				f = tl
			}
			pos = r3.Sub(pos, r3.Scale(f/tl, tangent))
		}
		p.Position = components.SanitizeVec(pos, p.Position)
	}
}
