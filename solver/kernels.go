package solver

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

const (
	// MaxCorrectionRatio caps a distance correction at this fraction of the rest length.
	MaxCorrectionRatio = 0.2
	// MaxVolumeErrorRatio clamps the volume error to this fraction of the target volume.
	MaxVolumeErrorRatio = 0.5

	lengthEpsilon = 1e-9
	lambdaEpsilon = 1e-12
	volumeEpsilon = 1e-12
	dtEpsilon     = 1e-9
)

// integrate applies gravity and damping to particle i, stores its pre-step position and
// advances it.
func integrate(p *components.Particle, prev *r3.Vec, gravity r3.Vec, damping, dt float64) {
	if p.Pinned() {
		*prev = p.Position
		return
	}
	*prev = components.SanitizeVec(p.Position, r3.Vec{})

	v := r3.Add(p.Velocity, r3.Scale(dt, gravity))
	v = r3.Scale(math.Max(0, 1-damping*dt), v)
	v = components.SanitizeVec(v, r3.Vec{})

	p.Velocity = v
	p.Position = components.SanitizeVec(r3.Add(*prev, r3.Scale(dt, v)), *prev)
}

// solveDistance runs one XPBD update of constraint c.
func solveDistance(ps []components.Particle, c *components.Constraint, dt float64) {
	if dt < dtEpsilon {
		return
	}
	a, b := &ps[c.A], &ps[c.B]
	wA, wB := math.Max(a.InvMass, 0), math.Max(b.InvMass, 0)
	if wA+wB == 0 || c.RestLength < lengthEpsilon {
		return
	}

	d := r3.Sub(b.Position, a.Position)
	length := r3.Norm(d)
	if length < lengthEpsilon || !components.Finite(length) {
		return
	}
	n := r3.Scale(1/length, d)

	C := length - c.RestLength
	alphaTilde := c.Compliance / (dt * dt)
	deltaLambda := (-C - alphaTilde*c.Lambda) / (wA + wB + alphaTilde)
	if math.Abs(deltaLambda) < lambdaEpsilon || !components.Finite(deltaLambda) {
		return
	}
	c.Lambda += deltaLambda

	corr := r3.Scale(deltaLambda, n)
	if limit := MaxCorrectionRatio * c.RestLength; math.Abs(deltaLambda) > limit {
		corr = r3.Scale(limit/math.Abs(deltaLambda), corr)
	}

	if wA > 0 {
		a.Position = r3.Sub(a.Position, r3.Scale(wA, corr))
	}
	if wB > 0 {
		b.Position = r3.Add(b.Position, r3.Scale(wB, corr))
	}
}

// solveVolume runs one XPBD update of the tetrahedral volume constraint vc.
func solveVolume(ps []components.Particle, vc *components.VolumeConstraint, dt float64) {
	if dt < dtEpsilon {
		return
	}
	p0, p1, p2, p3 := &ps[vc.P[0]], &ps[vc.P[1]], &ps[vc.P[2]], &ps[vc.P[3]]
	x0, x1, x2, x3 := p0.Position, p1.Position, p2.Position, p3.Position

	target := vc.TargetVolume()
	limit := MaxVolumeErrorRatio * math.Abs(target)
	C := components.SignedVolume(x0, x1, x2, x3) - target
	C = math.Max(-limit, math.Min(limit, C))
	if math.Abs(C) < volumeEpsilon || !components.Finite(C) {
		return
	}

	var g [4]r3.Vec
	g[1] = r3.Scale(1.0/6, r3.Cross(r3.Sub(x2, x0), r3.Sub(x3, x0)))
	g[2] = r3.Scale(1.0/6, r3.Cross(r3.Sub(x3, x0), r3.Sub(x1, x0)))
	g[3] = r3.Scale(1.0/6, r3.Cross(r3.Sub(x1, x0), r3.Sub(x2, x0)))
	g[0] = r3.Scale(-1, r3.Add(g[1], r3.Add(g[2], g[3])))

	pts := [4]*components.Particle{p0, p1, p2, p3}
	alphaTilde := vc.Compliance / (dt * dt)
	denom := alphaTilde
	for i, p := range pts {
		if !p.Pinned() {
			denom += p.InvMass * r3.Norm2(g[i])
		}
	}
	if denom < volumeEpsilon {
		return
	}

	deltaLambda := (-C - alphaTilde*vc.Lambda) / denom
	if !components.Finite(deltaLambda) {
		return
	}
	vc.Lambda += deltaLambda
	for i, p := range pts {
		if p.Pinned() {
			continue
		}
		p.Position = components.SanitizeVec(r3.Add(p.Position, r3.Scale(p.InvMass*deltaLambda, g[i])), p.Position)
	}
}

// reconcile derives the velocity of particle i from its displacement over the substep.
func reconcile(p *components.Particle, prev r3.Vec, dt, maxSpeed float64) {
	if p.Pinned() {
		return
	}
	if dt < dtEpsilon {
		p.Velocity = r3.Vec{}
		return
	}
	v := r3.Scale(1/dt, r3.Sub(p.Position, prev))
	if s := r3.Norm(v); maxSpeed > 0 && s > maxSpeed {
		v = r3.Scale(maxSpeed/s, v)
	}
	p.Velocity = components.SanitizeVec(v, r3.Vec{})
}

// sanitizeParticle replaces non-finite state: position falls back to safe, velocity to zero.
func sanitizeParticle(p *components.Particle, safe r3.Vec) {
	p.Position = components.SanitizeVec(p.Position, components.SanitizeVec(safe, r3.Vec{}))
	p.Velocity = components.SanitizeVec(p.Velocity, r3.Vec{})
}
