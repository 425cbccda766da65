package solver

import (
	"errors"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/buffers"
	"github.com/pthm-cable/squish/collision"
	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/telemetry"
)

// Params are the per-step simulation parameters.
type Params struct {
	DeltaTime           float64 // Tick: full step length; Substep: substep length
	Substeps            int
	Iterations          int
	Gravity             r3.Vec
	Damping             float64 // velocity damping applied during integration, per second
	GlobalDamping       float64 // extra uniform damping after reconciliation, per second
	LambdaDecay         float64 // multiplier on accumulated lambdas every substep
	CollisionCompliance float64
	CollisionsEnabled   bool
	WorldOffset         r3.Vec // added to positions written to the vertex buffer
	MaxSpeed            float64
	Debug               bool
}

// DefaultParams returns parameters for a 60 Hz tick.
func DefaultParams() Params {
	return Params{
		DeltaTime:         1.0 / 60,
		Substeps:          2,
		Iterations:        4,
		Gravity:           r3.Vec{Y: -9.81},
		Damping:           0.01,
		LambdaDecay:       0.9,
		CollisionsEnabled: true,
		MaxSpeed:          20,
	}
}

// Diagnostics is the record written to the debug buffer every substep.
type Diagnostics struct {
	NaNCount int
	InfCount int
	MaxSpeed float64
	FirstBad int // -1 when every particle is finite
}

// Healthy reports whether no non-finite value was seen.
func (d Diagnostics) Healthy() bool {
	return d.NaNCount == 0 && d.InfCount == 0
}

type views struct {
	particles   []components.Particle
	constraints []components.Constraint
	volumes     []components.VolumeConstraint
	prev        []r3.Vec
	vertices    []r3.Vec
	colliders   []components.SDFCollider
	corrections []r3.Vec
	debug       []float64
}

func (s *Solver) views() (views, error) {
	var v views
	var errs [8]error
	v.particles, errs[0] = buffers.View[components.Particle](s.store, buffers.Particles)
	v.constraints, errs[1] = buffers.View[components.Constraint](s.store, buffers.Constraints)
	v.volumes, errs[2] = buffers.View[components.VolumeConstraint](s.store, buffers.VolumeConstraints)
	v.prev, errs[3] = buffers.View[r3.Vec](s.store, buffers.PreviousPositions)
	v.vertices, errs[4] = buffers.View[r3.Vec](s.store, buffers.Vertices)
	v.colliders, errs[5] = buffers.View[components.SDFCollider](s.store, buffers.Colliders)
	v.corrections, errs[6] = buffers.View[r3.Vec](s.store, buffers.CollisionCorrections)
	v.debug, errs[7] = buffers.View[float64](s.store, buffers.Debug)
	if err := errors.Join(errs[:]...); err != nil {
		return v, err
	}
	switch {
	case len(v.particles) != s.particles, len(v.prev) != s.particles,
		len(v.vertices) != s.particles, len(v.corrections) != s.particles:
		return v, errors.New("per-particle buffer sizes do not match the initialized body")
	case len(v.constraints) != s.constraints, len(v.volumes) != s.volumes:
		return v, errors.New("constraint buffer sizes do not match the initialized body")
	case len(v.colliders) < s.colliders:
		return v, errors.New("collider buffer is smaller than the uploaded snapshot")
	case len(v.debug) < DebugRecordSize:
		return v, errors.New("debug buffer is smaller than the diagnostics record")
	}
	return v, nil
}

// Tick advances the body by p.DeltaTime in p.Substeps equal substeps and polls the vertex
// readback once.
func (s *Solver) Tick(p Params) {
	n := max(p.Substeps, 1)
	sp := p
	sp.DeltaTime = p.DeltaTime / float64(n)
	for i := 0; i < n; i++ {
		s.Substep(sp, i == n-1)
	}
	s.pollReadback()
}

// Substep runs one substep of length p.DeltaTime. The pipeline is: lambda decay, integrate,
// colored constraint solve (volume constraints after color 0 in every iteration), collision,
// velocity reconciliation, global damping, mesh sync on the last substep, diagnostics.
// An uninitialized solver or a missing buffer makes the whole substep a no-op.
func (s *Solver) Substep(p Params, isLastSubstep bool) {
	if !s.initialized {
		return
	}
	v, err := s.views()
	if err != nil {
		if !s.alerted {
			s.logger.Error("substep skipped", "error", err)
			s.alerted = true
		}
		return
	}
	dt := p.DeltaTime
	np := len(v.particles)
	nc := len(v.constraints)
	nv := len(v.volumes)

	s.phase(telemetry.PhaseDecay)
	decay := p.LambdaDecay
	s.dev.Dispatch(nc, func(start, end int) {
		for i := start; i < end; i++ {
			v.constraints[i].Lambda *= decay
		}
	})
	s.dev.Dispatch(nv, func(start, end int) {
		for i := start; i < end; i++ {
			v.volumes[i].Lambda *= decay
		}
	})

	s.phase(telemetry.PhaseIntegrate)
	s.dev.Dispatch(np, func(start, end int) {
		for i := start; i < end; i++ {
			integrate(&v.particles[i], &v.prev[i], p.Gravity, p.Damping, dt)
		}
	})

	s.phase(telemetry.PhaseSolve)
	for it := 0; it < p.Iterations; it++ {
		for c := int32(0); c <= s.maxColor; c++ {
			group := s.groupOrder[s.groupStart[c]:s.groupStart[c+1]]
			kernel := func(start, end int) {
				for _, ci := range group[start:end] {
					solveDistance(v.particles, &v.constraints[ci], dt)
				}
			}
			if s.serial {
				kernel(0, len(group))
			} else {
				s.dev.Dispatch(len(group), kernel)
			}
			if c == 0 {
				s.solveVolumes(v, dt)
			}
		}
	}

	s.phase(telemetry.PhaseCollide)
	if p.CollisionsEnabled && np > 0 && s.colliders > 0 {
		colliders := v.colliders[:s.colliders]
		alphaTilde := 0.0
		if dt > dtEpsilon {
			alphaTilde = p.CollisionCompliance / (dt * dt)
		}
		s.dev.Dispatch(np, func(start, end int) {
			collision.Detect(v.particles, colliders, v.corrections, start, end)
			if alphaTilde <= 0 {
				return
			}
			for i := start; i < end; i++ {
				w := v.particles[i].InvMass
				if w > 0 {
					v.corrections[i] = r3.Scale(w/(w+alphaTilde), v.corrections[i])
				}
			}
		})
		s.dev.Dispatch(np, func(start, end int) {
			collision.Apply(v.particles, v.prev, v.corrections, start, end)
		})
	}

	s.phase(telemetry.PhaseReconcile)
	s.dev.Dispatch(np, func(start, end int) {
		for i := start; i < end; i++ {
			reconcile(&v.particles[i], v.prev[i], dt, p.MaxSpeed)
		}
	})

	if p.GlobalDamping > 0 {
		k := math.Max(0, 1-p.GlobalDamping*dt)
		s.dev.Dispatch(np, func(start, end int) {
			for i := start; i < end; i++ {
				if !v.particles[i].Pinned() {
					v.particles[i].Velocity = r3.Scale(k, v.particles[i].Velocity)
				}
			}
		})
	}

	if isLastSubstep {
		s.phase(telemetry.PhaseMeshSync)
		s.syncVertices(p.WorldOffset)
		if err := s.readback.Request(s.store, buffers.Vertices); err != nil && !errors.Is(err, buffers.ErrReadbackBusy) {
			s.logger.Warn("vertex readback request failed", "error", err)
		}
	}

	s.phase(telemetry.PhaseDiagnostics)
	d := s.scan(v.particles)
	v.debug[0] = float64(d.NaNCount)
	v.debug[1] = float64(d.InfCount)
	v.debug[2] = d.MaxSpeed
	v.debug[3] = float64(d.FirstBad)
	if p.Debug && !d.Healthy() {
		s.logger.Warn("non-finite particle state",
			"nan", d.NaNCount,
			"inf", d.InfCount,
			"max_speed", d.MaxSpeed,
			"first_bad", d.FirstBad,
		)
	}
	s.substeps++
}

func (s *Solver) solveVolumes(v views, dt float64) {
	for c := 0; c+1 < len(s.volumeStart); c++ {
		group := s.volumeOrder[s.volumeStart[c]:s.volumeStart[c+1]]
		s.dev.Dispatch(len(group), func(start, end int) {
			for _, vi := range group[start:end] {
				solveVolume(v.particles, &v.volumes[vi], dt)
			}
		})
	}
}

// syncVertices copies particle positions plus offset into the vertex buffer.
func (s *Solver) syncVertices(offset r3.Vec) {
	ps, err := buffers.View[components.Particle](s.store, buffers.Particles)
	if err != nil {
		return
	}
	verts, err := buffers.View[r3.Vec](s.store, buffers.Vertices)
	if err != nil {
		return
	}
	s.dev.Dispatch(min(len(ps), len(verts)), func(start, end int) {
		for i := start; i < end; i++ {
			verts[i] = components.SanitizeVec(r3.Add(ps[i].Position, offset), r3.Vec{})
		}
	})
}

// pollReadback moves a completed readback into the host positions.
func (s *Solver) pollReadback() {
	if s.readback == nil {
		return
	}
	if _, ok := s.readback.Poll(s.host); ok {
		s.hostReady = true
		return
	}
	if err := s.readback.Err(); err != nil && !s.readback.Pending() {
		s.logger.Debug("vertex readback dropped", "error", err)
	}
}

// ReadbackReady reports whether Positions holds at least one completed readback.
func (s *Solver) ReadbackReady() bool {
	return s.hostReady
}

// WaitReadback polls until the in-flight readback lands. Intended for headless tools and tests.
func (s *Solver) WaitReadback() bool {
	if s.readback == nil {
		return false
	}
	for s.readback.Pending() {
		runtime.Gosched()
	}
	s.pollReadback()
	return s.hostReady
}

// scan counts non-finite particle components and finds the highest speed.
func (s *Solver) scan(ps []components.Particle) Diagnostics {
	d := Diagnostics{FirstBad: -1}
	var mu sync.Mutex
	s.dev.Dispatch(len(ps), func(start, end int) {
		local := Diagnostics{FirstBad: -1}
		for i := start; i < end; i++ {
			p := &ps[i]
			bad := false
			for _, x := range [6]float64{p.Position.X, p.Position.Y, p.Position.Z, p.Velocity.X, p.Velocity.Y, p.Velocity.Z} {
				switch {
				case math.IsNaN(x):
					local.NaNCount++
					bad = true
				case math.IsInf(x, 0):
					local.InfCount++
					bad = true
				}
			}
			if bad {
				if local.FirstBad < 0 {
					local.FirstBad = i
				}
				continue
			}
			local.MaxSpeed = math.Max(local.MaxSpeed, r3.Norm(p.Velocity))
		}
		mu.Lock()
		d.NaNCount += local.NaNCount
		d.InfCount += local.InfCount
		d.MaxSpeed = math.Max(d.MaxSpeed, local.MaxSpeed)
		if local.FirstBad >= 0 && (d.FirstBad < 0 || local.FirstBad < d.FirstBad) {
			d.FirstBad = local.FirstBad
		}
		mu.Unlock()
	})
	return d
}

// Diagnostics returns the record of the last substep.
func (s *Solver) Diagnostics() Diagnostics {
	var rec [DebugRecordSize]float64
	if n, err := buffers.GetData(s.store, buffers.Debug, rec[:]); err != nil || n < DebugRecordSize {
		return Diagnostics{FirstBad: -1}
	}
	return Diagnostics{
		NaNCount: int(rec[0]),
		InfCount: int(rec[1]),
		MaxSpeed: rec[2],
		FirstBad: int(rec[3]),
	}
}
