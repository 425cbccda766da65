// Package solver is the XPBD step engine of one soft body.
//
// A Solver owns the particle, constraint and collider buffers of its body in a buffers.Store
// and advances them with data-parallel kernels dispatched on a device.Device. Distance
// constraints are solved one color group per dispatch so that no two constraints in flight
// touch the same particle.
package solver

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/buffers"
	"github.com/pthm-cable/squish/collision"
	"github.com/pthm-cable/squish/coloring"
	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/device"
	"github.com/pthm-cable/squish/topology"
)

// DebugRecordSize is the number of floats in the diagnostics record.
const DebugRecordSize = 4

// DefaultReadbackCooldown is the wait after a failed vertex readback.
const DefaultReadbackCooldown = 500 * time.Millisecond

var (
	// ErrEmptyTopology is reported when a body has no particles or no constraints.
	ErrEmptyTopology = errors.New("topology needs at least one particle and one constraint")
	// ErrBadIndex is reported for particle indices outside the body.
	ErrBadIndex = errors.New("particle index out of range")
)

// Result reports the outcome of Init.
type Result struct {
	Success  bool
	Message  string
	Coloring coloring.Outcome
	Err      error
}

// PhaseTimer receives pipeline phase boundaries. telemetry.PerfCollector satisfies it.
type PhaseTimer interface {
	StartPhase(phase string)
}

// Solver simulates one soft body.
type Solver struct {
	// ReadbackCooldown is applied by the next Init.
	ReadbackCooldown time.Duration

	dev    *device.Device
	store  *buffers.Store
	logger *slog.Logger
	timer  PhaseTimer

	initialized bool
	particles   int
	constraints int
	volumes     int
	colliders   int

	// Constraint indices bucketed by color: groupOrder[groupStart[c]:groupStart[c+1]].
	groupOrder []int32
	groupStart []int
	maxColor   int32
	serial     bool // coloring does not separate shared particles

	// Same layout for volume constraints, colored over their four particles.
	volumeOrder []int32
	volumeStart []int

	initial  []components.Particle
	indices  []int32
	coloring coloring.Outcome

	readback  *buffers.Readback
	host      []float32
	hostReady bool

	substeps uint64
	alerted  bool
}

// New creates an uninitialized solver. A nil logger uses slog.Default().
func New(dev *device.Device, store *buffers.Store, logger *slog.Logger) *Solver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{
		ReadbackCooldown: DefaultReadbackCooldown,
		dev:              dev,
		store:            store,
		logger:           logger,
	}
}

// SetTimer installs a phase timer; nil disables timing.
func (s *Solver) SetTimer(t PhaseTimer) {
	s.timer = t
}

func (s *Solver) phase(name string) {
	if s.timer != nil {
		s.timer.StartPhase(name)
	}
}

func failure(err error) Result {
	return Result{Success: false, Message: err.Error(), Err: err}
}

// Init uploads a topology, colors its constraints with strategy (nil = greedy) and allocates
// every buffer the pipeline uses. On failure the solver stays uninitialized and Substep is a
// no-op.
func (s *Solver) Init(t topology.Topology, strategy coloring.Strategy) Result {
	s.initialized = false
	if s.dev == nil || s.store == nil {
		return failure(errors.New("no compute device or buffer store"))
	}
	if len(t.Particles) == 0 || len(t.Constraints) == 0 {
		return failure(fmt.Errorf("%d particles, %d constraints: %w", len(t.Particles), len(t.Constraints), ErrEmptyTopology))
	}
	n := len(t.Particles)
	for i := range t.Constraints {
		c := &t.Constraints[i]
		if c.A < 0 || int(c.A) >= n || c.B < 0 || int(c.B) >= n {
			return failure(fmt.Errorf("constraint %d references particles %d-%d: %w", i, c.A, c.B, ErrBadIndex))
		}
	}
	for i := range t.VolumeConstraints {
		for _, p := range t.VolumeConstraints[i].P {
			if p < 0 || int(p) >= n {
				return failure(fmt.Errorf("volume constraint %d references particle %d: %w", i, p, ErrBadIndex))
			}
		}
	}

	particles := make([]components.Particle, n)
	for i, p := range t.Particles {
		if !components.Finite(p.InvMass) || p.InvMass < 0 {
			p.InvMass = 0
		}
		sanitizeParticle(&p, r3.Vec{})
		particles[i] = p
	}

	constraints := append([]components.Constraint(nil), t.Constraints...)
	for i := range constraints {
		constraints[i].Lambda = 0
		constraints[i].Color = components.Uncolored
	}
	if strategy == nil {
		strategy = coloring.Greedy{}
	}
	outcome := coloring.ApplyColouring(strategy, constraints, n, s.logger)
	if errors.Is(outcome.Err, coloring.ErrIndexOutOfRange) {
		return failure(fmt.Errorf("coloring: %w", outcome.Err))
	}

	volumes := append([]components.VolumeConstraint(nil), t.VolumeConstraints...)
	for i := range volumes {
		volumes[i].Lambda = 0
	}

	if err := s.allocate(n, len(constraints), len(volumes)); err != nil {
		s.store.ReleaseAll()
		return failure(err)
	}
	if err := s.upload(particles, constraints, volumes); err != nil {
		s.store.ReleaseAll()
		return failure(err)
	}

	s.particles = n
	s.constraints = len(constraints)
	s.volumes = len(volumes)
	s.colliders = 0
	s.coloring = outcome
	s.groupOrder, s.groupStart = bucketByColor(constraints)
	s.maxColor = int32(len(s.groupStart) - 2)
	s.serial = outcome.Fallback || coloring.Validate(constraints) != nil
	if s.serial {
		s.logger.Warn("constraint groups share particles, solving serially", "strategy", outcome.Strategy)
	}
	s.volumeOrder, s.volumeStart = colorVolumes(volumes, n)
	s.initial = particles
	s.indices = append([]int32(nil), t.Indices...)
	s.readback = buffers.NewReadback(s.ReadbackCooldown)
	s.host = make([]float32, n*3)
	s.hostReady = false
	s.substeps = 0
	s.alerted = false
	s.initialized = true

	s.syncVertices(r3.Vec{})
	if rec, err := buffers.View[float64](s.store, buffers.Debug); err == nil && len(rec) >= DebugRecordSize {
		rec[0], rec[1], rec[2], rec[3] = 0, 0, 0, -1
	}
	for i, p := range particles {
		s.host[i*3] = float32(p.Position.X)
		s.host[i*3+1] = float32(p.Position.Y)
		s.host[i*3+2] = float32(p.Position.Z)
	}

	s.logger.Info("soft body initialized",
		"particles", n,
		"constraints", len(constraints),
		"volume_constraints", len(volumes),
		"colors", outcome.Colors,
		"strategy", outcome.Strategy,
		"coloring_fallback", outcome.Fallback,
		"memory_bytes", s.store.MemoryUsage(),
	)
	return Result{Success: true, Message: "ok", Coloring: outcome}
}

func (s *Solver) allocate(particles, constraints, volumes int) error {
	specs := []struct {
		name  string
		elem  buffers.ElementType
		count int
	}{
		{buffers.Particles, buffers.ElemParticle, particles},
		{buffers.Constraints, buffers.ElemConstraint, constraints},
		{buffers.Vertices, buffers.ElemVec3, particles},
		{buffers.PreviousPositions, buffers.ElemVec3, particles},
		{buffers.VolumeConstraints, buffers.ElemVolumeConstraint, volumes},
		{buffers.Colliders, buffers.ElemCollider, collision.MaxColliders},
		{buffers.CollisionCorrections, buffers.ElemVec3, particles},
		{buffers.Debug, buffers.ElemFloat, DebugRecordSize},
	}
	for _, b := range specs {
		if err := s.store.CreateBuffer(b.name, b.elem, b.count); err != nil {
			return err
		}
	}
	return nil
}

func (s *Solver) upload(particles []components.Particle, constraints []components.Constraint, volumes []components.VolumeConstraint) error {
	if err := buffers.SetData(s.store, buffers.Particles, particles); err != nil {
		return err
	}
	if err := buffers.SetData(s.store, buffers.Constraints, constraints); err != nil {
		return err
	}
	if err := buffers.SetData(s.store, buffers.VolumeConstraints, volumes); err != nil {
		return err
	}
	prev := make([]r3.Vec, len(particles))
	for i := range particles {
		prev[i] = particles[i].Position
	}
	return buffers.SetData(s.store, buffers.PreviousPositions, prev)
}

// bucketByColor groups constraint indices by color. start has one entry per color plus a sentinel.
func bucketByColor(cs []components.Constraint) (order []int32, start []int) {
	colors := int(coloring.MaxColor(cs)) + 1
	start = make([]int, colors+1)
	for i := range cs {
		start[cs[i].Color+1]++
	}
	for c := 1; c <= colors; c++ {
		start[c] += start[c-1]
	}
	order = make([]int32, len(cs))
	next := append([]int(nil), start[:colors]...)
	for i := range cs {
		c := cs[i].Color
		order[next[c]] = int32(i)
		next[c]++
	}
	return order, start
}

// colorVolumes greedily colors tetrahedra so that no two in a group share a particle.
func colorVolumes(vs []components.VolumeConstraint, particles int) (order []int32, start []int) {
	if len(vs) == 0 {
		return nil, []int{0}
	}
	used := make([][]int32, particles)
	colors := make([]int32, len(vs))
	maxColor := int32(0)
	for i := range vs {
		c := int32(0)
		for colorTaken(used, vs[i].P, c) {
			c++
		}
		colors[i] = c
		for _, p := range vs[i].P {
			used[p] = append(used[p], c)
		}
		maxColor = max(maxColor, c)
	}

	start = make([]int, maxColor+2)
	for _, c := range colors {
		start[c+1]++
	}
	for c := 1; c < len(start); c++ {
		start[c] += start[c-1]
	}
	order = make([]int32, len(vs))
	next := append([]int(nil), start[:maxColor+1]...)
	for i, c := range colors {
		order[next[c]] = int32(i)
		next[c]++
	}
	return order, start
}

func colorTaken(used [][]int32, ps [4]int32, c int32) bool {
	for _, p := range ps {
		for _, u := range used[p] {
			if u == c {
				return true
			}
		}
	}
	return false
}

// Initialized reports whether Init succeeded.
func (s *Solver) Initialized() bool {
	return s.initialized
}

// MaxColor returns the highest distance constraint color.
func (s *Solver) MaxColor() int32 {
	return s.maxColor
}

// Coloring returns the coloring outcome of the last Init.
func (s *Solver) Coloring() coloring.Outcome {
	return s.coloring
}

// Indices returns the surface triangle indices of the body.
func (s *Solver) Indices() []int32 {
	return s.indices
}

// ParticleCount returns the number of particles.
func (s *Solver) ParticleCount() int {
	return s.particles
}

// SetColliders uploads the collider snapshot for the next substeps, truncated to
// collision.MaxColliders. It returns the number of colliders kept.
func (s *Solver) SetColliders(cs []components.SDFCollider) int {
	if !s.initialized {
		return 0
	}
	n := min(len(cs), collision.MaxColliders)
	if err := buffers.SetData(s.store, buffers.Colliders, cs[:n]); err != nil {
		s.logger.Warn("collider upload failed", "error", err)
		s.colliders = 0
		return 0
	}
	s.colliders = n
	return n
}

// Reset restores the particles to their initial state and clears accumulated multipliers.
func (s *Solver) Reset() {
	if !s.initialized {
		return
	}
	v, err := s.views()
	if err != nil {
		return
	}
	copy(v.particles, s.initial)
	for i := range v.particles {
		v.prev[i] = v.particles[i].Position
	}
	for i := range v.constraints {
		v.constraints[i].Lambda = 0
	}
	for i := range v.volumes {
		v.volumes[i].Lambda = 0
	}
	s.syncVertices(r3.Vec{})
}

// ReplaceParticles overwrites the particle state in bulk, for example when restoring a snapshot.
// ps must hold exactly one entry per particle.
func (s *Solver) ReplaceParticles(ps []components.Particle) error {
	if !s.initialized {
		return ErrEmptyTopology
	}
	if len(ps) != s.particles {
		return fmt.Errorf("replace %d particles in a body of %d: %w", len(ps), s.particles, ErrBadIndex)
	}
	v, err := s.views()
	if err != nil {
		return err
	}
	for i, p := range ps {
		if !components.Finite(p.InvMass) || p.InvMass < 0 {
			p.InvMass = 0
		}
		sanitizeParticle(&p, v.particles[i].Position)
		v.particles[i] = p
		v.prev[i] = p.Position
	}
	for i := range v.constraints {
		v.constraints[i].Lambda = 0
	}
	for i := range v.volumes {
		v.volumes[i].Lambda = 0
	}
	s.syncVertices(r3.Vec{})
	return nil
}

// Pin fixes particle i in place.
func (s *Solver) Pin(i int) error {
	return s.setInvMass(i, 0)
}

// Unpin releases particle i with the given inverse mass.
func (s *Solver) Unpin(i int, invMass float64) error {
	if invMass <= 0 || !components.Finite(invMass) {
		return fmt.Errorf("unpin particle %d: inverse mass %v must be positive", i, invMass)
	}
	return s.setInvMass(i, invMass)
}

func (s *Solver) setInvMass(i int, w float64) error {
	if !s.initialized {
		return ErrEmptyTopology
	}
	ps, err := buffers.View[components.Particle](s.store, buffers.Particles)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(ps) {
		return fmt.Errorf("particle %d of %d: %w", i, len(ps), ErrBadIndex)
	}
	ps[i].InvMass = w
	if w == 0 {
		ps[i].Velocity = r3.Vec{}
	}
	return nil
}

// ApplyImpulse adds impulse to the particles within radius of point, scaled by inverse mass
// and a linear falloff. With radius <= 0 only the nearest particle is pushed. It returns the
// number of particles affected.
func (s *Solver) ApplyImpulse(point, impulse r3.Vec, radius float64) int {
	if !s.initialized || !components.FiniteVec(impulse) {
		return 0
	}
	ps, err := buffers.View[components.Particle](s.store, buffers.Particles)
	if err != nil {
		return 0
	}

	if radius <= 0 {
		best, bestDist := -1, math.Inf(1)
		for i := range ps {
			if d := r3.Norm(r3.Sub(ps[i].Position, point)); d < bestDist && !ps[i].Pinned() {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			return 0
		}
		ps[best].Velocity = r3.Add(ps[best].Velocity, r3.Scale(ps[best].InvMass, impulse))
		return 1
	}

	hit := 0
	for i := range ps {
		p := &ps[i]
		if p.Pinned() {
			continue
		}
		d := r3.Norm(r3.Sub(p.Position, point))
		if d > radius {
			continue
		}
		falloff := 1 - d/radius
		p.Velocity = r3.Add(p.Velocity, r3.Scale(p.InvMass*falloff, impulse))
		hit++
	}
	return hit
}

// Centroid returns the mean particle position.
func (s *Solver) Centroid() r3.Vec {
	ps, err := buffers.View[components.Particle](s.store, buffers.Particles)
	if err != nil || len(ps) == 0 {
		return r3.Vec{}
	}
	var c r3.Vec
	for i := range ps {
		c = r3.Add(c, ps[i].Position)
	}
	return r3.Scale(1/float64(len(ps)), c)
}

// Bounds returns the axis aligned bounds of the particles.
func (s *Solver) Bounds() (lo, hi r3.Vec) {
	ps, err := buffers.View[components.Particle](s.store, buffers.Particles)
	if err != nil || len(ps) == 0 {
		return
	}
	t := topology.Topology{Particles: ps}
	return t.Bounds()
}

// KineticEnergy returns the total kinetic energy of the free particles.
func (s *Solver) KineticEnergy() float64 {
	ps, err := buffers.View[components.Particle](s.store, buffers.Particles)
	if err != nil {
		return 0
	}
	var e float64
	for i := range ps {
		if ps[i].Pinned() {
			continue
		}
		e += 0.5 * r3.Norm2(ps[i].Velocity) / ps[i].InvMass
	}
	return e
}

// Particles copies the current particle state into dst and returns the count copied.
func (s *Solver) Particles(dst []components.Particle) int {
	n, _ := buffers.GetData(s.store, buffers.Particles, dst)
	return n
}

// Positions returns the most recent completed vertex readback as packed xyz floats. It never
// waits: before the first readback completes it holds the initial positions.
func (s *Solver) Positions() []float32 {
	return s.host
}

// Stats summarizes the solver state.
type Stats struct {
	Particles         int
	Constraints       int
	VolumeConstraints int
	Colliders         int
	Colors            int
	MemoryBytes       int64
	Substeps          uint64
	ReadbacksDone     uint64
	ReadbacksFailed   uint64
}

// Stats returns counters for telemetry.
func (s *Solver) Stats() Stats {
	st := Stats{
		Particles:         s.particles,
		Constraints:       s.constraints,
		VolumeConstraints: s.volumes,
		Colliders:         s.colliders,
		Colors:            int(s.maxColor) + 1,
		Substeps:          s.substeps,
	}
	if s.store != nil {
		st.MemoryBytes = s.store.MemoryUsage()
	}
	if s.readback != nil {
		st.ReadbacksDone, st.ReadbacksFailed = s.readback.Counts()
	}
	return st
}

// Release frees the solver buffers.
func (s *Solver) Release() {
	s.initialized = false
	if s.store != nil {
		s.store.ReleaseAll()
	}
}
