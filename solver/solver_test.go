package solver

import (
	"errors"
	"log/slog"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/buffers"
	"github.com/pthm-cable/squish/coloring"
	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/device"
	"github.com/pthm-cable/squish/topology"
)

func newTestSolver(t *testing.T) (*Solver, *buffers.Store) {
	t.Helper()
	dev := device.New(4)
	dev.SetSerialThreshold(8)
	t.Cleanup(dev.Close)
	store := buffers.NewStore()
	return New(dev, store, slog.New(slog.DiscardHandler)), store
}

func mustInit(t *testing.T, s *Solver, topo topology.Topology) {
	t.Helper()
	if res := s.Init(topo, nil); !res.Success {
		t.Fatalf("Init failed: %s", res.Message)
	}
}

func TestSolveDistanceConvergesWithoutOvershoot(t *testing.T) {
	ps := []components.Particle{
		{Position: r3.Vec{}, InvMass: 1},
		{Position: r3.Vec{X: 1.5}, InvMass: 1},
	}
	c := components.Constraint{A: 0, B: 1, RestLength: 1}
	const dt = 1.0 / 120

	prev := 1.5
	for it := 0; it < 10; it++ {
		solveDistance(ps, &c, dt)
		length := r3.Norm(r3.Sub(ps[1].Position, ps[0].Position))
		// each endpoint moves at most MaxCorrectionRatio * rest length
		if step := prev - length; step > 2*MaxCorrectionRatio*c.RestLength+1e-12 {
			t.Errorf("iteration %d moved %v, want <= %v", it, step, 2*MaxCorrectionRatio)
		}
		if length < c.RestLength-1e-12 {
			t.Errorf("iteration %d overshot: length %v < rest %v", it, length, c.RestLength)
		}
		prev = length
	}
	if math.Abs(prev-1) > 1e-9 {
		t.Errorf("length after 10 iterations = %v, want 1", prev)
	}
	// the pair keeps its midpoint
	mid := r3.Scale(0.5, r3.Add(ps[0].Position, ps[1].Position))
	if math.Abs(mid.X-0.75) > 1e-12 {
		t.Errorf("midpoint = %v, want 0.75", mid.X)
	}
}

func TestSolveDistancePinnedEndpoint(t *testing.T) {
	topo := topology.Pendulum(r3.Vec{}, 1, 1, 0)
	topo.Particles[1].Position = r3.Vec{X: 1.5}
	c := topo.Constraints[0]
	c.RestLength = 1

	solveDistance(topo.Particles, &c, 1.0/60)
	if topo.Particles[0].Position != (r3.Vec{}) {
		t.Errorf("pinned anchor moved to %v", topo.Particles[0].Position)
	}
	if got := topo.Particles[1].Position.X; math.Abs(got-1.3) > 1e-12 {
		t.Errorf("bob after one clamped iteration at %v, want 1.3", got)
	}
}

func TestSolveDistanceSkipsDegenerate(t *testing.T) {
	tests := []struct {
		name string
		ps   []components.Particle
		c    components.Constraint
		dt   float64
	}{
		{"both pinned", []components.Particle{{}, {Position: r3.Vec{X: 2}}}, components.Constraint{A: 0, B: 1, RestLength: 1}, 0.01},
		{"zero rest", []components.Particle{{InvMass: 1}, {Position: r3.Vec{X: 2}, InvMass: 1}}, components.Constraint{A: 0, B: 1}, 0.01},
		{"coincident", []components.Particle{{InvMass: 1}, {InvMass: 1}}, components.Constraint{A: 0, B: 1, RestLength: 1}, 0.01},
		{"zero dt", []components.Particle{{InvMass: 1}, {Position: r3.Vec{X: 2}, InvMass: 1}}, components.Constraint{A: 0, B: 1, RestLength: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := append([]components.Particle(nil), tt.ps...)
			solveDistance(tt.ps, &tt.c, tt.dt)
			for i := range tt.ps {
				if tt.ps[i].Position != before[i].Position {
					t.Errorf("particle %d moved to %v", i, tt.ps[i].Position)
				}
			}
			if tt.c.Lambda != 0 {
				t.Errorf("Lambda = %v, want 0", tt.c.Lambda)
			}
		})
	}
}

func TestSolveVolumeRestoresRestVolume(t *testing.T) {
	topo := topology.Tetrahedron(r3.Vec{}, 1, 1, 0, 0)
	vc := topo.VolumeConstraints[0]
	ps := topo.Particles
	ps[0].InvMass = 0 // one pinned corner
	ps[3].Position.Z = 0.5

	rest := vc.TargetVolume()
	for it := 0; it < 20; it++ {
		solveVolume(ps, &vc, 1.0/60)
	}
	got := components.SignedVolume(ps[vc.P[0]].Position, ps[vc.P[1]].Position, ps[vc.P[2]].Position, ps[vc.P[3]].Position)
	if math.Abs(got-rest) > 1e-6 {
		t.Errorf("volume = %v, want %v", got, rest)
	}
	if ps[0].Position != (r3.Vec{}) {
		t.Errorf("pinned corner moved to %v", ps[0].Position)
	}
}

func TestSolveVolumeClampsError(t *testing.T) {
	topo := topology.Tetrahedron(r3.Vec{}, 1, 1, 0, 0)
	vc := topo.VolumeConstraints[0]
	ps := topo.Particles
	ps[3].Position.Z = 0.01 // almost flat, error close to the full rest volume

	solveVolume(ps, &vc, 1.0/60)
	// the first step only targets half of the missing volume
	limit := MaxVolumeErrorRatio * vc.TargetVolume()
	if math.Abs(vc.Lambda) == 0 {
		t.Fatal("no correction applied")
	}
	got := components.SignedVolume(ps[vc.P[0]].Position, ps[vc.P[1]].Position, ps[vc.P[2]].Position, ps[vc.P[3]].Position)
	if got > vc.TargetVolume()+1e-9 {
		t.Errorf("volume %v overshot the rest volume %v (limit %v)", got, vc.TargetVolume(), limit)
	}
}

func TestSanitizeParticleIdempotent(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(-1)
	tests := []struct {
		name string
		p    components.Particle
		safe r3.Vec
	}{
		{"nan position", components.Particle{Position: r3.Vec{X: nan, Y: 1, Z: 2}, InvMass: 1}, r3.Vec{X: 5}},
		{"inf velocity", components.Particle{Velocity: r3.Vec{Y: inf}, InvMass: 1}, r3.Vec{}},
		{"nan fallback", components.Particle{Position: r3.Vec{Z: nan}}, r3.Vec{Z: nan}},
		{"finite", components.Particle{Position: r3.Vec{X: 1, Y: 2, Z: 3}, Velocity: r3.Vec{X: 1}}, r3.Vec{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := tt.p
			sanitizeParticle(&once, tt.safe)
			if !components.FiniteVec(once.Position) || !components.FiniteVec(once.Velocity) {
				t.Fatalf("sanitized particle not finite: %+v", once)
			}
			twice := once
			sanitizeParticle(&twice, tt.safe)
			if twice != once {
				t.Errorf("second pass changed %+v to %+v", once, twice)
			}
		})
	}
}

func TestIntegrateAndReconcile(t *testing.T) {
	p := components.Particle{Position: r3.Vec{Y: 1}, InvMass: 1}
	var prev r3.Vec
	const dt = 0.1
	integrate(&p, &prev, r3.Vec{Y: -10}, 0, dt)

	if prev != (r3.Vec{Y: 1}) {
		t.Errorf("prev = %v, want (0,1,0)", prev)
	}
	if math.Abs(p.Position.Y-0.9) > 1e-12 {
		t.Errorf("y = %v, want 0.9", p.Position.Y)
	}

	reconcile(&p, prev, dt, 0)
	if math.Abs(p.Velocity.Y+1) > 1e-12 {
		t.Errorf("vy = %v, want -1", p.Velocity.Y)
	}

	// speed clamp
	p.Position = r3.Vec{X: 10}
	reconcile(&p, r3.Vec{}, dt, 20)
	if got := r3.Norm(p.Velocity); math.Abs(got-20) > 1e-9 {
		t.Errorf("clamped speed = %v, want 20", got)
	}

	pinned := components.Particle{Position: r3.Vec{Y: 3}, Velocity: r3.Vec{X: 1}}
	integrate(&pinned, &prev, r3.Vec{Y: -10}, 0, dt)
	if pinned.Position != (r3.Vec{Y: 3}) || prev != pinned.Position {
		t.Errorf("pinned particle integrated: pos %v prev %v", pinned.Position, prev)
	}
}

func TestInitFailures(t *testing.T) {
	tet := topology.Tetrahedron(r3.Vec{}, 1, 1, 0, 0)

	badConstraint := tet.Clone()
	badConstraint.Constraints[2].B = 9

	badVolume := tet.Clone()
	badVolume.VolumeConstraints[0].P[3] = -1

	noConstraints := tet.Clone()
	noConstraints.Constraints = nil

	tests := []struct {
		name string
		topo topology.Topology
		want error
	}{
		{"empty", topology.Topology{}, ErrEmptyTopology},
		{"no constraints", noConstraints, ErrEmptyTopology},
		{"constraint index", badConstraint, ErrBadIndex},
		{"volume index", badVolume, ErrBadIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSolver(t)
			res := s.Init(tt.topo, nil)
			if res.Success {
				t.Fatal("Init succeeded")
			}
			if !errors.Is(res.Err, tt.want) {
				t.Errorf("Err = %v, want %v", res.Err, tt.want)
			}
			if res.Message == "" {
				t.Error("empty failure message")
			}
			if s.Initialized() {
				t.Error("solver initialized after failure")
			}
			s.Tick(DefaultParams()) // no-op, must not panic
		})
	}
}

func TestUninitializedSolverIsNoop(t *testing.T) {
	s, _ := newTestSolver(t)
	s.Substep(DefaultParams(), true)
	if d := s.Diagnostics(); d.FirstBad != -1 || !d.Healthy() {
		t.Errorf("Diagnostics = %+v", d)
	}
	if n := s.SetColliders(make([]components.SDFCollider, 3)); n != 0 {
		t.Errorf("SetColliders on uninitialized solver = %d, want 0", n)
	}
	if err := s.Pin(0); err == nil {
		t.Error("Pin on uninitialized solver succeeded")
	}
}

func TestInitColorsConstraints(t *testing.T) {
	s, store := newTestSolver(t)
	topo, err := topology.Lattice(r3.Vec{}, topology.LatticeOptions{
		NX: 4, NY: 4, NZ: 4, Spacing: 0.5, Mass: 1, Shear: true, Volume: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	mustInit(t, s, topo)

	cs, err := buffers.View[components.Constraint](store, buffers.Constraints)
	if err != nil {
		t.Fatal(err)
	}
	if err := coloring.Validate(cs); err != nil {
		t.Errorf("uploaded coloring invalid: %v", err)
	}
	if got, want := s.MaxColor(), coloring.MaxColor(cs); got != want {
		t.Errorf("MaxColor = %d, want %d", got, want)
	}

	// every constraint appears exactly once across the color groups
	seen := make([]bool, len(cs))
	for c := int32(0); c <= s.maxColor; c++ {
		for _, ci := range s.groupOrder[s.groupStart[c]:s.groupStart[c+1]] {
			if seen[ci] || cs[ci].Color != c {
				t.Fatalf("constraint %d misplaced in group %d", ci, c)
			}
			seen[ci] = true
		}
	}

	// volume groups never share a particle
	for c := 0; c+1 < len(s.volumeStart); c++ {
		used := map[int32]bool{}
		for _, vi := range s.volumeOrder[s.volumeStart[c]:s.volumeStart[c+1]] {
			for _, p := range topo.VolumeConstraints[vi].P {
				if used[p] {
					t.Fatalf("volume group %d shares particle %d", c, p)
				}
				used[p] = true
			}
		}
	}
	if got := len(s.volumeOrder); got != len(topo.VolumeConstraints) {
		t.Errorf("volume order holds %d, want %d", got, len(topo.VolumeConstraints))
	}

	st := s.Stats()
	if st.Particles != 64 || st.Colors != int(s.MaxColor())+1 || st.MemoryBytes <= 0 {
		t.Errorf("Stats = %+v", st)
	}
	if d := s.Diagnostics(); d.FirstBad != -1 {
		t.Errorf("initial FirstBad = %d, want -1", d.FirstBad)
	}
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string { return "panicking" }

func (panickingStrategy) Apply([]components.Constraint, int) error {
	panic("boom")
}

func TestInitColoringFallback(t *testing.T) {
	s, store := newTestSolver(t)
	res := s.Init(topology.Tetrahedron(r3.Vec{}, 1, 1, 0, 0), panickingStrategy{})
	if !res.Success {
		t.Fatalf("Init failed: %s", res.Message)
	}
	if !res.Coloring.Fallback {
		t.Error("Fallback = false, want true")
	}
	if s.MaxColor() != 0 {
		t.Errorf("MaxColor = %d, want 0", s.MaxColor())
	}
	if !s.serial {
		t.Error("single color group over shared particles not solved serially")
	}
	cs, _ := buffers.View[components.Constraint](store, buffers.Constraints)
	for i := range cs {
		if cs[i].Color != 0 {
			t.Errorf("constraint %d color %d, want 0", i, cs[i].Color)
		}
	}
	// single group still steps
	s.Tick(DefaultParams())
	if d := s.Diagnostics(); !d.Healthy() {
		t.Errorf("Diagnostics = %+v", d)
	}
}

func TestPinnedParticleNeverMoves(t *testing.T) {
	s, _ := newTestSolver(t)
	anchor := r3.Vec{X: 1, Y: 3, Z: -2}
	mustInit(t, s, topology.Pendulum(anchor, 1, 1, 0))

	p := DefaultParams()
	p.DeltaTime = 1.0 / 120
	p.Substeps = 1
	ps := make([]components.Particle, 2)
	lowest := anchor.Y
	for i := 0; i < 120; i++ {
		s.Tick(p)
		s.Particles(ps)
		lowest = math.Min(lowest, ps[1].Position.Y)
		if ps[0].Position != anchor || ps[0].Velocity != (r3.Vec{}) {
			t.Fatalf("tick %d: anchor at %v moving %v", i, ps[0].Position, ps[0].Velocity)
		}
		if l := r3.Norm(r3.Sub(ps[1].Position, anchor)); math.Abs(l-1) > 1e-6 {
			t.Fatalf("tick %d: pendulum length %v, want 1", i, l)
		}
	}
	if lowest > anchor.Y-0.9 {
		t.Errorf("bob did not swing through the bottom: lowest y %v", lowest)
	}
}

func TestDropOntoFloor(t *testing.T) {
	tests := []struct {
		name      string
		shear     bool
		keepShape bool // shear diagonals stop the lattice from folding flat
	}{
		{name: "structural only"},
		{name: "structural and shear", shear: true, keepShape: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSolver(t)
			topo, err := topology.Lattice(r3.Vec{Y: 1}, topology.LatticeOptions{
				NX: 5, NY: 5, NZ: 4, Spacing: 0.25, Mass: 1, Compliance: 1e-6, Shear: tt.shear,
			})
			if err != nil {
				t.Fatal(err)
			}
			if n := len(topo.Particles); n != 100 {
				t.Fatalf("lattice has %d particles, want 100", n)
			}
			mustInit(t, s, topo)
			if n := s.SetColliders([]components.SDFCollider{{Kind: components.ColliderPlane, Normal: r3.Vec{Y: 1}}}); n != 1 {
				t.Fatalf("SetColliders = %d, want 1", n)
			}

			p := DefaultParams()
			p.DeltaTime = 1.0 / 120
			p.Substeps = 1
			p.Iterations = 4

			ps := make([]components.Particle, s.ParticleCount())
			var peak float64
			for i := 0; i < 300; i++ {
				s.Tick(p)
				peak = math.Max(peak, s.KineticEnergy())
				s.Particles(ps)
				for j := range ps {
					if ps[j].Position.Y < -1e-6 {
						t.Fatalf("substep %d: particle %d tunneled to y=%v", i, j, ps[j].Position.Y)
					}
				}
			}

			if d := s.Diagnostics(); !d.Healthy() || d.FirstBad != -1 {
				t.Errorf("Diagnostics = %+v", d)
			}
			if ke := s.KineticEnergy(); ke > 0.1*peak {
				t.Errorf("kinetic energy %v did not settle (peak %v)", ke, peak)
			}
			lo, _ := s.Bounds()
			if lo.Y > 0.01 {
				t.Errorf("lowest point %v, want on the floor", lo.Y)
			}
			if !tt.keepShape {
				return
			}
			if c := s.Centroid(); c.Y < 0.05 || c.Y > 1 {
				t.Errorf("centroid %v, want resting on the floor", c)
			}
		})
	}
}

func TestUndersizedBufferSkipsSubstep(t *testing.T) {
	tests := []struct {
		name  string
		elem  buffers.ElementType
		count int
	}{
		{buffers.PreviousPositions, buffers.ElemVec3, 1},
		{buffers.Vertices, buffers.ElemVec3, 1},
		{buffers.CollisionCorrections, buffers.ElemVec3, 1},
		{buffers.Constraints, buffers.ElemConstraint, 1},
		{buffers.VolumeConstraints, buffers.ElemVolumeConstraint, 0},
		{buffers.Colliders, buffers.ElemCollider, 0},
		{buffers.Debug, buffers.ElemFloat, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store := newTestSolver(t)
			mustInit(t, s, topology.Tetrahedron(r3.Vec{Y: 1}, 0.5, 1, 0, 0))
			if n := s.SetColliders([]components.SDFCollider{{Kind: components.ColliderPlane, Normal: r3.Vec{Y: 1}}}); n != 1 {
				t.Fatalf("SetColliders = %d, want 1", n)
			}
			if err := store.CreateBuffer(tt.name, tt.elem, tt.count); err != nil {
				t.Fatalf("CreateBuffer: %v", err)
			}

			before := make([]components.Particle, s.ParticleCount())
			s.Particles(before)
			s.Substep(DefaultParams(), true)
			after := make([]components.Particle, s.ParticleCount())
			s.Particles(after)

			for i := range before {
				if after[i] != before[i] {
					t.Errorf("particle %d moved: %+v -> %+v", i, before[i], after[i])
				}
			}
			if n := s.Stats().Substeps; n != 0 {
				t.Errorf("Substeps = %d, want 0", n)
			}
		})
	}

	// control: intact buffers step normally
	s, _ := newTestSolver(t)
	mustInit(t, s, topology.Tetrahedron(r3.Vec{Y: 1}, 0.5, 1, 0, 0))
	if d := s.Diagnostics(); d != (Diagnostics{FirstBad: -1}) {
		t.Errorf("Diagnostics after Init = %+v", d)
	}
	before := make([]components.Particle, s.ParticleCount())
	s.Particles(before)
	s.Substep(DefaultParams(), true)
	after := make([]components.Particle, s.ParticleCount())
	s.Particles(after)
	if after[0].Position.Y >= before[0].Position.Y {
		t.Errorf("intact body did not fall: y %v -> %v", before[0].Position.Y, after[0].Position.Y)
	}
}

func TestReadbackAndWorldOffset(t *testing.T) {
	s, _ := newTestSolver(t)
	mustInit(t, s, topology.Pendulum(r3.Vec{Y: 2}, 1, 1, 0))

	pos := s.Positions()
	if len(pos) != 6 || pos[1] != 2 {
		t.Fatalf("initial positions = %v", pos)
	}

	p := DefaultParams()
	p.WorldOffset = r3.Vec{X: 10}
	s.Tick(p)
	if !s.WaitReadback() {
		t.Fatal("readback never completed")
	}
	pos = s.Positions()
	if math.Abs(float64(pos[0])-10) > 1e-5 || math.Abs(float64(pos[1])-2) > 1e-5 {
		t.Errorf("anchor vertex = %v, want (10, 2, 0)", pos[:3])
	}
	if st := s.Stats(); st.ReadbacksDone == 0 || st.Substeps != 2 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestDiagnosticsReportNonFinite(t *testing.T) {
	s, store := newTestSolver(t)
	mustInit(t, s, topology.Pendulum(r3.Vec{}, 1, 1, 0))

	ps, err := buffers.View[components.Particle](store, buffers.Particles)
	if err != nil {
		t.Fatal(err)
	}
	// pinned particles are never sanitized by the pipeline
	ps[0].Position = r3.Vec{X: math.NaN(), Y: math.NaN(), Z: math.Inf(1)}

	p := DefaultParams()
	p.Debug = true
	p.DeltaTime = 1.0 / 120
	s.Substep(p, false)

	d := s.Diagnostics()
	if d.NaNCount != 2 || d.InfCount != 1 || d.FirstBad != 0 {
		t.Errorf("Diagnostics = %+v, want 2 NaN, 1 Inf, first bad 0", d)
	}
	if !components.FiniteVec(ps[1].Position) {
		t.Errorf("bob poisoned: %v", ps[1].Position)
	}
}

func TestApplyImpulse(t *testing.T) {
	s, _ := newTestSolver(t)
	mustInit(t, s, topology.Tetrahedron(r3.Vec{}, 1, 1, 0, 0))

	if n := s.ApplyImpulse(r3.Vec{X: -0.1}, r3.Vec{Z: 2}, 0); n != 1 {
		t.Fatalf("nearest impulse hit %d, want 1", n)
	}
	ps := make([]components.Particle, 4)
	s.Particles(ps)
	if ps[0].Velocity != (r3.Vec{Z: 2}) {
		t.Errorf("particle 0 velocity %v, want (0,0,2)", ps[0].Velocity)
	}
	if got := s.KineticEnergy(); math.Abs(got-2) > 1e-12 {
		t.Errorf("KineticEnergy = %v, want 2", got)
	}

	if err := s.Pin(0); err != nil {
		t.Fatal(err)
	}
	if n := s.ApplyImpulse(r3.Vec{}, r3.Vec{Z: 1}, 2); n != 3 {
		t.Errorf("radius impulse hit %d, want 3 free particles", n)
	}
	s.Particles(ps)
	// distance 1 with radius 2 gives half strength
	if math.Abs(ps[1].Velocity.Z-0.5) > 1e-12 {
		t.Errorf("particle 1 vz = %v, want 0.5", ps[1].Velocity.Z)
	}
	if n := s.ApplyImpulse(r3.Vec{}, r3.Vec{X: math.NaN()}, 2); n != 0 {
		t.Errorf("non-finite impulse hit %d", n)
	}
}

func TestResetPinAndReplace(t *testing.T) {
	s, _ := newTestSolver(t)
	topo := topology.Tetrahedron(r3.Vec{Y: 5}, 1, 2, 0, 0)
	mustInit(t, s, topo)

	for i := 0; i < 30; i++ {
		s.Tick(DefaultParams())
	}
	if c := s.Centroid(); c.Y >= 5.25 {
		t.Fatalf("body did not fall: centroid %v", c)
	}

	s.Reset()
	ps := make([]components.Particle, 4)
	s.Particles(ps)
	for i := range ps {
		if ps[i].Position != topo.Particles[i].Position || ps[i].Velocity != (r3.Vec{}) {
			t.Errorf("particle %d after reset = %+v", i, ps[i])
		}
	}

	tests := []struct {
		name string
		err  error
	}{
		{"pin out of range", s.Pin(4)},
		{"unpin zero mass", s.Unpin(0, 0)},
		{"replace wrong length", s.ReplaceParticles(ps[:2])},
	}
	for _, tt := range tests {
		if tt.err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	if err := s.Pin(1); err != nil {
		t.Fatal(err)
	}
	if err := s.Unpin(1, 0.25); err != nil {
		t.Fatal(err)
	}
	s.Particles(ps)
	if ps[1].InvMass != 0.25 {
		t.Errorf("InvMass after unpin = %v, want 0.25", ps[1].InvMass)
	}

	ps[2].Position = r3.Vec{X: 7, Y: math.NaN()}
	if err := s.ReplaceParticles(ps); err != nil {
		t.Fatal(err)
	}
	got := make([]components.Particle, 4)
	s.Particles(got)
	if got[2].Position.X != 7 || !components.FiniteVec(got[2].Position) {
		t.Errorf("replaced particle = %v", got[2].Position)
	}
}

func TestSetCollidersCap(t *testing.T) {
	s, _ := newTestSolver(t)
	mustInit(t, s, topology.Tetrahedron(r3.Vec{}, 1, 1, 0, 0))
	cs := make([]components.SDFCollider, 70)
	if n := s.SetColliders(cs); n != 64 {
		t.Errorf("SetColliders(70) = %d, want 64", n)
	}
	if st := s.Stats(); st.Colliders != 64 {
		t.Errorf("Stats.Colliders = %d, want 64", st.Colliders)
	}
}

func BenchmarkSubstepLattice(b *testing.B) {
	dev := device.New(0)
	defer dev.Close()
	s := New(dev, buffers.NewStore(), slog.New(slog.DiscardHandler))
	topo, err := topology.Lattice(r3.Vec{Y: 1}, topology.LatticeOptions{
		NX: 10, NY: 10, NZ: 10, Spacing: 0.1, Mass: 1, Compliance: 1e-6, Shear: true, Volume: true,
	})
	if err != nil {
		b.Fatal(err)
	}
	if res := s.Init(topo, nil); !res.Success {
		b.Fatal(res.Message)
	}
	s.SetColliders([]components.SDFCollider{{Kind: components.ColliderPlane, Normal: r3.Vec{Y: 1}}})
	p := DefaultParams()
	p.DeltaTime = 1.0 / 120

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Substep(p, i%2 == 1)
	}
}
