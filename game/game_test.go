package game

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/config"
	"github.com/pthm-cable/squish/registry"
	"github.com/pthm-cable/squish/stream"
	"github.com/pthm-cable/squish/telemetry"
)

// newTestGame builds a headless game on the default config after applying mutate.
func newTestGame(t *testing.T, mutate func(*config.Config)) *Game {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Scene.Obstacles = false
	cfg.Scene.SweeperRate = 0
	cfg.Stream.Addr = ""
	if mutate != nil {
		mutate(cfg)
	}
	g := newGame(cfg, Options{
		Headless: true,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(g.Unload)
	return g
}

func bodyByIndex(t *testing.T, g *Game, i int) registry.Entry[registry.Body] {
	t.Helper()
	bodies := g.reg.Bodies.Snapshot()
	if i >= len(bodies) {
		t.Fatalf("want body %d, have %d", i, len(bodies))
	}
	return bodies[i]
}

func TestHeadlessDropSettlesOnFloor(t *testing.T) {
	g := newTestGame(t, func(c *config.Config) { c.Scene.Bodies = 2 })

	start := make(map[registry.ID]r3.Vec)
	for _, e := range g.reg.Bodies.Snapshot() {
		start[e.ID] = e.Value.Solver.Centroid()
	}

	for i := 0; i < 180; i++ {
		g.UpdateHeadless()
	}
	if g.Tick() != 180 {
		t.Fatalf("Tick() = %d, want 180", g.Tick())
	}

	for _, e := range g.reg.Bodies.Snapshot() {
		s := e.Value.Solver
		if d := s.Diagnostics(); !d.Healthy() {
			t.Fatalf("%s: unhealthy diagnostics %+v", e.Value.Name, d)
		}
		c := s.Centroid()
		if c.Y >= start[e.ID].Y {
			t.Errorf("%s: centroid y %v did not fall from %v", e.Value.Name, c.Y, start[e.ID].Y)
		}
		ps := make([]components.Particle, s.ParticleCount())
		n := s.Particles(ps)
		for i := range ps[:n] {
			if y := ps[i].Position.Y; y < -0.1 || math.IsNaN(y) {
				t.Fatalf("%s: particle %d at y=%v is below the floor", e.Value.Name, i, y)
			}
		}
	}
}

func TestSpawnDespawn(t *testing.T) {
	g := newTestGame(t, func(c *config.Config) { c.Scene.Bodies = 0 })

	a, err := g.spawnBody("a", r3.Vec{Y: 1})
	if err != nil {
		t.Fatalf("spawnBody a: %v", err)
	}
	b, err := g.spawnBody("b", r3.Vec{X: 3, Y: 1})
	if err != nil {
		t.Fatalf("spawnBody b: %v", err)
	}
	if a == b {
		t.Fatalf("ids collide: %d", a)
	}
	if n := g.reg.Bodies.Len(); n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}

	body, _ := g.reg.Bodies.Get(a)
	if got := g.softBodyMap.Get(body.Entity).ID; registry.ID(got) != a {
		t.Errorf("SoftBody.ID = %d, want %d", got, a)
	}

	if !g.despawnBody(a) {
		t.Fatal("despawnBody(a) = false")
	}
	if g.despawnBody(a) {
		t.Error("second despawnBody(a) = true")
	}
	if g.world.Alive(body.Entity) {
		t.Error("entity still alive after despawn")
	}
	if n := g.reg.Bodies.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}

	// the remaining body keeps stepping
	for i := 0; i < 10; i++ {
		g.simulationStep()
	}
	rest, ok := g.reg.Bodies.Get(b)
	if !ok || !rest.Solver.Diagnostics().Healthy() {
		t.Error("remaining body missing or unhealthy")
	}
}

func TestDropAndRemove(t *testing.T) {
	g := newTestGame(t, func(c *config.Config) { c.Scene.Bodies = 1 })

	id, err := g.dropBody()
	if err != nil {
		t.Fatalf("dropBody: %v", err)
	}
	if n := g.reg.Bodies.Len(); n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}
	if !g.removeSelectedOrLast() {
		t.Fatal("removeSelectedOrLast = false")
	}
	if _, ok := g.reg.Bodies.Get(id); ok {
		t.Error("dropped body should be removed first")
	}

	first := bodyByIndex(t, g, 0)
	g.selected, g.hasSelection = first.ID, true
	if !g.removeSelectedOrLast() {
		t.Fatal("removing selection failed")
	}
	if g.hasSelection {
		t.Error("selection should clear with its body")
	}
	if g.removeSelectedOrLast() {
		t.Error("removing from an empty scene should report false")
	}
}

func TestApplyCommand(t *testing.T) {
	tests := []struct {
		name  string
		cmd   func(id registry.ID) stream.Command
		check func(t *testing.T, g *Game, e registry.Entry[registry.Body])
	}{
		{
			name: "impulse moves the body",
			cmd: func(id registry.ID) stream.Command {
				return stream.Command{Type: stream.CommandImpulse, Body: uint64(id), Impulse: [3]float64{0, 0.5, 0}}
			},
			check: func(t *testing.T, g *Game, e registry.Entry[registry.Body]) {
				if !g.impactMap.Has(e.Value.Entity) {
					t.Fatal("impulse should queue an impact")
				}
				g.processImpacts()
				if g.impactMap.Has(e.Value.Entity) {
					t.Error("impact should be consumed")
				}
				if ke := e.Value.Solver.KineticEnergy(); ke <= 0 {
					t.Errorf("KineticEnergy() = %v after impulse", ke)
				}
			},
		},
		{
			name: "non-finite impulse is ignored",
			cmd: func(id registry.ID) stream.Command {
				return stream.Command{Type: stream.CommandImpulse, Body: uint64(id), Impulse: [3]float64{math.Inf(1), 0, 0}}
			},
			check: func(t *testing.T, g *Game, e registry.Entry[registry.Body]) {
				if g.impactMap.Has(e.Value.Entity) {
					t.Error("non-finite impulse should not queue an impact")
				}
			},
		},
		{
			name: "unknown body is ignored",
			cmd: func(id registry.ID) stream.Command {
				return stream.Command{Type: stream.CommandWake, Body: uint64(id) + 100}
			},
			check: func(t *testing.T, g *Game, e registry.Entry[registry.Body]) {
				if e.Value.Sleep.Asleep() {
					t.Error("body should still be awake")
				}
			},
		},
		{
			name: "reset restores spawn state",
			cmd: func(id registry.ID) stream.Command {
				return stream.Command{Type: stream.CommandReset}
			},
			check: func(t *testing.T, g *Game, e registry.Entry[registry.Body]) {
				if ke := e.Value.Solver.KineticEnergy(); ke != 0 {
					t.Errorf("KineticEnergy() = %v after reset", ke)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(t, func(c *config.Config) { c.Scene.Bodies = 1 })
			e := bodyByIndex(t, g, 0)
			if tt.name == "reset restores spawn state" {
				for i := 0; i < 20; i++ {
					g.simulationStep()
				}
			}
			g.applyCommand(tt.cmd(e.ID))
			tt.check(t, g, e)
		})
	}
}

func TestWakeCommand(t *testing.T) {
	g := newTestGame(t, func(c *config.Config) {
		c.Scene.Bodies = 1
		c.Scene.DropHeight = 0.05
		c.Sleep.TimeThreshold = 0.1
		c.Sleep.VelocityThreshold = 10
	})
	e := bodyByIndex(t, g, 0)

	for i := 0; i < 60 && !e.Value.Sleep.Asleep(); i++ {
		g.simulationStep()
	}
	if !e.Value.Sleep.Asleep() {
		t.Fatal("body never fell asleep")
	}

	g.applyCommand(stream.Command{Type: stream.CommandWake, Body: uint64(e.ID)})
	if e.Value.Sleep.Asleep() {
		t.Error("wake command did not wake the body")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := newTestGame(t, func(c *config.Config) { c.Scene.Bodies = 2 })
	g.snapshotDir = dir

	for i := 0; i < 30; i++ {
		g.simulationStep()
	}
	snap := g.createSnapshot(nil)
	if len(snap.Bodies) != 2 || snap.Tick != 30 {
		t.Fatalf("snapshot has %d bodies at tick %d", len(snap.Bodies), snap.Tick)
	}
	path, err := telemetry.SaveSnapshot(snap, dir)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	want := make(map[string]r3.Vec)
	for _, e := range g.reg.Bodies.Snapshot() {
		want[e.Value.Name] = e.Value.Solver.Centroid()
	}
	for i := 0; i < 30; i++ {
		g.simulationStep()
	}

	if err := g.RestoreSnapshot(path); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}
	for _, e := range g.reg.Bodies.Snapshot() {
		got := e.Value.Solver.Centroid()
		if d := r3.Norm(r3.Sub(got, want[e.Value.Name])); d > 1e-9 {
			t.Errorf("%s: centroid off by %v after restore", e.Value.Name, d)
		}
	}

	if err := g.RestoreSnapshot(dir + "/missing.json"); err == nil {
		t.Error("restoring a missing file should fail")
	}
}

func TestStatsCallback(t *testing.T) {
	g := newTestGame(t, func(c *config.Config) {
		c.Scene.Bodies = 1
		c.Telemetry.StatsWindow = 0.5
	})
	var windows []telemetry.WindowStats
	g.SetStatsCallback(func(s telemetry.WindowStats) { windows = append(windows, s) })

	for i := 0; i < 61; i++ {
		g.simulationStep()
	}
	if len(windows) == 0 {
		t.Fatal("no stats window flushed")
	}
}

func TestPerfStats(t *testing.T) {
	p := NewPerfStats()
	p.Record("solve", 2*time.Millisecond)
	p.Record("solve", 4*time.Millisecond)
	p.Record("gather", time.Millisecond)

	if got := p.Avg("solve"); got != 3*time.Millisecond {
		t.Errorf("Avg(solve) = %v", got)
	}
	if got := p.Max("solve"); got != 4*time.Millisecond {
		t.Errorf("Max(solve) = %v", got)
	}
	if got := p.Total(); got != 4*time.Millisecond {
		t.Errorf("Total() = %v", got)
	}
	if names := p.SortedNames(); len(names) != 2 || names[0] != "solve" {
		t.Errorf("SortedNames() = %v", names)
	}
	if got := p.Avg("missing"); got != 0 {
		t.Errorf("Avg(missing) = %v", got)
	}

	for i := 0; i < 500; i++ {
		p.Record("gather", time.Millisecond)
	}
	if n := len(p.samples["gather"]); n != p.maxSamples {
		t.Errorf("kept %d samples, want %d", n, p.maxSamples)
	}
}
