package main

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/config"
	"github.com/pthm-cable/squish/game"
	"github.com/pthm-cable/squish/telemetry"
)

// Fitness weights. Settle time is in sim-seconds, shape error is a relative length error and
// cost is wall milliseconds per tick.
const (
	weightShape = 10.0
	weightCost  = 0.5

	// unstablePenalty dominates every stable score; earlier blow-ups score worse.
	unstablePenalty = 1e6
)

// FitnessEvaluator runs headless drop scenes and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int32
	drops       []float64 // drop heights, one run each
	baseConfig  *config.Config
	statsWindow float64

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestWindows []telemetry.WindowStats
	last        runResult // most recent evaluation, averaged over drops
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, drops []float64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		drops:       drops,
		baseConfig:  baseCfg,
		statsWindow: 1.0,
		bestFitness: math.Inf(1),
	}
}

// BestWindows returns the stats windows of the best single run.
func (fe *FitnessEvaluator) BestWindows() []telemetry.WindowStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestWindows
}

// Last returns the averaged result of the most recent evaluation.
func (fe *FitnessEvaluator) Last() runResult {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// runResult holds the results from a single simulation run.
type runResult struct {
	unstable    bool
	ticks       int32   // ticks run before settling, blowing up or hitting the cap
	settleSec   float64 // sim-seconds until every body slept, the cap when they never did
	shapeError  float64 // mean relative corner distance error at the end
	msPerTick   float64
	windowStats []telemetry.WindowStats
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(fe.drops))
	fitness := make([]float64, len(fe.drops))
	var wg sync.WaitGroup

	for i, h := range fe.drops {
		wg.Add(1)
		go func(idx int, height float64) {
			defer wg.Done()
			r := fe.runSimulation(x, height)
			results[idx] = r
			fitness[idx] = fe.computeFitness(r)
		}(i, h)
	}
	wg.Wait()

	var total float64
	best := 0
	var avg runResult
	for i, r := range results {
		total += fitness[i]
		if fitness[i] < fitness[best] {
			best = i
		}
		avg.unstable = avg.unstable || r.unstable
		avg.settleSec += r.settleSec
		avg.shapeError += r.shapeError
		avg.msPerTick += r.msPerTick
	}
	n := float64(len(fe.drops))
	avg.settleSec /= n
	avg.shapeError /= n
	avg.msPerTick /= n
	avgFitness := total / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestWindows = results[best].windowStats
	}
	fe.last = avg
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation drops the configured scene from height and runs until every body sleeps, a
// body goes non-finite, or maxTicks.
func (fe *FitnessEvaluator) runSimulation(x []float64, height float64) runResult {
	cfg := fe.copyConfig()
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		return runResult{unstable: true}
	}
	cfg.Scene.DropHeight = height

	result := runResult{}
	g := game.NewGameWithOptions(game.Options{
		Headless:       true,
		StatsWindowSec: fe.statsWindow,
		StepsPerUpdate: 1,
		Config:         cfg,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
		},
	})
	defer g.Unload()

	rest := cornerDistances(g, cfg)
	dt := cfg.Derived.DT
	start := time.Now()

	settled := false
	for g.Tick() < fe.maxTicks {
		g.UpdateHeadless()

		if !healthy(g) {
			result.unstable = true
			break
		}
		if allAsleep(g) {
			settled = true
			break
		}
	}

	result.ticks = g.Tick()
	if result.ticks > 0 {
		result.msPerTick = float64(time.Since(start).Microseconds()) / 1000 / float64(result.ticks)
	}
	result.settleSec = float64(fe.maxTicks) * dt
	if settled {
		result.settleSec = float64(result.ticks) * dt
	}
	if !result.unstable {
		result.shapeError = shapeError(rest, cornerDistances(g, cfg))
	}
	return result
}

// copyConfig creates a deep copy of the base config.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg, _ := config.Load("")

	cfg.Screen = fe.baseConfig.Screen
	cfg.Physics = fe.baseConfig.Physics
	cfg.Physics.Gravity = append([]float64(nil), fe.baseConfig.Physics.Gravity...)
	cfg.Body = fe.baseConfig.Body
	cfg.Scene = fe.baseConfig.Scene
	cfg.Collision = fe.baseConfig.Collision
	cfg.Sleep = fe.baseConfig.Sleep
	cfg.Readback = fe.baseConfig.Readback
	cfg.Telemetry = fe.baseConfig.Telemetry

	// no viewers, no overlays
	cfg.Stream.Addr = ""
	cfg.Debug = config.DebugConfig{}
	return cfg
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: settleSec + 10×shapeError + 0.5×msPerTick, or a penalty above every stable score.
func (fe *FitnessEvaluator) computeFitness(r runResult) float64 {
	if r.unstable {
		return unstablePenalty + float64(fe.maxTicks-r.ticks)
	}
	return r.settleSec + weightShape*r.shapeError + weightCost*r.msPerTick
}

func healthy(g *game.Game) bool {
	for _, e := range g.Registry().Bodies.Snapshot() {
		if !e.Value.Solver.Diagnostics().Healthy() {
			return false
		}
	}
	return true
}

func allAsleep(g *game.Game) bool {
	bodies := g.Registry().Bodies.Snapshot()
	for _, e := range bodies {
		if !e.Value.Sleep.Asleep() {
			return false
		}
	}
	return len(bodies) > 0
}

// cornerDistances returns, per body, the pairwise distances between the eight lattice corners.
// They are rotation invariant, so a body that tumbles but keeps its shape scores zero error.
func cornerDistances(g *game.Game, cfg *config.Config) [][]float64 {
	b := cfg.Body
	idx := func(x, y, z int) int { return x + b.NX*(y+b.NY*z) }
	corners := make([]int, 0, 8)
	for c := 0; c < 8; c++ {
		corners = append(corners, idx((c&1)*(b.NX-1), (c>>1&1)*(b.NY-1), (c>>2&1)*(b.NZ-1)))
	}

	var out [][]float64
	var ps []components.Particle
	for _, e := range g.Registry().Bodies.Snapshot() {
		s := e.Value.Solver
		if n := s.ParticleCount(); cap(ps) < n {
			ps = make([]components.Particle, n)
		}
		ps = ps[:s.Particles(ps[:cap(ps)])]

		var d []float64
		for i := 0; i < len(corners); i++ {
			for j := i + 1; j < len(corners); j++ {
				if corners[i] >= len(ps) || corners[j] >= len(ps) {
					continue
				}
				d = append(d, r3.Norm(r3.Sub(ps[corners[i]].Position, ps[corners[j]].Position)))
			}
		}
		out = append(out, d)
	}
	return out
}

// shapeError is the mean relative difference between matching distances.
func shapeError(rest, now [][]float64) float64 {
	var sum float64
	var n int
	for b := range min(len(rest), len(now)) {
		for i := range min(len(rest[b]), len(now[b])) {
			if rest[b][i] <= 0 {
				continue
			}
			sum += math.Abs(now[b][i]/rest[b][i] - 1)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
