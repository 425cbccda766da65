package game

import (
	"log/slog"

	"github.com/pthm-cable/squish/config"
	"github.com/pthm-cable/squish/sleep"
	"github.com/pthm-cable/squish/solver"
	"github.com/pthm-cable/squish/telemetry"
	"github.com/pthm-cable/squish/topology"
)

// Options configures a game instance beyond the loaded config.
type Options struct {
	LogStats       bool
	StatsWindowSec float64 // 0 = use config
	SnapshotDir    string
	OutputDir      string
	Headless       bool
	StepsPerUpdate int
	StreamAddr     string // empty = config stream.addr
	Logger         *slog.Logger
	Config         *config.Config              // nil = global config
	StatsCallback  func(telemetry.WindowStats) // called with every flushed window
}

// solverParams maps the physics section to per-tick solver parameters.
func solverParams(cfg *config.Config) solver.Params {
	p := cfg.Physics
	return solver.Params{
		DeltaTime:           cfg.Derived.DT,
		Substeps:            p.Substeps,
		Iterations:          cfg.Derived.Iterations,
		Gravity:             cfg.Derived.Gravity,
		Damping:             p.Damping,
		GlobalDamping:       cfg.Derived.GlobalDamping,
		LambdaDecay:         p.LambdaDecay,
		CollisionCompliance: p.CollisionCompliance,
		CollisionsEnabled:   p.CollisionsEnabled,
		MaxSpeed:            p.MaxSpeed,
		Debug:               cfg.Debug.Enabled,
	}
}

// sleepConfig maps the sleep section to tracker thresholds.
func sleepConfig(cfg *config.Config) sleep.Config {
	s := cfg.Sleep
	return sleep.Config{
		VelocityThreshold: s.VelocityThreshold,
		TimeThreshold:     s.TimeThreshold,
		SampleInterval:    s.SampleInterval,
		ImpactThreshold:   s.ImpactThreshold,
		WakeRadius:        s.WakeRadius,
		ProximityInterval: s.ProximityInterval,
		JustWokeWindow:    s.JustWokeWindow,
	}
}

// latticeOptions maps the body section to lattice generation options.
func latticeOptions(cfg *config.Config) topology.LatticeOptions {
	b := cfg.Body
	return topology.LatticeOptions{
		NX:               b.NX,
		NY:               b.NY,
		NZ:               b.NZ,
		Spacing:          b.Spacing,
		Mass:             b.Mass,
		Compliance:       b.Compliance,
		Shear:            b.Shear,
		Volume:           b.Volume,
		VolumeCompliance: b.VolumeCompliance,
		Pressure:         b.Pressure,
	}
}
