package main

import (
	"math"

	"github.com/pthm-cable/squish/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
	Log     bool    // search in log10 space (compliances span decades)
	Integer bool    // rounded when applied
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Step
			{Name: "substeps", Path: "physics.substeps", Min: 1, Max: 6, Default: 2, Integer: true},
			{Name: "iterations", Path: "physics.iterations", Min: 1, Max: 12, Default: 4, Integer: true},
			{Name: "damping", Path: "physics.damping", Min: 0, Max: 1, Default: 0.01},
			{Name: "lambda_decay", Path: "physics.lambda_decay", Min: 0.5, Max: 1, Default: 0.9},
			{Name: "max_speed", Path: "physics.max_speed", Min: 5, Max: 50, Default: 20},
			// Material
			{Name: "compliance", Path: "body.compliance", Min: 1e-8, Max: 1e-4, Default: 1e-6, Log: true},
			{Name: "volume_compliance", Path: "body.volume_compliance", Min: 1e-7, Max: 1e-3, Default: 1e-5, Log: true},
			// Contact
			{Name: "collision_compliance", Path: "physics.collision_compliance", Min: 1e-9, Max: 1e-4, Default: 1e-9, Log: true},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

func (s ParamSpec) bounds() (lo, hi float64) {
	if s.Log {
		return math.Log10(s.Min), math.Log10(s.Max)
	}
	return s.Min, s.Max
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		lo, hi := spec.bounds()
		x := raw[i]
		if spec.Log {
			x = math.Log10(math.Max(x, spec.Min))
		}
		normalized[i] = (x - lo) / (hi - lo)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		lo, hi := spec.bounds()
		x := lo + normalized[i]*(hi-lo)
		if spec.Log {
			x = math.Pow(10, x)
		}
		raw[i] = x
	}
	return raw
}

// Clamp ensures all values are within bounds and integers are whole.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if math.IsNaN(val) {
			val = spec.Default
		}
		val = math.Max(spec.Min, math.Min(spec.Max, val))
		if spec.Integer {
			val = math.Round(val)
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct and refreshes derived values.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	c := pv.Clamp(values)

	// Order must match Specs order
	cfg.Physics.Substeps = int(c[0])
	cfg.Physics.Iterations = int(c[1])
	cfg.Physics.Damping = c[2]
	cfg.Physics.LambdaDecay = c[3]
	cfg.Physics.MaxSpeed = c[4]
	cfg.Body.Compliance = c[5]
	cfg.Body.VolumeCompliance = c[6]
	cfg.Physics.CollisionCompliance = c[7]

	return cfg.Refresh()
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		float64(cfg.Physics.Substeps),
		float64(cfg.Physics.Iterations),
		cfg.Physics.Damping,
		cfg.Physics.LambdaDecay,
		cfg.Physics.MaxSpeed,
		cfg.Body.Compliance,
		cfg.Body.VolumeCompliance,
		cfg.Physics.CollisionCompliance,
	}
}
