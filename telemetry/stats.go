package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Bodies at window end
	Bodies    int `csv:"bodies"`
	Awake     int `csv:"awake"`
	Asleep    int `csv:"asleep"`
	Particles int `csv:"particles"`
	Colliders int `csv:"colliders"`

	// Transitions during window
	Sleeps  int `csv:"sleeps"`
	Wakes   int `csv:"wakes"`
	Impacts int `csv:"impacts"`

	// Motion (sampled at window end over awake bodies)
	KineticEnergy float64 `csv:"kinetic_energy"`
	SpeedMean     float64 `csv:"speed_mean"`
	SpeedStd      float64 `csv:"speed_std"`
	SpeedP50      float64 `csv:"speed_p50"`
	SpeedP90      float64 `csv:"speed_p90"`
	MaxSpeed      float64 `csv:"max_speed"`

	// Stability
	NaNCount       int `csv:"nan_count"`
	InfCount       int `csv:"inf_count"`
	UnstableBodies int `csv:"unstable_bodies"`

	// Device transfers during window
	ReadbacksDone   uint64 `csv:"readbacks_done"`
	ReadbacksFailed uint64 `csv:"readbacks_failed"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeSpeedStats returns the mean, population standard deviation and median and 90th
// percentile of speeds.
func ComputeSpeedStats(speeds []float64) (mean, std, p50, p90 float64) {
	if len(speeds) == 0 {
		return 0, 0, 0, 0
	}
	mean = stat.Mean(speeds, nil)
	std = stat.PopStdDev(speeds, nil)

	sorted := append([]float64(nil), speeds...)
	sort.Float64s(sorted)
	return mean, std, Percentile(sorted, 0.5), Percentile(sorted, 0.9)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("bodies", s.Bodies),
		slog.Int("awake", s.Awake),
		slog.Int("asleep", s.Asleep),
		slog.Int("particles", s.Particles),
		slog.Int("colliders", s.Colliders),
		slog.Int("sleeps", s.Sleeps),
		slog.Int("wakes", s.Wakes),
		slog.Int("impacts", s.Impacts),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("max_speed", s.MaxSpeed),
		slog.Int("nan_count", s.NaNCount),
		slog.Int("inf_count", s.InfCount),
		slog.Int("unstable_bodies", s.UnstableBodies),
		slog.Uint64("readbacks_done", s.ReadbacksDone),
		slog.Uint64("readbacks_failed", s.ReadbacksFailed),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
