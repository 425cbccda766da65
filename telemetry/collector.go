package telemetry

// BodySample is the state of one body at the end of a window.
type BodySample struct {
	Asleep          bool
	Particles       int
	Colliders       int
	KineticEnergy   float64
	Speed           float64 // centroid speed
	MaxSpeed        float64 // fastest particle
	NaNCount        int
	InfCount        int
	ReadbacksDone   uint64 // cumulative
	ReadbacksFailed uint64 // cumulative
}

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float64

	windowStartTick int32

	sleeps  int
	wakes   int
	impacts int

	// cumulative readback counters at the previous flush
	lastDone   uint64
	lastFailed uint64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int32(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}
	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordSleep records an Awake to Asleep transition.
func (c *Collector) RecordSleep() {
	c.sleeps++
}

// RecordWake records an Asleep to Awake transition.
func (c *Collector) RecordWake() {
	c.wakes++
}

// RecordImpact records an impact delivered to a body.
func (c *Collector) RecordImpact() {
	c.impacts++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats from the body samples and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, bodies []BodySample) WindowStats {
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,
		Bodies:          len(bodies),
		Sleeps:          c.sleeps,
		Wakes:           c.wakes,
		Impacts:         c.impacts,
	}

	var speeds []float64
	var done, failed uint64
	for _, b := range bodies {
		if b.Asleep {
			stats.Asleep++
		} else {
			stats.Awake++
			speeds = append(speeds, b.Speed)
		}
		stats.Particles += b.Particles
		stats.Colliders += b.Colliders
		stats.KineticEnergy += b.KineticEnergy
		stats.MaxSpeed = max(stats.MaxSpeed, b.MaxSpeed)
		stats.NaNCount += b.NaNCount
		stats.InfCount += b.InfCount
		if b.NaNCount > 0 || b.InfCount > 0 {
			stats.UnstableBodies++
		}
		done += b.ReadbacksDone
		failed += b.ReadbacksFailed
	}
	stats.SpeedMean, stats.SpeedStd, stats.SpeedP50, stats.SpeedP90 = ComputeSpeedStats(speeds)
	if done >= c.lastDone {
		stats.ReadbacksDone = done - c.lastDone
	}
	if failed >= c.lastFailed {
		stats.ReadbacksFailed = failed - c.lastFailed
	}

	c.windowStartTick = currentTick
	c.sleeps = 0
	c.wakes = 0
	c.impacts = 0
	c.lastDone = done
	c.lastFailed = failed
	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
