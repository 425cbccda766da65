// Package sleep decides when a soft body is at rest and may skip simulation, and when it must
// wake up again.
package sleep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// State is the activity state of a body.
type State uint8

const (
	Awake State = iota
	Asleep
)

func (s State) String() string {
	if s == Asleep {
		return "asleep"
	}
	return "awake"
}

// Transition is reported by Update when the state changes.
type Transition uint8

const (
	None Transition = iota
	FellAsleep
	WokeUp
)

// Reason records why a body last woke.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonRequest
	ReasonDisturbance
	ReasonImpact
	ReasonProximity
)

var reasonNames = []string{"none", "request", "disturbance", "impact", "proximity"}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// DisturbanceFactor multiplies VelocityThreshold to give the speed that wakes a still body.
const DisturbanceFactor = 4

const timeEpsilon = 1e-9

// Config holds the sleep thresholds.
type Config struct {
	VelocityThreshold float64 // m/s below which a body counts as still
	TimeThreshold     float64 // seconds of stillness before sleeping
	SampleInterval    float64 // seconds between speed samples
	ImpactThreshold   float64 // impulse magnitude that wakes a sleeping body
	WakeRadius        float64 // proximity wake distance between centroids
	ProximityInterval float64 // seconds between proximity checks
	JustWokeWindow    float64 // seconds a woken body keeps waking its neighbours
}

// DefaultConfig returns thresholds suited to metre-scale bodies.
func DefaultConfig() Config {
	return Config{
		VelocityThreshold: 0.05,
		TimeThreshold:     1.0,
		SampleInterval:    0.1,
		ImpactThreshold:   0.5,
		WakeRadius:        1.5,
		ProximityInterval: 0.25,
		JustWokeWindow:    0.5,
	}
}

// Neighbour is another body as seen by a proximity check.
type Neighbour struct {
	Position r3.Vec
	JustWoke bool
}

// Tracker is the sleep state machine of one body. It is not safe for concurrent use.
type Tracker struct {
	cfg   Config
	state State

	last        r3.Vec // centroid at the previous Update
	sampleStart r3.Vec
	sampleTime  float64
	speed       float64 // last sampled speed
	stillTime   float64

	sinceWake      float64
	proximityTimer float64
	reason         Reason
}

// NewTracker returns an awake tracker for a body whose centroid is at centroid.
func NewTracker(cfg Config, centroid r3.Vec) *Tracker {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 0.1
	}
	return &Tracker{
		cfg:            cfg,
		last:           centroid,
		sampleStart:    centroid,
		sinceWake:      math.Inf(1),
		proximityTimer: cfg.ProximityInterval,
	}
}

// Config returns the thresholds in use.
func (t *Tracker) Config() Config { return t.cfg }

// State returns the current state.
func (t *Tracker) State() State { return t.state }

// Asleep reports whether the body is asleep.
func (t *Tracker) Asleep() bool { return t.state == Asleep }

// Speed returns the most recent sampled speed.
func (t *Tracker) Speed() float64 { return t.speed }

// StillTime returns how long the body has been below the velocity threshold.
func (t *Tracker) StillTime() float64 { return t.stillTime }

// LastWakeReason returns why the body last woke.
func (t *Tracker) LastWakeReason() Reason { return t.reason }

// Update advances the tracker by dt with the body's current centroid.
func (t *Tracker) Update(dt float64, centroid r3.Vec) Transition {
	if dt <= 0 {
		return None
	}
	t.sinceWake += dt
	t.proximityTimer += dt

	frameSpeed := r3.Norm(r3.Sub(centroid, t.last)) / dt
	t.last = centroid
	disturbed := frameSpeed > DisturbanceFactor*t.cfg.VelocityThreshold

	if t.state == Asleep {
		t.sampleStart = centroid
		t.sampleTime = 0
		if disturbed {
			t.speed = frameSpeed
			t.wake(ReasonDisturbance)
			return WokeUp
		}
		return None
	}

	if disturbed {
		t.stillTime = 0
	}

	t.sampleTime += dt
	if t.sampleTime < t.cfg.SampleInterval-timeEpsilon {
		return None
	}
	t.speed = r3.Norm(r3.Sub(centroid, t.sampleStart)) / t.sampleTime
	elapsed := t.sampleTime
	t.sampleStart = centroid
	t.sampleTime = 0

	if t.speed >= t.cfg.VelocityThreshold || disturbed {
		t.stillTime = 0
		return None
	}
	t.stillTime += elapsed
	if t.stillTime >= t.cfg.TimeThreshold-timeEpsilon {
		t.state = Asleep
		return FellAsleep
	}
	return None
}

// Wake wakes the body on an external request. It returns true if the body was asleep.
func (t *Tracker) Wake() bool {
	return t.wake(ReasonRequest)
}

func (t *Tracker) wake(r Reason) bool {
	t.stillTime = 0
	if t.state != Asleep {
		return false
	}
	t.state = Awake
	t.sinceWake = 0
	t.reason = r
	return true
}

// NotifyImpact reports a collision impulse of magnitude mag. Only impacts above the
// significance threshold count; it returns true if one woke the body.
func (t *Tracker) NotifyImpact(mag float64) bool {
	if !(mag > t.cfg.ImpactThreshold) {
		return false
	}
	return t.wake(ReasonImpact)
}

// JustWoke reports whether the body woke within the last JustWokeWindow seconds.
func (t *Tracker) JustWoke() bool {
	return t.state == Awake && t.sinceWake <= t.cfg.JustWokeWindow
}

// CheckProximity wakes a sleeping body when a neighbour that just woke is within WakeRadius of
// self. Checks run at most once per ProximityInterval; it returns true if the body woke.
func (t *Tracker) CheckProximity(self r3.Vec, neighbours []Neighbour) bool {
	if t.state != Asleep || t.proximityTimer < t.cfg.ProximityInterval-timeEpsilon {
		return false
	}
	t.proximityTimer = 0
	r2 := t.cfg.WakeRadius * t.cfg.WakeRadius
	for _, n := range neighbours {
		if n.JustWoke && r3.Norm2(r3.Sub(n.Position, self)) <= r2 {
			return t.wake(ReasonProximity)
		}
	}
	return false
}
