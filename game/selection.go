package game

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/camera"
	"github.com/pthm-cable/squish/registry"
	"github.com/pthm-cable/squish/stream"
)

// pickBody returns the body whose bounding sphere the ray through screen point (sx, sy)
// hits first.
func (g *Game) pickBody(sx, sy float64) (registry.ID, bool) {
	origin, dir := g.camera.ScreenRay(sx, sy)

	var closest registry.ID
	closestDist := math.Inf(1)
	found := false
	for _, e := range g.reg.Bodies.Snapshot() {
		lo, hi := e.Value.Solver.Bounds()
		center := r3.Scale(0.5, r3.Add(lo, hi))
		radius := 0.5 * r3.Norm(r3.Sub(hi, lo))
		if t := camera.RaySphere(origin, dir, center, radius); t >= 0 && t < closestDist {
			closestDist = t
			closest = e.ID
			found = true
		}
	}
	return closest, found
}

// pokeSelected pushes the selected body along dir with an impulse strong enough to wake it.
func (g *Game) pokeSelected(dir r3.Vec) {
	if !g.hasSelection {
		return
	}
	cfg := g.config()
	// enough for roughly 2 m/s on the particles near the centroid
	strength := 2 * cfg.Body.Mass
	imp := r3.Scale(strength, r3.Unit(dir))
	g.applyCommand(stream.Command{
		Type:    stream.CommandImpulse,
		Body:    uint64(g.selected),
		Impulse: [3]float64{imp.X, imp.Y, imp.Z},
	})
	// the impact threshold is in impulse units; a poke always wakes
	if b, ok := g.reg.Bodies.Get(g.selected); ok && b.Sleep.Wake() {
		g.collector.RecordWake()
		b.Gatherer.Invalidate()
	}
}
