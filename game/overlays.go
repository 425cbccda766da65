package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/squish/collision"
	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/ui"
)

// handleOverlayKeys toggles overlays, the overlay list and debug mode.
func (g *Game) handleOverlayKeys() {
	if rl.IsKeyPressed(rl.KeyD) {
		g.debugMode = !g.debugMode
		g.params.Debug = g.debugMode
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		g.controls.Toggle()
	}
	for _, desc := range g.overlays.All() {
		if desc.Key != 0 && rl.IsKeyPressed(desc.Key) {
			g.overlays.Toggle(desc.ID)
		}
	}
}

// drawActiveOverlays draws the enabled 3D overlays. Must run inside 3D mode.
func (g *Game) drawActiveOverlays() {
	if g.overlays.IsEnabled(ui.OverlayParticles) {
		g.drawParticles()
	}
	if g.overlays.IsEnabled(ui.OverlayProxies) {
		g.drawProxies()
	}
	if g.overlays.IsEnabled(ui.OverlayBounds) {
		g.drawBounds()
	}
	if g.overlays.IsEnabled(ui.OverlayGathered) {
		g.drawGathered()
	}
}

// drawParticles marks every particle, pinned ones in red.
func (g *Game) drawParticles() {
	var ps []components.Particle
	for _, e := range g.reg.Bodies.Snapshot() {
		b := e.Value
		n := b.Solver.ParticleCount()
		if cap(ps) < n {
			ps = make([]components.Particle, n)
		}
		ps = ps[:n]
		n = b.Solver.Particles(ps)
		for i := 0; i < n; i++ {
			color := rl.White
			if ps[i].Pinned() {
				color = rl.Red
			}
			rl.DrawSphere(toRL(ps[i].Position), 0.02, color)
		}
	}
}

// drawProxies draws the sphere each body presents to its neighbours.
func (g *Game) drawProxies() {
	strength := g.config().Collision.InteractionStrength
	for _, e := range g.reg.Bodies.Snapshot() {
		lo, hi := e.Value.Solver.Bounds()
		p := collision.Proxy{ID: uint64(e.ID), Min: lo, Max: hi}
		s := collision.ProxySphere(p, strength)
		rl.DrawSphereWires(toRL(s.Center), float32(s.Scalar), 6, 10, rl.Fade(rl.SkyBlue, 0.6))
	}
}

// drawBounds draws the axis aligned bounds of every body.
func (g *Game) drawBounds() {
	for _, e := range g.reg.Bodies.Snapshot() {
		lo, hi := e.Value.Solver.Bounds()
		rl.DrawBoundingBox(rl.BoundingBox{Min: toRL(lo), Max: toRL(hi)}, rl.Fade(rl.Yellow, 0.4))
	}
}

// drawGathered links the selected body to every non-plane collider it currently solves
// against: environment in gray, neighbour proxies in blue.
func (g *Game) drawGathered() {
	if !g.hasSelection {
		return
	}
	b, ok := g.reg.Bodies.Get(g.selected)
	if !ok {
		return
	}
	from := toRL(b.Solver.Centroid())
	g.gathered = b.Gatherer.Colliders(g.gathered[:0])
	env, _ := b.Gatherer.Counts()
	for i := range g.gathered {
		c := &g.gathered[i]
		if c.Kind == components.ColliderPlane {
			continue
		}
		color := rl.Fade(rl.LightGray, 0.7)
		if i >= env {
			color = rl.Fade(rl.SkyBlue, 0.8)
		}
		rl.DrawLine3D(from, toRL(c.Center), color)
		rl.DrawSphere(toRL(c.Center), 0.04, color)
	}
}
