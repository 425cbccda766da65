package game

import (
	"math"
	"sort"
	"time"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/collision"
	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/registry"
	"github.com/pthm-cable/squish/sleep"
	"github.com/pthm-cable/squish/stream"
	"github.com/pthm-cable/squish/telemetry"
)

// simulationStep runs a single tick of the simulation.
func (g *Game) simulationStep() {
	cfg := g.config()
	dt := g.params.DeltaTime
	g.perfCollector.StartTick()

	// 1. Remote commands and kinematic colliders
	start := time.Now()
	g.perfCollector.StartPhase(telemetry.PhaseGather)
	g.drainCommands()
	g.updateKinematics(dt)

	// 2. Per-body frame data every later stage reads
	bodies := g.reg.Bodies.Snapshot()
	g.updateBodyFrames(bodies)
	g.env = g.environment(g.env[:0])
	g.perf.Record("gather", time.Since(start))

	// 3. Impacts and proximity wake-ups
	start = time.Now()
	g.perfCollector.StartPhase(telemetry.PhaseSleep)
	g.detectContacts(bodies)
	g.processImpacts()
	if cfg.Sleep.Enabled {
		g.updateProximity(bodies)
	}
	g.perf.Record("wake", time.Since(start))

	// 4. Step awake bodies
	start = time.Now()
	for _, e := range bodies {
		b := e.Value
		if cfg.Sleep.Enabled && b.Sleep.Asleep() {
			continue
		}
		g.perfCollector.StartPhase(telemetry.PhaseGather)
		g.gatherColliders(e, dt)
		b.Solver.Tick(g.params)
	}
	g.perf.Record("bodies", time.Since(start))

	// 5. Sleep transitions on the new centroids
	start = time.Now()
	g.perfCollector.StartPhase(telemetry.PhaseSleep)
	if cfg.Sleep.Enabled {
		g.updateSleep(bodies, dt)
	}
	g.perf.Record("sleep", time.Since(start))

	g.tick++

	// 6. Telemetry and remote viewers
	start = time.Now()
	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()
	g.broadcastFrame()
	g.perf.Record("telemetry", time.Since(start))

	g.perfCollector.EndTick()
}

// updateKinematics advances orbiting colliders. Bodies near a collider that moved refresh
// their environment on this tick instead of waiting for the throttled refresh.
func (g *Game) updateKinematics(dt float64) {
	type moved struct {
		center r3.Vec
		reach  float64
	}
	var movers []moved

	query := g.orbitFilter.Query()
	for query.Next() {
		xf, orbit := query.Get()
		if orbit.Rate == 0 {
			continue
		}
		shape := g.shapeMap.Get(query.Entity())
		orbit.Angle = math.Mod(orbit.Angle+orbit.Rate*dt, 2*math.Pi)
		s, c := math.Sincos(orbit.Angle)
		xf.Position = r3.Vec{
			X: orbit.Center.X + orbit.Radius*c,
			Y: xf.Position.Y,
			Z: orbit.Center.Z + orbit.Radius*s,
		}
		xf.Rotation = components.AxisAngle(r3.Vec{Y: 1}, -orbit.Angle)
		movers = append(movers, moved{center: xf.Position, reach: 0.5*r3.Norm(shape.Size) + shape.Radius})
	}
	if len(movers) == 0 {
		return
	}

	reach := g.config().Collision.InteractionDistance
	for _, e := range g.reg.Bodies.Snapshot() {
		c := e.Value.Solver.Centroid()
		for _, m := range movers {
			if r3.Norm(r3.Sub(c, m.center)) <= reach+m.reach {
				e.Value.Gatherer.Invalidate()
				break
			}
		}
	}
}

// updateBodyFrames computes the centroid and bounds proxy of every body.
func (g *Game) updateBodyFrames(bodies []registry.Entry[registry.Body]) {
	g.proxies = g.proxies[:0]
	for _, e := range bodies {
		lo, hi := e.Value.Solver.Bounds()
		p := collision.Proxy{ID: uint64(e.ID), Min: lo, Max: hi}
		g.proxies = append(g.proxies, p)
		g.centroids[e.ID] = bodyFrame{centroid: e.Value.Solver.Centroid(), proxy: p}
	}
}

// environment converts every registered collider to its SDF form.
func (g *Game) environment(dst []components.SDFCollider) []components.SDFCollider {
	for _, e := range g.reg.Colliders.Snapshot() {
		c := e.Value
		if !g.world.Alive(c.Entity) {
			continue
		}
		xf := g.transformMap.Get(c.Entity)
		if sdf, ok := collision.Convert(c.Shape, *xf); ok {
			dst = append(dst, sdf)
		}
	}
	return dst
}

// gatherColliders refreshes the collider set of one body when its gatherer is due and
// uploads the combined set.
func (g *Game) gatherColliders(e registry.Entry[registry.Body], dt float64) {
	cfg := g.config()
	b := e.Value
	envDue, proxiesDue := b.Gatherer.Advance(dt)
	if !envDue && !proxiesDue {
		return
	}
	frame := g.centroids[e.ID]

	if envDue {
		g.envSorted = append(g.envSorted[:0], g.env...)
		c := frame.centroid
		sort.Slice(g.envSorted, func(i, j int) bool {
			return collision.Distance(&g.envSorted[i], c) < collision.Distance(&g.envSorted[j], c)
		})
		b.Gatherer.SetEnvironment(g.envSorted)
	}
	if proxiesDue {
		g.gathered = collision.GatherProxies(g.gathered[:0], frame.proxy, g.proxies,
			cfg.Collision.InteractionDistance, cfg.Collision.InteractionStrength, b.Gatherer.ProxyBudget())
		b.Gatherer.SetProxies(g.gathered)
	}
	g.combined = b.Gatherer.Colliders(g.combined[:0])
	b.Solver.SetColliders(g.combined)
}

// detectContacts queues an impact when a body first touches a moving collider.
func (g *Game) detectContacts(bodies []registry.Entry[registry.Body]) {
	type mover struct {
		sdf   components.SDFCollider
		speed float64
		dir   r3.Vec
	}
	var movers []mover
	query := g.orbitFilter.Query()
	for query.Next() {
		entity := query.Entity()
		xf, orbit := query.Get()
		if orbit.Rate == 0 {
			continue
		}
		sdf, ok := collision.Convert(*g.shapeMap.Get(entity), *xf)
		if !ok {
			continue
		}
		s, c := math.Sincos(orbit.Angle)
		tangent := r3.Vec{X: -s, Z: c}
		if orbit.Rate < 0 {
			tangent = r3.Scale(-1, tangent)
		}
		movers = append(movers, mover{sdf: sdf, speed: math.Abs(orbit.Rate) * orbit.Radius, dir: tangent})
	}

	cfg := g.config()
	radius := cfg.Collision.ImpactRadius
	for _, e := range bodies {
		touching := false
		var hit mover
		var point r3.Vec
		for i := range movers {
			if p, ok := g.nearestWithin(e.Value, &movers[i].sdf, radius); ok {
				touching, hit, point = true, movers[i], p
				break
			}
		}
		if touching && !g.contacts[e.ID] {
			g.queueImpact(e.Value.Entity, components.Impact{
				Point:     point,
				Impulse:   r3.Scale(hit.speed*cfg.Body.Mass, hit.dir),
				Magnitude: hit.speed,
			})
		}
		g.contacts[e.ID] = touching
	}
}

// nearestWithin returns the particle of b closest to collider c if it lies within radius.
func (g *Game) nearestWithin(b registry.Body, c *components.SDFCollider, radius float64) (r3.Vec, bool) {
	lo, hi := b.Solver.Bounds()
	center := r3.Scale(0.5, r3.Add(lo, hi))
	halfDiag := 0.5 * r3.Norm(r3.Sub(hi, lo))
	if collision.Distance(c, center) > halfDiag+radius {
		return r3.Vec{}, false
	}

	n := b.Solver.ParticleCount()
	if cap(g.particles) < n {
		g.particles = make([]components.Particle, n)
	}
	ps := g.particles[:n]
	n = b.Solver.Particles(ps)
	best, bestDist := -1, math.Inf(1)
	for i := 0; i < n; i++ {
		if d := collision.Distance(c, ps[i].Position); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > radius {
		return r3.Vec{}, false
	}
	return ps[best].Position, true
}

// processImpacts delivers pending impacts: significant ones wake the body, and awake bodies
// receive the impulse.
func (g *Game) processImpacts() {
	type pending struct {
		entity ecs.Entity
		id     registry.ID
		impact components.Impact
	}
	var todo []pending

	// First pass: collect (the query must finish before components are removed)
	query := g.impactFilter.Query()
	for query.Next() {
		sb, imp := query.Get()
		todo = append(todo, pending{entity: query.Entity(), id: registry.ID(sb.ID), impact: *imp})
	}

	// Second pass: apply
	radius := g.config().Collision.ImpactRadius
	for _, p := range todo {
		g.impactMap.Remove(p.entity)
		b, ok := g.reg.Bodies.Get(p.id)
		if !ok {
			continue
		}
		g.collector.RecordImpact()
		if b.Sleep.NotifyImpact(p.impact.Magnitude) {
			g.collector.RecordWake()
			b.Gatherer.Invalidate()
		}
		if !b.Sleep.Asleep() && p.impact.Impulse != (r3.Vec{}) {
			b.Solver.ApplyImpulse(p.impact.Point, p.impact.Impulse, radius)
		}
	}
}

// updateProximity wakes sleeping bodies next to bodies that just woke.
func (g *Game) updateProximity(bodies []registry.Entry[registry.Body]) {
	neighbours := make([]sleep.Neighbour, 0, len(bodies))
	for _, e := range bodies {
		if e.Value.Sleep.JustWoke() {
			neighbours = append(neighbours, sleep.Neighbour{Position: g.centroids[e.ID].centroid, JustWoke: true})
		}
	}
	if len(neighbours) == 0 {
		return
	}
	for _, e := range bodies {
		b := e.Value
		if !b.Sleep.Asleep() {
			continue
		}
		if b.Sleep.CheckProximity(g.centroids[e.ID].centroid, neighbours) {
			g.collector.RecordWake()
			b.Gatherer.Invalidate()
		}
	}
}

// updateSleep feeds the post-step centroid of every body to its tracker.
func (g *Game) updateSleep(bodies []registry.Entry[registry.Body], dt float64) {
	for _, e := range bodies {
		b := e.Value
		switch b.Sleep.Update(dt, b.Solver.Centroid()) {
		case sleep.FellAsleep:
			g.collector.RecordSleep()
			g.logger.Debug("body asleep", "body", b.Name, "tick", g.tick)
		case sleep.WokeUp:
			g.collector.RecordWake()
			b.Gatherer.Invalidate()
			g.logger.Debug("body woke", "body", b.Name, "reason", b.Sleep.LastWakeReason().String(), "tick", g.tick)
		}
	}
}

// drainCommands applies queued remote requests.
func (g *Game) drainCommands() {
	for {
		select {
		case cmd := <-g.hub.Commands():
			g.applyCommand(cmd)
		default:
			return
		}
	}
}

// applyCommand applies one remote or UI request.
func (g *Game) applyCommand(cmd stream.Command) {
	switch cmd.Type {
	case stream.CommandReset:
		g.resetBodies()
		return
	}

	b, ok := g.reg.Bodies.Get(registry.ID(cmd.Body))
	if !ok {
		g.logger.Warn("command for unknown body", "type", cmd.Type, "body", cmd.Body)
		return
	}
	switch cmd.Type {
	case stream.CommandWake:
		if b.Sleep.Wake() {
			g.collector.RecordWake()
			b.Gatherer.Invalidate()
		}
	case stream.CommandImpulse:
		impulse := r3.Vec{X: cmd.Impulse[0], Y: cmd.Impulse[1], Z: cmd.Impulse[2]}
		if !components.FiniteVec(impulse) {
			return
		}
		g.queueImpact(b.Entity, components.Impact{
			Point:     b.Solver.Centroid(),
			Impulse:   impulse,
			Magnitude: r3.Norm(impulse),
		})
	default:
		g.logger.Warn("unknown command", "type", cmd.Type)
	}
}
