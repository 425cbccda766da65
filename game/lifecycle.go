package game

import (
	"errors"
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/buffers"
	"github.com/pthm-cable/squish/collision"
	"github.com/pthm-cable/squish/coloring"
	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/registry"
	"github.com/pthm-cable/squish/sleep"
	"github.com/pthm-cable/squish/solver"
	"github.com/pthm-cable/squish/topology"
)

// spawnBody creates a lattice body with its lower corner at origin.
func (g *Game) spawnBody(name string, origin r3.Vec) (registry.ID, error) {
	topo, err := topology.Lattice(origin, latticeOptions(g.config()))
	if err != nil {
		return 0, fmt.Errorf("building %s: %w", name, err)
	}
	return g.spawnTopology(name, topo)
}

// spawnTopology initializes a solver for topo and registers the body.
func (g *Game) spawnTopology(name string, topo topology.Topology) (registry.ID, error) {
	cfg := g.config()

	s := solver.New(g.dev, buffers.NewStore(), g.logger.With("body", name))
	s.ReadbackCooldown = cfg.Derived.ReadbackCooldown
	s.SetTimer(g.perfCollector)
	res := s.Init(topo, coloring.New(cfg.Derived.Coloring))
	if !res.Success {
		err := res.Err
		if err == nil {
			err = errors.New(res.Message)
		}
		return 0, fmt.Errorf("initializing %s: %w", name, err)
	}

	gatherer := collision.NewGatherer(cfg.Collision.RefreshInterval, cfg.Collision.ProxyInterval)
	gatherer.MaxEnvironment = cfg.Collision.MaxEnvironment
	gatherer.MaxTotal = min(cfg.Collision.MaxTotal, collision.MaxColliders)

	lo, _ := topo.Bounds()
	xf := components.NewTransform(lo)
	sb := components.SoftBody{}
	entity := g.bodyMapper.NewEntity(&xf, &sb)

	id := g.reg.Bodies.Register(registry.Body{
		Name:     name,
		Entity:   entity,
		Solver:   s,
		Sleep:    sleep.NewTracker(g.sleepCfg, s.Centroid()),
		Gatherer: gatherer,
	})
	g.softBodyMap.Get(entity).ID = uint64(id)

	// everyone else needs to see the new body
	g.invalidateGatherers()
	return id, nil
}

// despawnBody unregisters a body and frees its buffers. Iterations over an earlier snapshot
// keep a valid solver until they finish because Release only drops buffers.
func (g *Game) despawnBody(id registry.ID) bool {
	b, ok := g.reg.Bodies.Get(id)
	if !ok {
		return false
	}
	g.reg.Bodies.Unregister(id)
	if g.world.Alive(b.Entity) {
		g.world.RemoveEntity(b.Entity)
	}
	b.Solver.Release()
	delete(g.centroids, id)
	delete(g.contacts, id)
	if g.hasSelection && g.selected == id {
		g.hasSelection = false
	}
	g.invalidateGatherers()
	return true
}

// spawnCollider creates a collider entity. A non-nil orbit makes it kinematic.
func (g *Game) spawnCollider(shape components.ColliderShape, xf components.Transform, orbit *components.Orbit) registry.ID {
	entity := g.colliderMapper.NewEntity(&xf, &shape)
	if orbit != nil {
		g.orbitMap.Add(entity, orbit)
	}
	id := g.reg.Colliders.Register(registry.Collider{
		Entity: entity,
		Shape:  shape,
		Static: orbit == nil,
	})
	g.invalidateGatherers()
	return id
}

// despawnCollider removes a collider entity.
func (g *Game) despawnCollider(id registry.ID) bool {
	c, ok := g.reg.Colliders.Get(id)
	if !ok {
		return false
	}
	g.reg.Colliders.Unregister(id)
	if g.world.Alive(c.Entity) {
		g.world.RemoveEntity(c.Entity)
	}
	g.invalidateGatherers()
	return true
}

// queueImpact attaches an impact to a body entity, merging with one already pending.
func (g *Game) queueImpact(entity ecs.Entity, imp components.Impact) {
	if !g.world.Alive(entity) {
		return
	}
	if g.impactMap.Has(entity) {
		cur := g.impactMap.Get(entity)
		cur.Impulse = r3.Add(cur.Impulse, imp.Impulse)
		cur.Magnitude = max(cur.Magnitude, imp.Magnitude)
		return
	}
	g.impactMap.Add(entity, &imp)
}

// invalidateGatherers forces every body to refresh its colliders on the next tick.
func (g *Game) invalidateGatherers() {
	for _, e := range g.reg.Bodies.Snapshot() {
		e.Value.Gatherer.Invalidate()
	}
}

// resetBodies restores every body to its spawn state and wakes it.
func (g *Game) resetBodies() {
	for _, e := range g.reg.Bodies.Snapshot() {
		e.Value.Solver.Reset()
		if e.Value.Sleep.Wake() {
			g.collector.RecordWake()
		}
	}
	g.invalidateGatherers()
}

// dropBody spawns a new lattice above the camera target, kept inside the floor.
func (g *Game) dropBody() (registry.ID, error) {
	cfg := g.config()
	half := cfg.Scene.FloorSize/2 - 1
	b := cfg.Body
	w := float64(b.NX-1) * b.Spacing
	d := float64(b.NZ-1) * b.Spacing
	t := g.camera.Target
	origin := r3.Vec{
		X: clampf(t.X, -half, half) - w/2,
		Y: cfg.Scene.DropHeight + 1,
		Z: clampf(t.Z, -half, half) - d/2,
	}
	g.spawned++
	id, err := g.spawnBody(fmt.Sprintf("drop-%02d", g.spawned), origin)
	if err != nil {
		g.logger.Error("failed to drop body", "error", err)
	}
	return id, err
}

// removeSelectedOrLast despawns the selected body, or the newest one when nothing is
// selected.
func (g *Game) removeSelectedOrLast() bool {
	if g.hasSelection {
		return g.despawnBody(g.selected)
	}
	bodies := g.reg.Bodies.Snapshot()
	if len(bodies) == 0 {
		return false
	}
	newest := bodies[0].ID
	for _, e := range bodies[1:] {
		newest = max(newest, e.ID)
	}
	return g.despawnBody(newest)
}
