package game

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

// buildScene creates the floor, the obstacles and the initial bodies.
func (g *Game) buildScene() {
	cfg := g.config()
	sc := cfg.Scene

	floor := components.ColliderShape{
		Kind:  components.ShapeBox,
		Size:  r3.Vec{X: sc.FloorSize, Y: 0.2, Z: sc.FloorSize},
		Floor: true,
	}
	g.spawnCollider(floor, components.NewTransform(r3.Vec{Y: -0.1}), nil)

	if sc.Obstacles {
		g.spawnObstacles()
	}
	if sc.SweeperRate != 0 {
		g.spawnSweeper()
	}

	for i := 0; i < sc.Bodies; i++ {
		name := fmt.Sprintf("body-%02d", i)
		if _, err := g.spawnBody(name, g.stackOrigin(i)); err != nil {
			g.logger.Error("failed to spawn body", "name", name, "error", err)
		}
	}
}

// stackOrigin returns the lower corner of body i. Bodies are laid out in columns and stacked
// once every column holds one.
func (g *Game) stackOrigin(i int) r3.Vec {
	cfg := g.config()
	sc := cfg.Scene
	cols := max(sc.Columns, 1)
	col, level := i%cols, i/cols

	b := cfg.Body
	w := float64(b.NX-1) * b.Spacing
	h := float64(b.NY-1) * b.Spacing
	d := float64(b.NZ-1) * b.Spacing

	x := (float64(col) - float64(cols-1)/2) * sc.ColumnGap
	y := sc.DropHeight + float64(level)*(h+sc.StackGap)
	// stagger higher levels so stacks topple instead of balancing
	off := 0.15 * w * float64(level%2)
	return r3.Vec{X: x - w/2 + off, Y: y, Z: -d / 2}
}

// spawnObstacles places a sphere, a capsule and a tilted block around the drop zone.
func (g *Game) spawnObstacles() {
	sc := g.config().Scene
	gap := sc.ColumnGap

	sphere := components.ColliderShape{Kind: components.ShapeSphere, Radius: 0.5}
	g.spawnCollider(sphere, components.NewTransform(r3.Vec{X: -gap, Y: 0.3, Z: gap}), nil)

	capsule := components.ColliderShape{Kind: components.ShapeCapsule, Radius: 0.25, Height: 2, Axis: components.AxisX}
	g.spawnCollider(capsule, components.NewTransform(r3.Vec{Y: 0.25, Z: gap}), nil)

	block := components.ColliderShape{
		Kind: components.ShapeConvexMesh,
		Min:  r3.Vec{X: -0.75, Y: -0.2, Z: -0.5},
		Max:  r3.Vec{X: 0.75, Y: 0.2, Z: 0.5},
	}
	xf := components.NewTransform(r3.Vec{X: gap, Y: 0.4, Z: gap})
	xf.Rotation = components.AxisAngle(r3.Vec{Z: 1}, math.Pi/8)
	g.spawnCollider(block, xf, nil)
}

// spawnSweeper adds a paddle circling the drop zone that keeps waking settled bodies.
func (g *Game) spawnSweeper() {
	sc := g.config().Scene
	radius := sc.ColumnGap * float64(max(sc.Columns, 1)) * 0.6
	paddle := components.ColliderShape{Kind: components.ShapeBox, Size: r3.Vec{X: 0.3, Y: 0.6, Z: 1.5}}
	orbit := components.Orbit{Radius: radius, Rate: sc.SweeperRate}
	xf := components.NewTransform(r3.Vec{X: radius, Y: 0.3})
	g.spawnCollider(paddle, xf, &orbit)
}
