package game

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/num/quat"

	"github.com/pthm-cable/squish/collision"
	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/registry"
	"github.com/pthm-cable/squish/ui"
)

var (
	colorAwake    = rl.Color{R: 230, G: 120, B: 60, A: 255}
	colorAsleep   = rl.Color{R: 90, G: 110, B: 160, A: 255}
	colorSelected = rl.Color{R: 255, G: 220, B: 80, A: 255}
	colorCollider = rl.Color{R: 140, G: 140, B: 140, A: 255}
	colorKinetic  = rl.Color{R: 120, G: 200, B: 120, A: 255}
)

// rlCamera builds the raylib camera for the current orbit pose.
func (g *Game) rlCamera() rl.Camera3D {
	return rl.NewCamera3D(
		toRL(g.camera.Position()),
		toRL(g.camera.Target),
		rl.NewVector3(0, 1, 0),
		float32(g.camera.FovY),
		rl.CameraPerspective,
	)
}

// drawBodies renders every body surface from its latest vertex readback.
func (g *Game) drawBodies() {
	wire := g.overlays.IsEnabled(ui.OverlayWireframe)
	tint := g.overlays.IsEnabled(ui.OverlaySleep)
	sleepTime := g.sleepCfg.TimeThreshold
	for _, e := range g.reg.Bodies.Snapshot() {
		b := e.Value
		color := colorAwake
		switch {
		case b.Sleep.Asleep():
			color = colorAsleep
		case tint && sleepTime > 0:
			color = lerpColor(colorAwake, colorAsleep, clampf(b.Sleep.StillTime()/sleepTime, 0, 1))
		}
		if g.hasSelection && e.ID == g.selected {
			color = colorSelected
		}
		drawSurface(b, color, wire)
	}
}

// drawSurface draws the surface triangles of b, shaded and outlined. Wireframe draws the
// edges in the body color only.
func drawSurface(b registry.Body, color rl.Color, wire bool) {
	ps := b.Solver.Positions()
	idx := b.Solver.Indices()
	n := int32(len(ps) / 3)
	edge := rl.Fade(rl.Black, 0.25)
	for i := 0; i+2 < len(idx); i += 3 {
		a, bb, c := idx[i], idx[i+1], idx[i+2]
		if a >= n || bb >= n || c >= n {
			continue
		}
		v1, v2, v3 := packed(ps, a), packed(ps, bb), packed(ps, c)
		if wire {
			rl.DrawLine3D(v1, v2, color)
			rl.DrawLine3D(v2, v3, color)
			rl.DrawLine3D(v3, v1, color)
			continue
		}
		rl.DrawTriangle3D(v1, v2, v3, shade(color, v1, v2, v3))
		rl.DrawLine3D(v1, v2, edge)
		rl.DrawLine3D(v2, v3, edge)
		rl.DrawLine3D(v3, v1, edge)
	}
}

// shade darkens color by how far the triangle faces away from a fixed light.
func shade(color rl.Color, v1, v2, v3 rl.Vector3) rl.Color {
	n := rl.Vector3Normalize(rl.Vector3CrossProduct(rl.Vector3Subtract(v2, v1), rl.Vector3Subtract(v3, v1)))
	light := rl.Vector3Normalize(rl.NewVector3(0.4, 1, 0.3))
	k := 0.45 + 0.55*float32(math.Max(0, float64(rl.Vector3DotProduct(n, light))))
	return rl.Color{R: uint8(float32(color.R) * k), G: uint8(float32(color.G) * k), B: uint8(float32(color.B) * k), A: color.A}
}

// drawColliders renders the SDF form of every collider.
func (g *Game) drawColliders() {
	for _, e := range g.reg.Colliders.Snapshot() {
		c := e.Value
		if !g.world.Alive(c.Entity) {
			continue
		}
		sdf, ok := collision.Convert(c.Shape, *g.transformMap.Get(c.Entity))
		if !ok {
			continue
		}
		color := colorCollider
		if !c.Static {
			color = colorKinetic
		}
		drawSDF(&sdf, color, float32(g.config().Scene.FloorSize))
	}
}

// drawSDF draws a wireframe of collider c. Planes are drawn as a grid of the given size.
func drawSDF(c *components.SDFCollider, color rl.Color, planeSize float32) {
	switch c.Kind {
	case components.ColliderPlane:
		center := toRL(c.Normal)
		center = rl.Vector3Scale(center, float32(c.Scalar))
		rl.DrawPlane(center, rl.NewVector2(planeSize, planeSize), rl.Fade(color, 0.35))
		rl.PushMatrix()
		rl.Translatef(center.X, center.Y+0.001, center.Z)
		rl.DrawGrid(int32(planeSize), 1)
		rl.PopMatrix()

	case components.ColliderSphere:
		rl.DrawSphereWires(toRL(c.Center), float32(c.Scalar), 8, 12, color)

	case components.ColliderBox:
		withRotation(c, func() {
			size := toRL(c.Extents)
			rl.DrawCubeV(rl.Vector3{}, rl.Vector3Scale(size, 2), rl.Fade(color, 0.5))
			rl.DrawCubeWiresV(rl.Vector3{}, rl.Vector3Scale(size, 2), color)
		})

	case components.ColliderCylinder:
		withRotation(c, func() {
			r, h := float32(c.Extents.X), float32(c.Extents.Y)
			rl.DrawCylinderWires(rl.NewVector3(0, -h, 0), r, r, 2*h, 12, color)
		})
	}
}

// withRotation runs draw with the model matrix at the collider center and orientation.
func withRotation(c *components.SDFCollider, draw func()) {
	q := components.Orientation(c.Rotation)
	angle := 2 * math.Acos(math.Max(-1, math.Min(1, q.Real)))
	axis := quat.Number{Imag: q.Imag, Jmag: q.Jmag, Kmag: q.Kmag}
	s := quat.Abs(axis)

	rl.PushMatrix()
	rl.Translatef(float32(c.Center.X), float32(c.Center.Y), float32(c.Center.Z))
	if s > 1e-9 {
		rl.Rotatef(float32(angle*180/math.Pi), float32(axis.Imag/s), float32(axis.Jmag/s), float32(axis.Kmag/s))
	}
	draw()
	rl.PopMatrix()
}
