// Package camera provides an orbit camera for viewing the 3D scene.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera orbits a target point. Angles are in radians.
type Camera struct {
	// Target is the point the camera looks at
	Target r3.Vec

	// Yaw around the world Y axis, Pitch above the horizon
	Yaw, Pitch float64

	// Distance from the target
	Distance float64

	// Vertical field of view in degrees
	FovY float64

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float64

	// Distance constraints
	MinDistance, MaxDistance float64

	home pose
}

// pose is the state restored by Reset.
type pose struct {
	Target     r3.Vec
	Yaw, Pitch float64
	Distance   float64
}

const maxPitch = math.Pi/2 - 0.01

// New creates a camera looking at target from distance with a 45 degree field of view.
func New(viewportW, viewportH float64, target r3.Vec, distance float64) *Camera {
	c := &Camera{
		Target:      target,
		Yaw:         math.Pi / 4,
		Pitch:       math.Pi / 6,
		Distance:    distance,
		FovY:        45,
		ViewportW:   viewportW,
		ViewportH:   viewportH,
		MinDistance: 1,
		MaxDistance: 100,
	}
	c.home = pose{Target: c.Target, Yaw: c.Yaw, Pitch: c.Pitch, Distance: c.Distance}
	return c
}

// Position returns the eye position in world coordinates.
func (c *Camera) Position() r3.Vec {
	cp := math.Cos(c.Pitch)
	offset := r3.Vec{
		X: c.Distance * cp * math.Sin(c.Yaw),
		Y: c.Distance * math.Sin(c.Pitch),
		Z: c.Distance * cp * math.Cos(c.Yaw),
	}
	return r3.Add(c.Target, offset)
}

// Forward returns the unit view direction.
func (c *Camera) Forward() r3.Vec {
	return r3.Unit(r3.Sub(c.Target, c.Position()))
}

// basis returns the camera right and up vectors.
func (c *Camera) basis() (right, up r3.Vec) {
	f := c.Forward()
	right = r3.Unit(r3.Cross(f, r3.Vec{Y: 1}))
	up = r3.Cross(right, f)
	return right, up
}

// Orbit rotates the camera around the target. Pitch stays short of straight up or down.
func (c *Camera) Orbit(dYaw, dPitch float64) {
	c.Yaw = math.Mod(c.Yaw+dYaw, 2*math.Pi)
	c.Pitch = clamp(c.Pitch+dPitch, -maxPitch, maxPitch)
}

// Pan moves the target in the view plane. dx and dy are in screen pixels.
func (c *Camera) Pan(dx, dy float64) {
	right, up := c.basis()
	scale := c.worldPerPixel()
	c.Target = r3.Add(c.Target, r3.Add(r3.Scale(-dx*scale, right), r3.Scale(dy*scale, up)))
}

// worldPerPixel is the world size of a pixel at the target distance.
func (c *Camera) worldPerPixel() float64 {
	if c.ViewportH <= 0 {
		return 0
	}
	h := 2 * c.Distance * math.Tan(c.FovY*math.Pi/360)
	return h / c.ViewportH
}

// SetDistance sets the orbit distance, clamped to min/max.
func (c *Camera) SetDistance(d float64) {
	c.Distance = clamp(d, c.MinDistance, c.MaxDistance)
}

// ZoomBy divides the distance by factor, so factors above 1 move closer.
func (c *Camera) ZoomBy(factor float64) {
	if factor <= 0 {
		return
	}
	c.SetDistance(c.Distance / factor)
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float64) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Reset returns the camera to its initial pose.
func (c *Camera) Reset() {
	c.Target = c.home.Target
	c.Yaw = c.home.Yaw
	c.Pitch = c.home.Pitch
	c.Distance = c.home.Distance
}

// ScreenRay returns the world ray through screen pixel (sx, sy).
func (c *Camera) ScreenRay(sx, sy float64) (origin, dir r3.Vec) {
	origin = c.Position()
	f := c.Forward()
	right, up := c.basis()
	if c.ViewportW <= 0 || c.ViewportH <= 0 {
		return origin, f
	}
	tanY := math.Tan(c.FovY * math.Pi / 360)
	aspect := c.ViewportW / c.ViewportH
	nx := (2*sx/c.ViewportW - 1) * tanY * aspect
	ny := (1 - 2*sy/c.ViewportH) * tanY
	dir = r3.Unit(r3.Add(f, r3.Add(r3.Scale(nx, right), r3.Scale(ny, up))))
	return origin, dir
}

// WorldToScreen projects p to screen pixels. ok is false behind the camera.
func (c *Camera) WorldToScreen(p r3.Vec) (sx, sy float64, ok bool) {
	d := r3.Sub(p, c.Position())
	f := c.Forward()
	depth := r3.Dot(d, f)
	if depth <= 1e-9 {
		return 0, 0, false
	}
	right, up := c.basis()
	tanY := math.Tan(c.FovY * math.Pi / 360)
	aspect := c.ViewportW / c.ViewportH
	nx := r3.Dot(d, right) / depth / (tanY * aspect)
	ny := r3.Dot(d, up) / depth / tanY
	sx = (nx + 1) * c.ViewportW / 2
	sy = (1 - ny) * c.ViewportH / 2
	return sx, sy, true
}

// RaySphere returns the distance along a unit ray to the first hit of a sphere, or -1.
func RaySphere(origin, dir, center r3.Vec, radius float64) float64 {
	oc := r3.Sub(origin, center)
	b := r3.Dot(oc, dir)
	disc := b*b - (r3.Norm2(oc) - radius*radius)
	if disc < 0 {
		return -1
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t >= 0 {
		return t
	}
	if t := -b + sq; t >= 0 {
		return t
	}
	return -1
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
