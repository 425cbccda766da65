// Collider SDF preview tool - interactive slice of a collider's signed distance field.
//
// Usage: go run ./cmd/sdfpreview
package main

import (
	"fmt"
	"image/color"
	"math"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/collision"
	"github.com/pthm-cable/squish/components"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
	gridSize     = 256
)

// PreviewParams holds the shape and slice being previewed.
type PreviewParams struct {
	Kind     components.ShapeKind
	Size     float64 // box edge / capsule height / convex extent
	Radius   float64
	Tilt     float64 // rotation about Z in radians
	SliceY   float64 // world height of the XZ slice
	Extent   float64 // half width of the previewed square
	Contours float64 // distance between iso lines
}

func defaultParams() PreviewParams {
	return PreviewParams{
		Kind:     components.ShapeBox,
		Size:     1.5,
		Radius:   0.5,
		Tilt:     math.Pi / 8,
		SliceY:   0,
		Extent:   2,
		Contours: 0.25,
	}
}

var shapeKinds = []components.ShapeKind{
	components.ShapeBox,
	components.ShapeSphere,
	components.ShapeCapsule,
	components.ShapeConvexMesh,
}

func main() {
	rl.InitWindow(windowWidth, windowHeight, "Collider SDF Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	params := defaultParams()
	field := make([]float64, gridSize*gridSize)
	img := rl.GenImageColor(gridSize, gridSize, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)

	needsRegen := true
	var sdf components.SDFCollider
	var ok bool

	for !rl.WindowShouldClose() {
		if needsRegen {
			sdf, ok = collision.Convert(buildShape(params), buildTransform(params))
			if ok {
				sliceField(field, gridSize, &sdf, params)
			}
			updateTexture(texture, field, params.Contours)
			needsRegen = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: gridSize, Height: gridSize},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		// Readout under the cursor
		statsY := int32(previewSize + 25)
		minVal, maxVal := fieldRange(field)
		rl.DrawText(fmt.Sprintf("Min: %.3f  Max: %.3f", minVal, maxVal), 15, statsY, 16, rl.DarkGray)
		if ok {
			rl.DrawText(fmt.Sprintf("Collider: %s", sdf.Kind), 15, statsY+20, 16, rl.DarkGray)
		} else {
			rl.DrawText("Shape has no SDF approximation", 15, statsY+20, 16, rl.Maroon)
		}
		m := rl.GetMousePosition()
		if ok && m.X >= 10 && m.X < 10+previewSize && m.Y >= 10 && m.Y < 10+previewSize {
			p := slicePoint(float64(m.X-10)/previewSize, float64(m.Y-10)/previewSize, params)
			d, n := collision.Evaluate(&sdf, p)
			rl.DrawText(fmt.Sprintf("(%.2f, %.2f, %.2f)  d=%.3f  n=(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z, d, n.X, n.Y, n.Z), 15, statsY+40, 16, rl.DarkGray)
		}

		// Control panel
		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Collider Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		slider := func(label string, value, lo, hi float64) float64 {
			rl.DrawText(label, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 18
			v := gui.SliderBar(
				rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
				"", "",
				float32(value), float32(lo), float32(hi),
			)
			rl.DrawText(fmt.Sprintf("%.2f", value), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
			panelY += 35
			if float64(v) != float64(float32(value)) {
				needsRegen = true
				return float64(v)
			}
			return value
		}

		params.Size = slider("Size (box edge, capsule height)", params.Size, 0.1, 3)
		params.Radius = slider("Radius (sphere, capsule)", params.Radius, 0.05, 1.5)
		params.Tilt = slider("Tilt about Z (radians)", params.Tilt, -math.Pi, math.Pi)
		params.SliceY = slider("Slice height", params.SliceY, -2, 2)
		params.Extent = slider("View half width", params.Extent, 0.5, 5)
		params.Contours = slider("Contour spacing", params.Contours, 0.05, 1)

		// Shape buttons
		for i, k := range shapeKinds {
			x := panelX + float32(i%2)*130
			y := panelY + float32(i/2)*40
			if gui.Button(rl.Rectangle{X: x, Y: y, Width: 120, Height: 30}, toggleText(params.Kind == k, "["+k.String()+"]", k.String())) {
				params.Kind = k
				needsRegen = true
			}
		}
		panelY += 85
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = defaultParams()
			needsRegen = true
		}

		rl.EndDrawing()
	}
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}

// buildShape returns the scene shape for the current parameters, centered on the origin.
func buildShape(p PreviewParams) components.ColliderShape {
	s := components.ColliderShape{Kind: p.Kind}
	switch p.Kind {
	case components.ShapeBox:
		s.Size = r3.Vec{X: p.Size, Y: p.Size / 2, Z: p.Size}
	case components.ShapeSphere:
		s.Radius = p.Radius
	case components.ShapeCapsule:
		s.Radius = p.Radius
		s.Height = p.Size
		s.Axis = components.AxisX
	case components.ShapeConvexMesh:
		h := p.Size / 2
		s.Min = r3.Vec{X: -h, Y: -h / 3, Z: -h * 2 / 3}
		s.Max = r3.Vec{X: h, Y: h / 3, Z: h * 2 / 3}
	}
	return s
}

func buildTransform(p PreviewParams) components.Transform {
	xf := components.NewTransform(r3.Vec{})
	xf.Rotation = components.AxisAngle(r3.Vec{Z: 1}, p.Tilt)
	return xf
}

// slicePoint maps texture coordinates in [0,1] to a world point on the slice plane.
func slicePoint(u, v float64, p PreviewParams) r3.Vec {
	return r3.Vec{
		X: (u*2 - 1) * p.Extent,
		Y: p.SliceY,
		Z: (v*2 - 1) * p.Extent,
	}
}

// sliceField samples the signed distance over the XZ slice at params.SliceY.
func sliceField(grid []float64, size int, c *components.SDFCollider, p PreviewParams) {
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			pt := slicePoint((float64(x)+0.5)/float64(size), (float64(y)+0.5)/float64(size), p)
			grid[y*size+x] = collision.Distance(c, pt)
		}
	}
}

func fieldRange(grid []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range grid {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// fieldColor shades inside red and outside blue, darkening on iso lines and whitening the
// surface.
func fieldColor(d, spacing float64) color.RGBA {
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return color.RGBA{A: 255}
	}
	fade := math.Exp(-math.Abs(d))
	var c color.RGBA
	if d < 0 {
		c = color.RGBA{R: uint8(120 + 135*fade), G: uint8(40 * fade), B: uint8(40 * fade), A: 255}
	} else {
		c = color.RGBA{R: uint8(40 * fade), G: uint8(80 + 100*fade), B: uint8(120 + 135*fade), A: 255}
	}
	if math.Abs(d) < 0.01 {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	if spacing > 0 {
		if f := math.Mod(math.Abs(d), spacing); f < 0.01 || spacing-f < 0.01 {
			c.R, c.G, c.B = c.R/2, c.G/2, c.B/2
		}
	}
	return c
}

func updateTexture(texture rl.Texture2D, grid []float64, spacing float64) {
	pixels := make([]color.RGBA, len(grid))
	for i, d := range grid {
		pixels[i] = fieldColor(d, spacing)
	}
	rl.UpdateTexture(texture, pixels)
}
