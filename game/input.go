package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/stream"
)

// handleInput processes keyboard and mouse input.
func (g *Game) handleInput() {
	// Window resize propagation
	g.handleResize()

	// Fullscreen toggle
	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) && g.stepsPerUpdate > 1 {
		g.stepsPerUpdate--
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && g.stepsPerUpdate < 10 {
		g.stepsPerUpdate++
	}

	// Single step while paused
	if g.paused && rl.IsKeyPressed(rl.KeyN) {
		g.simulationStep()
	}

	if rl.IsKeyPressed(rl.KeyR) {
		g.applyCommand(stream.Command{Type: stream.CommandReset})
	}
	if rl.IsKeyPressed(rl.KeyL) {
		g.logWorldState()
		g.logPerfStats()
	}

	g.handleOverlayKeys()
	g.handleCameraInput()
	g.handleSelectionInput()
}

// handleResize checks for window resize and propagates new dimensions.
func (g *Game) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == g.screenWidth && h == g.screenHeight {
		return
	}
	g.screenWidth = w
	g.screenHeight = h
	g.camera.Resize(float64(w), float64(h))
}

// handleCameraInput processes orbit, pan and zoom controls.
func (g *Game) handleCameraInput() {
	// Right drag orbits, middle drag pans
	if rl.IsMouseButtonDown(rl.MouseRightButton) {
		delta := rl.GetMouseDelta()
		g.camera.Orbit(-float64(delta.X)*0.005, float64(delta.Y)*0.005)
	}
	if rl.IsMouseButtonDown(rl.MouseMiddleButton) {
		delta := rl.GetMouseDelta()
		g.camera.Pan(float64(delta.X), float64(delta.Y))
	}

	// Arrow keys orbit
	const orbitStep = 0.03
	if rl.IsKeyDown(rl.KeyRight) {
		g.camera.Orbit(orbitStep, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		g.camera.Orbit(-orbitStep, 0)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		g.camera.Orbit(0, orbitStep)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		g.camera.Orbit(0, -orbitStep)
	}

	// Zoom controls: mouse wheel or +/- keys
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		g.camera.ZoomBy(1 + float64(wheel)*0.1)
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		g.camera.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		g.camera.ZoomBy(0.8)
	}

	// Home key to reset camera
	if rl.IsKeyPressed(rl.KeyHome) {
		g.camera.Reset()
	}

	// F follows the selected body
	if g.hasSelection && rl.IsKeyPressed(rl.KeyF) {
		if b, ok := g.reg.Bodies.Get(g.selected); ok {
			g.camera.Target = b.Solver.Centroid()
		}
	}
}

// handleSelectionInput picks a body on left click and pokes the selection with I.
func (g *Game) handleSelectionInput() {
	if g.mouseOverPanel() {
		return
	}
	if rl.IsMouseButtonPressed(rl.MouseLeftButton) {
		mouse := rl.GetMousePosition()
		g.selected, g.hasSelection = g.pickBody(float64(mouse.X), float64(mouse.Y))
	}
	if g.hasSelection && rl.IsKeyPressed(rl.KeyI) {
		g.pokeSelected(r3.Vec{Y: 1})
	}
}
