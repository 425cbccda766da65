package game

import (
	"fmt"
	"time"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/sleep"
	"github.com/pthm-cable/squish/ui"
)

const (
	panelWidth  = 260
	panelMargin = 10
)

// Draw renders the scene, the HUD and the control panel.
func (g *Game) Draw() {
	g.perfCollector.RecordFrame()

	rl.BeginDrawing()
	rl.ClearBackground(rl.Color{R: 24, G: 26, B: 32, A: 255})

	rl.BeginMode3D(g.rlCamera())
	g.drawColliders()
	g.drawBodies()
	g.drawActiveOverlays()
	rl.EndMode3D()

	g.drawHUD()
	g.drawPanel()
	if g.hasSelection {
		g.drawInfoPanel()
	}

	rl.EndDrawing()
}

// drawHUD draws the status lines, the stage timings in debug mode and the overlay list.
func (g *Game) drawHUD() {
	bodies := g.reg.Bodies.Snapshot()
	data := ui.HUDData{
		Title:        "Squish",
		Bodies:       len(bodies),
		Colliders:    g.reg.Colliders.Len(),
		Tick:         g.tick,
		SimTime:      float64(g.tick) * g.params.DeltaTime,
		Speed:        g.stepsPerUpdate,
		FPS:          rl.GetFPS(),
		TickTime:     g.perfCollector.Stats().AvgTickDuration,
		Paused:       g.paused,
		Viewers:      g.hub.Clients(),
		ScreenWidth:  int32(g.screenWidth),
		ScreenHeight: int32(g.screenHeight),
	}
	for _, e := range bodies {
		if e.Value.Sleep.Asleep() {
			data.Asleep++
		}
		data.Particles += e.Value.Solver.ParticleCount()
	}
	g.hud.Draw(data)
	g.hud.DrawControls(data.ScreenWidth, data.ScreenHeight,
		"[Space] pause  [,/.] speed  [R] reset  [Click] select  [I] poke  [F] focus  [Tab] overlays  [D] debug")

	y := int32(120)
	if g.debugMode {
		times := make(map[string]time.Duration)
		names := g.perf.SortedNames()
		for _, name := range names {
			times[name] = g.perf.Avg(name)
		}
		g.perfPanel.SetPosition(10, y)
		g.perfPanel.Draw(ui.PerfPanelData{
			StageTimes: times,
			Total:      g.perf.Total(),
			Workers:    g.dev.Workers(),
			Dispatches: g.dev.Dispatches(),
		}, names)
		y += 60 + 14*int32(min(len(names), 12))
	}
	g.controls.SetPosition(10, y)
	g.controls.Draw(g.overlays)
}

// panelRect returns the control panel bounds.
func (g *Game) panelRect() rl.Rectangle {
	return rl.Rectangle{
		X:      g.screenWidth - panelWidth - panelMargin,
		Y:      panelMargin,
		Width:  panelWidth,
		Height: 330,
	}
}

// mouseOverPanel reports whether the cursor is over the control panel.
func (g *Game) mouseOverPanel() bool {
	return rl.CheckCollisionPointRec(rl.GetMousePosition(), g.panelRect())
}

// drawPanel draws the solver controls. Changes apply from the next tick.
func (g *Game) drawPanel() {
	r := g.panelRect()
	rl.DrawRectangleRec(r, rl.Color{R: 0, G: 0, B: 0, A: 180})
	rl.DrawRectangleLinesEx(r, 1, rl.Gray)

	x := r.X + 10
	y := r.Y + 8
	w := r.Width - 90
	rl.DrawText("Solver", int32(x), int32(y), 18, rl.White)
	y += 28

	slider := func(label string, value, lo, hi float32, format string) float32 {
		rl.DrawText(label, int32(x), int32(y), 14, rl.LightGray)
		y += 16
		v := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", value, lo, hi)
		rl.DrawText(fmt.Sprintf(format, v), int32(x+w+8), int32(y+1), 14, rl.White)
		y += 26
		return v
	}

	g.params.Iterations = int(slider("Iterations", float32(g.params.Iterations), 1, 16, "%.0f") + 0.5)
	g.params.Substeps = int(slider("Substeps", float32(g.params.Substeps), 1, 8, "%.0f") + 0.5)
	g.params.Damping = float64(slider("Damping", float32(g.params.Damping), 0, 2, "%.2f"))
	g.params.LambdaDecay = float64(slider("Lambda decay", float32(g.params.LambdaDecay), 0, 1, "%.2f"))
	gy := slider("Gravity", float32(-g.params.Gravity.Y), 0, 20, "%.1f")
	g.params.Gravity = r3.Vec{X: g.params.Gravity.X, Y: -float64(gy), Z: g.params.Gravity.Z}

	g.params.CollisionsEnabled = gui.CheckBox(rl.Rectangle{X: x, Y: y, Width: 16, Height: 16}, "Collisions", g.params.CollisionsEnabled)
	y += 26

	bw := (r.Width - 30) / 2
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: bw, Height: 26}, toggleText(g.paused, "Resume", "Pause")) {
		g.paused = !g.paused
	}
	if gui.Button(rl.Rectangle{X: x + bw + 10, Y: y, Width: bw, Height: 26}, "Reset") {
		g.resetBodies()
	}
	y += 34
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: bw, Height: 26}, "Drop body") {
		g.dropBody()
	}
	if gui.Button(rl.Rectangle{X: x + bw + 10, Y: y, Width: bw, Height: 26}, "Remove") {
		g.removeSelectedOrLast()
	}
}

// drawInfoPanel shows the selected body in the inspector.
func (g *Game) drawInfoPanel() {
	b, ok := g.reg.Bodies.Get(g.selected)
	if !ok {
		g.hasSelection = false
		return
	}
	st := b.Solver.Stats()
	diag := b.Solver.Diagnostics()
	c := b.Solver.Centroid()

	data := &ui.InspectorData{
		Name:              b.Name,
		State:             b.Sleep.State().String(),
		Asleep:            b.Sleep.Asleep(),
		Particles:         st.Particles,
		Constraints:       st.Constraints,
		VolumeConstraints: st.VolumeConstraints,
		Colors:            st.Colors,
		Colliders:         st.Colliders,
		MemoryBytes:       st.MemoryBytes,
		CentroidX:         c.X,
		CentroidY:         c.Y,
		CentroidZ:         c.Z,
		Speed:             b.Sleep.Speed(),
		KineticEnergy:     b.Solver.KineticEnergy(),
		MaxSpeed:          diag.MaxSpeed,
		SpeedLimit:        g.params.MaxSpeed,
		StillTime:         b.Sleep.StillTime(),
		SleepTime:         g.sleepCfg.TimeThreshold,
		NaNCount:          diag.NaNCount,
		InfCount:          diag.InfCount,
		ReadbacksDone:     st.ReadbacksDone,
		ReadbacksFailed:   st.ReadbacksFailed,
	}
	if b.Sleep.LastWakeReason() != sleep.ReasonNone {
		data.WakeReason = b.Sleep.LastWakeReason().String()
	}

	w, h := g.inspector.Size()
	x, y := g.inspector.Anchor().Place(int32(g.screenWidth), int32(g.screenHeight), w, h, 40)
	g.inspector.SetPosition(x, y)
	g.inspector.Draw(data)
}

func toggleText(on bool, onText, offText string) string {
	if on {
		return onText
	}
	return offText
}
